package model

import (
	"encoding/json"
	"fmt"
)

// NotSpecified is the placeholder for text fields the extractor could not read.
const NotSpecified = "Not specified"

// YesNo is a boolean carried on the wire as "Yes" or "No".
type YesNo bool

func (v YesNo) String() string {
	if v {
		return "Yes"
	}
	return "No"
}

func (v YesNo) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *YesNo) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("yes/no value must be a string: %w", err)
	}
	*v = s == "Yes"
	return nil
}

// InvoiceRecord is the normalized extraction result. JSON names match the
// extractor's primary keys so a marshalled record normalizes to itself.
type InvoiceRecord struct {
	Vendor          string   `json:"vendor"`
	InvoiceDate     *string  `json:"invoice_date"` // YYYY-MM-DD, nil when unreadable
	InvoiceNumber   string   `json:"invoice_number"`
	OrderedItems    []string `json:"requested_items"`
	MissingItems    []string `json:"missing_items"`
	MissingDetected YesNo    `json:"missing_detected"`
	MissingValueUSD float64  `json:"missing_value_usd"`
	TotalValueUSD   float64  `json:"invoice_total_usd"`
	CountOrdered    int      `json:"num_requested_items"`
	CountDelivered  int      `json:"num_delivered_items"`
	CountMissing    int      `json:"num_missing_items"`
	RawResponse     string   `json:"raw_response,omitempty"`
}

// DefaultRecord returns the all-default record used when nothing could be extracted.
func DefaultRecord() InvoiceRecord {
	return InvoiceRecord{
		Vendor:        NotSpecified,
		InvoiceNumber: NotSpecified,
		OrderedItems:  []string{},
		MissingItems:  []string{},
	}
}

// TaskOutcome is the result of filing an invoice task with the tracker.
// Mock is set when the tracker rejected our credentials and the outcome was
// synthesized locally; it is still a successful outcome.
type TaskOutcome struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
	Mock bool   `json:"mock"`
}
