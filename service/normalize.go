package service

import (
	"math"
	"strings"
	"time"

	"github.com/rrealai/invoice/model"
	"github.com/tidwall/gjson"
)

// Extraction is the outcome of reading a model response. Degraded is set when
// no JSON object could be found; Record then holds defaults and the raw text.
type Extraction struct {
	Record   model.InvoiceRecord
	Degraded bool
}

// candidates lists the keys a field may appear under, in precedence order:
// the English key requested by the prompt, then the legacy Spanish key.
type candidates []string

var (
	keysVendor          = candidates{"vendor", "proveedor"}
	keysInvoiceDate     = candidates{"invoice_date", "fecha_invoice"}
	keysInvoiceNumber   = candidates{"invoice_number", "numero_invoice"}
	keysOrderedItems    = candidates{"requested_items", "items_pedidos"}
	keysMissingItems    = candidates{"missing_items", "items_faltantes"}
	keysMissingDetected = candidates{"missing_detected", "faltantes_detectados"}
	keysMissingValue    = candidates{"missing_value_usd", "valor_faltantes_usd"}
	keysTotalValue      = candidates{"invoice_total_usd", "valor_total_invoice_usd"}
	keysCountOrdered    = candidates{"num_requested_items", "cantidad_items_pedidos"}
	keysCountDelivered  = candidates{"num_delivered_items", "cantidad_items_entregados"}
	keysCountMissing    = candidates{"num_missing_items", "cantidad_items_faltantes"}
)

var invoiceDateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// NormalizeResponse turns raw model output into a canonical record. The JSON
// object may be wrapped in prose; the span from the first '{' to the last '}'
// is used.
func NormalizeResponse(text string) Extraction {
	span, ok := locateObject(text)
	if !ok {
		rec := model.DefaultRecord()
		rec.RawResponse = text
		return Extraction{Record: rec, Degraded: true}
	}
	return Extraction{Record: Normalize(gjson.Parse(span))}
}

func locateObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return "", false
	}
	span := text[start : end+1]
	if !gjson.Valid(span) {
		return "", false
	}
	return span, true
}

// Normalize builds the canonical record from a parsed JSON object, accepting
// either key set and coercing every count and amount to a number.
func Normalize(obj gjson.Result) model.InvoiceRecord {
	rec := model.InvoiceRecord{
		Vendor:          keysVendor.text(obj, model.NotSpecified),
		InvoiceDate:     keysInvoiceDate.date(obj),
		InvoiceNumber:   keysInvoiceNumber.text(obj, model.NotSpecified),
		OrderedItems:    keysOrderedItems.array(obj),
		MissingItems:    keysMissingItems.array(obj),
		MissingDetected: model.YesNo(keysMissingDetected.yes(obj)),
		MissingValueUSD: keysMissingValue.amount(obj),
		TotalValueUSD:   keysTotalValue.amount(obj),
	}
	rec.CountOrdered = keysCountOrdered.count(obj, len(rec.OrderedItems))
	rec.CountDelivered = keysCountDelivered.count(obj, 0)
	rec.CountMissing = keysCountMissing.count(obj, len(rec.MissingItems))

	if rec.CountDelivered == 0 && rec.CountOrdered > 0 {
		rec.CountDelivered = max(rec.CountOrdered-rec.CountMissing, 0)
	}
	return rec
}

func (c candidates) text(obj gjson.Result, fallback string) string {
	for _, key := range c {
		if v := obj.Get(key); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return fallback
}

// array returns the first candidate that is a JSON array. Null elements are
// dropped, so a count derived from its length excludes them.
func (c candidates) array(obj gjson.Result) []string {
	for _, key := range c {
		v := obj.Get(key)
		if !v.IsArray() {
			continue
		}
		items := make([]string, 0, len(v.Array()))
		for _, item := range v.Array() {
			if item.Type == gjson.Null {
				continue
			}
			items = append(items, item.String())
		}
		return items
	}
	return []string{}
}

func (c candidates) number(obj gjson.Result, fallback float64) float64 {
	for _, key := range c {
		if v := obj.Get(key); v.Type == gjson.Number {
			return v.Float()
		}
	}
	return fallback
}

// count clamps a numeric field to 0..MaxInt, truncating fractions.
func (c candidates) count(obj gjson.Result, fallback int) int {
	n := c.number(obj, float64(fallback))
	switch {
	case math.IsNaN(n) || n <= 0:
		return 0
	case n >= math.MaxInt:
		return math.MaxInt
	}
	return int(n)
}

func (c candidates) amount(obj gjson.Result) float64 {
	return max(c.number(obj, 0), 0)
}

func (c candidates) yes(obj gjson.Result) bool {
	for _, key := range c {
		if v := obj.Get(key); v.Type == gjson.String && v.Str == "Yes" {
			return true
		}
	}
	return false
}

// date returns the first candidate that parses as a calendar date, formatted
// as YYYY-MM-DD.
func (c candidates) date(obj gjson.Result) *string {
	for _, key := range c {
		v := obj.Get(key)
		if v.Type != gjson.String || v.Str == "" {
			continue
		}
		if d, ok := parseInvoiceDate(v.Str); ok {
			return &d
		}
	}
	return nil
}

func parseInvoiceDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range invoiceDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly), true
		}
	}
	return "", false
}
