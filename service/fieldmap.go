package service

import (
	"regexp"
	"sort"
	"strings"
)

// ClickUp custom field ids on the invoice list.
const (
	CustomFieldVendorName        = "de3c7c49-c48c-464f-86bc-974774099396"
	CustomFieldMissingItems      = "612bb05d-bc68-486b-b8bf-3db90a965188"
	CustomFieldLocation          = "3ddb4595-e264-4592-87f5-69018d3ec8e3"
	CustomFieldItemsRequested    = "09d6b92a-d4b3-447f-bfdd-6a0fd56764ca"
	CustomFieldItemsDelivered    = "f88ef885-69a1-4c13-a950-cb3cf5539a65"
	CustomFieldMissingDetected   = "a8b1bae2-038a-466c-9f4f-d94e024d243d"
	CustomFieldInvoiceTotal      = "ce44d1ab-e0f5-4338-8762-661c7014a079"
	CustomFieldMissingValue      = "d48a0451-d83d-44f8-b74f-760b5e0b3485"
	CustomFieldProcessedDate     = "81dea16a-7a6b-4d12-bf4d-f02a0a08dd3c"
	CustomFieldInvoiceImage      = "2c1a800a-7a70-4eb7-8949-6719be2ad9e2"
	CustomFieldInvoiceDate       = "520d84f6-2eb9-4777-ab15-9693bb7b8a3d"
	CustomFieldInvoiceNumber     = "84fe70f3-8b4d-43ea-8d15-3e034b082393"
	CustomFieldNumRequestedItems = "61a9a77d-40d1-44d4-bf4c-0b1bd29d7499"
	CustomFieldNumDeliveredItems = "90cc0fe8-64eb-451a-a48a-cd16cfca920d"
	CustomFieldNumMissingItems   = "a6842f4f-7a8e-4e78-97ca-9d2b7d083be3"
)

// LocationOptions maps location dropdown labels to ClickUp option ids.
var LocationOptions = map[string]string{
	"Midtown":       "d8ed2c85-ed1d-4669-bab6-ebbfa0e2aed2",
	"West Midtown":  "36fcdab1-c453-44ef-94e6-ac4d8dd4d97a",
	"Sandy Springs": "279b441f-8872-4197-af48-58c7a119118e",
	"Chamblee":      "8057228e-a122-45df-a827-300f05a34a11",
	"Alpharetta":    "632f646c-c81c-4a3e-b150-888d05bec256",
	"Cumming":       "64117696-4b12-43fc-8d80-2accaebacec2",
	"Sugar Hill":    "b3f04a61-84d9-41d3-97c5-1a6098ecef6e",
	"Buckhead":      "c15c069d-fde5-43e8-a5bc-3149b93d3c00",
	"Decatur":       "54fe407f-a0b7-435e-8e92-56a9cf34cad4",
	"Lawrenceville": "679dff9f-d4d2-4280-b371-c076238491d6",
}

// MissingDetectedOptions maps the missing-detected dropdown labels to option ids.
var MissingDetectedOptions = map[string]string{
	"Yes": "0a15390e-db36-4a91-a493-e2579ee86006",
	"No":  "4f9608cf-0d69-4418-96f0-f394c4826abb",
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// LocationOptionID resolves a location label. Labels are matched exactly.
func LocationOptionID(label string) (string, bool) {
	id, ok := LocationOptions[label]
	return id, ok
}

// MissingDetectedOptionID returns the dropdown option for the flag.
func MissingDetectedOptionID(detected bool) string {
	if detected {
		return MissingDetectedOptions["Yes"]
	}
	return MissingDetectedOptions["No"]
}

// LocationTag turns a location label into a task tag, e.g. "Sandy Springs" -> "sandy-springs".
func LocationTag(label string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(label), "-")
}

// Locations returns the known location labels in alphabetical order.
func Locations() []string {
	labels := make([]string, 0, len(LocationOptions))
	for label := range LocationOptions {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
