package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rrealai/invoice/model"
)

const (
	deliveredNone    = "None"
	deliveredUnknown = "See description for details"
)

// itemQuantity matches "<name> - Qty: <n>" and the legacy "<name> - Cantidad: <n>".
var itemQuantity = regexp.MustCompile(`(?i)(.+?)\s*-\s*(?:Cantidad:|Qty:)?\s*(\d+)`)

// ParseItemQuantity splits an item line into its trimmed name and quantity.
// ok is false when the line does not follow the convention; err is set when it
// does but the quantity cannot be represented.
func ParseItemQuantity(entry string) (name string, qty int, ok bool, err error) {
	m := itemQuantity.FindStringSubmatch(entry)
	if m == nil {
		return "", 0, false, nil
	}
	qty, err = strconv.Atoi(m[2])
	if err != nil {
		return "", 0, true, fmt.Errorf("quantity in %q: %w", entry, err)
	}
	return strings.TrimSpace(m[1]), qty, true, nil
}

// ComputeDelivered derives the delivered-items summary from the ordered and
// missing item lists. Lines that do not follow the quantity convention are
// passed through unchanged; a quantity that cannot be parsed yields a
// placeholder instead of an error.
func ComputeDelivered(ordered, missing []string) string {
	if noneMissing(missing) {
		return strings.Join(ordered, ", ")
	}

	delivered, err := subtractMissing(ordered, missing)
	if err != nil {
		return deliveredUnknown
	}
	if len(delivered) == 0 {
		return deliveredNone
	}
	return strings.Join(delivered, ", ")
}

func noneMissing(missing []string) bool {
	return len(missing) == 0 || (len(missing) == 1 && missing[0] == model.NotSpecified)
}

func subtractMissing(ordered, missing []string) ([]string, error) {
	missingQty := make(map[string]int, len(missing))
	for _, entry := range missing {
		name, qty, ok, err := ParseItemQuantity(entry)
		if err != nil {
			return nil, err
		}
		if ok {
			missingQty[strings.ToLower(name)] = qty
		}
	}

	var delivered []string
	for _, entry := range ordered {
		name, qty, ok, err := ParseItemQuantity(entry)
		if err != nil {
			return nil, err
		}
		if !ok {
			delivered = append(delivered, entry)
			continue
		}
		if left := qty - missingQty[strings.ToLower(name)]; left > 0 {
			delivered = append(delivered, fmt.Sprintf("%s - Qty: %d", name, left))
		}
	}
	return delivered, nil
}
