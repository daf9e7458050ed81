package domain

import (
	"sort"
	"strings"
	"time"
)

// DeliveryPayload is the fulfillment data submitted with a DELIVER action.
// Values carries flat entries (auto-fulfillment and the single/list manual
// modes); Fields carries the structured form-field answers; exactly one of
// the two is set.
type DeliveryPayload struct {
	Values []string
	Fields map[string]string
}

// Items renders the payload as the gateway's delivery_info array: flat
// values one per element, a structured form as a single-element array
// holding the object.
func (p DeliveryPayload) Items() []any {
	if len(p.Fields) > 0 {
		return []any{p.Fields}
	}
	items := make([]any, len(p.Values))
	for i, v := range p.Values {
		items[i] = v
	}
	return items
}

// Summary renders the payload for operator-facing messages.
func (p DeliveryPayload) Summary() string {
	if len(p.Fields) > 0 {
		keys := make([]string, 0, len(p.Fields))
		for k := range p.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + p.Fields[k]
		}
		return strings.Join(parts, " | ")
	}
	return strings.Join(p.Values, " | ")
}

// IsZero reports whether the payload holds no delivery data at all.
func (p DeliveryPayload) IsZero() bool {
	return len(p.Values) == 0 && len(p.Fields) == 0
}

// Reservation records a committed inventory lease for an order so that a
// failed delivery submission is retried against the same lease instead of
// allocating again.
type Reservation struct {
	ID           string
	OrderID      string
	ProductID    string
	AccountIndex int
	Payload      DeliveryPayload
	CreatedAt    time.Time
	Delivered    bool
}
