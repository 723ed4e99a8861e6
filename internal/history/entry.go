// Package history keeps the log of completed shopping lists.
//
// Entries are immutable snapshots: totals are computed once from the embedded items when the
// entry is created. Every numeric field is forced to a finite number before it is written, and
// records written by older clients (string totals, localized dates, numeric IDs) are coerced on
// read instead of failing.
package history

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"listou/internal/shopping"
)

// Scope selects whose history is shown: the pairing code when one is set, the user otherwise.
type Scope struct {
	CasalID string
	UserID  string
}

// Key is the storage key of the scope, "casal:<code>" or "user:<id>".
func (s Scope) Key() string {
	switch {
	case s.CasalID != "":
		return "casal:" + s.CasalID
	case s.UserID != "":
		return "user:" + s.UserID
	default:
		return ""
	}
}

// IsZero reports whether the scope selects nothing.
func (s Scope) IsZero() bool {
	return s.Key() == ""
}

// Entry is one completed list.
type Entry struct {
	ID         string
	Date       time.Time
	TotalItems int
	TotalPrice float64
	Items      []shopping.Item
	SavedBy    string
	CasalID    string
	OwnerID    string
}

// ScopeKeys lists every scope the entry is visible in.
func (e Entry) ScopeKeys() []string {
	keys := []string{Scope{UserID: e.OwnerID}.Key()}
	if e.CasalID != "" {
		keys = append(keys, Scope{CasalID: e.CasalID}.Key())
	}
	return keys
}

// Draft is what the caller provides to append an entry.
type Draft struct {
	Items   []shopping.Item `json:"items"`
	SavedBy string          `json:"savedBy,omitempty"`
	CasalID string          `json:"casalId,omitempty"`
	OwnerID string          `json:"userId"`
}

// UnmarshalJSON decodes a draft coming from an untrusted source; bad numbers become 0.
func (d *Draft) UnmarshalJSON(data []byte) error {
	var w struct {
		Items   []wireItem `json:"items"`
		SavedBy string     `json:"savedBy"`
		CasalID string     `json:"casalId"`
		OwnerID flexString `json:"userId"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*d = Draft{Items: itemsFromWire(w.Items), SavedBy: w.SavedBy, CasalID: w.CasalID, OwnerID: string(w.OwnerID)}
	return nil
}

// newEntry snapshots a draft. Every item leaves with a concrete price and quantity.
func newEntry(id string, d Draft, now time.Time) Entry {
	items := make([]shopping.Item, len(d.Items))
	var total float64
	for i, item := range d.Items {
		item = item.Clone()
		item.Quantity = finite(item.Quantity)
		item.Price = shopping.Float(finite(item.PriceOrZero()))
		items[i] = item
		total += *item.Price * item.Quantity
	}
	return Entry{
		ID:         id,
		Date:       now,
		TotalItems: len(items),
		TotalPrice: finite(total),
		Items:      items,
		SavedBy:    d.SavedBy,
		CasalID:    d.CasalID,
		OwnerID:    d.OwnerID,
	}
}

type wireEntry struct {
	ID         flexString `json:"id"`
	Date       flexTime   `json:"date"`
	TotalItems flexFloat  `json:"total_items"`
	TotalPrice flexFloat  `json:"total_price"`
	Items      []wireItem `json:"items"`
	SavedBy    string     `json:"savedBy,omitempty"`
	CasalID    string     `json:"casalId,omitempty"`
	OwnerID    flexString `json:"userId"`
}

type wireItem struct {
	ID       flexString        `json:"id"`
	Name     string            `json:"name"`
	Quantity flexFloat         `json:"quantity"`
	Unit     string            `json:"unit"`
	Category shopping.Category `json:"category"`
	Bought   bool              `json:"bought"`
	Price    *flexFloat        `json:"price,omitempty"`
	AddedBy  string            `json:"addedBy,omitempty"`
}

func itemsFromWire(in []wireItem) []shopping.Item {
	if len(in) == 0 {
		return nil
	}
	out := make([]shopping.Item, len(in))
	for i, w := range in {
		item := shopping.Item{
			ID:       string(w.ID),
			Name:     w.Name,
			Quantity: float64(w.Quantity),
			Unit:     w.Unit,
			Category: w.Category,
			Bought:   w.Bought,
			AddedBy:  w.AddedBy,
		}
		if w.Price != nil {
			item.Price = shopping.Float(float64(*w.Price))
		}
		out[i] = item
	}
	return out
}

func itemsToWire(in []shopping.Item) []wireItem {
	out := make([]wireItem, len(in))
	for i, item := range in {
		price := flexFloat(item.PriceOrZero())
		out[i] = wireItem{
			ID:       flexString(item.ID),
			Name:     item.Name,
			Quantity: flexFloat(item.Quantity),
			Unit:     item.Unit,
			Category: item.Category,
			Bought:   item.Bought,
			Price:    &price,
			AddedBy:  item.AddedBy,
		}
	}
	return out
}

// MarshalJSON writes the storage form of the entry.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEntry{
		ID:         flexString(e.ID),
		Date:       flexTime(e.Date),
		TotalItems: flexFloat(e.TotalItems),
		TotalPrice: flexFloat(e.TotalPrice),
		Items:      itemsToWire(e.Items),
		SavedBy:    e.SavedBy,
		CasalID:    e.CasalID,
		OwnerID:    flexString(e.OwnerID),
	})
}

// UnmarshalJSON reads the storage form, tolerating legacy records.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Entry{
		ID:         string(w.ID),
		Date:       time.Time(w.Date),
		TotalItems: int(w.TotalItems),
		TotalPrice: float64(w.TotalPrice),
		Items:      itemsFromWire(w.Items),
		SavedBy:    w.SavedBy,
		CasalID:    w.CasalID,
		OwnerID:    string(w.OwnerID),
	}
	return nil
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// flexFloat decodes any JSON value to a finite number, 0 when it is not one.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	*f = flexFloat(toFloat(parseJSONScalar(data)))
	return nil
}

func (f flexFloat) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(finite(float64(f)), 'f', -1, 64)), nil
}

// flexString accepts strings and numbers.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	switch v := parseJSONScalar(data).(type) {
	case string:
		*s = flexString(v)
	case json.Number:
		*s = flexString(v.String())
	default:
		*s = ""
	}
	return nil
}

func (s flexString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// Date layouts accepted on read, besides RFC 3339. The second and third are what a pt-BR
// locale produces.
var dateLayouts = []string{
	time.RFC3339Nano,
	"02/01/2006, 15:04:05",
	"02/01/2006 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// flexTime decodes RFC 3339 and localized date strings or epoch milliseconds. Anything else
// decodes to the zero time.
type flexTime time.Time

func (t *flexTime) UnmarshalJSON(data []byte) error {
	*t = flexTime(toTime(parseJSONScalar(data)))
	return nil
}

func (t flexTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339Nano))
}

func parseJSONScalar(data []byte) any {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

// toFloat coerces a decoded JSON or SQL value to a finite number.
func toFloat(v any) float64 {
	var f float64
	switch x := v.(type) {
	case json.Number:
		f, _ = x.Float64()
	case float64:
		f = x
	case int64:
		f = float64(x)
	case int:
		f = float64(x)
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(x), 64)
	case []byte:
		f, _ = strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
	}
	return finite(f)
}

// toTime coerces a decoded JSON or SQL value to a time.
func toTime(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x
	case json.Number:
		if ms, err := x.Int64(); err == nil {
			return time.UnixMilli(ms).UTC()
		}
	case int64:
		return time.UnixMilli(x).UTC()
	case []byte:
		return toTime(string(x))
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
