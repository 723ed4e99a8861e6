package shopping

import (
	"github.com/google/uuid"
)

// Category is the closed set of aisles an item can belong to.
type Category string

const (
	Carnes     Category = "Carnes"
	Hortifruti Category = "Hortifruti"
	Laticinios Category = "Laticínios"
	Padaria    Category = "Padaria"
	Mercearia  Category = "Mercearia"
	Limpeza    Category = "Limpeza"
	Higiene    Category = "Higiene"
	Bebidas    Category = "Bebidas"
)

// CategoryInfo pairs a category with the icon shown next to it.
type CategoryInfo struct {
	Name Category
	Icon string
}

// Categories lists every category in display order.
var Categories = []CategoryInfo{
	{Name: Carnes, Icon: "🥩"},
	{Name: Hortifruti, Icon: "🥦"},
	{Name: Laticinios, Icon: "🥛"},
	{Name: Padaria, Icon: "🍞"},
	{Name: Mercearia, Icon: "🍚"},
	{Name: Limpeza, Icon: "🧼"},
	{Name: Higiene, Icon: "🧻"},
	{Name: Bebidas, Icon: "🥤"},
}

// DefaultCategory is used when the user does not pick one.
const DefaultCategory = Mercearia

// DefaultUnit is used when the user does not pick one.
const DefaultUnit = "unidade"

// Valid reports whether c belongs to the closed category set.
func (c Category) Valid() bool {
	for _, info := range Categories {
		if info.Name == c {
			return true
		}
	}
	return false
}

// Icon returns the display icon of c, or an empty string for unknown categories.
func (c Category) Icon() string {
	for _, info := range Categories {
		if info.Name == c {
			return info.Icon
		}
	}
	return ""
}

// Item is one entry of a shopping list. It has no lifecycle outside the list holding it.
type Item struct {
	ID       string   `json:"id"`
	Name     string   `json:"name" validate:"required"`
	Quantity float64  `json:"quantity" validate:"gte=0"`
	Unit     string   `json:"unit"`
	Category Category `json:"category" validate:"required,category"`
	Bought   bool     `json:"bought"`
	// Price is the unit price; nil means unknown.
	Price   *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	AddedBy string   `json:"addedBy,omitempty"`
}

// NewID returns a fresh client-side item identifier.
func NewID() string {
	return uuid.NewString()
}

// PriceOrZero returns the unit price, or 0 when it is unknown.
func (i Item) PriceOrZero() float64 {
	if i.Price == nil {
		return 0
	}
	return *i.Price
}

// Subtotal is the unit price times the quantity.
func (i Item) Subtotal() float64 {
	return i.PriceOrZero() * i.Quantity
}

// Equal compares two items by value, following the price pointer.
func (i Item) Equal(o Item) bool {
	if i.ID != o.ID || i.Name != o.Name || i.Quantity != o.Quantity || i.Unit != o.Unit ||
		i.Category != o.Category || i.Bought != o.Bought || i.AddedBy != o.AddedBy {
		return false
	}
	if (i.Price == nil) != (o.Price == nil) {
		return false
	}
	return i.Price == nil || *i.Price == *o.Price
}

// Clone returns a copy that shares no memory with i.
func (i Item) Clone() Item {
	if i.Price != nil {
		p := *i.Price
		i.Price = &p
	}
	return i
}

// Patch is a partial update. Nil fields are left untouched; ClearPrice drops a known price.
type Patch struct {
	Name       *string
	Quantity   *float64
	Unit       *string
	Category   *Category
	Bought     *bool
	Price      *float64
	ClearPrice bool
}

// Apply returns i with the patch applied. The ID and attribution never change.
func (p Patch) Apply(i Item) Item {
	out := i.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Quantity != nil {
		out.Quantity = *p.Quantity
	}
	if p.Unit != nil {
		out.Unit = *p.Unit
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Bought != nil {
		out.Bought = *p.Bought
	}
	if p.ClearPrice {
		out.Price = nil
	} else if p.Price != nil {
		v := *p.Price
		out.Price = &v
	}
	return out
}

// Float returns a pointer to v, for building prices and patches.
func Float(v float64) *float64 {
	return &v
}
