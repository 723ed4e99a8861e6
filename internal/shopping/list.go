package shopping

import "math"

// Clone copies a list item by item. A nil or empty list clones to nil.
func Clone(items []Item) []Item {
	if len(items) == 0 {
		return nil
	}
	out := make([]Item, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

// Equal reports whether two lists hold the same items in the same order.
// A nil list equals an empty one.
func Equal(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// IndexOf returns the position of the item with the given ID, or -1.
func IndexOf(items []Item, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// Totals summarizes the money side of a list.
type Totals struct {
	Total     float64
	Bought    float64
	Remaining float64
}

// ComputeTotals sums price×quantity over all items and over the bought ones.
func ComputeTotals(items []Item) Totals {
	var t Totals
	for _, item := range items {
		sub := item.Subtotal()
		t.Total += sub
		if item.Bought {
			t.Bought += sub
		}
	}
	t.Remaining = t.Total - t.Bought
	return t
}

// Progress is the rounded percentage of bought items, 0 for an empty list.
func Progress(items []Item) int {
	if len(items) == 0 {
		return 0
	}
	bought := 0
	for _, item := range items {
		if item.Bought {
			bought++
		}
	}
	return int(math.Round(float64(bought) / float64(len(items)) * 100))
}

// Complete reports whether the list is non-empty and every item is bought.
func Complete(items []Item) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if !item.Bought {
			return false
		}
	}
	return true
}

// Group is the slice of a list that falls in one category.
type Group struct {
	Category Category
	Items    []Item
}

// GroupByCategory splits the list by category, in category display order.
// Items keep their list order inside a group; unknown categories come last.
func GroupByCategory(items []Item) []Group {
	byCat := make(map[Category][]Item)
	var unknown []Category
	for _, item := range items {
		if _, seen := byCat[item.Category]; !seen && !item.Category.Valid() {
			unknown = append(unknown, item.Category)
		}
		byCat[item.Category] = append(byCat[item.Category], item)
	}

	var groups []Group
	for _, info := range Categories {
		if list, ok := byCat[info.Name]; ok {
			groups = append(groups, Group{Category: info.Name, Items: list})
		}
	}
	for _, c := range unknown {
		groups = append(groups, Group{Category: c, Items: byCat[c]})
	}
	return groups
}
