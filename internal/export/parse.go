package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"listou/internal/shopping"
)

// Parsed is an export read back from HTML.
type Parsed struct {
	Date  time.Time
	Total string
	Rows  []Row
}

// Parse reads a document produced by Render.
func Parse(r io.Reader) (Parsed, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Parsed{}, fmt.Errorf("failed to parse export: %w", err)
	}

	table := doc.Find("table#items")
	if table.Length() == 0 {
		return Parsed{}, fmt.Errorf("failed to parse export: no item table")
	}

	var p Parsed
	if raw := strings.TrimSpace(doc.Find("#date").Text()); raw != "" {
		if d, err := time.ParseInLocation(dateLayout, raw, time.Local); err == nil {
			p.Date = d
		}
	}
	p.Total = strings.TrimSpace(doc.Find("#total").Text())

	table.Find("tbody tr").Each(func(_ int, s *goquery.Selection) {
		cell := func(class string) string {
			return strings.TrimSpace(s.Find("td." + class).Text())
		}
		status := cell("status")
		p.Rows = append(p.Rows, Row{
			Status:   status,
			Name:     cell("name"),
			Quantity: cell("qty"),
			Category: cell("category"),
			Price:    cell("price"),
			Bought:   status == StatusMarker(true),
		})
	})
	return p, nil
}

// ImportItems turns parsed rows back into list items with fresh IDs. Unknown categories fall
// back to the default one; an unreadable quantity becomes 1.
func ImportItems(rows []Row) []shopping.Item {
	items := make([]shopping.Item, 0, len(rows))
	for _, row := range rows {
		if row.Name == "" {
			continue
		}
		qty, unit := parseQuantity(row.Quantity)
		category := shopping.Category(row.Category)
		if !category.Valid() {
			category = shopping.DefaultCategory
		}
		items = append(items, shopping.Item{
			ID:       shopping.NewID(),
			Name:     row.Name,
			Quantity: qty,
			Unit:     unit,
			Category: category,
			Bought:   row.Bought,
			Price:    parsePrice(row.Price),
		})
	}
	return items
}

func parseQuantity(s string) (float64, string) {
	num, unit, _ := strings.Cut(strings.TrimSpace(s), " ")
	qty, err := strconv.ParseFloat(num, 64)
	if err != nil || qty < 0 {
		qty = 1
	}
	unit = strings.TrimSpace(unit)
	if unit == "" {
		unit = shopping.DefaultUnit
	}
	return qty, unit
}

func parsePrice(s string) *float64 {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	if s == "" || s == PricePlaceholder {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || v < 0 {
		return nil
	}
	return shopping.Float(v)
}
