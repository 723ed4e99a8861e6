// Package export renders a list as a printable HTML table and reads such tables back.
package export

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"listou/internal/history"
	"listou/internal/logger"
	"listou/internal/shopping"
)

//go:embed templates/list.html.tmpl
var templatesFS embed.FS

var listTemplate = template.Must(template.ParseFS(templatesFS, "templates/list.html.tmpl"))

// Mode picks where an export goes.
type Mode int

const (
	// ModeView writes the document to a writer, for viewing.
	ModeView Mode = iota
	// ModeSave writes the document to a file named after the date.
	ModeSave
)

// PricePlaceholder is shown when an item has no price.
const PricePlaceholder = "-"

const dateLayout = "02/01/2006"

// Row is one formatted table row.
type Row struct {
	Status   string
	Name     string
	Quantity string
	Category string
	Price    string
	Bought   bool
}

type page struct {
	Date  string
	Total string
	Rows  []Row
}

// StatusMarker renders the done column.
func StatusMarker(bought bool) string {
	if bought {
		return "[X]"
	}
	return "[ ]"
}

// FormatQuantity renders "<qty> <unit>".
func FormatQuantity(qty float64, unit string) string {
	return fmt.Sprintf("%s %s", strconv.FormatFloat(qty, 'f', -1, 64), unit)
}

// FormatPrice renders a price with two decimals, or the placeholder when it is unknown.
func FormatPrice(price *float64) string {
	if price == nil {
		return PricePlaceholder
	}
	return FormatMoney(*price)
}

// FormatMoney renders an amount in reais.
func FormatMoney(v float64) string {
	return fmt.Sprintf("R$ %.2f", v)
}

// Filename is the name a saved export gets.
func Filename(date time.Time) string {
	return fmt.Sprintf("lista-compras-%s.html", date.Format("02-01-2006"))
}

// Rows formats every item of the list, in list order.
func Rows(items []shopping.Item) []Row {
	rows := make([]Row, len(items))
	for i, item := range items {
		rows[i] = Row{
			Status:   StatusMarker(item.Bought),
			Name:     item.Name,
			Quantity: FormatQuantity(item.Quantity, item.Unit),
			Category: string(item.Category),
			Price:    FormatPrice(item.Price),
			Bought:   item.Bought,
		}
	}
	return rows
}

// Render writes the document for items as of date.
func Render(w io.Writer, items []shopping.Item, date time.Time) error {
	return render(w, items, date, shopping.ComputeTotals(items).Total)
}

// RenderEntry writes the document for a saved list. The total is the one stored with the entry,
// not recomputed from its items.
func RenderEntry(w io.Writer, e history.Entry) error {
	return render(w, e.Items, e.Date, e.TotalPrice)
}

func render(w io.Writer, items []shopping.Item, date time.Time, total float64) error {
	p := page{
		Date:  date.Format(dateLayout),
		Total: FormatMoney(total),
		Rows:  Rows(items),
	}
	if err := listTemplate.Execute(w, p); err != nil {
		return fmt.Errorf("failed to render list: %w", err)
	}
	return nil
}

// Exporter writes documents in either mode.
type Exporter struct {
	dir string
	log *zap.Logger
}

// NewExporter creates an Exporter saving files under dir.
func NewExporter(dir string, log *zap.Logger) *Exporter {
	return &Exporter{dir: dir, log: logger.OrNop(log)}
}

// Export renders items. In ModeView the document goes to w and the returned path is empty; in
// ModeSave it goes to a file in the export directory whose path is returned.
func (e *Exporter) Export(mode Mode, w io.Writer, items []shopping.Item, date time.Time) (string, error) {
	return e.export(mode, w, date, len(items), func(w io.Writer) error {
		return Render(w, items, date)
	})
}

// ExportEntry is Export for a saved list, dated and totalled as it was saved.
func (e *Exporter) ExportEntry(mode Mode, w io.Writer, entry history.Entry) (string, error) {
	return e.export(mode, w, entry.Date, len(entry.Items), func(w io.Writer) error {
		return RenderEntry(w, entry)
	})
}

func (e *Exporter) export(mode Mode, w io.Writer, date time.Time, items int, write func(io.Writer) error) (string, error) {
	switch mode {
	case ModeView:
		return "", write(w)
	case ModeSave:
		return e.save(date, items, write)
	default:
		return "", fmt.Errorf("unknown export mode %d", mode)
	}
}

func (e *Exporter) save(date time.Time, items int, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(e.dir, Filename(date))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	e.log.Info("list exported", zap.String("path", path), zap.Int("items", items))
	return path, nil
}
