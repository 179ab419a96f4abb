package sheets

import (
	"context"
	"strings"
	"time"

	"finboard/internal/view"
)

// Ports for outbound adapters.
type (
	// ViewExporter writes a whole filtered and sorted table somewhere the
	// user can open it, returning a reference to the result.
	ViewExporter interface {
		Export(ctx context.Context, req ExportRequest) (ref string, err error)
	}
)

type ExportRequest struct {
	Title       string
	AccountName string
	Rows        []view.Row
	GeneratedAt time.Time
}

// Header is the first row of every export.
var Header = []string{"Date", "Description", "Category", "Type", "Amount", "Recurring"}

// Table renders req as spreadsheet cells, header first. Dates use the
// row's resolved instant so exports sort correctly in any spreadsheet.
func Table(req ExportRequest) [][]string {
	out := make([][]string, 0, len(req.Rows)+1)
	out = append(out, Header)
	for _, r := range req.Rows {
		recurring := ""
		if r.IsRecurring {
			recurring = r.RecurringInterval.Label()
			if recurring == "" {
				recurring = "Yes"
			}
		}
		out = append(out, []string{
			r.At.Format("2006-01-02"),
			r.Description,
			r.Category,
			strings.ToUpper(string(r.Type)),
			r.Amount.Abs().StringFixed(2),
			recurring,
		})
	}
	return out
}

// SheetTitle builds a tab name that is unique per export and free of the
// characters Sheets rejects in titles.
func SheetTitle(req ExportRequest) string {
	base := strings.TrimSpace(req.Title)
	if base == "" {
		base = strings.TrimSpace(req.AccountName)
	}
	if base == "" {
		base = "Export"
	}
	base = strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '*', '?', '/', '\\', ':', '\'':
			return '-'
		}
		return r
	}, base)
	if runes := []rune(base); len(runes) > 60 {
		base = string(runes[:60])
	}
	return base + " " + req.GeneratedAt.Format("2006-01-02 15.04.05")
}
