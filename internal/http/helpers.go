package http

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
	"finboard/internal/view"
)

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	return stripControl(strings.TrimSpace(s))
}

// stripControl drops control characters other than tab and newlines and
// leaves everything else, surrounding spaces included, as typed.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// isHTMX reports whether r was issued by htmx rather than a full page load.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// templateFuncs are shared by every page and partial.
func templateFuncs(currency string) template.FuncMap {
	return template.FuncMap{
		"money": func(d decimal.Decimal) string {
			return core.FormatMoney(d, currency)
		},
		"absMoney": func(d decimal.Decimal) string {
			return core.FormatMoney(d.Abs(), currency)
		},
		"incomeLike": func(t core.TransactionType) bool {
			return t.IsIncomeLike()
		},
		"categoryColor": core.CategoryColor,
		"intervalLabel": func(i core.RecurringInterval) string {
			return i.Label()
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Jan 02, 2006")
		},
		"isoDate": func(t time.Time) string {
			return t.Format("2006-01-02")
		},
		"pct": func(d decimal.Decimal) string {
			return d.StringFixed(1)
		},
		// barHeight scales v against top into a 2..100 percentage so that
		// tiny non-zero values stay visible.
		"barHeight": func(v, top decimal.Decimal) int {
			if !top.IsPositive() || !v.IsPositive() {
				return 0
			}
			h := int(v.Div(top).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
			return min(max(h, 2), 100)
		},
		// overviewMax is the largest income or expense across account bars.
		"overviewMax": func(o view.Overview) decimal.Decimal {
			m := decimal.Zero
			for _, b := range o.Bars {
				m = decimal.Max(m, b.Income, b.Expenses)
			}
			return m
		},
		"ranges":      view.Ranges,
		"chartStyles": view.ChartStyles,
		"selected": func(sel view.Selection, id string) bool { return sel.Contains(id) },
		"allSelected": func(sel view.Selection, page view.Page) bool {
			return sel.AllSelected(page.IDs())
		},
		"sortMark": func(s view.SortState, field string) string {
			if string(s.Field) != field {
				return ""
			}
			if s.Direction == view.Asc {
				return "▲"
			}
			return "▼"
		},
		"seq": func(n int) []int {
			out := make([]int, n)
			for i := range out {
				out[i] = i + 1
			}
			return out
		},
	}
}
