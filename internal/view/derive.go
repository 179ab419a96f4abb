package view

import (
	"time"

	"finboard/internal/core"
)

// Dashboard is everything rendered for one account page.
type Dashboard struct {
	// State is the input state with the page clamped to the table and the
	// selection narrowed to ids on that page.
	State TableState
	// Rows is the full filtered and sorted table, before pagination.
	Rows    []Row
	Table   Page
	Chart   Chart
	Dropped int
}

// Derive recomputes the table and chart from a snapshot. The table uses
// every filter; the chart only uses the date window so that searching does
// not reshape the time series.
func Derive(snapshot []core.Transaction, state TableState, now time.Time) Dashboard {
	state = state.Normalize().Clone()
	rows, dropped := Prepare(snapshot, now.Location())

	criteria := state.Criteria(now)
	sorted := Sort(Filter(rows, criteria), state.Sort)
	page := Paginate(sorted, state.Page)

	if page.Number != state.Page {
		state.GoToPage(page.Number)
	}
	state.Selection.Retain(page.IDs())

	chartRows := Filter(rows, Criteria{Window: criteria.Window})

	return Dashboard{
		State:   state,
		Rows:    sorted,
		Table:   page,
		Chart:   Aggregate(chartRows, state.Range.Range()),
		Dropped: dropped,
	}
}
