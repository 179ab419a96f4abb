package view

import (
	"fmt"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type SortField string

const (
	SortByDate     SortField = "date"
	SortByAmount   SortField = "amount"
	SortByCategory SortField = "category"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortState is the active table ordering.
type SortState struct {
	Field     SortField `json:"field"`
	Direction Direction `json:"direction"`
}

// DefaultSort shows the newest rows first.
var DefaultSort = SortState{Field: SortByDate, Direction: Desc}

func ParseSortField(s string) (SortField, error) {
	switch f := SortField(s); f {
	case SortByDate, SortByAmount, SortByCategory:
		return f, nil
	}
	return "", fmt.Errorf("unknown sort field %q", s)
}

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Asc, Desc:
		return d, nil
	}
	return "", fmt.Errorf("unknown sort direction %q", s)
}

// Toggle returns the state after a click on field's header: the active
// ascending column flips to descending, anything else becomes ascending.
func (s SortState) Toggle(field SortField) SortState {
	if s.Field == field && s.Direction == Asc {
		return SortState{Field: field, Direction: Desc}
	}
	return SortState{Field: field, Direction: Asc}
}

// Sort returns a stably ordered copy of rows. Category comparison uses
// English collation rather than byte order.
func Sort(rows []Row, s SortState) []Row {
	out := slices.Clone(rows)
	if out == nil {
		out = []Row{}
	}

	var cmp func(a, b Row) int
	switch s.Field {
	case SortByAmount:
		cmp = func(a, b Row) int { return a.Amount.Cmp(b.Amount) }
	case SortByCategory:
		// collators are not safe for concurrent use
		col := collate.New(language.English)
		cmp = func(a, b Row) int { return col.CompareString(a.Category, b.Category) }
	case SortByDate:
		cmp = func(a, b Row) int { return a.At.Compare(b.At) }
	default:
		return out
	}
	if s.Direction == Desc {
		asc := cmp
		cmp = func(a, b Row) int { return -asc(a, b) }
	}
	slices.SortStableFunc(out, cmp)
	return out
}
