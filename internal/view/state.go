package view

import "time"

// TableState is everything a user can change on an account table. Any
// change to the filters, range or ordering moves back to page 1, and any
// page change clears the selection.
type TableState struct {
	Search     string           `json:"search"`
	Type       TypeFilter       `json:"type"`
	Recurrence RecurrenceFilter `json:"recurrence"`
	Range      RangeKey         `json:"range"`
	Sort       SortState        `json:"sort"`
	Page       int              `json:"-"`
	Selection  Selection        `json:"-"`
}

func DefaultTableState() TableState {
	return TableState{Range: DefaultRange, Sort: DefaultSort, Page: 1}
}

// Normalize fills zero fields with defaults so a state decoded from storage
// or a partial request is always resolvable.
func (s TableState) Normalize() TableState {
	if _, err := ParseRangeKey(string(s.Range)); err != nil || s.Range == "" {
		s.Range = DefaultRange
	}
	if _, err := ParseSortField(string(s.Sort.Field)); err != nil {
		s.Sort = DefaultSort
	}
	if _, err := ParseDirection(string(s.Sort.Direction)); err != nil {
		s.Sort.Direction = Asc
	}
	if s.Page < 1 {
		s.Page = 1
	}
	return s
}

// SetSearch keeps term as typed; matching is a plain substring test.
func (s *TableState) SetSearch(term string) {
	if term == s.Search {
		return
	}
	s.Search = term
	s.reset()
}

func (s *TableState) SetType(f TypeFilter) {
	if f == s.Type {
		return
	}
	s.Type = f
	s.reset()
}

func (s *TableState) SetRecurrence(f RecurrenceFilter) {
	if f == s.Recurrence {
		return
	}
	s.Recurrence = f
	s.reset()
}

func (s *TableState) SetRange(k RangeKey) {
	if k == s.Range {
		return
	}
	s.Range = k
	s.reset()
}

func (s *TableState) ToggleSort(field SortField) {
	s.Sort = s.Sort.Toggle(field)
	s.reset()
}

// SetSort replaces the ordering outright, for clients that send both field
// and direction.
func (s *TableState) SetSort(sort SortState) {
	if sort == s.Sort {
		return
	}
	s.Sort = sort
	s.reset()
}

// ClearFilters drops search, type and recurrence filters.
func (s *TableState) ClearFilters() {
	if s.Search == "" && s.Type == AnyType && s.Recurrence == AnyRecurrence {
		return
	}
	s.Search, s.Type, s.Recurrence = "", AnyType, AnyRecurrence
	s.reset()
}

// GoToPage moves to page n. The selection is cleared even when n equals
// the current page so a re-render never shows stale checkmarks.
func (s *TableState) GoToPage(n int) {
	if n < 1 {
		n = 1
	}
	s.Page = n
	s.Selection.Clear()
}

// Apply copies the persisted part of other (filters, range, ordering) and
// returns to page 1.
func (s *TableState) Apply(other TableState) {
	other = other.Normalize()
	s.Search, s.Type, s.Recurrence = other.Search, other.Type, other.Recurrence
	s.Range, s.Sort = other.Range, other.Sort
	s.reset()
}

func (s TableState) HasFilters() bool {
	return s.Search != "" || s.Type != AnyType || s.Recurrence != AnyRecurrence
}

// Criteria resolves the filters against now.
func (s TableState) Criteria(now time.Time) Criteria {
	return Criteria{
		Window:     s.Range.Window(now),
		Search:     s.Search,
		Type:       s.Type,
		Recurrence: s.Recurrence,
	}
}

// Clone returns a deep copy.
func (s TableState) Clone() TableState {
	s.Selection = s.Selection.clone()
	return s
}

func (s *TableState) reset() {
	s.Page = 1
	s.Selection.Clear()
}
