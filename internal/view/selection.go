package view

import "slices"

// Selection is the ordered set of checked transaction ids on the visible
// page. It is only ever populated from page ids and is emptied whenever
// the page changes.
type Selection struct {
	ids []string
}

func NewSelection(ids ...string) Selection {
	var s Selection
	for _, id := range ids {
		if !s.Contains(id) {
			s.ids = append(s.ids, id)
		}
	}
	return s
}

func (s *Selection) Toggle(id string) {
	if i := slices.Index(s.ids, id); i >= 0 {
		s.ids = slices.Delete(s.ids, i, i+1)
		return
	}
	s.ids = append(s.ids, id)
}

// SelectAllOnPage selects every id on the page, or clears the selection if
// the whole page is already selected.
func (s *Selection) SelectAllOnPage(pageIDs []string) {
	if s.AllSelected(pageIDs) {
		s.Clear()
		return
	}
	s.ids = slices.Clone(pageIDs)
}

func (s *Selection) Clear() { s.ids = nil }

func (s Selection) Contains(id string) bool { return slices.Contains(s.ids, id) }

func (s Selection) Len() int { return len(s.ids) }

// IDs returns a copy of the selected ids in selection order.
func (s Selection) IDs() []string { return slices.Clone(s.ids) }

// AllSelected reports whether pageIDs is non-empty and fully selected.
func (s Selection) AllSelected(pageIDs []string) bool {
	if len(pageIDs) == 0 || len(s.ids) != len(pageIDs) {
		return false
	}
	for _, id := range pageIDs {
		if !s.Contains(id) {
			return false
		}
	}
	return true
}

// Retain drops ids that are not on the page.
func (s *Selection) Retain(pageIDs []string) {
	s.ids = slices.DeleteFunc(s.ids, func(id string) bool { return !slices.Contains(pageIDs, id) })
}

func (s Selection) clone() Selection { return Selection{ids: slices.Clone(s.ids)} }
