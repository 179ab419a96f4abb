package view

import (
	"strings"
	"time"

	"finboard/internal/core"
)

// Row is a transaction with its date resolved to an instant.
type Row struct {
	core.Transaction
	At time.Time
}

// TypeFilter narrows rows by kind. Income matches every income-like type
// (INCOME, CREDIT); Expense matches everything else.
type TypeFilter string

const (
	AnyType     TypeFilter = ""
	IncomeOnly  TypeFilter = "INCOME"
	ExpenseOnly TypeFilter = "EXPENSE"
)

// RecurrenceFilter narrows rows by the recurring flag. Any non-empty value
// other than Recurring selects non-recurring rows.
type RecurrenceFilter string

const (
	AnyRecurrence RecurrenceFilter = ""
	Recurring     RecurrenceFilter = "recurring"
	NonRecurring  RecurrenceFilter = "non-recurring"
)

// ParseTypeFilter normalises user input; unknown values select all rows.
func ParseTypeFilter(s string) TypeFilter {
	switch TypeFilter(strings.ToUpper(strings.TrimSpace(s))) {
	case IncomeOnly:
		return IncomeOnly
	case ExpenseOnly:
		return ExpenseOnly
	}
	return AnyType
}

// ParseRecurrenceFilter normalises user input; unknown values select all
// rows.
func ParseRecurrenceFilter(s string) RecurrenceFilter {
	switch RecurrenceFilter(strings.ToLower(strings.TrimSpace(s))) {
	case Recurring:
		return Recurring
	case NonRecurring:
		return NonRecurring
	}
	return AnyRecurrence
}

func (f TypeFilter) matches(t core.TransactionType) bool {
	switch f {
	case AnyType:
		return true
	case IncomeOnly:
		return t.IsIncomeLike()
	default:
		return !t.IsIncomeLike()
	}
}

func (f RecurrenceFilter) matches(recurring bool) bool {
	switch f {
	case AnyRecurrence:
		return true
	case Recurring:
		return recurring
	default:
		return !recurring
	}
}

// Criteria is the full set of table filters. A zero Window matches nothing,
// so callers always resolve one from a RangeKey.
type Criteria struct {
	Window     Window
	Search     string
	Type       TypeFilter
	Recurrence RecurrenceFilter
}

// Prepare parses every transaction date in loc. Rows whose date cannot be
// parsed are dropped and counted. The input is not modified.
func Prepare(txs []core.Transaction, loc *time.Location) (rows []Row, dropped int) {
	if loc == nil {
		loc = time.Local
	}
	rows = make([]Row, 0, len(txs))
	for _, tx := range txs {
		at, ok := core.ParseFlexibleDateIn(tx.Date, loc)
		if !ok {
			dropped++
			continue
		}
		rows = append(rows, Row{Transaction: tx, At: at.In(loc)})
	}
	return rows, dropped
}

// Filter returns the rows matching c in their original order. The result
// never aliases the input.
func Filter(rows []Row, c Criteria) []Row {
	term := strings.ToLower(c.Search)
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if !c.Window.Contains(r.At) {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(r.Description), term) {
			continue
		}
		if !c.Type.matches(r.Type) {
			continue
		}
		if !c.Recurrence.matches(r.IsRecurring) {
			continue
		}
		out = append(out, r)
	}
	return out
}
