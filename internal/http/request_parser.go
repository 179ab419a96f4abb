// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request
// data: table state changes from query strings and the transaction,
// account and budget forms.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
	"finboard/internal/view"
)

// ErrBadParam marks a query parameter outside its accepted values.
var ErrBadParam = errors.New("invalid parameter")

var errJSONArrayBody = errors.New("JSON body must be an object, not an array")

const maxSearchLen = 200

// ApplyTableQuery applies the table controls present in q to state.
//
// Recognised keys are clear, search, type, recurrence, range, sort (with
// optional dir) and page. A page is only honoured when no filter or
// ordering changed, since those always return to page 1. In lenient mode
// unknown range, sort and page values are ignored; in strict mode they
// are reported as ErrBadParam.
func ApplyTableQuery(state *view.TableState, q url.Values, strict bool) error {
	before := persisted(*state)
	toggled := false

	if q.Get("clear") == "1" {
		state.ClearFilters()
	}
	if q.Has("search") {
		term := stripControl(q.Get("search"))
		if len([]rune(term)) > maxSearchLen {
			term = string([]rune(term)[:maxSearchLen])
		}
		state.SetSearch(term)
	}
	if q.Has("type") {
		state.SetType(view.ParseTypeFilter(q.Get("type")))
	}
	if q.Has("recurrence") {
		state.SetRecurrence(view.ParseRecurrenceFilter(q.Get("recurrence")))
	}
	if q.Has("range") {
		k, err := view.ParseRangeKey(strings.ToUpper(strings.TrimSpace(q.Get("range"))))
		switch {
		case err == nil:
			state.SetRange(k)
		case strict:
			return fmt.Errorf("%w: %v", ErrBadParam, err)
		}
	}
	if q.Has("sort") {
		field, err := view.ParseSortField(strings.ToLower(strings.TrimSpace(q.Get("sort"))))
		if err != nil {
			if strict {
				return fmt.Errorf("%w: %v", ErrBadParam, err)
			}
		} else if q.Has("dir") {
			dir, err := view.ParseDirection(strings.ToLower(strings.TrimSpace(q.Get("dir"))))
			if err != nil {
				if strict {
					return fmt.Errorf("%w: %v", ErrBadParam, err)
				}
			} else {
				state.SetSort(view.SortState{Field: field, Direction: dir})
			}
		} else {
			state.ToggleSort(field)
			toggled = true
		}
	}
	if q.Has("page") && !toggled && persisted(*state) == before {
		n, err := strconv.Atoi(strings.TrimSpace(q.Get("page")))
		switch {
		case err == nil:
			state.GoToPage(n)
		case strict:
			return fmt.Errorf("%w: page %q", ErrBadParam, q.Get("page"))
		}
	}
	return nil
}

// persistedState is the comparable part of a table state.
type persistedState struct {
	search     string
	typ        view.TypeFilter
	recurrence view.RecurrenceFilter
	rng        view.RangeKey
	sort       view.SortState
}

func persisted(s view.TableState) persistedState {
	return persistedState{s.Search, s.Type, s.Recurrence, s.Range, s.Sort}
}

// ParseTransactionForm builds a transaction payload from a submitted form.
// Dates are read in loc; YYYY-MM-DD is expected but looser input is
// accepted.
func ParseTransactionForm(form url.Values, loc *time.Location) (core.NewTransaction, error) {
	amount, err := core.ParseAmount(form.Get("amount"))
	if err != nil {
		return core.NewTransaction{}, err
	}

	tx := core.NewTransaction{
		Type:              core.TransactionType(strings.ToUpper(strings.TrimSpace(form.Get("type")))),
		Amount:            amount,
		Description:       sanitizeInput(form.Get("description")),
		AccountID:         sanitizeInput(form.Get("accountId")),
		Category:          sanitizeInput(form.Get("category")),
		ReceiptURL:        sanitizeInput(form.Get("receiptUrl")),
		IsRecurring:       parseBool(form.Get("isRecurring")),
		RecurringInterval: core.RecurringInterval(strings.ToUpper(strings.TrimSpace(form.Get("recurringInterval")))),
	}

	if v := strings.TrimSpace(form.Get("date")); v != "" {
		d, ok := core.ParseFlexibleDateIn(v, loc)
		if !ok {
			return core.NewTransaction{}, fmt.Errorf("%w: date %q", ErrBadParam, v)
		}
		tx.Date = d
	}
	if v := strings.TrimSpace(form.Get("nextRecurringDate")); v != "" && tx.IsRecurring {
		d, ok := core.ParseFlexibleDateIn(v, loc)
		if !ok {
			return core.NewTransaction{}, fmt.Errorf("%w: next recurring date %q", ErrBadParam, v)
		}
		tx.NextRecurringDate = &d
	}
	return tx, nil
}

// ParseAccountForm builds an account payload. An empty balance is zero.
func ParseAccountForm(form url.Values) (core.NewAccount, error) {
	acc := core.NewAccount{
		Name:        sanitizeInput(form.Get("name")),
		AccountType: core.AccountType(strings.ToUpper(strings.TrimSpace(form.Get("accountType")))),
		IsDefault:   parseBool(form.Get("isDefault")),
	}
	if v := strings.TrimSpace(form.Get("balance")); v != "" {
		b, err := decimal.NewFromString(strings.ReplaceAll(v, ",", "."))
		if err != nil {
			return core.NewAccount{}, fmt.Errorf("%w: balance %q", ErrBadParam, v)
		}
		acc.Balance = b.Round(2)
	}
	return acc, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "on", "true", "yes":
		return true
	}
	return false
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// maxBodyBytes bounds every parsed request body.
const maxBodyBytes = 1 << 20

// NewRequestBodyParser reads the body once and stores it for subsequent
// parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '[' {
		p.err = errJSONArrayBody
		return p.err
	}
	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Values flattens the parsed data into url.Values so JSON and form bodies
// go through the same table and form parsers.
func (p *RequestBodyParser) Values() url.Values {
	if p.formData != nil {
		return p.formData
	}
	out := url.Values{}
	for k, v := range p.jsonData {
		if v != nil {
			out.Set(k, stringValue(v))
		}
	}
	return out
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
