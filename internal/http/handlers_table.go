package http

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/services"
	"finboard/internal/session"
	"finboard/internal/view"
)

// tableState is the stored state of accountID, or the user's default saved
// view when the account has not been opened in this session.
func (s *Server) tableState(r *http.Request, sess *session.Session, accountID string) view.TableState {
	if sess.HasTable(accountID) {
		return sess.Table(accountID)
	}
	return s.dash.InitialState(r.Context(), sess.Profile.UserID)
}

// deriveAccount applies mutate to the account's table state and derives
// the view from it without storing anything.
func (s *Server) deriveAccount(r *http.Request, mutate func(*view.TableState) error) (*services.AccountView, error) {
	sess := currentSession(r)
	accountID := mux.Vars(r)["id"]
	state := s.tableState(r, sess, accountID)
	if mutate != nil {
		if err := mutate(&state); err != nil {
			return nil, err
		}
	}
	return s.dash.Account(r.Context(), sess.Profile.UserID, accountID, state)
}

// loadAccountData applies mutate to the stored table state of the account,
// derives the view from the result and loads the saved views menu. The
// update is atomic per session, so concurrent toggles never drop each
// other. On failure the error response has already been written.
func (s *Server) loadAccountData(w http.ResponseWriter, r *http.Request, mutate func(*view.TableState) error) (*accountData, bool) {
	ctx := r.Context()
	sess := currentSession(r)
	accountID := mux.Vars(r)["id"]

	state, err := s.sessions.UpdateTable(ctx, sess.ID, accountID, s.tableState(r, sess, accountID), mutate)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	av, err := s.dash.Account(ctx, sess.Profile.UserID, accountID, state)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	if av.State.Page != state.Page {
		s.clampPage(r, accountID, state.Page, av.State.Page)
	}

	views, err := s.dash.ListViews(ctx, sess.Profile.UserID)
	if err != nil {
		s.reqLogger(r).WarnContext(ctx, "Failed to list saved views", log.FieldError, err)
	}
	return &accountData{AccountID: accountID, AccountView: av, Views: views}, true
}

// clampPage stores the page the table was clamped to, unless another
// request moved the page in the meantime.
func (s *Server) clampPage(r *http.Request, accountID string, from, to int) {
	sess := currentSession(r)
	_, err := s.sessions.UpdateTable(r.Context(), sess.ID, accountID, view.DefaultTableState(), func(st *view.TableState) error {
		if st.Page == from {
			st.GoToPage(to)
		}
		return nil
	})
	if err != nil {
		s.reqLogger(r).WarnContext(r.Context(), "Failed to store table state",
			log.NewFields().WithAccount(accountID).WithError(err, log.ErrorTypeInternal).ToSlice()...)
	}
}

// handleTable applies the table controls in the query and re-renders the
// table partial. A view parameter applies a saved view first.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var prevRange view.RangeKey
	data, ok := s.loadAccountData(w, r, func(st *view.TableState) error {
		prevRange = st.Range
		if id := strings.TrimSpace(q.Get("view")); id != "" {
			next, err := s.dash.ApplyView(r.Context(), currentSession(r).Profile.UserID, id, *st)
			if err != nil {
				return err
			}
			*st = next
		}
		return ApplyTableQuery(st, q, false)
	})
	if !ok {
		return
	}

	b := NewHTMXResponse().TriggerSelectionChanged(data.AccountID, data.State.Selection.Len())
	if data.State.Range != prevRange {
		b.TriggerTableRefresh(data.AccountID)
	}
	s.respond(w, r, b, "table", data)
}

// handleChart re-renders the account chart in the style given by style.
// An unknown style falls back to the default.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	style, err := view.ParseChartStyle(r.URL.Query().Get("style"))
	if err != nil {
		style = view.DefaultChartStyle
	}
	data, ok := s.loadAccountData(w, r, nil)
	if !ok {
		return
	}
	data.Style = style
	s.render(w, r, "chart", data)
}

// handleSummary renders the cross-account chart carousel. The current
// slide comes from chart and is moved by move=next|prev or by a swipe
// reported as dx/dy.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	carousel := view.NewCarousel()
	if k, err := view.ParseChartKind(q.Get("chart")); err == nil {
		carousel.Current = k
	}
	switch q.Get("move") {
	case "next":
		carousel = carousel.Next()
	case "prev":
		carousel = carousel.Prev()
	}
	if q.Has("dx") {
		dx, _ := strconv.Atoi(q.Get("dx"))
		dy, _ := strconv.Atoi(q.Get("dy"))
		carousel = carousel.Swipe(dx, dy)
	}

	rangeKey := queryRange(r)
	overview, err := s.dash.Summary(r.Context(), rangeKey)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, "summary", summaryData{Overview: overview, Carousel: carousel, Range: rangeKey})
}

func (s *Server) handleToggleSelect(w http.ResponseWriter, r *http.Request) {
	txID := mux.Vars(r)["txID"]
	data, ok := s.loadAccountData(w, r, func(st *view.TableState) error {
		st.Selection.Toggle(txID)
		return nil
	})
	if !ok {
		return
	}
	b := NewHTMXResponse().TriggerSelectionChanged(data.AccountID, data.State.Selection.Len())
	s.respond(w, r, b, "table", data)
}

// handleSelectAll selects every row on the current page, or clears the
// selection when the page is already fully selected.
func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	av, err := s.deriveAccount(r, nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pageIDs := av.Table.IDs()
	data, ok := s.loadAccountData(w, r, func(st *view.TableState) error {
		st.Selection.SelectAllOnPage(pageIDs)
		return nil
	})
	if !ok {
		return
	}

	b := NewHTMXResponse().TriggerSelectionChanged(data.AccountID, data.State.Selection.Len())
	s.respond(w, r, b, "table", data)
}

// handleDeleteSelected removes the selected rows of the visible page and
// re-renders the table from a fresh snapshot.
func (s *Server) handleDeleteSelected(w http.ResponseWriter, r *http.Request) {
	av, err := s.deriveAccount(r, nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ids := av.State.Selection.IDs()
	accountID := mux.Vars(r)["id"]
	if err := s.dash.DeleteSelected(r.Context(), accountID, ids); err != nil {
		s.fail(w, r, err)
		return
	}
	s.appMetrics.deleted.Add(int64(len(ids)))

	data, ok := s.loadAccountData(w, r, func(st *view.TableState) error {
		st.Selection.Clear()
		return nil
	})
	if !ok {
		return
	}

	msg := fmt.Sprintf("Deleted %d transaction", len(ids))
	if len(ids) != 1 {
		msg += "s"
	}
	b := NewHTMXResponse().
		TriggerTransactionsChanged(accountID).
		TriggerTableRefresh(accountID).
		TriggerSelectionChanged(accountID, 0).
		TriggerSuccessNotification(msg)
	s.respond(w, r, b, "table", data)
}

// handleExport writes the whole filtered table to the configured exporter.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	accountID := mux.Vars(r)["id"]
	state := s.tableState(r, sess, accountID)

	ref, err := s.dash.Export(r.Context(), sess.Profile.UserID, accountID, state)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.appMetrics.exports.Add(1)

	body := `<div class="export-ref">Exported: ` + template.HTMLEscapeString(ref) + `</div>`
	if strings.HasPrefix(ref, "https://") {
		esc := template.HTMLEscapeString(ref)
		body = `<div class="export-ref"><a href="` + esc + `" target="_blank" rel="noopener">Open export</a></div>`
	}
	NewHTMXResponse().
		TriggerSuccessNotification("Export complete").
		BodyHTML(body).
		Write(w)
}

// rowJSON is a table row with its resolved instant.
type rowJSON struct {
	core.Transaction
	At time.Time `json:"at"`
}

type accountViewJSON struct {
	Account    core.Account    `json:"account"`
	State      view.TableState `json:"state"`
	Page       int             `json:"page"`
	TotalPages int             `json:"totalPages"`
	TotalItems int             `json:"totalItems"`
	Items      []rowJSON       `json:"items"`
	Selection  []string        `json:"selection"`
	Chart      view.Chart      `json:"chart"`
	Dropped    int             `json:"dropped"`
}

// handleAccountViewJSON derives a view from the stored state and the query
// without storing the result. Unknown parameter values are rejected.
func (s *Server) handleAccountViewJSON(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	av, err := s.deriveAccount(r, func(st *view.TableState) error {
		return ApplyTableQuery(st, q, true)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := accountViewJSON{
		Account:    av.Account,
		State:      av.State,
		Page:       av.Table.Number,
		TotalPages: av.Table.TotalPages,
		TotalItems: av.Table.TotalItems,
		Items:      make([]rowJSON, 0, len(av.Table.Items)),
		Selection:  av.State.Selection.IDs(),
		Chart:      av.Chart,
		Dropped:    av.Dropped,
	}
	for _, row := range av.Table.Items {
		out.Items = append(out.Items, rowJSON{Transaction: row.Transaction, At: row.At})
	}
	if out.Selection == nil {
		out.Selection = []string{}
	}
	writeJSON(w, http.StatusOK, out)
}
