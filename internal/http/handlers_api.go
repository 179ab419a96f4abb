package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"finboard/internal/log"
	"finboard/internal/view"
)

// EventViewsChanged lets the saved views menu reload after a JSON call.
const EventViewsChanged = "views:changed"

// jsonResponse builds a JSON body on the HTMX builder so JSON endpoints
// can still fire HX-Trigger events.
func jsonResponse(status int, v any) *HTMXResponseBuilder {
	body, err := json.Marshal(v)
	if err != nil {
		return NewHTMXResponse().
			Status(http.StatusInternalServerError).
			Header("Content-Type", "application/json").
			Body([]byte(`{"error":"encoding failed"}`))
	}
	return NewHTMXResponse().
		Status(status).
		Header("Content-Type", "application/json").
		Body(body)
}

func (s *Server) handleListViews(w http.ResponseWriter, r *http.Request) {
	views, err := s.dash.ListViews(r.Context(), currentSession(r).Profile.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// handleSaveView stores the table state of accountId under name. Table
// controls in the body (search, type, range, sort...) are applied on top
// of the stored state before saving.
func (s *Server) handleSaveView(w http.ResponseWriter, r *http.Request) {
	form, err := formValues(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess := currentSession(r)

	state := view.DefaultTableState()
	if accountID := strings.TrimSpace(form.Get("accountId")); accountID != "" {
		state = s.tableState(r, sess, accountID)
	}
	if err := ApplyTableQuery(&state, form, true); err != nil {
		s.fail(w, r, err)
		return
	}

	saved, err := s.dash.SaveView(r.Context(), sess.Profile.UserID, sanitizeInput(form.Get("name")), state, parseBool(form.Get("isDefault")))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.reqLogger(r).InfoContext(r.Context(), "Saved view created", log.FieldViewID, saved.ID)
	jsonResponse(http.StatusCreated, saved).
		Trigger(EventViewsChanged, struct{}{}).
		TriggerSuccessNotification("View saved: " + saved.Name).
		Write(w)
}

func (s *Server) handleSetDefaultView(w http.ResponseWriter, r *http.Request) {
	viewID := mux.Vars(r)["viewID"]
	if err := s.dash.SetDefaultView(r.Context(), currentSession(r).Profile.UserID, viewID); err != nil {
		s.fail(w, r, err)
		return
	}
	NewHTMXResponse().
		Status(http.StatusNoContent).
		Trigger(EventViewsChanged, struct{}{}).
		Write(w)
}

func (s *Server) handleDeleteView(w http.ResponseWriter, r *http.Request) {
	viewID := mux.Vars(r)["viewID"]
	if err := s.dash.DeleteView(r.Context(), currentSession(r).Profile.UserID, viewID); err != nil {
		s.fail(w, r, err)
		return
	}
	NewHTMXResponse().
		Status(http.StatusNoContent).
		Trigger(EventViewsChanged, struct{}{}).
		Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.dash.GetTransaction(r.Context(), mux.Vars(r)["txID"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}
