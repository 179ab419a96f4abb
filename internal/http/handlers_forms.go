package http

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"finboard/internal/core"
	"finboard/internal/log"
)

// formValues reads a form-encoded or JSON body into url.Values.
func formValues(r *http.Request) (url.Values, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return nil, fmt.Errorf("%w: body: %v", ErrBadParam, err)
	}
	return p.Values(), nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	form, err := formValues(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tx, err := ParseTransactionForm(form, s.dash.Now().Location())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.dash.CreateTransaction(r.Context(), tx); err != nil {
		s.fail(w, r, err)
		return
	}

	s.reqLogger(r).InfoContext(r.Context(), "Transaction created",
		log.FieldAccountID, tx.AccountID,
		"type", string(tx.Type),
		"category", tx.Category,
		"recurring", tx.IsRecurring)

	NewHTMXResponse().
		TriggerFormReset().
		TriggerTransactionsChanged(tx.AccountID).
		TriggerTableRefresh(tx.AccountID).
		TriggerSuccessNotification(fmt.Sprintf("Transaction saved: %s %s", tx.Category, core.FormatMoney(tx.Amount, s.currency))).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["txID"]
	form, err := formValues(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tx, err := ParseTransactionForm(form, s.dash.Now().Location())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.dash.UpdateTransaction(r.Context(), id, tx); err != nil {
		s.fail(w, r, err)
		return
	}

	s.reqLogger(r).InfoContext(r.Context(), "Transaction updated",
		log.FieldAccountID, tx.AccountID, "transaction_id", id)

	NewHTMXResponse().
		TriggerTransactionsChanged(tx.AccountID).
		TriggerTableRefresh(tx.AccountID).
		TriggerSuccessNotification("Transaction updated").
		Write(w)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	form, err := formValues(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	acc, err := ParseAccountForm(form)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.dash.CreateAccount(r.Context(), acc); err != nil {
		s.fail(w, r, err)
		return
	}

	NewHTMXResponse().
		TriggerFormReset().
		Trigger(EventAccountCreated, map[string]string{"name": acc.Name}).
		TriggerSuccessNotification("Account created: " + acc.Name).
		Write(w)
}

// handleUpdateBudget sets the monthly budget and re-renders the budget card.
func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	form, err := formValues(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := core.ParseAmount(form.Get("amount"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status, err := s.dash.UpdateBudget(r.Context(), amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	b := NewHTMXResponse().
		Trigger(EventBudgetUpdated, struct{}{}).
		TriggerSuccessNotification("Budget updated")
	s.respond(w, r, b, "budget", status)
}
