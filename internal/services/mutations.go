package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"finboard/internal/amqp"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/view"
)

var ErrEmptySelection = errors.New("no transactions selected")

// DeleteSelected bulk-deletes ids from accountID. Local snapshots are
// dropped right away; other instances learn about it through the publisher.
func (d *Dashboard) DeleteSelected(ctx context.Context, accountID string, ids []string) error {
	if len(ids) == 0 {
		return ErrEmptySelection
	}
	if err := d.api.DeleteTransactions(ctx, ids); err != nil {
		return fmt.Errorf("delete transactions: %w", err)
	}
	d.InvalidateAccount(accountID)
	d.logger.InfoContext(ctx, "Deleted transactions",
		log.FieldAccountID, accountID, log.FieldSelection, len(ids))
	d.publish(ctx, amqp.NewChangeMessage(accountID, amqp.OpDeleted, ids...))
	return nil
}

func (d *Dashboard) CreateTransaction(ctx context.Context, tx core.NewTransaction) error {
	tx = withNextOccurrence(tx)
	if err := tx.Validate(); err != nil {
		return err
	}
	if err := d.api.CreateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	d.InvalidateAccount(tx.AccountID)
	d.publish(ctx, amqp.NewChangeMessage(tx.AccountID, amqp.OpCreated))
	return nil
}

// UpdateTransaction invalidates the transaction's new account and, when the
// update moves it, the account it came from.
func (d *Dashboard) UpdateTransaction(ctx context.Context, id string, tx core.NewTransaction) error {
	tx = withNextOccurrence(tx)
	if err := tx.Validate(); err != nil {
		return err
	}
	accounts := []string{tx.AccountID}
	if prev, err := d.api.GetTransaction(ctx, id); err != nil {
		d.logger.WarnContext(ctx, "Failed to load transaction before update",
			log.NewFields().WithAccount(tx.AccountID).WithError(err, log.ErrorTypeNetwork).ToSlice()...)
	} else if prev.AccountID != "" && prev.AccountID != tx.AccountID {
		accounts = append(accounts, prev.AccountID)
	}
	if err := d.api.UpdateTransaction(ctx, id, tx); err != nil {
		return fmt.Errorf("update transaction %s: %w", id, err)
	}
	for _, accountID := range accounts {
		d.InvalidateAccount(accountID)
		d.publish(ctx, amqp.NewChangeMessage(accountID, amqp.OpUpdated, id))
	}
	return nil
}

func (d *Dashboard) GetTransaction(ctx context.Context, id string) (*core.Transaction, error) {
	return d.api.GetTransaction(ctx, id)
}

// withNextOccurrence fills the next recurring date from the interval when
// the form left it empty.
func withNextOccurrence(tx core.NewTransaction) core.NewTransaction {
	if !tx.IsRecurring {
		tx.RecurringInterval = ""
		tx.NextRecurringDate = nil
		return tx
	}
	if tx.NextRecurringDate == nil && !tx.Date.IsZero() {
		if next, err := core.NextOccurrence(tx.Date, tx.RecurringInterval); err == nil {
			tx.NextRecurringDate = &next
		}
	}
	return tx
}

func (d *Dashboard) CreateAccount(ctx context.Context, acc core.NewAccount) error {
	if err := acc.Validate(); err != nil {
		return err
	}
	if err := d.api.CreateAccount(ctx, acc); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	d.logger.InfoContext(ctx, "Account created", "name", acc.Name, "type", string(acc.AccountType))
	return nil
}

func (d *Dashboard) UpdateBudget(ctx context.Context, amount decimal.Decimal) (*view.BudgetStatus, error) {
	if !amount.IsPositive() {
		return nil, core.ErrInvalidAmount
	}
	b, err := d.api.UpdateBudget(ctx, amount)
	if err != nil {
		return nil, fmt.Errorf("update budget: %w", err)
	}
	if b == nil {
		return nil, nil
	}
	status := view.BudgetProgress(*b)
	return &status, nil
}

// HandleChange is the AMQP consumer callback.
func (d *Dashboard) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	n := d.InvalidateAccount(msg.AccountID)
	d.logger.DebugContext(ctx, "Invalidated snapshots from change message",
		log.FieldAccountID, msg.AccountID, log.FieldOperation, string(msg.Op), "removed", n)
	return nil
}

func (d *Dashboard) publish(ctx context.Context, msg *amqp.ChangeMessage) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.PublishChange(ctx, msg); err != nil {
		// the API call already succeeded; other instances catch up on TTL
		d.logger.WarnContext(ctx, "Failed to publish change message",
			log.FieldAccountID, msg.AccountID, log.FieldError, err)
	}
}
