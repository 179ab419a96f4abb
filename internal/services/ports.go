package services

import (
	"context"

	"github.com/shopspring/decimal"

	"finboard/internal/amqp"
	"finboard/internal/core"
	"finboard/internal/storage"
)

// FinanceAPI is the subset of the remote API the dashboard uses.
type FinanceAPI interface {
	ListAccounts(ctx context.Context) ([]core.Account, error)
	GetAccount(ctx context.Context, id string) (*core.AccountDetails, error)
	AccountSummary(ctx context.Context, rangeKey string) ([]core.AccountSummary, error)
	CreateAccount(ctx context.Context, acc core.NewAccount) error
	GetBudget(ctx context.Context) (*core.Budget, error)
	UpdateBudget(ctx context.Context, amount decimal.Decimal) (*core.Budget, error)
	CreateTransaction(ctx context.Context, tx core.NewTransaction) error
	UpdateTransaction(ctx context.Context, id string, tx core.NewTransaction) error
	GetTransaction(ctx context.Context, id string) (*core.Transaction, error)
	DeleteTransactions(ctx context.Context, ids []string) error
}

// ChangePublisher announces transaction changes to other instances.
type ChangePublisher interface {
	PublishChange(ctx context.Context, msg *amqp.ChangeMessage) error
}

// ViewStore persists saved table presets.
type ViewStore interface {
	ListViews(ctx context.Context, userID string) ([]storage.SavedView, error)
	GetView(ctx context.Context, userID, id string) (*storage.SavedView, error)
	DefaultView(ctx context.Context, userID string) (*storage.SavedView, error)
	SaveView(ctx context.Context, v storage.SavedView) (*storage.SavedView, error)
	SetDefault(ctx context.Context, userID, id string) error
	DeleteView(ctx context.Context, userID, id string) error
}
