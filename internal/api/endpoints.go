package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
)

type dataEnvelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

// Profile is the signed-in user returned by SignIn.
type Profile struct {
	Token  string `json:"token"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	UserID string `json:"userId"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) SignIn(ctx context.Context, creds Credentials) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodPost, "auth/sign-in", nil, creds, &p); err != nil {
		return nil, err
	}
	if p.Token == "" {
		return nil, fmt.Errorf("sign in: %w", ErrUnauthorized)
	}
	return &p, nil
}

func (c *Client) ListAccounts(ctx context.Context) ([]core.Account, error) {
	var env dataEnvelope[[]core.Account]
	if err := c.do(ctx, http.MethodGet, "accounts", nil, nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return []core.Account{}, nil
	}
	return env.Data, nil
}

// GetAccount returns the account and its full transaction list.
func (c *Client) GetAccount(ctx context.Context, id string) (*core.AccountDetails, error) {
	var details core.AccountDetails
	if err := c.do(ctx, http.MethodGet, "accounts/"+url.PathEscape(id), nil, nil, &details); err != nil {
		return nil, err
	}
	if details.ID == "" {
		details.ID = id
	}
	if details.Transactions == nil {
		details.Transactions = []core.Transaction{}
	}
	return &details, nil
}

func (c *Client) AccountSummary(ctx context.Context, rangeKey string) ([]core.AccountSummary, error) {
	var env dataEnvelope[[]core.AccountSummary]
	q := url.Values{"dateRange": {rangeKey}}
	if err := c.do(ctx, http.MethodGet, "accounts/summary", q, nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return []core.AccountSummary{}, nil
	}
	return env.Data, nil
}

func (c *Client) CreateAccount(ctx context.Context, acc core.NewAccount) error {
	return c.do(ctx, http.MethodPost, "accounts/create", nil, acc, nil)
}

// GetBudget returns nil when the user has no default account budget.
func (c *Client) GetBudget(ctx context.Context) (*core.Budget, error) {
	var b *core.Budget
	if err := c.do(ctx, http.MethodGet, "budget", nil, nil, &b); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *Client) UpdateBudget(ctx context.Context, amount decimal.Decimal) (*core.Budget, error) {
	var env dataEnvelope[*core.Budget]
	body := map[string]decimal.Decimal{"amount": amount}
	if err := c.do(ctx, http.MethodPatch, "budget", nil, body, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) CreateTransaction(ctx context.Context, tx core.NewTransaction) error {
	return c.do(ctx, http.MethodPost, "transactions", nil, tx, nil)
}

func (c *Client) UpdateTransaction(ctx context.Context, id string, tx core.NewTransaction) error {
	return c.do(ctx, http.MethodPatch, "transactions/"+url.PathEscape(id), nil, tx, nil)
}

func (c *Client) GetTransaction(ctx context.Context, id string) (*core.Transaction, error) {
	var env dataEnvelope[*core.Transaction]
	if err := c.do(ctx, http.MethodGet, "transactions/"+url.PathEscape(id), nil, nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return env.Data, nil
}

// DeleteTransactions removes every id in one call.
func (c *Client) DeleteTransactions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodDelete, "transactions", nil, map[string][]string{"ids": ids}, nil)
}
