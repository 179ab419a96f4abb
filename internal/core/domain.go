package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
	Credit  TransactionType = "CREDIT"
)

const (
	Daily   RecurringInterval = "DAILY"
	Weekly  RecurringInterval = "WEEKLY"
	Monthly RecurringInterval = "MONTHLY"
	Yearly  RecurringInterval = "YEARLY"
)

const (
	Current AccountType = "CURRENT"
	Savings AccountType = "SAVINGS"
)

type (
	TransactionType   string
	RecurringInterval string
	AccountType       string

	// Transaction is a row as returned by the remote API. Date fields stay
	// textual because the API mixes ISO timestamps with looser formats.
	Transaction struct {
		ID                string            `json:"id"`
		Type              TransactionType   `json:"transactionType"`
		Amount            decimal.Decimal   `json:"amount"`
		Description       string            `json:"description"`
		Date              string            `json:"date"`
		Category          string            `json:"category"`
		ReceiptURL        string            `json:"receiptUrl,omitempty"`
		IsRecurring       bool              `json:"isRecurring"`
		RecurringInterval RecurringInterval `json:"recurringInterval,omitempty"`
		NextRecurringDate string            `json:"nextRecurringDate,omitempty"`
		LastProcessed     string            `json:"lastProcessed,omitempty"`
		Status            string            `json:"status,omitempty"`
		UserID            string            `json:"userId,omitempty"`
		AccountID         string            `json:"accountId"`
		CreatedAt         string            `json:"createdAt,omitempty"`
		UpdatedAt         string            `json:"updatedAt,omitempty"`
	}

	Account struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		AccountType AccountType     `json:"accountType"`
		Balance     decimal.Decimal `json:"balance"`
		IsDefault   bool            `json:"isDefault"`
		UserID      string          `json:"userId,omitempty"`
		CreatedAt   string          `json:"createdAt,omitempty"`
		UpdatedAt   string          `json:"updatedAt,omitempty"`
		Count       struct {
			Transactions int `json:"transactions"`
		} `json:"_count"`
	}

	// AccountDetails is an account together with its full transaction list.
	AccountDetails struct {
		Account
		Transactions []Transaction `json:"transactions"`
	}

	// AccountSummary carries per-account totals for a date range.
	AccountSummary struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		AccountType AccountType     `json:"accountType"`
		Balance     decimal.Decimal `json:"balance"`
		Income      decimal.Decimal `json:"income"`
		Expenses    decimal.Decimal `json:"expenses"`
	}

	Budget struct {
		AccountName     string          `json:"accountName"`
		InitialBudget   decimal.Decimal `json:"initialBudget"`
		CurrentExpenses decimal.Decimal `json:"currentExpenses"`
	}

	// NewTransaction is the create/update payload.
	NewTransaction struct {
		Type              TransactionType   `json:"transactionType"`
		Amount            decimal.Decimal   `json:"amount"`
		Description       string            `json:"description,omitempty"`
		Date              time.Time         `json:"date"`
		AccountID         string            `json:"accountId"`
		Category          string            `json:"category"`
		ReceiptURL        string            `json:"receiptUrl,omitempty"`
		IsRecurring       bool              `json:"isRecurring"`
		RecurringInterval RecurringInterval `json:"recurringInterval,omitempty"`
		NextRecurringDate *time.Time        `json:"nextRecurringDate,omitempty"`
	}

	NewAccount struct {
		Name        string          `json:"name"`
		AccountType AccountType     `json:"accountType"`
		Balance     decimal.Decimal `json:"balance"`
		IsDefault   bool            `json:"isDefault"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrEmptyCategory      = errors.New("empty category")
	ErrEmptyAccount       = errors.New("empty account id")
	ErrMissingDate        = errors.New("missing date")
	ErrMissingInterval    = errors.New("recurring interval is required for recurring transactions")
	ErrInvalidInterval    = errors.New("invalid recurring interval")
	ErrEmptyName          = errors.New("empty account name")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrNegativeBalance    = errors.New("initial balance cannot be negative")
)

// IsIncomeLike reports whether the type counts towards income. The API is
// not consistent about casing, so the comparison ignores it.
func (t TransactionType) IsIncomeLike() bool {
	switch TransactionType(strings.ToUpper(string(t))) {
	case Income, Credit:
		return true
	}
	return false
}

func (i RecurringInterval) Valid() bool {
	switch i {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// Label returns the human name shown next to recurring rows.
func (i RecurringInterval) Label() string {
	switch i {
	case Daily:
		return "Daily"
	case Weekly:
		return "Weekly"
	case Monthly:
		return "Monthly"
	case Yearly:
		return "Yearly"
	}
	return ""
}

func (t NewTransaction) Validate() error {
	if t.Type != Income && t.Type != Expense {
		return ErrInvalidType
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return ErrEmptyAccount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.Date.IsZero() {
		return ErrMissingDate
	}
	if t.IsRecurring {
		if t.RecurringInterval == "" {
			return ErrMissingInterval
		}
		if !t.RecurringInterval.Valid() {
			return ErrInvalidInterval
		}
	}
	return nil
}

func (a NewAccount) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if a.AccountType != Current && a.AccountType != Savings {
		return ErrInvalidAccountType
	}
	if a.Balance.IsNegative() {
		return ErrNegativeBalance
	}
	return nil
}
