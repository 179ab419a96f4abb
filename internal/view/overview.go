package view

import (
	"github.com/shopspring/decimal"

	"finboard/internal/core"
)

const barNameMax = 12

var accountPalette = []string{
	"#2563eb", "#059669", "#d97706", "#dc2626", "#7c3aed",
	"#0891b2", "#65a30d", "#ea580c", "#db2777", "#4f46e5",
}

type Totals struct {
	Balance  decimal.Decimal `json:"balance"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
}

func (t Totals) NetFlow() decimal.Decimal { return t.Income.Sub(t.Expenses) }

// AccountBar compares income and expenses of one account.
type AccountBar struct {
	Name        string           `json:"name"`
	FullName    string           `json:"fullName"`
	AccountType core.AccountType `json:"accountType"`
	Income      decimal.Decimal  `json:"income"`
	Expenses    decimal.Decimal  `json:"expenses"`
	Balance     decimal.Decimal  `json:"balance"`
	NetFlow     decimal.Decimal  `json:"netFlow"`
	Color       string           `json:"color"`
}

// BalanceSlice is one account's share of the total balance.
type BalanceSlice struct {
	Name    string          `json:"name"`
	Value   decimal.Decimal `json:"value"`
	Balance decimal.Decimal `json:"balance"`
	Percent decimal.Decimal `json:"percent"`
	Color   string          `json:"color"`
}

type Overview struct {
	Range  DateRange      `json:"range"`
	Totals Totals         `json:"totals"`
	Bars   []AccountBar   `json:"bars"`
	Slices []BalanceSlice `json:"slices"`
}

func (o Overview) HasData() bool { return len(o.Bars) > 0 }

// SummarizeAccounts builds the cross-account summary chart. Slices skip
// zero balances and are expressed as a percentage of the absolute total
// balance (1 when the total is zero).
func SummarizeAccounts(summaries []core.AccountSummary, r DateRange) Overview {
	o := Overview{
		Range:  r,
		Bars:   make([]AccountBar, 0, len(summaries)),
		Slices: []BalanceSlice{},
	}
	for _, s := range summaries {
		o.Totals.Balance = o.Totals.Balance.Add(s.Balance)
		o.Totals.Income = o.Totals.Income.Add(s.Income)
		o.Totals.Expenses = o.Totals.Expenses.Add(s.Expenses)
	}

	for i, s := range summaries {
		o.Bars = append(o.Bars, AccountBar{
			Name:        truncateName(s.Name),
			FullName:    s.Name,
			AccountType: s.AccountType,
			Income:      s.Income,
			Expenses:    s.Expenses,
			Balance:     s.Balance,
			NetFlow:     s.Income.Sub(s.Expenses),
			Color:       accountPalette[i%len(accountPalette)],
		})
	}

	denom := o.Totals.Balance.Abs()
	if denom.IsZero() {
		denom = decimal.NewFromInt(1)
	}
	for _, s := range summaries {
		if s.Balance.IsZero() {
			continue
		}
		v := s.Balance.Abs()
		o.Slices = append(o.Slices, BalanceSlice{
			Name:    s.Name,
			Value:   v,
			Balance: s.Balance,
			Percent: v.Div(denom).Mul(decimal.NewFromInt(100)).Round(1),
			Color:   accountPalette[len(o.Slices)%len(accountPalette)],
		})
	}
	return o
}

func truncateName(name string) string {
	r := []rune(name)
	if len(r) <= barNameMax {
		return name
	}
	return string(r[:barNameMax]) + "..."
}

// BudgetStatus is the home page budget card.
type BudgetStatus struct {
	Budget    core.Budget
	Remaining decimal.Decimal
	Percent   decimal.Decimal
	Over      bool
	Set       bool
}

// BudgetProgress reports how much of the monthly budget has been spent.
// Percent is capped at 100 for the progress bar; Over carries the overrun.
func BudgetProgress(b core.Budget) BudgetStatus {
	st := BudgetStatus{
		Budget:    b,
		Remaining: b.InitialBudget.Sub(b.CurrentExpenses),
		Set:       b.InitialBudget.IsPositive(),
	}
	if !st.Set {
		return st
	}
	pct := b.CurrentExpenses.Div(b.InitialBudget).Mul(decimal.NewFromInt(100)).Round(1)
	st.Over = b.CurrentExpenses.GreaterThan(b.InitialBudget)
	st.Percent = decimal.Min(pct, decimal.NewFromInt(100))
	return st
}
