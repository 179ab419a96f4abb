package view

import (
	"sort"

	"github.com/shopspring/decimal"
)

const (
	bucketKeyLayout   = "2006-01-02"
	dayLabelLayout    = "Jan 02"
	monthLabelLayout  = "Jan 2006"
	dayLabelMaxWindow = 30
)

// Bucket holds one calendar day of chart data.
type Bucket struct {
	Key     string          `json:"key"`
	Label   string          `json:"label"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// Chart is the time series for an account chart plus window totals.
type Chart struct {
	Range        DateRange       `json:"range"`
	Buckets      []Bucket        `json:"buckets"`
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
	Net          decimal.Decimal `json:"net"`
	HasData      bool            `json:"hasData"`
}

// Aggregate groups rows per calendar day of their instant. Amounts are
// taken by magnitude; income-like rows feed Income and the rest Expense.
// Days without rows are not emitted. Labels use the day for bounded
// ranges up to a month and the month otherwise, while keys stay per day.
func Aggregate(rows []Row, r DateRange) Chart {
	layout := monthLabelLayout
	if r.Days > 0 && r.Days <= dayLabelMaxWindow {
		layout = dayLabelLayout
	}

	byKey := make(map[string]*Bucket)
	for _, row := range rows {
		key := row.At.Format(bucketKeyLayout)
		b, ok := byKey[key]
		if !ok {
			b = &Bucket{Key: key, Label: row.At.Format(layout)}
			byKey[key] = b
		}
		amount := row.Amount.Abs()
		if row.Type.IsIncomeLike() {
			b.Income = b.Income.Add(amount)
		} else {
			b.Expense = b.Expense.Add(amount)
		}
	}

	chart := Chart{
		Range:   r,
		Buckets: make([]Bucket, 0, len(byKey)),
	}
	for _, b := range byKey {
		b.Net = b.Income.Sub(b.Expense)
		chart.Buckets = append(chart.Buckets, *b)
		chart.TotalIncome = chart.TotalIncome.Add(b.Income)
		chart.TotalExpense = chart.TotalExpense.Add(b.Expense)
	}
	sort.Slice(chart.Buckets, func(i, j int) bool { return chart.Buckets[i].Key < chart.Buckets[j].Key })
	chart.Net = chart.TotalIncome.Sub(chart.TotalExpense)
	chart.HasData = len(chart.Buckets) > 0
	return chart
}

// MaxValue is the largest income or expense across buckets, used to scale
// bar heights. Zero when there is no data.
func (c Chart) MaxValue() decimal.Decimal {
	m := decimal.Zero
	for _, b := range c.Buckets {
		m = decimal.Max(m, b.Income, b.Expense)
	}
	return m
}
