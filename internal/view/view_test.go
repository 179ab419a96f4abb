package view

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finboard/internal/core"
)

var testNow = time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

func tx(id string, typ core.TransactionType, amount int64, date string) core.Transaction {
	return core.Transaction{
		ID:          id,
		Type:        typ,
		Amount:      decimal.NewFromInt(amount),
		Date:        date,
		Category:    "Other",
		Description: "tx " + id,
	}
}

func mustRows(t *testing.T, txs ...core.Transaction) []Row {
	t.Helper()
	rows, dropped := Prepare(txs, time.UTC)
	require.Zero(t, dropped)
	return rows
}

func ids(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestRangeWindow(t *testing.T) {
	w := Range7D.Window(testNow)
	assert.Equal(t, time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2024, 6, 15, 23, 59, 59, 999999999, time.UTC), w.End)

	all := RangeAll.Window(testNow)
	assert.Equal(t, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), all.Start)

	assert.True(t, w.Contains(w.Start))
	assert.True(t, w.Contains(w.End))
	assert.False(t, w.Contains(w.Start.Add(-time.Nanosecond)))
	assert.False(t, w.Contains(w.End.Add(time.Nanosecond)))
}

func TestParseRangeKey(t *testing.T) {
	k, err := ParseRangeKey("3M")
	require.NoError(t, err)
	assert.Equal(t, Range3M, k)
	assert.Equal(t, 90, k.Range().Days)

	k, err = ParseRangeKey("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRange, k)

	_, err = ParseRangeKey("2W")
	require.ErrorIs(t, err, ErrUnknownRange)

	assert.Panics(t, func() { RangeKey("2W").Window(testNow) })
}

func TestFilterSearchIsCaseInsensitive(t *testing.T) {
	a := tx("a", core.Expense, 5, "2024-06-14")
	a.Description = "Coffee shop"
	b := tx("b", core.Expense, 7, "2024-06-13")
	b.Description = "COFFEE BEAN"
	c := tx("c", core.Expense, 900, "2024-06-12")
	c.Description = "Rent"
	rows := mustRows(t, a, b, c)

	got := Filter(rows, Criteria{Window: Range1M.Window(testNow), Search: "coffee"})
	assert.Equal(t, []string{"a", "b"}, ids(got))
}

func TestFilterTypeAndRecurrence(t *testing.T) {
	income := tx("in", core.Income, 100, "2024-06-10")
	credit := tx("cr", core.Credit, 50, "2024-06-10")
	expense := tx("ex", core.Expense, 20, "2024-06-10")
	expense.IsRecurring = true
	expense.RecurringInterval = core.Monthly
	rows := mustRows(t, income, credit, expense)
	w := Range1M.Window(testNow)

	assert.Equal(t, []string{"in", "cr"}, ids(Filter(rows, Criteria{Window: w, Type: IncomeOnly})))
	assert.Equal(t, []string{"ex"}, ids(Filter(rows, Criteria{Window: w, Type: ExpenseOnly})))
	assert.Equal(t, []string{"ex"}, ids(Filter(rows, Criteria{Window: w, Recurrence: Recurring})))
	assert.Equal(t, []string{"in", "cr"}, ids(Filter(rows, Criteria{Window: w, Recurrence: NonRecurring})))
	assert.Equal(t, []string{"in", "cr"}, ids(Filter(rows, Criteria{Window: w, Recurrence: "anything-else"})))
}

func TestFilterWindowAndIdempotence(t *testing.T) {
	rows := mustRows(t,
		tx("old", core.Expense, 1, "2024-05-01"),
		tx("edge", core.Expense, 1, "2024-06-08T00:00:00Z"),
		tx("today", core.Expense, 1, "2024-06-15T23:59:00Z"),
		tx("future", core.Expense, 1, "2024-06-16T00:00:00Z"),
	)
	c := Criteria{Window: Range7D.Window(testNow)}
	once := Filter(rows, c)
	assert.Equal(t, []string{"edge", "today"}, ids(once))
	assert.Equal(t, once, Filter(once, c))
}

func TestFilterDoesNotAliasInput(t *testing.T) {
	rows := mustRows(t, tx("a", core.Expense, 1, "2024-06-10"), tx("b", core.Expense, 2, "2024-06-11"))
	out := Filter(rows, Criteria{Window: RangeAll.Window(testNow)})
	out[0].ID = "changed"
	assert.Equal(t, "a", rows[0].ID)
}

func TestUnparseableDateIsDropped(t *testing.T) {
	snapshot := []core.Transaction{
		tx("ok", core.Income, 10, "2024-06-14"),
		tx("bad", core.Income, 99, "not-a-date"),
	}
	d := Derive(snapshot, DefaultTableState(), testNow)
	assert.Equal(t, 1, d.Dropped)
	assert.Equal(t, []string{"ok"}, ids(d.Rows))
	require.Len(t, d.Chart.Buckets, 1)
	assert.True(t, d.Chart.TotalIncome.Equal(decimal.NewFromInt(10)))
}

func TestSortFields(t *testing.T) {
	a := tx("a", core.Expense, 30, "2024-06-03")
	a.Category = "banana"
	b := tx("b", core.Income, -5, "2024-06-01")
	b.Category = "Apple"
	c := tx("c", core.Expense, 10, "2024-06-02")
	c.Category = "cherry"
	rows := mustRows(t, a, b, c)

	assert.Equal(t, []string{"b", "c", "a"}, ids(Sort(rows, SortState{SortByDate, Asc})))
	assert.Equal(t, []string{"a", "c", "b"}, ids(Sort(rows, SortState{SortByDate, Desc})))
	assert.Equal(t, []string{"b", "c", "a"}, ids(Sort(rows, SortState{SortByAmount, Asc})))
	// collation ignores case: Apple < banana < cherry
	assert.Equal(t, []string{"b", "a", "c"}, ids(Sort(rows, SortState{SortByCategory, Asc})))
	assert.Equal(t, []string{"a", "b", "c"}, ids(rows), "input must not be reordered")
}

func TestSortIsStable(t *testing.T) {
	var txs []core.Transaction
	for i := 0; i < 20; i++ {
		txs = append(txs, tx(fmt.Sprintf("t%02d", i), core.Expense, int64(i%3), "2024-06-10"))
	}
	rows := mustRows(t, txs...)

	for _, dir := range []Direction{Asc, Desc} {
		sorted := Sort(rows, SortState{SortByAmount, dir})
		seen := map[string]string{}
		for _, r := range sorted {
			key := r.Amount.String()
			if prev, ok := seen[key]; ok {
				assert.Less(t, prev, r.ID, "duplicates must keep input order (%s)", dir)
			}
			seen[key] = r.ID
		}
		// all rows share a date, so date order is the input order
		assert.Equal(t, ids(rows), ids(Sort(rows, SortState{SortByDate, dir})))
	}
}

func TestSortToggle(t *testing.T) {
	s := DefaultSort
	s = s.Toggle(SortByDate)
	assert.Equal(t, SortState{SortByDate, Asc}, s)
	s = s.Toggle(SortByDate)
	assert.Equal(t, SortState{SortByDate, Desc}, s)
	s = s.Toggle(SortByAmount)
	assert.Equal(t, SortState{SortByAmount, Asc}, s)
}

func TestPaginateTwentyFiveRows(t *testing.T) {
	var txs []core.Transaction
	for i := 1; i <= 25; i++ {
		txs = append(txs, tx(fmt.Sprintf("%02d", i), core.Expense, int64(i), "2024-06-10"))
	}
	rows := mustRows(t, txs...)

	p1 := Paginate(rows, 1)
	assert.Equal(t, 3, p1.TotalPages)
	assert.Equal(t, 25, p1.TotalItems)
	assert.Equal(t, ids(rows[:10]), ids(p1.Items))
	assert.Equal(t, 1, p1.First())
	assert.Equal(t, 10, p1.Last())

	p3 := Paginate(rows, 3)
	assert.Equal(t, ids(rows[20:]), ids(p3.Items))
	assert.Equal(t, 21, p3.First())
	assert.Equal(t, 25, p3.Last())
	assert.False(t, p3.HasNext())

	assert.Equal(t, 3, Paginate(rows, 99).Number)
	assert.Equal(t, 1, Paginate(rows, -4).Number)

	var all []Row
	for n := 1; n <= p1.TotalPages; n++ {
		all = append(all, Paginate(rows, n).Items...)
	}
	assert.Equal(t, ids(rows), ids(all))
}

func TestPaginateEmpty(t *testing.T) {
	p := Paginate(nil, 3)
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, 1, p.TotalPages)
	assert.Empty(t, p.Items)
	assert.Zero(t, p.First())
	assert.Zero(t, p.Last())
}

func TestAggregateThreeDays(t *testing.T) {
	days := []string{"2024-06-10T09:00:00Z", "2024-06-12T18:00:00Z", "2024-06-14T07:00:00Z"}
	var txs []core.Transaction
	wantIncome := map[string]int64{}
	wantExpense := map[string]int64{}
	for i := 0; i < 12; i++ {
		amount := int64((i + 1) * 100)
		day := days[i%3]
		key := day[:10]
		typ := core.Income
		if i >= 8 {
			typ = core.Expense
			wantExpense[key] += amount
		} else {
			if i%2 == 1 {
				typ = core.Credit
			}
			wantIncome[key] += amount
		}
		txs = append(txs, tx(fmt.Sprint(i), typ, amount, day))
	}

	chart := Aggregate(mustRows(t, txs...), Range7D.Range())
	require.Len(t, chart.Buckets, 3)
	assert.True(t, chart.HasData)

	sumIncome, sumExpense := decimal.Zero, decimal.Zero
	for i, b := range chart.Buckets {
		assert.Equal(t, days[i][:10], b.Key)
		assert.True(t, b.Income.Equal(decimal.NewFromInt(wantIncome[b.Key])), "income %s", b.Key)
		assert.True(t, b.Expense.Equal(decimal.NewFromInt(wantExpense[b.Key])), "expense %s", b.Key)
		assert.True(t, b.Net.Equal(b.Income.Sub(b.Expense)))
		sumIncome = sumIncome.Add(b.Income)
		sumExpense = sumExpense.Add(b.Expense)
	}
	assert.Equal(t, "Jun 10", chart.Buckets[0].Label)
	assert.True(t, sumIncome.Equal(chart.TotalIncome))
	assert.True(t, sumExpense.Equal(chart.TotalExpense))
	assert.True(t, chart.Net.Equal(chart.TotalIncome.Sub(chart.TotalExpense)))
}

func TestChartPlot(t *testing.T) {
	chart := Chart{Buckets: []Bucket{
		{Key: "2024-06-10", Income: decimal.NewFromInt(100), Expense: decimal.NewFromInt(50)},
		{Key: "2024-06-11", Income: decimal.Zero, Expense: decimal.NewFromInt(200)},
		{Key: "2024-06-12", Income: decimal.NewFromInt(150), Expense: decimal.Zero},
	}}

	area := chart.Plot(AreaStyle)
	assert.Equal(t, AreaStyle, area.Style)
	assert.Equal(t, "0.0,100.0 300.0,200.0 600.0,50.0", area.Income.Line)
	assert.Equal(t, "0.0,150.0 300.0,0.0 600.0,200.0", area.Expense.Line)
	assert.Equal(t, "0.0,200.0 0.0,100.0 300.0,200.0 600.0,50.0 600.0,200.0", area.Income.Area)

	line := chart.Plot(LineStyle)
	assert.Equal(t, area.Income.Line, line.Income.Line)
	assert.Empty(t, line.Income.Area)
	assert.Empty(t, line.Expense.Area)

	single := Chart{Buckets: []Bucket{{Income: decimal.NewFromInt(5)}}}.Plot("")
	assert.Equal(t, AreaStyle, single.Style)
	assert.Equal(t, "300.0,0.0", single.Income.Line)
	assert.Equal(t, "300.0,200.0", single.Expense.Line)

	assert.Empty(t, Chart{}.Plot(LineStyle).Income.Line)
}

func TestParseChartStyle(t *testing.T) {
	for in, want := range map[string]ChartStyle{"": AreaStyle, "area": AreaStyle, " Line ": LineStyle} {
		got, err := ParseChartStyle(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseChartStyle("pie")
	assert.Error(t, err)
	assert.Equal(t, "Area", AreaStyle.Label())
	assert.Equal(t, "Line", LineStyle.Label())
}

func TestAggregateUsesMagnitudeAndMonthLabels(t *testing.T) {
	rows := mustRows(t,
		tx("a", core.Expense, -40, "2024-03-02"),
		tx("b", core.Expense, 10, "2024-03-05"),
		tx("c", "income", -15, "2024-03-05"),
	)
	chart := Aggregate(rows, Range6M.Range())
	require.Len(t, chart.Buckets, 2)
	assert.Equal(t, "Mar 2024", chart.Buckets[0].Label)
	assert.Equal(t, "Mar 2024", chart.Buckets[1].Label)
	assert.True(t, chart.Buckets[0].Expense.Equal(decimal.NewFromInt(40)))
	assert.True(t, chart.Buckets[1].Income.Equal(decimal.NewFromInt(15)))
	assert.True(t, chart.TotalExpense.Equal(decimal.NewFromInt(50)))
	assert.True(t, chart.MaxValue().Equal(decimal.NewFromInt(40)))
}

func TestAggregateEmpty(t *testing.T) {
	chart := Aggregate(nil, Range1M.Range())
	assert.False(t, chart.HasData)
	assert.Empty(t, chart.Buckets)
	assert.True(t, chart.TotalIncome.IsZero())
	assert.True(t, chart.TotalExpense.IsZero())
	assert.True(t, chart.Net.IsZero())
}

func TestSelection(t *testing.T) {
	page := []string{"a", "b", "c"}
	var s Selection
	s.Toggle("a")
	s.Toggle("b")
	s.Toggle("a")
	assert.Equal(t, []string{"b"}, s.IDs())

	s.SelectAllOnPage(page)
	assert.Equal(t, page, s.IDs())
	assert.True(t, s.AllSelected(page))

	s.SelectAllOnPage(page)
	assert.Zero(t, s.Len())
	assert.False(t, s.AllSelected(nil))

	s = NewSelection("a", "z", "a")
	s.Retain(page)
	assert.Equal(t, []string{"a"}, s.IDs())
}

func TestTableStateResets(t *testing.T) {
	s := DefaultTableState()
	s.GoToPage(3)
	s.Selection.Toggle("x")

	s.SetSearch("rent")
	assert.Equal(t, 1, s.Page)
	assert.Zero(t, s.Selection.Len())

	s.SetSearch("rent ")
	assert.Equal(t, "rent ", s.Search, "search term is kept as typed")

	s.GoToPage(2)
	s.Selection.Toggle("y")
	s.GoToPage(2)
	assert.Zero(t, s.Selection.Len(), "page change clears selection")

	for _, change := range []func(*TableState){
		func(s *TableState) { s.SetType(IncomeOnly) },
		func(s *TableState) { s.SetRecurrence(Recurring) },
		func(s *TableState) { s.SetRange(Range1Y) },
		func(s *TableState) { s.ToggleSort(SortByAmount) },
		func(s *TableState) { s.ClearFilters() },
		func(s *TableState) { s.SetSort(SortState{Field: SortByCategory, Direction: Desc}) },
	} {
		s.GoToPage(4)
		s.Selection.Toggle("z")
		change(&s)
		assert.Equal(t, 1, s.Page)
		assert.Zero(t, s.Selection.Len())
	}
}

func TestSetSortSameValueKeepsPage(t *testing.T) {
	s := DefaultTableState()
	s.GoToPage(3)
	s.SetSort(DefaultSort)
	assert.Equal(t, 3, s.Page)
}

func TestParseRecurrenceFilter(t *testing.T) {
	assert.Equal(t, Recurring, ParseRecurrenceFilter(" Recurring "))
	assert.Equal(t, NonRecurring, ParseRecurrenceFilter("non-recurring"))
	assert.Equal(t, AnyRecurrence, ParseRecurrenceFilter(""))
	assert.Equal(t, AnyRecurrence, ParseRecurrenceFilter("sometimes"))
}

func TestDeriveClampsPageAndSeparatesChart(t *testing.T) {
	var snapshot []core.Transaction
	for i := 0; i < 12; i++ {
		row := tx(fmt.Sprint(i), core.Expense, 10, "2024-06-14")
		if i == 0 {
			row.Description = "coffee"
		}
		snapshot = append(snapshot, row)
	}
	state := DefaultTableState()
	state.SetSearch("coffee")
	state.Page = 5
	state.Selection.Toggle("0")
	state.Selection.Toggle("7")

	d := Derive(snapshot, state, testNow)
	assert.Equal(t, 1, d.Table.Number)
	assert.Equal(t, 1, d.State.Page)
	assert.Equal(t, []string{"0"}, ids(d.Table.Items))
	// chart ignores search
	assert.True(t, d.Chart.TotalExpense.Equal(decimal.NewFromInt(120)))
	assert.Zero(t, d.State.Selection.Len(), "clamping the page clears the selection")
	assert.Equal(t, 2, state.Selection.Len(), "input state untouched")
}

func TestSummarizeAccounts(t *testing.T) {
	o := SummarizeAccounts([]core.AccountSummary{
		{Name: "Everyday Spending Account", Balance: decimal.NewFromInt(300), Income: decimal.NewFromInt(500), Expenses: decimal.NewFromInt(200)},
		{Name: "Empty", Balance: decimal.Zero, Income: decimal.Zero, Expenses: decimal.NewFromInt(10)},
		{Name: "Savings", Balance: decimal.NewFromInt(100)},
	}, Range1M.Range())

	require.Len(t, o.Bars, 3)
	assert.Equal(t, "Everyday Spe...", o.Bars[0].Name)
	assert.Equal(t, "Everyday Spending Account", o.Bars[0].FullName)
	assert.True(t, o.Bars[0].NetFlow.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, "#059669", o.Bars[1].Color)
	assert.True(t, o.Totals.Balance.Equal(decimal.NewFromInt(400)))
	assert.True(t, o.Totals.NetFlow().Equal(decimal.NewFromInt(290)))

	require.Len(t, o.Slices, 2)
	assert.Equal(t, "Savings", o.Slices[1].Name)
	assert.Equal(t, "#059669", o.Slices[1].Color)
	assert.True(t, o.Slices[0].Percent.Equal(decimal.NewFromInt(75)))
	assert.True(t, o.Slices[1].Percent.Equal(decimal.NewFromInt(25)))
}

func TestBudgetProgress(t *testing.T) {
	st := BudgetProgress(core.Budget{InitialBudget: decimal.NewFromInt(200), CurrentExpenses: decimal.NewFromInt(50)})
	assert.True(t, st.Set)
	assert.False(t, st.Over)
	assert.True(t, st.Percent.Equal(decimal.NewFromInt(25)))
	assert.True(t, st.Remaining.Equal(decimal.NewFromInt(150)))

	st = BudgetProgress(core.Budget{InitialBudget: decimal.NewFromInt(100), CurrentExpenses: decimal.NewFromInt(130)})
	assert.True(t, st.Over)
	assert.True(t, st.Percent.Equal(decimal.NewFromInt(100)))

	assert.False(t, BudgetProgress(core.Budget{}).Set)
}

func TestCarousel(t *testing.T) {
	c := NewCarousel()
	assert.Equal(t, PieChart, c.Next().Current)
	assert.Equal(t, ComposedChart, c.Prev().Current)
	assert.Equal(t, BarChart, c.Next().Next().Next().Current)

	assert.Equal(t, PieChart, c.Swipe(-80, 10).Current)
	assert.Equal(t, ComposedChart, c.Swipe(80, 10).Current)
	assert.Equal(t, BarChart, c.Swipe(50, 0).Current, "threshold is exclusive")
	assert.Equal(t, BarChart, c.Swipe(-60, 90).Current, "vertical moves are ignored")
}
