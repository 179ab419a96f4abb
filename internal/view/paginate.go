package view

// PageSize is the fixed number of rows per table page.
const PageSize = 10

// Page is one slice of the sorted table.
type Page struct {
	Items      []Row
	Number     int
	TotalPages int
	TotalItems int
}

// Paginate returns the requested page, clamping page into
// [1, TotalPages]. An empty input yields a single empty page.
func Paginate(rows []Row, page int) Page {
	n := len(rows)
	total := (n + PageSize - 1) / PageSize
	if total < 1 {
		total = 1
	}
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}

	start := (page - 1) * PageSize
	end := min(start+PageSize, n)
	items := make([]Row, end-start)
	copy(items, rows[start:end])

	return Page{Items: items, Number: page, TotalPages: total, TotalItems: n}
}

func (p Page) HasPrev() bool { return p.Number > 1 }
func (p Page) HasNext() bool { return p.Number < p.TotalPages }
func (p Page) Prev() int     { return max(p.Number-1, 1) }
func (p Page) Next() int     { return min(p.Number+1, p.TotalPages) }

// First and Last are the 1-based item positions shown on the page, both
// zero for an empty table.
func (p Page) First() int {
	if p.TotalItems == 0 {
		return 0
	}
	return (p.Number-1)*PageSize + 1
}

func (p Page) Last() int {
	if p.TotalItems == 0 {
		return 0
	}
	return p.First() + len(p.Items) - 1
}

// IDs returns the transaction ids on the page in display order.
func (p Page) IDs() []string {
	ids := make([]string, len(p.Items))
	for i, r := range p.Items {
		ids[i] = r.ID
	}
	return ids
}
