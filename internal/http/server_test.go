package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finboard/internal/api"
	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/services"
	"finboard/internal/session"
	"finboard/internal/sheets/memory"
	"finboard/internal/storage"
)

var testNow = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

type fakeFinanceAPI struct {
	mu      sync.Mutex
	account *core.AccountDetails
	getErr  error
	deleted []string
	created []core.NewTransaction
}

// newFakeFinanceAPI serves one account with 25 dated transactions, one per
// day back from testNow, plus one with an unreadable date.
func newFakeFinanceAPI() *fakeFinanceAPI {
	d := &core.AccountDetails{Account: core.Account{ID: "acc-1", Name: "Main", AccountType: core.Current, Balance: decimal.NewFromInt(1200)}}
	for i := 0; i < 25; i++ {
		tx := core.Transaction{
			ID:          fmt.Sprintf("tx-%02d", i),
			Type:        core.Expense,
			Amount:      decimal.NewFromInt(int64(10 + i)),
			Description: fmt.Sprintf("Item %02d", i),
			Date:        testNow.AddDate(0, 0, -i).Format("2006-01-02"),
			Category:    "Food",
			AccountID:   "acc-1",
		}
		if i%5 == 0 {
			tx.Type = core.Income
			tx.Category = "Salary"
		}
		d.Transactions = append(d.Transactions, tx)
	}
	d.Transactions = append(d.Transactions, core.Transaction{ID: "tx-bad", Type: core.Expense, Amount: decimal.NewFromInt(1), Date: "???", AccountID: "acc-1"})
	return &fakeFinanceAPI{account: d}
}

func (f *fakeFinanceAPI) ListAccounts(context.Context) ([]core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return []core.Account{f.account.Account}, nil
}

func (f *fakeFinanceAPI) GetAccount(_ context.Context, id string) (*core.AccountDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if id != f.account.ID {
		return nil, &api.Error{Status: http.StatusNotFound, Message: "account not found"}
	}
	cp := *f.account
	cp.Transactions = append([]core.Transaction(nil), f.account.Transactions...)
	return &cp, nil
}

func (f *fakeFinanceAPI) AccountSummary(context.Context, string) ([]core.AccountSummary, error) {
	return []core.AccountSummary{
		{ID: "acc-1", Name: "Main", AccountType: core.Current, Balance: decimal.NewFromInt(1200), Income: decimal.NewFromInt(500), Expenses: decimal.NewFromInt(300)},
		{ID: "acc-2", Name: "Savings", AccountType: core.Savings, Balance: decimal.NewFromInt(800)},
	}, nil
}

func (f *fakeFinanceAPI) CreateAccount(context.Context, core.NewAccount) error { return nil }

func (f *fakeFinanceAPI) GetBudget(context.Context) (*core.Budget, error) {
	return &core.Budget{AccountName: "Main", InitialBudget: decimal.NewFromInt(1000), CurrentExpenses: decimal.NewFromInt(250)}, nil
}

func (f *fakeFinanceAPI) UpdateBudget(_ context.Context, amount decimal.Decimal) (*core.Budget, error) {
	return &core.Budget{AccountName: "Main", InitialBudget: amount, CurrentExpenses: decimal.NewFromInt(250)}, nil
}

func (f *fakeFinanceAPI) CreateTransaction(_ context.Context, tx core.NewTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, tx)
	return nil
}

func (f *fakeFinanceAPI) UpdateTransaction(context.Context, string, core.NewTransaction) error {
	return nil
}

func (f *fakeFinanceAPI) GetTransaction(_ context.Context, id string) (*core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.account.Transactions {
		if tx.ID == id {
			cp := tx
			return &cp, nil
		}
	}
	return nil, &api.Error{Status: http.StatusNotFound, Message: "transaction not found"}
}

func (f *fakeFinanceAPI) DeleteTransactions(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ids...)
	kept := f.account.Transactions[:0:0]
	for _, tx := range f.account.Transactions {
		remove := false
		for _, id := range ids {
			if tx.ID == id {
				remove = true
				break
			}
		}
		if !remove {
			kept = append(kept, tx)
		}
	}
	f.account.Transactions = kept
	return nil
}

func (f *fakeFinanceAPI) setGetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

type fakeAuth struct{}

func (fakeAuth) SignIn(_ context.Context, c api.Credentials) (*api.Profile, error) {
	if c.Password != "secret" {
		return nil, &api.Error{Status: http.StatusUnauthorized, Message: "invalid credentials"}
	}
	return &api.Profile{Token: "tok-" + c.Email, Name: "Test User", Email: c.Email, UserID: "user-1"}, nil
}

type testEnv struct {
	srv *Server
	api *fakeFinanceAPI
}

func newTestEnv(t *testing.T, configure ...func(*Options, *services.Options)) *testEnv {
	t.Helper()
	env := &testEnv{api: newFakeFinanceAPI()}
	dashOpts := services.Options{
		API:      env.api,
		Location: time.UTC,
		Clock:    func() time.Time { return testNow },
	}
	opts := Options{
		Addr:     ":0",
		Auth:     fakeAuth{},
		Sessions: session.NewMemoryStore(cache.NewLRUCache[*session.Session](100, time.Hour), nil),
		Currency: "$",
	}
	for _, fn := range configure {
		fn(&opts, &dashOpts)
	}
	opts.Dashboard = services.NewDashboard(dashOpts)
	env.srv = NewServer(opts)
	t.Cleanup(func() { _ = env.srv.Shutdown(context.Background()) })
	return env
}

func withStorage(t *testing.T) func(*Options, *services.Options) {
	return func(_ *Options, d *services.Options) {
		repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "views.db"), nil)
		if err != nil {
			t.Fatalf("open storage: %v", err)
		}
		t.Cleanup(func() { _ = repo.Close() })
		d.Views = repo
	}
}

type reqOpt func(*http.Request)

func htmx(r *http.Request) { r.Header.Set("HX-Request", "true") }

func withCookie(c *http.Cookie) reqOpt {
	return func(r *http.Request) {
		if c != nil {
			r.AddCookie(c)
		}
	}
}

func (e *testEnv) do(method, target string, form url.Values, opts ...reqOpt) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, o := range opts {
		o(req)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) signIn(t *testing.T) *http.Cookie {
	t.Helper()
	rr := e.do(http.MethodPost, "/sign-in", url.Values{"email": {"me@example.com"}, "password": {"secret"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("sign in status=%d body=%s", rr.Code, rr.Body.String())
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == session.CookieName && c.Value != "" {
			return c
		}
	}
	t.Fatalf("sign in did not set a session cookie")
	return nil
}

func TestHealthEndpoints(t *testing.T) {
	failing := false
	env := newTestEnv(t, func(o *Options, _ *services.Options) {
		o.Checks = map[string]ReadinessCheck{
			"storage": func(context.Context) error {
				if failing {
					return errors.New("disk gone")
				}
				return nil
			},
		}
		o.CacheStats = func() map[string]cache.Stats {
			return map[string]cache.Stats{"snapshots": {Size: 2, Hits: 5}}
		}
	})

	if rr := env.do(http.MethodGet, "/healthz", nil); rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}

	rr := env.do(http.MethodGet, "/readyz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d body=%s", rr.Code, rr.Body.String())
	}

	failing = true
	rr = env.do(http.MethodGet, "/readyz", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing check status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "disk gone") {
		t.Errorf("readyz body missing failure: %s", rr.Body.String())
	}

	rr = env.do(http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	for _, want := range []string{"http_requests_total", `cache_hits_total{cache="snapshots"} 5`, "uptime_seconds"} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/", nil)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/sign-in" {
		t.Fatalf("GET / status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}

	rr = env.do(http.MethodGet, "/ui/accounts/acc-1/table", nil, htmx)
	if rr.Header().Get("HX-Redirect") != "/sign-in" {
		t.Fatalf("htmx request not redirected: status=%d", rr.Code)
	}

	rr = env.do(http.MethodGet, "/api/views", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("api status=%d, want 401", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("api Content-Type=%q", rr.Header().Get("Content-Type"))
	}
}

func TestSignIn(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/sign-in", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Sign in") {
		t.Fatalf("sign in page status=%d", rr.Code)
	}

	rr = env.do(http.MethodPost, "/sign-in", url.Values{"email": {"me@example.com"}, "password": {"wrong"}})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Invalid email or password") {
		t.Errorf("bad password body: %s", rr.Body.String())
	}

	rr = env.do(http.MethodPost, "/sign-in", url.Values{"email": {"me@example.com"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing password status=%d", rr.Code)
	}

	cookie := env.signIn(t)
	rr = env.do(http.MethodGet, "/", nil, withCookie(cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("home status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"Test User", "Main", "Accounts overview", "$ 250.00 of $ 1,000.00 spent"} {
		if !strings.Contains(body, want) {
			t.Errorf("home missing %q", want)
		}
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control=%q, want no-store", rr.Header().Get("Cache-Control"))
	}

	rr = env.do(http.MethodGet, "/sign-in", nil, withCookie(cookie))
	if rr.Code != http.StatusSeeOther {
		t.Errorf("signed-in user on sign-in page status=%d, want redirect", rr.Code)
	}

	rr = env.do(http.MethodPost, "/sign-out", nil, withCookie(cookie))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("sign out status=%d", rr.Code)
	}
	rr = env.do(http.MethodGet, "/", nil, withCookie(cookie))
	if rr.Code != http.StatusSeeOther {
		t.Errorf("after sign out status=%d, want redirect", rr.Code)
	}
}

func TestAccountTablePagination(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t)

	rr := env.do(http.MethodGet, "/accounts/acc-1", nil, withCookie(cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("account page status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"Page 1 of 3 (25 transactions)", "Item 00", "1 transactions with unreadable dates"} {
		if !strings.Contains(body, want) {
			t.Errorf("account page missing %q", want)
		}
	}

	rr = env.do(http.MethodGet, "/ui/accounts/acc-1/table?page=3", nil, withCookie(cookie), htmx)
	if !strings.Contains(rr.Body.String(), "Page 3 of 3") || !strings.Contains(rr.Body.String(), "Item 24") {
		t.Fatalf("page 3 not rendered: %s", rr.Body.String())
	}

	rr = env.do(http.MethodGet, "/ui/accounts/acc-1/table?page=99", nil, withCookie(cookie), htmx)
	if !strings.Contains(rr.Body.String(), "Page 3 of 3") {
		t.Errorf("out of range page not clamped")
	}

	rr = env.do(http.MethodGet, "/ui/accounts/acc-1/table?search=item+0&page=2", nil, withCookie(cookie), htmx)
	if !strings.Contains(rr.Body.String(), "Page 1 of 1 (10 transactions)") {
		t.Errorf("search did not reset to page 1: %s", rr.Body.String())
	}

	// state is kept in the session
	rr = env.do(http.MethodGet, "/accounts/acc-1", nil, withCookie(cookie))
	if !strings.Contains(rr.Body.String(), `value="item 0"`) {
		t.Errorf("search not restored from session")
	}

	rr = env.do(http.MethodGet, "/ui/accounts/acc-1/table?range=7D&clear=1", nil, withCookie(cookie), htmx)
	if !strings.Contains(rr.Body.String(), "Page 1 of 1 (8 transactions)") {
		t.Errorf("7D range not applied: %s", rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventTableRefresh) {
		t.Errorf("range change should refresh the chart, HX-Trigger=%q", rr.Header().Get("HX-Trigger"))
	}

	rr = env.do(http.MethodGet, "/ui/accounts/acc-1/chart", nil, withCookie(cookie), htmx)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "7 Days") {
		t.Errorf("chart status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `class="area income"`) {
		t.Errorf("chart should default to the area style: %s", rr.Body.String())
	}

	rr = env.do(http.MethodGet, "/ui/accounts/acc-1/chart?style=line", nil, withCookie(cookie), htmx)
	body = rr.Body.String()
	if !strings.Contains(body, `class="line-chart line"`) || strings.Contains(body, `class="area`) {
		t.Errorf("line style not applied: %s", body)
	}
	if !strings.Contains(body, `<option value="line" selected>`) {
		t.Errorf("line style not selected in the menu: %s", body)
	}

	rr = env.do(http.MethodGet, "/ui/accounts/acc-1/chart?style=pie", nil, withCookie(cookie), htmx)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `class="line-chart area"`) {
		t.Errorf("unknown style should fall back to area, status=%d", rr.Code)
	}

	rr = env.do(http.MethodGet, "/accounts/missing", nil, withCookie(cookie))
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown account status=%d, want 404", rr.Code)
	}
}

func TestSelectionAndBulkDelete(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t)

	rr := env.do(http.MethodPost, "/ui/accounts/acc-1/select/tx-00", nil, withCookie(cookie), htmx)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "1 selected") {
		t.Fatalf("toggle status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), `"count":1`) {
		t.Errorf("HX-Trigger=%q", rr.Header().Get("HX-Trigger"))
	}

	rr = env.do(http.MethodGet, "/ui/accounts/acc-1/table?page=2", nil, withCookie(cookie), htmx)
	if strings.Contains(rr.Body.String(), `class="bulk-bar"`) {
		t.Errorf("page change should clear the selection")
	}

	rr = env.do(http.MethodGet, "/ui/accounts/acc-1/table?page=1", nil, withCookie(cookie), htmx)
	if rr.Code != http.StatusOK {
		t.Fatalf("back to page 1 status=%d", rr.Code)
	}

	rr = env.do(http.MethodPost, "/ui/accounts/acc-1/select-all", nil, withCookie(cookie), htmx)
	if !strings.Contains(rr.Body.String(), "10 selected") {
		t.Fatalf("select all body=%s", rr.Body.String())
	}

	rr = env.do(http.MethodPost, "/accounts/acc-1/transactions/delete", nil, withCookie(cookie), htmx)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d body=%s", rr.Code, rr.Body.String())
	}
	if len(env.api.deleted) != 10 {
		t.Fatalf("deleted %d transactions, want 10", len(env.api.deleted))
	}
	trigger := rr.Header().Get("HX-Trigger")
	for _, want := range []string{EventTransactionsChanged, "Deleted 10 transactions", `"count":0`} {
		if !strings.Contains(trigger, want) {
			t.Errorf("HX-Trigger missing %q: %s", want, trigger)
		}
	}
	if !strings.Contains(rr.Body.String(), "Page 1 of 2 (15 transactions)") {
		t.Errorf("table not refreshed after delete: %s", rr.Body.String())
	}

	rr = env.do(http.MethodPost, "/accounts/acc-1/transactions/delete", nil, withCookie(cookie), htmx)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("delete with empty selection status=%d, want 422", rr.Code)
	}
}

// gatedStore holds the first n session reads until all of them have
// arrived, so the requests behind them run their updates concurrently.
type gatedStore struct {
	session.Store
	gate    sync.WaitGroup
	pending atomic.Int32
}

func (g *gatedStore) arm(n int) {
	g.gate.Add(n)
	g.pending.Store(int32(n))
}

func (g *gatedStore) Get(ctx context.Context, id string) (*session.Session, error) {
	s, err := g.Store.Get(ctx, id)
	if g.pending.Add(-1) >= 0 {
		g.gate.Done()
		g.gate.Wait()
	}
	return s, err
}

func TestConcurrentTogglesKeepBothSelections(t *testing.T) {
	store := &gatedStore{}
	env := newTestEnv(t, func(o *Options, _ *services.Options) {
		store.Store = o.Sessions
		o.Sessions = store
	})
	cookie := env.signIn(t)
	store.arm(2)

	var wg sync.WaitGroup
	for _, id := range []string{"tx-00", "tx-01"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			rr := env.do(http.MethodPost, "/ui/accounts/acc-1/select/"+id, nil, withCookie(cookie), htmx)
			if rr.Code != http.StatusOK {
				t.Errorf("toggle %s status=%d", id, rr.Code)
			}
		}(id)
	}
	wg.Wait()

	rr := env.do(http.MethodGet, "/ui/accounts/acc-1/table", nil, withCookie(cookie), htmx)
	body := rr.Body.String()
	if !strings.Contains(body, "2 selected") {
		t.Fatalf("both toggles should be kept, body=%s", body)
	}
	for _, id := range []string{"tx-00", "tx-01"} {
		if !strings.Contains(body, `id="tx-`+id+`" class="selected"`) {
			t.Errorf("row %s not selected", id)
		}
	}
}

func TestAccountViewJSON(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t)

	rr := env.do(http.MethodGet, "/api/accounts/acc-1/view?sort=payee", nil, withCookie(cookie))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown sort status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"error"`) {
		t.Errorf("unknown sort body=%s", rr.Body.String())
	}

	rr = env.do(http.MethodGet, "/api/accounts/acc-1/view?range=7D&sort=amount&dir=asc", nil, withCookie(cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("view status=%d body=%s", rr.Code, rr.Body.String())
	}
	var got accountViewJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TotalItems != 8 || got.TotalPages != 1 || got.Page != 1 {
		t.Errorf("page info = %d items, %d pages, page %d", got.TotalItems, got.TotalPages, got.Page)
	}
	if len(got.Items) == 0 || got.Items[0].ID != "tx-00" {
		t.Errorf("first item = %+v, want tx-00 (smallest amount)", got.Items)
	}
	if got.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", got.Dropped)
	}

	// the JSON view does not store its state
	rr = env.do(http.MethodGet, "/ui/accounts/acc-1/table", nil, withCookie(cookie), htmx)
	if !strings.Contains(rr.Body.String(), "(25 transactions)") {
		t.Errorf("JSON view changed the stored state")
	}

	rr = env.do(http.MethodGet, "/api/transactions/tx-03", nil, withCookie(cookie))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Item 03") {
		t.Errorf("get transaction status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = env.do(http.MethodGet, "/api/transactions/nope", nil, withCookie(cookie))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing transaction status=%d", rr.Code)
	}
}

func TestSessionExpiryEndsSession(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t)
	env.api.setGetErr(&api.Error{Status: http.StatusUnauthorized, Code: api.CodeSessionExpired, Message: "expired"})

	rr := env.do(http.MethodGet, "/ui/accounts/acc-1/table", nil, withCookie(cookie), htmx)
	if rr.Header().Get("HX-Redirect") != "/sign-in" {
		t.Fatalf("expired token not redirected: status=%d headers=%v", rr.Code, rr.Header())
	}

	env.api.setGetErr(nil)
	rr = env.do(http.MethodGet, "/", nil, withCookie(cookie))
	if rr.Code != http.StatusSeeOther {
		t.Errorf("session still valid after expiry: status=%d", rr.Code)
	}
}

func TestCreateTransaction(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t)

	form := url.Values{
		"type":      {"EXPENSE"},
		"amount":    {"12.50"},
		"accountId": {"acc-1"},
		"date":      {"2024-03-19"},
	}
	rr := env.do(http.MethodPost, "/transactions", form, withCookie(cookie), htmx)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing category status=%d", rr.Code)
	}

	form.Set("category", "Food")
	rr = env.do(http.MethodPost, "/transactions", form, withCookie(cookie), htmx)
	if rr.Code != http.StatusOK {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	for _, want := range []string{EventFormReset, EventTransactionsChanged, `"type":"success"`} {
		if !strings.Contains(trigger, want) {
			t.Errorf("HX-Trigger missing %q: %s", want, trigger)
		}
	}
	if len(env.api.created) != 1 || env.api.created[0].Category != "Food" {
		t.Errorf("created = %+v", env.api.created)
	}

	rr = env.do(http.MethodPost, "/transactions", url.Values{"amount": {"1"}, "date": {"never"}}, withCookie(cookie), htmx)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad date status=%d, want 400", rr.Code)
	}
}

func TestUpdateBudget(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t)

	rr := env.do(http.MethodPost, "/budget", url.Values{"amount": {"abc"}}, withCookie(cookie), htmx)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad amount status=%d", rr.Code)
	}

	rr = env.do(http.MethodPost, "/budget", url.Values{"amount": {"500"}}, withCookie(cookie), htmx)
	if rr.Code != http.StatusOK {
		t.Fatalf("budget status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "$ 250.00 remaining") {
		t.Errorf("budget body=%s", rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventBudgetUpdated) {
		t.Errorf("HX-Trigger=%q", rr.Header().Get("HX-Trigger"))
	}
}

func TestSummaryCarousel(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t)

	tests := []struct {
		query string
		want  string
	}{
		{"chart=bar&move=next", `data-chart="pie"`},
		{"chart=bar&move=prev", `data-chart="composed"`},
		{"chart=pie&dx=-80&dy=5", `data-chart="composed"`},
		{"chart=pie&dx=20&dy=0", `data-chart="pie"`},
		{"chart=pie&dx=80&dy=120", `data-chart="pie"`},
		{"chart=unknown", `data-chart="bar"`},
	}
	for _, tt := range tests {
		rr := env.do(http.MethodGet, "/ui/summary?"+tt.query, nil, withCookie(cookie), htmx)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status=%d", tt.query, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), tt.want) {
			t.Errorf("%s: body missing %s", tt.query, tt.want)
		}
	}
}

func TestSavedViews(t *testing.T) {
	env := newTestEnv(t, withStorage(t))
	cookie := env.signIn(t)

	rr := env.do(http.MethodPost, "/api/views", url.Values{
		"accountId": {"acc-1"},
		"name":      {"Early items"},
		"search":    {"item 0"},
		"isDefault": {"true"},
	}, withCookie(cookie))
	if rr.Code != http.StatusCreated {
		t.Fatalf("save status=%d body=%s", rr.Code, rr.Body.String())
	}
	var saved storage.SavedView
	if err := json.Unmarshal(rr.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if saved.State.Search != "item 0" || !saved.IsDefault {
		t.Errorf("saved = %+v", saved)
	}

	rr = env.do(http.MethodGet, "/api/views", nil, withCookie(cookie))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Early items") {
		t.Fatalf("list status=%d body=%s", rr.Code, rr.Body.String())
	}

	// a fresh session opens the account with the default view applied
	fresh := env.signIn(t)
	rr = env.do(http.MethodGet, "/accounts/acc-1", nil, withCookie(fresh))
	if !strings.Contains(rr.Body.String(), "(10 transactions)") {
		t.Errorf("default view not applied: %s", rr.Body.String())
	}

	rr = env.do(http.MethodGet, "/ui/accounts/acc-1/table?clear=1", nil, withCookie(fresh), htmx)
	if !strings.Contains(rr.Body.String(), "(25 transactions)") {
		t.Fatalf("clear failed")
	}
	rr = env.do(http.MethodGet, "/ui/accounts/acc-1/table?view="+saved.ID, nil, withCookie(fresh), htmx)
	if !strings.Contains(rr.Body.String(), "(10 transactions)") {
		t.Errorf("applying a saved view failed: %s", rr.Body.String())
	}

	rr = env.do(http.MethodPost, "/api/views/"+saved.ID+"/default", nil, withCookie(cookie))
	if rr.Code != http.StatusNoContent {
		t.Errorf("set default status=%d", rr.Code)
	}
	rr = env.do(http.MethodDelete, "/api/views/"+saved.ID, nil, withCookie(cookie))
	if rr.Code != http.StatusNoContent {
		t.Errorf("delete status=%d", rr.Code)
	}
	rr = env.do(http.MethodDelete, "/api/views/"+saved.ID, nil, withCookie(cookie))
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete status=%d, want 404", rr.Code)
	}

	rr = env.do(http.MethodPost, "/api/views", url.Values{"name": {"bad"}, "range": {"2W"}}, withCookie(cookie))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad range status=%d, want 400", rr.Code)
	}
}

func TestSavedViewsNotConfigured(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t)

	rr := env.do(http.MethodPost, "/api/views", url.Values{"name": {"x"}}, withCookie(cookie))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("save status=%d, want 503", rr.Code)
	}
	rr = env.do(http.MethodGet, "/api/views", nil, withCookie(cookie))
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("list status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestExport(t *testing.T) {
	exporter := memory.New()
	env := newTestEnv(t, func(_ *Options, d *services.Options) { d.Exporter = exporter })
	cookie := env.signIn(t)

	rr := env.do(http.MethodPost, "/accounts/acc-1/export", nil, withCookie(cookie), htmx)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "mem:1") {
		t.Fatalf("export status=%d body=%s", rr.Code, rr.Body.String())
	}
	exports := exporter.Exports()
	if len(exports) != 1 {
		t.Fatalf("exports = %d, want 1", len(exports))
	}
	if len(exports[0].Cells) != 26 {
		t.Errorf("export rows = %d, want header plus 25", len(exports[0].Cells))
	}

	unconfigured := newTestEnv(t)
	c := unconfigured.signIn(t)
	rr = unconfigured.do(http.MethodPost, "/accounts/acc-1/export", nil, withCookie(c), htmx)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("export without exporter status=%d, want 503", rr.Code)
	}
}

func TestSignInRateLimited(t *testing.T) {
	env := newTestEnv(t, func(o *Options, _ *services.Options) { o.RateLimitPerMinute = 1 })

	form := url.Values{"email": {"me@example.com"}, "password": {"wrong"}}
	if rr := env.do(http.MethodPost, "/sign-in", form); rr.Code != http.StatusUnauthorized {
		t.Fatalf("first attempt status=%d", rr.Code)
	}
	rr := env.do(http.MethodPost, "/sign-in", form)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second attempt status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("Retry-After not set")
	}
}

func TestStaticAndProbes(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/static/app.css", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("static status=%d", rr.Code)
	}
	if rr.Header().Get("Cache-Control") != "public, max-age=3600" {
		t.Errorf("Cache-Control=%q", rr.Header().Get("Cache-Control"))
	}

	if rr := env.do(http.MethodGet, "/.env", nil); rr.Code != http.StatusNotFound {
		t.Errorf("probe status=%d, want 404", rr.Code)
	}

	rr = env.do(http.MethodGet, "/api/nope", nil)
	if rr.Code != http.StatusNotFound || rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("unknown api route status=%d type=%q", rr.Code, rr.Header().Get("Content-Type"))
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
}
