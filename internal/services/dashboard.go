package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/sheets"
	"finboard/internal/view"
)

var ErrNoExporter = errors.New("export is not configured")

// Dashboard fetches account snapshots through a shared cache and derives
// table and chart views from them.
type Dashboard struct {
	api       FinanceAPI
	snapshots cache.Cache[*core.AccountDetails]
	group     singleflight.Group
	publisher ChangePublisher
	exporter  sheets.ViewExporter
	views     ViewStore
	loc       *time.Location
	clock     func() time.Time
	logger    *log.Logger

	// gens counts invalidations per account. A fetch started under an
	// older generation is never cached.
	genMu sync.Mutex
	gens  map[string]uint64
}

type Options struct {
	API       FinanceAPI
	Snapshots cache.Cache[*core.AccountDetails]
	Publisher ChangePublisher
	Exporter  sheets.ViewExporter
	Views     ViewStore
	Location  *time.Location
	Clock     func() time.Time
	Logger    *log.Logger
}

func NewDashboard(opts Options) *Dashboard {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Snapshots == nil {
		opts.Snapshots = cache.NewLRUCache[*core.AccountDetails](100, time.Minute)
	}
	return &Dashboard{
		api:       opts.API,
		snapshots: opts.Snapshots,
		publisher: opts.Publisher,
		exporter:  opts.Exporter,
		views:     opts.Views,
		loc:       opts.Location,
		clock:     opts.Clock,
		logger:    opts.Logger.WithComponent(log.ComponentDashboard),
		gens:      make(map[string]uint64),
	}
}

// Now is the dashboard clock in the display time zone.
func (d *Dashboard) Now() time.Time { return d.clock().In(d.loc) }

func snapshotKey(userID, accountID string) string {
	return accountID + "|" + userID
}

func (d *Dashboard) generation(accountID string) uint64 {
	d.genMu.Lock()
	defer d.genMu.Unlock()
	return d.gens[accountID]
}

// Snapshot returns the account with its transactions. Concurrent misses
// for the same key and generation share one API call; a fetch that
// overlaps an invalidation is returned to its callers but not cached.
func (d *Dashboard) Snapshot(ctx context.Context, userID, accountID string) (*core.AccountDetails, bool, error) {
	key := snapshotKey(userID, accountID)
	if s, ok := d.snapshots.Get(key); ok {
		return s, true, nil
	}

	gen := d.generation(accountID)
	v, err, _ := d.group.Do(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		s, err := d.api.GetAccount(context.WithoutCancel(ctx), accountID)
		if err != nil {
			return nil, err
		}
		d.genMu.Lock()
		if d.gens[accountID] == gen {
			d.snapshots.Set(key, s)
		}
		d.genMu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("fetch account %s: %w", accountID, err)
	}
	return v.(*core.AccountDetails), false, nil
}

// AccountView is one rendered account page.
type AccountView struct {
	Account core.Account
	view.Dashboard
}

func (d *Dashboard) Account(ctx context.Context, userID, accountID string, state view.TableState) (*AccountView, error) {
	snap, hit, err := d.Snapshot(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	dash := view.Derive(snap.Transactions, state, d.Now())

	fields := log.NewFields().
		WithAccount(accountID).
		WithView(string(dash.State.Range), dash.Table.Number, len(dash.Rows), dash.Dropped)
	fields[log.FieldCacheHit] = hit
	fields[log.FieldSelection] = dash.State.Selection.Len()
	if dash.Dropped > 0 {
		d.logger.DebugContext(ctx, "Dropped transactions with unparseable dates", fields.ToSlice()...)
	}
	d.logger.DebugContext(ctx, "Derived account view", fields.ToSlice()...)

	return &AccountView{Account: snap.Account, Dashboard: dash}, nil
}

// Home is the landing page data.
type Home struct {
	Accounts []core.Account
	Overview view.Overview
	Budget   *view.BudgetStatus
}

// Home loads accounts, the range summary and the budget concurrently.
func (d *Dashboard) Home(ctx context.Context, rangeKey view.RangeKey) (*Home, error) {
	var (
		home      Home
		summaries []core.AccountSummary
		budget    *core.Budget
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		accounts, err := d.api.ListAccounts(gctx)
		if err != nil {
			return fmt.Errorf("list accounts: %w", err)
		}
		home.Accounts = accounts
		return nil
	})
	g.Go(func() error {
		s, err := d.api.AccountSummary(gctx, string(rangeKey))
		if err != nil {
			return fmt.Errorf("account summary: %w", err)
		}
		summaries = s
		return nil
	})
	g.Go(func() error {
		b, err := d.api.GetBudget(gctx)
		if err != nil {
			return fmt.Errorf("budget: %w", err)
		}
		budget = b
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	home.Overview = view.SummarizeAccounts(summaries, rangeKey.Range())
	if budget != nil {
		status := view.BudgetProgress(*budget)
		home.Budget = &status
	}
	return &home, nil
}

// Summary is the chart carousel data for one range.
func (d *Dashboard) Summary(ctx context.Context, rangeKey view.RangeKey) (view.Overview, error) {
	s, err := d.api.AccountSummary(ctx, string(rangeKey))
	if err != nil {
		return view.Overview{}, fmt.Errorf("account summary: %w", err)
	}
	return view.SummarizeAccounts(s, rangeKey.Range()), nil
}

// Export writes the whole filtered and sorted table, not only the page.
func (d *Dashboard) Export(ctx context.Context, userID, accountID string, state view.TableState) (string, error) {
	if d.exporter == nil {
		return "", ErrNoExporter
	}
	av, err := d.Account(ctx, userID, accountID, state)
	if err != nil {
		return "", err
	}
	now := d.Now()
	ref, err := d.exporter.Export(ctx, sheets.ExportRequest{
		Title:       fmt.Sprintf("%s %s", av.Account.Name, av.State.Range.Range().Label),
		AccountName: av.Account.Name,
		Rows:        av.Rows,
		GeneratedAt: now,
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "Export failed",
			log.NewFields().WithAccount(accountID).WithOperation(log.OpExport).WithError(err, log.ErrorTypeNetwork).ToSlice()...)
		return "", fmt.Errorf("export: %w", err)
	}
	d.logger.InfoContext(ctx, "Exported account view",
		log.FieldAccountID, accountID, log.FieldRows, len(av.Rows), "ref", ref)
	return ref, nil
}

// InvalidateAccount drops every cached snapshot of accountID and keeps
// fetches already in flight from caching what they read.
func (d *Dashboard) InvalidateAccount(accountID string) int {
	d.genMu.Lock()
	defer d.genMu.Unlock()
	d.gens[accountID]++
	return d.snapshots.DeletePrefix(accountID + "|")
}
