package http

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"finboard/internal/api"
	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/middleware/security"
	"finboard/internal/middleware/trace"
	"finboard/internal/services"
	"finboard/internal/session"
	"finboard/internal/storage"
	"finboard/internal/view"
	appweb "finboard/web"
)

// Dashboard is the service the handlers drive.
type Dashboard interface {
	Now() time.Time
	Account(ctx context.Context, userID, accountID string, state view.TableState) (*services.AccountView, error)
	Home(ctx context.Context, rangeKey view.RangeKey) (*services.Home, error)
	Summary(ctx context.Context, rangeKey view.RangeKey) (view.Overview, error)
	Export(ctx context.Context, userID, accountID string, state view.TableState) (string, error)
	DeleteSelected(ctx context.Context, accountID string, ids []string) error
	CreateTransaction(ctx context.Context, tx core.NewTransaction) error
	UpdateTransaction(ctx context.Context, id string, tx core.NewTransaction) error
	GetTransaction(ctx context.Context, id string) (*core.Transaction, error)
	CreateAccount(ctx context.Context, acc core.NewAccount) error
	UpdateBudget(ctx context.Context, amount decimal.Decimal) (*view.BudgetStatus, error)

	ListViews(ctx context.Context, userID string) ([]storage.SavedView, error)
	SaveView(ctx context.Context, userID, name string, state view.TableState, isDefault bool) (*storage.SavedView, error)
	ApplyView(ctx context.Context, userID, viewID string, current view.TableState) (view.TableState, error)
	SetDefaultView(ctx context.Context, userID, viewID string) error
	DeleteView(ctx context.Context, userID, viewID string) error
	InitialState(ctx context.Context, userID string) view.TableState
}

// Authenticator exchanges credentials for an API token.
type Authenticator interface {
	SignIn(ctx context.Context, creds api.Credentials) (*api.Profile, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Options struct {
	Addr               string
	Dashboard          Dashboard
	Auth               Authenticator
	Sessions           session.Store
	SessionTTL         time.Duration
	CookieSecure       bool
	Currency           string
	RateLimitPerMinute int
	Checks             map[string]ReadinessCheck
	CacheStats         func() map[string]cache.Stats
	Logger             *log.Logger
}

type Server struct {
	http.Server
	templates *template.Template

	dash         Dashboard
	auth         Authenticator
	sessions     session.Store
	sessionTTL   time.Duration
	cookieSecure bool
	currency     string

	detector   *security.Detector
	limiter    *ratelimit.Limiter
	tracer     *trace.Middleware
	checks     map[string]ReadinessCheck
	cacheStats func() map[string]cache.Stats
	appMetrics appMetrics

	logger       *log.Logger
	shutdownOnce sync.Once
}

type appMetrics struct {
	started        time.Time
	signIns        atomic.Int64
	signInFailures atomic.Int64
	expired        atomic.Int64
	deleted        atomic.Int64
	exports        atomic.Int64
	renders        atomic.Int64
}

// NewServer configures routes and templates, returning a ready-to-run
// server.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 12 * time.Hour
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		dash:         opts.Dashboard,
		auth:         opts.Auth,
		sessions:     opts.Sessions,
		sessionTTL:   opts.SessionTTL,
		cookieSecure: opts.CookieSecure,
		currency:     opts.Currency,
		detector:     security.NewDetector(opts.Logger),
		checks:       opts.Checks,
		cacheStats:   opts.CacheStats,
		logger:       logger,
	}
	s.appMetrics.started = time.Now()
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, opts.Logger)
	if opts.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
			Logger:            opts.Logger,
		})
	}

	t, err := template.New("finboard").Funcs(templateFuncs(opts.Currency)).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	} else {
		s.templates = t
	}

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.PathPrefix("/static/").Handler(security.StaticAssetMiddleware(3600)(static)).Methods(http.MethodGet, http.MethodHead)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	r.HandleFunc("/sign-in", s.handleSignInPage).Methods(http.MethodGet)
	r.Handle("/sign-in", s.limit(http.HandlerFunc(s.handleSignIn))).Methods(http.MethodPost)
	r.HandleFunc("/sign-out", s.handleSignOut).Methods(http.MethodPost)

	app := r.NewRoute().Subrouter()
	app.Use(s.requireSession, security.NoStore)

	app.HandleFunc("/", s.handleHome).Methods(http.MethodGet)
	app.HandleFunc("/accounts/{id}", s.handleAccountPage).Methods(http.MethodGet)
	app.HandleFunc("/ui/accounts/{id}/table", s.handleTable).Methods(http.MethodGet)
	app.HandleFunc("/ui/accounts/{id}/chart", s.handleChart).Methods(http.MethodGet)
	app.HandleFunc("/ui/summary", s.handleSummary).Methods(http.MethodGet)

	app.HandleFunc("/api/views", s.handleListViews).Methods(http.MethodGet)
	app.HandleFunc("/api/accounts/{id}/view", s.handleAccountViewJSON).Methods(http.MethodGet)
	app.HandleFunc("/api/transactions/{txID}", s.handleGetTransaction).Methods(http.MethodGet)

	mutations := app.NewRoute().Subrouter()
	mutations.Use(s.limit)
	mutations.HandleFunc("/ui/accounts/{id}/select/{txID}", s.handleToggleSelect).Methods(http.MethodPost)
	mutations.HandleFunc("/ui/accounts/{id}/select-all", s.handleSelectAll).Methods(http.MethodPost)
	mutations.HandleFunc("/accounts/{id}/transactions/delete", s.handleDeleteSelected).Methods(http.MethodPost)
	mutations.HandleFunc("/accounts/{id}/export", s.handleExport).Methods(http.MethodPost)
	mutations.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	mutations.HandleFunc("/transactions/{txID}", s.handleUpdateTransaction).Methods(http.MethodPost)
	mutations.HandleFunc("/accounts", s.handleCreateAccount).Methods(http.MethodPost)
	mutations.HandleFunc("/budget", s.handleUpdateBudget).Methods(http.MethodPost)
	mutations.HandleFunc("/api/views", s.handleSaveView).Methods(http.MethodPost)
	mutations.HandleFunc("/api/views/{viewID}/default", s.handleSetDefaultView).Methods(http.MethodPost)
	mutations.HandleFunc("/api/views/{viewID}", s.handleDeleteView).Methods(http.MethodDelete)

	// Wrapped outside the router so unmatched paths are traced and
	// inspected too.
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	return s.detector.Middleware(s.tracer.Middleware(headers.Middleware(r)))
}

// limit applies the per-client rate limiter when one is configured.
func (s *Server) limit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		if isAPI(r) {
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please wait a moment.").
			TriggerErrorNotification("Too many requests").
			Write(w)
	})(next)
}

// requireSession loads the session named by the cookie and makes its
// token available to outgoing API calls. Requests without a live session
// go to the sign-in page.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, err := s.sessions.Get(ctx, session.IDFromRequest(r))
		if err != nil {
			s.redirectToSignIn(w, r)
			return
		}
		ctx = session.NewContext(ctx, sess)
		ctx = api.WithToken(ctx, sess.Profile.Token)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, sess.Profile.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) redirectToSignIn(w http.ResponseWriter, r *http.Request) {
	switch {
	case isAPI(r):
		writeJSONError(w, http.StatusUnauthorized, "not signed in")
	case isHTMX(r):
		NewHTMXResponse().Redirect("/sign-in").Write(w)
	default:
		http.Redirect(w, r, "/sign-in", http.StatusSeeOther)
	}
}

// Shutdown stops background work and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// reqLogger returns the request-scoped logger tagged for this package.
func (s *Server) reqLogger(r *http.Request) *log.Logger {
	return log.FromContext(r.Context()).WithComponent(log.ComponentHTTP)
}

// renderHTML executes a template into memory so that a failing template
// never leaves a half-written response.
func (s *Server) renderHTML(name string, data any) ([]byte, error) {
	if s.templates == nil {
		return nil, errTemplatesNotLoaded
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	s.appMetrics.renders.Add(1)
	return buf.Bytes(), nil
}

// render writes a full page or partial with status 200.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	s.respond(w, r, NewHTMXResponse(), name, data)
}

// respond renders name into b and writes it.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	body, err := s.renderHTML(name, data)
	if err != nil {
		s.reqLogger(r).ErrorContext(r.Context(), "Template execution failed",
			log.NewFields().WithOperation(log.OpRender).WithError(err, log.ErrorTypeInternal).ToSlice()...)
		InternalServerError("Error rendering page").Write(w)
		return
	}
	b.BodyHTML(string(body)).Write(w)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if isAPI(r) {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	NotFoundError("Page not found").Write(w)
}

func currentSession(r *http.Request) *session.Session {
	sess, _ := session.FromContext(r.Context())
	return sess
}
