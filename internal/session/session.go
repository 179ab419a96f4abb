// Package session keeps signed-in users and their per-account table state.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"finboard/internal/api"
	"finboard/internal/cache"
	"finboard/internal/log"
	"finboard/internal/view"
)

const CookieName = "finboard_session"

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID        string
	Profile   api.Profile
	CreatedAt time.Time
	tables    map[string]view.TableState
}

// Table returns the state for accountID, or the defaults when the account
// has never been viewed in this session.
func (s *Session) Table(accountID string) view.TableState {
	if st, ok := s.tables[accountID]; ok {
		return st.Clone()
	}
	return view.DefaultTableState()
}

// HasTable reports whether accountID has been opened in this session.
func (s *Session) HasTable(accountID string) bool {
	_, ok := s.tables[accountID]
	return ok
}

func (s *Session) clone() *Session {
	c := *s
	c.tables = make(map[string]view.TableState, len(s.tables))
	for k, v := range s.tables {
		c.tables[k] = v.Clone()
	}
	return &c
}

// Store is the session port used by the HTTP layer.
type Store interface {
	Create(ctx context.Context, profile api.Profile) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	// UpdateTable applies fn to the stored state of accountID, starting
	// from init when the account has no state yet, and stores the result.
	// Updates of one session never interleave. Nothing is stored when fn
	// fails.
	UpdateTable(ctx context.Context, id, accountID string, init view.TableState, fn func(*view.TableState) error) (view.TableState, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps sessions in an LRU with a sliding TTL.
type MemoryStore struct {
	sessions *cache.LRUCache[*Session]
	logger   *log.Logger

	// mu serialises every write: TTL refreshes, table updates, deletes.
	mu sync.Mutex
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(sessions *cache.LRUCache[*Session], logger *log.Logger) *MemoryStore {
	if logger == nil {
		logger = log.Discard()
	}
	return &MemoryStore{sessions: sessions, logger: logger.WithComponent(log.ComponentSession)}
}

func (m *MemoryStore) Create(ctx context.Context, profile api.Profile) (*Session, error) {
	s := &Session{
		ID:        uuid.NewString(),
		Profile:   profile,
		CreatedAt: time.Now(),
		tables:    map[string]view.TableState{},
	}
	m.sessions.Set(s.ID, s)
	m.logger.InfoContext(ctx, "Session created", log.FieldUserID, profile.UserID)
	return s.clone(), nil
}

// Get returns a copy of the session and refreshes its TTL.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	m.sessions.Set(id, s)
	return s.clone(), nil
}

func (m *MemoryStore) UpdateTable(_ context.Context, id, accountID string, init view.TableState, fn func(*view.TableState) error) (view.TableState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions.Get(id)
	if !ok {
		return view.TableState{}, ErrNotFound
	}
	st, err := applyTable(s, accountID, init, fn)
	if err != nil {
		return view.TableState{}, err
	}
	next := s.clone()
	next.tables[accountID] = st.Clone()
	m.sessions.Set(id, next)
	return st, nil
}

// applyTable runs fn on a copy of the state of accountID in s.
func applyTable(s *Session, accountID string, init view.TableState, fn func(*view.TableState) error) (view.TableState, error) {
	st := init.Clone()
	if cur, ok := s.tables[accountID]; ok {
		st = cur.Clone()
	}
	if fn != nil {
		if err := fn(&st); err != nil {
			return view.TableState{}, err
		}
	}
	return st, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	m.sessions.Delete(id)
	m.mu.Unlock()
	m.logger.DebugContext(ctx, "Session deleted")
	return nil
}

// SetCookie writes the session cookie.
func SetCookie(w http.ResponseWriter, id string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// IDFromRequest returns the session id carried by r, if any.
func IDFromRequest(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}

type ctxKey struct{}

func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok
}
