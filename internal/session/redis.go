package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/google/uuid"

	"finboard/internal/api"
	"finboard/internal/log"
	"finboard/internal/view"
)

const (
	redisKeyPrefix    = "finboard:session:"
	maxUpdateAttempts = 5
)

// RedisStore keeps sessions in Redis so several instances can share them.
// Every read refreshes the key's TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

var _ Store = (*RedisStore)(nil)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedisStore(opts RedisOptions, logger *log.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = log.Discard()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping().Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return &RedisStore{client: client, ttl: opts.TTL, logger: logger.WithComponent(log.ComponentSession)}, nil
}

// record is the stored form of a Session. Page and selection are kept
// next to the table state because TableState omits them from JSON.
type record struct {
	ID        string                 `json:"id"`
	Profile   api.Profile            `json:"profile"`
	CreatedAt time.Time              `json:"createdAt"`
	Tables    map[string]tableRecord `json:"tables"`
}

type tableRecord struct {
	State     view.TableState `json:"state"`
	Page      int             `json:"page"`
	Selection []string        `json:"selection,omitempty"`
}

func encodeSession(s *Session) ([]byte, error) {
	rec := record{ID: s.ID, Profile: s.Profile, CreatedAt: s.CreatedAt, Tables: make(map[string]tableRecord, len(s.tables))}
	for accountID, st := range s.tables {
		rec.Tables[accountID] = tableRecord{State: st, Page: st.Page, Selection: st.Selection.IDs()}
	}
	return json.Marshal(rec)
}

func decodeSession(data []byte) (*Session, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	s := &Session{ID: rec.ID, Profile: rec.Profile, CreatedAt: rec.CreatedAt, tables: make(map[string]view.TableState, len(rec.Tables))}
	for accountID, t := range rec.Tables {
		st := t.State
		st.Page = t.Page
		st.Selection = view.NewSelection(t.Selection...)
		s.tables[accountID] = st.Normalize()
	}
	return s, nil
}

func (r *RedisStore) put(ctx context.Context, s *Session) error {
	data, err := encodeSession(s)
	if err != nil {
		return err
	}
	if err := r.client.WithContext(ctx).Set(redisKeyPrefix+s.ID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (r *RedisStore) load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	data, err := r.client.WithContext(ctx).Get(redisKeyPrefix + id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return decodeSession(data)
}

func (r *RedisStore) Create(ctx context.Context, profile api.Profile) (*Session, error) {
	s := &Session{
		ID:        uuid.NewString(),
		Profile:   profile,
		CreatedAt: time.Now(),
		tables:    map[string]view.TableState{},
	}
	if err := r.put(ctx, s); err != nil {
		return nil, err
	}
	r.logger.InfoContext(ctx, "Session created", log.FieldUserID, profile.UserID)
	return s, nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	s, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.client.WithContext(ctx).Expire(redisKeyPrefix+id, r.ttl).Err(); err != nil {
		r.logger.WarnContext(ctx, "Failed to refresh session TTL", log.FieldError, err)
	}
	return s, nil
}

// UpdateTable runs the read-modify-write under WATCH and retries when
// another request changed the session in between.
func (r *RedisStore) UpdateTable(ctx context.Context, id, accountID string, init view.TableState, fn func(*view.TableState) error) (view.TableState, error) {
	if id == "" {
		return view.TableState{}, ErrNotFound
	}
	key := redisKeyPrefix + id
	client := r.client.WithContext(ctx)

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		var out view.TableState
		err := client.Watch(func(tx *redis.Tx) error {
			data, err := tx.Get(key).Bytes()
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("load session: %w", err)
			}
			s, err := decodeSession(data)
			if err != nil {
				return err
			}
			st, err := applyTable(s, accountID, init, fn)
			if err != nil {
				return err
			}
			s.tables[accountID] = st.Clone()
			enc, err := encodeSession(s)
			if err != nil {
				return err
			}
			_, err = tx.Pipelined(func(pipe redis.Pipeliner) error {
				pipe.Set(key, enc, r.ttl)
				return nil
			})
			out = st
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return view.TableState{}, err
		}
		return out, nil
	}
	return view.TableState{}, fmt.Errorf("update session table: %w", redis.TxFailedErr)
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.WithContext(ctx).Del(redisKeyPrefix + id).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	r.logger.DebugContext(ctx, "Session deleted")
	return nil
}

// Ping backs the readiness probe.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.WithContext(ctx).Ping().Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
