package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"finboard/internal/log"
	"finboard/internal/view"
)

var (
	ErrViewNotFound = errors.New("saved view not found")
	ErrInvalidView  = errors.New("invalid saved view")
)

// SavedView is a named table preset. Only the persisted part of the table
// state (filters, range, ordering) is stored.
type SavedView struct {
	ID        string          `json:"id"`
	UserID    string          `json:"-"`
	Name      string          `json:"name"`
	State     view.TableState `json:"state"`
	IsDefault bool            `json:"isDefault"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("Saved views store ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger,
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping backs the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListViews(ctx context.Context, userID string) ([]SavedView, error) {
	rows, err := r.queries.ListSavedViews(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list saved views: %w", err)
	}
	views := make([]SavedView, 0, len(rows))
	for _, row := range rows {
		v, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (r *SQLiteRepository) GetView(ctx context.Context, userID, id string) (*SavedView, error) {
	row, err := r.queries.GetSavedView(ctx, userID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrViewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get saved view: %w", err)
	}
	v, err := fromRow(row)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// DefaultView returns nil when the user has no default view.
func (r *SQLiteRepository) DefaultView(ctx context.Context, userID string) (*SavedView, error) {
	row, err := r.queries.GetDefaultSavedView(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get default view: %w", err)
	}
	v, err := fromRow(row)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// SaveView creates the view, or overwrites the user's view with the same
// name. Marking it default clears the previous default.
func (r *SQLiteRepository) SaveView(ctx context.Context, v SavedView) (*SavedView, error) {
	v.Name = strings.TrimSpace(v.Name)
	if v.UserID == "" || v.Name == "" {
		return nil, ErrInvalidView
	}
	config, err := json.Marshal(v.State.Normalize())
	if err != nil {
		return nil, fmt.Errorf("encode view state: %w", err)
	}

	now := r.now()
	var saved savedViewRow
	err = r.withTx(ctx, func(q *Queries) error {
		if v.IsDefault {
			if err := q.ClearDefaultSavedViews(ctx, v.UserID, "", now); err != nil {
				return fmt.Errorf("clear default views: %w", err)
			}
		}
		saved, err = q.UpsertSavedView(ctx, savedViewRow{
			ID:           uuid.NewString(),
			UserID:       v.UserID,
			Name:         v.Name,
			FilterConfig: string(config),
			IsDefault:    v.IsDefault,
			CreatedAt:    formatTime(now),
			UpdatedAt:    formatTime(now),
		})
		if err != nil {
			return fmt.Errorf("upsert saved view: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "Saved view stored",
		log.FieldViewID, saved.ID, log.FieldUserID, v.UserID, "default", saved.IsDefault)

	out, err := fromRow(saved)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetDefault makes id the user's only default view.
func (r *SQLiteRepository) SetDefault(ctx context.Context, userID, id string) error {
	now := r.now()
	return r.withTx(ctx, func(q *Queries) error {
		if err := q.ClearDefaultSavedViews(ctx, userID, id, now); err != nil {
			return fmt.Errorf("clear default views: %w", err)
		}
		n, err := q.MarkDefaultSavedView(ctx, userID, id, now)
		if err != nil {
			return fmt.Errorf("mark default view: %w", err)
		}
		if n == 0 {
			return ErrViewNotFound
		}
		return nil
	})
}

func (r *SQLiteRepository) DeleteView(ctx context.Context, userID, id string) error {
	n, err := r.queries.DeleteSavedView(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete saved view: %w", err)
	}
	if n == 0 {
		return ErrViewNotFound
	}
	r.logger.InfoContext(ctx, "Saved view deleted", log.FieldViewID, id, log.FieldUserID, userID)
	return nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func fromRow(row savedViewRow) (SavedView, error) {
	var state view.TableState
	if err := json.Unmarshal([]byte(row.FilterConfig), &state); err != nil {
		return SavedView{}, fmt.Errorf("decode view %s: %w", row.ID, err)
	}
	return SavedView{
		ID:        row.ID,
		UserID:    row.UserID,
		Name:      row.Name,
		State:     state.Normalize(),
		IsDefault: row.IsDefault,
		CreatedAt: parseTime(row.CreatedAt),
		UpdatedAt: parseTime(row.UpdatedAt),
	}, nil
}
