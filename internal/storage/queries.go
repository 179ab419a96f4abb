package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// savedViewRow mirrors a saved_views row.
type savedViewRow struct {
	ID           string
	UserID       string
	Name         string
	FilterConfig string
	IsDefault    bool
	CreatedAt    string
	UpdatedAt    string
}

const savedViewColumns = `id, user_id, name, filter_config, is_default, created_at, updated_at`

func scanSavedView(row interface{ Scan(...any) error }) (savedViewRow, error) {
	var v savedViewRow
	err := row.Scan(&v.ID, &v.UserID, &v.Name, &v.FilterConfig, &v.IsDefault, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

const listSavedViews = `SELECT ` + savedViewColumns + `
FROM saved_views
WHERE user_id = ?
ORDER BY is_default DESC, name COLLATE NOCASE ASC`

func (q *Queries) ListSavedViews(ctx context.Context, userID string) ([]savedViewRow, error) {
	rows, err := q.db.QueryContext(ctx, listSavedViews, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []savedViewRow
	for rows.Next() {
		v, err := scanSavedView(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

const getSavedView = `SELECT ` + savedViewColumns + `
FROM saved_views
WHERE user_id = ? AND id = ?`

func (q *Queries) GetSavedView(ctx context.Context, userID, id string) (savedViewRow, error) {
	return scanSavedView(q.db.QueryRowContext(ctx, getSavedView, userID, id))
}

const getDefaultSavedView = `SELECT ` + savedViewColumns + `
FROM saved_views
WHERE user_id = ? AND is_default = 1`

func (q *Queries) GetDefaultSavedView(ctx context.Context, userID string) (savedViewRow, error) {
	return scanSavedView(q.db.QueryRowContext(ctx, getDefaultSavedView, userID))
}

// upsertSavedView keeps the id of an existing view with the same name.
const upsertSavedView = `INSERT INTO saved_views (` + savedViewColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, name) DO UPDATE SET
    filter_config = excluded.filter_config,
    is_default = excluded.is_default,
    updated_at = excluded.updated_at
RETURNING ` + savedViewColumns

func (q *Queries) UpsertSavedView(ctx context.Context, v savedViewRow) (savedViewRow, error) {
	return scanSavedView(q.db.QueryRowContext(ctx, upsertSavedView,
		v.ID, v.UserID, v.Name, v.FilterConfig, v.IsDefault, v.CreatedAt, v.UpdatedAt))
}

const clearDefaultSavedViews = `UPDATE saved_views SET is_default = 0, updated_at = ?
WHERE user_id = ? AND is_default = 1 AND id != ?`

func (q *Queries) ClearDefaultSavedViews(ctx context.Context, userID, exceptID string, at time.Time) error {
	_, err := q.db.ExecContext(ctx, clearDefaultSavedViews, formatTime(at), userID, exceptID)
	return err
}

const markDefaultSavedView = `UPDATE saved_views SET is_default = 1, updated_at = ?
WHERE user_id = ? AND id = ?`

func (q *Queries) MarkDefaultSavedView(ctx context.Context, userID, id string, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, markDefaultSavedView, formatTime(at), userID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteSavedView = `DELETE FROM saved_views WHERE user_id = ? AND id = ?`

func (q *Queries) DeleteSavedView(ctx context.Context, userID, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteSavedView, userID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
