package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/garage-core/internal/door"
)

const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Repository stores schedule definitions.
type Repository interface {
	Create(ctx context.Context, def *Definition) error
	GetByID(ctx context.Context, id string) (*Definition, error)
	ListEnabled(ctx context.Context) ([]Definition, error)
	ListByUser(ctx context.Context, userID string) ([]Definition, error)
	DeleteOwned(ctx context.Context, id, userID string) error
}

// SQLiteRepository implements Repository on the schedules table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a repository backed by db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `SELECT id, user_id, action, cron_expr, enabled, created_at FROM schedules`

// Create inserts def, filling ID and CreatedAt when unset.
func (r *SQLiteRepository) Create(ctx context.Context, def *Definition) error {
	if def.ID == "" {
		def.ID = "sch-" + uuid.NewString()[:8]
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = time.Now()
	}
	def.CreatedAt = def.CreatedAt.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO schedules (id, user_id, action, cron_expr, enabled, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		def.ID, def.UserID, string(def.Action), def.CronExpr, def.Enabled,
		def.CreatedAt.Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting schedule: %w", err)
	}
	return nil
}

// GetByID returns the schedule with id or ErrScheduleNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Definition, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	def, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying schedule: %w", err)
	}
	return def, nil
}

// ListEnabled returns every enabled schedule, oldest first.
func (r *SQLiteRepository) ListEnabled(ctx context.Context) ([]Definition, error) {
	return r.list(ctx, selectColumns+` WHERE enabled = 1 ORDER BY created_at, rowid`)
}

// ListByUser returns userID's schedules, newest first.
func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string) ([]Definition, error) {
	return r.list(ctx, selectColumns+` WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
}

// DeleteOwned removes id only when it belongs to userID.
func (r *SQLiteRepository) DeleteOwned(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}
	if n == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]Definition, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying schedules: %w", err)
	}
	defer rows.Close()

	defs := []Definition{}
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning schedule: %w", err)
		}
		defs = append(defs, *def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedules: %w", err)
	}
	return defs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDefinition(s scanner) (*Definition, error) {
	var (
		def       Definition
		action    string
		createdAt string
	)
	if err := s.Scan(&def.ID, &def.UserID, &action, &def.CronExpr, &def.Enabled, &createdAt); err != nil {
		return nil, err
	}
	def.Action = door.Action(action)
	def.CreatedAt, _ = time.Parse(timestampLayout, createdAt) //nolint:errcheck // written by us
	return &def, nil
}
