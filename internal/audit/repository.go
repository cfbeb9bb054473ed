package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/garage-core/internal/door"
)

// timestampLayout is fixed width so text ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one delivered command.
type Entry struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Username  string      `json:"username,omitempty"`
	Action    door.Action `json:"action"`
	Source    door.Source `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
}

// Repository stores execution log entries.
type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Entry, error)
}

// SQLiteRepository implements Repository on the execution_logs table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a repository backed by db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append inserts entry, filling ID and Timestamp when unset.
func (r *SQLiteRepository) Append(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = "log-" + uuid.NewString()[:8]
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.Timestamp = entry.Timestamp.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO execution_logs (id, user_id, action, source, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, string(entry.Action), string(entry.Source),
		entry.Timestamp.Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting execution log: %w", err)
	}
	return nil
}

// ListByUser returns userID's newest entries first, with Username resolved.
func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT l.id, l.user_id, COALESCE(u.username, ''), l.action, l.source, l.created_at
		 FROM execution_logs l
		 LEFT JOIN users u ON u.id = l.user_id
		 WHERE l.user_id = ?
		 ORDER BY l.created_at DESC, l.rowid DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying execution logs: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e              Entry
			action, source string
			createdAt      string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Username, &action, &source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning execution log: %w", err)
		}
		e.Action = door.Action(action)
		e.Source = door.Source(source)
		e.Timestamp, _ = time.Parse(timestampLayout, createdAt) //nolint:errcheck // written by us
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating execution logs: %w", err)
	}
	return entries, nil
}
