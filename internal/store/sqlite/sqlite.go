package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/nortonjulian/chatforia-signal/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Tests pass ":memory:" with ApplySchema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const callColumns = `id, caller_id, callee_id, chat_id, mode, status, created_at, accepted_at, ended_at`

// CreateCall persists a new call.
func (s *SQLiteStore) CreateCall(ctx context.Context, call *store.Call) error {
	query := `
		INSERT INTO calls (` + callColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		call.ID,
		call.CallerID,
		call.CalleeID,
		call.ChatID,
		string(call.Mode),
		string(call.Status),
		call.CreatedAt.UTC(),
		nullableTime(call.AcceptedAt),
		nullableTime(call.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

// GetCall retrieves a call by ID.
func (s *SQLiteStore) GetCall(ctx context.Context, id string) (*store.Call, error) {
	query := `SELECT ` + callColumns + ` FROM calls WHERE id = ?`

	call, err := scanCall(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get call %s: %w", id, store.ErrCallNotFound)
		}
		return nil, fmt.Errorf("query call: %w", err)
	}
	return call, nil
}

// UpdateCallStatus writes the new status and timestamps guarded by the previous status.
func (s *SQLiteStore) UpdateCallStatus(ctx context.Context, call *store.Call, from store.CallStatus) error {
	query := `
		UPDATE calls
		SET status = ?, accepted_at = ?, ended_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		string(call.Status),
		nullableTime(call.AcceptedAt),
		nullableTime(call.EndedAt),
		call.ID,
		string(from),
	)
	if err != nil {
		return fmt.Errorf("update call: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update call %s from %s: %w", call.ID, from, store.ErrStaleCall)
	}
	return nil
}

// ListActiveCalls lists INITIATED or ANSWERED calls for a user, newest first.
func (s *SQLiteStore) ListActiveCalls(ctx context.Context, userID int64) ([]*store.Call, error) {
	query := `
		SELECT ` + callColumns + `
		FROM calls
		WHERE (caller_id = ? OR callee_id = ?) AND status IN ('INITIATED', 'ANSWERED')
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query active calls: %w", err)
	}
	defer rows.Close()

	var calls []*store.Call
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		calls = append(calls, call)
	}

	return calls, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (*store.Call, error) {
	var call store.Call
	var mode, status string
	var chatID sql.NullInt64
	var acceptedAt, endedAt sql.NullTime

	if err := row.Scan(
		&call.ID,
		&call.CallerID,
		&call.CalleeID,
		&chatID,
		&mode,
		&status,
		&call.CreatedAt,
		&acceptedAt,
		&endedAt,
	); err != nil {
		return nil, err
	}

	call.Mode = store.CallMode(mode)
	call.Status = store.CallStatus(status)
	if chatID.Valid {
		call.ChatID = &chatID.Int64
	}
	if acceptedAt.Valid {
		call.AcceptedAt = &acceptedAt.Time
	}
	if endedAt.Valid {
		call.EndedAt = &endedAt.Time
	}

	return &call, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
