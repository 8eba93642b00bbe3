package sqlite

import (
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS calls (
	id          TEXT PRIMARY KEY,
	caller_id   INTEGER NOT NULL,
	callee_id   INTEGER NOT NULL,
	chat_id     INTEGER,
	mode        TEXT NOT NULL,
	status      TEXT NOT NULL,
	created_at  DATETIME NOT NULL,
	accepted_at DATETIME,
	ended_at    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_calls_caller_status ON calls(caller_id, status);
CREATE INDEX IF NOT EXISTS idx_calls_callee_status ON calls(callee_id, status);
`

// ApplySchema creates the tables the store needs. It is idempotent.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
