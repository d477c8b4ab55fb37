// Package audit mirrors relayed replies into a SQLite journal. The journal is
// write-only from the bridge's point of view: correlation state is never
// rebuilt from it.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sellerbridge/sellerbridge/pkg/correlation"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS history (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    token         TEXT NOT NULL,
    customer      TEXT NOT NULL DEFAULT '',
    original_text TEXT NOT NULL,
    reply_text    TEXT NOT NULL,
    replied_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_replied_at ON history(replied_at);
`

// Journal implements correlation.HistorySink.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record appends one history record.
func (j *Journal) Record(rec correlation.HistoryRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO history (token, customer, original_text, reply_text, replied_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.Token,
		rec.Customer,
		rec.Original,
		rec.Reply,
		rec.RepliedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (j *Journal) Recent(limit int) ([]correlation.HistoryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.Query(`
		SELECT token, customer, original_text, reply_text, replied_at
		FROM history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []correlation.HistoryRecord
	for rows.Next() {
		var rec correlation.HistoryRecord
		var repliedAt string
		if err := rows.Scan(&rec.Token, &rec.Customer, &rec.Original, &rec.Reply, &repliedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		rec.RepliedAt, _ = time.Parse(time.RFC3339Nano, repliedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the number of journaled records.
func (j *Journal) Count() (int, error) {
	var n int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}
