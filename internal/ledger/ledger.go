// Package ledger provides an append-only history of profile operations,
// backed by SQLite. It lets info mode show the last applied settings even
// after the active profile changed behind the tool's back.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Operation is the kind of recorded event.
type Operation string

const (
	OpApply  Operation = "apply"
	OpRemove Operation = "remove"
)

// Record is a single ledger entry.
type Record struct {
	ID          int64
	Operation   Operation
	DeviceID    string
	Gamma       string // "R:G:B" form
	Temperature int
	ProfilePath string
	Outcome     string // "ok" or a short failure reason
	Timestamp   time.Time
}

// Ledger wraps the SQLite connection.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database and its schema.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS operation_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			operation TEXT NOT NULL,
			device_id TEXT NOT NULL,
			gamma TEXT,
			temperature INTEGER,
			profile_path TEXT,
			outcome TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_device_ts ON operation_ledger(device_id, timestamp);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Append adds a record. The timestamp is set to now if zero.
func (l *Ledger) Append(rec Record) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := l.db.Exec(`
		INSERT INTO operation_ledger (operation, device_id, gamma, temperature, profile_path, outcome, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(rec.Operation), rec.DeviceID, rec.Gamma, rec.Temperature, rec.ProfilePath, rec.Outcome, ts.UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to append ledger record: %w", err)
	}
	return nil
}

// LastApply returns the most recent successful apply for a device, or nil if
// none is recorded.
func (l *Ledger) LastApply(deviceID string) (*Record, error) {
	row := l.db.QueryRow(`
		SELECT id, operation, device_id, gamma, temperature, profile_path, outcome, timestamp
		FROM operation_ledger
		WHERE device_id = ? AND operation = ? AND outcome = 'ok'
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`, deviceID, string(OpApply))

	var rec Record
	var op string
	var ts int64
	err := row.Scan(&rec.ID, &op, &rec.DeviceID, &rec.Gamma, &rec.Temperature, &rec.ProfilePath, &rec.Outcome, &ts)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	rec.Operation = Operation(op)
	rec.Timestamp = time.Unix(ts, 0).UTC()
	return &rec, nil
}

// History returns up to limit records for a device, newest first.
func (l *Ledger) History(deviceID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.Query(`
		SELECT id, operation, device_id, gamma, temperature, profile_path, outcome, timestamp
		FROM operation_ledger
		WHERE device_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var op string
		var ts int64
		if err := rows.Scan(&rec.ID, &op, &rec.DeviceID, &rec.Gamma, &rec.Temperature, &rec.ProfilePath, &rec.Outcome, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan ledger record: %w", err)
		}
		rec.Operation = Operation(op)
		rec.Timestamp = time.Unix(ts, 0).UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}
