package scanlog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome values recorded per QR attempt. Expired and Invalid map to the
// same user-visible reply but stay distinct here for diagnostics.
const (
	OutcomeConfirmed = "CONFIRMED"
	OutcomeExpired   = "EXPIRED"
	OutcomeInvalid   = "INVALID"
	OutcomeFailed    = "FAILED"
)

type Entry struct {
	ScannedAt time.Time
	ChatID    int64
	UID       string
	Outcome   string
	Message   string
}

// Store keeps a per-attempt log of QR confirmations.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	createStmt := `CREATE TABLE IF NOT EXISTS qr_scans (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        scanned_at TEXT NOT NULL,
        chat_id INTEGER NOT NULL,
        uid TEXT NOT NULL,
        outcome TEXT NOT NULL,
        message TEXT
    )`
	_, err := s.db.Exec(createStmt)
	return err
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Record(entry Entry) error {
	ts := entry.ScannedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO qr_scans(scanned_at, chat_id, uid, outcome, message) VALUES(?, ?, ?, ?, ?)`,
		ts.UTC().Format(time.RFC3339), entry.ChatID, entry.UID, entry.Outcome, entry.Message,
	)
	return err
}

// Recent returns the newest entries, most recent first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT scanned_at, chat_id, uid, outcome, message FROM qr_scans ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry Entry
			ts    string
			msg   sql.NullString
		)
		if err := rows.Scan(&ts, &entry.ChatID, &entry.UID, &entry.Outcome, &msg); err != nil {
			return nil, err
		}
		entry.ScannedAt, _ = time.Parse(time.RFC3339, ts)
		if msg.Valid {
			entry.Message = msg.String
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountByOutcome summarizes attempts per outcome, used by the console
// status command.
func (s *Store) CountByOutcome() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT outcome, COUNT(*) FROM qr_scans GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		counts[outcome] = count
	}
	return counts, rows.Err()
}
