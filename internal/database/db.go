package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/jgoulah/ecomane/pkg/models"
)

// fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// PollRecord is a stored poll. Snapshot is only loaded by GetPoll and
// LatestPoll.
type PollRecord struct {
	models.Poll
	Published bool `json:"published"`
	Readings  int  `json:"readings"`
}

// Reading is one stored snapshot value
type Reading struct {
	PollID string              `json:"poll_id"`
	Key    string              `json:"key"`
	Value  string              `json:"value"`
	Number decimal.NullDecimal `json:"number"`
	At     time.Time           `json:"at"`
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// sqlite allows a single writer
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS polls (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		circuit_count INTEGER NOT NULL,
		published INTEGER DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS readings (
		poll_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		value_num REAL,
		PRIMARY KEY (poll_id, key)
	);
	CREATE INDEX IF NOT EXISTS idx_polls_finished_at ON polls(finished_at);
	CREATE INDEX IF NOT EXISTS idx_polls_published ON polls(published);
	CREATE INDEX IF NOT EXISTS idx_readings_key ON readings(key);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// InsertPoll stores a poll and every value of its snapshot
func (db *DB) InsertPoll(poll *models.Poll) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
	INSERT INTO polls (id, started_at, finished_at, circuit_count)
	VALUES (?, ?, ?, ?)
	`, poll.ID, formatTime(poll.StartedAt), formatTime(poll.FinishedAt), poll.CircuitCount)
	if err != nil {
		return fmt.Errorf("inserting poll: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO readings (poll_id, key, value, value_num) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing reading insert: %w", err)
	}
	defer stmt.Close()

	for key, value := range poll.Snapshot {
		var num sql.NullFloat64
		if d, ok := models.ParseValue(value); ok {
			num = sql.NullFloat64{Float64: d.InexactFloat64(), Valid: true}
		}
		if _, err := stmt.Exec(poll.ID, key, value, num); err != nil {
			return fmt.Errorf("inserting reading %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing poll: %w", err)
	}
	return nil
}

// ListPolls returns the most recent polls, newest first, without snapshots
func (db *DB) ListPolls(limit int) ([]PollRecord, error) {
	query := `
	SELECT p.id, p.started_at, p.finished_at, p.circuit_count, p.published,
		(SELECT COUNT(*) FROM readings r WHERE r.poll_id = p.id)
	FROM polls p
	ORDER BY p.finished_at DESC
	LIMIT ?
	`

	rows, err := db.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying polls: %w", err)
	}
	defer rows.Close()

	var results []PollRecord
	for rows.Next() {
		rec, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *rec)
	}

	return results, rows.Err()
}

// GetPoll retrieves a poll with its snapshot. It returns nil if no poll has
// the given id.
func (db *DB) GetPoll(id string) (*PollRecord, error) {
	row := db.conn.QueryRow(`
	SELECT p.id, p.started_at, p.finished_at, p.circuit_count, p.published,
		(SELECT COUNT(*) FROM readings r WHERE r.poll_id = p.id)
	FROM polls p
	WHERE p.id = ?
	`, id)
	return db.loadPoll(row)
}

// LatestPoll retrieves the most recent poll with its snapshot, or nil if the
// database is empty
func (db *DB) LatestPoll() (*PollRecord, error) {
	row := db.conn.QueryRow(`
	SELECT p.id, p.started_at, p.finished_at, p.circuit_count, p.published,
		(SELECT COUNT(*) FROM readings r WHERE r.poll_id = p.id)
	FROM polls p
	ORDER BY p.finished_at DESC
	LIMIT 1
	`)
	return db.loadPoll(row)
}

func (db *DB) loadPoll(row *sql.Row) (*PollRecord, error) {
	rec, err := scanPoll(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(`SELECT key, value FROM readings WHERE poll_id = ?`, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	rec.Snapshot = models.Snapshot{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		rec.Snapshot[key] = value
	}

	return rec, rows.Err()
}

// History returns the stored values of one snapshot key, newest first
func (db *DB) History(key string, limit int) ([]Reading, error) {
	query := `
	SELECT r.poll_id, r.key, r.value, r.value_num, p.finished_at
	FROM readings r
	JOIN polls p ON p.id = r.poll_id
	WHERE r.key = ?
	ORDER BY p.finished_at DESC
	LIMIT ?
	`

	rows, err := db.conn.Query(query, key, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var results []Reading
	for rows.Next() {
		var r Reading
		var num sql.NullFloat64
		var at string
		if err := rows.Scan(&r.PollID, &r.Key, &r.Value, &num, &at); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if num.Valid {
			r.Number = decimal.NewNullDecimal(decimal.NewFromFloat(num.Float64))
		}
		r.At, err = time.Parse(timeLayout, at)
		if err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

// ListUnpublished returns polls not yet sent to Home Assistant, oldest first
func (db *DB) ListUnpublished() ([]PollRecord, error) {
	query := `
	SELECT p.id, p.started_at, p.finished_at, p.circuit_count, p.published,
		(SELECT COUNT(*) FROM readings r WHERE r.poll_id = p.id)
	FROM polls p
	WHERE p.published = 0
	ORDER BY p.finished_at ASC
	`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying unpublished polls: %w", err)
	}
	defer rows.Close()

	var results []PollRecord
	for rows.Next() {
		rec, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *rec)
	}

	return results, rows.Err()
}

// MarkPublished marks a poll as published
func (db *DB) MarkPublished(id string) error {
	query := `UPDATE polls SET published = 1 WHERE id = ?`
	_, err := db.conn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("marking poll as published: %w", err)
	}
	return nil
}

// Prune keeps the newest keep polls and deletes the rest along with their
// readings. keep <= 0 disables pruning. It returns the number of polls deleted.
func (db *DB) Prune(keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stale := `SELECT id FROM polls ORDER BY finished_at DESC LIMIT -1 OFFSET ?`
	if _, err := tx.Exec(`DELETE FROM readings WHERE poll_id IN (`+stale+`)`, keep); err != nil {
		return 0, fmt.Errorf("pruning readings: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM polls WHERE id IN (`+stale+`)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning polls: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned polls: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing prune: %w", err)
	}
	return deleted, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPoll(s scanner) (*PollRecord, error) {
	var rec PollRecord
	var started, finished string
	if err := s.Scan(&rec.ID, &started, &finished, &rec.CircuitCount, &rec.Published, &rec.Readings); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning poll: %w", err)
	}

	var err error
	rec.StartedAt, err = time.Parse(timeLayout, started)
	if err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	rec.FinishedAt, err = time.Parse(timeLayout, finished)
	if err != nil {
		return nil, fmt.Errorf("parsing finished_at: %w", err)
	}
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
