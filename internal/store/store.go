package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoHistory is returned by callers that run without a history database
var ErrNoHistory = errors.New("history store not configured")

// Store keeps the batch and visit history
type Store struct {
	db *sql.DB
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// Concurrent batches write through one connection to avoid SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		size INTEGER NOT NULL,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL REFERENCES batches(id),
		seq INTEGER NOT NULL,
		device TEXT,
		referral TEXT,
		ip TEXT,
		error TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_batches_started_at ON batches(started_at);
	CREATE INDEX IF NOT EXISTS idx_visits_batch ON visits(batch_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateBatch records a newly started batch
func (s *Store) CreateBatch(ctx context.Context, b *Batch) error {
	if b.Status == "" {
		b.Status = StatusRunning
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (id, url, size, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, b.ID, b.URL, b.Size, b.Status, b.StartedAt.UTC())
	return err
}

// FinishBatch sets the final status of a batch
func (s *Store) FinishBatch(ctx context.Context, id, status, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE batches SET status = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, status, errMsg, time.Now().UTC(), id)
	return err
}

// RecordVisit appends a visit attempt to its batch
func (s *Store) RecordVisit(ctx context.Context, v *Visit) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO visits (batch_id, seq, device, referral, ip, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, v.BatchID, v.Seq, v.Device, v.Referral, v.IP, v.Error, v.StartedAt.UTC(), v.FinishedAt.UTC())
	return err
}

// RecentBatches returns the newest batches first, with their visit counts
func (s *Store) RecentBatches(ctx context.Context, limit int) ([]Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.url, b.size, b.status, b.error, b.started_at, b.finished_at,
			(SELECT COUNT(*) FROM visits v WHERE v.batch_id = b.id)
		FROM batches b
		ORDER BY b.started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		var finished sql.NullTime

		err := rows.Scan(&b.ID, &b.URL, &b.Size, &b.Status, &b.Error,
			&b.StartedAt, &finished, &b.Visits)
		if err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			b.FinishedAt = &t
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// Visits returns the visit attempts of one batch in order
func (s *Store) Visits(ctx context.Context, batchID string) ([]Visit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, seq, device, referral, ip, error, started_at, finished_at
		FROM visits
		WHERE batch_id = ?
		ORDER BY seq
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []Visit
	for rows.Next() {
		var v Visit
		if err := rows.Scan(&v.BatchID, &v.Seq, &v.Device, &v.Referral, &v.IP,
			&v.Error, &v.StartedAt, &v.FinishedAt); err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}
