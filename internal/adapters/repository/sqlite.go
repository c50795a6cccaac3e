// Package repository stores glucose readings and activity samples in SQLite.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/okian/glucofeed/internal/domain/model"
	"github.com/okian/glucofeed/pkg/logger"
	"github.com/okian/glucofeed/pkg/metrics"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const (
	defaultMaxOpenConns  = 4
	defaultBusyTimeoutMS = 5000
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	id              TEXT PRIMARY KEY,
	timestamp       INTEGER NOT NULL,
	display_glucose REAL NOT NULL,
	slope           REAL NOT NULL,
	direction       TEXT NOT NULL,
	noise           INTEGER NOT NULL,
	filtered        REAL NOT NULL,
	raw             REAL NOT NULL,
	source          TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS readings_timestamp ON readings (timestamp DESC);

CREATE TABLE IF NOT EXISTS steps (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	count     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS heart (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	bpm       INTEGER NOT NULL,
	accuracy  INTEGER NOT NULL
);
`

// SQLiteStore keeps readings and activity samples in one SQLite file.
type SQLiteStore struct {
	db            *sql.DB
	path          string
	maxOpenConns  int
	busyTimeoutMS int
	logger        logger.Logger
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		path:          path,
		maxOpenConns:  defaultMaxOpenConns,
		busyTimeoutMS: defaultBusyTimeoutMS,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("repository")
	}

	dsn := path + "?_busy_timeout=" + strconv.Itoa(s.busyTimeoutMS)
	if path == MemoryPath {
		// every connection to :memory: is a separate database
		s.maxOpenConns = 1
	} else {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(s.maxOpenConns)
	if path == MemoryPath {
		db.SetConnMaxLifetime(0)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema to %s: %w", path, classify(err))
	}
	s.db = db

	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateStoreReadings(n)
		s.logger.Info(ctx, "readings store opened", logger.String("path", path), logger.Int("readings", n))
	}
	return s, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Latest returns up to n readings ordered newest first.
func (s *SQLiteStore) Latest(ctx context.Context, n int) ([]model.Reading, error) {
	const op = "latest"
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}
	defer observe(op, time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, display_glucose, slope, direction, noise, filtered, raw, source
		FROM readings ORDER BY timestamp DESC LIMIT ?`, n)
	if err != nil {
		metrics.RecordStoreError(op)
		return nil, fmt.Errorf("query latest readings: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	out := make([]model.Reading, 0, n)
	for rows.Next() {
		var (
			r     model.Reading
			noise int
		)
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.DisplayGlucose, &r.Slope, &r.Direction,
			&noise, &r.Filtered, &r.Raw, &r.Source); err != nil {
			metrics.RecordStoreError(op)
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.Noise = model.Noise(noise)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordStoreError(op)
		return nil, fmt.Errorf("iterate readings: %w", classify(err))
	}
	return out, nil
}

// Insert adds readings in one transaction, replacing rows with the same ID.
func (s *SQLiteStore) Insert(ctx context.Context, readings ...model.Reading) error {
	const op = "insert"
	if len(readings) == 0 {
		return nil
	}
	for i := range readings {
		if err := validateReading(&readings[i]); err != nil {
			return err
		}
	}
	defer observe(op, time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.RecordStoreError(op)
		return fmt.Errorf("begin insert: %w", classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO readings (id, timestamp, display_glucose, slope, direction, noise, filtered, raw, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timestamp = excluded.timestamp,
			display_glucose = excluded.display_glucose,
			slope = excluded.slope,
			direction = excluded.direction,
			noise = excluded.noise,
			filtered = excluded.filtered,
			raw = excluded.raw,
			source = excluded.source`)
	if err != nil {
		metrics.RecordStoreError(op)
		return fmt.Errorf("prepare insert: %w", classify(err))
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range readings {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Timestamp, r.DisplayGlucose, r.Slope, r.Direction,
			int(r.Noise), r.Filtered, r.Raw, r.Source); err != nil {
			metrics.RecordStoreError(op)
			return fmt.Errorf("insert reading %s: %w", r.ID, classify(err))
		}
	}
	if err := tx.Commit(); err != nil {
		metrics.RecordStoreError(op)
		return fmt.Errorf("commit insert: %w", classify(err))
	}

	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateStoreReadings(n)
	}
	return nil
}

// Count returns the number of stored readings.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM readings`).Scan(&n); err != nil {
		metrics.RecordStoreError("count")
		return 0, fmt.Errorf("count readings: %w", classify(err))
	}
	return n, nil
}

// RecordSteps appends a pedometer sample.
func (s *SQLiteStore) RecordSteps(ctx context.Context, st model.Steps) error {
	const op = "record_steps"
	defer observe(op, time.Now())
	if _, err := s.db.ExecContext(ctx, `INSERT INTO steps (timestamp, count) VALUES (?, ?)`,
		st.Timestamp, st.Count); err != nil {
		metrics.RecordStoreError(op)
		return fmt.Errorf("record steps: %w", classify(err))
	}
	return nil
}

// RecordHeart appends a heart-rate sample.
func (s *SQLiteStore) RecordHeart(ctx context.Context, h model.HeartRate) error {
	const op = "record_heart"
	defer observe(op, time.Now())
	if _, err := s.db.ExecContext(ctx, `INSERT INTO heart (timestamp, bpm, accuracy) VALUES (?, ?, ?)`,
		h.Timestamp, h.BPM, h.Accuracy); err != nil {
		metrics.RecordStoreError(op)
		return fmt.Errorf("record heart: %w", classify(err))
	}
	return nil
}

// LatestSteps returns the most recent pedometer sample.
func (s *SQLiteStore) LatestSteps(ctx context.Context) (model.Steps, error) {
	var st model.Steps
	err := s.db.QueryRowContext(ctx,
		`SELECT timestamp, count FROM steps ORDER BY timestamp DESC, id DESC LIMIT 1`).
		Scan(&st.Timestamp, &st.Count)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Steps{}, fmt.Errorf("steps: %w", ErrNotFound)
	}
	if err != nil {
		metrics.RecordStoreError("latest_steps")
		return model.Steps{}, fmt.Errorf("latest steps: %w", classify(err))
	}
	return st, nil
}

// LatestHeart returns the most recent heart-rate sample.
func (s *SQLiteStore) LatestHeart(ctx context.Context) (model.HeartRate, error) {
	var h model.HeartRate
	err := s.db.QueryRowContext(ctx,
		`SELECT timestamp, bpm, accuracy FROM heart ORDER BY timestamp DESC, id DESC LIMIT 1`).
		Scan(&h.Timestamp, &h.BPM, &h.Accuracy)
	if errors.Is(err, sql.ErrNoRows) {
		return model.HeartRate{}, fmt.Errorf("heart: %w", ErrNotFound)
	}
	if err != nil {
		metrics.RecordStoreError("latest_heart")
		return model.HeartRate{}, fmt.Errorf("latest heart: %w", classify(err))
	}
	return h, nil
}

func validateReading(r *model.Reading) error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: reading without id", ErrInvalidData)
	case r.Timestamp <= 0:
		return fmt.Errorf("%w: reading %s has no timestamp", ErrInvalidData, r.ID)
	case math.IsNaN(r.DisplayGlucose) || math.IsInf(r.DisplayGlucose, 0):
		return fmt.Errorf("%w: reading %s has a non-finite glucose value", ErrInvalidData, r.ID)
	}
	return nil
}

// classify tags lock contention with ErrBusy so callers can retry later.
func classify(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("%w: %w", ErrBusy, err)
	}
	return err
}

func observe(op string, start time.Time) {
	metrics.RecordStoreQueryLatency(op, float64(time.Since(start).Microseconds())/1000)
}
