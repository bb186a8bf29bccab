// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package sqlitesink records performance samples in a SQLite database.
//
// The scheduler itself keeps no on-disk state; this sink exists so long
// profiling sessions can be analysed after the fact.
package sqlitesink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/gogpu/viewsched/metrics"
)

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("sqlitesink: sink is closed")

const schema = `
CREATE TABLE IF NOT EXISTS samples (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	taken_at      INTEGER NOT NULL,
	frame_ms      REAL    NOT NULL,
	memory        REAL    NOT NULL,
	cpu           REAL    NOT NULL,
	queue_length  INTEGER NOT NULL,
	active_tasks  INTEGER NOT NULL,
	wait_ms       REAL    NOT NULL
);
CREATE INDEX IF NOT EXISTS samples_taken_at ON samples(taken_at);
`

// Sink writes samples to SQLite. It is safe for concurrent use; Close waits
// for in-progress calls.
type Sink struct {
	mu     sync.RWMutex
	db     *sql.DB
	insert *sql.Stmt
}

// Open opens (or creates) the database at path.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Sink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitesink: open %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitesink: create schema: %w", err)
	}
	insert, err := db.Prepare(`INSERT INTO samples
		(taken_at, frame_ms, memory, cpu, queue_length, active_tasks, wait_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitesink: prepare insert: %w", err)
	}
	return &Sink{db: db, insert: insert}, nil
}

// Record implements metrics.Sink.
func (s *Sink) Record(ctx context.Context, sample metrics.Sample) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	_, err := s.insert.ExecContext(ctx,
		sample.Time.UnixNano(),
		sample.AvgFrameTimeMs,
		sample.MemoryPressure,
		sample.CPUUsage,
		sample.QueueLength,
		sample.ActiveTasks,
		sample.AverageWaitTimeMs,
	)
	if err != nil {
		return fmt.Errorf("sqlitesink: insert sample: %w", err)
	}
	return nil
}

// Since returns samples taken at or after t, oldest first.
func (s *Sink) Since(ctx context.Context, t time.Time) ([]metrics.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		taken_at, frame_ms, memory, cpu, queue_length, active_tasks, wait_ms
		FROM samples WHERE taken_at >= ? ORDER BY taken_at, id`, t.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("sqlitesink: query samples: %w", err)
	}
	defer rows.Close()

	var out []metrics.Sample
	for rows.Next() {
		var (
			takenAt int64
			sample  metrics.Sample
		)
		if err := rows.Scan(&takenAt, &sample.AvgFrameTimeMs, &sample.MemoryPressure,
			&sample.CPUUsage, &sample.QueueLength, &sample.ActiveTasks, &sample.AverageWaitTimeMs); err != nil {
			return nil, fmt.Errorf("sqlitesink: scan sample: %w", err)
		}
		sample.Time = time.Unix(0, takenAt).UTC()
		out = append(out, sample)
	}
	return out, rows.Err()
}

// Close releases the database.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	_ = s.insert.Close()
	err := s.db.Close()
	s.db = nil
	return err
}
