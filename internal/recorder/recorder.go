// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package recorder stores published poses and triangles in a SQLite file.
package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/relabs-tech/gaze_computer/internal/monitoring"
	"github.com/relabs-tech/gaze_computer/internal/orientation"
	"github.com/relabs-tech/gaze_computer/internal/triangulation"
)

const queueSize = 256

const schema = `
	CREATE TABLE IF NOT EXISTS orientation (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		recorded_at INTEGER NOT NULL,
		yaw DOUBLE,
		pitch DOUBLE,
		roll DOUBLE
	);
	CREATE TABLE IF NOT EXISTS triangle (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		recorded_at INTEGER NOT NULL,
		left_mm DOUBLE,
		right_mm DOUBLE,
		baseline_mm DOUBLE,
		alpha DOUBLE,
		beta DOUBLE,
		gamma DOUBLE
	);
`

type OrientationRow struct {
	Session    string
	RecordedAt time.Time
	orientation.Pose
}

type TriangleRow struct {
	Session    string
	RecordedAt time.Time
	triangulation.Result
}

type item struct {
	at       time.Time
	pose     *orientation.Pose
	triangle *triangulation.Result
	flushed  chan struct{}
}

// Recorder writes results on its own goroutine so publishing never waits
// on disk. Values published while the queue is full are dropped.
type Recorder struct {
	db      *sql.DB
	session string

	mu     sync.RWMutex
	closed bool
	items  chan item
	done   chan struct{}

	dropped atomic.Uint64
	now     func() time.Time
}

// Open creates the tables if needed and starts a new recording session.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("recorder: open %s: %w", path, err)
	}
	// One connection: the writer goroutine and queries share it instead of
	// contending for the file lock.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("recorder: create tables: %w", err)
	}

	r := &Recorder{
		db:      db,
		session: uuid.NewString(),
		items:   make(chan item, queueSize),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go r.run()
	return r, nil
}

// Session identifies the rows written by this recorder.
func (r *Recorder) Session() string { return r.session }

// Dropped reports how many values were discarded because the queue was full.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

func (r *Recorder) PublishOrientation(p orientation.Pose) {
	r.enqueue(item{at: r.now(), pose: &p})
}

func (r *Recorder) PublishTriangle(res triangulation.Result) {
	r.enqueue(item{at: r.now(), triangle: &res})
}

func (r *Recorder) enqueue(it item) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.items <- it:
	default:
		r.dropped.Add(1)
	}
}

// Flush waits until everything queued so far has been written.
func (r *Recorder) Flush(ctx context.Context) error {
	ch := make(chan struct{})
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return fmt.Errorf("recorder: closed")
	}
	select {
	case r.items <- item{flushed: ch}:
	case <-ctx.Done():
		r.mu.RUnlock()
		return ctx.Err()
	}
	r.mu.RUnlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes the remaining queue and closes the database.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.items)
	r.mu.Unlock()

	<-r.done
	return r.db.Close()
}

func (r *Recorder) run() {
	defer close(r.done)
	for it := range r.items {
		if it.flushed != nil {
			close(it.flushed)
			continue
		}
		if err := r.write(it); err != nil {
			monitoring.Logf("[recorder] write failed: %v", err)
		}
	}
}

func (r *Recorder) write(it item) error {
	at := it.at.UnixNano()
	if it.pose != nil {
		p := it.pose
		_, err := r.db.Exec(
			"INSERT INTO orientation (session, recorded_at, yaw, pitch, roll) VALUES (?, ?, ?, ?, ?)",
			r.session, at, p.Yaw, p.Pitch, p.Roll)
		return err
	}
	t := it.triangle
	_, err := r.db.Exec(
		"INSERT INTO triangle (session, recorded_at, left_mm, right_mm, baseline_mm, alpha, beta, gamma) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		r.session, at, t.LeftMM, t.RightMM, t.BaselineMM, t.Alpha, t.Beta, t.Gamma)
	return err
}

// Orientations returns up to limit rows of this session, oldest first.
func (r *Recorder) Orientations(ctx context.Context, limit int) ([]OrientationRow, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT session, recorded_at, yaw, pitch, roll FROM orientation WHERE session = ? ORDER BY id LIMIT ?",
		r.session, limit)
	if err != nil {
		return nil, fmt.Errorf("recorder: query orientation: %w", err)
	}
	defer rows.Close()

	var out []OrientationRow
	for rows.Next() {
		var row OrientationRow
		var at int64
		if err := rows.Scan(&row.Session, &at, &row.Yaw, &row.Pitch, &row.Roll); err != nil {
			return nil, fmt.Errorf("recorder: scan orientation: %w", err)
		}
		row.RecordedAt = time.Unix(0, at)
		out = append(out, row)
	}
	return out, rows.Err()
}

// Triangles returns up to limit rows of this session, oldest first.
func (r *Recorder) Triangles(ctx context.Context, limit int) ([]TriangleRow, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT session, recorded_at, left_mm, right_mm, baseline_mm, alpha, beta, gamma FROM triangle WHERE session = ? ORDER BY id LIMIT ?",
		r.session, limit)
	if err != nil {
		return nil, fmt.Errorf("recorder: query triangle: %w", err)
	}
	defer rows.Close()

	var out []TriangleRow
	for rows.Next() {
		var row TriangleRow
		var at int64
		if err := rows.Scan(&row.Session, &at, &row.LeftMM, &row.RightMM, &row.BaselineMM,
			&row.Alpha, &row.Beta, &row.Gamma); err != nil {
			return nil, fmt.Errorf("recorder: scan triangle: %w", err)
		}
		row.RecordedAt = time.Unix(0, at)
		out = append(out, row)
	}
	return out, rows.Err()
}

// Counts returns how many rows this session has written to each table.
func (r *Recorder) Counts(ctx context.Context) (poses, triangles int, err error) {
	err = r.db.QueryRowContext(ctx,
		"SELECT (SELECT COUNT(*) FROM orientation WHERE session = ?), (SELECT COUNT(*) FROM triangle WHERE session = ?)",
		r.session, r.session).Scan(&poses, &triangles)
	if err != nil {
		return 0, 0, fmt.Errorf("recorder: count rows: %w", err)
	}
	return poses, triangles, nil
}
