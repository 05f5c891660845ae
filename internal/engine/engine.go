// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package engine runs the sensor-fusion and triangulation core on a single
// goroutine. Transport callbacks hand events over a buffered channel; the
// engine owns the sample buffer, the three angle filters and the depth
// tracker, and fans results out to publishers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/gaze_computer/internal/gate"
	"github.com/relabs-tech/gaze_computer/internal/monitoring"
	"github.com/relabs-tech/gaze_computer/internal/motion"
	"github.com/relabs-tech/gaze_computer/internal/orientation"
	"github.com/relabs-tech/gaze_computer/internal/smoothing"
	"github.com/relabs-tech/gaze_computer/internal/triangulation"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrClosed is returned by Start and the Submit methods once the engine
	// has been closed.
	ErrClosed = errors.New("engine: closed")
	// ErrQueueFull is returned when an event is dropped because the engine
	// goroutine is behind.
	ErrQueueFull = errors.New("engine: queue full")
)

// DefaultQueueSize is the event channel capacity used when Config leaves it unset.
const DefaultQueueSize = 64

type Config struct {
	Alpha      float64
	Estimator  orientation.Estimator
	BaselineMM float64
	DepthScale float64
	QueueSize  int
}

// DefaultConfig returns the stock filter, estimator and depth settings.
func DefaultConfig() Config {
	return Config{
		Alpha:      smoothing.DefaultAlpha,
		Estimator:  orientation.NewEstimator(),
		BaselineMM: triangulation.DefaultBaselineMM,
		DepthScale: triangulation.DefaultDepthScale,
		QueueSize:  DefaultQueueSize,
	}
}

// Stats counts what happened to submitted events.
type Stats struct {
	MotionEvents uint64 `json:"motion_events"`
	DepthEvents  uint64 `json:"depth_events"`

	Poses      uint64 `json:"poses"`      // smoothed poses published
	Degenerate uint64 `json:"degenerate"` // estimator rejected the pair
	Triangles  uint64 `json:"triangles"`  // triangles published
	Invalid    uint64 `json:"invalid"`    // bad samples or depths that form no triangle
	Gated      uint64 `json:"gated"`      // recomputation skipped while locked
	Waiting    uint64 `json:"waiting"`    // the other channel or side has not reported yet
	Dropped    uint64 `json:"dropped"`    // queue full
}

type Snapshot struct {
	Pose    orientation.Pose `json:"pose"`
	HasPose bool             `json:"has_pose"`
	PoseAt  time.Time        `json:"pose_at"`

	Triangle    triangulation.Result `json:"triangle"`
	HasTriangle bool                 `json:"has_triangle"`
	TriangleAt  time.Time            `json:"triangle_at"`

	LeftMM  float64 `json:"left_mm"`
	RightMM float64 `json:"right_mm"`

	Stats     Stats     `json:"stats"`
	UpdatedAt time.Time `json:"updated_at"`
}

type event struct {
	motion  motion.Reading
	depth   triangulation.Reading
	isDepth bool
}

type Engine struct {
	cfg  Config
	gate gate.Gate
	pub  Publisher

	// Owned by the run goroutine.
	buf              motion.Buffer
	yaw, pitch, roll smoothing.Filter
	tracker          *triangulation.Tracker

	events  chan event
	dropped atomic.Uint64
	started atomic.Bool

	mu   sync.RWMutex
	snap Snapshot

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	now func() time.Time
}

// New builds an engine. A nil gate behaves like gate.Always.
func New(cfg Config, g gate.Gate, pubs ...Publisher) (*Engine, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if g == nil {
		g = gate.Always{}
	}

	filters := make([]*smoothing.LowPass, 3)
	for i := range filters {
		f, err := smoothing.NewLowPass(cfg.Alpha)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		filters[i] = f
	}

	tracker, err := triangulation.NewTracker(cfg.BaselineMM, cfg.DepthScale)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	return &Engine{
		cfg:     cfg,
		gate:    g,
		pub:     Publishers(pubs),
		yaw:     filters[0],
		pitch:   filters[1],
		roll:    filters[2],
		tracker: tracker,
		events:  make(chan event, cfg.QueueSize),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
		now:     time.Now,
	}, nil
}

// Start launches the engine goroutine. It stops when ctx is cancelled or
// Close is called.
func (e *Engine) Start(ctx context.Context) error {
	if e.isClosed() {
		return ErrClosed
	}
	if !e.started.CompareAndSwap(false, true) {
		return fmt.Errorf("engine: already started")
	}
	go e.run(ctx)
	return nil
}

// Close stops the engine and waits for its goroutine to exit. Buffered
// events and state are discarded. Close is safe to call more than once.
func (e *Engine) Close() {
	e.stop()
	if e.started.Load() {
		<-e.done
	}
}

func (e *Engine) stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

func (e *Engine) isClosed() bool {
	select {
	case <-e.stopCh:
		return true
	default:
		return false
	}
}

// SubmitAccel queues an accelerometer sample.
func (e *Engine) SubmitAccel(v r3.Vec) error {
	return e.SubmitMotion(motion.Reading{Channel: motion.Accel, X: v.X, Y: v.Y, Z: v.Z})
}

// SubmitMag queues a magnetometer sample.
func (e *Engine) SubmitMag(v r3.Vec) error {
	return e.SubmitMotion(motion.Reading{Channel: motion.Mag, X: v.X, Y: v.Y, Z: v.Z})
}

// SubmitMotion queues a motion reading.
func (e *Engine) SubmitMotion(r motion.Reading) error {
	return e.submit(event{motion: r})
}

// SubmitDepth queues a depth reading in tenths of a millimetre.
func (e *Engine) SubmitDepth(side triangulation.Side, tenths float64, timestamp int64) error {
	return e.SubmitDepthReading(triangulation.Reading{Side: side, Depth: tenths, Timestamp: timestamp})
}

// SubmitDepthReading queues a decoded depth reading.
func (e *Engine) SubmitDepthReading(r triangulation.Reading) error {
	return e.submit(event{depth: r, isDepth: true})
}

func (e *Engine) submit(ev event) error {
	if e.isClosed() {
		return ErrClosed
	}
	select {
	case e.events <- ev:
		return nil
	default:
		e.dropped.Add(1)
		return ErrQueueFull
	}
}

// Snapshot returns the latest published values and counters.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	snap := e.snap
	e.mu.RUnlock()
	snap.Stats.Dropped = e.dropped.Load()
	return snap
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	defer e.reset()

	for {
		select {
		case <-ctx.Done():
			e.stop()
			return
		case <-e.stopCh:
			return
		case ev := <-e.events:
			if ev.isDepth {
				e.handleDepth(ev.depth)
			} else {
				e.handleMotion(ev.motion)
			}
		}
	}
}

func (e *Engine) reset() {
	e.buf.Reset()
	e.tracker.Reset()
}

func (e *Engine) update(fn func(s *Snapshot)) {
	e.mu.Lock()
	fn(&e.snap)
	e.snap.UpdatedAt = e.now()
	e.mu.Unlock()
}

func (e *Engine) handleMotion(r motion.Reading) {
	if err := e.buf.Update(r); err != nil {
		monitoring.Logf("[engine] motion reading rejected: %v", err)
		e.update(func(s *Snapshot) {
			s.Stats.MotionEvents++
			s.Stats.Invalid++
		})
		return
	}

	if !e.buf.HasBothChannels() {
		e.update(func(s *Snapshot) {
			s.Stats.MotionEvents++
			s.Stats.Waiting++
		})
		return
	}

	if !e.gate.ShouldUpdate() {
		e.update(func(s *Snapshot) {
			s.Stats.MotionEvents++
			s.Stats.Gated++
		})
		return
	}

	accel, mag, _ := e.buf.Latest()
	raw, ok := e.cfg.Estimator.Estimate(accel, mag)
	if !ok {
		e.update(func(s *Snapshot) {
			s.Stats.MotionEvents++
			s.Stats.Degenerate++
		})
		return
	}

	pose := orientation.Pose{
		Roll:  e.roll.Apply(raw.Roll),
		Pitch: e.pitch.Apply(raw.Pitch),
		Yaw:   e.yaw.Apply(raw.Yaw),
	}
	e.update(func(s *Snapshot) {
		s.Stats.MotionEvents++
		s.Stats.Poses++
		s.Pose = pose
		s.HasPose = true
		s.PoseAt = e.now()
	})
	e.pub.PublishOrientation(pose)
}

func (e *Engine) handleDepth(r triangulation.Reading) {
	if err := e.tracker.Update(r); err != nil {
		monitoring.Logf("[engine] depth reading rejected (ts=%d): %v", r.Timestamp, err)
		e.update(func(s *Snapshot) {
			s.Stats.DepthEvents++
			s.Stats.Invalid++
		})
		return
	}
	left, right := e.tracker.Depths()

	if !e.gate.ShouldUpdate() {
		e.update(func(s *Snapshot) {
			s.Stats.DepthEvents++
			s.Stats.Gated++
			s.LeftMM, s.RightMM = left, right
		})
		return
	}

	res, ok := e.tracker.Solve()
	if !ok {
		_, paired := e.tracker.Pair()
		if paired {
			monitoring.Logf("[engine] depths left=%.2f right=%.2f do not form a triangle (ts=%d)", left, right, r.Timestamp)
		}
		e.update(func(s *Snapshot) {
			s.Stats.DepthEvents++
			if paired {
				s.Stats.Invalid++
			} else {
				s.Stats.Waiting++
			}
			s.LeftMM, s.RightMM = left, right
		})
		return
	}

	e.update(func(s *Snapshot) {
		s.Stats.DepthEvents++
		s.Stats.Triangles++
		s.LeftMM, s.RightMM = left, right
		s.Triangle = res
		s.HasTriangle = true
		s.TriangleAt = e.now()
	})
	e.pub.PublishTriangle(res)
}
