// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package engine

import (
	"context"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/gaze_computer/internal/gate"
	"github.com/relabs-tech/gaze_computer/internal/monitoring"
	"github.com/relabs-tech/gaze_computer/internal/motion"
	"github.com/relabs-tech/gaze_computer/internal/orientation"
	"github.com/relabs-tech/gaze_computer/internal/triangulation"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

type capture struct {
	mu        sync.Mutex
	poses     []orientation.Pose
	triangles []triangulation.Result
}

func (c *capture) PublishOrientation(p orientation.Pose) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.poses = append(c.poses, p)
}

func (c *capture) PublishTriangle(r triangulation.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.triangles = append(c.triangles, r)
}

func (c *capture) Poses() []orientation.Pose {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]orientation.Pose(nil), c.poses...)
}

func (c *capture) Triangles() []triangulation.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]triangulation.Result(nil), c.triangles...)
}

func newTestEngine(t *testing.T, g gate.Gate) (*Engine, *capture) {
	t.Helper()
	c := &capture{}
	e, err := New(DefaultConfig(), g, c)
	require.NoError(t, err)
	return e, c
}

func samples(p orientation.Pose) (accel, mag motion.Reading) {
	a, m := orientation.EarthField.Samples(p)
	return motion.Reading{Channel: motion.Accel, X: a.X, Y: a.Y, Z: a.Z},
		motion.Reading{Channel: motion.Mag, X: m.X, Y: m.Y, Z: m.Z}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Alpha = 0
	_, err := New(cfg, nil)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.BaselineMM = -1
	_, err = New(cfg, nil)
	require.Error(t, err)
}

func TestHandleMotion_WaitsForBothChannels(t *testing.T) {
	e, c := newTestEngine(t, nil)
	accel, _ := samples(orientation.Pose{})

	e.handleMotion(accel)
	e.handleMotion(accel)

	snap := e.Snapshot()
	assert.False(t, snap.HasPose)
	assert.Equal(t, uint64(2), snap.Stats.Waiting)
	assert.Empty(t, c.Poses())
}

func TestHandleMotion_ConvergesWithoutOvershoot(t *testing.T) {
	e, c := newTestEngine(t, nil)
	want := orientation.Pose{Roll: -20, Pitch: 10, Yaw: 30}
	accel, mag := samples(want)

	e.handleMotion(accel)
	for i := 0; i < 60; i++ {
		e.handleMotion(mag)
	}

	poses := c.Poses()
	require.Len(t, poses, 60)
	assert.InDelta(t, 0.8*want.Yaw, poses[0].Yaw, 1e-6)

	prev := math.Inf(1)
	for _, p := range poses {
		d := math.Abs(p.Yaw-want.Yaw) + math.Abs(p.Pitch-want.Pitch) + math.Abs(p.Roll-want.Roll)
		assert.LessOrEqual(t, d, prev)
		prev = d
	}

	last := e.Snapshot().Pose
	if diff := cmp.Diff(want, last, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Fatalf("pose mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleMotion_DegenerateKeepsPreviousPose(t *testing.T) {
	e, c := newTestEngine(t, nil)
	accel, mag := samples(orientation.Pose{Yaw: 45})
	e.handleMotion(accel)
	e.handleMotion(mag)
	before := e.Snapshot()
	require.True(t, before.HasPose)

	// Magnetometer parallel to gravity: heading is undefined.
	e.handleMotion(motion.Reading{Channel: motion.Mag, X: accel.X * 2, Y: accel.Y * 2, Z: accel.Z * 2})
	// Free fall.
	e.handleMotion(motion.Reading{Channel: motion.Accel})

	after := e.Snapshot()
	assert.Equal(t, before.Pose, after.Pose)
	assert.Equal(t, uint64(2), after.Stats.Degenerate)
	assert.Len(t, c.Poses(), 1)
}

func TestHandleMotion_RejectsUnknownChannel(t *testing.T) {
	e, c := newTestEngine(t, nil)
	e.handleMotion(motion.Reading{Channel: "gyro", Z: 1})

	assert.Equal(t, uint64(1), e.Snapshot().Stats.Invalid)
	assert.Empty(t, c.Poses())
}

func TestHandleMotion_GateBuffersWhileLocked(t *testing.T) {
	sw := gate.NewSwitch(false)
	e, c := newTestEngine(t, sw)

	// Samples for the new pose arrive while locked.
	accel, mag := samples(orientation.Pose{Yaw: 60})
	e.handleMotion(accel)
	e.handleMotion(mag)
	assert.Empty(t, c.Poses())
	assert.Equal(t, uint64(1), e.Snapshot().Stats.Gated)

	// After unlocking, one accel sample recomputes from the buffered mag.
	sw.SetUnlocked(true)
	e.handleMotion(accel)

	poses := c.Poses()
	require.Len(t, poses, 1)
	assert.InDelta(t, 0.8*60, poses[0].Yaw, 1e-6)
}

func TestHandleDepth(t *testing.T) {
	e, c := newTestEngine(t, nil)

	e.handleDepth(triangulation.Reading{Side: triangulation.Left, Depth: 500})
	assert.Equal(t, uint64(1), e.Snapshot().Stats.Waiting)
	assert.Empty(t, c.Triangles())

	e.handleDepth(triangulation.Reading{Side: triangulation.Right, Depth: 500})
	tris := c.Triangles()
	require.Len(t, tris, 1)
	assert.InDelta(t, 86.3880, tris[0].Alpha, 1e-3)
	assert.InDelta(t, 7.2241, tris[0].Beta, 1e-3)
	assert.InDelta(t, tris[0].Alpha, tris[0].Gamma, 1e-9)
	assert.Equal(t, 50.0, tris[0].LeftMM)
	assert.Equal(t, 6.3, tris[0].BaselineMM)

	// 100 / 10 / 6.3 violates the triangle inequality.
	e.handleDepth(triangulation.Reading{Side: triangulation.Left, Depth: 1000})
	e.handleDepth(triangulation.Reading{Side: triangulation.Right, Depth: 100})
	snap := e.Snapshot()
	assert.Len(t, c.Triangles(), 1)
	assert.Equal(t, uint64(2), snap.Stats.Invalid)
	assert.Equal(t, tris[0], snap.Triangle)
	assert.Equal(t, 100.0, snap.LeftMM)
	assert.Equal(t, 10.0, snap.RightMM)

	e.handleDepth(triangulation.Reading{Side: triangulation.Left, Depth: math.NaN()})
	assert.Equal(t, uint64(3), e.Snapshot().Stats.Invalid)
}

func TestHandleDepth_Gated(t *testing.T) {
	e, c := newTestEngine(t, gate.NewSwitch(false))
	e.handleDepth(triangulation.Reading{Side: triangulation.Left, Depth: 500})
	e.handleDepth(triangulation.Reading{Side: triangulation.Right, Depth: 510})

	snap := e.Snapshot()
	assert.Empty(t, c.Triangles())
	assert.False(t, snap.HasTriangle)
	assert.Equal(t, uint64(2), snap.Stats.Gated)
	assert.Equal(t, 51.0, snap.RightMM)
}

func TestEngine_RunProcessesSubmissions(t *testing.T) {
	e, c := newTestEngine(t, nil)
	require.NoError(t, e.Start(context.Background()))
	defer e.Close()

	a, m := orientation.EarthField.Samples(orientation.Pose{Pitch: 15})
	require.NoError(t, e.SubmitAccel(a))
	require.NoError(t, e.SubmitMag(m))
	require.NoError(t, e.SubmitDepth(triangulation.Left, 500, 1))
	require.NoError(t, e.SubmitDepth(triangulation.Right, 500, 2))

	require.Eventually(t, func() bool {
		s := e.Snapshot()
		return s.HasPose && s.HasTriangle
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, c.Poses(), 1)
	assert.Len(t, c.Triangles(), 1)
	assert.False(t, e.Snapshot().UpdatedAt.IsZero())
}

func TestEngine_Close(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	require.NoError(t, e.Start(context.Background()))
	require.Error(t, e.Start(context.Background()))

	e.Close()
	e.Close()

	assert.ErrorIs(t, e.SubmitAccel(r3.Vec{Z: 9.81}), ErrClosed)
	assert.ErrorIs(t, e.SubmitDepth(triangulation.Left, 500, 0), ErrClosed)
	assert.ErrorIs(t, e.Start(context.Background()), ErrClosed)
}

func TestEngine_CloseBeforeStart(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	e.Close()
	assert.ErrorIs(t, e.SubmitMag(r3.Vec{Y: 20}), ErrClosed)
}

func TestEngine_ContextCancelStops(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.Start(ctx))
	cancel()

	require.Eventually(t, func() bool {
		return e.SubmitAccel(r3.Vec{Z: 9.81}) == ErrClosed
	}, time.Second, 5*time.Millisecond)
	e.Close()
}

func TestEngine_DropsWhenQueueFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueSize = 1
	e, err := New(cfg, nil)
	require.NoError(t, err)

	require.NoError(t, e.SubmitAccel(r3.Vec{Z: 9.81}))
	assert.ErrorIs(t, e.SubmitAccel(r3.Vec{Z: 9.81}), ErrQueueFull)
	assert.Equal(t, uint64(1), e.Snapshot().Stats.Dropped)
}

func TestPublishers_FanOut(t *testing.T) {
	a, b := &capture{}, &capture{}
	ps := Publishers{a, nil, b}

	ps.PublishOrientation(orientation.Pose{Yaw: 1})
	ps.PublishTriangle(triangulation.Result{})

	assert.Len(t, a.Poses(), 1)
	assert.Len(t, b.Poses(), 1)
	assert.Len(t, a.Triangles(), 1)
	assert.Len(t, b.Triangles(), 1)

	// LogPublisher only needs to not panic with logging muted.
	LogPublisher{}.PublishOrientation(orientation.Pose{})
	LogPublisher{}.PublishTriangle(triangulation.Result{})
}
