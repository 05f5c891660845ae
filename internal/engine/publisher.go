// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package engine

import (
	"github.com/relabs-tech/gaze_computer/internal/monitoring"
	"github.com/relabs-tech/gaze_computer/internal/orientation"
	"github.com/relabs-tech/gaze_computer/internal/triangulation"
)

// Publisher receives results from the engine goroutine. Implementations
// must return quickly.
type Publisher interface {
	PublishOrientation(p orientation.Pose)
	PublishTriangle(r triangulation.Result)
}

// Publishers fans every result out to each element in order.
type Publishers []Publisher

func (ps Publishers) PublishOrientation(p orientation.Pose) {
	for _, pub := range ps {
		if pub != nil {
			pub.PublishOrientation(p)
		}
	}
}

func (ps Publishers) PublishTriangle(r triangulation.Result) {
	for _, pub := range ps {
		if pub != nil {
			pub.PublishTriangle(r)
		}
	}
}

// LogPublisher writes every result to the log.
type LogPublisher struct{}

func (LogPublisher) PublishOrientation(p orientation.Pose) {
	monitoring.Logf("[engine] yaw=%.2f pitch=%.2f roll=%.2f", p.Yaw, p.Pitch, p.Roll)
}

func (LogPublisher) PublishTriangle(r triangulation.Result) {
	monitoring.Logf("[engine] left=%.2fmm right=%.2fmm alpha=%.2f beta=%.2f gamma=%.2f",
		r.LeftMM, r.RightMM, r.Alpha, r.Beta, r.Gamma)
}
