package simulation

import (
	"time"

	"fluidsim/core"
)

// StatusObserver receives the periodic frame-rate report.
type StatusObserver interface {
	OnStatus(status core.Status)
}

// StatusObserverFunc adapts a function to StatusObserver.
type StatusObserverFunc func(status core.Status)

func (f StatusObserverFunc) OnStatus(status core.Status) { f(status) }

// statusReporter averages frames over windows of at least one second of
// step time and emits once per window.
type statusReporter struct {
	observer    StatusObserver
	windowStart int64
	frames      int
	started     bool
}

func (r *statusReporter) tick(now int64, state core.SimulationState) {
	if r.observer == nil {
		return
	}
	if !r.started {
		r.started = true
		r.windowStart = now
		return
	}

	r.frames++
	elapsed := now - r.windowStart
	if elapsed < int64(time.Second) {
		return
	}

	r.observer.OnStatus(core.Status{
		MeasuredFPS:        float64(r.frames) / (float64(elapsed) / float64(time.Second)),
		GridSize:           state.GridSize,
		PressureIterations: state.PressureIterations,
	})
	r.frames = 0
	r.windowStart = now
}
