// Package inference runs an auxiliary model on a single background worker.
// Requests are fire-and-forget and dropped whenever the worker is busy,
// not ready or disabled.
package inference

import (
	"log"
	"slices"
	"sync"
	"sync/atomic"
)

// Warm-up buffer sizes: a 256x256 grid with 7 input and 5 output channels.
const (
	WarmupInputSize  = 256 * 256 * 7
	WarmupOutputSize = 256 * 256 * 5
)

type job struct {
	input  []byte
	output []byte
}

// Worker implements simulation.InferenceService.
type Worker struct {
	model  Model
	logger *log.Logger

	jobs    chan job
	wg      sync.WaitGroup
	closeMu sync.RWMutex
	closed  bool

	ready   atomic.Bool
	enabled atomic.Bool

	completed atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// NewWorker warms the model up with zeroed buffers, then starts the worker
// goroutine and reports ready.
func NewWorker(model Model, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.Default()
	}
	w := &Worker{
		model:  model,
		logger: logger,
		jobs:   make(chan job, 1),
	}
	w.enabled.Store(true)

	if err := model.Run(make([]byte, WarmupInputSize), make([]byte, WarmupOutputSize)); err != nil {
		logger.Printf("Warning: inference warm-up skipped: %v", err)
	}

	w.wg.Add(1)
	go w.run()
	w.ready.Store(true)
	return w
}

func (w *Worker) run() {
	defer w.wg.Done()
	for j := range w.jobs {
		if err := w.model.Run(j.input, j.output); err != nil {
			w.failed.Add(1)
			w.logger.Printf("Warning: inference failed: %v", err)
			continue
		}
		w.completed.Add(1)
	}
}

// Enqueue hands a request to the worker. The input is copied so the caller
// may keep writing it; output is written in place by the worker.
func (w *Worker) Enqueue(input, output []byte) {
	if !w.ready.Load() || !w.enabled.Load() {
		w.dropped.Add(1)
		return
	}

	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		w.dropped.Add(1)
		return
	}

	select {
	case w.jobs <- job{input: slices.Clone(input), output: output}:
	default:
		w.dropped.Add(1)
	}
}

// IsReady reports whether the worker accepts requests.
func (w *Worker) IsReady() bool {
	return w.ready.Load()
}

// SetEnabled switches request handling on or off.
func (w *Worker) SetEnabled(enabled bool) {
	w.enabled.Store(enabled)
}

// Enabled reports whether requests are accepted.
func (w *Worker) Enabled() bool {
	return w.enabled.Load()
}

// Completed returns the number of successful runs, warm-up excluded.
func (w *Worker) Completed() int64 { return w.completed.Load() }

// Dropped returns the number of requests that were not run.
func (w *Worker) Dropped() int64 { return w.dropped.Load() }

// Failed returns the number of runs that returned an error.
func (w *Worker) Failed() int64 { return w.failed.Load() }

// Close stops accepting requests and waits for the in-flight one.
func (w *Worker) Close() {
	w.ready.Store(false)

	w.closeMu.Lock()
	if w.closed {
		w.closeMu.Unlock()
		return
	}
	w.closed = true
	close(w.jobs)
	w.closeMu.Unlock()

	w.wg.Wait()
}
