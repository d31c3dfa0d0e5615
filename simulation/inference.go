package simulation

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// InferenceInterval is the minimum step time between two inference requests.
const InferenceInterval = 66 * time.Millisecond

// DefaultInferenceStrength is the blend strength set by AttachInference.
const DefaultInferenceStrength = 0.6

// InferenceService post-processes buffers asynchronously. Enqueue must not
// block and silently drops the request when the service is busy, not ready
// or disabled.
type InferenceService interface {
	Enqueue(input, output []byte)
	IsReady() bool
}

// InferenceRequest is the buffer pair handed to the service. The engine
// never interprets Output; it is read by the render stage on a later frame.
type InferenceRequest struct {
	Input    []byte
	Output   []byte
	Enabled  bool
	Strength float32
}

// enabler is implemented by services that can be switched off at the source.
type enabler interface {
	SetEnabled(enabled bool)
}

// AttachInference registers the inference service and its buffers.
func (e *Engine) AttachInference(service InferenceService, input, output []byte) {
	e.inference = service
	e.request = InferenceRequest{
		Input:    input,
		Output:   output,
		Enabled:  service != nil,
		Strength: DefaultInferenceStrength,
	}
	e.inferenceStarted = false
}

// SetInferenceEnabled toggles inference and sets the blend strength,
// clamped to [0,1].
func (e *Engine) SetInferenceEnabled(enabled bool, strength float32) {
	e.request.Enabled = enabled
	e.request.Strength = mgl32.Clamp(strength, 0, 1)
	if s, ok := e.inference.(enabler); ok {
		s.SetEnabled(enabled)
	}
}

// Inference returns the current request, including the output buffer the
// render stage may blend.
func (e *Engine) Inference() InferenceRequest {
	return e.request
}

// maybeRunInference enqueues at most one request per InferenceInterval.
func (e *Engine) maybeRunInference(now int64) {
	if e.inference == nil || !e.request.Enabled {
		return
	}
	if e.inferenceStarted && now-e.lastInference < int64(InferenceInterval) {
		return
	}
	if !e.inference.IsReady() {
		return
	}
	e.inferenceStarted = true
	e.lastInference = now
	e.inference.Enqueue(e.request.Input, e.request.Output)
}
