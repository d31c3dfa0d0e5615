package inference

import (
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = log.New(io.Discard, "", 0)

// gatedModel blocks every run after the warm-up until released.
type gatedModel struct {
	mu     sync.Mutex
	calls  int
	inputs [][]byte
	gate   chan struct{}
}

func (m *gatedModel) Run(input, output []byte) error {
	m.mu.Lock()
	m.calls++
	warmup := m.calls == 1
	if !warmup {
		m.inputs = append(m.inputs, append([]byte(nil), input...))
	}
	m.mu.Unlock()

	if !warmup {
		<-m.gate
		if len(output) > 0 {
			output[0] = 0xAB
		}
	}
	return nil
}

func (m *gatedModel) seen() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.inputs...)
}

func TestWorkerWarmsUpBeforeReady(t *testing.T) {
	m := &gatedModel{gate: make(chan struct{})}
	w := NewWorker(m, quiet)
	defer w.Close()

	assert.True(t, w.IsReady())
	assert.True(t, w.Enabled())
	assert.Equal(t, 1, m.calls)
	assert.Zero(t, w.Completed())
}

func TestWorkerDropsWhenBusy(t *testing.T) {
	m := &gatedModel{gate: make(chan struct{})}
	w := NewWorker(m, quiet)

	out := make([]byte, 4)
	w.Enqueue([]byte{1}, out)
	require.Eventually(t, func() bool { return len(m.seen()) == 1 }, time.Second, time.Millisecond)

	w.Enqueue([]byte{2}, out) // fills the slot
	w.Enqueue([]byte{3}, out) // dropped
	assert.Equal(t, int64(1), w.Dropped())

	close(m.gate)
	w.Close()

	assert.Equal(t, int64(2), w.Completed())
	assert.Equal(t, [][]byte{{1}, {2}}, m.seen())
	assert.Equal(t, byte(0xAB), out[0])
}

func TestWorkerCopiesInput(t *testing.T) {
	m := &gatedModel{gate: make(chan struct{})}
	close(m.gate)
	w := NewWorker(m, quiet)

	in := []byte{7, 7, 7}
	w.Enqueue(in, nil)
	in[0] = 9
	w.Close()

	require.Len(t, m.seen(), 1)
	assert.Equal(t, []byte{7, 7, 7}, m.seen()[0])
}

func TestWorkerDisabledAndClosed(t *testing.T) {
	m := &gatedModel{gate: make(chan struct{})}
	close(m.gate)
	w := NewWorker(m, quiet)

	w.SetEnabled(false)
	w.Enqueue([]byte{1}, nil)
	assert.Equal(t, int64(1), w.Dropped())

	w.SetEnabled(true)
	w.Close()
	w.Close()
	assert.False(t, w.IsReady())

	w.Enqueue([]byte{1}, nil)
	assert.Equal(t, int64(2), w.Dropped())
	assert.Empty(t, m.seen())
}

func TestProceduralModelIsDeterministic(t *testing.T) {
	base := time.Unix(1000, 0)
	now := base
	m := NewProceduralModel(func() time.Time { return now })

	out := make([]byte, 3*ModifierSize+5)
	require.NoError(t, m.Run(nil, out))
	h, s, v, err := DecodeModifiers(out)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, h, 1e-6)
	assert.Equal(t, float32(0.8), s)
	assert.Equal(t, float32(0.9), v)
	assert.Equal(t, out[:ModifierSize], out[2*ModifierSize:3*ModifierSize])

	now = base.Add(time.Duration(float64(time.Second) * 3.14159265 / 2))
	require.NoError(t, m.Run(nil, out))
	h, _, _, err = DecodeModifiers(out)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, h, 1e-6)

	assert.True(t, errors.Is(m.Run(nil, make([]byte, 4)), ErrShortBuffer))
}

func TestLoadModelFallsBack(t *testing.T) {
	dir := t.TempDir()
	placeholder := filepath.Join(dir, "placeholder.tflite")
	require.NoError(t, os.WriteFile(placeholder, []byte("not a model"), 0o644))
	modelPath := filepath.Join(dir, "effect.tflite")
	require.NoError(t, os.WriteFile(modelPath, []byte("\x1c\x00\x00\x00TFL3rest"), 0o644))

	tests := []struct {
		name string
		path string
	}{
		{"empty path", ""},
		{"missing", filepath.Join(dir, "missing.tflite")},
		{"placeholder", placeholder},
		{"model", modelPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := LoadModel(tt.path, quiet)
			_, ok := m.(*ProceduralModel)
			assert.True(t, ok)
		})
	}

	assert.True(t, HasModelMagic([]byte("TFL3")))
	assert.True(t, HasModelMagic([]byte("\x1c\x00\x00\x00TFL3")))
	assert.False(t, HasModelMagic([]byte("TFL")))
}
