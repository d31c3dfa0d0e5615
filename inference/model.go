package inference

import (
	"encoding/binary"
	"errors"
	"io"
	"log"
	"math"
	"os"
	"time"
)

// ModelMagic is the flatbuffer file identifier of a TFLite model.
const ModelMagic = "TFL3"

// ErrShortBuffer is returned when an output buffer cannot hold one result.
var ErrShortBuffer = errors.New("output buffer too small")

// Model runs one inference over opaque buffers.
type Model interface {
	Run(input, output []byte) error
}

// ModifierSize is the encoded size of one hue/saturation/value triple.
const ModifierSize = 12

// ProceduralModel produces colour modifiers from elapsed time instead of a
// trained network. Output is a repeated little-endian float32 triple
// (hue, saturation, value).
type ProceduralModel struct {
	start time.Time
	now   func() time.Time
}

// NewProceduralModel returns a model timed by now, time.Now when nil.
func NewProceduralModel(now func() time.Time) *ProceduralModel {
	if now == nil {
		now = time.Now
	}
	return &ProceduralModel{start: now(), now: now}
}

// Modifiers returns the hue, saturation and value for the current time.
func (m *ProceduralModel) Modifiers() (hue, saturation, value float32) {
	t := m.now().Sub(m.start).Seconds()
	return float32(0.5 + 0.5*math.Sin(t)), 0.8, 0.9
}

func (m *ProceduralModel) Run(input, output []byte) error {
	if len(output) < ModifierSize {
		return ErrShortBuffer
	}
	h, s, v := m.Modifiers()
	for off := 0; off+ModifierSize <= len(output); off += ModifierSize {
		binary.LittleEndian.PutUint32(output[off:], math.Float32bits(h))
		binary.LittleEndian.PutUint32(output[off+4:], math.Float32bits(s))
		binary.LittleEndian.PutUint32(output[off+8:], math.Float32bits(v))
	}
	return nil
}

// DecodeModifiers reads the first triple of an output buffer.
func DecodeModifiers(output []byte) (hue, saturation, value float32, err error) {
	if len(output) < ModifierSize {
		return 0, 0, 0, ErrShortBuffer
	}
	hue = math.Float32frombits(binary.LittleEndian.Uint32(output))
	saturation = math.Float32frombits(binary.LittleEndian.Uint32(output[4:]))
	value = math.Float32frombits(binary.LittleEndian.Uint32(output[8:]))
	return hue, saturation, value, nil
}

// HasModelMagic reports whether data carries the TFLite identifier, either
// at the start of the file or at the flatbuffer identifier offset.
func HasModelMagic(data []byte) bool {
	if len(data) >= 4 && string(data[:4]) == ModelMagic {
		return true
	}
	return len(data) >= 8 && string(data[4:8]) == ModelMagic
}

// LoadModel opens the model at path. Missing files and placeholders fall
// back to the procedural model. No TFLite runtime is linked, so a real
// model also runs procedurally; the check keeps the file contract honest.
func LoadModel(path string, logger *log.Logger) Model {
	if logger == nil {
		logger = log.Default()
	}
	if path == "" {
		return NewProceduralModel(nil)
	}

	f, err := os.Open(path)
	if err != nil {
		logger.Printf("Warning: model %s not found, falling back to procedural colors", path)
		return NewProceduralModel(nil)
	}
	defer f.Close()

	header := make([]byte, 8)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		logger.Printf("Warning: unable to read model %s: %v", path, err)
		return NewProceduralModel(nil)
	}
	if !HasModelMagic(header[:n]) {
		logger.Printf("Warning: model placeholder detected in %s, falling back to procedural colors", path)
		return NewProceduralModel(nil)
	}

	logger.Printf("Warning: %s is a TFLite model but no interpreter is linked, using procedural colors", path)
	return NewProceduralModel(nil)
}
