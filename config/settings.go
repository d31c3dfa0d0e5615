// Package config loads user settings from JSON or gcfg files.
package config

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/gcfg.v1"
)

// Accepted ranges for user-facing values.
const (
	MinGridSize      = 64
	MaxGridSize      = 2048
	MinIterations    = 1
	MaxIterations    = 200
	DefaultFileName  = "settings.json"
	defaultGridSize  = 1024
	defaultIteration = 24
)

type Settings struct {
	Simulation SimulationSettings `json:"simulation"`
	Window     WindowSettings     `json:"window"`
	Server     ServerSettings     `json:"server"`
	Inference  InferenceSettings  `json:"inference"`
	Shaders    ShaderSettings     `json:"shaders"`
}

type SimulationSettings struct {
	GridSize           int `json:"gridSize"`
	PressureIterations int `json:"pressureIterations"`
	Palette            int `json:"palette"`
}

type WindowSettings struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Title  string `json:"title"`
	VSync  bool   `json:"vsync"`
}

type ServerSettings struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

type InferenceSettings struct {
	Enabled   bool    `json:"enabled"`
	Strength  float64 `json:"strength"`
	ModelPath string  `json:"modelPath"`
}

type ShaderSettings struct {
	Dir string `json:"dir"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Simulation: SimulationSettings{
			GridSize:           defaultGridSize,
			PressureIterations: defaultIteration,
		},
		Window: WindowSettings{
			Width:  1280,
			Height: 720,
			Title:  "Fluid Simulation",
			VSync:  true,
		},
		Server: ServerSettings{
			Port: 8080,
		},
		Inference: InferenceSettings{
			Strength:  0.6,
			ModelPath: "models/fluid_effect.tflite",
		},
	}
}

// Load reads settings from path on top of the defaults. Files ending in
// .gcfg or .ini use the gcfg format, everything else is read as JSON.
// A missing file is not an error.
func Load(path string) (Settings, error) {
	s := Default()
	if path == "" {
		path = DefaultFileName
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("No settings file found at %s, using defaults\n", path)
			return s, nil
		}
		return s, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gcfg", ".ini":
		if err := gcfg.ReadFileInto(&s, path); err != nil {
			return Default(), fmt.Errorf("error parsing %s: %w", path, err)
		}
	default:
		file, err := os.Open(path)
		if err != nil {
			return s, err
		}
		defer file.Close()

		if err := json.NewDecoder(file).Decode(&s); err != nil {
			return Default(), fmt.Errorf("error parsing %s: %w", path, err)
		}
	}

	s.Validate()
	fmt.Printf("Loaded settings: grid %dx%d, %d pressure iterations\n",
		s.Simulation.GridSize, s.Simulation.GridSize, s.Simulation.PressureIterations)
	return s, nil
}

// Validate clamps every value into its accepted range.
func (s *Settings) Validate() {
	s.Simulation.GridSize = ClampGridSize(s.Simulation.GridSize)
	s.Simulation.PressureIterations = ClampIterations(s.Simulation.PressureIterations)
	if s.Simulation.Palette < 0 || s.Simulation.Palette > 1 {
		s.Simulation.Palette = 0
	}

	if s.Inference.Strength < 0 {
		s.Inference.Strength = 0
	} else if s.Inference.Strength > 1 {
		s.Inference.Strength = 1
	}

	if s.Window.Width <= 0 {
		s.Window.Width = Default().Window.Width
	}
	if s.Window.Height <= 0 {
		s.Window.Height = Default().Window.Height
	}
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		s.Server.Port = Default().Server.Port
	}
}

// ClampGridSize clamps n to [MinGridSize, MaxGridSize] and rounds it to the
// nearest power of two, preferring the larger one on a tie.
func ClampGridSize(n int) int {
	n = clamp(n, MinGridSize, MaxGridSize)
	upper := 1 << bits.Len(uint(n-1))
	lower := upper >> 1
	if upper == n || upper-n <= n-lower {
		return upper
	}
	return lower
}

// ClampIterations clamps n to [MinIterations, MaxIterations].
func ClampIterations(n int) int {
	return clamp(n, MinIterations, MaxIterations)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
