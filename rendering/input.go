// Package rendering turns window input into engine calls. The platform
// window lives in rendering/opengl; this package has no GL dependency.
package rendering

import (
	"fmt"

	"fluidsim/core"
)

// Iteration and strength limits of the interactive controls.
const (
	MinUIIterations = 10
	MaxUIIterations = 60
	IterationStep   = 2
	StrengthStep    = 0.1
)

// Controls is the engine surface driven by the window.
type Controls interface {
	EnqueueInteraction(x, y, dx, dy float32, colorID int)
	OnSurfaceResized(width, height int)
	SetPalette(id int)
	Reset()
	SetQuality(gridSize, iterations int) error
	SetInferenceEnabled(enabled bool, strength float32)
	State() core.SimulationState
}

// Action is a discrete user command.
type Action int

const (
	ActionNone Action = iota
	ActionPaletteWarm
	ActionPaletteCool
	ActionReset
	ActionMoreIterations
	ActionFewerIterations
	ActionCycleQuality
	ActionToggleInference
	ActionStrongerInference
	ActionWeakerInference
	ActionQuit
)

// Input tracks pointer strokes and applies actions to Controls. Every
// press starts a new stroke with the next colour id.
type Input struct {
	controls Controls

	dragging     bool
	lastX, lastY float32
	colorID      int

	inferenceEnabled  bool
	inferenceStrength float32
	quit              bool
}

// NewInput binds input handling to c with the given inference settings.
func NewInput(c Controls, inferenceEnabled bool, strength float32) *Input {
	return &Input{
		controls:          c,
		colorID:           -1,
		inferenceEnabled:  inferenceEnabled,
		inferenceStrength: strength,
	}
}

// PointerDown starts a stroke at a surface pixel.
func (in *Input) PointerDown(x, y float32) {
	in.dragging = true
	in.lastX, in.lastY = x, y
	in.colorID++
}

// PointerMove splats along the current stroke. Moves without a pressed
// button or without displacement are ignored.
func (in *Input) PointerMove(x, y float32) {
	if !in.dragging {
		return
	}
	dx, dy := x-in.lastX, y-in.lastY
	if dx == 0 && dy == 0 {
		return
	}
	in.controls.EnqueueInteraction(x, y, dx, dy, in.colorID)
	in.lastX, in.lastY = x, y
}

// PointerUp ends the stroke.
func (in *Input) PointerUp() {
	in.dragging = false
}

// Resize forwards a framebuffer size change.
func (in *Input) Resize(width, height int) {
	in.controls.OnSurfaceResized(width, height)
}

// QuitRequested reports whether ActionQuit was applied.
func (in *Input) QuitRequested() bool {
	return in.quit
}

// Apply runs one action.
func (in *Input) Apply(a Action) {
	c := in.controls
	switch a {
	case ActionPaletteWarm:
		c.SetPalette(core.PaletteWarm)
		fmt.Println("Palette:", core.PaletteName(core.PaletteWarm))
	case ActionPaletteCool:
		c.SetPalette(core.PaletteCool)
		fmt.Println("Palette:", core.PaletteName(core.PaletteCool))
	case ActionReset:
		c.Reset()
		fmt.Println("Simulation reset")
	case ActionMoreIterations, ActionFewerIterations:
		state := c.State()
		n := state.PressureIterations
		if a == ActionMoreIterations {
			n += IterationStep
		} else {
			n -= IterationStep
		}
		n = min(max(n, MinUIIterations), MaxUIIterations)
		if n != state.PressureIterations {
			in.setQuality(state.GridSize, n)
		}
	case ActionCycleQuality:
		preset := core.NextQualityPreset(c.State().GridSize)
		in.setQuality(preset.GridSize, preset.PressureIterations)
	case ActionToggleInference:
		in.inferenceEnabled = !in.inferenceEnabled
		c.SetInferenceEnabled(in.inferenceEnabled, in.inferenceStrength)
		if in.inferenceEnabled {
			fmt.Println("Inference: ON")
		} else {
			fmt.Println("Inference: OFF")
		}
	case ActionStrongerInference, ActionWeakerInference:
		if a == ActionStrongerInference {
			in.inferenceStrength += StrengthStep
		} else {
			in.inferenceStrength -= StrengthStep
		}
		in.inferenceStrength = min(max(in.inferenceStrength, 0), 1)
		c.SetInferenceEnabled(in.inferenceEnabled, in.inferenceStrength)
		fmt.Printf("Inference strength: %.1f\n", in.inferenceStrength)
	case ActionQuit:
		in.quit = true
	}
}

func (in *Input) setQuality(gridSize, iterations int) {
	if err := in.controls.SetQuality(gridSize, iterations); err != nil {
		fmt.Printf("Warning: quality change rejected: %v\n", err)
		return
	}
	fmt.Printf("Quality: grid %dx%d, %d pressure iterations\n", gridSize, gridSize, iterations)
}
