package rendering

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"fluidsim/core"
)

type fakeControls struct {
	samples  []core.InteractionSample
	state    core.SimulationState
	resized  [2]int
	resets   int
	enabled  bool
	strength float32
	qualErr  error
}

func (f *fakeControls) EnqueueInteraction(x, y, dx, dy float32, colorID int) {
	f.samples = append(f.samples, core.InteractionSample{X: x, Y: y, DX: dx, DY: dy, ColorID: colorID})
}
func (f *fakeControls) OnSurfaceResized(w, h int) { f.resized = [2]int{w, h} }
func (f *fakeControls) SetPalette(id int)         { f.state.Palette = id }
func (f *fakeControls) Reset()                    { f.resets++ }
func (f *fakeControls) SetQuality(grid, iterations int) error {
	if f.qualErr != nil {
		return f.qualErr
	}
	f.state.GridSize, f.state.PressureIterations = grid, iterations
	return nil
}
func (f *fakeControls) SetInferenceEnabled(enabled bool, strength float32) {
	f.enabled, f.strength = enabled, strength
}
func (f *fakeControls) State() core.SimulationState { return f.state }

func TestStrokesGetFreshColors(t *testing.T) {
	c := &fakeControls{}
	in := NewInput(c, false, 0.6)

	in.PointerMove(5, 5) // not dragging
	in.PointerDown(10, 10)
	in.PointerMove(10, 10) // no displacement
	in.PointerMove(13, 6)
	in.PointerUp()
	in.PointerMove(20, 20)
	in.PointerDown(0, 0)
	in.PointerMove(1, 2)

	assert.Equal(t, []core.InteractionSample{
		{X: 13, Y: 6, DX: 3, DY: -4, ColorID: 0},
		{X: 1, Y: 2, DX: 1, DY: 2, ColorID: 1},
	}, c.samples)
}

func TestIterationKeysClampToRange(t *testing.T) {
	c := &fakeControls{state: core.SimulationState{GridSize: 512, PressureIterations: 58}}
	in := NewInput(c, false, 0.6)

	in.Apply(ActionMoreIterations)
	assert.Equal(t, MaxUIIterations, c.state.PressureIterations)
	in.Apply(ActionMoreIterations)
	assert.Equal(t, MaxUIIterations, c.state.PressureIterations)

	c.state.PressureIterations = 11
	in.Apply(ActionFewerIterations)
	assert.Equal(t, MinUIIterations, c.state.PressureIterations)
	assert.Equal(t, 512, c.state.GridSize)
}

func TestCycleQuality(t *testing.T) {
	c := &fakeControls{state: core.SimulationState{GridSize: 1024, PressureIterations: 24}}
	in := NewInput(c, false, 0.6)

	for _, want := range []int{256, 512, 1024, 256} {
		in.Apply(ActionCycleQuality)
		assert.Equal(t, want, c.state.GridSize)
	}

	c.qualErr = errors.New("nope")
	in.Apply(ActionCycleQuality)
	assert.Equal(t, 256, c.state.GridSize)
}

func TestInferenceControls(t *testing.T) {
	c := &fakeControls{}
	in := NewInput(c, true, 0.95)

	in.Apply(ActionToggleInference)
	assert.False(t, c.enabled)
	assert.Equal(t, float32(0.95), c.strength)

	in.Apply(ActionToggleInference)
	in.Apply(ActionStrongerInference)
	assert.True(t, c.enabled)
	assert.Equal(t, float32(1), c.strength)

	for i := 0; i < 15; i++ {
		in.Apply(ActionWeakerInference)
	}
	assert.Equal(t, float32(0), c.strength)
}

func TestPaletteResetQuitResize(t *testing.T) {
	c := &fakeControls{}
	in := NewInput(c, false, 0.6)

	in.Apply(ActionPaletteCool)
	assert.Equal(t, core.PaletteCool, c.state.Palette)
	in.Apply(ActionPaletteWarm)
	assert.Equal(t, core.PaletteWarm, c.state.Palette)

	in.Apply(ActionReset)
	assert.Equal(t, 1, c.resets)

	in.Resize(640, 480)
	assert.Equal(t, [2]int{640, 480}, c.resized)

	assert.False(t, in.QuitRequested())
	in.Apply(ActionNone)
	in.Apply(ActionQuit)
	assert.True(t, in.QuitRequested())
}
