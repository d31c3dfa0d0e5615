package core

// SimulationState is the tunable and temporal state of the fluid engine.
// Only the engine mutates it; the render path and the status reporter read it.
type SimulationState struct {
	GridSize           int   // cells per side, all fields share it
	PressureIterations int   // Jacobi passes per step
	Palette            int   // active colour palette id
	LastStepNanos      int64 // timestamp of the last solved step
}

// InteractionSample is one pointer event in surface pixel space.
// X/Y are measured from the top-left corner, DX/DY are the motion since the
// previous sample of the same stroke.
type InteractionSample struct {
	X, Y    float32
	DX, DY  float32
	ColorID int
}

// Status is the periodic report delivered to the status observer.
type Status struct {
	MeasuredFPS        float64 `json:"fps"`
	GridSize           int     `json:"gridSize"`
	PressureIterations int     `json:"pressureIterations"`
}

// QualityPreset pairs a grid resolution with a pressure iteration count.
type QualityPreset struct {
	Name               string
	GridSize           int
	PressureIterations int
}

// QualityPresets are the presets cycled by interactive front ends.
var QualityPresets = []QualityPreset{
	{Name: "low", GridSize: 256, PressureIterations: 16},
	{Name: "medium", GridSize: 512, PressureIterations: 24},
	{Name: "high", GridSize: 1024, PressureIterations: 40},
}

// NextQualityPreset returns the preset following the one matching gridSize.
// Unknown sizes restart the cycle at the first preset.
func NextQualityPreset(gridSize int) QualityPreset {
	for i, p := range QualityPresets {
		if p.GridSize == gridSize {
			return QualityPresets[(i+1)%len(QualityPresets)]
		}
	}
	return QualityPresets[0]
}
