// Package shaders holds the GLSL sources of the fluid kernels and the
// composite pass, and loads replacements from disk.
package shaders

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Kernel names, also used as file stems by LoadDir.
const (
	KernelComposite  = "composite"
	KernelAdvect     = "advect"
	KernelSplat      = "splat"
	KernelDivergence = "divergence"
	KernelJacobi     = "jacobi"
	KernelProject    = "project"
)

// Sources is the full set of kernel sources the engine compiles.
type Sources struct {
	CompositeVertex   string
	CompositeFragment string
	Advect            string
	Splat             string
	Divergence        string
	Jacobi            string
	Project           string
}

// Kernel is one named compute kernel source.
type Kernel struct {
	Name   string
	Source string
}

// Default returns the built-in sources.
func Default() Sources {
	return Sources{
		CompositeVertex:   compositeVertexShader,
		CompositeFragment: compositeFragmentShader,
		Advect:            advectShader,
		Splat:             splatShader,
		Divergence:        divergenceShader,
		Jacobi:            jacobiShader,
		Project:           projectShader,
	}
}

// Compute returns the compute kernels in compilation order.
func (s Sources) Compute() []Kernel {
	return []Kernel{
		{KernelAdvect, s.Advect},
		{KernelSplat, s.Splat},
		{KernelDivergence, s.Divergence},
		{KernelJacobi, s.Jacobi},
		{KernelProject, s.Project},
	}
}

// LoadDir starts from the built-in sources and replaces each one for which
// dir holds a file: composite.vert, composite.frag and <kernel>.comp.
func LoadDir(dir string) (Sources, error) {
	s := Default()
	files := []struct {
		name string
		dst  *string
	}{
		{KernelComposite + ".vert", &s.CompositeVertex},
		{KernelComposite + ".frag", &s.CompositeFragment},
		{KernelAdvect + ".comp", &s.Advect},
		{KernelSplat + ".comp", &s.Splat},
		{KernelDivergence + ".comp", &s.Divergence},
		{KernelJacobi + ".comp", &s.Jacobi},
		{KernelProject + ".comp", &s.Project},
	}

	loaded := 0
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(dir, f.name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Sources{}, fmt.Errorf("error reading shader %s: %w", f.name, err)
		}
		*f.dst = string(data)
		loaded++
	}
	if loaded > 0 {
		fmt.Printf("Loaded %d shader override(s) from %s\n", loaded, dir)
	}
	return s, nil
}
