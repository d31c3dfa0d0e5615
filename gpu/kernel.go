package gpu

import (
	"errors"
	"fmt"
	"strings"
)

// CompileError carries the compiler or linker diagnostic of a failed kernel.
type CompileError struct {
	Kernel string
	Stage  string // compute, vertex, fragment or link
	Log    string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s %s shader failed: %s", e.Kernel, e.Stage, strings.TrimSpace(e.Log))
}

// KernelProgram is one compiled GPU program with cached parameter locations.
type KernelProgram struct {
	dev       Device
	name      string
	program   ProgramID
	locations map[string]int32
}

// CompileKernel compiles and links a compute kernel from source text.
func CompileKernel(dev Device, name, source string) (*KernelProgram, error) {
	program, err := dev.CompileCompute(name, source)
	if err != nil {
		return nil, asCompileError(name, "compute", err)
	}
	return newKernel(dev, name, program), nil
}

// CompileRenderKernel compiles and links a vertex+fragment program.
func CompileRenderKernel(dev Device, name, vertex, fragment string) (*KernelProgram, error) {
	program, err := dev.CompileRender(name, vertex, fragment)
	if err != nil {
		return nil, asCompileError(name, "link", err)
	}
	return newKernel(dev, name, program), nil
}

func newKernel(dev Device, name string, program ProgramID) *KernelProgram {
	return &KernelProgram{
		dev:       dev,
		name:      name,
		program:   program,
		locations: make(map[string]int32),
	}
}

func asCompileError(name, stage string, err error) error {
	var ce *CompileError
	if errors.As(err, &ce) {
		return err
	}
	return &CompileError{Kernel: name, Stage: stage, Log: err.Error()}
}

// Name returns the kernel name.
func (k *KernelProgram) Name() string {
	return k.name
}

// Program returns the device program handle.
func (k *KernelProgram) Program() ProgramID {
	return k.program
}

// UniformLocation resolves a named parameter. Names the kernel does not
// declare yield InvalidLocation; optional parameters are legal.
func (k *KernelProgram) UniformLocation(name string) int32 {
	if loc, ok := k.locations[name]; ok {
		return loc
	}
	loc := InvalidLocation
	if k.program != 0 {
		loc = k.dev.UniformLocation(k.program, name)
	}
	k.locations[name] = loc
	return loc
}

// Param binds value to the named parameter.
func (k *KernelProgram) Param(name string, value any) Uniform {
	return Uniform{Location: k.UniformLocation(name), Value: value}
}

// Dispatch runs the kernel over a width×height grid in 8×8 work groups.
func (k *KernelProgram) Dispatch(width, height int, images []ImageBinding, params ...Uniform) {
	k.dev.Dispatch(DispatchCmd{
		Program:  k.program,
		Uniforms: params,
		Images:   images,
		GroupsX:  Groups(width),
		GroupsY:  Groups(height),
	})
}

// Draw renders the program as a full-screen pass. texture may be zero.
func (k *KernelProgram) Draw(width, height int, texture TextureID, params ...Uniform) {
	k.dev.Draw(DrawCmd{
		Program:  k.program,
		Uniforms: params,
		Texture:  texture,
		Width:    width,
		Height:   height,
	})
}

// Release deletes the program. Safe to call more than once.
func (k *KernelProgram) Release() {
	if k == nil || k.program == 0 {
		return
	}
	k.dev.DeleteProgram(k.program)
	k.program = 0
	k.locations = make(map[string]int32)
}

// Abandon forgets the program without deleting it. Use it once the context
// that owned the program is gone.
func (k *KernelProgram) Abandon() {
	if k == nil {
		return
	}
	k.program = 0
	k.locations = make(map[string]int32)
}
