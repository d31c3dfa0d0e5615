//go:build nogl
// +build nogl

package opengl

import (
	"errors"

	"fluidsim/rendering"
)

// ErrNoWindow is returned by NewWindow in builds without OpenGL.
var ErrNoWindow = errors.New("built with nogl: no window available")

// Window stub for builds without OpenGL
type Window struct{}

func NewWindow(width, height int, title string, vsync bool) (*Window, error) {
	return nil, ErrNoWindow
}

func (w *Window) Bind(in *rendering.Input)    {}
func (w *Window) FramebufferSize() (int, int) { return 0, 0 }
func (w *Window) ShouldClose() bool           { return true }
func (w *Window) PollEvents()                 {}
func (w *Window) SwapBuffers()                {}
func (w *Window) Terminate()                  {}
