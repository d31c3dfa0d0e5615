//go:build !nogl
// +build !nogl

// Package opengl hosts the GLFW window and GL 4.3 context the fluid
// engine renders into.
package opengl

import (
	"fmt"
	"runtime"

	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"fluidsim/rendering"
)

// Window owns the GLFW window and its current GL context.
type Window struct {
	window *glfw.Window
	input  *rendering.Input
}

// NewWindow creates a window with a current OpenGL 4.3 core context.
// It must be called from the main goroutine.
func NewWindow(width, height int, title string, vsync bool) (*Window, error) {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 3)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	window, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	window.MakeContextCurrent()
	if vsync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	if err := gl.Init(); err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	version := gl.GoStr(gl.GetString(gl.VERSION))
	fmt.Println("OpenGL version:", version)

	return &Window{window: window}, nil
}

// Bind routes window events to in and reports the current framebuffer
// size to it.
func (w *Window) Bind(in *rendering.Input) {
	w.input = in

	w.window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.onResize(width, height)
	})

	w.window.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		w.onKey(key, action)
	})

	w.window.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		w.onMouseButton(button, action)
	})

	w.window.SetCursorPosCallback(func(_ *glfw.Window, xpos, ypos float64) {
		w.onMouseMove(xpos, ypos)
	})

	w.onResize(w.window.GetFramebufferSize())
}

// FramebufferSize returns the drawable size in pixels.
func (w *Window) FramebufferSize() (int, int) {
	return w.window.GetFramebufferSize()
}

func (w *Window) onResize(width, height int) {
	if w.input != nil {
		w.input.Resize(width, height)
	}
}

// cursorScale maps window coordinates to framebuffer pixels on HiDPI
// displays where the two differ.
func (w *Window) cursorScale() (float32, float32) {
	ww, wh := w.window.GetSize()
	fw, fh := w.window.GetFramebufferSize()
	if ww == 0 || wh == 0 {
		return 1, 1
	}
	return float32(fw) / float32(ww), float32(fh) / float32(wh)
}

func (w *Window) onMouseButton(button glfw.MouseButton, action glfw.Action) {
	if button != glfw.MouseButtonLeft || w.input == nil {
		return
	}
	switch action {
	case glfw.Press:
		x, y := w.window.GetCursorPos()
		sx, sy := w.cursorScale()
		w.input.PointerDown(float32(x)*sx, float32(y)*sy)
	case glfw.Release:
		w.input.PointerUp()
	}
}

func (w *Window) onMouseMove(xpos, ypos float64) {
	if w.input == nil {
		return
	}
	sx, sy := w.cursorScale()
	w.input.PointerMove(float32(xpos)*sx, float32(ypos)*sy)
}

func (w *Window) onKey(key glfw.Key, action glfw.Action) {
	if action != glfw.Press && action != glfw.Repeat {
		return
	}
	a := keyAction(key)
	if a == rendering.ActionNone || w.input == nil {
		return
	}
	w.input.Apply(a)
	if w.input.QuitRequested() {
		w.window.SetShouldClose(true)
	}
}

func keyAction(key glfw.Key) rendering.Action {
	switch key {
	case glfw.KeyEscape:
		return rendering.ActionQuit
	case glfw.Key1:
		return rendering.ActionPaletteWarm
	case glfw.Key2:
		return rendering.ActionPaletteCool
	case glfw.KeyR:
		return rendering.ActionReset
	case glfw.KeyEqual, glfw.KeyKPAdd:
		return rendering.ActionMoreIterations
	case glfw.KeyMinus, glfw.KeyKPSubtract:
		return rendering.ActionFewerIterations
	case glfw.KeyQ:
		return rendering.ActionCycleQuality
	case glfw.KeyI:
		return rendering.ActionToggleInference
	case glfw.KeyRightBracket:
		return rendering.ActionStrongerInference
	case glfw.KeyLeftBracket:
		return rendering.ActionWeakerInference
	}
	return rendering.ActionNone
}

// ShouldClose returns true if the window should close
func (w *Window) ShouldClose() bool {
	return w.window.ShouldClose()
}

// PollEvents processes window events
func (w *Window) PollEvents() {
	glfw.PollEvents()
}

func (w *Window) SwapBuffers() {
	w.window.SwapBuffers()
}

// Terminate destroys the window and its context.
func (w *Window) Terminate() {
	w.window.Destroy()
	glfw.Terminate()
}
