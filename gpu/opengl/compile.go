//go:build !nogl
// +build !nogl

package opengl

import (
	"strings"

	"github.com/go-gl/gl/v4.3-core/gl"

	"fluidsim/gpu"
)

// compileShader compiles a single shader stage
func compileShader(kernel, stage, source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)

	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := infoLog(logLength, func(buf *uint8) { gl.GetShaderInfoLog(shader, logLength, nil, buf) })
		gl.DeleteShader(shader)
		return 0, &gpu.CompileError{Kernel: kernel, Stage: stage, Log: log}
	}

	return shader, nil
}

// linkProgram links the given stages; the shaders are deleted either way
func linkProgram(kernel string, shaders ...uint32) (uint32, error) {
	program := gl.CreateProgram()
	for _, s := range shaders {
		gl.AttachShader(program, s)
	}
	gl.LinkProgram(program)
	for _, s := range shaders {
		gl.DetachShader(program, s)
		gl.DeleteShader(s)
	}

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := infoLog(logLength, func(buf *uint8) { gl.GetProgramInfoLog(program, logLength, nil, buf) })
		gl.DeleteProgram(program)
		return 0, &gpu.CompileError{Kernel: kernel, Stage: "link", Log: log}
	}

	return program, nil
}

func infoLog(length int32, read func(*uint8)) string {
	if length <= 0 {
		return "no info log"
	}
	log := make([]byte, length)
	read(&log[0])
	return strings.TrimRight(string(log), "\x00")
}
