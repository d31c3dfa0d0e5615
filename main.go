package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"fluidsim/config"
	"fluidsim/core"
	glgpu "fluidsim/gpu/opengl"
	"fluidsim/inference"
	"fluidsim/rendering"
	"fluidsim/rendering/opengl"
	"fluidsim/server"
	"fluidsim/shaders"
	"fluidsim/simulation"
)

func main() {
	var (
		settingsPath = flag.String("config", config.DefaultFileName, "Settings file (.json, .gcfg or .ini)")
		gridSize     = flag.Int("grid", 0, "Simulation grid size (overrides settings)")
		iterations   = flag.Int("iterations", 0, "Pressure iterations per step (overrides settings)")
		width        = flag.Int("width", 0, "Window width")
		height       = flag.Int("height", 0, "Window height")
		shaderDir    = flag.String("shaders", "", "Directory with kernel source overrides")
		serve        = flag.Bool("serve", false, "Accept remote input over websocket")
		port         = flag.Int("port", 0, "Websocket server port")
		modelPath    = flag.String("model", "", "Inference model path")
		noInference  = flag.Bool("no-inference", false, "Disable the inference worker")
	)
	flag.Parse()

	settings, err := config.Load(*settingsPath)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	if *gridSize > 0 {
		settings.Simulation.GridSize = *gridSize
	}
	if *iterations > 0 {
		settings.Simulation.PressureIterations = *iterations
	}
	if *width > 0 {
		settings.Window.Width = *width
	}
	if *height > 0 {
		settings.Window.Height = *height
	}
	if *shaderDir != "" {
		settings.Shaders.Dir = *shaderDir
	}
	if *serve {
		settings.Server.Enabled = true
	}
	if *port > 0 {
		settings.Server.Port = *port
	}
	if *modelPath != "" {
		settings.Inference.ModelPath = *modelPath
	}
	if *noInference {
		settings.Inference.Enabled = false
	}
	settings.Validate()

	fmt.Println("=== GPU Fluid Simulation ===")
	fmt.Printf("Grid: %dx%d\n", settings.Simulation.GridSize, settings.Simulation.GridSize)
	fmt.Printf("Pressure iterations: %d\n", settings.Simulation.PressureIterations)
	fmt.Printf("Window: %dx%d\n", settings.Window.Width, settings.Window.Height)

	sources := shaders.Default()
	if settings.Shaders.Dir != "" {
		sources, err = shaders.LoadDir(settings.Shaders.Dir)
		if err != nil {
			log.Fatalf("Failed to load shaders: %v", err)
		}
	}

	window, err := opengl.NewWindow(settings.Window.Width, settings.Window.Height, settings.Window.Title, settings.Window.VSync)
	if err != nil {
		log.Fatalf("Failed to create window: %v", err)
	}
	defer window.Terminate()

	device, err := glgpu.NewDevice()
	if err != nil {
		log.Fatalf("Failed to create GPU device: %v", err)
	}
	defer device.Release()

	var srv *server.Server
	engine := simulation.New(device, sources,
		simulation.WithQuality(settings.Simulation.GridSize, settings.Simulation.PressureIterations),
		simulation.WithPalette(settings.Simulation.Palette),
		simulation.WithStatusObserver(simulation.StatusObserverFunc(func(s core.Status) {
			fmt.Printf("\rFPS: %.1f | Grid: %dx%d | Iterations: %d   ", s.MeasuredFPS, s.GridSize, s.GridSize, s.PressureIterations)
			if srv != nil {
				srv.PublishStatus(s)
			}
		})),
	)
	if err := engine.OnContextCreated(); err != nil {
		log.Fatalf("Failed to initialize simulation: %v", err)
	}
	defer engine.Destroy()
	if engine.Degraded() {
		fmt.Printf("Warning: running without simulation: %v\n", engine.DegradedReason())
	}

	worker := inference.NewWorker(inference.LoadModel(settings.Inference.ModelPath, nil), nil)
	defer worker.Close()
	engine.AttachInference(worker,
		make([]byte, inference.WarmupInputSize),
		make([]byte, inference.WarmupOutputSize))
	strength := float32(settings.Inference.Strength)
	engine.SetInferenceEnabled(settings.Inference.Enabled, strength)

	input := rendering.NewInput(engine, settings.Inference.Enabled, strength)
	window.Bind(input)

	var commands <-chan server.Command
	if settings.Server.Enabled {
		srv = server.New(engine, nil)
		defer srv.Close()
		commands = srv.Commands()

		addr := fmt.Sprintf(":%d", settings.Server.Port)
		go func() {
			if err := srv.ListenAndServe(addr); err != nil {
				log.Printf("Error: websocket server stopped: %v", err)
			}
		}()
		fmt.Printf("Websocket server listening on ws://localhost%s/ws\n", addr)
	}

	fmt.Println("\nControls:")
	fmt.Println("  Mouse: Click and drag to push fluid")
	fmt.Println("  1/2: Warm/cool palette")
	fmt.Println("  R: Reset")
	fmt.Println("  +/-: Pressure iterations")
	fmt.Println("  Q: Cycle quality presets")
	fmt.Println("  I: Toggle inference, [/]: inference strength")
	fmt.Println("  ESC: Exit")
	fmt.Println("\nStarting simulation...")

	start := time.Now()
	for !window.ShouldClose() {
		window.PollEvents()

	drain:
		for {
			select {
			case cmd := <-commands:
				cmd(engine)
			default:
				break drain
			}
		}

		engine.Step(time.Since(start).Nanoseconds())
		engine.Render()
		window.SwapBuffers()
	}

	fmt.Println("\nShutting down...")
}
