package engine

import (
	"time"

	"github.com/Fastiz/cpp-volume-rendering/engine/camera"
	"github.com/Fastiz/cpp-volume-rendering/engine/frame"
	"github.com/Fastiz/cpp-volume-rendering/engine/profiler"
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer"
	"github.com/Fastiz/cpp-volume-rendering/engine/rendering_parameters"
	"github.com/Fastiz/cpp-volume-rendering/engine/technique"
	"github.com/Fastiz/cpp-volume-rendering/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithProfiler replaces the engine's profiler, typically one shared with the technique.
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		if p != nil {
			e.profiler = p
		}
	}
}

// WithTickRate sets the input tick rate in ticks per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithWindow attaches a window. Its resize, key, scroll and drag events drive the engine.
//
// Parameters:
//   - w: a created Window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRenderer sets the renderer whose surface follows window resizes.
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithTechnique sets the technique the engine drives, the presenter it renders into and
// the camera passed to it each frame.
//
// Parameters:
//   - t: the technique
//   - p: the presenter the technique was created with
//   - cam: the camera
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTechnique(t technique.Technique, p frame.Presenter, cam camera.Camera) EngineBuilderOption {
	return func(e *engine) {
		e.technique = t
		e.presenter = p
		e.camera = cam
	}
}

// WithRenderingParameters keeps the screen size and multiscaling mode of params in sync
// with the engine.
func WithRenderingParameters(params rendering_parameters.RenderingParameters) EngineBuilderOption {
	return func(e *engine) {
		e.params = params
	}
}

// WithPanel sets the panel the technique's parameters are drawn on.
func WithPanel(p *technique.ScriptedPanel) EngineBuilderOption {
	return func(e *engine) {
		if p != nil {
			e.panel = p
		}
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}
