package renderer

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe). Ignored by the CPU backend.
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithWorkers sets the worker pool size of the CPU backend. Defaults to runtime.NumCPU().
//
// Parameters:
//   - n: the number of workers, values below 1 are ignored
//
// Returns:
//   - RendererBuilderOption: a function that applies the worker count to a renderer
func WithWorkers(n int) RendererBuilderOption {
	return func(r *renderer) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithTileSize sets the edge length in texels of the tiles the CPU backend splits each
// dispatch into. Defaults to 32.
//
// Parameters:
//   - n: the tile edge length, values below 1 are ignored
//
// Returns:
//   - RendererBuilderOption: a function that applies the tile size to a renderer
func WithTileSize(n int) RendererBuilderOption {
	return func(r *renderer) {
		if n > 0 {
			r.tileSize = n
		}
	}
}
