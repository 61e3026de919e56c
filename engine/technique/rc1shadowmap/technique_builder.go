package rc1shadowmap

import "github.com/Fastiz/cpp-volume-rendering/engine/profiler"

// RC1ShadowMapBuilderOption is a function that configures the technique during construction.
type RC1ShadowMapBuilderOption func(*rc1ShadowMap)

// WithShaderDir reads WGSL from dir instead of the embedded sources, so ReloadShaders
// picks up edits made while the viewer runs.
//
// Parameters:
//   - dir: a directory holding the technique's .wgsl files
//
// Returns:
//   - RC1ShadowMapBuilderOption: a function that applies the shader directory option
func WithShaderDir(dir string) RC1ShadowMapBuilderOption {
	return func(t *rc1ShadowMap) {
		t.shaderDir = dir
	}
}

// WithDebugShadowMap presents the shadow map instead of the rendered volume.
func WithDebugShadowMap(enabled bool) RC1ShadowMapBuilderOption {
	return func(t *rc1ShadowMap) {
		t.debugShadowMap = enabled
	}
}

// WithGradientShading enables Blinn-Phong shading when the data manager provides a gradient.
// Defaults to false.
func WithGradientShading(enabled bool) RC1ShadowMapBuilderOption {
	return func(t *rc1ShadowMap) {
		t.applyGradientShading = enabled
	}
}

// WithShadow toggles shadow-map attenuation in the eye pass. Defaults to true.
func WithShadow(enabled bool) RC1ShadowMapBuilderOption {
	return func(t *rc1ShadowMap) {
		t.applyShadow = enabled
	}
}

// WithOcclusion toggles bounding-box gating of eye rays. Defaults to true.
func WithOcclusion(enabled bool) RC1ShadowMapBuilderOption {
	return func(t *rc1ShadowMap) {
		t.applyOcclusion = enabled
	}
}

// WithProfiler records the duration of each pass in p.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - RC1ShadowMapBuilderOption: a function that applies the profiler option
func WithProfiler(p *profiler.Profiler) RC1ShadowMapBuilderOption {
	return func(t *rc1ShadowMap) {
		t.profiler = p
	}
}

// WithStepSize replaces the step size estimated by Init. Values are clamped to
// [MinStepSize, MaxStepSize]; zero keeps the estimate.
func WithStepSize(step float32) RC1ShadowMapBuilderOption {
	return func(t *rc1ShadowMap) {
		t.fixedStepSize = step
	}
}
