package rendering_parameters

import (
	"github.com/Fastiz/cpp-volume-rendering/engine/frame"
	"github.com/Fastiz/cpp-volume-rendering/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// RenderingParametersBuilderOption is a function that configures rendering parameters during construction.
type RenderingParametersBuilderOption func(*renderingParameters)

// WithLight sets the light source.
//
// Parameters:
//   - l: the light
//
// Returns:
//   - RenderingParametersBuilderOption: a function that applies the light option
func WithLight(l light.Light) RenderingParametersBuilderOption {
	return func(rp *renderingParameters) {
		rp.light = l
	}
}

// WithBlinnPhong sets the shading coefficients.
func WithBlinnPhong(bp BlinnPhong) RenderingParametersBuilderOption {
	return func(rp *renderingParameters) {
		rp.blinnPhong = bp
	}
}

// WithScreenSize sets the presented image size.
//
// Parameters:
//   - width, height: the size in pixels
//
// Returns:
//   - RenderingParametersBuilderOption: a function that applies the size option
func WithScreenSize(width, height int) RenderingParametersBuilderOption {
	return func(rp *renderingParameters) {
		rp.screenWidth, rp.screenHeight = width, height
	}
}

// WithMultiscalingMode sets the multiscaling mode.
func WithMultiscalingMode(mode frame.Mode) RenderingParametersBuilderOption {
	return func(rp *renderingParameters) {
		rp.mode = mode
	}
}

// WithBackground sets the color of pixels whose ray misses the volume. Transparent black by default.
func WithBackground(color mgl32.Vec4) RenderingParametersBuilderOption {
	return func(rp *renderingParameters) {
		rp.background = color
	}
}
