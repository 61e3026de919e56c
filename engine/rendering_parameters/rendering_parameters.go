// Package rendering_parameters holds the lighting and output settings shared by techniques.
package rendering_parameters

import (
	"sync"

	"github.com/Fastiz/cpp-volume-rendering/engine/frame"
	"github.com/Fastiz/cpp-volume-rendering/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// BlinnPhong holds the coefficients of the Blinn-Phong reflection model.
type BlinnPhong struct {
	// Ka scales the ambient term.
	Ka float32 `json:"ka"`
	// Kd scales the diffuse term.
	Kd float32 `json:"kd"`
	// Ks scales the specular term.
	Ks float32 `json:"ks"`
	// Shininess is the specular exponent.
	Shininess float32 `json:"shininess"`
}

// DefaultBlinnPhong returns the coefficients used when none are configured.
func DefaultBlinnPhong() BlinnPhong {
	return BlinnPhong{Ka: 0.4, Kd: 0.6, Ks: 0.3, Shininess: 16}
}

// renderingParameters is the implementation of the RenderingParameters interface.
type renderingParameters struct {
	mu *sync.Mutex

	light        light.Light
	blinnPhong   BlinnPhong
	screenWidth  int
	screenHeight int
	mode         frame.Mode
	background   mgl32.Vec4
}

// RenderingParameters is the set of user-controlled settings a technique reads every frame.
type RenderingParameters interface {
	// Light returns the light source.
	Light() light.Light

	// BlinnPhong returns the shading coefficients.
	BlinnPhong() BlinnPhong

	// SetBlinnPhong replaces the shading coefficients.
	SetBlinnPhong(bp BlinnPhong)

	// LightSpecularIntensity is a shorthand for Light().SpecularIntensity().
	LightSpecularIntensity() float32

	// ScreenSize returns the size of the presented image.
	ScreenSize() (width, height int)

	// SetScreenSize records a new presented image size.
	SetScreenSize(width, height int)

	// MultiscalingMode returns how the render target relates to the screen size.
	MultiscalingMode() frame.Mode

	// SetMultiscalingMode sets the multiscaling mode.
	SetMultiscalingMode(mode frame.Mode)

	// Background returns the color of pixels whose ray misses the volume.
	Background() mgl32.Vec4
}

var _ RenderingParameters = &renderingParameters{}

// NewRenderingParameters creates rendering parameters with a default light, the default
// Blinn-Phong coefficients and a 768x768 screen.
//
// Parameters:
//   - options: variadic list of RenderingParametersBuilderOption functions
//
// Returns:
//   - RenderingParameters: the parameters
func NewRenderingParameters(options ...RenderingParametersBuilderOption) RenderingParameters {
	rp := &renderingParameters{
		mu:           &sync.Mutex{},
		blinnPhong:   DefaultBlinnPhong(),
		screenWidth:  768,
		screenHeight: 768,
	}
	for _, opt := range options {
		opt(rp)
	}
	if rp.light == nil {
		rp.light = light.NewLight()
	}
	return rp
}

func (rp *renderingParameters) Light() light.Light {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return rp.light
}

func (rp *renderingParameters) BlinnPhong() BlinnPhong {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return rp.blinnPhong
}

func (rp *renderingParameters) SetBlinnPhong(bp BlinnPhong) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.blinnPhong = bp
}

func (rp *renderingParameters) LightSpecularIntensity() float32 {
	return rp.Light().SpecularIntensity()
}

func (rp *renderingParameters) ScreenSize() (int, int) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return rp.screenWidth, rp.screenHeight
}

func (rp *renderingParameters) SetScreenSize(width, height int) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.screenWidth, rp.screenHeight = width, height
}

func (rp *renderingParameters) MultiscalingMode() frame.Mode {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return rp.mode
}

func (rp *renderingParameters) SetMultiscalingMode(mode frame.Mode) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.mode = mode
}

func (rp *renderingParameters) Background() mgl32.Vec4 {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return rp.background
}
