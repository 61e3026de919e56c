package light

import (
	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/go-gl/mathgl/mgl32"
)

// LightBuilderOption is a function that configures a Light instance during construction.
type LightBuilderOption func(*lightImpl)

// WithPosition is an option builder that sets the world-space position of the light.
//
// Parameters:
//   - position: the light position
//
// Returns:
//   - LightBuilderOption: a function that applies the position option to a lightImpl
func WithPosition(position mgl32.Vec3) LightBuilderOption {
	return func(l *lightImpl) {
		l.position = position
	}
}

// WithForward is an option builder that sets the look direction of the light.
// The direction is normalized before storing; zero vectors are ignored.
//
// Parameters:
//   - forward: the direction
//
// Returns:
//   - LightBuilderOption: a function that applies the direction option to a lightImpl
func WithForward(forward mgl32.Vec3) LightBuilderOption {
	return func(l *lightImpl) {
		if f, ok := common.SafeNormalize(forward); ok {
			l.forward = f
		}
	}
}

// WithLookAt points the light from position toward target.
//
// Parameters:
//   - position: the light position
//   - target: the point the light looks at
//
// Returns:
//   - LightBuilderOption: a function that applies both position and direction
func WithLookAt(position, target mgl32.Vec3) LightBuilderOption {
	return func(l *lightImpl) {
		l.position = position
		if f, ok := common.SafeNormalize(target.Sub(position)); ok {
			l.forward = f
		}
	}
}

// WithColor is an option builder that sets the RGB color of the light.
func WithColor(color mgl32.Vec3) LightBuilderOption {
	return func(l *lightImpl) {
		l.color = color
	}
}

// WithSpecularIntensity sets the scale of the Blinn-Phong specular term.
//
// Parameters:
//   - intensity: the specular intensity, 1 by default
//
// Returns:
//   - LightBuilderOption: a function that applies the intensity option to a lightImpl
func WithSpecularIntensity(intensity float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.specularIntensity = intensity
	}
}

// WithLightFrustum gives the light its own field of view and aspect ratio instead of
// reusing the eye camera's.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: width / height
//
// Returns:
//   - LightBuilderOption: a function that applies the frustum override to a lightImpl
func WithLightFrustum(fovY, aspect float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.fovY = fovY
		l.aspect = aspect
	}
}
