// Package light describes the single shadow-casting light of the volume renderer and
// builds its view and projection matrices.
package light

import (
	"sync"

	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	mu *sync.Mutex

	position          mgl32.Vec3
	forward           mgl32.Vec3
	color             mgl32.Vec3
	specularIntensity float32

	// frustum override; zero means "use the camera's"
	fovY   float32
	aspect float32
}

// Light is a positional light that looks along a forward direction.
//
// The light shares the projection shape of the eye camera by default: ProjectionMatrix
// takes the camera's field of view and aspect ratio unless WithLightFrustum or
// SetFrustum gave the light its own.
type Light interface {
	// Position returns the world-space position of the light.
	Position() mgl32.Vec3

	// Forward returns the normalized direction the light looks along.
	Forward() mgl32.Vec3

	// Color returns the RGB color of the light.
	Color() mgl32.Vec3

	// SpecularIntensity returns the scale of the Blinn-Phong specular term.
	SpecularIntensity() float32

	// Frustum resolves the light's vertical field of view and aspect ratio.
	//
	// Parameters:
	//   - cameraFovY: the eye camera's vertical field of view in radians
	//   - cameraAspect: the eye camera's aspect ratio
	//
	// Returns:
	//   - fovY: the light's field of view, cameraFovY unless overridden
	//   - aspect: the light's aspect ratio, cameraAspect unless overridden
	Frustum(cameraFovY, cameraAspect float32) (fovY, aspect float32)

	// ViewMatrix returns the look-at matrix from the light position along Forward.
	// World +Y is the up vector unless Forward is parallel to it, in which case +Z is used.
	//
	// Returns:
	//   - mgl32.Mat4: the light view matrix
	ViewMatrix() mgl32.Mat4

	// ProjectionMatrix returns the light's perspective projection between
	// DefaultShadowNear and DefaultShadowFar.
	//
	// Parameters:
	//   - cameraFovY: the eye camera's vertical field of view in radians
	//   - cameraAspect: the eye camera's aspect ratio
	//
	// Returns:
	//   - mgl32.Mat4: the light projection matrix
	ProjectionMatrix(cameraFovY, cameraAspect float32) mgl32.Mat4

	// SetPosition sets the world-space position of the light.
	SetPosition(position mgl32.Vec3)

	// SetForward sets the look direction and normalizes it. Zero vectors are ignored.
	//
	// Parameters:
	//   - forward: the direction (will be normalized)
	SetForward(forward mgl32.Vec3)

	// SetColor sets the RGB color of the light.
	SetColor(color mgl32.Vec3)

	// SetSpecularIntensity sets the scale of the specular term.
	SetSpecularIntensity(intensity float32)

	// SetFrustum overrides the light's field of view and aspect ratio.
	// Pass zeros to follow the camera again.
	//
	// Parameters:
	//   - fovY: vertical field of view in radians
	//   - aspect: width / height
	SetFrustum(fovY, aspect float32)
}

var _ Light = &lightImpl{}

// NewLight creates a white light at (0, 2, 0) looking straight down.
//
// Parameters:
//   - opts: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - Light: a new Light instance
func NewLight(opts ...LightBuilderOption) Light {
	l := &lightImpl{
		mu:                &sync.Mutex{},
		position:          mgl32.Vec3{0, 2, 0},
		forward:           mgl32.Vec3{0, -1, 0},
		color:             mgl32.Vec3{1, 1, 1},
		specularIntensity: 1.0,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *lightImpl) Position() mgl32.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.position
}

func (l *lightImpl) Forward() mgl32.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.forward
}

func (l *lightImpl) Color() mgl32.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.color
}

func (l *lightImpl) SpecularIntensity() float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.specularIntensity
}

func (l *lightImpl) Frustum(cameraFovY, cameraAspect float32) (fovY, aspect float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fovY, aspect = cameraFovY, cameraAspect
	if l.fovY > 0 {
		fovY = l.fovY
	}
	if l.aspect > 0 {
		aspect = l.aspect
	}
	return fovY, aspect
}

func (l *lightImpl) ViewMatrix() mgl32.Mat4 {
	l.mu.Lock()
	defer l.mu.Unlock()

	up := mgl32.Vec3{0, 1, 0}
	if math32.Abs(l.forward.Dot(up)) > 0.999 {
		up = mgl32.Vec3{0, 0, 1}
	}
	return mgl32.LookAtV(l.position, l.position.Add(l.forward), up)
}

func (l *lightImpl) ProjectionMatrix(cameraFovY, cameraAspect float32) mgl32.Mat4 {
	fovY, aspect := l.Frustum(cameraFovY, cameraAspect)
	return mgl32.Perspective(fovY, aspect, DefaultShadowNear, DefaultShadowFar)
}

func (l *lightImpl) SetPosition(position mgl32.Vec3) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.position = position
}

func (l *lightImpl) SetForward(forward mgl32.Vec3) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if f, ok := common.SafeNormalize(forward); ok {
		l.forward = f
	}
}

func (l *lightImpl) SetColor(color mgl32.Vec3) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.color = color
}

func (l *lightImpl) SetSpecularIntensity(intensity float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.specularIntensity = intensity
}

func (l *lightImpl) SetFrustum(fovY, aspect float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fovY = fovY
	l.aspect = aspect
}
