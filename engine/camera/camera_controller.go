package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraController owns the positional state (position, target) the camera reads from.
// Orbit methods move the eye on a sphere around the target; pan methods translate
// eye and target together along the camera's local axes.
type CameraController interface {
	orbitCameraController
	planarCameraController

	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - mgl32.Vec3: world-space camera position
	Position() mgl32.Vec3

	// Target returns the look-at point.
	//
	// Returns:
	//   - mgl32.Vec3: world-space target position
	Target() mgl32.Vec3

	// SetTarget sets the pivot point and recomputes position from spherical coordinates.
	//
	// Parameters:
	//   - target: world-space coordinates
	SetTarget(target mgl32.Vec3)

	// Zoom adjusts the orbit radius. Positive delta moves closer to the target.
	//
	// Parameters:
	//   - delta: zoom amount scaled by ZoomSpeed
	Zoom(delta float32)

	// HandleKey applies the orbit, zoom or pan action bound to a key code.
	// A/D orbit left/right, W/S orbit up/down, Q/E zoom out/in, the arrow keys pan
	// and R restores the initial orbit.
	//
	// Parameters:
	//   - keyCode: a key code from the common package
	//
	// Returns:
	//   - bool: true if the key moved the camera
	HandleKey(keyCode uint32) bool
}

// orbitCameraController defines orbit-specific control methods using spherical
// coordinates (radius, azimuth, elevation) relative to the target.
type orbitCameraController interface {
	// OrbitLeft rotates the camera left around the target by one orbit speed step.
	OrbitLeft()

	// OrbitRight rotates the camera right around the target by one orbit speed step.
	OrbitRight()

	// OrbitUp tilts the camera upward by one orbit speed step, clamped to max elevation.
	OrbitUp()

	// OrbitDown tilts the camera downward by one orbit speed step, clamped to min elevation.
	OrbitDown()

	// Radius returns the current distance from the target.
	Radius() float32

	// SetRadius sets the orbit radius, clamped to the radius bounds.
	//
	// Parameters:
	//   - radius: new distance from target
	SetRadius(radius float32)

	// Azimuth returns the horizontal angle around the Y axis in radians (0 = +Z).
	Azimuth() float32

	// SetAzimuth sets the horizontal angle and recomputes position.
	//
	// Parameters:
	//   - azimuth: new horizontal angle in radians
	SetAzimuth(azimuth float32)

	// Elevation returns the vertical angle from the horizontal plane in radians.
	Elevation() float32

	// SetElevation sets the vertical angle, clamped to the elevation bounds.
	//
	// Parameters:
	//   - elevation: new vertical angle in radians
	SetElevation(elevation float32)

	// Reset restores the radius, azimuth, elevation and target the controller was built with.
	Reset()
}

// planarCameraController defines translation along the camera's local axes.
// Panning shifts both position and target, preserving the orbit relationship.
type planarCameraController interface {
	// PanRight translates along the local right axis. Negative delta moves left.
	//
	// Parameters:
	//   - delta: pan amount scaled by PanSpeed
	PanRight(delta float32)

	// PanUp translates along the local up axis. Negative delta moves down.
	//
	// Parameters:
	//   - delta: pan amount scaled by PanSpeed
	PanUp(delta float32)
}
