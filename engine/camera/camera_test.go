package camera

import (
	"testing"

	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func TestControllerOrbitPosition(t *testing.T) {
	cc := NewCameraController(WithRadius(2), WithElevation(0), WithAzimuth(0))
	if got := cc.Position(); !got.ApproxEqualThreshold(mgl32.Vec3{0, 0, 2}, 1e-6) {
		t.Fatalf("Position = %v, want (0, 0, 2)", got)
	}

	cc.SetAzimuth(math32.Pi / 2)
	if got := cc.Position(); !got.ApproxEqualThreshold(mgl32.Vec3{2, 0, 0}, 1e-5) {
		t.Fatalf("Position after azimuth = %v, want (2, 0, 0)", got)
	}

	cc.SetElevation(10)
	if e := cc.Elevation(); e >= math32.Pi/2 {
		t.Fatalf("elevation %v not clamped below Pi/2", e)
	}
	cc.SetRadius(1000)
	if r := cc.Radius(); r != 100 {
		t.Fatalf("radius = %v, want clamped 100", r)
	}
}

func TestControllerKeysAndReset(t *testing.T) {
	cc := NewCameraController(WithRadius(3), WithZoomSpeed(1))
	start := cc.Position()

	if !cc.HandleKey(common.KeyE) {
		t.Fatalf("KeyE not handled")
	}
	if r := cc.Radius(); r != 2 {
		t.Fatalf("radius after zoom in = %v, want 2", r)
	}
	cc.HandleKey(common.KeyA)
	cc.HandleKey(common.KeyRight)
	if cc.Target() == (mgl32.Vec3{}) {
		t.Fatalf("pan did not move the target")
	}
	if cc.HandleKey(common.KeyM) {
		t.Fatalf("unbound key reported as handled")
	}

	cc.HandleKey(common.KeyR)
	if got := cc.Position(); !got.ApproxEqualThreshold(start, 1e-5) {
		t.Fatalf("Position after reset = %v, want %v", got, start)
	}
}

func TestPanKeepsOrbitRelationship(t *testing.T) {
	cc := NewCameraController(WithPanSpeed(0.5))
	before := cc.Position().Sub(cc.Target())
	cc.PanUp(1)
	cc.PanRight(-1)
	after := cc.Position().Sub(cc.Target())
	if !before.ApproxEqualThreshold(after, 1e-5) {
		t.Fatalf("eye-target offset changed from %v to %v", before, after)
	}
}

func TestCameraMatrices(t *testing.T) {
	c := NewCamera(
		WithFovY(mgl32.DegToRad(90)),
		WithAspect(2),
		WithController(NewCameraController(WithRadius(4), WithElevation(0))),
	)

	if got := c.Eye(); !got.ApproxEqualThreshold(mgl32.Vec3{0, 0, 4}, 1e-5) {
		t.Fatalf("Eye = %v", got)
	}
	if got := c.TanHalfFovY(); math32.Abs(got-1) > 1e-5 {
		t.Fatalf("TanHalfFovY = %v, want 1", got)
	}

	// The target sits on the view axis at depth -radius.
	p, _ := common.TransformPoint(c.ViewMatrix(), mgl32.Vec3{})
	if !p.ApproxEqualThreshold(mgl32.Vec3{0, 0, -4}, 1e-5) {
		t.Fatalf("target in view space = %v", p)
	}
	// The inverse view maps the view origin back to the eye.
	e, _ := common.TransformPoint(c.InverseViewMatrix(), mgl32.Vec3{})
	if !e.ApproxEqualThreshold(c.Eye(), 1e-5) {
		t.Fatalf("inverse view origin = %v, want %v", e, c.Eye())
	}
	ndc, _ := common.TransformPoint(c.ViewProjectionMatrix(), mgl32.Vec3{})
	if math32.Abs(ndc.X()) > 1e-5 || math32.Abs(ndc.Y()) > 1e-5 {
		t.Fatalf("target projects to %v, want the image center", ndc)
	}

	c.SetAspect(0)
	if c.Aspect() != 2 {
		t.Fatalf("non-positive aspect was accepted")
	}
}

func TestCameraFollowsControllerOnUpdate(t *testing.T) {
	cc := NewCameraController(WithRadius(2))
	c := NewCamera(WithController(cc))
	cc.SetRadius(5)
	if c.Eye().Len() > 2.01 {
		t.Fatalf("eye moved before Update")
	}
	c.Update()
	if l := c.Eye().Len(); math32.Abs(l-5) > 1e-4 {
		t.Fatalf("eye distance after Update = %v, want 5", l)
	}
}

func TestControllerBuilderOptions(t *testing.T) {
	target := mgl32.Vec3{8, 8, 8}
	cc := NewCameraController(
		WithTarget(target),
		WithRadius(4),
		WithOrbitSpeed(0.25),
		WithPanSpeed(2),
	)
	if got := cc.Position().Sub(target).Len(); math32.Abs(got-4) > 1e-5 {
		t.Fatalf("distance to target = %v, want 4", got)
	}

	cc.OrbitRight()
	if got := cc.Azimuth(); math32.Abs(got-0.25) > 1e-6 {
		t.Fatalf("azimuth after one orbit step = %v, want 0.25", got)
	}

	cc.PanRight(1.5)
	if moved := cc.Target().Sub(target).Len(); math32.Abs(moved-3) > 1e-5 {
		t.Fatalf("target moved %v, want 3", moved)
	}
}
