package light

import (
	"testing"

	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/go-gl/mathgl/mgl32"
)

func TestViewMatrixLooksAlongForward(t *testing.T) {
	l := NewLight(WithPosition(mgl32.Vec3{1, 2, 3}), WithForward(mgl32.Vec3{0, 0, -5}))
	view := l.ViewMatrix()

	p, _ := common.TransformPoint(view, mgl32.Vec3{1, 2, 3})
	if !p.ApproxEqualThreshold(mgl32.Vec3{}, 1e-5) {
		t.Fatalf("light position in light view = %v, want origin", p)
	}
	p, _ = common.TransformPoint(view, mgl32.Vec3{1, 2, 1})
	if !p.ApproxEqualThreshold(mgl32.Vec3{0, 0, -2}, 1e-5) {
		t.Fatalf("point ahead of the light = %v, want (0, 0, -2)", p)
	}
}

func TestViewMatrixUpFallback(t *testing.T) {
	// Default light looks straight down, parallel to world up.
	l := NewLight()
	view := l.ViewMatrix()
	for i := 0; i < 16; i++ {
		if v := view[i]; v != v {
			t.Fatalf("view matrix has NaN at %d: %v", i, view)
		}
	}
	p, _ := common.TransformPoint(view, mgl32.Vec3{0, 0, 0})
	if !p.ApproxEqualThreshold(mgl32.Vec3{0, 0, -2}, 1e-5) {
		t.Fatalf("origin in light view = %v, want (0, 0, -2)", p)
	}
}

func TestFrustumFollowsCameraUnlessOverridden(t *testing.T) {
	l := NewLight()
	if fov, aspect := l.Frustum(1, 1.5); fov != 1 || aspect != 1.5 {
		t.Fatalf("Frustum = %v, %v, want the camera's", fov, aspect)
	}
	if l.ProjectionMatrix(1, 1.5) != mgl32.Perspective(1, 1.5, DefaultShadowNear, DefaultShadowFar) {
		t.Fatalf("projection does not use the camera frustum")
	}

	l = NewLight(WithLightFrustum(0.5, 1))
	if fov, aspect := l.Frustum(1, 1.5); fov != 0.5 || aspect != 1 {
		t.Fatalf("Frustum = %v, %v, want the override", fov, aspect)
	}
	l.SetFrustum(0, 0)
	if fov, _ := l.Frustum(1, 1.5); fov != 1 {
		t.Fatalf("clearing the override kept fov %v", fov)
	}
}

func TestWithLookAtAndZeroForward(t *testing.T) {
	l := NewLight(WithLookAt(mgl32.Vec3{0, 0, 4}, mgl32.Vec3{}))
	if f := l.Forward(); !f.ApproxEqualThreshold(mgl32.Vec3{0, 0, -1}, 1e-6) {
		t.Fatalf("Forward = %v", f)
	}
	l.SetForward(mgl32.Vec3{})
	if f := l.Forward(); !f.ApproxEqualThreshold(mgl32.Vec3{0, 0, -1}, 1e-6) {
		t.Fatalf("zero forward was accepted: %v", f)
	}
}
