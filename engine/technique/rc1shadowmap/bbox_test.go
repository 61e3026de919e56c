package rc1shadowmap

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestRayBoxIntersection(t *testing.T) {
	boxMin, boxMax := mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}
	cases := []struct {
		name        string
		origin, dir mgl32.Vec3
		hit         bool
		near, far   float32
	}{
		{"through center", mgl32.Vec3{0, 0, -5}, mgl32.Vec3{0, 0, 1}, true, 4, 6},
		{"origin inside", mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 1}, true, 0, 1},
		{"parallel inside slab", mgl32.Vec3{0.5, 0, -5}, mgl32.Vec3{0, 0, 1}, true, 4, 6},
		{"parallel outside slab", mgl32.Vec3{2, 0, -5}, mgl32.Vec3{0, 0, 1}, false, 0, 0},
		{"box behind origin", mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, 1}, false, 0, 0},
		{"leaving through far face", mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 0, 1}, false, 0, 0},
		{"passes beside", mgl32.Vec3{0, 3, -5}, mgl32.Vec3{0, 0, 1}, false, 0, 0},
		{"negative direction", mgl32.Vec3{0, 5, 0}, mgl32.Vec3{0, -1, 0}, true, 4, 6},
		{"diagonal", mgl32.Vec3{-2, -2, 0}, mgl32.Vec3{1, 1, 0}.Normalize(), true, float32(math.Sqrt2), 3 * float32(math.Sqrt2)},
	}
	for _, c := range cases {
		hit, near, far := RayBoxIntersection(c.origin, c.dir, boxMin, boxMax)
		if hit != c.hit {
			t.Errorf("%s: hit = %v, want %v", c.name, hit, c.hit)
			continue
		}
		if !hit {
			continue
		}
		if math.Abs(float64(near-c.near)) > 1e-5 || math.Abs(float64(far-c.far)) > 1e-5 {
			t.Errorf("%s: t = [%v, %v], want [%v, %v]", c.name, near, far, c.near, c.far)
		}
	}
}

func TestFarthestCornerDistance(t *testing.T) {
	got := farthestCornerDistance(mgl32.Vec3{0, 0, 3}, mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})
	want := float32(math.Sqrt(1 + 1 + 16))
	if math.Abs(float64(got-want)) > 1e-5 {
		t.Fatalf("farthestCornerDistance = %v, want %v", got, want)
	}
}

func TestInterpolateLayers(t *testing.T) {
	layers := mgl32.Vec4{0.8, 0.6, 0.4, 0.2}
	cases := []struct {
		f, want float32
	}{
		{0, 1},
		{0.125, 0.9},
		{0.25, 0.8},
		{0.375, 0.7},
		{0.75, 0.4},
		{1, 0.2},
	}
	for _, c := range cases {
		if got := interpolateLayers(layers, c.f); math.Abs(float64(got-c.want)) > 1e-5 {
			t.Errorf("interpolateLayers(%v) = %v, want %v", c.f, got, c.want)
		}
	}
}

func TestInterpolateLayersIsMonotonicInEveryLayer(t *testing.T) {
	base := mgl32.Vec4{0.9, 0.7, 0.5, 0.3}
	for layer := 0; layer < 4; layer++ {
		darker := base
		darker[layer] *= 0.5
		for i := 0; i <= 40; i++ {
			f := float32(i) / 40
			if interpolateLayers(darker, f) > interpolateLayers(base, f)+1e-6 {
				t.Fatalf("darkening layer %d raised transmittance at f=%v", layer, f)
			}
		}
	}
}

func TestOpacityCorrection(t *testing.T) {
	if got := opacityCorrection(0.3, 1, 1); math.Abs(float64(got-0.3)) > 1e-6 {
		t.Errorf("correction at the reference step = %v, want 0.3", got)
	}
	if got := opacityCorrection(0, 0.5, 1); got != 0 {
		t.Errorf("transparent sample corrected to %v", got)
	}
	half := opacityCorrection(0.3, 0.5, 1)
	if twice := 1 - (1-half)*(1-half); math.Abs(float64(twice-0.3)) > 1e-5 {
		t.Errorf("two half steps composite to %v, want 0.3", twice)
	}
}

func TestMarchSteps(t *testing.T) {
	n, dt := marchSteps(10, 3)
	if n != 4 || math.Abs(float64(dt-2.5)) > 1e-6 {
		t.Errorf("marchSteps(10, 3) = %d, %v", n, dt)
	}
	if n, _ := marchSteps(0, 1); n != 1 {
		t.Errorf("marchSteps(0, 1) = %d samples, want 1", n)
	}
}

func TestEstimateStepSize(t *testing.T) {
	if got := EstimateStepSize(mgl32.Vec3{1, 1, 1}); math.Abs(float64(got-0.5)) > 1e-6 {
		t.Errorf("EstimateStepSize(unit voxel) = %v, want 0.5", got)
	}
	if got := EstimateStepSize(mgl32.Vec3{1e-4, 1e-4, 1e-4}); got != MinStepSize {
		t.Errorf("EstimateStepSize(tiny voxel) = %v, want %v", got, MinStepSize)
	}
}

func TestUniformSizesMatchWGSL(t *testing.T) {
	shaders, err := loadShaders("")
	if err != nil {
		t.Fatalf("loadShaders: %v", err)
	}
	shadow, ok := shaders.shadowMap.Binding("params")
	if !ok {
		t.Fatalf("shadow map shader declares no params")
	}
	var su GPUShadowMapUniforms
	if uint64(len(su.Marshal())) != shadow.Size || su.Size() != 128 {
		t.Errorf("shadow map uniforms marshal %d bytes, WGSL needs %d", len(su.Marshal()), shadow.Size)
	}

	eye, ok := shaders.rayMarching.Binding("params")
	if !ok {
		t.Fatalf("ray marching shader declares no params")
	}
	var eu GPURayMarchingUniforms
	if uint64(len(eu.Marshal())) != eye.Size || eu.Size() != 336 {
		t.Errorf("ray marching uniforms marshal %d bytes, WGSL needs %d", len(eu.Marshal()), eye.Size)
	}
}
