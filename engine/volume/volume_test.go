package volume

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func near(a, b, eps float32) bool {
	return math.Abs(float64(a-b)) <= float64(eps)
}

func TestNewValidates(t *testing.T) {
	if _, err := New([3]int{2, 2, 0}, nil); err == nil {
		t.Fatalf("expected error for zero resolution")
	}
	if _, err := New([3]int{2, 2, 2}, make([]float32, 7)); err == nil {
		t.Fatalf("expected error for short data")
	}
	if _, err := New([3]int{1, 1, 1}, []float32{0}, WithVoxelSize(1, 0, 1)); err == nil {
		t.Fatalf("expected error for zero voxel size")
	}
}

func TestExtentsAndBox(t *testing.T) {
	v, err := New([3]int{4, 2, 8}, make([]float32, 64), WithVoxelSize(0.5, 1, 0.25), WithScale(2, 1, 1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, want := v.Extents(), (mgl32.Vec3{4, 2, 2}); got != want {
		t.Fatalf("Extents = %v, want %v", got, want)
	}
	if got := v.BoxMin(); got != (mgl32.Vec3{-2, -1, -1}) {
		t.Fatalf("BoxMin = %v", got)
	}
	if got := v.WorldToTexture(mgl32.Vec3{0, 0, 0}); got != (mgl32.Vec3{0.5, 0.5, 0.5}) {
		t.Fatalf("WorldToTexture(origin) = %v", got)
	}
}

func TestSampleMatchesVoxelCenters(t *testing.T) {
	data := make([]float32, 27)
	for i := range data {
		data[i] = float32(i) / 26
	}
	v, err := New([3]int{3, 3, 3}, data)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for z := range 3 {
		for y := range 3 {
			for x := range 3 {
				uvw := mgl32.Vec3{(float32(x) + 0.5) / 3, (float32(y) + 0.5) / 3, (float32(z) + 0.5) / 3}
				if got, want := v.Sample(uvw), v.Value(x, y, z); !near(got, want, 1e-6) {
					t.Fatalf("Sample at voxel (%d,%d,%d) = %v, want %v", x, y, z, got, want)
				}
			}
		}
	}
	// halfway between voxel 0 and 1 along x
	if got, want := v.Sample(mgl32.Vec3{1.0 / 3, 0.5 / 3, 0.5 / 3}), (v.Value(0, 0, 0)+v.Value(1, 0, 0))/2; !near(got, want, 1e-6) {
		t.Fatalf("Sample between voxels = %v, want %v", got, want)
	}
}

func TestReadRawNormalizes(t *testing.T) {
	res := [3]int{2, 1, 1}

	v, err := ReadRaw(bytes.NewReader([]byte{0, 255}), res, FormatUint8)
	if err != nil {
		t.Fatalf("uint8: %v", err)
	}
	if v.Value(0, 0, 0) != 0 || v.Value(1, 0, 0) != 1 {
		t.Fatalf("uint8 data = %v", v.Data())
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, []uint16{65535, 0})
	v, err = ReadRaw(&buf, res, FormatUint16)
	if err != nil {
		t.Fatalf("uint16: %v", err)
	}
	if v.Value(0, 0, 0) != 1 || v.Value(1, 0, 0) != 0 {
		t.Fatalf("uint16 data = %v", v.Data())
	}

	buf.Reset()
	binary.Write(&buf, binary.LittleEndian, []float32{-3, 5})
	v, err = ReadRaw(&buf, res, FormatFloat32)
	if err != nil {
		t.Fatalf("float32: %v", err)
	}
	if v.Value(0, 0, 0) != 0 || v.Value(1, 0, 0) != 1 {
		t.Fatalf("float32 data = %v", v.Data())
	}

	if _, err := ReadRaw(bytes.NewReader([]byte{1}), res, FormatUint8); err == nil {
		t.Fatalf("expected error for a short stream")
	}
	if _, err := ParseDataFormat("int64"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestSphereDensity(t *testing.T) {
	v, err := NewSphere(32, 0.5)
	if err != nil {
		t.Fatalf("NewSphere: %v", err)
	}
	if got := v.Sample(mgl32.Vec3{0.5, 0.5, 0.5}); !near(got, 1, 1e-6) {
		t.Fatalf("center density = %v, want 1", got)
	}
	if got := v.Value(0, 0, 0); got != 0 {
		t.Fatalf("corner density = %v, want 0", got)
	}
	if v.Name() != "sphere" {
		t.Fatalf("name = %q", v.Name())
	}
}

func TestGradientOfRamp(t *testing.T) {
	const n = 5
	data := make([]float32, n*n*n)
	for z := range n {
		for y := range n {
			for x := range n {
				data[(z*n+y)*n+x] = float32(x) / (n - 1)
			}
		}
	}
	v, err := New([3]int{n, n, n}, data, WithVoxelSize(2, 1, 1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g := ComputeGradient(v)
	// 0.25 per voxel over a spacing of 2 world units
	want := mgl32.Vec3{0.125, 0, 0}
	for _, p := range [][3]int{{0, 0, 0}, {2, 2, 2}, {4, 1, 3}} {
		if got := g.At(p[0], p[1], p[2]); !got.ApproxEqualThreshold(want, 1e-6) {
			t.Fatalf("gradient at %v = %v, want %v", p, got, want)
		}
	}
	td := g.ToTextureData()
	if td.Channels != 4 || len(td.Texels) != n*n*n*4 || !near(td.Texels[3], 0.125, 1e-6) {
		t.Fatalf("gradient texture data = %d channels, %d texels, |g| = %v", td.Channels, len(td.Texels), td.Texels[3])
	}
}

func TestSphereGradientPointsInward(t *testing.T) {
	v, err := NewSphere(32, 0.5)
	if err != nil {
		t.Fatalf("NewSphere: %v", err)
	}
	g := ComputeGradient(v)
	// on the +x surface, density falls outward so the gradient points to -x
	surface := mgl32.Vec3{0.75, 0.5, 0.5}
	d := g.Sample(surface)
	if d[0] >= 0 || math.Abs(float64(d[1])) > math.Abs(float64(d[0]))*0.1 {
		t.Fatalf("gradient at +x surface = %v, want pointing to -x", d)
	}
}
