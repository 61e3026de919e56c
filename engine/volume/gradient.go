package volume

import (
	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// GradientField is a per-voxel gradient of a StructuredVolume in world units.
type GradientField struct {
	resolution [3]int
	data       []mgl32.Vec3
}

// ComputeGradient builds the central-difference gradient of v. Boundary voxels use the
// clamped neighbor, which makes the difference one-sided there. Differences are divided by
// the world-space distance between the neighbors so that anisotropic voxels shade correctly.
//
// Parameters:
//   - v: the source volume
//
// Returns:
//   - *GradientField: the gradient field
func ComputeGradient(v StructuredVolume) *GradientField {
	res := v.Resolution()
	spacing := mgl32.Vec3{
		v.VoxelSize()[0] * v.Scale()[0],
		v.VoxelSize()[1] * v.Scale()[1],
		v.VoxelSize()[2] * v.Scale()[2],
	}
	g := &GradientField{
		resolution: res,
		data:       make([]mgl32.Vec3, res[0]*res[1]*res[2]),
	}
	// distance between the two samples of a central difference, in world units
	span := func(i, n int, h float32) float32 {
		lo, hi := common.Max(i-1, 0), min(i+1, n-1)
		return common.Max(float32(hi-lo), 1) * h
	}
	for z := range res[2] {
		for y := range res[1] {
			for x := range res[0] {
				g.data[(z*res[1]+y)*res[0]+x] = mgl32.Vec3{
					(v.Value(x+1, y, z) - v.Value(x-1, y, z)) / span(x, res[0], spacing[0]),
					(v.Value(x, y+1, z) - v.Value(x, y-1, z)) / span(y, res[1], spacing[1]),
					(v.Value(x, y, z+1) - v.Value(x, y, z-1)) / span(z, res[2], spacing[2]),
				}
			}
		}
	}
	return g
}

// Resolution returns the grid size of the field.
func (g *GradientField) Resolution() [3]int {
	return g.resolution
}

// At returns the gradient at integer grid coordinates, clamped to the grid.
func (g *GradientField) At(x, y, z int) mgl32.Vec3 {
	x = common.Clamp(x, 0, g.resolution[0]-1)
	y = common.Clamp(y, 0, g.resolution[1]-1)
	z = common.Clamp(z, 0, g.resolution[2]-1)
	return g.data[(z*g.resolution[1]+y)*g.resolution[0]+x]
}

// Sample trilinearly interpolates the gradient at normalized texture coordinates.
func (g *GradientField) Sample(uvw mgl32.Vec3) mgl32.Vec3 {
	var base [3]int
	var frac [3]float32
	for i := range 3 {
		f := uvw[i]*float32(g.resolution[i]) - 0.5
		fl := math32.Floor(f)
		base[i], frac[i] = int(fl), f-fl
	}
	x, y, z := base[0], base[1], base[2]
	lerp := func(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
		return a.Add(b.Sub(a).Mul(t))
	}
	plane := func(z int) mgl32.Vec3 {
		a := lerp(g.At(x, y, z), g.At(x+1, y, z), frac[0])
		b := lerp(g.At(x, y+1, z), g.At(x+1, y+1, z), frac[0])
		return lerp(a, b, frac[1])
	}
	return lerp(plane(z), plane(z+1), frac[2])
}

// ToTextureData packs the field as RGBA staging data: xyz gradient and its magnitude in alpha.
//
// Returns:
//   - common.TextureStagingData: the staging data for a 3D rgba16float texture
func (g *GradientField) ToTextureData() common.TextureStagingData {
	texels := make([]float32, 0, len(g.data)*4)
	for _, d := range g.data {
		texels = append(texels, d[0], d[1], d[2], d.Len())
	}
	return common.TextureStagingData{
		Texels:   texels,
		Channels: 4,
		Width:    uint32(g.resolution[0]),
		Height:   uint32(g.resolution[1]),
		Depth:    uint32(g.resolution[2]),
	}
}
