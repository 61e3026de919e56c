// Package volume holds structured scalar volumes: a regular 3D grid of samples normalized
// to [0, 1], placed in world space as an axis-aligned box centered at the origin.
package volume

import (
	"fmt"

	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// structuredVolume is the implementation of the StructuredVolume interface.
type structuredVolume struct {
	name       string
	resolution [3]int
	voxelSize  mgl32.Vec3
	scale      mgl32.Vec3
	data       []float32
}

// StructuredVolume is an immutable scalar field sampled on a regular grid.
//
// Samples are stored x-fastest, then y, then z. Voxel (i, j, k) has its center at texture
// coordinate ((i+0.5)/nx, (j+0.5)/ny, (k+0.5)/nz), matching how a 3D texture is sampled.
type StructuredVolume interface {
	// Name returns the dataset name.
	Name() string

	// Resolution returns the grid size along x, y and z.
	//
	// Returns:
	//   - [3]int: the number of samples per axis
	Resolution() [3]int

	// VoxelSize returns the spacing between samples in dataset units.
	//
	// Returns:
	//   - mgl32.Vec3: spacing along x, y and z
	VoxelSize() mgl32.Vec3

	// Scale returns the extra world-space scale applied on top of the voxel size.
	//
	// Returns:
	//   - mgl32.Vec3: per-axis scale, (1, 1, 1) by default
	Scale() mgl32.Vec3

	// Extents returns the world-space size of the volume box: resolution × voxel size × scale.
	//
	// Returns:
	//   - mgl32.Vec3: the box size
	Extents() mgl32.Vec3

	// BoxMin returns the minimum corner of the world-space box, -Extents/2.
	BoxMin() mgl32.Vec3

	// BoxMax returns the maximum corner of the world-space box, Extents/2.
	BoxMax() mgl32.Vec3

	// Value returns the sample at integer grid coordinates, clamped to the grid.
	//
	// Parameters:
	//   - x, y, z: grid coordinates
	//
	// Returns:
	//   - float32: the normalized sample
	Value(x, y, z int) float32

	// Sample trilinearly interpolates the field at normalized texture coordinates with
	// clamp-to-edge addressing.
	//
	// Parameters:
	//   - uvw: texture coordinates in [0, 1]^3
	//
	// Returns:
	//   - float32: the interpolated sample
	Sample(uvw mgl32.Vec3) float32

	// WorldToTexture maps a world-space point to texture coordinates of the box.
	//
	// Parameters:
	//   - p: a world-space point
	//
	// Returns:
	//   - mgl32.Vec3: (p - BoxMin) / Extents
	WorldToTexture(p mgl32.Vec3) mgl32.Vec3

	// Data returns the raw normalized samples. The slice must not be modified.
	Data() []float32

	// ToTextureData returns the samples as single-channel 3D staging data.
	//
	// Returns:
	//   - common.TextureStagingData: the staging data for a 3D r16float texture
	ToTextureData() common.TextureStagingData
}

var _ StructuredVolume = &structuredVolume{}

// New creates a volume from normalized samples.
//
// Parameters:
//   - resolution: the grid size, every component at least 1
//   - data: resolution[0]*resolution[1]*resolution[2] samples, x-fastest
//   - options: variadic list of VolumeBuilderOption functions
//
// Returns:
//   - StructuredVolume: the volume
//   - error: an error if the resolution or data length is invalid
func New(resolution [3]int, data []float32, options ...VolumeBuilderOption) (StructuredVolume, error) {
	for i, n := range resolution {
		if n < 1 {
			return nil, fmt.Errorf("volume: resolution[%d] = %d, must be at least 1", i, n)
		}
	}
	if want := resolution[0] * resolution[1] * resolution[2]; len(data) != want {
		return nil, fmt.Errorf("volume: have %d samples, resolution %v needs %d", len(data), resolution, want)
	}

	v := &structuredVolume{
		name:       "volume",
		resolution: resolution,
		voxelSize:  mgl32.Vec3{1, 1, 1},
		scale:      mgl32.Vec3{1, 1, 1},
		data:       data,
	}
	for _, opt := range options {
		opt(v)
	}
	for i := range 3 {
		if v.voxelSize[i] <= 0 || v.scale[i] <= 0 {
			return nil, fmt.Errorf("volume %s: voxel size %v and scale %v must be positive", v.name, v.voxelSize, v.scale)
		}
	}
	return v, nil
}

func (v *structuredVolume) Name() string {
	return v.name
}

func (v *structuredVolume) Resolution() [3]int {
	return v.resolution
}

func (v *structuredVolume) VoxelSize() mgl32.Vec3 {
	return v.voxelSize
}

func (v *structuredVolume) Scale() mgl32.Vec3 {
	return v.scale
}

func (v *structuredVolume) Extents() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(v.resolution[0]) * v.voxelSize[0] * v.scale[0],
		float32(v.resolution[1]) * v.voxelSize[1] * v.scale[1],
		float32(v.resolution[2]) * v.voxelSize[2] * v.scale[2],
	}
}

func (v *structuredVolume) BoxMin() mgl32.Vec3 {
	return v.Extents().Mul(-0.5)
}

func (v *structuredVolume) BoxMax() mgl32.Vec3 {
	return v.Extents().Mul(0.5)
}

func (v *structuredVolume) index(x, y, z int) int {
	x = common.Clamp(x, 0, v.resolution[0]-1)
	y = common.Clamp(y, 0, v.resolution[1]-1)
	z = common.Clamp(z, 0, v.resolution[2]-1)
	return (z*v.resolution[1]+y)*v.resolution[0] + x
}

func (v *structuredVolume) Value(x, y, z int) float32 {
	return v.data[v.index(x, y, z)]
}

func (v *structuredVolume) Sample(uvw mgl32.Vec3) float32 {
	var base [3]int
	var frac [3]float32
	for i := range 3 {
		f := uvw[i]*float32(v.resolution[i]) - 0.5
		fl := math32.Floor(f)
		base[i], frac[i] = int(fl), f-fl
	}
	x, y, z := base[0], base[1], base[2]
	plane := func(z int) float32 {
		a := common.Lerp(v.Value(x, y, z), v.Value(x+1, y, z), frac[0])
		b := common.Lerp(v.Value(x, y+1, z), v.Value(x+1, y+1, z), frac[0])
		return common.Lerp(a, b, frac[1])
	}
	return common.Lerp(plane(z), plane(z+1), frac[2])
}

func (v *structuredVolume) WorldToTexture(p mgl32.Vec3) mgl32.Vec3 {
	e := v.Extents()
	rel := p.Sub(v.BoxMin())
	return mgl32.Vec3{rel[0] / e[0], rel[1] / e[1], rel[2] / e[2]}
}

func (v *structuredVolume) Data() []float32 {
	return v.data
}

func (v *structuredVolume) ToTextureData() common.TextureStagingData {
	return common.TextureStagingData{
		Texels:   v.data,
		Channels: 1,
		Width:    uint32(v.resolution[0]),
		Height:   uint32(v.resolution[1]),
		Depth:    uint32(v.resolution[2]),
	}
}
