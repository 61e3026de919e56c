package volume

import "github.com/go-gl/mathgl/mgl32"

// VolumeBuilderOption is a function that configures a volume during construction.
type VolumeBuilderOption func(*structuredVolume)

// WithName sets the dataset name shown in logs and the viewer title.
//
// Parameters:
//   - name: the dataset name
//
// Returns:
//   - VolumeBuilderOption: a function that applies the name option to a volume
func WithName(name string) VolumeBuilderOption {
	return func(v *structuredVolume) {
		v.name = name
	}
}

// WithVoxelSize sets the spacing between samples. Defaults to (1, 1, 1).
//
// Parameters:
//   - x, y, z: the spacing along each axis, must be positive
//
// Returns:
//   - VolumeBuilderOption: a function that applies the voxel size option to a volume
func WithVoxelSize(x, y, z float32) VolumeBuilderOption {
	return func(v *structuredVolume) {
		v.voxelSize = mgl32.Vec3{x, y, z}
	}
}

// WithScale sets the world-space scale applied on top of the voxel size. Defaults to (1, 1, 1).
//
// Parameters:
//   - x, y, z: the scale along each axis, must be positive
//
// Returns:
//   - VolumeBuilderOption: a function that applies the scale option to a volume
func WithScale(x, y, z float32) VolumeBuilderOption {
	return func(v *structuredVolume) {
		v.scale = mgl32.Vec3{x, y, z}
	}
}
