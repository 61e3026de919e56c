package volume

import (
	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/chewxy/math32"
)

// generate fills an n×n×n grid by evaluating f at each voxel center in [-1, 1]^3.
func generate(n int, f func(x, y, z float32) float32) []float32 {
	data := make([]float32, n*n*n)
	coord := func(i int) float32 {
		return (float32(i)+0.5)/float32(n)*2 - 1
	}
	for z := range n {
		for y := range n {
			for x := range n {
				data[(z*n+y)*n+x] = f(coord(x), coord(y), coord(z))
			}
		}
	}
	return data
}

// NewSphere creates an n³ volume holding a solid sphere of density 1 centered in the grid.
// The surface ramps from 1 to 0 over about one and a half voxels so gradients stay defined.
//
// Parameters:
//   - n: the grid size along every axis
//   - radius: the sphere radius as a fraction of the half-extent, in (0, 1]
//   - options: variadic list of VolumeBuilderOption functions
//
// Returns:
//   - StructuredVolume: the sphere volume
//   - error: an error if n is invalid
func NewSphere(n int, radius float32, options ...VolumeBuilderOption) (StructuredVolume, error) {
	edge := 3 / float32(common.Max(n, 1))
	data := generate(n, func(x, y, z float32) float32 {
		d := math32.Sqrt(x*x + y*y + z*z)
		return common.Clamp((radius-d)/edge+0.5, 0, 1)
	})
	return New([3]int{n, n, n}, data, append([]VolumeBuilderOption{WithName("sphere")}, options...)...)
}

// NewGaussian creates an n³ volume holding an isotropic gaussian blob centered in the grid,
// peaking at 1.
//
// Parameters:
//   - n: the grid size along every axis
//   - sigma: the standard deviation as a fraction of the half-extent
//   - options: variadic list of VolumeBuilderOption functions
//
// Returns:
//   - StructuredVolume: the gaussian volume
//   - error: an error if n is invalid
func NewGaussian(n int, sigma float32, options ...VolumeBuilderOption) (StructuredVolume, error) {
	twoSigma2 := 2 * sigma * sigma
	data := generate(n, func(x, y, z float32) float32 {
		return math32.Exp(-(x*x + y*y + z*z) / twoSigma2)
	})
	return New([3]int{n, n, n}, data, append([]VolumeBuilderOption{WithName("gaussian")}, options...)...)
}
