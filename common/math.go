package common

import (
	"cmp"
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// SliceToBytes converts any slice to a byte slice for GPU uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(unsafe.Sizeof(zero))*len(data))
}

// Clamp limits v to the closed range [lo, hi].
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Max returns the larger of a and b.
func Max[T cmp.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Lerp linearly interpolates between a and b by t.
func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// LerpVec4 linearly interpolates each component of two RGBA values.
func LerpVec4(a, b mgl32.Vec4, t float32) mgl32.Vec4 {
	return a.Add(b.Sub(a).Mul(t))
}

// SafeNormalize normalizes v, returning the zero vector and false when v is too short to normalize.
//
// Parameters:
//   - v: the vector to normalize
//
// Returns:
//   - mgl32.Vec3: the unit vector, or zero
//   - bool: false if the length was below 1e-12
func SafeNormalize(v mgl32.Vec3) (mgl32.Vec3, bool) {
	l := math32.Sqrt(v.Dot(v))
	if l < 1e-12 {
		return mgl32.Vec3{}, false
	}
	return v.Mul(1 / l), true
}

// TransformPoint applies a 4x4 matrix to a point and performs the perspective divide.
//
// Parameters:
//   - m: the transform
//   - p: the point (w = 1)
//
// Returns:
//   - mgl32.Vec3: the transformed point after dividing by w
//   - float32: the clip-space w before the divide
func TransformPoint(m mgl32.Mat4, p mgl32.Vec3) (mgl32.Vec3, float32) {
	c := m.Mul4x1(p.Vec4(1))
	if c.W() == 0 {
		return c.Vec3(), 0
	}
	return c.Vec3().Mul(1 / c.W()), c.W()
}
