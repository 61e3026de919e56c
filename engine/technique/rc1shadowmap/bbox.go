package rc1shadowmap

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// parallelEpsilon is the direction component magnitude below which a ray is treated as
// parallel to a slab.
const parallelEpsilon = 1e-8

// RayBoxIntersection intersects a ray with an axis-aligned box using the slab method.
//
// When the origin is inside the box tNear is 0. The ray misses when it is parallel to a
// slab it starts outside of, when tFar < tNear, or when the box lies entirely behind
// the origin.
//
// Parameters:
//   - origin: the ray origin
//   - dir: the ray direction, not necessarily normalized
//   - boxMin, boxMax: the box corners
//
// Returns:
//   - hit: whether the ray intersects the box in front of the origin
//   - tNear, tFar: the entry and exit parameters along dir, valid when hit is true
func RayBoxIntersection(origin, dir, boxMin, boxMax mgl32.Vec3) (hit bool, tNear, tFar float32) {
	tNear = math32.Inf(-1)
	tFar = math32.Inf(1)
	for axis := 0; axis < 3; axis++ {
		o, d := origin[axis], dir[axis]
		if math32.Abs(d) < parallelEpsilon {
			if o < boxMin[axis] || o > boxMax[axis] {
				return false, 0, 0
			}
			continue
		}
		t0 := (boxMin[axis] - o) / d
		t1 := (boxMax[axis] - o) / d
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tNear = math32.Max(tNear, t0)
		tFar = math32.Min(tFar, t1)
	}
	if tFar < tNear || tFar <= 0 {
		return false, 0, 0
	}
	return true, math32.Max(tNear, 0), tFar
}

// farthestCornerDistance returns the distance from p to the farthest corner of the box.
func farthestCornerDistance(p, boxMin, boxMax mgl32.Vec3) float32 {
	var far mgl32.Vec3
	for axis := 0; axis < 3; axis++ {
		far[axis] = math32.Max(math32.Abs(p[axis]-boxMin[axis]), math32.Abs(p[axis]-boxMax[axis]))
	}
	return far.Len()
}

// insideBox reports whether p lies in the closed box.
func insideBox(p, boxMin, boxMax mgl32.Vec3) bool {
	for axis := 0; axis < 3; axis++ {
		if p[axis] < boxMin[axis] || p[axis] > boxMax[axis] {
			return false
		}
	}
	return true
}
