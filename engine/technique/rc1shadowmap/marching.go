package rc1shadowmap

import (
	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// The host functions in this file mirror shaders/volume_sampling.wgsl and
// shaders/ray_bbox_intersection.wgsl so both backends render the same image.

const (
	// minSampleAlpha is the corrected opacity below which an eye sample is skipped.
	minSampleAlpha float32 = 1e-4

	// opacitySaturation is the accumulated opacity at which an eye ray stops.
	opacitySaturation float32 = 0.99
)

// pixelRayDirection returns the world-space direction through the center of pixel (x, y)
// of a width x height image, for a camera looking down -z in view space. Row 0 is the top.
func pixelRayDirection(x, y, width, height int, tanHalfFovY, aspect float32, inverseView mgl32.Mat4) mgl32.Vec3 {
	u := 2*(float32(x)+0.5)/float32(width) - 1
	v := 1 - 2*(float32(y)+0.5)/float32(height)
	viewDir := mgl32.Vec3{u * tanHalfFovY * aspect, v * tanHalfFovY, -1}.Normalize()
	return inverseView.Mul4x1(viewDir.Vec4(0)).Vec3().Normalize()
}

func worldToTexture(p, boxMin, boxMax mgl32.Vec3) mgl32.Vec3 {
	ext := boxMax.Sub(boxMin)
	rel := p.Sub(boxMin)
	return mgl32.Vec3{rel[0] / ext[0], rel[1] / ext[1], rel[2] / ext[2]}
}

// opacityCorrection rescales an opacity classified for referenceStep to a step of dt.
func opacityCorrection(alpha, dt, referenceStep float32) float32 {
	return 1 - math32.Pow(1-common.Clamp(alpha, 0, 1), dt/referenceStep)
}

// marchSteps splits a ray segment into whole steps no longer than stepSize.
//
// Returns:
//   - int: the number of samples, at least 1
//   - float32: the actual step length
func marchSteps(span, stepSize float32) (int, float32) {
	n := common.Max(int(math32.Ceil(span/stepSize)), 1)
	return n, span / float32(n)
}

// sampleDensity trilinearly samples the scalar field at normalized coordinates.
func sampleDensity(volume renderer.HostTexture, uvw mgl32.Vec3) float32 {
	return volume.Sample3D(uvw[0], uvw[1], uvw[2])[0]
}

// interpolateLayers evaluates the transmittance curve stored in a shadow map texel at
// depth fraction f, linear through (0, 1) and the four recorded layers.
func interpolateLayers(layers mgl32.Vec4, f float32) float32 {
	switch {
	case f <= 0.25:
		return common.Lerp(1, layers[0], f*4)
	case f <= 0.5:
		return common.Lerp(layers[0], layers[1], (f-0.25)*4)
	case f <= 0.75:
		return common.Lerp(layers[1], layers[2], (f-0.5)*4)
	default:
		return common.Lerp(layers[2], layers[3], (f-0.75)*4)
	}
}

// compositeOver places accumulated premultiplied color and opacity over the background.
func compositeOver(color mgl32.Vec3, opacity float32, background mgl32.Vec4) mgl32.Vec4 {
	rest := 1 - opacity
	return mgl32.Vec4{
		color[0] + rest*background[0],
		color[1] + rest*background[1],
		color[2] + rest*background[2],
		opacity + rest*background[3],
	}
}

// hostTextures returns the host views of textures created by the CPU backend. The second
// result is false when any texture lives on the GPU, in which case no host kernel is built.
func hostTextures(textures ...renderer.Texture) ([]renderer.HostTexture, bool) {
	out := make([]renderer.HostTexture, len(textures))
	for i, tex := range textures {
		ht, ok := tex.(renderer.HostTexture)
		if !ok {
			return nil, false
		}
		out[i] = ht
	}
	return out, true
}
