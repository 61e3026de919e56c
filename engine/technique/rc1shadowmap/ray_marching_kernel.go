package rc1shadowmap

import (
	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer"
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer/shader"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// rayMarchingInputs are the resources bound to the eye-pass kernel. Gradient is a
// placeholder texture when gradient shading is unavailable.
type rayMarchingInputs struct {
	volume           renderer.Texture
	transferFunction renderer.Texture
	gradient         renderer.Texture
	shadowMap        renderer.Texture
	output           renderer.Texture
}

// eyeRaySamplers are the host views of rayMarchingInputs read by traceEyeRay.
type eyeRaySamplers struct {
	volume           renderer.HostTexture
	transferFunction renderer.HostTexture
	gradient         renderer.HostTexture
	shadowMap        renderer.HostTexture
}

// newRayMarchingKernel builds the shadow-aware eye pass. The host implementation reads u
// directly, so u must outlive the kernel.
//
// Parameters:
//   - r: the renderer
//   - s: the ray_marching.wgsl shader
//   - u: the uniform block
//   - in: the bound textures
//
// Returns:
//   - renderer.Kernel: the kernel
//   - error: a binding mismatch or backend error
func newRayMarchingKernel(r renderer.Renderer, s shader.Shader, u *GPURayMarchingUniforms, in rayMarchingInputs) (renderer.Kernel, error) {
	desc := renderer.KernelDescriptor{
		Label:  "Ray Marching Pass",
		Shader: s,
		Bindings: []renderer.Binding{
			{Name: "params", Uniform: u},
			{Name: "tex_volume", Texture: in.volume},
			{Name: "tex_transfer_function", Texture: in.transferFunction},
			{Name: "tex_gradient", Texture: in.gradient},
			{Name: "tex_shadow_map", Texture: in.shadowMap},
			{Name: "linear_sampler", Sampler: &common.SamplerStagingData{}},
			{Name: "output", Texture: in.output},
		},
	}
	if host, ok := hostTextures(in.volume, in.transferFunction, in.gradient, in.shadowMap, in.output); ok {
		samplers := eyeRaySamplers{
			volume:           host[0],
			transferFunction: host[1],
			gradient:         host[2],
			shadowMap:        host[3],
		}
		output := host[4]
		desc.Host = func(x, y int) {
			if x >= int(u.Width) || y >= int(u.Height) {
				return
			}
			output.Store(x, y, traceEyeRay(u, x, y, samplers))
		}
	}
	return r.CreateKernel(desc)
}

// traceEyeRay renders pixel (x, y) of the output image.
func traceEyeRay(u *GPURayMarchingUniforms, x, y int, s eyeRaySamplers) mgl32.Vec4 {
	dir := pixelRayDirection(x, y, int(u.Width), int(u.Height), u.TanHalfFovY, u.Aspect, u.InverseView)

	tStart, tEnd := float32(0), farthestCornerDistance(u.Eye, u.BoxMin, u.BoxMax)
	if u.ApplyOcclusion != 0 {
		hit, tNear, tFar := RayBoxIntersection(u.Eye, dir, u.BoxMin, u.BoxMax)
		if !hit {
			return u.Background
		}
		tStart, tEnd = tNear, tFar
	}

	steps, dt := marchSteps(tEnd-tStart, u.StepSize)
	var color mgl32.Vec3
	var opacity float32
	for i := 0; i < steps; i++ {
		p := u.Eye.Add(dir.Mul(tStart + (float32(i)+0.5)*dt))
		uvw := worldToTexture(p, u.BoxMin, u.BoxMax)
		var density float32
		if insideBox(p, u.BoxMin, u.BoxMax) {
			density = sampleDensity(s.volume, uvw)
		}
		classified := s.transferFunction.Sample1D(density)
		alpha := opacityCorrection(classified[3], dt, u.ReferenceStep)
		if alpha < minSampleAlpha {
			continue
		}

		rgb := classified.Vec3()
		if u.ApplyGradientShading != 0 {
			rgb = blinnPhong(u, rgb, p, s.gradient.Sample3D(uvw[0], uvw[1], uvw[2]).Vec3())
		}
		if u.ApplyShadow != 0 {
			rgb = rgb.Mul(shadowTransmittance(u, p, s.shadowMap))
		}

		weight := (1 - opacity) * alpha
		color = color.Add(rgb.Mul(weight))
		opacity += weight
		if opacity >= opacitySaturation {
			break
		}
	}
	return compositeOver(color, opacity, u.Background)
}

// blinnPhong shades a classified color with the normal -normalize(gradient). A zero
// gradient leaves the color unshaded.
func blinnPhong(u *GPURayMarchingUniforms, color, p, gradient mgl32.Vec3) mgl32.Vec3 {
	magnitude := gradient.Len()
	if magnitude < 1e-6 {
		return color
	}
	n := gradient.Mul(-1 / magnitude)
	l := u.LightPosition.Sub(p).Normalize()
	v := u.Eye.Sub(p).Normalize()

	var specular float32
	if h, ok := common.SafeNormalize(l.Add(v)); ok {
		specular = math32.Pow(math32.Max(n.Dot(h), 0), u.Shininess)
	}
	diffuse := color.Mul(u.Kd * math32.Max(n.Dot(l), 0))
	lit := diffuse.Add(mgl32.Vec3{1, 1, 1}.Mul(u.Ks * u.SpecularIntensity * specular))
	return color.Mul(u.Ka).Add(mgl32.Vec3{
		u.LightColor[0] * lit[0],
		u.LightColor[1] * lit[1],
		u.LightColor[2] * lit[2],
	})
}

// shadowTransmittance returns the light transmittance at p from the shadow map. Points
// outside the light frustum, or off the light ray's path through the box, are fully lit.
func shadowTransmittance(u *GPURayMarchingUniforms, p mgl32.Vec3, shadowMap renderer.HostTexture) float32 {
	clip := u.LightViewProjection.Mul4x1(p.Vec4(1))
	if clip[3] <= 0 {
		return 1
	}
	ndcX, ndcY := clip[0]/clip[3], clip[1]/clip[3]
	depth := -u.LightView.Mul4x1(p.Vec4(1))[2]
	if math32.Abs(ndcX) > 1 || math32.Abs(ndcY) > 1 || depth < u.ShadowNear || depth > u.ShadowFar {
		return 1
	}
	layers := shadowMap.Sample2D(ndcX*0.5+0.5, 0.5-ndcY*0.5)

	toSample := p.Sub(u.LightPosition)
	dist := toSample.Len()
	if dist <= 0 {
		return 1
	}
	hit, tNear, tFar := RayBoxIntersection(u.LightPosition, toSample.Mul(1/dist), u.BoxMin, u.BoxMax)
	if !hit || tFar <= tNear {
		return 1
	}
	return interpolateLayers(layers, common.Clamp((dist-tNear)/(tFar-tNear), 0, 1))
}
