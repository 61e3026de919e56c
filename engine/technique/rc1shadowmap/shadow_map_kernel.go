package rc1shadowmap

import (
	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/Fastiz/cpp-volume-rendering/engine/light"
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer"
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// fullyTransmissive is the shadow map value of a light ray that misses the volume.
var fullyTransmissive = mgl32.Vec4{1, 1, 1, 1}

// shadowMapInputs are the resources bound to the shadow-map kernel.
type shadowMapInputs struct {
	volume           renderer.Texture
	transferFunction renderer.Texture
	shadowMap        renderer.Texture
}

// newShadowMapKernel builds the shadow-map pass. The host implementation reads u directly,
// so u must outlive the kernel.
//
// Parameters:
//   - r: the renderer
//   - s: the shadow_map.wgsl shader
//   - u: the uniform block
//   - in: the bound textures
//
// Returns:
//   - renderer.Kernel: the kernel
//   - error: a binding mismatch or backend error
func newShadowMapKernel(r renderer.Renderer, s shader.Shader, u *GPUShadowMapUniforms, in shadowMapInputs) (renderer.Kernel, error) {
	desc := renderer.KernelDescriptor{
		Label:  "Shadow Map Pass",
		Shader: s,
		Bindings: []renderer.Binding{
			{Name: "params", Uniform: u},
			{Name: "tex_volume", Texture: in.volume},
			{Name: "tex_transfer_function", Texture: in.transferFunction},
			{Name: "linear_sampler", Sampler: &common.SamplerStagingData{}},
			{Name: "shadow_map", Texture: in.shadowMap},
		},
	}
	if host, ok := hostTextures(in.volume, in.transferFunction, in.shadowMap); ok {
		volume, tf, shadowMap := host[0], host[1], host[2]
		desc.Host = func(x, y int) {
			if x >= int(u.Width) || y >= int(u.Height) {
				return
			}
			shadowMap.Store(x, y, traceLightRay(u, x, y, volume, tf))
		}
	}
	return r.CreateKernel(desc)
}

// traceLightRay marches the light ray through shadow map texel (x, y).
//
// Returns:
//   - mgl32.Vec4: the transmittance at each of light.ShadowLayerFractions, or
//     fullyTransmissive when the ray misses the volume
func traceLightRay(u *GPUShadowMapUniforms, x, y int, volume, tf renderer.HostTexture) mgl32.Vec4 {
	dir := pixelRayDirection(x, y, int(u.Width), int(u.Height), u.TanHalfFovY, u.Aspect, u.LightInverseView)
	hit, tNear, tFar := RayBoxIntersection(u.LightPosition, dir, u.BoxMin, u.BoxMax)
	if !hit {
		return fullyTransmissive
	}

	steps, dt := marchSteps(tFar-tNear, u.StepSize)
	layers := fullyTransmissive
	layer := 0
	transmittance := float32(1)
	for i := 0; i < steps; i++ {
		p := u.LightPosition.Add(dir.Mul(tNear + (float32(i)+0.5)*dt))
		density := sampleDensity(volume, worldToTexture(p, u.BoxMin, u.BoxMax))
		alpha := opacityCorrection(tf.Sample1D(density)[3], dt, u.ReferenceStep)
		transmittance *= 1 - alpha

		marched := float32(i+1) / float32(steps)
		for layer < light.ShadowLayers && marched >= light.ShadowLayerFractions[layer] {
			layers[layer] = transmittance
			layer++
		}
		if transmittance < light.ShadowTerminationThreshold {
			break
		}
	}
	for ; layer < light.ShadowLayers; layer++ {
		layers[layer] = transmittance
	}
	return layers
}
