package rc1shadowmap

import (
	"bytes"
	_ "embed"
	"encoding/binary"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// GPUShadowMapUniformsSource is the canonical WGSL definition of the ShadowMapUniforms struct.
// Matches GPUShadowMapUniforms layout exactly (128 bytes).
//
//go:embed assets/shadow_map_uniforms.wgsl
var GPUShadowMapUniformsSource string

// GPUShadowMapUniforms parameterizes the shadow-map pass. The light rays are generated
// the same way as eye rays, from the light's inverse view matrix and frustum.
// Size: 128 bytes.
type GPUShadowMapUniforms struct {
	LightInverseView mgl32.Mat4 // offset 0
	LightPosition    mgl32.Vec3 // offset 64
	TanHalfFovY      float32    // offset 76
	BoxMin           mgl32.Vec3 // offset 80
	Aspect           float32    // offset 92
	BoxMax           mgl32.Vec3 // offset 96
	StepSize         float32    // offset 108
	ReferenceStep    float32    // offset 112
	Width            uint32     // offset 116
	Height           uint32     // offset 120
	_                uint32     // offset 124: pad to 16-byte struct alignment
}

// Size returns the size of the GPUShadowMapUniforms struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUShadowMapUniforms) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the uniforms in WGSL layout.
//
// Returns:
//   - []byte: 128-byte buffer ready for GPU upload.
func (g *GPUShadowMapUniforms) Marshal() []byte {
	return marshalUniforms(g, g.Size())
}

// GPURayMarchingUniformsSource is the canonical WGSL definition of the RayMarchingUniforms
// struct. Matches GPURayMarchingUniforms layout exactly (336 bytes).
//
//go:embed assets/ray_marching_uniforms.wgsl
var GPURayMarchingUniformsSource string

// GPURayMarchingUniforms parameterizes the eye pass. Flags are 0 or 1.
// Size: 336 bytes.
type GPURayMarchingUniforms struct {
	InverseView          mgl32.Mat4 // offset 0
	LightViewProjection  mgl32.Mat4 // offset 64
	LightView            mgl32.Mat4 // offset 128
	Eye                  mgl32.Vec3 // offset 192
	TanHalfFovY          float32    // offset 204
	LightPosition        mgl32.Vec3 // offset 208
	Aspect               float32    // offset 220
	LightColor           mgl32.Vec3 // offset 224
	StepSize             float32    // offset 236
	BoxMin               mgl32.Vec3 // offset 240
	ReferenceStep        float32    // offset 252
	BoxMax               mgl32.Vec3 // offset 256
	ShadowNear           float32    // offset 268
	Background           mgl32.Vec4 // offset 272
	Ka                   float32    // offset 288
	Kd                   float32    // offset 292
	Ks                   float32    // offset 296
	Shininess            float32    // offset 300
	SpecularIntensity    float32    // offset 304
	ShadowFar            float32    // offset 308
	ApplyOcclusion       uint32     // offset 312
	ApplyShadow          uint32     // offset 316
	ApplyGradientShading uint32     // offset 320
	Width                uint32     // offset 324
	Height               uint32     // offset 328
	_                    uint32     // offset 332: pad to 16-byte struct alignment
}

// Size returns the size of the GPURayMarchingUniforms struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPURayMarchingUniforms) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the uniforms in WGSL layout.
//
// Returns:
//   - []byte: 336-byte buffer ready for GPU upload.
func (g *GPURayMarchingUniforms) Marshal() []byte {
	return marshalUniforms(g, g.Size())
}

// marshalUniforms writes a struct of 4-byte fields in declaration order. Blank padding
// fields are written as zeros.
func marshalUniforms(v any, size int) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, size))
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		panic("rc1shadowmap: marshal uniforms: " + err.Error())
	}
	return buf.Bytes()
}

func boolToUint(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
