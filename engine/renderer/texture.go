package renderer

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync/atomic"

	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/x448/float16"
)

// ErrTextureReleased is returned when a released texture is written, bound or dispatched against.
var ErrTextureReleased = errors.New("texture has been released")

// TextureFormat is the texel format of a renderer texture.
type TextureFormat int

const (
	// TextureFormatR16Float is a single half-float channel, used for scalar volumes.
	TextureFormatR16Float TextureFormat = iota

	// TextureFormatRGBA16Float is four half-float channels, used for the shadow map,
	// transfer function and gradient textures.
	TextureFormatRGBA16Float

	// TextureFormatRGBA8Unorm is four 8-bit normalized channels, used for the output image.
	TextureFormatRGBA8Unorm
)

// Channels returns the number of channels stored per texel.
func (f TextureFormat) Channels() int {
	if f == TextureFormatR16Float {
		return 1
	}
	return 4
}

// BytesPerTexel returns the GPU storage size of one texel.
func (f TextureFormat) BytesPerTexel() int {
	switch f {
	case TextureFormatR16Float:
		return 2
	case TextureFormatRGBA16Float:
		return 8
	default:
		return 4
	}
}

// WGPU returns the matching wgpu texture format.
func (f TextureFormat) WGPU() wgpu.TextureFormat {
	switch f {
	case TextureFormatR16Float:
		return wgpu.TextureFormatR16Float
	case TextureFormatRGBA16Float:
		return wgpu.TextureFormatRGBA16Float
	default:
		return wgpu.TextureFormatRGBA8Unorm
	}
}

func (f TextureFormat) String() string {
	switch f {
	case TextureFormatR16Float:
		return "r16float"
	case TextureFormatRGBA16Float:
		return "rgba16float"
	default:
		return "rgba8unorm"
	}
}

// Quantize rounds a channel value to the precision the format stores.
func (f TextureFormat) Quantize(v float32) float32 {
	switch f {
	case TextureFormatRGBA8Unorm:
		return math32.Round(common.Clamp(v, 0, 1)*255) / 255
	default:
		return float16.Fromfloat32(v).Float32()
	}
}

// TextureDimension is the dimensionality of a texture.
type TextureDimension int

const (
	TextureDimension1D TextureDimension = iota + 1
	TextureDimension2D
	TextureDimension3D
)

// WGPUView returns the wgpu view dimension used for bind group validation.
func (d TextureDimension) WGPUView() wgpu.TextureViewDimension {
	switch d {
	case TextureDimension1D:
		return wgpu.TextureViewDimension1D
	case TextureDimension3D:
		return wgpu.TextureViewDimension3D
	default:
		return wgpu.TextureViewDimension2D
	}
}

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	// Label names the texture in logs and GPU debuggers.
	Label string
	// Dimension is 1D, 2D or 3D.
	Dimension TextureDimension
	// Format is the texel format.
	Format TextureFormat
	// Width, Height and Depth are the extents; unused extents must be 0 or 1.
	Width, Height, Depth uint32
	// Storage marks the texture as writable from compute kernels.
	Storage bool
}

// normalized returns the descriptor with unused extents set to 1.
func (d TextureDescriptor) normalized() TextureDescriptor {
	if d.Dimension == 0 {
		d.Dimension = TextureDimension2D
	}
	if d.Dimension == TextureDimension1D || d.Height == 0 {
		d.Height = 1
	}
	if d.Dimension != TextureDimension3D || d.Depth == 0 {
		d.Depth = 1
	}
	return d
}

func (d TextureDescriptor) validate() error {
	if d.Width == 0 || d.Height == 0 || d.Depth == 0 {
		return fmt.Errorf("texture %s: zero extent %dx%dx%d", d.Label, d.Width, d.Height, d.Depth)
	}
	if d.Storage && d.Format == TextureFormatR16Float {
		return fmt.Errorf("texture %s: r16float cannot be a storage texture", d.Label)
	}
	if d.Storage && d.Dimension != TextureDimension2D {
		return fmt.Errorf("texture %s: storage textures must be 2D", d.Label)
	}
	return nil
}

// Texture is a backend-owned texture handle. Release is idempotent.
type Texture interface {
	// Label returns the debug label.
	Label() string

	// Descriptor returns the normalized creation descriptor.
	Descriptor() TextureDescriptor

	// Size returns the texture extents.
	Size() (width, height, depth uint32)

	// Released reports whether Release has been called.
	Released() bool

	// Release frees the texture. Calling it again is a no-op.
	Release()
}

// HostTexture is a Texture whose texels live in host memory, as created by the CPU backend.
// Coordinates outside the texture clamp to the edge on reads and are ignored on writes.
type HostTexture interface {
	Texture

	// Load returns the texel at integer coordinates. Missing channels read as (0, 0, 1).
	Load(x, y, z int) mgl32.Vec4

	// Store writes a texel of a 2D texture, quantized to the texture format.
	Store(x, y int, v mgl32.Vec4)

	// Sample1D linearly filters a 1D texture at normalized coordinate u.
	Sample1D(u float32) mgl32.Vec4

	// Sample2D bilinearly filters a 2D texture at normalized coordinates.
	Sample2D(u, v float32) mgl32.Vec4

	// Sample3D trilinearly filters a 3D texture at normalized coordinates.
	Sample3D(u, v, w float32) mgl32.Vec4

	// Clear sets every texel to v.
	Clear(v mgl32.Vec4)

	// Image converts a 2D texture to 8-bit RGBA, row 0 at the top.
	Image() *image.RGBA
}

// hostTexture is the CPU backend texture.
type hostTexture struct {
	desc     TextureDescriptor
	channels int
	texels   []float32
	released atomic.Bool
}

var _ HostTexture = &hostTexture{}

func newHostTexture(desc TextureDescriptor) *hostTexture {
	n := int(desc.Width) * int(desc.Height) * int(desc.Depth)
	return &hostTexture{
		desc:     desc,
		channels: desc.Format.Channels(),
		texels:   make([]float32, n*desc.Format.Channels()),
	}
}

func (t *hostTexture) Label() string {
	return t.desc.Label
}

func (t *hostTexture) Descriptor() TextureDescriptor {
	return t.desc
}

func (t *hostTexture) Size() (uint32, uint32, uint32) {
	return t.desc.Width, t.desc.Height, t.desc.Depth
}

func (t *hostTexture) Released() bool {
	return t.released.Load()
}

func (t *hostTexture) Release() {
	if t.released.Swap(true) {
		return
	}
	t.texels = nil
}

// write copies staging data into the texture, converting the channel count.
func (t *hostTexture) write(data common.TextureStagingData) error {
	if t.Released() {
		return ErrTextureReleased
	}
	if err := data.Validate(); err != nil {
		return err
	}
	if data.TexelCount() != len(t.texels)/t.channels {
		return fmt.Errorf("texture %s: staging data has %d texels, texture holds %d", t.desc.Label, data.TexelCount(), len(t.texels)/t.channels)
	}
	src := int(data.Channels)
	for i := 0; i < data.TexelCount(); i++ {
		for c := 0; c < t.channels; c++ {
			v := float32(0)
			if c < src {
				v = data.Texels[i*src+c]
			} else if c == 3 {
				v = 1
			}
			t.texels[i*t.channels+c] = t.desc.Format.Quantize(v)
		}
	}
	return nil
}

func (t *hostTexture) index(x, y, z int) int {
	x = common.Clamp(x, 0, int(t.desc.Width)-1)
	y = common.Clamp(y, 0, int(t.desc.Height)-1)
	z = common.Clamp(z, 0, int(t.desc.Depth)-1)
	return ((z*int(t.desc.Height)+y)*int(t.desc.Width) + x) * t.channels
}

func (t *hostTexture) Load(x, y, z int) mgl32.Vec4 {
	if t.texels == nil {
		return mgl32.Vec4{}
	}
	i := t.index(x, y, z)
	if t.channels == 1 {
		return mgl32.Vec4{t.texels[i], 0, 0, 1}
	}
	return mgl32.Vec4{t.texels[i], t.texels[i+1], t.texels[i+2], t.texels[i+3]}
}

func (t *hostTexture) Store(x, y int, v mgl32.Vec4) {
	if t.texels == nil || x < 0 || y < 0 || x >= int(t.desc.Width) || y >= int(t.desc.Height) {
		return
	}
	i := (y*int(t.desc.Width) + x) * t.channels
	for c := 0; c < t.channels; c++ {
		t.texels[i+c] = t.desc.Format.Quantize(v[c])
	}
}

// texelCoord maps a normalized coordinate to the lower texel index and blend weight,
// matching linear filtering with clamp-to-edge addressing.
func texelCoord(u float32, size uint32) (int, float32) {
	f := u*float32(size) - 0.5
	i := math32.Floor(f)
	return int(i), f - i
}

func (t *hostTexture) Sample1D(u float32) mgl32.Vec4 {
	x, fx := texelCoord(u, t.desc.Width)
	return common.LerpVec4(t.Load(x, 0, 0), t.Load(x+1, 0, 0), fx)
}

func (t *hostTexture) Sample2D(u, v float32) mgl32.Vec4 {
	x, fx := texelCoord(u, t.desc.Width)
	y, fy := texelCoord(v, t.desc.Height)
	top := common.LerpVec4(t.Load(x, y, 0), t.Load(x+1, y, 0), fx)
	bottom := common.LerpVec4(t.Load(x, y+1, 0), t.Load(x+1, y+1, 0), fx)
	return common.LerpVec4(top, bottom, fy)
}

func (t *hostTexture) Sample3D(u, v, w float32) mgl32.Vec4 {
	x, fx := texelCoord(u, t.desc.Width)
	y, fy := texelCoord(v, t.desc.Height)
	z, fz := texelCoord(w, t.desc.Depth)
	lerpPlane := func(z int) mgl32.Vec4 {
		a := common.LerpVec4(t.Load(x, y, z), t.Load(x+1, y, z), fx)
		b := common.LerpVec4(t.Load(x, y+1, z), t.Load(x+1, y+1, z), fx)
		return common.LerpVec4(a, b, fy)
	}
	return common.LerpVec4(lerpPlane(z), lerpPlane(z+1), fz)
}

func (t *hostTexture) Clear(v mgl32.Vec4) {
	for i := 0; i < len(t.texels); i += t.channels {
		for c := 0; c < t.channels; c++ {
			t.texels[i+c] = t.desc.Format.Quantize(v[c])
		}
	}
}

func (t *hostTexture) Image() *image.RGBA {
	w, h := int(t.desc.Width), int(t.desc.Height)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := t.Load(x, y, 0)
			img.SetRGBA(x, y, color.RGBA{
				R: to8(v[0]),
				G: to8(v[1]),
				B: to8(v[2]),
				A: to8(v[3]),
			})
		}
	}
	return img
}

func to8(v float32) uint8 {
	return uint8(math32.Round(common.Clamp(v, 0, 1) * 255))
}
