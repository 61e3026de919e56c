// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// TextureStagingData holds texel data for a texture pending upload to a renderer backend.
// Texels are stored channel-interleaved in x-fastest, then y, then z order.
type TextureStagingData struct {
	// Texels is the flat texel data, Channels floats per texel.
	Texels []float32
	// Channels is the number of channels per texel (1, 2 or 4).
	Channels uint32
	// Width is the texture extent along x in texels.
	Width uint32
	// Height is the texture extent along y in texels. 1 for 1D textures.
	Height uint32
	// Depth is the texture extent along z in texels. 1 for 1D and 2D textures.
	Depth uint32
}

// TexelCount returns the number of texels described by the staging extents.
//
// Returns:
//   - int: Width * Height * Depth
func (d TextureStagingData) TexelCount() int {
	return int(d.Width) * int(Max(d.Height, 1)) * int(Max(d.Depth, 1))
}

// Validate checks that the texel slice matches the declared extents and channel count.
//
// Returns:
//   - error: a descriptive error if the data is inconsistent, otherwise nil
func (d TextureStagingData) Validate() error {
	switch d.Channels {
	case 1, 2, 4:
	default:
		return fmt.Errorf("staging data: unsupported channel count %d", d.Channels)
	}
	if d.Width == 0 {
		return fmt.Errorf("staging data: zero width")
	}
	if want := d.TexelCount() * int(d.Channels); len(d.Texels) != want {
		return fmt.Errorf("staging data: have %d floats, want %d", len(d.Texels), want)
	}
	return nil
}

// SamplerStagingData holds the configuration for a sampler binding pending GPU creation.
// Zero values are replaced by clamp-to-edge addressing and linear filtering.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode outside [0, 1].
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the level of detail range.
	LodMinClamp, LodMaxClamp float32
	// MaxAnisotropy specifies the maximum anisotropy level.
	MaxAnisotropy uint16
}
