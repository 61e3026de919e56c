package shader

import "github.com/cogentcore/webgpu/wgpu"

// ResourceKind classifies a WGSL resource declaration.
type ResourceKind int

const (
	// ResourceKindUnknown is a declaration the parser could not classify.
	ResourceKindUnknown ResourceKind = iota

	// ResourceKindUniform is a var<uniform> buffer.
	ResourceKindUniform

	// ResourceKindStorageBuffer is a var<storage> buffer.
	ResourceKindStorageBuffer

	// ResourceKindSampledTexture is a texture_1d/2d/3d sampled through a sampler or textureLoad.
	ResourceKindSampledTexture

	// ResourceKindStorageTexture is a texture_storage_* written by a compute kernel.
	ResourceKindStorageTexture

	// ResourceKindSampler is a filtering or comparison sampler.
	ResourceKindSampler
)

// String returns a readable name for the kind, used in validation errors.
func (k ResourceKind) String() string {
	switch k {
	case ResourceKindUniform:
		return "uniform"
	case ResourceKindStorageBuffer:
		return "storage buffer"
	case ResourceKindSampledTexture:
		return "sampled texture"
	case ResourceKindStorageTexture:
		return "storage texture"
	case ResourceKindSampler:
		return "sampler"
	default:
		return "unknown"
	}
}

// BindingDeclaration is one @group/@binding variable parsed from WGSL source.
type BindingDeclaration struct {
	// Group and Binding are the indices from @group(N) @binding(M).
	Group, Binding int

	// Name is the WGSL variable name. Kernels resolve their bindings by this name.
	Name string

	// Kind is the resource category.
	Kind ResourceKind

	// TypeName is the declared WGSL type, e.g. "ShadowMapUniforms" or "texture_3d<f32>".
	TypeName string

	// ViewDimension is the texture view dimension for sampled and storage textures.
	ViewDimension wgpu.TextureViewDimension

	// TexelFormat is the storage texel format for storage textures.
	TexelFormat wgpu.TextureFormat

	// Size is the byte size of the bound struct for uniform buffers, 0 when unresolved.
	Size uint64
}

// sampledTextureInfo holds the view dimension and multisampled flag for a sampled texture type
type sampledTextureInfo struct {
	viewDimension wgpu.TextureViewDimension
	multisampled  bool
}

// wgslTypeLayout holds the byte size and alignment for a WGSL type.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField represents a single field extracted from a WGSL struct during parsing
type parsedField struct {
	name     string
	typeName string
}

// parsedStruct represents a WGSL struct block extracted during parsing
type parsedStruct struct {
	name   string
	fields []parsedField
}
