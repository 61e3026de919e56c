package renderer

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer/shader"
)

// ErrBindingMismatch is returned when a kernel's bindings do not match its shader's declarations.
var ErrBindingMismatch = errors.New("kernel bindings do not match shader declarations")

// UniformBlock is a value uploaded to a WGSL var<uniform>. Marshal must return exactly
// the std140-style layout of the WGSL struct, including trailing padding.
type UniformBlock interface {
	Marshal() []byte
}

// HostFunc is the CPU implementation of a compute kernel, invoked once per output texel.
type HostFunc func(x, y int)

// Binding attaches one resource to a WGSL variable by name. Exactly one of Texture,
// Uniform or Sampler must be set.
type Binding struct {
	// Name is the WGSL variable name the resource binds to.
	Name string
	// Texture is a sampled or storage texture.
	Texture Texture
	// Uniform is a uniform block.
	Uniform UniformBlock
	// Sampler configures a sampler binding.
	Sampler *common.SamplerStagingData
}

// KernelDescriptor describes a compute kernel to create.
type KernelDescriptor struct {
	// Label names the kernel in logs and profiler output.
	Label string
	// Shader is the parsed WGSL compute shader.
	Shader shader.Shader
	// Bindings supplies a resource for every group 0 declaration of the shader.
	Bindings []Binding
	// Host is the CPU implementation. Required by the CPU backend, ignored by WGPU.
	Host HostFunc
}

// Kernel is a compute kernel ready for dispatch.
type Kernel interface {
	// Label returns the kernel label.
	Label() string

	// Shader returns the WGSL shader the kernel was validated against.
	Shader() shader.Shader

	// WorkgroupSize returns the shader's workgroup size.
	WorkgroupSize() [3]uint32

	// UpdateUniforms re-marshals every uniform binding and uploads the bytes.
	//
	// Returns:
	//   - error: ErrBindingMismatch if a block changed size, or an upload error
	UpdateUniforms() error

	// Released reports whether Release has been called.
	Released() bool

	// Release frees the kernel's pipeline and bind group. Calling it again is a no-op.
	// Bound textures are owned by the caller and are not released.
	Release()
}

// resolvedBinding is a Binding matched to its shader declaration.
type resolvedBinding struct {
	Binding
	decl shader.BindingDeclaration
}

// resolveBindings matches descriptor bindings to shader declarations by WGSL name and checks
// that every resource agrees with its declaration in kind, view dimension, texel format
// and uniform size.
//
// Parameters:
//   - desc: the kernel descriptor
//
// Returns:
//   - []resolvedBinding: bindings sorted by binding slot
//   - error: a wrapped ErrBindingMismatch describing the first disagreement
func resolveBindings(desc KernelDescriptor) ([]resolvedBinding, error) {
	if desc.Shader == nil {
		return nil, fmt.Errorf("kernel %s: no shader", desc.Label)
	}
	if desc.Shader.ShaderType() != shader.ShaderTypeCompute {
		return nil, fmt.Errorf("kernel %s: shader %s is not a compute shader", desc.Label, desc.Shader.Key())
	}

	resolved := make([]resolvedBinding, 0, len(desc.Bindings))
	seen := make(map[string]bool, len(desc.Bindings))
	for _, b := range desc.Bindings {
		if seen[b.Name] {
			return nil, fmt.Errorf("kernel %s: %w: %q bound twice", desc.Label, ErrBindingMismatch, b.Name)
		}
		seen[b.Name] = true

		decl, ok := desc.Shader.Binding(b.Name)
		if !ok {
			return nil, fmt.Errorf("kernel %s: %w: %q is not declared by %s", desc.Label, ErrBindingMismatch, b.Name, desc.Shader.Key())
		}
		if err := checkBinding(b, decl); err != nil {
			return nil, fmt.Errorf("kernel %s: %w: %s", desc.Label, ErrBindingMismatch, err)
		}
		resolved = append(resolved, resolvedBinding{Binding: b, decl: decl})
	}

	for _, decl := range desc.Shader.Bindings() {
		if decl.Group != 0 {
			return nil, fmt.Errorf("kernel %s: %w: %q uses group %d, only group 0 is supported", desc.Label, ErrBindingMismatch, decl.Name, decl.Group)
		}
		if !seen[decl.Name] {
			return nil, fmt.Errorf("kernel %s: %w: %q has no resource", desc.Label, ErrBindingMismatch, decl.Name)
		}
	}

	sort.Slice(resolved, func(i, j int) bool {
		return resolved[i].decl.Binding < resolved[j].decl.Binding
	})
	return resolved, nil
}

func checkBinding(b Binding, decl shader.BindingDeclaration) error {
	set := 0
	for _, present := range []bool{b.Texture != nil, b.Uniform != nil, b.Sampler != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%q must set exactly one resource", b.Name)
	}

	switch decl.Kind {
	case shader.ResourceKindUniform:
		if b.Uniform == nil {
			return fmt.Errorf("%q is a uniform", b.Name)
		}
		if n := uint64(len(b.Uniform.Marshal())); n != decl.Size {
			return fmt.Errorf("%q marshals %d bytes, %s needs %d", b.Name, n, decl.TypeName, decl.Size)
		}
	case shader.ResourceKindSampler:
		if b.Sampler == nil {
			return fmt.Errorf("%q is a sampler", b.Name)
		}
	case shader.ResourceKindSampledTexture, shader.ResourceKindStorageTexture:
		if b.Texture == nil {
			return fmt.Errorf("%q is a texture", b.Name)
		}
		if b.Texture.Released() {
			return fmt.Errorf("%q: %w", b.Name, ErrTextureReleased)
		}
		td := b.Texture.Descriptor()
		if td.Dimension.WGPUView() != decl.ViewDimension {
			return fmt.Errorf("%q: texture %s is %dD", b.Name, td.Label, td.Dimension)
		}
		if decl.Kind == shader.ResourceKindStorageTexture {
			if !td.Storage {
				return fmt.Errorf("%q: texture %s is not a storage texture", b.Name, td.Label)
			}
			if td.Format.WGPU() != decl.TexelFormat {
				return fmt.Errorf("%q: texture %s is %s", b.Name, td.Label, td.Format)
			}
		}
	default:
		return fmt.Errorf("%q: unsupported resource kind %s", b.Name, decl.Kind)
	}
	return nil
}

// texturesReleased reports the first bound texture that has been released, if any.
func texturesReleased(bindings []resolvedBinding) (string, bool) {
	for _, b := range bindings {
		if b.Texture != nil && b.Texture.Released() {
			return b.Texture.Label(), true
		}
	}
	return "", false
}
