package shader

import (
	"fmt"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies whether a shader is a render shader or a compute shader.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex stage of a render pipeline.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment stage of a render pipeline.
	ShaderTypeFragment
)

// shader is the implementation of the Shader interface.
type shader struct {
	key                        string
	source                     string
	shaderType                 ShaderType
	bindings                   []BindingDeclaration
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	workGroupSize              [3]uint32
	entryPoint                 string
	module                     *wgpu.ShaderModuleDescriptor
}

// Shader defines the interface for a pre-processed and parsed WGSL shader. It exposes the
// resource declarations that kernels validate their bindings against, along with the
// pipeline metadata needed by the WGPU backend.
type Shader interface {
	// Key retrieves the unique identifier for this shader.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the pre-processed WGSL source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// ShaderType returns the stage of the shader.
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex, ShaderTypeFragment, or ShaderTypeCompute
	ShaderType() ShaderType

	// EntryPoint returns the entry point name for this shader.
	//
	// Returns:
	//   - string: the entry point name (e.g. "main")
	EntryPoint() string

	// WorkgroupSize returns the workgroup size for compute shaders, [0, 0, 0] otherwise.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// Bindings returns every @group/@binding declaration in the source.
	//
	// Returns:
	//   - []BindingDeclaration: declarations sorted by group then binding
	Bindings() []BindingDeclaration

	// Binding looks up a group 0 declaration by its WGSL variable name.
	//
	// Parameters:
	//   - name: the WGSL variable name
	//
	// Returns:
	//   - BindingDeclaration: the declaration
	//   - bool: false if no such variable is declared
	Binding(name string) (BindingDeclaration, bool)

	// BindGroupLayoutDescriptors returns the parsed layout descriptors keyed by group index.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// Module returns the wgpu.ShaderModuleDescriptor built from the processed source.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the module descriptor with the WGSL code and label
	Module() *wgpu.ShaderModuleDescriptor
}

var _ Shader = &shader{}

// NewShader reads WGSL source from disk and builds a Shader from it.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the shader stage
//   - sourcePath: the file path to read WGSL source from
//   - pp: the pre-processor used to resolve @vr: annotations, may be nil
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error if the file cannot be read or pre-processing fails
func NewShader(key string, shaderType ShaderType, sourcePath string, pp PreProcessor) (Shader, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("shader %s: failed to read source file %q: %w", key, sourcePath, err)
	}
	return NewShaderFromSource(key, shaderType, string(data), pp)
}

// NewShaderFromSource builds a Shader from in-memory WGSL source, typically an embedded asset.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the shader stage
//   - source: the raw WGSL source
//   - pp: the pre-processor used to resolve @vr: annotations, may be nil
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error if pre-processing fails or a compute shader has no entry point
func NewShaderFromSource(key string, shaderType ShaderType, source string, pp PreProcessor) (Shader, error) {
	s := &shader{
		key:        key,
		shaderType: shaderType,
		source:     source,
	}
	if pp != nil {
		processed, err := pp.Process(source)
		if err != nil {
			return nil, fmt.Errorf("shader %s: failed to pre-process source: %w", key, err)
		}
		s.source = processed
	}

	s.entryPoint = parseEntryPoint(s.source, shaderType)
	if s.entryPoint == "" {
		return nil, fmt.Errorf("shader %s: no entry point found", key)
	}
	if shaderType == ShaderTypeCompute {
		s.workGroupSize = parseWorkgroupSize(s.source)
	}

	var visibility wgpu.ShaderStage
	switch shaderType {
	case ShaderTypeVertex:
		visibility = wgpu.ShaderStageVertex
	case ShaderTypeFragment:
		visibility = wgpu.ShaderStageFragment
	default:
		visibility = wgpu.ShaderStageCompute
	}
	s.bindings, s.bindGroupLayoutDescriptors = parseBindings(s.source, visibility)

	s.module = &wgpu.ShaderModuleDescriptor{
		Label: key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: s.source,
		},
	}
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) Bindings() []BindingDeclaration {
	return s.bindings
}

func (s *shader) Binding(name string) (BindingDeclaration, bool) {
	for _, b := range s.bindings {
		if b.Group == 0 && b.Name == name {
			return b, true
		}
	}
	return BindingDeclaration{}, false
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}
