package shader

import (
	"strings"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
)

const testUniforms = `struct TestUniforms {
    eye: vec4<f32>,
    view: mat4x4<f32>,
    step_size: f32,
    flags: u32,
}`

const testModule = `fn helper(x: f32) -> f32 {
    return x * 2.0;
}`

const testKernel = `//@vr:include helper
//@vr:uniform 0 params test_uniforms
@group(0) @binding(1) var volume: texture_3d<f32>;
@group(0) @binding(2) var volume_sampler: sampler;
@group(0) @binding(3) var output: texture_storage_2d<rgba16float, write>;

@compute @workgroup_size(8, 4)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let v = helper(params.step_size);
}
`

func newTestPreProcessor() PreProcessor {
	pp := NewPreProcessor()
	pp.Register("helper", testModule, "")
	pp.Register("test_uniforms", testUniforms, "TestUniforms")
	return pp
}

func TestPreProcessorExpandsAnnotations(t *testing.T) {
	pp := newTestPreProcessor()
	out, err := pp.Process(testKernel + "//@vr:include helper\n")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if n := strings.Count(out, "fn helper"); n != 1 {
		t.Fatalf("helper injected %d times, want 1", n)
	}
	if !strings.Contains(out, "@group(0) @binding(0) var<uniform> params: TestUniforms;") {
		t.Fatalf("uniform declaration missing:\n%s", out)
	}
	if !strings.Contains(out, "struct TestUniforms") {
		t.Fatalf("uniform struct not injected")
	}
	if len(pp.Declarations()) != 1 {
		t.Fatalf("declarations = %d, want 1", len(pp.Declarations()))
	}
}

func TestPreProcessorRejectsUnknownInclude(t *testing.T) {
	pp := NewPreProcessor()
	if _, err := pp.Process("//@vr:include missing\n"); err == nil {
		t.Fatalf("expected error for unknown include")
	}
	if _, err := pp.Process("//@vr:uniform x params missing\n"); err == nil {
		t.Fatalf("expected error for bad binding index")
	}
}

func TestShaderParsesBindings(t *testing.T) {
	s, err := NewShaderFromSource("test", ShaderTypeCompute, testKernel, newTestPreProcessor())
	if err != nil {
		t.Fatalf("NewShaderFromSource: %v", err)
	}
	if s.EntryPoint() != "main" {
		t.Fatalf("entry point = %q", s.EntryPoint())
	}
	if got := s.WorkgroupSize(); got != [3]uint32{8, 4, 1} {
		t.Fatalf("workgroup size = %v", got)
	}

	params, ok := s.Binding("params")
	if !ok || params.Kind != ResourceKindUniform {
		t.Fatalf("params binding = %+v, %v", params, ok)
	}
	// vec4 (16) + mat4 (64) + f32 + u32, rounded to 16
	if params.Size != 96 {
		t.Fatalf("params size = %d, want 96", params.Size)
	}

	vol, ok := s.Binding("volume")
	if !ok || vol.Kind != ResourceKindSampledTexture || vol.ViewDimension != wgpu.TextureViewDimension3D {
		t.Fatalf("volume binding = %+v", vol)
	}
	smp, _ := s.Binding("volume_sampler")
	if smp.Kind != ResourceKindSampler {
		t.Fatalf("sampler kind = %v", smp.Kind)
	}
	out, _ := s.Binding("output")
	if out.Kind != ResourceKindStorageTexture || out.TexelFormat != wgpu.TextureFormatRGBA16Float {
		t.Fatalf("output binding = %+v", out)
	}
	if len(s.BindGroupLayoutDescriptors()[0].Entries) != 4 {
		t.Fatalf("layout entries = %d", len(s.BindGroupLayoutDescriptors()[0].Entries))
	}
}

func TestShaderWithoutEntryPoint(t *testing.T) {
	if _, err := NewShaderFromSource("empty", ShaderTypeCompute, testModule, nil); err == nil {
		t.Fatalf("expected error for missing entry point")
	}
}

func TestStructLayoutAlignment(t *testing.T) {
	structs := parseStructBlocks(stripComments(`struct A { a: f32, b: vec3<f32>, }
struct B { a: A, c: array<vec4<f32>, 4>, }`))
	sizes := computeStructSizes(structs)
	if sizes["A"].size != 32 {
		t.Fatalf("A size = %d, want 32", sizes["A"].size)
	}
	if sizes["B"].size != 96 {
		t.Fatalf("B size = %d, want 96", sizes["B"].size)
	}
}
