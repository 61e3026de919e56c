package common

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
)

func TestCoalesce(t *testing.T) {
	var unset SamplerStagingData
	if got := Coalesce(unset.AddressModeU, wgpu.AddressModeClampToEdge); got != wgpu.AddressModeClampToEdge {
		t.Fatalf("unset address mode = %v, want clamp to edge", got)
	}
	if got := Coalesce(wgpu.AddressModeMirrorRepeat, wgpu.AddressModeClampToEdge); got != wgpu.AddressModeMirrorRepeat {
		t.Fatalf("set address mode = %v, want mirror repeat", got)
	}
	if got := Coalesce(float32(0), 0, 32); got != 32 {
		t.Fatalf("Coalesce(0, 0, 32) = %v", got)
	}
	if got := Coalesce[int](); got != 0 {
		t.Fatalf("Coalesce() = %v", got)
	}
}
