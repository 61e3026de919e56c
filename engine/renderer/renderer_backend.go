package renderer

import (
	"errors"

	"github.com/Fastiz/cpp-volume-rendering/common"
)

// ErrFrameOpen is returned by BeginFrame while a previous frame has not been ended.
var ErrFrameOpen = errors.New("a frame is already open")

// ErrNoSurface is returned by Present on a renderer created without a window.
var ErrNoSurface = errors.New("renderer has no presentation surface")

// RendererBackendType identifies the backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU compute backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeCPU selects the host backend, which runs kernel HostFuncs on a worker pool.
	// It needs no GPU and no window, and its textures can be read back with HostTexture.
	BackendTypeCPU
)

func (t RendererBackendType) String() string {
	if t == BackendTypeCPU {
		return "cpu"
	}
	return "wgpu"
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	PresentModeUncapped
)

// Frame records kernel dispatches between BeginFrame and End. Dispatches recorded before a
// MemoryBarrier complete their texture writes before any dispatch recorded after it reads.
type Frame interface {
	// Dispatch runs a kernel over a width x height grid of invocations.
	//
	// Parameters:
	//   - k: the kernel
	//   - width, height: the invocation grid, usually the output texture size
	//
	// Returns:
	//   - error: ErrTextureReleased if a bound texture was released, or a frame state error
	Dispatch(k Kernel, width, height int) error

	// MemoryBarrier orders the texture writes of earlier dispatches before later ones.
	//
	// Returns:
	//   - error: the first kernel failure observed so far
	MemoryBarrier() error

	// End submits the frame and waits for host work to finish. Calling it again is a no-op.
	//
	// Returns:
	//   - error: the first kernel failure or submission error
	End() error
}

// RendererBackend is the backend interface behind the Renderer.
type RendererBackend interface {
	// CreateTexture allocates a texture from a normalized, validated descriptor.
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// WriteTexture uploads staging texels into a texture created by this backend.
	WriteTexture(tex Texture, data common.TextureStagingData) error

	// CreateKernel builds a kernel from a descriptor whose bindings were already resolved.
	CreateKernel(desc KernelDescriptor, bindings []resolvedBinding) (Kernel, error)

	// BeginFrame starts recording a frame. onEnd runs once when the frame ends.
	BeginFrame(onEnd func()) (Frame, error)

	// ConfigureSurface resizes the presentation surface, if any.
	ConfigureSurface(width, height int)

	// SetPresentMode sets the surface present mode. Takes effect on the next ConfigureSurface.
	SetPresentMode(mode PresentMode)

	// Present shows a 2D texture on the presentation surface.
	Present(tex Texture) error

	// Release frees every backend resource.
	Release()
}
