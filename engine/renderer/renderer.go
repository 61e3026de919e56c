package renderer

import (
	"fmt"
	"log"
	"runtime"
	"sync"

	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/Fastiz/cpp-volume-rendering/engine/window"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend

	textures  []Texture
	frameOpen bool

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	workers              int
	tileSize             int
}

// Renderer is the compute-oriented rendering API used by rendering techniques.
//
// Techniques create textures and kernels through the Renderer, then record kernel dispatches
// into a Frame. Two backends exist: WGPU runs the kernels' WGSL on the GPU, CPU runs their
// HostFunc on a worker pool. Both validate kernel bindings against the WGSL declarations, so
// a technique that builds on one backend builds on the other.
type Renderer interface {
	// BackendType returns the backend the renderer was created with.
	BackendType() RendererBackendType

	// CreateTexture allocates a texture. Unused extents in the descriptor may be left zero.
	//
	// Parameters:
	//   - desc: the texture descriptor
	//
	// Returns:
	//   - Texture: the texture, a HostTexture on the CPU backend
	//   - error: an error if the descriptor is invalid or allocation fails
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// WriteTexture uploads texels to a texture, converting the channel count and
	// quantizing to the texture format.
	//
	// Parameters:
	//   - tex: the destination texture
	//   - data: the staging texels, which must cover the whole texture
	//
	// Returns:
	//   - error: ErrTextureReleased, or an error if the data does not match the texture
	WriteTexture(tex Texture, data common.TextureStagingData) error

	// CreateKernel validates the descriptor's bindings against its shader and builds a kernel.
	//
	// Parameters:
	//   - desc: the kernel descriptor
	//
	// Returns:
	//   - Kernel: the kernel
	//   - error: a wrapped ErrBindingMismatch if validation fails, or a backend error
	CreateKernel(desc KernelDescriptor) (Kernel, error)

	// BeginFrame starts recording kernel dispatches. Only one frame may be open at a time.
	//
	// Returns:
	//   - Frame: the open frame
	//   - error: ErrFrameOpen if the previous frame has not been ended
	BeginFrame() (Frame, error)

	// Resize reconfigures the presentation surface for a new window size.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode. A call to Resize is required after
	// changing this for the new mode to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// Present shows a 2D texture on the window surface.
	//
	// Parameters:
	//   - tex: the texture to show, typically a technique's output
	//
	// Returns:
	//   - error: ErrNoSurface when there is no window, or a presentation error
	Present(tex Texture) error

	// LiveTextures returns the number of textures created and not yet released.
	LiveTextures() int

	// Release frees the backend. Textures and kernels must be released first.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer with the specified backend. A nil window creates a
// headless renderer; Present then returns ErrNoSurface.
//
// Parameters:
//   - backendType: the type of rendering backend to use
//   - win: the window to present to, or nil
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
func NewRenderer(backendType RendererBackendType, win window.Window, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:          &sync.Mutex{},
		backendType: backendType,
		workers:     runtime.NumCPU(),
		tileSize:    32,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	switch backendType {
	case BackendTypeCPU:
		r.backend = newCPURendererBackend(r.workers, r.tileSize)
	case BackendTypeWGPU:
		fallthrough
	default:
		r.backendType = BackendTypeWGPU
		if win != nil {
			r.backend = newWGPURendererBackend(win.SurfaceDescriptor(), r.forceFallbackAdapter)
		} else {
			r.backend = newWGPURendererBackend(nil, r.forceFallbackAdapter)
		}
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	if win != nil {
		r.backend.ConfigureSurface(win.Width(), win.Height())
	}
	log.Printf("renderer: %s backend ready", r.backendType)
	return r
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) CreateTexture(desc TextureDescriptor) (Texture, error) {
	desc = desc.normalized()
	if err := desc.validate(); err != nil {
		return nil, err
	}
	tex, err := r.backend.CreateTexture(desc)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.textures = append(r.textures, tex)
	return tex, nil
}

func (r *renderer) WriteTexture(tex Texture, data common.TextureStagingData) error {
	if tex == nil {
		return fmt.Errorf("write texture: nil texture")
	}
	return r.backend.WriteTexture(tex, data)
}

func (r *renderer) CreateKernel(desc KernelDescriptor) (Kernel, error) {
	bindings, err := resolveBindings(desc)
	if err != nil {
		return nil, err
	}
	return r.backend.CreateKernel(desc, bindings)
}

func (r *renderer) BeginFrame() (Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frameOpen {
		return nil, ErrFrameOpen
	}
	f, err := r.backend.BeginFrame(r.endFrame)
	if err != nil {
		return nil, err
	}
	r.frameOpen = true
	return f, nil
}

func (r *renderer) endFrame() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frameOpen = false
}

func (r *renderer) Resize(width, height int) {
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) Present(tex Texture) error {
	if tex == nil {
		return fmt.Errorf("present: nil texture")
	}
	return r.backend.Present(tex)
}

func (r *renderer) LiveTextures() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	live := r.textures[:0]
	for _, t := range r.textures {
		if !t.Released() {
			live = append(live, t)
		}
	}
	clear(r.textures[len(live):])
	r.textures = live
	return len(live)
}

func (r *renderer) Release() {
	if n := r.LiveTextures(); n > 0 {
		log.Printf("renderer: releasing backend with %d live textures", n)
	}
	r.backend.Release()
}
