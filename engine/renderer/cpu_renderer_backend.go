package renderer

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer/shader"
)

// cpuRendererBackendImpl runs kernels on the host. Each dispatch is split into tiles that
// are submitted to a worker pool; a WaitGroup per frame is the memory barrier.
type cpuRendererBackendImpl struct {
	pool     worker.DynamicWorkerPool
	tileSize int
	taskID   atomic.Int64
}

var _ RendererBackend = &cpuRendererBackendImpl{}

func newCPURendererBackend(workers, tileSize int) *cpuRendererBackendImpl {
	return &cpuRendererBackendImpl{
		// Workers idle-exit after a second so a paused viewer holds no goroutines.
		pool:     worker.NewDynamicWorkerPool(workers, 256, 1*time.Second),
		tileSize: common.Max(tileSize, 1),
	}
}

func (b *cpuRendererBackendImpl) CreateTexture(desc TextureDescriptor) (Texture, error) {
	return newHostTexture(desc), nil
}

func (b *cpuRendererBackendImpl) WriteTexture(tex Texture, data common.TextureStagingData) error {
	ht, ok := tex.(*hostTexture)
	if !ok {
		return fmt.Errorf("texture %s was not created by the cpu backend", tex.Label())
	}
	return ht.write(data)
}

func (b *cpuRendererBackendImpl) CreateKernel(desc KernelDescriptor, bindings []resolvedBinding) (Kernel, error) {
	if desc.Host == nil {
		return nil, fmt.Errorf("kernel %s: the cpu backend needs a host implementation", desc.Label)
	}
	for _, rb := range bindings {
		if rb.Texture == nil {
			continue
		}
		if _, ok := rb.Texture.(*hostTexture); !ok {
			return nil, fmt.Errorf("kernel %s: texture %s was not created by the cpu backend", desc.Label, rb.Texture.Label())
		}
	}
	return &cpuKernel{
		label:    desc.Label,
		shader:   desc.Shader,
		host:     desc.Host,
		bindings: bindings,
	}, nil
}

func (b *cpuRendererBackendImpl) BeginFrame(onEnd func()) (Frame, error) {
	return &cpuFrame{backend: b, onEnd: onEnd}, nil
}

func (b *cpuRendererBackendImpl) ConfigureSurface(width, height int) {}

func (b *cpuRendererBackendImpl) SetPresentMode(mode PresentMode) {}

func (b *cpuRendererBackendImpl) Present(tex Texture) error {
	return ErrNoSurface
}

func (b *cpuRendererBackendImpl) Release() {}

// cpuKernel is a Kernel whose invocations call a HostFunc. Uniform blocks are read by the
// HostFunc directly, so UpdateUniforms only re-validates their sizes.
type cpuKernel struct {
	label    string
	shader   shader.Shader
	host     HostFunc
	bindings []resolvedBinding
	released atomic.Bool
}

var _ Kernel = &cpuKernel{}

func (k *cpuKernel) Label() string {
	return k.label
}

func (k *cpuKernel) Shader() shader.Shader {
	return k.shader
}

func (k *cpuKernel) WorkgroupSize() [3]uint32 {
	return k.shader.WorkgroupSize()
}

func (k *cpuKernel) UpdateUniforms() error {
	for _, rb := range k.bindings {
		if rb.Uniform == nil {
			continue
		}
		if n := uint64(len(rb.Uniform.Marshal())); n != rb.decl.Size {
			return fmt.Errorf("kernel %s: %w: %q marshals %d bytes, want %d", k.label, ErrBindingMismatch, rb.Name, n, rb.decl.Size)
		}
	}
	return nil
}

func (k *cpuKernel) Released() bool {
	return k.released.Load()
}

func (k *cpuKernel) Release() {
	k.released.Store(true)
}

// cpuFrame tracks the tiles submitted since the last barrier.
type cpuFrame struct {
	backend *cpuRendererBackendImpl
	onEnd   func()
	wg      sync.WaitGroup
	ended   bool

	errMu sync.Mutex
	err   error
}

var _ Frame = &cpuFrame{}

func (f *cpuFrame) Dispatch(k Kernel, width, height int) error {
	if f.ended {
		return fmt.Errorf("dispatch %s: frame already ended", k.Label())
	}
	ck, ok := k.(*cpuKernel)
	if !ok {
		return fmt.Errorf("dispatch %s: kernel was not created by the cpu backend", k.Label())
	}
	if ck.Released() {
		return fmt.Errorf("dispatch %s: kernel has been released", k.Label())
	}
	if label, released := texturesReleased(ck.bindings); released {
		return fmt.Errorf("dispatch %s: texture %s: %w", k.Label(), label, ErrTextureReleased)
	}

	tile := f.backend.tileSize
	for y0 := 0; y0 < height; y0 += tile {
		for x0 := 0; x0 < width; x0 += tile {
			x1, y1 := min(x0+tile, width), min(y0+tile, height)
			f.wg.Add(1)
			f.backend.pool.SubmitTask(worker.Task{
				ID: int(f.backend.taskID.Add(1)),
				Do: func() (any, error) {
					defer f.wg.Done()
					defer f.recoverKernel(ck.label)
					for y := y0; y < y1; y++ {
						for x := x0; x < x1; x++ {
							ck.host(x, y)
						}
					}
					return nil, nil
				},
			})
		}
	}
	return nil
}

func (f *cpuFrame) recoverKernel(label string) {
	r := recover()
	if r == nil {
		return
	}
	log.Printf("renderer: kernel %s panicked: %v", label, r)
	f.errMu.Lock()
	defer f.errMu.Unlock()
	if f.err == nil {
		f.err = fmt.Errorf("kernel %s panicked: %v", label, r)
	}
}

func (f *cpuFrame) MemoryBarrier() error {
	// pool.Wait blocks until workers idle-exit, so the frame keeps its own WaitGroup.
	f.wg.Wait()
	f.errMu.Lock()
	defer f.errMu.Unlock()
	return f.err
}

func (f *cpuFrame) End() error {
	if f.ended {
		return nil
	}
	err := f.MemoryBarrier()
	f.ended = true
	if f.onEnd != nil {
		f.onEnd()
	}
	return err
}
