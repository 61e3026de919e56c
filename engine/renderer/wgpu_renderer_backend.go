package renderer

import (
	_ "embed"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/x448/float16"
)

//go:embed shaders/blit.wgsl
var blitShaderSource string

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat *wgpu.TextureFormat
	presentMode   wgpu.PresentMode

	// Blit pipeline used by Present, built on first use for the configured surface format.
	blitPipeline *wgpu.RenderPipeline
	blitLayout   *wgpu.BindGroupLayout
	blitSampler  *wgpu.Sampler
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

// newWGPURendererBackend requests an adapter and device. A nil surfaceDescriptor creates a
// headless backend that can dispatch kernels but not Present.
func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool) *wgpuRendererBackendImpl {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeFifo,
	}
	if surfaceDescriptor != nil {
		w.surface = w.instance.CreateSurface(surfaceDescriptor)
	}

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		panic(err)
	}
	w.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Volume Rendering Device",
	})
	if err != nil {
		panic(err)
	}
	w.device = d
	w.queue = d.GetQueue()

	return w
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surface == nil || width <= 0 || height <= 0 {
		return
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	format := capabilities.Formats[0]
	// The output texture already holds display values, so prefer a non-sRGB surface.
	for _, f := range capabilities.Formats {
		if f == wgpu.TextureFormatBGRA8Unorm || f == wgpu.TextureFormatRGBA8Unorm {
			format = f
			break
		}
	}
	if b.surfaceFormat != nil && *b.surfaceFormat != format && b.blitPipeline != nil {
		b.blitPipeline.Release()
		b.blitPipeline = nil
	}
	b.surfaceFormat = &format

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeUncapped:
		b.presentMode = wgpu.PresentModeImmediate
	default:
		b.presentMode = wgpu.PresentModeFifo
	}
}

func (b *wgpuRendererBackendImpl) CreateTexture(desc TextureDescriptor) (Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	usage := wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
	if desc.Storage {
		usage |= wgpu.TextureUsageStorageBinding
	}
	dimension := wgpu.TextureDimension2D
	switch desc.Dimension {
	case TextureDimension1D:
		dimension = wgpu.TextureDimension1D
	case TextureDimension3D:
		dimension = wgpu.TextureDimension3D
	}

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     desc.Label,
		Usage:     usage,
		Dimension: dimension,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: desc.Depth,
		},
		Format:        desc.Format.WGPU(),
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", desc.Label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("texture %s view: %w", desc.Label, err)
	}
	return &wgpuTexture{desc: desc, texture: tex, view: view}, nil
}

func (b *wgpuRendererBackendImpl) WriteTexture(tex Texture, data common.TextureStagingData) error {
	wt, ok := tex.(*wgpuTexture)
	if !ok {
		return fmt.Errorf("texture %s was not created by the wgpu backend", tex.Label())
	}
	if wt.Released() {
		return ErrTextureReleased
	}
	if err := data.Validate(); err != nil {
		return err
	}
	desc := wt.desc
	if want := int(desc.Width * desc.Height * desc.Depth); data.TexelCount() != want {
		return fmt.Errorf("texture %s: staging data has %d texels, texture holds %d", desc.Label, data.TexelCount(), want)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bpp := uint32(desc.Format.BytesPerTexel())
	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  wt.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		encodeTexels(desc.Format, data),
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  desc.Width * bpp,
			RowsPerImage: desc.Height,
		},
		&wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: desc.Depth,
		},
	)
	return nil
}

// encodeTexels converts float staging texels to the byte layout of format, padding missing
// channels with zero and alpha with one.
func encodeTexels(format TextureFormat, data common.TextureStagingData) []byte {
	channels := format.Channels()
	src := int(data.Channels)
	texel := func(i, c int) float32 {
		switch {
		case c < src:
			return data.Texels[i*src+c]
		case c == 3:
			return 1
		}
		return 0
	}

	if format == TextureFormatRGBA8Unorm {
		out := make([]byte, 0, data.TexelCount()*channels)
		for i := 0; i < data.TexelCount(); i++ {
			for c := 0; c < channels; c++ {
				out = append(out, to8(texel(i, c)))
			}
		}
		return out
	}
	halfs := make([]uint16, 0, data.TexelCount()*channels)
	for i := 0; i < data.TexelCount(); i++ {
		for c := 0; c < channels; c++ {
			halfs = append(halfs, float16.Fromfloat32(texel(i, c)).Bits())
		}
	}
	return common.SliceToBytes(halfs)
}

func (b *wgpuRendererBackendImpl) CreateKernel(desc KernelDescriptor, bindings []resolvedBinding) (Kernel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := &wgpuKernel{
		backend:  b,
		label:    desc.Label,
		shader:   desc.Shader,
		bindings: bindings,
		buffers:  make(map[int]*wgpu.Buffer),
	}
	if err := k.build(); err != nil {
		k.release()
		return nil, fmt.Errorf("kernel %s: %w", desc.Label, err)
	}
	return k, nil
}

func (b *wgpuRendererBackendImpl) BeginFrame(onEnd func()) (Frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	return &wgpuFrame{backend: b, encoder: encoder, onEnd: onEnd}, nil
}

func (b *wgpuRendererBackendImpl) Present(tex Texture) error {
	wt, ok := tex.(*wgpuTexture)
	if !ok {
		return fmt.Errorf("texture %s was not created by the wgpu backend", tex.Label())
	}
	if wt.Released() {
		return ErrTextureReleased
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surface == nil || b.surfaceFormat == nil {
		return ErrNoSurface
	}
	if err := b.ensureBlitPipeline(); err != nil {
		return err
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Blit Bind Group",
		Layout: b.blitLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: wt.view},
			{Binding: 1, Sampler: b.blitSampler},
		},
	})
	if err != nil {
		return err
	}
	defer bindGroup.Release()

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	defer surfaceTexture.Release()
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return err
	}
	defer view.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
			},
		},
	})
	pass.SetPipeline(b.blitPipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Draw(3, 1, 0, 0)
	pass.End()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	b.surface.Present()
	return nil
}

func (b *wgpuRendererBackendImpl) ensureBlitPipeline() error {
	if b.blitPipeline != nil {
		return nil
	}

	vertexShader, err := shader.NewShaderFromSource("blit_vs", shader.ShaderTypeVertex, blitShaderSource, nil)
	if err != nil {
		return err
	}
	fragmentShader, err := shader.NewShaderFromSource("blit_fs", shader.ShaderTypeFragment, blitShaderSource, nil)
	if err != nil {
		return err
	}

	module, err := b.device.CreateShaderModule(fragmentShader.Module())
	if err != nil {
		return err
	}
	defer module.Release()

	if b.blitLayout == nil {
		desc := fragmentShader.BindGroupLayoutDescriptors()[0]
		b.blitLayout, err = b.device.CreateBindGroupLayout(&desc)
		if err != nil {
			return fmt.Errorf("blit bind group layout: %w", err)
		}
	}
	if b.blitSampler == nil {
		b.blitSampler, err = b.createSampler("Blit Sampler", common.SamplerStagingData{})
		if err != nil {
			return err
		}
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Blit",
		BindGroupLayouts: []*wgpu.BindGroupLayout{b.blitLayout},
	})
	if err != nil {
		return err
	}
	defer pipelineLayout.Release()

	b.blitPipeline, err = b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Blit Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: vertexShader.EntryPoint(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets: []wgpu.ColorTargetState{
				{
					Format:    *b.surfaceFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	return err
}

// createSampler builds a sampler, defaulting to clamp-to-edge addressing and linear filtering.
func (b *wgpuRendererBackendImpl) createSampler(label string, s common.SamplerStagingData) (*wgpu.Sampler, error) {
	return b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  common.Coalesce(s.AddressModeU, wgpu.AddressModeClampToEdge),
		AddressModeV:  common.Coalesce(s.AddressModeV, wgpu.AddressModeClampToEdge),
		AddressModeW:  common.Coalesce(s.AddressModeW, wgpu.AddressModeClampToEdge),
		MagFilter:     common.Coalesce(s.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(s.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(s.MipmapFilter, wgpu.MipmapFilterModeNearest),
		LodMinClamp:   common.Coalesce(s.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(s.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(s.MaxAnisotropy, 1),
	})
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.blitPipeline != nil {
		b.blitPipeline.Release()
		b.blitPipeline = nil
	}
	if b.blitLayout != nil {
		b.blitLayout.Release()
		b.blitLayout = nil
	}
	if b.blitSampler != nil {
		b.blitSampler.Release()
		b.blitSampler = nil
	}
	if b.queue != nil {
		b.queue.Release()
	}
	if b.device != nil {
		b.device.Release()
	}
	if b.surface != nil {
		b.surface.Release()
	}
	if b.adapter != nil {
		b.adapter.Release()
	}
	if b.instance != nil {
		b.instance.Release()
	}
}

// wgpuTexture is a GPU texture and its default view.
type wgpuTexture struct {
	desc     TextureDescriptor
	texture  *wgpu.Texture
	view     *wgpu.TextureView
	released bool
	mu       sync.Mutex
}

var _ Texture = &wgpuTexture{}

func (t *wgpuTexture) Label() string {
	return t.desc.Label
}

func (t *wgpuTexture) Descriptor() TextureDescriptor {
	return t.desc
}

func (t *wgpuTexture) Size() (uint32, uint32, uint32) {
	return t.desc.Width, t.desc.Height, t.desc.Depth
}

func (t *wgpuTexture) Released() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

func (t *wgpuTexture) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return
	}
	t.released = true
	t.view.Release()
	t.texture.Release()
}

// wgpuKernel owns a compute pipeline, its uniform buffers and a bind group over the
// caller's textures.
type wgpuKernel struct {
	backend  *wgpuRendererBackendImpl
	label    string
	shader   shader.Shader
	bindings []resolvedBinding

	module         *wgpu.ShaderModule
	layout         *wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
	pipeline       *wgpu.ComputePipeline
	bindGroup      *wgpu.BindGroup
	buffers        map[int]*wgpu.Buffer
	samplers       []*wgpu.Sampler
	released       bool
}

var _ Kernel = &wgpuKernel{}

// build creates the GPU objects for the kernel. Called with the backend lock held.
func (k *wgpuKernel) build() error {
	device := k.backend.device

	var err error
	k.module, err = device.CreateShaderModule(k.shader.Module())
	if err != nil {
		return err
	}

	desc, ok := k.shader.BindGroupLayoutDescriptors()[0]
	if !ok {
		return errors.New("shader declares no group 0 bindings")
	}
	k.layout, err = device.CreateBindGroupLayout(&desc)
	if err != nil {
		return fmt.Errorf("failed to create bind group layout for group 0: %w", err)
	}
	k.pipelineLayout, err = device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            k.label,
		BindGroupLayouts: []*wgpu.BindGroupLayout{k.layout},
	})
	if err != nil {
		return err
	}
	k.pipeline, err = device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  k.label + " Compute Pipeline",
		Layout: k.pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     k.module,
			EntryPoint: k.shader.EntryPoint(),
		},
	})
	if err != nil {
		return err
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(k.bindings))
	for _, rb := range k.bindings {
		entry := wgpu.BindGroupEntry{Binding: uint32(rb.decl.Binding)}
		switch {
		case rb.Uniform != nil:
			data := rb.Uniform.Marshal()
			buf, bufErr := device.CreateBuffer(&wgpu.BufferDescriptor{
				Label: k.label + " " + rb.Name,
				Size:  uint64(len(data)),
				Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
			})
			if bufErr != nil {
				return bufErr
			}
			k.buffers[rb.decl.Binding] = buf
			k.backend.queue.WriteBuffer(buf, 0, data)
			entry.Buffer = buf
			entry.Size = wgpu.WholeSize
		case rb.Sampler != nil:
			samp, sampErr := k.backend.createSampler(k.label+" "+rb.Name, *rb.Sampler)
			if sampErr != nil {
				return sampErr
			}
			k.samplers = append(k.samplers, samp)
			entry.Sampler = samp
		case rb.Texture != nil:
			wt, ok := rb.Texture.(*wgpuTexture)
			if !ok {
				return fmt.Errorf("texture %s was not created by the wgpu backend", rb.Texture.Label())
			}
			entry.TextureView = wt.view
		}
		entries = append(entries, entry)
	}

	k.bindGroup, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   k.label + " Bind Group",
		Layout:  k.layout,
		Entries: entries,
	})
	return err
}

func (k *wgpuKernel) Label() string {
	return k.label
}

func (k *wgpuKernel) Shader() shader.Shader {
	return k.shader
}

func (k *wgpuKernel) WorkgroupSize() [3]uint32 {
	return k.shader.WorkgroupSize()
}

func (k *wgpuKernel) UpdateUniforms() error {
	k.backend.mu.Lock()
	defer k.backend.mu.Unlock()

	for _, rb := range k.bindings {
		if rb.Uniform == nil {
			continue
		}
		data := rb.Uniform.Marshal()
		if uint64(len(data)) != rb.decl.Size {
			return fmt.Errorf("kernel %s: %w: %q marshals %d bytes, want %d", k.label, ErrBindingMismatch, rb.Name, len(data), rb.decl.Size)
		}
		k.backend.queue.WriteBuffer(k.buffers[rb.decl.Binding], 0, data)
	}
	return nil
}

func (k *wgpuKernel) Released() bool {
	k.backend.mu.Lock()
	defer k.backend.mu.Unlock()
	return k.released
}

func (k *wgpuKernel) Release() {
	k.backend.mu.Lock()
	defer k.backend.mu.Unlock()
	k.release()
}

func (k *wgpuKernel) release() {
	if k.released {
		return
	}
	k.released = true
	if k.bindGroup != nil {
		k.bindGroup.Release()
	}
	for _, buf := range k.buffers {
		buf.Release()
	}
	for _, s := range k.samplers {
		s.Release()
	}
	if k.pipeline != nil {
		k.pipeline.Release()
	}
	if k.pipelineLayout != nil {
		k.pipelineLayout.Release()
	}
	if k.layout != nil {
		k.layout.Release()
	}
	if k.module != nil {
		k.module.Release()
	}
}

// wgpuFrame encodes one compute pass per dispatch into a single command encoder.
// Pass boundaries order storage texture writes, so MemoryBarrier records nothing.
type wgpuFrame struct {
	backend *wgpuRendererBackendImpl
	encoder *wgpu.CommandEncoder
	onEnd   func()
}

var _ Frame = &wgpuFrame{}

func (f *wgpuFrame) Dispatch(k Kernel, width, height int) error {
	if f.encoder == nil {
		return fmt.Errorf("dispatch %s: frame already ended", k.Label())
	}
	wk, ok := k.(*wgpuKernel)
	if !ok {
		return fmt.Errorf("dispatch %s: kernel was not created by the wgpu backend", k.Label())
	}
	if wk.Released() {
		return fmt.Errorf("dispatch %s: kernel has been released", k.Label())
	}
	if label, released := texturesReleased(wk.bindings); released {
		return fmt.Errorf("dispatch %s: texture %s: %w", k.Label(), label, ErrTextureReleased)
	}

	wg := wk.WorkgroupSize()
	groupsX := (uint32(width) + wg[0] - 1) / common.Max(wg[0], 1)
	groupsY := (uint32(height) + wg[1] - 1) / common.Max(wg[1], 1)

	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()

	pass := f.encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: wk.label})
	pass.SetPipeline(wk.pipeline)
	pass.SetBindGroup(0, wk.bindGroup, nil)
	pass.DispatchWorkgroups(groupsX, groupsY, 1)
	pass.End()
	return nil
}

func (f *wgpuFrame) MemoryBarrier() error {
	return nil
}

func (f *wgpuFrame) End() error {
	if f.encoder == nil {
		return nil
	}
	defer func() {
		if f.onEnd != nil {
			f.onEnd()
		}
	}()

	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()

	encoder := f.encoder
	f.encoder = nil
	defer encoder.Release()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	f.backend.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}
