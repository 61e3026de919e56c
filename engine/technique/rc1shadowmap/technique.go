// Package rc1shadowmap implements one-pass volume ray casting with a shadow map.
//
// Each frame runs two compute passes. The shadow-map pass marches one ray per texel from
// the light and records transmittance at four depths through the volume. The eye pass
// marches one ray per pixel from the camera, shades samples with Blinn-Phong and
// attenuates them by the transmittance looked up in the shadow map.
package rc1shadowmap

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/Fastiz/cpp-volume-rendering/engine/camera"
	"github.com/Fastiz/cpp-volume-rendering/engine/data_manager"
	"github.com/Fastiz/cpp-volume-rendering/engine/frame"
	"github.com/Fastiz/cpp-volume-rendering/engine/light"
	"github.com/Fastiz/cpp-volume-rendering/engine/profiler"
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer"
	"github.com/Fastiz/cpp-volume-rendering/engine/rendering_parameters"
	"github.com/Fastiz/cpp-volume-rendering/engine/technique"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// Name is the display name of the technique.
	Name = "1-Pass - Ray Casting with Shadow Map"

	// AbbreviationName is the short identifier of the technique.
	AbbreviationName = "s_1rc"

	// MinStepSize and MaxStepSize bound the integration step size in world units.
	MinStepSize float32 = 0.01
	MaxStepSize float32 = 100
)

// ErrNotBuilt is returned by operations that need the resources created by Init.
var ErrNotBuilt = errors.New("technique is not initialized")

// ErrNoRenderingPass is returned by redraws after a failed kernel rebuild.
var ErrNoRenderingPass = errors.New("rendering pass is not built")

// rc1ShadowMap is the implementation of the technique.Technique interface.
type rc1ShadowMap struct {
	technique.Base

	mu        *sync.Mutex
	r         renderer.Renderer
	data      data_manager.DataManager
	params    rendering_parameters.RenderingParameters
	presenter frame.Presenter
	profiler  *profiler.Profiler

	shaderDir string
	shaders   *shaderSet

	stepSize             float32
	fixedStepSize        float32
	referenceStep        float32
	applyOcclusion       bool
	applyShadow          bool
	applyGradientShading bool
	debugShadowMap       bool

	// resources owned by the technique
	transferFunction renderer.Texture
	shadowMap        renderer.Texture
	emptyGradient    renderer.Texture
	shadowPass       renderer.Kernel
	eyePass          renderer.Kernel
	debugPass        renderer.Kernel

	// resources borrowed from the data manager and presenter
	volume   renderer.Texture
	gradient renderer.Texture
	output   renderer.Texture

	camera         camera.Camera
	boxMin, boxMax mgl32.Vec3
	shadowUniforms GPUShadowMapUniforms
	eyeUniforms    GPURayMarchingUniforms
}

var _ technique.Technique = &rc1ShadowMap{}

// NewRC1ShadowMap creates the technique. Resources are allocated by Init.
//
// Parameters:
//   - r: the renderer kernels and textures are created with
//   - data: the source of the volume, gradient and transfer function
//   - params: the light, shading coefficients and background
//   - presenter: the frame composer whose target the eye pass writes
//   - options: variadic list of RC1ShadowMapBuilderOption functions
//
// Returns:
//   - technique.Technique: the technique in StateUninitialized
func NewRC1ShadowMap(r renderer.Renderer, data data_manager.DataManager, params rendering_parameters.RenderingParameters, presenter frame.Presenter, options ...RC1ShadowMapBuilderOption) technique.Technique {
	t := &rc1ShadowMap{
		mu:             &sync.Mutex{},
		r:              r,
		data:           data,
		params:         params,
		presenter:      presenter,
		stepSize:       0.5,
		referenceStep:  1,
		applyOcclusion: true,
		applyShadow:    true,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

func (t *rc1ShadowMap) Name() string {
	return Name
}

func (t *rc1ShadowMap) AbbreviationName() string {
	return AbbreviationName
}

func (t *rc1ShadowMap) DataTypeSupport() technique.DataType {
	return technique.DataTypeStructured
}

// EstimateStepSize returns the initial step size for a volume: half a voxel diagonal
// over sqrt(3), clamped to [MinStepSize, MaxStepSize].
//
// Parameters:
//   - voxelScale: the world size of one voxel, voxel size times volume scale
//
// Returns:
//   - float32: the step size in world units
func EstimateStepSize(voxelScale mgl32.Vec3) float32 {
	return common.Clamp(0.5/math32.Sqrt(3)*voxelScale.Len(), MinStepSize, MaxStepSize)
}

func (t *rc1ShadowMap) Init(width, height int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.IsBuilt() {
		t.clean()
	}
	vol := t.data.CurrentVolume()
	if vol == nil {
		log.Printf("rc1shadowmap: init: %v", data_manager.ErrNoVolume)
		return false
	}
	if width <= 0 || height <= 0 {
		log.Printf("rc1shadowmap: init: invalid size %dx%d", width, height)
		return false
	}
	if err := t.build(); err != nil {
		log.Printf("rc1shadowmap: init: %v", err)
		t.releaseResources()
		return false
	}

	voxel := vol.VoxelSize()
	scale := vol.Scale()
	voxelScale := mgl32.Vec3{voxel[0] * scale[0], voxel[1] * scale[1], voxel[2] * scale[2]}
	t.stepSize = EstimateStepSize(voxelScale)
	if t.fixedStepSize > 0 {
		t.stepSize = common.Clamp(t.fixedStepSize, MinStepSize, MaxStepSize)
	}
	t.referenceStep = math32.Min(voxelScale[0], math32.Min(voxelScale[1], voxelScale[2]))
	t.boxMin, t.boxMax = vol.BoxMin(), vol.BoxMax()

	t.SetBuilt()
	t.SetOutdated()
	sw, sh, _ := t.shadowMap.Size()
	log.Printf("rc1shadowmap: built for %s %v, shadow map %dx%d, step %.3f", vol.Name(), vol.Resolution(), sw, sh, t.stepSize)
	return true
}

// build creates every resource, sizing the shadow map to the presenter's target. On error
// the caller releases what was created. Caller must hold the mutex.
func (t *rc1ShadowMap) build() error {
	var err error
	if t.volume, err = t.data.CurrentVolumeTexture(); err != nil {
		return err
	}
	if t.gradient, err = t.data.CurrentGradientTexture(); err != nil {
		return err
	}
	if t.transferFunction, err = t.data.CurrentTransferFunction().GenerateTexture1D(t.r); err != nil {
		return err
	}
	if t.emptyGradient, err = t.r.CreateTexture(renderer.TextureDescriptor{
		Label:     "Empty Gradient",
		Dimension: renderer.TextureDimension3D,
		Format:    renderer.TextureFormatRGBA16Float,
		Width:     1,
		Height:    1,
		Depth:     1,
	}); err != nil {
		return err
	}
	if err := t.createShadowMap(t.targetSize()); err != nil {
		return err
	}
	if t.shaders == nil {
		if err := t.loadShaders(); err != nil {
			return err
		}
	}
	return t.createRenderingPass()
}

// createShadowMap replaces the shadow map with one of the given size.
// Caller must hold the mutex.
func (t *rc1ShadowMap) createShadowMap(width, height int) error {
	if t.shadowMap != nil {
		t.shadowMap.Release()
		t.shadowMap = nil
	}
	tex, err := t.r.CreateTexture(renderer.TextureDescriptor{
		Label:     "Shadow Map",
		Dimension: renderer.TextureDimension2D,
		Format:    renderer.TextureFormatRGBA16Float,
		Width:     uint32(width),
		Height:    uint32(height),
		Storage:   true,
	})
	if err != nil {
		return fmt.Errorf("shadow map: %w", err)
	}
	t.shadowMap = tex
	return nil
}

// loadShaders reads and parses the WGSL sources. Caller must hold the mutex.
func (t *rc1ShadowMap) loadShaders() error {
	set, err := loadShaders(t.shaderDir)
	if err != nil {
		return err
	}
	t.shaders = &set
	return nil
}

// gradientBinding returns the gradient texture the eye pass samples.
func (t *rc1ShadowMap) gradientBinding() renderer.Texture {
	if t.applyGradientShading && t.gradient != nil {
		return t.gradient
	}
	return t.emptyGradient
}

// createRenderingPass releases the kernels and builds them against the current textures
// and presenter target. On failure no kernel is kept. Caller must hold the mutex.
func (t *rc1ShadowMap) createRenderingPass() (err error) {
	t.releaseKernels()
	t.output = t.presenter.Target()
	defer func() {
		if err != nil {
			t.releaseKernels()
		}
	}()

	t.shadowPass, err = newShadowMapKernel(t.r, t.shaders.shadowMap, &t.shadowUniforms, shadowMapInputs{
		volume:           t.volume,
		transferFunction: t.transferFunction,
		shadowMap:        t.shadowMap,
	})
	if err != nil {
		return fmt.Errorf("shadow map pass: %w", err)
	}
	t.eyePass, err = newRayMarchingKernel(t.r, t.shaders.rayMarching, &t.eyeUniforms, rayMarchingInputs{
		volume:           t.volume,
		transferFunction: t.transferFunction,
		gradient:         t.gradientBinding(),
		shadowMap:        t.shadowMap,
		output:           t.output,
	})
	if err != nil {
		return fmt.Errorf("ray marching pass: %w", err)
	}
	t.debugPass, err = newTextureCopyKernel(t.r, t.shaders.textureCopy, t.shadowMap, t.output)
	if err != nil {
		return fmt.Errorf("shadow map debug view: %w", err)
	}
	return nil
}

func (t *rc1ShadowMap) Update(cam camera.Camera) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.IsBuilt() || cam == nil {
		return false
	}
	t.camera = cam
	if err := t.pushUniforms(); err != nil {
		log.Printf("rc1shadowmap: update: %v", err)
		return false
	}
	return true
}

// pushUniforms recomputes both uniform blocks for the last camera and uploads them.
// Caller must hold the mutex.
func (t *rc1ShadowMap) pushUniforms() error {
	if t.camera == nil {
		return nil
	}
	t.updateUniforms(t.camera)
	for _, k := range []renderer.Kernel{t.shadowPass, t.eyePass} {
		if err := k.UpdateUniforms(); err != nil {
			return err
		}
	}
	return nil
}

// updateUniforms fills both uniform blocks from the camera, light and parameters.
// Caller must hold the mutex.
func (t *rc1ShadowMap) updateUniforms(cam camera.Camera) {
	l := t.params.Light()
	lightFovY, lightAspect := l.Frustum(cam.FovY(), cam.Aspect())
	lightView := l.ViewMatrix()
	lightProjection := l.ProjectionMatrix(cam.FovY(), cam.Aspect())
	shadowWidth, shadowHeight, _ := t.shadowMap.Size()
	outputWidth, outputHeight, _ := t.output.Size()

	t.shadowUniforms = GPUShadowMapUniforms{
		LightInverseView: lightView.Inv(),
		LightPosition:    l.Position(),
		TanHalfFovY:      math32.Tan(lightFovY / 2),
		BoxMin:           t.boxMin,
		Aspect:           lightAspect,
		BoxMax:           t.boxMax,
		StepSize:         t.stepSize,
		ReferenceStep:    t.referenceStep,
		Width:            shadowWidth,
		Height:           shadowHeight,
	}

	bp := t.params.BlinnPhong()
	t.eyeUniforms = GPURayMarchingUniforms{
		InverseView:          cam.InverseViewMatrix(),
		LightViewProjection:  lightProjection.Mul4(lightView),
		LightView:            lightView,
		Eye:                  cam.Eye(),
		TanHalfFovY:          cam.TanHalfFovY(),
		LightPosition:        l.Position(),
		Aspect:               cam.Aspect(),
		LightColor:           l.Color(),
		StepSize:             t.stepSize,
		BoxMin:               t.boxMin,
		ReferenceStep:        t.referenceStep,
		BoxMax:               t.boxMax,
		ShadowNear:           light.DefaultShadowNear,
		Background:           t.params.Background(),
		Ka:                   bp.Ka,
		Kd:                   bp.Kd,
		Ks:                   bp.Ks,
		Shininess:            bp.Shininess,
		SpecularIntensity:    t.params.LightSpecularIntensity(),
		ShadowFar:            light.DefaultShadowFar,
		ApplyOcclusion:       boolToUint(t.applyOcclusion),
		ApplyShadow:          boolToUint(t.applyShadow),
		ApplyGradientShading: boolToUint(t.applyGradientShading && t.gradient != nil),
		Width:                outputWidth,
		Height:               outputHeight,
	}
}

func (t *rc1ShadowMap) Redraw() error {
	return t.redraw(t.presenter.Draw)
}

func (t *rc1ShadowMap) MultiSampleRedraw() error {
	return t.redraw(t.presenter.DrawMultiSampleHigherResolutionMode)
}

func (t *rc1ShadowMap) DownScalingRedraw() error {
	return t.redraw(t.presenter.DrawHigherResolutionWithDownScale)
}

func (t *rc1ShadowMap) UpScalingRedraw() error {
	return t.redraw(t.presenter.DrawLowerResolutionWithUpScale)
}

// redraw renders one frame into the presenter target and presents it with draw.
func (t *rc1ShadowMap) redraw(draw func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.IsBuilt() {
		return ErrNotBuilt
	}
	if err := t.syncTarget(); err != nil {
		return fmt.Errorf("rc1shadowmap: redraw: %w", err)
	}
	if err := t.presenter.ClearTexture(); err != nil {
		return fmt.Errorf("rc1shadowmap: redraw: %w", err)
	}

	f, err := t.r.BeginFrame()
	if err != nil {
		return fmt.Errorf("rc1shadowmap: redraw: %w", err)
	}
	err = t.dispatch(f)
	if endErr := f.End(); err == nil {
		err = endErr
	}
	if err != nil {
		return fmt.Errorf("rc1shadowmap: redraw: %w", err)
	}

	if err := draw(); err != nil {
		return fmt.Errorf("rc1shadowmap: present: %w", err)
	}
	t.SetUpToDate()
	return nil
}

// dispatch records the shadow-map pass, the barrier and the eye pass (or the debug view).
// Caller must hold the mutex.
func (t *rc1ShadowMap) dispatch(f renderer.Frame) error {
	if t.shadowPass == nil || t.eyePass == nil || t.debugPass == nil {
		return ErrNoRenderingPass
	}
	start := time.Now()
	sw, sh, _ := t.shadowMap.Size()
	if err := f.Dispatch(t.shadowPass, int(sw), int(sh)); err != nil {
		return err
	}
	if err := f.MemoryBarrier(); err != nil {
		return err
	}
	t.recordPass("shadow map", start)

	start = time.Now()
	ow, oh, _ := t.output.Size()
	eye := t.eyePass
	if t.debugShadowMap {
		eye = t.debugPass
	}
	if err := f.Dispatch(eye, int(ow), int(oh)); err != nil {
		return err
	}
	if err := f.MemoryBarrier(); err != nil {
		return err
	}
	t.recordPass("ray marching", start)
	return nil
}

func (t *rc1ShadowMap) recordPass(name string, start time.Time) {
	if t.profiler != nil {
		t.profiler.RecordPass(name, time.Since(start))
	}
}

// syncTarget follows a presenter target that was recreated since the kernels were built,
// resizing the shadow map with it. Caller must hold the mutex.
func (t *rc1ShadowMap) syncTarget() error {
	target := t.presenter.Target()
	if target == t.output && !t.output.Released() && t.shadowMapMatchesTarget() {
		return nil
	}
	return t.resize()
}

// targetSize returns the dimensions of the presenter's current render target.
func (t *rc1ShadowMap) targetSize() (int, int) {
	w, h, _ := t.presenter.Target().Size()
	return int(w), int(h)
}

func (t *rc1ShadowMap) shadowMapMatchesTarget() bool {
	if t.shadowMap == nil || t.shadowMap.Released() {
		return false
	}
	w, h, _ := t.shadowMap.Size()
	tw, th := t.targetSize()
	return int(w) == tw && int(h) == th
}

func (t *rc1ShadowMap) Resize(width, height int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.IsBuilt() {
		return nil
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("rc1shadowmap: resize: invalid size %dx%d", width, height)
	}
	if tw, th := t.targetSize(); tw != width || th != height {
		log.Printf("rc1shadowmap: resize: %dx%d requested, following the %dx%d target", width, height, tw, th)
	}
	if err := t.resize(); err != nil {
		return fmt.Errorf("rc1shadowmap: resize: %w", err)
	}
	return nil
}

// resize recreates the shadow map at the target size and the kernels bound to it.
// Caller must hold the mutex.
func (t *rc1ShadowMap) resize() error {
	// kernels reference the old shadow map until they are rebuilt
	t.releaseKernels()
	if err := t.createShadowMap(t.targetSize()); err != nil {
		return err
	}
	if err := t.createRenderingPass(); err != nil {
		return err
	}
	if err := t.pushUniforms(); err != nil {
		return err
	}
	t.SetOutdated()
	return nil
}

func (t *rc1ShadowMap) ReloadShaders() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.IsBuilt() {
		return ErrNotBuilt
	}
	if err := t.loadShaders(); err != nil {
		return fmt.Errorf("rc1shadowmap: reload shaders: %w", err)
	}
	if err := t.createRenderingPass(); err != nil {
		return fmt.Errorf("rc1shadowmap: reload shaders: %w", err)
	}
	t.SetOutdated()
	log.Printf("rc1shadowmap: shaders reloaded")
	return nil
}

// RecreateRenderingPass regenerates the transfer function texture from the data manager
// and rebuilds the kernels with the current resources.
func (t *rc1ShadowMap) RecreateRenderingPass() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.IsBuilt() {
		return ErrNotBuilt
	}
	t.releaseKernels()
	if t.transferFunction != nil {
		t.transferFunction.Release()
		t.transferFunction = nil
	}
	tf, err := t.data.CurrentTransferFunction().GenerateTexture1D(t.r)
	if err != nil {
		return fmt.Errorf("rc1shadowmap: recreate rendering pass: %w", err)
	}
	t.transferFunction = tf
	if err := t.createRenderingPass(); err != nil {
		return fmt.Errorf("rc1shadowmap: recreate rendering pass: %w", err)
	}
	t.SetOutdated()
	return nil
}

func (t *rc1ShadowMap) SetPanelComponents(p technique.Panel) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p.Text(Name)
	if p.DragFloat("Step Size", &t.stepSize, 0.01, MinStepSize, MaxStepSize, "%.2f") {
		t.SetOutdated()
	}
	if t.gradient != nil {
		if p.Checkbox("Apply Gradient Shading", &t.applyGradientShading) {
			t.rebindGradient()
			t.SetOutdated()
		}
	}
	p.Separator()
	if p.Checkbox("Apply Shadow", &t.applyShadow) {
		t.SetOutdated()
	}
	if p.Checkbox("Apply Occlusion", &t.applyOcclusion) {
		t.SetOutdated()
	}
	if p.Checkbox("Show Shadow Map", &t.debugShadowMap) {
		t.SetOutdated()
	}
}

// rebindGradient rebuilds the kernels so the eye pass samples the real gradient only
// while gradient shading is on. Caller must hold the mutex.
func (t *rc1ShadowMap) rebindGradient() {
	if !t.IsBuilt() {
		return
	}
	if err := t.createRenderingPass(); err != nil {
		log.Printf("rc1shadowmap: rebind gradient: %v", err)
	}
}

func (t *rc1ShadowMap) Clean() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State() == technique.StateUninitialized {
		return
	}
	t.clean()
}

// clean releases every resource and marks the technique destroyed. Caller must hold the mutex.
func (t *rc1ShadowMap) clean() {
	t.releaseResources()
	t.SetDestroyed()
}

// releaseResources releases owned resources and drops borrowed ones. Every step is a
// no-op on resources that were never created. Caller must hold the mutex.
func (t *rc1ShadowMap) releaseResources() {
	t.releaseKernels()
	for _, tex := range []*renderer.Texture{&t.transferFunction, &t.shadowMap, &t.emptyGradient} {
		if *tex != nil {
			(*tex).Release()
			*tex = nil
		}
	}
	t.volume, t.gradient, t.output = nil, nil, nil
	t.camera = nil
}

// releaseKernels releases the kernels. Caller must hold the mutex.
func (t *rc1ShadowMap) releaseKernels() {
	for _, k := range []*renderer.Kernel{&t.shadowPass, &t.eyePass, &t.debugPass} {
		if *k != nil {
			(*k).Release()
			*k = nil
		}
	}
}
