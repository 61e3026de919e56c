package rc1shadowmap

import (
	"errors"
	"testing"

	"github.com/Fastiz/cpp-volume-rendering/engine/camera"
	"github.com/Fastiz/cpp-volume-rendering/engine/data_manager"
	"github.com/Fastiz/cpp-volume-rendering/engine/frame"
	"github.com/Fastiz/cpp-volume-rendering/engine/light"
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer"
	"github.com/Fastiz/cpp-volume-rendering/engine/rendering_parameters"
	"github.com/Fastiz/cpp-volume-rendering/engine/technique"
	"github.com/Fastiz/cpp-volume-rendering/engine/transfer_function"
	"github.com/Fastiz/cpp-volume-rendering/engine/volume"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const testSize = 48

// scene is a sphere of radius 4.8 inside the box [-8, 8]³, seen from +z and lit from +y.
type scene struct {
	r         renderer.Renderer
	data      data_manager.DataManager
	params    rendering_parameters.RenderingParameters
	presenter frame.Presenter
	camera    camera.Camera
	tech      *rc1ShadowMap
}

type sceneOptions struct {
	volume     volume.StructuredVolume
	tf         transfer_function.TransferFunction
	background mgl32.Vec4
	options    []RC1ShadowMapBuilderOption
}

func newScene(t *testing.T, so sceneOptions) *scene {
	t.Helper()
	r := renderer.NewRenderer(renderer.BackendTypeCPU, nil, renderer.WithWorkers(4))

	vol := so.volume
	if vol == nil {
		var err error
		if vol, err = volume.NewSphere(16, 0.6); err != nil {
			t.Fatalf("NewSphere: %v", err)
		}
	}
	dmOptions := []data_manager.DataManagerBuilderOption{data_manager.WithVolume(vol)}
	if so.tf != nil {
		dmOptions = append(dmOptions, data_manager.WithTransferFunction(so.tf))
	}
	data := data_manager.NewDataManager(r, dmOptions...)

	params := rendering_parameters.NewRenderingParameters(
		rendering_parameters.WithLight(light.NewLight(
			light.WithPosition(mgl32.Vec3{0, 40, 0}),
			light.WithForward(mgl32.Vec3{0, -1, 0}),
		)),
		rendering_parameters.WithScreenSize(testSize, testSize),
		rendering_parameters.WithBackground(so.background),
	)
	presenter, err := frame.NewPresenter(r, testSize, testSize)
	if err != nil {
		t.Fatalf("NewPresenter: %v", err)
	}

	s := &scene{
		r:         r,
		data:      data,
		params:    params,
		presenter: presenter,
		camera:    camera.NewCamera(camera.WithEye(mgl32.Vec3{0, 0, 40})),
		tech:      NewRC1ShadowMap(r, data, params, presenter, so.options...).(*rc1ShadowMap),
	}
	t.Cleanup(func() {
		s.tech.Clean()
		s.data.Release()
		s.presenter.Release()
		s.r.Release()
	})
	return s
}

// render initializes the technique if needed and draws one frame.
func (s *scene) render(t *testing.T) renderer.HostTexture {
	t.Helper()
	if !s.tech.IsBuilt() {
		if !s.tech.Init(s.presenter.Width(), s.presenter.Height()) {
			t.Fatalf("Init failed")
		}
	}
	if !s.tech.Update(s.camera) {
		t.Fatalf("Update failed")
	}
	if err := s.tech.Redraw(); err != nil {
		t.Fatalf("Redraw: %v", err)
	}
	return s.presenter.Target().(renderer.HostTexture)
}

// renderEyePass dispatches only the eye pass, leaving the shadow map as it is.
func (s *scene) renderEyePass(t *testing.T) []mgl32.Vec4 {
	t.Helper()
	s.tech.mu.Lock()
	defer s.tech.mu.Unlock()

	f, err := s.r.BeginFrame()
	if err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	w, h, _ := s.tech.output.Size()
	if err := f.Dispatch(s.tech.eyePass, int(w), int(h)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := f.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	return pixels(s.tech.output.(renderer.HostTexture))
}

func (s *scene) shadowMap() renderer.HostTexture {
	return s.tech.shadowMap.(renderer.HostTexture)
}

func pixels(tex renderer.HostTexture) []mgl32.Vec4 {
	w, h, _ := tex.Size()
	out := make([]mgl32.Vec4, 0, w*h)
	for y := 0; y < int(h); y++ {
		for x := 0; x < int(w); x++ {
			out = append(out, tex.Load(x, y, 0))
		}
	}
	return out
}

func near(a, b mgl32.Vec4, tolerance float32) bool {
	for i := range a {
		if math32.Abs(a[i]-b[i]) > tolerance {
			return false
		}
	}
	return true
}

func TestMetadata(t *testing.T) {
	s := newScene(t, sceneOptions{})
	if s.tech.Name() != "1-Pass - Ray Casting with Shadow Map" {
		t.Errorf("Name = %q", s.tech.Name())
	}
	if s.tech.AbbreviationName() != "s_1rc" {
		t.Errorf("AbbreviationName = %q", s.tech.AbbreviationName())
	}
	if s.tech.DataTypeSupport() != technique.DataTypeStructured {
		t.Errorf("DataTypeSupport = %v", s.tech.DataTypeSupport())
	}
}

func TestLifecycle(t *testing.T) {
	s := newScene(t, sceneOptions{})
	if s.tech.State() != technique.StateUninitialized {
		t.Fatalf("new technique state = %v", s.tech.State())
	}
	if s.tech.Update(s.camera) {
		t.Fatalf("Update succeeded before Init")
	}
	if err := s.tech.Redraw(); !errors.Is(err, ErrNotBuilt) {
		t.Fatalf("Redraw before Init = %v, want ErrNotBuilt", err)
	}

	if !s.tech.Init(s.presenter.Width(), s.presenter.Height()) {
		t.Fatalf("Init failed")
	}
	if s.tech.State() != technique.StateOutdated {
		t.Fatalf("state after Init = %v", s.tech.State())
	}
	if math32.Abs(s.tech.stepSize-0.5) > 1e-6 || s.tech.referenceStep != 1 {
		t.Fatalf("step %v, reference %v for unit voxels", s.tech.stepSize, s.tech.referenceStep)
	}
	if !s.tech.Update(s.camera) || s.tech.State() != technique.StateOutdated {
		t.Fatalf("Update changed state to %v", s.tech.State())
	}
	if err := s.tech.Redraw(); err != nil {
		t.Fatalf("Redraw: %v", err)
	}
	if s.tech.State() != technique.StateUpToDate {
		t.Fatalf("state after Redraw = %v", s.tech.State())
	}

	panel := technique.NewScriptedPanel()
	panel.Set("Step Size", float32(0.25))
	panel.Begin()
	s.tech.SetPanelComponents(panel)
	panel.End()
	if s.tech.State() != technique.StateOutdated || s.tech.stepSize != 0.25 {
		t.Fatalf("after panel edit: state %v, step %v", s.tech.State(), s.tech.stepSize)
	}
	for _, label := range []string{"Step Size", "Apply Gradient Shading", "Apply Shadow", "Apply Occlusion", "Show Shadow Map"} {
		if _, ok := panel.Widget(label); !ok {
			t.Errorf("panel has no %q widget:\n%s", label, panel)
		}
	}

	s.tech.Clean()
	if s.tech.State() != technique.StateDestroyed {
		t.Fatalf("state after Clean = %v", s.tech.State())
	}
	if err := s.tech.Redraw(); !errors.Is(err, ErrNotBuilt) {
		t.Fatalf("Redraw after Clean = %v, want ErrNotBuilt", err)
	}
}

func TestInitWithoutVolume(t *testing.T) {
	r := renderer.NewRenderer(renderer.BackendTypeCPU, nil)
	defer r.Release()
	presenter, err := frame.NewPresenter(r, 8, 8)
	if err != nil {
		t.Fatalf("NewPresenter: %v", err)
	}
	defer presenter.Release()

	live := r.LiveTextures()
	tech := NewRC1ShadowMap(r, data_manager.NewDataManager(r), rendering_parameters.NewRenderingParameters(), presenter)
	if tech.Init(8, 8) {
		t.Fatalf("Init succeeded without a volume")
	}
	if tech.State() != technique.StateUninitialized {
		t.Fatalf("state after failed Init = %v", tech.State())
	}
	if r.LiveTextures() != live {
		t.Fatalf("Init leaked textures: %d live, want %d", r.LiveTextures(), live)
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	s := newScene(t, sceneOptions{})
	s.tech.Clean()
	if s.tech.State() != technique.StateUninitialized {
		t.Fatalf("Clean of a fresh technique changed state to %v", s.tech.State())
	}

	s.render(t)
	shadowMap := s.tech.shadowMap
	s.tech.Clean()
	s.tech.Clean()
	if s.tech.State() != technique.StateDestroyed {
		t.Fatalf("state = %v", s.tech.State())
	}
	if !shadowMap.Released() {
		t.Fatalf("shadow map not released")
	}
	// volume, gradient and the frame target belong to the data manager and presenter
	if got := s.r.LiveTextures(); got != 3 {
		t.Fatalf("live textures after Clean = %d, want 3", got)
	}

	if !s.tech.Init(s.presenter.Width(), s.presenter.Height()) {
		t.Fatalf("Init after Clean failed")
	}
}

func TestMissingRaysShowBackground(t *testing.T) {
	backgrounds := []mgl32.Vec4{{}, {0.2, 0.4, 0.6, 1}}
	for _, bg := range backgrounds {
		for _, occlusion := range []bool{true, false} {
			s := newScene(t, sceneOptions{background: bg, options: []RC1ShadowMapBuilderOption{WithOcclusion(occlusion)}})
			out := s.render(t)
			if got := out.Load(0, 0, 0); !near(got, bg, 1.5/255) {
				t.Errorf("occlusion %v: corner pixel = %v, want background %v", occlusion, got, bg)
			}
			if got := s.shadowMap().Load(0, 0, 0); !near(got, mgl32.Vec4{1, 1, 1, 1}, 1e-3) {
				t.Errorf("occlusion %v: shadow texel missing the box = %v, want fully lit", occlusion, got)
			}
		}
	}
}

func TestShadowMapRecordsOcclusionBelowTheSurface(t *testing.T) {
	s := newScene(t, sceneOptions{})
	s.render(t)
	center := s.shadowMap().Load(testSize/2, testSize/2, 0)
	// the light ray through the center crosses the full sphere before the last layer
	if center[3] > 0.05 {
		t.Fatalf("center shadow texel = %v, want the last layer occluded", center)
	}
	for i := 1; i < 4; i++ {
		if center[i] > center[i-1]+1e-3 {
			t.Fatalf("transmittance increases along the light ray: %v", center)
		}
	}
}

func TestResizeRecreatesShadowMap(t *testing.T) {
	s := newScene(t, sceneOptions{})
	s.render(t)

	old := s.tech.shadowMap
	if err := s.presenter.Resize(20, 10); err != nil {
		t.Fatalf("presenter Resize: %v", err)
	}
	if err := s.tech.Resize(s.presenter.Width(), s.presenter.Height()); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if w, h, _ := s.tech.shadowMap.Size(); w != 20 || h != 10 {
		t.Fatalf("shadow map is %dx%d, want 20x10", w, h)
	}
	if !old.Released() {
		t.Fatalf("old shadow map not released")
	}
	if s.tech.State() != technique.StateOutdated {
		t.Fatalf("state after Resize = %v", s.tech.State())
	}
	s.render(t)
}

func TestRedrawFollowsRecreatedTarget(t *testing.T) {
	s := newScene(t, sceneOptions{})
	s.render(t)
	if err := s.presenter.Resize(24, 24); err != nil {
		t.Fatalf("presenter Resize: %v", err)
	}
	out := s.render(t)
	if w, h, _ := s.tech.shadowMap.Size(); w != 24 || h != 24 {
		t.Fatalf("shadow map is %dx%d, want 24x24", w, h)
	}
	if w, _, _ := out.Size(); w != 24 {
		t.Fatalf("target width = %d", w)
	}
}

func TestResizeBeforeInitIsNoop(t *testing.T) {
	s := newScene(t, sceneOptions{})
	if err := s.tech.Resize(10, 10); err != nil {
		t.Fatalf("Resize before Init: %v", err)
	}
	if s.tech.State() != technique.StateUninitialized {
		t.Fatalf("state = %v", s.tech.State())
	}
}

func TestInitSizesShadowMapToTarget(t *testing.T) {
	s := newScene(t, sceneOptions{})
	if !s.tech.Init(100, 70) {
		t.Fatalf("Init failed")
	}
	if w, h, _ := s.tech.shadowMap.Size(); w != testSize || h != testSize {
		t.Fatalf("shadow map is %dx%d after Init(100, 70), want %dx%d", w, h, testSize, testSize)
	}
	s.render(t)

	if err := s.tech.Resize(30, 30); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if w, h, _ := s.tech.shadowMap.Size(); w != testSize || h != testSize {
		t.Fatalf("shadow map is %dx%d after Resize(30, 30), want the %dx%d target", w, h, testSize, testSize)
	}
	if err := s.tech.Resize(0, 10); err == nil {
		t.Fatalf("Resize(0, 10) should fail")
	}
	if s.tech.Init(0, 0) {
		t.Fatalf("Init(0, 0) should fail")
	}
}

func TestDarkerShadowMapNeverBrightens(t *testing.T) {
	s := newScene(t, sceneOptions{})
	s.render(t)

	var previous []mgl32.Vec4
	for _, v := range []float32{1, 0.6, 0.2} {
		s.shadowMap().Clear(mgl32.Vec4{v, v, v, v})
		current := s.renderEyePass(t)
		if previous != nil {
			for i := range current {
				for c := 0; c < 3; c++ {
					if current[i][c] > previous[i][c]+1.5/255 {
						t.Fatalf("transmittance %v brightened pixel %d: %v > %v", v, i, current[i], previous[i])
					}
				}
			}
		}
		previous = current
	}
}

func TestShadowTogglesShadowMapInfluence(t *testing.T) {
	for _, shadow := range []bool{false, true} {
		s := newScene(t, sceneOptions{options: []RC1ShadowMapBuilderOption{WithShadow(shadow)}})
		s.render(t)

		s.shadowMap().Clear(mgl32.Vec4{1, 1, 1, 1})
		lit := s.renderEyePass(t)
		s.shadowMap().Clear(mgl32.Vec4{})
		dark := s.renderEyePass(t)

		same := true
		for i := range lit {
			if lit[i] != dark[i] {
				same = false
				break
			}
		}
		if same == shadow {
			t.Errorf("shadow %v: output independent of shadow map = %v", shadow, same)
		}
	}
}

func TestGradientIgnoredWhenShadingIsOff(t *testing.T) {
	s := newScene(t, sceneOptions{})
	before := pixels(s.render(t))

	gradient, err := s.data.CurrentGradientTexture()
	if err != nil || gradient == nil {
		t.Fatalf("CurrentGradientTexture: %v, %v", gradient, err)
	}
	gradient.(renderer.HostTexture).Clear(mgl32.Vec4{5, -5, 5, 0})
	after := pixels(s.render(t))
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("pixel %d changed with the gradient: %v -> %v", i, before[i], after[i])
		}
	}

	shaded := newScene(t, sceneOptions{options: []RC1ShadowMapBuilderOption{WithGradientShading(true)}})
	withShading := pixels(shaded.render(t))
	differs := false
	for i := range before {
		if before[i] != withShading[i] {
			differs = true
			break
		}
	}
	if !differs {
		t.Fatalf("gradient shading had no effect")
	}
}

func TestPanelTogglesGradientBinding(t *testing.T) {
	s := newScene(t, sceneOptions{})
	s.render(t)
	if s.tech.gradientBinding() != s.tech.emptyGradient {
		t.Fatalf("eye pass bound the gradient with shading off")
	}
	panel := technique.NewScriptedPanel()
	panel.Set("Apply Gradient Shading", true)
	panel.Begin()
	s.tech.SetPanelComponents(panel)
	panel.End()
	if s.tech.gradientBinding() != s.tech.gradient {
		t.Fatalf("eye pass did not bind the gradient after enabling shading")
	}
	s.render(t)
}

func TestSphereIsLitFromAbove(t *testing.T) {
	s := newScene(t, sceneOptions{})
	out := s.render(t)

	var top, bottom float32
	var topCount, bottomCount int
	for y := 0; y < testSize; y++ {
		for x := 0; x < testSize; x++ {
			p := out.Load(x, y, 0)
			if p[3] < 0.5 {
				continue
			}
			if y < testSize/2 {
				top += p[0]
				topCount++
			} else {
				bottom += p[0]
				bottomCount++
			}
		}
	}
	if topCount == 0 || bottomCount == 0 {
		t.Fatalf("sphere not visible: %d top, %d bottom pixels", topCount, bottomCount)
	}
	top /= float32(topCount)
	bottom /= float32(bottomCount)
	if top-bottom < 0.1 {
		t.Fatalf("mean brightness top %v, bottom %v: lit hemisphere not brighter", top, bottom)
	}
}

func TestDebugViewShowsShadowMap(t *testing.T) {
	s := newScene(t, sceneOptions{options: []RC1ShadowMapBuilderOption{WithDebugShadowMap(true)}})
	out := s.render(t)
	if got := out.Load(0, 0, 0); !near(got, mgl32.Vec4{1, 1, 1, 1}, 1.5/255) {
		t.Fatalf("debug view corner = %v, want a fully lit texel", got)
	}
	if got := out.Load(testSize/2, testSize/2, 0); got[2] > 0.05 {
		t.Fatalf("debug view center = %v, want an occluded third layer", got)
	}
}

func TestRefinedStepConverges(t *testing.T) {
	vol, err := volume.NewGaussian(16, 0.5)
	if err != nil {
		t.Fatalf("NewGaussian: %v", err)
	}
	tf := transfer_function.Ramp(0.1, 1, mgl32.Vec3{1, 1, 1}, 0.3)

	render := func(step float32) []mgl32.Vec4 {
		s := newScene(t, sceneOptions{volume: vol, tf: tf, options: []RC1ShadowMapBuilderOption{WithStepSize(step)}})
		return pixels(s.render(t))
	}
	coarse, fine := render(0.5), render(0.25)

	var sum, worst float32
	for i := range coarse {
		for c := 0; c < 4; c++ {
			d := math32.Abs(coarse[i][c] - fine[i][c])
			sum += d
			worst = math32.Max(worst, d)
		}
	}
	mean := sum / float32(len(coarse)*4)
	if mean > 0.03 || worst > 0.15 {
		t.Fatalf("step 0.5 vs 0.25: mean difference %v, max %v", mean, worst)
	}
}

func TestReloadAndRecreate(t *testing.T) {
	s := newScene(t, sceneOptions{})
	if err := s.tech.ReloadShaders(); !errors.Is(err, ErrNotBuilt) {
		t.Fatalf("ReloadShaders before Init = %v", err)
	}
	s.render(t)

	if err := s.tech.ReloadShaders(); err != nil {
		t.Fatalf("ReloadShaders: %v", err)
	}
	if s.tech.State() != technique.StateOutdated {
		t.Fatalf("state after ReloadShaders = %v", s.tech.State())
	}
	s.render(t)

	s.data.SetTransferFunction(transfer_function.Ramp(0.1, 1, mgl32.Vec3{1, 0, 0}, 1))
	if err := s.tech.RecreateRenderingPass(); err != nil {
		t.Fatalf("RecreateRenderingPass: %v", err)
	}
	out := s.render(t)
	center := out.Load(testSize/2, testSize/2-4, 0)
	if center[3] < 0.5 || center[1] > 0.01 {
		t.Fatalf("pixel on the sphere = %v, want red", center)
	}
}

func TestMultiscaleRedraws(t *testing.T) {
	s := newScene(t, sceneOptions{})
	s.render(t)
	for name, redraw := range map[string]func() error{
		"multisample": s.tech.MultiSampleRedraw,
		"downscale":   s.tech.DownScalingRedraw,
		"upscale":     s.tech.UpScalingRedraw,
	} {
		if err := redraw(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
		if s.tech.State() != technique.StateUpToDate {
			t.Errorf("%s: state = %v", name, s.tech.State())
		}
	}
	if got := s.presenter.Frames(); got != 4 {
		t.Fatalf("presented %d frames, want 4", got)
	}
}
