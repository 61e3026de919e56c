package engine

import (
	"testing"
	"time"

	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/Fastiz/cpp-volume-rendering/engine/camera"
	"github.com/Fastiz/cpp-volume-rendering/engine/data_manager"
	"github.com/Fastiz/cpp-volume-rendering/engine/frame"
	"github.com/Fastiz/cpp-volume-rendering/engine/light"
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer"
	"github.com/Fastiz/cpp-volume-rendering/engine/rendering_parameters"
	"github.com/Fastiz/cpp-volume-rendering/engine/technique"
	"github.com/Fastiz/cpp-volume-rendering/engine/technique/rc1shadowmap"
	"github.com/Fastiz/cpp-volume-rendering/engine/volume"
	"github.com/go-gl/mathgl/mgl32"
)

func newTestEngine(t *testing.T) *engine {
	t.Helper()
	r := renderer.NewRenderer(renderer.BackendTypeCPU, nil, renderer.WithWorkers(4))
	vol, err := volume.NewSphere(16, 0.6)
	if err != nil {
		t.Fatalf("NewSphere: %v", err)
	}
	data := data_manager.NewDataManager(r, data_manager.WithVolume(vol))
	params := rendering_parameters.NewRenderingParameters(
		rendering_parameters.WithLight(light.NewLight(light.WithPosition(mgl32.Vec3{0, 40, 0}))),
		rendering_parameters.WithScreenSize(32, 32),
	)
	presenter, err := frame.NewPresenter(r, 32, 32)
	if err != nil {
		t.Fatalf("NewPresenter: %v", err)
	}
	cam := camera.NewCamera(camera.WithController(camera.NewCameraController(
		camera.WithRadius(40),
		camera.WithRadiusBounds(1, 1000),
	)))
	tech := rc1shadowmap.NewRC1ShadowMap(r, data, params, presenter)

	e := NewEngine(
		WithRenderer(r),
		WithTechnique(tech, presenter, cam),
		WithRenderingParameters(params),
	).(*engine)
	t.Cleanup(func() {
		tech.Clean()
		data.Release()
		presenter.Release()
		r.Release()
	})
	return e
}

func TestRenderFramesInitializesAndPresents(t *testing.T) {
	e := newTestEngine(t)
	if err := e.RenderFrames(3); err != nil {
		t.Fatalf("RenderFrames: %v", err)
	}
	if got := e.Presenter().Frames(); got != 3 {
		t.Fatalf("presented %d frames, want 3", got)
	}
	if e.Technique().State() != technique.StateUpToDate {
		t.Fatalf("technique state = %v", e.Technique().State())
	}
}

func TestRenderFrameSkipsUnchangedFrames(t *testing.T) {
	e := newTestEngine(t)
	if drawn, err := e.RenderFrame(false); err != nil || !drawn {
		t.Fatalf("first frame: drawn %v, err %v", drawn, err)
	}
	if drawn, err := e.RenderFrame(false); err != nil || drawn {
		t.Fatalf("unchanged frame: drawn %v, err %v", drawn, err)
	}

	e.HandleKey(common.KeyA)
	e.tick(0)
	if drawn, err := e.RenderFrame(false); err != nil || !drawn {
		t.Fatalf("frame after orbiting: drawn %v, err %v", drawn, err)
	}
}

func TestPanelKeysToggleTechniqueFlags(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.RenderFrame(true); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if w, ok := e.Panel().Widget("Apply Shadow"); !ok || w.Value != true {
		t.Fatalf("Apply Shadow widget = %+v, %v", w, ok)
	}

	e.HandleKey(common.KeyL)
	e.tick(0)
	if drawn, err := e.RenderFrame(false); err != nil || !drawn {
		t.Fatalf("frame after toggling shadows: drawn %v, err %v", drawn, err)
	}
	if w, _ := e.Panel().Widget("Apply Shadow"); w.Value != false {
		t.Fatalf("Apply Shadow = %v after L", w.Value)
	}
}

func TestModeKeysResizeTarget(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.RenderFrame(true); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}

	e.HandleKey(common.Key4)
	e.tick(0)
	if e.Presenter().Mode() != frame.ModeUpScale || e.Presenter().Width() != 16 {
		t.Fatalf("mode %v, target width %d", e.Presenter().Mode(), e.Presenter().Width())
	}
	if e.params.MultiscalingMode() != frame.ModeUpScale {
		t.Fatalf("rendering parameters mode = %v", e.params.MultiscalingMode())
	}
	if _, err := e.RenderFrame(false); err != nil {
		t.Fatalf("RenderFrame after mode change: %v", err)
	}

	e.HandleKey(common.KeyM)
	e.tick(0)
	if e.Presenter().Mode() != frame.ModeNone {
		t.Fatalf("M after upscale selected %v, want none", e.Presenter().Mode())
	}
	if err := e.RenderFrames(1); err != nil {
		t.Fatalf("RenderFrames: %v", err)
	}
	if img := e.Presenter().Last(); img.Bounds().Dx() != 32 {
		t.Fatalf("presented width = %d", img.Bounds().Dx())
	}
}

func TestResizeFollowsScreen(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.RenderFrame(true); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if err := e.Resize(40, 20); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if e.Camera().Aspect() != 2 {
		t.Fatalf("camera aspect = %v", e.Camera().Aspect())
	}
	if w, h := e.params.ScreenSize(); w != 40 || h != 20 {
		t.Fatalf("screen size = %dx%d", w, h)
	}
	if drawn, err := e.RenderFrame(false); err != nil || !drawn {
		t.Fatalf("frame after resize: drawn %v, err %v", drawn, err)
	}
	if img := e.Presenter().Last(); img.Bounds().Dx() != 40 || img.Bounds().Dy() != 20 {
		t.Fatalf("presented %v", img.Bounds())
	}
}

func TestRenderFrameWithoutTechnique(t *testing.T) {
	e := NewEngine()
	if _, err := e.RenderFrame(true); err != ErrNoTechnique {
		t.Fatalf("RenderFrame = %v, want ErrNoTechnique", err)
	}
}

func TestRunStopsOnQuit(t *testing.T) {
	e := newTestEngine(t)
	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	deadline := time.After(10 * time.Second)
	for e.Presenter().Frames() == 0 {
		select {
		case <-deadline:
			t.Fatal("render loop presented no frame")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	e.Quit()
	e.Quit()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after Quit")
	}
	if e.Technique().State() != technique.StateUpToDate {
		t.Fatalf("technique state after Run = %v", e.Technique().State())
	}
}
