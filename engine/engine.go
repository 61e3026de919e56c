package engine

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/Fastiz/cpp-volume-rendering/engine/camera"
	"github.com/Fastiz/cpp-volume-rendering/engine/frame"
	"github.com/Fastiz/cpp-volume-rendering/engine/profiler"
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer"
	"github.com/Fastiz/cpp-volume-rendering/engine/rendering_parameters"
	"github.com/Fastiz/cpp-volume-rendering/engine/technique"
	"github.com/Fastiz/cpp-volume-rendering/engine/window"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrNoTechnique is returned when the engine is asked to render without a technique.
var ErrNoTechnique = errors.New("engine: no technique")

// dragOrbitSpeed is the orbit angle in radians per dragged pixel.
const dragOrbitSpeed = 0.01

// modeCycle is the order the M key steps through multiscaling modes.
var modeCycle = []frame.Mode{frame.ModeNone, frame.ModeMultiSample, frame.ModeDownScale, frame.ModeUpScale}

// engine implements the Engine interface.
// Coordinates the tick loop, the render loop and the window.
type engine struct {
	tickRateChannel chan time.Duration
	keyChannel      chan uint32

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	// renderMu serializes frames, resizes and mode changes.
	renderMu *sync.Mutex

	window    window.Window
	renderer  renderer.Renderer
	presenter frame.Presenter
	technique technique.Technique
	camera    camera.Camera
	params    rendering_parameters.RenderingParameters
	panel     *technique.ScriptedPanel

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	lastView  mgl32.Mat4
	hasDrawn  bool
	lastFrame time.Time
}

// Engine drives a volume rendering technique: it feeds camera input and panel edits to
// the technique, redraws it when something changed and presents the result.
type Engine interface {
	// Window returns the window, or nil for a headless engine.
	Window() window.Window

	// Presenter returns the frame presenter the technique renders into.
	Presenter() frame.Presenter

	// Technique returns the rendering technique.
	Technique() technique.Technique

	// Camera returns the camera passed to the technique each frame.
	Camera() camera.Camera

	// Panel returns the panel the technique's parameters are drawn on every frame.
	// Edits queued with Set take effect on the next frame.
	Panel() *technique.ScriptedPanel

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the input tick rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// HandleKey queues a key press for the next tick. Camera keys move the orbit
	// controller; F5 reloads shaders, M cycles the multiscaling mode, 1-4 select it,
	// L toggles shadows, Space toggles the shadow-map view and P logs the panel.
	//
	// Parameters:
	//   - keyCode: a key code from the common package
	HandleKey(keyCode uint32)

	// SetMode switches the multiscaling mode, recreating the render target.
	//
	// Parameters:
	//   - mode: the new mode
	//
	// Returns:
	//   - error: a presenter or technique error
	SetMode(mode frame.Mode) error

	// Resize resizes the screen. The presenter target, camera aspect, technique and
	// window surface follow.
	//
	// Parameters:
	//   - width: screen width in pixels
	//   - height: screen height in pixels
	//
	// Returns:
	//   - error: a presenter or technique error
	Resize(width, height int) error

	// RenderFrame initializes the technique if needed and renders one frame. The technique
	// is redrawn only when it is outdated or the camera moved, unless force is set.
	//
	// Parameters:
	//   - force: redraw even if nothing changed
	//
	// Returns:
	//   - bool: true if a frame was drawn
	//   - error: a technique or presentation error
	RenderFrame(force bool) (bool, error)

	// RenderFrames renders n frames without a window, calling the tick callback before
	// each one. Used for headless output.
	//
	// Parameters:
	//   - n: the number of frames
	//
	// Returns:
	//   - error: the first frame error
	RenderFrames(n int) error

	// Run starts the tick and render loops and processes window messages. Blocks until
	// the window closes or Quit is called.
	Run()

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine with the provided options.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel:  make(chan time.Duration, 1),
		keyChannel:       make(chan uint32, 64),
		quitChannel:      make(chan struct{}),
		renderMu:         &sync.Mutex{},
		wg:               sync.WaitGroup{},
		panel:            technique.NewScriptedPanel(),
		profiler:         profiler.NewProfiler(),
		profilingEnabled: false,
		engineTickRate:   time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			if width <= 0 || height <= 0 {
				return
			}
			if err := e.Resize(width, height); err != nil {
				log.Printf("engine: resize: %v", err)
			}
		})
		e.window.SetKeyDownCallback(e.HandleKey)
		e.window.SetScrollCallback(func(delta float32) {
			if e.camera != nil && e.camera.Controller() != nil {
				e.camera.Controller().Zoom(delta)
			}
		})
		e.window.SetDragCallback(func(dx, dy float32) {
			if e.camera == nil || e.camera.Controller() == nil {
				return
			}
			orbit := e.camera.Controller()
			orbit.SetAzimuth(orbit.Azimuth() - dx*dragOrbitSpeed)
			orbit.SetElevation(orbit.Elevation() + dy*dragOrbitSpeed)
		})
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Presenter() frame.Presenter {
	return e.presenter
}

func (e *engine) Technique() technique.Technique {
	return e.technique
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) Panel() *technique.ScriptedPanel {
	return e.panel
}

func (e *engine) Run() {
	e.running = true
	e.handle()
	if e.window == nil {
		e.wg.Wait()
		return
	}
	e.window.ProcessMessages()
	e.signalQuit()
	e.wg.Wait()
	if err := e.window.Close(); err != nil {
		log.Printf("engine: close window: %v", err)
	}
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit and asks the window
// message loop to stop. The window itself is closed by Run on the main thread.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running = false
		close(e.quitChannel)
		if e.window != nil {
			e.window.RequestClose()
		}
	})
}

// handle launches the tick and render goroutines.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate tick loop. Queued keys are applied on each tick so
// input never races a frame in flight.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			e.tick(dt)
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// tick applies queued keys and runs the tick callback.
func (e *engine) tick(dt float32) {
drain:
	for {
		select {
		case key := <-e.keyChannel:
			e.applyKey(key)
		default:
			break drain
		}
	}
	if e.tickCallback != nil {
		e.tickCallback(dt)
	}
}

// handleRender runs the render loop. Recovers from panics to avoid crashing the process
// and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: render goroutine recovered from panic: %v", r)
			e.signalQuit()
		}
	}()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			start := time.Now()
			drawn, err := e.RenderFrame(false)
			if err != nil {
				log.Printf("engine: %v", err)
				e.signalQuit()
				return
			}
			if !drawn {
				// nothing changed; avoid spinning
				time.Sleep(time.Millisecond)
			}

			if e.renderFrameLimit > 0 {
				if remaining := e.renderFrameLimit - time.Since(start); remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

func (e *engine) RenderFrame(force bool) (bool, error) {
	if e.technique == nil || e.presenter == nil || e.camera == nil {
		return false, ErrNoTechnique
	}
	e.renderMu.Lock()
	defer e.renderMu.Unlock()

	if state := e.technique.State(); state == technique.StateUninitialized || state == technique.StateDestroyed {
		if !e.technique.Init(e.presenter.Width(), e.presenter.Height()) {
			return false, fmt.Errorf("engine: %s failed to initialize", e.technique.Name())
		}
		force = true
	}

	e.panel.Begin()
	e.technique.SetPanelComponents(e.panel)
	e.panel.End()

	e.camera.Update()
	view := e.camera.ViewMatrix()
	moved := !e.hasDrawn || view != e.lastView
	if !force && !moved && e.technique.State() == technique.StateUpToDate {
		return false, nil
	}
	if !e.technique.Update(e.camera) {
		return false, fmt.Errorf("engine: %s rejected the camera", e.technique.Name())
	}
	if err := e.redraw(); err != nil {
		return false, err
	}
	e.lastView = view
	e.hasDrawn = true

	now := time.Now()
	var dt float32
	if !e.lastFrame.IsZero() {
		dt = float32(now.Sub(e.lastFrame).Seconds())
	}
	e.lastFrame = now
	if e.renderCallback != nil {
		e.renderCallback(dt)
	}
	if e.profilingEnabled && e.profiler != nil {
		e.profiler.Tick()
	}
	return true, nil
}

// redraw calls the technique's redraw variant for the presenter's multiscaling mode.
// Caller must hold renderMu.
func (e *engine) redraw() error {
	switch e.presenter.Mode() {
	case frame.ModeMultiSample:
		return e.technique.MultiSampleRedraw()
	case frame.ModeDownScale:
		return e.technique.DownScalingRedraw()
	case frame.ModeUpScale:
		return e.technique.UpScalingRedraw()
	default:
		return e.technique.Redraw()
	}
}

func (e *engine) RenderFrames(n int) error {
	dt := float32(e.engineTickRate.Seconds())
	for i := 0; i < n; i++ {
		e.tick(dt)
		if _, err := e.RenderFrame(true); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return nil
}

func (e *engine) HandleKey(keyCode uint32) {
	select {
	case e.keyChannel <- keyCode:
	default:
		// drop input when ticks fall behind
	}
}

// applyKey runs the action bound to a key.
func (e *engine) applyKey(keyCode uint32) {
	switch keyCode {
	case common.KeyF5:
		if e.technique == nil {
			return
		}
		e.renderMu.Lock()
		err := e.technique.ReloadShaders()
		e.renderMu.Unlock()
		if err != nil {
			log.Printf("engine: %v", err)
		}
	case common.KeyM:
		next := modeCycle[0]
		for i, m := range modeCycle {
			if m == e.presenter.Mode() {
				next = modeCycle[(i+1)%len(modeCycle)]
			}
		}
		e.setModeLogged(next)
	case common.Key1, common.Key2, common.Key3, common.Key4:
		e.setModeLogged(modeCycle[keyCode-common.Key1])
	case common.KeyL:
		e.togglePanelCheckbox("Apply Shadow")
	case common.KeySpace:
		e.togglePanelCheckbox("Show Shadow Map")
	case common.KeyP:
		log.Printf("engine: panel\n%s", e.panel)
	default:
		if e.camera != nil && e.camera.Controller() != nil {
			e.camera.Controller().HandleKey(keyCode)
		}
	}
}

func (e *engine) setModeLogged(mode frame.Mode) {
	if err := e.SetMode(mode); err != nil {
		log.Printf("engine: %v", err)
	}
}

// togglePanelCheckbox queues the inverse of a checkbox's last drawn value.
func (e *engine) togglePanelCheckbox(label string) {
	w, ok := e.panel.Widget(label)
	if !ok {
		return
	}
	if v, ok := w.Value.(bool); ok {
		e.panel.Set(label, !v)
	}
}

func (e *engine) SetMode(mode frame.Mode) error {
	if e.presenter == nil {
		return ErrNoTechnique
	}
	e.renderMu.Lock()
	defer e.renderMu.Unlock()

	if err := e.presenter.SetMode(mode); err != nil {
		return err
	}
	if e.params != nil {
		e.params.SetMultiscalingMode(mode)
	}
	if e.technique != nil {
		return e.technique.Resize(e.presenter.Width(), e.presenter.Height())
	}
	return nil
}

func (e *engine) Resize(width, height int) error {
	if e.presenter == nil {
		return ErrNoTechnique
	}
	e.renderMu.Lock()
	defer e.renderMu.Unlock()

	if e.renderer != nil {
		e.renderer.Resize(width, height)
	}
	if err := e.presenter.Resize(width, height); err != nil {
		return err
	}
	if e.params != nil {
		e.params.SetScreenSize(width, height)
	}
	if e.camera != nil {
		e.camera.SetAspect(float32(width) / float32(height))
	}
	if e.technique != nil {
		return e.technique.Resize(e.presenter.Width(), e.presenter.Height())
	}
	return nil
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in ticks per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if e.running {
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}
