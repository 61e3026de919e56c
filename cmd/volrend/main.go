// Command volrend renders a volume with one-pass ray casting and a shadow map.
//
// Usage:
//
//	volrend [config.json]
//
// The config selects the output: png writes headless frames, serve streams frames to
// websocket clients on /stream, window opens an interactive WGPU viewer.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"

	"github.com/Fastiz/cpp-volume-rendering/engine"
	"github.com/Fastiz/cpp-volume-rendering/engine/data_manager"
	"github.com/Fastiz/cpp-volume-rendering/engine/frame"
	"github.com/Fastiz/cpp-volume-rendering/engine/profiler"
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer"
	"github.com/Fastiz/cpp-volume-rendering/engine/technique/rc1shadowmap"
	"github.com/Fastiz/cpp-volume-rendering/engine/window"
)

func init() {
	// GLFW must run on the main thread.
	runtime.LockOSThread()
}

func main() {
	if path := os.Getenv("VOLREND_CPUPROFILE"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			panic(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			panic(err)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = f.Close()
		}()
	}

	cfgPath := ""
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := LoadConfig(cfgPath)
	if err == nil {
		err = run(cfg)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// run builds the viewer from cfg and drives it until the output is done.
func run(cfg Config) error {
	backend, err := cfg.backendType()
	if err != nil {
		return err
	}

	var win window.Window
	if cfg.Output == "window" {
		if win, err = window.NewWindow(
			window.WithTitle(rc1shadowmap.Name),
			window.WithSize(cfg.Width, cfg.Height),
		); err != nil {
			return err
		}
		// the framebuffer may be larger than the requested size on high-DPI displays
		cfg.Width, cfg.Height = win.Width(), win.Height()
	}

	var rendererOpts []renderer.RendererBuilderOption
	if cfg.Workers > 0 {
		rendererOpts = append(rendererOpts, renderer.WithWorkers(cfg.Workers))
	}
	r := renderer.NewRenderer(backend, win, rendererOpts...)
	defer r.Release()

	vol, err := cfg.BuildVolume()
	if err != nil {
		return err
	}
	tf, err := cfg.BuildTransferFunction()
	if err != nil {
		return err
	}
	dmOpts := []data_manager.DataManagerBuilderOption{
		data_manager.WithVolume(vol),
		data_manager.WithGradientGeneration(cfg.GradientShading),
	}
	if tf != nil {
		dmOpts = append(dmOpts, data_manager.WithTransferFunction(tf))
	}
	data := data_manager.NewDataManager(r, dmOpts...)
	defer data.Release()

	params := cfg.BuildRenderingParameters(cfg.BuildLight(vol))
	cam := cfg.BuildCamera(vol)

	var sink frame.Sink
	var stream frame.StreamSink
	switch cfg.Output {
	case "png":
		sink = frame.NewImageSink(cfg.PNG)
	case "serve":
		stream = frame.NewStreamSink()
		sink = stream
	case "window":
		sink = frame.NewSurfaceSink(r)
	}
	presenter, err := frame.NewPresenter(r, cfg.Width, cfg.Height,
		frame.WithMode(params.MultiscalingMode()),
		frame.WithBackground(params.Background()),
		frame.WithSink(sink),
	)
	if err != nil {
		return err
	}
	defer presenter.Release()

	prof := profiler.NewProfiler()
	tech := rc1shadowmap.NewRC1ShadowMap(r, data, params, presenter,
		append(cfg.TechniqueOptions(), rc1shadowmap.WithProfiler(prof))...)
	defer tech.Clean()

	engineOpts := []engine.EngineBuilderOption{
		engine.WithRenderer(r),
		engine.WithTechnique(tech, presenter, cam),
		engine.WithRenderingParameters(params),
		engine.WithProfiler(prof),
		engine.WithProfiling(cfg.Profile),
	}
	if win != nil {
		engineOpts = append(engineOpts, engine.WithWindow(win))
	}
	if cfg.Output == "serve" {
		engineOpts = append(engineOpts, engine.WithRenderFrameLimit(float64(cfg.FPS)))
	}
	eng := engine.NewEngine(engineOpts...)

	if step := cfg.orbitStep(); step != 0 {
		eng.SetTickCallback(func(float32) {
			ctrl := cam.Controller()
			ctrl.SetAzimuth(ctrl.Azimuth() + step)
		})
	}

	log.Printf("volrend: %s %v, %s backend, %s output %dx%d", vol.Name(), vol.Resolution(), r.BackendType(), cfg.Output, cfg.Width, cfg.Height)

	switch cfg.Output {
	case "png":
		if err := eng.RenderFrames(cfg.Frames); err != nil {
			return err
		}
		log.Printf("volrend: wrote %d frames", presenter.Frames())
		return nil
	case "serve":
		return serve(cfg, eng, stream)
	default:
		eng.Run()
		return nil
	}
}

// serve streams frames on /stream until interrupted. Client control messages are
// handled as key presses.
func serve(cfg Config, eng engine.Engine, stream frame.StreamSink) error {
	stream.SetControlCallback(func(c frame.StreamControl) {
		eng.HandleKey(c.Key)
	})
	mux := http.NewServeMux()
	mux.Handle("/stream", stream)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errs := make(chan error, 1)
	go func() {
		log.Printf("volrend: streaming on ws://%s/stream", cfg.Addr)
		errs <- srv.ListenAndServe()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigs:
		case err := <-errs:
			log.Printf("volrend: server: %v", err)
		}
		eng.Quit()
	}()

	eng.Run()
	return srv.Close()
}
