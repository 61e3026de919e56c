// Package frame owns the image techniques render into and hands finished frames to sinks:
// PNG files, a websocket stream, or the window surface.
package frame

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
)

// boxFilter averages the source texels covered by each destination pixel.
var boxFilter = &draw.Kernel{
	Support: 0.5,
	At: func(t float64) float64 {
		return 1
	},
}

// presenter is the implementation of the Presenter interface.
type presenter struct {
	mu *sync.Mutex
	r  renderer.Renderer

	mode          Mode
	screenWidth   int
	screenHeight  int
	target        renderer.Texture
	background    mgl32.Vec4
	sinks         []Sink
	frames        uint64
	last          *image.RGBA
	sinkErrLogged bool
}

// Presenter is the frame-to-screen stage.
//
// Techniques write their output into Target, a 2D rgba8unorm storage texture sized
// Width x Height, that is the screen size scaled by the multiscaling mode. The Draw
// methods resample the target to screen size and hand it to every sink.
type Presenter interface {
	// Width returns the render target width in pixels.
	Width() int

	// Height returns the render target height in pixels.
	Height() int

	// ScreenSize returns the size frames are presented at.
	ScreenSize() (width, height int)

	// Mode returns the multiscaling mode.
	Mode() Mode

	// SetMode switches the multiscaling mode and recreates the target.
	//
	// Parameters:
	//   - mode: the new mode
	//
	// Returns:
	//   - error: a texture creation error
	SetMode(mode Mode) error

	// Resize changes the screen size and recreates the target. The previous target is released.
	//
	// Parameters:
	//   - width, height: the new screen size in pixels
	//
	// Returns:
	//   - error: a texture creation error
	Resize(width, height int) error

	// Target returns the texture techniques render into.
	Target() renderer.Texture

	// ClearTexture fills the target with the background color.
	ClearTexture() error

	// Draw presents the target as is, resampling with nearest neighbour if sizes differ.
	Draw() error

	// DrawMultiSampleHigherResolutionMode presents a 2x target box-filtered to screen size.
	DrawMultiSampleHigherResolutionMode() error

	// DrawHigherResolutionWithDownScale presents a 2x target resampled with Catmull-Rom.
	DrawHigherResolutionWithDownScale() error

	// DrawLowerResolutionWithUpScale presents a half-size target resampled bilinearly.
	DrawLowerResolutionWithUpScale() error

	// DrawForMode calls the Draw method matching the current mode.
	DrawForMode() error

	// Last returns the screen-size image of the last presented frame. Nil when the target
	// cannot be read back on the host.
	Last() *image.RGBA

	// Frames returns the number of frames presented.
	Frames() uint64

	// Release frees the target and closes the sinks.
	Release() error
}

var _ Presenter = &presenter{}

// NewPresenter creates a presenter and its render target.
//
// Parameters:
//   - r: the renderer the target is created with
//   - width, height: the screen size in pixels
//   - options: variadic list of PresenterBuilderOption functions
//
// Returns:
//   - Presenter: the presenter
//   - error: a texture creation error
func NewPresenter(r renderer.Renderer, width, height int, options ...PresenterBuilderOption) (Presenter, error) {
	p := &presenter{
		mu:           &sync.Mutex{},
		r:            r,
		screenWidth:  width,
		screenHeight: height,
	}
	for _, opt := range options {
		opt(p)
	}
	if err := p.recreateTarget(); err != nil {
		return nil, err
	}
	return p, nil
}

// renderSize returns the target size for the current screen size and mode.
// Caller must hold the mutex.
func (p *presenter) renderSize() (int, int) {
	s := p.mode.Scale()
	w := common.Max(1, int(float32(p.screenWidth)*s+0.5))
	h := common.Max(1, int(float32(p.screenHeight)*s+0.5))
	return w, h
}

// recreateTarget releases the current target and creates one for the current size.
// Caller must hold the mutex.
func (p *presenter) recreateTarget() error {
	if p.screenWidth <= 0 || p.screenHeight <= 0 {
		return fmt.Errorf("frame: invalid screen size %dx%d", p.screenWidth, p.screenHeight)
	}
	if p.target != nil {
		p.target.Release()
		p.target = nil
	}
	w, h := p.renderSize()
	tex, err := p.r.CreateTexture(renderer.TextureDescriptor{
		Label:     "Frame Target",
		Dimension: renderer.TextureDimension2D,
		Format:    renderer.TextureFormatRGBA8Unorm,
		Width:     uint32(w),
		Height:    uint32(h),
		Storage:   true,
	})
	if err != nil {
		return fmt.Errorf("frame: %w", err)
	}
	p.target = tex
	return nil
}

func (p *presenter) Width() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, _ := p.renderSize()
	return w
}

func (p *presenter) Height() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, h := p.renderSize()
	return h
}

func (p *presenter) ScreenSize() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.screenWidth, p.screenHeight
}

func (p *presenter) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

func (p *presenter) SetMode(mode Mode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if mode == p.mode && p.target != nil {
		return nil
	}
	p.mode = mode
	log.Printf("frame: multiscaling mode %s", mode)
	return p.recreateTarget()
}

func (p *presenter) Resize(width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenWidth, p.screenHeight = width, height
	return p.recreateTarget()
}

func (p *presenter) Target() renderer.Texture {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

func (p *presenter) ClearTexture() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if host, ok := p.target.(renderer.HostTexture); ok {
		host.Clear(p.background)
		return nil
	}
	w, h, _ := p.target.Size()
	texels := make([]float32, int(w)*int(h)*4)
	for i := 0; i < len(texels); i += 4 {
		copy(texels[i:i+4], p.background[:])
	}
	return p.r.WriteTexture(p.target, common.TextureStagingData{
		Texels:   texels,
		Channels: 4,
		Width:    w,
		Height:   h,
		Depth:    1,
	})
}

func (p *presenter) Draw() error {
	return p.present(draw.NearestNeighbor)
}

func (p *presenter) DrawMultiSampleHigherResolutionMode() error {
	return p.present(boxFilter)
}

func (p *presenter) DrawHigherResolutionWithDownScale() error {
	return p.present(draw.CatmullRom)
}

func (p *presenter) DrawLowerResolutionWithUpScale() error {
	return p.present(draw.BiLinear)
}

func (p *presenter) DrawForMode() error {
	switch p.Mode() {
	case ModeMultiSample:
		return p.DrawMultiSampleHigherResolutionMode()
	case ModeDownScale:
		return p.DrawHigherResolutionWithDownScale()
	case ModeUpScale:
		return p.DrawLowerResolutionWithUpScale()
	default:
		return p.Draw()
	}
}

// present resamples the target to screen size with scaler and hands it to every sink.
func (p *presenter) present(scaler draw.Scaler) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := Output{
		Texture: p.target,
		Index:   p.frames,
		Width:   p.screenWidth,
		Height:  p.screenHeight,
	}
	if host, ok := p.target.(renderer.HostTexture); ok {
		src := host.Image()
		if src.Bounds().Dx() == p.screenWidth && src.Bounds().Dy() == p.screenHeight {
			out.Image = src
		} else {
			dst := image.NewRGBA(image.Rect(0, 0, p.screenWidth, p.screenHeight))
			scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
			out.Image = dst
		}
	}
	p.last = out.Image
	p.frames++

	var errs []error
	for _, s := range p.sinks {
		if err := s.Consume(out); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if err != nil && !p.sinkErrLogged {
		log.Printf("frame: sink error: %v", err)
		p.sinkErrLogged = true
	}
	return err
}

func (p *presenter) Last() *image.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *presenter) Frames() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

func (p *presenter) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.target != nil {
		p.target.Release()
		p.target = nil
	}
	var errs []error
	for _, s := range p.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.sinks = nil
	return errors.Join(errs...)
}
