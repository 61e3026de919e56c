package frame

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/Fastiz/cpp-volume-rendering/engine/renderer"
)

// ErrNoImage is returned by sinks that need host pixels when the target cannot be read back.
var ErrNoImage = errors.New("frame has no host image")

// Output is one presented frame.
type Output struct {
	// Image is the frame at screen size, nil when the target lives on the GPU.
	Image *image.RGBA
	// Texture is the render target the frame was produced in.
	Texture renderer.Texture
	// Index counts presented frames from 0.
	Index uint64
	// Width and Height are the screen size.
	Width, Height int
}

// Sink receives presented frames.
type Sink interface {
	// Consume handles one frame. The image is only valid until Consume returns.
	Consume(out Output) error

	// Close releases the sink's resources.
	Close() error
}

// imageSink writes frames as PNG files.
type imageSink struct {
	pattern string
}

var _ Sink = &imageSink{}

// NewImageSink creates a sink that encodes each frame to a PNG file.
//
// Parameters:
//   - pattern: the output path; a pattern containing a '%' verb is formatted with the frame
//     index (e.g. "frame_%04d.png"), otherwise every frame overwrites the same file
//
// Returns:
//   - Sink: the PNG sink
func NewImageSink(pattern string) Sink {
	return &imageSink{pattern: pattern}
}

// Path returns the file a frame index is written to.
func (s *imageSink) Path(index uint64) string {
	if strings.Contains(s.pattern, "%") {
		return fmt.Sprintf(s.pattern, index)
	}
	return s.pattern
}

func (s *imageSink) Consume(out Output) error {
	if out.Image == nil {
		return fmt.Errorf("image sink: %w", ErrNoImage)
	}
	path := s.Path(out.Index)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("image sink: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("image sink: %w", err)
	}
	if err := png.Encode(f, out.Image); err != nil {
		f.Close()
		return fmt.Errorf("image sink: encode %s: %w", path, err)
	}
	return f.Close()
}

func (s *imageSink) Close() error {
	return nil
}

// surfaceSink shows the render target on the renderer's window surface.
type surfaceSink struct {
	r renderer.Renderer
}

var _ Sink = &surfaceSink{}

// NewSurfaceSink creates a sink that presents the render target through r.
// The surface blit samples the target linearly, so no host resampling is involved.
func NewSurfaceSink(r renderer.Renderer) Sink {
	return &surfaceSink{r: r}
}

func (s *surfaceSink) Consume(out Output) error {
	if err := s.r.Present(out.Texture); err != nil {
		return fmt.Errorf("surface sink: %w", err)
	}
	return nil
}

func (s *surfaceSink) Close() error {
	return nil
}
