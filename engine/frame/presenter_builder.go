package frame

import "github.com/go-gl/mathgl/mgl32"

// PresenterBuilderOption is a function that configures a presenter during construction.
type PresenterBuilderOption func(*presenter)

// WithMode sets the initial multiscaling mode.
//
// Parameters:
//   - mode: the multiscaling mode, ModeNone by default
//
// Returns:
//   - PresenterBuilderOption: a function that applies the mode option
func WithMode(mode Mode) PresenterBuilderOption {
	return func(p *presenter) {
		p.mode = mode
	}
}

// WithBackground sets the color ClearTexture fills the target with.
func WithBackground(color mgl32.Vec4) PresenterBuilderOption {
	return func(p *presenter) {
		p.background = color
	}
}

// WithSink adds a sink that receives every presented frame.
//
// Parameters:
//   - s: the sink, closed by Release
//
// Returns:
//   - PresenterBuilderOption: a function that appends the sink
func WithSink(s Sink) PresenterBuilderOption {
	return func(p *presenter) {
		p.sinks = append(p.sinks, s)
	}
}
