package frame

import (
	"fmt"
	"strings"
)

// Mode selects the resolution techniques render at relative to the screen.
type Mode int

const (
	// ModeNone renders at screen resolution.
	ModeNone Mode = iota

	// ModeMultiSample renders at twice the screen resolution and box-filters down.
	ModeMultiSample

	// ModeDownScale renders at twice the screen resolution and resamples down with Catmull-Rom.
	ModeDownScale

	// ModeUpScale renders at half the screen resolution and resamples up bilinearly.
	ModeUpScale
)

// Scale returns the render-to-screen size ratio of the mode.
func (m Mode) Scale() float32 {
	switch m {
	case ModeMultiSample, ModeDownScale:
		return 2
	case ModeUpScale:
		return 0.5
	default:
		return 1
	}
}

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeMultiSample:
		return "multisample"
	case ModeDownScale:
		return "downscale"
	case ModeUpScale:
		return "upscale"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a mode name as printed by String back to a Mode.
//
// Parameters:
//   - s: the mode name, case insensitive; empty means ModeNone
//
// Returns:
//   - Mode: the parsed mode
//   - error: an error for unknown names
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return ModeNone, nil
	case "multisample":
		return ModeMultiSample, nil
	case "downscale":
		return ModeDownScale, nil
	case "upscale":
		return ModeUpScale, nil
	}
	return ModeNone, fmt.Errorf("frame: unknown multiscaling mode %q", s)
}
