// Package technique defines the contract between the viewer and a volume rendering technique.
package technique

import (
	"fmt"
	"sync"

	"github.com/Fastiz/cpp-volume-rendering/engine/camera"
)

// State is the lifecycle state of a technique.
type State int

const (
	// StateUninitialized is the state before the first successful Init.
	StateUninitialized State = iota

	// StateBuilt means resources exist but no parameter change has been recorded yet.
	StateBuilt

	// StateOutdated means a parameter changed since the last Redraw.
	StateOutdated

	// StateUpToDate means the last Redraw reflects the current parameters.
	StateUpToDate

	// StateDestroyed is the state after Clean.
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBuilt:
		return "built"
	case StateOutdated:
		return "outdated"
	case StateUpToDate:
		return "up to date"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DataType is the kind of grid a technique can render.
type DataType int

const (
	// DataTypeStructured is a regular voxel grid.
	DataTypeStructured DataType = iota

	// DataTypeUnstructured is a tetrahedral or other cell mesh.
	DataTypeUnstructured
)

func (d DataType) String() string {
	if d == DataTypeUnstructured {
		return "unstructured"
	}
	return "structured"
}

// Technique is a volume rendering technique driven by the viewer loop.
//
// The viewer calls Init once a volume is loaded, Update whenever the camera or parameters
// may have changed, and one of the Redraw methods per frame depending on the multiscaling
// mode. Clean releases every resource the technique owns and may be called at any time.
type Technique interface {
	// Name returns the display name.
	Name() string

	// AbbreviationName returns a short identifier used in file names and logs.
	AbbreviationName() string

	// DataTypeSupport returns the grid type the technique renders.
	DataTypeSupport() DataType

	// State returns the lifecycle state.
	State() State

	// Init allocates the technique's resources. Size-dependent resources follow the
	// presenter's render target. A built technique is cleaned first.
	//
	// Parameters:
	//   - width, height: the screen size in pixels, must be positive
	//
	// Returns:
	//   - bool: false when a precondition (such as a loaded volume) is missing or
	//     resource creation failed; nothing is retained in that case
	Init(width, height int) bool

	// Update pushes camera and parameter state to the technique's kernels without rendering.
	//
	// Parameters:
	//   - cam: the eye camera
	//
	// Returns:
	//   - bool: false if the technique is not built or an upload failed
	Update(cam camera.Camera) bool

	// Redraw renders one frame at screen resolution and presents it.
	Redraw() error

	// MultiSampleRedraw renders at the multisample resolution and presents with a box filter.
	MultiSampleRedraw() error

	// DownScalingRedraw renders at a higher resolution and presents downscaled.
	DownScalingRedraw() error

	// UpScalingRedraw renders at a lower resolution and presents upscaled.
	UpScalingRedraw() error

	// Resize recreates size-dependent resources after the presenter's target changed.
	Resize(width, height int) error

	// ReloadShaders re-reads shader sources and rebuilds the kernels.
	ReloadShaders() error

	// RecreateRenderingPass releases and rebuilds the kernels with the current resources.
	RecreateRenderingPass() error

	// SetPanelComponents adds the technique's parameter widgets to p.
	SetPanelComponents(p Panel)

	// Clean releases every resource. Calling it again, or on a technique that was never
	// initialized, is a no-op.
	Clean()
}

// Base holds the lifecycle state shared by techniques. Embed it and use its methods
// from the technique's own lifecycle methods.
type Base struct {
	mu    sync.Mutex
	state State
}

// State returns the lifecycle state.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsBuilt reports whether resources currently exist.
func (b *Base) IsBuilt() bool {
	switch b.State() {
	case StateBuilt, StateOutdated, StateUpToDate:
		return true
	}
	return false
}

// IsOutdated reports whether a parameter changed since the last redraw.
func (b *Base) IsOutdated() bool {
	return b.State() == StateOutdated
}

// SetBuilt marks resources as created.
func (b *Base) SetBuilt() {
	b.setState(StateBuilt)
}

// SetOutdated records a parameter change. It has no effect unless the technique is built.
func (b *Base) SetOutdated() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateBuilt || b.state == StateUpToDate {
		b.state = StateOutdated
	}
}

// SetUpToDate records a finished redraw. It has no effect unless the technique is built.
func (b *Base) SetUpToDate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateBuilt || b.state == StateOutdated {
		b.state = StateUpToDate
	}
}

// SetDestroyed marks resources as released.
func (b *Base) SetDestroyed() {
	b.setState(StateDestroyed)
}

func (b *Base) setState(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
}
