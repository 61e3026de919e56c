package technique

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Fastiz/cpp-volume-rendering/common"
)

// Panel is an immediate-mode parameter panel. A technique describes its widgets every
// frame; widgets that report a change have already written the new value through the
// pointer they were given.
type Panel interface {
	// Separator draws a horizontal rule.
	Separator()

	// Text draws a label.
	Text(text string)

	// DragFloat edits a float in [min, max].
	//
	// Parameters:
	//   - label: the widget label, unique within the panel
	//   - v: the value to edit
	//   - speed: the change per pixel of drag
	//   - min, max: the value bounds
	//   - format: printf format for display
	//
	// Returns:
	//   - bool: true if v changed this frame
	DragFloat(label string, v *float32, speed, min, max float32, format string) bool

	// Checkbox edits a bool.
	//
	// Returns:
	//   - bool: true if v changed this frame
	Checkbox(label string, v *bool) bool

	// Combo selects one of items by index.
	//
	// Returns:
	//   - bool: true if current changed this frame
	Combo(label string, current *int, items []string) bool
}

// WidgetKind identifies a recorded widget.
type WidgetKind int

const (
	WidgetSeparator WidgetKind = iota
	WidgetText
	WidgetDragFloat
	WidgetCheckbox
	WidgetCombo
)

// Widget is a widget recorded by a ScriptedPanel during the last frame.
type Widget struct {
	Kind  WidgetKind
	Label string
	// Value is the widget's value after the frame: float32, bool, int, or the text.
	Value any
	// Items lists the options of a combo.
	Items []string
}

// ScriptedPanel is a Panel without a UI. Edits queued with Set are applied the next time
// the matching widget is drawn; the widgets of the last frame can be listed.
type ScriptedPanel struct {
	mu      sync.Mutex
	pending map[string]any
	frame   []Widget
	last    []Widget
}

var _ Panel = &ScriptedPanel{}

// NewScriptedPanel creates an empty ScriptedPanel.
func NewScriptedPanel() *ScriptedPanel {
	return &ScriptedPanel{pending: make(map[string]any)}
}

// Set queues an edit for the widget with the given label. Value must be a float32 for
// DragFloat, a bool for Checkbox, or an int for Combo. Safe to call from any goroutine.
func (p *ScriptedPanel) Set(label string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[label] = value
}

// Begin starts a frame.
func (p *ScriptedPanel) Begin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frame = p.frame[:0]
}

// End finishes a frame and publishes its widgets.
func (p *ScriptedPanel) End() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = append(p.last[:0], p.frame...)
}

// Widgets returns the widgets drawn in the last finished frame.
func (p *ScriptedPanel) Widgets() []Widget {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Widget(nil), p.last...)
}

// Widget returns the widget with label from the last finished frame.
func (p *ScriptedPanel) Widget(label string) (Widget, bool) {
	for _, w := range p.Widgets() {
		if w.Label == label {
			return w, true
		}
	}
	return Widget{}, false
}

// String lists the last frame's widgets, one per line.
func (p *ScriptedPanel) String() string {
	var sb strings.Builder
	for _, w := range p.Widgets() {
		switch w.Kind {
		case WidgetSeparator:
			sb.WriteString("----\n")
		case WidgetText:
			fmt.Fprintf(&sb, "%s\n", w.Value)
		default:
			fmt.Fprintf(&sb, "%s = %v\n", w.Label, w.Value)
		}
	}
	return sb.String()
}

// take removes and returns the pending edit for label. Caller must hold the mutex.
func (p *ScriptedPanel) take(label string) (any, bool) {
	v, ok := p.pending[label]
	if ok {
		delete(p.pending, label)
	}
	return v, ok
}

func (p *ScriptedPanel) Separator() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frame = append(p.frame, Widget{Kind: WidgetSeparator})
}

func (p *ScriptedPanel) Text(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frame = append(p.frame, Widget{Kind: WidgetText, Value: text})
}

func (p *ScriptedPanel) DragFloat(label string, v *float32, speed, min, max float32, format string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	changed := false
	if pv, ok := p.take(label); ok {
		if f, ok := pv.(float32); ok {
			f = common.Clamp(f, min, max)
			changed = f != *v
			*v = f
		}
	}
	p.frame = append(p.frame, Widget{Kind: WidgetDragFloat, Label: label, Value: *v})
	return changed
}

func (p *ScriptedPanel) Checkbox(label string, v *bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	changed := false
	if pv, ok := p.take(label); ok {
		if b, ok := pv.(bool); ok {
			changed = b != *v
			*v = b
		}
	}
	p.frame = append(p.frame, Widget{Kind: WidgetCheckbox, Label: label, Value: *v})
	return changed
}

func (p *ScriptedPanel) Combo(label string, current *int, items []string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	changed := false
	if pv, ok := p.take(label); ok {
		if i, ok := pv.(int); ok && i >= 0 && i < len(items) {
			changed = i != *current
			*current = i
		}
	}
	p.frame = append(p.frame, Widget{Kind: WidgetCombo, Label: label, Value: *current, Items: items})
	return changed
}
