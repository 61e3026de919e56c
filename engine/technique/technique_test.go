package technique

import (
	"strings"
	"testing"
)

func TestBaseTransitions(t *testing.T) {
	var b Base
	if b.State() != StateUninitialized || b.IsBuilt() {
		t.Fatalf("zero Base is %s", b.State())
	}
	b.SetOutdated()
	if b.State() != StateUninitialized {
		t.Fatalf("SetOutdated before build moved to %s", b.State())
	}

	b.SetBuilt()
	b.SetOutdated()
	if !b.IsOutdated() {
		t.Fatalf("state = %s, want outdated", b.State())
	}
	b.SetUpToDate()
	if b.State() != StateUpToDate || !b.IsBuilt() {
		t.Fatalf("state = %s, want up to date", b.State())
	}
	b.SetOutdated()
	if !b.IsOutdated() {
		t.Fatalf("state = %s, want outdated again", b.State())
	}

	b.SetDestroyed()
	b.SetUpToDate()
	if b.State() != StateDestroyed || b.IsBuilt() {
		t.Fatalf("state = %s, want destroyed", b.State())
	}
}

func TestScriptedPanelAppliesEdits(t *testing.T) {
	p := NewScriptedPanel()
	step := float32(0.5)
	shadow := true
	mode := 0

	draw := func() (bool, bool, bool) {
		p.Begin()
		defer p.End()
		p.Text("Step Size:")
		a := p.DragFloat("step", &step, 0.01, 0.01, 100, "%.2f")
		p.Separator()
		b := p.Checkbox("shadow", &shadow)
		c := p.Combo("mode", &mode, []string{"none", "upscale"})
		return a, b, c
	}

	if a, b, c := draw(); a || b || c {
		t.Fatalf("widgets changed without edits")
	}

	p.Set("step", float32(1000))
	p.Set("shadow", false)
	p.Set("mode", 5)
	a, b, c := draw()
	if !a || step != 100 {
		t.Fatalf("step changed=%v value=%v, want clamped 100", a, step)
	}
	if !b || shadow {
		t.Fatalf("shadow changed=%v value=%v", b, shadow)
	}
	if c || mode != 0 {
		t.Fatalf("out of range combo index applied")
	}

	if a, _, _ := draw(); a {
		t.Fatalf("edit applied twice")
	}
	w, ok := p.Widget("step")
	if !ok || w.Value.(float32) != 100 {
		t.Fatalf("Widget(step) = %+v, %v", w, ok)
	}
	if len(p.Widgets()) != 5 {
		t.Fatalf("recorded %d widgets, want 5", len(p.Widgets()))
	}
	if s := p.String(); !strings.Contains(s, "shadow = false") {
		t.Fatalf("String() =\n%s", s)
	}
}
