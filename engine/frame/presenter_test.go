package frame

import (
	"bytes"
	"errors"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"
)

func newTestRenderer(t *testing.T) renderer.Renderer {
	t.Helper()
	r := renderer.NewRenderer(renderer.BackendTypeCPU, nil, renderer.WithWorkers(1))
	t.Cleanup(r.Release)
	return r
}

func TestTargetSizeFollowsMode(t *testing.T) {
	r := newTestRenderer(t)
	p, err := NewPresenter(r, 40, 30)
	if err != nil {
		t.Fatalf("NewPresenter: %v", err)
	}
	defer p.Release()

	cases := []struct {
		mode Mode
		w, h int
	}{
		{ModeNone, 40, 30},
		{ModeMultiSample, 80, 60},
		{ModeDownScale, 80, 60},
		{ModeUpScale, 20, 15},
	}
	for _, c := range cases {
		old := p.Target()
		if err := p.SetMode(c.mode); err != nil {
			t.Fatalf("SetMode(%s): %v", c.mode, err)
		}
		if p.Width() != c.w || p.Height() != c.h {
			t.Errorf("%s: target %dx%d, want %dx%d", c.mode, p.Width(), p.Height(), c.w, c.h)
		}
		if w, h, _ := p.Target().Size(); int(w) != c.w || int(h) != c.h {
			t.Errorf("%s: texture %dx%d, want %dx%d", c.mode, w, h, c.w, c.h)
		}
		if c.mode != ModeNone && !old.Released() {
			t.Errorf("%s: previous target not released", c.mode)
		}
	}
	if n := r.LiveTextures(); n != 1 {
		t.Fatalf("LiveTextures = %d, want 1", n)
	}
}

func TestResizeRecreatesTarget(t *testing.T) {
	r := newTestRenderer(t)
	p, err := NewPresenter(r, 8, 8)
	if err != nil {
		t.Fatalf("NewPresenter: %v", err)
	}
	defer p.Release()

	old := p.Target()
	if err := p.Resize(16, 4); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if !old.Released() {
		t.Fatalf("old target not released")
	}
	if w, h, _ := p.Target().Size(); w != 16 || h != 4 {
		t.Fatalf("target %dx%d, want 16x4", w, h)
	}
	if err := p.Resize(0, 4); err == nil {
		t.Fatalf("expected an error for a zero width")
	}
}

func TestDrawScalesToScreen(t *testing.T) {
	r := newTestRenderer(t)
	p, err := NewPresenter(r, 10, 6, WithMode(ModeMultiSample), WithBackground(mgl32.Vec4{1, 0, 0, 1}))
	if err != nil {
		t.Fatalf("NewPresenter: %v", err)
	}
	defer p.Release()

	if err := p.ClearTexture(); err != nil {
		t.Fatalf("ClearTexture: %v", err)
	}
	for _, draw := range []func() error{
		p.Draw,
		p.DrawMultiSampleHigherResolutionMode,
		p.DrawHigherResolutionWithDownScale,
		p.DrawForMode,
	} {
		if err := draw(); err != nil {
			t.Fatalf("draw: %v", err)
		}
		img := p.Last()
		if img.Bounds().Dx() != 10 || img.Bounds().Dy() != 6 {
			t.Fatalf("presented %v, want 10x6", img.Bounds())
		}
		if c := img.RGBAAt(5, 3); c.R != 255 || c.G != 0 || c.A != 255 {
			t.Fatalf("center pixel = %v, want opaque red", c)
		}
	}
	if p.Frames() != 4 {
		t.Fatalf("Frames = %d, want 4", p.Frames())
	}
}

func TestUpScaleBlendsNeighbours(t *testing.T) {
	r := newTestRenderer(t)
	p, err := NewPresenter(r, 8, 2, WithMode(ModeUpScale))
	if err != nil {
		t.Fatalf("NewPresenter: %v", err)
	}
	defer p.Release()

	host := p.Target().(renderer.HostTexture)
	for x := 0; x < 4; x++ {
		v := float32(0)
		if x >= 2 {
			v = 1
		}
		host.Store(x, 0, mgl32.Vec4{v, v, v, 1})
	}
	if err := p.DrawLowerResolutionWithUpScale(); err != nil {
		t.Fatalf("DrawLowerResolutionWithUpScale: %v", err)
	}
	img := p.Last()
	if img.Bounds().Dx() != 8 {
		t.Fatalf("presented %v, want 8 wide", img.Bounds())
	}
	left, mid, right := img.RGBAAt(0, 0).R, img.RGBAAt(4, 0).R, img.RGBAAt(7, 0).R
	if left != 0 || right != 255 || mid == 0 || mid == 255 {
		t.Fatalf("row = %d %d %d, want a ramp from 0 to 255", left, mid, right)
	}
}

func TestImageSinkWritesPNG(t *testing.T) {
	r := newTestRenderer(t)
	dir := t.TempDir()
	p, err := NewPresenter(r, 4, 4, WithSink(NewImageSink(filepath.Join(dir, "out", "frame_%02d.png"))))
	if err != nil {
		t.Fatalf("NewPresenter: %v", err)
	}
	defer p.Release()

	if err := p.Draw(); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if err := p.Draw(); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	for _, name := range []string{"frame_00.png", "frame_01.png"} {
		f, err := os.Open(filepath.Join(dir, "out", name))
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		img, err := png.Decode(f)
		f.Close()
		if err != nil {
			t.Fatalf("decode %s: %v", name, err)
		}
		if img.Bounds().Dx() != 4 {
			t.Fatalf("%s is %v", name, img.Bounds())
		}
	}

	if err := NewImageSink(filepath.Join(dir, "x.png")).Consume(Output{}); !errors.Is(err, ErrNoImage) {
		t.Fatalf("Consume without image = %v, want ErrNoImage", err)
	}
}

func TestSurfaceSinkHeadless(t *testing.T) {
	r := newTestRenderer(t)
	p, err := NewPresenter(r, 4, 4, WithSink(NewSurfaceSink(r)))
	if err != nil {
		t.Fatalf("NewPresenter: %v", err)
	}
	defer p.Release()
	if err := p.Draw(); !errors.Is(err, renderer.ErrNoSurface) {
		t.Fatalf("Draw = %v, want ErrNoSurface", err)
	}
}

func TestStreamSinkBroadcasts(t *testing.T) {
	r := newTestRenderer(t)
	stream := NewStreamSink()
	controls := make(chan StreamControl, 1)
	stream.SetControlCallback(func(c StreamControl) {
		controls <- c
	})
	srv := httptest.NewServer(stream)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for stream.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if stream.Clients() != 1 {
		t.Fatalf("Clients = %d, want 1", stream.Clients())
	}

	p, err := NewPresenter(r, 6, 3, WithSink(stream))
	if err != nil {
		t.Fatalf("NewPresenter: %v", err)
	}
	defer p.Release()
	if err := p.Draw(); err != nil {
		t.Fatalf("Draw: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Fatalf("message type %d, want binary", kind)
	}
	img, err := png.Decode(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 6 || img.Bounds().Dy() != 3 {
		t.Fatalf("streamed %v, want 6x3", img.Bounds())
	}

	if err := conn.WriteJSON(StreamControl{Key: common.KeyA}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	select {
	case c := <-controls:
		if c.Key != common.KeyA {
			t.Fatalf("control key = %d", c.Key)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("control message not delivered")
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeNone, ModeMultiSample, ModeDownScale, ModeUpScale} {
		got, err := ParseMode(strings.ToUpper(m.String()))
		if err != nil || got != m {
			t.Errorf("ParseMode(%s) = %v, %v", m, got, err)
		}
	}
	if _, err := ParseMode("bogus"); err == nil {
		t.Errorf("expected error for unknown mode")
	}
}
