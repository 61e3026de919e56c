package rendering_parameters

import (
	"testing"

	"github.com/Fastiz/cpp-volume-rendering/engine/frame"
	"github.com/Fastiz/cpp-volume-rendering/engine/light"
)

func TestDefaults(t *testing.T) {
	rp := NewRenderingParameters()
	if rp.Light() == nil {
		t.Fatalf("expected a default light")
	}
	if rp.BlinnPhong() != DefaultBlinnPhong() {
		t.Fatalf("BlinnPhong = %+v", rp.BlinnPhong())
	}
	if w, h := rp.ScreenSize(); w != 768 || h != 768 {
		t.Fatalf("ScreenSize = %dx%d", w, h)
	}
	if rp.MultiscalingMode() != frame.ModeNone {
		t.Fatalf("MultiscalingMode = %s", rp.MultiscalingMode())
	}
}

func TestOptions(t *testing.T) {
	l := light.NewLight(light.WithSpecularIntensity(0.25))
	rp := NewRenderingParameters(
		WithLight(l),
		WithScreenSize(320, 200),
		WithMultiscalingMode(frame.ModeUpScale),
		WithBlinnPhong(BlinnPhong{Ka: 1}),
	)
	if rp.LightSpecularIntensity() != 0.25 {
		t.Fatalf("LightSpecularIntensity = %v", rp.LightSpecularIntensity())
	}
	if rp.BlinnPhong().Ka != 1 {
		t.Fatalf("BlinnPhong = %+v", rp.BlinnPhong())
	}
	rp.SetScreenSize(10, 20)
	if w, h := rp.ScreenSize(); w != 10 || h != 20 {
		t.Fatalf("ScreenSize = %dx%d", w, h)
	}
	if rp.MultiscalingMode() != frame.ModeUpScale {
		t.Fatalf("MultiscalingMode = %s", rp.MultiscalingMode())
	}
}
