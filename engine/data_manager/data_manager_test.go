package data_manager

import (
	"errors"
	"testing"

	"github.com/Fastiz/cpp-volume-rendering/engine/renderer"
	"github.com/Fastiz/cpp-volume-rendering/engine/volume"
)

func TestTexturesAreCachedPerVolume(t *testing.T) {
	r := renderer.NewRenderer(renderer.BackendTypeCPU, nil, renderer.WithWorkers(1))
	defer r.Release()

	dm := NewDataManager(r)
	if _, err := dm.CurrentVolumeTexture(); !errors.Is(err, ErrNoVolume) {
		t.Fatalf("CurrentVolumeTexture without volume = %v, want ErrNoVolume", err)
	}
	if tex, err := dm.CurrentGradientTexture(); tex != nil || err != nil {
		t.Fatalf("CurrentGradientTexture without volume = %v, %v", tex, err)
	}

	sphere, err := volume.NewSphere(8, 0.5)
	if err != nil {
		t.Fatalf("NewSphere: %v", err)
	}
	dm.SetVolume(sphere)

	vt, err := dm.CurrentVolumeTexture()
	if err != nil {
		t.Fatalf("CurrentVolumeTexture: %v", err)
	}
	again, _ := dm.CurrentVolumeTexture()
	if vt != again {
		t.Fatalf("volume texture not cached")
	}
	if d := vt.Descriptor(); d.Dimension != renderer.TextureDimension3D || d.Format != renderer.TextureFormatR16Float || d.Depth != 8 {
		t.Fatalf("volume texture descriptor = %+v", d)
	}
	gt, err := dm.CurrentGradientTexture()
	if err != nil || gt == nil {
		t.Fatalf("CurrentGradientTexture = %v, %v", gt, err)
	}
	if n := r.LiveTextures(); n != 2 {
		t.Fatalf("LiveTextures = %d, want 2", n)
	}

	gaussian, err := volume.NewGaussian(4, 0.5)
	if err != nil {
		t.Fatalf("NewGaussian: %v", err)
	}
	dm.SetVolume(gaussian)
	if !vt.Released() || !gt.Released() {
		t.Fatalf("textures of the previous volume were not released")
	}
	if dm.CurrentGradient().Resolution() != [3]int{4, 4, 4} {
		t.Fatalf("gradient not recomputed for the new volume")
	}

	dm.Release()
	if n := r.LiveTextures(); n != 0 {
		t.Fatalf("LiveTextures after Release = %d, want 0", n)
	}
}

func TestGradientGenerationDisabled(t *testing.T) {
	r := renderer.NewRenderer(renderer.BackendTypeCPU, nil, renderer.WithWorkers(1))
	defer r.Release()

	sphere, err := volume.NewSphere(4, 0.5)
	if err != nil {
		t.Fatalf("NewSphere: %v", err)
	}
	dm := NewDataManager(r, WithVolume(sphere), WithGradientGeneration(false))
	if tex, err := dm.CurrentGradientTexture(); tex != nil || err != nil {
		t.Fatalf("CurrentGradientTexture = %v, %v, want nil", tex, err)
	}
	if dm.CurrentTransferFunction() == nil {
		t.Fatalf("expected a default transfer function")
	}
}
