// Package data_manager owns the loaded volume, its gradient and the current transfer
// function, and uploads them to renderer textures on demand.
package data_manager

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer"
	"github.com/Fastiz/cpp-volume-rendering/engine/transfer_function"
	"github.com/Fastiz/cpp-volume-rendering/engine/volume"
)

// ErrNoVolume is returned when a texture is requested before a volume is loaded.
var ErrNoVolume = errors.New("no volume loaded")

// dataManager is the implementation of the DataManager interface.
type dataManager struct {
	mu *sync.Mutex
	r  renderer.Renderer

	vol volume.StructuredVolume
	tf  transfer_function.TransferFunction

	generateGradient bool
	gradient         *volume.GradientField

	volumeTexture   renderer.Texture
	gradientTexture renderer.Texture
}

// DataManager holds the dataset shared by every rendering technique.
//
// Textures are created lazily on first request and cached until the volume changes or
// Release is called. Techniques must not release textures returned by the data manager.
type DataManager interface {
	// SetVolume replaces the current volume and drops the cached volume and gradient textures.
	//
	// Parameters:
	//   - v: the new volume, or nil to unload
	SetVolume(v volume.StructuredVolume)

	// SetTransferFunction replaces the current transfer function.
	//
	// Parameters:
	//   - tf: the new transfer function
	SetTransferFunction(tf transfer_function.TransferFunction)

	// CurrentVolume returns the loaded volume, or nil.
	CurrentVolume() volume.StructuredVolume

	// CurrentTransferFunction returns the current transfer function. A grayscale ramp is
	// used when none was set.
	CurrentTransferFunction() transfer_function.TransferFunction

	// CurrentVolumeTexture returns the volume as a 3D r16float texture.
	//
	// Returns:
	//   - renderer.Texture: the cached texture
	//   - error: ErrNoVolume, or a texture creation error
	CurrentVolumeTexture() (renderer.Texture, error)

	// CurrentGradient returns the gradient of the current volume, computing it on first
	// use. Nil when no volume is loaded or gradient generation is disabled.
	CurrentGradient() *volume.GradientField

	// CurrentGradientTexture returns the gradient as a 3D rgba16float texture.
	//
	// Returns:
	//   - renderer.Texture: the cached texture, nil when CurrentGradient is nil
	//   - error: a texture creation error
	CurrentGradientTexture() (renderer.Texture, error)

	// Release frees the cached textures. The manager stays usable and recreates them on demand.
	Release()
}

var _ DataManager = &dataManager{}

// NewDataManager creates a DataManager that uploads textures with r.
//
// Parameters:
//   - r: the renderer used to create textures
//   - options: variadic list of DataManagerBuilderOption functions
//
// Returns:
//   - DataManager: the data manager
func NewDataManager(r renderer.Renderer, options ...DataManagerBuilderOption) DataManager {
	dm := &dataManager{
		mu:               &sync.Mutex{},
		r:                r,
		generateGradient: true,
	}
	for _, opt := range options {
		opt(dm)
	}
	return dm
}

func (dm *dataManager) SetVolume(v volume.StructuredVolume) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	dm.releaseTextures()
	dm.vol = v
	dm.gradient = nil
	if v != nil {
		log.Printf("data manager: loaded volume %s %v", v.Name(), v.Resolution())
	}
}

func (dm *dataManager) SetTransferFunction(tf transfer_function.TransferFunction) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.tf = tf
}

func (dm *dataManager) CurrentVolume() volume.StructuredVolume {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.vol
}

func (dm *dataManager) CurrentTransferFunction() transfer_function.TransferFunction {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.tf == nil {
		dm.tf = transfer_function.Ramp(0.1, 1, [3]float32{1, 1, 1}, 1)
	}
	return dm.tf
}

func (dm *dataManager) CurrentVolumeTexture() (renderer.Texture, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.vol == nil {
		return nil, ErrNoVolume
	}
	if dm.volumeTexture != nil && !dm.volumeTexture.Released() {
		return dm.volumeTexture, nil
	}
	res := dm.vol.Resolution()
	tex, err := dm.upload(renderer.TextureDescriptor{
		Label:     "Volume " + dm.vol.Name(),
		Dimension: renderer.TextureDimension3D,
		Format:    renderer.TextureFormatR16Float,
		Width:     uint32(res[0]),
		Height:    uint32(res[1]),
		Depth:     uint32(res[2]),
	}, dm.vol.ToTextureData)
	if err != nil {
		return nil, fmt.Errorf("data manager: volume texture: %w", err)
	}
	dm.volumeTexture = tex
	return tex, nil
}

func (dm *dataManager) CurrentGradient() *volume.GradientField {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.currentGradient()
}

func (dm *dataManager) currentGradient() *volume.GradientField {
	if dm.vol == nil || !dm.generateGradient {
		return nil
	}
	if dm.gradient == nil {
		dm.gradient = volume.ComputeGradient(dm.vol)
	}
	return dm.gradient
}

func (dm *dataManager) CurrentGradientTexture() (renderer.Texture, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	g := dm.currentGradient()
	if g == nil {
		return nil, nil
	}
	if dm.gradientTexture != nil && !dm.gradientTexture.Released() {
		return dm.gradientTexture, nil
	}
	res := g.Resolution()
	tex, err := dm.upload(renderer.TextureDescriptor{
		Label:     "Gradient " + dm.vol.Name(),
		Dimension: renderer.TextureDimension3D,
		Format:    renderer.TextureFormatRGBA16Float,
		Width:     uint32(res[0]),
		Height:    uint32(res[1]),
		Depth:     uint32(res[2]),
	}, g.ToTextureData)
	if err != nil {
		return nil, fmt.Errorf("data manager: gradient texture: %w", err)
	}
	dm.gradientTexture = tex
	return tex, nil
}

// upload creates a texture and fills it, releasing it again when the write fails.
func (dm *dataManager) upload(desc renderer.TextureDescriptor, data func() common.TextureStagingData) (renderer.Texture, error) {
	tex, err := dm.r.CreateTexture(desc)
	if err != nil {
		return nil, err
	}
	if err := dm.r.WriteTexture(tex, data()); err != nil {
		tex.Release()
		return nil, err
	}
	return tex, nil
}

func (dm *dataManager) Release() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.releaseTextures()
}

func (dm *dataManager) releaseTextures() {
	if dm.volumeTexture != nil {
		dm.volumeTexture.Release()
		dm.volumeTexture = nil
	}
	if dm.gradientTexture != nil {
		dm.gradientTexture.Release()
		dm.gradientTexture = nil
	}
}
