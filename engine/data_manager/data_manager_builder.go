package data_manager

import (
	"github.com/Fastiz/cpp-volume-rendering/engine/transfer_function"
	"github.com/Fastiz/cpp-volume-rendering/engine/volume"
)

// DataManagerBuilderOption is a function that configures a DataManager during construction.
type DataManagerBuilderOption func(*dataManager)

// WithVolume sets the initial volume.
//
// Parameters:
//   - v: the volume
//
// Returns:
//   - DataManagerBuilderOption: a function that applies the volume option
func WithVolume(v volume.StructuredVolume) DataManagerBuilderOption {
	return func(dm *dataManager) {
		dm.vol = v
	}
}

// WithTransferFunction sets the initial transfer function.
//
// Parameters:
//   - tf: the transfer function
//
// Returns:
//   - DataManagerBuilderOption: a function that applies the transfer function option
func WithTransferFunction(tf transfer_function.TransferFunction) DataManagerBuilderOption {
	return func(dm *dataManager) {
		dm.tf = tf
	}
}

// WithGradientGeneration enables or disables gradient computation. Enabled by default;
// when disabled CurrentGradientTexture always returns nil.
//
// Parameters:
//   - enabled: whether gradients are generated
//
// Returns:
//   - DataManagerBuilderOption: a function that applies the gradient option
func WithGradientGeneration(enabled bool) DataManagerBuilderOption {
	return func(dm *dataManager) {
		dm.generateGradient = enabled
	}
}
