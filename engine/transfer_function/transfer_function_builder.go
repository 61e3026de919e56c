package transfer_function

// TransferFunctionBuilderOption is a function that configures a transfer function during construction.
type TransferFunctionBuilderOption func(*transferFunction)

// WithName sets the transfer function name.
//
// Parameters:
//   - name: the name
//
// Returns:
//   - TransferFunctionBuilderOption: a function that applies the name option
func WithName(name string) TransferFunctionBuilderOption {
	return func(tf *transferFunction) {
		tf.name = name
	}
}

// WithLUTSize sets the number of texels of generated textures. Defaults to DefaultLUTSize.
//
// Parameters:
//   - n: the table size, values below 2 are ignored
//
// Returns:
//   - TransferFunctionBuilderOption: a function that applies the LUT size option
func WithLUTSize(n int) TransferFunctionBuilderOption {
	return func(tf *transferFunction) {
		if n >= 2 {
			tf.lutSize = n
		}
	}
}
