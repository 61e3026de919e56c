// Package transfer_function maps normalized scalar samples to color and opacity.
package transfer_function

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/Fastiz/cpp-volume-rendering/common"
	"github.com/Fastiz/cpp-volume-rendering/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultLUTSize is the number of texels in a generated transfer function texture.
const DefaultLUTSize = 256

// ControlPoint assigns a straight-alpha RGBA color to a scalar value in [0, 1].
type ControlPoint struct {
	Value float32    `json:"value"`
	RGBA  [4]float32 `json:"rgba"`
}

// transferFunction is the implementation of the TransferFunction interface.
type transferFunction struct {
	name    string
	points  []ControlPoint
	lutSize int
}

// TransferFunction classifies scalar samples by piecewise-linear interpolation between
// control points. Values below the first point take its color; values above the last
// take the last color.
type TransferFunction interface {
	// Name returns the transfer function name.
	Name() string

	// Points returns the control points sorted by value.
	Points() []ControlPoint

	// Evaluate classifies a scalar value.
	//
	// Parameters:
	//   - v: the normalized scalar value
	//
	// Returns:
	//   - mgl32.Vec4: straight-alpha RGBA
	Evaluate(v float32) mgl32.Vec4

	// LUT samples the function at n evenly spaced texel centers, (i+0.5)/n.
	//
	// Parameters:
	//   - n: the table size
	//
	// Returns:
	//   - []mgl32.Vec4: the lookup table
	LUT(n int) []mgl32.Vec4

	// ToTextureData returns the LUT as RGBA 1D staging data.
	ToTextureData() common.TextureStagingData

	// GenerateTexture1D creates a 1D rgba16float texture holding the LUT. The caller owns
	// the texture and must release it.
	//
	// Parameters:
	//   - r: the renderer to create the texture with
	//
	// Returns:
	//   - renderer.Texture: the transfer function texture
	//   - error: an error if texture creation or upload fails
	GenerateTexture1D(r renderer.Renderer) (renderer.Texture, error)
}

var _ TransferFunction = &transferFunction{}

// New creates a transfer function from control points.
//
// Parameters:
//   - points: at least one control point, values in [0, 1]
//   - options: variadic list of TransferFunctionBuilderOption functions
//
// Returns:
//   - TransferFunction: the transfer function
//   - error: an error if there are no points or a value is out of range
func New(points []ControlPoint, options ...TransferFunctionBuilderOption) (TransferFunction, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("transfer function: no control points")
	}
	sorted := make([]ControlPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value < sorted[j].Value
	})
	for _, p := range sorted {
		if p.Value < 0 || p.Value > 1 {
			return nil, fmt.Errorf("transfer function: control point value %v outside [0, 1]", p.Value)
		}
	}

	tf := &transferFunction{
		name:    "transfer function",
		points:  sorted,
		lutSize: DefaultLUTSize,
	}
	for _, opt := range options {
		opt(tf)
	}
	return tf, nil
}

// fileFormat is the JSON layout of a transfer function file.
type fileFormat struct {
	Name   string         `json:"name"`
	Points []ControlPoint `json:"points"`
}

// ReadJSON decodes a transfer function from JSON of the form
// {"name": "bone", "points": [{"value": 0.3, "rgba": [1, 1, 1, 0.5]}]}.
//
// Parameters:
//   - r: the JSON stream
//   - options: variadic list of TransferFunctionBuilderOption functions, applied after the name
//
// Returns:
//   - TransferFunction: the transfer function
//   - error: a decoding or validation error
func ReadJSON(r io.Reader, options ...TransferFunctionBuilderOption) (TransferFunction, error) {
	var f fileFormat
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("transfer function: %w", err)
	}
	opts := options
	if f.Name != "" {
		opts = append([]TransferFunctionBuilderOption{WithName(f.Name)}, options...)
	}
	return New(f.Points, opts...)
}

// LoadFile reads a JSON transfer function from disk.
func LoadFile(path string, options ...TransferFunctionBuilderOption) (TransferFunction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transfer function: %w", err)
	}
	defer f.Close()
	return ReadJSON(f, options...)
}

// Ramp returns a grayscale transfer function that is transparent below lo and rises
// linearly to color with opacity alpha at hi.
//
// Parameters:
//   - lo, hi: the ramp bounds, 0 <= lo < hi <= 1
//   - color: the RGB color at full density
//   - alpha: the opacity at hi and above
//
// Returns:
//   - TransferFunction: the ramp
func Ramp(lo, hi float32, color mgl32.Vec3, alpha float32) TransferFunction {
	tf, _ := New([]ControlPoint{
		{Value: 0, RGBA: [4]float32{color[0], color[1], color[2], 0}},
		{Value: lo, RGBA: [4]float32{color[0], color[1], color[2], 0}},
		{Value: hi, RGBA: [4]float32{color[0], color[1], color[2], alpha}},
		{Value: 1, RGBA: [4]float32{color[0], color[1], color[2], alpha}},
	}, WithName("ramp"))
	return tf
}

func (tf *transferFunction) Name() string {
	return tf.name
}

func (tf *transferFunction) Points() []ControlPoint {
	return tf.points
}

func (tf *transferFunction) Evaluate(v float32) mgl32.Vec4 {
	first, last := tf.points[0], tf.points[len(tf.points)-1]
	if v <= first.Value {
		return first.RGBA
	}
	if v >= last.Value {
		return last.RGBA
	}
	i := sort.Search(len(tf.points), func(i int) bool {
		return tf.points[i].Value > v
	})
	a, b := tf.points[i-1], tf.points[i]
	span := b.Value - a.Value
	if span <= 0 {
		return b.RGBA
	}
	return common.LerpVec4(a.RGBA, b.RGBA, (v-a.Value)/span)
}

func (tf *transferFunction) LUT(n int) []mgl32.Vec4 {
	lut := make([]mgl32.Vec4, n)
	for i := range lut {
		lut[i] = tf.Evaluate((float32(i) + 0.5) / float32(n))
	}
	return lut
}

func (tf *transferFunction) ToTextureData() common.TextureStagingData {
	lut := tf.LUT(tf.lutSize)
	texels := make([]float32, 0, len(lut)*4)
	for _, c := range lut {
		texels = append(texels, c[0], c[1], c[2], c[3])
	}
	return common.TextureStagingData{
		Texels:   texels,
		Channels: 4,
		Width:    uint32(tf.lutSize),
		Height:   1,
		Depth:    1,
	}
}

func (tf *transferFunction) GenerateTexture1D(r renderer.Renderer) (renderer.Texture, error) {
	tex, err := r.CreateTexture(renderer.TextureDescriptor{
		Label:     "Transfer Function " + tf.name,
		Dimension: renderer.TextureDimension1D,
		Format:    renderer.TextureFormatRGBA16Float,
		Width:     uint32(tf.lutSize),
	})
	if err != nil {
		return nil, fmt.Errorf("transfer function %s: %w", tf.name, err)
	}
	if err := r.WriteTexture(tex, tf.ToTextureData()); err != nil {
		tex.Release()
		return nil, fmt.Errorf("transfer function %s: %w", tf.name, err)
	}
	return tex, nil
}
