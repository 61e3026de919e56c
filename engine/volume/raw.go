package volume

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// DataFormat is the sample encoding of a raw volume file.
type DataFormat int

const (
	// FormatUint8 stores one unsigned byte per sample, normalized by 255.
	FormatUint8 DataFormat = iota

	// FormatUint16 stores little-endian uint16 samples, normalized by 65535.
	FormatUint16

	// FormatFloat32 stores little-endian float32 samples, min-max normalized to [0, 1].
	FormatFloat32
)

// ParseDataFormat parses "uint8", "uint16" or "float32".
//
// Parameters:
//   - s: the format name, case insensitive
//
// Returns:
//   - DataFormat: the parsed format
//   - error: an error for unknown names
func ParseDataFormat(s string) (DataFormat, error) {
	switch strings.ToLower(s) {
	case "uint8", "u8", "byte", "":
		return FormatUint8, nil
	case "uint16", "u16", "ushort":
		return FormatUint16, nil
	case "float32", "f32", "float":
		return FormatFloat32, nil
	default:
		return 0, fmt.Errorf("volume: unknown data format %q", s)
	}
}

func (f DataFormat) bytesPerSample() int {
	switch f {
	case FormatUint16:
		return 2
	case FormatFloat32:
		return 4
	default:
		return 1
	}
}

// ReadRaw reads headerless samples from r and normalizes them to [0, 1].
//
// Parameters:
//   - r: the sample stream
//   - resolution: the grid size
//   - format: the sample encoding
//   - options: variadic list of VolumeBuilderOption functions
//
// Returns:
//   - StructuredVolume: the volume
//   - error: an error if the stream is short or the resolution is invalid
func ReadRaw(r io.Reader, resolution [3]int, format DataFormat, options ...VolumeBuilderOption) (StructuredVolume, error) {
	n := resolution[0] * resolution[1] * resolution[2]
	if n <= 0 {
		return nil, fmt.Errorf("volume: invalid resolution %v", resolution)
	}
	buf := make([]byte, n*format.bytesPerSample())
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("volume: reading %d samples: %w", n, err)
	}

	data := make([]float32, n)
	switch format {
	case FormatUint8:
		for i, b := range buf {
			data[i] = float32(b) / 255
		}
	case FormatUint16:
		for i := range data {
			data[i] = float32(binary.LittleEndian.Uint16(buf[i*2:])) / 65535
		}
	case FormatFloat32:
		lo, hi := float32(math.MaxFloat32), float32(-math.MaxFloat32)
		for i := range data {
			v := math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
			if v != v {
				v = 0
			}
			data[i] = v
			lo, hi = min(lo, v), max(hi, v)
		}
		span := hi - lo
		for i := range data {
			if span > 0 {
				data[i] = (data[i] - lo) / span
			} else {
				data[i] = 0
			}
		}
	}
	return New(resolution, data, options...)
}

// LoadRawFile reads a headerless raw volume from disk. The file name, without extension,
// becomes the volume name unless an option overrides it.
//
// Parameters:
//   - path: the file path
//   - resolution: the grid size
//   - format: the sample encoding
//   - options: variadic list of VolumeBuilderOption functions
//
// Returns:
//   - StructuredVolume: the volume
//   - error: an error if the file cannot be read
func LoadRawFile(path string, resolution [3]int, format DataFormat, options ...VolumeBuilderOption) (StructuredVolume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("volume: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	opts := append([]VolumeBuilderOption{WithName(name)}, options...)
	return ReadRaw(bufio.NewReader(f), resolution, format, opts...)
}
