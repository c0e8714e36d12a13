// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"math"

	"github.com/ik5/audmix/utils"
)

// SampleFormat identifies the PCM representation of a Samples block.
type SampleFormat int

const (
	FormatInt16 SampleFormat = iota
	FormatInt32
	FormatFloat32
)

func (f SampleFormat) String() string {
	switch f {
	case FormatInt16:
		return "int16"
	case FormatInt32:
		return "int32"
	case FormatFloat32:
		return "float32"
	}
	return "unknown"
}

// BitDepth is the storage width of one sample.
func (f SampleFormat) BitDepth() int {
	switch f {
	case FormatInt16:
		return 16
	case FormatInt32, FormatFloat32:
		return 32
	}
	return 0
}

// Valid reports whether f is one of the supported formats.
func (f SampleFormat) Valid() bool {
	return f >= FormatInt16 && f <= FormatFloat32
}

// ParseSampleFormat accepts the names returned by SampleFormat.String.
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch s {
	case "int16", "s16":
		return FormatInt16, nil
	case "int32", "s32":
		return FormatInt32, nil
	case "float32", "f32", "float":
		return FormatFloat32, nil
	}
	return 0, ErrUnknownFormat
}

// Samples is an interleaved PCM block in one of the supported formats.
// Exactly one of the slices is in use, selected by Format.
type Samples struct {
	Format  SampleFormat
	Int16   []int16
	Int32   []int32
	Float32 []float32
}

// MakeSamples allocates a zeroed block of n samples.
func MakeSamples(format SampleFormat, n int) Samples {
	s := Samples{Format: format}
	switch format {
	case FormatInt16:
		s.Int16 = make([]int16, n)
	case FormatInt32:
		s.Int32 = make([]int32, n)
	case FormatFloat32:
		s.Float32 = make([]float32, n)
	}
	return s
}

// Len is the number of samples (not frames).
func (s Samples) Len() int {
	switch s.Format {
	case FormatInt16:
		return len(s.Int16)
	case FormatInt32:
		return len(s.Int32)
	case FormatFloat32:
		return len(s.Float32)
	}
	return 0
}

// Slice returns the sub-block [i:j] sharing storage with s.
func (s Samples) Slice(i, j int) Samples {
	out := Samples{Format: s.Format}
	switch s.Format {
	case FormatInt16:
		out.Int16 = s.Int16[i:j]
	case FormatInt32:
		out.Int32 = s.Int32[i:j]
	case FormatFloat32:
		out.Float32 = s.Float32[i:j]
	}
	return out
}

// Zero clears every sample.
func (s Samples) Zero() {
	switch s.Format {
	case FormatInt16:
		clear(s.Int16)
	case FormatInt32:
		clear(s.Int32)
	case FormatFloat32:
		clear(s.Float32)
	}
}

// At returns sample i in the units of the format.
func (s Samples) At(i int) float64 {
	switch s.Format {
	case FormatInt16:
		return float64(s.Int16[i])
	case FormatInt32:
		return float64(s.Int32[i])
	case FormatFloat32:
		return float64(s.Float32[i])
	}
	return 0
}

// Set stores v (in the units of the format) at i, rounding and saturating
// for integer formats.
func (s Samples) Set(i int, v float64) {
	switch s.Format {
	case FormatInt16:
		s.Int16[i] = utils.SaturateInt16(math.Round(v))
	case FormatInt32:
		s.Int32[i] = utils.SaturateInt32(math.Round(v))
	case FormatFloat32:
		s.Float32[i] = float32(v)
	}
}

// SetNormalized stores a sample expressed in [-1,1].
func (s Samples) SetNormalized(i int, v float32) {
	switch s.Format {
	case FormatInt16:
		s.Int16[i] = utils.Float32ToInt16(v)
	case FormatInt32:
		s.Int32[i] = utils.Float32ToInt32(v)
	case FormatFloat32:
		s.Float32[i] = v
	}
}

// Normalized returns sample i scaled to [-1,1].
func (s Samples) Normalized(i int) float32 {
	switch s.Format {
	case FormatInt16:
		return utils.Int16ToFloat32(s.Int16[i])
	case FormatInt32:
		return utils.Int32ToFloat32(s.Int32[i])
	case FormatFloat32:
		return s.Float32[i]
	}
	return 0
}

// CopyFrom copies min(s.Len(), src.Len()) samples, converting formats when
// they differ. It returns the number of samples copied.
func (s Samples) CopyFrom(src Samples) int {
	if s.Format == src.Format {
		switch s.Format {
		case FormatInt16:
			return copy(s.Int16, src.Int16)
		case FormatInt32:
			return copy(s.Int32, src.Int32)
		case FormatFloat32:
			return copy(s.Float32, src.Float32)
		}
	}
	n := min(s.Len(), src.Len())
	for i := range n {
		s.SetNormalized(i, src.Normalized(i))
	}
	return n
}
