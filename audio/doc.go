// SPDX-License-Identifier: EPL-2.0

// Package audio provides the PCM primitives the mixer is built from.
//
// This package contains:
//   - Source interface for decoded audio input
//   - Samples, a tagged union over the int16, int32 and float32 formats
//   - Converter, the streaming sample-rate converter used by every voice
//   - Downmixer for folding multi-channel sources to mono or stereo
//   - Registry for decoder lookup by format key or file extension
//
// # Source Interface
//
// Decoders in the formats subpackages return a Source:
//
//	type Source interface {
//	    SampleRate() int
//	    Channels() int
//	    ReadSamples(dst []float32) (int, error)
//	    BufSize() int
//	    Close() error
//	}
//
// Source samples are normalized float32 in [-1.0, 1.0].
//
// # Samples
//
// Inside the mixer audio travels as Samples in the engine's master format.
// Exactly one of Int16, Int32 or Float32 is populated:
//
//	buf := audio.MakeSamples(audio.FormatInt16, frames*channels)
//	buf.Set(0, 1200)          // raw units of the format, saturating
//	buf.SetNormalized(1, 0.5) // [-1,1] scaled to the format
//
// # Sample Rate Conversion
//
// A Converter pulls input frames from a callback and produces output frames
// at a fixed rate using Catmull-Rom interpolation:
//
//	conv, err := audio.NewConverter(audio.FormatFloat32, 2, 44100, 48000, 240)
//	conv.Convert(out, 240, func(dst audio.Samples, frames int) int {
//	    return fill(dst, frames)
//	})
//
// Pitch changes can be ramped over a number of output frames with SetPitch,
// and ResetInputRate rebinds the source rate without losing history. At a
// ratio of exactly 1 the converter reproduces its input bit for bit.
//
// # Error Handling
//
// Construction errors wrap ErrUnsupportedConversion or ErrUnsupportedChannels;
// test them with errors.Is. Sources return io.EOF when no more data is
// available.
package audio
