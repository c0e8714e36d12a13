// SPDX-License-Identifier: EPL-2.0

// Package wav decodes integer PCM WAV files into audio.Source and writes
// 16-bit PCM WAV files.
//
// Decoding goes through github.com/go-audio/wav, so chunks other than fmt
// and data such as LIST or fact are skipped rather than rejected. Sample depths
// of 16, 24 and 32 bits are normalized to float32 in [-1,1].
//
//	src, err := wav.Decoder{}.Decode(file)
//
// WriteInt16 writes interleaved int16 samples with a valid RIFF header:
//
//	err := wav.WriteInt16(file, 48000, 2, samples)
package wav
