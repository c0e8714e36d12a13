// SPDX-License-Identifier: EPL-2.0

// Package audmix is a real-time audio mixing engine.
//
// The work happens in the subpackages:
//   - mixer: voices, submixes, gain matrices and the pump cycle
//   - audio: the Source interface, sample formats and rate conversion
//   - formats/wav, formats/aiff, formats/mp3, formats/vorbis: decoders
//   - clips: a cache of decoded clips and voice callbacks that play them
//   - sink: WAV and FLAC writers and the render loop that feeds them
//
// # Quick Start
//
// MixToStereo16 plays any number of decoded sources together and collects
// the result as interleaved 16-bit stereo:
//
//	src, _ := wav.Decoder{}.Decode(file)
//	pcm, err := audmix.MixToStereo16(ctx, 48000, src)
//
// For routing through buses, effects and slewed gain changes, build a
// mixer.Engine directly; the mixer package documentation walks through it.
package audmix
