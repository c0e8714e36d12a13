// SPDX-License-Identifier: EPL-2.0

// Package clips feeds decoded audio files into mixer voices.
//
// A Bank decodes files through an audio.Registry and caches the results:
//
//	bank, _ := clips.NewBank(reg, clips.DefaultBankSize)
//	clip, err := bank.Load("sfx/door.wav")
//	v, player, err := clips.NewVoice(eng, clip, false, false)
//	_ = v.SetSendLevel(nil, 1, false)
//	v.Start()
//
// Long material can be streamed with NewStreamVoice instead of being held
// in memory.
package clips
