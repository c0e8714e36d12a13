// SPDX-License-Identifier: EPL-2.0

// Package mixer is a real-time software mixing engine.
//
// Audio flows from voices through a graph of submixes into the main submix:
//
//	voice --gain matrix--> submix --send gain--> submix --> main --> output ring
//
// Every pump renders one quantum of about 5 ms (240 frames at 48 kHz):
//
//  1. all submix buffers are zeroed
//  2. each running voice pulls audio from its callback, converts it to the
//     master rate and mixes it through one gain matrix per destination
//  3. submixes are visited so that every sender runs before its receivers;
//     each runs its effect and forwards along its sends
//  4. the main bus is optionally folded to Lt/Rt stereo, scaled by the
//     master volume and written to the next output buffer
//
// # Basic Usage
//
//	eng, err := mixer.NewEngine(mixer.NewMixInfo(48000, audio.FormatFloat32, mixer.Stereo))
//	if err != nil {
//	    return err
//	}
//	v, _ := eng.NewStereoVoice(44100, cb, false)
//	_ = v.SetSendLevel(nil, 1, false) // nil targets the main submix
//	v.Start()
//	for {
//	    out := eng.PumpAndMixVoices()
//	    device.Write(out)
//	}
//
// # Concurrency
//
// One goroutine pumps. Other goroutines may allocate and release voices and
// submixes, change sends and volume at any time; the engine lock serializes
// them with the pump. Voice reconfiguration (Start, Stop, SetSendLevel,
// SetPitchRatio, ResetSampleRate) is queued per voice and applied at the
// next pump, so voice callbacks may call it. Allocation, release and submix
// changes take the engine lock and must not be called from callbacks.
//
// # Gain Slewing
//
// Gain changes requested with slew ramp linearly over one quantum, so level
// changes do not click. Integer formats saturate when accumulating; float32
// accumulates unclamped.
package mixer
