// SPDX-License-Identifier: EPL-2.0

// Package sink delivers rendered quanta from a mixer.Engine to files,
// memory or byte streams.
//
// File sinks are chosen by extension:
//
//	s, err := sink.Create(sink.Settings{
//	    Path:       "out.wav",
//	    SampleRate: 48000,
//	    Channels:   2,
//	})
//	defer s.Close()
//	err = sink.Run(ctx, eng, s, sink.RunOptions{Quanta: 200})
//
// WAV output goes through github.com/go-audio/wav and FLAC output through
// github.com/mewkiz/flac. Reader turns an engine into an io.Reader of raw
// PCM for piping into other tools.
package sink
