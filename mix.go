// SPDX-License-Identifier: EPL-2.0

package audmix

import (
	"context"
	"fmt"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/clips"
	"github.com/ik5/audmix/mixer"
)

// MixToStereo16 plays every source at unity gain into a 16-bit stereo mix at
// targetRate and returns the interleaved result once all of them have
// ended. Mono sources feed both sides, sources with more than two channels
// are folded to stereo. The output is padded with silence to whole 5 ms
// quanta. Sources are closed before returning.
func MixToStereo16(ctx context.Context, targetRate int, srcs ...audio.Source) ([]int16, error) {
	eng, err := mixer.NewEngine(mixer.NewMixInfo(float64(targetRate), audio.FormatInt16, mixer.Stereo))
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}
	defer eng.Close()

	players := make([]*clips.StreamPlayer, 0, len(srcs))
	defer func() {
		for _, p := range players {
			_ = p.Close()
		}
	}()

	for i, src := range srcs {
		if src.Channels() > 2 {
			dm, err := audio.NewDownmixer(src, 2)
			if err != nil {
				return nil, fmt.Errorf("source %d: %w", i, err)
			}
			src = dm
		}
		v, p, err := clips.NewStreamVoice(eng, src, false)
		if err != nil {
			_ = src.Close()
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		players = append(players, p)
		if err := v.SetSendLevel(nil, 1, false); err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		v.Start()
	}

	var pcm16 []int16
	flushed := false
	for !flushed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// one more quantum after the last source ends drains the
		// converters' lookahead
		flushed = allDone(players)
		out := eng.PumpAndMixVoices()
		pcm16 = append(pcm16, out.Int16...)

		for i, p := range players {
			if err := p.Err(); err != nil {
				return nil, fmt.Errorf("source %d: %w", i, err)
			}
		}
	}
	return pcm16, nil
}

func allDone(players []*clips.StreamPlayer) bool {
	for _, p := range players {
		if !p.Done() {
			return false
		}
	}
	return true
}
