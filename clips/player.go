// SPDX-License-Identifier: EPL-2.0

package clips

import (
	"io"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/mixer"
)

// Player is a voice callback playing a Clip from memory.
type Player struct {
	clip *Clip
	loop atomic.Bool
	pos  atomic.Int64
	done atomic.Bool

	// OnFinished runs on the pumping goroutine when a non-looping clip ends.
	OnFinished func(p *Player)
}

// NewPlayer returns a player positioned at the start of c.
func NewPlayer(c *Clip, loop bool) *Player {
	p := &Player{clip: c}
	p.loop.Store(loop)
	return p
}

// Clip returns the clip being played.
func (p *Player) Clip() *Clip { return p.clip }

// SetLoop changes whether playback wraps at the end.
func (p *Player) SetLoop(loop bool) { p.loop.Store(loop) }

// Position returns the next frame to be played.
func (p *Player) Position() int { return int(p.pos.Load()) }

// Seek moves playback to frame and clears the finished state.
func (p *Player) Seek(frame int) {
	p.pos.Store(int64(min(max(frame, 0), p.clip.Frames())))
	p.done.Store(false)
}

// Finished reports whether a non-looping clip reached its end.
func (p *Player) Finished() bool { return p.done.Load() }

func (p *Player) PreSupplyAudio(*mixer.Voice, float64) {}

func (p *Player) SupplyAudio(v *mixer.Voice, frames int, dst audio.Samples) int {
	ch := p.clip.Channels
	total := p.clip.Frames()
	pos := int(p.pos.Load())
	written := 0

	for written < frames {
		if pos >= total {
			if !p.loop.Load() || total == 0 {
				break
			}
			pos = 0
		}
		n := min(frames-written, total-pos)
		src := p.clip.Data[pos*ch : (pos+n)*ch]
		for i, s := range src {
			dst.SetNormalized(written*ch+i, s)
		}
		written += n
		pos += n
	}
	p.pos.Store(int64(pos))

	if written < frames && !p.done.Swap(true) {
		v.Stop()
		if p.OnFinished != nil {
			p.OnFinished(p)
		}
	}
	return written
}

// NewVoice allocates a voice on eng matching c's rate and channel count,
// bound to a new Player. The voice is returned stopped and unrouted.
func NewVoice(eng *mixer.Engine, c *Clip, loop, dynamicPitch bool) (*mixer.Voice, *Player, error) {
	p := NewPlayer(c, loop)
	var (
		v   *mixer.Voice
		err error
	)
	if c.Channels == 1 {
		v, err = eng.NewMonoVoice(float64(c.SampleRate), p, dynamicPitch)
	} else {
		v, err = eng.NewStereoVoice(float64(c.SampleRate), p, dynamicPitch)
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "voice for %s", c.Name)
	}
	return v, p, nil
}

// StreamPlayer is a voice callback decoding an audio.Source on the fly,
// for material too long to keep in a Bank.
type StreamPlayer struct {
	src     audio.Source
	scratch []float32
	logger  *zap.Logger
	eof     atomic.Bool
	err     atomic.Pointer[error]
}

// NewStreamPlayer wraps src, which must be mono or stereo.
func NewStreamPlayer(src audio.Source, logger *zap.Logger) (*StreamPlayer, error) {
	if ch := src.Channels(); ch != 1 && ch != 2 {
		return nil, errors.Wrapf(audio.ErrUnsupportedChannels, "stream of %d channels", ch)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamPlayer{src: src, logger: logger}, nil
}

// Done reports whether the source is exhausted or failed.
func (s *StreamPlayer) Done() bool { return s.eof.Load() }

// Err returns the read error that ended the stream, if any.
func (s *StreamPlayer) Err() error {
	if e := s.err.Load(); e != nil {
		return *e
	}
	return nil
}

func (s *StreamPlayer) PreSupplyAudio(*mixer.Voice, float64) {}

func (s *StreamPlayer) SupplyAudio(v *mixer.Voice, frames int, dst audio.Samples) int {
	if s.eof.Load() {
		return 0
	}
	ch := s.src.Channels()
	want := frames * ch
	if cap(s.scratch) < want {
		s.scratch = make([]float32, want)
	}
	buf := s.scratch[:want]

	got := 0
	for got < want {
		n, err := s.src.ReadSamples(buf[got:])
		got += n
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err.Store(&err)
				s.logger.Error("stream read failed", zap.Error(err))
			}
			s.eof.Store(true)
			v.Stop()
			break
		}
		if n == 0 {
			break
		}
	}

	got -= got % ch
	for i, x := range buf[:got] {
		dst.SetNormalized(i, x)
	}
	return got / ch
}

// Close closes the source.
func (s *StreamPlayer) Close() error {
	return s.src.Close()
}

// NewStreamVoice allocates a voice on eng for src, returned stopped and
// unrouted.
func NewStreamVoice(eng *mixer.Engine, src audio.Source, dynamicPitch bool) (*mixer.Voice, *StreamPlayer, error) {
	sp, err := NewStreamPlayer(src, eng.Logger())
	if err != nil {
		return nil, nil, err
	}
	var v *mixer.Voice
	if src.Channels() == 1 {
		v, err = eng.NewMonoVoice(float64(src.SampleRate()), sp, dynamicPitch)
	} else {
		v, err = eng.NewStereoVoice(float64(src.SampleRate()), sp, dynamicPitch)
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "stream voice")
	}
	return v, sp, nil
}
