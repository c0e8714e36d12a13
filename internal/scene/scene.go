// SPDX-License-Identifier: EPL-2.0

// Package scene builds the bus and voice graph described by a config on a
// running engine.
package scene

import (
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/clips"
	"github.com/ik5/audmix/internal/config"
	"github.com/ik5/audmix/mixer"
)

// ErrNoDecoder is returned when no decoder is registered for a stream file.
var ErrNoDecoder = errors.New("no decoder for file")

// Track is one playing voice.
type Track struct {
	Config config.VoiceConfig
	Voice  *mixer.Voice

	player *clips.Player
	stream *clips.StreamPlayer
}

// Finished reports whether a non-looping track has played to its end.
func (t *Track) Finished() bool {
	if t.stream != nil {
		return t.stream.Done()
	}
	return t.player.Finished()
}

// Scene owns the submixes and voices built from a config.
type Scene struct {
	eng    *mixer.Engine
	logger *zap.Logger
	buses  map[string]*mixer.Submix
	order  []*mixer.Submix
	tracks []*Track
}

// Build creates every bus, routes it and starts every voice. A bus without
// sends feeds the main bus at unity. On error everything created so far is
// released.
func Build(eng *mixer.Engine, bank *clips.Bank, reg *audio.Registry, cfg *config.Config) (_ *Scene, err error) {
	s := &Scene{
		eng:    eng,
		logger: eng.Logger().Named("scene"),
		buses:  map[string]*mixer.Submix{config.MainBus: eng.MainSubmix()},
	}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	for i, b := range cfg.Buses {
		sub, err := eng.NewSubmix(nil, i)
		if err != nil {
			return nil, errors.Wrapf(err, "bus %s", b.Name)
		}
		s.buses[b.Name] = sub
		s.order = append(s.order, sub)
	}
	for i, b := range cfg.Buses {
		sub := s.order[i]
		if len(b.Sends) == 0 {
			if err := sub.SetSendLevel(nil, 1, false); err != nil {
				return nil, errors.Wrapf(err, "bus %s", b.Name)
			}
			continue
		}
		for _, send := range b.Sends {
			if err := sub.SetSendLevel(s.buses[send.To], send.Level, false); err != nil {
				return nil, errors.Wrapf(err, "bus %s -> %s", b.Name, send.To)
			}
		}
	}

	for _, vc := range cfg.Voices {
		t, err := s.newTrack(bank, reg, vc)
		if err != nil {
			return nil, errors.Wrapf(err, "voice %s", vc.File)
		}
		s.tracks = append(s.tracks, t)
	}
	for _, t := range s.tracks {
		t.Voice.Start()
	}

	s.logger.Debug("scene built",
		zap.Int("buses", len(s.order)),
		zap.Int("voices", len(s.tracks)),
		zap.Ints("order", eng.ProcessingOrder()))
	return s, nil
}

func (s *Scene) newTrack(bank *clips.Bank, reg *audio.Registry, vc config.VoiceConfig) (*Track, error) {
	dynamic := vc.Pitch != 1
	t := &Track{Config: vc}

	if vc.Stream {
		src, err := openStream(reg, vc.File)
		if err != nil {
			return nil, err
		}
		v, sp, err := clips.NewStreamVoice(s.eng, src, dynamic)
		if err != nil {
			_ = src.Close()
			return nil, err
		}
		t.Voice, t.stream = v, sp
	} else {
		clip, err := bank.Load(vc.File)
		if err != nil {
			return nil, err
		}
		v, p, err := clips.NewVoice(s.eng, clip, vc.Loop, dynamic)
		if err != nil {
			return nil, err
		}
		t.Voice, t.player = v, p
	}

	if err := s.route(t); err != nil {
		t.release()
		return nil, err
	}
	if dynamic {
		if err := t.Voice.SetPitchRatio(vc.Pitch, false); err != nil {
			t.release()
			return nil, err
		}
	}
	return t, nil
}

func (s *Scene) route(t *Track) error {
	target := s.buses[t.Config.Bus]
	if t.Voice.Channels() == 1 {
		var levels [mixer.MaxChannels]float32
		levels[mixer.FrontLeft], levels[mixer.FrontRight] = PanMono(t.Config.Gain, t.Config.Pan)
		return t.Voice.SetMonoChannelLevels(target, levels, false)
	}
	var c mixer.Coefficients
	c[mixer.FrontLeft][0], c[mixer.FrontRight][1] = Balance(t.Config.Gain, t.Config.Pan)
	return t.Voice.SetStereoChannelLevels(target, c, false)
}

// PanMono splits gain over left and right with a constant power law.
// pan is -1 for hard left, 0 for center and 1 for hard right.
func PanMono(gain, pan float32) (left, right float32) {
	theta := float64(pan+1) * math.Pi / 4
	return gain * float32(math.Cos(theta)), gain * float32(math.Sin(theta))
}

// Balance attenuates the side opposite to pan, leaving the other at gain.
func Balance(gain, pan float32) (left, right float32) {
	return gain * min(1, 1-pan), gain * min(1, 1+pan)
}

func openStream(reg *audio.Registry, path string) (audio.Source, error) {
	dec, ok := reg.ForPath(path)
	if !ok {
		return nil, errors.Wrap(ErrNoDecoder, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open stream")
	}
	src, err := dec.Decode(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "decode stream")
	}
	src = &fileSource{Source: src, file: f}
	if src.Channels() > 2 {
		dm, err := audio.NewDownmixer(src, 2)
		if err != nil {
			_ = src.Close()
			return nil, err
		}
		return dm, nil
	}
	return src, nil
}

// fileSource closes the underlying file together with the decoder.
type fileSource struct {
	audio.Source
	file io.Closer
}

func (f *fileSource) Close() error {
	err := f.Source.Close()
	if cerr := f.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Tracks returns the voices in config order.
func (s *Scene) Tracks() []*Track { return s.tracks }

// Bus returns the submix declared under name, or main.
func (s *Scene) Bus(name string) (*mixer.Submix, bool) {
	b, ok := s.buses[name]
	return b, ok
}

// Finished reports whether every non-looping track has ended. A scene with
// a looping track never finishes.
func (s *Scene) Finished() bool {
	for _, t := range s.tracks {
		if t.Config.Loop || !t.Finished() {
			return false
		}
	}
	return true
}

// Close releases every voice and bus. It must not run concurrently with a
// pump of the same engine.
func (s *Scene) Close() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	for _, t := range s.tracks {
		keep(t.release())
	}
	for _, b := range s.order {
		if err := b.Release(); err != nil && !errors.Is(err, mixer.ErrReleased) {
			keep(err)
		}
	}
	s.tracks, s.order = nil, nil
	return first
}

func (t *Track) release() error {
	err := t.Voice.Release()
	if errors.Is(err, mixer.ErrReleased) {
		err = nil
	}
	if t.stream != nil {
		if cerr := t.stream.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
