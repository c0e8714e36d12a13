// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"fmt"
	"slices"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ik5/audmix/audio"
)

// EffectCallback processes a submix's accumulated audio in place before it
// is forwarded along the submix's sends. Both methods run on the pumping
// goroutine with the engine lock held; the same rules as VoiceCallback
// apply, so the engine's format queries are allowed and Snapshot is not.
type EffectCallback interface {
	CanApplyEffect() bool
	ApplyEffect(buf audio.Samples, frames int, chMap ChannelMap, sampleRate float64)
}

// RateResetter is implemented by effects that depend on the master rate.
// The engine calls it when the mix format is reconfigured.
type RateResetter interface {
	ResetOutputSampleRate(rate float64)
}

type submixSend struct {
	target Handle
	gain   slewGain
}

// Submix is a bus that sums voices and other submixes, optionally runs an
// effect, then forwards to further submixes. The main submix is the engine's
// output bus.
type Submix struct {
	engine  *Engine
	handle  Handle
	busID   int
	mainOut bool
	effect  EffectCallback

	released atomic.Bool

	// guarded by the engine lock
	sends    []submixSend
	scratch  [3]audio.Samples
	redirect audio.Samples
	redirOn  bool
}

// BusID returns the client-chosen identifier given at creation.
func (s *Submix) BusID() int { return s.busID }

// IsMain reports whether s is the engine's output bus.
func (s *Submix) IsMain() bool { return s.mainOut }

// SetSendLevel routes s into target with a gain. An existing send to target
// is updated; with slew the change ramps over one quantum. A send that would
// close a cycle is rejected.
func (s *Submix) SetSendLevel(target *Submix, level float32, slew bool) error {
	e := s.engine
	if target == nil {
		target = e.main
	}
	if target.engine != e {
		return ErrForeignSubmix
	}
	if s.mainOut {
		return ErrMainSubmix
	}
	if target == s {
		return ErrSelfSend
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if s.released.Load() || target.released.Load() {
		return ErrReleased
	}

	slewFrames := 0
	if slew {
		slewFrames = e.info.PeriodFrames
	}
	for i := range s.sends {
		if s.sends[i].target == target.handle {
			s.sends[i].gain.set(level, slewFrames)
			return nil
		}
	}

	if e.reaches(target, s) {
		e.logger.Debug("send rejected", zap.Int("from", s.busID), zap.Int("to", target.busID))
		return fmt.Errorf("%w: bus %d to bus %d", ErrSendCycle, s.busID, target.busID)
	}

	send := submixSend{target: target.handle}
	send.gain.set(level, slewFrames)
	s.sends = append(s.sends, send)
	e.markDirty()
	return nil
}

// ResetSendLevels removes every send of s.
func (s *Submix) ResetSendLevels() {
	e := s.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(s.sends) > 0 {
		s.sends = s.sends[:0]
		e.markDirty()
	}
}

// SetRedirect makes s accumulate directly into buf, which must hold one
// quantum in the master format. The engine zeroes buf at every pump.
func (s *Submix) SetRedirect(buf audio.Samples) error {
	e := s.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if buf.Format != e.info.Format || buf.Len() < e.info.PeriodSamples() {
		return fmt.Errorf("%w: got %s/%d want %s/%d", ErrBufferTooSmall,
			buf.Format, buf.Len(), e.info.Format, e.info.PeriodSamples())
	}
	s.redirect = buf.Slice(0, e.info.PeriodSamples())
	s.redirOn = true
	return nil
}

// ClearRedirect returns s to its own scratch buffer.
func (s *Submix) ClearRedirect() {
	e := s.engine
	e.mu.Lock()
	s.redirect = audio.Samples{}
	s.redirOn = false
	e.mu.Unlock()
}

// Snapshot copies the audio s accumulated during the last pump into dst and
// returns the number of samples copied. It takes the engine lock and must
// not be called from a callback.
func (s *Submix) Snapshot(dst audio.Samples) int {
	e := s.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	return dst.CopyFrom(s.buffer(&e.info))
}

// Release removes s from the engine. Voices and submixes still sending to it
// drop those sends on their next pump.
func (s *Submix) Release() error {
	if s.mainOut {
		return ErrMainSubmix
	}
	return s.engine.releaseSubmix(s)
}

// buffer returns the quantum-sized accumulation buffer in the master format.
func (s *Submix) buffer(info *MixInfo) audio.Samples {
	if s.redirOn {
		return s.redirect
	}
	n := info.PeriodSamples()
	buf := &s.scratch[info.Format]
	if buf.Len() < n {
		*buf = audio.MakeSamples(info.Format, n)
	}
	return buf.Slice(0, n)
}

// pump runs the effect and forwards the bus along its sends. Called with
// the engine lock held, after every sender of s has been pumped.
func (s *Submix) pump(e *Engine) {
	info := &e.info
	frames := info.PeriodFrames
	buf := s.buffer(info)

	if s.effect != nil && s.effect.CanApplyEffect() {
		s.effect.ApplyEffect(buf, frames, info.Channels, info.SampleRate)
	}

	for i := range s.sends {
		send := &s.sends[i]
		dst, ok := e.submixes.get(send.target)
		if !ok || send.gain.isSilent() {
			continue
		}
		send.gain.mix(buf, dst.buffer(info), frames, len(info.Channels))
	}
}

// pruneSends drops sends whose target was released.
func (s *Submix) pruneSends(e *Engine) {
	s.sends = slices.DeleteFunc(s.sends, func(send submixSend) bool {
		_, ok := e.submixes.get(send.target)
		return !ok
	})
}
