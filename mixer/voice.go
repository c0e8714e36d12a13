// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ik5/audmix/audio"
)

// VoiceCallback supplies a voice's audio. Both methods run on the pumping
// goroutine with the engine lock held. They may reconfigure their own voice
// and call the engine's format queries and Volume, but must not allocate,
// release, reroute submixes or call Snapshot, ProcessingOrder or Reconfigure.
type VoiceCallback interface {
	// PreSupplyAudio runs once per quantum before any audio is pulled.
	// dt is the quantum length in seconds.
	PreSupplyAudio(v *Voice, dt float64)
	// SupplyAudio fills dst with up to frames frames at the voice's input
	// rate and returns how many it wrote. The rest is treated as silence.
	SupplyAudio(v *Voice, frames int, dst audio.Samples) int
}

// SupplyFunc adapts a function to VoiceCallback with no pre-supply hook.
type SupplyFunc func(v *Voice, frames int, dst audio.Samples) int

func (f SupplyFunc) PreSupplyAudio(*Voice, float64) {}

func (f SupplyFunc) SupplyAudio(v *Voice, frames int, dst audio.Samples) int {
	return f(v, frames, dst)
}

type voiceSend struct {
	target Handle
	matrix GainMatrix
}

type sendOp struct {
	reset  bool
	target Handle
	coefs  Coefficients
	slew   bool
}

// voicePending collects changes made between pumps.
type voicePending struct {
	running bool

	pitch     float64
	pitchSlew bool
	pitchSet  bool

	rate    float64
	rateSet bool

	sends []sendOp
}

// Voice is a mono or stereo source resampled to the master rate and mixed
// into one or more submixes.
type Voice struct {
	engine       *Engine
	handle       Handle
	channels     int
	dynamicPitch bool
	cb           VoiceCallback
	pull         audio.PullFunc

	// owned by the pump, guarded by the engine lock
	conv    *audio.Converter
	buf     audio.Samples
	sends   []voiceSend
	running bool

	released atomic.Bool

	mu      sync.Mutex
	pending voicePending
	inRate  float64
	pitch   float64
}

func newVoice(e *Engine, channels int, rate float64, cb VoiceCallback, dynamicPitch bool) (*Voice, error) {
	if cb == nil {
		return nil, ErrNilCallback
	}
	info := e.info
	conv, err := audio.NewConverter(info.Format, channels, rate, info.SampleRate, info.PeriodFrames)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedConversion, err)
	}

	v := &Voice{
		engine:       e,
		channels:     channels,
		dynamicPitch: dynamicPitch,
		cb:           cb,
		conv:         conv,
		buf:          audio.MakeSamples(info.Format, info.PeriodFrames*channels),
		inRate:       rate,
		pitch:        1,
	}
	v.pull = func(dst audio.Samples, frames int) int {
		return v.cb.SupplyAudio(v, frames, dst)
	}
	return v, nil
}

// Channels returns 1 or 2.
func (v *Voice) Channels() int { return v.channels }

// DynamicPitch reports whether SetPitchRatio is allowed.
func (v *Voice) DynamicPitch() bool { return v.dynamicPitch }

// Engine returns the engine that owns v.
func (v *Voice) Engine() *Engine { return v.engine }

// PitchRatio returns the pitch ratio last requested for v.
func (v *Voice) PitchRatio() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pitch
}

// SampleRate returns the input rate last requested for v.
func (v *Voice) SampleRate() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inRate
}

// Start makes the voice audible from the next quantum.
func (v *Voice) Start() {
	v.mu.Lock()
	v.pending.running = true
	v.mu.Unlock()
}

// Stop silences the voice from the next quantum. Its callback is not called
// while stopped.
func (v *Voice) Stop() {
	v.mu.Lock()
	v.pending.running = false
	v.mu.Unlock()
}

// IsRunning reports the requested run state.
func (v *Voice) IsRunning() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pending.running
}

// SetPitchRatio changes playback speed at the next pump. With slew the new
// ratio is reached linearly over one quantum.
func (v *Voice) SetPitchRatio(ratio float64, slew bool) error {
	if !v.dynamicPitch {
		return ErrPitchNotDynamic
	}
	if v.released.Load() {
		return ErrReleased
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkRatio(v.inRate, ratio, v.engine.sampleRate()); err != nil {
		return err
	}
	v.pitch = ratio
	v.pending.pitch = ratio
	v.pending.pitchSlew = slew
	v.pending.pitchSet = true
	return nil
}

// ResetSampleRate rebinds the voice to a new input rate at the next pump.
// Interpolation history is kept, so playback continues without a click.
func (v *Voice) ResetSampleRate(rate float64) error {
	if v.released.Load() {
		return ErrReleased
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkRatio(rate, v.pitch, v.engine.sampleRate()); err != nil {
		return err
	}
	v.inRate = rate
	v.pending.rate = rate
	v.pending.rateSet = true
	return nil
}

// checkRatio applies the converter's rules: the base ratio rate/master must
// be in range on its own, and so must the pitched ratio.
func (v *Voice) checkRatio(rate, pitch, master float64) error {
	if !(rate > 0) || !(pitch > 0) {
		return fmt.Errorf("%w: rate %v pitch %v", ErrUnsupportedConversion, rate, pitch)
	}
	if r := rate / master; r < audio.MinConversionRatio || r > audio.MaxConversionRatio {
		return fmt.Errorf("%w: ratio %v", ErrUnsupportedConversion, r)
	}
	if r := rate / master * pitch; r < audio.MinConversionRatio || r > audio.MaxConversionRatio {
		return fmt.Errorf("%w: pitched ratio %v", ErrUnsupportedConversion, r)
	}
	return nil
}

// SetSendLevel routes the voice into target (nil means the main submix) with
// a uniform level: mono feeds front left and right, stereo maps left to left
// and right to right. With slew the change ramps over one quantum.
func (v *Voice) SetSendLevel(target *Submix, level float32, slew bool) error {
	var c Coefficients
	c[FrontLeft][0] = level
	if v.channels == 1 {
		c[FrontRight][0] = level
	} else {
		c[FrontRight][1] = level
	}
	return v.queueSend(target, c, slew)
}

// SetMonoChannelLevels sets one gain per output channel for a mono voice.
func (v *Voice) SetMonoChannelLevels(target *Submix, levels [MaxChannels]float32, slew bool) error {
	if v.channels != 1 {
		return fmt.Errorf("%w: mono levels on a %d channel voice", audio.ErrUnsupportedChannels, v.channels)
	}
	var c Coefficients
	for ch, l := range levels {
		c[ch][0] = l
	}
	return v.queueSend(target, c, slew)
}

// SetStereoChannelLevels sets the full left/right gain per output channel.
func (v *Voice) SetStereoChannelLevels(target *Submix, levels Coefficients, slew bool) error {
	if v.channels != 2 {
		return fmt.Errorf("%w: stereo levels on a %d channel voice", audio.ErrUnsupportedChannels, v.channels)
	}
	return v.queueSend(target, levels, slew)
}

func (v *Voice) queueSend(target *Submix, c Coefficients, slew bool) error {
	if v.released.Load() {
		return ErrReleased
	}
	if target == nil {
		target = v.engine.MainSubmix()
	}
	if target.engine != v.engine {
		return ErrForeignSubmix
	}
	if target.released.Load() {
		return ErrReleased
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	op := sendOp{target: target.handle, coefs: c, slew: slew}
	// a later set for the same target supersedes an earlier one
	for i := len(v.pending.sends) - 1; i >= 0; i-- {
		p := &v.pending.sends[i]
		if p.reset {
			break
		}
		if p.target == op.target {
			*p = op
			return nil
		}
	}
	v.pending.sends = append(v.pending.sends, op)
	return nil
}

// ResetSendLevels removes every route of the voice at the next pump.
func (v *Voice) ResetSendLevels() {
	v.mu.Lock()
	v.pending.sends = append(v.pending.sends[:0], sendOp{reset: true})
	v.mu.Unlock()
}

// Release removes the voice from the engine. It must not be called from a
// callback running inside a pump.
func (v *Voice) Release() error {
	return v.engine.releaseVoice(v)
}

// applyPending moves queued changes into the pump-owned state and reports
// whether the voice runs this quantum.
func (v *Voice) applyPending(quantum int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	p := &v.pending
	v.running = p.running

	if p.rateSet {
		if err := v.conv.ResetInputRate(p.rate); err != nil {
			v.engine.logger.Error("voice rate change rejected", zap.Float64("rate", p.rate), zap.Error(err))
		}
		p.rateSet = false
	}
	if p.pitchSet {
		ramp := 0
		if p.pitchSlew {
			ramp = quantum
		}
		if err := v.conv.SetPitch(p.pitch, ramp); err != nil {
			v.engine.logger.Error("voice pitch change rejected", zap.Float64("pitch", p.pitch), zap.Error(err))
		}
		p.pitchSet = false
	}

	for _, op := range p.sends {
		if op.reset {
			v.sends = v.sends[:0]
			continue
		}
		slew := 0
		if op.slew {
			slew = quantum
		}
		v.sendTo(op.target).SetCoefficients(op.coefs, slew)
	}
	p.sends = p.sends[:0]

	return v.running
}

func (v *Voice) sendTo(target Handle) *GainMatrix {
	for i := range v.sends {
		if v.sends[i].target == target {
			return &v.sends[i].matrix
		}
	}
	v.sends = append(v.sends, voiceSend{target: target})
	m := &v.sends[len(v.sends)-1].matrix
	m.init(v.channels)
	return m
}

// pump renders one quantum into the voice's destinations. Called with the
// engine lock held.
func (v *Voice) pump(e *Engine) {
	info := &e.info
	frames := info.PeriodFrames
	if !v.applyPending(frames) {
		return
	}
	v.cb.PreSupplyAudio(v, float64(frames)/info.SampleRate)
	v.applyPending(frames)
	if !v.running {
		return
	}

	v.conv.Convert(v.buf, frames, v.pull)

	live := v.sends[:0]
	for _, s := range v.sends {
		sub, ok := e.submixes.get(s.target)
		if !ok {
			continue
		}
		live = append(live, s)
		m := &live[len(live)-1].matrix
		if m.IsSilent() {
			continue
		}
		m.Mix(info, v.buf, sub.buffer(info), frames)
	}
	v.sends = live
}

// voiceBinding is a converter and scratch buffer built for a master format
// the engine has not switched to yet.
type voiceBinding struct {
	conv *audio.Converter
	buf  audio.Samples
}

// prepareBinding builds v's converter for info without installing it.
func (v *Voice) prepareBinding(info MixInfo) (voiceBinding, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkRatio(v.inRate, v.pitch, info.SampleRate); err != nil {
		return voiceBinding{}, err
	}
	conv, err := audio.NewConverter(info.Format, v.channels, v.inRate, info.SampleRate, info.PeriodFrames)
	if err != nil {
		return voiceBinding{}, fmt.Errorf("%w: %w", ErrUnsupportedConversion, err)
	}
	if v.pitch != 1 {
		if err := conv.SetPitch(v.pitch, 0); err != nil {
			return voiceBinding{}, fmt.Errorf("%w: %w", ErrUnsupportedConversion, err)
		}
	}
	return voiceBinding{conv: conv, buf: audio.MakeSamples(info.Format, info.PeriodFrames*v.channels)}, nil
}

// bind installs a binding from prepareBinding. Called with the engine lock
// held.
func (v *Voice) bind(b voiceBinding) {
	v.mu.Lock()
	v.conv, v.buf = b.conv, b.buf
	v.mu.Unlock()
}
