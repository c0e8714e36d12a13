// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ik5/audmix/audio"
)

// State is the pump state of an Engine.
type State int32

const (
	// StateIdle means no client change happened since the last pump.
	StateIdle State = iota
	// StateFilling means clients changed the graph since the last pump.
	StateFilling
	// StatePumping means a quantum is being mixed.
	StatePumping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFilling:
		return "filling"
	case StatePumping:
		return "pumping"
	}
	return "unknown"
}

// Engine owns voices and submixes and renders one quantum per pump.
//
// One goroutine pumps; any number of goroutines may allocate, release and
// reconfigure concurrently. The format queries and Volume never take the
// engine lock, so callbacks may call them during a pump.
type Engine struct {
	mu     sync.Mutex
	logger *zap.Logger

	info       MixInfo // internal bus format
	out        MixInfo // what PumpAndMixVoices returns
	formats    atomic.Pointer[engineFormats]
	masterRate atomic.Uint64
	volBits    atomic.Uint32

	voices   *slotMap[*Voice]
	submixes *slotMap[*Submix]
	main     *Submix

	dirty bool
	order []*Submix

	ltrt    *LtRtEncoder
	ring    []audio.Samples
	ringPos int
	volume  slewGain

	state atomic.Int32
	pumps atomic.Uint64

	// scratch reused by pumps
	voiceList []*Voice
}

// NewEngine builds an engine producing audio in the output format info.
// With WithLtRt, info must be stereo and the engine mixes internally in 5.1.
func NewEngine(info MixInfo, opts ...Option) (*Engine, error) {
	o := options{logger: zap.NewNop(), buffers: 3}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		logger:   o.logger,
		voices:   newSlotMap[*Voice](),
		submixes: newSlotMap[*Submix](),
		ring:     make([]audio.Samples, o.buffers),
	}
	e.volume.set(1, 0)
	e.volBits.Store(math.Float32bits(1))
	if o.ltrt {
		e.ltrt = NewLtRtEncoder(o.phaseShift)
	}
	if err := e.configure(info); err != nil {
		e.logger.Error("engine configuration rejected", zap.Error(err))
		return nil, err
	}

	e.main = &Submix{engine: e, mainOut: true, busID: -1}
	e.main.handle = e.submixes.insert(e.main)
	e.dirty = true

	e.logger.Debug("engine created",
		zap.Float64("rate", info.SampleRate),
		zap.Stringer("format", info.Format),
		zap.Int("channels", len(info.Channels)),
		zap.Bool("lt_rt", e.ltrt != nil),
		zap.Int("period_frames", info.PeriodFrames))
	return e, nil
}

// engineFormats is an immutable copy of the engine formats published for
// lock-free reads.
type engineFormats struct {
	info, out MixInfo
}

// formatsFor validates info and derives the internal and output formats
// without touching the engine.
func (e *Engine) formatsFor(info MixInfo) (*engineFormats, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	f := &engineFormats{info: info.clone(), out: info.clone()}
	if e.ltrt != nil {
		if ChannelSetOf(f.out.Channels) != Stereo {
			return nil, fmt.Errorf("%w: got %d channels", ErrLtRtNeedsStereo, len(f.out.Channels))
		}
		f.info.Channels = Surround51.Map()
	}
	return f, nil
}

func (e *Engine) configure(info MixInfo) error {
	f, err := e.formatsFor(info)
	if err != nil {
		return err
	}
	e.commitFormats(f)
	return nil
}

// commitFormats switches the engine to f. Called with the lock held or
// before the engine is shared.
func (e *Engine) commitFormats(f *engineFormats) {
	if e.ltrt != nil {
		e.ltrt.Reset()
	}
	e.info, e.out = f.info.clone(), f.out.clone()
	e.formats.Store(f)
	e.masterRate.Store(math.Float64bits(f.info.SampleRate))
	for i := range e.ring {
		e.ring[i] = audio.MakeSamples(f.out.Format, f.out.PeriodSamples())
	}
}

func (e *Engine) sampleRate() float64 {
	return math.Float64frombits(e.masterRate.Load())
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *zap.Logger { return e.logger }

// MixInfo returns the internal bus format voices and effects see.
func (e *Engine) MixInfo() MixInfo {
	return e.formats.Load().info.clone()
}

// OutputInfo returns the format of the buffers the engine produces.
func (e *Engine) OutputInfo() MixInfo {
	return e.formats.Load().out.clone()
}

// AvailableChannelSet returns the layout of the internal bus.
func (e *Engine) AvailableChannelSet() ChannelSet {
	return ChannelSetOf(e.formats.Load().info.Channels)
}

// FiveMsFrameCount is the quantum length in frames.
func (e *Engine) FiveMsFrameCount() int {
	return e.formats.Load().info.PeriodFrames
}

// State returns the current pump state.
func (e *Engine) State() State { return State(e.state.Load()) }

// Pumps returns the number of quanta rendered so far.
func (e *Engine) Pumps() uint64 { return e.pumps.Load() }

// MainSubmix returns the output bus.
func (e *Engine) MainSubmix() *Submix { return e.main }

// touch records a client change. Called with the lock held.
func (e *Engine) touch() {
	e.state.CompareAndSwap(int32(StateIdle), int32(StateFilling))
}

func (e *Engine) markDirty() {
	e.dirty = true
	e.touch()
}

// NewMonoVoice allocates a stopped one-channel voice sampled at rate.
func (e *Engine) NewMonoVoice(rate float64, cb VoiceCallback, dynamicPitch bool) (*Voice, error) {
	return e.newVoice(1, rate, cb, dynamicPitch)
}

// NewStereoVoice allocates a stopped two-channel voice sampled at rate.
func (e *Engine) NewStereoVoice(rate float64, cb VoiceCallback, dynamicPitch bool) (*Voice, error) {
	return e.newVoice(2, rate, cb, dynamicPitch)
}

func (e *Engine) newVoice(channels int, rate float64, cb VoiceCallback, dynamicPitch bool) (*Voice, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := newVoice(e, channels, rate, cb, dynamicPitch)
	if err != nil {
		e.logger.Error("voice allocation failed",
			zap.Float64("rate", rate), zap.Int("channels", channels), zap.Error(err))
		return nil, err
	}
	v.handle = e.voices.insert(v)
	e.touch()

	e.logger.Debug("voice allocated",
		zap.Float64("rate", rate),
		zap.Int("channels", channels),
		zap.Bool("dynamic_pitch", dynamicPitch),
		zap.Int("voices", e.voices.len()))
	return v, nil
}

func (e *Engine) releaseVoice(v *Voice) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.voices.remove(v.handle) {
		return ErrReleased
	}
	v.released.Store(true)
	e.touch()
	e.logger.Debug("voice released", zap.Int("voices", e.voices.len()))
	return nil
}

// NewSubmix allocates a bus. effect may be nil. busID is a free-form label
// echoed back by Submix.BusID.
func (e *Engine) NewSubmix(effect EffectCallback, busID int) (*Submix, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := &Submix{engine: e, busID: busID, effect: effect}
	s.handle = e.submixes.insert(s)
	e.markDirty()

	e.logger.Debug("submix allocated", zap.Int("bus", busID), zap.Int("submixes", e.submixes.len()))
	return s, nil
}

func (e *Engine) releaseSubmix(s *Submix) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.submixes.remove(s.handle) {
		return ErrReleased
	}
	s.released.Store(true)
	s.sends = nil
	e.markDirty()
	e.logger.Debug("submix released", zap.Int("bus", s.busID), zap.Int("submixes", e.submixes.len()))
	return nil
}

// reaches reports whether from can reach to by following sends.
// Called with the lock held.
func (e *Engine) reaches(from, to *Submix) bool {
	seen := map[*Submix]bool{}
	stack := []*Submix{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == to {
			return true
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		for _, send := range n.sends {
			if t, ok := e.submixes.get(send.target); ok {
				stack = append(stack, t)
			}
		}
	}
	return false
}

// SetVolume sets the master volume, slewed over one quantum.
func (e *Engine) SetVolume(v float32) {
	e.mu.Lock()
	e.volume.set(v, e.info.PeriodFrames)
	e.volBits.Store(math.Float32bits(v))
	e.touch()
	e.mu.Unlock()
}

// Volume returns the target master volume.
func (e *Engine) Volume() float32 {
	return math.Float32frombits(e.volBits.Load())
}

// ProcessingOrder returns the bus IDs in the order the next pump visits
// them. The main submix reports -1.
func (e *Engine) ProcessingOrder() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dirty {
		e.relinearize()
	}
	ids := make([]int, len(e.order))
	for i, s := range e.order {
		ids[i] = s.busID
	}
	return ids
}

// relinearize rebuilds the submix processing order. Called with the lock
// held.
func (e *Engine) relinearize() {
	subs := e.submixes.appendValues(nil)

	senders := make(map[*Submix][]*Submix, len(subs))
	var terminals []*Submix
	for _, s := range subs {
		s.pruneSends(e)
		if len(s.sends) == 0 {
			terminals = append(terminals, s)
		}
		for _, send := range s.sends {
			t, _ := e.submixes.get(send.target)
			senders[t] = append(senders[t], s)
		}
	}

	deps := func(s *Submix) []*Submix {
		if s == nil {
			return terminals
		}
		return senders[s]
	}

	lin, err := Linearize[*Submix](nil, deps)
	if err == nil {
		slices.Reverse(lin)
		e.order = lin[:len(lin)-1]
	} else {
		e.logger.Warn("submix linearization failed, using topological order", zap.Error(err))
		order, terr := TopologicalOrder(subs, deps)
		if terr != nil {
			// sends are checked for cycles when added
			panic(fmt.Sprintf("mixer: submix graph has a cycle: %v", terr))
		}
		e.order = order
	}
	e.dirty = false

	e.logger.Debug("submixes linearized", zap.Int("submixes", len(e.order)))
}

// PumpAndMixVoices renders one quantum and returns it. The buffer belongs to
// the output ring and stays valid until the ring wraps around to it.
func (e *Engine) PumpAndMixVoices() audio.Samples {
	e.mu.Lock()
	defer e.mu.Unlock()

	dst := e.ring[e.ringPos]
	e.ringPos = (e.ringPos + 1) % len(e.ring)
	e.pump(dst)
	return dst
}

// PumpAndMixTo renders one quantum directly into dst, which must hold one
// quantum in the output format.
func (e *Engine) PumpAndMixTo(dst audio.Samples) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if dst.Format != e.out.Format || dst.Len() < e.out.PeriodSamples() {
		return fmt.Errorf("%w: got %s/%d want %s/%d", ErrBufferTooSmall,
			dst.Format, dst.Len(), e.out.Format, e.out.PeriodSamples())
	}
	dst = dst.Slice(0, e.out.PeriodSamples())

	if e.ltrt == nil && !e.main.redirOn {
		e.main.redirect, e.main.redirOn = dst, true
		defer func() {
			e.main.redirect, e.main.redirOn = audio.Samples{}, false
		}()
	}
	e.pump(dst)
	return nil
}

func (e *Engine) pump(dst audio.Samples) {
	e.state.Store(int32(StatePumping))
	defer e.state.Store(int32(StateIdle))

	info := &e.info
	frames := info.PeriodFrames

	e.submixes.each(func(_ Handle, s *Submix) bool {
		s.buffer(info).Zero()
		return true
	})

	e.voiceList = e.voices.appendValues(e.voiceList[:0])
	for _, v := range e.voiceList {
		v.pump(e)
	}
	clear(e.voiceList)

	if e.dirty {
		e.relinearize()
	}
	for _, s := range e.order {
		s.pump(e)
	}

	mainBuf := e.main.buffer(info)
	switch {
	case e.ltrt != nil:
		e.ltrt.Encode(mainBuf, info.Channels, dst, frames)
	case !sameBacking(mainBuf, dst):
		dst.CopyFrom(mainBuf)
	}

	if !e.volume.isUnity() {
		e.volume.scale(dst, frames, len(e.out.Channels))
	}
	e.pumps.Add(1)
}

func sameBacking(a, b audio.Samples) bool {
	if a.Format != b.Format || a.Len() == 0 || b.Len() == 0 {
		return false
	}
	switch a.Format {
	case audio.FormatInt16:
		return &a.Int16[0] == &b.Int16[0]
	case audio.FormatInt32:
		return &a.Int32[0] == &b.Int32[0]
	case audio.FormatFloat32:
		return &a.Float32[0] == &b.Float32[0]
	}
	return false
}

// Reconfigure switches the engine to a new output format. Voice converters
// are rebuilt; a voice whose rate cannot convert to the new master rate
// fails the whole call and leaves the engine unchanged.
func (e *Engine) Reconfigure(info MixInfo) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.formatsFor(info)
	if err != nil {
		e.logger.Error("engine reconfiguration rejected", zap.Error(err))
		return err
	}
	voices := e.voices.appendValues(nil)
	binds := make([]voiceBinding, len(voices))
	for i, v := range voices {
		b, err := v.prepareBinding(f.info)
		if err != nil {
			e.logger.Error("voice rebind failed",
				zap.Float64("voice_rate", v.SampleRate()),
				zap.Float64("rate", info.SampleRate),
				zap.Error(err))
			return err
		}
		binds[i] = b
	}

	prevOut := e.out
	e.commitFormats(f)
	for i, v := range voices {
		v.bind(binds[i])
	}
	e.submixes.each(func(_ Handle, s *Submix) bool {
		if s.redirOn && (s.redirect.Format != e.info.Format || s.redirect.Len() < e.info.PeriodSamples()) {
			s.redirect, s.redirOn = audio.Samples{}, false
		}
		if r, ok := s.effect.(RateResetter); ok {
			r.ResetOutputSampleRate(e.info.SampleRate)
		}
		return true
	})
	e.dirty = true
	e.touch()

	e.logger.Debug("engine reconfigured",
		zap.Float64("from_rate", prevOut.SampleRate),
		zap.Float64("rate", info.SampleRate),
		zap.Stringer("format", info.Format))
	return nil
}

// Close releases every voice and submix except the main bus.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.voices.each(func(_ Handle, v *Voice) bool {
		v.released.Store(true)
		return true
	})
	for _, v := range e.voices.appendValues(nil) {
		e.voices.remove(v.handle)
	}
	for _, s := range e.submixes.appendValues(nil) {
		if s.mainOut {
			continue
		}
		s.released.Store(true)
		s.sends = nil
		e.submixes.remove(s.handle)
	}
	e.main.sends = nil
	e.dirty = true
	e.logger.Debug("engine closed", zap.Uint64("pumps", e.pumps.Load()))
	return nil
}
