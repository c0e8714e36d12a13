// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"math"

	"github.com/ik5/audmix/utils"
)

const (
	// MinConversionRatio and MaxConversionRatio bound the number of input
	// frames consumed per output frame, pitch included.
	MinConversionRatio = 1.0 / 256
	MaxConversionRatio = 256.0

	minPullFrames = 16
)

// PullFunc fills dst (interleaved, converter channel count) with up to frames
// input frames and returns how many frames it wrote.
type PullFunc func(dst Samples, frames int) int

// Converter streams PCM from a pull callback to a fixed output rate using
// Catmull-Rom interpolation. Works on interleaved samples of one format and
// preserves the channel count (1 or 2).
//
// At a ratio of exactly 1 the output reproduces the input bit for bit.
type Converter struct {
	format   SampleFormat
	channels int
	inRate    float64
	outRate   float64
	pitch     float64
	maxFrames int

	// step is the number of input frames advanced per output frame.
	step       float64
	targetStep float64
	rampLeft   int

	// window holds 4 frames for cubic interpolation
	// window[0] = t-1, window[1] = t0, window[2] = t+1, window[3] = t+2
	window [4][2]float64
	pos    float64
	primed bool

	in      Samples
	inLen   int // frames buffered in `in`
	inPos   int // next frame to consume from `in`
	inFrame [2]float64
}

// NewConverter validates the (inRate, outRate, channels) combination and
// builds a converter for it. maxFrames is the largest output block expected
// and sizes the internal pull buffer.
func NewConverter(format SampleFormat, channels int, inRate, outRate float64, maxFrames int) (*Converter, error) {
	if !format.Valid() {
		return nil, ErrUnknownFormat
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChannels, channels)
	}
	if err := checkRates(inRate, outRate, 1); err != nil {
		return nil, err
	}

	c := &Converter{
		format:    format,
		channels:  channels,
		inRate:    inRate,
		outRate:   outRate,
		pitch:     1,
		maxFrames: maxFrames,
	}
	c.step = inRate / outRate
	c.targetStep = c.step
	c.in = MakeSamples(format, c.pullFrames()*channels)

	return c, nil
}

// pullFrames is the pull buffer size that covers one maxFrames block at the
// larger of the current and target steps.
func (c *Converter) pullFrames() int {
	step := max(c.step, c.targetStep)
	return max(int(math.Ceil(float64(c.maxFrames)*step))+4, minPullFrames)
}

// grow enlarges the pull buffer after a step change, keeping any frames not
// yet consumed.
func (c *Converter) grow() {
	if need := c.pullFrames(); need > c.in.Len()/c.channels {
		grown := MakeSamples(c.format, need*c.channels)
		grown.CopyFrom(c.in)
		c.in = grown
	}
}

func checkRates(inRate, outRate, pitch float64) error {
	if !(inRate > 0) || !(outRate > 0) || !(pitch > 0) || math.IsInf(inRate, 0) || math.IsInf(outRate, 0) {
		return fmt.Errorf("%w: %v Hz -> %v Hz", ErrUnsupportedConversion, inRate, outRate)
	}
	ratio := inRate / outRate * pitch
	if ratio < MinConversionRatio || ratio > MaxConversionRatio {
		return fmt.Errorf("%w: ratio %v out of range", ErrUnsupportedConversion, ratio)
	}
	return nil
}

func (c *Converter) Channels() int        { return c.channels }
func (c *Converter) Format() SampleFormat { return c.format }
func (c *Converter) InputRate() float64   { return c.inRate }
func (c *Converter) OutputRate() float64  { return c.outRate }
func (c *Converter) Pitch() float64       { return c.pitch }
func (c *Converter) Step() float64        { return c.step }

// SetPitch changes the playback pitch ratio. With rampFrames > 0 the step
// moves linearly to its new value over that many output frames.
func (c *Converter) SetPitch(pitch float64, rampFrames int) error {
	if err := checkRates(c.inRate, c.outRate, pitch); err != nil {
		return err
	}
	c.pitch = pitch
	c.retarget(rampFrames)
	c.grow()
	return nil
}

// ResetInputRate rebinds the converter to a new source rate, keeping the
// interpolation history so the stream does not tear. A pitch ramp in
// progress continues toward the step for the new rate.
func (c *Converter) ResetInputRate(inRate float64) error {
	if err := checkRates(inRate, c.outRate, 1); err != nil {
		return err
	}
	if err := checkRates(inRate, c.outRate, c.pitch); err != nil {
		return err
	}
	c.inRate = inRate
	c.retarget(c.rampLeft)
	c.grow()
	return nil
}

func (c *Converter) retarget(rampFrames int) {
	c.targetStep = c.inRate / c.outRate * c.pitch
	if rampFrames <= 0 {
		c.step = c.targetStep
		c.rampLeft = 0
		return
	}
	c.rampLeft = rampFrames
}

// nextFrame consumes one input frame into c.inFrame, pulling a new chunk from
// pull when the buffer runs dry. A short pull is padded with silence.
func (c *Converter) nextFrame(pull PullFunc, want int) {
	if c.inPos >= c.inLen {
		capFrames := c.in.Len() / c.channels
		n := min(max(want, minPullFrames), capFrames)
		chunk := c.in.Slice(0, n*c.channels)
		got := 0
		if pull != nil {
			got = min(max(pull(chunk, n), 0), n)
		}
		chunk.Slice(got*c.channels, n*c.channels).Zero()
		c.inLen = n
		c.inPos = 0
	}

	base := c.inPos * c.channels
	for ch := range c.channels {
		c.inFrame[ch] = c.in.At(base + ch)
	}
	c.inPos++
}

// Convert writes frames output frames into dst and returns frames.
// dst must hold at least frames*Channels() samples of the converter's format.
func (c *Converter) Convert(dst Samples, frames int, pull PullFunc) int {
	if dst.Format != c.format || dst.Len() < frames*c.channels {
		panic(fmt.Sprintf("audio: converter given %s block of %d samples for %d frames of %d channels",
			dst.Format, dst.Len(), frames, c.channels))
	}

	// estimate of the input frames still needed for this block
	want := func(done int) int {
		return int(math.Ceil(float64(frames-done)*c.step)) + 3
	}

	if !c.primed {
		c.nextFrame(pull, want(0))
		c.window[0], c.window[1] = c.inFrame, c.inFrame
		c.nextFrame(pull, want(0))
		c.window[2] = c.inFrame
		c.nextFrame(pull, want(0))
		c.window[3] = c.inFrame
		c.pos = 0
		c.primed = true
	}

	for i := range frames {
		for c.pos >= 1 {
			c.pos--
			c.window[0], c.window[1], c.window[2] = c.window[1], c.window[2], c.window[3]
			c.nextFrame(pull, want(i))
			c.window[3] = c.inFrame
		}

		x := c.pos
		for ch := range c.channels {
			v := utils.CubicInterpolate(c.window[0][ch], c.window[1][ch], c.window[2][ch], c.window[3][ch], x)
			dst.Set(i*c.channels+ch, v)
		}

		if c.rampLeft > 0 {
			c.step += (c.targetStep - c.step) / float64(c.rampLeft)
			c.rampLeft--
		}
		c.pos += c.step
	}

	return frames
}
