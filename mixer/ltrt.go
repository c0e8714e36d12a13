// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"math"

	"github.com/ik5/audmix/audio"
)

const (
	// hilbertTaps is the length of the FIR phase shifter; odd so the group
	// delay is a whole number of frames.
	hilbertTaps  = 31
	hilbertDelay = hilbertTaps / 2

	minus3dB = math.Sqrt2 / 2
)

var hilbertKernel = func() [hilbertTaps]float64 {
	var h [hilbertTaps]float64
	for i := range h {
		n := i - hilbertDelay
		if n%2 == 0 {
			continue
		}
		w := 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(hilbertTaps-1))
		h[i] = 2 / (math.Pi * float64(n)) * w
	}
	return h
}()

// LtRtEncoder folds a 5.1 bus (FL FR FC LFE RL RR) to a matrix-surround
// stereo pair:
//
//	Lt = L + 0.707*C - 0.707*S'
//	Rt = R + 0.707*C + 0.707*S'
//
// where S' is the mono surround 0.707*(RL+RR) shifted by 90 degrees. The
// front channels are delayed to line up with the phase shifter. LFE is
// dropped.
type LtRtEncoder struct {
	phaseShift bool

	surround [hilbertTaps]float64
	pos      int
	front    [hilbertDelay][3]float64
	frontPos int
}

// NewLtRtEncoder builds an encoder. Without phaseShift the surround is
// matrixed unshifted and no delay is added.
func NewLtRtEncoder(phaseShift bool) *LtRtEncoder {
	return &LtRtEncoder{phaseShift: phaseShift}
}

// Latency is the delay in frames the encoder adds.
func (l *LtRtEncoder) Latency() int {
	if l.phaseShift {
		return hilbertDelay
	}
	return 0
}

// Reset clears the filter history.
func (l *LtRtEncoder) Reset() {
	*l = LtRtEncoder{phaseShift: l.phaseShift}
}

// Encode reads frames frames laid out by chMap from src and writes frames
// stereo frames to dst, overwriting it. src and dst must share a format.
func (l *LtRtEncoder) Encode(src audio.Samples, chMap ChannelMap, dst audio.Samples, frames int) {
	inCh := len(chMap)
	if src.Len() < frames*inCh || dst.Len() < frames*2 {
		panic("mixer: Lt/Rt encode buffers too small")
	}
	fl, fr, fc := chMap.Slot(FrontLeft), chMap.Slot(FrontRight), chMap.Slot(FrontCenter)
	rl, rr := chMap.Slot(RearLeft), chMap.Slot(RearRight)

	at := func(base, slot int) float64 {
		if slot < 0 {
			return 0
		}
		return src.At(base + slot)
	}

	for f := range frames {
		base := f * inCh
		left, right, center := at(base, fl), at(base, fr), at(base, fc)
		s := minus3dB * (at(base, rl) + at(base, rr))

		if l.phaseShift {
			s = l.shift(s)
			left, right, center = l.delay(left, right, center)
			l.pos = (l.pos + 1) % hilbertTaps
		}

		c := minus3dB * center
		dst.Set(f*2, left+c-minus3dB*s)
		dst.Set(f*2+1, right+c+minus3dB*s)
	}
}

// shift pushes s into the surround history and returns the filtered value
// for the frame hilbertDelay samples back.
func (l *LtRtEncoder) shift(s float64) float64 {
	l.surround[l.pos] = s
	var acc float64
	for k := 0; k < hilbertTaps; k += 2 {
		idx := l.pos - k
		if idx < 0 {
			idx += hilbertTaps
		}
		acc += hilbertKernel[k] * l.surround[idx]
	}
	return acc
}

func (l *LtRtEncoder) delay(left, right, center float64) (float64, float64, float64) {
	out := l.front[l.frontPos]
	l.front[l.frontPos] = [3]float64{left, right, center}
	l.frontPos = (l.frontPos + 1) % hilbertDelay
	return out[0], out[1], out[2]
}
