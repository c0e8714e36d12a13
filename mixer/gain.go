// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"fmt"
	"math"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/utils"
)

// silenceEpsilon is the coefficient magnitude below which a gain is inaudible.
const silenceEpsilon = 1e-5

// Coefficients maps each output channel to the gain applied to each input
// channel (index 0 for mono or left, 1 for right).
type Coefficients [MaxChannels][2]float32

// GainMatrix routes a mono or stereo block into a multichannel bus, slewing
// linearly from the previous to the current coefficients.
type GainMatrix struct {
	inChannels int
	prev, cur  Coefficients
	slewFrames int
	slewPos    int
}

// NewGainMatrix builds a silent matrix for 1 or 2 input channels.
func NewGainMatrix(inChannels int) *GainMatrix {
	m := &GainMatrix{}
	m.init(inChannels)
	return m
}

func (m *GainMatrix) init(inChannels int) {
	if inChannels != 1 && inChannels != 2 {
		panic(fmt.Sprintf("mixer: gain matrix with %d input channels", inChannels))
	}
	m.inChannels = inChannels
}

// InputChannels returns 1 or 2.
func (m *GainMatrix) InputChannels() int { return m.inChannels }

// Current returns the target coefficients.
func (m *GainMatrix) Current() Coefficients { return m.cur }

// Slewing reports whether a slew is still in progress.
func (m *GainMatrix) Slewing() bool { return m.slewPos < m.slewFrames }

// SetCoefficients installs new target coefficients. The old target becomes
// the slew start; slewFrames == 0 switches instantly.
func (m *GainMatrix) SetCoefficients(coefs Coefficients, slewFrames int) {
	m.prev = m.cur
	m.cur = coefs
	m.slewFrames = max(slewFrames, 0)
	m.slewPos = 0
}

// Coefficient returns the effective gain of input channel in on output ch at
// the current slew position.
func (m *GainMatrix) Coefficient(ch Channel, in int) float32 {
	t, slewing := slewFactor(m.slewPos, m.slewFrames)
	if !slewing {
		return m.cur[ch][in]
	}
	return float32(lerpGain(m.prev[ch][in], m.cur[ch][in], t))
}

// IsSilent reports whether mixing through m would add nothing.
func (m *GainMatrix) IsSilent() bool {
	slewing := m.Slewing()
	for ch := range MaxChannels {
		for in := range m.inChannels {
			if abs32(m.cur[ch][in]) >= silenceEpsilon {
				return false
			}
			if slewing && abs32(m.prev[ch][in]) >= silenceEpsilon {
				return false
			}
		}
	}
	return true
}

// Mix accumulates frames frames of src (m.InputChannels() interleaved) into
// dst (laid out by info.Channels). src and dst must share info.Format.
func (m *GainMatrix) Mix(info *MixInfo, src, dst audio.Samples, frames int) {
	outCh := len(info.Channels)
	if src.Format != info.Format || dst.Format != info.Format ||
		src.Len() < frames*m.inChannels || dst.Len() < frames*outCh {
		panic(fmt.Sprintf("mixer: gain matrix mix of %d frames: src %s/%d dst %s/%d",
			frames, src.Format, src.Len(), dst.Format, dst.Len()))
	}

	switch info.Format {
	case audio.FormatInt16:
		mixMatrix(m, info.Channels, src.Int16, dst.Int16, frames, addInt16)
	case audio.FormatInt32:
		mixMatrix(m, info.Channels, src.Int32, dst.Int32, frames, addInt32)
	case audio.FormatFloat32:
		mixMatrix(m, info.Channels, src.Float32, dst.Float32, frames, addFloat32)
	}
}

type sample interface {
	~int16 | ~int32 | ~float32
}

func mixMatrix[T sample](m *GainMatrix, chMap ChannelMap, src, dst []T, frames int, add func(T, float64) T) {
	outCh := len(chMap)
	var gains [MaxChannels][2]float64

	for f := range frames {
		t, slewing := slewFactor(m.slewPos, m.slewFrames)
		for i, ch := range chMap {
			for in := range m.inChannels {
				if slewing {
					gains[i][in] = lerpGain(m.prev[ch][in], m.cur[ch][in], t)
				} else {
					gains[i][in] = float64(m.cur[ch][in])
				}
			}
		}

		in := src[f*m.inChannels : f*m.inChannels+m.inChannels]
		out := dst[f*outCh : f*outCh+outCh]
		for i := range out {
			v := float64(in[0]) * gains[i][0]
			if m.inChannels == 2 {
				v += float64(in[1]) * gains[i][1]
			}
			out[i] = add(out[i], v)
		}

		if m.slewPos < m.slewFrames {
			m.slewPos++
		}
	}
}

// slewGain is a scalar gain with the same slewing rule as GainMatrix.
type slewGain struct {
	prev, cur  float32
	slewFrames int
	slewPos    int
}

func (g *slewGain) set(v float32, slewFrames int) {
	g.prev = g.cur
	g.cur = v
	g.slewFrames = max(slewFrames, 0)
	g.slewPos = 0
}

func (g *slewGain) isSilent() bool {
	if abs32(g.cur) >= silenceEpsilon {
		return false
	}
	return g.slewPos >= g.slewFrames || abs32(g.prev) < silenceEpsilon
}

func (g *slewGain) isUnity() bool {
	return g.cur == 1 && g.slewPos >= g.slewFrames
}

// mix accumulates src*gain into dst, both carrying channels interleaved.
func (g *slewGain) mix(src, dst audio.Samples, frames, channels int) {
	if src.Format != dst.Format || src.Len() < frames*channels || dst.Len() < frames*channels {
		panic(fmt.Sprintf("mixer: send mix of %d frames: src %s/%d dst %s/%d",
			frames, src.Format, src.Len(), dst.Format, dst.Len()))
	}
	switch src.Format {
	case audio.FormatInt16:
		mixScalar(g, src.Int16, dst.Int16, frames, channels, addInt16)
	case audio.FormatInt32:
		mixScalar(g, src.Int32, dst.Int32, frames, channels, addInt32)
	case audio.FormatFloat32:
		mixScalar(g, src.Float32, dst.Float32, frames, channels, addFloat32)
	}
}

// scale multiplies buf by the gain in place.
func (g *slewGain) scale(buf audio.Samples, frames, channels int) {
	switch buf.Format {
	case audio.FormatInt16:
		mixScalar(g, buf.Int16, buf.Int16, frames, channels, setInt16)
	case audio.FormatInt32:
		mixScalar(g, buf.Int32, buf.Int32, frames, channels, setInt32)
	case audio.FormatFloat32:
		mixScalar(g, buf.Float32, buf.Float32, frames, channels, setFloat32)
	}
}

func mixScalar[T sample](g *slewGain, src, dst []T, frames, channels int, add func(T, float64) T) {
	for f := range frames {
		t, slewing := slewFactor(g.slewPos, g.slewFrames)
		gain := float64(g.cur)
		if slewing {
			gain = lerpGain(g.prev, g.cur, t)
		}
		for i := f * channels; i < (f+1)*channels; i++ {
			dst[i] = add(dst[i], float64(src[i])*gain)
		}
		if g.slewPos < g.slewFrames {
			g.slewPos++
		}
	}
}

func slewFactor(pos, frames int) (float64, bool) {
	if pos >= frames {
		return 1, false
	}
	return float64(pos) / float64(frames), true
}

func lerpGain(from, to float32, t float64) float64 {
	return float64(from)*(1-t) + float64(to)*t
}

func addInt16(d int16, v float64) int16       { return utils.SaturateInt16(float64(d) + v) }
func addInt32(d int32, v float64) int32       { return utils.SaturateInt32(float64(d) + v) }
func addFloat32(d float32, v float64) float32 { return d + float32(v) }

func setInt16(_ int16, v float64) int16       { return utils.SaturateInt16(math.Round(v)) }
func setInt32(_ int32, v float64) int32       { return utils.SaturateInt32(math.Round(v)) }
func setFloat32(_ float32, v float64) float32 { return float32(v) }

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
