// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"fmt"
	"math"

	"github.com/ik5/audmix/audio"
)

// Channel is the semantic identity of one output channel.
type Channel int

const (
	FrontLeft Channel = iota
	FrontRight
	RearLeft
	RearRight
	FrontCenter
	LFE
	SideLeft
	SideRight
)

// MaxChannels is the widest channel map the engine mixes.
const MaxChannels = 8

func (c Channel) String() string {
	switch c {
	case FrontLeft:
		return "FL"
	case FrontRight:
		return "FR"
	case RearLeft:
		return "RL"
	case RearRight:
		return "RR"
	case FrontCenter:
		return "FC"
	case LFE:
		return "LFE"
	case SideLeft:
		return "SL"
	case SideRight:
		return "SR"
	}
	return fmt.Sprintf("Channel(%d)", int(c))
}

// ChannelMap lists the semantic channel carried by each interleaved slot.
type ChannelMap []Channel

// Slot returns the interleaved position of c, or -1 when c is not mapped.
func (m ChannelMap) Slot(c Channel) int {
	for i, ch := range m {
		if ch == c {
			return i
		}
	}
	return -1
}

func (m ChannelMap) validate() error {
	if len(m) == 0 || len(m) > MaxChannels {
		return fmt.Errorf("%w: %d channels", ErrInvalidMixInfo, len(m))
	}
	var seen [MaxChannels]bool
	for _, c := range m {
		if c < 0 || c >= MaxChannels || seen[c] {
			return fmt.Errorf("%w: bad channel map %v", ErrInvalidMixInfo, m)
		}
		seen[c] = true
	}
	return nil
}

// ChannelSet names a standard speaker layout.
type ChannelSet int

const (
	ChannelSetUnknown ChannelSet = iota
	Stereo
	Quad
	Surround51
	Surround71
)

var channelSetMaps = map[ChannelSet]ChannelMap{
	Stereo:     {FrontLeft, FrontRight},
	Quad:       {FrontLeft, FrontRight, RearLeft, RearRight},
	Surround51: {FrontLeft, FrontRight, FrontCenter, LFE, RearLeft, RearRight},
	Surround71: {FrontLeft, FrontRight, FrontCenter, LFE, RearLeft, RearRight, SideLeft, SideRight},
}

// Map returns a fresh copy of the layout's channel map.
func (s ChannelSet) Map() ChannelMap {
	m := channelSetMaps[s]
	return append(ChannelMap(nil), m...)
}

func (s ChannelSet) String() string {
	switch s {
	case Stereo:
		return "stereo"
	case Quad:
		return "quad"
	case Surround51:
		return "5.1"
	case Surround71:
		return "7.1"
	}
	return "unknown"
}

// ParseChannelSet accepts the names returned by ChannelSet.String.
func ParseChannelSet(s string) (ChannelSet, error) {
	switch s {
	case "stereo", "2.0":
		return Stereo, nil
	case "quad", "4.0":
		return Quad, nil
	case "5.1", "surround51":
		return Surround51, nil
	case "7.1", "surround71":
		return Surround71, nil
	}
	return ChannelSetUnknown, fmt.Errorf("%w: channel set %q", ErrInvalidMixInfo, s)
}

// ChannelSetOf recognizes the standard layout of m by channel count.
func ChannelSetOf(m ChannelMap) ChannelSet {
	switch len(m) {
	case 2:
		return Stereo
	case 4:
		return Quad
	case 6:
		return Surround51
	case 8:
		return Surround71
	}
	return ChannelSetUnknown
}

// FiveMsFrames is the frame count of a 5 ms quantum at rate.
func FiveMsFrames(rate float64) int {
	return int(math.Round(rate * 5 / 1000))
}

// MixInfo describes the engine's master format.
type MixInfo struct {
	SampleRate   float64
	Format       audio.SampleFormat
	Channels     ChannelMap
	PeriodFrames int
}

// NewMixInfo builds a MixInfo with a 5 ms quantum.
func NewMixInfo(rate float64, format audio.SampleFormat, set ChannelSet) MixInfo {
	return MixInfo{
		SampleRate:   rate,
		Format:       format,
		Channels:     set.Map(),
		PeriodFrames: FiveMsFrames(rate),
	}
}

// Validate checks that the engine can mix in this format.
func (m MixInfo) Validate() error {
	if !(m.SampleRate > 0) || math.IsInf(m.SampleRate, 0) {
		return fmt.Errorf("%w: sample rate %v", ErrInvalidMixInfo, m.SampleRate)
	}
	if !m.Format.Valid() {
		return fmt.Errorf("%w: sample format %d", ErrInvalidMixInfo, int(m.Format))
	}
	if m.PeriodFrames <= 0 {
		return fmt.Errorf("%w: period of %d frames", ErrInvalidMixInfo, m.PeriodFrames)
	}
	return m.Channels.validate()
}

// PeriodSamples is the interleaved sample count of one quantum.
func (m MixInfo) PeriodSamples() int {
	return m.PeriodFrames * len(m.Channels)
}

func (m MixInfo) clone() MixInfo {
	m.Channels = append(ChannelMap(nil), m.Channels...)
	return m
}
