// SPDX-License-Identifier: EPL-2.0

package config

import (
	"bytes"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/mixer"
)

// MainBus is the bus name that refers to the engine's main submix.
const MainBus = "main"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// EngineConfig describes the master mix format.
type EngineConfig struct {
	SampleRate float64 `yaml:"sample_rate"`
	Format     string  `yaml:"format"`
	Channels   string  `yaml:"channels"`
	LtRt       bool    `yaml:"lt_rt"`
	PhaseShift bool    `yaml:"phase_shift"`
	Buffers    int     `yaml:"buffers"`
}

// OutputConfig describes where rendered audio goes.
type OutputConfig struct {
	Path     string  `yaml:"path"`
	Seconds  float64 `yaml:"seconds"`
	Bits     int     `yaml:"bits"`
	Realtime bool    `yaml:"realtime"`
}

// SendConfig routes a bus into another bus.
type SendConfig struct {
	To    string  `yaml:"to"`
	Level float32 `yaml:"level"`
}

// BusConfig declares a submix.
type BusConfig struct {
	Name  string       `yaml:"name"`
	Sends []SendConfig `yaml:"sends"`
}

// VoiceConfig places one audio file on a bus.
type VoiceConfig struct {
	File  string  `yaml:"file"`
	Bus   string  `yaml:"bus"`
	Gain  float32 `yaml:"gain"`
	Pan   float32 `yaml:"pan"`
	Pitch float64 `yaml:"pitch"`
	Loop  bool    `yaml:"loop"`
	// Stream decodes the file while mixing instead of caching it.
	Stream bool `yaml:"stream"`
}

// Config stores the application configuration.
type Config struct {
	Engine    EngineConfig  `yaml:"engine"`
	Output    OutputConfig  `yaml:"output"`
	LogLevel  string        `yaml:"log_level"`
	ClipCache int           `yaml:"clip_cache"`
	Buses     []BusConfig   `yaml:"buses"`
	Voices    []VoiceConfig `yaml:"voices"`
}

// Default returns a configuration with every optional field filled in.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			SampleRate: 48000,
			Format:     audio.FormatFloat32.String(),
			Channels:   mixer.Stereo.String(),
			Buffers:    3,
		},
		Output: OutputConfig{
			Bits: 16,
		},
		LogLevel:  "info",
		ClipCache: 64,
	}
}

// LoadConfig loads and validates the configuration at filePath.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", filePath)
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result. Unknown keys
// are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "parse yaml")
	}

	for i := range cfg.Voices {
		v := &cfg.Voices[i]
		if v.Bus == "" {
			v.Bus = MainBus
		}
		if v.Pitch == 0 {
			v.Pitch = 1
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MixInfo converts the engine section to the engine's master format.
func (c *Config) MixInfo() (mixer.MixInfo, error) {
	format, err := audio.ParseSampleFormat(c.Engine.Format)
	if err != nil {
		return mixer.MixInfo{}, errors.Wrapf(ErrInvalid, "engine.format %q", c.Engine.Format)
	}
	set, err := mixer.ParseChannelSet(c.Engine.Channels)
	if err != nil {
		return mixer.MixInfo{}, errors.Wrapf(ErrInvalid, "engine.channels %q", c.Engine.Channels)
	}
	info := mixer.NewMixInfo(c.Engine.SampleRate, format, set)
	if err := info.Validate(); err != nil {
		return mixer.MixInfo{}, errors.Wrapf(ErrInvalid, "engine: %v", err)
	}
	return info, nil
}

// EngineOptions returns the mixer options implied by the engine section.
func (c *Config) EngineOptions() []mixer.Option {
	opts := []mixer.Option{mixer.WithOutputBuffers(c.Engine.Buffers)}
	if c.Engine.LtRt {
		opts = append(opts, mixer.WithLtRt(c.Engine.PhaseShift))
	}
	return opts
}

// Quanta is the number of engine quanta covering Output.Seconds.
func (c *Config) Quanta(info mixer.MixInfo) uint64 {
	return uint64(math.Ceil(c.Output.Seconds * info.SampleRate / float64(info.PeriodFrames)))
}

// Validate checks the cross references between buses and voices.
func (c *Config) Validate() error {
	info, err := c.MixInfo()
	if err != nil {
		return err
	}
	if c.Engine.LtRt && len(info.Channels) != 2 {
		return errors.Wrap(ErrInvalid, "engine.lt_rt needs stereo channels")
	}
	if c.Engine.Buffers < 2 || c.Engine.Buffers > 3 {
		return errors.Wrapf(ErrInvalid, "engine.buffers %d not in [2,3]", c.Engine.Buffers)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.Wrapf(ErrInvalid, "log_level %q", c.LogLevel)
	}
	if c.ClipCache < 1 {
		return errors.Wrapf(ErrInvalid, "clip_cache %d", c.ClipCache)
	}

	if c.Output.Path == "" {
		return errors.Wrap(ErrInvalid, "output.path is required")
	}
	if !(c.Output.Seconds > 0) {
		return errors.Wrapf(ErrInvalid, "output.seconds %v", c.Output.Seconds)
	}

	buses := map[string]bool{MainBus: true}
	for i, b := range c.Buses {
		if b.Name == "" {
			return errors.Wrapf(ErrInvalid, "buses[%d] has no name", i)
		}
		if buses[b.Name] {
			return errors.Wrapf(ErrInvalid, "bus %q declared twice", b.Name)
		}
		buses[b.Name] = true
	}
	for _, b := range c.Buses {
		for _, s := range b.Sends {
			if !buses[s.To] {
				return errors.Wrapf(ErrInvalid, "bus %q sends to unknown bus %q", b.Name, s.To)
			}
			if s.To == b.Name {
				return errors.Wrapf(ErrInvalid, "bus %q sends to itself", b.Name)
			}
			if s.Level < 0 {
				return errors.Wrapf(ErrInvalid, "bus %q send level %v", b.Name, s.Level)
			}
		}
	}

	for i, v := range c.Voices {
		switch {
		case v.File == "":
			return errors.Wrapf(ErrInvalid, "voices[%d] has no file", i)
		case !buses[v.Bus]:
			return errors.Wrapf(ErrInvalid, "voice %s targets unknown bus %q", v.File, v.Bus)
		case v.Gain < 0:
			return errors.Wrapf(ErrInvalid, "voice %s gain %v", v.File, v.Gain)
		case v.Pan < -1 || v.Pan > 1:
			return errors.Wrapf(ErrInvalid, "voice %s pan %v not in [-1,1]", v.File, v.Pan)
		case !(v.Pitch > 0):
			return errors.Wrapf(ErrInvalid, "voice %s pitch %v", v.File, v.Pitch)
		case v.Stream && v.Loop:
			return errors.Wrapf(ErrInvalid, "voice %s cannot loop a stream", v.File)
		}
	}
	return nil
}
