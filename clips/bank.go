// SPDX-License-Identifier: EPL-2.0

package clips

import (
	"io"
	"os"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ik5/audmix/audio"
)

// DefaultBankSize is the number of clips a Bank keeps decoded.
const DefaultBankSize = 64

// Clip is a fully decoded mono or stereo sound held in memory.
type Clip struct {
	Name       string
	SampleRate int
	Channels   int
	// Data holds interleaved samples in [-1,1].
	Data []float32
}

// Frames returns the clip length in frames.
func (c *Clip) Frames() int { return len(c.Data) / c.Channels }

// Bank decodes clips through an audio.Registry and keeps the most recently
// used ones in an LRU cache.
type Bank struct {
	reg       *audio.Registry
	cache     *lru.Cache[string, *Clip]
	logger    *zap.Logger
	open      func(string) (io.ReadCloser, error)
	evictions atomic.Int64
}

// Option configures a Bank.
type Option func(*Bank)

// WithLogger sets the bank logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bank) { b.logger = l }
}

// WithOpener replaces os.Open for reading clip files.
func WithOpener(open func(string) (io.ReadCloser, error)) Option {
	return func(b *Bank) { b.open = open }
}

// NewBank returns a bank holding up to size clips.
func NewBank(reg *audio.Registry, size int, opts ...Option) (*Bank, error) {
	b := &Bank{
		reg:    reg,
		logger: zap.NewNop(),
		open: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
	for _, opt := range opts {
		opt(b)
	}

	cache, err := lru.NewWithEvict(size, func(name string, _ *Clip) {
		b.evictions.Add(1)
		b.logger.Debug("clip evicted", zap.String("clip", name))
	})
	if err != nil {
		return nil, errors.Wrap(err, "clip cache")
	}
	b.cache = cache
	return b, nil
}

// Load returns the clip at path, decoding it on a cache miss.
func (b *Bank) Load(path string) (*Clip, error) {
	if c, ok := b.cache.Get(path); ok {
		return c, nil
	}

	dec, ok := b.reg.ForPath(path)
	if !ok || dec == nil {
		return nil, errors.Wrap(ErrNoDecoder, path)
	}
	r, err := b.open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open clip")
	}
	defer r.Close()

	src, err := dec.Decode(r)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	c, err := Decode(path, src)
	if err != nil {
		return nil, err
	}

	if err := b.Put(c); err != nil {
		return nil, errors.Wrap(err, path)
	}
	b.logger.Debug("clip loaded",
		zap.String("clip", path),
		zap.Int("rate", c.SampleRate),
		zap.Int("channels", c.Channels),
		zap.Int("frames", c.Frames()))
	return c, nil
}

// Put adds or replaces a clip under c.Name. A clip without frames is
// rejected with ErrEmptyClip.
func (b *Bank) Put(c *Clip) error {
	if c == nil || c.Channels <= 0 || c.Frames() == 0 {
		return ErrEmptyClip
	}
	b.cache.Add(c.Name, c)
	return nil
}

// Get returns a cached clip without decoding.
func (b *Bank) Get(name string) (*Clip, bool) {
	return b.cache.Get(name)
}

// Len returns the number of cached clips.
func (b *Bank) Len() int { return b.cache.Len() }

// Names lists cached clips from least to most recently used.
func (b *Bank) Names() []string { return b.cache.Keys() }

// Evictions counts clips dropped to make room.
func (b *Bank) Evictions() int64 { return b.evictions.Load() }

// Purge empties the cache.
func (b *Bank) Purge() { b.cache.Purge() }

// Decode reads src to the end into a Clip, folding sources with more than
// two channels to stereo. src is closed.
func Decode(name string, src audio.Source) (*Clip, error) {
	if src.Channels() > 2 {
		dm, err := audio.NewDownmixer(src, 2)
		if err != nil {
			_ = src.Close()
			return nil, errors.Wrapf(err, "downmix %s", name)
		}
		src = dm
	}
	defer src.Close()

	ch := src.Channels()
	if ch < 1 {
		return nil, errors.Wrapf(audio.ErrUnsupportedChannels, "%s: %d channels", name, ch)
	}

	chunk := make([]float32, max(src.BufSize(), 1024)/ch*ch)
	var data []float32
	for {
		n, err := src.ReadSamples(chunk)
		data = append(data, chunk[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", name)
		}
		if n == 0 {
			break
		}
	}

	if len(data) < ch {
		return nil, errors.Wrap(ErrEmptyClip, name)
	}
	return &Clip{
		Name:       name,
		SampleRate: src.SampleRate(),
		Channels:   ch,
		Data:       data[:len(data)/ch*ch],
	}, nil
}
