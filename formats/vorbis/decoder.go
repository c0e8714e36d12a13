// SPDX-License-Identifier: EPL-2.0

package vorbis

import (
	"errors"
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"github.com/ik5/audmix/audio"
)

// oggReader is the part of oggvorbis.Reader a source needs.
type oggReader interface {
	SampleRate() int
	Channels() int
	Read([]float32) (int, error)
}

type source struct {
	dec oggReader
}

func (s *source) SampleRate() int { return s.dec.SampleRate() }
func (s *source) Channels() int   { return s.dec.Channels() }
func (s *source) Close() error    { return nil }
func (s *source) BufSize() int    { return 4096 }

// ReadSamples fills dst with whole frames. The decoder returns interleaved
// sample counts, and may return fewer than asked at packet boundaries, so
// reads are repeated until dst is full or the stream ends.
func (s *source) ReadSamples(dst []float32) (int, error) {
	ch := s.dec.Channels()
	want := len(dst) - len(dst)%ch
	if want == 0 {
		return 0, nil
	}

	total := 0
	for total < want {
		n, err := s.dec.Read(dst[total:want])
		total += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, io.EOF
			}
			return total, fmt.Errorf("decoding vorbis: %w", err)
		}
		if n == 0 {
			break
		}
	}
	if total == 0 {
		return 0, io.EOF
	}
	return total, nil
}

type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}
	if dec.Channels() < 1 {
		return nil, fmt.Errorf("%w: %d", audio.ErrUnsupportedChannels, dec.Channels())
	}

	return &source{dec: dec}, nil
}
