// SPDX-License-Identifier: EPL-2.0

// Package intpcm adapts the go-audio integer PCM decoders to audio.Source.
package intpcm

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
)

// ErrUnsupportedBitDepth is returned for bit depths other than 16, 24 or 32.
var ErrUnsupportedBitDepth = errors.New("unsupported PCM bit depth")

// Reader is the part of the go-audio wav and aiff decoders a Source needs.
type Reader interface {
	Format() *goaudio.Format
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

// Source normalizes signed integer PCM to float32 in [-1,1].
type Source struct {
	dec        Reader
	sampleRate int
	channels   int
	scale      float32
	buf        *goaudio.IntBuffer
}

// New wraps dec, whose samples are bitDepth-bit signed integers.
func New(dec Reader, bitDepth int) (*Source, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}
	format := dec.Format()
	if format == nil || format.NumChannels < 1 || format.SampleRate < 1 {
		return nil, fmt.Errorf("%w: missing format", ErrUnsupportedBitDepth)
	}

	return &Source{
		dec:        dec,
		sampleRate: format.SampleRate,
		channels:   format.NumChannels,
		scale:      1 / float32(int64(1)<<(bitDepth-1)),
		buf: &goaudio.IntBuffer{
			Format:         format,
			Data:           make([]int, 0, 4096),
			SourceBitDepth: bitDepth,
		},
	}, nil
}

func (s *Source) SampleRate() int { return s.sampleRate }
func (s *Source) Channels() int   { return s.channels }
func (s *Source) BufSize() int    { return cap(s.buf.Data) }
func (s *Source) Close() error    { return nil }

// ReadSamples reads whole frames only. A short read comes with io.EOF.
func (s *Source) ReadSamples(dst []float32) (int, error) {
	want := len(dst) - len(dst)%s.channels
	if want == 0 {
		return 0, nil
	}
	if cap(s.buf.Data) < want {
		s.buf.Data = make([]int, want)
	}
	s.buf.Data = s.buf.Data[:want]

	n, err := s.dec.PCMBuffer(s.buf)
	if n == 0 {
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("reading PCM: %w", err)
		}
		return 0, io.EOF
	}

	for i, v := range s.buf.Data[:n] {
		dst[i] = float32(v) * s.scale
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("reading PCM: %w", err)
	}
	if n < want || err != nil {
		return n, io.EOF
	}
	return n, nil
}

// Seekable returns r itself when it can seek, otherwise an in-memory copy.
// The go-audio decoders need to seek between chunks.
func Seekable(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("buffering input: %w", err)
	}
	return bytes.NewReader(data), nil
}

// MemFile is an in-memory io.WriteSeeker for encoders that patch headers.
type MemFile struct {
	data []byte
	off  int
}

func (m *MemFile) Write(p []byte) (int, error) {
	if end := m.off + len(p); end > len(m.data) {
		m.data = append(m.data, make([]byte, end-len(m.data))...)
	}
	n := copy(m.data[m.off:], p)
	m.off += n
	return n, nil
}

func (m *MemFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(m.off)
	case io.SeekEnd:
		base = int64(len(m.data))
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}
	pos := base + offset
	if pos < 0 {
		return 0, errors.New("negative position")
	}
	m.off = int(pos)
	return pos, nil
}

// Bytes returns the written content.
func (m *MemFile) Bytes() []byte { return m.data }
