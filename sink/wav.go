// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ik5/audmix/audio"
)

const wavFormatPCM = 1

// WAV writes integer PCM through the go-audio WAV encoder.
type WAV struct {
	enc    *wav.Encoder
	closer io.Closer
	buf    *goaudio.IntBuffer
	bits   int
	chans  int
	frames int64
	logger *zap.Logger
	closed bool
}

// NewWAV encodes to ws. BitsPerSample may be 16 (default), 24 or 32.
// ws is not closed by Close.
func NewWAV(ws io.WriteSeeker, settings Settings) (*WAV, error) {
	if err := settings.validate(); err != nil {
		return nil, err
	}
	bits, ok := checkBits(settings.BitsPerSample, 16, 24, 32)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "wav: %d bits per sample", settings.BitsPerSample)
	}

	return &WAV{
		enc: wav.NewEncoder(ws, settings.SampleRate, bits, settings.Channels, wavFormatPCM),
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: settings.Channels,
				SampleRate:  settings.SampleRate,
			},
			SourceBitDepth: bits,
		},
		bits:   bits,
		chans:  settings.Channels,
		logger: settings.logger(),
	}, nil
}

func newWAVFile(f *os.File, settings Settings) (Sink, error) {
	w, err := NewWAV(f, settings)
	if err != nil {
		return nil, err
	}
	w.closer = f
	return w, nil
}

// Write appends buf, converted to the sink's bit depth.
func (w *WAV) Write(buf audio.Samples) error {
	if w.closed {
		return ErrClosed
	}
	n := buf.Len() - buf.Len()%w.chans
	if cap(w.buf.Data) < n {
		w.buf.Data = make([]int, n)
	}
	w.buf.Data = w.buf.Data[:n]
	for i := range n {
		w.buf.Data[i] = int(pcmInt(buf, i, w.bits))
	}

	if err := w.enc.Write(w.buf); err != nil {
		return errors.Wrap(err, "wav: write")
	}
	w.frames += int64(n / w.chans)
	return nil
}

// Frames returns the number of frames written so far.
func (w *WAV) Frames() int64 { return w.frames }

// Close finalizes the RIFF header and closes the file it was created on.
func (w *WAV) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := errors.Wrap(w.enc.Close(), "wav: finalize")
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "wav: close")
		}
	}
	w.logger.Debug("wav sink closed", zap.Int64("frames", w.frames), zap.Error(err))
	return err
}

func init() {
	register(".wav", newWAVFile)
}
