// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"bufio"
	"io"
	"os"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ik5/audmix/audio"
)

// maxFLACBlock bounds the frames per FLAC frame.
const maxFLACBlock = 4096

var flacChannels = map[int]frame.Channels{
	1: frame.ChannelsMono,
	2: frame.ChannelsLR,
	4: frame.ChannelsLRLsRs,
	6: frame.ChannelsLRCLfeLsRs,
	8: frame.ChannelsLRCLfeLsRsSlSr,
}

// FLAC writes verbatim (or constant) FLAC frames through the mewkiz encoder.
type FLAC struct {
	enc     *flac.Encoder
	w       *bufio.Writer
	closer  io.Closer
	layout  frame.Channels
	rate    int
	bits    int
	chans   int
	samples uint64
	subs    []*frame.Subframe
	logger  *zap.Logger
	closed  bool
}

// NewFLAC encodes to w. BitsPerSample may be 16 (default) or 24.
func NewFLAC(w io.Writer, settings Settings) (*FLAC, error) {
	if err := settings.validate(); err != nil {
		return nil, err
	}
	bits, ok := checkBits(settings.BitsPerSample, 16, 24)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "flac: %d bits per sample", settings.BitsPerSample)
	}
	layout, ok := flacChannels[settings.Channels]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "flac: %d channels", settings.Channels)
	}

	bw := bufio.NewWriter(w)
	si := &meta.StreamInfo{
		BlockSizeMin:  16,
		BlockSizeMax:  65535,
		SampleRate:    uint32(settings.SampleRate),
		NChannels:     uint8(settings.Channels),
		BitsPerSample: uint8(bits),
	}
	enc, err := flac.NewEncoder(bw, si)
	if err != nil {
		return nil, errors.Wrap(err, "flac: new encoder")
	}

	f := &FLAC{
		enc:    enc,
		w:      bw,
		layout: layout,
		rate:   settings.SampleRate,
		bits:   bits,
		chans:  settings.Channels,
		subs:   make([]*frame.Subframe, settings.Channels),
		logger: settings.logger(),
	}
	for i := range f.subs {
		f.subs[i] = &frame.Subframe{Samples: make([]int32, 0, maxFLACBlock)}
	}
	return f, nil
}

func newFLACFile(f *os.File, settings Settings) (Sink, error) {
	s, err := NewFLAC(f, settings)
	if err != nil {
		return nil, err
	}
	s.closer = f
	return s, nil
}

// Write encodes buf as one or more FLAC frames.
func (f *FLAC) Write(buf audio.Samples) error {
	if f.closed {
		return ErrClosed
	}
	frames := buf.Len() / f.chans
	for start := 0; start < frames; start += maxFLACBlock {
		n := min(frames-start, maxFLACBlock)
		if err := f.writeFrame(buf, start, n); err != nil {
			return err
		}
	}
	return nil
}

func (f *FLAC) writeFrame(buf audio.Samples, start, n int) error {
	for ch, sub := range f.subs {
		sub.Samples = sub.Samples[:n]
		for i := range n {
			sub.Samples[i] = pcmInt(buf, (start+i)*f.chans+ch, f.bits)
		}
		sub.NSamples = n
		sub.SubHeader = frame.SubHeader{Pred: frame.PredVerbatim}
		if isConstant(sub.Samples) {
			sub.SubHeader.Pred = frame.PredConstant
		}
	}

	fr := &frame.Frame{
		Header: frame.Header{
			HasFixedBlockSize: false,
			BlockSize:         uint16(n),
			SampleRate:        uint32(f.rate),
			Channels:          f.layout,
			BitsPerSample:     uint8(f.bits),
			Num:               f.samples,
		},
		Subframes: f.subs,
	}
	if err := f.enc.WriteFrame(fr); err != nil {
		return errors.Wrap(err, "flac: write frame")
	}
	f.samples += uint64(n)
	return nil
}

func isConstant(s []int32) bool {
	for _, v := range s[1:] {
		if v != s[0] {
			return false
		}
	}
	return true
}

// Frames returns the number of frames written so far.
func (f *FLAC) Frames() int64 { return int64(f.samples) }

// Close flushes the encoder and closes the file it was created on.
func (f *FLAC) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	err := errors.Wrap(f.enc.Close(), "flac: close encoder")
	if ferr := f.w.Flush(); err == nil && ferr != nil {
		err = errors.Wrap(ferr, "flac: flush")
	}
	if f.closer != nil {
		if cerr := f.closer.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "flac: close")
		}
	}
	f.logger.Debug("flac sink closed", zap.Uint64("frames", f.samples), zap.Error(err))
	return err
}

func init() {
	register(".flac", newFLACFile)
}
