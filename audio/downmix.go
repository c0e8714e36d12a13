// SPDX-License-Identifier: EPL-2.0

package audio

import "fmt"

// Downmixer folds a multi-channel Source down to mono or stereo so it can
// feed a voice. Stereo output averages the even-indexed channels into left
// and the odd-indexed ones into right.
type Downmixer struct {
	src      Source
	channels int
	tmp      []float32
}

// NewDownmixer wraps src. channels must be 1 or 2.
func NewDownmixer(src Source, channels int) (*Downmixer, error) {
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChannels, channels)
	}
	return &Downmixer{
		src:      src,
		channels: channels,
		tmp:      make([]float32, 4096),
	}, nil
}

// NewMonoMixer averages every channel of src into one.
func NewMonoMixer(src Source) *Downmixer {
	d, _ := NewDownmixer(src, 1)
	return d
}

func (d *Downmixer) SampleRate() int { return d.src.SampleRate() }
func (d *Downmixer) Channels() int   { return d.channels }
func (d *Downmixer) BufSize() int    { return d.src.BufSize() }
func (d *Downmixer) Close() error {
	if err := d.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

func (d *Downmixer) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if len(dst)%d.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	in := d.src.Channels()
	if in == d.channels {
		return d.src.ReadSamples(dst)
	}

	frames := len(dst) / d.channels
	need := frames * in
	if cap(d.tmp) < need {
		d.tmp = make([]float32, max(need, 8192))
	}
	d.tmp = d.tmp[:need]

	n, err := d.src.ReadSamples(d.tmp)
	if n == 0 {
		return 0, err
	}
	frames = n / in

	switch {
	case d.channels == 1 && in == 2:
		for f := range frames {
			idx := f << 1
			dst[f] = (d.tmp[idx] + d.tmp[idx+1]) * 0.5
		}
	case d.channels == 1:
		inv := 1 / float32(in)
		for f := range frames {
			sum := float32(0)
			base := f * in
			for c := range in {
				sum += d.tmp[base+c]
			}
			dst[f] = sum * inv
		}
	case in == 1:
		// mono source spread to both sides
		for f := range frames {
			dst[2*f] = d.tmp[f]
			dst[2*f+1] = d.tmp[f]
		}
	default:
		left, right := (in+1)/2, in/2
		invL, invR := 1/float32(left), 1/float32(right)
		for f := range frames {
			var l, r float32
			base := f * in
			for c := 0; c < in; c += 2 {
				l += d.tmp[base+c]
			}
			for c := 1; c < in; c += 2 {
				r += d.tmp[base+c]
			}
			dst[2*f] = l * invL
			dst[2*f+1] = r * invR
		}
	}

	return frames * d.channels, err
}
