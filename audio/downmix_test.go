// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"io"
	"math"
	"testing"

	"github.com/ik5/audmix/internal/audiotest"
)

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-6
}

func TestDownmixer_MonoPassthrough(t *testing.T) {
	t.Parallel()

	src := audiotest.NewConstantSource(8000, 1, 100, 0.5)
	mono := NewMonoMixer(src)

	buf := make([]float32, 50)
	n, err := mono.ReadSamples(buf)
	if err != nil {
		t.Fatalf("ReadSamples() error = %v", err)
	}
	if n != 50 {
		t.Errorf("ReadSamples() n = %d, want 50", n)
	}
	for i := range n {
		if buf[i] != 0.5 {
			t.Fatalf("buf[%d] = %v, want 0.5", i, buf[i])
		}
	}
}

func TestDownmixer_StereoToMono(t *testing.T) {
	t.Parallel()

	src := audiotest.NewChannelSource(8000, 2, 10)
	mono := NewMonoMixer(src)

	buf := make([]float32, 10)
	n, err := mono.ReadSamples(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("ReadSamples() error = %v", err)
	}
	if n != 10 {
		t.Fatalf("n = %d, want 10", n)
	}
	for i := range n {
		if !approx(buf[i], 0.15) {
			t.Errorf("buf[%d] = %v, want 0.15", i, buf[i])
		}
	}
}

func TestDownmixer_SixToStereo(t *testing.T) {
	t.Parallel()

	src := audiotest.NewChannelSource(48000, 6, 4)
	st, err := NewDownmixer(src, 2)
	if err != nil {
		t.Fatalf("NewDownmixer() error = %v", err)
	}

	buf := make([]float32, 8)
	n, _ := st.ReadSamples(buf)
	if n != 8 {
		t.Fatalf("n = %d, want 8", n)
	}
	// even channels 0.1, 0.3, 0.5; odd 0.2, 0.4, 0.6
	for f := range 4 {
		if !approx(buf[2*f], 0.3) || !approx(buf[2*f+1], 0.4) {
			t.Errorf("frame %d = (%v, %v), want (0.3, 0.4)", f, buf[2*f], buf[2*f+1])
		}
	}
}

func TestDownmixer_MonoToStereo(t *testing.T) {
	t.Parallel()

	src := audiotest.NewConstantSource(48000, 1, 4, 0.25)
	st, _ := NewDownmixer(src, 2)

	buf := make([]float32, 8)
	n, _ := st.ReadSamples(buf)
	if n != 8 {
		t.Fatalf("n = %d, want 8", n)
	}
	for i, v := range buf {
		if v != 0.25 {
			t.Errorf("buf[%d] = %v, want 0.25", i, v)
		}
	}
}

func TestDownmixer_Invalid(t *testing.T) {
	t.Parallel()

	src := audiotest.NewSilentSource(8000, 2, 10)
	if _, err := NewDownmixer(src, 3); !errors.Is(err, ErrUnsupportedChannels) {
		t.Errorf("NewDownmixer(3) error = %v", err)
	}

	st, _ := NewDownmixer(src, 2)
	if _, err := st.ReadSamples(make([]float32, 3)); err != ErrInvalidDstSize {
		t.Errorf("odd dst error = %v, want ErrInvalidDstSize", err)
	}
}

func TestDownmixer_EOFAndClose(t *testing.T) {
	t.Parallel()

	src := audiotest.NewSilentSource(8000, 2, 4)
	mono := NewMonoMixer(src)

	buf := make([]float32, 16)
	n, err := mono.ReadSamples(buf)
	if n != 4 || err != io.EOF {
		t.Errorf("ReadSamples() = %d, %v; want 4, EOF", n, err)
	}
	n, err = mono.ReadSamples(buf)
	if n != 0 || err != io.EOF {
		t.Errorf("second ReadSamples() = %d, %v; want 0, EOF", n, err)
	}

	if err := mono.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !src.Closed {
		t.Error("Close() did not close the source")
	}
	if mono.SampleRate() != 8000 || mono.Channels() != 1 {
		t.Errorf("metadata = %d Hz %d ch", mono.SampleRate(), mono.Channels())
	}
}
