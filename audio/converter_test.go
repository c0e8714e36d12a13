// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"math"
	"testing"
)

// rampPull returns a PullFunc emitting 1, 2, 3, ... per frame on every channel
// and a counter of frames handed out.
func rampPull(channels int) (PullFunc, *int) {
	next := 0
	return func(dst Samples, frames int) int {
		for f := range frames {
			next++
			for c := range channels {
				dst.Set(f*channels+c, float64(next*(c+1)))
			}
		}
		return frames
	}, &next
}

func constPull(v float32) PullFunc {
	return func(dst Samples, frames int) int {
		for i := range dst.Len() {
			dst.SetNormalized(i, v)
		}
		return frames
	}
}

func TestConverter_PassthroughIsExact(t *testing.T) {
	t.Parallel()

	for _, format := range []SampleFormat{FormatInt16, FormatInt32, FormatFloat32} {
		t.Run(format.String(), func(t *testing.T) {
			t.Parallel()

			conv, err := NewConverter(format, 2, 48000, 48000, 240)
			if err != nil {
				t.Fatalf("NewConverter() error = %v", err)
			}
			pull, _ := rampPull(2)
			out := MakeSamples(format, 240*2)

			frame := 0
			for range 4 {
				conv.Convert(out, 240, pull)
				for f := range 240 {
					frame++
					if got := out.At(2 * f); got != float64(frame) {
						t.Fatalf("frame %d left = %v, want %d", frame, got, frame)
					}
					if got := out.At(2*f + 1); got != float64(2*frame) {
						t.Fatalf("frame %d right = %v, want %d", frame, got, 2*frame)
					}
				}
			}
		})
	}
}

func TestConverter_LargeInt32Exact(t *testing.T) {
	t.Parallel()

	conv, err := NewConverter(FormatInt32, 1, 44100, 44100, 64)
	if err != nil {
		t.Fatalf("NewConverter() error = %v", err)
	}
	pull := func(dst Samples, frames int) int {
		for i := range frames {
			dst.Int32[i] = math.MaxInt32 - int32(i)
		}
		return frames
	}
	out := MakeSamples(FormatInt32, 64)
	conv.Convert(out, 64, pull)
	if out.Int32[0] != math.MaxInt32 || out.Int32[1] != math.MaxInt32-1 {
		t.Errorf("int32 passthrough lost precision: %d %d", out.Int32[0], out.Int32[1])
	}
}

func TestConverter_UpsampleConstant(t *testing.T) {
	t.Parallel()

	conv, err := NewConverter(FormatFloat32, 1, 24000, 48000, 240)
	if err != nil {
		t.Fatalf("NewConverter() error = %v", err)
	}
	out := MakeSamples(FormatFloat32, 240)
	for range 3 {
		conv.Convert(out, 240, constPull(0.5))
		for i, v := range out.Float32 {
			if math.Abs(float64(v-0.5)) > 1e-6 {
				t.Fatalf("out[%d] = %v, want 0.5", i, v)
			}
		}
	}
}

func TestConverter_ConsumptionTracksRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in, out float64
	}{
		{"downsample 48k to 44.1k", 48000, 44100},
		{"upsample 22.05k to 48k", 22050, 48000},
		{"upsample 8k to 48k", 8000, 48000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			conv, err := NewConverter(FormatFloat32, 1, tt.in, tt.out, 256)
			if err != nil {
				t.Fatalf("NewConverter() error = %v", err)
			}
			pull, pulled := rampPull(1)
			out := MakeSamples(FormatFloat32, 256)

			blocks := 100
			for range blocks {
				conv.Convert(out, 256, pull)
			}

			consumed := float64(blocks*256) * tt.in / tt.out
			slack := float64(256)*tt.in/tt.out + 16
			if got := float64(*pulled); got < consumed || got > consumed+slack {
				t.Errorf("pulled %v frames, want within [%v, %v]", got, consumed, consumed+slack)
			}
		})
	}
}

func TestConverter_ShortPullIsSilence(t *testing.T) {
	t.Parallel()

	conv, err := NewConverter(FormatInt16, 1, 48000, 48000, 32)
	if err != nil {
		t.Fatalf("NewConverter() error = %v", err)
	}
	out := MakeSamples(FormatInt16, 32)
	conv.Convert(out, 32, func(dst Samples, frames int) int { return 0 })
	for i, v := range out.Int16 {
		if v != 0 {
			t.Fatalf("out[%d] = %d, want silence", i, v)
		}
	}

	// a nil pull behaves the same
	conv.Convert(out, 32, nil)
	for i, v := range out.Int16 {
		if v != 0 {
			t.Fatalf("nil pull out[%d] = %d, want silence", i, v)
		}
	}
}

func TestNewConverter_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		format   SampleFormat
		channels int
		in, out  float64
		want     error
	}{
		{"three channels", FormatInt16, 3, 48000, 48000, ErrUnsupportedChannels},
		{"zero channels", FormatInt16, 0, 48000, 48000, ErrUnsupportedChannels},
		{"zero input rate", FormatInt16, 1, 0, 48000, ErrUnsupportedConversion},
		{"negative master rate", FormatInt16, 1, 48000, -1, ErrUnsupportedConversion},
		{"ratio too high", FormatInt16, 1, 48000 * 300, 48000, ErrUnsupportedConversion},
		{"ratio too low", FormatInt16, 1, 100, 48000, ErrUnsupportedConversion},
		{"unknown format", SampleFormat(9), 1, 48000, 48000, ErrUnknownFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewConverter(tt.format, tt.channels, tt.in, tt.out, 240)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewConverter() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConverter_SetPitchRamp(t *testing.T) {
	t.Parallel()

	conv, err := NewConverter(FormatFloat32, 1, 48000, 48000, 100)
	if err != nil {
		t.Fatalf("NewConverter() error = %v", err)
	}
	if err := conv.SetPitch(2, 100); err != nil {
		t.Fatalf("SetPitch() error = %v", err)
	}
	if conv.Step() != 1 {
		t.Errorf("ramped pitch applied immediately: step %v", conv.Step())
	}

	out := MakeSamples(FormatFloat32, 100)
	conv.Convert(out, 50, constPull(0))
	if s := conv.Step(); s <= 1 || s >= 2 {
		t.Errorf("step mid-ramp = %v, want in (1,2)", s)
	}
	conv.Convert(out, 50, constPull(0))
	if s := conv.Step(); math.Abs(s-2) > 1e-9 {
		t.Errorf("step after ramp = %v, want 2", s)
	}

	if err := conv.SetPitch(0, 0); !errors.Is(err, ErrUnsupportedConversion) {
		t.Errorf("SetPitch(0) error = %v", err)
	}
}

func TestConverter_ResetInputRate(t *testing.T) {
	t.Parallel()

	conv, err := NewConverter(FormatInt16, 1, 48000, 48000, 240)
	if err != nil {
		t.Fatalf("NewConverter() error = %v", err)
	}
	if err := conv.ResetInputRate(96000); err != nil {
		t.Fatalf("ResetInputRate() error = %v", err)
	}
	if conv.Step() != 2 || conv.InputRate() != 96000 {
		t.Errorf("step = %v rate = %v after reset", conv.Step(), conv.InputRate())
	}

	pull, pulled := rampPull(1)
	out := MakeSamples(FormatInt16, 240)
	conv.Convert(out, 240, pull)
	if *pulled < 480 {
		t.Errorf("pulled %d frames at ratio 2, want >= 480", *pulled)
	}

	if err := conv.ResetInputRate(-5); !errors.Is(err, ErrUnsupportedConversion) {
		t.Errorf("ResetInputRate(-5) error = %v", err)
	}
}

func TestConverter_ResetInputRateKeepsRamp(t *testing.T) {
	t.Parallel()

	conv, err := NewConverter(FormatFloat32, 1, 48000, 48000, 100)
	if err != nil {
		t.Fatalf("NewConverter() error = %v", err)
	}
	if err := conv.SetPitch(2, 100); err != nil {
		t.Fatalf("SetPitch() error = %v", err)
	}
	out := MakeSamples(FormatFloat32, 100)
	conv.Convert(out, 10, constPull(0))

	// target becomes 24000/48000*2 = 1 with 90 ramp frames left
	if err := conv.ResetInputRate(24000); err != nil {
		t.Fatalf("ResetInputRate() error = %v", err)
	}
	if s := conv.Step(); math.Abs(s-1.1) > 1e-9 {
		t.Errorf("step right after reset = %v, want 1.1 (ramp kept)", s)
	}
	conv.Convert(out, 45, constPull(0))
	if s := conv.Step(); math.Abs(s-1.05) > 1e-9 {
		t.Errorf("step mid-ramp = %v, want 1.05", s)
	}
	conv.Convert(out, 45, constPull(0))
	if s := conv.Step(); math.Abs(s-1) > 1e-9 {
		t.Errorf("step after ramp = %v, want 1", s)
	}
}

func TestConverter_PullBufferFollowsStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		apply func(*Converter) error
	}{
		{"pitch", func(c *Converter) error { return c.SetPitch(16, 0) }},
		{"input rate", func(c *Converter) error { return c.ResetInputRate(16 * 48000) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			conv, err := NewConverter(FormatInt16, 1, 48000, 48000, 8)
			if err != nil {
				t.Fatalf("NewConverter() error = %v", err)
			}
			if err := tt.apply(conv); err != nil {
				t.Fatalf("step change error = %v", err)
			}

			calls := 0
			pull := func(dst Samples, frames int) int {
				calls++
				return frames
			}
			out := MakeSamples(FormatInt16, 8)
			conv.Convert(out, 8, pull)
			if calls != 1 {
				t.Errorf("one 8 frame block at step 16 took %d pulls, want 1", calls)
			}
		})
	}
}

func TestConverter_WrongBlockPanics(t *testing.T) {
	t.Parallel()

	conv, _ := NewConverter(FormatInt16, 2, 48000, 48000, 16)
	defer func() {
		if recover() == nil {
			t.Error("Convert with a float block did not panic")
		}
	}()
	conv.Convert(MakeSamples(FormatFloat32, 32), 16, nil)
}

func BenchmarkConverter_Resample(b *testing.B) {
	conv, _ := NewConverter(FormatFloat32, 2, 44100, 48000, 240)
	out := MakeSamples(FormatFloat32, 480)
	pull := constPull(0.25)

	b.ReportAllocs()

	for b.Loop() {
		conv.Convert(out, 240, pull)
	}
}
