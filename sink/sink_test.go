// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/mixer"
)

// constEngine returns a stereo engine playing a constant left/right pair.
func constEngine(t *testing.T, format audio.SampleFormat, left, right float64) *mixer.Engine {
	t.Helper()
	eng, err := mixer.NewEngine(mixer.NewMixInfo(48000, format, mixer.Stereo),
		mixer.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	v, err := eng.NewStereoVoice(48000, mixer.SupplyFunc(func(_ *mixer.Voice, frames int, dst audio.Samples) int {
		for f := range frames {
			dst.Set(f*2, left)
			dst.Set(f*2+1, right)
		}
		return frames
	}), false)
	require.NoError(t, err)
	require.NoError(t, v.SetSendLevel(nil, 1, false))
	v.Start()
	return eng
}

func TestExtensions(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{".flac", ".wav"}, Extensions())
}

func TestCreateRejects(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name     string
		settings Settings
		want     error
	}{
		{"unknown extension", Settings{Path: filepath.Join(dir, "a.mp3"), SampleRate: 48000, Channels: 2}, ErrSinkNotSupported},
		{"no rate", Settings{Path: filepath.Join(dir, "b.wav"), Channels: 2}, ErrUnsupportedFormat},
		{"too many channels", Settings{Path: filepath.Join(dir, "c.wav"), SampleRate: 48000, Channels: 9}, ErrUnsupportedFormat},
		{"wav 12 bit", Settings{Path: filepath.Join(dir, "d.wav"), SampleRate: 48000, Channels: 2, BitsPerSample: 12}, ErrUnsupportedFormat},
		{"flac 32 bit", Settings{Path: filepath.Join(dir, "e.flac"), SampleRate: 48000, Channels: 2, BitsPerSample: 32}, ErrUnsupportedFormat},
		{"flac 3 channels", Settings{Path: filepath.Join(dir, "f.flac"), SampleRate: 48000, Channels: 3}, ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Create(tt.settings)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWAVRoundTrip(t *testing.T) {
	t.Parallel()

	eng := constEngine(t, audio.FormatInt16, 1200, -800)
	path := filepath.Join(t.TempDir(), "out.wav")
	s, err := Create(Settings{Path: path, SampleRate: 48000, Channels: 2, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	var seen []uint64
	err = Run(context.Background(), eng, s, RunOptions{
		Quanta:    10,
		OnQuantum: func(n uint64, _ audio.Samples) { seen = append(seen, n) },
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)
	assert.Equal(t, int64(2400), s.(*WAV).Frames())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Write(audio.MakeSamples(audio.FormatInt16, 2)), ErrClosed)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	pcm, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, 48000, pcm.Format.SampleRate)
	assert.Equal(t, 2, pcm.Format.NumChannels)
	require.Len(t, pcm.Data, 4800)
	assert.Equal(t, 1200, pcm.Data[0])
	assert.Equal(t, -800, pcm.Data[1])
	assert.Equal(t, 1200, pcm.Data[4798])
}

func TestWAV24BitFromFloat(t *testing.T) {
	t.Parallel()

	eng := constEngine(t, audio.FormatFloat32, 0.5, -1)
	path := filepath.Join(t.TempDir(), "float.wav")
	s, err := Create(Settings{Path: path, SampleRate: 48000, Channels: 2, BitsPerSample: 24})
	require.NoError(t, err)
	require.NoError(t, Run(context.Background(), eng, s, RunOptions{Quanta: 2}))
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	pcm, err := wav.NewDecoder(f).FullPCMBuffer()
	require.NoError(t, err)
	require.Len(t, pcm.Data, 960)
	assert.Equal(t, 4194304, pcm.Data[0])
	assert.Equal(t, -8388607, pcm.Data[1])
}

func TestFLACRoundTrip(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	s, err := NewFLAC(&out, Settings{SampleRate: 48000, Channels: 2})
	require.NoError(t, err)

	buf := audio.MakeSamples(audio.FormatInt16, 480)
	for f := range 240 {
		buf.Int16[f*2] = int16(f * 10)
		buf.Int16[f*2+1] = 77
	}
	require.NoError(t, s.Write(buf))
	require.NoError(t, s.Write(buf))
	assert.Equal(t, int64(480), s.Frames())
	require.NoError(t, s.Close())

	stream, err := flac.New(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, uint32(48000), stream.Info.SampleRate)
	assert.Equal(t, uint8(2), stream.Info.NChannels)
	assert.Equal(t, uint8(16), stream.Info.BitsPerSample)

	for range 2 {
		fr, err := stream.ParseNext()
		require.NoError(t, err)
		require.Len(t, fr.Subframes, 2)
		assert.Equal(t, 240, fr.Subframes[0].NSamples)
		assert.Equal(t, int32(2390), fr.Subframes[0].Samples[239])
		assert.Equal(t, int32(77), fr.Subframes[1].Samples[100])
	}
}

func TestFLACSplitsLargeWrites(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	s, err := NewFLAC(&out, Settings{SampleRate: 8000, Channels: 1, BitsPerSample: 24})
	require.NoError(t, err)
	require.NoError(t, s.Write(audio.MakeSamples(audio.FormatFloat32, maxFLACBlock*2+10)))
	assert.Equal(t, int64(maxFLACBlock*2+10), s.Frames())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Write(audio.MakeSamples(audio.FormatFloat32, 1)), ErrClosed)
}

func TestMemorySink(t *testing.T) {
	t.Parallel()

	eng := constEngine(t, audio.FormatFloat32, 0.25, 0.5)
	m := NewMemory(2)
	require.NoError(t, Run(context.Background(), eng, m, RunOptions{Quanta: 3}))
	assert.Equal(t, 3, m.Writes())
	assert.Equal(t, 720, m.Frames())
	got := m.Samples()
	assert.Equal(t, float32(0.25), got[0])
	assert.Equal(t, float32(0.5), got[1439])

	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Write(audio.MakeSamples(audio.FormatFloat32, 2)), ErrClosed)
}

type failingSink struct{ after int }

func (f *failingSink) Write(audio.Samples) error {
	if f.after == 0 {
		return errors.New("disk full")
	}
	f.after--
	return nil
}

func (f *failingSink) Close() error { return nil }

func TestRunStops(t *testing.T) {
	t.Parallel()

	t.Run("sink error", func(t *testing.T) {
		t.Parallel()
		eng := constEngine(t, audio.FormatInt16, 1, 1)
		err := Run(context.Background(), eng, &failingSink{after: 2}, RunOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "write quantum 2")
		assert.Contains(t, err.Error(), "disk full")
	})

	t.Run("context", func(t *testing.T) {
		t.Parallel()
		eng := constEngine(t, audio.FormatInt16, 1, 1)
		ctx, cancel := context.WithCancel(context.Background())
		m := NewMemory(2)
		err := Run(ctx, eng, m, RunOptions{
			OnQuantum: func(n uint64, _ audio.Samples) {
				if n == 4 {
					cancel()
				}
			},
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.GreaterOrEqual(t, m.Writes(), 5)
	})

	t.Run("realtime", func(t *testing.T) {
		t.Parallel()
		eng := constEngine(t, audio.FormatInt16, 1, 1)
		m := NewMemory(2)
		require.NoError(t, Run(context.Background(), eng, m, RunOptions{Quanta: 4, Realtime: true}))
		assert.Equal(t, 4, m.Writes())
	})
}

func TestReader(t *testing.T) {
	t.Parallel()

	eng := constEngine(t, audio.FormatInt16, 300, -2)
	r := NewReader(eng)

	// 1000 bytes crosses a quantum boundary (960 bytes per quantum)
	p := make([]byte, 1000)
	n, err := r.Read(p)
	require.NoError(t, err)
	require.Equal(t, 1000, n)
	assert.Equal(t, uint64(2), eng.Pumps())

	for i := 0; i < n; i += 4 {
		assert.Equal(t, int16(300), int16(binary.LittleEndian.Uint16(p[i:])))
		assert.Equal(t, int16(-2), int16(binary.LittleEndian.Uint16(p[i+2:])))
	}
}

func TestPCMInt(t *testing.T) {
	t.Parallel()

	i16 := audio.Samples{Format: audio.FormatInt16, Int16: []int16{-32768, 1}}
	i32 := audio.Samples{Format: audio.FormatInt32, Int32: []int32{1 << 16, -1 << 31}}
	f32 := audio.Samples{Format: audio.FormatFloat32, Float32: []float32{1.5, -2, 0.5}}

	assert.Equal(t, int32(-32768), pcmInt(i16, 0, 16))
	assert.Equal(t, int32(256), pcmInt(i16, 1, 24))
	assert.Equal(t, int32(1), pcmInt(i32, 0, 16))
	assert.Equal(t, int32(-1<<23), pcmInt(i32, 1, 24))
	assert.Equal(t, int32(32767), pcmInt(f32, 0, 16))
	assert.Equal(t, int32(-32768), pcmInt(f32, 1, 16))
	assert.Equal(t, int32(16384), pcmInt(f32, 2, 16))
}
