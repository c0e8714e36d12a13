// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ik5/audmix/formats/internal/intpcm"
)

// riff builds a WAV file by hand with an extra fact chunk before data.
func riff(format, channels, bits, rate int, data []byte) []byte {
	var body bytes.Buffer
	body.WriteString("WAVE")

	body.WriteString("fmt ")
	binary.Write(&body, binary.LittleEndian, uint32(16))
	binary.Write(&body, binary.LittleEndian, uint16(format))
	binary.Write(&body, binary.LittleEndian, uint16(channels))
	binary.Write(&body, binary.LittleEndian, uint32(rate))
	binary.Write(&body, binary.LittleEndian, uint32(rate*channels*bits/8))
	binary.Write(&body, binary.LittleEndian, uint16(channels*bits/8))
	binary.Write(&body, binary.LittleEndian, uint16(bits))

	body.WriteString("fact")
	binary.Write(&body, binary.LittleEndian, uint32(4))
	binary.Write(&body, binary.LittleEndian, uint32(len(data)*8/bits/channels))

	body.WriteString("data")
	binary.Write(&body, binary.LittleEndian, uint32(len(data)))
	body.Write(data)

	var out bytes.Buffer
	out.WriteString("RIFF")
	binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func readAll(t *testing.T, r io.Reader) ([]float32, int, int) {
	t.Helper()

	src, err := Decoder{}.Decode(r)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	defer src.Close()

	var out []float32
	buf := make([]float32, 3)
	for {
		n, err := src.ReadSamples(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadSamples() error = %v", err)
		}
	}
	return out, src.SampleRate(), src.Channels()
}

func TestDecoderRoundTrip(t *testing.T) {
	t.Parallel()

	in := []int16{0, 8192, -8192, 16384, -32768, 32767}
	var file bytes.Buffer
	if err := WriteInt16(&file, 22050, 2, in); err != nil {
		t.Fatalf("WriteInt16() error = %v", err)
	}

	got, rate, ch := readAll(t, &file)
	if rate != 22050 || ch != 2 {
		t.Fatalf("format = %d Hz x%d, want 22050 Hz x2", rate, ch)
	}
	if len(got) != len(in) {
		t.Fatalf("read %d samples, want %d", len(got), len(in))
	}
	for i, v := range in {
		if want := float32(v) / 32768; got[i] != want {
			t.Errorf("sample %d = %v, want %v", i, got[i], want)
		}
	}
}

func TestDecoderSkipsUnknownChunks(t *testing.T) {
	t.Parallel()

	data := []byte{0x00, 0x40, 0x00, 0xC0}
	got, _, ch := readAll(t, bytes.NewReader(riff(1, 1, 16, 8000, data)))
	if ch != 1 || len(got) != 2 || got[0] != 0.5 || got[1] != -0.5 {
		t.Errorf("got %v (ch=%d), want [0.5 -0.5]", got, ch)
	}
}

func TestDecoder24Bit(t *testing.T) {
	t.Parallel()

	// 0x400000 = half scale, little endian
	data := []byte{0x00, 0x00, 0x40, 0x00, 0x00, 0xC0}
	got, _, _ := readAll(t, io.MultiReader(bytes.NewReader(riff(1, 1, 24, 8000, data))))
	if len(got) != 2 || got[0] != 0.5 || got[1] != -0.5 {
		t.Errorf("got %v, want [0.5 -0.5]", got)
	}
}

func TestDecoderRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"garbage", []byte("This is not a WAV file at all, just text."), ErrNotWavFile},
		{"empty", nil, ErrNotWavFile},
		{"float", riff(3, 1, 32, 8000, make([]byte, 8)), ErrUnsupportedEncoding},
		{"8 bit", riff(1, 1, 8, 8000, make([]byte, 4)), intpcm.ErrUnsupportedBitDepth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decoder{}.Decode(bytes.NewReader(tt.in))
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestWriteInt16(t *testing.T) {
	t.Parallel()

	if err := WriteInt16(io.Discard, 8000, 0, nil); !errors.Is(err, ErrInvalidChannels) {
		t.Errorf("channels 0: err = %v", err)
	}
	if err := WriteInt16(io.Discard, 8000, 2, []int16{1}); !errors.Is(err, ErrPartialFrame) {
		t.Errorf("odd samples: err = %v", err)
	}

	var empty bytes.Buffer
	if err := WriteInt16(&empty, 8000, 1, nil); err != nil {
		t.Fatal(err)
	}
	if empty.Len() != 44 {
		t.Errorf("empty file is %d bytes, want 44", empty.Len())
	}

	// seekable destination is written in place
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteInt16(f, 8000, 1, []int16{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	f.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 50 {
		t.Errorf("file is %d bytes, want 50", len(raw))
	}
	if size := binary.LittleEndian.Uint32(raw[40:44]); size != 6 {
		t.Errorf("data chunk size = %d, want 6", size)
	}
}

func BenchmarkDecode(b *testing.B) {
	var file bytes.Buffer
	WriteInt16(&file, 48000, 2, make([]int16, 48000*2))
	raw := file.Bytes()
	buf := make([]float32, 4096)

	for b.Loop() {
		src, _ := Decoder{}.Decode(bytes.NewReader(raw))
		for {
			if _, err := src.ReadSamples(buf); err != nil {
				break
			}
		}
	}
}
