// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"github.com/ik5/audmix/formats/internal/intpcm"
)

// WriteInt16 writes a complete 16-bit PCM WAV file with interleaved samples.
// When w is not an io.WriteSeeker the file is assembled in memory first,
// since the header sizes are patched after the data is written.
func WriteInt16(w io.Writer, sampleRate, channels int, samples []int16) error {
	if channels < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidChannels, channels)
	}
	if len(samples)%channels != 0 {
		return fmt.Errorf("%w: %d samples, %d channels", ErrPartialFrame, len(samples), channels)
	}

	ws, direct := w.(io.WriteSeeker)
	var mem *intpcm.MemFile
	if !direct {
		mem = &intpcm.MemFile{}
		ws = mem
	}

	enc := gowav.NewEncoder(ws, sampleRate, 16, channels, wavFormatPCM)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("writing samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing header: %w", err)
	}

	if mem != nil {
		if _, err := w.Write(mem.Bytes()); err != nil {
			return fmt.Errorf("%w", err)
		}
	}
	return nil
}
