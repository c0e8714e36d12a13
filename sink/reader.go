// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"encoding/binary"
	"math"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/mixer"
)

// Reader exposes an engine as an endless little-endian PCM byte stream in
// the engine's output format. Each quantum is rendered on demand.
type Reader struct {
	eng     *mixer.Engine
	buf     []byte
	pending []byte
}

// NewReader wraps eng. The reader pumps eng itself, so nothing else may
// pump the same engine concurrently.
func NewReader(eng *mixer.Engine) *Reader {
	return &Reader{eng: eng}
}

// Read fills p completely; it never returns io.EOF.
func (r *Reader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(r.pending) == 0 {
			r.fill()
		}
		c := copy(p[n:], r.pending)
		r.pending = r.pending[c:]
		n += c
	}
	return n, nil
}

func (r *Reader) fill() {
	out := r.eng.PumpAndMixVoices()
	r.buf = appendPCM(r.buf[:0], out)
	r.pending = r.buf
}

// appendPCM encodes s as little-endian bytes of its own format.
func appendPCM(dst []byte, s audio.Samples) []byte {
	switch s.Format {
	case audio.FormatInt16:
		for _, v := range s.Int16 {
			dst = binary.LittleEndian.AppendUint16(dst, uint16(v))
		}
	case audio.FormatInt32:
		for _, v := range s.Int32 {
			dst = binary.LittleEndian.AppendUint32(dst, uint32(v))
		}
	case audio.FormatFloat32:
		for _, v := range s.Float32 {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
		}
	}
	return dst
}
