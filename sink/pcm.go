// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"math"

	"github.com/ik5/audmix/audio"
)

// pcmInt returns sample i of buf as a signed integer of the given width.
// Integer sources are shifted; float sources are scaled, rounded and
// clamped.
func pcmInt(buf audio.Samples, i, bits int) int32 {
	switch buf.Format {
	case audio.FormatInt16:
		return int32(buf.Int16[i]) << (bits - 16)
	case audio.FormatInt32:
		return buf.Int32[i] >> (32 - bits)
	}

	peak := float64(int64(1)<<(bits-1) - 1)
	v := math.Round(float64(buf.Float32[i]) * peak)
	switch {
	case v > peak:
		return int32(peak)
	case v < -peak-1:
		return int32(-peak - 1)
	}
	return int32(v)
}

func checkBits(bits int, allowed ...int) (int, bool) {
	if bits == 0 {
		return 16, true
	}
	for _, b := range allowed {
		if b == bits {
			return bits, true
		}
	}
	return 0, false
}
