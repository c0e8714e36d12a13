// SPDX-License-Identifier: EPL-2.0

package utils

import "math"

// SaturateInt16 truncates x toward zero and clamps it to the int16 range.
func SaturateInt16(x float64) int16 {
	switch {
	case x >= math.MaxInt16:
		return math.MaxInt16
	case x <= math.MinInt16:
		return math.MinInt16
	}
	return int16(x)
}

// SaturateInt32 truncates x toward zero and clamps it to the int32 range.
func SaturateInt32(x float64) int32 {
	switch {
	case x >= math.MaxInt32:
		return math.MaxInt32
	case x <= math.MinInt32:
		return math.MinInt32
	}
	return int32(x)
}

// Float32ToInt16 maps a normalized sample in [-1,1] onto int16 PCM, rounding
// to the nearest step.
func Float32ToInt16(x float32) int16 {
	return SaturateInt16(math.Round(float64(x) * math.MaxInt16))
}

// Float32ToInt32 maps a normalized sample in [-1,1] onto int32 PCM, rounding
// to the nearest step.
func Float32ToInt32(x float32) int32 {
	return SaturateInt32(math.Round(float64(x) * math.MaxInt32))
}

// Int16ToFloat32 is the inverse of Float32ToInt16 for in-range values.
func Int16ToFloat32(v int16) float32 {
	return float32(v) / math.MaxInt16
}

// Int32ToFloat32 is the inverse of Float32ToInt32 for in-range values.
func Int32ToFloat32(v int32) float32 {
	return float32(float64(v) / math.MaxInt32)
}
