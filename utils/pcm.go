// SPDX-License-Identifier: EPL-2.0

package utils

import (
	"encoding/binary"
	"math"
)

// Float32ToInt16 converts a sample in [-1, 1] to 16-bit PCM, clamping values
// outside of the range.
func Float32ToInt16(x float32) int16 {
	switch {
	case x >= 1:
		return math.MaxInt16
	case x <= -1:
		return math.MinInt16
	case x < 0:
		return int16(x * 32768.0)
	default:
		return int16(x * 32767.0)
	}
}

// Int16ToFloat32 converts a 16-bit PCM sample to [-1, 1).
func Int16ToFloat32(v int16) float32 {
	return float32(v) / 32768.0
}

// DecodePCM16 reads interleaved 16-bit samples from src into dst and returns
// the number of samples decoded.
func DecodePCM16(dst []int16, src []byte, order binary.ByteOrder) int {
	n := min(len(dst), len(src)/2)
	for i := range n {
		dst[i] = int16(order.Uint16(src[2*i:]))
	}
	return n
}

// EncodePCM16 writes samples from src into dst and returns the number of
// samples encoded.
func EncodePCM16(dst []byte, src []int16, order binary.ByteOrder) int {
	n := min(len(src), len(dst)/2)
	for i := range n {
		order.PutUint16(dst[2*i:], uint16(src[i]))
	}
	return n
}

// Scale multiplies every sample by gain in place, saturating at the int16
// limits.
func Scale(samples []int16, gain float32) {
	if gain == 1 {
		return
	}
	for i, s := range samples {
		v := float32(s) * gain
		switch {
		case v > math.MaxInt16:
			samples[i] = math.MaxInt16
		case v < math.MinInt16:
			samples[i] = math.MinInt16
		default:
			samples[i] = int16(v)
		}
	}
}
