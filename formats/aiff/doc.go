// SPDX-License-Identifier: EPL-2.0

// Package aiff decodes AIFF files with github.com/go-audio/aiff.
//
// Only uncompressed 16-bit PCM is accepted. AIFF stores samples big-endian;
// the decoder hands them out as native int16 frames like every other
// audio.Source.
//
//	src, err := aiff.Decoder{}.Decode(file)
//	if errors.Is(err, aiff.ErrOnlyPCM16bitSupported) {
//	    // 8, 24 and 32-bit files are rejected
//	}
//
// go-audio needs an io.ReadSeeker. Other readers are read fully into memory
// before decoding starts.
package aiff
