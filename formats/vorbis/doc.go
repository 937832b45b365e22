// SPDX-License-Identifier: EPL-2.0

// Package vorbis decodes Ogg Vorbis streams with
// github.com/jfreymuth/oggvorbis.
//
// Vorbis decodes to floating point; samples are converted to 16-bit PCM
// and clamped to the int16 range on the way out.
//
//	src, err := vorbis.Decoder{}.Decode(file)
//	if err != nil {
//	    return err
//	}
//	defer src.Close()
//
//	buf := make([]int16, 1024*src.Channels())
//	frames, err := src.ReadFrames(buf)
//
// Channel layout follows the Vorbis I mapping and is passed through as is.
package vorbis
