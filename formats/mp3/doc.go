// SPDX-License-Identifier: EPL-2.0

// Package mp3 decodes MPEG-1/2 Layer III streams with
// github.com/hajimehoshi/go-mp3.
//
// The decoder always produces interleaved stereo at the stream's sample
// rate; mono files are duplicated to both channels by go-mp3. Use
// audio.MonoMixer when a single channel is needed.
//
//	src, err := mp3.Decoder{}.Decode(file)
//	if err != nil {
//	    return err
//	}
//	defer src.Close()
//
//	buf := make([]int16, 2048)
//	frames, err := src.ReadFrames(buf)
//
// A trailing partial frame at the end of the stream is dropped.
package mp3
