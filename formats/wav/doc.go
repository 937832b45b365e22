// SPDX-License-Identifier: EPL-2.0

// Package wav reads and writes 16-bit PCM WAV files.
//
// Decoding is done by github.com/go-audio/wav, so fmt and data chunks may be
// preceded or separated by other chunks (LIST, bext, junk). Only PCM 16-bit
// data is accepted; anything else fails with ErrOnlyPCM16bitSupported.
//
//	src, err := wav.Decoder{}.Decode(file)
//	if err != nil {
//	    return err
//	}
//	defer src.Close()
//
//	buf := make([]int16, 1024*src.Channels())
//	n, err := src.ReadFrames(buf)
//
// Two writers are provided. Writer streams frames through the go-audio
// encoder and patches sizes on Close, which makes it suitable for capture
// of unknown length:
//
//	w, _ := wav.NewWriter(file, 48000, 1)
//	w.WriteFrames(frames)
//	w.Close()
//
// WriteWAV16 writes an already complete buffer to any io.Writer, such as
// a pipe or stdout.
package wav
