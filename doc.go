// SPDX-License-Identifier: EPL-2.0

// Package slaudio ties decoded audio sources to opensl streams.
//
// The opensl package moves raw 16-bit frames through a DataCallback. The
// helpers here build such callbacks for the common cases:
//
//   - SourceCallback plays an audio.Source until it ends, then lets the
//     stream drain.
//   - CaptureCallback copies captured frames into an io.Writer, for example
//     a ring buffer drained by another goroutine.
//   - LoopbackCallback forwards the input of a full-duplex stream to its
//     output.
//
// # Supported Formats
//
// DefaultRegistry knows the decoders shipped in formats/:
//   - WAV (PCM 16-bit) via formats/wav
//   - MP3 via formats/mp3
//   - Ogg Vorbis via formats/vorbis
//   - AIFF (PCM 16-bit) via formats/aiff
//
// # Quick Start
//
//	src, err := slaudio.OpenFile(slaudio.DefaultRegistry(), "song.ogg")
//	if err != nil {
//	    return err
//	}
//	defer src.Close()
//
//	stm, err := eng.NewStream(opensl.StreamConfig{
//	    Output:        slaudio.PlaybackParams(src),
//	    LatencyFrames: 1024,
//	    Data:          slaudio.SourceCallback(src, nil),
//	    State:         onState,
//	})
//
// Callbacks run on platform goroutines and must not block.
package slaudio
