// SPDX-License-Identifier: EPL-2.0

// Package opensl implements a buffer-queue audio backend modelled on OpenSL
// ES.
//
// An Engine is opened once per process on top of a platform.Platform. Streams
// created from it render and/or capture interleaved signed 16-bit PCM through
// the platform's native buffer queues:
//
//	eng, err := opensl.Init(miniaudio.New(), opensl.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer eng.Destroy()
//
//	stm, err := eng.NewStream(opensl.StreamConfig{
//	    Output:        &opensl.Params{Format: opensl.FormatS16LE, Rate: 48000, Channels: 2},
//	    LatencyFrames: 1024,
//	    Data:          fill,
//	    State:         onState,
//	})
//
// # Draining
//
// When the data callback produces fewer frames than requested the stream
// starts draining: the rest of that buffer and every later one are silence,
// and a marker is armed at the time the last real frame will have played. The
// marker reports StateDrained and pauses the native objects. Stop forces the
// same silence-only behaviour immediately.
//
// # Full Duplex
//
// With both Input and Output set, the recorder callback hands filled capture
// buffers to the player callback through a handoff.Queue. Captured audio is
// dropped when the queue is full and replaced with silence when it is empty.
package opensl
