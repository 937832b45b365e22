// SPDX-License-Identifier: EPL-2.0

// Package miniaudio is a platform.Platform on top of miniaudio, through
// github.com/gen2brain/malgo.
//
// Every player and recorder owns one malgo device. Buffer queues, play heads
// and markers are emulated: the device data callback copies between the
// device and the enqueued buffers, runs the queue callback for each buffer
// it completes and then fires a due marker. Both run on the device thread,
// one invocation at a time.
//
// SetPlayState and SetRecordState stop the device synchronously and wait for
// its data callback. Callbacks pause through PauseDeferred instead: the
// object goes silent at once and the device is stopped from another
// goroutine.
package miniaudio
