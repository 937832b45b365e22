// SPDX-License-Identifier: EPL-2.0

// Package platform describes the native audio service a buffer-queue backend
// drives.
//
// The interfaces mirror the object model of OpenSL ES: an Engine creates an
// OutputMix, Players that render into it and Recorders that capture from the
// default input device. Every Player and Recorder exposes a BufferQueue and a
// marker based event callback.
//
// # Callback Contract
//
// Implementations must honour the following, the opensl package relies on it
// instead of locking its rotating buffer indexes:
//
//   - The callback registered on a BufferQueue is invoked serially. Two
//     invocations for the same queue never overlap, and they are delivered in
//     the order buffers complete.
//   - A buffer handed to Enqueue belongs to the platform until the queue
//     callback for that buffer fires.
//   - SetPlayState and SetRecordState with a paused or stopped state return
//     only after any in-flight callback of that object has returned. From
//     inside a callback, use DeferredPauser when the object implements it.
//   - Destroy returns only after the object's callbacks have quiesced.
//   - A marker fires HeadAtMarker once, on the first position update at or
//     past it, after the queue callback of the same update. A marker at 0 is
//     disarmed.
//
// # Implementations
//
// The miniaudio subpackage provides a real implementation on top of
// github.com/gen2brain/malgo. Tests use the fake in internal/audiotest.
package platform
