// SPDX-License-Identifier: EPL-2.0

package opensl

import (
	"time"

	"github.com/ik5/slaudio/internal/logger"
	"github.com/ik5/slaudio/internal/metrics"
	"github.com/ik5/slaudio/platform"
)

func (s *Stream) flags() (draining, shutdown bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draining, s.shutdown
}

func (s *Stream) notify(state State) {
	s.metrics.RecordState(state.String())
	s.log.Debug("state changed", logger.String("state", state.String()))
	if s.stateCb != nil {
		s.stateCb(state)
	}
}

// pausePlayer and pauseRecorder pause a native object. Callbacks pass
// deferred so a platform that would block waiting for its own callbacks
// stops asynchronously.
func (s *Stream) pausePlayer(deferred bool) error {
	var err error
	if d, ok := s.player.(platform.DeferredPauser); ok && deferred {
		err = d.PauseDeferred()
	} else {
		err = s.player.SetPlayState(platform.PlayStatePaused)
	}
	if err != nil {
		s.log.Error("failed to stop player", logger.Error(err))
		return newError(ErrGeneric, err, "pause player").Build()
	}
	return nil
}

func (s *Stream) pauseRecorder(deferred bool) error {
	var err error
	if d, ok := s.recorder.(platform.DeferredPauser); ok && deferred {
		err = d.PauseDeferred()
	} else {
		err = s.recorder.SetRecordState(platform.RecordStatePaused)
	}
	if err != nil {
		s.log.Error("failed to stop recorder", logger.Error(err))
		return newError(ErrGeneric, err, "pause recorder").Build()
	}
	return nil
}

// fail handles a fatal callback error: the stream is shut down, the given
// native objects are paused and StateError is reported.
func (s *Stream) fail(path string, err error, got int, stopPlayer, stopRecorder bool) {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	s.metrics.RecordCallbackError(path)
	s.log.Error("data callback failed",
		logger.String("path", path),
		logger.Int("frames", got),
		logger.Error(err))

	if stopPlayer && s.player != nil {
		_ = s.pausePlayer(true)
	}
	if stopRecorder && s.recorder != nil {
		_ = s.pauseRecorder(true)
	}
	s.notify(StateError)
}

// playEvent and recordEvent receive marker notifications.
func (s *Stream) playEvent(ev platform.Event) {
	if ev&platform.EventHeadAtMarker != 0 {
		s.notifyDrained(false)
	}
}

func (s *Stream) recordEvent(ev platform.Event) {
	if ev&platform.EventHeadAtMarker != 0 {
		s.notifyDrained(true)
	}
}

// notifyDrained reports StateDrained and pauses the native objects when the
// stream is draining. The recorder marker pauses the recorder first.
func (s *Stream) notifyDrained(recorderFirst bool) {
	if draining, _ := s.flags(); !draining {
		return
	}

	s.notify(StateDrained)
	if recorderFirst && s.recorder != nil {
		_ = s.pauseRecorder(true)
	}
	if s.player != nil {
		_ = s.pausePlayer(true)
	}
	if !recorderFirst && s.recorder != nil {
		_ = s.pauseRecorder(true)
	}
}

// drainPlayback marks the stream draining and arms the play marker at the
// time the last written frame plays out.
func (s *Stream) drainPlayback() {
	s.mu.Lock()
	duration := 1000 * s.written * int64(s.framesize) / s.bytesPerSec
	s.draining = true
	s.mu.Unlock()

	s.log.Debug("playback draining", logger.Int64("marker_ms", duration))
	if duration == 0 {
		// Nothing was written, the marker would never be reached.
		s.notifyDrained(false)
		return
	}
	if err := s.player.SetMarkerPosition(time.Duration(duration) * time.Millisecond); err != nil {
		s.log.Error("failed to set play marker", logger.Error(err))
	}
}

func (s *Stream) addWritten(frames int) {
	if frames <= 0 {
		return
	}
	s.mu.Lock()
	s.written += int64(frames)
	s.mu.Unlock()
	s.metrics.AddFrames(metrics.DirectionPlayback, frames)
}

func (s *Stream) enqueueOutput(buf []byte) {
	if err := s.playQueue.Enqueue(buf); err != nil {
		s.log.Error("failed to enqueue output buffer", logger.Error(err))
	}
}

// outputCallback refills the player queue of an output-only stream.
func (s *Stream) outputCallback() {
	state, err := s.playQueue.State()
	if err != nil {
		s.log.Error("failed to read buffer queue state", logger.Error(err))
	} else if state.Count > 1 {
		return
	}

	buf := s.queuebuf[s.queuebufIdx]
	frames := s.queuebufLen / s.framesize
	draining, shutdown := s.flags()

	written := 0
	if !draining && !shutdown {
		n, err := s.resampler.Fill(nil, nil, buf, frames)
		if err != nil || n < 0 || n > frames {
			s.fail(metrics.PathOutput, err, n, true, false)
			return
		}
		written = n
	}

	// Keep feeding silence so the platform does not stop the player.
	clear(buf[written*s.framesize:])
	s.enqueueOutput(buf)
	s.queuebufIdx = (s.queuebufIdx + 1) % len(s.queuebuf)
	s.addWritten(written)

	if !draining && !shutdown && written < frames {
		s.drainPlayback()
	}
}

// inputCallback delivers a filled capture buffer of an input-only stream.
func (s *Stream) inputCallback() {
	if draining, shutdown := s.flags(); draining || shutdown {
		// Keep the recorder queue primed to collect residual data.
		prev, err := s.enqueueRecorder()
		s.releaseInput(prev)
		if err != nil {
			s.log.Error("failed to re-enqueue capture buffer", logger.Error(err))
		}
		return
	}

	filled, err := s.enqueueRecorder()
	if err != nil || filled < 0 {
		s.fail(metrics.PathInput, err, 0, false, true)
		return
	}

	frames := s.inputBufferLen / s.inputFrameSize
	inputFrames := frames
	got, err := s.resampler.Fill(s.inputBuffers[filled], &inputFrames, nil, 0)
	s.releaseInput(filled)
	if err != nil || got < 0 || got > frames {
		s.fail(metrics.PathInput, err, got, false, true)
		return
	}

	s.inputTotalFrames += int64(got)
	s.metrics.AddFrames(metrics.DirectionCapture, got)

	if got < frames {
		s.mu.Lock()
		s.draining = true
		s.mu.Unlock()

		duration := 1000 * s.inputTotalFrames / int64(s.inputDeviceRate)
		s.log.Debug("capture draining", logger.Int64("marker_ms", duration))
		if duration == 0 {
			// A marker at 0 never fires.
			s.notifyDrained(true)
			return
		}
		if err := s.recorder.SetMarkerPosition(time.Duration(duration) * time.Millisecond); err != nil {
			s.log.Error("failed to set record marker", logger.Error(err))
		}
	}
}

// duplexInputCallback passes filled capture buffers to the player callback.
func (s *Stream) duplexInputCallback() {
	if draining, shutdown := s.flags(); draining || shutdown {
		prev, err := s.enqueueRecorder()
		s.releaseInput(prev)
		if err != nil {
			s.log.Error("failed to re-enqueue capture buffer", logger.Error(err))
		}
		return
	}

	filled, err := s.enqueueRecorder()
	if err != nil || filled < 0 {
		s.fail(metrics.PathDuplexInput, err, 0, true, true)
		return
	}

	s.inputSlots[filled].Store(slotHandoff)
	if !s.inputQueue.Push(filled) {
		s.inputSlots[filled].Store(slotFree)
		s.metrics.RecordCaptureDrop()
		s.log.Debug("handoff queue full, dropping capture buffer")
		return
	}
	s.metrics.SetHandoffDepth(s.name, s.inputQueue.Size())
}

// duplexOutputCallback renders one buffer of a full-duplex stream from the
// oldest handed off capture buffer, or silence when there is none.
func (s *Stream) duplexOutputCallback() {
	draining, shutdown := s.flags()

	buf := s.queuebuf[s.queuebufIdx]
	s.queuebufIdx = (s.queuebufIdx + 1) % len(s.queuebuf)

	if draining || shutdown {
		clear(buf)
		s.enqueueOutput(buf)
		return
	}

	input := s.inputSilent
	slot, ok := s.inputQueue.Pop()
	if ok {
		input = s.inputBuffers[slot]
		s.metrics.SetHandoffDepth(s.name, s.inputQueue.Size())
	} else {
		s.metrics.RecordInputUnderrun()
	}

	inputFrames := s.inputBufferLen / s.inputFrameSize
	needed := s.queuebufLen / s.framesize
	written, err := s.resampler.Fill(input, &inputFrames, buf, needed)
	if ok {
		s.releaseInput(slot)
	}

	if err != nil || written < 0 || written > needed {
		s.fail(metrics.PathDuplexOutput, err, written, true, true)
		clear(buf)
		s.enqueueOutput(buf)
		return
	}

	s.addWritten(written)
	if written < needed {
		s.drainPlayback()
	}

	clear(buf[written*s.framesize:])
	s.enqueueOutput(buf)
}
