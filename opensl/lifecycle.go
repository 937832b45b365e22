// SPDX-License-Identifier: EPL-2.0

package opensl

import (
	"context"

	"github.com/ik5/slaudio/internal/logger"
	"github.com/ik5/slaudio/platform"
)

// Start clears the draining and shutdown flags and starts the realized
// native objects. A stream that was stopped or drained restarts with a reset
// resampler. StateStarted is reported on success.
func (s *Stream) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return newError(ErrInvalidState, nil, "start destroyed stream").Build()
	}
	// Callbacks only call Fill after seeing both flags clear.
	if (s.draining || s.shutdown) && s.resampler != nil {
		s.resampler.Reset()
	}
	s.draining = false
	s.shutdown = false
	s.mu.Unlock()

	if s.player != nil && s.player.ObjectState() == platform.ObjectRealized {
		if err := s.player.SetPlayState(platform.PlayStatePlaying); err != nil {
			s.log.Error("failed to start player", logger.Error(err))
			return newError(ErrGeneric, err, "start player").Build()
		}
	}
	if s.recorder != nil && s.recorder.ObjectState() == platform.ObjectRealized {
		if err := s.recorder.SetRecordState(platform.RecordStateRecording); err != nil {
			s.log.Error("failed to start recorder", logger.Error(err))
			return newError(ErrGeneric, err, "start recorder").Build()
		}
	}

	s.log.Info("stream started")
	s.notify(StateStarted)
	return nil
}

// Stop shuts the stream down and pauses the native objects. Callbacks still
// in flight only feed silence. StateStopped is reported on success.
func (s *Stream) Stop(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return newError(ErrInvalidState, nil, "stop destroyed stream").Build()
	}
	s.shutdown = true
	s.mu.Unlock()

	if s.player != nil {
		if err := s.pausePlayer(false); err != nil {
			return err
		}
	}
	if s.recorder != nil {
		if err := s.pauseRecorder(false); err != nil {
			return err
		}
	}

	s.log.Info("stream stopped")
	s.notify(StateStopped)
	return nil
}

// Destroy releases the native objects. The stream must be stopped or drained
// first. Destroying twice is a no-op.
func (s *Stream) Destroy() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	if !s.draining && !s.shutdown {
		s.mu.Unlock()
		return newError(ErrInvalidState, nil, "destroy running stream").Build()
	}
	s.destroyed = true
	s.mu.Unlock()

	err := s.release()
	s.log.Info("stream destroyed")
	return err
}
