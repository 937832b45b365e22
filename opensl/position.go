// SPDX-License-Identifier: EPL-2.0

package opensl

import "time"

// Position is the number of frames, at the stream rate, that have been
// played out. It never exceeds what the data callback produced and it does
// not go backwards while the platform position is unchanged.
func (s *Stream) Position() (uint64, error) {
	if s.player == nil {
		return 0, newError(ErrNotSupported, nil, "position without playback").Build()
	}

	pos, err := s.player.Position()
	if err != nil {
		return 0, newError(ErrGeneric, err, "player position").Build()
	}
	msec := pos.Milliseconds()

	s.posMu.Lock()
	defer s.posMu.Unlock()

	var compensation int64
	now := s.engine.now()
	if s.lastPosition == msec {
		compensation = now.Sub(s.lastPositionTimeStamp).Milliseconds()
	} else {
		s.lastPositionTimeStamp = now
		s.lastPosition = msec
	}

	latency, err := s.engine.mixerLatency()
	if err != nil {
		return 0, err
	}
	mixer := latency.Milliseconds()

	s.mu.Lock()
	maxPosition := s.written * int64(s.inputRate) / int64(s.outputConfiguredRate)
	s.mu.Unlock()

	if msec <= mixer {
		return 0, nil
	}

	rate := int64(s.inputRate)
	var unadjusted int64
	if s.lastCompensativePosition > msec+compensation {
		// Over compensated earlier, hold the previous estimate.
		unadjusted = rate * (s.lastCompensativePosition - mixer) / 1000
	} else {
		unadjusted = rate * (msec - mixer + compensation) / 1000
		s.lastCompensativePosition = msec + compensation
	}

	return uint64(max(min(unadjusted, maxPosition), 0)), nil
}

// Latency is the stream latency in frames at the stream rate: one native
// buffer plus the platform mixer latency.
func (s *Stream) Latency() (uint32, error) {
	latency, err := s.engine.mixerLatency()
	if err != nil {
		return 0, err
	}
	rate := s.inputRate
	if !s.outputEnabled {
		rate = s.inputDeviceRate
	}
	mixer := latency / time.Millisecond
	return uint32(int64(s.latencyFrames) + int64(mixer)*int64(rate)/1000), nil
}
