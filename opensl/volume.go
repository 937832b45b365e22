// SPDX-License-Identifier: EPL-2.0

package opensl

import (
	"math"

	"github.com/ik5/slaudio/internal/logger"
	"github.com/ik5/slaudio/platform"
)

// silenceThreshold is the gain below which the player is muted.
const silenceThreshold = 1e-10

// SetVolume sets the player gain, 1.0 being unity. The gain is mapped to
// millibels and clamped to the range the player supports.
func (s *Stream) SetVolume(volume float32) error {
	if s.player == nil {
		return newError(ErrNotSupported, nil, "volume without playback").Build()
	}

	maxLevel, err := s.player.MaxVolumeLevel()
	if err != nil {
		return newError(ErrGeneric, err, "max volume level").Build()
	}

	level := Millibels(volume, maxLevel)
	if err := s.player.SetVolumeLevel(level); err != nil {
		return newError(ErrGeneric, err, "set volume level").Context("millibels", int(level)).Build()
	}

	s.log.Debug("volume changed",
		logger.Float64("volume", float64(volume)),
		logger.Int("millibels", int(level)))
	return nil
}

// Millibels converts a linear gain to a player level no higher than
// maxLevel.
func Millibels(volume float32, maxLevel int16) int16 {
	if volume < silenceThreshold || math.IsNaN(float64(volume)) {
		return platform.MillibelMin
	}
	mb := math.Round(2000 * math.Log10(float64(volume)))
	mb = max(mb, float64(platform.MillibelMin))
	mb = min(mb, float64(maxLevel))
	return int16(mb)
}
