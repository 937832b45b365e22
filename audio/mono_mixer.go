// SPDX-License-Identifier: EPL-2.0

package audio

import "fmt"

// MonoMixer averages every frame of a multi-channel source into one sample.
type MonoMixer struct {
	src Source
	tmp []int16
}

func NewMonoMixer(src Source) *MonoMixer {
	return &MonoMixer{
		src: src,
		tmp: make([]int16, 4096),
	}
}

func (m *MonoMixer) SampleRate() int { return m.src.SampleRate() }
func (m *MonoMixer) Channels() int   { return 1 }
func (m *MonoMixer) Close() error {
	err := m.src.Close()
	if err != nil {
		return fmt.Errorf("%w", err)
	}

	return nil
}

func (m *MonoMixer) ReadFrames(dst []int16) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if m.src.Channels() == 1 {
		// Pass-through: read mono directly
		return m.src.ReadFrames(dst)
	}

	channels := m.src.Channels()
	samplesNeeded := len(dst) * channels

	// Grow tmp buffer if needed (but don't shrink to avoid thrashing)
	if cap(m.tmp) < samplesNeeded {
		m.tmp = make([]int16, max(samplesNeeded, 8192))
	}
	m.tmp = m.tmp[:samplesNeeded]

	frames, err := m.src.ReadFrames(m.tmp)
	if frames == 0 {
		return 0, err
	}

	switch channels {
	case 2: // Stereo (most common)
		for f := range frames {
			idx := f << 1
			dst[f] = int16((int32(m.tmp[idx]) + int32(m.tmp[idx+1])) / 2)
		}
	default:
		for f := range frames {
			var sum int32
			base := f * channels
			for c := range channels {
				sum += int32(m.tmp[base+c])
			}
			dst[f] = int16(sum / int32(channels))
		}
	}

	return frames, err
}
