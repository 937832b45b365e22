// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"io"
	"math"

	"github.com/ik5/slaudio/utils"
)

// MockSource generates 16-bit frames from a waveform function. It satisfies
// audio.Source without importing it.
type MockSource struct {
	sampleRate  int
	channels    int
	totalFrames int
	generated   int
	closed      bool
	waveform    func(frame int, channel int) float32
}

// NewMockSource creates a source of totalFrames frames. waveform returns
// values in [-1, 1] for a frame index and channel.
func NewMockSource(sampleRate, channels, totalFrames int, waveform func(frame int, channel int) float32) *MockSource {
	return &MockSource{
		sampleRate:  sampleRate,
		channels:    channels,
		totalFrames: totalFrames,
		waveform:    waveform,
	}
}

func NewSilentSource(sampleRate, channels, totalFrames int) *MockSource {
	return NewMockSource(sampleRate, channels, totalFrames, func(int, int) float32 { return 0 })
}

func NewSineSource(sampleRate, channels, totalFrames int, frequency float64) *MockSource {
	return NewMockSource(sampleRate, channels, totalFrames, func(frame int, _ int) float32 {
		t := float64(frame) / float64(sampleRate)
		return float32(math.Sin(2 * math.Pi * frequency * t))
	})
}

func NewConstantSource(sampleRate, channels, totalFrames int, value float32) *MockSource {
	return NewMockSource(sampleRate, channels, totalFrames, func(int, int) float32 { return value })
}

func (m *MockSource) SampleRate() int { return m.sampleRate }
func (m *MockSource) Channels() int   { return m.channels }

func (m *MockSource) Close() error {
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockSource) Closed() bool { return m.closed }

// Reset rewinds the source.
func (m *MockSource) Reset() { m.generated = 0 }

// ReadFrames fills dst with whole frames. The last read returns io.EOF along
// with the remaining frames.
func (m *MockSource) ReadFrames(dst []int16) (int, error) {
	if m.generated >= m.totalFrames {
		return 0, io.EOF
	}

	frames := min(len(dst)/m.channels, m.totalFrames-m.generated)
	for f := range frames {
		idx := m.generated + f
		for ch := range m.channels {
			dst[f*m.channels+ch] = utils.Float32ToInt16(m.waveform(idx, ch))
		}
	}
	m.generated += frames

	if m.generated >= m.totalFrames {
		return frames, io.EOF
	}
	return frames, nil
}
