// SPDX-License-Identifier: EPL-2.0

package opensl

import (
	"encoding/binary"

	"github.com/ik5/slaudio/platform"
)

// State is reported to the StateCallback of a stream.
type State int

const (
	StateStarted State = iota
	StateStopped
	StateDrained
	StateError
)

func (s State) String() string {
	switch s {
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateDrained:
		return "drained"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// DataCallback exchanges interleaved samples with the application at the
// stream rate. input is nil without capture and output is nil without
// playback. The return value is the number of frames produced, or consumed
// for input-only streams; fewer than frames starts draining and a negative
// value is a fatal error.
type DataCallback func(input, output []int16, frames int) int

// StateCallback receives stream state changes. It may be called from a
// platform callback goroutine and must not call Stop or Destroy.
type StateCallback func(State)

// SampleFormat of the samples exchanged with the platform.
type SampleFormat int

const (
	FormatS16LE SampleFormat = iota + 1
	FormatS16BE
	FormatFloat32LE
	FormatFloat32BE
)

// FormatS16NE is the signed 16-bit format in host byte order.
var FormatS16NE = func() SampleFormat {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], 1)
	if b[0] == 1 {
		return FormatS16LE
	}
	return FormatS16BE
}()

func (f SampleFormat) String() string {
	switch f {
	case FormatS16LE:
		return "s16le"
	case FormatS16BE:
		return "s16be"
	case FormatFloat32LE:
		return "f32le"
	case FormatFloat32BE:
		return "f32be"
	default:
		return "unknown"
	}
}

// byteOrder returns the platform byte order of a 16-bit format.
func (f SampleFormat) byteOrder() (platform.ByteOrder, bool) {
	switch f {
	case FormatS16LE:
		return platform.LittleEndian, true
	case FormatS16BE:
		return platform.BigEndian, true
	default:
		return 0, false
	}
}

// Params of one stream direction.
type Params struct {
	Format   SampleFormat
	Rate     int
	Channels int
}

const (
	// NBUFS is the number of native buffers of a single-direction stream.
	NBUFS = 4

	// DefaultSampleRate is used when the platform cannot report its
	// preferred rate.
	DefaultSampleRate = 48000

	// fastTrackLatencyFrames is the fallback buffer size when the primary
	// output buffer size is unknown.
	fastTrackLatencyFrames = 440

	// minSupportedAPI is the first API level with simple buffer queues.
	minSupportedAPI = 11
	// nativeRateAPI is the first API level where streams are forced to the
	// native output rate to get a fast mixer track.
	nativeRateAPI = 23

	maxChannels       = 32
	maxMixerChannels  = 2
	backendIdentifier = "opensl"
)

func validateParams(p *Params) error {
	if p == nil {
		return nil
	}
	if p.Channels < 1 || p.Channels > maxChannels {
		return newError(ErrInvalidFormat, nil, "channel count").Context("channels", p.Channels).Build()
	}
	if _, ok := p.Format.byteOrder(); !ok {
		return newError(ErrInvalidFormat, nil, "sample format").Context("format", p.Format.String()).Build()
	}
	if p.Rate <= 0 {
		return newError(ErrInvalidFormat, nil, "sample rate").Context("rate", p.Rate).Build()
	}
	return nil
}
