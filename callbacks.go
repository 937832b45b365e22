// SPDX-License-Identifier: EPL-2.0

package slaudio

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/ik5/slaudio/audio"
	"github.com/ik5/slaudio/opensl"
	"github.com/ik5/slaudio/utils"
)

// PlaybackParams describes an output direction in native byte order at the
// rate and channel count of src.
func PlaybackParams(src audio.Source) *opensl.Params {
	return &opensl.Params{
		Format:   opensl.FormatS16NE,
		Rate:     src.SampleRate(),
		Channels: src.Channels(),
	}
}

// SourceCallback returns a DataCallback that renders src. When src reaches
// io.EOF the callback produces fewer frames than asked for, and the stream
// drains. Any other read error is passed to onErr (which may be nil) and
// fails the stream.
func SourceCallback(src audio.Source, onErr func(error)) opensl.DataCallback {
	ch := src.Channels()
	done := false

	return func(_, output []int16, frames int) int {
		if done {
			return 0
		}

		got := 0
		for got < frames {
			n, err := src.ReadFrames(output[got*ch : frames*ch])
			got += n
			if errors.Is(err, io.EOF) {
				done = true
				break
			}
			if err != nil {
				if onErr != nil {
					onErr(err)
				}
				return -1
			}
			if n == 0 {
				break
			}
		}
		return got
	}
}

// CaptureCallback returns a DataCallback for an input-only stream that
// writes captured frames to w as little-endian 16-bit PCM. After maxFrames
// frames the callback reports a short read so the stream drains; zero means
// no limit. A failed write is passed to onErr (which may be nil) and the
// frames are dropped.
func CaptureCallback(w io.Writer, maxFrames int, onErr func(error)) opensl.DataCallback {
	var (
		buf   []byte
		total int
	)

	return func(input, _ []int16, frames int) int {
		take := frames
		if maxFrames > 0 {
			take = min(frames, maxFrames-total)
		}
		if take <= 0 {
			return 0
		}

		ch := len(input) / frames
		samples := input[:take*ch]
		if cap(buf) < len(samples)*2 {
			buf = make([]byte, len(samples)*2)
		}
		buf = buf[:len(samples)*2]
		utils.EncodePCM16(buf, samples, binary.LittleEndian)

		if _, err := w.Write(buf); err != nil && onErr != nil {
			onErr(err)
		}
		total += take
		return take
	}
}

// LoopbackCallback returns a DataCallback for a full-duplex stream that
// copies the input to the output scaled by gain. Output channels beyond the
// input's are silent.
func LoopbackCallback(gain float32) opensl.DataCallback {
	return func(input, output []int16, frames int) int {
		clear(output)
		if frames == 0 || len(input) == 0 {
			return frames
		}

		inCh := len(input) / frames
		outCh := len(output) / frames
		if inCh == outCh {
			copy(output, input)
		} else {
			for f := range frames {
				for c := range min(inCh, outCh) {
					output[f*outCh+c] = input[f*inCh+c]
				}
			}
		}
		utils.Scale(output, gain)
		return frames
	}
}
