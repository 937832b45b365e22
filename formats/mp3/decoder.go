// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/ik5/slaudio/audio"
	"github.com/ik5/slaudio/utils"
)

// go-mp3 always produces interleaved little-endian stereo.
const (
	channels  = 2
	frameSize = channels * 2
)

// mp3Reader is an interface for gomp3.Decoder to allow testing
type mp3Reader interface {
	Read([]byte) (int, error)
	SampleRate() int
}

type source struct {
	dec    mp3Reader
	closer io.Closer
	buf    []byte
	done   bool
}

func (s *source) SampleRate() int { return s.dec.SampleRate() }
func (s *source) Channels() int   { return channels }

func (s *source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func (s *source) ReadFrames(dst []int16) (int, error) {
	if s.done {
		return 0, io.EOF
	}

	frames := len(dst) / channels
	if frames == 0 {
		return 0, nil
	}

	need := frames * frameSize
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	s.buf = s.buf[:need]

	n, err := io.ReadFull(s.dec, s.buf)
	got := n / frameSize
	utils.DecodePCM16(dst[:got*channels], s.buf[:got*frameSize], binary.LittleEndian)

	switch {
	case err == nil:
		return got, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		s.done = true
		return got, io.EOF
	default:
		return got, fmt.Errorf("decoding mp3: %w", err)
	}
}

type Decoder struct{}

// Decode starts an MP3 stream. If r implements io.Closer it is closed
// together with the Source.
func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotMP3File, err)
	}

	closer, _ := r.(io.Closer)
	return &source{dec: dec, closer: closer}, nil
}
