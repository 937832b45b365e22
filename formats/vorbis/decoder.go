// SPDX-License-Identifier: EPL-2.0

package vorbis

import (
	"errors"
	"fmt"
	"io"

	"github.com/ik5/slaudio/audio"
	"github.com/ik5/slaudio/utils"
	"github.com/jfreymuth/oggvorbis"
)

// oggReader is an interface for oggvorbis.Reader to allow testing.
// Read fills p with interleaved samples and returns how many it wrote.
type oggReader interface {
	SampleRate() int
	Channels() int
	Read(p []float32) (int, error)
}

type source struct {
	dec    oggReader
	closer io.Closer
	buf    []float32
	done   bool
}

func (s *source) SampleRate() int { return s.dec.SampleRate() }
func (s *source) Channels() int   { return s.dec.Channels() }

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

	ch := s.dec.Channels()
	want := len(dst) / ch * ch
	if want == 0 {
		return 0, nil
	}

	if cap(s.buf) < want {
		s.buf = make([]float32, want)
	}
	s.buf = s.buf[:want]

	n, err := s.dec.Read(s.buf)
	frames := min(n, want) / ch
	for i, v := range s.buf[:frames*ch] {
		dst[i] = utils.Float32ToInt16(v)
	}

	switch {
	case err == nil:
		return frames, nil
	case errors.Is(err, io.EOF):
		s.done = true
		return frames, io.EOF
	default:
		return frames, fmt.Errorf("decoding vorbis: %w", err)
	}
}

type Decoder struct{}

// Decode opens an Ogg Vorbis stream. If r implements io.Closer it is
// closed together with the Source.
func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotVorbisFile, err)
	}
	if dec.Channels() < 1 {
		return nil, ErrNotVorbisFile
	}

	closer, _ := r.(io.Closer)
	return &source{dec: dec, closer: closer}, nil
}
