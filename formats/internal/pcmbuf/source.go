// SPDX-License-Identifier: EPL-2.0

// Package pcmbuf adapts the go-audio decoders to audio.Source.
package pcmbuf

import (
	"bytes"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
)

// Reader is the part of the go-audio wav and aiff decoders used here.
type Reader interface {
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

// Source reads 16-bit frames out of a go-audio IntBuffer based decoder.
type Source struct {
	r        Reader
	format   *goaudio.Format
	closer   io.Closer
	data     []int
	view     goaudio.IntBuffer
	finished bool
}

// New returns a Source over r. closer may be nil.
func New(r Reader, format *goaudio.Format, closer io.Closer) *Source {
	return &Source{
		r:      r,
		format: format,
		closer: closer,
		view:   goaudio.IntBuffer{Format: format, SourceBitDepth: 16},
	}
}

// Seekable returns r as an io.ReadSeeker, buffering it in memory when it
// cannot seek.
func Seekable(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func (s *Source) SampleRate() int { return s.format.SampleRate }
func (s *Source) Channels() int   { return s.format.NumChannels }

func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func (s *Source) ReadFrames(dst []int16) (int, error) {
	if s.finished {
		return 0, io.EOF
	}

	ch := s.format.NumChannels
	want := len(dst) / ch * ch
	if want == 0 {
		return 0, nil
	}
	if cap(s.data) < want {
		s.data = make([]int, want)
	}

	got := 0
	for got < want {
		s.view.Data = s.data[got:want]
		n, err := s.r.PCMBuffer(&s.view)
		got += n
		if err != nil && err != io.EOF {
			return s.emit(dst, got), err
		}
		if n == 0 || err == io.EOF {
			s.finished = true
			break
		}
	}

	frames := s.emit(dst, got)
	if s.finished {
		return frames, io.EOF
	}
	return frames, nil
}

// emit copies the whole frames held in data into dst.
func (s *Source) emit(dst []int16, samples int) int {
	frames := samples / s.format.NumChannels
	for i := range frames * s.format.NumChannels {
		dst[i] = clamp16(s.data[i])
	}
	return frames
}

func clamp16(v int) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
