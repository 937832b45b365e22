// SPDX-License-Identifier: EPL-2.0

package slaudio

import (
	"fmt"
	"io"
	"os"

	"github.com/ik5/slaudio/audio"
	"github.com/ik5/slaudio/formats/aiff"
	"github.com/ik5/slaudio/formats/mp3"
	"github.com/ik5/slaudio/formats/vorbis"
	"github.com/ik5/slaudio/formats/wav"
)

// DefaultRegistry returns a registry with every bundled decoder.
func DefaultRegistry() *audio.Registry {
	reg := audio.NewRegistry()
	reg.Register("wav", wav.Decoder{})
	reg.Register("wave", wav.Decoder{})
	reg.Register("mp3", mp3.Decoder{})
	reg.Register("ogg", vorbis.Decoder{})
	reg.Register("oga", vorbis.Decoder{})
	reg.Register("aif", aiff.Decoder{})
	reg.Register("aiff", aiff.Decoder{})
	return reg
}

// OpenFile decodes path with the decoder registered for its extension.
// Closing the returned Source closes the file.
func OpenFile(reg *audio.Registry, path string) (audio.Source, error) {
	dec, err := reg.Lookup(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	src, err := dec.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

// ReadAll drains src into memory, bufferFrames frames at a time, and
// returns the interleaved samples.
func ReadAll(src audio.Source, bufferFrames int) ([]int16, error) {
	if bufferFrames <= 0 {
		bufferFrames = 4096
	}

	ch := src.Channels()
	buf := make([]int16, bufferFrames*ch)
	out := make([]int16, 0, src.SampleRate()*ch)

	for {
		n, err := src.ReadFrames(buf)
		out = append(out, buf[:n*ch]...)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("reading source: %w", err)
		}
	}
}

// ReadAllMono16 downmixes src to mono and returns every sample along with
// the sample rate.
func ReadAllMono16(src audio.Source, bufferFrames int) ([]int16, int, error) {
	pcm, err := ReadAll(audio.NewMonoMixer(src), bufferFrames)
	return pcm, src.SampleRate(), err
}
