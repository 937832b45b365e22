// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"fmt"
	"io"

	"github.com/go-audio/wav"
	"github.com/ik5/slaudio/audio"
	"github.com/ik5/slaudio/formats/internal/pcmbuf"
)

const (
	formatPCM        = 1
	formatExtensible = 0xFFFE
)

type Decoder struct{}

// Decode parses the RIFF headers of r and returns a Source positioned at
// the start of the data chunk. Chunks other than fmt and data are skipped.
// If r implements io.Closer it is closed together with the Source.
func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	rs, err := pcmbuf.Seekable(r)
	if err != nil {
		return nil, fmt.Errorf("reading wav data: %w", err)
	}

	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrNotWavFile
	}

	if dec.WavAudioFormat != formatPCM && dec.WavAudioFormat != formatExtensible {
		return nil, ErrOnlyPCM16bitSupported
	}
	if dec.BitDepth != 16 {
		return nil, ErrOnlyPCM16bitSupported
	}

	format := dec.Format()
	if format == nil || format.NumChannels < 1 || format.SampleRate <= 0 {
		return nil, ErrUnsupportedWavLayout
	}

	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedWavChunks, err)
	}

	closer, _ := r.(io.Closer)
	return pcmbuf.New(dec, format, closer), nil
}
