// SPDX-License-Identifier: EPL-2.0

package aiff

import (
	"fmt"
	"io"

	"github.com/go-audio/aiff"
	"github.com/ik5/slaudio/audio"
	"github.com/ik5/slaudio/formats/internal/pcmbuf"
)

type Decoder struct{}

// Decode reads the COMM chunk of r and returns a Source over its sound
// data. Input that cannot seek is buffered in memory first. If r
// implements io.Closer it is closed together with the Source.
func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	rs, err := pcmbuf.Seekable(r)
	if err != nil {
		return nil, fmt.Errorf("reading aiff data: %w", err)
	}

	dec := aiff.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrNotAiffFile
	}
	dec.ReadInfo()

	if dec.BitDepth != 16 {
		return nil, ErrOnlyPCM16bitSupported
	}

	format := dec.Format()
	if format == nil || format.NumChannels < 1 || format.SampleRate <= 0 {
		return nil, ErrUnsupportedAiffLayout
	}

	closer, _ := r.(io.Closer)
	return pcmbuf.New(dec, format, closer), nil
}
