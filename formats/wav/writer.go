// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Writer streams 16-bit PCM frames into a WAV file. The RIFF and data sizes
// are patched on Close, so the destination has to be seekable.
type Writer struct {
	enc      *wav.Encoder
	buf      goaudio.IntBuffer
	channels int
	frames   int
}

func NewWriter(w io.WriteSeeker, sampleRate, channels int) (*Writer, error) {
	if sampleRate <= 0 || channels < 1 {
		return nil, ErrUnsupportedWavLayout
	}

	return &Writer{
		enc:      wav.NewEncoder(w, sampleRate, 16, channels, formatPCM),
		channels: channels,
		buf: goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}, nil
}

// WriteFrames appends interleaved samples. A trailing partial frame is
// dropped.
func (w *Writer) WriteFrames(samples []int16) error {
	n := len(samples) / w.channels * w.channels
	if n == 0 {
		return nil
	}

	if cap(w.buf.Data) < n {
		w.buf.Data = make([]int, n)
	}
	w.buf.Data = w.buf.Data[:n]
	for i, s := range samples[:n] {
		w.buf.Data[i] = int(s)
	}

	if err := w.enc.Write(&w.buf); err != nil {
		return fmt.Errorf("writing wav frames: %w", err)
	}
	w.frames += n / w.channels
	return nil
}

// Frames returns the number of frames written so far.
func (w *Writer) Frames() int { return w.frames }

// Close finalizes the headers. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.frames == 0 {
		// The encoder only emits its headers on the first write.
		w.buf.Data = w.buf.Data[:0]
		if err := w.enc.Write(&w.buf); err != nil {
			return fmt.Errorf("writing wav header: %w", err)
		}
	}
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("finalizing wav: %w", err)
	}
	return nil
}
