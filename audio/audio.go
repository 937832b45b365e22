// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

type Source interface {
	// SampleRate of the PCM stream in Hz.
	SampleRate() int
	// Channels count (e.g., 1=mono, 2=stereo).
	Channels() int
	// ReadFrames fills dst with interleaved 16-bit frames. len(dst) must be a
	// multiple of Channels. Returns the number of frames written; io.EOF
	// marks the end of the stream and may come with the last frames.
	ReadFrames(dst []int16) (frames int, err error)

	// Close releases any resources.
	Close() error
}

// Decoder constructs a Source from an input reader.
type Decoder interface {
	Decode(r io.Reader) (Source, error)
}

// Registry for decoders by format key (e.g., "wav", "mp3", "ogg").
type Registry struct {
	codecs map[string]Decoder

	mtx *sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{
		codecs: make(map[string]Decoder),
		mtx:    &sync.Mutex{},
	}
}

func (r *Registry) Register(format string, d Decoder) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.codecs[normalizeFormat(format)] = d
}

func (r *Registry) Get(format string) (Decoder, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	d, ok := r.codecs[normalizeFormat(format)]
	return d, ok
}

// Lookup finds the decoder for a file by its extension.
func (r *Registry) Lookup(path string) (Decoder, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return nil, ErrUnknownFormat
	}
	d, ok := r.Get(ext)
	if !ok {
		return nil, ErrUnknownFormat
	}
	return d, nil
}

// Formats lists the registered format keys, sorted.
func (r *Registry) Formats() []string {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	keys := make([]string, 0, len(r.codecs))
	for k := range r.codecs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func normalizeFormat(format string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
}
