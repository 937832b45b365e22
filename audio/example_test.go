// SPDX-License-Identifier: EPL-2.0

package audio_test

import (
	"fmt"
	"io"

	"github.com/ik5/slaudio/audio"
	"github.com/ik5/slaudio/internal/audiotest"
)

// Example_monoMixer demonstrates downmixing a stereo source.
func Example_monoMixer() {
	source := audiotest.NewSineSource(44100, 2, 4410, 440.0) // 100ms stereo tone
	mono := audio.NewMonoMixer(source)

	fmt.Printf("Channels: %d\n", mono.Channels())

	buf := make([]int16, 1024)
	total := 0
	for {
		n, err := mono.ReadFrames(buf)
		total += n
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
	}
	fmt.Printf("Frames: %d\n", total)

	// Output:
	// Channels: 1
	// Frames: 4410
}

type toneDecoder struct{}

func (toneDecoder) Decode(io.Reader) (audio.Source, error) {
	return audiotest.NewSilentSource(8000, 1, 8000), nil
}

// Example_registry demonstrates looking up a decoder by file name.
func Example_registry() {
	registry := audio.NewRegistry()
	registry.Register("wav", toneDecoder{})

	if _, err := registry.Lookup("greeting.WAV"); err == nil {
		fmt.Println("wav: found")
	}
	if _, err := registry.Lookup("greeting.flac"); err != nil {
		fmt.Println("flac:", err)
	}
	fmt.Println(registry.Formats())

	// Output:
	// wav: found
	// flac: no decoder registered for format
	// [wav]
}
