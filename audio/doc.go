// SPDX-License-Identifier: EPL-2.0

// Package audio provides the decoded audio primitives the player works with.
//
// This package contains:
//   - Source interface for decoded 16-bit audio
//   - MonoMixer for channel mixing
//   - Format registry for decoder registration
//
// # Source Interface
//
//	type Source interface {
//	    SampleRate() int
//	    Channels() int
//	    ReadFrames(dst []int16) (int, error)
//	    Close() error
//	}
//
// Frames are interleaved signed 16-bit samples, the format the output stream
// data callback exchanges. Sources are read at their own rate; the stream
// converts to the device rate.
//
// # Channel Mixing
//
// The MonoMixer converts multi-channel audio to mono by averaging:
//
//	mono := audio.NewMonoMixer(source)
//	buf := make([]int16, 4096)
//	n, err := mono.ReadFrames(buf)
//
// # Format Registry
//
// The registry maps format keys, usually file extensions, to decoders:
//
//	registry := audio.NewRegistry()
//	registry.Register("wav", wav.Decoder{})
//	decoder, err := registry.Lookup("song.WAV")
//
// # Error Handling
//
// ReadFrames returns io.EOF when no more data is available, possibly together
// with the final frames:
//
//	for {
//	    n, err := source.ReadFrames(buf)
//	    process(buf[:n*source.Channels()])
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	}
package audio
