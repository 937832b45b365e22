// SPDX-License-Identifier: EPL-2.0

package cli

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/smallnest/ringbuffer"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ik5/slaudio"
	"github.com/ik5/slaudio/formats/wav"
	"github.com/ik5/slaudio/opensl"
	"github.com/ik5/slaudio/utils"
)

const (
	// ringSeconds of capture the ring buffer holds before dropping audio.
	ringSeconds  = 2
	drainEvery   = 10 * time.Millisecond
	drainBufSize = 16 * 1024
)

func newRecordCommand(a *app) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "record <out.wav|->",
		Short: "Record from the default input device into a WAV file",
		Long:  "Record 16-bit PCM until the duration elapses or the command is interrupted. Use - to write the WAV to stdout.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), func(ctx context.Context) error {
				return a.record(ctx, args[0], duration, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long, 0 records until interrupted")
	cmd.Flags().Int("rate", 48000, "Sample rate in Hz")
	cmd.Flags().Int("channels", 2, "Number of channels")
	return cmd
}

// frameSink receives captured frames.
type frameSink interface {
	WriteFrames(samples []int16) error
	Close() error
}

type fileSink struct {
	*wav.Writer
	f *os.File
}

func (s *fileSink) Close() error {
	err := s.Writer.Close()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// memorySink keeps everything and writes the WAV in one go on Close, for
// destinations that cannot seek.
type memorySink struct {
	w        io.Writer
	rate     int
	channels int
	samples  []int16
}

func (s *memorySink) WriteFrames(samples []int16) error {
	s.samples = append(s.samples, samples...)
	return nil
}

func (s *memorySink) Close() error {
	return wav.WriteWAV16(s.w, s.rate, s.channels, s.samples)
}

func openSink(path string, rate, channels int, stdout io.Writer) (frameSink, error) {
	if path == "-" {
		return &memorySink{w: stdout, rate: rate, channels: channels}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := wav.NewWriter(f, rate, channels)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileSink{Writer: w, f: f}, nil
}

func (a *app) record(ctx context.Context, path string, duration time.Duration, stdout io.Writer) error {
	rate := a.settings.Stream.Rate
	channels := a.settings.Stream.Channels
	frameBytes := channels * 2

	sink, err := openSink(path, rate, channels, stdout)
	if err != nil {
		return err
	}

	ring := ringbuffer.New(ringSeconds * rate * frameBytes)
	var dropped atomic.Int64
	maxFrames := int(int64(duration) * int64(rate) / int64(time.Second))

	eng, err := a.openEngine()
	if err != nil {
		sink.Close()
		return err
	}
	defer eng.Destroy()

	waiter := newStateWaiter()
	stm, err := eng.NewStream(opensl.StreamConfig{
		Name:          streamName("record"),
		Input:         &opensl.Params{Format: opensl.FormatS16LE, Rate: rate, Channels: channels},
		LatencyFrames: a.settings.Stream.LatencyFrames,
		Data:          slaudio.CaptureCallback(ring, maxFrames, func(error) { dropped.Add(1) }),
		State:         waiter.callback,
	})
	if err != nil {
		sink.Close()
		return fmt.Errorf("creating capture stream: %w", err)
	}

	captured := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(captured)
		defer a.closeStream(stm)

		if err := stm.Start(gctx); err != nil {
			return err
		}
		a.log.Info("recording", "path", path, "stream", stm.Name(), "rate", rate, "channels", channels, "duration", duration)

		if err := waiter.wait(gctx); err != nil && !interrupted(err) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return drainRing(ring, sink, frameBytes, captured)
	})

	err = g.Wait()
	if cerr := sink.Close(); err == nil {
		err = cerr
	}
	if n := dropped.Load(); n > 0 {
		a.log.Warn("capture buffers dropped", "count", n)
	}
	return err
}

// drainRing moves whole frames from ring into sink until done is closed and
// the ring is empty.
func drainRing(ring *ringbuffer.RingBuffer, sink frameSink, frameBytes int, done <-chan struct{}) error {
	buf := make([]byte, drainBufSize)
	samples := make([]int16, drainBufSize/2)
	pending := 0

	ticker := time.NewTicker(drainEvery)
	defer ticker.Stop()

	for {
		n, err := ring.Read(buf[pending:])
		if err != nil && !errors.Is(err, ringbuffer.ErrIsEmpty) {
			return fmt.Errorf("reading capture ring: %w", err)
		}

		avail := pending + n
		whole := avail / frameBytes * frameBytes
		if whole > 0 {
			count := utils.DecodePCM16(samples, buf[:whole], binary.LittleEndian)
			if err := sink.WriteFrames(samples[:count]); err != nil {
				return err
			}
			pending = copy(buf, buf[whole:avail])
		} else {
			pending = avail
		}

		if n > 0 {
			continue
		}
		select {
		case <-done:
			if ring.IsEmpty() {
				return nil
			}
		case <-ticker.C:
		}
	}
}
