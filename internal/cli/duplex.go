// SPDX-License-Identifier: EPL-2.0

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ik5/slaudio"
	"github.com/ik5/slaudio/opensl"
)

func newDuplexCommand(a *app) *cobra.Command {
	var (
		duration time.Duration
		gain     float64
	)

	cmd := &cobra.Command{
		Use:   "duplex",
		Short: "Loop the input device back to the output device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), func(ctx context.Context) error {
				return a.duplex(ctx, duration, float32(gain))
			})
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long, 0 runs until interrupted")
	cmd.Flags().Float64Var(&gain, "gain", 1, "Gain applied to the looped back signal")
	cmd.Flags().Int("rate", 48000, "Sample rate in Hz")
	cmd.Flags().Int("channels", 2, "Number of channels")
	return cmd
}

func (a *app) duplex(ctx context.Context, duration time.Duration, gain float32) error {
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	eng, err := a.openEngine()
	if err != nil {
		return err
	}
	defer eng.Destroy()

	params := &opensl.Params{
		Format:   opensl.FormatS16NE,
		Rate:     a.settings.Stream.Rate,
		Channels: a.settings.Stream.Channels,
	}

	waiter := newStateWaiter()
	stm, err := eng.NewStream(opensl.StreamConfig{
		Name:          streamName("duplex"),
		Input:         params,
		Output:        params,
		LatencyFrames: a.settings.Stream.LatencyFrames,
		Data:          slaudio.LoopbackCallback(gain),
		State:         waiter.callback,
	})
	if err != nil {
		return fmt.Errorf("creating duplex stream: %w", err)
	}
	defer a.closeStream(stm)

	if err := stm.Start(ctx); err != nil {
		return err
	}
	if latency, err := stm.Latency(); err == nil {
		a.log.Info("loopback running", "stream", stm.Name(), "latency_frames", latency, "device_rate", stm.InputRate())
	}

	if err := waiter.wait(ctx); err != nil && !interrupted(err) {
		return err
	}
	return nil
}
