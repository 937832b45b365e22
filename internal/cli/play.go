// SPDX-License-Identifier: EPL-2.0

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ik5/slaudio"
	"github.com/ik5/slaudio/audio"
	"github.com/ik5/slaudio/opensl"
)

func newPlayCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Play an audio file",
		Long:  "Decode a wav, mp3, ogg or aiff file and play it until it drains.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), func(ctx context.Context) error {
				return a.play(ctx, args[0])
			})
		},
	}
	cmd.Flags().Float64("volume", 1, "Playback volume in [0,1]")
	return cmd
}

func (a *app) play(ctx context.Context, path string) error {
	file, err := slaudio.OpenFile(slaudio.DefaultRegistry(), path)
	if err != nil {
		return err
	}
	defer file.Close()

	var src audio.Source = file
	if src.Channels() > 2 {
		src = audio.NewMonoMixer(file)
	}

	eng, err := a.openEngine()
	if err != nil {
		return err
	}
	defer eng.Destroy()

	waiter := newStateWaiter()
	stm, err := eng.NewStream(opensl.StreamConfig{
		Name:          streamName("play"),
		Output:        slaudio.PlaybackParams(src),
		LatencyFrames: a.settings.Stream.LatencyFrames,
		Data: slaudio.SourceCallback(src, func(err error) {
			a.log.Error("decoding failed", "path", path, "error", err)
		}),
		State: waiter.callback,
	})
	if err != nil {
		return fmt.Errorf("creating playback stream: %w", err)
	}
	defer a.closeStream(stm)

	if err := stm.SetVolume(float32(a.settings.Stream.Volume)); err != nil {
		return err
	}
	if err := stm.Start(ctx); err != nil {
		return err
	}

	a.log.Info("playing",
		"path", path,
		"stream", stm.Name(),
		"rate", src.SampleRate(),
		"channels", src.Channels(),
		"device_rate", stm.OutputRate())

	err = waiter.wait(ctx)
	if pos, posErr := stm.Position(); posErr == nil {
		a.log.Info("playback finished", "stream", stm.Name(), "frames", pos)
	}
	if interrupted(err) {
		return nil
	}
	return err
}
