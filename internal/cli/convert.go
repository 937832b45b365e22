// SPDX-License-Identifier: EPL-2.0

package cli

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ik5/slaudio"
	"github.com/ik5/slaudio/audio"
	"github.com/ik5/slaudio/formats/wav"
	"github.com/ik5/slaudio/resampler"
	"github.com/ik5/slaudio/utils"
)

const convertBlockFrames = 4096

func newConvertCommand(a *app) *cobra.Command {
	var (
		rate int
		mono bool
	)

	cmd := &cobra.Command{
		Use:   "convert <input> <output.wav>",
		Short: "Resample an audio file into a 16-bit WAV",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.convert(args[0], args[1], rate, mono)
		},
	}
	cmd.Flags().IntVar(&rate, "to-rate", 8000, "Output sample rate in Hz")
	cmd.Flags().BoolVar(&mono, "mono", true, "Downmix to a single channel")
	return cmd
}

// convert pulls in through the stream resampler exactly as a playback
// device at the target rate would, and writes what comes out.
func (a *app) convert(in, out string, rate int, mono bool) error {
	file, err := slaudio.OpenFile(slaudio.DefaultRegistry(), in)
	if err != nil {
		return err
	}
	defer file.Close()

	var src audio.Source = file
	if mono {
		src = audio.NewMonoMixer(file)
	}
	ch := src.Channels()

	rs, err := resampler.New(resampler.Config{
		Output:     &resampler.Params{Channels: ch, Rate: rate, Order: binary.LittleEndian},
		TargetRate: src.SampleRate(),
		Callback:   resampler.DataCallback(slaudio.SourceCallback(src, nil)),
	})
	if err != nil {
		return err
	}
	defer rs.Close()

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := wav.NewWriter(f, rate, ch)
	if err != nil {
		return err
	}

	buf := make([]byte, convertBlockFrames*ch*2)
	pcm := make([]int16, convertBlockFrames*ch)
	for {
		n, err := rs.Fill(nil, nil, buf, convertBlockFrames)
		if err != nil {
			return fmt.Errorf("resampling %s: %w", in, err)
		}
		count := utils.DecodePCM16(pcm, buf[:n*ch*2], binary.LittleEndian)
		if err := w.WriteFrames(pcm[:count]); err != nil {
			return err
		}
		if n < convertBlockFrames {
			break
		}
	}

	if err := w.Close(); err != nil {
		return err
	}
	a.log.Info("converted", "input", in, "output", out, "from_rate", src.SampleRate(), "to_rate", rate, "frames", w.Frames())
	return nil
}
