// SPDX-License-Identifier: EPL-2.0

package cli

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ik5/slaudio"
)

func newInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>...",
		Short: "Print format details of audio files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if err := a.info(cmd.OutOrStdout(), path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) info(out io.Writer, path string) error {
	src, err := slaudio.OpenFile(slaudio.DefaultRegistry(), path)
	if err != nil {
		return err
	}
	defer src.Close()

	pcm, err := slaudio.ReadAll(src, 0)
	if err != nil {
		return err
	}

	frames := len(pcm) / src.Channels()
	duration := time.Duration(frames) * time.Second / time.Duration(src.SampleRate())
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	_, err = fmt.Fprintf(out, "%s: format=%s rate=%d channels=%d frames=%d duration=%s peak=%s\n",
		path, format, src.SampleRate(), src.Channels(), frames, duration, peakDBFS(pcm))
	return err
}

// peakDBFS formats the loudest sample relative to full scale.
func peakDBFS(pcm []int16) string {
	peak := 0
	for _, s := range pcm {
		peak = max(peak, abs(int(s)))
	}
	if peak == 0 {
		return "-inf"
	}
	return fmt.Sprintf("%.1fdBFS", 20*math.Log10(float64(peak)/32768))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
