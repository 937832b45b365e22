// SPDX-License-Identifier: EPL-2.0

// Package cli implements the slaudio command line.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ik5/slaudio/internal/config"
	"github.com/ik5/slaudio/platform"
	"github.com/ik5/slaudio/platform/miniaudio"
)

// PlatformFactory opens the audio platform for a command.
type PlatformFactory func(s *config.Settings, log *slog.Logger) (platform.Platform, error)

type Option func(*app)

// WithPlatform replaces the miniaudio platform.
func WithPlatform(f PlatformFactory) Option {
	return func(a *app) { a.newPlatform = f }
}

// flagKeys maps command line flags to their configuration keys.
var flagKeys = map[string]string{
	"log-level":      "log.level",
	"log-format":     "log.format",
	"latency-frames": "stream.latency_frames",
	"rate":           "stream.rate",
	"channels":       "stream.channels",
	"volume":         "stream.volume",
	"metrics-listen": "metrics.listen",
	"backend":        "device.backend",
}

// NewRootCommand builds the slaudio command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &app{
		v:           viper.New(),
		newPlatform: miniaudioPlatform,
	}
	for _, opt := range opts {
		opt(a)
	}

	rootCmd := &cobra.Command{
		Use:           "slaudio",
		Short:         "Play, record and loop back audio through buffer-queue streams",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	setupFlags(rootCmd, a)

	rootCmd.AddCommand(
		newPlayCommand(a),
		newRecordCommand(a),
		newDuplexCommand(a),
		newInfoCommand(a),
		newConvertCommand(a),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := bindFlags(a.v, cmd.Flags()); err != nil {
			return err
		}
		return a.setup(cmd.ErrOrStderr())
	}

	return rootCmd
}

func setupFlags(rootCmd *cobra.Command, a *app) {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "Path to a configuration file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text, json)")
	flags.Int("latency-frames", 1024, "Frames per native buffer")
	flags.String("metrics-listen", "", "Serve Prometheus metrics on this address")
	flags.String("backend", "", "Comma separated miniaudio backends to try")
}

// bindFlags binds every known flag of the running command to viper. Local
// flags are bound here rather than at construction so that commands sharing
// a key do not overwrite each other's binding.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil {
			err = fmt.Errorf("error binding flag %s: %w", f.Name, bindErr)
		}
	})
	return err
}

func miniaudioPlatform(s *config.Settings, log *slog.Logger) (platform.Platform, error) {
	backends, err := miniaudio.ParseBackends(s.Device.Backend)
	if err != nil {
		return nil, err
	}
	return miniaudio.New(miniaudio.WithBackends(backends...), miniaudio.WithLogger(log)), nil
}
