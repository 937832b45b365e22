// SPDX-License-Identifier: EPL-2.0

// Package config loads slaudio settings from defaults, an optional config
// file, SLAUDIO_* environment variables and bound command line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/ik5/slaudio/internal/logger"
)

// EnvPrefix is prepended to environment variables, SLAUDIO_STREAM_RATE maps to
// stream.rate.
const EnvPrefix = "SLAUDIO"

type Settings struct {
	Log     LogSettings     `mapstructure:"log"`
	Stream  StreamSettings  `mapstructure:"stream"`
	Metrics MetricsSettings `mapstructure:"metrics"`
	Device  DeviceSettings  `mapstructure:"device"`
}

type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StreamSettings struct {
	LatencyFrames int     `mapstructure:"latency_frames"`
	Rate          int     `mapstructure:"rate"`
	Channels      int     `mapstructure:"channels"`
	Volume        float64 `mapstructure:"volume"`
}

type MetricsSettings struct {
	// Listen is the address of the /metrics endpoint, disabled when empty.
	Listen string `mapstructure:"listen"`
}

type DeviceSettings struct {
	// Backend is passed to miniaudio, empty selects its default order.
	Backend string `mapstructure:"backend"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("stream.latency_frames", 1024)
	v.SetDefault("stream.rate", 48000)
	v.SetDefault("stream.channels", 2)
	v.SetDefault("stream.volume", 1.0)
	v.SetDefault("metrics.listen", "")
	v.SetDefault("device.backend", "")
}

// Load reads the settings through v. configFile is optional.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// ValidationError collects every rejected setting.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("invalid settings: %s", strings.Join(ve.Errors, "; "))
}

var ErrInvalidSettings = errors.New("invalid settings")

func (ve ValidationError) Is(target error) bool { return target == ErrInvalidSettings }

// Validate rejects out-of-range values.
func (s *Settings) Validate() error {
	ve := ValidationError{}

	if _, err := logger.ParseLevel(s.Log.Level); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if _, err := logger.ParseFormat(s.Log.Format); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if s.Stream.LatencyFrames < 1 || s.Stream.LatencyFrames > 96000 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("stream.latency_frames %d out of range [1,96000]", s.Stream.LatencyFrames))
	}
	if s.Stream.Rate < 1000 || s.Stream.Rate > 384000 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("stream.rate %d out of range [1000,384000]", s.Stream.Rate))
	}
	if s.Stream.Channels < 1 || s.Stream.Channels > 32 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("stream.channels %d out of range [1,32]", s.Stream.Channels))
	}
	if s.Stream.Volume < 0 || s.Stream.Volume > 1 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("stream.volume %g out of range [0,1]", s.Stream.Volume))
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// Logger builds the logger described by the log settings.
func (s *Settings) Logger(w io.Writer) *slog.Logger {
	level, _ := logger.ParseLevel(s.Log.Level)
	format, _ := logger.ParseFormat(s.Log.Format)
	return logger.NewSlog(w, level, format)
}
