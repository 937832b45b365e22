// SPDX-License-Identifier: EPL-2.0

package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/slaudio/internal/logger"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    logger.Level
		wantErr bool
	}{
		{in: "debug", want: logger.LevelDebug},
		{in: " INFO ", want: logger.LevelInfo},
		{in: "warning", want: logger.LevelWarn},
		{in: "error", want: logger.LevelError},
		{in: "", want: logger.LevelInfo},
		{in: "trace", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := logger.ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, err := logger.ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, logger.FormatJSON, f)

	f, err = logger.ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, logger.FormatText, f)

	_, err = logger.ParseFormat("xml")
	assert.Error(t, err)
}

func TestNew_JSONFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelDebug, logger.FormatJSON).
		Module("opensl").
		Module("stream").
		With(logger.String("stream", "s1"))

	log.Info("configured",
		logger.Int("rate", 48000),
		logger.Bool("duplex", true),
		logger.Duration("latency", 20*time.Millisecond),
		logger.Error(errors.New("boom")))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "configured", entry["msg"])
	assert.Equal(t, "opensl.stream", entry["module"])
	assert.Equal(t, "s1", entry["stream"])
	assert.InDelta(t, 48000, entry["rate"], 0)
	assert.Equal(t, true, entry["duplex"])
	assert.Equal(t, "boom", entry["error"])
}

func TestNew_LevelFilter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelWarn, logger.FormatText)

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.False(t, log.Enabled(logger.LevelInfo))
	assert.True(t, log.Enabled(logger.LevelError))
}

func TestFromSlog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))
	logger.FromSlog(base).Module("engine").Info("ready")
	assert.True(t, strings.Contains(buf.String(), "module=engine"))

	// nil falls back to a discarding logger
	assert.NotPanics(t, func() { logger.FromSlog(nil).Error("dropped") })
}

func TestNewNop(t *testing.T) {
	t.Parallel()

	log := logger.NewNop()
	assert.False(t, log.Enabled(logger.LevelError))
	assert.NotPanics(t, func() {
		log.With(logger.Any("k", []int{1})).Module("x").Error("nothing", logger.Error(nil))
	})
}

func TestNewSlog_Text(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := logger.NewSlog(&buf, logger.LevelWarn, logger.FormatText)
	l.Info("dropped")
	l.Warn("kept", "rate", 48000)

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "msg=kept")
	assert.Contains(t, out, "rate=48000")
}
