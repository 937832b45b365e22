// SPDX-License-Identifier: EPL-2.0

package opensl_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/slaudio/internal/audiotest"
	"github.com/ik5/slaudio/opensl"
)

func TestPosition(t *testing.T) {
	t.Parallel()

	p := audiotest.NewPlatform()
	clock := newFakeClock()
	src := &scripted{}
	states := &stateLog{}
	stm, pl := startOutput(t, p, src, states, opensl.WithClock(clock.Now))

	pos, err := stm.Position()
	require.NoError(t, err)
	assert.Zero(t, pos, "inside the mixer latency")

	// Primer plus five 10ms buffers played, six written.
	for range 6 {
		require.True(t, pl.Consume())
	}

	pos, err = stm.Position()
	require.NoError(t, err)
	assert.Equal(t, uint64(1440), pos)

	// Unchanged platform position is compensated with the clock.
	clock.Advance(5 * time.Millisecond)
	pos, err = stm.Position()
	require.NoError(t, err)
	assert.Equal(t, uint64(1680), pos)

	// Never past what was written.
	clock.Advance(time.Second)
	pos, err = stm.Position()
	require.NoError(t, err)
	assert.Equal(t, uint64(2880), pos)

	// Holds the over compensated estimate once the platform catches up.
	pl.SetPosition(52 * time.Millisecond)
	again, err := stm.Position()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, again, pos)
}

func TestPosition_Monotonic(t *testing.T) {
	t.Parallel()

	p := audiotest.NewPlatform()
	clock := newFakeClock()
	src := &scripted{}
	states := &stateLog{}
	stm, pl := startOutput(t, p, src, states, opensl.WithClock(clock.Now))

	var last uint64
	for i := range 50 {
		if i%3 == 0 {
			require.True(t, pl.Consume())
		}
		clock.Advance(4 * time.Millisecond)

		pos, err := stm.Position()
		require.NoError(t, err)
		require.GreaterOrEqual(t, pos, last, "step %d", i)
		last = pos
	}
}

func TestPosition_Errors(t *testing.T) {
	t.Parallel()

	t.Run("capture only", func(t *testing.T) {
		t.Parallel()

		src := &scripted{}
		states := &stateLog{}
		stm, _ := startInput(t, audiotest.NewPlatform(), src, states)

		_, err := stm.Position()
		assert.ErrorIs(t, err, opensl.ErrNotSupported)
	})

	t.Run("platform position", func(t *testing.T) {
		t.Parallel()

		src := &scripted{}
		states := &stateLog{}
		stm, pl := startOutput(t, audiotest.NewPlatform(), src, states)
		pl.PositionErr = stderrors.New("no position")

		_, err := stm.Position()
		assert.ErrorIs(t, err, opensl.ErrGeneric)
	})

	t.Run("mixer latency", func(t *testing.T) {
		t.Parallel()

		p := audiotest.NewPlatform()
		src := &scripted{}
		states := &stateLog{}
		stm, _ := startOutput(t, p, src, states)
		p.LatencyErr = stderrors.New("no latency")

		_, err := stm.Position()
		assert.ErrorIs(t, err, opensl.ErrGeneric)
		_, err = stm.Latency()
		assert.ErrorIs(t, err, opensl.ErrGeneric)
	})
}

func TestLatency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cfg    opensl.StreamConfig
		mixer  time.Duration
		frames uint32
	}{
		{
			name:   "output at device rate",
			cfg:    opensl.StreamConfig{Output: s16(48000, 2), LatencyFrames: 480},
			mixer:  20 * time.Millisecond,
			frames: 480 + 960,
		},
		{
			name:   "output at stream rate",
			cfg:    opensl.StreamConfig{Output: s16(44100, 2), LatencyFrames: 480},
			mixer:  20 * time.Millisecond,
			frames: 480 + 882,
		},
		{
			name:   "input only",
			cfg:    opensl.StreamConfig{Input: s16(16000, 1), LatencyFrames: 160},
			mixer:  20 * time.Millisecond,
			frames: 160 + 320,
		},
		{
			name:   "no mixer latency",
			cfg:    opensl.StreamConfig{Output: s16(48000, 1), LatencyFrames: 256},
			frames: 256,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := audiotest.NewPlatform()
			p.MixerLatency = tt.mixer
			eng := newEngine(t, p)
			src := &scripted{}

			cfg := tt.cfg
			cfg.Data = src.data
			stm, err := eng.NewStream(cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = stm.Destroy() })

			got, err := stm.Latency()
			require.NoError(t, err)
			assert.Equal(t, tt.frames, got)
		})
	}
}

func TestPosition_AfterStop(t *testing.T) {
	t.Parallel()

	p := audiotest.NewPlatform()
	clock := newFakeClock()
	src := &scripted{}
	states := &stateLog{}
	stm, pl := startOutput(t, p, src, states, opensl.WithClock(clock.Now))

	for range 4 {
		require.True(t, pl.Consume())
	}
	require.NoError(t, stm.Stop(context.Background()))

	before, err := stm.Position()
	require.NoError(t, err)

	// Silence after stop is not counted as written.
	for range 4 {
		require.True(t, pl.Consume())
	}
	clock.Advance(time.Second)
	after, err := stm.Position()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, after, before)
	assert.LessOrEqual(t, after, uint64(4*480))
}
