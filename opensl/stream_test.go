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
	"github.com/ik5/slaudio/platform"
)

func TestNewStream_ChannelBounds(t *testing.T) {
	t.Parallel()

	eng := newEngine(t, audiotest.NewPlatform())
	src := &scripted{}

	for _, channels := range []int{0, 33, -1} {
		_, err := eng.NewStream(opensl.StreamConfig{
			Output:        s16(48000, channels),
			LatencyFrames: 480,
			Data:          src.data,
		})
		assert.ErrorIs(t, err, opensl.ErrInvalidFormat, "output channels %d", channels)

		_, err = eng.NewStream(opensl.StreamConfig{
			Input:         s16(48000, channels),
			LatencyFrames: 480,
			Data:          src.data,
		})
		assert.ErrorIs(t, err, opensl.ErrInvalidFormat, "input channels %d", channels)
	}

	// A valid output does not hide an invalid input.
	_, err := eng.NewStream(opensl.StreamConfig{
		Output:        s16(48000, 2),
		Input:         s16(48000, 33),
		LatencyFrames: 480,
		Data:          src.data,
	})
	assert.ErrorIs(t, err, opensl.ErrInvalidFormat)

	for channels := 1; channels <= 32; channels++ {
		stm, err := eng.NewStream(opensl.StreamConfig{
			Output:        s16(48000, channels),
			LatencyFrames: 480,
			Data:          src.data,
		})
		require.NoError(t, err, "channels %d", channels)
		require.NoError(t, stm.Destroy())
	}
}

func TestNewStream_InvalidConfig(t *testing.T) {
	t.Parallel()

	eng := newEngine(t, audiotest.NewPlatform())
	src := &scripted{}

	tests := []struct {
		name string
		cfg  opensl.StreamConfig
		want error
	}{
		{
			name: "no direction",
			cfg:  opensl.StreamConfig{LatencyFrames: 480, Data: src.data},
			want: opensl.ErrInvalidParameter,
		},
		{
			name: "nil data callback",
			cfg:  opensl.StreamConfig{Output: s16(48000, 2), LatencyFrames: 480},
			want: opensl.ErrInvalidParameter,
		},
		{
			name: "zero latency",
			cfg:  opensl.StreamConfig{Output: s16(48000, 2), Data: src.data},
			want: opensl.ErrInvalidParameter,
		},
		{
			name: "zero rate",
			cfg:  opensl.StreamConfig{Output: s16(0, 2), LatencyFrames: 480, Data: src.data},
			want: opensl.ErrInvalidFormat,
		},
		{
			name: "float format",
			cfg: opensl.StreamConfig{
				Output:        &opensl.Params{Format: opensl.FormatFloat32LE, Rate: 48000, Channels: 2},
				LatencyFrames: 480,
				Data:          src.data,
			},
			want: opensl.ErrInvalidFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.NewStream(tt.cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewStream_Output(t *testing.T) {
	t.Parallel()

	p := audiotest.NewPlatform()
	eng := newEngine(t, p)
	src := &scripted{}

	stm, err := eng.NewStream(opensl.StreamConfig{
		Name:          "out",
		Output:        s16(44100, 2),
		LatencyFrames: 512,
		Data:          src.data,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = stm.Destroy() })

	assert.Equal(t, "out", stm.Name())
	assert.Equal(t, 44100, stm.OutputRate())
	assert.Equal(t, 0, stm.InputRate())
	assert.Equal(t, 512, stm.LatencyFrames())

	pl := p.LastEngine().Player()
	require.NotNil(t, pl)
	assert.Equal(t, platform.PCMFormat{Channels: 2, SampleRate: 44100, Order: platform.LittleEndian}, pl.Config.Format)
	assert.Equal(t, opensl.NBUFS, pl.Config.Buffers)

	// Primed with one silent frame and the marker reset.
	enq := pl.FakeQueue().Enqueued()
	require.Len(t, enq, 1)
	assert.Len(t, enq[0], 4)
	assert.True(t, isZero(enq[0]))
	assert.Equal(t, []time.Duration{0}, pl.Markers())
	assert.Nil(t, p.LastEngine().Recorder())
	assert.Zero(t, src.Calls())
}

func TestNewStream_RandomName(t *testing.T) {
	t.Parallel()

	eng := newEngine(t, audiotest.NewPlatform())
	src := &scripted{}

	a, err := eng.NewStream(opensl.StreamConfig{Output: s16(48000, 2), LatencyFrames: 480, Data: src.data})
	require.NoError(t, err)
	b, err := eng.NewStream(opensl.StreamConfig{Output: s16(48000, 2), LatencyFrames: 480, Data: src.data})
	require.NoError(t, err)

	assert.NotEmpty(t, a.Name())
	assert.NotEqual(t, a.Name(), b.Name())
	require.NoError(t, a.Destroy())
	require.NoError(t, b.Destroy())
}

func TestNewStream_BigEndian(t *testing.T) {
	t.Parallel()

	p := audiotest.NewPlatform()
	eng := newEngine(t, p)
	src := &scripted{}

	stm, err := eng.NewStream(opensl.StreamConfig{
		Input:         &opensl.Params{Format: opensl.FormatS16BE, Rate: 16000, Channels: 1},
		LatencyFrames: 160,
		Data:          src.data,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = stm.Destroy() })

	rec := p.LastEngine().Recorder()
	require.NotNil(t, rec)
	assert.Equal(t, platform.BigEndian, rec.Config.Format.Order)
}

func TestNewStream_PlayerRateFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		preferred int
		want      int
	}{
		{name: "preferred rate", preferred: 44100, want: 44100},
		{name: "preferred rate unavailable", preferred: 0, want: opensl.DefaultSampleRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := audiotest.NewPlatform()
			p.PreferredRate = tt.preferred
			p.Unsupported[22050] = true
			eng := newEngine(t, p)
			src := &scripted{}

			stm, err := eng.NewStream(opensl.StreamConfig{
				Output:        s16(22050, 2),
				LatencyFrames: 256,
				Data:          src.data,
			})
			require.NoError(t, err)
			t.Cleanup(func() { _ = stm.Destroy() })

			attempts := p.LastEngine().PlayerAttempts()
			require.Len(t, attempts, 2)
			assert.Equal(t, 22050, attempts[0].Format.SampleRate)
			assert.Equal(t, tt.want, attempts[1].Format.SampleRate)
			assert.Equal(t, tt.want, stm.OutputRate())
		})
	}
}

func TestNewStream_PlayerRetryFails(t *testing.T) {
	t.Parallel()

	p := audiotest.NewPlatform()
	p.Unsupported[22050] = true
	p.Unsupported[48000] = true
	eng := newEngine(t, p)
	src := &scripted{}

	_, err := eng.NewStream(opensl.StreamConfig{Output: s16(22050, 2), LatencyFrames: 256, Data: src.data})
	require.ErrorIs(t, err, opensl.ErrGeneric)
	assert.Len(t, p.LastEngine().PlayerAttempts(), 2)
}

func TestNewStream_NativeRateAPI(t *testing.T) {
	t.Parallel()

	t.Run("primary frame count", func(t *testing.T) {
		t.Parallel()

		p := audiotest.NewPlatform()
		p.Caps.APILevel = 23
		p.FrameCount = 192
		eng := newEngine(t, p)
		src := &scripted{}

		stm, err := eng.NewStream(opensl.StreamConfig{Output: s16(44100, 2), LatencyFrames: 1024, Data: src.data})
		require.NoError(t, err)
		t.Cleanup(func() { _ = stm.Destroy() })

		attempts := p.LastEngine().PlayerAttempts()
		require.Len(t, attempts, 1)
		assert.Equal(t, 48000, attempts[0].Format.SampleRate)
		assert.Equal(t, 48000, stm.OutputRate())
		assert.Equal(t, 192, stm.LatencyFrames())
	})

	t.Run("fast track fallback", func(t *testing.T) {
		t.Parallel()

		p := audiotest.NewPlatform()
		p.Caps.APILevel = 24
		p.FrameCountErr = stderrors.New("no frame count")
		eng := newEngine(t, p)
		src := &scripted{}

		stm, err := eng.NewStream(opensl.StreamConfig{Output: s16(44100, 2), LatencyFrames: 1024, Data: src.data})
		require.NoError(t, err)
		t.Cleanup(func() { _ = stm.Destroy() })

		assert.Equal(t, 440, stm.LatencyFrames())
	})
}

func TestNewStream_RecorderRateFallback(t *testing.T) {
	t.Parallel()

	t.Run("input only uses preferred rate", func(t *testing.T) {
		t.Parallel()

		p := audiotest.NewPlatform()
		p.PreferredRate = 44100
		p.Unsupported[16000] = true
		eng := newEngine(t, p)
		src := &scripted{}

		stm, err := eng.NewStream(opensl.StreamConfig{Input: s16(16000, 1), LatencyFrames: 160, Data: src.data})
		require.NoError(t, err)
		t.Cleanup(func() { _ = stm.Destroy() })

		attempts := p.LastEngine().RecorderAttempts()
		require.Len(t, attempts, 2)
		assert.Equal(t, 16000, attempts[0].Format.SampleRate)
		assert.Equal(t, 44100, attempts[1].Format.SampleRate)
		assert.Equal(t, 44100, stm.InputRate())
	})

	t.Run("duplex matches the player", func(t *testing.T) {
		t.Parallel()

		p := audiotest.NewPlatform()
		p.PreferredRate = 44100
		p.Unsupported[16000] = true
		eng := newEngine(t, p)
		src := &scripted{}

		stm, err := eng.NewStream(opensl.StreamConfig{
			Input:         s16(16000, 1),
			Output:        s16(32000, 2),
			LatencyFrames: 320,
			Data:          src.data,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = stm.Destroy() })

		assert.Equal(t, 32000, stm.OutputRate())
		assert.Equal(t, 32000, stm.InputRate())
	})
}

func TestNewStream_FailureReleases(t *testing.T) {
	t.Parallel()

	t.Run("player", func(t *testing.T) {
		t.Parallel()

		p := audiotest.NewPlatform()
		p.PlayerErr = stderrors.New("no player")
		eng := newEngine(t, p)
		src := &scripted{}

		stm, err := eng.NewStream(opensl.StreamConfig{Output: s16(48000, 2), LatencyFrames: 480, Data: src.data})
		require.ErrorIs(t, err, opensl.ErrGeneric)
		assert.Nil(t, stm)
	})

	t.Run("recorder after player", func(t *testing.T) {
		t.Parallel()

		p := audiotest.NewPlatform()
		p.RecorderErr = stderrors.New("no recorder")
		eng := newEngine(t, p)
		src := &scripted{}

		_, err := eng.NewStream(opensl.StreamConfig{
			Input:         s16(48000, 1),
			Output:        s16(48000, 2),
			LatencyFrames: 480,
			Data:          src.data,
		})
		require.ErrorIs(t, err, opensl.ErrGeneric)

		pl := p.LastEngine().Player()
		require.NotNil(t, pl)
		assert.True(t, pl.Destroyed())
	})

	t.Run("recorder retry fails", func(t *testing.T) {
		t.Parallel()

		p := audiotest.NewPlatform()
		p.Unsupported[22050] = true
		p.PreferredRate = 22050
		eng := newEngine(t, p)
		src := &scripted{}

		// Both recorder attempts are rejected.
		_, err := eng.NewStream(opensl.StreamConfig{Input: s16(22050, 1), LatencyFrames: 220, Data: src.data})
		require.ErrorIs(t, err, opensl.ErrGeneric)
		assert.Len(t, p.LastEngine().RecorderAttempts(), 2)
	})
}

func TestStream_Lifecycle(t *testing.T) {
	t.Parallel()

	p := audiotest.NewPlatform()
	eng := newEngine(t, p)
	src := &scripted{value: 1000}
	states := &stateLog{}

	stm, err := eng.NewStream(opensl.StreamConfig{
		Output:        s16(48000, 2),
		LatencyFrames: 480,
		Data:          src.data,
		State:         states.record,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, stm.Start(ctx))
	assert.ErrorIs(t, stm.Destroy(), opensl.ErrInvalidState)

	pl := p.LastEngine().Player()
	require.True(t, pl.Consume())
	assert.Equal(t, 1, src.Calls())

	require.NoError(t, stm.Stop(ctx))

	// Stopped streams only feed silence.
	require.True(t, pl.Consume())
	assert.Equal(t, 1, src.Calls())
	enq := pl.FakeQueue().Enqueued()
	assert.True(t, isZero(enq[len(enq)-1]))

	assert.Equal(t, []platform.PlayState{platform.PlayStatePlaying, platform.PlayStatePaused}, pl.States())
	assert.Equal(t, []opensl.State{opensl.StateStarted, opensl.StateStopped}, states.States())
	assert.Zero(t, pl.DeferredPauses())

	require.NoError(t, stm.Destroy())
	assert.True(t, pl.Destroyed())
	require.NoError(t, stm.Destroy())

	assert.ErrorIs(t, stm.Start(ctx), opensl.ErrInvalidState)
	assert.ErrorIs(t, stm.Stop(ctx), opensl.ErrInvalidState)
}

func TestStream_StartCanceled(t *testing.T) {
	t.Parallel()

	p := audiotest.NewPlatform()
	eng := newEngine(t, p)
	src := &scripted{}

	stm, err := eng.NewStream(opensl.StreamConfig{Output: s16(48000, 2), LatencyFrames: 480, Data: src.data})
	require.NoError(t, err)
	t.Cleanup(func() { _ = stm.Destroy() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, stm.Start(ctx), context.Canceled)
	assert.Empty(t, p.LastEngine().Player().States())
}

func TestStream_DestroyDuplex(t *testing.T) {
	t.Parallel()

	p := audiotest.NewPlatform()
	eng := newEngine(t, p)
	src := &scripted{}

	stm, err := eng.NewStream(opensl.StreamConfig{
		Input:         s16(48000, 1),
		Output:        s16(48000, 2),
		LatencyFrames: 480,
		Data:          src.data,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, stm.Start(ctx))
	require.NoError(t, stm.Stop(ctx))
	require.NoError(t, stm.Destroy())

	native := p.LastEngine()
	assert.True(t, native.Player().Destroyed())
	assert.True(t, native.Recorder().Destroyed())
	assert.Equal(t, 1, native.Recorder().FakeQueue().Cleared())
	assert.Equal(t, []platform.RecordState{platform.RecordStateRecording, platform.RecordStatePaused}, native.Recorder().States())
}

func TestStream_DestroyWithCallbacksInFlight(t *testing.T) {
	t.Parallel()

	p := audiotest.NewPlatform()
	eng := newEngine(t, p)
	src := &scripted{}

	stm, err := eng.NewStream(opensl.StreamConfig{
		Input:         s16(48000, 1),
		Output:        s16(48000, 2),
		LatencyFrames: 480,
		Data:          src.data,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, stm.Start(ctx))
	require.NoError(t, stm.Stop(ctx))

	// Pausing did not wait for these callbacks, Destroy does.
	native := p.LastEngine()
	pl, rec := native.Player(), native.Recorder()
	played := len(pl.FakeQueue().Enqueued())
	pl.BeforeDestroy = pl.FakeQueue().Fire
	rec.BeforeDestroy = rec.FakeQueue().Fire

	require.NotPanics(t, func() { require.NoError(t, stm.Destroy()) })

	assert.True(t, pl.Destroyed())
	assert.True(t, rec.Destroyed())
	assert.Len(t, pl.FakeQueue().Enqueued(), played+1)
	assert.True(t, isZero(pl.FakeQueue().Enqueued()[played]))
	assert.Equal(t, 1, rec.FakeQueue().Pending())
	assert.Zero(t, src.Calls())
}
