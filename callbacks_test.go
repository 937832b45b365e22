// SPDX-License-Identifier: EPL-2.0

package slaudio_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/slaudio"
	"github.com/ik5/slaudio/internal/audiotest"
	"github.com/ik5/slaudio/opensl"
)

type states struct {
	mu  sync.Mutex
	got []opensl.State
}

func (s *states) record(st opensl.State) {
	s.mu.Lock()
	s.got = append(s.got, st)
	s.mu.Unlock()
}

func (s *states) has(want opensl.State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.got {
		if st == want {
			return true
		}
	}
	return false
}

type failingSource struct {
	*audiotest.MockSource
	err error
}

func (f *failingSource) ReadFrames([]int16) (int, error) { return 0, f.err }

func TestPlaybackParams(t *testing.T) {
	t.Parallel()

	p := slaudio.PlaybackParams(audiotest.NewSilentSource(22050, 2, 10))
	assert.Equal(t, &opensl.Params{Format: opensl.FormatS16NE, Rate: 22050, Channels: 2}, p)
}

func TestSourceCallback(t *testing.T) {
	t.Parallel()

	src := audiotest.NewConstantSource(8000, 2, 5, 0.5)
	cb := slaudio.SourceCallback(src, nil)

	out := make([]int16, 8)
	assert.Equal(t, 4, cb(nil, out, 4))
	assert.Equal(t, int16(16383), out[7])

	clear(out)
	assert.Equal(t, 1, cb(nil, out, 4))
	assert.Equal(t, []int16{16383, 16383, 0, 0}, out[:4])

	// The source is finished; the stream keeps draining.
	assert.Zero(t, cb(nil, out, 4))
}

func TestSourceCallback_ReadError(t *testing.T) {
	t.Parallel()

	boom := errors.New("corrupt")
	src := &failingSource{MockSource: audiotest.NewSilentSource(8000, 1, 10), err: boom}

	var got error
	cb := slaudio.SourceCallback(src, func(err error) { got = err })
	assert.Equal(t, -1, cb(nil, make([]int16, 4), 4))
	assert.ErrorIs(t, got, boom)
}

func TestCaptureCallback(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cb := slaudio.CaptureCallback(&buf, 5, nil)

	assert.Equal(t, 3, cb([]int16{1, -1, 2, -2, 3, -3}, nil, 3))
	assert.Equal(t, 2, cb([]int16{4, -4, 5, -5, 6, -6}, nil, 3))
	assert.Zero(t, cb([]int16{7, -7}, nil, 1))

	samples := make([]int16, buf.Len()/2)
	require.NoError(t, binary.Read(&buf, binary.LittleEndian, samples))
	assert.Equal(t, []int16{1, -1, 2, -2, 3, -3, 4, -4, 5, -5}, samples)
}

type fullWriter struct{}

func (fullWriter) Write([]byte) (int, error) { return 0, io.ErrShortWrite }

func TestCaptureCallback_WriteError(t *testing.T) {
	t.Parallel()

	var errs int
	cb := slaudio.CaptureCallback(fullWriter{}, 0, func(error) { errs++ })
	assert.Equal(t, 2, cb([]int16{1, 2}, nil, 2))
	assert.Equal(t, 1, errs)
}

func TestLoopbackCallback(t *testing.T) {
	t.Parallel()

	out := make([]int16, 4)
	assert.Equal(t, 2, slaudio.LoopbackCallback(0.5)([]int16{100, -100, 200, -200}, out, 2))
	assert.Equal(t, []int16{50, -50, 100, -100}, out)

	// Mono input into stereo output leaves the second channel silent.
	out = []int16{9, 9, 9, 9}
	assert.Equal(t, 2, slaudio.LoopbackCallback(1)([]int16{7, 8}, out, 2))
	assert.Equal(t, []int16{7, 0, 8, 0}, out)

	out = []int16{9, 9}
	assert.Equal(t, 1, slaudio.LoopbackCallback(1)(nil, out, 1))
	assert.Equal(t, []int16{0, 0}, out)
}

func TestSourceCallback_DrainsStream(t *testing.T) {
	t.Parallel()

	p := audiotest.NewPlatform()
	eng, err := opensl.Init(p)
	require.NoError(t, err)
	defer eng.Destroy()

	src := audiotest.NewConstantSource(48000, 2, 1000, 0.25)
	st := &states{}
	stm, err := eng.NewStream(opensl.StreamConfig{
		Output:        slaudio.PlaybackParams(src),
		LatencyFrames: 480,
		Data:          slaudio.SourceCallback(src, nil),
		State:         st.record,
	})
	require.NoError(t, err)
	require.NoError(t, stm.Start(context.Background()))

	pl := p.LastEngine().Player()
	for i := 0; i < 10 && !st.has(opensl.StateDrained); i++ {
		require.True(t, pl.Consume())
	}
	assert.True(t, st.has(opensl.StateDrained))

	pos, err := stm.Position()
	require.NoError(t, err)
	assert.LessOrEqual(t, pos, uint64(1000))
	require.NoError(t, stm.Destroy())
}

func TestCaptureCallback_DrainsStream(t *testing.T) {
	t.Parallel()

	p := audiotest.NewPlatform()
	eng, err := opensl.Init(p)
	require.NoError(t, err)
	defer eng.Destroy()

	var sink bytes.Buffer
	st := &states{}
	stm, err := eng.NewStream(opensl.StreamConfig{
		Input:         &opensl.Params{Format: opensl.FormatS16LE, Rate: 48000, Channels: 1},
		LatencyFrames: 480,
		Data:          slaudio.CaptureCallback(&sink, 600, nil),
		State:         st.record,
	})
	require.NoError(t, err)
	require.NoError(t, stm.Start(context.Background()))

	rec := p.LastEngine().Recorder()
	frame := []byte{0x10, 0x00}
	require.True(t, rec.Capture(bytes.Repeat(frame, 480)))
	require.True(t, rec.Capture(bytes.Repeat(frame, 480)))
	assert.Equal(t, 600*2, sink.Len())

	require.True(t, rec.Capture(bytes.Repeat(frame, 480)))
	assert.True(t, st.has(opensl.StateDrained))
	require.NoError(t, stm.Destroy())
}
