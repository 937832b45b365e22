// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockMP3Reader hands out little-endian PCM in uneven pieces the way
// gomp3.Decoder does across frame boundaries.
type mockMP3Reader struct {
	sampleRate int
	pcm        []byte
	step       int
	err        error
}

func newMock(rate, step int, samples ...int16) *mockMP3Reader {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, samples)
	return &mockMP3Reader{sampleRate: rate, pcm: b.Bytes(), step: step}
}

func (m *mockMP3Reader) SampleRate() int { return m.sampleRate }

func (m *mockMP3Reader) Read(buf []byte) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	if len(m.pcm) == 0 {
		return 0, io.EOF
	}
	n := copy(buf[:min(len(buf), m.step)], m.pcm)
	m.pcm = m.pcm[n:]
	return n, nil
}

func TestSource_ReadFrames(t *testing.T) {
	t.Parallel()

	src := &source{dec: newMock(44100, 3, 1, -1, 2, -2, 3, -3)}
	assert.Equal(t, 44100, src.SampleRate())
	assert.Equal(t, 2, src.Channels())

	dst := make([]int16, 4)
	n, err := src.ReadFrames(dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int16{1, -1, 2, -2}, dst)

	n, err = src.ReadFrames(dst)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int16{3, -3}, dst[:2])

	n, err = src.ReadFrames(dst)
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, n)
}

func TestSource_DropsTrailingPartialFrame(t *testing.T) {
	t.Parallel()

	m := newMock(8000, 64, 10, 20)
	m.pcm = append(m.pcm, 0x01)
	src := &source{dec: m}

	dst := make([]int16, 8)
	n, err := src.ReadFrames(dst)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int16{10, 20}, dst[:2])
}

func TestSource_ShortDestination(t *testing.T) {
	t.Parallel()

	src := &source{dec: newMock(8000, 4, 1, 2)}
	n, err := src.ReadFrames(make([]int16, 1))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSource_DecodeError(t *testing.T) {
	t.Parallel()

	boom := errors.New("corrupt frame")
	src := &source{dec: &mockMP3Reader{err: boom}}
	_, err := src.ReadFrames(make([]int16, 4))
	assert.ErrorIs(t, err, boom)
}

func TestDecoder_InvalidInput(t *testing.T) {
	t.Parallel()

	tests := map[string][]byte{
		"empty":  nil,
		"random": bytes.Repeat([]byte{0x00, 0x11}, 16),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Decoder{}.Decode(bytes.NewReader(data))
			assert.ErrorIs(t, err, ErrNotMP3File)
		})
	}
}

type nopCloser struct{ closed bool }

func (c *nopCloser) Close() error { c.closed = true; return nil }

func TestSource_Close(t *testing.T) {
	t.Parallel()

	assert.NoError(t, (&source{dec: newMock(8000, 4)}).Close())

	c := &nopCloser{}
	require.NoError(t, (&source{dec: newMock(8000, 4), closer: c}).Close())
	assert.True(t, c.closed)
}
