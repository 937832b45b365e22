// SPDX-License-Identifier: EPL-2.0

package slaudio_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/slaudio"
	"github.com/ik5/slaudio/audio"
	"github.com/ik5/slaudio/formats/wav"
	"github.com/ik5/slaudio/internal/audiotest"
)

func writeWAV(t *testing.T, name string, rate, channels int, samples []int16) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, wav.WriteWAV16(f, rate, channels, samples))
	require.NoError(t, f.Close())
	return path
}

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"aif", "aiff", "mp3", "oga", "ogg", "wav", "wave"}, slaudio.DefaultRegistry().Formats())
}

func TestOpenFile(t *testing.T) {
	t.Parallel()

	path := writeWAV(t, "tone.WAV", 16000, 2, []int16{1, 2, 3, 4})
	src, err := slaudio.OpenFile(slaudio.DefaultRegistry(), path)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 16000, src.SampleRate())
	assert.Equal(t, 2, src.Channels())

	pcm, err := slaudio.ReadAll(src, 1)
	require.NoError(t, err)
	assert.Equal(t, []int16{1, 2, 3, 4}, pcm)
}

func TestOpenFile_Errors(t *testing.T) {
	t.Parallel()

	reg := slaudio.DefaultRegistry()

	_, err := slaudio.OpenFile(reg, "notes.txt")
	assert.ErrorIs(t, err, audio.ErrUnknownFormat)

	_, err = slaudio.OpenFile(reg, filepath.Join(t.TempDir(), "missing.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bogus := filepath.Join(t.TempDir(), "bogus.wav")
	require.NoError(t, os.WriteFile(bogus, []byte("definitely not a riff file, just text"), 0o600))
	_, err = slaudio.OpenFile(reg, bogus)
	assert.ErrorIs(t, err, wav.ErrNotWavFile)
}

func TestReadAllMono16(t *testing.T) {
	t.Parallel()

	src := audiotest.NewMockSource(8000, 2, 3, func(_, ch int) float32 {
		if ch == 0 {
			return 0.5
		}
		return 0
	})

	pcm, rate, err := slaudio.ReadAllMono16(src, 2)
	require.NoError(t, err)
	assert.Equal(t, 8000, rate)
	assert.Equal(t, []int16{8191, 8191, 8191}, pcm)
}
