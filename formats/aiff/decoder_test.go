// SPDX-License-Identifier: EPL-2.0

package aiff

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// extended encodes an integer rate as an 80-bit IEEE 754 extended float.
func extended(rate int) []byte {
	e := bits.Len(uint(rate)) - 1
	out := make([]byte, 10)
	binary.BigEndian.PutUint16(out[0:2], uint16(16383+e))
	binary.BigEndian.PutUint64(out[2:10], uint64(rate)<<(63-e))
	return out
}

func aiffFile(rate, channels, bitDepth int, samples ...int16) []byte {
	var comm bytes.Buffer
	binary.Write(&comm, binary.BigEndian, int16(channels))
	binary.Write(&comm, binary.BigEndian, uint32(len(samples)/channels))
	binary.Write(&comm, binary.BigEndian, int16(bitDepth))
	comm.Write(extended(rate))

	var ssnd bytes.Buffer
	binary.Write(&ssnd, binary.BigEndian, uint32(0))
	binary.Write(&ssnd, binary.BigEndian, uint32(0))
	binary.Write(&ssnd, binary.BigEndian, samples)

	var body bytes.Buffer
	body.WriteString("AIFF")
	body.WriteString("COMM")
	binary.Write(&body, binary.BigEndian, uint32(comm.Len()))
	body.Write(comm.Bytes())
	body.WriteString("SSND")
	binary.Write(&body, binary.BigEndian, uint32(ssnd.Len()))
	body.Write(ssnd.Bytes())

	var out bytes.Buffer
	out.WriteString("FORM")
	binary.Write(&out, binary.BigEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func TestExtended(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte{0x40, 0x0B, 0xFA, 0, 0, 0, 0, 0, 0, 0}, extended(8000))
	assert.Equal(t, []byte{0x40, 0x0E, 0xAC, 0x44, 0, 0, 0, 0, 0, 0}, extended(44100))
}

func TestDecoder_Stereo(t *testing.T) {
	t.Parallel()

	src, err := Decoder{}.Decode(bytes.NewReader(aiffFile(44100, 2, 16, 1, -1, 300, -300, 32767, -32768)))
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 44100, src.SampleRate())
	assert.Equal(t, 2, src.Channels())

	var got []int16
	buf := make([]int16, 4)
	for {
		n, err := src.ReadFrames(buf)
		got = append(got, buf[:n*2]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, []int16{1, -1, 300, -300, 32767, -32768}, got)
}

func TestDecoder_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"not aiff", []byte("This is not AIFF data"), ErrNotAiffFile},
		{"empty", nil, ErrNotAiffFile},
		{"24 bit", aiffFile(8000, 1, 24, 0, 0, 0), ErrOnlyPCM16bitSupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decoder{}.Decode(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
