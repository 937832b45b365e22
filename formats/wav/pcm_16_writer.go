// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ik5/slaudio/utils"
)

const (
	headerSize = 44
	chunkSize  = 8192
)

// WriteWAV16 writes a complete 16-bit PCM WAV in one pass. Unlike Writer it
// needs every sample up front, but w does not have to seek.
func WriteWAV16(w io.Writer, sampleRate, channels int, samples []int16) error {
	if sampleRate <= 0 || channels < 1 {
		return ErrUnsupportedWavLayout
	}

	blockAlign := uint16(channels) * 2
	dataSize := uint32(len(samples) * 2)

	header := make([]byte, headerSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], headerSize-8+dataSize)
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], formatPCM)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate)*uint32(blockAlign))
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], 16)

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("writing wav header: %w", err)
	}

	buf := make([]byte, min(len(samples), chunkSize)*2)
	for i := 0; i < len(samples); i += chunkSize {
		chunk := samples[i:min(i+chunkSize, len(samples))]
		n := utils.EncodePCM16(buf, chunk, binary.LittleEndian)
		if _, err := w.Write(buf[:n*2]); err != nil {
			return fmt.Errorf("writing wav data: %w", err)
		}
	}

	return nil
}
