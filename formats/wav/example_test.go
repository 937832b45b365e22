// SPDX-License-Identifier: EPL-2.0

package wav_test

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ik5/slaudio/formats/wav"
)

func Example_writeAndDecode() {
	var file bytes.Buffer
	_ = wav.WriteWAV16(&file, 8000, 1, []int16{100, -100, 200, -200})

	src, err := wav.Decoder{}.Decode(bytes.NewReader(file.Bytes()))
	if err != nil {
		fmt.Println("decode:", err)
		return
	}
	defer src.Close()

	buf := make([]int16, 16)
	n, err := src.ReadFrames(buf)
	fmt.Println("rate:", src.SampleRate(), "channels:", src.Channels())
	fmt.Println("frames:", n, buf[:n], err == io.EOF)

	// Output:
	// rate: 8000 channels: 1
	// frames: 4 [100 -100 200 -200] true
}

func Example_notWAV() {
	_, err := wav.Decoder{}.Decode(bytes.NewReader([]byte("hello, this is not audio data at all")))
	fmt.Println(err)

	// Output:
	// not a WAV file
}
