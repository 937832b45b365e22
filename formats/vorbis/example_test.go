// SPDX-License-Identifier: EPL-2.0

package vorbis_test

import (
	"fmt"
	"strings"

	"github.com/ik5/slaudio/audio"
	"github.com/ik5/slaudio/formats/vorbis"
)

func Example_registry() {
	reg := audio.NewRegistry()
	reg.Register("ogg", vorbis.Decoder{})
	reg.Register("oga", vorbis.Decoder{})

	fmt.Println(reg.Formats())

	_, err := vorbis.Decoder{}.Decode(strings.NewReader("not ogg"))
	fmt.Println(err != nil)

	// Output:
	// [oga ogg]
	// true
}
