// SPDX-License-Identifier: EPL-2.0

package miniaudio

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
)

var backendNames = map[string]malgo.Backend{
	"wasapi":     malgo.BackendWasapi,
	"dsound":     malgo.BackendDsound,
	"winmm":      malgo.BackendWinmm,
	"coreaudio":  malgo.BackendCoreaudio,
	"sndio":      malgo.BackendSndio,
	"audio4":     malgo.BackendAudio4,
	"oss":        malgo.BackendOss,
	"pulseaudio": malgo.BackendPulseaudio,
	"alsa":       malgo.BackendAlsa,
	"jack":       malgo.BackendJack,
	"aaudio":     malgo.BackendAaudio,
	"opensl":     malgo.BackendOpensl,
	"webaudio":   malgo.BackendWebaudio,
	"null":       malgo.BackendNull,
}

// ParseBackends turns a comma separated list such as "pulseaudio,alsa" into
// miniaudio backends. An empty list returns nil, which lets miniaudio pick.
func ParseBackends(list string) ([]malgo.Backend, error) {
	var out []malgo.Backend
	for name := range strings.SplitSeq(list, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		b, ok := backendNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown miniaudio backend %q", name)
		}
		out = append(out, b)
	}
	return out, nil
}
