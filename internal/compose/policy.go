package compose

import "fmt"

// Policy selects which audio ends up in the recording.
type Policy string

const (
	PolicyTab       Policy = "tab"
	PolicyTabAndMic Policy = "tab_and_mic"
	PolicyNone      Policy = "none"
)

var Policies = []Policy{PolicyTab, PolicyTabAndMic, PolicyNone}

func ParsePolicy(s string) (Policy, error) {
	for _, p := range Policies {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown audio source %q", s)
}

// WantsAudio reports whether the policy implies an audio track.
func (p Policy) WantsAudio() bool {
	return p != PolicyNone
}

func NeedsMicrophone(p Policy) bool {
	return p == PolicyTabAndMic
}
