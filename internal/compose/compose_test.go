package compose

import (
	"testing"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/capture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMixer struct {
	calls [][]capture.Track
}

func (m *mockMixer) Mix(sources []capture.Track) (capture.Track, error) {
	m.calls = append(m.calls, sources)
	if len(sources) == 0 {
		return nil, nil
	}
	return capture.NewTrack("mixed", capture.KindAudio, "Mixed"), nil
}

type micOutcome string

const (
	micGranted micOutcome = "granted"
	micDenied  micOutcome = "denied"
	micError   micOutcome = "error"
)

func micResult(o micOutcome) MicResult {
	switch o {
	case micGranted:
		return MicResult{Track: capture.NewTrack("mic", capture.KindAudio, "Mic")}
	case micDenied:
		return MicResult{Err: capture.PermissionDenied("microphone")}
	default:
		return MicResult{Err: capture.DeviceError("microphone", nil)}
	}
}

func display(withAudio bool) *capture.DisplayStream {
	d := &capture.DisplayStream{Video: capture.NewTrack("screen", capture.KindVideo, "Screen")}
	if withAudio {
		d.Audio = capture.NewTrack("tab", capture.KindAudio, "Tab")
	}
	return d
}

func TestComposeTable(t *testing.T) {
	tests := []struct {
		policy       Policy
		displayAudio bool
		mic          micOutcome
		wantAudio    bool
		wantMixed    int
		wantWarning  string
		wantErr      error
	}{
		{PolicyTab, true, micGranted, true, 0, "", nil},
		{PolicyTab, true, micDenied, true, 0, "", nil},
		{PolicyTab, true, micError, true, 0, "", nil},
		{PolicyTab, false, micGranted, false, 0, WarningNoTabAudio, nil},
		{PolicyTab, false, micDenied, false, 0, WarningNoTabAudio, nil},
		{PolicyTab, false, micError, false, 0, WarningNoTabAudio, nil},

		{PolicyTabAndMic, true, micGranted, true, 2, "", nil},
		{PolicyTabAndMic, true, micDenied, false, 0, "", capture.ErrPermissionDenied},
		{PolicyTabAndMic, true, micError, true, 1, WarningMicrophoneMissing, nil},
		{PolicyTabAndMic, false, micGranted, true, 1, WarningMicrophoneOnly, nil},
		{PolicyTabAndMic, false, micDenied, false, 0, "", capture.ErrPermissionDenied},
		{PolicyTabAndMic, false, micError, false, 0, "", ErrNoAudioSource},

		{PolicyNone, true, micGranted, false, 0, "", nil},
		{PolicyNone, true, micDenied, false, 0, "", nil},
		{PolicyNone, true, micError, false, 0, "", nil},
		{PolicyNone, false, micGranted, false, 0, "", nil},
		{PolicyNone, false, micDenied, false, 0, "", nil},
		{PolicyNone, false, micError, false, 0, "", nil},
	}

	for _, tt := range tests {
		name := string(tt.policy) + "/" + map[bool]string{true: "audio", false: "silent"}[tt.displayAudio] + "/" + string(tt.mic)
		t.Run(name, func(t *testing.T) {
			mx := &mockMixer{}
			d := display(tt.displayAudio)

			res, err := Compose(d, micResult(tt.mic), tt.policy, mx)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, mx.calls, "mixer must not run on abort")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantAudio, res.Stream.HasAudio())
			assert.Equal(t, tt.wantWarning, res.Warning)
			assert.Same(t, d.Video, res.Stream.Video)

			if tt.wantMixed > 0 {
				require.Len(t, mx.calls, 1)
				assert.Len(t, mx.calls[0], tt.wantMixed)
			} else {
				assert.Empty(t, mx.calls)
			}
		})
	}
}

func TestComposeTabUsesDisplayAudioDirectly(t *testing.T) {
	d := display(true)
	res, err := Compose(d, MicResult{}, PolicyTab, &mockMixer{})
	require.NoError(t, err)
	assert.Same(t, d.Audio, res.Stream.Audio)
	assert.Len(t, res.Stream.Tracks(), 2)
}

func TestComposeWithoutVideo(t *testing.T) {
	_, err := Compose(&capture.DisplayStream{}, MicResult{}, PolicyNone, &mockMixer{})
	assert.ErrorIs(t, err, ErrNoVideo)
}

func TestParsePolicy(t *testing.T) {
	for _, p := range Policies {
		got, err := ParsePolicy(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := ParsePolicy("mic")
	assert.Error(t, err)

	assert.True(t, NeedsMicrophone(PolicyTabAndMic))
	assert.False(t, NeedsMicrophone(PolicyTab))
	assert.False(t, PolicyNone.WantsAudio())
}
