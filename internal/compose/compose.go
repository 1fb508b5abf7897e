package compose

import (
	"errors"
	"fmt"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/capture"
)

var (
	ErrNoAudioSource = errors.New("no audio source available")
	ErrNoVideo       = errors.New("display stream has no video track")
)

const (
	WarningNoTabAudio        = "The selected source is not sharing audio. The recording will have no sound."
	WarningMicrophoneOnly    = "The selected source is not sharing audio. Only the microphone will be recorded."
	WarningMicrophoneMissing = "The microphone is unavailable. Only tab audio will be recorded."
)

// AudioMixer is the part of the mixer the composer depends on.
type AudioMixer interface {
	Mix(sources []capture.Track) (capture.Track, error)
}

// MicResult is the outcome of a microphone request. Both fields are zero when
// no microphone was requested.
type MicResult struct {
	Track capture.Track
	Err   error
}

// Stream is what the recorder consumes: the display video and at most one
// audio track.
type Stream struct {
	Video capture.Track
	Audio capture.Track
}

func (s Stream) HasAudio() bool {
	return s.Audio != nil
}

func (s Stream) Tracks() []capture.Track {
	tracks := []capture.Track{s.Video}
	if s.Audio != nil {
		tracks = append(tracks, s.Audio)
	}
	return tracks
}

type Result struct {
	Stream  Stream
	Warning string
}

// Compose assembles the recorder input for policy. A denied microphone under
// tab_and_mic aborts; any other microphone failure degrades to a warning.
func Compose(display *capture.DisplayStream, mic MicResult, policy Policy, mx AudioMixer) (Result, error) {
	if display == nil || display.Video == nil {
		return Result{}, ErrNoVideo
	}

	res := Result{Stream: Stream{Video: display.Video}}

	switch policy {
	case PolicyNone:
		return res, nil

	case PolicyTab:
		if !display.HasAudio() {
			res.Warning = WarningNoTabAudio
			return res, nil
		}
		res.Stream.Audio = display.Audio
		return res, nil

	case PolicyTabAndMic:
		if mic.Err != nil && errors.Is(mic.Err, capture.ErrPermissionDenied) {
			return Result{}, fmt.Errorf("microphone: %w", mic.Err)
		}

		var sources []capture.Track
		if display.HasAudio() {
			sources = append(sources, display.Audio)
		}
		if mic.Err == nil && mic.Track != nil {
			sources = append(sources, mic.Track)
		}

		if len(sources) == 0 {
			return Result{}, ErrNoAudioSource
		}

		switch {
		case !display.HasAudio():
			res.Warning = WarningMicrophoneOnly
		case mic.Err != nil || mic.Track == nil:
			res.Warning = WarningMicrophoneMissing
		}

		audio, err := mx.Mix(sources)
		if err != nil {
			return Result{}, err
		}
		res.Stream.Audio = audio
		return res, nil

	default:
		return Result{}, fmt.Errorf("unknown audio source %q", policy)
	}
}
