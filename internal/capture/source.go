package capture

import "context"

// DisplayStream is what a display capture request returns. Audio is nil when
// the user picked a source without sharing its audio.
type DisplayStream struct {
	Video Track
	Audio Track
}

func (d *DisplayStream) HasAudio() bool {
	return d != nil && d.Audio != nil
}

func (d *DisplayStream) Tracks() []Track {
	if d == nil {
		return nil
	}
	tracks := []Track{d.Video}
	if d.Audio != nil {
		tracks = append(tracks, d.Audio)
	}
	return tracks
}

type DisplayOptions struct {
	// Audio asks the platform to offer audio sharing alongside the display.
	Audio bool
}

type MicrophoneConstraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	SampleRate       int
}

func DefaultMicrophoneConstraints() MicrophoneConstraints {
	return MicrophoneConstraints{
		EchoCancellation: true,
		NoiseSuppression: true,
		SampleRate:       48000,
	}
}

// Source is the capture capability of a platform. Both calls may block until
// the user answers a platform prompt.
type Source interface {
	AcquireDisplay(ctx context.Context, opts DisplayOptions) (*DisplayStream, error)
	AcquireMicrophone(ctx context.Context, constraints MicrophoneConstraints) (Track, error)
}
