package session

import (
	"github.com/bigbluebutton/bbb-screen-recorder/internal/capture"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/compose"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/recorder"
)

type EventKind string

const (
	// User commands.
	EvSelectSource   EventKind = "selectSource"
	EvCancelPreview  EventKind = "cancelPreview"
	EvStartRequested EventKind = "startRequested"
	EvStopRequested  EventKind = "stopRequested"
	EvReset          EventKind = "reset"

	// Platform events, tagged with the generation that produced them.
	EvDisplayAcquired  EventKind = "displayAcquired"
	EvDisplayFailed    EventKind = "displayFailed"
	EvRecordingStarted EventKind = "recordingStarted"
	EvStartFailed      EventKind = "startFailed"
	EvCaptureEnded     EventKind = "captureEnded"
	EvChunk            EventKind = "chunk"
	EvSinkFailed       EventKind = "sinkFailed"
	EvRecorderStopped  EventKind = "recorderStopped"
	EvFinalized        EventKind = "finalized"
	EvFinalizeFailed   EventKind = "finalizeFailed"
	EvTick             EventKind = "tick"
)

var Events = []EventKind{
	EvSelectSource, EvCancelPreview, EvStartRequested, EvStopRequested, EvReset,
	EvDisplayAcquired, EvDisplayFailed, EvRecordingStarted, EvStartFailed,
	EvCaptureEnded, EvChunk, EvSinkFailed, EvRecorderStopped, EvFinalized,
	EvFinalizeFailed, EvTick,
}

// IsCommand reports whether the event comes from a user request rather than
// from a platform resource.
func (k EventKind) IsCommand() bool {
	switch k {
	case EvSelectSource, EvCancelPreview, EvStartRequested, EvStopRequested, EvReset:
		return true
	}
	return false
}

// Attempt groups the resources prepared for one recording.
type Attempt struct {
	Format   recorder.Format
	Mixer    Closer
	Sink     recorder.ChunkSink
	Recorder recorder.Recorder
}

type Closer interface {
	Close() error
}

type Event struct {
	Kind       EventKind
	Generation uint64

	// selectSource, startRequested
	Title  string
	URL    string
	Policy compose.Policy
	Start  bool

	Handle      *capture.Handle
	Attempt     *Attempt
	Format      recorder.Format
	StorageMode recorder.StorageMode
	Artifact    *ArtifactInfo
	Chunk       []byte
	Warning     string
	Err         error
}
