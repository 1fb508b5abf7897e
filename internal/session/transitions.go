package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotAllowed = errors.New("operation not allowed")
	ErrBusy       = errors.New("another operation is in progress")
)

// Transition is an allowed edge of the session state machine. A Noop edge is
// accepted and leaves the session untouched.
type Transition struct {
	From  Status
	Event EventKind
	To    Status
	Noop  bool
}

var transitionsTable = []Transition{
	// Source selection. The prompt runs in the background; the session stays
	// idle and pending until the platform answers.
	{From: StatusIdle, Event: EvSelectSource, To: StatusIdle},
	{From: StatusPreview, Event: EvSelectSource, To: StatusIdle},
	{From: StatusFinished, Event: EvSelectSource, To: StatusIdle},
	{From: StatusIdle, Event: EvDisplayAcquired, To: StatusPreview},
	{From: StatusIdle, Event: EvDisplayFailed, To: StatusIdle},
	{From: StatusIdle, Event: EvCancelPreview, To: StatusIdle},
	{From: StatusPreview, Event: EvCancelPreview, To: StatusIdle},
	{From: StatusPreview, Event: EvCaptureEnded, To: StatusIdle},

	// Start. From idle or finished the display is acquired first.
	{From: StatusIdle, Event: EvStartRequested, To: StatusIdle},
	{From: StatusFinished, Event: EvStartRequested, To: StatusIdle},
	{From: StatusPreview, Event: EvStartRequested, To: StatusPreview},
	{From: StatusPreview, Event: EvRecordingStarted, To: StatusRecording},
	{From: StatusPreview, Event: EvStartFailed, To: StatusIdle},
	{From: StatusRecording, Event: EvStartFailed, To: StatusIdle},

	// Recording.
	{From: StatusRecording, Event: EvTick, To: StatusRecording},
	{From: StatusRecording, Event: EvChunk, To: StatusRecording},
	{From: StatusRecording, Event: EvStopRequested, To: StatusProcessing},
	{From: StatusRecording, Event: EvCaptureEnded, To: StatusProcessing},
	{From: StatusRecording, Event: EvRecorderStopped, To: StatusProcessing},
	{From: StatusRecording, Event: EvSinkFailed, To: StatusIdle},

	// Processing. Chunks keep arriving until the recorder acknowledges the stop.
	{From: StatusProcessing, Event: EvChunk, To: StatusProcessing},
	{From: StatusProcessing, Event: EvStopRequested, To: StatusProcessing, Noop: true},
	{From: StatusProcessing, Event: EvCaptureEnded, To: StatusProcessing, Noop: true},
	{From: StatusProcessing, Event: EvRecorderStopped, To: StatusProcessing},
	{From: StatusProcessing, Event: EvSinkFailed, To: StatusIdle},
	{From: StatusProcessing, Event: EvFinalized, To: StatusFinished},
	{From: StatusProcessing, Event: EvFinalizeFailed, To: StatusIdle},

	// Late stops.
	{From: StatusIdle, Event: EvStopRequested, To: StatusIdle, Noop: true},
	{From: StatusFinished, Event: EvStopRequested, To: StatusFinished, Noop: true},
	{From: StatusFinished, Event: EvCaptureEnded, To: StatusFinished, Noop: true},

	// Reset.
	{From: StatusIdle, Event: EvReset, To: StatusIdle},
	{From: StatusPreview, Event: EvReset, To: StatusIdle},
	{From: StatusRecording, Event: EvReset, To: StatusIdle},
	{From: StatusProcessing, Event: EvReset, To: StatusIdle},
	{From: StatusFinished, Event: EvReset, To: StatusIdle},
}

// TransitionFor returns the allowed transition for a given status and event.
func TransitionFor(from Status, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

// Check reports whether a user command is accepted in the current session.
func Check(s Session, kind EventKind) error {
	if s.Pending && kind != EvReset && kind != EvCancelPreview {
		return fmt.Errorf("%w: %s", ErrBusy, kind)
	}
	if _, ok := TransitionFor(s.Status, kind); !ok {
		return fmt.Errorf("%w: %s while %s", ErrNotAllowed, kind, s.Status)
	}
	return nil
}
