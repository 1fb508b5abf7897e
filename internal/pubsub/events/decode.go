package events

import (
	"errors"
	"fmt"
	"slices"

	"github.com/titanous/json5"
)

var (
	ErrMissingId        = errors.New("message has no id")
	ErrMissingSessionId = errors.New("message has no sessionId")
	ErrUnknownId        = errors.New("unknown message id")
)

// Event is a decoded control message. The payload is decoded again into the
// command type on demand.
type Event struct {
	Id        string `json:"id"`
	SessionId string `json:"sessionId"`

	raw []byte
	err error
}

// Decode accepts JSON5, so hand-written messages with unquoted keys and single
// quoted strings are fine.
func Decode(message []byte) *Event {
	e := &Event{raw: message}
	if err := json5.Unmarshal(message, e); err != nil {
		e.err = fmt.Errorf("malformed message: %w", err)
	}
	return e
}

func (e *Event) Err() error {
	switch {
	case e.err != nil:
		return e.err
	case e.Id == "":
		return ErrMissingId
	case !slices.Contains(Commands, e.Id):
		return fmt.Errorf("%w: %s", ErrUnknownId, e.Id)
	case e.SessionId == "" && e.Id != GetRecorderStatusKey:
		return fmt.Errorf("%w: %s", ErrMissingSessionId, e.Id)
	}
	return nil
}

func (e *Event) IsValid() bool {
	return e.Err() == nil
}

func (e *Event) SelectSource() *SelectSource {
	if e.Id != SelectSourceKey && e.Id != StartRecordingKey {
		return nil
	}
	s := &SelectSource{}
	if err := json5.Unmarshal(e.raw, s); err != nil {
		return nil
	}
	return s
}

func (e *Event) StartRecording() *StartRecording {
	if e.Id != StartRecordingKey {
		return nil
	}
	return e.SelectSource()
}

func (e *Event) SessionCommand() *SessionCommand {
	return &SessionCommand{Id: e.Id, SessionId: e.SessionId}
}
