package events

import (
	"time"

	"github.com/AlekSi/pointer"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/session"
)

const (
	SelectSourceKey           = "selectSource"
	CancelPreviewKey          = "cancelPreview"
	StartRecordingKey         = "startRecording"
	StopRecordingKey          = "stopRecording"
	ResetRecordingKey         = "resetRecording"
	GetRecorderStatusKey      = "getRecorderStatus"
	RecorderStatusKey         = "recorderStatus"
	RecordingStatusChangedKey = "recordingStatusChanged"

	ResponseSuffix = "Response"

	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Commands are the request ids accepted from the control channel.
var Commands = []string{
	SelectSourceKey,
	CancelPreviewKey,
	StartRecordingKey,
	StopRecordingKey,
	ResetRecordingKey,
	GetRecorderStatusKey,
}

/*
selectSource / startRecording (client -> Recorder)
```JSON5
{
	id: 'selectSource' | 'startRecording',
	sessionId: <String>,
	title: <String | undefined>, // recording title, default 'Recorded Live Stream'
	sourceUrl: <String | undefined>, // watched page, used for the thumbnail
	audioSource: 'tab' | 'tab_and_mic' | 'none' | undefined,
}
```
*/

type SelectSource struct {
	Id          string `json:"id,omitempty"`
	SessionId   string `json:"sessionId,omitempty"`
	Title       string `json:"title,omitempty"`
	SourceURL   string `json:"sourceUrl,omitempty"`
	AudioSource string `json:"audioSource,omitempty"`
}

type StartRecording = SelectSource

/*
cancelPreview / stopRecording / resetRecording (client -> Recorder)
```JSON5
{
	id: 'cancelPreview' | 'stopRecording' | 'resetRecording',
	sessionId: <String>,
}
```
*/

type SessionCommand struct {
	Id        string `json:"id,omitempty"`
	SessionId string `json:"sessionId,omitempty"`
}

/*
<command>Response (Recorder -> client)
```JSON5
{
	id: 'selectSourceResponse' | 'startRecordingResponse' | ...,
	sessionId: <String>,
	status: 'ok' | 'failed',
	error: undefined | <String>,
	session: <Session | undefined>, // session state after the command
}
```
*/

type Response struct {
	Id        string           `json:"id,omitempty"`
	SessionId string           `json:"sessionId,omitempty"`
	Status    string           `json:"status,omitempty"`
	Error     *string          `json:"error,omitempty"`
	Session   *session.Session `json:"session,omitempty"`
}

func NewResponse(id, sessionId string, s *session.Session, err error) *Response {
	r := &Response{
		Id:        id + ResponseSuffix,
		SessionId: sessionId,
		Status:    StatusOK,
		Session:   s,
	}
	if err != nil {
		r.Status = StatusFailed
		r.Error = pointer.ToString(err.Error())
	}
	return r
}

/*
recordingStatusChanged (Recorder -> client)
```JSON5
{
	id: 'recordingStatusChanged',
	sessionId: <String>,
	session: <Session>,
	elapsed: <String>, // MM:SS or HH:MM:SS
	timestampUTC: <String>,
}
```
*/

type RecordingStatusChanged struct {
	Id           string          `json:"id,omitempty"`
	SessionId    string          `json:"sessionId,omitempty"`
	Session      session.Session `json:"session"`
	Elapsed      string          `json:"elapsed"`
	TimestampUTC time.Time       `json:"timestampUTC"`
}

func NewRecordingStatusChanged(s session.Session) *RecordingStatusChanged {
	return &RecordingStatusChanged{
		Id:           RecordingStatusChangedKey,
		SessionId:    s.ID,
		Session:      s,
		Elapsed:      s.Elapsed(),
		TimestampUTC: time.Now().UTC(),
	}
}

/*
recorderStatus (Recorder -> client)
```JSON5
{
	id: 'recorderStatus',
	appVersion: <String>,
	instanceId: <String>,
	platform: <String>, // capture backend
	sessions: <Number>,
	timestamp: <Number>, // unix ms
}
```
*/

type RecorderStatus struct {
	Id         string `json:"id,omitempty"`
	AppVersion string `json:"appVersion"`
	InstanceId string `json:"instanceId"`
	Platform   string `json:"platform"`
	Sessions   int    `json:"sessions"`
	Timestamp  int64  `json:"timestamp"`
}

func NewRecorderStatus(version, instanceId, platform string, sessions int) *RecorderStatus {
	return &RecorderStatus{
		Id:         RecorderStatusKey,
		AppVersion: version,
		InstanceId: instanceId,
		Platform:   platform,
		Sessions:   sessions,
		Timestamp:  time.Now().UnixMilli(),
	}
}
