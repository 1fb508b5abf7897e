package session

import (
	"github.com/bigbluebutton/bbb-screen-recorder/internal/compose"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/label"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/recorder"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusPreview    Status = "preview"
	StatusRecording  Status = "recording"
	StatusProcessing Status = "processing"
	StatusFinished   Status = "finished"
)

var Statuses = []Status{StatusIdle, StatusPreview, StatusRecording, StatusProcessing, StatusFinished}

// ArtifactInfo is the downloadable side of a finished recording.
type ArtifactInfo struct {
	Token           string               `json:"token"`
	FileName        string               `json:"fileName"`
	Extension       string               `json:"extension"`
	MimeType        string               `json:"mimeType"`
	Size            int64                `json:"size"`
	StorageMode     recorder.StorageMode `json:"storageMode"`
	Container       string               `json:"container,omitempty"`
	DurationSeconds int                  `json:"durationSeconds"`
	ThumbnailURL    string               `json:"thumbnailUrl,omitempty"`
}

// Session is the state of one recorder session. It is a value: the controller
// replaces it on every event and hands out copies.
type Session struct {
	ID             string               `json:"id"`
	Status         Status               `json:"status"`
	ElapsedSeconds int                  `json:"elapsedSeconds"`
	ErrorMessage   string               `json:"errorMessage,omitempty"`
	WarningMessage string               `json:"warningMessage,omitempty"`
	AudioPolicy    compose.Policy       `json:"audioSource"`
	Format         recorder.Format      `json:"format"`
	StorageMode    recorder.StorageMode `json:"storageMode,omitempty"`
	Artifact       *ArtifactInfo        `json:"artifact,omitempty"`
	Title          string               `json:"title"`
	SourceURL      string               `json:"sourceUrl,omitempty"`
	VideoID        string               `json:"videoId,omitempty"`
	ThumbnailURL   string               `json:"thumbnailUrl,omitempty"`
	// Generation tags the resources of the current attempt. Platform events
	// from an older generation are ignored.
	Generation uint64 `json:"generation"`
	// Pending is set while a display or microphone prompt is outstanding.
	Pending bool `json:"pending"`
	// Capturing is set while a capture handle is live.
	Capturing bool `json:"capturing"`
}

func New(id string, policy compose.Policy, title string) Session {
	if title == "" {
		title = label.DefaultTitle
	}
	return Session{
		ID:          id,
		Status:      StatusIdle,
		AudioPolicy: policy,
		Title:       title,
	}
}

func (s Session) Elapsed() string {
	return label.FormatSeconds(s.ElapsedSeconds)
}

func (s *Session) setError(msg string) {
	s.ErrorMessage = msg
	s.WarningMessage = ""
}

func (s *Session) setWarning(msg string) {
	if msg == "" {
		return
	}
	s.WarningMessage = msg
	s.ErrorMessage = ""
}

func (s *Session) clearMessages() {
	s.ErrorMessage = ""
	s.WarningMessage = ""
}

func (s *Session) setLabel(title, url string) {
	if title != "" {
		s.Title = title
	}
	if url != "" {
		s.SourceURL = url
		s.VideoID = label.ExtractYouTubeID(url)
		s.ThumbnailURL = label.ThumbnailURL(s.VideoID, label.QualityRecording)
	}
}
