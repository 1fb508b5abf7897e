package recorder

import (
	"strings"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/capture"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/config"
)

// Format is a negotiated container/codec pair.
type Format struct {
	MimeType  string `json:"mimeType"`
	Extension string `json:"extension"`
}

func (f Format) IsZero() bool {
	return f.MimeType == ""
}

// Container returns the mime type without its codecs parameter.
func (f Format) Container() string {
	mime, _, _ := strings.Cut(f.MimeType, ";")
	return strings.TrimSpace(mime)
}

// DefaultFormats is the preference list, most broadly compatible first.
var DefaultFormats = []Format{
	{MimeType: "video/mp4;codecs=avc1.42E01E,mp4a.40.2", Extension: "mp4"},
	{MimeType: "video/webm;codecs=vp9,opus", Extension: "webm"},
	{MimeType: "video/webm;codecs=vp8,opus", Extension: "webm"},
	{MimeType: "video/webm", Extension: "webm"},
}

var ErrUnsupportedFormat = capture.Unsupported("recording in any known format")

// Prober answers whether the platform can record a mime type.
type Prober interface {
	Supported(mimeType string) bool
}

// Negotiate returns the first entry of prefs the prober supports.
func Negotiate(prober Prober, prefs []Format) (Format, error) {
	for _, f := range prefs {
		if prober.Supported(f.MimeType) {
			return f, nil
		}
	}
	return Format{}, ErrUnsupportedFormat
}

// Preferences returns the configured preference list, or DefaultFormats.
func Preferences(cfg config.Recorder) []Format {
	if len(cfg.Formats) == 0 {
		return DefaultFormats
	}
	prefs := make([]Format, 0, len(cfg.Formats))
	for _, f := range cfg.Formats {
		ext := strings.TrimPrefix(f.Extension, ".")
		prefs = append(prefs, Format{MimeType: f.MimeType, Extension: ext})
	}
	return prefs
}
