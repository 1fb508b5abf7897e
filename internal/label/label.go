// Package label derives the cosmetic metadata shown next to a recording: the
// YouTube thumbnail, the suggested file name and the elapsed time.
package label

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const DefaultTitle = "Recorded Live Stream"

type Quality string

const (
	// QualityRecording is shown while the recording runs.
	QualityRecording Quality = "maxresdefault"
	// QualityCard is shown on the download card.
	QualityCard Quality = "mqdefault"
)

var (
	youtubeID  = regexp.MustCompile(`(?:youtube\.com/(?:(?:v|e(?:mbed)?|live|shorts)/|.*[?&]v=)|youtu\.be/)([A-Za-z0-9_-]{11})`)
	whitespace = regexp.MustCompile(`\s+`)
)

// ExtractYouTubeID returns the 11 character video id of a YouTube URL, or ""
// when the URL is not recognised.
func ExtractYouTubeID(url string) string {
	m := youtubeID.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return ""
	}
	return m[1]
}

func ThumbnailURL(videoID string, q Quality) string {
	if videoID == "" {
		return ""
	}
	return fmt.Sprintf("https://img.youtube.com/vi/%s/%s.jpg", videoID, q)
}

// FileName builds the suggested download name for a title.
func FileName(title, ext string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	return WithExtension(whitespace.ReplaceAllString(title, "_"), ext)
}

// WithExtension makes sure name ends with ext. A user-edited name keeps its
// stem; a different extension is replaced.
func WithExtension(name, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		name = ""
	}
	if ext == "" {
		return name
	}
	if cur := filepath.Ext(name); cur != "" {
		if strings.EqualFold(cur[1:], ext) {
			return name
		}
		name = strings.TrimSuffix(name, cur)
	}
	if name == "" {
		name = whitespace.ReplaceAllString(DefaultTitle, "_")
	}
	return name + "." + ext
}

// FormatDuration renders MM:SS, or HH:MM:SS from one hour on.
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	h, m, s := secs/3600, secs/60%60, secs%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func FormatSeconds(secs int) string {
	return FormatDuration(time.Duration(secs) * time.Second)
}
