package app

import (
	"testing"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupConfig(t *testing.T) {
	c := (&config.Config{App: config.App{Name: "rec"}}).GetDefaults()
	c.Recorder.Formats = []config.Format{{MimeType: "video/webm", Extension: "webm"}}

	tests := []struct {
		key  string
		want interface{}
	}{
		{"recorder.defaultTitle", "Recorded Live Stream"},
		{"recorder.maxSessions", 1},
		{"recorder.useScratchStorage", true},
		{"recorder.formats.0.mimeType", "video/webm"},
		{"pubsub.channels.subscribe", "to-rec"},
		{"http.listenAddress", "127.0.0.1:8080"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v, err := lookupConfig(c, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}

	all, err := lookupConfig(c, "all")
	require.NoError(t, err)
	assert.Contains(t, all, "recorder")

	for _, key := range []string{"recorder.nope", "recorder.formats.3", "recorder.formats.x", "recorder.defaultTitle.deeper"} {
		_, err := lookupConfig(c, key)
		assert.Error(t, err, key)
	}
}
