package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/capture"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/compose"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/recorder"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		kind ErrorKind
		msg  string
	}{
		{nil, "", ""},
		{capture.PermissionDenied(capture.RequestDisplay), KindPermissionDenied, MessageDisplayDenied},
		{fmt.Errorf("microphone: %w", capture.PermissionDenied(capture.RequestMicrophone)), KindPermissionDenied, MessageMicrophoneDenied},
		{capture.Unsupported("ffmpeg"), KindUnsupported, MessageUnsupported + " Missing capability: ffmpeg."},
		{compose.ErrNoAudioSource, KindNoAudioSource, MessageNoAudioSource},
		{capture.DeviceError("microphone", errors.New("busy")), KindDeviceError, MessageDeviceError},
		{fmt.Errorf("%w: disk full", recorder.ErrStorageInit), KindStorageInitFailure, MessageStorageFailed},
		{errors.New("boom"), KindInternal, MessageFailed + " boom"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.kind, Classify(tt.err), "%v", tt.err)
		assert.Equal(t, tt.msg, ErrorMessage(tt.err), "%v", tt.err)
	}
}
