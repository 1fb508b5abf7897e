package session

import (
	"errors"
	"fmt"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/capture"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/compose"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/recorder"
)

// ErrorKind is the user-facing class of a failure.
type ErrorKind string

const (
	KindPermissionDenied   ErrorKind = "PermissionDenied"
	KindUnsupported        ErrorKind = "Unsupported"
	KindNoAudioSource      ErrorKind = "NoAudioSource"
	KindDeviceError        ErrorKind = "DeviceError"
	KindStorageInitFailure ErrorKind = "StorageInitFailure"
	KindInternal           ErrorKind = "Internal"
)

const (
	MessageDisplayDenied    = "Screen recording permission was denied. Please try again."
	MessageMicrophoneDenied = "Microphone permission was denied. The recording was not started."
	MessageUnsupported      = "Failed to start recording. Your platform may not support this feature."
	MessageNoAudioSource    = "No audio source is available. Share a source with audio or connect a microphone."
	MessageDeviceError      = "A capture device failed. Please check it and try again."
	MessageStorageFailed    = "The recording could not be stored. Please try again."
	MessageFailed           = "Failed to start recording."
)

func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, capture.ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, capture.ErrUnsupported):
		return KindUnsupported
	case errors.Is(err, compose.ErrNoAudioSource):
		return KindNoAudioSource
	case errors.Is(err, capture.ErrDeviceError):
		return KindDeviceError
	case errors.Is(err, recorder.ErrStorageInit):
		return KindStorageInitFailure
	}
	return KindInternal
}

// ErrorMessage renders err for the user.
func ErrorMessage(err error) string {
	switch Classify(err) {
	case "":
		return ""
	case KindPermissionDenied:
		if capture.DeniedRequest(err) == capture.RequestMicrophone {
			return MessageMicrophoneDenied
		}
		return MessageDisplayDenied
	case KindUnsupported:
		if c := capture.MissingCapability(err); c != "" {
			return fmt.Sprintf("%s Missing capability: %s.", MessageUnsupported, c)
		}
		return MessageUnsupported
	case KindNoAudioSource:
		return MessageNoAudioSource
	case KindDeviceError:
		return MessageDeviceError
	case KindStorageInitFailure:
		return MessageStorageFailed
	}
	return fmt.Sprintf("%s %v", MessageFailed, err)
}
