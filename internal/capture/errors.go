package capture

import (
	"errors"
	"fmt"
)

const (
	RequestDisplay    = "screen capture"
	RequestMicrophone = "microphone"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnsupported      = errors.New("not supported")
	ErrDeviceError      = errors.New("device error")
)

// UnsupportedError names the platform capability that is missing.
type UnsupportedError struct {
	Capability string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s is not supported", e.Capability)
}

func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

func Unsupported(capability string) error {
	return &UnsupportedError{Capability: capability}
}

// DeviceError wraps a transient device failure that is not a permission refusal.
func DeviceError(device string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", device, ErrDeviceError)
	}
	return fmt.Errorf("%s: %w: %v", device, ErrDeviceError, cause)
}

// PermissionError records which request the user declined.
type PermissionError struct {
	What string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: %v", e.What, ErrPermissionDenied)
}

func (e *PermissionError) Is(target error) bool {
	return target == ErrPermissionDenied
}

func PermissionDenied(what string) error {
	return &PermissionError{What: what}
}

// DeniedRequest returns what the user declined, if err is a permission error.
func DeniedRequest(err error) string {
	var p *PermissionError
	if errors.As(err, &p) {
		return p.What
	}
	return ""
}

// MissingCapability returns the capability named by an unsupported error, if any.
func MissingCapability(err error) string {
	var u *UnsupportedError
	if errors.As(err, &u) {
		return u.Capability
	}
	return ""
}
