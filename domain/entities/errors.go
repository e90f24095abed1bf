package entities

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingAPIKey is returned when the remote-service credential is absent.
// It is fatal to the connect attempt and is never retried automatically.
var ErrMissingAPIKey = errors.New("API key is missing. Please check your configuration.")

// DeviceErrorCause distinguishes the ways acquiring the capture device can fail.
type DeviceErrorCause string

const (
	DeviceCausePermissionDenied DeviceErrorCause = "permission_denied"
	DeviceCauseNotFound         DeviceErrorCause = "not_found"
	DeviceCauseBusy             DeviceErrorCause = "busy"
	DeviceCauseUnsupported      DeviceErrorCause = "unsupported"
	DeviceCauseUnknown          DeviceErrorCause = "unknown"
)

// DeviceError reports a capture-device acquisition failure with a
// human-readable cause. Fatal to the connect attempt; the user must retry
// manually once the device or permission state is corrected.
type DeviceError struct {
	Cause DeviceErrorCause
	Err   error
}

func (e *DeviceError) Error() string {
	switch e.Cause {
	case DeviceCausePermissionDenied:
		return "Microphone access denied. Please allow permissions in your system settings."
	case DeviceCauseNotFound:
		return "No microphone device found."
	case DeviceCauseBusy:
		return "Microphone is currently busy or not readable."
	case DeviceCauseUnsupported:
		return "No audio API is available on this platform."
	default:
		if e.Err != nil {
			return fmt.Sprintf("Microphone error: %v", e.Err)
		}
		return "Microphone permission denied."
	}
}

func (e *DeviceError) Unwrap() error { return e.Err }

// NewDeviceError wraps a raw device failure with its classified cause.
func NewDeviceError(cause DeviceErrorCause, err error) *DeviceError {
	return &DeviceError{Cause: cause, Err: err}
}

// ClassifyRemoteError maps a raw error description from the remote service
// onto a fixed set of user-facing messages. The match is substring-based and
// best-effort; anything unrecognized falls through to the raw message, or to
// a generic message when the description is empty.
func ClassifyRemoteError(raw string) string {
	switch {
	case strings.Contains(raw, "401"), strings.Contains(raw, "Unauthenticated"):
		return "Authentication failed. Please check your API key."
	case strings.Contains(raw, "403"):
		return "Access denied. Your API key may lack permissions."
	case strings.Contains(raw, "429"):
		return "Usage limit exceeded. Please try again later."
	case strings.Contains(raw, "503"), strings.Contains(raw, "500"):
		return "Service unavailable. Google Gemini is experiencing issues."
	case strings.Contains(raw, "not found"):
		return "Model not found or not supported in your region."
	case raw != "":
		return raw
	default:
		return "An unexpected connection error occurred."
	}
}
