package entities

import (
	"time"
)

// ConnectionState represents the lifecycle state of the live session.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "DISCONNECTED"
	ConnectionStateConnecting   ConnectionState = "CONNECTING"
	ConnectionStateConnected    ConnectionState = "CONNECTED"
	ConnectionStateError        ConnectionState = "ERROR"
)

// VolumeState carries the latest normalized input/output loudness, each in [0,1].
// Input follows the most recent captured frame, output follows the most recent
// playback chunk and drops back to 0 when playback ends.
type VolumeState struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// Session represents one streaming connection lifetime. At most one session
// is active at a time; it is created on connect and destroyed on disconnect
// or unrecoverable error.
type Session struct {
	ProfileID         string    `json:"profile_id"`
	VoiceName         string    `json:"voice_name"`
	SystemInstruction string    `json:"-"`
	StartedAt         time.Time `json:"started_at"`
}

// NewSession records the negotiated persona and voice for a fresh connection.
func NewSession(profile LanguageProfile, voiceName string) *Session {
	if voiceName == "" {
		voiceName = profile.VoiceName
	}
	return &Session{
		ProfileID:         profile.ID,
		VoiceName:         voiceName,
		SystemInstruction: profile.SystemInstruction,
		StartedAt:         time.Now(),
	}
}
