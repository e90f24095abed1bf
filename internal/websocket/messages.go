package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/domain/entities"
	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/usecase"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	// Server to client.
	MessageTypeSnapshot   MessageType = "snapshot"
	MessageTypeState      MessageType = "state"
	MessageTypeVolume     MessageType = "volume"
	MessageTypeTranscript MessageType = "transcript"
	MessageTypeError      MessageType = "error"

	// Client to server.
	MessageTypeConnect    MessageType = "connect"
	MessageTypeDisconnect MessageType = "disconnect"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
}

// SnapshotMessage carries the full observable state, sent once on join.
type SnapshotMessage struct {
	BaseMessage
	Snapshot usecase.Snapshot `json:"snapshot"`
}

// StateMessage reports a connection-state transition.
type StateMessage struct {
	BaseMessage
	State entities.ConnectionState `json:"state"`
	Error string                   `json:"error,omitempty"`
}

// VolumeMessage reports the latest input/output loudness.
type VolumeMessage struct {
	BaseMessage
	Volume entities.VolumeState `json:"volume"`
}

// TranscriptMessage carries the transcript log after a change.
type TranscriptMessage struct {
	BaseMessage
	Items []entities.TranscriptItem `json:"items"`
}

// ErrorMessage reports a protocol-level problem with a client request.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// ControlMessage is a client request to start or stop a practice session.
type ControlMessage struct {
	Type      MessageType `json:"type"`
	ProfileID string      `json:"profile_id,omitempty"`
	VoiceName string      `json:"voice_name,omitempty"`
}

// ParseControlMessage decodes and validates an inbound control message.
func ParseControlMessage(data []byte) (*ControlMessage, error) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch msg.Type {
	case MessageTypeConnect:
		if msg.ProfileID == "" {
			return nil, fmt.Errorf("profile_id is required for connect")
		}
	case MessageTypeDisconnect:
		// No fields required.
	case "":
		return nil, fmt.Errorf("message missing type field")
	default:
		return nil, fmt.Errorf("unsupported message type: %s", msg.Type)
	}
	return &msg, nil
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().Format(time.RFC3339)}
}

// NewSnapshotMessage wraps the full observable state for a joining client.
func NewSnapshotMessage(snapshot usecase.Snapshot) *SnapshotMessage {
	return &SnapshotMessage{BaseMessage: newBase(MessageTypeSnapshot), Snapshot: snapshot}
}

// NewStateMessage wraps a connection-state transition.
func NewStateMessage(state entities.ConnectionState, errMsg string) *StateMessage {
	return &StateMessage{BaseMessage: newBase(MessageTypeState), State: state, Error: errMsg}
}

// NewVolumeMessage wraps a loudness update.
func NewVolumeMessage(volume entities.VolumeState) *VolumeMessage {
	return &VolumeMessage{BaseMessage: newBase(MessageTypeVolume), Volume: volume}
}

// NewTranscriptMessage wraps a transcript-log change.
func NewTranscriptMessage(items []entities.TranscriptItem) *TranscriptMessage {
	return &TranscriptMessage{BaseMessage: newBase(MessageTypeTranscript), Items: items}
}

// NewErrorMessage creates a standardized error message.
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{BaseMessage: newBase(MessageTypeError), Code: code, Message: message}
}
