package entities

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the speaker of a transcript item.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// TranscriptItem is one utterance in the ordered transcript log. While
// IsPartial is true the item is still being extended by streamed fragments;
// once finalized it is immutable.
type TranscriptItem struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	IsPartial bool      `json:"is_partial"`
}

// NewTranscriptItem creates a transcript item with a fresh identifier.
func NewTranscriptItem(role Role, text string, partial bool) TranscriptItem {
	return TranscriptItem{
		ID:        uuid.New().String(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
		IsPartial: partial,
	}
}
