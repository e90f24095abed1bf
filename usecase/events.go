package usecase

import "github.com/iainfluencecoreprogenesis-stack/DirectSpeak/domain/entities"

// Event is one observable-state change published by the controller for UI
// consumers.
type Event interface {
	eventType() string
}

// StateEvent reports a connection-state transition, with the user-visible
// error message when the state is ERROR.
type StateEvent struct {
	State entities.ConnectionState
	Err   string
}

func (StateEvent) eventType() string { return "state" }

// VolumeEvent reports the latest input/output loudness.
type VolumeEvent struct {
	Volume entities.VolumeState
}

func (VolumeEvent) eventType() string { return "volume" }

// TranscriptEvent carries a snapshot of the transcript log after a change.
type TranscriptEvent struct {
	Items []entities.TranscriptItem
}

func (TranscriptEvent) eventType() string { return "transcript" }

// Snapshot is the full observable state, sent to UI clients when they join.
type Snapshot struct {
	State       entities.ConnectionState  `json:"state"`
	Err         string                    `json:"error,omitempty"`
	Volume      entities.VolumeState      `json:"volume"`
	Transcripts []entities.TranscriptItem `json:"transcripts"`
}
