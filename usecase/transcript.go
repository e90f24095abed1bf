package usecase

import (
	"sync"

	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/domain/entities"
)

// TurnAggregator accumulates streamed partial transcription fragments per
// speaker role into a single growing utterance, finalizes it on turn
// completion, and maintains the ordered append-only transcript log.
type TurnAggregator struct {
	mu           sync.Mutex
	pendingUser  string
	pendingModel string
	items        []entities.TranscriptItem
	onChange     func([]entities.TranscriptItem)
}

// NewTurnAggregator creates an aggregator. onChange receives a snapshot of
// the transcript log after every mutation; pass nil to disable.
func NewTurnAggregator(onChange func([]entities.TranscriptItem)) *TurnAggregator {
	return &TurnAggregator{onChange: onChange}
}

// AppendPartial concatenates a streamed fragment onto the role's accumulator
// and upserts the corresponding partial transcript item.
func (a *TurnAggregator) AppendPartial(role entities.Role, fragment string) {
	if fragment == "" {
		return
	}

	a.mu.Lock()
	var text string
	switch role {
	case entities.RoleModel:
		a.pendingModel += fragment
		text = a.pendingModel
	default:
		a.pendingUser += fragment
		text = a.pendingUser
	}
	a.updateTranscriptLocked(role, text, false)
	snapshot := a.snapshotLocked()
	a.mu.Unlock()

	a.notify(snapshot)
}

// FinalizeTurn flushes each non-empty accumulator as a finalized item and
// clears both. Calling it again with empty accumulators is a no-op, so
// duplicate turnComplete signals produce no duplicate items.
func (a *TurnAggregator) FinalizeTurn() {
	a.mu.Lock()
	changed := false
	if a.pendingUser != "" {
		a.updateTranscriptLocked(entities.RoleUser, a.pendingUser, true)
		changed = true
	}
	if a.pendingModel != "" {
		a.updateTranscriptLocked(entities.RoleModel, a.pendingModel, true)
		changed = true
	}
	a.pendingUser = ""
	a.pendingModel = ""
	var snapshot []entities.TranscriptItem
	if changed {
		snapshot = a.snapshotLocked()
	}
	a.mu.Unlock()

	if changed {
		a.notify(snapshot)
	}
}

// DiscardModelPending drops unflushed model text on interruption. The last
// emitted partial model item stays in the log as-is.
func (a *TurnAggregator) DiscardModelPending() {
	a.mu.Lock()
	a.pendingModel = ""
	a.mu.Unlock()
}

// Reset clears both accumulators and the transcript log.
func (a *TurnAggregator) Reset() {
	a.mu.Lock()
	a.pendingUser = ""
	a.pendingModel = ""
	a.items = nil
	a.mu.Unlock()

	a.notify(nil)
}

// Items returns a snapshot of the transcript log.
func (a *TurnAggregator) Items() []entities.TranscriptItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// updateTranscriptLocked is the sole mutator of the transcript log: it
// replaces the last item in place if it has the same role and is still
// partial, otherwise it appends a new item. Earlier history is never edited.
func (a *TurnAggregator) updateTranscriptLocked(role entities.Role, text string, final bool) {
	if n := len(a.items); n > 0 {
		last := a.items[n-1]
		if last.Role == role && last.IsPartial {
			last.Text = text
			last.IsPartial = !final
			a.items[n-1] = last
			return
		}
	}
	a.items = append(a.items, entities.NewTranscriptItem(role, text, !final))
}

func (a *TurnAggregator) snapshotLocked() []entities.TranscriptItem {
	out := make([]entities.TranscriptItem, len(a.items))
	copy(out, a.items)
	return out
}

func (a *TurnAggregator) notify(items []entities.TranscriptItem) {
	if a.onChange != nil {
		a.onChange(items)
	}
}
