package repositories

import "context"

// LiveConfig is the session configuration negotiated at open: response
// modality is always audio, transcription is enabled in both directions.
type LiveConfig struct {
	Model             string
	VoiceName         string
	SystemInstruction string
	InputSampleRate   int
	OutputSampleRate  int
}

// ServerEvent is one inbound message from the remote service, flattened into
// a tagged variant so the controller can dispatch it in arrival order.
type ServerEvent struct {
	// Audio carries raw PCM from the model turn, empty when the message
	// had no audio payload.
	Audio []byte

	// Interrupted signals that the user started speaking while model audio
	// was still playing; all scheduled playback must stop immediately.
	Interrupted bool

	// InputTranscription and OutputTranscription are incremental text
	// fragments for the user and model turns respectively.
	InputTranscription  string
	OutputTranscription string

	// TurnComplete bounds one exchange unit.
	TurnComplete bool
}

// LiveSession is one open bidirectional streaming channel to the remote
// conversational service. Owned exclusively by the session controller.
type LiveSession interface {
	// SendAudio forwards one wire-encoded audio frame. Returns an error
	// once the session is closed.
	SendAudio(data []byte, mimeType string) error

	// Receive blocks until the next server event arrives. It returns
	// io.EOF on a clean remote close and a descriptive error otherwise.
	Receive() (*ServerEvent, error)

	Close() error
}

// LiveDialer opens live sessions against the remote service.
type LiveDialer interface {
	// Validate fails fast when the remote-service credential is missing
	// or malformed, before any device is acquired.
	Validate() error

	Dial(ctx context.Context, config LiveConfig) (LiveSession, error)
}
