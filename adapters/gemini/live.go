package gemini

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/domain/entities"
	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/domain/repositories"
)

// Dialer opens live audio sessions against the Gemini Live API.
type Dialer struct {
	apiKey string
	logger *zap.Logger

	mu     sync.Mutex
	client *genai.Client
}

// NewDialer creates a dialer. The underlying API client is created lazily on
// the first Dial, so a missing key surfaces as a Validate error rather than a
// startup crash.
func NewDialer(apiKey string, logger *zap.Logger) *Dialer {
	return &Dialer{apiKey: apiKey, logger: logger}
}

// Validate fails fast when the API key is absent.
func (d *Dialer) Validate() error {
	if d.apiKey == "" {
		return entities.ErrMissingAPIKey
	}
	return nil
}

func (d *Dialer) ensureClient(ctx context.Context) (*genai.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client != nil {
		return d.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  d.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	d.client = client
	return client, nil
}

// Dial opens a bidirectional live session: audio responses only, with
// transcription enabled in both directions.
func (d *Dialer) Dial(ctx context.Context, cfg repositories.LiveConfig) (repositories.LiveSession, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	client, err := d.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	connectConfig := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: cfg.VoiceName,
				},
			},
		},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if cfg.SystemInstruction != "" {
		connectConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: cfg.SystemInstruction}},
		}
	}

	session, err := client.Live.Connect(ctx, cfg.Model, connectConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open live session: %w", err)
	}

	d.logger.Info("Live session opened",
		zap.String("model", cfg.Model),
		zap.String("voice", cfg.VoiceName))

	return &liveSession{session: session}, nil
}

// liveSession adapts one open genai live channel to the domain interface.
type liveSession struct {
	session *genai.Session
}

func (s *liveSession) SendAudio(data []byte, mimeType string) error {
	return s.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{
			Data:     data,
			MIMEType: mimeType,
		},
	})
}

// Receive blocks for the next meaningful server event. Messages without
// server content (setup acks, keepalives) are skipped.
func (s *liveSession) Receive() (*repositories.ServerEvent, error) {
	for {
		message, err := s.session.Receive()
		if err != nil {
			return nil, err
		}
		if event := toServerEvent(message); event != nil {
			return event, nil
		}
	}
}

func (s *liveSession) Close() error {
	return s.session.Close()
}

// toServerEvent flattens one wire message into the domain event, preserving
// the wire field order the controller dispatches in. Returns nil when the
// message carries nothing actionable.
func toServerEvent(message *genai.LiveServerMessage) *repositories.ServerEvent {
	content := message.ServerContent
	if content == nil {
		return nil
	}

	event := &repositories.ServerEvent{
		Interrupted:  content.Interrupted,
		TurnComplete: content.TurnComplete,
	}
	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				event.Audio = append(event.Audio, part.InlineData.Data...)
			}
		}
	}
	if content.InputTranscription != nil {
		event.InputTranscription = content.InputTranscription.Text
	}
	if content.OutputTranscription != nil {
		event.OutputTranscription = content.OutputTranscription.Text
	}

	if len(event.Audio) == 0 && !event.Interrupted && !event.TurnComplete &&
		event.InputTranscription == "" && event.OutputTranscription == "" {
		return nil
	}
	return event
}
