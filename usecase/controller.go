package usecase

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/domain/entities"
	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/domain/repositories"
	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/internal/audio"
)

// Config carries the tunables of the session controller.
type Config struct {
	Model             string
	InputSampleRate   int
	OutputSampleRate  int
	CaptureBufferSize int
}

func (c Config) withDefaults() Config {
	if c.InputSampleRate == 0 {
		c.InputSampleRate = audio.InputSampleRate
	}
	if c.OutputSampleRate == 0 {
		c.OutputSampleRate = audio.OutputSampleRate
	}
	if c.CaptureBufferSize == 0 {
		c.CaptureBufferSize = audio.CaptureBufferSize
	}
	return c
}

// Controller owns the session lifecycle state machine. It opens the capture
// device, establishes the live session, wires captured frames to the send
// path and inbound server events to the playback scheduler and transcript
// aggregator, and tears everything down deterministically on disconnect or
// fatal error. Exactly one session is active at a time.
type Controller struct {
	cfg           Config
	dialer        repositories.LiveDialer
	captureOpener repositories.CaptureOpener
	scheduler     *audio.Scheduler
	aggregator    *TurnAggregator
	logger        *zap.Logger

	events chan Event

	mu      sync.Mutex
	epoch   int
	state   entities.ConnectionState
	errMsg  string
	volume  entities.VolumeState
	session repositories.LiveSession
	capture repositories.CaptureDevice
	current *entities.Session
}

// NewController wires the controller with its collaborators. The playback
// device and clock are handed to the internally-owned scheduler.
func NewController(
	dialer repositories.LiveDialer,
	captureOpener repositories.CaptureOpener,
	playback repositories.PlaybackDevice,
	clk clock.Clock,
	cfg Config,
	logger *zap.Logger,
) *Controller {
	c := &Controller{
		cfg:           cfg.withDefaults(),
		dialer:        dialer,
		captureOpener: captureOpener,
		logger:        logger,
		events:        make(chan Event, 256),
		state:         entities.ConnectionStateDisconnected,
	}
	c.aggregator = NewTurnAggregator(func(items []entities.TranscriptItem) {
		c.emit(TranscriptEvent{Items: items})
	})
	c.scheduler = audio.NewScheduler(playback, clk, c.setOutputVolume, logger)
	return c
}

// Events yields observable-state changes. Consumers that fall behind miss
// intermediate events; the latest state is always available via Snapshot.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:       c.state,
		Err:         c.errMsg,
		Volume:      c.volume,
		Transcripts: c.aggregator.Items(),
	}
}

// State returns the current connection state.
func (c *Controller) State() entities.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the current user-visible error message, empty when none.
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Connect establishes a new session with the chosen practice partner and
// voice. Ignored while a session is already connecting or connected. A
// failed attempt leaves the controller in ERROR; a later Connect is allowed
// and clears the previous error.
func (c *Controller) Connect(ctx context.Context, profileID, voiceName string) error {
	c.mu.Lock()
	if c.state == entities.ConnectionStateConnecting || c.state == entities.ConnectionStateConnected {
		c.mu.Unlock()
		c.logger.Debug("Connect ignored, session already active", zap.String("state", string(c.state)))
		return nil
	}
	c.epoch++
	epoch := c.epoch
	c.errMsg = ""
	c.setStateLocked(entities.ConnectionStateConnecting)
	c.mu.Unlock()

	profile, err := entities.ProfileByID(profileID)
	if err != nil {
		return c.failConnect(epoch, err.Error(), err)
	}
	sess := entities.NewSession(profile, voiceName)

	// Credential check comes first, before any device is touched.
	if err := c.dialer.Validate(); err != nil {
		return c.failConnect(epoch, err.Error(), err)
	}

	capture, err := c.captureOpener.Open(ctx, c.cfg.InputSampleRate, c.cfg.CaptureBufferSize)
	if err != nil {
		return c.failConnect(epoch, err.Error(), err)
	}
	if !c.stillConnecting(epoch) {
		// Disconnected while the open was pending; the late completion
		// must not start anything.
		if cerr := capture.Close(); cerr != nil {
			c.logger.Warn("Failed to close capture device after teardown", zap.Error(cerr))
		}
		return nil
	}

	c.scheduler.Reset()

	live, err := c.dialer.Dial(ctx, repositories.LiveConfig{
		Model:             c.cfg.Model,
		VoiceName:         sess.VoiceName,
		SystemInstruction: sess.SystemInstruction,
		InputSampleRate:   c.cfg.InputSampleRate,
		OutputSampleRate:  c.cfg.OutputSampleRate,
	})
	if err != nil {
		if cerr := capture.Close(); cerr != nil {
			c.logger.Warn("Failed to close capture device", zap.Error(cerr))
		}
		return c.failConnect(epoch, entities.ClassifyRemoteError(err.Error()), err)
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		if cerr := capture.Close(); cerr != nil {
			c.logger.Warn("Failed to close capture device after teardown", zap.Error(cerr))
		}
		if cerr := live.Close(); cerr != nil {
			c.logger.Warn("Failed to close live session after teardown", zap.Error(cerr))
		}
		return nil
	}
	c.capture = capture
	c.session = live
	c.current = sess
	c.setStateLocked(entities.ConnectionStateConnected)
	c.mu.Unlock()

	c.logger.Info("Session connected",
		zap.String("profile", sess.ProfileID),
		zap.String("voice", sess.VoiceName))

	// Capture starts only after the open handshake: frames can never be
	// issued against a channel that is not ready.
	go c.captureLoop(epoch, capture, live)
	go c.receiveLoop(epoch, live)

	return nil
}

// Disconnect tears the session down. Safe to call from any state, including
// while an asynchronous connect step is still pending.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	c.epoch++
	capture := c.capture
	live := c.session
	c.capture = nil
	c.session = nil
	c.current = nil
	c.mu.Unlock()

	// Teardown order: stop capture, stop playback, then close the remote
	// session, so nothing touches a torn-down resource.
	if capture != nil {
		if err := capture.Close(); err != nil {
			c.logger.Warn("Failed to close capture device", zap.Error(err))
		}
	}
	c.scheduler.Interrupt()
	if live != nil {
		if err := live.Close(); err != nil {
			c.logger.Warn("Failed to close live session", zap.Error(err))
		}
	}

	c.aggregator.Reset()

	c.mu.Lock()
	c.volume = entities.VolumeState{}
	c.errMsg = ""
	c.setStateLocked(entities.ConnectionStateDisconnected)
	c.mu.Unlock()
	c.emit(VolumeEvent{})
}

func (c *Controller) captureLoop(epoch int, capture repositories.CaptureDevice, live repositories.LiveSession) {
	for {
		samples, err := capture.Read()
		if err != nil {
			if c.currentEpoch() == epoch && !errors.Is(err, io.EOF) {
				c.logger.Warn("Capture read failed", zap.Error(err))
			}
			return
		}
		if c.currentEpoch() != epoch {
			// Torn down while a read was pending; drop the frame.
			return
		}

		c.setInputVolume(audio.InputRMS(samples))

		frame := audio.EncodeFrame(samples, c.cfg.InputSampleRate)
		if err := live.SendAudio(frame.Data, frame.MIMEType); err != nil {
			if c.currentEpoch() == epoch {
				c.logger.Warn("Failed to send audio frame", zap.Error(err))
			}
			return
		}
	}
}

func (c *Controller) receiveLoop(epoch int, live repositories.LiveSession) {
	for {
		event, err := live.Receive()
		if err != nil {
			if c.currentEpoch() != epoch {
				return
			}
			if errors.Is(err, io.EOF) {
				c.handleRemoteClose(epoch)
			} else {
				c.handleRemoteError(epoch, err)
			}
			return
		}
		if c.currentEpoch() != epoch {
			return
		}
		c.dispatch(event)
	}
}

// dispatch routes one inbound server event. Events are processed strictly in
// arrival order; audio and text within one event follow the wire layout:
// audio payload, interruption flag, transcriptions, turn completion.
func (c *Controller) dispatch(event *repositories.ServerEvent) {
	if len(event.Audio) > 0 {
		if err := c.scheduler.Enqueue(event.Audio); err != nil {
			// Best-effort playback: a bad chunk is dropped, the
			// session continues.
			c.logger.Warn("Dropped undecodable audio chunk", zap.Error(err))
		}
	}

	if event.Interrupted {
		c.scheduler.Interrupt()
		c.aggregator.DiscardModelPending()
	}

	if event.OutputTranscription != "" {
		c.aggregator.AppendPartial(entities.RoleModel, event.OutputTranscription)
	}
	if event.InputTranscription != "" {
		c.aggregator.AppendPartial(entities.RoleUser, event.InputTranscription)
	}

	if event.TurnComplete {
		c.aggregator.FinalizeTurn()
	}
}

func (c *Controller) handleRemoteClose(epoch int) {
	c.logger.Info("Live session closed by remote")
	c.teardownResources(epoch)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	c.volume = entities.VolumeState{}
	c.setStateLocked(entities.ConnectionStateDisconnected)
	c.mu.Unlock()
	c.emit(VolumeEvent{})
}

func (c *Controller) handleRemoteError(epoch int, err error) {
	message := entities.ClassifyRemoteError(err.Error())
	c.logger.Error("Live session error", zap.Error(err), zap.String("message", message))
	c.teardownResources(epoch)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	c.volume = entities.VolumeState{}
	c.errMsg = message
	c.setStateLocked(entities.ConnectionStateError)
	c.mu.Unlock()
	c.emit(VolumeEvent{})
}

// teardownResources releases the capture device, playback handles and the
// remote channel after a remote close or error. The transcript log is kept;
// only an explicit Disconnect clears it.
func (c *Controller) teardownResources(epoch int) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	capture := c.capture
	live := c.session
	c.capture = nil
	c.session = nil
	c.current = nil
	c.mu.Unlock()

	if capture != nil {
		if err := capture.Close(); err != nil {
			c.logger.Warn("Failed to close capture device", zap.Error(err))
		}
	}
	c.scheduler.Interrupt()
	if live != nil {
		if err := live.Close(); err != nil {
			c.logger.Warn("Failed to close live session", zap.Error(err))
		}
	}
}

func (c *Controller) failConnect(epoch int, message string, err error) error {
	c.logger.Error("Connect failed", zap.Error(err))

	c.mu.Lock()
	if c.epoch != epoch {
		// Disconnected while connecting; the explicit teardown already
		// settled the state.
		c.mu.Unlock()
		return err
	}
	c.errMsg = message
	c.setStateLocked(entities.ConnectionStateError)
	c.mu.Unlock()
	return err
}

func (c *Controller) currentEpoch() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

func (c *Controller) stillConnecting(epoch int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch == epoch
}

func (c *Controller) setStateLocked(state entities.ConnectionState) {
	if c.state == state {
		return
	}
	c.state = state
	c.emit(StateEvent{State: state, Err: c.errMsg})
}

func (c *Controller) setInputVolume(v float64) {
	c.mu.Lock()
	c.volume.Input = v
	volume := c.volume
	c.mu.Unlock()
	c.emit(VolumeEvent{Volume: volume})
}

func (c *Controller) setOutputVolume(v float64) {
	c.mu.Lock()
	c.volume.Output = v
	volume := c.volume
	c.mu.Unlock()
	c.emit(VolumeEvent{Volume: volume})
}

// emit publishes without blocking; slow consumers miss intermediate events
// rather than stalling the audio path.
func (c *Controller) emit(event Event) {
	select {
	case c.events <- event:
	default:
	}
}
