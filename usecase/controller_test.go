package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/domain/entities"
	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/domain/repositories"
)

type recvResult struct {
	event *repositories.ServerEvent
	err   error
}

type fakeLiveSession struct {
	mu        sync.Mutex
	sent      [][]byte
	mimeTypes []string
	results   chan recvResult
	closeOnce sync.Once
	done      chan struct{}
}

func newFakeLiveSession() *fakeLiveSession {
	return &fakeLiveSession{
		results: make(chan recvResult, 16),
		done:    make(chan struct{}),
	}
}

func (s *fakeLiveSession) SendAudio(data []byte, mimeType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, data)
	s.mimeTypes = append(s.mimeTypes, mimeType)
	return nil
}

func (s *fakeLiveSession) Receive() (*repositories.ServerEvent, error) {
	select {
	case r := <-s.results:
		return r.event, r.err
	case <-s.done:
		return nil, io.EOF
	}
}

func (s *fakeLiveSession) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *fakeLiveSession) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *fakeLiveSession) push(event *repositories.ServerEvent) {
	s.results <- recvResult{event: event}
}

func (s *fakeLiveSession) pushErr(err error) {
	s.results <- recvResult{err: err}
}

type fakeDialer struct {
	mu          sync.Mutex
	validateErr error
	dialErr     error
	session     *fakeLiveSession
	dials       int
}

func (d *fakeDialer) Validate() error { return d.validateErr }

func (d *fakeDialer) Dial(ctx context.Context, cfg repositories.LiveConfig) (repositories.LiveSession, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return d.session, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type fakeCaptureDevice struct {
	frames    chan []float32
	closeOnce sync.Once
	done      chan struct{}
}

func newFakeCaptureDevice() *fakeCaptureDevice {
	return &fakeCaptureDevice{
		frames: make(chan []float32, 16),
		done:   make(chan struct{}),
	}
}

func (d *fakeCaptureDevice) Read() ([]float32, error) {
	select {
	case frame := <-d.frames:
		return frame, nil
	case <-d.done:
		return nil, io.EOF
	}
}

func (d *fakeCaptureDevice) Close() error {
	d.closeOnce.Do(func() { close(d.done) })
	return nil
}

func (d *fakeCaptureDevice) closed() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

type fakeCaptureOpener struct {
	device  *fakeCaptureDevice
	openErr error
	block   chan struct{}
}

func (o *fakeCaptureOpener) Open(ctx context.Context, sampleRate, bufferSize int) (repositories.CaptureDevice, error) {
	if o.block != nil {
		<-o.block
	}
	if o.openErr != nil {
		return nil, o.openErr
	}
	return o.device, nil
}

type nopPlaybackDevice struct{}

func (nopPlaybackDevice) Play([]int16) error { return nil }
func (nopPlaybackDevice) Stop() error        { return nil }
func (nopPlaybackDevice) Close() error       { return nil }

func newTestController(dialer *fakeDialer, opener *fakeCaptureOpener) *Controller {
	return NewController(dialer, opener, nopPlaybackDevice{}, clock.NewMock(), Config{
		Model: "gemini-2.5-flash-native-audio-preview-12-2025",
	}, zap.NewNop())
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestControllerConnectHappyPath(t *testing.T) {
	session := newFakeLiveSession()
	dialer := &fakeDialer{session: session}
	device := newFakeCaptureDevice()
	c := newTestController(dialer, &fakeCaptureOpener{device: device})

	if err := c.Connect(context.Background(), "spanish", ""); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if got := c.State(); got != entities.ConnectionStateConnected {
		t.Fatalf("expected CONNECTED, got %s", got)
	}

	// A captured frame flows out as encoded audio.
	device.frames <- []float32{0.1, -0.1, 0.2, -0.2}
	waitFor(t, func() bool { return session.sentCount() > 0 }, "captured frame was never sent")

	session.mu.Lock()
	mime := session.mimeTypes[0]
	size := len(session.sent[0])
	session.mu.Unlock()
	if mime != "audio/pcm;rate=16000" {
		t.Errorf("unexpected mime type %q", mime)
	}
	if size != 8 {
		t.Errorf("expected 8 encoded bytes for 4 samples, got %d", size)
	}

	snap := c.Snapshot()
	if snap.Volume.Input <= 0 {
		t.Error("input volume should follow the captured frame")
	}

	c.Disconnect()
	if got := c.State(); got != entities.ConnectionStateDisconnected {
		t.Errorf("expected DISCONNECTED after disconnect, got %s", got)
	}
	if !device.closed() {
		t.Error("capture device should be closed on disconnect")
	}
}

func TestControllerConnectIgnoredWhileActive(t *testing.T) {
	session := newFakeLiveSession()
	dialer := &fakeDialer{session: session}
	c := newTestController(dialer, &fakeCaptureOpener{device: newFakeCaptureDevice()})

	if err := c.Connect(context.Background(), "spanish", ""); err != nil {
		t.Fatal(err)
	}
	if err := c.Connect(context.Background(), "french", ""); err != nil {
		t.Fatalf("duplicate connect should be a silent no-op, got %v", err)
	}
	if got := dialer.dialCount(); got != 1 {
		t.Errorf("duplicate connect must not dial again, got %d dials", got)
	}
	c.Disconnect()
}

func TestControllerTranscriptLifecycle(t *testing.T) {
	session := newFakeLiveSession()
	dialer := &fakeDialer{session: session}
	c := newTestController(dialer, &fakeCaptureOpener{device: newFakeCaptureDevice()})

	if err := c.Connect(context.Background(), "spanish", ""); err != nil {
		t.Fatal(err)
	}

	session.push(&repositories.ServerEvent{InputTranscription: "Hola"})
	session.push(&repositories.ServerEvent{TurnComplete: true})

	waitFor(t, func() bool {
		items := c.Snapshot().Transcripts
		return len(items) == 1 && !items[0].IsPartial
	}, "input transcription never finalized")

	items := c.Snapshot().Transcripts
	if items[0].Role != entities.RoleUser || items[0].Text != "Hola" {
		t.Errorf("unexpected item: %+v", items[0])
	}

	// Disconnect wipes the transcript for the next session.
	c.Disconnect()
	if got := len(c.Snapshot().Transcripts); got != 0 {
		t.Errorf("transcript should be cleared on disconnect, got %d items", got)
	}
}

func TestControllerInterruptionDiscardsModelPending(t *testing.T) {
	session := newFakeLiveSession()
	dialer := &fakeDialer{session: session}
	c := newTestController(dialer, &fakeCaptureOpener{device: newFakeCaptureDevice()})

	if err := c.Connect(context.Background(), "japanese", ""); err != nil {
		t.Fatal(err)
	}

	session.push(&repositories.ServerEvent{OutputTranscription: "こんに"})
	session.push(&repositories.ServerEvent{Interrupted: true})
	session.push(&repositories.ServerEvent{TurnComplete: true})

	waitFor(t, func() bool { return len(c.Snapshot().Transcripts) == 1 }, "model partial never appeared")
	// Give the completion event time to be dispatched before asserting.
	time.Sleep(20 * time.Millisecond)

	items := c.Snapshot().Transcripts
	if len(items) != 1 {
		t.Fatalf("expected only the stale partial item, got %d", len(items))
	}
	if !items[0].IsPartial {
		t.Error("discarded model text must not be finalized by a later turn completion")
	}
	c.Disconnect()
}

func TestControllerRemoteCloseKeepsTranscript(t *testing.T) {
	session := newFakeLiveSession()
	dialer := &fakeDialer{session: session}
	device := newFakeCaptureDevice()
	c := newTestController(dialer, &fakeCaptureOpener{device: device})

	if err := c.Connect(context.Background(), "german", ""); err != nil {
		t.Fatal(err)
	}

	session.push(&repositories.ServerEvent{InputTranscription: "Guten Tag"})
	waitFor(t, func() bool { return len(c.Snapshot().Transcripts) == 1 }, "transcription never appeared")

	session.pushErr(io.EOF)
	waitFor(t, func() bool {
		return c.State() == entities.ConnectionStateDisconnected
	}, "remote close should settle in DISCONNECTED")

	if c.Err() != "" {
		t.Errorf("clean remote close is not an error, got %q", c.Err())
	}
	if got := len(c.Snapshot().Transcripts); got != 1 {
		t.Errorf("transcript should survive a remote close, got %d items", got)
	}
	if !device.closed() {
		t.Error("capture device should be released on remote close")
	}
}

func TestControllerRemoteErrorClassified(t *testing.T) {
	session := newFakeLiveSession()
	dialer := &fakeDialer{session: session}
	c := newTestController(dialer, &fakeCaptureOpener{device: newFakeCaptureDevice()})

	if err := c.Connect(context.Background(), "english", ""); err != nil {
		t.Fatal(err)
	}

	session.pushErr(errors.New("rpc error: code 429 resource exhausted"))
	waitFor(t, func() bool {
		return c.State() == entities.ConnectionStateError
	}, "remote error should settle in ERROR")

	if got, want := c.Err(), "Usage limit exceeded. Please try again later."; got != want {
		t.Errorf("expected classified message %q, got %q", want, got)
	}
}

func TestControllerMissingCredential(t *testing.T) {
	dialer := &fakeDialer{validateErr: entities.ErrMissingAPIKey}
	c := newTestController(dialer, &fakeCaptureOpener{device: newFakeCaptureDevice()})

	err := c.Connect(context.Background(), "spanish", "")
	if !errors.Is(err, entities.ErrMissingAPIKey) {
		t.Fatalf("expected missing-key error, got %v", err)
	}
	if got := c.State(); got != entities.ConnectionStateError {
		t.Errorf("expected ERROR, got %s", got)
	}
	if got := dialer.dialCount(); got != 0 {
		t.Errorf("validation must fail before dialing, got %d dials", got)
	}

	// The failure is not sticky: a later attempt is allowed.
	session := newFakeLiveSession()
	dialer.validateErr = nil
	dialer.session = session
	if err := c.Connect(context.Background(), "spanish", ""); err != nil {
		t.Fatalf("retry after error should proceed: %v", err)
	}
	if got := c.State(); got != entities.ConnectionStateConnected {
		t.Errorf("expected CONNECTED after retry, got %s", got)
	}
	if c.Err() != "" {
		t.Errorf("previous error should be cleared, got %q", c.Err())
	}
	c.Disconnect()
}

func TestControllerDeviceOpenError(t *testing.T) {
	dialer := &fakeDialer{session: newFakeLiveSession()}
	opener := &fakeCaptureOpener{
		openErr: entities.NewDeviceError(entities.DeviceCausePermissionDenied, errors.New("denied")),
	}
	c := newTestController(dialer, opener)

	if err := c.Connect(context.Background(), "french", ""); err == nil {
		t.Fatal("expected device error")
	}
	if got := c.State(); got != entities.ConnectionStateError {
		t.Errorf("expected ERROR, got %s", got)
	}
	want := "Microphone access denied. Please allow permissions in your system settings."
	if got := c.Err(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if got := dialer.dialCount(); got != 0 {
		t.Errorf("device failure must abort before dialing, got %d dials", got)
	}
}

func TestControllerUnknownProfile(t *testing.T) {
	dialer := &fakeDialer{session: newFakeLiveSession()}
	c := newTestController(dialer, &fakeCaptureOpener{device: newFakeCaptureDevice()})

	if err := c.Connect(context.Background(), "klingon", ""); err == nil {
		t.Fatal("expected unknown-profile error")
	}
	if got := c.State(); got != entities.ConnectionStateError {
		t.Errorf("expected ERROR, got %s", got)
	}
}

func TestControllerDialErrorClassified(t *testing.T) {
	dialer := &fakeDialer{dialErr: errors.New("connect: 503 service unavailable")}
	device := newFakeCaptureDevice()
	c := newTestController(dialer, &fakeCaptureOpener{device: device})

	if err := c.Connect(context.Background(), "korean", ""); err == nil {
		t.Fatal("expected dial error")
	}
	if got, want := c.Err(), "Service unavailable. Google Gemini is experiencing issues."; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if !device.closed() {
		t.Error("capture device should be released when the dial fails")
	}
}

func TestControllerDisconnectDuringPendingOpen(t *testing.T) {
	dialer := &fakeDialer{session: newFakeLiveSession()}
	device := newFakeCaptureDevice()
	opener := &fakeCaptureOpener{device: device, block: make(chan struct{})}
	c := newTestController(dialer, opener)

	connectDone := make(chan error, 1)
	go func() {
		connectDone <- c.Connect(context.Background(), "chinese", "")
	}()
	waitFor(t, func() bool {
		return c.State() == entities.ConnectionStateConnecting
	}, "connect never reached CONNECTING")

	c.Disconnect()
	if got := c.State(); got != entities.ConnectionStateDisconnected {
		t.Fatalf("expected DISCONNECTED, got %s", got)
	}

	// The device grant arrives after teardown; the late completion must
	// release it and start nothing.
	close(opener.block)
	if err := <-connectDone; err != nil {
		t.Fatalf("aborted connect should return nil, got %v", err)
	}
	waitFor(t, device.closed, "late device grant should be released")
	if got := dialer.dialCount(); got != 0 {
		t.Errorf("no dial may happen after teardown, got %d", got)
	}
	if got := c.State(); got != entities.ConnectionStateDisconnected {
		t.Errorf("state should remain DISCONNECTED, got %s", got)
	}
}
