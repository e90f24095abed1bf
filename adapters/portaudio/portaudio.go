// Package portaudio provides microphone capture and speaker playback on the
// host's default audio devices.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/domain/entities"
	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/domain/repositories"
)

// Setup initializes the portaudio runtime and returns its teardown.
func Setup() (func(), error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, entities.NewDeviceError(entities.DeviceCauseUnsupported,
			fmt.Errorf("error initializing portaudio: %w", err))
	}
	return func() { _ = portaudio.Terminate() }, nil
}

// classifyOpenError maps a raw portaudio failure onto a device-error cause.
// Host APIs word these differently, so the match is substring-based.
func classifyOpenError(err error) *entities.DeviceError {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission") || strings.Contains(msg, "access denied"):
		return entities.NewDeviceError(entities.DeviceCausePermissionDenied, err)
	case strings.Contains(msg, "no device") || strings.Contains(msg, "no default") ||
		strings.Contains(msg, "invalid device") || strings.Contains(msg, "device unavailable"):
		return entities.NewDeviceError(entities.DeviceCauseNotFound, err)
	case strings.Contains(msg, "busy") || strings.Contains(msg, "in use"):
		return entities.NewDeviceError(entities.DeviceCauseBusy, err)
	default:
		return entities.NewDeviceError(entities.DeviceCauseUnknown, err)
	}
}

// CaptureOpener opens the default input device.
type CaptureOpener struct {
	logger *zap.Logger
}

func NewCaptureOpener(logger *zap.Logger) *CaptureOpener {
	return &CaptureOpener{logger: logger}
}

func (o *CaptureOpener) Open(ctx context.Context, sampleRate, bufferSize int) (repositories.CaptureDevice, error) {
	d := &captureDevice{
		in:     make([]float32, bufferSize),
		logger: o.logger,
	}
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), bufferSize, &d.in)
	if err != nil {
		return nil, classifyOpenError(err)
	}
	d.stream = stream
	o.logger.Info("Capture device opened",
		zap.Int("sample_rate", sampleRate),
		zap.Int("buffer_size", bufferSize))
	return d, nil
}

type captureDevice struct {
	in     []float32
	logger *zap.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	started bool
	closed  bool
}

// Read blocks until one full buffer of samples is captured. The stream is
// started lazily on the first read.
func (d *captureDevice) Read() ([]float32, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, errors.New("capture device is closed")
	}
	if !d.started {
		if err := d.stream.Start(); err != nil {
			d.mu.Unlock()
			return nil, fmt.Errorf("error starting audio stream: %w", err)
		}
		d.started = true
	}
	stream := d.stream
	d.mu.Unlock()

	if err := stream.Read(); err != nil {
		d.mu.Lock()
		closed := d.closed
		d.mu.Unlock()
		if closed {
			return nil, errors.New("capture device is closed")
		}
		return nil, fmt.Errorf("error reading audio stream: %w", err)
	}
	return d.in, nil
}

func (d *captureDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.started {
		if err := d.stream.Abort(); err != nil {
			d.logger.Warn("Failed to abort capture stream", zap.Error(err))
		}
	}
	if err := d.stream.Close(); err != nil {
		return fmt.Errorf("error closing audio stream: %w", err)
	}
	return nil
}

// PlaybackDevice writes PCM chunks to the default output device. Chunks
// smaller than the device buffer are held as a remainder and flushed with the
// next write.
type PlaybackDevice struct {
	logger *zap.Logger

	mu        sync.Mutex
	out       []int16
	remainder []int16
	stream    *portaudio.Stream
	started   bool
	closed    bool
}

// NewPlaybackDevice opens the default output device.
func NewPlaybackDevice(sampleRate int, logger *zap.Logger) (*PlaybackDevice, error) {
	d := &PlaybackDevice{
		out:    make([]int16, 8192),
		logger: logger,
	}
	d.remainder = make([]int16, 0, len(d.out))
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), len(d.out), &d.out)
	if err != nil {
		return nil, classifyOpenError(err)
	}
	d.stream = stream
	logger.Info("Playback device opened", zap.Int("sample_rate", sampleRate))
	return d, nil
}

func (d *PlaybackDevice) Play(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("playback device is closed")
	}
	if !d.started {
		if err := d.stream.Start(); err != nil {
			return fmt.Errorf("error starting audio stream: %w", err)
		}
		d.started = true
	}

	if len(d.remainder) > 0 {
		samples = append(d.remainder, samples...)
		d.remainder = d.remainder[:0]
	}

	for chunk := range slices.Chunk(samples, len(d.out)) {
		if len(chunk) < len(d.out) {
			d.remainder = d.remainder[:len(chunk)]
			copy(d.remainder, chunk)
			break
		}
		copy(d.out, chunk)
		if err := d.stream.Write(); err != nil {
			if errors.Is(err, portaudio.OutputUnderflowed) {
				d.logger.Debug("Audio output underflowed", zap.Error(err))
				continue
			}
			return fmt.Errorf("error writing audio stream: %w", err)
		}
	}
	return nil
}

// Stop discards buffered audio immediately.
func (d *PlaybackDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.remainder = d.remainder[:0]
	if !d.started {
		return nil
	}
	d.started = false
	if err := d.stream.Abort(); err != nil {
		return fmt.Errorf("error stopping audio stream: %w", err)
	}
	return nil
}

func (d *PlaybackDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.started {
		if err := d.stream.Abort(); err != nil {
			d.logger.Warn("Failed to abort playback stream", zap.Error(err))
		}
	}
	if err := d.stream.Close(); err != nil {
		return fmt.Errorf("error closing audio stream: %w", err)
	}
	return nil
}
