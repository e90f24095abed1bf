package repositories

import "context"

// CaptureDevice is an open microphone stream delivering fixed-size blocks of
// floating-point PCM samples in [-1,1].
type CaptureDevice interface {
	// Read blocks until one full capture buffer is available. The returned
	// slice is only valid until the next Read call.
	Read() ([]float32, error)

	Close() error
}

// CaptureOpener acquires the capture device. Open failures are reported as
// *entities.DeviceError so callers can surface the specific cause
// (permission denied, not found, busy) instead of a generic failure.
type CaptureOpener interface {
	Open(ctx context.Context, sampleRate, bufferSize int) (CaptureDevice, error)
}

// PlaybackDevice renders decoded 16-bit PCM. The playback scheduler owns the
// pacing; Play hands one chunk to the device, Stop discards anything the
// device still has buffered.
type PlaybackDevice interface {
	Play(samples []int16) error
	Stop() error
	Close() error
}
