// Package wavfile provides a capture device backed by a WAV file, for
// running sessions on hosts without a microphone.
package wavfile

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/domain/entities"
	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/domain/repositories"
	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/internal/audio"
)

// CaptureOpener opens WAV-file-backed capture devices. When Loop is set the
// file repeats forever, otherwise the device reports end-of-stream once the
// samples run out.
type CaptureOpener struct {
	Path string
	Loop bool

	clk    clock.Clock
	logger *zap.Logger
}

func NewCaptureOpener(path string, loop bool, clk clock.Clock, logger *zap.Logger) *CaptureOpener {
	return &CaptureOpener{Path: path, Loop: loop, clk: clk, logger: logger}
}

func (o *CaptureOpener) Open(ctx context.Context, sampleRate, bufferSize int) (repositories.CaptureDevice, error) {
	samples, fileRate, err := audio.ReadWAVFloat32(o.Path)
	if err != nil {
		return nil, entities.NewDeviceError(entities.DeviceCauseNotFound, err)
	}
	if fileRate != sampleRate {
		samples = resample(samples, fileRate, sampleRate)
	}

	o.logger.Info("WAV capture device opened",
		zap.String("path", o.Path),
		zap.Int("samples", len(samples)),
		zap.Bool("loop", o.Loop))

	return &captureDevice{
		samples:  samples,
		loop:     o.Loop,
		buffer:   make([]float32, bufferSize),
		interval: time.Duration(bufferSize) * time.Second / time.Duration(sampleRate),
		clk:      o.clk,
		done:     make(chan struct{}),
	}, nil
}

type captureDevice struct {
	samples  []float32
	loop     bool
	buffer   []float32
	interval time.Duration
	clk      clock.Clock

	pos       int
	started   bool
	closeOnce sync.Once
	done      chan struct{}
}

// Read returns the next frame at the real-time pace of the stream. The first
// frame is returned immediately.
func (d *captureDevice) Read() ([]float32, error) {
	select {
	case <-d.done:
		return nil, io.EOF
	default:
	}

	if d.started {
		timer := d.clk.Timer(d.interval)
		select {
		case <-timer.C:
		case <-d.done:
			timer.Stop()
			return nil, io.EOF
		}
	}
	d.started = true

	for i := range d.buffer {
		if d.pos >= len(d.samples) {
			if !d.loop {
				if i == 0 {
					return nil, io.EOF
				}
				for ; i < len(d.buffer); i++ {
					d.buffer[i] = 0
				}
				break
			}
			d.pos = 0
		}
		d.buffer[i] = d.samples[d.pos]
		d.pos++
	}
	return d.buffer, nil
}

func (d *captureDevice) Close() error {
	d.closeOnce.Do(func() { close(d.done) })
	return nil
}

// resample converts between sample rates by linear interpolation. Good
// enough for speech test fixtures.
func resample(in []float32, fromRate, toRate int) []float32 {
	if len(in) == 0 || fromRate == toRate {
		return in
	}
	outLen := int(int64(len(in)) * int64(toRate) / int64(fromRate))
	out := make([]float32, outLen)
	ratio := float64(fromRate) / float64(toRate)
	for i := range out {
		src := float64(i) * ratio
		j := int(src)
		if j >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(src - float64(j))
		out[i] = in[j]*(1-frac) + in[j+1]*frac
	}
	return out
}
