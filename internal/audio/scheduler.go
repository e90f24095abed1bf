package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/domain/repositories"
)

// handle is one in-flight playback unit. It stays in the scheduler's active
// set from enqueue until playback naturally ends or is force-stopped.
type handle struct {
	samples    []int16
	startTimer *clock.Timer
	endTimer   *clock.Timer
}

// Scheduler decodes inbound PCM chunks and schedules them back-to-back on
// its clock. Start times are monotonic non-decreasing and chunks never
// overlap as long as Enqueue is called in delivery order; the scheduler does
// not reorder.
type Scheduler struct {
	clk        clock.Clock
	device     repositories.PlaybackDevice
	logger     *zap.Logger
	sampleRate int
	onVolume   func(float64)

	mu        sync.Mutex
	nextStart time.Time
	active    map[*handle]struct{}
}

// NewScheduler creates a playback scheduler for the given device. onVolume
// receives the output loudness of each decoded chunk and a zero once
// playback drains; pass nil to disable metering.
func NewScheduler(device repositories.PlaybackDevice, clk clock.Clock, onVolume func(float64), logger *zap.Logger) *Scheduler {
	return &Scheduler{
		clk:        clk,
		device:     device,
		logger:     logger,
		sampleRate: OutputSampleRate,
		onVolume:   onVolume,
		active:     make(map[*handle]struct{}),
	}
}

// Enqueue decodes one encoded chunk and schedules it to start at
// max(nextStart, now). A decode failure drops only that chunk; the session
// is expected to continue.
func (s *Scheduler) Enqueue(pcm []byte) error {
	samples, err := DecodePCM16(pcm)
	if err != nil {
		return fmt.Errorf("decode playback chunk: %w", err)
	}
	if len(samples) == 0 {
		return nil
	}

	if s.onVolume != nil {
		s.onVolume(OutputRMS(samples))
	}

	duration := time.Duration(len(samples)) * time.Second / time.Duration(s.sampleRate)

	s.mu.Lock()
	now := s.clk.Now()
	start := s.nextStart
	if start.Before(now) {
		start = now
	}
	s.nextStart = start.Add(duration)

	h := &handle{samples: samples}
	h.startTimer = s.clk.AfterFunc(start.Sub(now), func() { s.play(h) })
	h.endTimer = s.clk.AfterFunc(start.Add(duration).Sub(now), func() { s.finish(h) })
	s.active[h] = struct{}{}
	s.mu.Unlock()

	return nil
}

// Interrupt force-stops every in-flight playback unit, clears the active set
// and resets the playback clock so the next enqueued chunk starts
// immediately.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	for h := range s.active {
		h.startTimer.Stop()
		h.endTimer.Stop()
	}
	s.active = make(map[*handle]struct{})
	s.nextStart = time.Time{}
	s.mu.Unlock()

	if err := s.device.Stop(); err != nil {
		s.logger.Warn("Failed to stop playback device", zap.Error(err))
	}
	if s.onVolume != nil {
		s.onVolume(0)
	}
}

// Reset prepares the scheduler for a fresh session.
func (s *Scheduler) Reset() {
	s.Interrupt()
}

// ActiveCount reports how many playback units are currently audible or
// pending.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *Scheduler) play(h *handle) {
	s.mu.Lock()
	_, ok := s.active[h]
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := s.device.Play(h.samples); err != nil {
		s.logger.Warn("Playback write failed", zap.Error(err))
	}
}

func (s *Scheduler) finish(h *handle) {
	s.mu.Lock()
	if _, ok := s.active[h]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.active, h)
	s.mu.Unlock()

	if s.onVolume != nil {
		s.onVolume(0)
	}
}
