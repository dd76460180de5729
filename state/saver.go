package state

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard/domain"
	"taskboard/storage"
)

type saverConfig struct {
	attempts     int
	retryInitial time.Duration
	retryMax     time.Duration
	saveTimeout  time.Duration
}

func defaultSaverConfig() saverConfig {
	return saverConfig{
		attempts:     3,
		retryInitial: 250 * time.Millisecond,
		retryMax:     5 * time.Second,
		saveTimeout:  30 * time.Second,
	}
}

// saver writes state snapshots in the background. The mailbox holds one
// snapshot: a save in flight cannot be aborted, only superseded, and the
// stored envelope is last-write-wins, so intermediate snapshots are skipped.
type saver struct {
	cfg    saverConfig
	store  *storage.Store
	logger *log.Logger
	saved  func(domain.AppState)

	mu      sync.Mutex
	pending *domain.AppState
	closing bool

	kick   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newSaver(cfg saverConfig, store *storage.Store, logger *log.Logger, saved func(domain.AppState)) *saver {
	if cfg.attempts <= 0 {
		cfg.attempts = 1
	}
	s := &saver{
		cfg:    cfg,
		store:  store,
		logger: logger,
		saved:  saved,
		kick:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// request replaces the pending snapshot and wakes the worker.
func (s *saver) request(snap domain.AppState) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	s.pending = &snap
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// close flushes the pending snapshot and stops the worker.
func (s *saver) close() {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	s.closing = true
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}

func (s *saver) take() (domain.AppState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return domain.AppState{}, false
	}
	snap := *s.pending
	s.pending = nil
	return snap, true
}

func (s *saver) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.kick:
			s.drain()
		case <-s.stopCh:
			s.drain()
			return
		}
	}
}

func (s *saver) drain() {
	for {
		snap, ok := s.take()
		if !ok {
			return
		}
		s.save(snap)
	}
}

func (s *saver) save(snap domain.AppState) {
	for attempt := 0; attempt < s.cfg.attempts; attempt++ {
		if attempt > 0 {
			delay := exponentialBackoff(attempt, s.cfg.retryInitial, s.cfg.retryMax)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-s.stopCh:
				// Shutting down: retry immediately instead of waiting.
			}
			timer.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.saveTimeout)
		ok := s.store.Save(ctx, snap)
		cancel()
		if ok {
			if s.saved != nil {
				s.saved(snap)
			}
			return
		}

		// A newer snapshot supersedes the retry.
		s.mu.Lock()
		superseded := s.pending != nil
		s.mu.Unlock()
		if superseded {
			return
		}
	}
	s.logger.WithField("attempts", s.cfg.attempts).Error("state.save.abandoned")
}

func exponentialBackoff(attempt int, initial, max time.Duration) time.Duration {
	if attempt <= 0 {
		if initial <= 0 {
			return time.Second
		}
		return initial
	}
	if initial <= 0 {
		initial = time.Second
	}
	if max <= 0 {
		max = 10 * time.Second
	}
	backoff := float64(initial) * math.Pow(2, float64(attempt-1))
	if backoff > float64(max) {
		backoff = float64(max)
	}
	jitter := 0.2 * backoff
	return time.Duration(backoff + (rand.Float64()-0.5)*2*jitter)
}
