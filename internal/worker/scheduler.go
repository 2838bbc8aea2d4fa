// Package worker runs the periodic portfolio synchronization loop.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okx-folio/internal/logging"
)

// UserLister supplies the external identifiers to sync each tick
type UserLister interface {
	ListExternalIDs(ctx context.Context) ([]int64, error)
}

// Syncer refreshes one user's holdings
type Syncer interface {
	Sync(ctx context.Context, externalID int64) bool
}

// Scheduler periodically syncs every known user through a bounded worker
// pool. All workers funnel through the one market data client, so a single
// shared circuit breaker governs the whole pool; a degraded upstream trips
// once and every queued user fast-fails instead of hammering it.
type Scheduler struct {
	users    UserLister
	syncer   Syncer
	interval time.Duration
	workers  int

	running bool
	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a scheduler syncing all users every interval with up
// to workers concurrent syncs
func NewScheduler(users UserLister, syncer Syncer, interval time.Duration, workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		users:    users,
		syncer:   syncer,
		interval: interval,
		workers:  workers,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the sync loop. The first pass runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.mu.Unlock()

	logging.WithFields(map[string]interface{}{
		"interval": s.interval.String(),
		"workers":  s.workers,
	}).Info("sync scheduler starting")

	go s.loop(ctx)
	return nil
}

// Stop signals the loop and waits for the in-flight pass to finish
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	logging.Info("sync scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runPass(ctx)
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

// runPass syncs every known user once through the bounded pool
func (s *Scheduler) runPass(ctx context.Context) {
	ids, err := s.users.ListExternalIDs(ctx)
	if err != nil {
		logging.WithError(err).Error("sync pass aborted, user listing failed")
		return
	}
	if len(ids) == 0 {
		return
	}

	start := time.Now()
	jobs := make(chan int64)
	var synced, failed int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				ok := s.syncer.Sync(ctx, id)
				mu.Lock()
				if ok {
					synced++
				} else {
					failed++
				}
				mu.Unlock()
			}
		}()
	}

	for _, id := range ids {
		select {
		case <-s.stopCh:
			close(jobs)
			wg.Wait()
			return
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case jobs <- id:
		}
	}
	close(jobs)
	wg.Wait()

	logging.WithFields(map[string]interface{}{
		"users":    len(ids),
		"synced":   synced,
		"failed":   failed,
		"duration": time.Since(start).String(),
	}).Info("sync pass complete")
}
