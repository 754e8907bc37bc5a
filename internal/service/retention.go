package service

import (
	"context"
	"log"
	"sync"
	"time"

	"portal-rest-api/internal/repository"
)

// RetentionConfig holds configuration for the feedback retention scheduler.
type RetentionConfig struct {
	// Retention is how long resolved feedback is kept.
	// Default: 90 days
	Retention time.Duration

	// Interval is how often the purge runs.
	// Default: 24 hours
	Interval time.Duration

	// InitialDelay postpones the first purge after Start.
	// Default: 1 minute
	InitialDelay time.Duration
}

// RetentionScheduler periodically purges resolved feedback older than the
// retention window.
type RetentionScheduler struct {
	repo      repository.FeedbackRepository
	config    RetentionConfig
	now       func() time.Time
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewRetentionScheduler creates a new retention scheduler.
func NewRetentionScheduler(repo repository.FeedbackRepository, config RetentionConfig) *RetentionScheduler {
	if config.Retention == 0 {
		config.Retention = 90 * 24 * time.Hour
	}
	if config.Interval == 0 {
		config.Interval = 24 * time.Hour
	}
	if config.InitialDelay == 0 {
		config.InitialDelay = time.Minute
	}

	return &RetentionScheduler{
		repo:   repo,
		config: config,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *RetentionScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	log.Printf("[RetentionScheduler] Started - Interval: %v, Retention: %v",
		s.config.Interval, s.config.Retention)

	go func() {
		select {
		case <-time.After(s.config.InitialDelay):
			s.purge()
		case <-s.stopCh:
		}
	}()

	go s.run()
}

func (s *RetentionScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.purge()
		case <-s.stopCh:
			log.Printf("[RetentionScheduler] Stopped")
			return
		}
	}
}

func (s *RetentionScheduler) purge() {
	deleted, err := s.RunNow()
	if err != nil {
		log.Printf("[RetentionScheduler] Error during purge: %v", err)
		return
	}
	if deleted == 0 {
		log.Printf("[RetentionScheduler] No resolved feedback past retention")
	}
}

// Stop stops the scheduler.
func (s *RetentionScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}

// RunNow purges immediately and returns the number of removed records.
func (s *RetentionScheduler) RunNow() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	return s.repo.DeleteResolvedFeedback(ctx, s.now().Add(-s.config.Retention))
}
