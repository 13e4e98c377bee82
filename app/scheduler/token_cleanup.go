// Package scheduler runs periodic maintenance jobs in the background
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/logger"
	"github.com/Belgarat/freedownloadlandingpage/repository"
	"github.com/Belgarat/freedownloadlandingpage/utils"
)

// TokenCleanupScheduler periodically deletes download tokens that are long past their expiry
type TokenCleanupScheduler struct {
	tokens    repository.DownloadTokenRepository
	log       *logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time

	purged atomic.Int64
}

func NewTokenCleanupScheduler(
	tokens repository.DownloadTokenRepository,
	log *logger.Logger,
	interval time.Duration,
	retention time.Duration,
) *TokenCleanupScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention < utils.DownloadTokenTTL {
		retention = utils.DownloadTokenTTL
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &TokenCleanupScheduler{
		tokens:    tokens,
		log:       log.With("component", "token_cleanup"),
		interval:  interval,
		retention: retention,
		now:       utils.UTCNow,
	}
}

// Start launches the scheduler loop in a background goroutine and returns a stop function.
// The stop function waits for an in-flight run to finish.
func (s *TokenCleanupScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// RunOnce deletes every token issued before now minus the retention window
func (s *TokenCleanupScheduler) RunOnce(ctx context.Context) int64 {
	runCtx, cancel := context.WithTimeout(ctx, utils.RequestTimeout)
	defer cancel()

	cutoff := s.now().Add(-s.retention)
	n, err := s.tokens.DeleteCreatedBefore(runCtx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("Download token cleanup failed", "cutoff", cutoff, "error", err)
		}
		return 0
	}
	if n > 0 {
		s.purged.Add(n)
		s.log.Info("Purged expired download tokens", "count", n, "cutoff", cutoff)
	}
	return n
}

// Purged reports how many tokens were deleted since start
func (s *TokenCleanupScheduler) Purged() int64 {
	return s.purged.Load()
}
