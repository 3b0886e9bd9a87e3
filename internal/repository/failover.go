package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"rehabflow/internal/domain"
	"rehabflow/internal/models"

	"github.com/rs/zerolog"
)

// FailoverAttemptLog writes to the primary log and falls back to the
// in-memory one when the primary errors. The primary is probed again after
// a minute of downtime.
type FailoverAttemptLog struct {
	primary  domain.AttemptLog
	fallback domain.AttemptLog
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverAttemptLog(primary, fallback domain.AttemptLog, logger *zerolog.Logger) *FailoverAttemptLog {
	return &FailoverAttemptLog{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (f *FailoverAttemptLog) markDown(err error) {
	f.logger.Error().Err(err).Msg("primary attempt log failed, falling back to memory")
	f.isDown.Store(true)
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
}

func (f *FailoverAttemptLog) shouldProbe() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if time.Since(f.lastCheck) <= time.Minute {
		return false
	}
	f.lastCheck = time.Now()
	return true
}

func (f *FailoverAttemptLog) Record(ctx context.Context, attempt *models.NotificationAttempt) error {
	if !f.isDown.Load() {
		err := f.primary.Record(ctx, attempt)
		if err == nil {
			return nil
		}
		f.markDown(err)
	} else if f.shouldProbe() {
		if err := f.primary.Record(ctx, attempt); err == nil {
			f.isDown.Store(false)
			return nil
		}
	}

	return f.fallback.Record(ctx, attempt)
}

func (f *FailoverAttemptLog) Attempts(ctx context.Context, bookingID string) ([]*models.NotificationAttempt, error) {
	if !f.isDown.Load() {
		attempts, err := f.primary.Attempts(ctx, bookingID)
		if err == nil {
			return attempts, nil
		}
		f.markDown(err)
	} else if f.shouldProbe() {
		if attempts, err := f.primary.Attempts(ctx, bookingID); err == nil {
			f.isDown.Store(false)
			return attempts, nil
		}
	}

	return f.fallback.Attempts(ctx, bookingID)
}
