package repository

import (
	"context"
	"sync"

	"rehabflow/internal/models"
)

// MemoryAttemptLog is the in-process fallback when Redis is unavailable.
// Attempts recorded here are lost on restart, which is acceptable for an
// operator-facing audit trail.
type MemoryAttemptLog struct {
	mu       sync.RWMutex
	attempts map[string][]*models.NotificationAttempt
}

func NewMemoryAttemptLog() *MemoryAttemptLog {
	return &MemoryAttemptLog{attempts: make(map[string][]*models.NotificationAttempt)}
}

func (m *MemoryAttemptLog) Record(ctx context.Context, attempt *models.NotificationAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *attempt
	m.attempts[attempt.BookingID] = append(m.attempts[attempt.BookingID], &copied)
	return nil
}

func (m *MemoryAttemptLog) Attempts(ctx context.Context, bookingID string) ([]*models.NotificationAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.attempts[bookingID]
	out := make([]*models.NotificationAttempt, len(stored))
	copy(out, stored)
	return out, nil
}
