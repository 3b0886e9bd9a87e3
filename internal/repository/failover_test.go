package repository

import (
	"context"
	"testing"
	"time"

	"rehabflow/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailoverAttemptLogUsesPrimary(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	primary := NewRedisAttemptLog(client, time.Hour)
	fallback := NewMemoryAttemptLog()
	logger := zerolog.Nop()
	log := NewFailoverAttemptLog(primary, fallback, &logger)

	ctx := context.Background()
	attempt := &models.NotificationAttempt{BookingID: "b-1", Kind: models.KindConfirmed, Notified: true, At: time.Now()}
	require.NoError(t, log.Record(ctx, attempt))

	attempts, err := log.Attempts(ctx, "b-1")
	require.NoError(t, err)
	assert.Len(t, attempts, 1)

	// fallback stays untouched while primary is healthy
	memAttempts, err := fallback.Attempts(ctx, "b-1")
	require.NoError(t, err)
	assert.Empty(t, memAttempts)
}

func TestFailoverAttemptLogFallsBack(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	primary := NewRedisAttemptLog(client, time.Hour)
	fallback := NewMemoryAttemptLog()
	logger := zerolog.Nop()
	log := NewFailoverAttemptLog(primary, fallback, &logger)

	// kill the primary before the first write
	s.Close()

	ctx := context.Background()
	attempt := &models.NotificationAttempt{BookingID: "b-2", Kind: models.KindCancelled, Notified: false, At: time.Now()}
	require.NoError(t, log.Record(ctx, attempt))

	attempts, err := log.Attempts(ctx, "b-2")
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, models.KindCancelled, attempts[0].Kind)

	// subsequent writes keep landing in memory without erroring
	require.NoError(t, log.Record(ctx, attempt))
	attempts, err = log.Attempts(ctx, "b-2")
	require.NoError(t, err)
	assert.Len(t, attempts, 2)
}

func TestMemoryAttemptLogIsolation(t *testing.T) {
	log := NewMemoryAttemptLog()
	ctx := context.Background()

	attempt := &models.NotificationAttempt{BookingID: "b-3", Kind: models.KindConfirmed, Notified: true}
	require.NoError(t, log.Record(ctx, attempt))

	// mutating the recorded struct must not leak into the log
	attempt.Notified = false

	attempts, err := log.Attempts(ctx, "b-3")
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Notified)
}
