package database

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"rehabflow/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentStatusUpdates(t *testing.T) {
	logger := zerolog.New(io.Discard)
	dbPath := filepath.Join(t.TempDir(), "concurrency.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()
	db.SetServices(testServices)

	ctx := context.Background()
	booking := testBooking("Myofascial Release", time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), "11:00")
	require.NoError(t, db.CreateBooking(ctx, booking))

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			// Everyone races with the same starting version.
			results <- db.UpdateStatusWithVersion(ctx, booking.ID, booking.Version, models.StatusConfirmed)
		}()
	}

	wg.Wait()
	close(results)

	var succeeded, conflicted int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, ErrConcurrentModification):
			conflicted++
		}
	}

	assert.Equal(t, 1, succeeded, "exactly one concurrent update should win")
	assert.Equal(t, numGoroutines-1, conflicted)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	assert.Equal(t, int64(2), got.Version)
}
