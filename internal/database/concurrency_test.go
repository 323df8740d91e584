package database

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"handyhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "concurrency.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestConcurrentStatusUpdateOneWinner(t *testing.T) {
	db := newFileDB(t)
	ctx := context.Background()

	b := newBooking()
	require.NoError(t, db.CreateBooking(ctx, b))

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make(chan error, numGoroutines)
	statuses := []string{models.StatusConfirm, models.StatusRejected, models.StatusCancel}

	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()
			results <- db.UpdateBookingStatusWithVersion(ctx, b.ID, 1, statuses[i%len(statuses)])
		}(i)
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
		} else {
			assert.ErrorIs(t, err, ErrConcurrentModification)
		}
	}

	assert.Equal(t, 1, successCount, "exactly one writer must win at version 1")

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Contains(t, statuses, got.Status)
}

func TestConcurrentVerifyOneCompletion(t *testing.T) {
	db := newFileDB(t)
	ctx := context.Background()

	b := newBooking()
	require.NoError(t, db.CreateBooking(ctx, b))
	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, b.ID, 1, models.StatusConfirm))
	require.NoError(t, db.SetChallengeWithVersion(ctx, b.ID, 2, "123456", time.Now().Add(5*time.Minute)))

	const numGoroutines = 8
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			results <- db.CompleteWithVersion(ctx, b.ID, 3)
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
		}
	}

	assert.Equal(t, 1, successCount, "a code is consumable exactly once")

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Empty(t, got.OTPCode)
}

func TestConcurrentFeedbackSingleWrite(t *testing.T) {
	db := newFileDB(t)
	ctx := context.Background()

	b := newBooking()
	require.NoError(t, db.CreateBooking(ctx, b))
	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, b.ID, 1, models.StatusConfirm))
	require.NoError(t, db.CompleteWithVersion(ctx, b.ID, 2))

	const numGoroutines = 8
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			results <- db.SetFeedbackWithVersion(ctx, b.ID, 3, "race entry")
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
		}
	}

	assert.Equal(t, 1, successCount)

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.FeedbackGiven)
}
