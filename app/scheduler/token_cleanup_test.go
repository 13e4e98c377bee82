package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/models"
	"github.com/Belgarat/freedownloadlandingpage/repository"
	testingutil "github.com/Belgarat/freedownloadlandingpage/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCleanupRunOnce(t *testing.T) {
	testDB := testingutil.SetupTestDB(t)
	fixtures := testingutil.NewTestFixtures(testDB)
	tokens := repository.NewDownloadTokenRepository(testDB.DB)
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

	for _, age := range []time.Duration{10 * 24 * time.Hour, 8 * 24 * time.Hour, 24 * time.Hour, time.Hour} {
		_, err := fixtures.CreateDownloadToken("reader@example.com", now.Add(-age), 24*time.Hour)
		require.NoError(t, err)
	}

	s := NewTokenCleanupScheduler(tokens, nil, time.Hour, 7*24*time.Hour)
	s.now = func() time.Time { return now }

	assert.Equal(t, int64(2), s.RunOnce(context.Background()))
	assert.Equal(t, int64(0), s.RunOnce(context.Background()))
	assert.Equal(t, int64(2), s.Purged())

	left, err := tokens.Count(context.Background(), models.DownloadTokenFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), left)
}

func TestTokenCleanupRetentionNeverBelowTokenLifetime(t *testing.T) {
	s := NewTokenCleanupScheduler(nil, nil, 0, time.Minute)
	assert.Equal(t, 24*time.Hour, s.retention)
	assert.Equal(t, time.Hour, s.interval)
}

func TestTokenCleanupStartRunsImmediately(t *testing.T) {
	testDB := testingutil.SetupTestDB(t)
	fixtures := testingutil.NewTestFixtures(testDB)
	_, err := fixtures.CreateDownloadToken("old@example.com", time.Now().UTC().Add(-30*24*time.Hour), 24*time.Hour)
	require.NoError(t, err)

	s := NewTokenCleanupScheduler(repository.NewDownloadTokenRepository(testDB.DB), nil, time.Hour, 7*24*time.Hour)
	stop := s.Start(context.Background())

	require.Eventually(t, func() bool { return s.Purged() == 1 }, 5*time.Second, 10*time.Millisecond)
	stop()
}
