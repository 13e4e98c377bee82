package services

import (
	"context"
	"testing"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/repository"
	testingutil "github.com/Belgarat/freedownloadlandingpage/testing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseCounterStore(t *testing.T) {
	testDB := testingutil.SetupTestDB(t)
	store := NewDatabaseCounterStore(repository.NewAnalyticsCounterRepository(testDB.DB))
	ctx := context.Background()

	for range 3 {
		_, err := store.Increment(ctx, CounterVisits)
		require.NoError(t, err)
	}
	v, err := store.Increment(ctx, CounterLinkClickPrefix+"amazon")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	snapshot, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		CounterVisits:                     3,
		CounterLinkClickPrefix + "amazon": 1,
	}, snapshot)
}

func TestMeteredCounterStore(t *testing.T) {
	testDB := testingutil.SetupTestDB(t)
	inner := NewDatabaseCounterStore(repository.NewAnalyticsCounterRepository(testDB.DB))
	reg := prometheus.NewRegistry()
	store := NewMeteredCounterStore(inner, reg)
	ctx := context.Background()

	beforeClicks := testutil.ToFloat64(analyticsCounterTotal.WithLabelValues("link_click"))
	beforeVisits := testutil.ToFloat64(analyticsCounterTotal.WithLabelValues(CounterVisits))

	_, err := store.Increment(ctx, CounterLinkClickPrefix+"amazon")
	require.NoError(t, err)
	_, err = store.Increment(ctx, CounterLinkClickPrefix+"goodreads")
	require.NoError(t, err)
	_, err = store.Increment(ctx, CounterVisits)
	require.NoError(t, err)

	assert.Equal(t, beforeClicks+2, testutil.ToFloat64(analyticsCounterTotal.WithLabelValues("link_click")))
	assert.Equal(t, beforeVisits+1, testutil.ToFloat64(analyticsCounterTotal.WithLabelValues(CounterVisits)))

	// the store keeps per-destination names even though the metric folds them
	snapshot, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snapshot[CounterLinkClickPrefix+"amazon"])
	assert.Equal(t, int64(1), snapshot[CounterLinkClickPrefix+"goodreads"])

	// registering twice is tolerated
	assert.NotPanics(t, func() { NewMeteredCounterStore(inner, reg) })
}

func TestRedisCounterStoreUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()
	store := NewRedisCounterStore(client, "test:", 200*time.Millisecond)

	_, err := store.Increment(context.Background(), CounterVisits)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to increment counter visits")
}
