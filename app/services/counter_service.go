package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// Anonymous counter names
const (
	CounterVisits           = "visits"
	CounterDownloads        = "downloads"
	CounterEmailSubmissions = "email_submissions"
	CounterLinkClickPrefix  = "link_click:"
)

// CounterStore holds anonymous monotonic counters outside the event log
type CounterStore interface {
	Increment(ctx context.Context, name string) (int64, error)
	Snapshot(ctx context.Context) (map[string]int64, error)
}

// RedisCounterStore keeps counters as plain Redis integers under a key prefix
type RedisCounterStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

func NewRedisCounterStore(client *redis.Client, prefix string, timeout time.Duration) *RedisCounterStore {
	if prefix == "" {
		prefix = "landing:"
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RedisCounterStore{client: client, prefix: prefix + "counter:", timeout: timeout}
}

func (s *RedisCounterStore) Increment(ctx context.Context, name string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	v, err := s.client.Incr(ctx, s.prefix+name).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, err)
	}
	return v, nil
}

func (s *RedisCounterStore) Snapshot(ctx context.Context) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out := make(map[string]int64)
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan counters: %w", err)
	}
	if len(keys) == 0 {
		return out, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}
	for i, key := range keys {
		raw, ok := vals[i].(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		out[strings.TrimPrefix(key, s.prefix)] = n
	}
	return out, nil
}

// DatabaseCounterStore keeps counters in the analytics_counters table
type DatabaseCounterStore struct {
	repo repository.AnalyticsCounterRepository
}

func NewDatabaseCounterStore(repo repository.AnalyticsCounterRepository) *DatabaseCounterStore {
	return &DatabaseCounterStore{repo: repo}
}

func (s *DatabaseCounterStore) Increment(ctx context.Context, name string) (int64, error) {
	return s.repo.Increment(ctx, name, 1)
}

func (s *DatabaseCounterStore) Snapshot(ctx context.Context) (map[string]int64, error) {
	return s.repo.All(ctx)
}

// MeteredCounterStore mirrors every increment into a Prometheus counter
type MeteredCounterStore struct {
	next    CounterStore
	counter *prometheus.CounterVec
}

var analyticsCounterTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "landing_analytics_counter_total",
		Help: "Anonymous landing page counters by name",
	},
	[]string{"name"},
)

// NewMeteredCounterStore wraps next. The collector is registered with reg once;
// a nil reg leaves it unregistered.
func NewMeteredCounterStore(next CounterStore, reg prometheus.Registerer) *MeteredCounterStore {
	if reg != nil {
		if err := reg.Register(analyticsCounterTotal); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
	return &MeteredCounterStore{next: next, counter: analyticsCounterTotal}
}

func (s *MeteredCounterStore) Increment(ctx context.Context, name string) (int64, error) {
	v, err := s.next.Increment(ctx, name)
	if err != nil {
		return 0, err
	}
	s.counter.WithLabelValues(metricLabel(name)).Inc()
	return v, nil
}

func (s *MeteredCounterStore) Snapshot(ctx context.Context) (map[string]int64, error) {
	return s.next.Snapshot(ctx)
}

// metricLabel folds per-destination link click counters into one series
func metricLabel(name string) string {
	if strings.HasPrefix(name, CounterLinkClickPrefix) {
		return "link_click"
	}
	return name
}
