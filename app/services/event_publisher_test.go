package services

import (
	"context"
	"testing"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventPublisher(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.KafkaConfig
		wantNoop  bool
		wantError bool
	}{
		{name: "disabled", cfg: config.KafkaConfig{}, wantNoop: true},
		{name: "enabled without brokers", cfg: config.KafkaConfig{Enabled: true, AnalyticsTopic: "t"}, wantError: true},
		{name: "enabled without topic", cfg: config.KafkaConfig{Enabled: true, Brokers: []string{"localhost:9092"}}, wantError: true},
		{name: "enabled", cfg: config.KafkaConfig{Enabled: true, Brokers: []string{"localhost:9092"}, AnalyticsTopic: "landing.analytics"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub, err := NewEventPublisher(tt.cfg)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer pub.Close()

			_, isNoop := pub.(NoopEventPublisher)
			assert.Equal(t, tt.wantNoop, isNoop)
			if kp, ok := pub.(*KafkaEventPublisher); ok {
				assert.Equal(t, "landing.analytics", kp.writer.Topic)
				assert.Equal(t, 5*time.Second, kp.timeout)
			}
		})
	}
}

func TestNoopEventPublisher(t *testing.T) {
	var pub EventPublisher = NoopEventPublisher{}
	assert.NoError(t, pub.Publish(context.Background(), AnalyticsMessage{Action: "page_view"}))
	assert.NoError(t, pub.Close())
}
