package businessflow

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/app/dto"
	"github.com/Belgarat/freedownloadlandingpage/app/services"
	"github.com/Belgarat/freedownloadlandingpage/models"
	"github.com/Belgarat/freedownloadlandingpage/repository"
	testingutil "github.com/Belgarat/freedownloadlandingpage/testing"
	"github.com/Belgarat/freedownloadlandingpage/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []services.AnalyticsMessage
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, msg services.AnalyticsMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) messages() []services.AnalyticsMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]services.AnalyticsMessage(nil), p.msgs...)
}

func newTestAnalyticsFlow(t *testing.T, publisher services.EventPublisher) (AnalyticsFlow, repository.AnalyticsEventRepository) {
	t.Helper()
	testDB := testingutil.SetupTestDB(t)
	eventRepo := repository.NewAnalyticsEventRepository(testDB.DB)
	counters := services.NewDatabaseCounterStore(repository.NewAnalyticsCounterRepository(testDB.DB))
	return NewAnalyticsFlow(eventRepo, counters, publisher, nil), eventRepo
}

func TestAnalyticsFlowRecord(t *testing.T) {
	publisher := &recordingPublisher{}
	flow, eventRepo := newTestAnalyticsFlow(t, publisher)
	ctx := testingutil.CreateTestContext()

	t.Run("UnknownAction", func(t *testing.T) {
		_, err := flow.Record(ctx, &dto.RecordAnalyticsRequest{Action: "scroll"}, nil)
		assert.ErrorIs(t, err, ErrInvalidAnalyticsAction)
	})

	t.Run("MetadataFallsBackToRequestHeaders", func(t *testing.T) {
		ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
		metadata := NewClientMetadata("198.51.100.4", "Mozilla/5.0")
		metadata.SetReferrer("https://news.example.com")

		resp, err := flow.Record(ctx, &dto.RecordAnalyticsRequest{
			Action:    "email_submit",
			Email:     utils.ToPtr(" Reader@Example.com "),
			Timestamp: &ts,
		}, metadata)
		require.NoError(t, err)
		assert.Equal(t, "2024-03-01T11:00:00Z", resp.Timestamp)

		row, err := eventRepo.ByID(ctx, resp.ID)
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.Equal(t, "reader@example.com", *row.Email)
		assert.Equal(t, "Mozilla/5.0", *row.UserAgent)
		assert.Equal(t, "https://news.example.com", *row.Referrer)
		assert.Equal(t, "198.51.100.4", *row.IPAddress)

		msgs := publisher.messages()
		require.NotEmpty(t, msgs)
		last := msgs[len(msgs)-1]
		assert.Equal(t, resp.ID, last.ID)
		assert.Equal(t, "email_submit", last.Action)
	})

	t.Run("PublishFailureIsNotFatal", func(t *testing.T) {
		publisher.err = errors.New("broker down")
		defer func() { publisher.err = nil }()
		_, err := flow.Record(ctx, &dto.RecordAnalyticsRequest{Action: "page_view"}, nil)
		assert.NoError(t, err)
	})
}

func TestAnalyticsFlowStats(t *testing.T) {
	flow, _ := newTestAnalyticsFlow(t, nil)
	ctx := testingutil.CreateTestContext()

	record := func(action string, metadata map[string]any) {
		t.Helper()
		_, err := flow.Record(ctx, &dto.RecordAnalyticsRequest{Action: action, Metadata: metadata}, nil)
		require.NoError(t, err)
	}
	for range 10 {
		record("page_view", nil)
	}
	for range 3 {
		record("email_submit", nil)
	}
	record("download_requested", nil)
	record("link_click", map[string]any{"destination": "amazon"})
	record("link_click", map[string]any{"destination": "amazon"})
	record("link_click", nil)
	_, err := flow.RecordDownloadCompleted(ctx, &dto.DownloadCompletedRequest{Email: utils.ToPtr("reader@example.com")}, nil)
	require.NoError(t, err)

	stats, err := flow.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(18), stats.TotalEvents)
	assert.Equal(t, int64(10), stats.PageViews)
	assert.Equal(t, int64(3), stats.EmailSubmissions)
	assert.Equal(t, int64(1), stats.DownloadsRequested)
	assert.Equal(t, int64(1), stats.DownloadsCompleted)
	assert.Equal(t, int64(3), stats.LinkClicks)
	assert.Equal(t, int64(0), stats.ActionCounts["token_validated"])
	assert.Equal(t, 30.0, stats.EmailConversionRate)
	assert.Equal(t, 33.33, stats.DownloadConversionRate)

	assert.Equal(t, map[string]int64{
		services.CounterVisits:                      10,
		services.CounterEmailSubmissions:            3,
		services.CounterDownloads:                   1,
		services.CounterLinkClickPrefix + "amazon":  2,
		services.CounterLinkClickPrefix + "unknown": 1,
	}, stats.Counters)
}

func TestAnalyticsFlowStatsEmpty(t *testing.T) {
	flow, _ := newTestAnalyticsFlow(t, nil)

	stats, err := flow.Stats(testingutil.CreateTestContext())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEvents)
	assert.Zero(t, stats.EmailConversionRate)
	assert.Zero(t, stats.DownloadConversionRate)
	assert.NotNil(t, stats.Counters)
	assert.Len(t, stats.ActionCounts, len(models.AllAnalyticsActions))
}

func TestAnalyticsFlowExport(t *testing.T) {
	flow, _ := newTestAnalyticsFlow(t, nil)
	ctx := testingutil.CreateTestContext()

	for _, action := range []string{"page_view", "email_submit"} {
		_, err := flow.Record(ctx, &dto.RecordAnalyticsRequest{Action: action, Email: utils.ToPtr("reader@example.com")}, nil)
		require.NoError(t, err)
	}

	filename, data, err := flow.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "analytics_events.xlsx", filename)

	xl, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer xl.Close()

	assert.Equal(t, []string{"Summary", "Events"}, xl.GetSheetList())

	rows, err := xl.GetRows("Events")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "action", rows[0][1])
	assert.Equal(t, "page_view", rows[1][1])
	assert.Equal(t, "email_submit", rows[2][1])
	assert.Equal(t, "reader@example.com", rows[2][2])

	summary, err := xl.GetRows("Summary")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(summary), 2)
	assert.Equal(t, []string{"total_events", "2"}, summary[1])
}

func TestCounterNameLinkDestination(t *testing.T) {
	prefix := services.CounterLinkClickPrefix
	long := strings.Repeat("x", 1000)

	tests := []struct {
		name     string
		metadata map[string]any
		want     string
	}{
		{name: "missing", metadata: nil, want: prefix + "unknown"},
		{name: "blank", metadata: map[string]any{"destination": "  "}, want: prefix + "unknown"},
		{name: "plain label", metadata: map[string]any{"destination": "amazon"}, want: prefix + "amazon"},
		{name: "url folds to host", metadata: map[string]any{"destination": "https://WWW.Amazon.com/dp/123?ref=abc"}, want: prefix + "www.amazon.com"},
		{name: "long label is cut", metadata: map[string]any{"destination": long}, want: prefix + long[:maxCounterNameLength-len(prefix)]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := counterName(models.AnalyticsActionLinkClick, tt.metadata)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), maxCounterNameLength)
		})
	}
}
