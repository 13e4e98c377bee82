package businessflow

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/app/dto"
	"github.com/Belgarat/freedownloadlandingpage/app/services"
	"github.com/Belgarat/freedownloadlandingpage/config"
	"github.com/Belgarat/freedownloadlandingpage/models"
	"github.com/Belgarat/freedownloadlandingpage/repository"
	testingutil "github.com/Belgarat/freedownloadlandingpage/testing"
	"github.com/Belgarat/freedownloadlandingpage/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var downloadURLPattern = regexp.MustCompile(`^https://books\.example\.com/api/download/([0-9a-f]{64})$`)

type downloadEnv struct {
	flow      *DownloadFlowImpl
	analytics AnalyticsFlow
	mail      *services.MockEmailService
	fixtures  *testingutil.TestFixtures
	tokens    repository.DownloadTokenRepository
	clock     time.Time
}

func newDownloadEnv(t *testing.T, cfg config.DownloadConfig) *downloadEnv {
	t.Helper()
	testDB := testingutil.SetupTestDB(t)
	tokenRepo := repository.NewDownloadTokenRepository(testDB.DB)
	analytics := NewAnalyticsFlow(
		repository.NewAnalyticsEventRepository(testDB.DB),
		services.NewDatabaseCounterStore(repository.NewAnalyticsCounterRepository(testDB.DB)),
		services.NoopEventPublisher{},
		nil,
	)
	mail := services.NewMockEmailService(nil)
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://books.example.com/"
	}

	env := &downloadEnv{
		analytics: analytics,
		mail:      mail,
		fixtures:  testingutil.NewTestFixtures(testDB),
		tokens:    tokenRepo,
		clock:     time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}
	flow := NewDownloadFlow(tokenRepo, repository.NewConfigRepository(testDB.DB), mail, analytics, cfg, nil).(*DownloadFlowImpl)
	flow.now = func() time.Time { return env.clock }
	env.flow = flow
	return env
}

func (e *downloadEnv) send(t *testing.T, email string) string {
	t.Helper()
	resp, err := e.flow.SendEbook(testingutil.CreateTestContext(), &dto.SendEbookRequest{Email: email}, NewClientMetadata("203.0.113.7", "test-agent"))
	require.NoError(t, err)
	m := downloadURLPattern.FindStringSubmatch(resp.DownloadURL)
	require.Len(t, m, 2, "unexpected download url %q", resp.DownloadURL)
	return m[1]
}

func TestDownloadFlowSendEbook(t *testing.T) {
	env := newDownloadEnv(t, config.DownloadConfig{})
	ctx := testingutil.CreateTestContext()

	_, err := env.fixtures.CreateActiveConfig(models.ConfigTypeBook, "book", nil, map[string]any{
		"title": "Go in Practice", "author": "Jane Doe", "ebook_url": "https://cdn.example.com/book.pdf",
	})
	require.NoError(t, err)

	resp, err := env.flow.SendEbook(ctx, &dto.SendEbookRequest{Email: "  Reader@Example.COM ", Name: utils.ToPtr("Ada")}, nil)
	require.NoError(t, err)
	assert.Regexp(t, downloadURLPattern, resp.DownloadURL)
	assert.Equal(t, "2024-01-16T10:30:00Z", resp.ExpiresAt)

	sent := env.mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "reader@example.com", sent[0].To)
	assert.Equal(t, "Your free copy of Go in Practice", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, resp.DownloadURL)
	assert.Contains(t, sent[0].Text, "Hi Ada,")

	token := strings.TrimPrefix(resp.DownloadURL, "https://books.example.com/api/download/")
	row, err := env.tokens.ByToken(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "reader@example.com", row.Email)
	assert.False(t, row.Used)

	stats, err := env.analytics.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.EmailSubmissions)
	assert.Equal(t, int64(1), stats.Counters[services.CounterEmailSubmissions])

	_, err = env.flow.SendEbook(ctx, &dto.SendEbookRequest{Email: "   "}, nil)
	assert.ErrorIs(t, err, ErrEmailRequired)
}

func TestDownloadFlowFollowupUsesEmailConfig(t *testing.T) {
	env := newDownloadEnv(t, config.DownloadConfig{})
	ctx := testingutil.CreateTestContext()

	_, err := env.fixtures.CreateActiveConfig(models.ConfigTypeEmail, "emails", nil, map[string]any{
		"followup": map[string]any{"subject": "One more thing about {{.BookTitle}}"},
	})
	require.NoError(t, err)

	_, err = env.flow.SendFollowup(ctx, &dto.SendEbookRequest{Email: "reader@example.com"}, nil)
	require.NoError(t, err)

	sent := env.mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "One more thing about your free ebook", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "fresh link")
}

func TestDownloadFlowTokenLifecycle(t *testing.T) {
	env := newDownloadEnv(t, config.DownloadConfig{})
	ctx := testingutil.CreateTestContext()
	issued := env.clock
	token := env.send(t, "reader@example.com")

	tests := []struct {
		name    string
		token   string
		at      time.Time
		wantErr error
	}{
		{name: "fresh", token: token, at: issued},
		{name: "just before expiry", token: token, at: issued.Add(23*time.Hour + 59*time.Minute)},
		{name: "just after expiry", token: token, at: issued.Add(24*time.Hour + time.Minute), wantErr: ErrTokenExpired},
		{name: "unknown token", token: strings.Repeat("0", 64), at: issued, wantErr: ErrTokenNotFound},
		{name: "blank token", token: " ", at: issued, wantErr: ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.clock = tt.at
			resp, err := env.flow.ValidateToken(ctx, &dto.ValidateTokenRequest{Token: tt.token}, nil)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, resp.Valid)
			assert.Equal(t, "reader@example.com", resp.Email)
		})
	}

	t.Run("stored expiry longer than a day is still capped", func(t *testing.T) {
		row, err := env.fixtures.CreateDownloadToken("late@example.com", issued, 72*time.Hour)
		require.NoError(t, err)
		env.clock = issued.Add(25 * time.Hour)
		_, err = env.flow.ValidateToken(ctx, &dto.ValidateTokenRequest{Token: row.Token}, nil)
		assert.True(t, IsTokenExpired(err))
	})
}

func TestDownloadFlowResolveDownload(t *testing.T) {
	t.Run("NoEbookConfigured", func(t *testing.T) {
		env := newDownloadEnv(t, config.DownloadConfig{})
		token := env.send(t, "reader@example.com")

		_, err := env.flow.ResolveDownload(testingutil.CreateTestContext(), token, nil)
		require.Error(t, err)
		assert.True(t, IsActiveConfigNotFound(err))
	})

	t.Run("FallsBackToFileURL", func(t *testing.T) {
		env := newDownloadEnv(t, config.DownloadConfig{FileURL: "https://files.example.com/ebook.pdf"})
		token := env.send(t, "reader@example.com")

		resp, err := env.flow.ResolveDownload(testingutil.CreateTestContext(), token, nil)
		require.NoError(t, err)
		assert.Equal(t, "https://files.example.com/ebook.pdf", resp.DownloadURL)
	})

	t.Run("ReusableByDefault", func(t *testing.T) {
		env := newDownloadEnv(t, config.DownloadConfig{})
		ctx := testingutil.CreateTestContext()
		_, err := env.fixtures.CreateActiveConfig(models.ConfigTypeBook, "book", nil, map[string]any{"ebook_url": "https://cdn.example.com/book.pdf"})
		require.NoError(t, err)
		token := env.send(t, "reader@example.com")

		for range 2 {
			resp, err := env.flow.ResolveDownload(ctx, token, nil)
			require.NoError(t, err)
			assert.Equal(t, "https://cdn.example.com/book.pdf", resp.DownloadURL)
			assert.Equal(t, "reader@example.com", resp.Email)
		}

		stats, err := env.analytics.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.DownloadsRequested)
	})

	t.Run("SingleUse", func(t *testing.T) {
		env := newDownloadEnv(t, config.DownloadConfig{SingleUse: true, FileURL: "https://files.example.com/ebook.pdf"})
		ctx := testingutil.CreateTestContext()
		token := env.send(t, "reader@example.com")

		// validation alone does not consume the token
		_, err := env.flow.ValidateToken(ctx, &dto.ValidateTokenRequest{Token: token}, nil)
		require.NoError(t, err)

		_, err = env.flow.ResolveDownload(ctx, token, nil)
		require.NoError(t, err)

		_, err = env.flow.ResolveDownload(ctx, token, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTokenAlreadyUsed)
		assert.True(t, IsExpired(err))
	})

	t.Run("SingleUseLosesRaceAfterCheck", func(t *testing.T) {
		env := newDownloadEnv(t, config.DownloadConfig{SingleUse: true, FileURL: "https://files.example.com/ebook.pdf"})
		ctx := testingutil.CreateTestContext()
		token := env.send(t, "reader@example.com")

		// both requests read the token before either consumes it
		env.flow.tokenRepo = staleTokenReads{env.tokens}

		_, err := env.flow.ResolveDownload(ctx, token, nil)
		require.NoError(t, err)

		_, err = env.flow.ResolveDownload(ctx, token, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTokenAlreadyUsed)

		stats, err := env.analytics.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.DownloadsRequested)
	})
}

// staleTokenReads reports every token as unused, as a reader that raced a redemption would
type staleTokenReads struct {
	repository.DownloadTokenRepository
}

func (s staleTokenReads) ByToken(ctx context.Context, token string) (*models.DownloadToken, error) {
	row, err := s.DownloadTokenRepository.ByToken(ctx, token)
	if row != nil {
		row.Used = false
		row.UsedAt = nil
	}
	return row, err
}
