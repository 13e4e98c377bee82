package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEmail(t *testing.T) {
	data := EmailTemplateData{
		Name:        "Ada",
		Email:       "ada@example.com",
		DownloadURL: "https://example.com/api/download/abc",
		ExpiresAt:   "January 2, 2026 15:04 UTC",
		BookTitle:   "Go in Practice",
		Author:      "Jane Doe",
	}

	t.Run("DefaultEbookTemplate", func(t *testing.T) {
		msg, err := RenderEmail(DefaultEmailTemplates[EmailKindEbook], data.Email, data)
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", msg.To)
		assert.Equal(t, "Your free copy of Go in Practice", msg.Subject)
		assert.Contains(t, msg.HTML, `href="https://example.com/api/download/abc"`)
		assert.Contains(t, msg.HTML, "by Jane Doe")
		assert.Contains(t, msg.Text, "Hi Ada,")
	})

	t.Run("HTMLIsEscaped", func(t *testing.T) {
		evil := data
		evil.Name = "<script>alert(1)</script>"
		msg, err := RenderEmail(DefaultEmailTemplates[EmailKindEbook], evil.Email, evil)
		require.NoError(t, err)
		assert.NotContains(t, msg.HTML, "<script>")
		assert.Contains(t, msg.HTML, "&lt;script&gt;")
	})

	t.Run("BrokenTemplate", func(t *testing.T) {
		_, err := RenderEmail(EmailTemplate{Subject: "{{.Missing"}, data.Email, data)
		assert.Error(t, err)
	})
}

func TestEmailTemplateFromPayload(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		kind        string
		wantSubject string
		wantHTML    string
	}{
		{
			name:        "empty payload uses default",
			kind:        EmailKindEbook,
			wantSubject: DefaultEmailTemplates[EmailKindEbook].Subject,
			wantHTML:    DefaultEmailTemplates[EmailKindEbook].HTML,
		},
		{
			name:        "invalid json uses default",
			payload:     `not json`,
			kind:        EmailKindFollowup,
			wantSubject: DefaultEmailTemplates[EmailKindFollowup].Subject,
			wantHTML:    DefaultEmailTemplates[EmailKindFollowup].HTML,
		},
		{
			name:        "partial override keeps other fields",
			payload:     `{"ebook":{"subject":"Here is {{.BookTitle}}"}}`,
			kind:        EmailKindEbook,
			wantSubject: "Here is {{.BookTitle}}",
			wantHTML:    DefaultEmailTemplates[EmailKindEbook].HTML,
		},
		{
			name:        "other kind untouched",
			payload:     `{"ebook":{"subject":"Here"}}`,
			kind:        EmailKindFollowup,
			wantSubject: DefaultEmailTemplates[EmailKindFollowup].Subject,
			wantHTML:    DefaultEmailTemplates[EmailKindFollowup].HTML,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := EmailTemplateFromPayload([]byte(tt.payload), tt.kind)
			assert.Equal(t, tt.wantSubject, tmpl.Subject)
			assert.Equal(t, tt.wantHTML, tmpl.HTML)
		})
	}
}

func TestResendEmailService(t *testing.T) {
	newService := func(t *testing.T, url string, retries int) *ResendEmailService {
		t.Helper()
		svc, err := NewResendEmailService(config.EmailConfig{
			APIKey:        "re_test",
			APIBaseURL:    url,
			FromEmail:     "books@example.com",
			FromName:      "Books",
			RetryAttempts: retries,
			Timeout:       2 * time.Second,
		})
		require.NoError(t, err)
		return svc
	}

	t.Run("Success", func(t *testing.T) {
		var got resendRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/emails", r.URL.Path)
			assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"id":"email_1"}`))
		}))
		defer srv.Close()

		err := newService(t, srv.URL, 1).SendEmail(context.Background(), EmailMessage{
			To: "reader@example.com", Subject: "Hi", HTML: "<p>Hi</p>", Text: "Hi",
		})
		require.NoError(t, err)
		assert.Equal(t, "Books <books@example.com>", got.From)
		assert.Equal(t, []string{"reader@example.com"}, got.To)
		assert.Equal(t, "Hi", got.Subject)
	})

	t.Run("RetriesServerErrors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		err := newService(t, srv.URL, 2).SendEmail(context.Background(), EmailMessage{To: "reader@example.com"})
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("ClientErrorIsNotRetried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"Invalid to field"}`))
		}))
		defer srv.Close()

		err := newService(t, srv.URL, 3).SendEmail(context.Background(), EmailMessage{To: "bad"})
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "Invalid to field"))
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("MissingAPIKey", func(t *testing.T) {
		_, err := NewResendEmailService(config.EmailConfig{FromEmail: "books@example.com"})
		assert.Error(t, err)
	})
}

func TestNewEmailService(t *testing.T) {
	svc, err := NewEmailService(config.EmailConfig{Provider: EmailProviderMock}, nil)
	require.NoError(t, err)
	mock, ok := svc.(*MockEmailService)
	require.True(t, ok)

	require.NoError(t, mock.SendEmail(context.Background(), EmailMessage{To: "a@example.com", Subject: "s"}))
	sent := mock.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "a@example.com", sent[0].To)

	_, err = NewEmailService(config.EmailConfig{Provider: "carrier-pigeon"}, nil)
	assert.Error(t, err)
}
