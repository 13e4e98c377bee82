package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/config"
	"github.com/Belgarat/freedownloadlandingpage/logger"
	"github.com/Belgarat/freedownloadlandingpage/utils"
)

const (
	EmailProviderMock   = "mock"
	EmailProviderResend = "resend"

	defaultResendBaseURL = "https://api.resend.com"
)

// EmailMessage is one outgoing transactional email
type EmailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// EmailService delivers transactional email through the configured provider
type EmailService interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}

// NewEmailService picks the provider named in cfg
func NewEmailService(cfg config.EmailConfig, log *logger.Logger) (EmailService, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", EmailProviderMock:
		return NewMockEmailService(log), nil
	case EmailProviderResend:
		return NewResendEmailService(cfg)
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// ResendEmailService sends mail through the Resend HTTP API
type ResendEmailService struct {
	config  config.EmailConfig
	baseURL string
	client  *http.Client
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// NewResendEmailService creates a Resend client
func NewResendEmailService(cfg config.EmailConfig) (*ResendEmailService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("email API key is required for the resend provider")
	}
	if cfg.FromEmail == "" {
		return nil, errors.New("from email is required for the resend provider")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(cfg.APIBaseURL, "/")
	if baseURL == "" {
		baseURL = defaultResendBaseURL
	}
	return &ResendEmailService{
		config:  cfg,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// SendEmail posts the message, retrying server errors and rate limits
func (s *ResendEmailService) SendEmail(ctx context.Context, msg EmailMessage) error {
	from := s.config.FromEmail
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromEmail)
	}
	body, err := json.Marshal(resendRequest{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: s.config.ReplyTo,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	attempts := max(1, s.config.RetryAttempts)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		retry, err := s.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return lastErr
}

func (s *ResendEmailService) post(ctx context.Context, body []byte) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("failed to send email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}

	var apiErr resendError
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr)
	retry = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return retry, fmt.Errorf("email provider returned %d: %s", resp.StatusCode, apiErr.Message)
}

// MockEmailService records messages instead of sending them
type MockEmailService struct {
	log *logger.Logger

	mu   sync.Mutex
	sent []MockEmailMessage
}

// MockEmailMessage is a recorded mock email
type MockEmailMessage struct {
	EmailMessage
	SentAt time.Time
}

// NewMockEmailService creates a new mock email service
func NewMockEmailService(log *logger.Logger) *MockEmailService {
	if log == nil {
		log = logger.NewNop()
	}
	return &MockEmailService{log: log}
}

func (m *MockEmailService) SendEmail(ctx context.Context, msg EmailMessage) error {
	m.mu.Lock()
	m.sent = append(m.sent, MockEmailMessage{EmailMessage: msg, SentAt: utils.UTCNow()})
	m.mu.Unlock()
	m.log.Info("Mock email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

// SentMessages returns a copy of every recorded message
func (m *MockEmailService) SentMessages() []MockEmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockEmailMessage, len(m.sent))
	copy(out, m.sent)
	return out
}
