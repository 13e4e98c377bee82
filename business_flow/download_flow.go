package businessflow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/app/dto"
	"github.com/Belgarat/freedownloadlandingpage/app/services"
	"github.com/Belgarat/freedownloadlandingpage/config"
	"github.com/Belgarat/freedownloadlandingpage/logger"
	"github.com/Belgarat/freedownloadlandingpage/models"
	"github.com/Belgarat/freedownloadlandingpage/repository"
	"github.com/Belgarat/freedownloadlandingpage/utils"
)

const (
	defaultBookTitle  = "your free ebook"
	emailExpiryLayout = "January 2, 2006 15:04 UTC"
)

// DownloadFlow issues download tokens by email and redeems them
type DownloadFlow interface {
	SendEbook(ctx context.Context, req *dto.SendEbookRequest, metadata *ClientMetadata) (*dto.SendEbookResponse, error)
	SendFollowup(ctx context.Context, req *dto.SendEbookRequest, metadata *ClientMetadata) (*dto.SendEbookResponse, error)
	ValidateToken(ctx context.Context, req *dto.ValidateTokenRequest, metadata *ClientMetadata) (*dto.ValidateTokenResponse, error)
	ResolveDownload(ctx context.Context, token string, metadata *ClientMetadata) (*dto.ResolveDownloadResponse, error)
}

// DownloadFlowImpl implements DownloadFlow
type DownloadFlowImpl struct {
	tokenRepo  repository.DownloadTokenRepository
	configFlow *ConfigFlowImpl
	emailSvc   services.EmailService
	analytics  AnalyticsFlow
	cfg        config.DownloadConfig
	log        *logger.Logger
	now        func() time.Time
}

func NewDownloadFlow(
	tokenRepo repository.DownloadTokenRepository,
	configRepo repository.ConfigRepository,
	emailSvc services.EmailService,
	analytics AnalyticsFlow,
	cfg config.DownloadConfig,
	log *logger.Logger,
) DownloadFlow {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = utils.DownloadTokenTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &DownloadFlowImpl{
		tokenRepo:  tokenRepo,
		configFlow: &ConfigFlowImpl{configRepo: configRepo},
		emailSvc:   emailSvc,
		analytics:  analytics,
		cfg:        cfg,
		log:        log,
		now:        utils.UTCNow,
	}
}

func (f *DownloadFlowImpl) SendEbook(ctx context.Context, req *dto.SendEbookRequest, metadata *ClientMetadata) (*dto.SendEbookResponse, error) {
	return f.send(ctx, services.EmailKindEbook, req, metadata)
}

func (f *DownloadFlowImpl) SendFollowup(ctx context.Context, req *dto.SendEbookRequest, metadata *ClientMetadata) (*dto.SendEbookResponse, error) {
	return f.send(ctx, services.EmailKindFollowup, req, metadata)
}

func (f *DownloadFlowImpl) send(ctx context.Context, kind string, req *dto.SendEbookRequest, metadata *ClientMetadata) (*dto.SendEbookResponse, error) {
	if req == nil {
		return nil, newValidationError("request", "is required")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, NewBusinessError("VALIDATION_ERROR", "email is required", ErrEmailRequired)
	}

	token, err := generateDownloadToken()
	if err != nil {
		return nil, newBackendError("Failed to generate download token", err)
	}
	now := f.now()
	row := models.DownloadToken{
		Email:     email,
		Token:     token,
		ExpiresAt: now.Add(f.cfg.TokenTTL),
		CreatedAt: now,
	}
	if err := f.tokenRepo.Save(ctx, &row); err != nil {
		return nil, newBackendError("Failed to store download token", err)
	}

	downloadURL := fmt.Sprintf("%s/api/download/%s", strings.TrimRight(f.cfg.BaseURL, "/"), token)
	book := f.bookDetails(ctx)
	data := services.EmailTemplateData{
		Email:       email,
		DownloadURL: downloadURL,
		ExpiresAt:   row.ExpiresAt.UTC().Format(emailExpiryLayout),
		BookTitle:   book.Title,
		Author:      book.Author,
	}
	if req.Name != nil {
		data.Name = strings.TrimSpace(*req.Name)
	}

	msg, err := services.RenderEmail(f.emailTemplate(ctx, kind), email, data)
	if err != nil {
		return nil, NewBusinessError("EMAIL_RENDER_FAILED", "Failed to render email", err)
	}
	if err := f.emailSvc.SendEmail(ctx, msg); err != nil {
		return nil, NewBusinessError("EMAIL_SEND_FAILED", "Failed to send email", err)
	}

	f.track(ctx, models.AnalyticsActionEmailSubmit, &email, map[string]any{"kind": kind}, metadata)

	return &dto.SendEbookResponse{
		DownloadURL: downloadURL,
		ExpiresAt:   row.ExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (f *DownloadFlowImpl) ValidateToken(ctx context.Context, req *dto.ValidateTokenRequest, metadata *ClientMetadata) (*dto.ValidateTokenResponse, error) {
	if req == nil {
		return nil, newValidationError("token", "is required")
	}
	row, err := f.check(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	f.track(ctx, models.AnalyticsActionTokenValidated, &row.Email, nil, metadata)

	return &dto.ValidateTokenResponse{Valid: true, Email: row.Email}, nil
}

// ResolveDownload redeems a token for the ebook location. Single-use tokens are consumed here.
func (f *DownloadFlowImpl) ResolveDownload(ctx context.Context, token string, metadata *ClientMetadata) (*dto.ResolveDownloadResponse, error) {
	row, err := f.check(ctx, token)
	if err != nil {
		return nil, err
	}

	target := f.bookDetails(ctx).EbookURL
	if target == "" {
		target = f.cfg.FileURL
	}
	if target == "" {
		return nil, NewBusinessError("EBOOK_URL_NOT_CONFIGURED", "No ebook URL is configured", ErrActiveConfigNotFound)
	}

	if f.cfg.SingleUse {
		consumed, err := f.tokenRepo.MarkUsed(ctx, row.ID, f.now())
		if err != nil {
			return nil, newBackendError("Failed to consume download token", err)
		}
		// a concurrent redemption got there first
		if !consumed {
			return nil, NewBusinessError("TOKEN_ALREADY_USED", "Download token was already used", ErrTokenAlreadyUsed)
		}
	}

	f.track(ctx, models.AnalyticsActionDownloadRequested, &row.Email, nil, metadata)

	return &dto.ResolveDownloadResponse{Email: row.Email, DownloadURL: target}, nil
}

// check applies both expiry rules: the stored expires_at and a hard cap on token age
func (f *DownloadFlowImpl) check(ctx context.Context, token string) (*models.DownloadToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, newValidationError("token", "is required")
	}
	row, err := f.tokenRepo.ByToken(ctx, token)
	if err != nil {
		return nil, newBackendError("Failed to load download token", err)
	}
	if row == nil {
		return nil, NewBusinessError("TOKEN_NOT_FOUND", "Download token not found", ErrTokenNotFound)
	}

	now := f.now()
	if now.After(row.ExpiresAt) {
		return nil, NewBusinessError("TOKEN_EXPIRED", "Download token has expired", ErrTokenExpired)
	}
	if now.Sub(row.CreatedAt) > utils.DownloadTokenTTL {
		return nil, NewBusinessError("TOKEN_EXPIRED", "Download token has expired", ErrTokenExpired)
	}
	if f.cfg.SingleUse && row.Used {
		return nil, NewBusinessError("TOKEN_ALREADY_USED", "Download token was already used", ErrTokenAlreadyUsed)
	}
	return row, nil
}

func (f *DownloadFlowImpl) track(ctx context.Context, action models.AnalyticsAction, email *string, extra map[string]any, metadata *ClientMetadata) {
	if f.analytics == nil {
		return
	}
	req := &dto.RecordAnalyticsRequest{
		Action:   string(action),
		Email:    email,
		Metadata: extra,
	}
	if _, err := f.analytics.Record(ctx, req, metadata); err != nil {
		f.log.Warn("Failed to record analytics event", "action", action, "error", err)
	}
}

type bookInfo struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	EbookURL string `json:"ebook_url"`
}

func (f *DownloadFlowImpl) bookDetails(ctx context.Context) bookInfo {
	book := bookInfo{Title: defaultBookTitle}
	row, err := f.configFlow.active(ctx, models.ConfigTypeBook, nil)
	if err != nil {
		if !IsActiveConfigNotFound(err) {
			f.log.Warn("Failed to load active book config", "error", err)
		}
		return book
	}
	var doc bookInfo
	if err := json.Unmarshal(row.Payload, &doc); err != nil {
		f.log.Warn("Active book config payload is not usable", "config_id", row.ID, "error", err)
		return book
	}
	if doc.Title != "" {
		book.Title = doc.Title
	}
	book.Author = doc.Author
	book.EbookURL = strings.TrimSpace(doc.EbookURL)
	return book
}

func (f *DownloadFlowImpl) emailTemplate(ctx context.Context, kind string) services.EmailTemplate {
	row, err := f.configFlow.active(ctx, models.ConfigTypeEmail, nil)
	if err != nil {
		if !IsActiveConfigNotFound(err) {
			f.log.Warn("Failed to load active email config", "error", err)
		}
		return services.EmailTemplateFromPayload(nil, kind)
	}
	return services.EmailTemplateFromPayload(row.Payload, kind)
}

func generateDownloadToken() (string, error) {
	buf := make([]byte, utils.DownloadTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
