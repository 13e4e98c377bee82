package businessflow

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/app/dto"
	"github.com/Belgarat/freedownloadlandingpage/app/services"
	"github.com/Belgarat/freedownloadlandingpage/config"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuthFlow represents the admin authentication flow used by handlers
type AdminAuthFlow interface {
	InitCaptcha(ctx context.Context) (*dto.AdminCaptchaInitResponse, error)
	Login(ctx context.Context, req *dto.AdminLoginRequest, metadata *ClientMetadata) (*dto.AdminSessionDTO, error)
	Session(ctx context.Context, token string) (*dto.AdminSessionDTO, error)
	Logout(ctx context.Context, token string) error
}

// AdminAuthFlowImpl checks the shared admin password and manages session tokens
type AdminAuthFlowImpl struct {
	cfg          config.AdminConfig
	tokenService services.TokenService
	captchaSvc   services.CaptchaService
}

// NewAdminAuthFlow creates the flow. captchaSvc may be nil when captcha is disabled.
func NewAdminAuthFlow(cfg config.AdminConfig, tokenService services.TokenService, captchaSvc services.CaptchaService) AdminAuthFlow {
	return &AdminAuthFlowImpl{
		cfg:          cfg,
		tokenService: tokenService,
		captchaSvc:   captchaSvc,
	}
}

func (af *AdminAuthFlowImpl) InitCaptcha(ctx context.Context) (*dto.AdminCaptchaInitResponse, error) {
	if !af.cfg.CaptchaEnabled || af.captchaSvc == nil {
		return nil, NewBusinessError("CAPTCHA_NOT_AVAILABLE", "Captcha is not enabled", ErrCaptchaUnavailable)
	}
	ch, err := af.captchaSvc.GenerateRotate(ctx)
	if err != nil {
		return nil, NewBusinessError("CAPTCHA_INIT_FAILED", "Failed to initialize captcha", err)
	}
	return &dto.AdminCaptchaInitResponse{
		ChallengeID:       ch.ID,
		MasterImageBase64: ch.MasterImageBase64,
		ThumbImageBase64:  ch.ThumbImageBase64,
	}, nil
}

func (af *AdminAuthFlowImpl) Login(ctx context.Context, req *dto.AdminLoginRequest, metadata *ClientMetadata) (*dto.AdminSessionDTO, error) {
	if req == nil || len(req.Password) == 0 {
		return nil, NewBusinessError("ADMIN_LOGIN_VALIDATION_FAILED", "Password is required", ErrIncorrectPassword)
	}

	// Captcha first so password guesses cost a solved challenge
	if af.cfg.CaptchaEnabled {
		if af.captchaSvc == nil || req.ChallengeID == nil || strings.TrimSpace(*req.ChallengeID) == "" || req.UserAngle == nil {
			return nil, NewBusinessError("CAPTCHA_INVALID", "Captcha challenge missing", ErrInvalidCaptcha)
		}
		if !af.captchaSvc.VerifyRotate(ctx, *req.ChallengeID, *req.UserAngle) {
			return nil, NewBusinessError("CAPTCHA_INVALID", "Captcha validation failed", ErrInvalidCaptcha)
		}
	}

	if !af.passwordMatches(req.Password) {
		return nil, NewBusinessError("ADMIN_INCORRECT_PASSWORD", "Incorrect password", ErrIncorrectPassword)
	}

	token, claims, err := af.tokenService.GenerateAdminToken()
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate session token", err)
	}
	return ToAdminSessionDTO(token, claims), nil
}

// Session reports whether the token is a live admin session. The token itself is not echoed back.
func (af *AdminAuthFlowImpl) Session(ctx context.Context, token string) (*dto.AdminSessionDTO, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, NewBusinessError("ADMIN_SESSION_MISSING", "Not authenticated", ErrInvalidSession)
	}
	claims, err := af.tokenService.ValidateAdminToken(token)
	if err != nil {
		return nil, NewBusinessError("ADMIN_SESSION_INVALID", "Not authenticated", ErrInvalidSession)
	}
	session := ToAdminSessionDTO("", claims)
	return session, nil
}

// Logout revokes the token when it is still valid. Unknown or expired tokens are a no-op.
func (af *AdminAuthFlowImpl) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	_ = af.tokenService.RevokeToken(token)
	return nil
}

// passwordMatches prefers the bcrypt hash and falls back to a constant-time compare of the plain secret
func (af *AdminAuthFlowImpl) passwordMatches(password string) bool {
	if af.cfg.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(af.cfg.PasswordHash), []byte(password)) == nil
	}
	if af.cfg.Password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(af.cfg.Password), []byte(password)) == 1
}

// ToAdminSessionDTO converts issued claims for responses
func ToAdminSessionDTO(token string, claims *services.AdminTokenClaims) *dto.AdminSessionDTO {
	session := &dto.AdminSessionDTO{Authenticated: true}
	if token != "" {
		session.AccessToken = token
		session.TokenType = "Bearer"
	}
	if claims != nil {
		session.ExpiresAt = claims.ExpiresAt.UTC().Format(time.RFC3339)
		if ttl := time.Until(claims.ExpiresAt); ttl > 0 {
			session.ExpiresIn = int(ttl.Seconds())
		}
	}
	return session
}
