// Package services provides external service integrations and technical concerns like email, counters and tokens
package services

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/utils"
	"github.com/golang-jwt/jwt/v5"
)

// Token service error constants
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token has been revoked")
)

const (
	adminSubject          = "admin"
	adminSessionTokenType = "admin_session"
)

// TokenService issues and checks the admin session JWT carried by the admin-token cookie
type TokenService interface {
	GenerateAdminToken() (token string, claims *AdminTokenClaims, err error)
	ValidateAdminToken(token string) (*AdminTokenClaims, error)
	RevokeToken(token string) error
	IsTokenRevoked(tokenID string) bool
}

// AdminTokenClaims represents claims for admin JWTs
type AdminTokenClaims struct {
	Subject   string    `json:"sub"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenType string    `json:"token_type"`
	TokenID   string    `json:"jti"`
}

// TokenServiceImpl implements TokenService
type TokenServiceImpl struct {
	sessionTTL    time.Duration
	signingMethod jwt.SigningMethod
	privateKey    *rsa.PrivateKey
	publicKey     *rsa.PublicKey
	secretKey     []byte
	useRSAKeys    bool
	issuer        string
	audience      string
	now           func() time.Time

	mu      sync.RWMutex
	revoked map[string]time.Time // jti -> token expiry
}

// NewTokenService creates a new token service
func NewTokenService(sessionTTL time.Duration, issuer, audience string, useRSAKeys bool, privateKeyPEM, publicKeyPEM, secretKey string) (TokenService, error) {
	var privateKey *rsa.PrivateKey
	var publicKey *rsa.PublicKey
	var secretKeyBytes []byte
	var signingMethod jwt.SigningMethod

	if sessionTTL <= 0 {
		sessionTTL = utils.AdminSessionTTL
	}

	if useRSAKeys {
		var err error
		privateKey, publicKey, err = parseRSAKeys(privateKeyPEM, publicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA keys: %w", err)
		}
		signingMethod = jwt.SigningMethodRS256
	} else {
		if secretKey == "" {
			return nil, fmt.Errorf("secret key is required when not using RSA keys")
		}
		secretKeyBytes = []byte(secretKey)
		signingMethod = jwt.SigningMethodHS256
	}

	return &TokenServiceImpl{
		sessionTTL:    sessionTTL,
		signingMethod: signingMethod,
		privateKey:    privateKey,
		publicKey:     publicKey,
		secretKey:     secretKeyBytes,
		useRSAKeys:    useRSAKeys,
		issuer:        issuer,
		audience:      audience,
		now:           utils.UTCNow,
		revoked:       make(map[string]time.Time),
	}, nil
}

// parseRSAKeys parses RSA private and public keys from PEM format
func parseRSAKeys(privateKeyPEM, publicKeyPEM string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	if privateKeyPEM == "" || publicKeyPEM == "" {
		return nil, nil, fmt.Errorf("both private and public keys are required")
	}

	privateKeyBlock, _ := pem.Decode([]byte(privateKeyPEM))
	if privateKeyBlock == nil {
		return nil, nil, fmt.Errorf("failed to decode private key")
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(privateKeyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	publicKeyBlock, _ := pem.Decode([]byte(publicKeyPEM))
	if publicKeyBlock == nil {
		return nil, nil, fmt.Errorf("failed to decode public key")
	}

	publicKey, err := x509.ParsePKIXPublicKey(publicKeyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaPublicKey, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("public key is not RSA")
	}

	return privateKey, rsaPublicKey, nil
}

// GenerateAdminToken signs a new admin session valid for the configured TTL
func (s *TokenServiceImpl) GenerateAdminToken() (string, *AdminTokenClaims, error) {
	now := s.now()

	tokenID, err := generateTokenID()
	if err != nil {
		return "", nil, err
	}

	claims := &AdminTokenClaims{
		Subject:   adminSubject,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.sessionTTL),
		TokenType: adminSessionTokenType,
		TokenID:   tokenID,
	}

	mapClaims := jwt.MapClaims{
		"sub":        claims.Subject,
		"token_type": claims.TokenType,
		"jti":        claims.TokenID,
		"iat":        now.Unix(),
		"exp":        claims.ExpiresAt.Unix(),
	}
	if s.issuer != "" {
		mapClaims["iss"] = s.issuer
	}
	if s.audience != "" {
		mapClaims["aud"] = s.audience
	}

	token, err := s.generateToken(mapClaims)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// ValidateAdminToken validates an admin JWT and returns its claims
func (s *TokenServiceImpl) ValidateAdminToken(token string) (*AdminTokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	parsedToken, err := jwt.Parse(token, s.keyFunc, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsedToken.Valid {
		return nil, ErrTokenInvalid
	}
	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}

	subject, ok := claims["sub"].(string)
	if !ok || subject != adminSubject {
		return nil, ErrTokenInvalid
	}
	tokenType, ok := claims["token_type"].(string)
	if !ok || tokenType != adminSessionTokenType {
		return nil, ErrTokenInvalid
	}
	tokenID, ok := claims["jti"].(string)
	if !ok || tokenID == "" {
		return nil, ErrTokenInvalid
	}
	issuedAt, ok := claims["iat"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}
	expiresAt, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}

	if s.IsTokenRevoked(tokenID) {
		return nil, ErrTokenRevoked
	}

	return &AdminTokenClaims{
		Subject:   subject,
		TokenType: tokenType,
		TokenID:   tokenID,
		IssuedAt:  time.Unix(int64(issuedAt), 0).UTC(),
		ExpiresAt: time.Unix(int64(expiresAt), 0).UTC(),
	}, nil
}

// RevokeToken adds the token id to the in-process revocation list until the token would expire anyway
func (s *TokenServiceImpl) RevokeToken(token string) error {
	claims, err := s.ValidateAdminToken(token)
	if err != nil {
		if errors.Is(err, ErrTokenRevoked) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
	s.revoked[claims.TokenID] = claims.ExpiresAt
	return nil
}

// IsTokenRevoked checks if a token id has been revoked
func (s *TokenServiceImpl) IsTokenRevoked(tokenID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[tokenID]
	return ok
}

func (s *TokenServiceImpl) keyFunc(token *jwt.Token) (any, error) {
	if s.useRSAKeys {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.publicKey, nil
	}
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.secretKey, nil
}

// generateToken creates a signed JWT token
func (s *TokenServiceImpl) generateToken(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(s.signingMethod, claims)

	if s.useRSAKeys {
		return token.SignedString(s.privateKey)
	}
	return token.SignedString(s.secretKey)
}

// generateTokenID generates a unique token ID
func generateTokenID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", bytes), nil
}
