// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"strings"

	"github.com/Belgarat/freedownloadlandingpage/app/dto"
	"github.com/Belgarat/freedownloadlandingpage/app/services"
	"github.com/Belgarat/freedownloadlandingpage/utils"
	"github.com/gofiber/fiber/v3"
)

// AuthMiddleware guards the admin endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

// AdminToken returns the session token from the admin cookie, or from a Bearer header when no cookie is sent
func AdminToken(c fiber.Ctx) string {
	if token := strings.TrimSpace(c.Cookies(utils.AdminSessionCookie)); token != "" {
		return token
	}
	authHeader := c.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// AdminAuthenticate validates the admin session and stores its claims in locals
func (m *AuthMiddleware) AdminAuthenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		token := AdminToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Admin session is required",
				Error:   dto.ErrorDetail{Code: "MISSING_ADMIN_SESSION"},
			})
		}

		claims, err := m.tokenService.ValidateAdminToken(token)
		if err != nil {
			var errorCode string
			var message string

			switch {
			case errors.Is(err, services.ErrTokenExpired):
				errorCode = "TOKEN_EXPIRED"
				message = "Admin session has expired"
			case errors.Is(err, services.ErrTokenRevoked):
				errorCode = "TOKEN_REVOKED"
				message = "Admin session has been revoked"
			case errors.Is(err, services.ErrTokenInvalid):
				errorCode = "TOKEN_INVALID"
				message = "Invalid admin session"
			default:
				errorCode = "TOKEN_VALIDATION_FAILED"
				message = "Admin session validation failed"
			}

			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: message,
				Error:   dto.ErrorDetail{Code: errorCode},
			})
		}

		c.Locals(utils.AdminKey, claims)
		c.Locals("token_id", claims.TokenID)

		return c.Next()
	}
}
