package handlers

import (
	"time"

	"github.com/Belgarat/freedownloadlandingpage/app/dto"
	"github.com/Belgarat/freedownloadlandingpage/app/middleware"
	businessflow "github.com/Belgarat/freedownloadlandingpage/business_flow"
	"github.com/Belgarat/freedownloadlandingpage/config"
	"github.com/Belgarat/freedownloadlandingpage/logger"
	"github.com/Belgarat/freedownloadlandingpage/utils"
	"github.com/gofiber/fiber/v3"
)

// AdminHandlerInterface defines the contract for admin auth handlers
type AdminHandlerInterface interface {
	InitCaptcha(c fiber.Ctx) error
	Login(c fiber.Ctx) error
	Session(c fiber.Ctx) error
	Logout(c fiber.Ctx) error
}

// AdminHandler implements AdminHandlerInterface
type AdminHandler struct {
	baseHandler
	flow     businessflow.AdminAuthFlow
	security config.SecurityConfig
}

func NewAdminHandler(flow businessflow.AdminAuthFlow, security config.SecurityConfig, log *logger.Logger) AdminHandlerInterface {
	return &AdminHandler{
		baseHandler: newBaseHandler(log),
		flow:        flow,
		security:    security,
	}
}

// InitCaptcha returns a rotate captcha challenge for the login form
// @Summary Admin captcha init
// @Tags Admin Authentication
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.AdminCaptchaInitResponse} "Captcha initialized"
// @Failure 404 {object} dto.APIResponse "Captcha disabled"
// @Router /api/admin/auth/captcha [get]
func (h *AdminHandler) InitCaptcha(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/admin/auth/captcha")
	defer cancel()

	resp, err := h.flow.InitCaptcha(ctx)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Captcha initialized", resp)
}

// Login checks the admin password and sets the session cookie
// @Summary Admin login
// @Tags Admin Authentication
// @Accept json
// @Produce json
// @Param request body dto.AdminLoginRequest true "Admin password"
// @Success 200 {object} dto.APIResponse{data=dto.AdminSessionDTO} "Login successful"
// @Failure 400 {object} dto.APIResponse "Invalid request"
// @Failure 401 {object} dto.APIResponse "Incorrect password or captcha"
// @Router /api/admin/auth [post]
func (h *AdminHandler) Login(c fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if ok, resp := h.decode(c, &req); !ok {
		return resp
	}
	ctx, cancel := h.createRequestContext(c, "/api/admin/auth")
	defer cancel()

	session, err := h.flow.Login(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.HandleError(c, err)
	}

	expires := utils.UTCNowAdd(utils.AdminSessionTTL)
	if t, err := time.Parse(time.RFC3339, session.ExpiresAt); err == nil {
		expires = t
	}
	c.Cookie(h.sessionCookie(session.AccessToken, expires))

	return h.SuccessResponse(c, fiber.StatusOK, "Login successful", session)
}

// Session reports whether the caller holds a live admin session
// @Summary Admin session
// @Tags Admin Authentication
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.AdminSessionDTO}
// @Failure 401 {object} dto.APIResponse
// @Router /api/admin/auth [get]
func (h *AdminHandler) Session(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/admin/auth")
	defer cancel()

	session, err := h.flow.Session(ctx, middleware.AdminToken(c))
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Authenticated", session)
}

// Logout revokes the session and clears the cookie
// @Summary Admin logout
// @Tags Admin Authentication
// @Produce json
// @Success 200 {object} dto.APIResponse
// @Router /api/admin/auth [delete]
func (h *AdminHandler) Logout(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/admin/auth")
	defer cancel()

	if err := h.flow.Logout(ctx, middleware.AdminToken(c)); err != nil {
		return h.HandleError(c, err)
	}
	c.Cookie(h.sessionCookie("", time.Unix(0, 0)))

	return h.SuccessResponse(c, fiber.StatusOK, "Logged out", fiber.Map{"authenticated": false})
}

func (h *AdminHandler) sessionCookie(value string, expires time.Time) *fiber.Cookie {
	cookie := &fiber.Cookie{
		Name:     utils.AdminSessionCookie,
		Value:    value,
		Path:     "/",
		Domain:   h.security.CookieDomain,
		Expires:  expires,
		Secure:   h.security.CookieSecure,
		HTTPOnly: true,
		SameSite: h.security.CookieSameSite,
	}
	if value == "" {
		cookie.MaxAge = -1
	}
	return cookie
}
