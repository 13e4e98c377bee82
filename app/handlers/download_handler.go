package handlers

import (
	"github.com/Belgarat/freedownloadlandingpage/app/dto"
	businessflow "github.com/Belgarat/freedownloadlandingpage/business_flow"
	"github.com/Belgarat/freedownloadlandingpage/logger"
	"github.com/gofiber/fiber/v3"
)

// DownloadHandlerInterface defines the contract for download link handlers
type DownloadHandlerInterface interface {
	SendEbook(c fiber.Ctx) error
	SendFollowup(c fiber.Ctx) error
	ValidateToken(c fiber.Ctx) error
	Download(c fiber.Ctx) error
}

// DownloadHandler implements DownloadHandlerInterface
type DownloadHandler struct {
	baseHandler
	flow businessflow.DownloadFlow
}

func NewDownloadHandler(flow businessflow.DownloadFlow, log *logger.Logger) DownloadHandlerInterface {
	return &DownloadHandler{
		baseHandler: newBaseHandler(log),
		flow:        flow,
	}
}

// SendEbook issues a download token and emails the link
// @Summary Send ebook
// @Tags Download
// @Accept json
// @Produce json
// @Param request body dto.SendEbookRequest true "Recipient"
// @Success 200 {object} dto.APIResponse{data=dto.SendEbookResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse "Email delivery failed"
// @Router /api/send-ebook [post]
func (h *DownloadHandler) SendEbook(c fiber.Ctx) error {
	var req dto.SendEbookRequest
	if ok, resp := h.decode(c, &req); !ok {
		return resp
	}
	ctx, cancel := h.createRequestContext(c, "/api/send-ebook")
	defer cancel()

	resp, err := h.flow.SendEbook(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Email sent successfully", resp)
}

// SendFollowup issues a fresh token and emails the follow-up message
// @Summary Send follow-up
// @Tags Download
// @Accept json
// @Produce json
// @Param request body dto.SendEbookRequest true "Recipient"
// @Success 200 {object} dto.APIResponse{data=dto.SendEbookResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/send-followup [post]
func (h *DownloadHandler) SendFollowup(c fiber.Ctx) error {
	var req dto.SendEbookRequest
	if ok, resp := h.decode(c, &req); !ok {
		return resp
	}
	ctx, cancel := h.createRequestContext(c, "/api/send-followup")
	defer cancel()

	resp, err := h.flow.SendFollowup(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Follow-up email sent successfully", resp)
}

// ValidateToken checks a download token
// @Summary Validate download token
// @Tags Download
// @Accept json
// @Produce json
// @Param request body dto.ValidateTokenRequest true "Token"
// @Success 200 {object} dto.APIResponse{data=dto.ValidateTokenResponse}
// @Failure 404 {object} dto.APIResponse "Unknown token"
// @Failure 410 {object} dto.APIResponse "Expired token"
// @Router /api/validate-token [post]
func (h *DownloadHandler) ValidateToken(c fiber.Ctx) error {
	var req dto.ValidateTokenRequest
	if ok, resp := h.decode(c, &req); !ok {
		return resp
	}
	ctx, cancel := h.createRequestContext(c, "/api/validate-token")
	defer cancel()

	resp, err := h.flow.ValidateToken(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Token is valid", resp)
}

// Download redeems a token and redirects to the ebook
// @Summary Download ebook
// @Tags Download
// @Param token path string true "Download token"
// @Success 302 "Redirect to the ebook"
// @Failure 404 {object} dto.APIResponse
// @Failure 410 {object} dto.APIResponse
// @Router /api/download/{token} [get]
func (h *DownloadHandler) Download(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/download/:token")
	defer cancel()

	resp, err := h.flow.ResolveDownload(ctx, c.Params("token"), clientMetadata(c))
	if err != nil {
		return h.HandleError(c, err)
	}
	return c.Redirect().Status(fiber.StatusFound).To(resp.DownloadURL)
}
