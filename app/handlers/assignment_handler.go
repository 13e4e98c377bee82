package handlers

import (
	"github.com/Belgarat/freedownloadlandingpage/app/dto"
	businessflow "github.com/Belgarat/freedownloadlandingpage/business_flow"
	"github.com/Belgarat/freedownloadlandingpage/logger"
	"github.com/gofiber/fiber/v3"
)

// AssignmentHandlerInterface defines the contract for the public visitor endpoints
type AssignmentHandlerInterface interface {
	Assign(c fiber.Ctx) error
	TrackUsage(c fiber.Ctx) error
}

// AssignmentHandler implements AssignmentHandlerInterface
type AssignmentHandler struct {
	baseHandler
	flow businessflow.AssignmentFlow
}

func NewAssignmentHandler(flow businessflow.AssignmentFlow, log *logger.Logger) AssignmentHandlerInterface {
	return &AssignmentHandler{
		baseHandler: newBaseHandler(log),
		flow:        flow,
	}
}

// Assign resolves the configuration shown to a visitor
// @Summary Assign visitor
// @Tags Visitor
// @Accept json
// @Produce json
// @Param request body dto.AssignRequest true "Visitor and domain"
// @Success 200 {object} dto.APIResponse{data=dto.AssignResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse "No active config"
// @Router /api/config/assign [post]
func (h *AssignmentHandler) Assign(c fiber.Ctx) error {
	var req dto.AssignRequest
	if ok, resp := h.decode(c, &req); !ok {
		return resp
	}
	ctx, cancel := h.createRequestContext(c, "/api/config/assign")
	defer cancel()

	resp, err := h.flow.Assign(ctx, &req)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Config assigned successfully", resp)
}

// TrackUsage adds outcome counts for a visitor's config
// @Summary Track config usage
// @Tags Visitor
// @Accept json
// @Produce json
// @Param request body dto.TrackUsageRequest true "Usage flags"
// @Success 200 {object} dto.APIResponse{data=dto.TrackUsageResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/config/usage [post]
func (h *AssignmentHandler) TrackUsage(c fiber.Ctx) error {
	var req dto.TrackUsageRequest
	if ok, resp := h.decode(c, &req); !ok {
		return resp
	}
	ctx, cancel := h.createRequestContext(c, "/api/config/usage")
	defer cancel()

	resp, err := h.flow.TrackUsage(ctx, &req)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Usage tracked successfully", resp)
}
