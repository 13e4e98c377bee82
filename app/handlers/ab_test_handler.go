package handlers

import (
	"github.com/Belgarat/freedownloadlandingpage/app/dto"
	businessflow "github.com/Belgarat/freedownloadlandingpage/business_flow"
	"github.com/Belgarat/freedownloadlandingpage/logger"
	"github.com/gofiber/fiber/v3"
)

// ABTestHandlerInterface defines the contract for A/B test admin handlers
type ABTestHandlerInterface interface {
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Create(c fiber.Ctx) error
	Update(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
	Comparison(c fiber.Ctx) error
}

// ABTestHandler implements ABTestHandlerInterface
type ABTestHandler struct {
	baseHandler
	flow businessflow.ABTestFlow
}

func NewABTestHandler(flow businessflow.ABTestFlow, log *logger.Logger) ABTestHandlerInterface {
	return &ABTestHandler{
		baseHandler: newBaseHandler(log),
		flow:        flow,
	}
}

// List returns A/B tests, newest first
// @Summary List A/B tests
// @Tags A/B Testing
// @Produce json
// @Param config_type query string false "Config type"
// @Param status query string false "Status" Enums(active, paused, completed)
// @Success 200 {object} dto.APIResponse{data=dto.ListABTestsResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/config/ab-testing [get]
func (h *ABTestHandler) List(c fiber.Ctx) error {
	req := dto.ListABTestsRequest{
		ConfigType: queryString(c, "config_type"),
		Status:     queryString(c, "status"),
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	}
	ctx, cancel := h.createRequestContext(c, "/api/config/ab-testing")
	defer cancel()

	resp, err := h.flow.List(ctx, &req)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "A/B tests retrieved successfully", resp)
}

// Get returns one A/B test
// @Summary Get A/B test
// @Tags A/B Testing
// @Produce json
// @Param id path int true "Test ID"
// @Success 200 {object} dto.APIResponse{data=dto.ABTestDTO}
// @Failure 404 {object} dto.APIResponse
// @Router /api/config/ab-testing/{id} [get]
func (h *ABTestHandler) Get(c fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.HandleError(c, err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/config/ab-testing/:id")
	defer cancel()

	resp, err := h.flow.Get(ctx, id)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "A/B test retrieved successfully", resp)
}

// Create starts a new A/B test between two configs of one domain
// @Summary Create A/B test
// @Tags A/B Testing
// @Accept json
// @Produce json
// @Param request body dto.CreateABTestRequest true "Test"
// @Success 201 {object} dto.APIResponse{data=dto.ABTestDTO}
// @Failure 400 {object} dto.APIResponse
// @Router /api/config/ab-testing [post]
func (h *ABTestHandler) Create(c fiber.Ctx) error {
	var req dto.CreateABTestRequest
	if ok, resp := h.decode(c, &req); !ok {
		return resp
	}
	ctx, cancel := h.createRequestContext(c, "/api/config/ab-testing")
	defer cancel()

	resp, err := h.flow.Create(ctx, &req)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "A/B test created successfully", resp)
}

// Update changes test fields, status or the recorded winner
// @Summary Update A/B test
// @Tags A/B Testing
// @Accept json
// @Produce json
// @Param id path int true "Test ID"
// @Param request body dto.UpdateABTestRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.ABTestDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/config/ab-testing/{id} [put]
func (h *ABTestHandler) Update(c fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.HandleError(c, err)
	}
	var req dto.UpdateABTestRequest
	if ok, resp := h.decode(c, &req); !ok {
		return resp
	}
	ctx, cancel := h.createRequestContext(c, "/api/config/ab-testing/:id")
	defer cancel()

	resp, err := h.flow.Update(ctx, id, &req)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "A/B test updated successfully", resp)
}

// Delete removes a test and its visitor assignments
// @Summary Delete A/B test
// @Tags A/B Testing
// @Produce json
// @Param id path int true "Test ID"
// @Success 200 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/config/ab-testing/{id} [delete]
func (h *ABTestHandler) Delete(c fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.HandleError(c, err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/config/ab-testing/:id")
	defer cancel()

	if err := h.flow.Delete(ctx, id); err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "A/B test deleted successfully", fiber.Map{"id": id})
}

// Comparison reports both variants side by side
// @Summary Compare A/B test variants
// @Tags A/B Testing
// @Produce json
// @Param id path int true "Test ID"
// @Success 200 {object} dto.APIResponse{data=dto.ABTestComparisonResponse}
// @Failure 404 {object} dto.APIResponse
// @Router /api/config/ab-testing/{id}/comparison [get]
func (h *ABTestHandler) Comparison(c fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return h.HandleError(c, err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/config/ab-testing/:id/comparison")
	defer cancel()

	resp, err := h.flow.GetComparison(ctx, id)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "A/B test comparison retrieved successfully", resp)
}
