package handlers

import (
	"fmt"

	"github.com/Belgarat/freedownloadlandingpage/app/dto"
	businessflow "github.com/Belgarat/freedownloadlandingpage/business_flow"
	"github.com/Belgarat/freedownloadlandingpage/logger"
	"github.com/gofiber/fiber/v3"
)

// AnalyticsHandlerInterface defines the contract for analytics handlers
type AnalyticsHandlerInterface interface {
	Record(c fiber.Ctx) error
	RecordDownloadCompleted(c fiber.Ctx) error
	Stats(c fiber.Ctx) error
	Export(c fiber.Ctx) error
}

// AnalyticsHandler implements AnalyticsHandlerInterface
type AnalyticsHandler struct {
	baseHandler
	flow businessflow.AnalyticsFlow
}

func NewAnalyticsHandler(flow businessflow.AnalyticsFlow, log *logger.Logger) AnalyticsHandlerInterface {
	return &AnalyticsHandler{
		baseHandler: newBaseHandler(log),
		flow:        flow,
	}
}

// Record ingests one landing page event
// @Summary Record analytics event
// @Tags Analytics
// @Accept json
// @Produce json
// @Param request body dto.RecordAnalyticsRequest true "Event"
// @Success 201 {object} dto.APIResponse{data=dto.RecordAnalyticsResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/analytics [post]
func (h *AnalyticsHandler) Record(c fiber.Ctx) error {
	var req dto.RecordAnalyticsRequest
	if ok, resp := h.decode(c, &req); !ok {
		return resp
	}
	ctx, cancel := h.createRequestContext(c, "/api/analytics")
	defer cancel()

	resp, err := h.flow.Record(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Event recorded", resp)
}

// RecordDownloadCompleted ingests a finished download
// @Summary Record download completion
// @Tags Analytics
// @Accept json
// @Produce json
// @Param request body dto.DownloadCompletedRequest true "Download"
// @Success 201 {object} dto.APIResponse{data=dto.RecordAnalyticsResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/analytics/download-completed [post]
func (h *AnalyticsHandler) RecordDownloadCompleted(c fiber.Ctx) error {
	var req dto.DownloadCompletedRequest
	if ok, resp := h.decode(c, &req); !ok {
		return resp
	}
	ctx, cancel := h.createRequestContext(c, "/api/analytics/download-completed")
	defer cancel()

	resp, err := h.flow.RecordDownloadCompleted(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Download recorded", resp)
}

// Stats aggregates the event log
// @Summary Analytics stats
// @Tags Analytics
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.AnalyticsStatsResponse}
// @Failure 401 {object} dto.APIResponse
// @Router /api/analytics/stats [get]
func (h *AnalyticsHandler) Stats(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/analytics/stats")
	defer cancel()

	resp, err := h.flow.Stats(ctx)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Analytics stats retrieved successfully", resp)
}

// Export downloads the event log as a spreadsheet
// @Summary Export analytics
// @Tags Analytics
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Failure 401 {object} dto.APIResponse
// @Router /api/analytics/export [get]
func (h *AnalyticsHandler) Export(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/analytics/export")
	defer cancel()

	filename, data, err := h.flow.Export(ctx)
	if err != nil {
		return h.HandleError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Status(fiber.StatusOK).Send(data)
}
