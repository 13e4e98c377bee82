package handlers

import (
	"github.com/Belgarat/freedownloadlandingpage/app/dto"
	businessflow "github.com/Belgarat/freedownloadlandingpage/business_flow"
	"github.com/Belgarat/freedownloadlandingpage/logger"
	"github.com/gofiber/fiber/v3"
)

// ConfigHandlerInterface defines the contract for configuration CMS handlers
type ConfigHandlerInterface interface {
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Create(c fiber.Ctx) error
	Update(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
	Activate(c fiber.Ctx) error
	GetActive(c fiber.Ctx) error
	Duplicate(c fiber.Ctx) error
}

// ConfigHandler implements ConfigHandlerInterface
type ConfigHandler struct {
	baseHandler
	flow businessflow.ConfigFlow
}

func NewConfigHandler(flow businessflow.ConfigFlow, log *logger.Logger) ConfigHandlerInterface {
	return &ConfigHandler{
		baseHandler: newBaseHandler(log),
		flow:        flow,
	}
}

// List returns every config of a domain
// @Summary List configs
// @Tags Config
// @Produce json
// @Param type path string true "Config type" Enums(theme, marketing, content, seo, book, email)
// @Param language query string false "Language filter"
// @Success 200 {object} dto.APIResponse{data=dto.ListConfigsResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 401 {object} dto.APIResponse
// @Router /api/config/{type} [get]
func (h *ConfigHandler) List(c fiber.Ctx) error {
	configType, err := businessflow.ParseConfigType(c.Params("type"))
	if err != nil {
		return h.HandleError(c, err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/config/:type")
	defer cancel()

	resp, err := h.flow.List(ctx, configType, queryString(c, "language"))
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Configs retrieved successfully", resp)
}

// Get returns one config
// @Summary Get config
// @Tags Config
// @Produce json
// @Param type path string true "Config type"
// @Param id path int true "Config ID"
// @Success 200 {object} dto.APIResponse{data=dto.ConfigDTO}
// @Failure 404 {object} dto.APIResponse
// @Router /api/config/{type}/{id} [get]
func (h *ConfigHandler) Get(c fiber.Ctx) error {
	configType, err := businessflow.ParseConfigType(c.Params("type"))
	if err != nil {
		return h.HandleError(c, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return h.HandleError(c, err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/config/:type/:id")
	defer cancel()

	resp, err := h.flow.Get(ctx, configType, id)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Config retrieved successfully", resp)
}

// Create stores a new inactive config
// @Summary Create config
// @Tags Config
// @Accept json
// @Produce json
// @Param type path string true "Config type"
// @Param request body dto.CreateConfigRequest true "Config"
// @Success 201 {object} dto.APIResponse{data=dto.ConfigDTO}
// @Failure 400 {object} dto.APIResponse
// @Router /api/config/{type} [post]
func (h *ConfigHandler) Create(c fiber.Ctx) error {
	configType, err := businessflow.ParseConfigType(c.Params("type"))
	if err != nil {
		return h.HandleError(c, err)
	}
	var req dto.CreateConfigRequest
	if ok, resp := h.decode(c, &req); !ok {
		return resp
	}
	ctx, cancel := h.createRequestContext(c, "/api/config/:type")
	defer cancel()

	resp, err := h.flow.Create(ctx, configType, &req)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Config created successfully", resp)
}

// Update applies a partial update
// @Summary Update config
// @Tags Config
// @Accept json
// @Produce json
// @Param type path string true "Config type"
// @Param id path int true "Config ID"
// @Param request body dto.UpdateConfigRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.ConfigDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/config/{type}/{id} [put]
func (h *ConfigHandler) Update(c fiber.Ctx) error {
	configType, err := businessflow.ParseConfigType(c.Params("type"))
	if err != nil {
		return h.HandleError(c, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return h.HandleError(c, err)
	}
	var req dto.UpdateConfigRequest
	if ok, resp := h.decode(c, &req); !ok {
		return resp
	}
	ctx, cancel := h.createRequestContext(c, "/api/config/:type/:id")
	defer cancel()

	resp, err := h.flow.Update(ctx, configType, id, &req)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Config updated successfully", resp)
}

// Delete removes a config
// @Summary Delete config
// @Tags Config
// @Produce json
// @Param type path string true "Config type"
// @Param id path int true "Config ID"
// @Success 200 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/config/{type}/{id} [delete]
func (h *ConfigHandler) Delete(c fiber.Ctx) error {
	configType, err := businessflow.ParseConfigType(c.Params("type"))
	if err != nil {
		return h.HandleError(c, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return h.HandleError(c, err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/config/:type/:id")
	defer cancel()

	if err := h.flow.Delete(ctx, configType, id); err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Config deleted successfully", fiber.Map{"id": id})
}

// Activate makes a config the only active one in its scope
// @Summary Activate config
// @Tags Config
// @Produce json
// @Param type path string true "Config type"
// @Param id path int true "Config ID"
// @Success 200 {object} dto.APIResponse{data=dto.ConfigDTO}
// @Failure 404 {object} dto.APIResponse
// @Router /api/config/{type}/{id}/activate [post]
func (h *ConfigHandler) Activate(c fiber.Ctx) error {
	configType, err := businessflow.ParseConfigType(c.Params("type"))
	if err != nil {
		return h.HandleError(c, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return h.HandleError(c, err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/config/:type/:id/activate")
	defer cancel()

	resp, err := h.flow.Activate(ctx, configType, id)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Config activated successfully", resp)
}

// GetActive returns the config served to visitors
// @Summary Active config
// @Tags Config
// @Produce json
// @Param type path string true "Config type"
// @Param language query string false "Language, required for content"
// @Success 200 {object} dto.APIResponse{data=dto.ConfigDTO}
// @Failure 404 {object} dto.APIResponse
// @Router /api/config/{type}/active [get]
func (h *ConfigHandler) GetActive(c fiber.Ctx) error {
	configType, err := businessflow.ParseConfigType(c.Params("type"))
	if err != nil {
		return h.HandleError(c, err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/config/:type/active")
	defer cancel()

	resp, err := h.flow.GetActive(ctx, configType, queryString(c, "language"))
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Active config retrieved successfully", resp)
}

// Duplicate copies a config under a new name
// @Summary Duplicate config
// @Tags Config
// @Accept json
// @Produce json
// @Param type path string true "Config type"
// @Param id path int true "Config ID"
// @Param request body dto.DuplicateConfigRequest true "New name"
// @Success 201 {object} dto.APIResponse{data=dto.ConfigDTO}
// @Failure 404 {object} dto.APIResponse
// @Router /api/config/{type}/{id}/duplicate [post]
func (h *ConfigHandler) Duplicate(c fiber.Ctx) error {
	configType, err := businessflow.ParseConfigType(c.Params("type"))
	if err != nil {
		return h.HandleError(c, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return h.HandleError(c, err)
	}
	var req dto.DuplicateConfigRequest
	if ok, resp := h.decode(c, &req); !ok {
		return resp
	}
	ctx, cancel := h.createRequestContext(c, "/api/config/:type/:id/duplicate")
	defer cancel()

	resp, err := h.flow.Duplicate(ctx, configType, id, req.Name)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Config duplicated successfully", resp)
}
