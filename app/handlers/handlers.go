// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Belgarat/freedownloadlandingpage/app/dto"
	businessflow "github.com/Belgarat/freedownloadlandingpage/business_flow"
	"github.com/Belgarat/freedownloadlandingpage/logger"
	"github.com/Belgarat/freedownloadlandingpage/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// baseHandler carries what every handler needs to decode requests and shape responses
type baseHandler struct {
	validator *validator.Validate
	log       *logger.Logger
}

func newBaseHandler(log *logger.Logger) baseHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return baseHandler{validator: validator.New(), log: log}
}

// ErrorResponse standard JSON error
func (h baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

// SuccessResponse standard JSON success
func (h baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// decode binds the JSON body into req and runs struct validation.
// When it reports false the error response has already been written.
func (h baseHandler) decode(c fiber.Ctx, req any) (bool, error) {
	if err := c.Bind().JSON(req); err != nil {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			messages := make([]string, 0, len(validationErrors))
			for _, fe := range validationErrors {
				messages = append(messages, getValidationErrorMessage(fe))
			}
			return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
		}
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	}
	return true, nil
}

// HandleError maps a flow error onto the response taxonomy
func (h baseHandler) HandleError(c fiber.Ctx, err error) error {
	status, code, message := statusForError(err)
	var details any
	if status == fiber.StatusInternalServerError {
		details = err.Error()
		h.log.Error("Request failed",
			"request_id", requestid.FromContext(c),
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
	}
	return h.ErrorResponse(c, status, message, code, details)
}

// statusForError returns the HTTP status, stable code and message for err
func statusForError(err error) (int, string, string) {
	code, message := "INTERNAL_ERROR", "Internal server error"
	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		code, message = be.Code, be.Message
	}

	switch {
	case businessflow.IsValidation(err):
		return fiber.StatusBadRequest, code, message
	case businessflow.IsUnauthorized(err):
		return fiber.StatusUnauthorized, code, message
	case businessflow.IsNotFound(err):
		return fiber.StatusNotFound, code, message
	case businessflow.IsExpired(err):
		return fiber.StatusGone, code, message
	default:
		return fiber.StatusInternalServerError, code, message
	}
}

// createRequestContext builds the request-scoped context handed to flows
func (h baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), utils.RequestTimeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestid.FromContext(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, utils.RequestTimeout)
	return ctx, cancel
}

func clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetReferrer(c.Get("Referer"))
	metadata.SetRequestID(requestid.FromContext(c))
	return metadata
}

// parseID reads a positive integer route parameter
func parseID(c fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, businessflow.NewBusinessErrorf("INVALID_ID", "invalid %s %q", businessflow.ErrInvalidID, name, raw)
	}
	return uint(id), nil
}

func queryString(c fiber.Ctx, key string) *string {
	return utils.NilIfEmpty(c.Query(key))
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "len":
		return err.Field() + " must be exactly " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "numeric":
		return err.Field() + " must contain only numbers"
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "nefield":
		return err.Field() + " must differ from " + err.Param()
	default:
		return err.Field() + " is invalid"
	}
}
