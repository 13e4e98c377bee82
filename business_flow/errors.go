// Package businessflow contains the core business logic of the landing page backend
package businessflow

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers translate them into HTTP status codes.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrExpired      = errors.New("expired")
	ErrUnauthorized = errors.New("unauthorized")
)

// Business flow error constants
var (
	// Configuration errors
	ErrInvalidConfigType     = fmt.Errorf("invalid config type: %w", ErrValidation)
	ErrInvalidID             = fmt.Errorf("id must be a positive integer: %w", ErrValidation)
	ErrConfigNotFound        = fmt.Errorf("config %w", ErrNotFound)
	ErrActiveConfigNotFound  = fmt.Errorf("active config %w", ErrNotFound)
	ErrInvalidPayload        = fmt.Errorf("payload must be a JSON object: %w", ErrValidation)
	ErrLanguageRequired      = fmt.Errorf("language is required for content configs: %w", ErrValidation)
	ErrConfigUpdateRequired  = fmt.Errorf("at least one field must be provided for update: %w", ErrValidation)
	ErrConfigNameRequired    = fmt.Errorf("name is required: %w", ErrValidation)
	ErrConfigPayloadRequired = fmt.Errorf("payload is required: %w", ErrValidation)

	// A/B test errors
	ErrABTestNotFound        = fmt.Errorf("ab test %w", ErrNotFound)
	ErrVariantConfigNotFound = fmt.Errorf("variant config does not exist: %w", ErrValidation)
	ErrVariantsMustDiffer    = fmt.Errorf("config_a_id and config_b_id must differ: %w", ErrValidation)
	ErrInvalidWinner         = fmt.Errorf("winner_config_id must be one of the test variants: %w", ErrValidation)
	ErrInvalidTestStatus     = fmt.Errorf("status must be one of: active paused completed: %w", ErrValidation)
	ErrInvalidDate           = fmt.Errorf("dates must be RFC3339 or YYYY-MM-DD: %w", ErrValidation)
	ErrEndDateBeforeStart    = fmt.Errorf("end_date cannot be before start_date: %w", ErrValidation)

	// Usage errors
	ErrUsageFlagRequired = fmt.Errorf("at least one usage flag must be set: %w", ErrValidation)
	ErrVisitorIDRequired = fmt.Errorf("visitor_id is required: %w", ErrValidation)

	// Download token errors
	ErrTokenNotFound    = fmt.Errorf("download token %w", ErrNotFound)
	ErrTokenExpired     = fmt.Errorf("download token %w", ErrExpired)
	ErrTokenAlreadyUsed = fmt.Errorf("download token already used: %w", ErrExpired)
	ErrEmailRequired    = fmt.Errorf("email is required: %w", ErrValidation)

	// Analytics errors
	ErrInvalidAnalyticsAction = fmt.Errorf("invalid analytics action: %w", ErrValidation)

	// Admin errors
	ErrIncorrectPassword  = fmt.Errorf("incorrect password: %w", ErrUnauthorized)
	ErrInvalidCaptcha     = fmt.Errorf("invalid captcha: %w", ErrUnauthorized)
	ErrInvalidSession     = fmt.Errorf("invalid admin session: %w", ErrUnauthorized)
	ErrCaptchaUnavailable = fmt.Errorf("captcha is disabled: %w", ErrNotFound)
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// newValidationError reports a missing or malformed field by name
func newValidationError(field, reason string) *BusinessError {
	return NewBusinessErrorf("VALIDATION_ERROR", "%s %s", ErrValidation, field, reason)
}

// newBackendError wraps a store or provider failure, keeping its message for operators
func newBackendError(message string, err error) *BusinessError {
	return NewBusinessError("BACKEND_ERROR", message, err)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsExpired(err error) bool {
	return errors.Is(err, ErrExpired)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func IsConfigNotFound(err error) bool {
	return errors.Is(err, ErrConfigNotFound)
}

func IsActiveConfigNotFound(err error) bool {
	return errors.Is(err, ErrActiveConfigNotFound)
}

func IsABTestNotFound(err error) bool {
	return errors.Is(err, ErrABTestNotFound)
}

func IsTokenNotFound(err error) bool {
	return errors.Is(err, ErrTokenNotFound)
}

func IsTokenExpired(err error) bool {
	return errors.Is(err, ErrTokenExpired)
}
