package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ConfigDTO is one configuration document
type ConfigDTO struct {
	ID         uint            `json:"id" example:"1"`
	ConfigType string          `json:"config_type" example:"theme"`
	Name       string          `json:"name" example:"Dark theme"`
	Language   *string         `json:"language,omitempty" example:"en"`
	Payload    json.RawMessage `json:"payload" swaggertype:"object"`
	IsActive   bool            `json:"is_active" example:"false"`
	CreatedAt  string          `json:"created_at" example:"2024-01-15T10:30:00Z"`
	UpdatedAt  string          `json:"updated_at" example:"2024-01-15T10:30:00Z"`
}

// ListConfigsRequest filters a configuration listing
type ListConfigsRequest struct {
	ConfigType string  `json:"-" validate:"required,oneof=theme marketing content seo book email"`
	Language   *string `json:"language,omitempty" validate:"omitempty,min=2,max=16"`
}

// ListConfigsResponse lists the configurations of one domain
type ListConfigsResponse struct {
	Items []ConfigDTO `json:"items"`
	Total int64       `json:"total"`
}

// CreateConfigRequest creates a configuration document. Content configs require a language.
type CreateConfigRequest struct {
	Name     string          `json:"name" validate:"required,max=255"`
	Language *string         `json:"language,omitempty" validate:"omitempty,min=2,max=16"`
	Payload  json.RawMessage `json:"payload" swaggertype:"object"`
}

// UpdateConfigRequest patches a configuration document. Omitted fields are kept.
type UpdateConfigRequest struct {
	Name     *string         `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Language *string         `json:"language,omitempty" validate:"omitempty,min=2,max=16"`
	Payload  json.RawMessage `json:"payload,omitempty" swaggertype:"object"`
}

// DuplicateConfigRequest names the copy
type DuplicateConfigRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// AssignRequest asks which configuration a visitor should see
type AssignRequest struct {
	VisitorID  string  `json:"visitor_id" validate:"required,max=128"`
	ConfigType string  `json:"config_type" validate:"required,oneof=theme marketing content seo book email"`
	Language   *string `json:"language,omitempty" validate:"omitempty,min=2,max=16"`
}

// AssignResponse is the configuration chosen for the visitor
type AssignResponse struct {
	ConfigID   uint       `json:"config_id" example:"3"`
	ConfigType string     `json:"config_type" example:"theme"`
	TestID     *uint      `json:"test_id,omitempty" example:"1"`
	Variant    *string    `json:"variant,omitempty" example:"A"`
	Source     string     `json:"source" example:"ab_test"`
	Config     *ConfigDTO `json:"config,omitempty"`
}

// UsageCount accepts either a boolean or a non-negative count in JSON
type UsageCount int64

// UnmarshalJSON maps true to 1, false and null to 0 and numbers to themselves
func (u *UsageCount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true":
		*u = 1
		return nil
	case "false", "null":
		*u = 0
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("usage flag must be a boolean or an integer: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("usage flag must not be negative")
	}
	*u = UsageCount(n)
	return nil
}

// TrackUsageRequest reports outcome events for a visitor's configuration
type TrackUsageRequest struct {
	ConfigType        string     `json:"config_type" validate:"required,oneof=theme marketing content seo book email"`
	ConfigID          uint       `json:"config_id" validate:"required,gt=0"`
	VisitorID         string     `json:"visitor_id" validate:"required,max=128"`
	PageView          UsageCount `json:"page_view"`
	EmailSubmission   UsageCount `json:"email_submission"`
	DownloadRequest   UsageCount `json:"download_request"`
	DownloadCompleted UsageCount `json:"download_completed"`
}

// TrackUsageResponse acknowledges a usage report
type TrackUsageResponse struct {
	Message string `json:"message"`
}
