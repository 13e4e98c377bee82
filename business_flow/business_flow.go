// Package businessflow contains the business logic for the application.
package businessflow

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/app/dto"
	"github.com/Belgarat/freedownloadlandingpage/models"
	"github.com/Belgarat/freedownloadlandingpage/utils"
)

// ClientMetadata holds the request information recorded with analytics events
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	Referrer   string            `json:"referrer,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetReferrer sets the referrer header value
func (cm *ClientMetadata) SetReferrer(referrer string) {
	cm.Referrer = referrer
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ParseConfigType validates a domain name taken from a route or body
func ParseConfigType(raw string) (models.ConfigType, error) {
	t := models.ConfigType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", NewBusinessErrorf("INVALID_CONFIG_TYPE", "unknown config type %q", ErrInvalidConfigType, raw)
	}
	return t, nil
}

// ToConfigDTO converts a configuration row for responses
func ToConfigDTO(configType models.ConfigType, cfg models.Config) dto.ConfigDTO {
	payload := json.RawMessage(cfg.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return dto.ConfigDTO{
		ID:         cfg.ID,
		ConfigType: string(configType),
		Name:       cfg.Name,
		Language:   cfg.Language,
		Payload:    payload,
		IsActive:   cfg.IsActive,
		CreatedAt:  cfg.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  cfg.UpdatedAt.Format(time.RFC3339),
	}
}

// ToABTestDTO converts an A/B test row for responses
func ToABTestDTO(test models.ABTest) dto.ABTestDTO {
	return dto.ABTestDTO{
		ID:                test.ID,
		TestName:          test.TestName,
		Description:       test.Description,
		ConfigType:        string(test.ConfigType),
		ConfigAID:         test.ConfigAID,
		ConfigBID:         test.ConfigBID,
		Status:            string(test.Status),
		StartDate:         test.StartDate.Format(time.RFC3339),
		EndDate:           utils.FormatTimePtr(test.EndDate),
		WinnerConfigID:    test.WinnerConfigID,
		ConfidenceLevel:   test.ConfidenceLevel,
		TotalParticipants: test.TotalParticipants,
		CreatedAt:         test.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         test.UpdatedAt.Format(time.RFC3339),
	}
}

// parseDate accepts RFC3339 timestamps and plain YYYY-MM-DD dates, returned in UTC
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, ErrInvalidDate
}

// normalizeLanguage trims and lower-cases a language tag; empty becomes nil
func normalizeLanguage(language *string) *string {
	if language == nil {
		return nil
	}
	l := strings.ToLower(strings.TrimSpace(*language))
	if l == "" {
		return nil
	}
	return &l
}
