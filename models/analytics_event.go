package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AnalyticsAction is a tracked landing page action
type AnalyticsAction string

const (
	AnalyticsActionPageView          AnalyticsAction = "page_view"
	AnalyticsActionEmailSubmit       AnalyticsAction = "email_submit"
	AnalyticsActionDownloadRequested AnalyticsAction = "download_requested"
	AnalyticsActionDownloadCompleted AnalyticsAction = "download_completed"
	AnalyticsActionTokenValidated    AnalyticsAction = "token_validated"
	AnalyticsActionLinkClick         AnalyticsAction = "link_click"
)

// AllAnalyticsActions lists every action in reporting order
var AllAnalyticsActions = []AnalyticsAction{
	AnalyticsActionPageView,
	AnalyticsActionEmailSubmit,
	AnalyticsActionDownloadRequested,
	AnalyticsActionDownloadCompleted,
	AnalyticsActionTokenValidated,
	AnalyticsActionLinkClick,
}

// Valid checks if the action is valid.
func (a AnalyticsAction) Valid() bool {
	switch a {
	case AnalyticsActionPageView,
		AnalyticsActionEmailSubmit,
		AnalyticsActionDownloadRequested,
		AnalyticsActionDownloadCompleted,
		AnalyticsActionTokenValidated,
		AnalyticsActionLinkClick:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for AnalyticsAction.
func (a *AnalyticsAction) Scan(value any) error {
	if value == nil {
		*a = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*a = AnalyticsAction(v)
	case []byte:
		*a = AnalyticsAction(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AnalyticsAction", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for AnalyticsAction.
func (a AnalyticsAction) Value() (driver.Value, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid AnalyticsAction: %s", a)
	}
	return string(a), nil
}

// AnalyticsEvent is an append-only record of one tracked action
type AnalyticsEvent struct {
	ID        uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	Action    AnalyticsAction `gorm:"type:varchar(32);not null;index:idx_analytics_events_action" json:"action"`
	Email     *string         `gorm:"type:varchar(255)" json:"email,omitempty"`
	Timestamp time.Time       `gorm:"not null;index:idx_analytics_events_timestamp" json:"timestamp"`
	UserAgent *string         `gorm:"type:text" json:"user_agent,omitempty"`
	Referrer  *string         `gorm:"type:text" json:"referrer,omitempty"`
	IPAddress *string         `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	Metadata  datatypes.JSON  `json:"metadata,omitempty"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName returns the table name for AnalyticsEvent
func (AnalyticsEvent) TableName() string { return "analytics_events" }

// BeforeCreate fills the timestamps
func (e *AnalyticsEvent) BeforeCreate(tx *gorm.DB) error {
	now := utils.UTCNow()
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return nil
}

// AnalyticsEventFilter provides filter fields for repository queries
type AnalyticsEventFilter struct {
	Action        *AnalyticsAction
	Email         *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
