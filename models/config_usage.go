package models

import "time"

// ConfigUsage accumulates per-visitor outcome counters for one configuration.
type ConfigUsage struct {
	ID                  uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	ConfigType          ConfigType `gorm:"type:varchar(20);not null;uniqueIndex:uk_config_usage_events_config_visitor" json:"config_type"`
	ConfigID            uint       `gorm:"not null;uniqueIndex:uk_config_usage_events_config_visitor" json:"config_id"`
	VisitorID           string     `gorm:"type:varchar(128);not null;uniqueIndex:uk_config_usage_events_config_visitor" json:"visitor_id"`
	PageViews           int64      `gorm:"not null;default:0" json:"page_views"`
	EmailSubmissions    int64      `gorm:"not null;default:0" json:"email_submissions"`
	DownloadRequests    int64      `gorm:"not null;default:0" json:"download_requests"`
	DownloadCompletions int64      `gorm:"not null;default:0" json:"download_completions"`
	CreatedAt           time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName returns the table name for ConfigUsage
func (ConfigUsage) TableName() string { return "config_usage_events" }

// UsageIncrement is the additive delta applied to a ConfigUsage row
type UsageIncrement struct {
	PageViews           int64
	EmailSubmissions    int64
	DownloadRequests    int64
	DownloadCompletions int64
}

// IsZero reports whether the increment would change nothing
func (u UsageIncrement) IsZero() bool {
	return u.PageViews == 0 && u.EmailSubmissions == 0 && u.DownloadRequests == 0 && u.DownloadCompletions == 0
}

// UsageTotals is the aggregate of every visitor row of one configuration
type UsageTotals struct {
	PageViews           int64 `json:"page_views"`
	EmailSubmissions    int64 `json:"email_submissions"`
	DownloadRequests    int64 `json:"download_requests"`
	DownloadCompletions int64 `json:"download_completions"`
	UniqueVisitors      int64 `json:"unique_visitors"`
}
