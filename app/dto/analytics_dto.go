package dto

import "time"

// RecordAnalyticsRequest ingests one landing page event
type RecordAnalyticsRequest struct {
	Action    string         `json:"action" validate:"required,oneof=page_view email_submit download_requested download_completed token_validated link_click"`
	Email     *string        `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
	UserAgent *string        `json:"user_agent,omitempty" validate:"omitempty,max=1024"`
	Referrer  *string        `json:"referrer,omitempty" validate:"omitempty,max=2048"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// DownloadCompletedRequest reports a finished download
type DownloadCompletedRequest struct {
	Email *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Token *string `json:"token,omitempty" validate:"omitempty,max=128"`
}

// RecordAnalyticsResponse acknowledges an ingested event
type RecordAnalyticsResponse struct {
	ID        uint   `json:"id"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// AnalyticsStatsResponse aggregates the event log. Rates are percentages.
type AnalyticsStatsResponse struct {
	TotalEvents            int64            `json:"total_events"`
	ActionCounts           map[string]int64 `json:"action_counts"`
	PageViews              int64            `json:"page_views"`
	EmailSubmissions       int64            `json:"email_submissions"`
	DownloadsRequested     int64            `json:"downloads_requested"`
	DownloadsCompleted     int64            `json:"downloads_completed"`
	TokensValidated        int64            `json:"tokens_validated"`
	LinkClicks             int64            `json:"link_clicks"`
	EmailConversionRate    float64          `json:"email_conversion_rate"`
	DownloadConversionRate float64          `json:"download_conversion_rate"`
	Counters               map[string]int64 `json:"counters"`
}
