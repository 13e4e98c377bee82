package dto

// ABTestDTO is one A/B test
type ABTestDTO struct {
	ID                uint     `json:"id" example:"1"`
	TestName          string   `json:"test_name" example:"Hero copy"`
	Description       *string  `json:"description,omitempty"`
	ConfigType        string   `json:"config_type" example:"marketing"`
	ConfigAID         uint     `json:"config_a_id" example:"1"`
	ConfigBID         uint     `json:"config_b_id" example:"2"`
	Status            string   `json:"status" example:"active"`
	StartDate         string   `json:"start_date" example:"2024-01-15T00:00:00Z"`
	EndDate           *string  `json:"end_date,omitempty"`
	WinnerConfigID    *uint    `json:"winner_config_id,omitempty"`
	ConfidenceLevel   *float64 `json:"confidence_level,omitempty"`
	TotalParticipants int64    `json:"total_participants" example:"0"`
	CreatedAt         string   `json:"created_at"`
	UpdatedAt         string   `json:"updated_at"`
}

// ListABTestsRequest filters the A/B test listing
type ListABTestsRequest struct {
	ConfigType *string `json:"config_type,omitempty" validate:"omitempty,oneof=theme marketing content seo book email"`
	Status     *string `json:"status,omitempty" validate:"omitempty,oneof=active paused completed"`
}

// ListABTestsResponse lists A/B tests
type ListABTestsResponse struct {
	Items []ABTestDTO `json:"items"`
	Total int         `json:"total"`
}

// CreateABTestRequest creates an A/B test. Dates accept RFC3339 or YYYY-MM-DD.
type CreateABTestRequest struct {
	TestName    string  `json:"test_name" validate:"required,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	ConfigType  string  `json:"config_type" validate:"required,oneof=theme marketing content seo book email"`
	ConfigAID   uint    `json:"config_a_id" validate:"required,gt=0"`
	ConfigBID   uint    `json:"config_b_id" validate:"required,gt=0"`
	StartDate   string  `json:"start_date" validate:"required"`
	EndDate     *string `json:"end_date,omitempty"`
	Status      *string `json:"status,omitempty" validate:"omitempty,oneof=active paused completed"`
}

// UpdateABTestRequest patches an A/B test. Omitted fields are kept.
type UpdateABTestRequest struct {
	TestName        *string  `json:"test_name,omitempty" validate:"omitempty,min=1,max=255"`
	Description     *string  `json:"description,omitempty" validate:"omitempty,max=2000"`
	Status          *string  `json:"status,omitempty" validate:"omitempty,oneof=active paused completed"`
	StartDate       *string  `json:"start_date,omitempty"`
	EndDate         *string  `json:"end_date,omitempty"`
	WinnerConfigID  *uint    `json:"winner_config_id,omitempty" validate:"omitempty,gt=0"`
	ConfidenceLevel *float64 `json:"confidence_level,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// VariantStatsDTO holds the usage counters and derived rates of one variant.
// Rates are percentages.
type VariantStatsDTO struct {
	Variant                string  `json:"variant" example:"A"`
	ConfigID               uint    `json:"config_id" example:"1"`
	ConfigName             string  `json:"config_name,omitempty"`
	PageViews              int64   `json:"page_views"`
	EmailSubmissions       int64   `json:"email_submissions"`
	DownloadRequests       int64   `json:"download_requests"`
	DownloadCompletions    int64   `json:"download_completions"`
	UniqueVisitors         int64   `json:"unique_visitors"`
	EmailSubmissionRate    float64 `json:"email_submission_rate" example:"30"`
	DownloadCompletionRate float64 `json:"download_completion_rate"`
	DownloadRate           float64 `json:"download_rate"`
	EmailRateCILower       float64 `json:"email_rate_ci_lower"`
	EmailRateCIUpper       float64 `json:"email_rate_ci_upper"`
}

// ABTestComparisonResponse compares both variants of a test
type ABTestComparisonResponse struct {
	Test            ABTestDTO       `json:"test"`
	VariantA        VariantStatsDTO `json:"variant_a"`
	VariantB        VariantStatsDTO `json:"variant_b"`
	LeadingVariant  string          `json:"leading_variant" example:"B"`
	ConfidenceLevel float64         `json:"confidence_level" example:"0.97"`
	Significant     bool            `json:"significant"`
}
