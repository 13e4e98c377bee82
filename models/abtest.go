package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/utils"
	"gorm.io/gorm"
)

// ABTestStatus represents the lifecycle state of an A/B test.
type ABTestStatus string

const (
	ABTestStatusActive    ABTestStatus = "active"
	ABTestStatusPaused    ABTestStatus = "paused"
	ABTestStatusCompleted ABTestStatus = "completed"
)

// Valid checks if the status is valid.
func (s ABTestStatus) Valid() bool {
	switch s {
	case ABTestStatusActive,
		ABTestStatusPaused,
		ABTestStatusCompleted:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ABTestStatus.
func (s *ABTestStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ABTestStatus(v)
	case []byte:
		*s = ABTestStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ABTestStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ABTestStatus.
func (s ABTestStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ABTestStatus: %s", s)
	}
	return string(s), nil
}

// ABTest pairs two configurations of the same domain.
// Completed tests keep their assignments and counters for reporting but receive no new visitors.
type ABTest struct {
	ID                uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	TestName          string       `gorm:"type:varchar(255);not null" json:"test_name"`
	Description       *string      `gorm:"type:text" json:"description,omitempty"`
	ConfigType        ConfigType   `gorm:"type:varchar(20);not null;index:idx_ab_tests_type_status" json:"config_type"`
	ConfigAID         uint         `gorm:"column:config_a_id;not null" json:"config_a_id"`
	ConfigBID         uint         `gorm:"column:config_b_id;not null" json:"config_b_id"`
	Status            ABTestStatus `gorm:"type:varchar(20);not null;default:'active';index:idx_ab_tests_type_status" json:"status"`
	StartDate         time.Time    `gorm:"not null" json:"start_date"`
	EndDate           *time.Time   `json:"end_date,omitempty"`
	WinnerConfigID    *uint        `json:"winner_config_id,omitempty"`
	ConfidenceLevel   *float64     `json:"confidence_level,omitempty"`
	TotalParticipants int64        `gorm:"not null;default:0" json:"total_participants"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName returns the table name for ABTest
func (ABTest) TableName() string { return "ab_tests" }

// BeforeCreate sets timestamps
func (t *ABTest) BeforeCreate(tx *gorm.DB) error {
	now := utils.UTCNow()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	return nil
}

// VariantOf returns "A" or "B" for one of the test's config ids, or "" if the id is not a variant.
func (t ABTest) VariantOf(configID uint) string {
	switch configID {
	case t.ConfigAID:
		return VariantA
	case t.ConfigBID:
		return VariantB
	default:
		return ""
	}
}

// ABTestFilter provides filter fields for repository queries
type ABTestFilter struct {
	ID         *uint
	ConfigType *ConfigType
	Status     *ABTestStatus
	ConfigID   *uint
}
