package models

import (
	"time"

	"github.com/Belgarat/freedownloadlandingpage/utils"
	"gorm.io/gorm"
)

const (
	VariantA = "A"
	VariantB = "B"
)

// VisitorAssignment pins a visitor to one variant of a running test.
// (visitor_id, config_type) is unique so concurrent first requests cannot diverge.
type VisitorAssignment struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	VisitorID  string     `gorm:"type:varchar(128);not null;uniqueIndex:uk_ab_visitor_assignments_visitor_type" json:"visitor_id"`
	ConfigType ConfigType `gorm:"type:varchar(20);not null;uniqueIndex:uk_ab_visitor_assignments_visitor_type" json:"config_type"`
	TestID     uint       `gorm:"not null;index:idx_ab_visitor_assignments_test_id" json:"test_id"`
	ConfigID   uint       `gorm:"not null" json:"config_id"`
	Variant    string     `gorm:"type:varchar(1);not null" json:"variant"`
	CreatedAt  time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName returns the table name for VisitorAssignment
func (VisitorAssignment) TableName() string { return "ab_visitor_assignments" }

// BeforeCreate sets timestamps
func (a *VisitorAssignment) BeforeCreate(tx *gorm.DB) error {
	now := utils.UTCNow()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	return nil
}

// VisitorAssignmentFilter provides filter fields for repository queries
type VisitorAssignmentFilter struct {
	VisitorID  *string
	ConfigType *ConfigType
	TestID     *uint
}
