package models

import "time"

// AnalyticsCounter is the database copy of an anonymous monotonic counter,
// used when no Redis instance is configured.
type AnalyticsCounter struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null;uniqueIndex:uk_analytics_counters_name" json:"name"`
	Value     int64     `gorm:"not null;default:0" json:"value"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName returns the table name for AnalyticsCounter
func (AnalyticsCounter) TableName() string { return "analytics_counters" }
