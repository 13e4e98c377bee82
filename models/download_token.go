package models

import (
	"time"

	"github.com/Belgarat/freedownloadlandingpage/utils"
	"gorm.io/gorm"
)

// DownloadToken binds an email address to a time-limited download link
type DownloadToken struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Email     string     `gorm:"type:varchar(255);not null;index:idx_download_tokens_email" json:"email"`
	Token     string     `gorm:"type:varchar(64);not null;uniqueIndex:uk_download_tokens_token" json:"token"`
	ExpiresAt time.Time  `gorm:"not null;index:idx_download_tokens_expires_at" json:"expires_at"`
	Used      bool       `gorm:"not null;default:false" json:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName returns the table name for DownloadToken
func (DownloadToken) TableName() string { return "download_tokens" }

// BeforeCreate sets the creation timestamp when the caller did not
func (t *DownloadToken) BeforeCreate(tx *gorm.DB) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = utils.UTCNow()
	}
	return nil
}

// DownloadTokenFilter provides filter fields for repository queries
type DownloadTokenFilter struct {
	Email         *string
	Token         *string
	Used          *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
