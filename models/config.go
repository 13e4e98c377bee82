package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ConfigType names one configuration domain. Each domain is stored in its own table.
type ConfigType string

const (
	ConfigTypeTheme     ConfigType = "theme"
	ConfigTypeMarketing ConfigType = "marketing"
	ConfigTypeContent   ConfigType = "content"
	ConfigTypeSEO       ConfigType = "seo"
	ConfigTypeBook      ConfigType = "book"
	ConfigTypeEmail     ConfigType = "email"
)

// AllConfigTypes lists every configuration domain in migration order.
var AllConfigTypes = []ConfigType{
	ConfigTypeTheme,
	ConfigTypeMarketing,
	ConfigTypeContent,
	ConfigTypeSEO,
	ConfigTypeBook,
	ConfigTypeEmail,
}

// Valid checks if the config type is known.
func (t ConfigType) Valid() bool {
	switch t {
	case ConfigTypeTheme,
		ConfigTypeMarketing,
		ConfigTypeContent,
		ConfigTypeSEO,
		ConfigTypeBook,
		ConfigTypeEmail:
		return true
	default:
		return false
	}
}

// TableName returns the table holding configs of this type.
func (t ConfigType) TableName() string {
	return string(t) + "_configs"
}

// LanguageScoped reports whether activation is exclusive per language rather than per table.
func (t ConfigType) LanguageScoped() bool {
	return t == ConfigTypeContent
}

// Scan implements the sql.Scanner interface for ConfigType.
func (t *ConfigType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = ConfigType(v)
	case []byte:
		*t = ConfigType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ConfigType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ConfigType.
func (t ConfigType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid ConfigType: %s", t)
	}
	return string(t), nil
}

// Config is a named JSON document of one configuration domain.
// The same struct maps every <type>_configs table; callers pick the table through ConfigType.
type Config struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	Language  *string        `gorm:"type:varchar(16)" json:"language,omitempty"`
	Payload   datatypes.JSON `gorm:"not null" json:"payload"`
	IsActive  bool           `gorm:"not null;default:false" json:"is_active"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// BeforeCreate sets timestamps
func (c *Config) BeforeCreate(tx *gorm.DB) error {
	now := utils.UTCNow()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	return nil
}

// BeforeUpdate refreshes the update timestamp
func (c *Config) BeforeUpdate(tx *gorm.DB) error {
	c.UpdatedAt = utils.UTCNow()
	return nil
}

// ConfigFilter provides filter fields for repository queries
type ConfigFilter struct {
	ID       *uint
	Name     *string
	Language *string
	IsActive *bool
}
