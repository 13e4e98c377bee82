package testing

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/models"
	"github.com/Belgarat/freedownloadlandingpage/utils"
	"gorm.io/datatypes"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateConfig stores an inactive config of the given type. payload is marshalled to JSON.
func (tf *TestFixtures) CreateConfig(configType models.ConfigType, name string, language *string, payload any) (*models.Config, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	cfg := &models.Config{
		Name:     name,
		Language: language,
		Payload:  datatypes.JSON(raw),
	}
	if err := tf.DB.DB.Table(configType.TableName()).Create(cfg).Error; err != nil {
		return nil, fmt.Errorf("failed to create %s config: %w", configType, err)
	}
	return cfg, nil
}

// CreateActiveConfig stores a config and marks it active
func (tf *TestFixtures) CreateActiveConfig(configType models.ConfigType, name string, language *string, payload any) (*models.Config, error) {
	cfg, err := tf.CreateConfig(configType, name, language, payload)
	if err != nil {
		return nil, err
	}
	if err := tf.DB.DB.Table(configType.TableName()).Where("id = ?", cfg.ID).Update("is_active", true).Error; err != nil {
		return nil, fmt.Errorf("failed to activate %s config: %w", configType, err)
	}
	cfg.IsActive = true
	return cfg, nil
}

// CreateABTest stores a running test between configs a and b
func (tf *TestFixtures) CreateABTest(configType models.ConfigType, a, b uint) (*models.ABTest, error) {
	test := &models.ABTest{
		TestName:   fmt.Sprintf("test %d vs %d", a, b),
		ConfigType: configType,
		ConfigAID:  a,
		ConfigBID:  b,
		Status:     models.ABTestStatusActive,
		StartDate:  utils.UTCNow().Add(-time.Hour),
	}
	if err := tf.DB.DB.Create(test).Error; err != nil {
		return nil, fmt.Errorf("failed to create ab test: %w", err)
	}
	return test, nil
}

// CreateUsage stores one visitor's usage counters for a config
func (tf *TestFixtures) CreateUsage(configType models.ConfigType, configID uint, visitorID string, inc models.UsageIncrement) (*models.ConfigUsage, error) {
	usage := &models.ConfigUsage{
		ConfigType:          configType,
		ConfigID:            configID,
		VisitorID:           visitorID,
		PageViews:           inc.PageViews,
		EmailSubmissions:    inc.EmailSubmissions,
		DownloadRequests:    inc.DownloadRequests,
		DownloadCompletions: inc.DownloadCompletions,
		CreatedAt:           utils.UTCNow(),
		UpdatedAt:           utils.UTCNow(),
	}
	if err := tf.DB.DB.Create(usage).Error; err != nil {
		return nil, fmt.Errorf("failed to create usage row: %w", err)
	}
	return usage, nil
}

// CreateDownloadToken stores a token for email issued at createdAt with the given lifetime
func (tf *TestFixtures) CreateDownloadToken(email string, createdAt time.Time, ttl time.Duration) (*models.DownloadToken, error) {
	token, err := GenerateSecureToken(utils.DownloadTokenBytes)
	if err != nil {
		return nil, err
	}
	row := &models.DownloadToken{
		Email:     email,
		Token:     token,
		ExpiresAt: createdAt.Add(ttl),
		CreatedAt: createdAt,
	}
	if err := tf.DB.DB.Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create download token: %w", err)
	}
	return row, nil
}

// GenerateSecureToken generates a random hex token of length bytes
func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
