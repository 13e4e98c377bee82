// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// ConfigRepository stores configuration documents. Every method takes the domain
// because each domain lives in its own table.
type ConfigRepository interface {
	ByID(ctx context.Context, configType models.ConfigType, id uint) (*models.Config, error)
	ByFilter(ctx context.Context, configType models.ConfigType, filter models.ConfigFilter, orderBy string, limit, offset int) ([]*models.Config, error)
	Count(ctx context.Context, configType models.ConfigType, filter models.ConfigFilter) (int64, error)
	Exists(ctx context.Context, configType models.ConfigType, filter models.ConfigFilter) (bool, error)
	Save(ctx context.Context, configType models.ConfigType, cfg *models.Config) error
	Update(ctx context.Context, configType models.ConfigType, cfg *models.Config) error
	Delete(ctx context.Context, configType models.ConfigType, id uint) (bool, error)
	Active(ctx context.Context, configType models.ConfigType, language *string) (*models.Config, error)
	Activate(ctx context.Context, configType models.ConfigType, cfg *models.Config) error
}

// ABTestRepository defines operations for A/B tests
type ABTestRepository interface {
	Repository[models.ABTest, models.ABTestFilter]
	Update(ctx context.Context, test *models.ABTest) error
	Delete(ctx context.Context, id uint) (bool, error)
	RunningForType(ctx context.Context, configType models.ConfigType) (*models.ABTest, error)
	IncrementParticipants(ctx context.Context, id uint) error
}

// VisitorAssignmentRepository defines operations for sticky visitor assignments
type VisitorAssignmentRepository interface {
	ByVisitor(ctx context.Context, visitorID string, configType models.ConfigType) (*models.VisitorAssignment, error)
	InsertIfAbsent(ctx context.Context, assignment *models.VisitorAssignment) (bool, error)
	Repoint(ctx context.Context, id uint, testID, configID uint, variant string) (bool, error)
	CountByTest(ctx context.Context, testID uint) (int64, error)
	DeleteByTest(ctx context.Context, testID uint) error
}

// ConfigUsageRepository defines operations for per-visitor usage counters
type ConfigUsageRepository interface {
	Increment(ctx context.Context, configType models.ConfigType, configID uint, visitorID string, inc models.UsageIncrement) error
	Totals(ctx context.Context, configType models.ConfigType, configID uint) (*models.UsageTotals, error)
}

// DownloadTokenRepository defines operations for download tokens
type DownloadTokenRepository interface {
	Repository[models.DownloadToken, models.DownloadTokenFilter]
	ByToken(ctx context.Context, token string) (*models.DownloadToken, error)
	MarkUsed(ctx context.Context, id uint, usedAt time.Time) (bool, error)
	DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error)
}

// AnalyticsEventRepository defines operations for the analytics event log
type AnalyticsEventRepository interface {
	Repository[models.AnalyticsEvent, models.AnalyticsEventFilter]
	CountByAction(ctx context.Context) (map[models.AnalyticsAction]int64, error)
}

// AnalyticsCounterRepository stores anonymous counters when no external counter store is configured
type AnalyticsCounterRepository interface {
	Increment(ctx context.Context, name string, delta int64) (int64, error)
	All(ctx context.Context) (map[string]int64, error)
}
