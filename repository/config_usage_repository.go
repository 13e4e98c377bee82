package repository

import (
	"context"
	"fmt"

	"github.com/Belgarat/freedownloadlandingpage/models"
	"github.com/Belgarat/freedownloadlandingpage/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConfigUsageRepositoryImpl implements ConfigUsageRepository
type ConfigUsageRepositoryImpl struct {
	*BaseRepository[models.ConfigUsage, struct{}]
}

func NewConfigUsageRepository(db *gorm.DB) ConfigUsageRepository {
	return &ConfigUsageRepositoryImpl{BaseRepository: NewBaseRepository[models.ConfigUsage, struct{}](db)}
}

// Increment adds inc to the visitor's counters, creating the row on first use.
// The upsert keeps concurrent reports additive.
func (r *ConfigUsageRepositoryImpl) Increment(ctx context.Context, configType models.ConfigType, configID uint, visitorID string, inc models.UsageIncrement) error {
	db := r.getDB(ctx)
	now := utils.UTCNow()
	row := models.ConfigUsage{
		ConfigType:          configType,
		ConfigID:            configID,
		VisitorID:           visitorID,
		PageViews:           inc.PageViews,
		EmailSubmissions:    inc.EmailSubmissions,
		DownloadRequests:    inc.DownloadRequests,
		DownloadCompletions: inc.DownloadCompletions,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	table := row.TableName()
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "config_type"}, {Name: "config_id"}, {Name: "visitor_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"page_views":           gorm.Expr(table+".page_views + ?", inc.PageViews),
			"email_submissions":    gorm.Expr(table+".email_submissions + ?", inc.EmailSubmissions),
			"download_requests":    gorm.Expr(table+".download_requests + ?", inc.DownloadRequests),
			"download_completions": gorm.Expr(table+".download_completions + ?", inc.DownloadCompletions),
			"updated_at":           now,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to record usage for %s config %d: %w", configType, configID, err)
	}
	return nil
}

// Totals sums every visitor row of one configuration
func (r *ConfigUsageRepositoryImpl) Totals(ctx context.Context, configType models.ConfigType, configID uint) (*models.UsageTotals, error) {
	db := r.getDB(ctx)
	var totals models.UsageTotals
	err := db.Model(&models.ConfigUsage{}).
		Select(`COALESCE(SUM(page_views), 0) AS page_views,
			COALESCE(SUM(email_submissions), 0) AS email_submissions,
			COALESCE(SUM(download_requests), 0) AS download_requests,
			COALESCE(SUM(download_completions), 0) AS download_completions,
			COUNT(DISTINCT visitor_id) AS unique_visitors`).
		Where("config_type = ? AND config_id = ?", configType, configID).
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage for %s config %d: %w", configType, configID, err)
	}
	return &totals, nil
}
