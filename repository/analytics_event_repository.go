package repository

import (
	"context"
	"fmt"

	"github.com/Belgarat/freedownloadlandingpage/models"
	"gorm.io/gorm"
)

// AnalyticsEventRepositoryImpl implements AnalyticsEventRepository
type AnalyticsEventRepositoryImpl struct {
	*BaseRepository[models.AnalyticsEvent, models.AnalyticsEventFilter]
}

func NewAnalyticsEventRepository(db *gorm.DB) AnalyticsEventRepository {
	return &AnalyticsEventRepositoryImpl{BaseRepository: NewBaseRepository[models.AnalyticsEvent, models.AnalyticsEventFilter](db)}
}

func (r *AnalyticsEventRepositoryImpl) applyFilter(db *gorm.DB, f models.AnalyticsEventFilter) *gorm.DB {
	if f.Action != nil {
		db = db.Where("action = ?", *f.Action)
	}
	if f.Email != nil {
		db = db.Where("email = ?", *f.Email)
	}
	if f.CreatedAfter != nil {
		db = db.Where("timestamp >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("timestamp < ?", *f.CreatedBefore)
	}
	return db
}

func (r *AnalyticsEventRepositoryImpl) ByFilter(ctx context.Context, filter models.AnalyticsEventFilter, orderBy string, limit, offset int) ([]*models.AnalyticsEvent, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.AnalyticsEvent{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.AnalyticsEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AnalyticsEventRepositoryImpl) Count(ctx context.Context, filter models.AnalyticsEventFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.AnalyticsEvent{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AnalyticsEventRepositoryImpl) Exists(ctx context.Context, filter models.AnalyticsEventFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// CountByAction groups the whole event log by action
func (r *AnalyticsEventRepositoryImpl) CountByAction(ctx context.Context) (map[models.AnalyticsAction]int64, error) {
	db := r.getDB(ctx)
	var rows []struct {
		Action string
		Total  int64
	}
	err := db.Model(&models.AnalyticsEvent{}).
		Select("action, COUNT(*) AS total").
		Group("action").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count analytics events: %w", err)
	}
	out := make(map[models.AnalyticsAction]int64, len(rows))
	for _, row := range rows {
		out[models.AnalyticsAction(row.Action)] = row.Total
	}
	return out, nil
}
