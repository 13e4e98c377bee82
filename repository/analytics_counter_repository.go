package repository

import (
	"context"
	"fmt"

	"github.com/Belgarat/freedownloadlandingpage/models"
	"github.com/Belgarat/freedownloadlandingpage/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnalyticsCounterRepositoryImpl implements AnalyticsCounterRepository
type AnalyticsCounterRepositoryImpl struct {
	*BaseRepository[models.AnalyticsCounter, struct{}]
}

func NewAnalyticsCounterRepository(db *gorm.DB) AnalyticsCounterRepository {
	return &AnalyticsCounterRepositoryImpl{BaseRepository: NewBaseRepository[models.AnalyticsCounter, struct{}](db)}
}

// Increment adds delta to the named counter and returns the new value
func (r *AnalyticsCounterRepositoryImpl) Increment(ctx context.Context, name string, delta int64) (int64, error) {
	var value int64
	err := WithTransaction(ctx, r.DB, func(txCtx context.Context) error {
		db := r.getDB(txCtx)
		now := utils.UTCNow()
		row := models.AnalyticsCounter{Name: name, Value: delta, UpdatedAt: now}
		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.Assignments(map[string]any{
				"value":      gorm.Expr(row.TableName()+".value + ?", delta),
				"updated_at": now,
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		return db.Model(&models.AnalyticsCounter{}).
			Select("value").
			Where("name = ?", name).
			Scan(&value).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, err)
	}
	return value, nil
}

func (r *AnalyticsCounterRepositoryImpl) All(ctx context.Context) (map[string]int64, error) {
	db := r.getDB(ctx)
	var rows []models.AnalyticsCounter
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list counters: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Name] = row.Value
	}
	return out, nil
}
