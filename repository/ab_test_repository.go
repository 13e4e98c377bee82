package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Belgarat/freedownloadlandingpage/models"
	"github.com/Belgarat/freedownloadlandingpage/utils"
	"gorm.io/gorm"
)

// ABTestRepositoryImpl implements ABTestRepository
type ABTestRepositoryImpl struct {
	*BaseRepository[models.ABTest, models.ABTestFilter]
}

func NewABTestRepository(db *gorm.DB) ABTestRepository {
	return &ABTestRepositoryImpl{BaseRepository: NewBaseRepository[models.ABTest, models.ABTestFilter](db)}
}

func (r *ABTestRepositoryImpl) applyFilter(db *gorm.DB, f models.ABTestFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.ConfigType != nil {
		db = db.Where("config_type = ?", *f.ConfigType)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.ConfigID != nil {
		db = db.Where("config_a_id = ? OR config_b_id = ?", *f.ConfigID, *f.ConfigID)
	}
	return db
}

func (r *ABTestRepositoryImpl) ByFilter(ctx context.Context, filter models.ABTestFilter, orderBy string, limit, offset int) ([]*models.ABTest, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ABTest{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.ABTest
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ABTestRepositoryImpl) Count(ctx context.Context, filter models.ABTestFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.ABTest{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ABTestRepositoryImpl) Exists(ctx context.Context, filter models.ABTestFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// Update persists every column of the test
func (r *ABTestRepositoryImpl) Update(ctx context.Context, test *models.ABTest) error {
	db := r.getDB(ctx)
	test.UpdatedAt = utils.UTCNow()
	if err := db.Save(test).Error; err != nil {
		return fmt.Errorf("failed to update ab test %d: %w", test.ID, err)
	}
	return nil
}

func (r *ABTestRepositoryImpl) Delete(ctx context.Context, id uint) (bool, error) {
	db := r.getDB(ctx)
	res := db.Delete(&models.ABTest{}, id)
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete ab test %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RunningForType returns the most recent active test of the domain, or nil
func (r *ABTestRepositoryImpl) RunningForType(ctx context.Context, configType models.ConfigType) (*models.ABTest, error) {
	db := r.getDB(ctx)
	var row models.ABTest
	err := db.Where("config_type = ? AND status = ?", configType, models.ABTestStatusActive).
		Order("id DESC").
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *ABTestRepositoryImpl) IncrementParticipants(ctx context.Context, id uint) error {
	db := r.getDB(ctx)
	return db.Model(&models.ABTest{}).
		Where("id = ?", id).
		UpdateColumn("total_participants", gorm.Expr("total_participants + ?", 1)).Error
}
