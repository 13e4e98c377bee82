package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/models"
	"gorm.io/gorm"
)

// DownloadTokenRepositoryImpl implements DownloadTokenRepository
type DownloadTokenRepositoryImpl struct {
	*BaseRepository[models.DownloadToken, models.DownloadTokenFilter]
}

func NewDownloadTokenRepository(db *gorm.DB) DownloadTokenRepository {
	return &DownloadTokenRepositoryImpl{BaseRepository: NewBaseRepository[models.DownloadToken, models.DownloadTokenFilter](db)}
}

func (r *DownloadTokenRepositoryImpl) ByToken(ctx context.Context, token string) (*models.DownloadToken, error) {
	db := r.getDB(ctx)
	var row models.DownloadToken
	if err := db.Where("token = ?", token).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find download token: %w", err)
	}
	return &row, nil
}

func (r *DownloadTokenRepositoryImpl) applyFilter(db *gorm.DB, f models.DownloadTokenFilter) *gorm.DB {
	if f.Email != nil {
		db = db.Where("email = ?", *f.Email)
	}
	if f.Token != nil {
		db = db.Where("token = ?", *f.Token)
	}
	if f.Used != nil {
		db = db.Where("used = ?", *f.Used)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *DownloadTokenRepositoryImpl) ByFilter(ctx context.Context, filter models.DownloadTokenFilter, orderBy string, limit, offset int) ([]*models.DownloadToken, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.DownloadToken{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.DownloadToken
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *DownloadTokenRepositoryImpl) Count(ctx context.Context, filter models.DownloadTokenFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.DownloadToken{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DownloadTokenRepositoryImpl) Exists(ctx context.Context, filter models.DownloadTokenFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// MarkUsed flags the token as consumed and reports whether this call flipped it.
// The used flag never reverts.
func (r *DownloadTokenRepositoryImpl) MarkUsed(ctx context.Context, id uint, usedAt time.Time) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.DownloadToken{}).
		Where("id = ? AND used = ?", id, false).
		Updates(map[string]any{"used": true, "used_at": usedAt})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteCreatedBefore removes tokens issued before the cutoff and reports how many went
func (r *DownloadTokenRepositoryImpl) DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error) {
	db := r.getDB(ctx)
	res := db.Where("created_at < ?", before).Delete(&models.DownloadToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete download tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}
