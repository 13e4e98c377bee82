package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Belgarat/freedownloadlandingpage/models"
	"github.com/Belgarat/freedownloadlandingpage/utils"
	"gorm.io/gorm"
)

// ConfigRepositoryImpl implements ConfigRepository
type ConfigRepositoryImpl struct {
	*BaseRepository[models.Config, models.ConfigFilter]
}

func NewConfigRepository(db *gorm.DB) ConfigRepository {
	return &ConfigRepositoryImpl{BaseRepository: NewBaseRepository[models.Config, models.ConfigFilter](db)}
}

func (r *ConfigRepositoryImpl) table(ctx context.Context, configType models.ConfigType) *gorm.DB {
	return r.getDB(ctx).Table(configType.TableName())
}

func (r *ConfigRepositoryImpl) ByID(ctx context.Context, configType models.ConfigType, id uint) (*models.Config, error) {
	var row models.Config
	if err := r.table(ctx, configType).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find %s config by ID %d: %w", configType, id, err)
	}
	return &row, nil
}

func (r *ConfigRepositoryImpl) applyFilter(db *gorm.DB, f models.ConfigFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Name != nil {
		db = db.Where("name = ?", *f.Name)
	}
	if f.Language != nil {
		db = db.Where("language = ?", *f.Language)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	return db
}

func (r *ConfigRepositoryImpl) ByFilter(ctx context.Context, configType models.ConfigType, filter models.ConfigFilter, orderBy string, limit, offset int) ([]*models.Config, error) {
	query := r.applyFilter(r.table(ctx, configType), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Config
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s configs: %w", configType, err)
	}
	return rows, nil
}

func (r *ConfigRepositoryImpl) Count(ctx context.Context, configType models.ConfigType, filter models.ConfigFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.table(ctx, configType), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ConfigRepositoryImpl) Exists(ctx context.Context, configType models.ConfigType, filter models.ConfigFilter) (bool, error) {
	c, err := r.Count(ctx, configType, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// Save inserts a new config. New configs are always inactive; activation goes through Activate.
func (r *ConfigRepositoryImpl) Save(ctx context.Context, configType models.ConfigType, cfg *models.Config) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	cfg.IsActive = false
	err = db.Table(configType.TableName()).Create(cfg).Error
	if err != nil {
		return fmt.Errorf("failed to save %s config: %w", configType, err)
	}

	return nil
}

// Update writes name, language and payload. The active flag is left untouched.
func (r *ConfigRepositoryImpl) Update(ctx context.Context, configType models.ConfigType, cfg *models.Config) error {
	db := r.getDB(ctx)
	cfg.UpdatedAt = utils.UTCNow()
	res := db.Table(configType.TableName()).Where("id = ?", cfg.ID).Updates(map[string]any{
		"name":       cfg.Name,
		"language":   cfg.Language,
		"payload":    cfg.Payload,
		"updated_at": cfg.UpdatedAt,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update %s config %d: %w", configType, cfg.ID, res.Error)
	}
	return nil
}

func (r *ConfigRepositoryImpl) Delete(ctx context.Context, configType models.ConfigType, id uint) (bool, error) {
	res := r.table(ctx, configType).Where("id = ?", id).Delete(&models.Config{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete %s config %d: %w", configType, id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Active returns the active config of the scope, or nil if none is active
func (r *ConfigRepositoryImpl) Active(ctx context.Context, configType models.ConfigType, language *string) (*models.Config, error) {
	filter := models.ConfigFilter{IsActive: utils.ToPtr(true)}
	if configType.LanguageScoped() {
		if language == nil {
			return nil, nil
		}
		filter.Language = language
	}
	rows, err := r.ByFilter(ctx, configType, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Activate clears the active flag on every sibling of cfg's scope and sets it on cfg,
// inside one transaction. The partial unique index rejects a concurrent second winner.
func (r *ConfigRepositoryImpl) Activate(ctx context.Context, configType models.ConfigType, cfg *models.Config) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	now := utils.UTCNow()
	table := configType.TableName()

	siblings := db.Table(table).Where("is_active = ?", true).Where("id <> ?", cfg.ID)
	if configType.LanguageScoped() {
		siblings = siblings.Where("language = ?", cfg.Language)
	}
	err = siblings.Updates(map[string]any{"is_active": false, "updated_at": now}).Error
	if err != nil {
		return fmt.Errorf("failed to deactivate %s configs: %w", configType, err)
	}

	res := db.Table(table).Where("id = ?", cfg.ID).Updates(map[string]any{"is_active": true, "updated_at": now})
	if res.Error != nil {
		err = res.Error
		return fmt.Errorf("failed to activate %s config %d: %w", configType, cfg.ID, err)
	}
	if res.RowsAffected == 0 {
		err = gorm.ErrRecordNotFound
		return fmt.Errorf("failed to activate %s config %d: %w", configType, cfg.ID, err)
	}

	cfg.IsActive = true
	cfg.UpdatedAt = now
	return nil
}
