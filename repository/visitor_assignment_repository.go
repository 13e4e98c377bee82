package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Belgarat/freedownloadlandingpage/models"
	"github.com/Belgarat/freedownloadlandingpage/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VisitorAssignmentRepositoryImpl implements VisitorAssignmentRepository
type VisitorAssignmentRepositoryImpl struct {
	*BaseRepository[models.VisitorAssignment, models.VisitorAssignmentFilter]
}

func NewVisitorAssignmentRepository(db *gorm.DB) VisitorAssignmentRepository {
	return &VisitorAssignmentRepositoryImpl{BaseRepository: NewBaseRepository[models.VisitorAssignment, models.VisitorAssignmentFilter](db)}
}

func (r *VisitorAssignmentRepositoryImpl) ByVisitor(ctx context.Context, visitorID string, configType models.ConfigType) (*models.VisitorAssignment, error) {
	db := r.getDB(ctx)
	var row models.VisitorAssignment
	if err := db.Where("visitor_id = ? AND config_type = ?", visitorID, configType).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find assignment for visitor %s: %w", visitorID, err)
	}
	return &row, nil
}

// InsertIfAbsent writes the assignment unless the visitor already has one for the domain.
// It reports whether this call wrote the row.
func (r *VisitorAssignmentRepositoryImpl) InsertIfAbsent(ctx context.Context, assignment *models.VisitorAssignment) (bool, error) {
	db := r.getDB(ctx)
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "visitor_id"}, {Name: "config_type"}},
		DoNothing: true,
	}).Create(assignment)
	if res.Error != nil {
		return false, fmt.Errorf("failed to save assignment: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Repoint moves an assignment left by an older test to testID. It reports false
// when the row already points at testID, so concurrent callers count the visitor once.
func (r *VisitorAssignmentRepositoryImpl) Repoint(ctx context.Context, id uint, testID, configID uint, variant string) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.VisitorAssignment{}).
		Where("id = ? AND test_id <> ?", id, testID).
		Updates(map[string]any{
			"test_id":    testID,
			"config_id":  configID,
			"variant":    variant,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to repoint assignment %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *VisitorAssignmentRepositoryImpl) CountByTest(ctx context.Context, testID uint) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := db.Model(&models.VisitorAssignment{}).Where("test_id = ?", testID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *VisitorAssignmentRepositoryImpl) DeleteByTest(ctx context.Context, testID uint) error {
	db := r.getDB(ctx)
	return db.Where("test_id = ?", testID).Delete(&models.VisitorAssignment{}).Error
}
