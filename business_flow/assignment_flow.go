package businessflow

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/Belgarat/freedownloadlandingpage/app/dto"
	"github.com/Belgarat/freedownloadlandingpage/models"
	"github.com/Belgarat/freedownloadlandingpage/repository"
	"github.com/Belgarat/freedownloadlandingpage/utils"
	"gorm.io/gorm"
)

const (
	AssignmentSourceABTest = "ab_test"
	AssignmentSourceActive = "active"
)

// AssignmentFlow resolves which configuration a visitor sees and records what they did with it
type AssignmentFlow interface {
	Assign(ctx context.Context, req *dto.AssignRequest) (*dto.AssignResponse, error)
	TrackUsage(ctx context.Context, req *dto.TrackUsageRequest) (*dto.TrackUsageResponse, error)
}

// AssignmentFlowImpl implements AssignmentFlow
type AssignmentFlowImpl struct {
	configFlow     *ConfigFlowImpl
	configRepo     repository.ConfigRepository
	abTestRepo     repository.ABTestRepository
	assignmentRepo repository.VisitorAssignmentRepository
	usageRepo      repository.ConfigUsageRepository
	db             *gorm.DB
}

func NewAssignmentFlow(
	configRepo repository.ConfigRepository,
	abTestRepo repository.ABTestRepository,
	assignmentRepo repository.VisitorAssignmentRepository,
	usageRepo repository.ConfigUsageRepository,
	db *gorm.DB,
) AssignmentFlow {
	return &AssignmentFlowImpl{
		configFlow:     &ConfigFlowImpl{configRepo: configRepo},
		configRepo:     configRepo,
		abTestRepo:     abTestRepo,
		assignmentRepo: assignmentRepo,
		usageRepo:      usageRepo,
		db:             db,
	}
}

// BucketVariant deterministically splits visitors of a test into A and B
func BucketVariant(visitorID string, testID uint) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(visitorID + ":" + strconv.FormatUint(uint64(testID), 10)))
	if h.Sum32()%2 == 0 {
		return models.VariantA
	}
	return models.VariantB
}

// Assign returns the visitor's sticky variant of the running test for the domain,
// or the domain's active config when no test is running. The fallback writes nothing.
func (f *AssignmentFlowImpl) Assign(ctx context.Context, req *dto.AssignRequest) (*dto.AssignResponse, error) {
	if req == nil {
		return nil, newValidationError("request", "is required")
	}
	visitorID := strings.TrimSpace(req.VisitorID)
	if visitorID == "" {
		return nil, NewBusinessError("VALIDATION_ERROR", "visitor_id is required", ErrVisitorIDRequired)
	}
	configType, err := ParseConfigType(req.ConfigType)
	if err != nil {
		return nil, err
	}

	test, err := f.abTestRepo.RunningForType(ctx, configType)
	if err != nil {
		return nil, newBackendError("Failed to load running ab test", err)
	}
	if test == nil {
		cfg, err := f.configFlow.active(ctx, configType, req.Language)
		if err != nil {
			return nil, err
		}
		out := ToConfigDTO(configType, *cfg)
		return &dto.AssignResponse{
			ConfigID:   cfg.ID,
			ConfigType: string(configType),
			Source:     AssignmentSourceActive,
			Config:     &out,
		}, nil
	}

	assignment, err := f.assignmentRepo.ByVisitor(ctx, visitorID, configType)
	if err != nil {
		return nil, newBackendError("Failed to load visitor assignment", err)
	}
	if assignment == nil || assignment.TestID != test.ID {
		assignment, err = f.persistAssignment(ctx, test, visitorID, assignment)
		if err != nil {
			return nil, err
		}
	}

	return f.assignmentResponse(ctx, test, assignment)
}

// persistAssignment inserts or repoints the visitor's row for test and re-reads it,
// so a racing request returns the row that won. Participants grow only on an actual write.
func (f *AssignmentFlowImpl) persistAssignment(ctx context.Context, test *models.ABTest, visitorID string, stale *models.VisitorAssignment) (*models.VisitorAssignment, error) {
	variant := BucketVariant(visitorID, test.ID)
	configID := test.ConfigAID
	if variant == models.VariantB {
		configID = test.ConfigBID
	}

	var result *models.VisitorAssignment
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		var wrote bool
		var err error
		if stale == nil {
			wrote, err = f.assignmentRepo.InsertIfAbsent(txCtx, &models.VisitorAssignment{
				VisitorID:  visitorID,
				ConfigType: test.ConfigType,
				TestID:     test.ID,
				ConfigID:   configID,
				Variant:    variant,
			})
		} else {
			wrote, err = f.assignmentRepo.Repoint(txCtx, stale.ID, test.ID, configID, variant)
		}
		if err != nil {
			return err
		}

		if wrote {
			if err := f.abTestRepo.IncrementParticipants(txCtx, test.ID); err != nil {
				return err
			}
		}

		result, err = f.assignmentRepo.ByVisitor(txCtx, visitorID, test.ConfigType)
		if err != nil {
			return err
		}
		// A concurrent insert may have lost to a row from an older test.
		if result != nil && result.TestID != test.ID {
			moved, err := f.assignmentRepo.Repoint(txCtx, result.ID, test.ID, configID, variant)
			if err != nil {
				return err
			}
			if moved {
				if err := f.abTestRepo.IncrementParticipants(txCtx, test.ID); err != nil {
					return err
				}
			}
			result.TestID, result.ConfigID, result.Variant = test.ID, configID, variant
		}
		return nil
	})
	if err != nil {
		return nil, newBackendError("Failed to persist visitor assignment", err)
	}
	if result == nil {
		return nil, newBackendError("Failed to persist visitor assignment", gorm.ErrRecordNotFound)
	}
	return result, nil
}

func (f *AssignmentFlowImpl) assignmentResponse(ctx context.Context, test *models.ABTest, assignment *models.VisitorAssignment) (*dto.AssignResponse, error) {
	out := &dto.AssignResponse{
		ConfigID:   assignment.ConfigID,
		ConfigType: string(test.ConfigType),
		TestID:     utils.ToPtr(test.ID),
		Variant:    utils.ToPtr(assignment.Variant),
		Source:     AssignmentSourceABTest,
	}
	cfg, err := f.configRepo.ByID(ctx, test.ConfigType, assignment.ConfigID)
	if err != nil {
		return nil, newBackendError("Failed to load assigned config", err)
	}
	// A deleted variant config still yields its id so the client can fall back.
	if cfg != nil {
		c := ToConfigDTO(test.ConfigType, *cfg)
		out.Config = &c
	}
	return out, nil
}

// TrackUsage adds the reported outcome counts to the visitor's usage row for one config
func (f *AssignmentFlowImpl) TrackUsage(ctx context.Context, req *dto.TrackUsageRequest) (*dto.TrackUsageResponse, error) {
	if req == nil {
		return nil, newValidationError("request", "is required")
	}
	configType, err := ParseConfigType(req.ConfigType)
	if err != nil {
		return nil, err
	}
	visitorID := strings.TrimSpace(req.VisitorID)
	if visitorID == "" {
		return nil, NewBusinessError("VALIDATION_ERROR", "visitor_id is required", ErrVisitorIDRequired)
	}
	if req.ConfigID == 0 {
		return nil, newValidationError("config_id", "is required")
	}

	inc := models.UsageIncrement{
		PageViews:           int64(req.PageView),
		EmailSubmissions:    int64(req.EmailSubmission),
		DownloadRequests:    int64(req.DownloadRequest),
		DownloadCompletions: int64(req.DownloadCompleted),
	}
	if inc.IsZero() {
		return nil, NewBusinessError("VALIDATION_ERROR", "no usage flag set", ErrUsageFlagRequired)
	}

	cfg, err := f.configRepo.ByID(ctx, configType, req.ConfigID)
	if err != nil {
		return nil, newBackendError("Failed to load config", err)
	}
	if cfg == nil {
		return nil, NewBusinessErrorf("CONFIG_NOT_FOUND", "%s config %d not found", ErrConfigNotFound, configType, req.ConfigID)
	}

	if err := f.usageRepo.Increment(ctx, configType, req.ConfigID, visitorID, inc); err != nil {
		return nil, newBackendError("Failed to record usage", err)
	}
	return &dto.TrackUsageResponse{Message: "Usage recorded"}, nil
}
