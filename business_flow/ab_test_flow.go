package businessflow

import (
	"context"
	"strings"

	"github.com/Belgarat/freedownloadlandingpage/app/dto"
	"github.com/Belgarat/freedownloadlandingpage/models"
	"github.com/Belgarat/freedownloadlandingpage/repository"
	"github.com/Belgarat/freedownloadlandingpage/stats"
	"github.com/Belgarat/freedownloadlandingpage/utils"
	"gorm.io/gorm"
)

// comparisonConfidence is the Wilson interval level reported per variant
const comparisonConfidence = 0.95

// ABTestFlow manages A/B tests and their read-time comparison
type ABTestFlow interface {
	List(ctx context.Context, req *dto.ListABTestsRequest) (*dto.ListABTestsResponse, error)
	Get(ctx context.Context, id uint) (*dto.ABTestDTO, error)
	Create(ctx context.Context, req *dto.CreateABTestRequest) (*dto.ABTestDTO, error)
	Update(ctx context.Context, id uint, req *dto.UpdateABTestRequest) (*dto.ABTestDTO, error)
	Delete(ctx context.Context, id uint) error
	GetComparison(ctx context.Context, id uint) (*dto.ABTestComparisonResponse, error)
}

// ABTestFlowImpl implements ABTestFlow
type ABTestFlowImpl struct {
	abTestRepo     repository.ABTestRepository
	assignmentRepo repository.VisitorAssignmentRepository
	configRepo     repository.ConfigRepository
	usageRepo      repository.ConfigUsageRepository
	db             *gorm.DB
}

func NewABTestFlow(
	abTestRepo repository.ABTestRepository,
	assignmentRepo repository.VisitorAssignmentRepository,
	configRepo repository.ConfigRepository,
	usageRepo repository.ConfigUsageRepository,
	db *gorm.DB,
) ABTestFlow {
	return &ABTestFlowImpl{
		abTestRepo:     abTestRepo,
		assignmentRepo: assignmentRepo,
		configRepo:     configRepo,
		usageRepo:      usageRepo,
		db:             db,
	}
}

func (f *ABTestFlowImpl) List(ctx context.Context, req *dto.ListABTestsRequest) (*dto.ListABTestsResponse, error) {
	var filter models.ABTestFilter
	if req != nil {
		if req.ConfigType != nil && *req.ConfigType != "" {
			t, err := ParseConfigType(*req.ConfigType)
			if err != nil {
				return nil, err
			}
			filter.ConfigType = &t
		}
		if req.Status != nil && *req.Status != "" {
			s := models.ABTestStatus(strings.ToLower(*req.Status))
			if !s.Valid() {
				return nil, NewBusinessError("VALIDATION_ERROR", "invalid status", ErrInvalidTestStatus)
			}
			filter.Status = &s
		}
	}

	rows, err := f.abTestRepo.ByFilter(ctx, filter, "id DESC", 0, 0)
	if err != nil {
		return nil, newBackendError("Failed to list ab tests", err)
	}
	items := make([]dto.ABTestDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, ToABTestDTO(*row))
	}
	return &dto.ListABTestsResponse{Items: items, Total: len(items)}, nil
}

func (f *ABTestFlowImpl) Get(ctx context.Context, id uint) (*dto.ABTestDTO, error) {
	test, err := f.load(ctx, id)
	if err != nil {
		return nil, err
	}
	out := ToABTestDTO(*test)
	return &out, nil
}

func (f *ABTestFlowImpl) Create(ctx context.Context, req *dto.CreateABTestRequest) (*dto.ABTestDTO, error) {
	if req == nil {
		return nil, newValidationError("request", "is required")
	}
	name := strings.TrimSpace(req.TestName)
	if name == "" {
		return nil, newValidationError("test_name", "is required")
	}
	configType, err := ParseConfigType(req.ConfigType)
	if err != nil {
		return nil, err
	}
	if req.ConfigAID == 0 {
		return nil, newValidationError("config_a_id", "is required")
	}
	if req.ConfigBID == 0 {
		return nil, newValidationError("config_b_id", "is required")
	}
	if req.ConfigAID == req.ConfigBID {
		return nil, NewBusinessError("VALIDATION_ERROR", "variants must differ", ErrVariantsMustDiffer)
	}
	if strings.TrimSpace(req.StartDate) == "" {
		return nil, newValidationError("start_date", "is required")
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		return nil, NewBusinessError("VALIDATION_ERROR", "invalid start_date", err)
	}
	test := models.ABTest{
		TestName:    name,
		Description: utils.NilIfBlank(req.Description),
		ConfigType:  configType,
		ConfigAID:   req.ConfigAID,
		ConfigBID:   req.ConfigBID,
		Status:      models.ABTestStatusActive,
		StartDate:   start,
	}
	if req.EndDate != nil && strings.TrimSpace(*req.EndDate) != "" {
		endDate, err := parseDate(*req.EndDate)
		if err != nil {
			return nil, NewBusinessError("VALIDATION_ERROR", "invalid end_date", err)
		}
		if endDate.Before(start) {
			return nil, NewBusinessError("VALIDATION_ERROR", "invalid end_date", ErrEndDateBeforeStart)
		}
		test.EndDate = &endDate
	}
	if req.Status != nil && *req.Status != "" {
		s := models.ABTestStatus(strings.ToLower(*req.Status))
		if !s.Valid() {
			return nil, NewBusinessError("VALIDATION_ERROR", "invalid status", ErrInvalidTestStatus)
		}
		test.Status = s
	}

	for _, id := range []uint{req.ConfigAID, req.ConfigBID} {
		cfg, err := f.configRepo.ByID(ctx, configType, id)
		if err != nil {
			return nil, newBackendError("Failed to load variant config", err)
		}
		if cfg == nil {
			return nil, NewBusinessErrorf("VALIDATION_ERROR", "%s config %d does not exist", ErrVariantConfigNotFound, configType, id)
		}
	}

	if err := f.abTestRepo.Save(ctx, &test); err != nil {
		return nil, newBackendError("Failed to create ab test", err)
	}

	out := ToABTestDTO(test)
	return &out, nil
}

func (f *ABTestFlowImpl) Update(ctx context.Context, id uint, req *dto.UpdateABTestRequest) (*dto.ABTestDTO, error) {
	if req == nil {
		return nil, newValidationError("request", "is required")
	}
	test, err := f.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.TestName != nil {
		name := strings.TrimSpace(*req.TestName)
		if name == "" {
			return nil, newValidationError("test_name", "is required")
		}
		test.TestName = name
	}
	if req.Description != nil {
		test.Description = utils.NilIfBlank(req.Description)
	}
	if req.Status != nil {
		s := models.ABTestStatus(strings.ToLower(*req.Status))
		if !s.Valid() {
			return nil, NewBusinessError("VALIDATION_ERROR", "invalid status", ErrInvalidTestStatus)
		}
		test.Status = s
	}
	if req.StartDate != nil {
		start, err := parseDate(*req.StartDate)
		if err != nil {
			return nil, NewBusinessError("VALIDATION_ERROR", "invalid start_date", err)
		}
		test.StartDate = start
	}
	if req.EndDate != nil {
		if strings.TrimSpace(*req.EndDate) == "" {
			test.EndDate = nil
		} else {
			end, err := parseDate(*req.EndDate)
			if err != nil {
				return nil, NewBusinessError("VALIDATION_ERROR", "invalid end_date", err)
			}
			test.EndDate = &end
		}
	}
	if test.EndDate != nil && test.EndDate.Before(test.StartDate) {
		return nil, NewBusinessError("VALIDATION_ERROR", "invalid end_date", ErrEndDateBeforeStart)
	}
	if req.WinnerConfigID != nil {
		if test.VariantOf(*req.WinnerConfigID) == "" {
			return nil, NewBusinessError("VALIDATION_ERROR", "invalid winner", ErrInvalidWinner)
		}
		test.WinnerConfigID = req.WinnerConfigID
		// Recording a winner closes the test unless the caller sets a status explicitly.
		if req.Status == nil {
			test.Status = models.ABTestStatusCompleted
		}
	}
	if req.ConfidenceLevel != nil {
		test.ConfidenceLevel = req.ConfidenceLevel
	}

	if err := f.abTestRepo.Update(ctx, test); err != nil {
		return nil, newBackendError("Failed to update ab test", err)
	}

	out := ToABTestDTO(*test)
	return &out, nil
}

// Delete removes the test together with its visitor assignments
func (f *ABTestFlowImpl) Delete(ctx context.Context, id uint) error {
	if id == 0 {
		return NewBusinessError("INVALID_ID", "invalid ab test id", ErrInvalidID)
	}
	var deleted bool
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.assignmentRepo.DeleteByTest(txCtx, id); err != nil {
			return err
		}
		var err error
		deleted, err = f.abTestRepo.Delete(txCtx, id)
		return err
	})
	if err != nil {
		return newBackendError("Failed to delete ab test", err)
	}
	if !deleted {
		return NewBusinessErrorf("AB_TEST_NOT_FOUND", "ab test %d not found", ErrABTestNotFound, id)
	}
	return nil
}

// GetComparison aggregates both variants' usage counters at request time
func (f *ABTestFlowImpl) GetComparison(ctx context.Context, id uint) (*dto.ABTestComparisonResponse, error) {
	test, err := f.load(ctx, id)
	if err != nil {
		return nil, err
	}

	a, err := f.variantStats(ctx, test, models.VariantA, test.ConfigAID)
	if err != nil {
		return nil, err
	}
	b, err := f.variantStats(ctx, test, models.VariantB, test.ConfigBID)
	if err != nil {
		return nil, err
	}

	cmp := stats.Compare(
		stats.Sample{Conversions: a.EmailSubmissions, Trials: a.PageViews},
		stats.Sample{Conversions: b.EmailSubmissions, Trials: b.PageViews},
	)
	leader := models.VariantA
	if cmp.Leader == 1 {
		leader = models.VariantB
	}

	return &dto.ABTestComparisonResponse{
		Test:            ToABTestDTO(*test),
		VariantA:        *a,
		VariantB:        *b,
		LeadingVariant:  leader,
		ConfidenceLevel: cmp.ConfidenceLevel,
		Significant:     cmp.Confident,
	}, nil
}

func (f *ABTestFlowImpl) variantStats(ctx context.Context, test *models.ABTest, variant string, configID uint) (*dto.VariantStatsDTO, error) {
	totals, err := f.usageRepo.Totals(ctx, test.ConfigType, configID)
	if err != nil {
		return nil, newBackendError("Failed to aggregate usage", err)
	}

	out := &dto.VariantStatsDTO{
		Variant:                variant,
		ConfigID:               configID,
		PageViews:              totals.PageViews,
		EmailSubmissions:       totals.EmailSubmissions,
		DownloadRequests:       totals.DownloadRequests,
		DownloadCompletions:    totals.DownloadCompletions,
		UniqueVisitors:         totals.UniqueVisitors,
		EmailSubmissionRate:    utils.Percentage(totals.EmailSubmissions, totals.PageViews),
		DownloadCompletionRate: utils.Percentage(totals.DownloadCompletions, totals.DownloadRequests),
		DownloadRate:           utils.Percentage(totals.DownloadCompletions, totals.PageViews),
	}
	lo, hi := stats.WilsonInterval(totals.EmailSubmissions, totals.PageViews, comparisonConfidence)
	out.EmailRateCILower = utils.Percentage100(lo)
	out.EmailRateCIUpper = utils.Percentage100(hi)

	// The variant config may have been deleted since the test was created.
	cfg, err := f.configRepo.ByID(ctx, test.ConfigType, configID)
	if err != nil {
		return nil, newBackendError("Failed to load variant config", err)
	}
	if cfg != nil {
		out.ConfigName = cfg.Name
	}
	return out, nil
}

func (f *ABTestFlowImpl) load(ctx context.Context, id uint) (*models.ABTest, error) {
	if id == 0 {
		return nil, NewBusinessError("INVALID_ID", "invalid ab test id", ErrInvalidID)
	}
	test, err := f.abTestRepo.ByID(ctx, id)
	if err != nil {
		return nil, newBackendError("Failed to load ab test", err)
	}
	if test == nil {
		return nil, NewBusinessErrorf("AB_TEST_NOT_FOUND", "ab test %d not found", ErrABTestNotFound, id)
	}
	return test, nil
}
