package businessflow

import (
	"fmt"
	"sync"
	"testing"

	"github.com/Belgarat/freedownloadlandingpage/app/dto"
	"github.com/Belgarat/freedownloadlandingpage/models"
	testingutil "github.com/Belgarat/freedownloadlandingpage/testing"
	"github.com/Belgarat/freedownloadlandingpage/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketVariant(t *testing.T) {
	seen := map[string]int{}
	for i := range 200 {
		visitor := fmt.Sprintf("visitor-%d", i)
		v := BucketVariant(visitor, 7)
		assert.Equal(t, v, BucketVariant(visitor, 7), "bucketing must be deterministic")
		seen[v]++
	}
	assert.Positive(t, seen[models.VariantA])
	assert.Positive(t, seen[models.VariantB])
	assert.Len(t, seen, 2)
}

func TestAssignmentFlowStability(t *testing.T) {
	env := newABTestEnv(t)
	ctx := testingutil.CreateTestContext()
	a, b := env.variants(t, models.ConfigTypeTheme)
	test, err := env.fixtures.CreateABTest(models.ConfigTypeTheme, a.ID, b.ID)
	require.NoError(t, err)

	req := &dto.AssignRequest{VisitorID: "visitor-42", ConfigType: "theme"}
	first, err := env.assignments.Assign(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, AssignmentSourceABTest, first.Source)
	require.NotNil(t, first.TestID)
	assert.Equal(t, test.ID, *first.TestID)
	require.NotNil(t, first.Variant)
	require.NotNil(t, first.Config)
	assert.Equal(t, first.ConfigID, first.Config.ID)

	wantConfig := a.ID
	if *first.Variant == models.VariantB {
		wantConfig = b.ID
	}
	assert.Equal(t, wantConfig, first.ConfigID)

	for range 5 {
		again, err := env.assignments.Assign(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, first.ConfigID, again.ConfigID)
		assert.Equal(t, *first.Variant, *again.Variant)
	}

	reloaded, err := env.testRepo.ByID(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reloaded.TotalParticipants)

	// a second visitor is a second participant
	_, err = env.assignments.Assign(ctx, &dto.AssignRequest{VisitorID: "visitor-43", ConfigType: "theme"})
	require.NoError(t, err)
	reloaded, err = env.testRepo.ByID(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reloaded.TotalParticipants)
}

func TestAssignmentFlowConcurrentFirstAssign(t *testing.T) {
	env := newABTestEnvOn(testingutil.SetupPooledTestDB(t, 8))
	ctx := testingutil.CreateTestContext()
	a, b := env.variants(t, models.ConfigTypeMarketing)
	test, err := env.fixtures.CreateABTest(models.ConfigTypeMarketing, a.ID, b.ID)
	require.NoError(t, err)

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*dto.AssignResponse, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = env.assignments.Assign(ctx, &dto.AssignRequest{VisitorID: "racing-visitor", ConfigType: "marketing"})
		}()
	}
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i], "caller %d", i)
		assert.Equal(t, results[0].ConfigID, results[i].ConfigID)
	}

	assignment, err := env.assignRepo.ByVisitor(ctx, "racing-visitor", models.ConfigTypeMarketing)
	require.NoError(t, err)
	require.NotNil(t, assignment)
	assert.Equal(t, results[0].ConfigID, assignment.ConfigID)

	reloaded, err := env.testRepo.ByID(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reloaded.TotalParticipants)
}

func TestAssignmentFlowFallback(t *testing.T) {
	env := newABTestEnv(t)
	ctx := testingutil.CreateTestContext()

	_, err := env.assignments.Assign(ctx, &dto.AssignRequest{VisitorID: "v", ConfigType: "seo"})
	require.Error(t, err)
	assert.True(t, IsActiveConfigNotFound(err))

	active, err := env.fixtures.CreateActiveConfig(models.ConfigTypeSEO, "seo", nil, map[string]any{"title": "Free ebook"})
	require.NoError(t, err)

	got, err := env.assignments.Assign(ctx, &dto.AssignRequest{VisitorID: "v", ConfigType: "seo"})
	require.NoError(t, err)
	assert.Equal(t, AssignmentSourceActive, got.Source)
	assert.Nil(t, got.TestID)
	assert.Nil(t, got.Variant)

	want, err := env.configs.GetActive(ctx, models.ConfigTypeSEO, nil)
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ConfigID)
	assert.Equal(t, *want, *got.Config)

	row, err := env.assignRepo.ByVisitor(ctx, "v", models.ConfigTypeSEO)
	require.NoError(t, err)
	assert.Nil(t, row, "fallback must not persist an assignment")
}

func TestAssignmentFlowPausedAndCompletedTestsAreIgnored(t *testing.T) {
	env := newABTestEnv(t)
	ctx := testingutil.CreateTestContext()
	a, b := env.variants(t, models.ConfigTypeMarketing)
	active, err := env.fixtures.CreateActiveConfig(models.ConfigTypeMarketing, "live", nil, map[string]any{"headline": "Live"})
	require.NoError(t, err)
	test, err := env.fixtures.CreateABTest(models.ConfigTypeMarketing, a.ID, b.ID)
	require.NoError(t, err)

	for _, status := range []string{"paused", "completed"} {
		_, err := env.abTests.Update(ctx, test.ID, &dto.UpdateABTestRequest{Status: utils.ToPtr(status)})
		require.NoError(t, err)

		got, err := env.assignments.Assign(ctx, &dto.AssignRequest{VisitorID: "v", ConfigType: "marketing"})
		require.NoError(t, err)
		assert.Equal(t, AssignmentSourceActive, got.Source, status)
		assert.Equal(t, active.ID, got.ConfigID, status)
	}
}

func TestAssignmentFlowRepointsToNewTest(t *testing.T) {
	env := newABTestEnv(t)
	ctx := testingutil.CreateTestContext()
	a, b := env.variants(t, models.ConfigTypeTheme)
	oldTest, err := env.fixtures.CreateABTest(models.ConfigTypeTheme, a.ID, b.ID)
	require.NoError(t, err)

	req := &dto.AssignRequest{VisitorID: "returning", ConfigType: "theme"}
	_, err = env.assignments.Assign(ctx, req)
	require.NoError(t, err)

	_, err = env.abTests.Update(ctx, oldTest.ID, &dto.UpdateABTestRequest{Status: utils.ToPtr("completed")})
	require.NoError(t, err)
	c, d := env.variants(t, models.ConfigTypeTheme)
	newTest, err := env.fixtures.CreateABTest(models.ConfigTypeTheme, c.ID, d.ID)
	require.NoError(t, err)

	got, err := env.assignments.Assign(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, got.TestID)
	assert.Equal(t, newTest.ID, *got.TestID)
	assert.Contains(t, []uint{c.ID, d.ID}, got.ConfigID)

	reloaded, err := env.testRepo.ByID(ctx, newTest.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reloaded.TotalParticipants)
}

func TestAssignmentFlowTrackUsage(t *testing.T) {
	env := newABTestEnv(t)
	ctx := testingutil.CreateTestContext()
	a, _ := env.variants(t, models.ConfigTypeTheme)

	tests := []struct {
		name    string
		req     *dto.TrackUsageRequest
		wantErr error
	}{
		{
			name: "page view",
			req:  &dto.TrackUsageRequest{ConfigType: "theme", ConfigID: a.ID, VisitorID: "v", PageView: 1},
		},
		{
			name:    "nothing to record",
			req:     &dto.TrackUsageRequest{ConfigType: "theme", ConfigID: a.ID, VisitorID: "v"},
			wantErr: ErrUsageFlagRequired,
		},
		{
			name:    "missing visitor",
			req:     &dto.TrackUsageRequest{ConfigType: "theme", ConfigID: a.ID, PageView: 1},
			wantErr: ErrVisitorIDRequired,
		},
		{
			name:    "unknown config",
			req:     &dto.TrackUsageRequest{ConfigType: "theme", ConfigID: 9999, VisitorID: "v", PageView: 1},
			wantErr: ErrConfigNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.assignments.TrackUsage(ctx, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
