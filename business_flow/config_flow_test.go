package businessflow

import (
	"encoding/json"
	"testing"

	"github.com/Belgarat/freedownloadlandingpage/app/dto"
	"github.com/Belgarat/freedownloadlandingpage/models"
	"github.com/Belgarat/freedownloadlandingpage/repository"
	testingutil "github.com/Belgarat/freedownloadlandingpage/testing"
	"github.com/Belgarat/freedownloadlandingpage/utils"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfigFlow(t *testing.T) (ConfigFlow, *testingutil.TestFixtures) {
	t.Helper()
	testDB := testingutil.SetupTestDB(t)
	return NewConfigFlow(repository.NewConfigRepository(testDB.DB)), testingutil.NewTestFixtures(testDB)
}

func TestConfigFlowCreate(t *testing.T) {
	flow, _ := newTestConfigFlow(t)
	ctx := testingutil.CreateTestContext()

	tests := []struct {
		name       string
		configType models.ConfigType
		req        *dto.CreateConfigRequest
		wantErr    error
	}{
		{
			name:       "theme",
			configType: models.ConfigTypeTheme,
			req:        &dto.CreateConfigRequest{Name: "Dark", Payload: json.RawMessage(`{"colors": {"primary": "#000"}}`)},
		},
		{
			name:       "content requires language",
			configType: models.ConfigTypeContent,
			req:        &dto.CreateConfigRequest{Name: "Copy", Payload: json.RawMessage(`{"title":"Hi"}`)},
			wantErr:    ErrLanguageRequired,
		},
		{
			name:       "payload must be an object",
			configType: models.ConfigTypeSEO,
			req:        &dto.CreateConfigRequest{Name: "SEO", Payload: json.RawMessage(`[1,2]`)},
			wantErr:    ErrInvalidPayload,
		},
		{
			name:       "missing payload",
			configType: models.ConfigTypeSEO,
			req:        &dto.CreateConfigRequest{Name: "SEO"},
			wantErr:    ErrConfigPayloadRequired,
		},
		{
			name:       "blank name",
			configType: models.ConfigTypeBook,
			req:        &dto.CreateConfigRequest{Name: "  ", Payload: json.RawMessage(`{}`)},
			wantErr:    ErrConfigNameRequired,
		},
		{
			name:       "unknown type",
			configType: models.ConfigType("footer"),
			req:        &dto.CreateConfigRequest{Name: "x", Payload: json.RawMessage(`{}`)},
			wantErr:    ErrInvalidConfigType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := flow.Create(ctx, tt.configType, tt.req)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, out.ID)
			assert.False(t, out.IsActive)
			assert.JSONEq(t, `{"colors":{"primary":"#000"}}`, string(out.Payload))
		})
	}
}

func TestConfigFlowActivate(t *testing.T) {
	flow, fixtures := newTestConfigFlow(t)
	ctx := testingutil.CreateTestContext()

	first, err := fixtures.CreateConfig(models.ConfigTypeMarketing, "first", nil, map[string]any{"cta": "one"})
	require.NoError(t, err)
	second, err := fixtures.CreateConfig(models.ConfigTypeMarketing, "second", nil, map[string]any{"cta": "two"})
	require.NoError(t, err)

	_, err = flow.GetActive(ctx, models.ConfigTypeMarketing, nil)
	require.Error(t, err)
	assert.True(t, IsActiveConfigNotFound(err))

	for _, id := range []uint{first.ID, second.ID, first.ID} {
		activated, err := flow.Activate(ctx, models.ConfigTypeMarketing, id)
		require.NoError(t, err)
		assert.True(t, activated.IsActive)
	}

	list, err := flow.List(ctx, models.ConfigTypeMarketing, nil)
	require.NoError(t, err)
	active := 0
	for _, item := range list.Items {
		if item.IsActive {
			active++
			assert.Equal(t, first.ID, item.ID)
		}
	}
	assert.Equal(t, 1, active)

	got, err := flow.GetActive(ctx, models.ConfigTypeMarketing, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = flow.Activate(ctx, models.ConfigTypeMarketing, 9999)
	require.Error(t, err)
	assert.True(t, IsConfigNotFound(err))
}

func TestConfigFlowContentIsScopedByLanguage(t *testing.T) {
	flow, fixtures := newTestConfigFlow(t)
	ctx := testingutil.CreateTestContext()

	en, err := fixtures.CreateConfig(models.ConfigTypeContent, "en", utils.ToPtr("en"), map[string]any{"title": "Hello"})
	require.NoError(t, err)
	it, err := fixtures.CreateConfig(models.ConfigTypeContent, "it", utils.ToPtr("it"), map[string]any{"title": "Ciao"})
	require.NoError(t, err)

	_, err = flow.Activate(ctx, models.ConfigTypeContent, en.ID)
	require.NoError(t, err)
	_, err = flow.Activate(ctx, models.ConfigTypeContent, it.ID)
	require.NoError(t, err)

	gotEN, err := flow.GetActive(ctx, models.ConfigTypeContent, utils.ToPtr("EN"))
	require.NoError(t, err)
	assert.Equal(t, en.ID, gotEN.ID)

	gotIT, err := flow.GetActive(ctx, models.ConfigTypeContent, utils.ToPtr("it"))
	require.NoError(t, err)
	assert.Equal(t, it.ID, gotIT.ID)

	_, err = flow.GetActive(ctx, models.ConfigTypeContent, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLanguageRequired)

	list, err := flow.List(ctx, models.ConfigTypeContent, utils.ToPtr("it"))
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, it.ID, list.Items[0].ID)
}

func TestConfigFlowUpdate(t *testing.T) {
	flow, fixtures := newTestConfigFlow(t)
	ctx := testingutil.CreateTestContext()

	cfg, err := fixtures.CreateConfig(models.ConfigTypeSEO, "seo", nil, map[string]any{"title": "Old"})
	require.NoError(t, err)

	t.Run("PartialUpdateKeepsPayload", func(t *testing.T) {
		out, err := flow.Update(ctx, models.ConfigTypeSEO, cfg.ID, &dto.UpdateConfigRequest{Name: utils.ToPtr("renamed")})
		require.NoError(t, err)
		assert.Equal(t, "renamed", out.Name)
		assert.JSONEq(t, `{"title":"Old"}`, string(out.Payload))
	})

	t.Run("PayloadReplaced", func(t *testing.T) {
		out, err := flow.Update(ctx, models.ConfigTypeSEO, cfg.ID, &dto.UpdateConfigRequest{Payload: json.RawMessage(`{"title":"New"}`)})
		require.NoError(t, err)
		assert.Equal(t, "renamed", out.Name)
		assert.JSONEq(t, `{"title":"New"}`, string(out.Payload))
	})

	t.Run("EmptyUpdate", func(t *testing.T) {
		_, err := flow.Update(ctx, models.ConfigTypeSEO, cfg.ID, &dto.UpdateConfigRequest{})
		assert.ErrorIs(t, err, ErrConfigUpdateRequired)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := flow.Update(ctx, models.ConfigTypeSEO, 4242, &dto.UpdateConfigRequest{Name: utils.ToPtr("x")})
		assert.True(t, IsNotFound(err))
	})
}

func TestConfigFlowDuplicate(t *testing.T) {
	flow, fixtures := newTestConfigFlow(t)
	ctx := testingutil.CreateTestContext()

	src, err := fixtures.CreateActiveConfig(models.ConfigTypeContent, "original", utils.ToPtr("en"),
		map[string]any{"title": "Hello", "faq": []any{map[string]any{"q": "Free?", "a": "Yes"}}})
	require.NoError(t, err)

	original, err := flow.Get(ctx, models.ConfigTypeContent, src.ID)
	require.NoError(t, err)

	dup, err := flow.Duplicate(ctx, models.ConfigTypeContent, src.ID, "copy")
	require.NoError(t, err)

	assert.NotEqual(t, original.ID, dup.ID)
	assert.Equal(t, "copy", dup.Name)
	assert.False(t, dup.IsActive)

	ignore := cmpopts.IgnoreFields(dto.ConfigDTO{}, "ID", "Name", "IsActive", "CreatedAt", "UpdatedAt")
	if diff := cmp.Diff(*original, *dup, ignore); diff != "" {
		t.Errorf("duplicate differs from source (-source +copy):\n%s", diff)
	}

	// editing the copy leaves the source alone
	_, err = flow.Update(ctx, models.ConfigTypeContent, dup.ID, &dto.UpdateConfigRequest{Payload: json.RawMessage(`{"title":"Changed"}`)})
	require.NoError(t, err)
	after, err := flow.Get(ctx, models.ConfigTypeContent, src.ID)
	require.NoError(t, err)
	assert.JSONEq(t, string(original.Payload), string(after.Payload))
	assert.True(t, after.IsActive)

	_, err = flow.Duplicate(ctx, models.ConfigTypeContent, 9999, "nope")
	assert.True(t, IsConfigNotFound(err))
}

func TestConfigFlowDelete(t *testing.T) {
	flow, fixtures := newTestConfigFlow(t)
	ctx := testingutil.CreateTestContext()

	cfg, err := fixtures.CreateActiveConfig(models.ConfigTypeBook, "book", nil, map[string]any{"title": "Go"})
	require.NoError(t, err)

	require.NoError(t, flow.Delete(ctx, models.ConfigTypeBook, cfg.ID))

	_, err = flow.GetActive(ctx, models.ConfigTypeBook, nil)
	assert.True(t, IsActiveConfigNotFound(err))

	err = flow.Delete(ctx, models.ConfigTypeBook, cfg.ID)
	assert.True(t, IsConfigNotFound(err))
}
