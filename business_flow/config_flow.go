package businessflow

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/Belgarat/freedownloadlandingpage/app/dto"
	"github.com/Belgarat/freedownloadlandingpage/models"
	"github.com/Belgarat/freedownloadlandingpage/repository"
	"github.com/Belgarat/freedownloadlandingpage/utils"
	"gorm.io/datatypes"
)

// ConfigFlow manages the configuration documents of every domain
type ConfigFlow interface {
	List(ctx context.Context, configType models.ConfigType, language *string) (*dto.ListConfigsResponse, error)
	Get(ctx context.Context, configType models.ConfigType, id uint) (*dto.ConfigDTO, error)
	Create(ctx context.Context, configType models.ConfigType, req *dto.CreateConfigRequest) (*dto.ConfigDTO, error)
	Update(ctx context.Context, configType models.ConfigType, id uint, req *dto.UpdateConfigRequest) (*dto.ConfigDTO, error)
	Delete(ctx context.Context, configType models.ConfigType, id uint) error
	Activate(ctx context.Context, configType models.ConfigType, id uint) (*dto.ConfigDTO, error)
	GetActive(ctx context.Context, configType models.ConfigType, language *string) (*dto.ConfigDTO, error)
	Duplicate(ctx context.Context, configType models.ConfigType, id uint, name string) (*dto.ConfigDTO, error)
}

// ConfigFlowImpl implements ConfigFlow
type ConfigFlowImpl struct {
	configRepo repository.ConfigRepository
}

func NewConfigFlow(configRepo repository.ConfigRepository) ConfigFlow {
	return &ConfigFlowImpl{configRepo: configRepo}
}

func (f *ConfigFlowImpl) List(ctx context.Context, configType models.ConfigType, language *string) (*dto.ListConfigsResponse, error) {
	if !configType.Valid() {
		return nil, NewBusinessError("INVALID_CONFIG_TYPE", "unknown config type", ErrInvalidConfigType)
	}

	filter := models.ConfigFilter{Language: normalizeLanguage(language)}
	rows, err := f.configRepo.ByFilter(ctx, configType, filter, "id ASC", 0, 0)
	if err != nil {
		return nil, newBackendError("Failed to list configs", err)
	}

	items := make([]dto.ConfigDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, ToConfigDTO(configType, *row))
	}
	return &dto.ListConfigsResponse{Items: items, Total: int64(len(items))}, nil
}

func (f *ConfigFlowImpl) Get(ctx context.Context, configType models.ConfigType, id uint) (*dto.ConfigDTO, error) {
	row, err := f.load(ctx, configType, id)
	if err != nil {
		return nil, err
	}
	out := ToConfigDTO(configType, *row)
	return &out, nil
}

func (f *ConfigFlowImpl) Create(ctx context.Context, configType models.ConfigType, req *dto.CreateConfigRequest) (*dto.ConfigDTO, error) {
	if !configType.Valid() {
		return nil, NewBusinessError("INVALID_CONFIG_TYPE", "unknown config type", ErrInvalidConfigType)
	}
	if req == nil {
		return nil, newValidationError("request", "is required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, NewBusinessError("VALIDATION_ERROR", "name is required", ErrConfigNameRequired)
	}
	if len(bytes.TrimSpace(req.Payload)) == 0 || bytes.Equal(bytes.TrimSpace(req.Payload), []byte("null")) {
		return nil, NewBusinessError("VALIDATION_ERROR", "payload is required", ErrConfigPayloadRequired)
	}
	payload, err := normalizePayload(req.Payload)
	if err != nil {
		return nil, err
	}
	language := normalizeLanguage(req.Language)
	if configType.LanguageScoped() && language == nil {
		return nil, NewBusinessError("VALIDATION_ERROR", "language is required", ErrLanguageRequired)
	}

	row := models.Config{
		Name:     name,
		Language: language,
		Payload:  payload,
	}
	if err := f.configRepo.Save(ctx, configType, &row); err != nil {
		return nil, newBackendError("Failed to create config", err)
	}

	out := ToConfigDTO(configType, row)
	return &out, nil
}

func (f *ConfigFlowImpl) Update(ctx context.Context, configType models.ConfigType, id uint, req *dto.UpdateConfigRequest) (*dto.ConfigDTO, error) {
	if req == nil || (req.Name == nil && req.Language == nil && len(req.Payload) == 0) {
		return nil, NewBusinessError("VALIDATION_ERROR", "nothing to update", ErrConfigUpdateRequired)
	}
	row, err := f.load(ctx, configType, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, NewBusinessError("VALIDATION_ERROR", "name is required", ErrConfigNameRequired)
		}
		row.Name = name
	}
	if req.Language != nil {
		language := normalizeLanguage(req.Language)
		if configType.LanguageScoped() && language == nil {
			return nil, NewBusinessError("VALIDATION_ERROR", "language is required", ErrLanguageRequired)
		}
		row.Language = language
	}
	if len(req.Payload) > 0 {
		payload, err := normalizePayload(req.Payload)
		if err != nil {
			return nil, err
		}
		row.Payload = payload
	}

	if err := f.configRepo.Update(ctx, configType, row); err != nil {
		return nil, newBackendError("Failed to update config", err)
	}

	out := ToConfigDTO(configType, *row)
	return &out, nil
}

// Delete removes a config. Deleting the active config leaves its scope without one.
func (f *ConfigFlowImpl) Delete(ctx context.Context, configType models.ConfigType, id uint) error {
	if !configType.Valid() {
		return NewBusinessError("INVALID_CONFIG_TYPE", "unknown config type", ErrInvalidConfigType)
	}
	if id == 0 {
		return NewBusinessError("INVALID_ID", "invalid config id", ErrInvalidID)
	}
	deleted, err := f.configRepo.Delete(ctx, configType, id)
	if err != nil {
		return newBackendError("Failed to delete config", err)
	}
	if !deleted {
		return NewBusinessErrorf("CONFIG_NOT_FOUND", "%s config %d not found", ErrConfigNotFound, configType, id)
	}
	return nil
}

func (f *ConfigFlowImpl) Activate(ctx context.Context, configType models.ConfigType, id uint) (*dto.ConfigDTO, error) {
	row, err := f.load(ctx, configType, id)
	if err != nil {
		return nil, err
	}
	if configType.LanguageScoped() && row.Language == nil {
		return nil, NewBusinessError("VALIDATION_ERROR", "language is required", ErrLanguageRequired)
	}

	if err := f.configRepo.Activate(ctx, configType, row); err != nil {
		return nil, newBackendError("Failed to activate config", err)
	}

	out := ToConfigDTO(configType, *row)
	return &out, nil
}

func (f *ConfigFlowImpl) GetActive(ctx context.Context, configType models.ConfigType, language *string) (*dto.ConfigDTO, error) {
	row, err := f.active(ctx, configType, language)
	if err != nil {
		return nil, err
	}
	out := ToConfigDTO(configType, *row)
	return &out, nil
}

// Duplicate copies payload and language under a new name. The copy is inactive
// and shares no memory with the source.
func (f *ConfigFlowImpl) Duplicate(ctx context.Context, configType models.ConfigType, id uint, name string) (*dto.ConfigDTO, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewBusinessError("VALIDATION_ERROR", "name is required", ErrConfigNameRequired)
	}
	src, err := f.load(ctx, configType, id)
	if err != nil {
		return nil, err
	}

	payload := make(datatypes.JSON, len(src.Payload))
	copy(payload, src.Payload)
	var language *string
	if src.Language != nil {
		language = utils.ToPtr(*src.Language)
	}

	row := models.Config{
		Name:     name,
		Language: language,
		Payload:  payload,
	}
	if err := f.configRepo.Save(ctx, configType, &row); err != nil {
		return nil, newBackendError("Failed to duplicate config", err)
	}

	out := ToConfigDTO(configType, row)
	return &out, nil
}

func (f *ConfigFlowImpl) load(ctx context.Context, configType models.ConfigType, id uint) (*models.Config, error) {
	if !configType.Valid() {
		return nil, NewBusinessError("INVALID_CONFIG_TYPE", "unknown config type", ErrInvalidConfigType)
	}
	if id == 0 {
		return nil, NewBusinessError("INVALID_ID", "invalid config id", ErrInvalidID)
	}
	row, err := f.configRepo.ByID(ctx, configType, id)
	if err != nil {
		return nil, newBackendError("Failed to load config", err)
	}
	if row == nil {
		return nil, NewBusinessErrorf("CONFIG_NOT_FOUND", "%s config %d not found", ErrConfigNotFound, configType, id)
	}
	return row, nil
}

// active is shared with the assignment resolver so both report the same row
func (f *ConfigFlowImpl) active(ctx context.Context, configType models.ConfigType, language *string) (*models.Config, error) {
	if !configType.Valid() {
		return nil, NewBusinessError("INVALID_CONFIG_TYPE", "unknown config type", ErrInvalidConfigType)
	}
	language = normalizeLanguage(language)
	if configType.LanguageScoped() && language == nil {
		return nil, NewBusinessError("VALIDATION_ERROR", "language is required", ErrLanguageRequired)
	}
	row, err := f.configRepo.Active(ctx, configType, language)
	if err != nil {
		return nil, newBackendError("Failed to load active config", err)
	}
	if row == nil {
		return nil, NewBusinessErrorf("ACTIVE_CONFIG_NOT_FOUND", "no active %s config", ErrActiveConfigNotFound, configType)
	}
	return row, nil
}

// normalizePayload accepts a JSON object and stores it compacted
func normalizePayload(raw json.RawMessage) (datatypes.JSON, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, NewBusinessError("VALIDATION_ERROR", "payload must be a JSON object", ErrInvalidPayload)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, NewBusinessError("VALIDATION_ERROR", "payload must be a JSON object", ErrInvalidPayload)
	}
	return datatypes.JSON(buf.Bytes()), nil
}
