package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/app/dto"
	"github.com/Belgarat/freedownloadlandingpage/app/services"
	"github.com/Belgarat/freedownloadlandingpage/logger"
	"github.com/Belgarat/freedownloadlandingpage/models"
	"github.com/Belgarat/freedownloadlandingpage/repository"
	"github.com/Belgarat/freedownloadlandingpage/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"
)

const (
	analyticsExportFilename = "analytics_events.xlsx"
	analyticsExportPageSize = 1000

	// matches the analytics_counters.name column
	maxCounterNameLength = 255
)

// AnalyticsFlow records landing page events and reports on them
type AnalyticsFlow interface {
	Record(ctx context.Context, req *dto.RecordAnalyticsRequest, metadata *ClientMetadata) (*dto.RecordAnalyticsResponse, error)
	RecordDownloadCompleted(ctx context.Context, req *dto.DownloadCompletedRequest, metadata *ClientMetadata) (*dto.RecordAnalyticsResponse, error)
	Stats(ctx context.Context) (*dto.AnalyticsStatsResponse, error)
	Export(ctx context.Context) (filename string, data []byte, err error)
}

// AnalyticsFlowImpl implements AnalyticsFlow
type AnalyticsFlowImpl struct {
	eventRepo repository.AnalyticsEventRepository
	counters  services.CounterStore
	publisher services.EventPublisher
	log       *logger.Logger
}

func NewAnalyticsFlow(
	eventRepo repository.AnalyticsEventRepository,
	counters services.CounterStore,
	publisher services.EventPublisher,
	log *logger.Logger,
) AnalyticsFlow {
	if publisher == nil {
		publisher = services.NoopEventPublisher{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &AnalyticsFlowImpl{
		eventRepo: eventRepo,
		counters:  counters,
		publisher: publisher,
		log:       log,
	}
}

func (f *AnalyticsFlowImpl) Record(ctx context.Context, req *dto.RecordAnalyticsRequest, metadata *ClientMetadata) (*dto.RecordAnalyticsResponse, error) {
	if req == nil {
		return nil, newValidationError("request", "is required")
	}
	action := models.AnalyticsAction(strings.TrimSpace(req.Action))
	if !action.Valid() {
		return nil, NewBusinessErrorf("INVALID_ANALYTICS_ACTION", "unknown analytics action %q", ErrInvalidAnalyticsAction, req.Action)
	}

	event := models.AnalyticsEvent{
		Action:    action,
		Email:     normalizeEmailPtr(req.Email),
		UserAgent: utils.NilIfBlank(req.UserAgent),
		Referrer:  utils.NilIfBlank(req.Referrer),
	}
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		event.Timestamp = req.Timestamp.UTC()
	} else {
		event.Timestamp = utils.UTCNow()
	}
	if metadata != nil {
		if event.UserAgent == nil {
			event.UserAgent = utils.NilIfEmpty(metadata.UserAgent)
		}
		if event.Referrer == nil {
			event.Referrer = utils.NilIfEmpty(metadata.Referrer)
		}
		event.IPAddress = utils.NilIfEmpty(metadata.IPAddress)
	}
	if len(req.Metadata) > 0 {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, newValidationError("metadata", "must be a JSON object")
		}
		event.Metadata = datatypes.JSON(raw)
	}

	if err := f.eventRepo.Save(ctx, &event); err != nil {
		return nil, newBackendError("Failed to record analytics event", err)
	}

	if name := counterName(action, req.Metadata); name != "" {
		if _, err := f.counters.Increment(ctx, name); err != nil {
			f.log.Warn("Failed to increment analytics counter", "counter", name, "error", err)
		}
	}

	msg := services.AnalyticsMessage{
		ID:        event.ID,
		Action:    string(event.Action),
		Email:     event.Email,
		Timestamp: event.Timestamp,
		UserAgent: event.UserAgent,
		Referrer:  event.Referrer,
		Metadata:  req.Metadata,
	}
	if err := f.publisher.Publish(ctx, msg); err != nil {
		f.log.Warn("Failed to publish analytics event", "event_id", event.ID, "action", event.Action, "error", err)
	}

	return &dto.RecordAnalyticsResponse{
		ID:        event.ID,
		Action:    string(event.Action),
		Timestamp: event.Timestamp.Format(time.RFC3339),
	}, nil
}

func (f *AnalyticsFlowImpl) RecordDownloadCompleted(ctx context.Context, req *dto.DownloadCompletedRequest, metadata *ClientMetadata) (*dto.RecordAnalyticsResponse, error) {
	record := &dto.RecordAnalyticsRequest{Action: string(models.AnalyticsActionDownloadCompleted)}
	if req != nil {
		record.Email = req.Email
		if token := utils.NilIfBlank(req.Token); token != nil {
			record.Metadata = map[string]any{"token": *token}
		}
	}
	return f.Record(ctx, record, metadata)
}

// Stats counts events per action at request time
func (f *AnalyticsFlowImpl) Stats(ctx context.Context) (*dto.AnalyticsStatsResponse, error) {
	counts, err := f.eventRepo.CountByAction(ctx)
	if err != nil {
		return nil, newBackendError("Failed to count analytics events", err)
	}
	counters, err := f.counters.Snapshot(ctx)
	if err != nil {
		return nil, newBackendError("Failed to read analytics counters", err)
	}

	resp := &dto.AnalyticsStatsResponse{
		ActionCounts: make(map[string]int64, len(models.AllAnalyticsActions)),
		Counters:     counters,
	}
	for _, action := range models.AllAnalyticsActions {
		n := counts[action]
		resp.ActionCounts[string(action)] = n
		resp.TotalEvents += n
	}
	resp.PageViews = counts[models.AnalyticsActionPageView]
	resp.EmailSubmissions = counts[models.AnalyticsActionEmailSubmit]
	resp.DownloadsRequested = counts[models.AnalyticsActionDownloadRequested]
	resp.DownloadsCompleted = counts[models.AnalyticsActionDownloadCompleted]
	resp.TokensValidated = counts[models.AnalyticsActionTokenValidated]
	resp.LinkClicks = counts[models.AnalyticsActionLinkClick]
	resp.EmailConversionRate = utils.Percentage(resp.EmailSubmissions, resp.PageViews)
	resp.DownloadConversionRate = utils.Percentage(resp.DownloadsCompleted, resp.EmailSubmissions)
	if resp.Counters == nil {
		resp.Counters = map[string]int64{}
	}
	return resp, nil
}

// Export writes the stats and the full event log to an xlsx workbook
func (f *AnalyticsFlowImpl) Export(ctx context.Context) (string, []byte, error) {
	stats, err := f.Stats(ctx)
	if err != nil {
		return "", nil, err
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	const summary, events = "Summary", "Events"
	if err := xl.SetSheetName(xl.GetSheetName(0), summary); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	if _, err := xl.NewSheet(events); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	rows := [][]any{
		{"metric", "value"},
		{"total_events", stats.TotalEvents},
		{"page_views", stats.PageViews},
		{"email_submissions", stats.EmailSubmissions},
		{"downloads_requested", stats.DownloadsRequested},
		{"downloads_completed", stats.DownloadsCompleted},
		{"tokens_validated", stats.TokensValidated},
		{"link_clicks", stats.LinkClicks},
		{"email_conversion_rate", stats.EmailConversionRate},
		{"download_conversion_rate", stats.DownloadConversionRate},
	}
	for i, row := range rows {
		cellRef, _ := excelize.CoordinatesToCellName(1, i+1)
		_ = xl.SetSheetRow(summary, cellRef, &row)
	}

	header := []string{"id", "action", "email", "timestamp", "user_agent", "referrer", "ip", "metadata"}
	_ = xl.SetSheetRow(events, "A1", &header)

	line := 2
	for offset := 0; ; offset += analyticsExportPageSize {
		page, err := f.eventRepo.ByFilter(ctx, models.AnalyticsEventFilter{}, "id ASC", analyticsExportPageSize, offset)
		if err != nil {
			return "", nil, newBackendError("Failed to load analytics events", err)
		}
		for _, e := range page {
			record := []string{
				strconv.FormatUint(uint64(e.ID), 10),
				string(e.Action),
				derefString(e.Email),
				e.Timestamp.UTC().Format(time.RFC3339),
				derefString(e.UserAgent),
				derefString(e.Referrer),
				derefString(e.IPAddress),
				string(e.Metadata),
			}
			cellRef, _ := excelize.CoordinatesToCellName(1, line)
			_ = xl.SetSheetRow(events, cellRef, &record)
			line++
		}
		if len(page) < analyticsExportPageSize {
			break
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	return analyticsExportFilename, buf.Bytes(), nil
}

// counterName maps an action to its anonymous counter, or "" when it has none
func counterName(action models.AnalyticsAction, metadata map[string]any) string {
	switch action {
	case models.AnalyticsActionPageView:
		return services.CounterVisits
	case models.AnalyticsActionDownloadCompleted:
		return services.CounterDownloads
	case models.AnalyticsActionEmailSubmit:
		return services.CounterEmailSubmissions
	case models.AnalyticsActionLinkClick:
		return services.CounterLinkClickPrefix + linkDestination(metadata["destination"])
	default:
		return ""
	}
}

// linkDestination folds a client-supplied destination into a bounded counter suffix.
// URLs collapse to their host; anything else is cut to fit the counter name column.
func linkDestination(v any) string {
	if v == nil {
		return "unknown"
	}
	destination := strings.TrimSpace(fmt.Sprint(v))
	if u, err := url.Parse(destination); err == nil && u.Hostname() != "" {
		destination = strings.ToLower(u.Hostname())
	}
	if destination == "" {
		return "unknown"
	}
	limit := maxCounterNameLength - len(services.CounterLinkClickPrefix)
	if len(destination) > limit {
		destination = strings.ToValidUTF8(destination[:limit], "")
	}
	return destination
}

func normalizeEmailPtr(email *string) *string {
	if email == nil {
		return nil
	}
	e := strings.ToLower(strings.TrimSpace(*email))
	if e == "" {
		return nil
	}
	return &e
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
