package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/elim-assembly/attendance-api/internal/models"
	"github.com/elim-assembly/attendance-api/internal/repository"
	appErrors "github.com/elim-assembly/attendance-api/pkg/errors"
	"github.com/elim-assembly/attendance-api/pkg/export"
)

type attendanceWindowReader interface {
	QueryWindow(ctx context.Context, window models.DateWindow, serviceType *models.ServiceType) ([]models.AttendanceRecord, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// StatsService folds present attendance records into demographic and group
// breakdowns over a caller-supplied window.
type StatsService struct {
	attendance attendanceWindowReader
	persons    personSnapshotReader
	cache      statsCache
	exporter   *export.PDFExporter
	cacheTTL   time.Duration
	useCache   bool
	logger     *zap.Logger
	now        func() time.Time
}

// StatsServiceConfig tunes aggregation caching.
type StatsServiceConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// NewStatsService constructs the service. cache may be nil.
func NewStatsService(attendance attendanceWindowReader, persons personSnapshotReader, cache statsCache, cfg StatsServiceConfig, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &StatsService{
		attendance: attendance,
		persons:    persons,
		cache:      cache,
		exporter:   export.NewPDFExporter(),
		cacheTTL:   cfg.CacheTTL,
		useCache:   cfg.CacheEnabled && cache != nil,
		logger:     logger,
		now:        time.Now,
	}
}

// Aggregate computes totals by gender, age bracket and group for present
// records in the window. Demographics come from each record's snapshot;
// records written before snapshots existed fall back to a live person
// lookup. A store failure is fatal for the request; partial stats are never
// returned.
func (s *StatsService) Aggregate(ctx context.Context, window models.DateWindow, serviceType *models.ServiceType) (*models.AggregatedStats, error) {
	if window.From.IsZero() || window.To.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date window requires both from and to")
	}
	if window.To.Before(window.From) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date window end precedes start")
	}
	if serviceType != nil && !serviceType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown service type")
	}

	key := repository.StatsCacheKey(window, serviceType)
	if s.useCache {
		var cached models.AggregatedStats
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	records, err := s.attendance.QueryWindow(ctx, window, serviceType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query attendance window")
	}

	stats := models.NewAggregatedStats(window, serviceType)
	var missing []string
	for _, rec := range records {
		stats.Total++
		if rec.Metadata.Empty() {
			missing = append(missing, rec.PersonID)
			continue
		}
		foldMetadata(stats, rec.Metadata)
	}

	if len(missing) > 0 {
		snapshots, err := s.persons.SnapshotsByIDs(ctx, missing)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve persons for aggregation")
		}
		ref := s.now()
		for _, personID := range missing {
			snapshot, ok := snapshots[personID]
			if !ok {
				// Person deleted since check-in; counted in the total only.
				continue
			}
			foldMetadata(stats, models.AttendanceMetadata{
				Gender:     snapshot.Gender,
				AgeBracket: snapshot.AgeBracket(ref),
				Groups:     []string(snapshot.Groups),
			})
		}
	}

	if s.useCache {
		if err := s.cache.Set(ctx, key, stats, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache aggregated stats", zap.Error(err))
		}
	}
	return stats, nil
}

func foldMetadata(stats *models.AggregatedStats, meta models.AttendanceMetadata) {
	if meta.Gender.Valid() {
		stats.ByGender[meta.Gender]++
	}
	if meta.AgeBracket == models.AgeBracketAdult || meta.AgeBracket == models.AgeBracketChild {
		stats.ByAgeBracket[meta.AgeBracket]++
	}
	for _, group := range meta.Groups {
		if group != "" {
			stats.ByGroup[group]++
		}
	}
}

// ExportPDF aggregates the window and renders the result as a tabular PDF
// for download.
func (s *StatsService) ExportPDF(ctx context.Context, window models.DateWindow, serviceType *models.ServiceType) ([]byte, error) {
	stats, err := s.Aggregate(ctx, window, serviceType)
	if err != nil {
		return nil, err
	}
	title := "Attendance summary " + window.From.Format("2006-01-02") + " to " + window.To.Format("2006-01-02")
	data, err := s.exporter.Render(export.StatsDataset(stats), title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render stats report")
	}
	return data, nil
}
