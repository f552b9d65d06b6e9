package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/elim-assembly/attendance-api/internal/models"
	appErrors "github.com/elim-assembly/attendance-api/pkg/errors"
)

type personSnapshotReader interface {
	GetSnapshot(ctx context.Context, personID string) (*models.PersonSnapshot, error)
	SnapshotsByIDs(ctx context.Context, personIDs []string) (map[string]models.PersonSnapshot, error)
}

type attendanceLister interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error)
}

type statsInvalidator interface {
	InvalidateStats(ctx context.Context) error
}

type admissionMetrics interface {
	ObserveAdmission(channel models.CheckInChannel, outcome models.AdmissionOutcome)
}

// CheckInService coordinates single and bulk admissions through the
// deduplication guard.
type CheckInService struct {
	guard           *DedupGuard
	persons         personSnapshotReader
	attendance      attendanceLister
	cache           statsInvalidator
	metrics         admissionMetrics
	validator       *validator.Validate
	logger          *zap.Logger
	bulkConcurrency int
	maxBatchSize    int
}

// CheckInServiceConfig tunes the bulk path.
type CheckInServiceConfig struct {
	BulkConcurrency int
	MaxBatchSize    int
}

// NewCheckInService constructs the service. cache and metrics may be nil.
func NewCheckInService(guard *DedupGuard, persons personSnapshotReader, attendance attendanceLister, cache statsInvalidator, metrics admissionMetrics, cfg CheckInServiceConfig, validate *validator.Validate, logger *zap.Logger) *CheckInService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BulkConcurrency <= 0 {
		cfg.BulkConcurrency = 8
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 500
	}
	svc := &CheckInService{
		guard:           guard,
		persons:         persons,
		attendance:      attendance,
		cache:           cache,
		metrics:         metrics,
		validator:       validate,
		logger:          logger,
		bulkConcurrency: cfg.BulkConcurrency,
		maxBatchSize:    cfg.MaxBatchSize,
	}
	registerAttendanceValidations(svc.validator)
	return svc
}

func registerAttendanceValidations(v *validator.Validate) {
	_ = v.RegisterValidation("service_type", func(fl validator.FieldLevel) bool {
		return models.ServiceType(strings.ToLower(fl.Field().String())).Valid()
	})
	_ = v.RegisterValidation("checkin_channel", func(fl validator.FieldLevel) bool {
		return models.CheckInChannel(strings.ToLower(fl.Field().String())).Valid()
	})
}

// CheckInRequest admits one person and optionally selected dependants.
type CheckInRequest struct {
	PersonID     string   `json:"person_id" validate:"required"`
	DependantIDs []string `json:"dependant_ids"`
	ServiceDate  string   `json:"service_date" validate:"required"`
	ServiceType  string   `json:"service_type" validate:"required,service_type"`
	Channel      string   `json:"channel" validate:"required,checkin_channel"`
}

// BulkCheckInRequest admits a batch of persons for one occurrence.
type BulkCheckInRequest struct {
	PersonIDs   []string `json:"person_ids" validate:"required,min=1"`
	ServiceDate string   `json:"service_date" validate:"required"`
	ServiceType string   `json:"service_type" validate:"required,service_type"`
	Channel     string   `json:"channel" validate:"required,checkin_channel"`
}

func parseOccurrence(serviceDate, serviceType string) (models.ServiceOccurrence, error) {
	date, err := time.Parse("2006-01-02", serviceDate)
	if err != nil {
		return models.ServiceOccurrence{}, appErrors.Clone(appErrors.ErrValidation, "invalid service_date, expected YYYY-MM-DD")
	}
	return models.ServiceOccurrence{
		Date: date,
		Type: models.ServiceType(strings.ToLower(serviceType)),
	}, nil
}

func snapshotMetadata(snapshot models.PersonSnapshot, ref time.Time) models.AttendanceMetadata {
	return models.AttendanceMetadata{
		Gender:     snapshot.Gender,
		AgeBracket: snapshot.AgeBracket(ref),
		Groups:     []string(snapshot.Groups),
	}
}

// CheckIn admits the primary person and each selected dependant
// independently. A primary duplicate never blocks dependant admission, and
// a store failure on one entry is reported on that entry alone; already
// admitted entries are never rolled back.
func (s *CheckInService) CheckIn(ctx context.Context, req CheckInRequest, actor string) (*models.CheckInResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	occurrence, err := parseOccurrence(req.ServiceDate, req.ServiceType)
	if err != nil {
		return nil, err
	}
	channel := models.CheckInChannel(strings.ToLower(req.Channel))

	ids := append([]string{req.PersonID}, req.DependantIDs...)
	snapshots, err := s.persons.SnapshotsByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to resolve persons")
	}

	result := &models.CheckInResult{
		Primary: s.admitEntry(ctx, req.PersonID, snapshots, occurrence, channel, actor),
	}
	for _, depID := range req.DependantIDs {
		result.Dependants = append(result.Dependants, s.admitEntry(ctx, depID, snapshots, occurrence, channel, actor))
	}

	s.invalidateIfAdmitted(ctx, countAdmitted(result))
	return result, nil
}

func (s *CheckInService) admitEntry(ctx context.Context, personID string, snapshots map[string]models.PersonSnapshot, occurrence models.ServiceOccurrence, channel models.CheckInChannel, actor string) models.EntryResult {
	entry := models.EntryResult{PersonID: personID}
	snapshot, ok := snapshots[personID]
	if !ok {
		entry.Outcome = models.OutcomeError
		entry.Message = fmt.Sprintf("person %s not found", personID)
		s.observe(channel, models.OutcomeError)
		return entry
	}

	outcome, err := s.guard.Admit(ctx, personID, occurrence, channel, actor, snapshotMetadata(snapshot, occurrence.Date))
	entry.Outcome = outcome
	if err != nil {
		entry.Message = fmt.Sprintf("person %s: %v", personID, err)
		s.logger.Warn("admission failed",
			zap.String("person_id", personID),
			zap.String("occurrence", occurrence.Key()),
			zap.Error(err),
		)
	}
	s.observe(channel, outcome)
	return entry
}

// BulkCheckIn admits a batch with bounded concurrency. Per-person failures
// are classified into the result, never raised; the invariant
// successful+duplicates+errors == len(PersonIDs) holds for every return.
// Resubmitting the same batch is safe: prior admissions reclassify as
// duplicates.
func (s *CheckInService) BulkCheckIn(ctx context.Context, req BulkCheckInRequest, actor string) (*models.BulkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if len(req.PersonIDs) > s.maxBatchSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("batch exceeds maximum of %d persons", s.maxBatchSize))
	}
	occurrence, err := parseOccurrence(req.ServiceDate, req.ServiceType)
	if err != nil {
		return nil, err
	}
	channel := models.CheckInChannel(strings.ToLower(req.Channel))

	// A snapshot load failure here means the store is unreachable before
	// any entry was attempted; that is the one fatal path in bulk.
	snapshots, err := s.persons.SnapshotsByIDs(ctx, req.PersonIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to resolve persons")
	}

	var (
		mu     sync.Mutex
		result models.BulkResult
	)
	classify := func(outcome models.AdmissionOutcome, msg string) {
		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case models.OutcomeAdmitted:
			result.Successful++
		case models.OutcomeDuplicate:
			result.Duplicates++
		default:
			result.Errors++
			result.Messages = append(result.Messages, msg)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.bulkConcurrency)
	for _, personID := range req.PersonIDs {
		personID := personID
		g.Go(func() error {
			snapshot, ok := snapshots[personID]
			if !ok {
				classify(models.OutcomeError, fmt.Sprintf("person %s not found", personID))
				s.observe(channel, models.OutcomeError)
				return nil
			}
			outcome, admitErr := s.guard.Admit(gctx, personID, occurrence, channel, actor, snapshotMetadata(snapshot, occurrence.Date))
			msg := ""
			if admitErr != nil {
				msg = fmt.Sprintf("person %s: %v", personID, admitErr)
			}
			classify(outcome, msg)
			s.observe(channel, outcome)
			return nil
		})
	}
	// Workers never return errors; waiting only synchronises completion.
	_ = g.Wait()

	sort.Strings(result.Messages)
	s.invalidateIfAdmitted(ctx, result.Successful)
	s.logger.Info("bulk check-in",
		zap.String("occurrence", occurrence.Key()),
		zap.Int("successful", result.Successful),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("errors", result.Errors),
	)
	return &result, nil
}

// ListAttendance returns present records for operator review.
func (s *CheckInService) ListAttendance(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	filter.Page = page
	filter.PageSize = size
	rows, total, err := s.attendance.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *CheckInService) observe(channel models.CheckInChannel, outcome models.AdmissionOutcome) {
	if s.metrics != nil {
		s.metrics.ObserveAdmission(channel, outcome)
	}
}

func (s *CheckInService) invalidateIfAdmitted(ctx context.Context, admitted int) {
	if admitted == 0 || s.cache == nil {
		return
	}
	if err := s.cache.InvalidateStats(ctx); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

func countAdmitted(result *models.CheckInResult) int {
	admitted := 0
	if result.Primary.Outcome == models.OutcomeAdmitted {
		admitted++
	}
	for _, dep := range result.Dependants {
		if dep.Outcome == models.OutcomeAdmitted {
			admitted++
		}
	}
	return admitted
}
