package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/elim-assembly/attendance-api/internal/models"
	appErrors "github.com/elim-assembly/attendance-api/pkg/errors"
	"github.com/elim-assembly/attendance-api/pkg/notify"
)

type absenteeRepository interface {
	Upsert(ctx context.Context, record *models.AbsenteeRecord) (*models.AbsenteeRecord, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.AbsenteeDetail, error)
	MarkNotificationSent(ctx context.Context, id string) error
	CompleteFollowUp(ctx context.Context, id string) error
	List(ctx context.Context, filter models.AbsenteeFilter) ([]models.AbsenteeDetail, int, error)
}

type notificationMetrics interface {
	ObserveNotification(success bool)
}

// AbsenteeService drives the absentee follow-up workflow: marking people
// absent, dispatching notifications and closing the follow-up loop.
type AbsenteeService struct {
	repo      absenteeRepository
	sender    notify.Sender
	metrics   notificationMetrics
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAbsenteeService constructs the service. metrics may be nil.
func NewAbsenteeService(repo absenteeRepository, sender notify.Sender, metrics notificationMetrics, validate *validator.Validate, logger *zap.Logger) *AbsenteeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AbsenteeService{repo: repo, sender: sender, metrics: metrics, validator: validate, logger: logger}
	registerAttendanceValidations(svc.validator)
	return svc
}

// MarkAbsentRequest records a person as absent for an occurrence.
type MarkAbsentRequest struct {
	PersonID    string  `json:"person_id" validate:"required"`
	ServiceDate string  `json:"service_date" validate:"required"`
	ServiceType string  `json:"service_type" validate:"required,service_type"`
	Reason      *string `json:"reason"`
}

// DispatchRequest selects absentee records for notification and carries the
// pre-rendered message body. Template rendering happens upstream.
type DispatchRequest struct {
	AbsenteeIDs []string `json:"absentee_ids" validate:"required,min=1"`
	Message     string   `json:"message" validate:"required"`
}

// MarkAbsent upserts the single absentee record for the (person,
// occurrence) key. Calling it again with the same key updates the reason
// and timestamp instead of creating a duplicate row.
func (s *AbsenteeService) MarkAbsent(ctx context.Context, req MarkAbsentRequest, actor string) (*models.AbsenteeRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	occurrence, err := parseOccurrence(req.ServiceDate, req.ServiceType)
	if err != nil {
		return nil, err
	}
	record := &models.AbsenteeRecord{
		PersonID:         req.PersonID,
		ServiceDate:      occurrence.Date,
		ServiceType:      occurrence.Type,
		Reason:           req.Reason,
		FollowUpRequired: true,
		MarkedBy:         actor,
	}
	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark absent")
	}
	return stored, nil
}

// DispatchNotifications sends one notification per selected record. Each
// failure is tallied, never raised; a record already marked sent stays
// eligible when re-selected, so operators can re-send rather than lose
// messages silently, at the cost of a possible duplicate text.
func (s *AbsenteeService) DispatchNotifications(ctx context.Context, req DispatchRequest) (*models.DispatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	records, err := s.repo.FindByIDs(ctx, req.AbsenteeIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to load absentee records")
	}
	found := make(map[string]models.AbsenteeDetail, len(records))
	for _, rec := range records {
		found[rec.ID] = rec
	}

	result := &models.DispatchResult{}
	for _, id := range req.AbsenteeIDs {
		rec, ok := found[id]
		if !ok {
			s.fail(result, fmt.Sprintf("absentee record %s not found", id))
			continue
		}
		if rec.Phone == nil || strings.TrimSpace(*rec.Phone) == "" {
			s.fail(result, fmt.Sprintf("%s has no contact number", rec.PersonName))
			continue
		}
		msg := notify.Message{Recipient: *rec.Phone, Body: req.Message}
		if err := s.sender.Send(ctx, msg); err != nil {
			s.fail(result, fmt.Sprintf("%s: %v", rec.PersonName, err))
			continue
		}
		if err := s.repo.MarkNotificationSent(ctx, rec.ID); err != nil {
			// The message went out; log the flag failure but count the send.
			s.logger.Warn("failed to mark notification sent",
				zap.String("absentee_id", rec.ID), zap.Error(err))
		}
		result.Sent++
		if s.metrics != nil {
			s.metrics.ObserveNotification(true)
		}
	}
	return result, nil
}

func (s *AbsenteeService) fail(result *models.DispatchResult, msg string) {
	result.Failed++
	result.Errors = append(result.Errors, msg)
	if s.metrics != nil {
		s.metrics.ObserveNotification(false)
	}
}

// CompleteFollowUp closes the loop for one record. No other side effects.
func (s *AbsenteeService) CompleteFollowUp(ctx context.Context, absenteeID string) error {
	if absenteeID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "absentee id is required")
	}
	if err := s.repo.CompleteFollowUp(ctx, absenteeID); err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrNotFound.Code {
			return err
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete follow-up")
	}
	return nil
}

// List returns absentee records matching the filter, paginated.
func (s *AbsenteeService) List(ctx context.Context, filter models.AbsenteeFilter) ([]models.AbsenteeDetail, *models.Pagination, error) {
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
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list absentees")
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
