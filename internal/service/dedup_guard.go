package service

import (
	"context"
	"time"

	"github.com/elim-assembly/attendance-api/internal/models"
)

type attendanceInserter interface {
	ConditionalInsert(ctx context.Context, record *models.AttendanceRecord) (bool, error)
}

// DedupGuard admits each person at most once per service occurrence. The
// admit/duplicate decision rides on the store's conditional insert, so the
// guard itself holds no state and any number of instances may run against
// the same store concurrently.
type DedupGuard struct {
	store attendanceInserter
	now   func() time.Time
}

// NewDedupGuard constructs the guard. now may be nil and defaults to
// time.Now.
func NewDedupGuard(store attendanceInserter, now func() time.Time) *DedupGuard {
	if now == nil {
		now = time.Now
	}
	return &DedupGuard{store: store, now: now}
}

// Admit attempts to record the person as present at the occurrence. The
// returned outcome is OutcomeAdmitted when this call created the record and
// OutcomeDuplicate when a present record already existed. Store failures
// return OutcomeError alongside the error.
func (g *DedupGuard) Admit(ctx context.Context, personID string, occurrence models.ServiceOccurrence, channel models.CheckInChannel, actor string, metadata models.AttendanceMetadata) (models.AdmissionOutcome, error) {
	record := &models.AttendanceRecord{
		PersonID:    personID,
		ServiceDate: occurrence.Date,
		ServiceType: occurrence.Type,
		Status:      models.AttendanceStatusPresent,
		Channel:     channel,
		RecordedBy:  actor,
		Metadata:    metadata,
		CheckedInAt: g.now().UTC(),
	}
	inserted, err := g.store.ConditionalInsert(ctx, record)
	if err != nil {
		return models.OutcomeError, err
	}
	if !inserted {
		return models.OutcomeDuplicate, nil
	}
	return models.OutcomeAdmitted, nil
}
