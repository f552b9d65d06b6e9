package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elim-assembly/attendance-api/internal/models"
	appErrors "github.com/elim-assembly/attendance-api/pkg/errors"
)

// memoryAttendanceStore reproduces the store's conditional-insert semantics
// in memory so guard behaviour can be exercised without a database.
type memoryAttendanceStore struct {
	mu      sync.Mutex
	records map[string]models.AttendanceRecord
	failFor map[string]error
}

func newMemoryAttendanceStore() *memoryAttendanceStore {
	return &memoryAttendanceStore{
		records: make(map[string]models.AttendanceRecord),
		failFor: make(map[string]error),
	}
}

func (s *memoryAttendanceStore) ConditionalInsert(_ context.Context, record *models.AttendanceRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[record.PersonID]; ok {
		return false, err
	}
	key := record.PersonID + "|" + record.Occurrence().Key()
	if _, exists := s.records[key]; exists {
		return false, nil
	}
	record.ID = fmt.Sprintf("rec-%d", len(s.records)+1)
	s.records[key] = *record
	return true, nil
}

func (s *memoryAttendanceStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type stubSnapshotReader struct {
	snapshots map[string]models.PersonSnapshot
	err       error
}

func (r *stubSnapshotReader) GetSnapshot(_ context.Context, personID string) (*models.PersonSnapshot, error) {
	if r.err != nil {
		return nil, r.err
	}
	snapshot, ok := r.snapshots[personID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "person not found")
	}
	return &snapshot, nil
}

func (r *stubSnapshotReader) SnapshotsByIDs(_ context.Context, personIDs []string) (map[string]models.PersonSnapshot, error) {
	if r.err != nil {
		return nil, r.err
	}
	result := make(map[string]models.PersonSnapshot)
	for _, id := range personIDs {
		if snapshot, ok := r.snapshots[id]; ok {
			result[id] = snapshot
		}
	}
	return result, nil
}

type stubInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (s *stubInvalidator) InvalidateStats(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil
}

func snapshotFixture(id string, gender models.Gender, birthYear int) models.PersonSnapshot {
	birth := time.Date(birthYear, 6, 1, 0, 0, 0, 0, time.UTC)
	return models.PersonSnapshot{
		ID:        id,
		FullName:  "Person " + id,
		Gender:    gender,
		BirthDate: &birth,
		Groups:    pq.StringArray{"choir"},
	}
}

func newTestCheckInService(store *memoryAttendanceStore, persons personSnapshotReader, cache statsInvalidator, cfg CheckInServiceConfig) *CheckInService {
	guard := NewDedupGuard(store, nil)
	return NewCheckInService(guard, persons, nil, cache, nil, cfg, nil, nil)
}

func TestCheckInAdmitsPrimaryAndDependants(t *testing.T) {
	store := newMemoryAttendanceStore()
	persons := &stubSnapshotReader{snapshots: map[string]models.PersonSnapshot{
		"member-1": snapshotFixture("member-1", models.GenderFemale, 1985),
		"dep-1":    snapshotFixture("dep-1", models.GenderMale, 2015),
		"dep-2":    snapshotFixture("dep-2", models.GenderFemale, 2018),
	}}
	cache := &stubInvalidator{}
	svc := newTestCheckInService(store, persons, cache, CheckInServiceConfig{})

	result, err := svc.CheckIn(context.Background(), CheckInRequest{
		PersonID:     "member-1",
		DependantIDs: []string{"dep-1", "dep-2"},
		ServiceDate:  "2024-01-07",
		ServiceType:  "sunday_service",
		Channel:      "scanner",
	}, "operator")
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeAdmitted, result.Primary.Outcome)
	require.Len(t, result.Dependants, 2)
	for _, dep := range result.Dependants {
		assert.Equal(t, models.OutcomeAdmitted, dep.Outcome)
	}
	assert.Equal(t, 3, store.count())
	assert.Equal(t, 1, cache.calls)
}

func TestCheckInSecondScanIsDuplicate(t *testing.T) {
	store := newMemoryAttendanceStore()
	persons := &stubSnapshotReader{snapshots: map[string]models.PersonSnapshot{
		"member-1": snapshotFixture("member-1", models.GenderMale, 1990),
	}}
	svc := newTestCheckInService(store, persons, nil, CheckInServiceConfig{})

	req := CheckInRequest{
		PersonID:    "member-1",
		ServiceDate: "2024-01-07",
		ServiceType: "sunday_service",
		Channel:     "scanner",
	}
	first, err := svc.CheckIn(context.Background(), req, "operator")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAdmitted, first.Primary.Outcome)

	// Same person, same occurrence, different channel: still one record.
	req.Channel = "kiosk"
	second, err := svc.CheckIn(context.Background(), req, "operator")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDuplicate, second.Primary.Outcome)
	assert.Equal(t, 1, store.count())
}

func TestCheckInDuplicatePrimaryDoesNotBlockDependants(t *testing.T) {
	store := newMemoryAttendanceStore()
	persons := &stubSnapshotReader{snapshots: map[string]models.PersonSnapshot{
		"member-1": snapshotFixture("member-1", models.GenderMale, 1990),
		"dep-1":    snapshotFixture("dep-1", models.GenderFemale, 2016),
	}}
	svc := newTestCheckInService(store, persons, nil, CheckInServiceConfig{})

	_, err := svc.CheckIn(context.Background(), CheckInRequest{
		PersonID:    "member-1",
		ServiceDate: "2024-01-07",
		ServiceType: "sunday_service",
		Channel:     "scanner",
	}, "operator")
	require.NoError(t, err)

	result, err := svc.CheckIn(context.Background(), CheckInRequest{
		PersonID:     "member-1",
		DependantIDs: []string{"dep-1"},
		ServiceDate:  "2024-01-07",
		ServiceType:  "sunday_service",
		Channel:      "scanner",
	}, "operator")
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeDuplicate, result.Primary.Outcome)
	require.Len(t, result.Dependants, 1)
	assert.Equal(t, models.OutcomeAdmitted, result.Dependants[0].Outcome)
	assert.Equal(t, 2, store.count())
}

func TestCheckInUnknownDependant(t *testing.T) {
	store := newMemoryAttendanceStore()
	persons := &stubSnapshotReader{snapshots: map[string]models.PersonSnapshot{
		"member-1": snapshotFixture("member-1", models.GenderMale, 1990),
	}}
	svc := newTestCheckInService(store, persons, nil, CheckInServiceConfig{})

	result, err := svc.CheckIn(context.Background(), CheckInRequest{
		PersonID:     "member-1",
		DependantIDs: []string{"ghost"},
		ServiceDate:  "2024-01-07",
		ServiceType:  "sunday_service",
		Channel:      "manual",
	}, "operator")
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeAdmitted, result.Primary.Outcome)
	require.Len(t, result.Dependants, 1)
	assert.Equal(t, models.OutcomeError, result.Dependants[0].Outcome)
	assert.Contains(t, result.Dependants[0].Message, "ghost")
	assert.Equal(t, 1, store.count())
}

func TestCheckInInvalidServiceType(t *testing.T) {
	svc := newTestCheckInService(newMemoryAttendanceStore(), &stubSnapshotReader{}, nil, CheckInServiceConfig{})

	_, err := svc.CheckIn(context.Background(), CheckInRequest{
		PersonID:    "member-1",
		ServiceDate: "2024-01-07",
		ServiceType: "friday_vigil",
		Channel:     "scanner",
	}, "operator")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBulkCheckInClassification(t *testing.T) {
	store := newMemoryAttendanceStore()
	persons := &stubSnapshotReader{snapshots: map[string]models.PersonSnapshot{
		"p1": snapshotFixture("p1", models.GenderMale, 1980),
		"p2": snapshotFixture("p2", models.GenderFemale, 1992),
		"p4": snapshotFixture("p4", models.GenderMale, 2010),
		"p5": snapshotFixture("p5", models.GenderFemale, 1975),
	}}
	svc := newTestCheckInService(store, persons, nil, CheckInServiceConfig{BulkConcurrency: 2})

	req := BulkCheckInRequest{
		PersonIDs:   []string{"p1", "p2", "p3", "p4", "p5"},
		ServiceDate: "2024-01-07",
		ServiceType: "sunday_service",
		Channel:     "bulk",
	}
	result, err := svc.BulkCheckIn(context.Background(), req, "operator")
	require.NoError(t, err)

	assert.Equal(t, 4, result.Successful)
	assert.Equal(t, 0, result.Duplicates)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, len(req.PersonIDs), result.Successful+result.Duplicates+result.Errors)
	require.Len(t, result.Messages, 1)
	assert.Contains(t, result.Messages[0], "p3")

	// Resubmitting the same batch reclassifies prior admissions.
	again, err := svc.BulkCheckIn(context.Background(), req, "operator")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Successful)
	assert.Equal(t, 4, again.Duplicates)
	assert.Equal(t, 1, again.Errors)
	assert.Equal(t, len(req.PersonIDs), again.Successful+again.Duplicates+again.Errors)
	assert.Equal(t, 4, store.count())
}

func TestBulkCheckInStoreFailureIsPerEntry(t *testing.T) {
	store := newMemoryAttendanceStore()
	store.failFor["p2"] = errors.New("connection reset")
	persons := &stubSnapshotReader{snapshots: map[string]models.PersonSnapshot{
		"p1": snapshotFixture("p1", models.GenderMale, 1980),
		"p2": snapshotFixture("p2", models.GenderFemale, 1992),
		"p3": snapshotFixture("p3", models.GenderMale, 2005),
	}}
	svc := newTestCheckInService(store, persons, nil, CheckInServiceConfig{})

	result, err := svc.BulkCheckIn(context.Background(), BulkCheckInRequest{
		PersonIDs:   []string{"p1", "p2", "p3"},
		ServiceDate: "2024-01-07",
		ServiceType: "sunday_service",
		Channel:     "bulk",
	}, "operator")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 0, result.Duplicates)
	assert.Equal(t, 1, result.Errors)
	require.Len(t, result.Messages, 1)
	assert.Contains(t, result.Messages[0], "p2")
}

func TestBulkCheckInSnapshotLoadFailureIsFatal(t *testing.T) {
	persons := &stubSnapshotReader{err: errors.New("store down")}
	svc := newTestCheckInService(newMemoryAttendanceStore(), persons, nil, CheckInServiceConfig{})

	_, err := svc.BulkCheckIn(context.Background(), BulkCheckInRequest{
		PersonIDs:   []string{"p1"},
		ServiceDate: "2024-01-07",
		ServiceType: "sunday_service",
		Channel:     "bulk",
	}, "operator")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStoreUnavailable.Code, appErrors.FromError(err).Code)
}

func TestBulkCheckInBatchTooLarge(t *testing.T) {
	svc := newTestCheckInService(newMemoryAttendanceStore(), &stubSnapshotReader{}, nil, CheckInServiceConfig{MaxBatchSize: 2})

	_, err := svc.BulkCheckIn(context.Background(), BulkCheckInRequest{
		PersonIDs:   []string{"p1", "p2", "p3"},
		ServiceDate: "2024-01-07",
		ServiceType: "sunday_service",
		Channel:     "bulk",
	}, "operator")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
