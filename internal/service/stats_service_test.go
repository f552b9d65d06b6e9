package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elim-assembly/attendance-api/internal/models"
	appErrors "github.com/elim-assembly/attendance-api/pkg/errors"
)

type stubWindowReader struct {
	records []models.AttendanceRecord
	err     error
	calls   int
}

func (r *stubWindowReader) QueryWindow(_ context.Context, _ models.DateWindow, _ *models.ServiceType) ([]models.AttendanceRecord, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.records, nil
}

// memoryStatsCache round-trips values through JSON the way the real cache
// does.
type memoryStatsCache struct {
	entries map[string][]byte
}

func newMemoryStatsCache() *memoryStatsCache {
	return &memoryStatsCache{entries: make(map[string][]byte)}
}

func (c *memoryStatsCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryStatsCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func presentRecord(personID string, meta models.AttendanceMetadata) models.AttendanceRecord {
	return models.AttendanceRecord{
		ID:          "rec-" + personID,
		PersonID:    personID,
		ServiceDate: time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC),
		ServiceType: models.ServiceTypeSunday,
		Status:      models.AttendanceStatusPresent,
		Channel:     models.ChannelScanner,
		Metadata:    meta,
	}
}

func janWindow() models.DateWindow {
	return models.DateWindow{
		From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestAggregateBreakdowns(t *testing.T) {
	var records []models.AttendanceRecord
	add := func(id string, gender models.Gender, bracket models.AgeBracket, groups ...string) {
		records = append(records, presentRecord(id, models.AttendanceMetadata{
			Gender: gender, AgeBracket: bracket, Groups: groups,
		}))
	}
	add("p1", models.GenderMale, models.AgeBracketAdult, "choir")
	add("p2", models.GenderMale, models.AgeBracketAdult, "choir", "ushers")
	add("p3", models.GenderMale, models.AgeBracketAdult)
	add("p4", models.GenderMale, models.AgeBracketAdult, "youth")
	add("p5", models.GenderMale, models.AgeBracketAdult)
	add("p6", models.GenderMale, models.AgeBracketChild, "youth")
	add("p7", models.GenderFemale, models.AgeBracketAdult, "choir")
	add("p8", models.GenderFemale, models.AgeBracketAdult)
	add("p9", models.GenderFemale, models.AgeBracketAdult, "ushers")
	add("p10", models.GenderFemale, models.AgeBracketChild)

	reader := &stubWindowReader{records: records}
	svc := NewStatsService(reader, &stubSnapshotReader{}, nil, StatsServiceConfig{}, nil)

	stats, err := svc.Aggregate(context.Background(), janWindow(), nil)
	require.NoError(t, err)

	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 6, stats.ByGender[models.GenderMale])
	assert.Equal(t, 4, stats.ByGender[models.GenderFemale])
	assert.Equal(t, 8, stats.ByAgeBracket[models.AgeBracketAdult])
	assert.Equal(t, 2, stats.ByAgeBracket[models.AgeBracketChild])
	assert.Equal(t, 3, stats.ByGroup["choir"])
	assert.Equal(t, 2, stats.ByGroup["ushers"])
	assert.Equal(t, 2, stats.ByGroup["youth"])
}

func TestAggregateFallsBackToLivePersons(t *testing.T) {
	// One record predates snapshot capture; one belongs to a deleted person.
	records := []models.AttendanceRecord{
		presentRecord("p1", models.AttendanceMetadata{Gender: models.GenderMale, AgeBracket: models.AgeBracketAdult}),
		presentRecord("p2", models.AttendanceMetadata{}),
		presentRecord("gone", models.AttendanceMetadata{}),
	}
	birth := time.Date(2016, 5, 1, 0, 0, 0, 0, time.UTC)
	persons := &stubSnapshotReader{snapshots: map[string]models.PersonSnapshot{
		"p2": {ID: "p2", Gender: models.GenderFemale, BirthDate: &birth, Groups: pq.StringArray{"youth"}},
	}}

	reader := &stubWindowReader{records: records}
	svc := NewStatsService(reader, persons, nil, StatsServiceConfig{}, nil)

	stats, err := svc.Aggregate(context.Background(), janWindow(), nil)
	require.NoError(t, err)

	// The deleted person still counts toward the total, nothing else.
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ByGender[models.GenderMale])
	assert.Equal(t, 1, stats.ByGender[models.GenderFemale])
	assert.Equal(t, 1, stats.ByAgeBracket[models.AgeBracketAdult])
	assert.Equal(t, 1, stats.ByAgeBracket[models.AgeBracketChild])
	assert.Equal(t, 1, stats.ByGroup["youth"])
}

func TestAggregateUsesCache(t *testing.T) {
	records := []models.AttendanceRecord{
		presentRecord("p1", models.AttendanceMetadata{Gender: models.GenderMale, AgeBracket: models.AgeBracketAdult}),
	}
	reader := &stubWindowReader{records: records}
	cache := newMemoryStatsCache()
	svc := NewStatsService(reader, &stubSnapshotReader{}, cache, StatsServiceConfig{CacheEnabled: true}, nil)

	first, err := svc.Aggregate(context.Background(), janWindow(), nil)
	require.NoError(t, err)
	second, err := svc.Aggregate(context.Background(), janWindow(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, reader.calls)
	assert.Equal(t, first.Total, second.Total)
	assert.Equal(t, first.ByGender, second.ByGender)
}

func TestAggregateWindowValidation(t *testing.T) {
	svc := NewStatsService(&stubWindowReader{}, &stubSnapshotReader{}, nil, StatsServiceConfig{}, nil)

	_, err := svc.Aggregate(context.Background(), models.DateWindow{}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	inverted := models.DateWindow{
		From: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	_, err = svc.Aggregate(context.Background(), inverted, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	badType := models.ServiceType("picnic")
	_, err = svc.Aggregate(context.Background(), janWindow(), &badType)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAggregateStoreFailureIsFatal(t *testing.T) {
	reader := &stubWindowReader{err: errors.New("connection reset")}
	svc := NewStatsService(reader, &stubSnapshotReader{}, nil, StatsServiceConfig{}, nil)

	_, err := svc.Aggregate(context.Background(), janWindow(), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestExportPDF(t *testing.T) {
	records := []models.AttendanceRecord{
		presentRecord("p1", models.AttendanceMetadata{Gender: models.GenderMale, AgeBracket: models.AgeBracketAdult, Groups: []string{"choir"}}),
	}
	svc := NewStatsService(&stubWindowReader{records: records}, &stubSnapshotReader{}, nil, StatsServiceConfig{}, nil)

	data, err := svc.ExportPDF(context.Background(), janWindow(), nil)
	require.NoError(t, err)
	assert.True(t, len(data) > 0)
	assert.Equal(t, "%PDF", string(data[:4]))
}
