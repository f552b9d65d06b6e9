package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elim-assembly/attendance-api/internal/models"
	appErrors "github.com/elim-assembly/attendance-api/pkg/errors"
)

func newAbsenteeMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func absenteeColumns() []string {
	return []string{"id", "person_id", "service_date", "service_type", "reason",
		"follow_up_required", "follow_up_completed", "notification_sent", "marked_by", "created_at", "updated_at"}
}

func TestAbsenteeUpsert(t *testing.T) {
	db, mock, cleanup := newAbsenteeMock(t)
	defer cleanup()
	repo := NewAbsenteeRepository(db)

	reason := "travelled"
	now := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO absentee_records").
		WithArgs(sqlmock.AnyArg(), "person-1", sqlmock.AnyArg(), models.ServiceTypeSunday,
			&reason, true, "operator", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(absenteeColumns()).
			AddRow("abs-1", "person-1", now, "sunday_service", reason, true, false, false, "operator", now, now))

	record := &models.AbsenteeRecord{
		PersonID:         "person-1",
		ServiceDate:      time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC),
		ServiceType:      models.ServiceTypeSunday,
		Reason:           &reason,
		FollowUpRequired: true,
		MarkedBy:         "operator",
	}
	stored, err := repo.Upsert(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, "abs-1", stored.ID)
	assert.False(t, stored.FollowUpCompleted)
	assert.False(t, stored.NotificationSent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkNotificationSent(t *testing.T) {
	db, mock, cleanup := newAbsenteeMock(t)
	defer cleanup()
	repo := NewAbsenteeRepository(db)

	mock.ExpectExec("UPDATE absentee_records SET notification_sent").
		WithArgs("abs-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkNotificationSent(context.Background(), "abs-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkNotificationSentMissing(t *testing.T) {
	db, mock, cleanup := newAbsenteeMock(t)
	defer cleanup()
	repo := NewAbsenteeRepository(db)

	mock.ExpectExec("UPDATE absentee_records SET notification_sent").
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkNotificationSent(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCompleteFollowUp(t *testing.T) {
	db, mock, cleanup := newAbsenteeMock(t)
	defer cleanup()
	repo := NewAbsenteeRepository(db)

	mock.ExpectExec("UPDATE absentee_records SET follow_up_completed").
		WithArgs("abs-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CompleteFollowUp(context.Background(), "abs-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAbsenteeFindByIDs(t *testing.T) {
	db, mock, cleanup := newAbsenteeMock(t)
	defer cleanup()
	repo := NewAbsenteeRepository(db)

	phone := "0551234567"
	now := time.Now().UTC()
	columns := append(absenteeColumns(), "person_name", "phone")
	mock.ExpectQuery("SELECT a.id, a.person_id").
		WithArgs("abs-1", "abs-2").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("abs-1", "person-1", now, "sunday_service", nil, true, false, false, "operator", now, now, "Kofi Boateng", phone))

	rows, err := repo.FindByIDs(context.Background(), []string{"abs-1", "abs-2"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Kofi Boateng", rows[0].PersonName)
	require.NotNil(t, rows[0].Phone)
	assert.Equal(t, phone, *rows[0].Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}
