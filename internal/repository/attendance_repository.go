package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/elim-assembly/attendance-api/internal/models"
)

// AttendanceRepository is the durable point of truth for attendance rows.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ConditionalInsert writes the record unless a present row already exists
// for its (person, service date, service type) key. The check-then-act is a
// single statement, so concurrent callers across channels race safely at
// the database: exactly one insert wins, the rest observe inserted=false.
func (r *AttendanceRepository) ConditionalInsert(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CheckedInAt.IsZero() {
		record.CheckedInAt = time.Now().UTC()
	}
	if record.Status == "" {
		record.Status = models.AttendanceStatusPresent
	}
	query := `INSERT INTO attendance_records (id, person_id, service_date, service_type, status, channel, recorded_by, metadata, checked_in_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (person_id, service_date, service_type) DO NOTHING
RETURNING id`
	var insertedID string
	err := r.db.QueryRowxContext(ctx, query,
		record.ID, record.PersonID, record.ServiceDate, record.ServiceType,
		record.Status, record.Channel, record.RecordedBy, record.Metadata, record.CheckedInAt,
	).Scan(&insertedID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("conditional insert attendance: %w", err)
	}
	return true, nil
}

// List returns attendance rows with person names, paginated.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	base := `FROM attendance_records ar
JOIN persons p ON p.id = ar.person_id`
	where := []string{"ar.status = 'present'"}
	args := []interface{}{}
	if filter.PersonID != "" {
		where = append(where, fmt.Sprintf("ar.person_id = $%d", len(args)+1))
		args = append(args, filter.PersonID)
	}
	if filter.ServiceType != nil && filter.ServiceType.Valid() {
		where = append(where, fmt.Sprintf("ar.service_type = $%d", len(args)+1))
		args = append(args, *filter.ServiceType)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("ar.service_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("ar.service_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT ar.id, ar.person_id, ar.service_date, ar.service_type, ar.status, ar.channel, ar.recorded_by, ar.metadata, ar.checked_in_at,
        p.full_name AS person_name
        %s WHERE %s
        ORDER BY ar.checked_in_at DESC
        LIMIT %d OFFSET %d`, base, whereClause, size, offset)

	var rows []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}

// QueryWindow streams present records intersecting the window for the
// aggregation fold. Errors here abort the whole aggregation request.
func (r *AttendanceRepository) QueryWindow(ctx context.Context, window models.DateWindow, serviceType *models.ServiceType) ([]models.AttendanceRecord, error) {
	where := []string{"status = 'present'", "service_date >= $1", "service_date <= $2"}
	args := []interface{}{window.From, window.To}
	if serviceType != nil && serviceType.Valid() {
		where = append(where, fmt.Sprintf("service_type = $%d", len(args)+1))
		args = append(args, *serviceType)
	}
	query := fmt.Sprintf(`SELECT id, person_id, service_date, service_type, status, channel, recorded_by, metadata, checked_in_at
FROM attendance_records
WHERE %s
ORDER BY service_date`, strings.Join(where, " AND "))

	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query attendance window: %w", err)
	}
	return rows, nil
}
