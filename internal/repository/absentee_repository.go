package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/elim-assembly/attendance-api/internal/models"
	appErrors "github.com/elim-assembly/attendance-api/pkg/errors"
)

// AbsenteeRepository handles persistence for absentee follow-up records.
type AbsenteeRepository struct {
	db *sqlx.DB
}

// NewAbsenteeRepository constructs the repository.
func NewAbsenteeRepository(db *sqlx.DB) *AbsenteeRepository {
	return &AbsenteeRepository{db: db}
}

// Upsert creates or updates the single absentee record for the (person,
// occurrence) key. The conflict clause makes two operators marking the same
// person simultaneously converge on one row; the later reason wins.
func (r *AbsenteeRepository) Upsert(ctx context.Context, record *models.AbsenteeRecord) (*models.AbsenteeRecord, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	query := `INSERT INTO absentee_records (id, person_id, service_date, service_type, reason, follow_up_required, follow_up_completed, notification_sent, marked_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, false, false, $7, $8, $9)
ON CONFLICT (person_id, service_date, service_type)
DO UPDATE SET reason = EXCLUDED.reason, follow_up_required = EXCLUDED.follow_up_required, marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at
RETURNING id, person_id, service_date, service_type, reason, follow_up_required, follow_up_completed, notification_sent, marked_by, created_at, updated_at`
	var stored models.AbsenteeRecord
	if err := r.db.GetContext(ctx, &stored, query,
		record.ID, record.PersonID, record.ServiceDate, record.ServiceType,
		record.Reason, record.FollowUpRequired, record.MarkedBy,
		record.CreatedAt, record.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("upsert absentee: %w", err)
	}
	return &stored, nil
}

// FindByIDs loads absentee records with the contact data needed for
// notification dispatch. Unknown ids are absent from the result.
func (r *AbsenteeRepository) FindByIDs(ctx context.Context, ids []string) ([]models.AbsenteeDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT a.id, a.person_id, a.service_date, a.service_type, a.reason,
        a.follow_up_required, a.follow_up_completed, a.notification_sent, a.marked_by, a.created_at, a.updated_at,
        p.full_name AS person_name, p.phone
FROM absentee_records a
JOIN persons p ON p.id = a.person_id
WHERE a.id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build absentee query: %w", err)
	}
	query = r.db.Rebind(query)
	var rows []models.AbsenteeDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("find absentees: %w", err)
	}
	return rows, nil
}

// MarkNotificationSent flips the notification flag after a successful send.
func (r *AbsenteeRepository) MarkNotificationSent(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE absentee_records SET notification_sent = true, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("absentee record %s not found", id))
	}
	return nil
}

// CompleteFollowUp closes the follow-up loop for one record.
func (r *AbsenteeRepository) CompleteFollowUp(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE absentee_records SET follow_up_completed = true, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("complete follow-up: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("absentee record %s not found", id))
	}
	return nil
}

// List returns absentee records matching the filter, paginated.
func (r *AbsenteeRepository) List(ctx context.Context, filter models.AbsenteeFilter) ([]models.AbsenteeDetail, int, error) {
	base := `FROM absentee_records a
JOIN persons p ON p.id = a.person_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ServiceType != nil && filter.ServiceType.Valid() {
		where = append(where, fmt.Sprintf("a.service_type = $%d", len(args)+1))
		args = append(args, *filter.ServiceType)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("a.service_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("a.service_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.PendingOnly {
		where = append(where, "a.follow_up_required = true AND a.follow_up_completed = false")
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

	query := fmt.Sprintf(`SELECT a.id, a.person_id, a.service_date, a.service_type, a.reason,
        a.follow_up_required, a.follow_up_completed, a.notification_sent, a.marked_by, a.created_at, a.updated_at,
        p.full_name AS person_name, p.phone
        %s WHERE %s
        ORDER BY a.service_date DESC, p.full_name
        LIMIT %d OFFSET %d`, base, whereClause, size, offset)
	var rows []models.AbsenteeDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list absentees: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count absentees: %w", err)
	}
	return rows, total, nil
}
