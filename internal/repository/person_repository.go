package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/elim-assembly/attendance-api/internal/models"
	appErrors "github.com/elim-assembly/attendance-api/pkg/errors"
)

const pqUniqueViolation = "23505"

// PersonRepository handles persistence for members and dependants. It is
// the only place that sees raw person rows; everything above consumes the
// normalised PersonSnapshot shape.
type PersonRepository struct {
	db *sqlx.DB
}

// NewPersonRepository constructs the repository.
func NewPersonRepository(db *sqlx.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

const snapshotColumns = `id, full_name, gender, birth_date, phone, groups`

// GetSnapshot loads one person's demographic snapshot.
func (r *PersonRepository) GetSnapshot(ctx context.Context, personID string) (*models.PersonSnapshot, error) {
	query := fmt.Sprintf("SELECT %s FROM persons WHERE id = $1", snapshotColumns)
	var snapshot models.PersonSnapshot
	if err := r.db.GetContext(ctx, &snapshot, query, personID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("person %s not found", personID))
		}
		return nil, fmt.Errorf("get person snapshot: %w", err)
	}
	return &snapshot, nil
}

// SnapshotsByIDs loads snapshots for a set of people in one round-trip.
// Unknown ids are simply absent from the result map.
func (r *PersonRepository) SnapshotsByIDs(ctx context.Context, personIDs []string) (map[string]models.PersonSnapshot, error) {
	if len(personIDs) == 0 {
		return map[string]models.PersonSnapshot{}, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM persons WHERE id IN (?)", snapshotColumns), personIDs)
	if err != nil {
		return nil, fmt.Errorf("build snapshot query: %w", err)
	}
	query = r.db.Rebind(query)
	var rows []models.PersonSnapshot
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("get person snapshots: %w", err)
	}
	result := make(map[string]models.PersonSnapshot, len(rows))
	for _, row := range rows {
		result[row.ID] = row
	}
	return result, nil
}

// FindByMembershipID resolves a member by the canonical identifier form.
func (r *PersonRepository) FindByMembershipID(ctx context.Context, canonical string) (*models.Person, error) {
	query := `SELECT id, kind, member_id, membership_id, full_name, gender, birth_date, phone, groups, created_at, updated_at
FROM persons WHERE membership_id = $1`
	var person models.Person
	if err := r.db.GetContext(ctx, &person, query, canonical); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no member holds that identifier")
		}
		return nil, fmt.Errorf("find member by identifier: %w", err)
	}
	return &person, nil
}

// Create inserts a member or dependant row. A unique-constraint hit on the
// membership identifier column surfaces as ErrIdentifierTaken so callers
// can regenerate and retry.
func (r *PersonRepository) Create(ctx context.Context, person *models.Person) error {
	now := time.Now().UTC()
	if person.ID == "" {
		person.ID = uuid.NewString()
	}
	person.CreatedAt = now
	person.UpdatedAt = now
	if person.Groups == nil {
		person.Groups = pq.StringArray{}
	}
	query := `INSERT INTO persons (id, kind, member_id, membership_id, full_name, gender, birth_date, phone, groups, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, query,
		person.ID, person.Kind, person.MemberID, person.MembershipID,
		person.FullName, person.Gender, person.BirthDate, person.Phone,
		person.Groups, person.CreatedAt, person.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == pqUniqueViolation {
			return appErrors.Wrap(err, appErrors.ErrIdentifierTaken.Code, appErrors.ErrIdentifierTaken.Status, appErrors.ErrIdentifierTaken.Message)
		}
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

// ListDependants returns the dependants linked to a member.
func (r *PersonRepository) ListDependants(ctx context.Context, memberID string) ([]models.Person, error) {
	query := `SELECT id, kind, member_id, membership_id, full_name, gender, birth_date, phone, groups, created_at, updated_at
FROM persons WHERE kind = 'dependant' AND member_id = $1 ORDER BY full_name`
	var rows []models.Person
	if err := r.db.SelectContext(ctx, &rows, query, memberID); err != nil {
		return nil, fmt.Errorf("list dependants: %w", err)
	}
	return rows, nil
}

// List returns persons matching the filter, paginated.
func (r *PersonRepository) List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Kind != nil && filter.Kind.Valid() {
		where = append(where, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, *filter.Kind)
	}
	if filter.MemberID != "" {
		where = append(where, fmt.Sprintf("member_id = $%d", len(args)+1))
		args = append(args, filter.MemberID)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(full_name ILIKE $%d OR membership_id = $%d)", len(args)+1, len(args)+2))
		args = append(args, "%"+filter.Search+"%", filter.Search)
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

	query := fmt.Sprintf(`SELECT id, kind, member_id, membership_id, full_name, gender, birth_date, phone, groups, created_at, updated_at
FROM persons WHERE %s ORDER BY full_name LIMIT %d OFFSET %d`, whereClause, size, offset)
	var rows []models.Person
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list persons: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM persons WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count persons: %w", err)
	}
	return rows, total, nil
}
