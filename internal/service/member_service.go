package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/elim-assembly/attendance-api/internal/memberid"
	"github.com/elim-assembly/attendance-api/internal/models"
	appErrors "github.com/elim-assembly/attendance-api/pkg/errors"
)

// identifierAttempts bounds the regenerate-on-collision loop. The codec
// never checks uniqueness itself, so the store's unique constraint is the
// only arbiter and a handful of retries is enough for a 10k keyspace per
// year.
const identifierAttempts = 5

type personRepository interface {
	Create(ctx context.Context, person *models.Person) error
	FindByMembershipID(ctx context.Context, canonical string) (*models.Person, error)
	ListDependants(ctx context.Context, memberID string) ([]models.Person, error)
	List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error)
	GetSnapshot(ctx context.Context, personID string) (*models.PersonSnapshot, error)
}

// MemberService registers members and dependants and resolves membership
// identifiers to people.
type MemberService struct {
	repo      personRepository
	generator *memberid.Generator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMemberService constructs the service.
func NewMemberService(repo personRepository, generator *memberid.Generator, validate *validator.Validate, logger *zap.Logger) *MemberService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &MemberService{repo: repo, generator: generator, validator: validate, logger: logger}
	_ = svc.validator.RegisterValidation("gender", func(fl validator.FieldLevel) bool {
		return models.Gender(strings.ToLower(fl.Field().String())).Valid()
	})
	return svc
}

// RegisterMemberRequest creates a primary member.
type RegisterMemberRequest struct {
	FullName  string   `json:"full_name" validate:"required"`
	Gender    string   `json:"gender" validate:"required,gender"`
	BirthDate *string  `json:"birth_date"`
	Phone     *string  `json:"phone"`
	Groups    []string `json:"groups"`
	// Year overrides the identifier year segment; zero means current year.
	Year int `json:"year"`
}

// RegisterDependantRequest links a dependant to an existing member.
type RegisterDependantRequest struct {
	MemberID  string  `json:"member_id" validate:"required"`
	FullName  string  `json:"full_name" validate:"required"`
	Gender    string  `json:"gender" validate:"required,gender"`
	BirthDate *string `json:"birth_date"`
}

// RegisterMember creates the member with a freshly generated membership
// identifier. The store's unique constraint guards global uniqueness; on a
// collision the digit segment is regenerated from the random source and the
// insert retried, a bounded number of times.
func (s *MemberService) RegisterMember(ctx context.Context, req RegisterMemberRequest) (*models.Person, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	birthDate, err := parseBirthDate(req.BirthDate)
	if err != nil {
		return nil, err
	}

	contact := ""
	if req.Phone != nil {
		contact = *req.Phone
	}

	var lastErr error
	for attempt := 0; attempt < identifierAttempts; attempt++ {
		display := s.generator.Generate(contact, req.Year)
		canonical := memberid.Normalize(display)

		person := &models.Person{
			Kind:         models.PersonKindMember,
			MembershipID: &canonical,
			FullName:     req.FullName,
			Gender:       models.Gender(strings.ToLower(req.Gender)),
			BirthDate:    birthDate,
			Phone:        req.Phone,
			Groups:       pq.StringArray(req.Groups),
		}
		if err := s.repo.Create(ctx, person); err != nil {
			if appErrors.FromError(err).Code == appErrors.ErrIdentifierTaken.Code {
				lastErr = err
				// The contact-derived segment will collide again; force
				// the random fallback on every retry.
				contact = ""
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register member")
		}
		return person, nil
	}
	s.logger.Error("identifier generation exhausted retries", zap.Error(lastErr))
	return nil, appErrors.Wrap(lastErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "could not allocate a unique membership identifier")
}

// RegisterDependant creates a dependant linked to exactly one member.
// Dependants carry no membership identifier of their own.
func (s *MemberService) RegisterDependant(ctx context.Context, req RegisterDependantRequest) (*models.Person, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if _, err := s.repo.GetSnapshot(ctx, req.MemberID); err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrNotFound.Code {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "linked member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve member")
	}
	birthDate, err := parseBirthDate(req.BirthDate)
	if err != nil {
		return nil, err
	}
	person := &models.Person{
		Kind:      models.PersonKindDependant,
		MemberID:  &req.MemberID,
		FullName:  req.FullName,
		Gender:    models.Gender(strings.ToLower(req.Gender)),
		BirthDate: birthDate,
	}
	if err := s.repo.Create(ctx, person); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register dependant")
	}
	return person, nil
}

// LookupByIdentifier resolves a membership identifier in any punctuation or
// case to its member.
func (s *MemberService) LookupByIdentifier(ctx context.Context, raw string) (*models.Person, error) {
	if !memberid.IsValid(raw) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "malformed membership identifier")
	}
	person, err := s.repo.FindByMembershipID(ctx, memberid.Normalize(raw))
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up member")
	}
	return person, nil
}

// Dependants lists the dependants linked to a member.
func (s *MemberService) Dependants(ctx context.Context, memberID string) ([]models.Person, error) {
	if memberID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "member id is required")
	}
	rows, err := s.repo.ListDependants(ctx, memberID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list dependants")
	}
	return rows, nil
}

// List returns persons matching the filter, paginated.
func (s *MemberService) List(ctx context.Context, filter models.PersonFilter) ([]models.Person, *models.Pagination, error) {
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
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list persons")
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func parseBirthDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", *raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid birth_date, expected YYYY-MM-DD")
	}
	return &parsed, nil
}
