package models

import (
	"time"

	"github.com/lib/pq"
)

// PersonKind distinguishes primary members from linked dependants.
type PersonKind string

const (
	PersonKindMember    PersonKind = "member"
	PersonKindDependant PersonKind = "dependant"
)

// Valid returns true when the kind is a supported value.
func (k PersonKind) Valid() bool {
	return k == PersonKindMember || k == PersonKindDependant
}

// Gender enumerates recorded gender values.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Valid returns true when the gender is a supported value.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// AgeBracket buckets people around the adult threshold.
type AgeBracket string

const (
	AgeBracketAdult AgeBracket = "adult"
	AgeBracketChild AgeBracket = "child"

	// AdultAgeThreshold is applied by calendar-year subtraction, not
	// elapsed time, to stay compatible with historical records.
	AdultAgeThreshold = 18
)

// BracketForBirthDate derives the age bracket from a birth date relative to
// the supplied reference time using calendar-year subtraction only.
func BracketForBirthDate(birthDate time.Time, ref time.Time) AgeBracket {
	if birthDate.IsZero() {
		return AgeBracketAdult
	}
	if ref.Year()-birthDate.Year() < AdultAgeThreshold {
		return AgeBracketChild
	}
	return AgeBracketAdult
}

// Person is an attendance-eligible individual: a member holding a
// membership identifier, or a dependant linked to exactly one member.
type Person struct {
	ID           string         `db:"id" json:"id"`
	Kind         PersonKind     `db:"kind" json:"kind"`
	MemberID     *string        `db:"member_id" json:"member_id,omitempty"`
	MembershipID *string        `db:"membership_id" json:"membership_id,omitempty"`
	FullName     string         `db:"full_name" json:"full_name"`
	Gender       Gender         `db:"gender" json:"gender"`
	BirthDate    *time.Time     `db:"birth_date" json:"birth_date,omitempty"`
	Phone        *string        `db:"phone" json:"phone,omitempty"`
	Groups       pq.StringArray `db:"groups" json:"groups"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// PersonSnapshot is the single well-typed demographic shape the store
// adapter normalises person rows into. Consumers never see raw store rows.
type PersonSnapshot struct {
	ID        string         `db:"id" json:"id"`
	FullName  string         `db:"full_name" json:"full_name"`
	Gender    Gender         `db:"gender" json:"gender"`
	BirthDate *time.Time     `db:"birth_date" json:"birth_date,omitempty"`
	Phone     *string        `db:"phone" json:"phone,omitempty"`
	Groups    pq.StringArray `db:"groups" json:"groups"`
}

// AgeBracket computes the snapshot's bracket at the reference time.
func (p PersonSnapshot) AgeBracket(ref time.Time) AgeBracket {
	if p.BirthDate == nil {
		return AgeBracketAdult
	}
	return BracketForBirthDate(*p.BirthDate, ref)
}

// PersonFilter scopes person listing queries.
type PersonFilter struct {
	Kind      *PersonKind
	MemberID  string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
