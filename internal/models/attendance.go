package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ServiceType identifies the category of a gathering.
type ServiceType string

const (
	ServiceTypeSunday       ServiceType = "sunday_service"
	ServiceTypeMidweek      ServiceType = "midweek_service"
	ServiceTypePrayer       ServiceType = "prayer_meeting"
	ServiceTypeSpecialEvent ServiceType = "special_event"
)

// Valid returns true when the service type is a supported value.
func (t ServiceType) Valid() bool {
	switch t {
	case ServiceTypeSunday, ServiceTypeMidweek, ServiceTypePrayer, ServiceTypeSpecialEvent:
		return true
	default:
		return false
	}
}

// CheckInChannel records which input channel produced an admission.
type CheckInChannel string

const (
	ChannelScanner CheckInChannel = "scanner"
	ChannelKiosk   CheckInChannel = "kiosk"
	ChannelBulk    CheckInChannel = "bulk"
	ChannelManual  CheckInChannel = "manual"
)

// Valid returns true when the channel is a supported value.
func (c CheckInChannel) Valid() bool {
	switch c {
	case ChannelScanner, ChannelKiosk, ChannelBulk, ChannelManual:
		return true
	default:
		return false
	}
}

// AttendanceStatus marks whether a record admits a person.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
)

// ServiceOccurrence is the (calendar date, service type) pair identifying
// one concrete gathering. Together with a person id it forms the
// deduplication key.
type ServiceOccurrence struct {
	Date time.Time   `db:"service_date" json:"service_date"`
	Type ServiceType `db:"service_type" json:"service_type"`
}

// Key renders a stable textual form used in logs and error messages.
func (o ServiceOccurrence) Key() string {
	return fmt.Sprintf("%s/%s", o.Date.Format("2006-01-02"), o.Type)
}

// AttendanceMetadata is the demographic snapshot embedded in each record at
// check-in time. Statistics read it instead of live person data so that
// later profile edits never rewrite history.
type AttendanceMetadata struct {
	Gender     Gender     `json:"gender,omitempty"`
	AgeBracket AgeBracket `json:"age_bracket,omitempty"`
	Groups     []string   `json:"groups,omitempty"`
}

// Empty reports whether no snapshot was captured.
func (m AttendanceMetadata) Empty() bool {
	return m.Gender == "" && m.AgeBracket == "" && len(m.Groups) == 0
}

// Value marshals the snapshot for a JSONB column.
func (m AttendanceMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan unmarshals the snapshot from a JSONB column.
func (m *AttendanceMetadata) Scan(src interface{}) error {
	if src == nil {
		*m = AttendanceMetadata{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported metadata type %T", src)
	}
}

// AttendanceRecord is created exactly once per (person, occurrence) and is
// never updated in place.
type AttendanceRecord struct {
	ID          string             `db:"id" json:"id"`
	PersonID    string             `db:"person_id" json:"person_id"`
	ServiceDate time.Time          `db:"service_date" json:"service_date"`
	ServiceType ServiceType        `db:"service_type" json:"service_type"`
	Status      AttendanceStatus   `db:"status" json:"status"`
	Channel     CheckInChannel     `db:"channel" json:"channel"`
	RecordedBy  string             `db:"recorded_by" json:"recorded_by"`
	Metadata    AttendanceMetadata `db:"metadata" json:"metadata"`
	CheckedInAt time.Time          `db:"checked_in_at" json:"checked_in_at"`
}

// Occurrence reconstructs the dedup partition key from a stored row.
func (r AttendanceRecord) Occurrence() ServiceOccurrence {
	return ServiceOccurrence{Date: r.ServiceDate, Type: r.ServiceType}
}

// AttendanceDetail extends a record with the person's display name.
type AttendanceDetail struct {
	AttendanceRecord
	PersonName string `db:"person_name" json:"person_name"`
}

// AttendanceFilter scopes attendance listing queries.
type AttendanceFilter struct {
	DateFrom    *time.Time
	DateTo      *time.Time
	ServiceType *ServiceType
	PersonID    string
	Page        int
	PageSize    int
}

// AdmissionOutcome is the result of one pass through the deduplication
// guard. Duplicate is a first-class outcome, not an error.
type AdmissionOutcome string

const (
	OutcomeAdmitted  AdmissionOutcome = "admitted"
	OutcomeDuplicate AdmissionOutcome = "duplicate"
	OutcomeError     AdmissionOutcome = "error"
)

// EntryResult reports the outcome for one person inside a check-in.
type EntryResult struct {
	PersonID string           `json:"person_id"`
	Outcome  AdmissionOutcome `json:"outcome"`
	Message  string           `json:"message,omitempty"`
}

// CheckInResult aggregates a single check-in covering a primary person and
// any selected dependants.
type CheckInResult struct {
	Primary    EntryResult   `json:"primary"`
	Dependants []EntryResult `json:"dependants,omitempty"`
}

// BulkResult summarises one bulk submission. Transient, never persisted.
// Successful+Duplicates+Errors always equals the submitted count,
// regardless of execution order.
type BulkResult struct {
	Successful int      `json:"successful"`
	Duplicates int      `json:"duplicates"`
	Errors     int      `json:"errors"`
	Messages   []string `json:"messages,omitempty"`
}
