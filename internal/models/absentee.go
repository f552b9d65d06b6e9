package models

import "time"

// AbsenteeRecord tracks a person explicitly marked absent for a service
// occurrence. At most one record exists per (person, occurrence); repeated
// marks update the existing row.
type AbsenteeRecord struct {
	ID                string      `db:"id" json:"id"`
	PersonID          string      `db:"person_id" json:"person_id"`
	ServiceDate       time.Time   `db:"service_date" json:"service_date"`
	ServiceType       ServiceType `db:"service_type" json:"service_type"`
	Reason            *string     `db:"reason" json:"reason,omitempty"`
	FollowUpRequired  bool        `db:"follow_up_required" json:"follow_up_required"`
	FollowUpCompleted bool        `db:"follow_up_completed" json:"follow_up_completed"`
	NotificationSent  bool        `db:"notification_sent" json:"notification_sent"`
	MarkedBy          string      `db:"marked_by" json:"marked_by"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updated_at"`
}

// AbsenteeDetail extends the record with contact data for follow-up.
type AbsenteeDetail struct {
	AbsenteeRecord
	PersonName string  `db:"person_name" json:"person_name"`
	Phone      *string `db:"phone" json:"phone,omitempty"`
}

// AbsenteeFilter scopes absentee listing queries.
type AbsenteeFilter struct {
	DateFrom    *time.Time
	DateTo      *time.Time
	ServiceType *ServiceType
	PendingOnly bool
	Page        int
	PageSize    int
}

// DispatchResult tallies a notification dispatch run. Per-recipient
// failures are counted, never raised out of the batch.
type DispatchResult struct {
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}
