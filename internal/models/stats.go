package models

import "time"

// DateWindow bounds an aggregation query. Both ends are inclusive.
type DateWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// AggregatedStats is the computed fold over present attendance records in a
// window. Transient, recomputed on demand (optionally cached).
type AggregatedStats struct {
	Window       DateWindow         `json:"window"`
	ServiceType  *ServiceType       `json:"service_type,omitempty"`
	Total        int                `json:"total"`
	ByGender     map[Gender]int     `json:"by_gender"`
	ByAgeBracket map[AgeBracket]int `json:"by_age_bracket"`
	ByGroup      map[string]int     `json:"by_group"`
}

// NewAggregatedStats returns a zeroed stats value with initialised maps.
func NewAggregatedStats(window DateWindow, serviceType *ServiceType) *AggregatedStats {
	return &AggregatedStats{
		Window:       window,
		ServiceType:  serviceType,
		ByGender:     make(map[Gender]int),
		ByAgeBracket: make(map[AgeBracket]int),
		ByGroup:      make(map[string]int),
	}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
