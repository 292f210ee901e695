package schedule

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindFixed    Kind = "fixed"
	KindInterval Kind = "interval"
	KindPeriod   Kind = "period"
)

func (k Kind) Valid() bool {
	switch k {
	case KindFixed, KindInterval, KindPeriod:
		return true
	}
	return false
}

// specificity orders overlapping rules: the lowest value wins.
func (k Kind) specificity() int {
	switch k {
	case KindFixed:
		return 0
	case KindPeriod:
		return 1
	default:
		return 2
	}
}

// Rule is one weekday row of a weekly availability pattern.
type Rule struct {
	ID              uuid.UUID       `json:"id"`
	GroupID         uuid.UUID       `json:"group_id"`
	ProfessionalID  uuid.UUID       `json:"professional_id"`
	SpecialtyID     uuid.UUID       `json:"specialty_id"`
	InsuranceID     *uuid.UUID      `json:"insurance_id,omitempty"`
	DayOfWeek       int             `json:"day_of_week"`
	ValidFrom       time.Time       `json:"valid_from"`
	ValidUntil      time.Time       `json:"valid_until"`
	Active          bool            `json:"active"`
	Kind            Kind            `json:"kind"`
	StartTime       TimeOfDay       `json:"start_time"`
	EndTime         TimeOfDay       `json:"end_time"`
	IntervalMinutes int             `json:"interval_minutes"`
	CapacityPerSlot int             `json:"capacity_per_slot"`
	Price           decimal.Decimal `json:"price"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ValidOn reports whether date falls inside the rule's inclusive validity window.
func (r Rule) ValidOn(date time.Time) bool {
	d := Date(date)
	return !d.Before(Date(r.ValidFrom)) && !d.After(Date(r.ValidUntil))
}

// FixedTime is one named slot of a fixed-kind group.
type FixedTime struct {
	Time     TimeOfDay `json:"time"`
	Capacity int       `json:"capacity"`
}

// GroupInput describes a whole weekly pattern; it is expanded into one Rule
// per weekday (and per fixed time for fixed groups).
type GroupInput struct {
	ProfessionalID  uuid.UUID       `json:"professional_id"`
	SpecialtyID     uuid.UUID       `json:"specialty_id"`
	InsuranceID     *uuid.UUID      `json:"insurance_id,omitempty"`
	DaysOfWeek      []int           `json:"days_of_week"`
	ValidFrom       time.Time       `json:"valid_from"`
	ValidUntil      time.Time       `json:"valid_until"`
	Active          bool            `json:"active"`
	Kind            Kind            `json:"kind"`
	FixedTimes      []FixedTime     `json:"fixed_times,omitempty"`
	StartTime       TimeOfDay       `json:"start_time"`
	EndTime         TimeOfDay       `json:"end_time"`
	IntervalMinutes int             `json:"interval_minutes"`
	Capacity        int             `json:"capacity"`
	Price           decimal.Decimal `json:"price"`
}

type RuleStatus string

const (
	RuleStatusActive RuleStatus = "active"
	RuleStatusClosed RuleStatus = "closed"
	RuleStatusAll    RuleStatus = "all"
)

type RuleFilter struct {
	ProfessionalID *uuid.UUID
	SpecialtyID    *uuid.UUID
	InsuranceID    *uuid.UUID
	NoInsurance    bool
	DayOfWeek      *int
	OnDate         *time.Time
	Status         RuleStatus
	Today          time.Time // reference date for the active/closed split
}

// Capacity is the outcome of matching a slot against the rules: at most Max
// live bookings may exist with times in [From, To]. For pooled periods To is
// exclusive; for single slots From == To.
type Capacity struct {
	Max    int       `json:"max"`
	From   TimeOfDay `json:"from"`
	To     TimeOfDay `json:"to"`
	Pooled bool      `json:"pooled"`
	Rule   *Rule     `json:"rule,omitempty"`
}

type BlockKind string

const (
	BlockHoliday BlockKind = "holiday"
	BlockManual  BlockKind = "manual"
)

// Block closes part of the agenda (holidays, vacations, meetings). A nil
// ProfessionalID applies to the whole clinic.
type Block struct {
	ID             uuid.UUID  `json:"id"`
	ProfessionalID *uuid.UUID `json:"professional_id,omitempty"`
	DateFrom       time.Time  `json:"date_from"`
	DateUntil      time.Time  `json:"date_until"`
	StartTime      TimeOfDay  `json:"start_time"`
	EndTime        TimeOfDay  `json:"end_time"`
	Reason         string     `json:"reason"`
	Kind           BlockKind  `json:"kind"`
	Yearly         bool       `json:"yearly"`
	CreatedAt      time.Time  `json:"created_at"`
}
