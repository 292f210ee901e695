package booking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-scheduling/internal/billing"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusScheduled, StatusWaiting, StatusInProgress, StatusDone, StatusCancelled, StatusNoShow:
		return st, true
	}
	return "", false
}

// Live statuses occupy a seat when counting slot capacity.
func (s Status) Live() bool {
	switch s {
	case StatusScheduled, StatusWaiting, StatusInProgress, StatusDone:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusCancelled
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Phone     *string
	Email     *string
	BirthDate *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Professional struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Booking struct {
	ID             uuid.UUID          `json:"id"`
	ProfessionalID uuid.UUID          `json:"professional_id"`
	SpecialtyID    uuid.UUID          `json:"specialty_id"`
	PatientID      uuid.UUID          `json:"patient_id"`
	InsuranceID    *uuid.UUID         `json:"insurance_id,omitempty"`
	Date           time.Time          `json:"date"`
	Time           schedule.TimeOfDay `json:"time"`
	IsOverbook     bool               `json:"is_overbook"`
	Status         Status             `json:"status"`
	ReminderSent   bool               `json:"reminder_sent"`
	Value          decimal.Decimal    `json:"value"`
	Notes          string             `json:"notes"`
	ArrivedAt      *time.Time         `json:"arrived_at,omitempty"`
	StartedAt      *time.Time         `json:"started_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`

	// read side
	PatientName      string     `json:"patient_name,omitempty"`
	PatientPhone     string     `json:"patient_phone,omitempty"`
	PatientBirthDate *time.Time `json:"patient_birth_date,omitempty"`
	ProfessionalName string     `json:"professional_name,omitempty"`
}

type CreateInput struct {
	ProfessionalID uuid.UUID
	SpecialtyID    uuid.UUID
	PatientID      uuid.UUID
	InsuranceID    *uuid.UUID
	Date           time.Time
	Time           schedule.TimeOfDay
	IsOverbook     bool
	// Value defaults to the price of the matching availability rule.
	Value *decimal.Decimal
	Notes string
}

// UpdateInput edits a booking without re-running the capacity check.
type UpdateInput struct {
	ProfessionalID *uuid.UUID
	SpecialtyID    *uuid.UUID
	InsuranceID    *uuid.UUID
	ClearInsurance bool
	Date           *time.Time
	Time           *schedule.TimeOfDay
	Value          *decimal.Decimal
	Notes          *string
}

type CheckInInput struct {
	Amount        *decimal.Decimal
	PaymentMethod billing.PaymentMethod
	Paid          bool
	DueDate       *time.Time
}

type RevertInput struct {
	// Correction also allows undoing in_progress and done bookings.
	Correction  bool
	KeepBilling bool
}

type Filter struct {
	Date             *time.Time
	Month            int
	Year             int
	ProfessionalID   *uuid.UUID
	SpecialtyID      *uuid.UUID
	PatientID        *uuid.UUID
	Status           *Status
	IncludeCancelled bool
	ByAge            bool
}

// ReminderStats counts scheduled bookings of one day by reminder state.
type ReminderStats struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Pending int `json:"pending"`
}

type EventLog struct {
	ID        int64
	EventType string
	BookingID *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}
