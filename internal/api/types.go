package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-scheduling/internal/billing"
	"github.com/hackgods/clinic-scheduling/internal/booking"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

// Request bodies carry dates as YYYY-MM-DD and times as HH:MM.

type CreateBookingRequest struct {
	ProfessionalID uuid.UUID        `json:"professional_id"`
	SpecialtyID    uuid.UUID        `json:"specialty_id"`
	PatientID      uuid.UUID        `json:"patient_id"`
	InsuranceID    *uuid.UUID       `json:"insurance_id"`
	Date           string           `json:"date"`
	Time           string           `json:"time"`
	IsOverbook     bool             `json:"is_overbook"`
	Value          *decimal.Decimal `json:"value"`
	Notes          string           `json:"notes"`
}

type UpdateBookingRequest struct {
	ProfessionalID *uuid.UUID       `json:"professional_id"`
	SpecialtyID    *uuid.UUID       `json:"specialty_id"`
	InsuranceID    *uuid.UUID       `json:"insurance_id"`
	ClearInsurance bool             `json:"clear_insurance"`
	Date           *string          `json:"date"`
	Time           *string          `json:"time"`
	Value          *decimal.Decimal `json:"value"`
	Notes          *string          `json:"notes"`
}

type CheckInRequest struct {
	Amount        *decimal.Decimal `json:"amount"`
	PaymentMethod string           `json:"payment_method"`
	Paid          bool             `json:"paid"`
	DueDate       *string          `json:"due_date"`
}

type RevertRequest struct {
	Correction  bool `json:"correction"`
	KeepBilling bool `json:"keep_billing"`
}

type FixedTimeDTO struct {
	Time     string `json:"time"`
	Capacity int    `json:"capacity"`
}

type GroupRequest struct {
	ProfessionalID  uuid.UUID       `json:"professional_id"`
	SpecialtyID     uuid.UUID       `json:"specialty_id"`
	InsuranceID     *uuid.UUID      `json:"insurance_id"`
	DaysOfWeek      []int           `json:"days_of_week"`
	ValidFrom       string          `json:"valid_from"`
	ValidUntil      string          `json:"valid_until"`
	Active          *bool           `json:"active"`
	Kind            schedule.Kind   `json:"kind"`
	FixedTimes      []FixedTimeDTO  `json:"fixed_times"`
	StartTime       string          `json:"start_time"`
	EndTime         string          `json:"end_time"`
	IntervalMinutes int             `json:"interval_minutes"`
	Capacity        int             `json:"capacity"`
	Price           decimal.Decimal `json:"price"`
}

type BlockRequest struct {
	ProfessionalID *uuid.UUID         `json:"professional_id"`
	DateFrom       string             `json:"date_from"`
	DateUntil      string             `json:"date_until"`
	StartTime      string             `json:"start_time"`
	EndTime        string             `json:"end_time"`
	Reason         string             `json:"reason"`
	Kind           schedule.BlockKind `json:"kind"`
	Yearly         bool               `json:"yearly"`
}

type BookingResponse struct {
	ID               uuid.UUID       `json:"id"`
	ProfessionalID   uuid.UUID       `json:"professional_id"`
	ProfessionalName string          `json:"professional_name,omitempty"`
	SpecialtyID      uuid.UUID       `json:"specialty_id"`
	PatientID        uuid.UUID       `json:"patient_id"`
	PatientName      string          `json:"patient_name,omitempty"`
	InsuranceID      *uuid.UUID      `json:"insurance_id,omitempty"`
	Date             string          `json:"date"`
	Time             string          `json:"time"`
	IsOverbook       bool            `json:"is_overbook"`
	Status           booking.Status  `json:"status"`
	ReminderSent     bool            `json:"reminder_sent"`
	Value            decimal.Decimal `json:"value"`
	Notes            string          `json:"notes,omitempty"`
	ArrivedAt        *time.Time      `json:"arrived_at,omitempty"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:               b.ID,
		ProfessionalID:   b.ProfessionalID,
		ProfessionalName: b.ProfessionalName,
		SpecialtyID:      b.SpecialtyID,
		PatientID:        b.PatientID,
		PatientName:      b.PatientName,
		InsuranceID:      b.InsuranceID,
		Date:             schedule.FormatDate(b.Date),
		Time:             b.Time.String(),
		IsOverbook:       b.IsOverbook,
		Status:           b.Status,
		ReminderSent:     b.ReminderSent,
		Value:            b.Value,
		Notes:            b.Notes,
		ArrivedAt:        b.ArrivedAt,
		StartedAt:        b.StartedAt,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

type InvoiceResponse struct {
	Amount        decimal.Decimal       `json:"amount"`
	PaymentMethod billing.PaymentMethod `json:"payment_method"`
	Paid          bool                  `json:"paid"`
	DueDate       *string               `json:"due_date,omitempty"`
}

type CheckInResponse struct {
	Booking BookingResponse  `json:"booking"`
	Invoice *InvoiceResponse `json:"invoice,omitempty"`
}

func toInvoiceResponse(inv *billing.Invoice) *InvoiceResponse {
	if inv == nil {
		return nil
	}
	out := &InvoiceResponse{
		Amount:        inv.Amount,
		PaymentMethod: inv.PaymentMethod,
		Paid:          inv.Paid,
	}
	if inv.DueDate != nil {
		d := schedule.FormatDate(*inv.DueDate)
		out.DueDate = &d
	}
	return out
}

type RuleResponse struct {
	ID              uuid.UUID       `json:"id"`
	GroupID         uuid.UUID       `json:"group_id"`
	ProfessionalID  uuid.UUID       `json:"professional_id"`
	SpecialtyID     uuid.UUID       `json:"specialty_id"`
	InsuranceID     *uuid.UUID      `json:"insurance_id,omitempty"`
	DayOfWeek       int             `json:"day_of_week"`
	ValidFrom       string          `json:"valid_from"`
	ValidUntil      string          `json:"valid_until"`
	Active          bool            `json:"active"`
	Kind            schedule.Kind   `json:"kind"`
	StartTime       string          `json:"start_time"`
	EndTime         string          `json:"end_time,omitempty"`
	IntervalMinutes int             `json:"interval_minutes,omitempty"`
	CapacityPerSlot int             `json:"capacity_per_slot"`
	Price           decimal.Decimal `json:"price"`
}

func toRuleResponse(r schedule.Rule) RuleResponse {
	out := RuleResponse{
		ID:              r.ID,
		GroupID:         r.GroupID,
		ProfessionalID:  r.ProfessionalID,
		SpecialtyID:     r.SpecialtyID,
		InsuranceID:     r.InsuranceID,
		DayOfWeek:       r.DayOfWeek,
		ValidFrom:       schedule.FormatDate(r.ValidFrom),
		ValidUntil:      schedule.FormatDate(r.ValidUntil),
		Active:          r.Active,
		Kind:            r.Kind,
		StartTime:       r.StartTime.String(),
		IntervalMinutes: r.IntervalMinutes,
		CapacityPerSlot: r.CapacityPerSlot,
		Price:           r.Price,
	}
	if r.Kind != schedule.KindFixed {
		out.EndTime = r.EndTime.String()
	}
	return out
}

func toRuleResponses(rules []schedule.Rule) []RuleResponse {
	out := make([]RuleResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, toRuleResponse(r))
	}
	return out
}

type GroupResponse struct {
	GroupID    uuid.UUID      `json:"group_id"`
	DaysOfWeek []int          `json:"days_of_week"`
	FixedTimes []FixedTimeDTO `json:"fixed_times,omitempty"`
	Rules      []RuleResponse `json:"rules"`
}

func toGroupResponse(g *schedule.Group) GroupResponse {
	out := GroupResponse{
		GroupID:    g.GroupID,
		DaysOfWeek: g.DaysOfWeek,
		Rules:      toRuleResponses(g.Rules),
	}
	for _, ft := range g.FixedTimes {
		out.FixedTimes = append(out.FixedTimes, FixedTimeDTO{Time: ft.Time.String(), Capacity: ft.Capacity})
	}
	return out
}

type BlockResponse struct {
	ID             uuid.UUID          `json:"id"`
	ProfessionalID *uuid.UUID         `json:"professional_id,omitempty"`
	DateFrom       string             `json:"date_from"`
	DateUntil      string             `json:"date_until"`
	StartTime      string             `json:"start_time"`
	EndTime        string             `json:"end_time"`
	Reason         string             `json:"reason"`
	Kind           schedule.BlockKind `json:"kind"`
	Yearly         bool               `json:"yearly"`
	CreatedAt      time.Time          `json:"created_at"`
}

func toBlockResponse(b *schedule.Block) BlockResponse {
	return BlockResponse{
		ID:             b.ID,
		ProfessionalID: b.ProfessionalID,
		DateFrom:       schedule.FormatDate(b.DateFrom),
		DateUntil:      schedule.FormatDate(b.DateUntil),
		StartTime:      b.StartTime.String(),
		EndTime:        b.EndTime.String(),
		Reason:         b.Reason,
		Kind:           b.Kind,
		Yearly:         b.Yearly,
		CreatedAt:      b.CreatedAt,
	}
}

type SlotCapacityResponse struct {
	Max       int    `json:"max"`
	Current   int    `json:"current"`
	Available bool   `json:"available"`
	Pooled    bool   `json:"pooled"`
	From      string `json:"from"`
	To        string `json:"to"`
	Kind      string `json:"kind,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Max     *int   `json:"max,omitempty"`
	Current *int   `json:"current,omitempty"`
}
