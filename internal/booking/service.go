package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/billing"
	"github.com/hackgods/clinic-scheduling/internal/mq"
	"github.com/hackgods/clinic-scheduling/internal/notify"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/settings"
)

const (
	EventBookingCreated   = "BOOKING_CREATED"
	EventBookingUpdated   = "BOOKING_UPDATED"
	EventBookingCheckedIn = "BOOKING_CHECKED_IN"
	EventBookingStarted   = "BOOKING_STARTED"
	EventBookingFinished  = "BOOKING_FINISHED"
	EventBookingReverted  = "BOOKING_REVERTED"
	EventBookingNoShow    = "BOOKING_NO_SHOW"
	EventBookingCancelled = "BOOKING_CANCELLED"
)

// Blocker answers whether the agenda is closed for a slot.
type Blocker interface {
	IsBlocked(ctx context.Context, professionalID uuid.UUID, date time.Time, at schedule.TimeOfDay) (bool, error)
}

// Notifier dispatches a message without waiting for delivery.
type Notifier interface {
	Dispatch(ctx context.Context, kind, phone, text string)
}

type SettingsSource interface {
	Load(ctx context.Context) (*settings.Settings, error)
}

type Deps struct {
	Store     Store
	Rules     schedule.RuleReader
	Blocks    Blocker
	Settings  SettingsSource
	Notifier  Notifier
	Publisher mq.Publisher
	Logger    *slog.Logger
}

type Options struct {
	Location      *time.Location
	NoShowRank    int
	ClinicName    string
	ClinicAddress string
}

type Service struct {
	store     Store
	rules     schedule.RuleReader
	blocks    Blocker
	settings  SettingsSource
	notifier  Notifier
	publisher mq.Publisher
	logger    *slog.Logger
	opts      Options
	now       func() time.Time
}

func NewService(deps Deps, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Publisher == nil {
		deps.Publisher = mq.Noop{}
	}
	return &Service{
		store:     deps.Store,
		rules:     deps.Rules,
		blocks:    deps.Blocks,
		settings:  deps.Settings,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		opts:      opts,
		now:       time.Now,
	}
}

func (s *Service) today() time.Time {
	return schedule.Date(s.now().In(s.opts.Location))
}

// CreateBooking validates the slot and stores a scheduled booking. The
// capacity count and the insert run under a per-professional-day lock so
// concurrent requests cannot both take the last seat.
func (s *Service) CreateBooking(ctx context.Context, in CreateInput) (*Booking, error) {
	if in.ProfessionalID == uuid.Nil || in.SpecialtyID == uuid.Nil || in.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: professional, specialty and patient are required", ErrInvalidBooking)
	}
	if in.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidBooking)
	}
	if in.Value != nil && in.Value.IsNegative() {
		return nil, fmt.Errorf("%w: value cannot be negative", ErrInvalidBooking)
	}
	date := schedule.Date(in.Date)

	patient, err := s.store.GetPatientByID(ctx, in.PatientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	professional, err := s.store.GetProfessionalByID(ctx, in.ProfessionalID)
	if err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load professional: %w", err)
	}

	blocked, err := s.blocks.IsBlocked(ctx, in.ProfessionalID, date, in.Time)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, schedule.ErrSlotBlocked
	}

	b := &Booking{
		ID:             uuid.New(),
		ProfessionalID: in.ProfessionalID,
		SpecialtyID:    in.SpecialtyID,
		PatientID:      in.PatientID,
		InsuranceID:    in.InsuranceID,
		Date:           date,
		Time:           in.Time,
		IsOverbook:     in.IsOverbook,
		Status:         StatusScheduled,
		Notes:          in.Notes,

		PatientName:      patient.Name,
		PatientBirthDate: patient.BirthDate,
		ProfessionalName: professional.Name,
	}
	if patient.Phone != nil {
		b.PatientPhone = *patient.Phone
	}

	err = s.store.InSlotTx(ctx, in.ProfessionalID, date, func(tx Tx) error {
		v := schedule.NewValidator(s.rules, tx)
		state, err := v.Check(ctx, in.ProfessionalID, in.SpecialtyID, date, in.Time)
		if err != nil {
			return err
		}
		if !in.IsOverbook && !state.Available {
			return &CapacityExceededError{Max: state.Capacity.Max, Current: state.Current}
		}

		switch {
		case in.Value != nil:
			b.Value = *in.Value
		case state.Capacity.Rule != nil:
			b.Value = state.Capacity.Rule.Price
		}
		return tx.Insert(ctx, b)
	})
	if err != nil {
		var capErr *CapacityExceededError
		if errors.As(err, &capErr) || errors.Is(err, ErrDuplicateBooking) || errors.Is(err, ErrUnknownReference) {
			return nil, err
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.logger.Info("booking created",
		"booking_id", b.ID,
		"professional_id", b.ProfessionalID,
		"date", schedule.FormatDate(b.Date),
		"time", b.Time.String(),
		"overbook", b.IsOverbook,
	)
	s.logEvent(ctx, b.ID, EventBookingCreated, map[string]any{
		"professional_id": b.ProfessionalID.String(),
		"patient_id":      b.PatientID.String(),
		"date":            schedule.FormatDate(b.Date),
		"time":            b.Time.String(),
		"is_overbook":     b.IsOverbook,
	})
	s.publish(ctx, mq.KeyBookingCreated, b)
	s.notify(ctx, "confirmation", b, settings.Settings.ConfirmationsOn, notify.Confirmation)

	return b, nil
}

// UpdateBooking edits a booking in place. Capacity is not re-checked.
func (s *Service) UpdateBooking(ctx context.Context, id uuid.UUID, in UpdateInput) (*Booking, error) {
	if in.Value != nil && in.Value.IsNegative() {
		return nil, fmt.Errorf("%w: value cannot be negative", ErrInvalidBooking)
	}
	if in.ProfessionalID != nil {
		if _, err := s.store.GetProfessionalByID(ctx, *in.ProfessionalID); err != nil {
			if errors.Is(err, ErrProfessionalNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("load professional: %w", err)
		}
	}

	var updated *Booking
	err := s.store.InTx(ctx, func(tx Tx) error {
		b, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.Status.Terminal() {
			return ErrBookingClosed
		}

		if in.ProfessionalID != nil {
			b.ProfessionalID = *in.ProfessionalID
		}
		if in.SpecialtyID != nil {
			b.SpecialtyID = *in.SpecialtyID
		}
		if in.ClearInsurance {
			b.InsuranceID = nil
		} else if in.InsuranceID != nil {
			b.InsuranceID = in.InsuranceID
		}
		moved := false
		if in.Date != nil && !schedule.Date(*in.Date).Equal(b.Date) {
			b.Date = schedule.Date(*in.Date)
			moved = true
		}
		if in.Time != nil && *in.Time != b.Time {
			b.Time = *in.Time
			moved = true
		}
		if moved {
			// the patient is reminded again for the new slot
			b.ReminderSent = false
		}
		if in.Value != nil {
			b.Value = *in.Value
		}
		if in.Notes != nil {
			b.Notes = *in.Notes
		}

		if err := tx.Update(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, s.txError("update booking", err)
	}

	s.logEvent(ctx, updated.ID, EventBookingUpdated, map[string]any{
		"date": schedule.FormatDate(updated.Date),
		"time": updated.Time.String(),
	})
	s.publish(ctx, mq.KeyBookingUpdated, updated)
	return updated, nil
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// ListBookings returns the reception view. Without a date, month or year it
// shows today, and a month alone means that month of the current year.
// Cancelled bookings are hidden unless asked for.
func (s *Service) ListBookings(ctx context.Context, f Filter) ([]Booking, error) {
	if f.Date == nil && f.Month == 0 && f.Year == 0 {
		today := s.today()
		f.Date = &today
	}
	if f.Month > 0 && f.Year == 0 {
		f.Year = s.today().Year()
	}

	bookings, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return OrderForDay(bookings, QueueOptions{NoShowRank: s.opts.NoShowRank, ByAge: f.ByAge}), nil
}

// CheckIn marks the patient as arrived and records billing in the same
// transaction. A second check-in only refreshes the invoice.
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID, in CheckInInput) (*Booking, *billing.Invoice, error) {
	method := in.PaymentMethod
	if method == "" {
		method = billing.MethodPending
	}
	if _, err := billing.ParsePaymentMethod(string(method)); err != nil {
		return nil, nil, err
	}
	if in.Amount != nil && in.Amount.IsNegative() {
		return nil, nil, fmt.Errorf("%w: amount cannot be negative", ErrInvalidBooking)
	}

	today := s.today()
	var inv *billing.Invoice

	b, err := s.transition(ctx, id, StatusWaiting, false, func(tx Tx, b *Booking) error {
		if b.Date.After(today) {
			return ErrCheckInFuture
		}
		if b.Status == StatusScheduled {
			now := s.now()
			b.ArrivedAt = &now
		}

		amount := b.Value
		if in.Amount != nil {
			amount = *in.Amount
		}
		due := in.DueDate
		if due == nil {
			due = &today
		}
		var err error
		inv, err = tx.UpsertInvoice(ctx, billing.Invoice{
			BookingID:     b.ID,
			Amount:        amount,
			PaymentMethod: method,
			Paid:          in.Paid,
			DueDate:       due,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.logEvent(ctx, b.ID, EventBookingCheckedIn, map[string]any{
		"amount":         inv.Amount.StringFixed(2),
		"payment_method": inv.PaymentMethod,
		"paid":           inv.Paid,
	})
	s.publish(ctx, mq.KeyBookingCheckedIn, b)
	return b, inv, nil
}

func (s *Service) Start(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.transition(ctx, id, StatusInProgress, false, func(_ Tx, b *Booking) error {
		now := s.now()
		b.StartedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, b.ID, EventBookingStarted, map[string]any{})
	s.publish(ctx, mq.KeyBookingStarted, b)
	return b, nil
}

func (s *Service) Finish(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.transition(ctx, id, StatusDone, false, nil)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, b.ID, EventBookingFinished, map[string]any{})
	s.publish(ctx, mq.KeyBookingFinished, b)
	return b, nil
}

// RevertCheckIn puts the booking back on the schedule and drops an unpaid
// invoice unless KeepBilling is set.
func (s *Service) RevertCheckIn(ctx context.Context, id uuid.UUID, in RevertInput) (*Booking, error) {
	var invoiceDeleted bool
	b, err := s.transition(ctx, id, StatusScheduled, in.Correction, func(tx Tx, b *Booking) error {
		b.ArrivedAt = nil
		b.StartedAt = nil
		if in.KeepBilling {
			return nil
		}

		inv, err := tx.GetInvoice(ctx, b.ID)
		if errors.Is(err, billing.ErrInvoiceNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load invoice: %w", err)
		}
		if inv.Paid {
			return nil
		}
		if err := tx.DeleteInvoice(ctx, b.ID); err != nil {
			return err
		}
		invoiceDeleted = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, b.ID, EventBookingReverted, map[string]any{
		"correction":      in.Correction,
		"invoice_deleted": invoiceDeleted,
	})
	s.publish(ctx, mq.KeyBookingReverted, b)
	return b, nil
}

func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.transition(ctx, id, StatusNoShow, false, nil)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, b.ID, EventBookingNoShow, map[string]any{})
	s.publish(ctx, mq.KeyBookingNoShow, b)
	return b, nil
}

// Cancel is a soft delete: the row stays for history but stops counting
// against capacity.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.transition(ctx, id, StatusCancelled, false, nil)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, b.ID, EventBookingCancelled, map[string]any{})
	s.publish(ctx, mq.KeyBookingCancelled, b)
	s.notify(ctx, "cancellation", b, settings.Settings.CancellationsOn, notify.Cancellation)
	return b, nil
}

// transition locks the booking row, checks the move, applies mutate and
// saves, all in one transaction.
func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, correction bool, mutate func(tx Tx, b *Booking) error) (*Booking, error) {
	var out *Booking
	var from Status

	err := s.store.InTx(ctx, func(tx Tx) error {
		b, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = b.Status
		if err := checkTransition(b.Status, to, correction); err != nil {
			return err
		}
		if mutate != nil {
			if err := mutate(tx, b); err != nil {
				return err
			}
		}
		b.Status = to
		if err := tx.Update(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, s.txError("move booking to "+string(to), err)
	}

	s.logger.Info("booking status changed", "booking_id", id, "from", from, "to", to)
	return out, nil
}

// txError passes domain errors through and wraps the rest.
func (s *Service) txError(op string, err error) error {
	var transErr *InvalidTransitionError
	switch {
	case errors.As(err, &transErr),
		errors.Is(err, ErrBookingNotFound),
		errors.Is(err, ErrBookingClosed),
		errors.Is(err, ErrCheckInFuture),
		errors.Is(err, ErrDuplicateBooking),
		errors.Is(err, ErrUnknownReference),
		errors.Is(err, billing.ErrInvalidPaymentMethod):
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// notify sends a templated WhatsApp message when the toggle allows it.
// Failures never reach the caller.
func (s *Service) notify(ctx context.Context, kind string, b *Booking, enabled func(settings.Settings) bool, render func(notify.MessageData) string) {
	if s.notifier == nil || s.settings == nil {
		return
	}
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		s.logger.Warn("load settings for notification", "kind", kind, "error", err)
		return
	}
	if !enabled(*cfg) {
		return
	}
	if b.PatientPhone == "" {
		s.logger.Warn("patient has no phone, notification skipped", "kind", kind, "booking_id", b.ID)
		return
	}

	s.notifier.Dispatch(ctx, kind, b.PatientPhone, render(notify.MessageData{
		PatientName:      b.PatientName,
		ProfessionalName: b.ProfessionalName,
		Date:             b.Date,
		Time:             b.Time.String(),
		ClinicName:       s.opts.ClinicName,
		ClinicAddress:    s.opts.ClinicAddress,
	}))
}

func (s *Service) publish(ctx context.Context, key string, b *Booking) {
	if err := s.publisher.PublishJSON(ctx, key, b); err != nil {
		s.logger.Warn("publish booking event", "key", key, "booking_id", b.ID, "error", err)
	}
}

func (s *Service) logEvent(ctx context.Context, bookingID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("marshal event payload", "event", eventType, "error", err)
		data = nil
	}

	id := bookingID

	ev := EventLog{
		EventType: eventType,
		BookingID: &id,
		Payload:   data,
		CreatedAt: time.Now(),
	}

	if err := s.store.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("insert event log", "event", eventType, "booking_id", bookingID, "error", err)
	}
}
