package triage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/booking"
)

type BookingReader interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
}

type Service struct {
	repo     Repository
	bookings BookingReader
	logger   *slog.Logger
}

func NewService(repo Repository, bookings BookingReader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, bookings: bookings, logger: logger}
}

// Save records the triage for a patient who is at the clinic. Saving again
// overwrites the previous record.
func (s *Service) Save(ctx context.Context, bookingID uuid.UUID, in Input) (*Record, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != booking.StatusWaiting && b.Status != booking.StatusInProgress {
		return nil, fmt.Errorf("%w: booking is %s", ErrNotInClinic, b.Status)
	}

	rec, err := s.repo.Upsert(ctx, Build(bookingID, in))
	if err != nil {
		return nil, fmt.Errorf("save triage: %w", err)
	}

	s.logger.Info("triage saved", "booking_id", bookingID, "bmi_class", rec.BMIClass)
	return rec, nil
}

func (s *Service) Get(ctx context.Context, bookingID uuid.UUID) (*Record, error) {
	return s.repo.Get(ctx, bookingID)
}
