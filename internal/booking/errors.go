package booking

import (
	"errors"
	"fmt"
)

var (
	ErrBookingNotFound      = errors.New("booking not found")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrProfessionalNotFound = errors.New("professional not found")
	ErrDuplicateBooking     = errors.New("patient already holds a live booking in this slot")
	ErrCheckInFuture        = errors.New("cannot check in a booking scheduled for a future date")
	ErrBookingClosed        = errors.New("booking is closed and cannot be edited")
	ErrInvalidBooking       = errors.New("invalid booking")
	ErrUnknownReference     = errors.New("referenced specialty, insurance or patient does not exist")
)

// CapacityExceededError reports a full slot.
type CapacityExceededError struct {
	Max     int
	Current int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("slot is full (%d of %d booked); use is_overbook to force", e.Current, e.Max)
}

// InvalidTransitionError names the current status and the rejected target.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move booking from %s to %s", e.From, e.To)
}
