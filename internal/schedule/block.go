package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validate fills defaults and checks the block before it is stored.
func (b *Block) Validate() error {
	if strings.TrimSpace(b.Reason) == "" {
		return fmt.Errorf("%w: reason is required", ErrInvalidBlock)
	}
	if b.DateFrom.IsZero() || b.DateUntil.IsZero() {
		return fmt.Errorf("%w: date_from and date_until are required", ErrInvalidBlock)
	}
	if Date(b.DateUntil).Before(Date(b.DateFrom)) {
		return fmt.Errorf("%w: date_until is before date_from", ErrInvalidBlock)
	}
	if b.StartTime == 0 && b.EndTime == 0 {
		b.EndTime = NewTimeOfDay(23, 59)
	}
	if b.EndTime < b.StartTime {
		return fmt.Errorf("%w: end_time is before start_time", ErrInvalidBlock)
	}
	if b.Kind == "" {
		b.Kind = BlockManual
	}
	if b.Kind != BlockHoliday && b.Kind != BlockManual {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidBlock, b.Kind)
	}
	return nil
}

// Covers reports whether the block closes the given professional's slot.
// Time bounds are inclusive; yearly blocks compare month and day only.
func (b Block) Covers(professionalID uuid.UUID, date time.Time, at TimeOfDay) bool {
	if b.ProfessionalID != nil && *b.ProfessionalID != professionalID {
		return false
	}
	if at < b.StartTime || at > b.EndTime {
		return false
	}

	d := Date(date)
	if !b.Yearly {
		return !d.Before(Date(b.DateFrom)) && !d.After(Date(b.DateUntil))
	}

	day := monthDay(d)
	from, until := monthDay(b.DateFrom), monthDay(b.DateUntil)
	if from <= until {
		return day >= from && day <= until
	}
	// wraps the new year, e.g. Dec 24 to Jan 2
	return day >= from || day <= until
}

func monthDay(t time.Time) int {
	return int(t.Month())*100 + t.Day()
}
