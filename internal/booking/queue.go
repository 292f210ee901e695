package booking

import (
	"sort"
)

const DefaultNoShowRank = 5

type QueueOptions struct {
	// NoShowRank is 5 or 6; either way no-shows sort after done.
	// Zero means DefaultNoShowRank.
	NoShowRank int
	// ByAge puts older patients first within the same status and time.
	ByAge bool
}

// Rank is the front-desk priority of a status; lower comes first.
func Rank(s Status, noShowRank int) int {
	switch s {
	case StatusScheduled:
		return 1
	case StatusWaiting:
		return 2
	case StatusInProgress:
		return 3
	case StatusDone:
		return 4
	case StatusNoShow:
		if noShowRank <= 0 {
			return DefaultNoShowRank
		}
		return noShowRank
	default:
		return 10
	}
}

// OrderForDay returns the bookings sorted for the reception desk: status
// rank, then date and time, optionally patient age, then id. The input is
// left untouched.
func OrderForDay(bookings []Booking, opts QueueOptions) []Booking {
	out := make([]Booking, len(bookings))
	copy(out, bookings)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := Rank(a.Status, opts.NoShowRank), Rank(b.Status, opts.NoShowRank); ra != rb {
			return ra < rb
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if opts.ByAge {
			switch {
			case a.PatientBirthDate != nil && b.PatientBirthDate == nil:
				return true
			case a.PatientBirthDate == nil && b.PatientBirthDate != nil:
				return false
			case a.PatientBirthDate != nil && !a.PatientBirthDate.Equal(*b.PatientBirthDate):
				return a.PatientBirthDate.Before(*b.PatientBirthDate)
			}
		}
		return a.ID.String() < b.ID.String()
	})
	return out
}
