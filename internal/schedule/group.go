package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidGroup  = errors.New("invalid availability group")
	ErrGroupNotFound = errors.New("availability group not found")
	ErrBlockNotFound = errors.New("schedule block not found")
	ErrInvalidBlock  = errors.New("invalid schedule block")
	ErrSlotBlocked   = errors.New("slot is blocked in the agenda")

	ErrUnknownReference = errors.New("referenced professional, specialty or insurance does not exist")
)

func invalidGroup(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidGroup, fmt.Sprintf(format, args...))
}

// Validate checks a group before anything is written.
func (in GroupInput) Validate() error {
	if in.ProfessionalID == uuid.Nil {
		return invalidGroup("professional_id is required")
	}
	if in.SpecialtyID == uuid.Nil {
		return invalidGroup("specialty_id is required")
	}
	if len(in.DaysOfWeek) == 0 {
		return invalidGroup("at least one day of week is required")
	}
	for _, d := range in.DaysOfWeek {
		if d < 0 || d > 6 {
			return invalidGroup("day of week %d out of range 0-6", d)
		}
	}
	if in.ValidFrom.IsZero() || in.ValidUntil.IsZero() {
		return invalidGroup("valid_from and valid_until are required")
	}
	if Date(in.ValidUntil).Before(Date(in.ValidFrom)) {
		return invalidGroup("valid_until is before valid_from")
	}
	if in.Price.IsNegative() {
		return invalidGroup("price cannot be negative")
	}

	switch in.Kind {
	case KindFixed:
		if len(in.FixedTimes) == 0 {
			return invalidGroup("fixed groups need at least one time")
		}
		seen := make(map[TimeOfDay]bool, len(in.FixedTimes))
		for _, ft := range in.FixedTimes {
			if ft.Capacity <= 0 {
				return invalidGroup("capacity for %s must be positive", ft.Time)
			}
			if seen[ft.Time] {
				return invalidGroup("time %s listed twice", ft.Time)
			}
			seen[ft.Time] = true
		}
	case KindInterval, KindPeriod:
		if in.StartTime >= in.EndTime {
			return invalidGroup("start_time must be before end_time")
		}
		if in.IntervalMinutes <= 0 {
			return invalidGroup("interval_minutes must be positive")
		}
		if in.Kind == KindPeriod && in.Capacity <= 0 {
			return invalidGroup("capacity must be positive")
		}
	default:
		return invalidGroup("unknown kind %q", in.Kind)
	}
	return nil
}

// BuildRules expands a group into rule rows sharing groupID.
func BuildRules(groupID uuid.UUID, in GroupInput, now time.Time) ([]Rule, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	days := uniqueDays(in.DaysOfWeek)
	base := Rule{
		GroupID:        groupID,
		ProfessionalID: in.ProfessionalID,
		SpecialtyID:    in.SpecialtyID,
		InsuranceID:    in.InsuranceID,
		ValidFrom:      Date(in.ValidFrom),
		ValidUntil:     Date(in.ValidUntil),
		Active:         in.Active,
		Kind:           in.Kind,
		Price:          in.Price,
		CreatedAt:      now,
	}

	var rules []Rule
	for _, day := range days {
		if in.Kind == KindFixed {
			for _, ft := range in.FixedTimes {
				r := base
				r.ID = uuid.New()
				r.DayOfWeek = day
				r.StartTime = ft.Time
				r.EndTime = ft.Time
				r.CapacityPerSlot = ft.Capacity
				rules = append(rules, r)
			}
			continue
		}

		r := base
		r.ID = uuid.New()
		r.DayOfWeek = day
		r.StartTime = in.StartTime
		r.EndTime = in.EndTime
		r.IntervalMinutes = in.IntervalMinutes
		r.CapacityPerSlot = 1
		if in.Kind == KindPeriod {
			r.CapacityPerSlot = in.Capacity
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func uniqueDays(days []int) []int {
	seen := make(map[int]bool, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out
}

// Group is the read view of one weekly pattern.
type Group struct {
	GroupID    uuid.UUID   `json:"group_id"`
	DaysOfWeek []int       `json:"days_of_week"`
	FixedTimes []FixedTime `json:"fixed_times,omitempty"`
	Rules      []Rule      `json:"rules"`
}

// GroupFromRules folds the rows of one group into its summary.
func GroupFromRules(groupID uuid.UUID, rules []Rule) Group {
	g := Group{GroupID: groupID, Rules: rules}
	days := make([]int, 0, len(rules))
	seenTimes := make(map[TimeOfDay]bool)
	for _, r := range rules {
		days = append(days, r.DayOfWeek)
		if r.Kind == KindFixed && !seenTimes[r.StartTime] {
			seenTimes[r.StartTime] = true
			g.FixedTimes = append(g.FixedTimes, FixedTime{Time: r.StartTime, Capacity: r.CapacityPerSlot})
		}
	}
	g.DaysOfWeek = uniqueDays(days)
	sort.Slice(g.FixedTimes, func(i, j int) bool { return g.FixedTimes[i].Time < g.FixedTimes[j].Time })
	return g
}
