package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// RuleReader loads the rules that may apply to a professional/specialty on a date.
type RuleReader interface {
	ListApplicableRules(ctx context.Context, professionalID, specialtyID uuid.UUID, date time.Time) ([]Rule, error)
}

// SlotCounter counts live bookings (scheduled, waiting, in_progress, done)
// inside the window described by c.
type SlotCounter interface {
	CountLive(ctx context.Context, professionalID uuid.UUID, date time.Time, c Capacity) (int, error)
}

// SortBySpecificity orders rules fixed > period > interval, then by creation
// time and id, so overlapping rules always resolve the same way.
func SortBySpecificity(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Kind.specificity() != b.Kind.specificity() {
			return a.Kind.specificity() < b.Kind.specificity()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

// MatchCapacity picks the first applicable rule for the slot and returns the
// capacity it grants. Without a match the slot holds a single booking.
// A fixed rule only covers its exact start time, so 09:15 next to a fixed
// 09:00 rule is unmatched and gets 1, not 0.
func MatchCapacity(rules []Rule, date time.Time, at TimeOfDay) Capacity {
	weekday := Weekday(date)

	candidates := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if !r.Active || r.DayOfWeek != weekday || !r.ValidOn(date) {
			continue
		}
		candidates = append(candidates, r)
	}
	SortBySpecificity(candidates)

	for i := range candidates {
		r := candidates[i]
		switch r.Kind {
		case KindFixed:
			if r.StartTime == at {
				return Capacity{Max: r.CapacityPerSlot, From: at, To: at, Rule: &r}
			}
		case KindPeriod:
			if r.StartTime <= at && at < r.EndTime {
				return Capacity{Max: r.CapacityPerSlot, From: r.StartTime, To: r.EndTime, Pooled: true, Rule: &r}
			}
		case KindInterval:
			if r.StartTime <= at && at < r.EndTime {
				return Capacity{Max: 1, From: at, To: at, Rule: &r}
			}
		}
	}

	return Capacity{Max: 1, From: at, To: at}
}

// SlotState is a capacity snapshot for one slot.
type SlotState struct {
	Capacity  Capacity `json:"capacity"`
	Current   int      `json:"current"`
	Available bool     `json:"available"`
}

type Validator struct {
	rules   RuleReader
	counter SlotCounter
}

func NewValidator(rules RuleReader, counter SlotCounter) *Validator {
	return &Validator{rules: rules, counter: counter}
}

// CapacityFor resolves the capacity window for a requested slot.
func (v *Validator) CapacityFor(ctx context.Context, professionalID, specialtyID uuid.UUID, date time.Time, at TimeOfDay) (Capacity, error) {
	rules, err := v.rules.ListApplicableRules(ctx, professionalID, specialtyID, Date(date))
	if err != nil {
		return Capacity{}, fmt.Errorf("load availability rules: %w", err)
	}
	return MatchCapacity(rules, date, at), nil
}

// Check counts the live bookings in the slot's window against its capacity.
func (v *Validator) Check(ctx context.Context, professionalID, specialtyID uuid.UUID, date time.Time, at TimeOfDay) (SlotState, error) {
	c, err := v.CapacityFor(ctx, professionalID, specialtyID, date, at)
	if err != nil {
		return SlotState{}, err
	}
	current, err := v.counter.CountLive(ctx, professionalID, Date(date), c)
	if err != nil {
		return SlotState{}, fmt.Errorf("count live bookings: %w", err)
	}
	return SlotState{Capacity: c, Current: current, Available: current < c.Max}, nil
}

func (v *Validator) IsSlotAvailable(ctx context.Context, professionalID, specialtyID uuid.UUID, date time.Time, at TimeOfDay) (bool, error) {
	state, err := v.Check(ctx, professionalID, specialtyID, date, at)
	if err != nil {
		return false, err
	}
	return state.Available, nil
}
