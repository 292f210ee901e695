package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBlockCovers_ClinicWide(t *testing.T) {
	b := Block{DateFrom: day(2024, 3, 4), DateUntil: day(2024, 3, 8), Reason: "reforma"}
	if err := b.Validate(); err != nil {
		t.Fatal(err)
	}

	if !b.Covers(uuid.New(), day(2024, 3, 6), NewTimeOfDay(23, 59)) {
		t.Fatal("whole-day block should cover 23:59")
	}
	if b.Covers(uuid.New(), day(2024, 3, 9), NewTimeOfDay(9, 0)) {
		t.Fatal("date after the range should not be covered")
	}
	if b.Kind != BlockManual {
		t.Fatalf("kind defaults to manual, got %q", b.Kind)
	}
}

func TestBlockCovers_ProfessionalAndHours(t *testing.T) {
	prof := uuid.New()
	b := Block{
		ProfessionalID: &prof,
		DateFrom:       day(2024, 3, 4),
		DateUntil:      day(2024, 3, 4),
		StartTime:      NewTimeOfDay(13, 0),
		EndTime:        NewTimeOfDay(15, 0),
		Reason:         "reunião",
	}

	if !b.Covers(prof, day(2024, 3, 4), NewTimeOfDay(15, 0)) {
		t.Fatal("end time is inclusive")
	}
	if b.Covers(prof, day(2024, 3, 4), NewTimeOfDay(12, 59)) {
		t.Fatal("time before the block is free")
	}
	if b.Covers(uuid.New(), day(2024, 3, 4), NewTimeOfDay(14, 0)) {
		t.Fatal("block applies to one professional only")
	}
}

func TestBlockCovers_YearlyWrapsNewYear(t *testing.T) {
	b := Block{DateFrom: day(2023, 12, 24), DateUntil: day(2024, 1, 2), Yearly: true, Kind: BlockHoliday, Reason: "recesso"}
	if err := b.Validate(); err != nil {
		t.Fatal(err)
	}

	for _, d := range []time.Time{day(2026, 12, 31), day(2027, 1, 1), day(2025, 12, 24)} {
		if !b.Covers(uuid.New(), d, NewTimeOfDay(10, 0)) {
			t.Fatalf("%s should be covered", FormatDate(d))
		}
	}
	if b.Covers(uuid.New(), day(2026, 1, 3), NewTimeOfDay(10, 0)) {
		t.Fatal("Jan 3 should be free")
	}
}

func TestBlockValidate(t *testing.T) {
	b := Block{DateFrom: day(2024, 3, 4), DateUntil: day(2024, 3, 1), Reason: "x"}
	if err := b.Validate(); !errors.Is(err, ErrInvalidBlock) {
		t.Fatalf("expected ErrInvalidBlock, got %v", err)
	}
	b = Block{DateFrom: day(2024, 3, 4), DateUntil: day(2024, 3, 4)}
	if err := b.Validate(); !errors.Is(err, ErrInvalidBlock) {
		t.Fatalf("missing reason: expected ErrInvalidBlock, got %v", err)
	}
}
