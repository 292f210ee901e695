package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-scheduling/internal/billing"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/settings"
)

var (
	monday  = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	nineAM  = schedule.NewTimeOfDay(9, 0)
	testNow = time.Date(2024, 3, 4, 8, 30, 0, 0, time.UTC)
)

type ruleList []schedule.Rule

func (r ruleList) ListApplicableRules(context.Context, uuid.UUID, uuid.UUID, time.Time) ([]schedule.Rule, error) {
	return r, nil
}

type blockerFunc func(uuid.UUID, time.Time, schedule.TimeOfDay) bool

func (f blockerFunc) IsBlocked(_ context.Context, p uuid.UUID, d time.Time, at schedule.TimeOfDay) (bool, error) {
	return f(p, d, at), nil
}

type sentMessage struct {
	kind, phone, text string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (r *recordingNotifier) Dispatch(_ context.Context, kind, phone, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{kind, phone, text})
}

type recordingPublisher struct {
	keys []string
}

func (p *recordingPublisher) PublishJSON(_ context.Context, key string, _ any) error {
	p.keys = append(p.keys, key)
	return nil
}

type fixture struct {
	svc          *Service
	store        *memStore
	notifier     *recordingNotifier
	publisher    *recordingPublisher
	settings     *settings.MemoryStore
	professional uuid.UUID
	specialty    uuid.UUID
}

func newFixture(t *testing.T, rules ...schedule.Rule) *fixture {
	t.Helper()
	f := &fixture{
		store:     newMemStore(),
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		settings:  settings.NewMemoryStore(settings.Defaults()),
		specialty: uuid.New(),
	}
	f.professional = f.store.addProfessional("Dra. Helena")

	f.svc = NewService(Deps{
		Store:     f.store,
		Rules:     ruleList(rules),
		Blocks:    blockerFunc(func(uuid.UUID, time.Time, schedule.TimeOfDay) bool { return false }),
		Settings:  f.settings,
		Notifier:  f.notifier,
		Publisher: f.publisher,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, Options{ClinicName: "Clínica Teste"})
	f.svc.now = func() time.Time { return testNow }
	return f
}

func (f *fixture) book(t *testing.T, at schedule.TimeOfDay, overbook bool) (*Booking, error) {
	t.Helper()
	patient := f.store.addPatient("Paciente "+uuid.NewString()[:4], "11999990000", nil)
	return f.svc.CreateBooking(context.Background(), CreateInput{
		ProfessionalID: f.professional,
		SpecialtyID:    f.specialty,
		PatientID:      patient,
		Date:           monday,
		Time:           at,
		IsOverbook:     overbook,
	})
}

func rule(kind schedule.Kind, start, end schedule.TimeOfDay, capacity int) schedule.Rule {
	return schedule.Rule{
		ID:              uuid.New(),
		DayOfWeek:       1,
		ValidFrom:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil:      time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Active:          true,
		Kind:            kind,
		StartTime:       start,
		EndTime:         end,
		IntervalMinutes: 15,
		CapacityPerSlot: capacity,
		Price:           decimal.RequireFromString("150.00"),
	}
}

func TestCreateBooking_MondayFixedSlot(t *testing.T) {
	f := newFixture(t, rule(schedule.KindFixed, nineAM, nineAM, 2))

	if _, err := f.book(t, nineAM, false); err != nil {
		t.Fatalf("booking A: %v", err)
	}
	if _, err := f.book(t, nineAM, false); err != nil {
		t.Fatalf("booking B: %v", err)
	}

	_, err := f.book(t, nineAM, false)
	var capErr *CapacityExceededError
	if !errors.As(err, &capErr) {
		t.Fatalf("booking C: expected CapacityExceededError, got %v", err)
	}
	if capErr.Max != 2 || capErr.Current != 2 {
		t.Fatalf("booking C: got max=%d current=%d, want 2/2", capErr.Max, capErr.Current)
	}

	c, err := f.book(t, nineAM, true)
	if err != nil {
		t.Fatalf("booking C overbook: %v", err)
	}
	if !c.IsOverbook || c.Status != StatusScheduled {
		t.Fatalf("unexpected overbook booking %+v", c)
	}
}

func TestCreateBooking_PeriodPoolsCapacity(t *testing.T) {
	f := newFixture(t, rule(schedule.KindPeriod, nineAM, schedule.NewTimeOfDay(10, 0), 5))

	for i, m := range []int{0, 10, 10, 30, 50} {
		if _, err := f.book(t, schedule.NewTimeOfDay(9, m), false); err != nil {
			t.Fatalf("booking %d: %v", i+1, err)
		}
	}
	var capErr *CapacityExceededError
	if _, err := f.book(t, schedule.NewTimeOfDay(9, 45), false); !errors.As(err, &capErr) {
		t.Fatalf("6th booking in the period: expected CapacityExceededError, got %v", err)
	}
	if _, err := f.book(t, schedule.NewTimeOfDay(10, 0), false); err != nil {
		t.Fatalf("10:00 is outside the period: %v", err)
	}
}

func TestCreateBooking_IntervalOnePerTime(t *testing.T) {
	f := newFixture(t, rule(schedule.KindInterval, nineAM, schedule.NewTimeOfDay(10, 0), 1))

	if _, err := f.book(t, nineAM, false); err != nil {
		t.Fatal(err)
	}
	var capErr *CapacityExceededError
	if _, err := f.book(t, nineAM, false); !errors.As(err, &capErr) {
		t.Fatalf("second booking at 09:00: expected CapacityExceededError, got %v", err)
	}
	if _, err := f.book(t, schedule.NewTimeOfDay(9, 15), false); err != nil {
		t.Fatalf("09:15 is its own slot: %v", err)
	}
}

func TestCreateBooking_DefaultsValueToRulePrice(t *testing.T) {
	f := newFixture(t, rule(schedule.KindFixed, nineAM, nineAM, 2))
	b, err := f.book(t, nineAM, false)
	if err != nil {
		t.Fatal(err)
	}
	if !b.Value.Equal(decimal.RequireFromString("150")) {
		t.Fatalf("value: got %s, want 150", b.Value)
	}
}

func TestCancelFreesTheSeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, rule(schedule.KindFixed, nineAM, nineAM, 1))

	b, err := f.book(t, nineAM, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Cancel(ctx, b.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	v := schedule.NewValidator(ruleList{rule(schedule.KindFixed, nineAM, nineAM, 1)}, f.store)
	state, err := v.Check(ctx, f.professional, f.specialty, monday, nineAM)
	if err != nil {
		t.Fatal(err)
	}
	if state.Current != 0 || !state.Available {
		t.Fatalf("cancelled booking still counted: %+v", state)
	}
	if _, err := f.book(t, nineAM, false); err != nil {
		t.Fatalf("seat should be free again: %v", err)
	}

	got, err := f.svc.GetBooking(ctx, b.ID)
	if err != nil || got.Status != StatusCancelled {
		t.Fatalf("cancelled booking should still be readable, got %v (%v)", got, err)
	}
}

func TestCreateBooking_Duplicate(t *testing.T) {
	f := newFixture(t, rule(schedule.KindFixed, nineAM, nineAM, 3))
	patient := f.store.addPatient("Ana", "11988887777", nil)
	in := CreateInput{ProfessionalID: f.professional, SpecialtyID: f.specialty, PatientID: patient, Date: monday, Time: nineAM}

	if _, err := f.svc.CreateBooking(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CreateBooking(context.Background(), in); !errors.Is(err, ErrDuplicateBooking) {
		t.Fatalf("expected ErrDuplicateBooking, got %v", err)
	}
	in.IsOverbook = true
	if _, err := f.svc.CreateBooking(context.Background(), in); !errors.Is(err, ErrDuplicateBooking) {
		t.Fatalf("overbook does not bypass uniqueness, got %v", err)
	}
}

func TestCreateBooking_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	patient := f.store.addPatient("Ana", "11988887777", nil)

	_, err := f.svc.CreateBooking(ctx, CreateInput{ProfessionalID: f.professional, SpecialtyID: f.specialty, PatientID: uuid.New(), Date: monday, Time: nineAM})
	if !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
	_, err = f.svc.CreateBooking(ctx, CreateInput{ProfessionalID: uuid.New(), SpecialtyID: f.specialty, PatientID: patient, Date: monday, Time: nineAM})
	if !errors.Is(err, ErrProfessionalNotFound) {
		t.Fatalf("expected ErrProfessionalNotFound, got %v", err)
	}

	f.svc.blocks = blockerFunc(func(uuid.UUID, time.Time, schedule.TimeOfDay) bool { return true })
	_, err = f.svc.CreateBooking(ctx, CreateInput{ProfessionalID: f.professional, SpecialtyID: f.specialty, PatientID: patient, Date: monday, Time: nineAM, IsOverbook: true})
	if !errors.Is(err, schedule.ErrSlotBlocked) {
		t.Fatalf("expected ErrSlotBlocked, got %v", err)
	}
	if len(f.store.bookings) != 0 {
		t.Fatal("rejected bookings must not be stored")
	}
}

func TestCreateBooking_Notifications(t *testing.T) {
	f := newFixture(t)
	if _, err := f.book(t, nineAM, false); err != nil {
		t.Fatal(err)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].kind != "confirmation" {
		t.Fatalf("expected one confirmation, got %+v", f.notifier.sent)
	}
	if len(f.publisher.keys) != 1 || f.publisher.keys[0] != "booking.created" {
		t.Fatalf("expected booking.created event, got %v", f.publisher.keys)
	}

	s := settings.Defaults()
	s.GlobalEnabled = false
	if _, err := f.settings.Save(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if _, err := f.book(t, schedule.NewTimeOfDay(9, 30), false); err != nil {
		t.Fatal(err)
	}
	if len(f.notifier.sent) != 1 {
		t.Fatal("global switch off must silence confirmations")
	}
}

func TestStatusMachine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.book(t, nineAM, false)
	if err != nil {
		t.Fatal(err)
	}

	var transErr *InvalidTransitionError
	if _, err := f.svc.RevertCheckIn(ctx, b.ID, RevertInput{}); !errors.As(err, &transErr) {
		t.Fatalf("revert from scheduled: expected InvalidTransitionError, got %v", err)
	}
	if transErr.From != StatusScheduled || transErr.To != StatusScheduled {
		t.Fatalf("error should name both statuses, got %+v", transErr)
	}

	if _, _, err := f.svc.CheckIn(ctx, b.ID, CheckInInput{}); err != nil {
		t.Fatalf("check in: %v", err)
	}
	if _, err := f.svc.Start(ctx, b.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.svc.MarkNoShow(ctx, b.ID); !errors.As(err, &transErr) {
		t.Fatalf("no_show from in_progress: expected InvalidTransitionError, got %v", err)
	}
	if _, err := f.svc.Cancel(ctx, b.ID); !errors.As(err, &transErr) {
		t.Fatalf("cancel from in_progress: expected InvalidTransitionError, got %v", err)
	}

	got, _ := f.svc.GetBooking(ctx, b.ID)
	if got.Status != StatusInProgress {
		t.Fatalf("rejected moves must not persist, status is %s", got.Status)
	}

	if _, err := f.svc.Finish(ctx, b.ID); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if _, err := f.svc.RevertCheckIn(ctx, b.ID, RevertInput{}); !errors.As(err, &transErr) {
		t.Fatal("revert from done needs the correction flag")
	}
	reverted, err := f.svc.RevertCheckIn(ctx, b.ID, RevertInput{Correction: true})
	if err != nil {
		t.Fatalf("correction revert: %v", err)
	}
	if reverted.Status != StatusScheduled || reverted.ArrivedAt != nil || reverted.StartedAt != nil {
		t.Fatalf("revert should clear attendance, got %+v", reverted)
	}
}

func TestCancelReachable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	prepare := map[Status]func(id uuid.UUID) error{
		StatusScheduled: func(uuid.UUID) error { return nil },
		StatusWaiting: func(id uuid.UUID) error {
			_, _, err := f.svc.CheckIn(ctx, id, CheckInInput{})
			return err
		},
		StatusNoShow: func(id uuid.UUID) error {
			_, err := f.svc.MarkNoShow(ctx, id)
			return err
		},
	}

	minute := 0
	for from, prep := range prepare {
		minute += 10
		b, err := f.book(t, schedule.NewTimeOfDay(9, minute), false)
		if err != nil {
			t.Fatal(err)
		}
		if err := prep(b.ID); err != nil {
			t.Fatalf("%s: prepare: %v", from, err)
		}
		if _, err := f.svc.Cancel(ctx, b.ID); err != nil {
			t.Fatalf("cancel from %s: %v", from, err)
		}
	}
}

func TestCheckIn_BillingInSameTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.book(t, nineAM, false)
	if err != nil {
		t.Fatal(err)
	}

	amount := decimal.RequireFromString("200.00")
	got, inv, err := f.svc.CheckIn(ctx, b.ID, CheckInInput{Amount: &amount, PaymentMethod: billing.MethodPix})
	if err != nil {
		t.Fatalf("check in: %v", err)
	}
	if got.Status != StatusWaiting || got.ArrivedAt == nil {
		t.Fatalf("check in should set waiting and arrival, got %+v", got)
	}
	if !inv.Amount.Equal(amount) || inv.PaymentMethod != billing.MethodPix {
		t.Fatalf("unexpected invoice %+v", inv)
	}

	// second check-in refreshes billing only
	paid := decimal.RequireFromString("180.00")
	if _, inv, err = f.svc.CheckIn(ctx, b.ID, CheckInInput{Amount: &paid, PaymentMethod: billing.MethodCash, Paid: true}); err != nil {
		t.Fatalf("re-check-in: %v", err)
	}
	if !inv.Paid || !f.store.invoices[b.ID].Amount.Equal(paid) {
		t.Fatalf("invoice not refreshed: %+v", f.store.invoices[b.ID])
	}

	if _, err := f.svc.RevertCheckIn(ctx, b.ID, RevertInput{}); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.store.invoices[b.ID]; !ok {
		t.Fatal("paid invoice must survive a revert")
	}
}

func TestRevert_DropsUnpaidInvoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.book(t, nineAM, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.svc.CheckIn(ctx, b.ID, CheckInInput{PaymentMethod: "cheque"}); !errors.Is(err, billing.ErrInvalidPaymentMethod) {
		t.Fatalf("expected ErrInvalidPaymentMethod, got %v", err)
	}

	if _, _, err := f.svc.CheckIn(ctx, b.ID, CheckInInput{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.RevertCheckIn(ctx, b.ID, RevertInput{}); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.store.invoices[b.ID]; ok {
		t.Fatal("unpaid invoice should be deleted on revert")
	}
}

func TestCheckIn_FutureDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	patient := f.store.addPatient("Ana", "11988887777", nil)

	b, err := f.svc.CreateBooking(ctx, CreateInput{
		ProfessionalID: f.professional, SpecialtyID: f.specialty, PatientID: patient,
		Date: monday.AddDate(0, 0, 1), Time: nineAM,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.svc.CheckIn(ctx, b.ID, CheckInInput{}); !errors.Is(err, ErrCheckInFuture) {
		t.Fatalf("expected ErrCheckInFuture, got %v", err)
	}
	if len(f.store.invoices) != 0 {
		t.Fatal("no invoice should be written for a rejected check-in")
	}
}

func TestUpdateBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, rule(schedule.KindFixed, nineAM, nineAM, 1))

	b, err := f.book(t, nineAM, false)
	if err != nil {
		t.Fatal(err)
	}
	notes := "trazer exames"
	ten := schedule.NewTimeOfDay(10, 0)
	got, err := f.svc.UpdateBooking(ctx, b.ID, UpdateInput{Notes: &notes, Time: &ten})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Notes != notes || got.Time != ten {
		t.Fatalf("update not applied: %+v", got)
	}

	if _, err := f.svc.Cancel(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.UpdateBooking(ctx, b.ID, UpdateInput{Notes: &notes}); !errors.Is(err, ErrBookingClosed) {
		t.Fatalf("expected ErrBookingClosed, got %v", err)
	}
}

func TestListBookings_DefaultsToTodayWithoutCancelled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	early, _ := f.book(t, schedule.NewTimeOfDay(8, 0), false)
	late, _ := f.book(t, schedule.NewTimeOfDay(10, 0), false)
	cancelled, _ := f.book(t, schedule.NewTimeOfDay(11, 0), false)
	if _, _, err := f.svc.CheckIn(ctx, early.ID, CheckInInput{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Cancel(ctx, cancelled.ID); err != nil {
		t.Fatal(err)
	}

	list, err := f.svc.ListBookings(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 bookings, got %d", len(list))
	}
	if list[0].ID != late.ID || list[1].ID != early.ID {
		t.Fatal("scheduled bookings come before waiting ones")
	}

	all, _ := f.svc.ListBookings(ctx, Filter{IncludeCancelled: true})
	if len(all) != 3 || all[2].ID != cancelled.ID {
		t.Fatal("cancelled bookings sort last when included")
	}
}

func TestEventsAreLogged(t *testing.T) {
	f := newFixture(t)
	b, err := f.book(t, nineAM, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Cancel(context.Background(), b.ID); err != nil {
		t.Fatal(err)
	}
	if len(f.store.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(f.store.events))
	}
	if f.store.events[0].EventType != EventBookingCreated || f.store.events[1].EventType != EventBookingCancelled {
		t.Fatalf("unexpected events %s, %s", f.store.events[0].EventType, f.store.events[1].EventType)
	}
}

func TestCreateBooking_UnknownSpecialty(t *testing.T) {
	f := newFixture(t)
	f.store.specialties = map[uuid.UUID]bool{f.specialty: true}

	patient := f.store.addPatient("Paciente", "11999990000", nil)
	_, err := f.svc.CreateBooking(context.Background(), CreateInput{
		ProfessionalID: f.professional,
		SpecialtyID:    uuid.New(),
		PatientID:      patient,
		Date:           monday,
		Time:           nineAM,
	})
	if !errors.Is(err, ErrUnknownReference) {
		t.Fatalf("expected ErrUnknownReference, got %v", err)
	}
	if len(f.store.bookings) != 0 || len(f.store.events) != 0 {
		t.Fatal("nothing should be stored for an unknown specialty")
	}
}

func TestUpdateBooking_MoveResetsReminder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.book(t, nineAM, false)
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := f.store.MarkReminderSent(ctx, b.ID); !ok {
		t.Fatal("expected reminder to be marked")
	}

	notes := "retorno"
	got, err := f.svc.UpdateBooking(ctx, b.ID, UpdateInput{Notes: &notes, Time: &nineAM})
	if err != nil {
		t.Fatal(err)
	}
	if !got.ReminderSent {
		t.Fatal("editing notes at the same slot keeps the reminder flag")
	}

	tuesday := monday.AddDate(0, 0, 1)
	got, err = f.svc.UpdateBooking(ctx, b.ID, UpdateInput{Date: &tuesday})
	if err != nil {
		t.Fatal(err)
	}
	if got.ReminderSent {
		t.Fatal("moving the booking must clear the reminder flag")
	}
	candidates, _ := f.store.ReminderCandidates(ctx, tuesday)
	if len(candidates) != 1 || candidates[0].ID != b.ID {
		t.Fatalf("moved booking should be a reminder candidate again, got %d", len(candidates))
	}
}

func TestListBookings_MonthWithoutYear(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	current, err := f.book(t, nineAM, false)
	if err != nil {
		t.Fatal(err)
	}
	// same month one year earlier
	old := Booking{
		ID:             uuid.New(),
		ProfessionalID: f.professional,
		SpecialtyID:    f.specialty,
		PatientID:      current.PatientID,
		Date:           monday.AddDate(-1, 0, 0),
		Time:           nineAM,
		Status:         StatusDone,
	}
	f.store.bookings[old.ID] = old

	list, err := f.svc.ListBookings(ctx, Filter{Month: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != current.ID {
		t.Fatalf("a month alone should mean the current year, got %d bookings", len(list))
	}

	list, err = f.svc.ListBookings(ctx, Filter{Month: 3, Year: 2023})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != old.ID {
		t.Fatalf("expected only the 2023 booking, got %d", len(list))
	}
}

func TestReminderStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, _ := f.book(t, nineAM, false)
	f.book(t, schedule.NewTimeOfDay(10, 0), false)
	c, _ := f.book(t, schedule.NewTimeOfDay(11, 0), false)
	f.store.MarkReminderSent(ctx, a.ID)
	if _, err := f.svc.Cancel(ctx, c.ID); err != nil {
		t.Fatal(err)
	}

	st, err := f.store.ReminderStats(ctx, monday)
	if err != nil {
		t.Fatal(err)
	}
	if st != (ReminderStats{Total: 2, Sent: 1, Pending: 1}) {
		t.Fatalf("unexpected stats %+v", st)
	}
}
