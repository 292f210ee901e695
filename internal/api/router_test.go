package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-scheduling/internal/billing"
	"github.com/hackgods/clinic-scheduling/internal/booking"
	"github.com/hackgods/clinic-scheduling/internal/reminder"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/settings"
	"github.com/hackgods/clinic-scheduling/internal/triage"
)

type fakeBookings struct {
	created booking.CreateInput
	filter  booking.Filter
	err     error
	item    *booking.Booking
}

func (f *fakeBookings) result() (*booking.Booking, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.item, nil
}

func (f *fakeBookings) CreateBooking(_ context.Context, in booking.CreateInput) (*booking.Booking, error) {
	f.created = in
	return f.result()
}
func (f *fakeBookings) UpdateBooking(context.Context, uuid.UUID, booking.UpdateInput) (*booking.Booking, error) {
	return f.result()
}
func (f *fakeBookings) GetBooking(context.Context, uuid.UUID) (*booking.Booking, error) {
	return f.result()
}
func (f *fakeBookings) ListBookings(_ context.Context, flt booking.Filter) ([]booking.Booking, error) {
	f.filter = flt
	if f.err != nil {
		return nil, f.err
	}
	return []booking.Booking{*f.item}, nil
}
func (f *fakeBookings) CheckIn(context.Context, uuid.UUID, booking.CheckInInput) (*booking.Booking, *billing.Invoice, error) {
	b, err := f.result()
	if err != nil {
		return nil, nil, err
	}
	return b, &billing.Invoice{BookingID: b.ID, Amount: b.Value, PaymentMethod: billing.MethodPending}, nil
}
func (f *fakeBookings) Start(context.Context, uuid.UUID) (*booking.Booking, error)  { return f.result() }
func (f *fakeBookings) Finish(context.Context, uuid.UUID) (*booking.Booking, error) { return f.result() }
func (f *fakeBookings) RevertCheckIn(context.Context, uuid.UUID, booking.RevertInput) (*booking.Booking, error) {
	return f.result()
}
func (f *fakeBookings) MarkNoShow(context.Context, uuid.UUID) (*booking.Booking, error) {
	return f.result()
}
func (f *fakeBookings) Cancel(context.Context, uuid.UUID) (*booking.Booking, error) { return f.result() }

type fakeCapacity struct{ state schedule.SlotState }

func (f fakeCapacity) Check(context.Context, uuid.UUID, uuid.UUID, time.Time, schedule.TimeOfDay) (schedule.SlotState, error) {
	return f.state, nil
}

type fakeReminders struct{ forced bool }

func (f *fakeReminders) Run(_ context.Context, ro reminder.RunOptions) (reminder.Result, error) {
	f.forced = ro.Force
	return reminder.Result{Date: "2024-03-05", Candidates: 2, Sent: 2}, nil
}

func (f *fakeReminders) Status(context.Context) (reminder.Status, error) {
	return reminder.Status{
		Enabled:   true,
		SendAfter: "08:00",
		Today:     reminder.DayStats{Date: "2024-03-04", ReminderStats: booking.ReminderStats{Total: 4, Sent: 4}},
		Tomorrow:  reminder.DayStats{Date: "2024-03-05", ReminderStats: booking.ReminderStats{Total: 3, Sent: 1, Pending: 2}},
	}, nil
}

// failingSchedule overrides the group writes of an otherwise unused service.
type failingSchedule struct {
	ScheduleService
	err error
}

func (f failingSchedule) CreateGroup(context.Context, schedule.GroupInput) (uuid.UUID, []schedule.Rule, error) {
	return uuid.Nil, nil, f.err
}

type fakeTriage struct{ err error }

func (f fakeTriage) Save(_ context.Context, id uuid.UUID, in triage.Input) (*triage.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := triage.Build(id, in)
	return &r, nil
}
func (f fakeTriage) Get(context.Context, uuid.UUID) (*triage.Record, error) {
	return nil, triage.ErrTriageNotFound
}

func sampleBooking() *booking.Booking {
	return &booking.Booking{
		ID:     uuid.New(),
		Date:   time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Time:   schedule.NewTimeOfDay(9, 0),
		Status: booking.StatusScheduled,
		Value:  decimal.NewFromInt(150),
	}
}

func newTestRouter(cfg RouterConfig) http.Handler {
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(cfg)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateBooking_Created(t *testing.T) {
	fb := &fakeBookings{item: sampleBooking()}
	h := newTestRouter(RouterConfig{Bookings: fb})

	body := `{"professional_id":"` + uuid.NewString() + `","specialty_id":"` + uuid.NewString() +
		`","patient_id":"` + uuid.NewString() + `","date":"2024-03-04","time":"09:00"}`
	rec := do(t, h, http.MethodPost, "/bookings", body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp BookingResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Date != "2024-03-04" || resp.Time != "09:00" {
		t.Fatalf("unexpected date/time in response: %s %s", resp.Date, resp.Time)
	}
	if fb.created.Time != schedule.NewTimeOfDay(9, 0) {
		t.Fatalf("time not passed through: %v", fb.created.Time)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestCreateBooking_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		want string
	}{
		{"capacity", &booking.CapacityExceededError{Max: 2, Current: 2}, http.StatusConflict, "slot_full"},
		{"duplicate", booking.ErrDuplicateBooking, http.StatusConflict, "duplicate_booking"},
		{"blocked", schedule.ErrSlotBlocked, http.StatusUnprocessableEntity, "slot_blocked"},
		{"patient", booking.ErrPatientNotFound, http.StatusNotFound, "patient_not_found"},
		{"unknown specialty", fmt.Errorf("create booking: %w", booking.ErrUnknownReference), http.StatusNotFound, "unknown_reference"},
		{"invalid", booking.ErrInvalidBooking, http.StatusBadRequest, "invalid_request"},
		{"unknown", io.ErrUnexpectedEOF, http.StatusInternalServerError, "internal_error"},
	}

	body := `{"professional_id":"` + uuid.NewString() + `","specialty_id":"` + uuid.NewString() +
		`","patient_id":"` + uuid.NewString() + `","date":"2024-03-04","time":"09:00"}`

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := newTestRouter(RouterConfig{Bookings: &fakeBookings{err: c.err}})
			rec := do(t, h, http.MethodPost, "/bookings", body)
			if rec.Code != c.code {
				t.Fatalf("expected %d, got %d", c.code, rec.Code)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Error != c.want {
				t.Fatalf("expected %s, got %s", c.want, resp.Error)
			}
			if c.name == "capacity" && (resp.Max == nil || *resp.Max != 2) {
				t.Fatal("capacity errors must carry max")
			}
		})
	}
}

func TestCreateBooking_BadInput(t *testing.T) {
	h := newTestRouter(RouterConfig{Bookings: &fakeBookings{item: sampleBooking()}})

	rec := do(t, h, http.MethodPost, "/bookings", `{"date":"04/03/2024","time":"09:00"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/bookings", `{`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rec.Code)
	}
}

func TestListBookings_Filters(t *testing.T) {
	fb := &fakeBookings{item: sampleBooking()}
	h := newTestRouter(RouterConfig{Bookings: fb})

	prof := uuid.New()
	rec := do(t, h, http.MethodGet, "/bookings?date=2024-03-04&professional="+prof.String()+"&status=no_show&queue=age", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if fb.filter.Date == nil || schedule.FormatDate(*fb.filter.Date) != "2024-03-04" {
		t.Fatal("date filter not parsed")
	}
	if fb.filter.ProfessionalID == nil || *fb.filter.ProfessionalID != prof {
		t.Fatal("professional filter not parsed")
	}
	if fb.filter.Status == nil || *fb.filter.Status != booking.StatusNoShow || !fb.filter.ByAge {
		t.Fatal("status or queue filter not parsed")
	}

	rec = do(t, h, http.MethodGet, "/bookings?status=bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}

	// the service fills in the year when only a month is given
	rec = do(t, h, http.MethodGet, "/bookings?month=3", "")
	if rec.Code != http.StatusOK || fb.filter.Month != 3 || fb.filter.Date != nil {
		t.Fatalf("month filter not passed through: %d %+v", rec.Code, fb.filter)
	}
	rec = do(t, h, http.MethodGet, "/bookings?month=13", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for month 13, got %d", rec.Code)
	}
}

func TestTransitions(t *testing.T) {
	id := uuid.NewString()
	h := newTestRouter(RouterConfig{Bookings: &fakeBookings{
		err: &booking.InvalidTransitionError{From: booking.StatusInProgress, To: booking.StatusNoShow},
	}})
	rec := do(t, h, http.MethodPost, "/bookings/"+id+"/no_show", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	h = newTestRouter(RouterConfig{Bookings: &fakeBookings{item: sampleBooking()}})
	rec = do(t, h, http.MethodPost, "/bookings/"+id+"/check_in", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp CheckInResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Invoice == nil || resp.Invoice.PaymentMethod != billing.MethodPending {
		t.Fatal("expected a pending invoice in the check-in response")
	}

	rec = do(t, h, http.MethodDelete, "/bookings/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}
}

func TestSlotCapacity(t *testing.T) {
	h := newTestRouter(RouterConfig{Capacity: fakeCapacity{state: schedule.SlotState{
		Capacity:  schedule.Capacity{Max: 3, From: schedule.NewTimeOfDay(8, 0), To: schedule.NewTimeOfDay(12, 0), Pooled: true},
		Current:   1,
		Available: true,
	}}})

	path := "/slots/capacity?professional=" + uuid.NewString() + "&specialty=" + uuid.NewString() + "&date=2024-03-04&time=09:00"
	rec := do(t, h, http.MethodGet, path, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp SlotCapacityResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Max != 3 || resp.Current != 1 || !resp.Pooled || resp.From != "08:00" {
		t.Fatalf("unexpected response %+v", resp)
	}

	rec = do(t, h, http.MethodGet, "/slots/capacity?date=2024-03-04&time=09:00", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without professional, got %d", rec.Code)
	}
}

func TestSettingsAndReminders(t *testing.T) {
	store := settings.NewMemoryStore(settings.Defaults())
	runner := &fakeReminders{}
	h := newTestRouter(RouterConfig{Settings: store, Reminders: runner})

	rec := do(t, h, http.MethodPut, "/settings", `{"reminder_enabled":false,"reminder_send_after":"09:30"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	cfg, _ := store.Load(context.Background())
	if cfg.ReminderEnabled || !cfg.GlobalEnabled || cfg.ReminderSendAfter != schedule.NewTimeOfDay(9, 30) {
		t.Fatalf("partial update not applied: %+v", cfg)
	}

	rec = do(t, h, http.MethodPost, "/reminders/run", "")
	if rec.Code != http.StatusOK || !runner.forced {
		t.Fatalf("manual run should be forced, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/reminders/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var status struct {
		Tomorrow struct {
			Date    string `json:"date"`
			Total   int    `json:"total"`
			Sent    int    `json:"sent"`
			Pending int    `json:"pending"`
		} `json:"tomorrow"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Tomorrow.Date != "2024-03-05" || status.Tomorrow.Total != 3 || status.Tomorrow.Pending != 2 {
		t.Fatalf("stats should be flattened per day, got %+v", status.Tomorrow)
	}
}

func TestCreateGroup_UnknownReference(t *testing.T) {
	err := fmt.Errorf("insert availability group: %w", schedule.ErrUnknownReference)
	h := newTestRouter(RouterConfig{Schedule: failingSchedule{err: err}})

	body := `{"professional_id":"` + uuid.NewString() + `","specialty_id":"` + uuid.NewString() +
		`","days_of_week":[1],"valid_from":"2024-03-01","valid_until":"2024-03-31",` +
		`"kind":"period","start_time":"08:00","end_time":"12:00","interval_minutes":15,"capacity":3}`
	rec := do(t, h, http.MethodPost, "/availability-groups", body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "unknown_reference" {
		t.Fatalf("expected unknown_reference, got %s", resp.Error)
	}
}

func TestTriageRoutes(t *testing.T) {
	h := newTestRouter(RouterConfig{Triage: fakeTriage{}})
	id := uuid.NewString()

	rec := do(t, h, http.MethodPut, "/bookings/"+id+"/triage", `{"weight_kg":70,"height_cm":175}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got triage.Record
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.BMIClass != triage.ClassNormal {
		t.Fatalf("expected normal, got %s", got.BMIClass)
	}

	rec = do(t, h, http.MethodGet, "/bookings/"+id+"/triage", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	h = newTestRouter(RouterConfig{Triage: fakeTriage{err: triage.ErrNotInClinic}})
	rec = do(t, h, http.MethodPut, "/bookings/"+id+"/triage", `{}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	secret := "test-secret"
	fb := &fakeBookings{item: sampleBooking()}
	h := newTestRouter(RouterConfig{Bookings: fb, JWTSecret: secret})

	rec := do(t, h, http.MethodGet, "/bookings", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/health/live", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health must stay public, got %d", rec.Code)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "reception",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	out := httptest.NewRecorder()
	h.ServeHTTP(out, req)
	if out.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", out.Code)
	}
}
