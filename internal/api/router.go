package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-scheduling/internal/billing"
	"github.com/hackgods/clinic-scheduling/internal/booking"
	"github.com/hackgods/clinic-scheduling/internal/reminder"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/settings"
	"github.com/hackgods/clinic-scheduling/internal/triage"
)

type BookingService interface {
	CreateBooking(ctx context.Context, in booking.CreateInput) (*booking.Booking, error)
	UpdateBooking(ctx context.Context, id uuid.UUID, in booking.UpdateInput) (*booking.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	ListBookings(ctx context.Context, f booking.Filter) ([]booking.Booking, error)
	CheckIn(ctx context.Context, id uuid.UUID, in booking.CheckInInput) (*booking.Booking, *billing.Invoice, error)
	Start(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	Finish(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	RevertCheckIn(ctx context.Context, id uuid.UUID, in booking.RevertInput) (*booking.Booking, error)
	MarkNoShow(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	Cancel(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
}

type ScheduleService interface {
	CreateGroup(ctx context.Context, in schedule.GroupInput) (uuid.UUID, []schedule.Rule, error)
	ReplaceGroup(ctx context.Context, groupID uuid.UUID, in schedule.GroupInput) ([]schedule.Rule, error)
	DeleteGroup(ctx context.Context, groupID uuid.UUID) error
	GetGroup(ctx context.Context, groupID uuid.UUID) (*schedule.Group, error)
	ListRules(ctx context.Context, f schedule.RuleFilter) ([]schedule.Rule, error)
	ConflictCount(ctx context.Context, groupID uuid.UUID) (int, error)
	CreateBlock(ctx context.Context, b schedule.Block) (*schedule.Block, error)
	ListBlocks(ctx context.Context, f schedule.BlockFilter) ([]schedule.Block, error)
	DeleteBlock(ctx context.Context, id uuid.UUID) error
}

type CapacityChecker interface {
	Check(ctx context.Context, professionalID, specialtyID uuid.UUID, date time.Time, at schedule.TimeOfDay) (schedule.SlotState, error)
}

type TriageService interface {
	Save(ctx context.Context, bookingID uuid.UUID, in triage.Input) (*triage.Record, error)
	Get(ctx context.Context, bookingID uuid.UUID) (*triage.Record, error)
}

type ReminderRunner interface {
	Run(ctx context.Context, ro reminder.RunOptions) (reminder.Result, error)
	Status(ctx context.Context) (reminder.Status, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Bookings  BookingService
	Schedule  ScheduleService
	Capacity  CapacityChecker
	Triage    TriageService
	Settings  settings.Store
	Reminders ReminderRunner

	PgPool    Pinger
	Redis     *redis.Client
	Logger    *slog.Logger
	JWTSecret string
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := &handlers{cfg: cfg, logger: cfg.Logger}

	r.Group(func(r chi.Router) {
		if cfg.JWTSecret != "" {
			r.Use(AuthMiddleware([]byte(cfg.JWTSecret)))
		}

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", h.createBooking)
			r.Get("/", h.listBookings)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getBooking)
				r.Patch("/", h.updateBooking)
				r.Delete("/", h.cancelBooking)
				r.Post("/check_in", h.checkIn)
				r.Post("/start", h.startBooking)
				r.Post("/finish", h.finishBooking)
				r.Post("/no_show", h.markNoShow)
				r.Post("/revert", h.revertCheckIn)
				r.Put("/triage", h.saveTriage)
				r.Get("/triage", h.getTriage)
			})
		})

		r.Get("/slots/capacity", h.slotCapacity)

		r.Post("/availability-groups", h.createGroup)
		r.Route("/availability-groups/{group_id}", func(r chi.Router) {
			r.Get("/", h.getGroup)
			r.Put("/", h.replaceGroup)
			r.Delete("/", h.deleteGroup)
			r.Get("/conflicts", h.groupConflicts)
		})
		r.Get("/availability-rules", h.listRules)

		r.Post("/schedule-blocks", h.createBlock)
		r.Get("/schedule-blocks", h.listBlocks)
		r.Delete("/schedule-blocks/{id}", h.deleteBlock)

		r.Get("/settings", h.getSettings)
		r.Put("/settings", h.updateSettings)

		r.Post("/reminders/run", h.runReminders)
		r.Get("/reminders/status", h.reminderStatus)
	})

	return r
}

type handlers struct {
	cfg    RouterConfig
	logger *slog.Logger
}
