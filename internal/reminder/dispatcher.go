package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/booking"
	"github.com/hackgods/clinic-scheduling/internal/mq"
	"github.com/hackgods/clinic-scheduling/internal/notify"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/settings"
)

// Skip reasons reported in Result.Skipped.
const (
	SkipDisabled = "reminders disabled"
	SkipTooEarly = "before send window"
	SkipLockBusy = "another run in progress"
)

const EventReminderSent = "REMINDER_SENT"

// Bookings is the slice of the booking store the batch needs.
type Bookings interface {
	ReminderCandidates(ctx context.Context, date time.Time) ([]booking.Booking, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error)
	ReminderStats(ctx context.Context, date time.Time) (booking.ReminderStats, error)
	InsertEvent(ctx context.Context, ev booking.EventLog) error
}

type Deps struct {
	Bookings  Bookings
	Settings  settings.Store
	Sender    notify.Sender
	Locker    redisclient.Locker
	Publisher mq.Publisher
	Logger    *slog.Logger
}

type Options struct {
	Location      *time.Location
	ClinicName    string
	ClinicAddress string
}

type RunOptions struct {
	// Force ignores the send-after time. Toggles still apply.
	Force bool
}

type Result struct {
	Date       string `json:"date"`
	Candidates int    `json:"candidates"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	Skipped    string `json:"skipped,omitempty"`
}

type DayStats struct {
	Date string `json:"date"`
	booking.ReminderStats
}

// Status is the reminder report shown at the front desk. Counts come from
// the per-booking flag; LastRun is informational only.
type Status struct {
	Enabled   bool     `json:"enabled"`
	SendAfter string   `json:"send_after"`
	LastRun   *string  `json:"last_run,omitempty"`
	Today     DayStats `json:"today"`
	Tomorrow  DayStats `json:"tomorrow"`
}

type Dispatcher struct {
	bookings  Bookings
	settings  settings.Store
	sender    notify.Sender
	locker    redisclient.Locker
	publisher mq.Publisher
	logger    *slog.Logger
	opts      Options
	now       func() time.Time
}

func NewDispatcher(deps Deps, opts Options) *Dispatcher {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Publisher == nil {
		deps.Publisher = mq.Noop{}
	}
	if deps.Locker == nil {
		deps.Locker = redisclient.NewLocalLocker()
	}
	return &Dispatcher{
		bookings:  deps.Bookings,
		settings:  deps.Settings,
		sender:    deps.Sender,
		locker:    deps.Locker,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		opts:      opts,
		now:       time.Now,
	}
}

// Run sends tomorrow's reminders. Each booking is marked individually, so a
// repeated run the same day only picks up what previously failed.
func (d *Dispatcher) Run(ctx context.Context, ro RunOptions) (Result, error) {
	local := d.now().In(d.opts.Location)
	today := schedule.Date(local)
	tomorrow := today.AddDate(0, 0, 1)
	res := Result{Date: schedule.FormatDate(tomorrow)}

	cfg, err := d.settings.Load(ctx)
	if err != nil {
		return res, fmt.Errorf("load settings: %w", err)
	}
	if !cfg.RemindersOn() {
		res.Skipped = SkipDisabled
		return res, nil
	}
	if !ro.Force && schedule.NewTimeOfDay(local.Hour(), local.Minute()) < cfg.ReminderSendAfter {
		res.Skipped = SkipTooEarly
		return res, nil
	}

	err = d.locker.WithLock(ctx, "reminder:"+res.Date, func(ctx context.Context) error {
		return d.dispatch(ctx, today, tomorrow, &res)
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		res.Skipped = SkipLockBusy
		return res, nil
	}
	if err != nil {
		return res, err
	}

	d.logger.Info("reminder run finished",
		"date", res.Date,
		"candidates", res.Candidates,
		"sent", res.Sent,
		"failed", res.Failed,
	)
	return res, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, today, tomorrow time.Time, res *Result) error {
	candidates, err := d.bookings.ReminderCandidates(ctx, tomorrow)
	if err != nil {
		return fmt.Errorf("list reminder candidates: %w", err)
	}
	res.Candidates = len(candidates)

	for i := range candidates {
		b := &candidates[i]
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.sendOne(ctx, b); err != nil {
			res.Failed++
			d.logger.Warn("reminder not sent", "booking_id", b.ID, "error", err)
			continue
		}
		res.Sent++
	}

	if res.Sent > 0 {
		if err := d.settings.MarkReminderRun(ctx, today); err != nil {
			d.logger.Error("mark reminder run", "date", schedule.FormatDate(today), "error", err)
		}
	}
	return nil
}

func (d *Dispatcher) sendOne(ctx context.Context, b *booking.Booking) error {
	if b.PatientPhone == "" {
		return notify.ErrInvalidPhone
	}

	text := notify.Reminder(notify.MessageData{
		PatientName:      b.PatientName,
		ProfessionalName: b.ProfessionalName,
		Date:             b.Date,
		Time:             b.Time.String(),
		ClinicName:       d.opts.ClinicName,
		ClinicAddress:    d.opts.ClinicAddress,
	})
	if err := d.sender.Send(ctx, b.PatientPhone, text); err != nil {
		return err
	}

	marked, err := d.bookings.MarkReminderSent(ctx, b.ID)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if !marked {
		// a concurrent run flagged it between listing and sending
		d.logger.Info("reminder already marked", "booking_id", b.ID)
	}

	if err := d.publisher.PublishJSON(ctx, mq.KeyReminderSent, map[string]any{
		"booking_id": b.ID,
		"date":       schedule.FormatDate(b.Date),
		"time":       b.Time.String(),
	}); err != nil {
		d.logger.Warn("publish reminder event", "booking_id", b.ID, "error", err)
	}

	id := b.ID
	if err := d.bookings.InsertEvent(ctx, booking.EventLog{
		EventType: EventReminderSent,
		BookingID: &id,
		CreatedAt: time.Now(),
	}); err != nil {
		d.logger.Error("insert event log", "event", EventReminderSent, "booking_id", b.ID, "error", err)
	}
	return nil
}

func (d *Dispatcher) Status(ctx context.Context) (Status, error) {
	cfg, err := d.settings.Load(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("load settings: %w", err)
	}
	today := schedule.Date(d.now().In(d.opts.Location))

	st := Status{
		Enabled:   cfg.RemindersOn(),
		SendAfter: cfg.ReminderSendAfter.String(),
	}
	if cfg.LastReminderRun != nil {
		last := schedule.FormatDate(*cfg.LastReminderRun)
		st.LastRun = &last
	}
	if st.Today, err = d.dayStats(ctx, today); err != nil {
		return Status{}, err
	}
	if st.Tomorrow, err = d.dayStats(ctx, today.AddDate(0, 0, 1)); err != nil {
		return Status{}, err
	}
	return st, nil
}

func (d *Dispatcher) dayStats(ctx context.Context, date time.Time) (DayStats, error) {
	counts, err := d.bookings.ReminderStats(ctx, date)
	if err != nil {
		return DayStats{}, fmt.Errorf("reminder stats for %s: %w", schedule.FormatDate(date), err)
	}
	return DayStats{Date: schedule.FormatDate(date), ReminderStats: counts}, nil
}
