package settings

import (
	"context"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

// Settings holds the notification toggles and the reminder run marker.
type Settings struct {
	GlobalEnabled             bool               `json:"global_enabled"`
	ReminderEnabled           bool               `json:"reminder_enabled"`
	ConfirmationEnabled       bool               `json:"confirmation_enabled"`
	CancellationNoticeEnabled bool               `json:"cancellation_notice_enabled"`
	ReminderSendAfter         schedule.TimeOfDay `json:"reminder_send_after"`
	LastReminderRun           *time.Time         `json:"last_reminder_run,omitempty"`
	UpdatedAt                 time.Time          `json:"updated_at"`
}

// Defaults mirrors the row created on first load.
func Defaults() Settings {
	return Settings{
		GlobalEnabled:             true,
		ReminderEnabled:           true,
		ConfirmationEnabled:       true,
		CancellationNoticeEnabled: true,
		ReminderSendAfter:         schedule.NewTimeOfDay(8, 0),
	}
}

func (s Settings) ConfirmationsOn() bool { return s.GlobalEnabled && s.ConfirmationEnabled }
func (s Settings) RemindersOn() bool     { return s.GlobalEnabled && s.ReminderEnabled }
func (s Settings) CancellationsOn() bool { return s.GlobalEnabled && s.CancellationNoticeEnabled }

type Store interface {
	Load(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, s Settings) (*Settings, error)
	MarkReminderRun(ctx context.Context, date time.Time) error
}

// Update is a partial change to the toggles. Nil fields are left alone.
type Update struct {
	GlobalEnabled             *bool               `json:"global_enabled"`
	ReminderEnabled           *bool               `json:"reminder_enabled"`
	ConfirmationEnabled       *bool               `json:"confirmation_enabled"`
	CancellationNoticeEnabled *bool               `json:"cancellation_notice_enabled"`
	ReminderSendAfter         *schedule.TimeOfDay `json:"reminder_send_after"`
}

func (u Update) Apply(s Settings) Settings {
	if u.GlobalEnabled != nil {
		s.GlobalEnabled = *u.GlobalEnabled
	}
	if u.ReminderEnabled != nil {
		s.ReminderEnabled = *u.ReminderEnabled
	}
	if u.ConfirmationEnabled != nil {
		s.ConfirmationEnabled = *u.ConfirmationEnabled
	}
	if u.CancellationNoticeEnabled != nil {
		s.CancellationNoticeEnabled = *u.CancellationNoticeEnabled
	}
	if u.ReminderSendAfter != nil {
		s.ReminderSendAfter = *u.ReminderSendAfter
	}
	return s
}
