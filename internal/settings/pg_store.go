package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

// PgStore keeps the settings in the single row of system_settings.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const settingsColumns = `global_enabled, reminder_enabled, confirmation_enabled,
	cancellation_notice_enabled, reminder_send_after, last_reminder_run, updated_at`

func scanSettings(row pgx.Row) (*Settings, error) {
	var s Settings
	var sendAfter pgtype.Time

	err := row.Scan(
		&s.GlobalEnabled,
		&s.ReminderEnabled,
		&s.ConfirmationEnabled,
		&s.CancellationNoticeEnabled,
		&sendAfter,
		&s.LastReminderRun,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.ReminderSendAfter = schedule.TimeOfDayFromPg(sendAfter)
	return &s, nil
}

// Load returns the settings row, creating it with defaults on first use.
func (p *PgStore) Load(ctx context.Context) (*Settings, error) {
	d := Defaults()
	_, err := p.pool.Exec(ctx, `
		INSERT INTO system_settings (id, global_enabled, reminder_enabled, confirmation_enabled,
			cancellation_notice_enabled, reminder_send_after)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, d.GlobalEnabled, d.ReminderEnabled, d.ConfirmationEnabled, d.CancellationNoticeEnabled, d.ReminderSendAfter.PgTime())
	if err != nil {
		return nil, fmt.Errorf("ensure settings row: %w", err)
	}

	row := p.pool.QueryRow(ctx, `SELECT `+settingsColumns+` FROM system_settings WHERE id = 1`)
	s, err := scanSettings(row)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return s, nil
}

func (p *PgStore) Save(ctx context.Context, s Settings) (*Settings, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO system_settings (id, global_enabled, reminder_enabled, confirmation_enabled,
			cancellation_notice_enabled, reminder_send_after, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE
		SET global_enabled = EXCLUDED.global_enabled,
		    reminder_enabled = EXCLUDED.reminder_enabled,
		    confirmation_enabled = EXCLUDED.confirmation_enabled,
		    cancellation_notice_enabled = EXCLUDED.cancellation_notice_enabled,
		    reminder_send_after = EXCLUDED.reminder_send_after,
		    updated_at = now()
		RETURNING `+settingsColumns,
		s.GlobalEnabled, s.ReminderEnabled, s.ConfirmationEnabled, s.CancellationNoticeEnabled, s.ReminderSendAfter.PgTime(),
	)
	out, err := scanSettings(row)
	if err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	return out, nil
}

func (p *PgStore) MarkReminderRun(ctx context.Context, date time.Time) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE system_settings
		SET last_reminder_run = $1,
		    updated_at = now()
		WHERE id = 1
	`, schedule.Date(date))
	if err != nil {
		return fmt.Errorf("mark reminder run: %w", err)
	}
	return nil
}
