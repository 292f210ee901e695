package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/billing"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

const uniqueLiveSlot = "bookings_live_patient_slot"

type PgRepository struct {
	pool    *pgxpool.Pool
	billing BillingPort
}

func NewPgRepository(pool *pgxpool.Pool, billing BillingPort) *PgRepository {
	return &PgRepository{pool: pool, billing: billing}
}

const bookingSelect = `
	SELECT b.id, b.professional_id, b.specialty_id, b.patient_id, b.insurance_id,
	       b.date, b.time, b.is_overbook, b.status, b.reminder_sent, b.value, b.notes,
	       b.arrived_at, b.started_at, b.created_at, b.updated_at,
	       p.name, COALESCE(p.phone, ''), p.birth_date, pr.name
	FROM bookings b
	JOIN patients p ON p.id = b.patient_id
	JOIN professionals pr ON pr.id = b.professional_id`

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Phone,
		&p.Email,
		&p.BirthDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanProfessional(row pgx.Row) (*Professional, error) {
	var p Professional

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfessionalNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var at pgtype.Time
	var value pgtype.Numeric

	err := row.Scan(
		&b.ID,
		&b.ProfessionalID,
		&b.SpecialtyID,
		&b.PatientID,
		&b.InsuranceID,
		&b.Date,
		&at,
		&b.IsOverbook,
		&b.Status,
		&b.ReminderSent,
		&value,
		&b.Notes,
		&b.ArrivedAt,
		&b.StartedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.PatientName,
		&b.PatientPhone,
		&b.PatientBirthDate,
		&b.ProfessionalName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	b.Time = schedule.TimeOfDayFromPg(at)
	b.Value = db.Decimal(value)
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func countLive(ctx context.Context, q db.Querier, professionalID uuid.UUID, date time.Time, c schedule.Capacity) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE professional_id = $1
		  AND date = $2
		  AND status IN ('scheduled', 'waiting', 'in_progress', 'done')
		  AND time = $3`
	args := []any{professionalID, schedule.Date(date), c.From.PgTime()}
	if c.Pooled {
		query = `
		SELECT COUNT(*)
		FROM bookings
		WHERE professional_id = $1
		  AND date = $2
		  AND status IN ('scheduled', 'waiting', 'in_progress', 'done')
		  AND time >= $3
		  AND time < $4`
		args = append(args, c.To.PgTime())
	}

	var n int
	if err := q.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, email, birth_date, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at
		FROM professionals
		WHERE id = $1
	`, id)
	return scanProfessional(row)
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, bookingSelect+` WHERE b.id = $1`, id))
}

func (r *PgRepository) CountLive(ctx context.Context, professionalID uuid.UUID, date time.Time, c schedule.Capacity) (int, error) {
	return countLive(ctx, r.pool, professionalID, date, c)
}

func (r *PgRepository) List(ctx context.Context, f Filter) ([]Booking, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	switch {
	case f.Date != nil:
		add("b.date = $%d", schedule.Date(*f.Date))
	case f.Month > 0 && f.Year > 0:
		from := time.Date(f.Year, time.Month(f.Month), 1, 0, 0, 0, 0, time.UTC)
		add("b.date >= $%d", from)
		add("b.date < $%d", from.AddDate(0, 1, 0))
	case f.Month > 0:
		return nil, fmt.Errorf("%w: month needs a year", ErrInvalidBooking)
	case f.Year > 0:
		from := time.Date(f.Year, 1, 1, 0, 0, 0, 0, time.UTC)
		add("b.date >= $%d", from)
		add("b.date < $%d", from.AddDate(1, 0, 0))
	}
	if f.ProfessionalID != nil {
		add("b.professional_id = $%d", *f.ProfessionalID)
	}
	if f.SpecialtyID != nil {
		add("b.specialty_id = $%d", *f.SpecialtyID)
	}
	if f.PatientID != nil {
		add("b.patient_id = $%d", *f.PatientID)
	}
	if f.Status != nil {
		add("b.status = $%d", *f.Status)
	} else if !f.IncludeCancelled {
		conds = append(conds, "b.status <> 'cancelled'")
	}

	query := bookingSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY b.date, b.time"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *PgRepository) InSlotTx(ctx context.Context, professionalID uuid.UUID, date time.Time, fn func(tx Tx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		key := professionalID.String() + "/" + schedule.FormatDate(date)
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return fmt.Errorf("lock professional day: %w", err)
		}
		return fn(&pgTx{tx: tx, billing: r.billing})
	})
}

func (r *PgRepository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx, billing: r.billing})
	})
}

func (r *PgRepository) ReminderCandidates(ctx context.Context, date time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, bookingSelect+`
		WHERE b.date = $1
		  AND b.status = 'scheduled'
		  AND b.reminder_sent = false
		ORDER BY b.time
	`, schedule.Date(date))
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// MarkReminderSent flips the flag once; false means another run got there first.
func (r *PgRepository) MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET reminder_sent = true,
		    updated_at = now()
		WHERE id = $1
		  AND reminder_sent = false
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) ReminderStats(ctx context.Context, date time.Time) (ReminderStats, error) {
	var st ReminderStats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE reminder_sent)
		FROM bookings
		WHERE date = $1
		  AND status = 'scheduled'
	`, schedule.Date(date)).Scan(&st.Total, &st.Sent)
	if err != nil {
		return ReminderStats{}, fmt.Errorf("count reminders: %w", err)
	}
	st.Pending = st.Total - st.Sent
	return st, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, booking_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.BookingID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// pgTx runs booking statements inside one transaction.
type pgTx struct {
	tx      pgx.Tx
	billing BillingPort
}

func (t *pgTx) CountLive(ctx context.Context, professionalID uuid.UUID, date time.Time, c schedule.Capacity) (int, error) {
	return countLive(ctx, t.tx, professionalID, date, c)
}

func (t *pgTx) Insert(ctx context.Context, b *Booking) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO bookings (id, professional_id, specialty_id, patient_id, insurance_id, date, time,
			is_overbook, status, reminder_sent, value, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, $10, $11, now(), now())
		RETURNING created_at, updated_at
	`,
		b.ID, b.ProfessionalID, b.SpecialtyID, b.PatientID, b.InsuranceID, schedule.Date(b.Date), b.Time.PgTime(),
		b.IsOverbook, b.Status, db.Numeric(b.Value), b.Notes,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, uniqueLiveSlot) {
			return ErrDuplicateBooking
		}
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w (%s)", ErrUnknownReference, db.ConstraintName(err))
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (t *pgTx) GetForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return scanBooking(t.tx.QueryRow(ctx, bookingSelect+` WHERE b.id = $1 FOR UPDATE OF b`, id))
}

func (t *pgTx) Update(ctx context.Context, b *Booking) error {
	err := t.tx.QueryRow(ctx, `
		UPDATE bookings
		SET professional_id = $2,
		    specialty_id = $3,
		    insurance_id = $4,
		    date = $5,
		    time = $6,
		    status = $7,
		    value = $8,
		    notes = $9,
		    arrived_at = $10,
		    started_at = $11,
		    reminder_sent = $12,
		    updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`,
		b.ID, b.ProfessionalID, b.SpecialtyID, b.InsuranceID, schedule.Date(b.Date), b.Time.PgTime(),
		b.Status, db.Numeric(b.Value), b.Notes, b.ArrivedAt, b.StartedAt, b.ReminderSent,
	).Scan(&b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBookingNotFound
		}
		if db.IsUniqueViolation(err, uniqueLiveSlot) {
			return ErrDuplicateBooking
		}
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w (%s)", ErrUnknownReference, db.ConstraintName(err))
		}
		return fmt.Errorf("update booking: %w", err)
	}
	return nil
}

func (t *pgTx) UpsertInvoice(ctx context.Context, inv billing.Invoice) (*billing.Invoice, error) {
	return t.billing.Upsert(ctx, t.tx, inv)
}

func (t *pgTx) GetInvoice(ctx context.Context, bookingID uuid.UUID) (*billing.Invoice, error) {
	return t.billing.Get(ctx, t.tx, bookingID)
}

func (t *pgTx) DeleteInvoice(ctx context.Context, bookingID uuid.UUID) error {
	return t.billing.Delete(ctx, t.tx, bookingID)
}
