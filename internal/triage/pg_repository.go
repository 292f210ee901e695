package triage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const triageColumns = `
	booking_id, chief_complaint, notes, weight_kg, height_cm,
	systolic, diastolic, bmi, bmi_class, obesity_grade, created_at, updated_at
`

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	var weight, bmi pgtype.Numeric
	var height, systolic, diastolic pgtype.Int4

	err := row.Scan(
		&r.BookingID,
		&r.ChiefComplaint,
		&r.Notes,
		&weight,
		&height,
		&systolic,
		&diastolic,
		&bmi,
		&r.BMIClass,
		&r.ObesityGrade,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTriageNotFound
		}
		return nil, err
	}

	r.WeightKg = db.NullableDecimal(weight)
	r.BMI = db.NullableDecimal(bmi)
	r.HeightCm = intPtr(height)
	r.Systolic = intPtr(systolic)
	r.Diastolic = intPtr(diastolic)
	return &r, nil
}

func intPtr(v pgtype.Int4) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int32)
	return &n
}

func int4(v *int) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(*v), Valid: true}
}

func (r *PgRepository) Upsert(ctx context.Context, rec Record) (*Record, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO triage_records (
			booking_id, chief_complaint, notes, weight_kg, height_cm,
			systolic, diastolic, bmi, bmi_class, obesity_grade, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		ON CONFLICT (booking_id) DO UPDATE
		SET chief_complaint = EXCLUDED.chief_complaint,
		    notes = EXCLUDED.notes,
		    weight_kg = EXCLUDED.weight_kg,
		    height_cm = EXCLUDED.height_cm,
		    systolic = EXCLUDED.systolic,
		    diastolic = EXCLUDED.diastolic,
		    bmi = EXCLUDED.bmi,
		    bmi_class = EXCLUDED.bmi_class,
		    obesity_grade = EXCLUDED.obesity_grade,
		    updated_at = now()
		RETURNING `+triageColumns,
		rec.BookingID,
		rec.ChiefComplaint,
		rec.Notes,
		db.NullableNumeric(rec.WeightKg),
		int4(rec.HeightCm),
		int4(rec.Systolic),
		int4(rec.Diastolic),
		db.NullableNumeric(rec.BMI),
		rec.BMIClass,
		rec.ObesityGrade,
	)
	return scanRecord(row)
}

func (r *PgRepository) Get(ctx context.Context, bookingID uuid.UUID) (*Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+triageColumns+` FROM triage_records WHERE booking_id = $1`, bookingID)
	return scanRecord(row)
}
