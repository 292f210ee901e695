package schedule

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

	"github.com/hackgods/clinic-scheduling/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const ruleColumns = `id, group_id, professional_id, specialty_id, insurance_id, day_of_week,
	valid_from, valid_until, active, kind, start_time, end_time, interval_minutes,
	capacity_per_slot, price, created_at`

const blockColumns = `id, professional_id, date_from, date_until, start_time, end_time,
	reason, kind, yearly, created_at`

// Helpers

func scanRule(row pgx.Row) (*Rule, error) {
	var r Rule
	var start, end pgtype.Time
	var price pgtype.Numeric

	err := row.Scan(
		&r.ID,
		&r.GroupID,
		&r.ProfessionalID,
		&r.SpecialtyID,
		&r.InsuranceID,
		&r.DayOfWeek,
		&r.ValidFrom,
		&r.ValidUntil,
		&r.Active,
		&r.Kind,
		&start,
		&end,
		&r.IntervalMinutes,
		&r.CapacityPerSlot,
		&price,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.StartTime = TimeOfDayFromPg(start)
	r.EndTime = TimeOfDayFromPg(end)
	r.Price = db.Decimal(price)
	return &r, nil
}

func scanBlock(row pgx.Row) (*Block, error) {
	var b Block
	var start, end pgtype.Time

	err := row.Scan(
		&b.ID,
		&b.ProfessionalID,
		&b.DateFrom,
		&b.DateUntil,
		&start,
		&end,
		&b.Reason,
		&b.Kind,
		&b.Yearly,
		&b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}

	b.StartTime = TimeOfDayFromPg(start)
	b.EndTime = TimeOfDayFromPg(end)
	return &b, nil
}

func collectRules(rows pgx.Rows) ([]Rule, error) {
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func collectBlocks(rows pgx.Rows) ([]Block, error) {
	defer rows.Close()

	var out []Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func insertRules(ctx context.Context, q db.Querier, rules []Rule) error {
	for _, r := range rules {
		_, err := q.Exec(ctx, `
			INSERT INTO availability_rules (`+ruleColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`,
			r.ID, r.GroupID, r.ProfessionalID, r.SpecialtyID, r.InsuranceID, r.DayOfWeek,
			r.ValidFrom, r.ValidUntil, r.Active, r.Kind, r.StartTime.PgTime(), r.EndTime.PgTime(),
			r.IntervalMinutes, r.CapacityPerSlot, db.Numeric(r.Price), r.CreatedAt,
		)
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w (%s)", ErrUnknownReference, db.ConstraintName(err))
		}
		if err != nil {
			return fmt.Errorf("insert rule %s: %w", r.ID, err)
		}
	}
	return nil
}

// Interface methods

func (r *PgRepository) InsertRules(ctx context.Context, rules []Rule) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return insertRules(ctx, tx, rules)
	})
}

func (r *PgRepository) ReplaceGroup(ctx context.Context, groupID uuid.UUID, rules []Rule) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM availability_rules WHERE group_id = $1`, groupID)
		if err != nil {
			return fmt.Errorf("delete group rules: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrGroupNotFound
		}
		return insertRules(ctx, tx, rules)
	})
}

func (r *PgRepository) DeleteGroup(ctx context.Context, groupID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM availability_rules WHERE group_id = $1`, groupID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) ListGroupRules(ctx context.Context, groupID uuid.UUID) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE group_id = $1
		ORDER BY day_of_week, start_time
	`, groupID)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

func (r *PgRepository) ListApplicableRules(ctx context.Context, professionalID, specialtyID uuid.UUID, date time.Time) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE professional_id = $1
		  AND specialty_id = $2
		  AND day_of_week = $3
		  AND valid_from <= $4
		  AND valid_until >= $4
		  AND active = true
	`, professionalID, specialtyID, Weekday(date), Date(date))
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

func (r *PgRepository) ListRules(ctx context.Context, f RuleFilter) ([]Rule, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.ProfessionalID != nil {
		add("professional_id = $%d", *f.ProfessionalID)
	}
	if f.SpecialtyID != nil {
		add("specialty_id = $%d", *f.SpecialtyID)
	}
	if f.NoInsurance {
		conds = append(conds, "insurance_id IS NULL")
	} else if f.InsuranceID != nil {
		add("insurance_id = $%d", *f.InsuranceID)
	}
	if f.DayOfWeek != nil {
		add("day_of_week = $%d", *f.DayOfWeek)
	}
	if f.OnDate != nil {
		d := Date(*f.OnDate)
		add("valid_from <= $%d", d)
		add("valid_until >= $%d", d)
	}

	today := Date(f.Today)
	switch f.Status {
	case RuleStatusAll:
	case RuleStatusClosed:
		add("(active = false OR valid_until < $%d)", today)
	default:
		add("(active = true AND valid_until >= $%d)", today)
	}

	query := `SELECT ` + ruleColumns + ` FROM availability_rules`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY professional_id, day_of_week, start_time, created_at"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

// CountGroupConflicts counts distinct future live bookings that fall on a day
// and date range served by the group.
func (r *PgRepository) CountGroupConflicts(ctx context.Context, groupID uuid.UUID, today time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT b.id)
		FROM bookings b
		JOIN availability_rules r
		  ON r.professional_id = b.professional_id
		 AND r.specialty_id = b.specialty_id
		WHERE r.group_id = $1
		  AND b.date >= $2
		  AND b.date BETWEEN r.valid_from AND r.valid_until
		  AND EXTRACT(DOW FROM b.date) = r.day_of_week
		  AND b.status IN ('scheduled', 'waiting', 'in_progress')
	`, groupID, Date(today)).Scan(&n)
	return n, err
}

func (r *PgRepository) InsertBlock(ctx context.Context, b Block) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO schedule_blocks (`+blockColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		b.ID, b.ProfessionalID, Date(b.DateFrom), Date(b.DateUntil), b.StartTime.PgTime(), b.EndTime.PgTime(),
		b.Reason, b.Kind, b.Yearly, b.CreatedAt,
	)
	if db.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w (%s)", ErrUnknownReference, db.ConstraintName(err))
	}
	return err
}

func (r *PgRepository) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedule_blocks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBlockNotFound
	}
	return nil
}

func (r *PgRepository) ListBlocks(ctx context.Context, f BlockFilter) ([]Block, error) {
	var (
		conds []string
		args  []any
	)
	if f.ProfessionalID != nil {
		args = append(args, *f.ProfessionalID)
		conds = append(conds, fmt.Sprintf("(professional_id = $%d OR professional_id IS NULL)", len(args)))
	}
	if f.From != nil {
		args = append(args, Date(*f.From))
		conds = append(conds, fmt.Sprintf("(date_until >= $%d OR yearly)", len(args)))
	}
	if f.Until != nil {
		args = append(args, Date(*f.Until))
		conds = append(conds, fmt.Sprintf("(date_from <= $%d OR yearly)", len(args)))
	}

	query := `SELECT ` + blockColumns + ` FROM schedule_blocks`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date_from, start_time"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectBlocks(rows)
}

func (r *PgRepository) ListBlocksOn(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]Block, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+blockColumns+`
		FROM schedule_blocks
		WHERE (professional_id = $1 OR professional_id IS NULL)
		  AND (yearly OR (date_from <= $2 AND date_until >= $2))
	`, professionalID, Date(date))
	if err != nil {
		return nil, err
	}
	return collectBlocks(rows)
}
