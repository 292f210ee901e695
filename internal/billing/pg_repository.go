package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hackgods/clinic-scheduling/internal/db"
)

// PgRepository runs every statement on the querier it is handed, so the
// booking ledger can keep invoice writes inside its own transaction.
type PgRepository struct{}

func NewPgRepository() *PgRepository {
	return &PgRepository{}
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var amount pgtype.Numeric

	err := row.Scan(
		&inv.BookingID,
		&amount,
		&inv.PaymentMethod,
		&inv.Paid,
		&inv.DueDate,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}

	inv.Amount = db.Decimal(amount)
	return &inv, nil
}

func (r *PgRepository) Upsert(ctx context.Context, q db.Querier, inv Invoice) (*Invoice, error) {
	if inv.PaymentMethod == "" {
		inv.PaymentMethod = MethodPending
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	row := q.QueryRow(ctx, `
		INSERT INTO invoices (booking_id, amount, payment_method, paid, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (booking_id) DO UPDATE
		SET amount = EXCLUDED.amount,
		    payment_method = EXCLUDED.payment_method,
		    paid = EXCLUDED.paid,
		    due_date = EXCLUDED.due_date,
		    updated_at = now()
		RETURNING booking_id, amount, payment_method, paid, due_date, created_at, updated_at
	`, inv.BookingID, db.Numeric(inv.Amount), inv.PaymentMethod, inv.Paid, inv.DueDate)

	out, err := scanInvoice(row)
	if err != nil {
		return nil, fmt.Errorf("upsert invoice: %w", err)
	}
	return out, nil
}

func (r *PgRepository) Get(ctx context.Context, q db.Querier, bookingID uuid.UUID) (*Invoice, error) {
	row := q.QueryRow(ctx, `
		SELECT booking_id, amount, payment_method, paid, due_date, created_at, updated_at
		FROM invoices
		WHERE booking_id = $1
	`, bookingID)
	return scanInvoice(row)
}

func (r *PgRepository) Delete(ctx context.Context, q db.Querier, bookingID uuid.UUID) error {
	tag, err := q.Exec(ctx, `DELETE FROM invoices WHERE booking_id = $1`, bookingID)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}
