package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/billing"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

// BillingPort is the invoice store the ledger writes through inside its own
// transactions.
type BillingPort interface {
	Upsert(ctx context.Context, q db.Querier, inv billing.Invoice) (*billing.Invoice, error)
	Get(ctx context.Context, q db.Querier, bookingID uuid.UUID) (*billing.Invoice, error)
	Delete(ctx context.Context, q db.Querier, bookingID uuid.UUID) error
}

// Tx is the unit of work for a single booking mutation.
type Tx interface {
	schedule.SlotCounter

	Insert(ctx context.Context, b *Booking) error
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error)
	Update(ctx context.Context, b *Booking) error

	UpsertInvoice(ctx context.Context, inv billing.Invoice) (*billing.Invoice, error)
	GetInvoice(ctx context.Context, bookingID uuid.UUID) (*billing.Invoice, error)
	DeleteInvoice(ctx context.Context, bookingID uuid.UUID) error
}

// Store contains all DB interactions needed by the service.
type Store interface {
	schedule.SlotCounter

	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	List(ctx context.Context, f Filter) ([]Booking, error)

	// InSlotTx serializes writers for one professional day.
	InSlotTx(ctx context.Context, professionalID uuid.UUID, date time.Time, fn func(tx Tx) error) error
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Reminder batch
	ReminderCandidates(ctx context.Context, date time.Time) ([]Booking, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error)
	ReminderStats(ctx context.Context, date time.Time) (ReminderStats, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
