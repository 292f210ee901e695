package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/billing"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

// memStore is an in-memory Store. Transactions hold the mutex and roll back
// by restoring a snapshot when fn fails.
type memStore struct {
	mu            sync.Mutex
	patients      map[uuid.UUID]Patient
	professionals map[uuid.UUID]Professional
	bookings      map[uuid.UUID]Booking
	invoices      map[uuid.UUID]billing.Invoice
	events        []EventLog

	// specialties enforces the specialty reference when non-nil.
	specialties map[uuid.UUID]bool
}

func newMemStore() *memStore {
	return &memStore{
		patients:      map[uuid.UUID]Patient{},
		professionals: map[uuid.UUID]Professional{},
		bookings:      map[uuid.UUID]Booking{},
		invoices:      map[uuid.UUID]billing.Invoice{},
	}
}

func (m *memStore) addPatient(name, phone string, birth *time.Time) uuid.UUID {
	id := uuid.New()
	m.patients[id] = Patient{ID: id, Name: name, Phone: &phone, BirthDate: birth}
	return id
}

func (m *memStore) addProfessional(name string) uuid.UUID {
	id := uuid.New()
	m.professionals[id] = Professional{ID: id, Name: name}
	return id
}

func (m *memStore) hydrate(b Booking) Booking {
	p := m.patients[b.PatientID]
	b.PatientName = p.Name
	if p.Phone != nil {
		b.PatientPhone = *p.Phone
	}
	b.PatientBirthDate = p.BirthDate
	b.ProfessionalName = m.professionals[b.ProfessionalID].Name
	return b
}

func (m *memStore) countLive(professionalID uuid.UUID, date time.Time, c schedule.Capacity) int {
	n := 0
	for _, b := range m.bookings {
		if b.ProfessionalID != professionalID || !b.Date.Equal(schedule.Date(date)) || !b.Status.Live() {
			continue
		}
		if c.Pooled {
			if b.Time >= c.From && b.Time < c.To {
				n++
			}
		} else if b.Time == c.From {
			n++
		}
	}
	return n
}

func (m *memStore) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *memStore) GetProfessionalByID(_ context.Context, id uuid.UUID) (*Professional, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.professionals[id]
	if !ok {
		return nil, ErrProfessionalNotFound
	}
	return &p, nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	b = m.hydrate(b)
	return &b, nil
}

func (m *memStore) CountLive(_ context.Context, professionalID uuid.UUID, date time.Time, c schedule.Capacity) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLive(professionalID, date, c), nil
}

func (m *memStore) List(_ context.Context, f Filter) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Booking
	for _, b := range m.bookings {
		if f.Date != nil && !b.Date.Equal(schedule.Date(*f.Date)) {
			continue
		}
		if f.Date == nil && f.Year > 0 && b.Date.Year() != f.Year {
			continue
		}
		if f.Date == nil && f.Month > 0 && int(b.Date.Month()) != f.Month {
			continue
		}
		if f.ProfessionalID != nil && b.ProfessionalID != *f.ProfessionalID {
			continue
		}
		if f.Status != nil && b.Status != *f.Status {
			continue
		}
		if f.Status == nil && !f.IncludeCancelled && b.Status == StatusCancelled {
			continue
		}
		out = append(out, m.hydrate(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func (m *memStore) InSlotTx(ctx context.Context, _ uuid.UUID, _ time.Time, fn func(tx Tx) error) error {
	return m.InTx(ctx, fn)
}

func (m *memStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bookings := make(map[uuid.UUID]Booking, len(m.bookings))
	for k, v := range m.bookings {
		bookings[k] = v
	}
	invoices := make(map[uuid.UUID]billing.Invoice, len(m.invoices))
	for k, v := range m.invoices {
		invoices[k] = v
	}

	if err := fn(&memTx{m: m}); err != nil {
		m.bookings = bookings
		m.invoices = invoices
		return err
	}
	return nil
}

func (m *memStore) ReminderCandidates(_ context.Context, date time.Time) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Booking
	for _, b := range m.bookings {
		if b.Date.Equal(schedule.Date(date)) && b.Status == StatusScheduled && !b.ReminderSent {
			out = append(out, m.hydrate(b))
		}
	}
	return out, nil
}

func (m *memStore) MarkReminderSent(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.ReminderSent {
		return false, nil
	}
	b.ReminderSent = true
	m.bookings[id] = b
	return true, nil
}

func (m *memStore) ReminderStats(_ context.Context, date time.Time) (ReminderStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st ReminderStats
	for _, b := range m.bookings {
		if !b.Date.Equal(schedule.Date(date)) || b.Status != StatusScheduled {
			continue
		}
		st.Total++
		if b.ReminderSent {
			st.Sent++
		}
	}
	st.Pending = st.Total - st.Sent
	return st, nil
}

func (m *memStore) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// memTx runs with memStore.mu already held.
type memTx struct {
	m *memStore
}

func (t *memTx) CountLive(_ context.Context, professionalID uuid.UUID, date time.Time, c schedule.Capacity) (int, error) {
	return t.m.countLive(professionalID, date, c), nil
}

func (t *memTx) Insert(_ context.Context, b *Booking) error {
	if t.m.specialties != nil && !t.m.specialties[b.SpecialtyID] {
		return fmt.Errorf("%w (bookings_specialty_id_fkey)", ErrUnknownReference)
	}
	for _, other := range t.m.bookings {
		live := other.Status == StatusScheduled || other.Status == StatusWaiting || other.Status == StatusInProgress
		if live && other.ProfessionalID == b.ProfessionalID && other.Date.Equal(b.Date) &&
			other.Time == b.Time && other.PatientID == b.PatientID {
			return ErrDuplicateBooking
		}
	}
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	stored := *b
	stored.PatientName, stored.PatientPhone, stored.PatientBirthDate, stored.ProfessionalName = "", "", nil, ""
	t.m.bookings[b.ID] = stored
	return nil
}

func (t *memTx) GetForUpdate(_ context.Context, id uuid.UUID) (*Booking, error) {
	b, ok := t.m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	b = t.m.hydrate(b)
	return &b, nil
}

func (t *memTx) Update(_ context.Context, b *Booking) error {
	if _, ok := t.m.bookings[b.ID]; !ok {
		return ErrBookingNotFound
	}
	b.UpdatedAt = time.Now()
	t.m.bookings[b.ID] = *b
	return nil
}

func (t *memTx) UpsertInvoice(_ context.Context, inv billing.Invoice) (*billing.Invoice, error) {
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	t.m.invoices[inv.BookingID] = inv
	return &inv, nil
}

func (t *memTx) GetInvoice(_ context.Context, bookingID uuid.UUID) (*billing.Invoice, error) {
	inv, ok := t.m.invoices[bookingID]
	if !ok {
		return nil, billing.ErrInvoiceNotFound
	}
	return &inv, nil
}

func (t *memTx) DeleteInvoice(_ context.Context, bookingID uuid.UUID) error {
	if _, ok := t.m.invoices[bookingID]; !ok {
		return billing.ErrInvoiceNotFound
	}
	delete(t.m.invoices, bookingID)
	return nil
}
