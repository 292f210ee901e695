package settings

import (
	"context"
	"sync"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

// MemoryStore is a Store kept in process memory. The seed and simulate
// commands use it when no database row should be touched.
type MemoryStore struct {
	mu sync.Mutex
	s  Settings
}

func NewMemoryStore(s Settings) *MemoryStore {
	return &MemoryStore{s: s}
}

func (m *MemoryStore) Load(context.Context) (*Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.s
	return &out, nil
}

func (m *MemoryStore) Save(_ context.Context, s Settings) (*Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.LastReminderRun = m.s.LastReminderRun
	s.UpdatedAt = time.Now()
	m.s = s
	out := m.s
	return &out, nil
}

func (m *MemoryStore) MarkReminderRun(_ context.Context, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := schedule.Date(date)
	m.s.LastReminderRun = &d
	return nil
}
