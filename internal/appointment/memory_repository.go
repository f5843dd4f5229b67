package appointment

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps appointments in a map. It backs tests and local
// development; the serialization discipline still comes from the locker, the
// mutex here only protects the map itself.
type MemoryRepository struct {
	mu     sync.RWMutex
	items  map[uuid.UUID]Appointment
	events []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[uuid.UUID]Appointment)}
}

func (r *MemoryRepository) ListByDoctorDate(ctx context.Context, doctor, date string) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.items {
		if a.Doctor == doctor && a.Date == date {
			out = append(out, a)
		}
	}
	sortByDateTime(out)
	return out, nil
}

func (r *MemoryRepository) List(ctx context.Context, f ListFilter) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.items {
		if f.Doctor != "" && a.Doctor != f.Doctor {
			continue
		}
		if f.Date != "" && a.Date != f.Date {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.FromDate != "" && a.Date < f.FromDate {
			continue
		}
		if f.ToDate != "" && a.Date > f.ToDate {
			continue
		}
		if f.Search != "" && !matchesSearch(a, f.Search) {
			continue
		}
		out = append(out, a)
	}
	sortByDateTime(out)
	return out, nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.items[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) Insert(ctx context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if err := r.checkActiveSlotLocked(a); err != nil {
		return nil, err
	}

	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	r.items[a.ID] = a
	return &a, nil
}

func (r *MemoryRepository) UpdateByID(ctx context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.items[a.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if err := r.checkActiveSlotLocked(a); err != nil {
		return nil, err
	}

	a.CreatedAt = stored.CreatedAt
	a.UpdatedAt = time.Now()
	r.items[a.ID] = a
	return &a, nil
}

func (r *MemoryRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryRepository) CountByStatus(ctx context.Context, date string) (map[Status]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[Status]int)
	for _, a := range r.items {
		if date != "" && a.Date != date {
			continue
		}
		counts[a.Status]++
	}
	return counts, nil
}

func (r *MemoryRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *MemoryRepository) ListEvents(ctx context.Context, appointmentID uuid.UUID) ([]EventLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []EventLog
	for _, ev := range r.events {
		if ev.AppointmentID == appointmentID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// checkActiveSlotLocked mirrors the Postgres partial unique index on
// (doctor, date, time) over non-terminal rows.
func (r *MemoryRepository) checkActiveSlotLocked(a Appointment) error {
	if a.Status.Terminal() {
		return nil
	}
	for _, other := range r.items {
		if other.ID == a.ID || other.Status.Terminal() {
			continue
		}
		if other.Doctor == a.Doctor && other.Date == a.Date && other.Time == a.Time {
			return ErrSlotTaken
		}
	}
	return nil
}

func matchesSearch(a Appointment, q string) bool {
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(a.PatientName), q) ||
		strings.Contains(strings.ToLower(a.Doctor), q) ||
		strings.Contains(strings.ToLower(a.Notes), q)
}

func sortByDateTime(out []Appointment) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID.String() < out[j].ID.String()
	})
}
