package appointment

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows List results. Zero values mean "no constraint".
// Search matches patient name, doctor or notes, case-insensitively.
type ListFilter struct {
	Doctor   string
	Date     string
	Status   Status
	Search   string
	FromDate string // inclusive YYYY-MM-DD bound
	ToDate   string // inclusive YYYY-MM-DD bound
}

// Repository is the persistence collaborator for appointment records. The
// engine itself holds no state; every booking decision runs against a roster
// snapshot read through this interface.
type Repository interface {
	// ListByDoctorDate returns every appointment (any status) for a doctor
	// on a calendar day, the conflict-check roster.
	ListByDoctorDate(ctx context.Context, doctor, date string) ([]Appointment, error)

	List(ctx context.Context, f ListFilter) ([]Appointment, error)

	FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Insert persists a new record and returns the stored form. It returns
	// ErrSlotTaken when the storage layer's uniqueness constraint rejects a
	// concurrent double-booking the pre-check missed.
	Insert(ctx context.Context, a Appointment) (*Appointment, error)

	// UpdateByID persists a mutated record, subject to the same uniqueness
	// constraint as Insert.
	UpdateByID(ctx context.Context, a Appointment) (*Appointment, error)

	DeleteByID(ctx context.Context, id uuid.UUID) error

	// CountByStatus aggregates appointment counts per status for a date;
	// an empty date aggregates over all days.
	CountByStatus(ctx context.Context, date string) (map[Status]int, error)

	// InsertEvent appends an entry to the appointment audit trail.
	InsertEvent(ctx context.Context, ev EventLog) error

	// ListEvents returns the audit trail for one appointment, oldest first.
	ListEvents(ctx context.Context, appointmentID uuid.UUID) ([]EventLog, error)
}
