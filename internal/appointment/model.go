package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCanceled  Status = "canceled"
	StatusCompleted Status = "completed"
)

// Terminal statuses no longer occupy calendar time.
func (s Status) Terminal() bool {
	return s == StatusCanceled || s == StatusCompleted
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCanceled, StatusCompleted:
		return true
	}
	return false
}

// CanTransition reports whether a status change is allowed:
// pending -> confirmed -> completed, and pending|confirmed -> canceled.
// There is no way out of canceled or completed.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCanceled
	case StatusConfirmed:
		return to == StatusCompleted || to == StatusCanceled
	}
	return false
}

type VisitType string

const (
	TypeConsultation VisitType = "consultation"
	TypeFollowUp     VisitType = "followup"
	TypeCheckup      VisitType = "checkup"
	TypeLabResults   VisitType = "labresults"
	TypeVaccination  VisitType = "vaccination"
	TypeSurgery      VisitType = "surgery"
	TypeEmergency    VisitType = "emergency"
	TypeTherapy      VisitType = "therapy"
)

func (t VisitType) Valid() bool {
	switch t {
	case TypeConsultation, TypeFollowUp, TypeCheckup, TypeLabResults,
		TypeVaccination, TypeSurgery, TypeEmergency, TypeTherapy:
		return true
	}
	return false
}

// DefaultDurationMinutes is the grid quantum, used when a record carries no duration.
const DefaultDurationMinutes = 30

// DefaultDuration returns the usual visit length in minutes for a type.
func (t VisitType) DefaultDuration() int {
	switch t {
	case TypeConsultation, TypeTherapy:
		return 45
	case TypeSurgery, TypeEmergency:
		return 60
	case TypeLabResults, TypeVaccination:
		return 15
	default:
		return DefaultDurationMinutes
	}
}

// Appointment is a booked (or requested) visit. Date is a local calendar day
// in YYYY-MM-DD form and Time a wall-clock HH:MM taken from the slot grid; no
// time zone is attached to either.
type Appointment struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	PatientName string
	Doctor      string
	Date        string
	Time        string
	Duration    int // minutes
	Type        VisitType
	Status      Status
	Notes       string
	Room        *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EventLog is one entry in the appointment audit trail. Entries are
// append-only and outlive the appointment row they describe, so a deleted
// booking still leaves its history behind.
type EventLog struct {
	ID            int64
	Type          string
	AppointmentID uuid.UUID
	Payload       []byte // JSON snapshot of the event details
	CreatedAt     time.Time
}

// EffectiveDuration treats a missing duration as the grid quantum.
func (a Appointment) EffectiveDuration() int {
	if a.Duration <= 0 {
		return DefaultDurationMinutes
	}
	return a.Duration
}

// BookingRequest is the explicit request shape for creating an appointment.
// PatientName, Doctor, Date, Time and Type are required; the rest default.
type BookingRequest struct {
	PatientID   uuid.UUID
	PatientName string
	Doctor      string
	Date        string
	Time        string
	Duration    int // 0 means "use the visit type default"
	Type        VisitType
	Status      Status // empty means pending; must be non-terminal
	Notes       string
	Room        string
}

// UpdateRequest carries the mutable fields for reschedule/update. Nil fields
// are left unchanged.
type UpdateRequest struct {
	PatientName *string
	Doctor      *string
	Date        *string
	Time        *string
	Duration    *int
	Type        *VisitType
	Notes       *string
	Room        *string
}
