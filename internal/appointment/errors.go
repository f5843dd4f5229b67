package appointment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrAppointmentClosed       = errors.New("appointment is canceled or completed")

	// ErrSlotTaken is returned by repositories whose storage enforces the
	// (doctor, date, time) uniqueness of active appointments, when a write
	// loses that race.
	ErrSlotTaken = errors.New("slot already taken")
)

// ValidationError reports required fields that are missing or malformed.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or invalid fields: %s", strings.Join(e.Fields, ", "))
}

// SlotUnavailableError means the requested doctor/date/time overlaps an
// existing active appointment. ConflictingID is uuid.Nil when the conflict
// was detected by the storage uniqueness constraint rather than the pre-check.
type SlotUnavailableError struct {
	Doctor        string
	Date          string
	Time          string
	ConflictingID uuid.UUID
}

func (e *SlotUnavailableError) Error() string {
	if e.ConflictingID == uuid.Nil {
		return fmt.Sprintf("slot %s %s for %s is unavailable", e.Date, e.Time, e.Doctor)
	}
	return fmt.Sprintf("slot %s %s for %s is unavailable (conflicts with appointment %s)",
		e.Date, e.Time, e.Doctor, e.ConflictingID)
}
