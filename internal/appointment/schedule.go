package appointment

import (
	"fmt"

	"github.com/google/uuid"
)

// Grid is the fixed, ordered list of bookable start times for a clinic day,
// shared by all doctors. It is derived from clinic hours, never persisted.
type Grid struct {
	Slots []string
	Step  int // minutes between consecutive starts, also the slot length
}

// NewGrid builds the slot grid from opening time (inclusive) to closing time
// (exclusive). NewGrid("08:00", "17:00", 30) yields 08:00 through 16:30.
func NewGrid(open, close string, step int) (Grid, error) {
	if step <= 0 {
		return Grid{}, fmt.Errorf("grid step must be positive, got %d", step)
	}
	start, err := minuteOfDay(open)
	if err != nil {
		return Grid{}, fmt.Errorf("grid open: %w", err)
	}
	end, err := minuteOfDay(close)
	if err != nil {
		return Grid{}, fmt.Errorf("grid close: %w", err)
	}
	if end <= start {
		return Grid{}, fmt.Errorf("grid close %s must be after open %s", close, open)
	}

	var slots []string
	for m := start; m < end; m += step {
		slots = append(slots, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return Grid{Slots: slots, Step: step}, nil
}

// DefaultGrid returns the standard clinic day, 08:00 through 16:30 in
// half-hour steps.
func DefaultGrid() Grid {
	g, err := NewGrid("08:00", "17:00", DefaultDurationMinutes)
	if err != nil {
		panic(err) // static inputs
	}
	return g
}

// minuteOfDay parses an HH:MM wall-clock string into minutes since midnight.
func minuteOfDay(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return h*60 + m, nil
}

// overlaps tests half-open interval intersection: [aStart, aEnd) against
// [bStart, bEnd).
func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// CheckConflict decides whether candidate can be booked against the given
// roster. It returns the first existing appointment whose [start, start+dur)
// interval overlaps the candidate's, or nil if the slot is clear.
//
// Only active appointments (status not canceled/completed) for the candidate's
// doctor and date participate. excludeID removes a record from its own
// conflict check when rescheduling; pass uuid.Nil otherwise. Two appointments
// at the identical start time always conflict, whatever their durations.
// Roster entries with a missing doctor, date or time, or an unparseable time,
// cannot be positioned on the day and are skipped; callers can surface them
// with UnreadableCount.
//
// The check is a pure function of its inputs and mutates nothing.
func CheckConflict(existing []Appointment, candidate Appointment, excludeID uuid.UUID) (*Appointment, error) {
	if candidate.Doctor == "" || candidate.Date == "" || candidate.Time == "" {
		return nil, &ValidationError{Fields: missingOf(candidate)}
	}
	if candidate.Duration < 0 {
		return nil, &ValidationError{Fields: []string{"duration"}}
	}
	candStart, err := minuteOfDay(candidate.Time)
	if err != nil {
		return nil, &ValidationError{Fields: []string{"time"}}
	}
	candEnd := candStart + candidate.EffectiveDuration()

	for i := range existing {
		other := &existing[i]
		if excludeID != uuid.Nil && other.ID == excludeID {
			continue
		}
		if other.Status.Terminal() {
			continue
		}
		if other.Doctor != candidate.Doctor || other.Date != candidate.Date {
			continue
		}
		if other.Time == "" {
			continue
		}
		start, err := minuteOfDay(other.Time)
		if err != nil {
			continue
		}
		if start == candStart {
			return other, nil
		}
		if overlaps(candStart, candEnd, start, start+other.EffectiveDuration()) {
			return other, nil
		}
	}
	return nil, nil
}

// AvailableSlots returns the grid start times still free for a doctor on a
// date, in grid order. A slot is occupied when any active appointment's
// interval overlaps the slot's, so a 60-minute visit at 09:00 removes both
// the 09:00 and 09:30 slots. An empty result means a fully booked day.
func AvailableSlots(existing []Appointment, doctor, date string, grid Grid) []string {
	type interval struct{ start, end int }
	var booked []interval

	for i := range existing {
		a := &existing[i]
		if a.Status.Terminal() || a.Doctor != doctor || a.Date != date || a.Time == "" {
			continue
		}
		start, err := minuteOfDay(a.Time)
		if err != nil {
			continue
		}
		booked = append(booked, interval{start: start, end: start + a.EffectiveDuration()})
	}

	free := make([]string, 0, len(grid.Slots))
	for _, slot := range grid.Slots {
		start, err := minuteOfDay(slot)
		if err != nil {
			continue
		}
		end := start + grid.Step
		occupied := false
		for _, b := range booked {
			if overlaps(start, end, b.start, b.end) {
				occupied = true
				break
			}
		}
		if !occupied {
			free = append(free, slot)
		}
	}
	return free
}

// UnreadableCount reports roster entries that cannot take part in conflict
// checks because doctor, date or time is missing or the time does not parse.
func UnreadableCount(existing []Appointment) int {
	n := 0
	for i := range existing {
		a := &existing[i]
		if a.Doctor == "" || a.Date == "" || a.Time == "" {
			n++
			continue
		}
		if _, err := minuteOfDay(a.Time); err != nil {
			n++
		}
	}
	return n
}

func missingOf(a Appointment) []string {
	var fields []string
	if a.Doctor == "" {
		fields = append(fields, "doctor")
	}
	if a.Date == "" {
		fields = append(fields, "date")
	}
	if a.Time == "" {
		fields = append(fields, "time")
	}
	return fields
}
