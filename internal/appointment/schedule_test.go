package appointment

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
)

func appt(doctor, date, tm string, duration int, status Status) Appointment {
	return Appointment{
		ID:          uuid.New(),
		PatientName: "Test Patient",
		Doctor:      doctor,
		Date:        date,
		Time:        tm,
		Duration:    duration,
		Type:        TypeCheckup,
		Status:      status,
	}
}

func TestNewGrid(t *testing.T) {
	g, err := NewGrid("08:00", "17:00", 30)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	if len(g.Slots) != 18 {
		t.Fatalf("len(Slots) = %d, want 18", len(g.Slots))
	}
	if g.Slots[0] != "08:00" {
		t.Errorf("first slot = %q, want 08:00", g.Slots[0])
	}
	if g.Slots[17] != "16:30" {
		t.Errorf("last slot = %q, want 16:30", g.Slots[17])
	}

	if _, err := NewGrid("17:00", "08:00", 30); err == nil {
		t.Error("expected error for close before open")
	}
	if _, err := NewGrid("08:00", "17:00", 0); err == nil {
		t.Error("expected error for zero step")
	}
}

func TestCheckConflictSameSlot(t *testing.T) {
	existing := []Appointment{
		appt("D1", "2024-06-10", "09:00", 30, StatusConfirmed),
	}
	cand := appt("D1", "2024-06-10", "09:00", 30, StatusPending)

	conflict, err := CheckConflict(existing, cand, uuid.Nil)
	if err != nil {
		t.Fatalf("CheckConflict: %v", err)
	}
	if conflict == nil {
		t.Fatal("expected conflict for identical slot")
	}
	if conflict.ID != existing[0].ID {
		t.Errorf("conflicting id = %s, want %s", conflict.ID, existing[0].ID)
	}
}

func TestCheckConflictAdjacentSlotIsFree(t *testing.T) {
	existing := []Appointment{
		appt("D1", "2024-06-10", "09:00", 30, StatusConfirmed),
	}
	cand := appt("D1", "2024-06-10", "09:30", 30, StatusPending)

	conflict, err := CheckConflict(existing, cand, uuid.Nil)
	if err != nil {
		t.Fatalf("CheckConflict: %v", err)
	}
	if conflict != nil {
		t.Fatalf("unexpected conflict with %s at %s", conflict.ID, conflict.Time)
	}
}

func TestCheckConflictLongVisitSpillsOver(t *testing.T) {
	existing := []Appointment{
		appt("D1", "2024-06-10", "09:00", 60, StatusConfirmed),
	}
	cand := appt("D1", "2024-06-10", "09:30", 30, StatusPending)

	conflict, err := CheckConflict(existing, cand, uuid.Nil)
	if err != nil {
		t.Fatalf("CheckConflict: %v", err)
	}
	if conflict == nil {
		t.Fatal("60-minute visit at 09:00 must block 09:30")
	}
}

func TestCheckConflictIdenticalStartAlwaysConflicts(t *testing.T) {
	// Zero stored duration still claims its start time.
	existing := []Appointment{
		appt("D1", "2024-06-10", "09:00", 0, StatusConfirmed),
	}
	cand := appt("D1", "2024-06-10", "09:00", 15, StatusPending)

	conflict, err := CheckConflict(existing, cand, uuid.Nil)
	if err != nil {
		t.Fatalf("CheckConflict: %v", err)
	}
	if conflict == nil {
		t.Fatal("identical start times must always conflict")
	}
}

func TestCheckConflictIgnoresTerminalAndOtherDoctors(t *testing.T) {
	existing := []Appointment{
		appt("D1", "2024-06-10", "09:00", 30, StatusCanceled),
		appt("D1", "2024-06-10", "09:00", 30, StatusCompleted),
		appt("D2", "2024-06-10", "09:00", 30, StatusConfirmed),
		appt("D1", "2024-06-11", "09:00", 30, StatusConfirmed),
	}
	cand := appt("D1", "2024-06-10", "09:00", 30, StatusPending)

	conflict, err := CheckConflict(existing, cand, uuid.Nil)
	if err != nil {
		t.Fatalf("CheckConflict: %v", err)
	}
	if conflict != nil {
		t.Fatalf("unexpected conflict with %s", conflict.ID)
	}
}

func TestCheckConflictExcludeID(t *testing.T) {
	a := appt("D1", "2024-06-10", "09:00", 30, StatusConfirmed)
	existing := []Appointment{a}

	// A no-op reschedule of a against itself must pass.
	conflict, err := CheckConflict(existing, a, a.ID)
	if err != nil {
		t.Fatalf("CheckConflict: %v", err)
	}
	if conflict != nil {
		t.Fatal("record must be excluded from its own conflict check")
	}
}

func TestCheckConflictSymmetry(t *testing.T) {
	a := appt("D1", "2024-06-10", "09:00", 60, StatusConfirmed)
	b := appt("D1", "2024-06-10", "09:30", 45, StatusPending)

	ab, err := CheckConflict([]Appointment{a}, b, uuid.Nil)
	if err != nil {
		t.Fatalf("CheckConflict(a, b): %v", err)
	}
	ba, err := CheckConflict([]Appointment{b}, a, uuid.Nil)
	if err != nil {
		t.Fatalf("CheckConflict(b, a): %v", err)
	}
	if (ab == nil) != (ba == nil) {
		t.Fatalf("conflict must be symmetric: a-vs-b=%v b-vs-a=%v", ab != nil, ba != nil)
	}
}

func TestCheckConflictInvalidCandidate(t *testing.T) {
	var ve *ValidationError

	cand := appt("D1", "2024-06-10", "09:00", -30, StatusPending)
	if _, err := CheckConflict(nil, cand, uuid.Nil); !errors.As(err, &ve) {
		t.Fatalf("negative duration: got %v, want ValidationError", err)
	}

	cand = appt("D1", "2024-06-10", "late morning", 30, StatusPending)
	if _, err := CheckConflict(nil, cand, uuid.Nil); !errors.As(err, &ve) {
		t.Fatalf("unparseable time: got %v, want ValidationError", err)
	}

	cand = appt("", "2024-06-10", "09:00", 30, StatusPending)
	if _, err := CheckConflict(nil, cand, uuid.Nil); !errors.As(err, &ve) {
		t.Fatalf("missing doctor: got %v, want ValidationError", err)
	}
}

func TestCheckConflictSkipsUnreadableRoster(t *testing.T) {
	existing := []Appointment{
		appt("D1", "2024-06-10", "", 30, StatusConfirmed),
		appt("D1", "2024-06-10", "whenever", 30, StatusConfirmed),
	}
	cand := appt("D1", "2024-06-10", "09:00", 30, StatusPending)

	conflict, err := CheckConflict(existing, cand, uuid.Nil)
	if err != nil {
		t.Fatalf("CheckConflict: %v", err)
	}
	if conflict != nil {
		t.Fatal("unreadable roster entries must be skipped, not treated as conflicts")
	}
	if n := UnreadableCount(existing); n != 2 {
		t.Errorf("UnreadableCount = %d, want 2", n)
	}
}

func TestAvailableSlotsLongVisitRemovesBothSlots(t *testing.T) {
	existing := []Appointment{
		appt("D1", "2024-06-10", "09:00", 60, StatusConfirmed),
	}
	free := AvailableSlots(existing, "D1", "2024-06-10", DefaultGrid())

	for _, slot := range free {
		if slot == "09:00" || slot == "09:30" {
			t.Errorf("slot %s should be occupied by the 60-minute visit", slot)
		}
	}
	if len(free) != 16 {
		t.Errorf("len(free) = %d, want 16", len(free))
	}
}

func TestAvailableSlotsAfterCancel(t *testing.T) {
	a := appt("D1", "2024-06-10", "09:00", 60, StatusConfirmed)
	free := AvailableSlots([]Appointment{a}, "D1", "2024-06-10", DefaultGrid())
	if containsSlot(free, "09:00") || containsSlot(free, "09:30") {
		t.Fatal("booked slots should be gone before cancellation")
	}

	a.Status = StatusCanceled
	free = AvailableSlots([]Appointment{a}, "D1", "2024-06-10", DefaultGrid())
	if !containsSlot(free, "09:00") || !containsSlot(free, "09:30") {
		t.Error("canceled appointment must free its slots")
	}
}

func TestAvailableSlotsOrderAndIdempotence(t *testing.T) {
	existing := []Appointment{
		appt("D1", "2024-06-10", "10:00", 30, StatusConfirmed),
		appt("D1", "2024-06-10", "08:30", 30, StatusPending),
	}
	grid := DefaultGrid()

	first := AvailableSlots(existing, "D1", "2024-06-10", grid)
	second := AvailableSlots(existing, "D1", "2024-06-10", grid)

	if len(first) != len(second) {
		t.Fatalf("idempotence violated: %d vs %d slots", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("idempotence violated at %d: %s vs %s", i, first[i], second[i])
		}
	}

	// Grid order is ascending, results must preserve it.
	for i := 1; i < len(first); i++ {
		a, _ := minuteOfDay(first[i-1])
		b, _ := minuteOfDay(first[i])
		if a >= b {
			t.Fatalf("slots out of grid order: %s before %s", first[i-1], first[i])
		}
	}
}

func TestAvailableSlotsFullyBookedDay(t *testing.T) {
	grid := DefaultGrid()
	var existing []Appointment
	for _, slot := range grid.Slots {
		existing = append(existing, appt("D1", "2024-06-10", slot, 30, StatusConfirmed))
	}

	free := AvailableSlots(existing, "D1", "2024-06-10", grid)
	if len(free) != 0 {
		t.Errorf("fully booked day should have no free slots, got %v", free)
	}
}

// TestRandomizedBookingInvariant drives a random sequence of candidates
// through CheckConflict, keeping only accepted ones, and asserts after every
// acceptance that no two active appointments for a doctor-day overlap.
func TestRandomizedBookingInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	grid := DefaultGrid()
	doctors := []string{"D1", "D2", "D3"}
	dates := []string{"2024-06-10", "2024-06-11"}
	durations := []int{15, 30, 45, 60}

	var roster []Appointment
	for i := 0; i < 500; i++ {
		cand := appt(
			doctors[rng.Intn(len(doctors))],
			dates[rng.Intn(len(dates))],
			grid.Slots[rng.Intn(len(grid.Slots))],
			durations[rng.Intn(len(durations))],
			StatusPending,
		)

		conflict, err := CheckConflict(roster, cand, uuid.Nil)
		if err != nil {
			t.Fatalf("CheckConflict: %v", err)
		}
		if conflict != nil {
			// Occasionally cancel the blocker to keep the day churning.
			if rng.Intn(4) == 0 {
				for j := range roster {
					if roster[j].ID == conflict.ID {
						roster[j].Status = StatusCanceled
					}
				}
			}
			continue
		}
		roster = append(roster, cand)
		assertNoOverlaps(t, roster)
	}
	if len(roster) == 0 {
		t.Fatal("randomized run accepted no bookings")
	}
}

func assertNoOverlaps(t *testing.T, roster []Appointment) {
	t.Helper()
	for i := range roster {
		for j := i + 1; j < len(roster); j++ {
			a, b := roster[i], roster[j]
			if a.Status.Terminal() || b.Status.Terminal() {
				continue
			}
			if a.Doctor != b.Doctor || a.Date != b.Date {
				continue
			}
			aStart, _ := minuteOfDay(a.Time)
			bStart, _ := minuteOfDay(b.Time)
			if overlaps(aStart, aStart+a.EffectiveDuration(), bStart, bStart+b.EffectiveDuration()) {
				t.Fatalf("overlap: %s %s/%s+%dm vs %s/%s+%dm",
					a.Doctor, a.Date, a.Time, a.EffectiveDuration(), b.Date, b.Time, b.EffectiveDuration())
			}
		}
	}
}

func containsSlot(slots []string, want string) bool {
	for _, s := range slots {
		if s == want {
			return true
		}
	}
	return false
}
