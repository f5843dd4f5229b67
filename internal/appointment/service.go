package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medtrack/ehr-scheduling/internal/metrics"
	redisclient "github.com/medtrack/ehr-scheduling/internal/redis"
)

// Audit trail event types, one per lifecycle action.
const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCanceled    = "APPOINTMENT_CANCELED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentDeleted     = "APPOINTMENT_DELETED"
)

type Service struct {
	repo    Repository
	locker  redisclient.Locker
	grid    Grid
	log     *zap.Logger
	metrics *metrics.BookingMetrics
	now     func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, grid Grid, log *zap.Logger, m *metrics.BookingMetrics) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		locker:  locker,
		grid:    grid,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

func (s *Service) Grid() Grid {
	return s.grid
}

// Book reserves a slot for a patient. The conflict pre-check and the insert
// run inside the per doctor-day lock so that concurrent requests for the same
// slot cannot both pass the check; the repository's uniqueness constraint is
// the backstop if they somehow do.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	cand, err := s.fromRequest(req)
	if err != nil {
		s.metrics.ObserveBooking(metrics.OutcomeInvalid)
		return nil, err
	}

	var created *Appointment

	err = s.locker.WithScheduleLock(ctx, cand.Doctor, cand.Date, func(lockCtx context.Context) error {
		roster, err := s.repo.ListByDoctorDate(lockCtx, cand.Doctor, cand.Date)
		if err != nil {
			return fmt.Errorf("load roster: %w", err)
		}
		s.warnUnreadable(roster, cand.Doctor, cand.Date)

		conflict, err := CheckConflict(roster, cand, uuid.Nil)
		if err != nil {
			return err
		}
		if conflict != nil {
			return &SlotUnavailableError{
				Doctor:        cand.Doctor,
				Date:          cand.Date,
				Time:          cand.Time,
				ConflictingID: conflict.ID,
			}
		}

		stored, err := s.repo.Insert(lockCtx, cand)
		if err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return &SlotUnavailableError{Doctor: cand.Doctor, Date: cand.Date, Time: cand.Time}
			}
			return fmt.Errorf("insert appointment: %w", err)
		}
		created = stored
		s.recordEvent(lockCtx, created.ID, EventAppointmentBooked, map[string]any{
			"doctor": created.Doctor,
			"date":   created.Date,
			"time":   created.Time,
			"type":   string(created.Type),
		})
		return nil
	})
	if err != nil {
		s.metrics.ObserveBooking(bookingOutcome(err))
		return nil, err
	}

	s.metrics.ObserveBooking(metrics.OutcomeOK)
	s.log.Info("appointment booked",
		zap.String("id", created.ID.String()),
		zap.String("doctor", created.Doctor),
		zap.String("date", created.Date),
		zap.String("time", created.Time),
	)
	return created, nil
}

// Reschedule merges updates into an existing appointment and re-runs the
// conflict check with the record excluded from its own roster. On conflict
// the stored record is left untouched.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, upd UpdateRequest) (*Appointment, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.metrics.ObserveReschedule(rescheduleOutcome(err))
		return nil, err
	}
	if current.Status.Terminal() {
		s.metrics.ObserveReschedule(metrics.OutcomeInvalid)
		return nil, fmt.Errorf("reschedule %s appointment: %w", current.Status, ErrAppointmentClosed)
	}

	merged := applyUpdate(*current, upd)
	if err := validateMerged(merged); err != nil {
		s.metrics.ObserveReschedule(metrics.OutcomeInvalid)
		return nil, err
	}

	var updated *Appointment

	err = s.locker.WithScheduleLock(ctx, merged.Doctor, merged.Date, func(lockCtx context.Context) error {
		roster, err := s.repo.ListByDoctorDate(lockCtx, merged.Doctor, merged.Date)
		if err != nil {
			return fmt.Errorf("load roster: %w", err)
		}
		s.warnUnreadable(roster, merged.Doctor, merged.Date)

		conflict, err := CheckConflict(roster, merged, id)
		if err != nil {
			return err
		}
		if conflict != nil {
			return &SlotUnavailableError{
				Doctor:        merged.Doctor,
				Date:          merged.Date,
				Time:          merged.Time,
				ConflictingID: conflict.ID,
			}
		}

		stored, err := s.repo.UpdateByID(lockCtx, merged)
		if err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return &SlotUnavailableError{Doctor: merged.Doctor, Date: merged.Date, Time: merged.Time}
			}
			return fmt.Errorf("update appointment: %w", err)
		}
		updated = stored
		s.recordEvent(lockCtx, updated.ID, EventAppointmentRescheduled, map[string]any{
			"doctor": updated.Doctor,
			"date":   updated.Date,
			"time":   updated.Time,
			"from": map[string]string{
				"doctor": current.Doctor,
				"date":   current.Date,
				"time":   current.Time,
			},
		})
		return nil
	})
	if err != nil {
		s.metrics.ObserveReschedule(rescheduleOutcome(err))
		return nil, err
	}

	s.metrics.ObserveReschedule(metrics.OutcomeOK)
	s.log.Info("appointment rescheduled",
		zap.String("id", id.String()),
		zap.String("doctor", updated.Doctor),
		zap.String("date", updated.Date),
		zap.String("time", updated.Time),
	)
	return updated, nil
}

// Cancel moves an appointment to canceled, freeing its slot.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCanceled)
}

// Confirm moves a pending appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusConfirmed)
}

// Complete closes out a confirmed appointment after the visit.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, to) {
		return nil, fmt.Errorf("%s -> %s: %w", current.Status, to, ErrInvalidStatusTransition)
	}

	next := *current
	next.Status = to
	updated, err := s.repo.UpdateByID(ctx, next)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	s.recordEvent(ctx, updated.ID, statusEvent(to), map[string]any{
		"from": string(current.Status),
		"to":   string(to),
	})

	s.log.Info("appointment status changed",
		zap.String("id", id.String()),
		zap.String("from", string(current.Status)),
		zap.String("to", string(to)),
	)
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Appointment, error) {
	out, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return out, nil
}

// ListUpcoming returns active appointments from today onward, soonest first.
func (s *Service) ListUpcoming(ctx context.Context) ([]Appointment, error) {
	today := s.now().Format("2006-01-02")
	out, err := s.repo.List(ctx, ListFilter{FromDate: today})
	if err != nil {
		return nil, fmt.Errorf("list upcoming: %w", err)
	}
	active := out[:0]
	for _, a := range out {
		if !a.Status.Terminal() {
			active = append(active, a)
		}
	}
	return active, nil
}

func (s *Service) ListRange(ctx context.Context, from, to string) ([]Appointment, error) {
	if from == "" || to == "" {
		var fields []string
		if from == "" {
			fields = append(fields, "startDate")
		}
		if to == "" {
			fields = append(fields, "endDate")
		}
		return nil, &ValidationError{Fields: fields}
	}
	out, err := s.repo.List(ctx, ListFilter{FromDate: from, ToDate: to})
	if err != nil {
		return nil, fmt.Errorf("list range: %w", err)
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.recordEvent(ctx, id, EventAppointmentDeleted, map[string]any{
		"doctor": current.Doctor,
		"date":   current.Date,
		"time":   current.Time,
		"status": string(current.Status),
	})
	return nil
}

// Events returns the audit trail for an appointment, oldest first. Deleted
// appointments keep their history; the trail is the only record left of them.
func (s *Service) Events(ctx context.Context, id uuid.UUID) ([]EventLog, error) {
	events, err := s.repo.ListEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list appointment events: %w", err)
	}
	return events, nil
}

// Stats aggregates appointment counts per status, the dashboard number set.
func (s *Service) Stats(ctx context.Context, date string) (map[Status]int, error) {
	counts, err := s.repo.CountByStatus(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	return counts, nil
}

// AvailableSlots enumerates the free grid slots for a doctor on a date.
// The result is stable between calls when no writes intervene.
func (s *Service) AvailableSlots(ctx context.Context, doctor, date string) ([]string, error) {
	var fields []string
	if doctor == "" {
		fields = append(fields, "doctor")
	}
	if date == "" {
		fields = append(fields, "date")
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	roster, err := s.repo.ListByDoctorDate(ctx, doctor, date)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	s.warnUnreadable(roster, doctor, date)
	return AvailableSlots(roster, doctor, date, s.grid), nil
}

// fromRequest validates a booking request and resolves its defaults.
func (s *Service) fromRequest(req BookingRequest) (Appointment, error) {
	var fields []string
	if req.PatientName == "" {
		fields = append(fields, "patientName")
	}
	if req.Doctor == "" {
		fields = append(fields, "doctor")
	}
	if req.Date == "" {
		fields = append(fields, "date")
	} else if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		fields = append(fields, "date")
	}
	if req.Time == "" {
		fields = append(fields, "time")
	} else if _, err := minuteOfDay(req.Time); err != nil {
		fields = append(fields, "time")
	}
	if req.Type == "" || !req.Type.Valid() {
		fields = append(fields, "type")
	}
	if req.Duration < 0 {
		fields = append(fields, "duration")
	}
	status := req.Status
	if status == "" {
		status = StatusPending
	}
	if !status.Valid() || status.Terminal() {
		fields = append(fields, "status")
	}
	if len(fields) > 0 {
		sort.Strings(fields)
		return Appointment{}, &ValidationError{Fields: fields}
	}

	duration := req.Duration
	if duration == 0 {
		duration = req.Type.DefaultDuration()
	}

	a := Appointment{
		ID:          uuid.New(),
		PatientID:   req.PatientID,
		PatientName: req.PatientName,
		Doctor:      req.Doctor,
		Date:        req.Date,
		Time:        req.Time,
		Duration:    duration,
		Type:        req.Type,
		Status:      status,
		Notes:       req.Notes,
	}
	if req.Room != "" {
		room := req.Room
		a.Room = &room
	}
	return a, nil
}

func applyUpdate(a Appointment, upd UpdateRequest) Appointment {
	if upd.PatientName != nil {
		a.PatientName = *upd.PatientName
	}
	if upd.Doctor != nil {
		a.Doctor = *upd.Doctor
	}
	if upd.Date != nil {
		a.Date = *upd.Date
	}
	if upd.Time != nil {
		a.Time = *upd.Time
	}
	if upd.Duration != nil {
		a.Duration = *upd.Duration
	}
	if upd.Type != nil {
		a.Type = *upd.Type
	}
	if upd.Notes != nil {
		a.Notes = *upd.Notes
	}
	if upd.Room != nil {
		a.Room = upd.Room
	}
	return a
}

func validateMerged(a Appointment) error {
	var fields []string
	if a.PatientName == "" {
		fields = append(fields, "patientName")
	}
	if a.Doctor == "" {
		fields = append(fields, "doctor")
	}
	if a.Date == "" {
		fields = append(fields, "date")
	} else if _, err := time.Parse("2006-01-02", a.Date); err != nil {
		fields = append(fields, "date")
	}
	if a.Time == "" {
		fields = append(fields, "time")
	} else if _, err := minuteOfDay(a.Time); err != nil {
		fields = append(fields, "time")
	}
	if !a.Type.Valid() {
		fields = append(fields, "type")
	}
	if a.Duration <= 0 {
		fields = append(fields, "duration")
	}
	if len(fields) > 0 {
		sort.Strings(fields)
		return &ValidationError{Fields: fields}
	}
	return nil
}

// warnUnreadable surfaces roster records that the conflict check has to skip.
// A record without a doctor, date or parseable time cannot be positioned on
// the day, which usually means a bad import.
func (s *Service) warnUnreadable(roster []Appointment, doctor, date string) {
	if n := UnreadableCount(roster); n > 0 {
		s.log.Warn("roster contains unreadable appointments",
			zap.String("doctor", doctor),
			zap.String("date", date),
			zap.Int("count", n),
		)
	}
}

// recordEvent appends to the audit trail. The trail is best effort: a failed
// insert is logged and swallowed so it never rolls back the booking itself.
func (s *Service) recordEvent(ctx context.Context, id uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("marshal event payload failed",
			zap.String("event", eventType),
			zap.Error(err),
		)
		data = nil
	}

	ev := EventLog{
		Type:          eventType,
		AppointmentID: id,
		Payload:       data,
		CreatedAt:     s.now(),
	}
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("insert event log failed",
			zap.String("event", eventType),
			zap.String("id", id.String()),
			zap.Error(err),
		)
	}
}

func statusEvent(to Status) string {
	switch to {
	case StatusConfirmed:
		return EventAppointmentConfirmed
	case StatusCanceled:
		return EventAppointmentCanceled
	case StatusCompleted:
		return EventAppointmentCompleted
	}
	return "APPOINTMENT_STATUS_CHANGED"
}

func bookingOutcome(err error) string {
	var ve *ValidationError
	var se *SlotUnavailableError
	switch {
	case errors.As(err, &se), errors.Is(err, redisclient.ErrLockNotAcquired):
		return metrics.OutcomeConflict
	case errors.As(err, &ve):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}

func rescheduleOutcome(err error) string {
	if errors.Is(err, ErrAppointmentNotFound) {
		return metrics.OutcomeInvalid
	}
	return bookingOutcome(err)
}
