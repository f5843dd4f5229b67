package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the slice of pgxpool.Pool the repository needs, kept as an
// interface so pgxmock can stand in during tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool PgxPool
}

func NewPgRepository(pool PgxPool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, patient_id, patient_name, doctor, visit_date, start_time,
		duration_mins, type, status, notes, room, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var patientID *uuid.UUID
	var room *string

	err := row.Scan(
		&a.ID,
		&patientID,
		&a.PatientName,
		&a.Doctor,
		&a.Date,
		&a.Time,
		&a.Duration,
		&a.Type,
		&a.Status,
		&a.Notes,
		&room,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if patientID != nil {
		a.PatientID = *patientID
	}
	a.Room = room
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// isUniqueViolation matches the partial unique index on
// (doctor, visit_date, start_time) over active rows.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullablePatientID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Interface methods

func (r *PgRepository) ListByDoctorDate(ctx context.Context, doctor, date string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor = $1 AND visit_date = $2
		ORDER BY start_time
	`, doctor, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) List(ctx context.Context, f ListFilter) ([]Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.Doctor != "" {
		add("doctor = $%d", f.Doctor)
	}
	if f.Date != "" {
		add("visit_date = $%d", f.Date)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.FromDate != "" {
		add("visit_date >= $%d", f.FromDate)
	}
	if f.ToDate != "" {
		add("visit_date <= $%d", f.ToDate)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(patient_name ILIKE $%d OR doctor ILIKE $%d OR notes ILIKE $%d)", n, n, n))
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY visit_date, start_time"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) Insert(ctx context.Context, a Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, patient_name, doctor, visit_date, start_time,
			duration_mins, type, status, notes, room, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING `+appointmentColumns+`
	`, a.ID, nullablePatientID(a.PatientID), a.PatientName, a.Doctor, a.Date, a.Time,
		a.Duration, string(a.Type), string(a.Status), a.Notes, a.Room)

	stored, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return stored, nil
}

func (r *PgRepository) UpdateByID(ctx context.Context, a Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET patient_id = $2,
		    patient_name = $3,
		    doctor = $4,
		    visit_date = $5,
		    start_time = $6,
		    duration_mins = $7,
		    type = $8,
		    status = $9,
		    notes = $10,
		    room = $11,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, a.ID, nullablePatientID(a.PatientID), a.PatientName, a.Doctor, a.Date, a.Time,
		a.Duration, string(a.Type), string(a.Status), a.Notes, a.Room)

	stored, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return stored, nil
}

func (r *PgRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM appointments
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) CountByStatus(ctx context.Context, date string) (map[Status]int, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if date == "" {
		rows, err = r.pool.Query(ctx, `
			SELECT status, COUNT(*)
			FROM appointments
			GROUP BY status
		`)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT status, COUNT(*)
			FROM appointments
			WHERE visit_date = $1
			GROUP BY status
		`, date)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.Type, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert appointment event: %w", err)
	}
	return nil
}

func (r *PgRepository) ListEvents(ctx context.Context, appointmentID uuid.UUID) ([]EventLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_type, appointment_id, payload, created_at
		FROM appointment_events
		WHERE appointment_id = $1
		ORDER BY id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventLog
	for rows.Next() {
		var ev EventLog
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.AppointmentID, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

var _ Repository = (*PgRepository)(nil)
