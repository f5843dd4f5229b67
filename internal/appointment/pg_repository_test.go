package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var apptCols = []string{
	"id", "patient_id", "patient_name", "doctor", "visit_date", "start_time",
	"duration_mins", "type", "status", "notes", "room", "created_at", "updated_at",
}

func apptRow(id uuid.UUID) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(apptCols).AddRow(
		id, (*uuid.UUID)(nil), "Emily Johnson", "Dr. Sarah Chen", "2024-06-10", "09:00",
		30, TypeFollowUp, StatusPending, "", (*string)(nil), now, now,
	)
}

func TestPgRepositoryFindByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("FROM appointments").
		WithArgs(id).
		WillReturnRows(apptRow(id))

	repo := NewPgRepository(mock)
	appt, err := repo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if appt.ID != id {
		t.Errorf("id = %s, want %s", appt.ID, id)
	}
	if appt.Doctor != "Dr. Sarah Chen" {
		t.Errorf("doctor = %q", appt.Doctor)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPgRepositoryFindByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("FROM appointments").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(apptCols))

	repo := NewPgRepository(mock)
	if _, err := repo.FindByID(context.Background(), id); err != ErrAppointmentNotFound {
		t.Fatalf("err = %v, want ErrAppointmentNotFound", err)
	}
}

func TestPgRepositoryListByDoctorDate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("FROM appointments").
		WithArgs("Dr. Sarah Chen", "2024-06-10").
		WillReturnRows(apptRow(uuid.New()))

	repo := NewPgRepository(mock)
	items, err := repo.ListByDoctorDate(context.Background(), "Dr. Sarah Chen", "2024-06-10")
	if err != nil {
		t.Fatalf("ListByDoctorDate: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len = %d, want 1", len(items))
	}
}

func TestPgRepositoryInsertUniqueViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_appointments_active_slot"})

	repo := NewPgRepository(mock)
	_, err = repo.Insert(context.Background(), Appointment{
		ID:          uuid.New(),
		PatientName: "Emily Johnson",
		Doctor:      "Dr. Sarah Chen",
		Date:        "2024-06-10",
		Time:        "09:00",
		Duration:    30,
		Type:        TypeFollowUp,
		Status:      StatusPending,
	})
	if err != ErrSlotTaken {
		t.Fatalf("err = %v, want ErrSlotTaken", err)
	}
}

func TestPgRepositoryDeleteByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("DELETE FROM appointments").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	repo := NewPgRepository(mock)
	if err := repo.DeleteByID(context.Background(), id); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}

	mock.ExpectExec("DELETE FROM appointments").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.DeleteByID(context.Background(), id); err != ErrAppointmentNotFound {
		t.Fatalf("err = %v, want ErrAppointmentNotFound", err)
	}
}

func TestPgRepositoryCountByStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("GROUP BY status").
		WithArgs("2024-06-10").
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow(StatusPending, int64(3)).
			AddRow(StatusConfirmed, int64(5)))

	repo := NewPgRepository(mock)
	counts, err := repo.CountByStatus(context.Background(), "2024-06-10")
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[StatusPending] != 3 || counts[StatusConfirmed] != 5 {
		t.Errorf("counts = %v", counts)
	}
}

func TestPgRepositoryInsertEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	payload := []byte(`{"doctor":"Dr. Sarah Chen"}`)
	mock.ExpectExec("INSERT INTO appointment_events").
		WithArgs("APPOINTMENT_BOOKED", id, payload, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewPgRepository(mock)
	err = repo.InsertEvent(context.Background(), EventLog{
		Type:          "APPOINTMENT_BOOKED",
		AppointmentID: id,
		Payload:       payload,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPgRepositoryListEvents(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery("FROM appointment_events").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "event_type", "appointment_id", "payload", "created_at"}).
			AddRow(int64(1), "APPOINTMENT_BOOKED", id, []byte(`{}`), now).
			AddRow(int64(2), "APPOINTMENT_CANCELED", id, []byte(`{}`), now))

	repo := NewPgRepository(mock)
	events, err := repo.ListEvents(context.Background(), id)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Type != "APPOINTMENT_BOOKED" || events[1].Type != "APPOINTMENT_CANCELED" {
		t.Errorf("events = %v, %v", events[0].Type, events[1].Type)
	}
}
