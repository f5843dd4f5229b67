package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medtrack/ehr-scheduling/internal/appointment"
	"github.com/medtrack/ehr-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, 0)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedAppointments(context.Background(), pool, 800); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

var doctors = []string{
	"Dr. Sarah Chen",
	"Dr. James Wilson",
	"Dr. Mark Johnson",
	"Dr. Emily Roberts",
	"Dr. Michael Thompson",
}

var visitTypes = []appointment.VisitType{
	appointment.TypeConsultation,
	appointment.TypeFollowUp,
	appointment.TypeCheckup,
	appointment.TypeLabResults,
	appointment.TypeVaccination,
	appointment.TypeSurgery,
	appointment.TypeEmergency,
	appointment.TypeTherapy,
}

var statuses = []appointment.Status{
	appointment.StatusPending,
	appointment.StatusConfirmed,
	appointment.StatusConfirmed, // weight toward confirmed
	appointment.StatusCanceled,
	appointment.StatusCompleted,
}

func seedAppointments(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d appointments", count)

	grid := appointment.DefaultGrid()
	const batchSize = 200

	// Track claimed doctor-day start times so the seed itself never trips
	// the active-slot unique index.
	taken := make(map[string]bool)

	inserted := 0
	for inserted < count {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		batch := 0
		for batch < batchSize && inserted < count {
			doctor := doctors[gofakeit.Number(0, len(doctors)-1)]
			date := time.Now().AddDate(0, 0, gofakeit.Number(0, 13)).Format("2006-01-02")
			slotIdx := gofakeit.Number(0, len(grid.Slots)-1)
			slot := grid.Slots[slotIdx]
			status := statuses[gofakeit.Number(0, len(statuses)-1)]
			visitType := visitTypes[gofakeit.Number(0, len(visitTypes)-1)]

			// A 45- or 60-minute visit spills into the next grid slot, so an
			// active appointment claims every slot its interval touches.
			span := (visitType.DefaultDuration() + grid.Step - 1) / grid.Step
			if !status.Terminal() {
				free := true
				for i := slotIdx; i < slotIdx+span && i < len(grid.Slots); i++ {
					if taken[fmt.Sprintf("%s|%s|%s", doctor, date, grid.Slots[i])] {
						free = false
						break
					}
				}
				if !free {
					continue
				}
				for i := slotIdx; i < slotIdx+span && i < len(grid.Slots); i++ {
					taken[fmt.Sprintf("%s|%s|%s", doctor, date, grid.Slots[i])] = true
				}
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO appointments (id, patient_id, patient_name, doctor, visit_date, start_time,
					duration_mins, type, status, notes, room, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
			`, uuid.New(), uuid.New(), gofakeit.Name(), doctor, date, slot,
				visitType.DefaultDuration(), string(visitType), string(status),
				gofakeit.Sentence(8), fmt.Sprintf("Room %d", gofakeit.Number(100, 320)))
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			batch++
			inserted++
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("appointments seeded: %d/%d", inserted, count)
	}

	log.Println("appointments seeded")
	return nil
}
