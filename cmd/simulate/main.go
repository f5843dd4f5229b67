package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medtrack/ehr-scheduling/internal/appointment"
	"github.com/medtrack/ehr-scheduling/internal/db"
)

// simulate fires concurrent booking requests at a narrow set of doctor-days
// so that most requests race for the same slots, then audits the database
// for overlapping active appointments. A correct deployment always reports
// zero violations: the schedule lock plus the active-slot unique index allow
// exactly one winner per slot.

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	Doctors     int
	Days        int
	PostgresDSN string
}

type OperationMetrics struct {
	Total    int64
	Success  int64
	Conflict int64
	Invalid  int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status == http.StatusCreated:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case status == http.StatusBadRequest:
		atomic.AddInt64(&om.Invalid, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0
	}
	sorted := make([]time.Duration, len(om.latencies))
	copy(sorted, om.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	avg = sum / time.Duration(len(sorted))
	p50 = sorted[len(sorted)/2]
	p95 = sorted[len(sorted)*95/100]
	return avg, p50, p95
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulate starting")

	cfg := loadSimConfig()
	gofakeit.Seed(time.Now().UnixNano())

	doctors := make([]string, cfg.Doctors)
	for i := range doctors {
		doctors[i] = fmt.Sprintf("Dr. %s", gofakeit.LastName())
	}
	dates := make([]string, cfg.Days)
	for i := range dates {
		dates[i] = time.Now().AddDate(0, 0, i+1).Format("2006-01-02")
	}
	grid := appointment.DefaultGrid()

	log.Printf("running %d workers for %s against %s (%d doctors x %d days x %d slots)",
		cfg.Workers, cfg.Duration, cfg.APIBaseURL, len(doctors), len(dates), len(grid.Slots))

	metrics := &OperationMetrics{}
	client := &http.Client{Timeout: 10 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				bookOnce(ctx, client, cfg.APIBaseURL, doctors, dates, grid, metrics)
			}
		}()
	}
	wg.Wait()

	avg, p50, p95 := metrics.Stats()
	log.Printf("bookings: total=%d success=%d conflict=%d invalid=%d error=%d",
		metrics.Total, metrics.Success, metrics.Conflict, metrics.Invalid, metrics.Error)
	log.Printf("latency: avg=%s p50=%s p95=%s", avg, p50, p95)

	if cfg.PostgresDSN != "" {
		if err := auditOverlaps(cfg.PostgresDSN); err != nil {
			log.Fatalf("audit error: %v", err)
		}
	} else {
		log.Println("POSTGRES_DSN not set, skipping overlap audit")
	}
}

func bookOnce(ctx context.Context, client *http.Client, baseURL string, doctors, dates []string, grid appointment.Grid, metrics *OperationMetrics) {
	body, _ := json.Marshal(map[string]any{
		"patientName": gofakeit.Name(),
		"doctor":      doctors[rand.Intn(len(doctors))],
		"date":        dates[rand.Intn(len(dates))],
		"time":        grid.Slots[rand.Intn(len(grid.Slots))],
		"type":        "checkup",
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			metrics.Record(time.Since(start), 0)
		}
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	metrics.Record(time.Since(start), resp.StatusCode)
}

// auditOverlaps self-joins active appointments per doctor-day and counts
// interval intersections. The schedule lock should make this always zero.
func auditOverlaps(dsn string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, 0)
	if err != nil {
		return err
	}
	defer pool.Close()

	violations, err := countOverlaps(ctx, pool)
	if err != nil {
		return err
	}

	if violations > 0 {
		log.Printf("FAIL: %d overlapping active appointment pairs found", violations)
		os.Exit(1)
	}
	log.Println("OK: no overlapping active appointments")
	return nil
}

func countOverlaps(ctx context.Context, pool *pgxpool.Pool) (int64, error) {
	var n int64
	err := pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments a
		JOIN appointments b
		  ON a.doctor = b.doctor
		 AND a.visit_date = b.visit_date
		 AND a.id < b.id
		 AND a.status NOT IN ('canceled', 'completed')
		 AND b.status NOT IN ('canceled', 'completed')
		WHERE (split_part(a.start_time, ':', 1)::int * 60 + split_part(a.start_time, ':', 2)::int)
		      < (split_part(b.start_time, ':', 1)::int * 60 + split_part(b.start_time, ':', 2)::int + b.duration_mins)
		  AND (split_part(b.start_time, ':', 1)::int * 60 + split_part(b.start_time, ':', 2)::int)
		      < (split_part(a.start_time, ':', 1)::int * 60 + split_part(a.start_time, ':', 2)::int + a.duration_mins)
	`).Scan(&n)
	return n, err
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:  getEnv("SIM_API_URL", "http://localhost:8080"),
		Duration:    30 * time.Second,
		Workers:     16,
		Doctors:     2,
		Days:        2,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
	}
	if v := os.Getenv("SIM_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Duration = d
		}
	}
	if v := os.Getenv("SIM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("SIM_DOCTORS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Doctors = n
		}
	}
	if v := os.Getenv("SIM_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Days = n
		}
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
