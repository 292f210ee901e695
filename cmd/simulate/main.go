package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/billing"
	"github.com/hackgods/clinic-scheduling/internal/booking"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

// SimConfig drives a burst of concurrent booking requests against a few
// slots, then checks that no slot ended above its capacity.
type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	Slots        int
	ReadRatio    float64
	PatientLimit int
	Token        string
}

type target struct {
	ProfessionalID uuid.UUID
	SpecialtyID    uuid.UUID
	Date           time.Time
	Time           schedule.TimeOfDay
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.Latencies...)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, p50, p95
}

type Simulator struct {
	config   SimConfig
	patients []uuid.UUID
	targets  []target
	client   *http.Client
	logger   *slog.Logger

	booking  OperationMetrics
	capacity OperationMetrics
	list     OperationMetrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		logging.New("simulate", "prod").Error("config load error", "error", err)
		os.Exit(1)
	}
	logger := logging.New("simulate", baseCfg.Env)

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 20*time.Second),
		Workers:      getInt("SIM_WORKERS", 20),
		Slots:        getInt("SIM_SLOTS", 5),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 2000),
		Token:        os.Getenv("SIM_TOKEN"),
	}
	if cfg.Workers <= 0 || cfg.Duration <= 0 || cfg.Slots <= 0 {
		logger.Error("SIM_WORKERS, SIM_DURATION and SIM_SLOTS must be > 0")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, baseCfg.PostgresDSN)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	loc := baseCfg.Location()
	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
	if err := sim.load(ctx, pool, loc); err != nil {
		logger.Error("load simulation data", "error", err)
		os.Exit(1)
	}
	logger.Info("loaded", "patients", len(sim.patients), "slots", len(sim.targets))

	sim.Run()
	sim.PrintReport()

	scheduleRepo := schedule.NewPgRepository(pool)
	bookingRepo := booking.NewPgRepository(pool, billing.NewPgRepository())
	if !sim.verify(context.Background(), schedule.NewValidator(scheduleRepo, bookingRepo)) {
		os.Exit(2)
	}
}

// load picks upcoming slots from active rules, one per rule, on the next
// date that falls on the rule's weekday.
func (s *Simulator) load(ctx context.Context, pool *pgxpool.Pool, loc *time.Location) error {
	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, s.config.PatientLimit)
	if err != nil {
		return fmt.Errorf("load patients: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		s.patients = append(s.patients, id)
	}
	rows.Close()
	if len(s.patients) == 0 {
		return fmt.Errorf("no patients loaded, run cmd/seed first")
	}

	tomorrow := schedule.Date(time.Now().In(loc)).AddDate(0, 0, 1)
	repo := schedule.NewPgRepository(pool)
	rules, err := repo.ListRules(ctx, schedule.RuleFilter{Status: schedule.RuleStatusActive, Today: tomorrow})
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	for _, r := range rules {
		if len(s.targets) == s.config.Slots {
			break
		}
		date := tomorrow
		for schedule.Weekday(date) != r.DayOfWeek {
			date = date.AddDate(0, 0, 1)
		}
		if !r.ValidOn(date) {
			continue
		}
		s.targets = append(s.targets, target{
			ProfessionalID: r.ProfessionalID,
			SpecialtyID:    r.SpecialtyID,
			Date:           date,
			Time:           r.StartTime,
		})
	}
	if len(s.targets) == 0 {
		return fmt.Errorf("no bookable slots found")
	}
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info("starting simulation", "duration", s.config.Duration, "workers", s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()

	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		t := s.targets[rng.Intn(len(s.targets))]
		if rng.Float64() < s.config.ReadRatio {
			if rng.Intn(2) == 0 {
				s.doCapacity(ctx, t)
			} else {
				s.doList(ctx, t)
			}
			continue
		}
		s.doBooking(ctx, rng, t)
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand, t target) {
	body, _ := json.Marshal(map[string]any{
		"professional_id": t.ProfessionalID,
		"specialty_id":    t.SpecialtyID,
		"patient_id":      s.patients[rng.Intn(len(s.patients))],
		"date":            schedule.FormatDate(t.Date),
		"time":            t.Time.String(),
	})

	start := time.Now()
	status, err := s.send(ctx, http.MethodPost, "/bookings", body)
	if ctx.Err() != nil {
		return
	}
	s.booking.Record(time.Since(start), err == nil && status == http.StatusCreated, status == http.StatusConflict)
}

func (s *Simulator) doCapacity(ctx context.Context, t target) {
	path := fmt.Sprintf("/slots/capacity?professional=%s&specialty=%s&date=%s&time=%s",
		t.ProfessionalID, t.SpecialtyID, schedule.FormatDate(t.Date), t.Time)

	start := time.Now()
	status, err := s.send(ctx, http.MethodGet, path, nil)
	if ctx.Err() != nil {
		return
	}
	s.capacity.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doList(ctx context.Context, t target) {
	path := fmt.Sprintf("/bookings?date=%s&professional=%s", schedule.FormatDate(t.Date), t.ProfessionalID)

	start := time.Now()
	status, err := s.send(ctx, http.MethodGet, path, nil)
	if ctx.Err() != nil {
		return
	}
	s.list.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) send(ctx context.Context, method, path string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// verify re-reads every target slot and reports any that ended above its
// capacity.
func (s *Simulator) verify(ctx context.Context, v *schedule.Validator) bool {
	ok := true
	for _, t := range s.targets {
		state, err := v.Check(ctx, t.ProfessionalID, t.SpecialtyID, t.Date, t.Time)
		if err != nil {
			s.logger.Error("verify slot", "error", err)
			ok = false
			continue
		}
		if state.Current > state.Capacity.Max {
			s.logger.Error("slot overbooked",
				"professional_id", t.ProfessionalID,
				"date", schedule.FormatDate(t.Date),
				"time", t.Time.String(),
				"max", state.Capacity.Max,
				"current", state.Current,
			)
			ok = false
		}
	}
	if ok {
		fmt.Println("capacity check: no slot exceeded its limit")
	}
	return ok
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d  Slots: %d\n\n", s.config.Workers, len(s.targets))

	printOperationReport("Create booking", &s.booking)
	printOperationReport("Slot capacity", &s.capacity)
	printOperationReport("List day", &s.list)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}
	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s\n\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
