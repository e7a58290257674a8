package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
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
	"github.com/rs/zerolog"

	"github.com/slotline/booking-core/internal/config"
	"github.com/slotline/booking-core/internal/db"
	"github.com/slotline/booking-core/internal/logging"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	SearchRatio   float64
	CancelRatio   float64
	AcceptRatio   float64
	RegisterRatio float64
	BookingLimit  int
	PostgresDSN   string
}

type searchTarget struct {
	BusinessID uuid.UUID
	ServiceID  uuid.UUID
}

type cancelTarget struct {
	BusinessID uuid.UUID
	BookingID  uuid.UUID
}

type registerTarget struct {
	BusinessID     uuid.UUID
	PractitionerID uuid.UUID
	ServiceID      uuid.UUID
}

type DataPool struct {
	Searches  []searchTarget
	Bookings  []cancelTarget
	Registers []registerTarget

	mu     sync.RWMutex
	tokens []string // offer tokens collected from cancellation responses
}

func (dp *DataPool) AddToken(token string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.tokens = append(dp.tokens, token)
}

func (dp *DataPool) TakeToken(rng *rand.Rand) (string, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.tokens) == 0 {
		return "", false
	}
	idx := rng.Intn(len(dp.tokens))
	token := dp.tokens[idx]
	dp.tokens = append(dp.tokens[:idx], dp.tokens[idx+1:]...)
	return token, true
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
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Search   OperationMetrics
	Cancel   OperationMetrics
	Accept   OperationMetrics
	Register OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger
}

func main() {
	logger := logging.New(os.Getenv("APP_ENV"), "simulate")
	logger.Info().Msg("simulator starting")

	cfg := loadConfig(logger)
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("search", cfg.SearchRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("accept", cfg.AcceptRatio).
		Float64("register", cfg.RegisterRatio).
		Msg("config loaded")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}

	logger.Info().
		Int("search_targets", len(dataPool.Searches)).
		Int("bookings", len(dataPool.Bookings)).
		Int("register_targets", len(dataPool.Registers)).
		Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig(logger zerolog.Logger) SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load base config")
	}

	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		SearchRatio:   getFloat("SIM_SEARCH_RATIO", 0.5),
		CancelRatio:   getFloat("SIM_CANCEL_RATIO", 0.2),
		AcceptRatio:   getFloat("SIM_ACCEPT_RATIO", 0.1),
		RegisterRatio: getFloat("SIM_REGISTER_RATIO", 0.2),
		BookingLimit:  getInt("SIM_BOOKING_LIMIT", 2000),
		PostgresDSN:   baseCfg.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.SearchRatio + cfg.CancelRatio + cfg.AcceptRatio + cfg.RegisterRatio
	if total > 0 {
		cfg.SearchRatio /= total
		cfg.CancelRatio /= total
		cfg.AcceptRatio /= total
		cfg.RegisterRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT business_id, id FROM services WHERE active
	`)
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t searchTarget
		if err := rows.Scan(&t.BusinessID, &t.ServiceID); err != nil {
			return nil, err
		}
		dataPool.Searches = append(dataPool.Searches, t)
	}

	rows, err = pool.Query(ctx, `
		SELECT business_id, id FROM bookings
		WHERE status IN ('pending', 'confirmed') AND start_at > now()
		LIMIT $1
	`, cfg.BookingLimit)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t cancelTarget
		if err := rows.Scan(&t.BusinessID, &t.BookingID); err != nil {
			return nil, err
		}
		dataPool.Bookings = append(dataPool.Bookings, t)
	}

	rows, err = pool.Query(ctx, `
		SELECT p.business_id, sp.practitioner_id, sp.service_id
		FROM service_practitioners sp
		JOIN practitioners p ON p.id = sp.practitioner_id
		WHERE p.bookable
	`)
	if err != nil {
		return nil, fmt.Errorf("load register targets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t registerTarget
		if err := rows.Scan(&t.BusinessID, &t.PractitionerID, &t.ServiceID); err != nil {
			return nil, err
		}
		dataPool.Registers = append(dataPool.Registers, t)
	}

	if len(dataPool.Searches) == 0 {
		return nil, fmt.Errorf("no services loaded; run cmd/seed first")
	}
	if len(dataPool.Bookings) == 0 {
		return nil, fmt.Errorf("no cancellable bookings loaded; run cmd/seed first")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.SearchRatio:
				s.doSearch(ctx, rng)
			case r < s.config.SearchRatio+s.config.CancelRatio:
				s.doCancel(ctx, rng)
			case r < s.config.SearchRatio+s.config.CancelRatio+s.config.AcceptRatio:
				s.doAccept(ctx, rng)
			default:
				s.doRegister(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doSearch(ctx context.Context, rng *rand.Rand) {
	target := s.pool.Searches[rng.Intn(len(s.pool.Searches))]

	from := time.Now().UTC().AddDate(0, 0, 1)
	to := from.AddDate(0, 0, rng.Intn(6)+1)

	start := time.Now()

	url := fmt.Sprintf("%s/slots?business_id=%s&service_id=%s&from=%s&to=%s",
		s.config.APIBaseURL, target.BusinessID, target.ServiceID,
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.Search.Record(latency, success, false)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	target := s.pool.Bookings[rng.Intn(len(s.pool.Bookings))]

	start := time.Now()

	reqBody := map[string]string{
		"business_id": target.BusinessID.String(),
		"booking_id":  target.BookingID.String(),
	}
	body, _ := json.Marshal(reqBody)

	req, _ := http.NewRequestWithContext(ctx, "POST", s.config.APIBaseURL+"/cancellations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			success = true
			var cancelResp struct {
				Offer *struct {
					Token string `json:"token"`
				} `json:"offer"`
			}
			bodyBytes, _ := io.ReadAll(resp.Body)
			if len(bodyBytes) > 0 {
				_ = json.Unmarshal(bodyBytes, &cancelResp)
				if cancelResp.Offer != nil && cancelResp.Offer.Token != "" {
					s.pool.AddToken(cancelResp.Offer.Token)
				}
			}
		case http.StatusConflict:
			conflict = true
		}
	}

	s.metrics.Cancel.Record(latency, success, conflict)
}

func (s *Simulator) doAccept(ctx context.Context, rng *rand.Rand) {
	token, ok := s.pool.TakeToken(rng)
	if !ok {
		return
	}

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/offers/%s/accept", s.config.APIBaseURL, token), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusOK:
			success = true
		case http.StatusConflict:
			conflict = true
		}
	}

	s.metrics.Accept.Record(latency, success, conflict)
}

func (s *Simulator) doRegister(ctx context.Context, rng *rand.Rand) {
	if len(s.pool.Registers) == 0 {
		return
	}
	target := s.pool.Registers[rng.Intn(len(s.pool.Registers))]

	weekdays := []int{rng.Intn(5) + 1}
	if rng.Intn(2) == 0 {
		weekdays = append(weekdays, rng.Intn(5)+1)
	}
	preference := []string{"any", "morning", "afternoon"}[rng.Intn(3)]

	start := time.Now()

	reqBody := map[string]any{
		"business_id":        target.BusinessID.String(),
		"practitioner_id":    target.PractitionerID.String(),
		"service_id":         target.ServiceID.String(),
		"client_id":          uuid.NewString(),
		"preferred_weekdays": weekdays,
		"time_preference":    preference,
	}
	body, _ := json.Marshal(reqBody)

	req, _ := http.NewRequestWithContext(ctx, "POST", s.config.APIBaseURL+"/waitlist", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusCreated
	}

	s.metrics.Register.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Slot Search", &s.metrics.Search)
	printOperationReport("Cancellation", &s.metrics.Cancel)
	printOperationReport("Offer Accept", &s.metrics.Accept)
	printOperationReport("Waitlist Register", &s.metrics.Register)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errs := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errs > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errs, float64(errs)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

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
