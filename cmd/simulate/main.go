// simulate drives concurrent booking and dispense traffic at a running
// api-server and reports how many requests succeeded versus conflicted.
// With capacity C for the target slot, exactly C bookings should succeed
// regardless of worker count; dispense totals should never exceed the
// seeded stock.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type simConfig struct {
	apiBaseURL string
	workers    int
	requests   int
	date       string
	start      string
	end        string
	service    string
	medicine   string
	patientID  string
}

type operationMetrics struct {
	total     int64
	success   int64
	conflict  int64
	errored   int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *operationMetrics) record(latency time.Duration, status int) {
	atomic.AddInt64(&om.total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.conflict, 1)
	default:
		atomic.AddInt64(&om.errored, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *operationMetrics) report(name string) {
	om.mu.Lock()
	defer om.mu.Unlock()

	sort.Slice(om.latencies, func(i, j int) bool { return om.latencies[i] < om.latencies[j] })

	var p95 time.Duration
	if n := len(om.latencies); n > 0 {
		idx := n * 95 / 100
		if idx >= n {
			idx = n - 1
		}
		p95 = om.latencies[idx]
	}

	log.Printf("%s: total=%d success=%d conflict=%d error=%d p95=%s",
		name, om.total, om.success, om.conflict, om.errored, p95)
}

func main() {
	log.SetFlags(log.LstdFlags)

	cfg := simConfig{}
	flag.StringVar(&cfg.apiBaseURL, "api", envOr("API_BASE_URL", "http://localhost:8080"), "api-server base URL")
	flag.IntVar(&cfg.workers, "workers", 20, "concurrent workers")
	flag.IntVar(&cfg.requests, "requests", 5, "requests per worker")
	flag.StringVar(&cfg.date, "date", time.Now().AddDate(0, 0, 7).Format("2006-01-02"), "appointment date")
	flag.StringVar(&cfg.start, "start", "09:00", "slot start")
	flag.StringVar(&cfg.end, "end", "09:30", "slot end")
	flag.StringVar(&cfg.service, "service", "Dental", "service type")
	flag.StringVar(&cfg.medicine, "medicine", "Paracetamol", "medicine to dispense")
	flag.StringVar(&cfg.patientID, "patient", "", "patient UUID (required for booking)")
	flag.Parse()

	if cfg.patientID == "" {
		log.Fatal("-patient is required; pick an id from the patients table")
	}
	if _, err := uuid.Parse(cfg.patientID); err != nil {
		log.Fatalf("invalid patient id: %v", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}

	bookings := &operationMetrics{}
	dispenses := &operationMetrics{}

	log.Printf("hammering %s with %d workers x %d requests", cfg.apiBaseURL, cfg.workers, cfg.requests)

	var wg sync.WaitGroup
	for w := 0; w < cfg.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < cfg.requests; i++ {
				bookings.record(post(client, cfg.apiBaseURL+"/appointments", map[string]any{
					"patient_id":   cfg.patientID,
					"service_type": cfg.service,
					"date":         cfg.date,
					"start":        cfg.start,
					"end":          cfg.end,
				}))
				dispenses.record(post(client, cfg.apiBaseURL+"/inventory/dispense", map[string]any{
					"medicine_name": cfg.medicine,
					"quantity":      1,
				}))
			}
		}()
	}
	wg.Wait()

	bookings.report("booking")
	dispenses.report("dispense")

	fmt.Println("expected: booking successes == slot capacity; dispense successes <= seeded stock")
}

func post(client *http.Client, url string, payload map[string]any) (time.Duration, int) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, 0
	}

	start := time.Now()
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	latency := time.Since(start)
	if err != nil {
		return latency, 0
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return latency, resp.StatusCode
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
