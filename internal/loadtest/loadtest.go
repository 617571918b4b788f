// Package loadtest generates realistic traffic against a running
// riskserver to validate dashboards and size the batch queue. The mix is
// mostly single prediction posts and history reads, with an occasional
// batch dataset upload.
package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// LoadProfile defines different load testing scenarios.
type LoadProfile string

const (
	ProfileLight  LoadProfile = "light"  // 5 req/s, 1 minute
	ProfileMedium LoadProfile = "medium" // 20 req/s, 2 minutes
	ProfileHeavy  LoadProfile = "heavy"  // 50 req/s, 5 minutes
)

// ProfileConfig defines the parameters for a load test.
type ProfileConfig struct {
	RequestsPerSecond int
	Duration          time.Duration
	ReadRatio         float64 // share of requests that are reads (history, lists)
	BatchEvery        int     // one batch upload per this many requests, 0 disables
	BatchRows         int     // rows per synthetic batch dataset
}

// LoadProfiles contains predefined load testing scenarios.
var LoadProfiles = map[LoadProfile]ProfileConfig{
	ProfileLight: {
		RequestsPerSecond: 5,
		Duration:          1 * time.Minute,
		ReadRatio:         0.7,
		BatchEvery:        50,
		BatchRows:         100,
	},
	ProfileMedium: {
		RequestsPerSecond: 20,
		Duration:          2 * time.Minute,
		ReadRatio:         0.7,
		BatchEvery:        100,
		BatchRows:         500,
	},
	ProfileHeavy: {
		RequestsPerSecond: 50,
		Duration:          5 * time.Minute,
		ReadRatio:         0.6,
		BatchEvery:        200,
		BatchRows:         2000,
	},
}

// LoadTester orchestrates load testing operations.
type LoadTester struct {
	baseURL    string
	httpClient *http.Client
	rng        *rand.Rand
	rngMu      sync.Mutex
	stats      *Statistics
}

// NewLoadTester creates a new load tester targeting the specified base URL.
func NewLoadTester(baseURL string) *LoadTester {
	return &LoadTester{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // Batch uploads need headroom
		},
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		stats: &Statistics{},
	}
}

// Statistics tracks load test metrics.
type Statistics struct {
	mu sync.Mutex

	totalRequests   int64
	successRequests int64
	failedRequests  int64

	// status code -> count, for failures
	errors map[int]int64

	endpointStats map[string]*EndpointStats

	startTime time.Time
	endTime   time.Time
}

// EndpointStats tracks statistics for a specific endpoint.
type EndpointStats struct {
	count  int64
	errors int64
	times  []int64 // response times in ms, for percentiles
}

// Run executes a load test with the specified profile.
func (lt *LoadTester) Run(ctx context.Context, profile LoadProfile) (*Statistics, error) {
	config, exists := LoadProfiles[profile]
	if !exists {
		return nil, fmt.Errorf("unknown profile: %s", profile)
	}
	return lt.RunCustom(ctx, config)
}

// RunCustom executes a load test with a custom configuration.
func (lt *LoadTester) RunCustom(ctx context.Context, config ProfileConfig) (*Statistics, error) {
	if config.RequestsPerSecond < 1 {
		return nil, fmt.Errorf("requests per second must be at least 1")
	}

	lt.stats = &Statistics{
		errors:        make(map[int]int64),
		endpointStats: make(map[string]*EndpointStats),
		startTime:     time.Now(),
	}

	workers := config.RequestsPerSecond * 2
	if workers < 10 {
		workers = 10
	}

	workChan := make(chan workItem, workers*2)

	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		group.Go(func() error {
			for item := range workChan {
				lt.execute(groupCtx, item)
			}
			return nil
		})
	}

	group.Go(func() error {
		defer close(workChan)
		lt.generateWork(groupCtx, config, workChan)
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}
	lt.stats.endTime = time.Now()
	return lt.stats, nil
}

// workItem represents a single HTTP request to be executed.
type workItem struct {
	method   string
	path     string
	body     []byte
	content  string
	endpoint string // for stats tracking
}

func (lt *LoadTester) generateWork(ctx context.Context, config ProfileConfig, workChan chan<- workItem) {
	ticker := time.NewTicker(time.Second / time.Duration(config.RequestsPerSecond))
	defer ticker.Stop()

	deadline := time.Now().Add(config.Duration)
	sent := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Now().After(deadline) {
				return
			}
			sent++

			item, ok := lt.nextItem(config, sent)
			if !ok {
				continue
			}
			select {
			case workChan <- item:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (lt *LoadTester) nextItem(config ProfileConfig, sent int) (workItem, bool) {
	if config.BatchEvery > 0 && sent%config.BatchEvery == 0 {
		item, err := lt.batchUploadRequest(config.BatchRows)
		if err != nil {
			return workItem{}, false
		}
		return item, true
	}
	if lt.randFloat() < config.ReadRatio {
		return lt.readRequest(), true
	}
	return lt.predictionRequest(), true
}

func (lt *LoadTester) execute(ctx context.Context, item workItem) {
	req, err := http.NewRequestWithContext(ctx, item.method, lt.baseURL+item.path, bytes.NewReader(item.body))
	if err != nil {
		lt.stats.record(item.endpoint, 0, 0, false)
		return
	}
	if item.content != "" {
		req.Header.Set("Content-Type", item.content)
	}

	start := time.Now()
	resp, err := lt.httpClient.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		lt.stats.record(item.endpoint, 0, elapsed, false)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	lt.stats.record(item.endpoint, resp.StatusCode, elapsed, ok)
}

var sectors = []string{"Technology", "Energy", "Healthcare", "Financials", "Industrials", "Utilities"}

func (lt *LoadTester) predictionRequest() workItem {
	payload := map[string]interface{}{
		"stock_symbol":         lt.symbol(),
		"company_name":         "Load Test Co " + lt.symbol(),
		"sector":               sectors[lt.randInt(len(sectors))],
		"debt_to_equity_ratio": lt.randRatio(0.1, 4.0),
		"current_ratio":        lt.randRatio(0.3, 3.5),
		"quick_ratio":          lt.randRatio(0.2, 2.5),
		"return_on_equity":     lt.randRatio(-0.4, 0.5),
		"return_on_assets":     lt.randRatio(-0.2, 0.3),
		"profit_margin":        lt.randRatio(-0.3, 0.4),
		"interest_coverage":    lt.randRatio(-2.0, 20.0),
		"fixed_asset_turnover": lt.randRatio(0.2, 6.0),
		"total_debt_ebitda":    lt.randRatio(0.0, 8.0),
	}
	body, _ := json.Marshal(payload)
	return workItem{
		method:   http.MethodPost,
		path:     "/api/v1/predictions",
		body:     body,
		content:  "application/json",
		endpoint: "POST /api/v1/predictions",
	}
}

func (lt *LoadTester) readRequest() workItem {
	switch lt.randInt(3) {
	case 0:
		return workItem{
			method:   http.MethodGet,
			path:     "/api/v1/companies?limit=20",
			endpoint: "GET /api/v1/companies",
		}
	case 1:
		return workItem{
			method:   http.MethodGet,
			path:     "/api/v1/companies/" + lt.symbol() + "/predictions",
			endpoint: "GET /api/v1/companies/{symbol}/predictions",
		}
	default:
		return workItem{
			method:   http.MethodGet,
			path:     "/api/v1/companies/" + lt.symbol(),
			endpoint: "GET /api/v1/companies/{symbol}",
		}
	}
}

func (lt *LoadTester) batchUploadRequest(rows int) (workItem, error) {
	if rows < 1 {
		rows = 100
	}

	var csv strings.Builder
	csv.WriteString("stock_symbol,company_name,debt_to_equity_ratio,current_ratio,profit_margin\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&csv, "%s,Load Test Co %d,%.2f,%.2f,%.2f\n",
			lt.symbol(), i, lt.randRatio(0.1, 4.0), lt.randRatio(0.3, 3.5), lt.randRatio(-0.3, 0.4))
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "loadtest.csv")
	if err != nil {
		return workItem{}, err
	}
	if _, err := io.WriteString(part, csv.String()); err != nil {
		return workItem{}, err
	}
	if err := writer.Close(); err != nil {
		return workItem{}, err
	}

	return workItem{
		method:   http.MethodPost,
		path:     "/api/v1/predictions/batches",
		body:     body.Bytes(),
		content:  writer.FormDataContentType(),
		endpoint: "POST /api/v1/predictions/batches",
	}, nil
}

// symbol draws from a fixed pool so reads hit companies that earlier
// prediction posts created.
func (lt *LoadTester) symbol() string {
	letters := "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	n := lt.randInt(400)
	return fmt.Sprintf("LT%c%c", letters[n%26], letters[(n/26)%26])
}

func (lt *LoadTester) randFloat() float64 {
	lt.rngMu.Lock()
	defer lt.rngMu.Unlock()
	return lt.rng.Float64()
}

func (lt *LoadTester) randInt(n int) int {
	lt.rngMu.Lock()
	defer lt.rngMu.Unlock()
	return lt.rng.Intn(n)
}

func (lt *LoadTester) randRatio(min, max float64) float64 {
	lt.rngMu.Lock()
	defer lt.rngMu.Unlock()
	return min + lt.rng.Float64()*(max-min)
}

func (s *Statistics) record(endpoint string, status int, elapsedMS int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRequests++
	if ok {
		s.successRequests++
	} else {
		s.failedRequests++
		if status > 0 {
			s.errors[status]++
		}
	}

	stats, exists := s.endpointStats[endpoint]
	if !exists {
		stats = &EndpointStats{}
		s.endpointStats[endpoint] = stats
	}
	stats.count++
	stats.times = append(stats.times, elapsedMS)
	if !ok {
		stats.errors++
	}
}

// Report renders a human-readable summary of the run.
func (s *Statistics) Report() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	duration := s.endTime.Sub(s.startTime)

	fmt.Fprintf(&b, "Load test complete\n")
	fmt.Fprintf(&b, "  Duration:  %s\n", duration.Round(time.Second))
	fmt.Fprintf(&b, "  Requests:  %d total, %d ok, %d failed\n",
		s.totalRequests, s.successRequests, s.failedRequests)
	if duration > 0 {
		fmt.Fprintf(&b, "  Rate:      %.1f req/s\n", float64(s.totalRequests)/duration.Seconds())
	}

	if len(s.errors) > 0 {
		fmt.Fprintf(&b, "  Errors by status:\n")
		codes := make([]int, 0, len(s.errors))
		for code := range s.errors {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Fprintf(&b, "    %d: %d\n", code, s.errors[code])
		}
	}

	endpoints := make([]string, 0, len(s.endpointStats))
	for endpoint := range s.endpointStats {
		endpoints = append(endpoints, endpoint)
	}
	sort.Strings(endpoints)

	fmt.Fprintf(&b, "  Endpoints:\n")
	for _, endpoint := range endpoints {
		stats := s.endpointStats[endpoint]
		fmt.Fprintf(&b, "    %-45s %6d reqs  %4d errs  p50=%dms p95=%dms p99=%dms\n",
			endpoint, stats.count, stats.errors,
			percentile(stats.times, 0.50), percentile(stats.times, 0.95), percentile(stats.times, 0.99))
	}

	return b.String()
}

func percentile(times []int64, p float64) int64 {
	if len(times) == 0 {
		return 0
	}
	sorted := make([]int64, len(times))
	copy(sorted, times)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
