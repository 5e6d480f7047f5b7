// Package runner drives the export API with a weighted mix of requests.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/storefront/tools/loadgen/internal/config"
	"github.com/storefront/tools/loadgen/internal/generator"
	"github.com/storefront/tools/loadgen/internal/loadctrl"
	"github.com/storefront/tools/loadgen/internal/metrics"
	"github.com/storefront/tools/loadgen/internal/pool"
)

// Report is the outcome of a run.
type Report struct {
	Duration  time.Duration
	Endpoints map[string]metrics.EndpointSummary
	JobsAdded int64
}

// Total returns the number of requests sent and how many failed
func (r Report) Total() (requests, failures int64) {
	for _, s := range r.Endpoints {
		requests += s.Requests
		failures += s.Failures
	}
	return requests, failures
}

// Runner sends requests from a fixed number of workers, paced by a token
// bucket.
type Runner struct {
	cfg       *config.Config
	client    *http.Client
	limiter   *loadctrl.TokenBucketLimiter
	payloads  *generator.PayloadGenerator
	jobs      *pool.JobPool
	collector *metrics.Collector

	totalWeight int
	creators    []config.EndpointConfig
}

// New creates a runner. collector may be shared with a metrics server.
func New(cfg *config.Config, collector *metrics.Collector) *Runner {
	if collector == nil {
		collector = metrics.NewCollector()
	}
	r := &Runner{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.Target.Timeout},
		limiter:   loadctrl.NewTokenBucketLimiter(cfg.Rate.QPS, cfg.Rate.Burst),
		payloads:  generator.NewPayloadGenerator(cfg.Payload, cfg.Seed),
		jobs:      pool.NewJobPool(cfg.Pool.MaxJobs, cfg.Pool.TTL),
		collector: collector,
	}
	for _, ep := range cfg.Endpoints {
		r.totalWeight += ep.Weight
		if ep.Kind.CreatesJob() {
			r.creators = append(r.creators, ep)
		}
	}
	return r
}

// Run sends requests until the configured duration elapses or ctx is done.
func (r *Runner) Run(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.work(ctx)
		}()
	}
	wg.Wait()

	added, _ := r.jobs.Stats()
	return Report{
		Duration:  time.Since(start),
		Endpoints: r.collector.Summary(),
		JobsAdded: added,
	}
}

func (r *Runner) work(ctx context.Context) {
	for {
		if err := r.limiter.Acquire(ctx); err != nil {
			return
		}
		r.execute(ctx, r.pick())
	}
}

// pick chooses an endpoint by weight. Read endpoints fall back to a
// creating one while no job IDs are pooled.
func (r *Runner) pick() config.EndpointConfig {
	n := rand.IntN(r.totalWeight)
	var ep config.EndpointConfig
	for _, candidate := range r.cfg.Endpoints {
		if n < candidate.Weight {
			ep = candidate
			break
		}
		n -= candidate.Weight
	}
	if ep.Kind.NeedsJob() && r.jobs.Len() == 0 && len(r.creators) > 0 {
		return r.creators[rand.IntN(len(r.creators))]
	}
	return ep
}

func (r *Runner) execute(ctx context.Context, ep config.EndpointConfig) {
	req, err := r.buildRequest(ctx, ep.Kind)
	if err != nil {
		r.collector.Record(ep.Name, 0, false, 0, 0)
		return
	}

	done := r.collector.WorkerBusy()
	start := time.Now()
	resp, err := r.client.Do(req)
	latency := time.Since(start)
	done()

	if err != nil {
		// the run deadline cutting a request short is not a failure
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			r.collector.Record(ep.Name, 0, false, latency, 0)
		}
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	r.collector.Record(ep.Name, resp.StatusCode, success, latency, int64(len(body)))

	if success && ep.Kind.CreatesJob() {
		if id := jobID(body); id != "" {
			r.jobs.Add(id)
			r.collector.SetPooledJobs(r.jobs.Len())
		}
	}
}

func (r *Runner) buildRequest(ctx context.Context, kind config.EndpointKind) (*http.Request, error) {
	base := strings.TrimRight(r.cfg.Target.BaseURL, "/") + "/export"

	var (
		method = http.MethodGet
		path   string
		body   any
	)
	switch kind {
	case config.KindWarrantyCard:
		method, path, body = http.MethodPost, "/warranty-cards", r.payloads.WarrantyCard()
	case config.KindHTML:
		method, path, body = http.MethodPost, "/html", r.payloads.HTML(false)
	case config.KindPreview:
		method, path, body = http.MethodPost, "/preview", r.payloads.HTML(true)
	case config.KindListJobs:
		path = "/jobs?page_size=20"
	case config.KindGetJob, config.KindDownload:
		id, err := r.jobs.Random()
		if err != nil {
			return nil, err
		}
		path = "/jobs/" + id
		if kind == config.KindDownload {
			path += "/download"
		}
	default:
		return nil, fmt.Errorf("unknown endpoint kind %q", kind)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.cfg.Target.TenantID != "" {
		req.Header.Set("X-Tenant-ID", r.cfg.Target.TenantID)
	}
	return req, nil
}

// jobID extracts data.id from the API envelope
func jobID(body []byte) string {
	var envelope struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Data.ID
}
