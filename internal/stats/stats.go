// Copyright 2025 AI Gateway Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package stats records per-request latency and failure outcomes and exposes
// rolling percentiles over a fixed-capacity window.
package stats

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// DefaultWindowSize is the rolling latency window capacity
	DefaultWindowSize = 50
	// MaxErrorLength bounds the stored last-error message
	MaxErrorLength = 160
)

var (
	requestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ai_gateway_requests_total",
		Help: "Total number of gateway requests",
	})

	failuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ai_gateway_failures_total",
		Help: "Total number of failed gateway requests",
	})

	latencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "ai_gateway_request_latency_seconds",
		Help: "Gateway request latency in seconds",
	})
)

// Snapshot is a consistent point-in-time copy of the tracker state
type Snapshot struct {
	StartedAt     time.Time  `json:"started_at"`
	TotalRequests int64      `json:"total_requests"`
	TotalFailures int64      `json:"total_failures"`
	LastRequestAt *time.Time `json:"last_request_at"`
	LastLatencyMS *float64   `json:"last_latency_ms"`
	WindowSize    int        `json:"rolling_window_size"`
	Latencies     []float64  `json:"latencies"`
	LastError     string     `json:"last_error,omitempty"`
}

// Tracker aggregates request latency and failure statistics. It is shared
// read/write across all concurrently handled requests; a mutex serializes
// writes so the window never corrupts.
type Tracker struct {
	mu            sync.Mutex
	startedAt     time.Time
	totalRequests int64
	totalFailures int64
	lastRequestAt time.Time
	lastLatencyMS float64
	hasLatency    bool
	lastError     string
	window        int
	latencies     []float64
}

// NewTracker creates a tracker with the given rolling window capacity
func NewTracker(window int) *Tracker {
	if window <= 0 {
		window = DefaultWindowSize
	}
	return &Tracker{
		startedAt: time.Now().UTC(),
		window:    window,
		latencies: make([]float64, 0, window),
	}
}

// Record registers one request outcome. A non-nil error counts as a failure
// and its message is stored truncated. The latency always enters the rolling
// window; the oldest sample is evicted once the window is full.
func (t *Tracker) Record(latencyMS float64, err error) {
	rounded := math.Round(latencyMS*100) / 100

	t.mu.Lock()
	t.totalRequests++
	t.lastRequestAt = time.Now().UTC()
	t.lastLatencyMS = rounded
	t.hasLatency = true
	if len(t.latencies) == t.window {
		t.latencies = append(t.latencies[1:], rounded)
	} else {
		t.latencies = append(t.latencies, rounded)
	}
	if err != nil {
		t.totalFailures++
		t.lastError = truncate(err.Error(), MaxErrorLength)
	}
	t.mu.Unlock()

	requestsTotal.Inc()
	latencySeconds.Observe(latencyMS / 1000)
	if err != nil {
		failuresTotal.Inc()
	}
}

// Snapshot returns a consistent copy of the current state
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		StartedAt:     t.startedAt,
		TotalRequests: t.totalRequests,
		TotalFailures: t.totalFailures,
		WindowSize:    t.window,
		Latencies:     append([]float64(nil), t.latencies...),
		LastError:     t.lastError,
	}
	if !t.lastRequestAt.IsZero() {
		at := t.lastRequestAt
		snap.LastRequestAt = &at
	}
	if t.hasLatency {
		ms := t.lastLatencyMS
		snap.LastLatencyMS = &ms
	}
	return snap
}

// Percentiles returns (p50, p95) over the current rolling window, or nils on
// an empty window.
func (t *Tracker) Percentiles() (*float64, *float64) {
	t.mu.Lock()
	ordered := append([]float64(nil), t.latencies...)
	t.mu.Unlock()

	if len(ordered) == 0 {
		return nil, nil
	}
	sort.Float64s(ordered)
	p50 := percentile(ordered, 0.5)
	p95 := percentile(ordered, 0.95)
	return &p50, &p95
}

// percentile computes a linear-interpolation order statistic over sorted
// samples: rank (n-1)*p, weighted average of the two bracketing values.
func percentile(ordered []float64, p float64) float64 {
	k := float64(len(ordered)-1) * p
	f := int(math.Floor(k))
	c := f + 1
	if c > len(ordered)-1 {
		c = len(ordered) - 1
	}
	if f == c {
		return ordered[f]
	}
	d0 := ordered[f] * (float64(c) - k)
	d1 := ordered[c] * (k - float64(f))
	return d0 + d1
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
