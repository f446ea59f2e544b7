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

// Package health exposes the gateway liveness surface. Checkers are cheap
// local probes; deep connector validation lives behind the providers
// validate endpoint instead.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/ai-gateway/internal/connector"
)

const (
	// StatusHealthy means the gateway and all checked dependencies respond
	StatusHealthy = "healthy"
	// StatusUnhealthy means at least one dependency failed its check
	StatusUnhealthy = "unhealthy"
	// StatusDegraded means a dependency failed in a way the gateway routes around
	StatusDegraded = "degraded"
	// DefaultTimeout bounds one full health sweep
	DefaultTimeout = 5 * time.Second
)

// CheckResult is the outcome of one dependency check
type CheckResult struct {
	Status    string         `json:"status"`
	Latency   time.Duration  `json:"latency"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Response is the complete health payload
type Response struct {
	Status       string                 `json:"status"`
	Service      string                 `json:"service"`
	Version      string                 `json:"version"`
	Environment  string                 `json:"environment"`
	Uptime       time.Duration          `json:"uptime"`
	Dependencies map[string]CheckResult `json:"dependencies"`
	Metadata     map[string]any         `json:"metadata"`
	Timestamp    time.Time              `json:"timestamp"`
}

// Checker probes one dependency
type Checker interface {
	Check(ctx context.Context) CheckResult
}

// CheckerFunc adapts a function to the Checker interface
type CheckerFunc func(ctx context.Context) CheckResult

// Check implements the Checker interface
func (f CheckerFunc) Check(ctx context.Context) CheckResult {
	return f(ctx)
}

// Manager runs the registered checkers and aggregates the result
type Manager struct {
	serviceName string
	version     string
	environment string
	startTime   time.Time
	checkers    map[string]Checker
	timeout     time.Duration
	logger      *zap.Logger
}

// NewManager creates a health manager for the gateway
func NewManager(serviceName, version, environment string, logger *zap.Logger) *Manager {
	return &Manager{
		serviceName: serviceName,
		version:     version,
		environment: environment,
		startTime:   time.Now(),
		checkers:    make(map[string]Checker),
		timeout:     DefaultTimeout,
		logger:      logger,
	}
}

// AddChecker registers a dependency checker
func (m *Manager) AddChecker(name string, checker Checker) {
	m.checkers[name] = checker
}

// AddCheckerFunc registers a dependency checker function
func (m *Manager) AddCheckerFunc(name string, checkFunc func(ctx context.Context) CheckResult) {
	m.checkers[name] = CheckerFunc(checkFunc)
}

// Check runs all checkers and derives the overall status
func (m *Manager) Check(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	dependencies := make(map[string]CheckResult)
	overall := StatusHealthy

	for name, checker := range m.checkers {
		start := time.Now()
		result := checker.Check(ctx)
		result.Latency = time.Since(start)
		result.Timestamp = time.Now()
		dependencies[name] = result

		if result.Status == StatusUnhealthy {
			overall = StatusUnhealthy
		} else if result.Status == StatusDegraded && overall != StatusUnhealthy {
			overall = StatusDegraded
		}
	}

	return Response{
		Status:       overall,
		Service:      m.serviceName,
		Version:      m.version,
		Environment:  m.environment,
		Uptime:       time.Since(m.startTime),
		Dependencies: dependencies,
		Metadata:     systemMetadata(),
		Timestamp:    time.Now(),
	}
}

// HTTPHandler serves the health payload. Degraded still answers 200: the
// gateway keeps serving through fallbacks.
func (m *Manager) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		result := m.Check(r.Context())
		statusCode := http.StatusOK
		if result.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(result); err != nil {
			m.logger.Error("Failed to write health response", zap.Error(err))
		}
	}
}

func systemMetadata() map[string]any {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return map[string]any{
		"go_version":   runtime.Version(),
		"goroutines":   runtime.NumGoroutine(),
		"memory_alloc": memStats.Alloc,
		"hostname":     hostname,
		"process_id":   os.Getpid(),
	}
}

// ConnectorChecker wraps a connector's own validation as a health probe.
// A failed vendor check degrades rather than kills the gateway because
// mock providers always remain routable.
func ConnectorChecker(providerID string, validator connector.Validator) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		result, err := validator.Validate(ctx)
		if err != nil {
			return CheckResult{
				Status:   StatusDegraded,
				Error:    err.Error(),
				Metadata: map[string]any{"provider": providerID},
			}
		}
		if result.Status != connector.ValidationOK {
			return CheckResult{
				Status:   StatusDegraded,
				Error:    result.Reason,
				Metadata: map[string]any{"provider": providerID},
			}
		}
		return CheckResult{
			Status:   StatusHealthy,
			Metadata: map[string]any{"provider": providerID, "reason": result.Reason},
		}
	})
}

// SpeechChecker reports the speech failover state as a health probe. An
// open cooldown is degraded, never unhealthy, because the fallback still
// serves transcriptions.
func SpeechChecker(premiumOK func() bool) Checker {
	return CheckerFunc(func(context.Context) CheckResult {
		if premiumOK() {
			return CheckResult{Status: StatusHealthy}
		}
		return CheckResult{
			Status: StatusDegraded,
			Error:  "premium STT provider in cooldown",
		}
	})
}
