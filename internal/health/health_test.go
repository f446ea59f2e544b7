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

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/your-org/ai-gateway/internal/connector"
)

type stubValidator struct {
	result connector.ValidationResult
	err    error
}

func (s stubValidator) Validate(context.Context) (connector.ValidationResult, error) {
	return s.result, s.err
}

func TestCheckAggregation(t *testing.T) {
	testCases := []struct {
		name     string
		statuses []string
		want     string
	}{
		{name: "all healthy", statuses: []string{StatusHealthy, StatusHealthy}, want: StatusHealthy},
		{name: "one degraded", statuses: []string{StatusHealthy, StatusDegraded}, want: StatusDegraded},
		{name: "unhealthy wins", statuses: []string{StatusDegraded, StatusUnhealthy}, want: StatusUnhealthy},
		{name: "no checkers", statuses: nil, want: StatusHealthy},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewManager("gateway", "test", "local", zap.NewNop())
			for i, status := range tc.statuses {
				status := status
				m.AddCheckerFunc(string(rune('a'+i)), func(context.Context) CheckResult {
					return CheckResult{Status: status}
				})
			}

			resp := m.Check(context.Background())
			if resp.Status != tc.want {
				t.Errorf("status = %s, want %s", resp.Status, tc.want)
			}
			if len(resp.Dependencies) != len(tc.statuses) {
				t.Errorf("dependencies = %d, want %d", len(resp.Dependencies), len(tc.statuses))
			}
		})
	}
}

func TestHTTPHandlerStatusCodes(t *testing.T) {
	m := NewManager("gateway", "test", "local", zap.NewNop())
	m.AddCheckerFunc("dep", func(context.Context) CheckResult {
		return CheckResult{Status: StatusDegraded}
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	m.HTTPHandler()(rec, req)

	// Degraded still answers 200: the gateway serves through fallbacks.
	if rec.Code != http.StatusOK {
		t.Errorf("degraded status code = %d, want 200", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != StatusDegraded {
		t.Errorf("payload status = %s", resp.Status)
	}
	if resp.Service != "gateway" {
		t.Errorf("service = %s", resp.Service)
	}

	m.AddCheckerFunc("down", func(context.Context) CheckResult {
		return CheckResult{Status: StatusUnhealthy}
	})
	rec = httptest.NewRecorder()
	m.HTTPHandler()(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy status code = %d, want 503", rec.Code)
	}
}

func TestHTTPHandlerRejectsNonGet(t *testing.T) {
	m := NewManager("gateway", "test", "local", zap.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	rec := httptest.NewRecorder()
	m.HTTPHandler()(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestConnectorChecker(t *testing.T) {
	ok := ConnectorChecker("mock-llm", stubValidator{
		result: connector.ValidationResult{Status: connector.ValidationOK, Reason: "available"},
	})
	if result := ok.Check(context.Background()); result.Status != StatusHealthy {
		t.Errorf("status = %s, want healthy", result.Status)
	}

	failing := ConnectorChecker("elevenlabs", stubValidator{err: errors.New("key rejected")})
	result := failing.Check(context.Background())
	if result.Status != StatusDegraded {
		t.Errorf("status = %s, want degraded", result.Status)
	}
	if result.Error != "key rejected" {
		t.Errorf("error = %q", result.Error)
	}

	unhappy := ConnectorChecker("azure-speech", stubValidator{
		result: connector.ValidationResult{Status: connector.ValidationError, Reason: "quota exhausted"},
	})
	result = unhappy.Check(context.Background())
	if result.Status != StatusDegraded || result.Error != "quota exhausted" {
		t.Errorf("result = %+v", result)
	}
}

func TestSpeechChecker(t *testing.T) {
	premiumOK := true
	checker := SpeechChecker(func() bool { return premiumOK })

	if result := checker.Check(context.Background()); result.Status != StatusHealthy {
		t.Errorf("status = %s, want healthy", result.Status)
	}

	premiumOK = false
	if result := checker.Check(context.Background()); result.Status != StatusDegraded {
		t.Errorf("status = %s, want degraded", result.Status)
	}
}
