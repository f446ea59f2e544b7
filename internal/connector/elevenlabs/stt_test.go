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

package elevenlabs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/your-org/ai-gateway/internal/connector"
	"github.com/your-org/ai-gateway/internal/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient("test-key", "scribe_v1", zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	client.SetBaseURL(server.URL)
	return client
}

func TestTranscribeSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("xi-api-key"); got != "test-key" {
			t.Errorf("xi-api-key = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("model_id"); got != "scribe_v1" {
			t.Errorf("model_id = %q", got)
		}
		if got := r.FormValue("language_code"); got != "fi" {
			t.Errorf("language_code = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"hei maailma","segments":[{"text":"hei maailma","start":0,"end":1.5}]}`))
	})

	result, err := client.Transcribe(context.Background(), []byte("audio"), connector.TranscriptionOptions{Language: "fi"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Text != "hei maailma" {
		t.Errorf("text = %q", result.Text)
	}
	if result.Provider != ProviderID {
		t.Errorf("provider = %q", result.Provider)
	}
	if result.Mode != connector.ModePrimary {
		t.Errorf("mode = %q", result.Mode)
	}
	if len(result.Segments) != 1 || result.Segments[0].End != 1.5 {
		t.Errorf("segments = %+v", result.Segments)
	}
	if _, ok := result.TimingMS["transcribe"]; !ok {
		t.Error("timing should carry the transcribe phase")
	}
}

func TestTranscribeAutoLanguageOmitted(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if _, ok := r.MultipartForm.Value["language_code"]; ok {
			t.Error("language_code should be omitted for auto detection")
		}
		_, _ = w.Write([]byte(`{"text":"ok"}`))
	})

	if _, err := client.Transcribe(context.Background(), []byte("audio"), connector.TranscriptionOptions{Language: "auto"}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
}

func TestTranscribeErrorClassification(t *testing.T) {
	testCases := []struct {
		name       string
		status     int
		body       string
		wantCredit bool
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "payment required is a credit issue",
			status:     402,
			body:       `{"detail":"insufficient credits"}`,
			wantCredit: true,
			wantCode:   "http_402",
			wantMsg:    "insufficient credits",
		},
		{
			name:       "rate limit is a credit issue",
			status:     429,
			body:       `{"error":"too many requests"}`,
			wantCredit: true,
			wantCode:   "http_429",
			wantMsg:    "too many requests",
		},
		{
			name:     "server error is not a credit issue",
			status:   500,
			body:     `boom`,
			wantCode: "http_500",
			wantMsg:  "boom",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := client.Transcribe(context.Background(), []byte("audio"), connector.TranscriptionOptions{})
			if err == nil {
				t.Fatal("expected error")
			}
			providerErr, ok := resilience.AsProviderError(err)
			if !ok {
				t.Fatalf("want ProviderError, got %T", err)
			}
			if providerErr.Code != tc.wantCode {
				t.Errorf("code = %s, want %s", providerErr.Code, tc.wantCode)
			}
			if providerErr.CreditIssue != tc.wantCredit {
				t.Errorf("credit issue = %v, want %v", providerErr.CreditIssue, tc.wantCredit)
			}
			if providerErr.Message != tc.wantMsg {
				t.Errorf("message = %q, want %q", providerErr.Message, tc.wantMsg)
			}
			if resilience.IsCreditIssue(err) != tc.wantCredit {
				t.Errorf("IsCreditIssue = %v", resilience.IsCreditIssue(err))
			}
		})
	}
}

func TestTranscriptionFallbackField(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"transcription":"from legacy field"}`))
	})

	result, err := client.Transcribe(context.Background(), []byte("audio"), connector.TranscriptionOptions{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Text != "from legacy field" {
		t.Errorf("text = %q", result.Text)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient("", "scribe_v1", zap.NewNop()); err == nil {
		t.Error("missing api key should fail")
	}
}
