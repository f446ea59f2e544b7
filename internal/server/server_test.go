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

package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/your-org/ai-gateway/internal/config"
	"github.com/your-org/ai-gateway/internal/connector"
	"github.com/your-org/ai-gateway/internal/connector/mock"
	"github.com/your-org/ai-gateway/internal/health"
	"github.com/your-org/ai-gateway/internal/memory"
	"github.com/your-org/ai-gateway/internal/orchestrator"
	"github.com/your-org/ai-gateway/internal/policy"
	"github.com/your-org/ai-gateway/internal/registry"
	"github.com/your-org/ai-gateway/internal/speech"
	"github.com/your-org/ai-gateway/internal/stats"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	cfg := &config.Config{}
	cfg.Gateway.Port = "8080"
	cfg.Gateway.CorrelationIDHeader = "X-Correlation-ID"
	cfg.Policy.MaxMessageChars = 4000
	cfg.Speech.DefaultProvider = registry.ProviderMockSTT
	cfg.Speech.DefaultModel = "tiny"
	cfg.Speech.DefaultLanguage = "auto"
	cfg.Speech.CooldownMinutes = 10
	cfg.Stats.WindowSize = 50
	cfg.Whisper.ComputeType = "int8"

	logger := zap.NewNop()
	reg := registry.New(cfg, logger)
	mem := memory.NewStore()
	pol := policy.NewEngine(cfg.Policy.MaxMessageChars)
	tracker := stats.NewTracker(cfg.Stats.WindowSize)

	conns := &orchestrator.Connectors{
		LLM:         map[string]connector.LLMConnector{registry.ProviderMockLLM: mock.NewLLM()},
		RAG:         map[string]connector.RAGConnector{registry.ProviderMockSearch: mock.NewSearch()},
		STT:         map[string]connector.STTConnector{registry.ProviderMockSTT: mock.NewSpeech()},
		TTS:         map[string]connector.TTSConnector{registry.ProviderMockTTS: mock.NewSpeech()},
		ServiceDesk: map[string]connector.ServiceDeskConnector{registry.ProviderMockServiceDesk: mock.NewServiceDesk()},
	}
	orch := orchestrator.New(cfg, reg, mem, pol, conns, logger)
	speechGW := speech.NewGateway(cfg, conns.STT, logger)
	healthMgr := health.NewManager("gateway", "test", "local", logger)

	return New(cfg, orch, speechGW, mem, tracker, healthMgr, logger).Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return payload
}

func TestCreateSession(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/v1/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	payload := decodeBody(t, rec)
	if id, _ := payload["session_id"].(string); id == "" {
		t.Error("session_id should be assigned")
	}
}

func TestChatTurn(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/v1/chat", map[string]any{
		"channel": "web",
		"message": "hello gateway",
		"provider_selection": map[string]any{
			"llm_provider": "mock-llm",
			"llm_model":    "echo",
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	payload := decodeBody(t, rec)
	reply, _ := payload["reply"].(string)
	if !strings.Contains(reply, "hello gateway") {
		t.Errorf("reply = %q", reply)
	}
	if payload["used_rag"] != false {
		t.Errorf("used_rag = %v", payload["used_rag"])
	}
}

func TestChatRejectsMissingFields(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/v1/chat", map[string]any{
		"message": "no channel or providers",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["code"] != "BAD_REQUEST" {
		t.Errorf("code = %v", payload["code"])
	}
	if payload["request_id"] == "" {
		t.Error("error envelope should carry the correlation id")
	}
}

func TestChatUnknownProvider(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/v1/chat", map[string]any{
		"channel": "web",
		"message": "hi",
		"provider_selection": map[string]any{
			"llm_provider": "azure-openai",
			"llm_model":    "gpt-4o-mini",
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["code"] != "NOT_CONFIGURED" {
		t.Errorf("code = %v", payload["code"])
	}
}

func TestProvidersListing(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/v1/providers", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	providers, ok := payload["providers"].(map[string]any)
	if !ok {
		t.Fatalf("providers missing: %v", payload)
	}
	for _, capability := range []string{"llm", "rag", "stt", "tts", "servicedesk"} {
		if _, ok := providers[capability]; !ok {
			t.Errorf("capability %s missing from listing", capability)
		}
	}
}

func TestValidateProviders(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/v1/providers/validate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["status"] != "ok" {
		t.Errorf("status = %v, body %s", payload["status"], rec.Body.String())
	}
}

func TestTranscribeBase64(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/v1/audio/transcribe", map[string]any{
		"audio_base64": "dGVzdCBhdWRpbw==",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	payload := decodeBody(t, rec)
	if payload["ok"] != true {
		t.Errorf("ok = %v", payload["ok"])
	}
	if payload["provider_used"] != "mock-stt" {
		t.Errorf("provider_used = %v", payload["provider_used"])
	}
	if payload["mode"] != "primary" {
		t.Errorf("mode = %v", payload["mode"])
	}
}

func TestTranscribeRejectsUnknownOption(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/v1/audio/transcribe", map[string]any{
		"audio_base64": "dGVzdA==",
		"options":      map[string]any{"modle": "tiny"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTranscribeRejectsBadBase64(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/v1/audio/transcribe", map[string]any{
		"audio_base64": "not-base64!!!",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTranscribeFileUpload(t *testing.T) {
	router := newTestRouter(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="file"; filename="sample.wav"`}
	header["Content-Type"] = []string{"audio/wav"}
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := part.Write([]byte("RIFF fake wav payload")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.WriteField("settings", `{"language":"en","beam_size":2}`); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/audio/transcribe-file?model=small", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	payload := decodeBody(t, rec)
	if payload["filename"] != "sample.wav" {
		t.Errorf("filename = %v", payload["filename"])
	}
	if payload["format"] != "wav" {
		t.Errorf("format = %v", payload["format"])
	}
	settings, ok := payload["settings_used"].(map[string]any)
	if !ok {
		t.Fatalf("settings_used missing: %v", payload)
	}
	if settings["language"] != "en" {
		t.Errorf("language = %v", settings["language"])
	}
	// Query parameters override the settings form field.
	if settings["model"] != "small" {
		t.Errorf("model = %v", settings["model"])
	}
	if settings["beam_size"] != float64(2) {
		t.Errorf("beam_size = %v", settings["beam_size"])
	}
}

func TestTranscribeFileRejectsEmptyUpload(t *testing.T) {
	router := newTestRouter(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "empty.wav")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_ = part
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/audio/transcribe-file", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTranscribeConfig(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/v1/audio/transcribe-config", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	models, ok := payload["models"].([]any)
	if !ok || len(models) != 3 {
		t.Errorf("models = %v", payload["models"])
	}
}

func TestSynthesizeDefaults(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/v1/audio/synthesize", map[string]any{
		"text": "read this aloud",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	payload := decodeBody(t, rec)
	if payload["provider"] != "mock-tts" {
		t.Errorf("provider = %v", payload["provider"])
	}
	if audio, _ := payload["audio_base64"].(string); audio == "" {
		t.Error("audio_base64 should not be empty")
	}
}

func TestSynthesizeRequiresText(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/v1/audio/synthesize", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSTTStatus(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/v1/audio/stt/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	if _, ok := payload["stt_provider_active"]; !ok {
		t.Errorf("payload = %v", payload)
	}
	if payload["mode"] != "primary" {
		t.Errorf("mode = %v", payload["mode"])
	}
}

func TestRuntimeEndpoints(t *testing.T) {
	router := newTestRouter(t)

	// One successful chat turn populates the stats window.
	doJSON(t, router, http.MethodPost, "/v1/chat", map[string]any{
		"channel": "web",
		"message": "warm up",
		"provider_selection": map[string]any{
			"llm_provider": "mock-llm",
			"llm_model":    "echo",
		},
	})

	rec := doJSON(t, router, http.MethodGet, "/v1/runtime", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	statsBlock, ok := payload["stats"].(map[string]any)
	if !ok {
		t.Fatalf("stats missing: %v", payload)
	}
	if statsBlock["total_requests"] != float64(1) {
		t.Errorf("total_requests = %v", statsBlock["total_requests"])
	}
	runtimeBlock, ok := payload["runtime"].(map[string]any)
	if !ok {
		t.Fatalf("runtime missing: %v", payload)
	}
	if runtimeBlock["stt_provider"] != "mock-stt" {
		t.Errorf("stt_provider = %v", runtimeBlock["stt_provider"])
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/runtime/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	payload = decodeBody(t, rec)
	if payload["backend_ok"] != true {
		t.Errorf("backend_ok = %v", payload["backend_ok"])
	}
	if payload["premium_ok"] != false {
		t.Errorf("premium_ok = %v without a premium connector", payload["premium_ok"])
	}
}

func TestCorrelationHeaderEcho(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/providers", nil)
	req.Header.Set("X-Correlation-ID", "corr-abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Correlation-ID"); got != "corr-abc" {
		t.Errorf("correlation header = %q, want corr-abc", got)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/providers", nil)
	if got := rec.Header().Get("X-Correlation-ID"); !strings.HasPrefix(got, "req_") {
		t.Errorf("generated correlation id = %q", got)
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["status"] != "healthy" {
		t.Errorf("status = %v", payload["status"])
	}
}
