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

// Package elevenlabs implements the premium STT connector. HTTP 401, 402,
// 403 and 429 responses are classified as credit issues; the speech gateway
// keys its failover on that class.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/ai-gateway/internal/connector"
	"github.com/your-org/ai-gateway/internal/resilience"
)

const (
	// ProviderID identifies this connector in results and health state
	ProviderID = "elevenlabs"

	transcriptionURL = "https://api.elevenlabs.io/v1/audio/transcriptions"
)

// Client calls the ElevenLabs speech-to-text API
type Client struct {
	apiKey     string
	modelID    string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an ElevenLabs STT connector
func NewClient(apiKey, modelID string, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("elevenlabs api key is required")
	}
	if modelID == "" {
		modelID = "scribe_v1"
	}
	return &Client{
		apiKey:     apiKey,
		modelID:    modelID,
		baseURL:    transcriptionURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

// SetBaseURL overrides the API endpoint, used by tests
func (c *Client) SetBaseURL(url string) { c.baseURL = url }

type transcriptionPayload struct {
	Text          string `json:"text"`
	Transcription string `json:"transcription"`
	Segments      []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
}

// Transcribe uploads audio and returns the transcript. Vendor failures are
// reported as *resilience.ProviderError carrying the HTTP status code.
func (c *Client) Transcribe(ctx context.Context, audio []byte, opts connector.TranscriptionOptions) (*connector.TranscriptionResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("failed to write audio payload: %w", err)
	}

	modelID := opts.Model
	if modelID == "" {
		modelID = c.modelID
	}
	if err := writer.WriteField("model_id", modelID); err != nil {
		return nil, fmt.Errorf("failed to write model field: %w", err)
	}
	if opts.Language != "" && opts.Language != "auto" {
		if err := writer.WriteField("language_code", opts.Language); err != nil {
			return nil, fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build transcription request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	if resp.StatusCode >= 400 {
		message := extractError(resp)
		creditIssue := resp.StatusCode == 401 || resp.StatusCode == 402 ||
			resp.StatusCode == 403 || resp.StatusCode == 429
		c.logger.Warn("ElevenLabs transcription failed",
			zap.Int("status", resp.StatusCode),
			zap.Bool("credit_issue", creditIssue),
		)
		return nil, resilience.NewProviderError(
			ProviderID,
			fmt.Sprintf("http_%d", resp.StatusCode),
			message,
			"Check ElevenLabs credits or API key",
			creditIssue,
		)
	}

	var payload transcriptionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode transcription response: %w", err)
	}

	text := payload.Text
	if text == "" {
		text = payload.Transcription
	}
	segments := make([]connector.TranscriptionSegment, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		segments = append(segments, connector.TranscriptionSegment{
			Text:  seg.Text,
			Start: seg.Start,
			End:   seg.End,
		})
	}

	return &connector.TranscriptionResult{
		Text:     text,
		Segments: segments,
		Provider: ProviderID,
		TimingMS: map[string]float64{"transcribe": elapsed},
		Mode:     connector.ModePrimary,
	}, nil
}

// Validate confirms an API key is present. A live call is avoided because
// each transcription costs credits.
func (c *Client) Validate(context.Context) (connector.ValidationResult, error) {
	if c.apiKey == "" {
		return connector.ValidationResult{Status: connector.ValidationNotConfigured, Reason: "api key missing"}, nil
	}
	return connector.ValidationResult{Status: connector.ValidationOK, Reason: "ElevenLabs API key loaded"}, nil
}

func extractError(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil {
		return resp.Status
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err == nil {
		if detail, ok := data["detail"].(string); ok && detail != "" {
			return detail
		}
		if msg, ok := data["error"].(string); ok && msg != "" {
			return msg
		}
	}
	if len(raw) > 0 {
		return string(raw)
	}
	return resp.Status
}
