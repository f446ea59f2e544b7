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

// Package whisper implements the local fallback STT connector against a
// whisper inference server running alongside the gateway. Model inference
// itself happens in that external process; this connector only manages model
// warm-up and the transcription call.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/ai-gateway/internal/connector"
)

// ProviderID identifies this connector in results and health state
const ProviderID = "local-whisper"

// ModelCache tracks models already warmed on the inference server, keyed by
// model name and compute type. Entries are kept for the process lifetime;
// the model set is tiny (tiny/small/medium) so no eviction is needed.
type ModelCache struct {
	mu     sync.Mutex
	warmed map[string]bool
}

// NewModelCache creates an empty model cache
func NewModelCache() *ModelCache {
	return &ModelCache{warmed: make(map[string]bool)}
}

func (c *ModelCache) key(model, computeType string) string {
	return model + "/" + computeType
}

// MarkWarmed records that a model is loaded server-side. Returns false when
// the model was already marked.
func (c *ModelCache) MarkWarmed(model, computeType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.key(model, computeType)
	if c.warmed[key] {
		return false
	}
	c.warmed[key] = true
	return true
}

// IsWarmed reports whether a model has been loaded server-side
func (c *ModelCache) IsWarmed(model, computeType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.warmed[c.key(model, computeType)]
}

// Client calls the local whisper inference server
type Client struct {
	serverURL    string
	defaultModel string
	computeType  string
	cache        *ModelCache
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewClient creates a local whisper connector. The cache is owned by the
// caller and constructed once at startup.
func NewClient(serverURL, defaultModel, computeType string, cache *ModelCache, logger *zap.Logger) *Client {
	if defaultModel == "" {
		defaultModel = "tiny"
	}
	if computeType == "" {
		computeType = "int8"
	}
	if cache == nil {
		cache = NewModelCache()
	}
	return &Client{
		serverURL:    strings.TrimRight(serverURL, "/"),
		defaultModel: defaultModel,
		computeType:  computeType,
		cache:        cache,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		logger:       logger,
	}
}

type serverResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Prob  float64 `json:"prob"`
	} `json:"segments"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// Transcribe sends audio to the inference server and assembles the
// transcript from the returned segments
func (c *Client) Transcribe(ctx context.Context, audio []byte, opts connector.TranscriptionOptions) (*connector.TranscriptionResult, error) {
	model := opts.Model
	if model == "" {
		model = c.defaultModel
	}
	beamSize := opts.BeamSize
	if beamSize < 1 {
		beamSize = 1
	}

	if c.cache.MarkWarmed(model, c.computeType) {
		c.logger.Info("Loading whisper model",
			zap.String("model", model),
			zap.String("compute_type", c.computeType),
		)
	}

	params := url.Values{}
	params.Set("model", model)
	params.Set("compute_type", c.computeType)
	params.Set("beam_size", strconv.Itoa(beamSize))
	params.Set("vad_filter", strconv.FormatBool(opts.VADFilter))
	if opts.Language != "" && opts.Language != "auto" {
		params.Set("language", opts.Language)
	}

	endpoint := fmt.Sprintf("%s/transcribe?%s", c.serverURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("failed to build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper server request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("whisper server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed serverResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode whisper response: %w", err)
	}

	segments := make([]connector.TranscriptionSegment, 0, len(parsed.Segments))
	texts := make([]string, 0, len(parsed.Segments))
	for _, seg := range parsed.Segments {
		text := strings.TrimSpace(seg.Text)
		segments = append(segments, connector.TranscriptionSegment{
			Text:  text,
			Start: seg.Start,
			End:   seg.End,
			Prob:  seg.Prob,
		})
		texts = append(texts, text)
	}

	text := parsed.Text
	if text == "" {
		text = strings.TrimSpace(strings.Join(texts, " "))
	}

	return &connector.TranscriptionResult{
		Text:     text,
		Segments: segments,
		Provider: ProviderID,
		TimingMS: map[string]float64{"transcribe": elapsed},
		Mode:     connector.ModePrimary,
	}, nil
}

// Validate pings the inference server health endpoint
func (c *Client) Validate(ctx context.Context) (connector.ValidationResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/health", nil)
	if err != nil {
		return connector.ValidationResult{Status: connector.ValidationError, Reason: err.Error()}, nil
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return connector.ValidationResult{Status: connector.ValidationError, Reason: err.Error()}, nil
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return connector.ValidationResult{
			Status: connector.ValidationError,
			Reason: fmt.Sprintf("whisper server returned status %d", resp.StatusCode),
		}, nil
	}
	return connector.ValidationResult{Status: connector.ValidationOK, Reason: "whisper server reachable"}, nil
}
