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

// Package azurespeech provides STT and TTS connectors backed by the Azure
// Speech REST APIs.
package azurespeech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/ai-gateway/internal/connector"
	"github.com/your-org/ai-gateway/internal/resilience"
)

// ProviderID identifies this connector in results and provider listings
const ProviderID = "azure-speech"

const defaultVoice = "en-US-JennyNeural"

// Client implements STT and TTS against an Azure Speech resource
type Client struct {
	region     string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger

	// overridable in tests
	sttBaseURL string
	ttsBaseURL string
}

// NewClient creates an Azure Speech connector for the given region
func NewClient(region, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		region:     region,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
		sttBaseURL: fmt.Sprintf("https://%s.stt.speech.microsoft.com", region),
		ttsBaseURL: fmt.Sprintf("https://%s.tts.speech.microsoft.com", region),
	}
}

// SetBaseURLs overrides the service endpoints, used by tests
func (c *Client) SetBaseURLs(stt, tts string) {
	c.sttBaseURL = strings.TrimRight(stt, "/")
	c.ttsBaseURL = strings.TrimRight(tts, "/")
}

type recognitionResponse struct {
	RecognitionStatus string  `json:"RecognitionStatus"`
	DisplayText       string  `json:"DisplayText"`
	Offset            int64   `json:"Offset"`
	Duration          int64   `json:"Duration"`
	NBest             []nBest `json:"NBest"`
}

type nBest struct {
	Confidence float64 `json:"Confidence"`
	Display    string  `json:"Display"`
}

// Transcribe runs short-audio recognition against the Azure Speech STT API
func (c *Client) Transcribe(ctx context.Context, audio []byte, opts connector.TranscriptionOptions) (*connector.TranscriptionResult, error) {
	language := opts.Language
	if language == "" || language == "auto" {
		language = "en-US"
	}

	endpoint := fmt.Sprintf("%s/speech/recognition/conversation/cognitiveservices/v1?language=%s&format=detailed", c.sttBaseURL, language)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("failed to build recognition request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewProviderError(ProviderID, "request_failed", err.Error(), "Check network connectivity to Azure Speech", false)
	}
	defer func() { _ = resp.Body.Close() }()
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	if resp.StatusCode >= 400 {
		return nil, c.statusError(resp)
	}

	var parsed recognitionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode recognition response: %w", err)
	}
	if parsed.RecognitionStatus != "Success" {
		return nil, resilience.NewProviderError(ProviderID, "recognition_failed",
			fmt.Sprintf("recognition status %s", parsed.RecognitionStatus), "", false)
	}

	// ticks are 100ns units
	startSec := float64(parsed.Offset) / 1e7
	endSec := startSec + float64(parsed.Duration)/1e7
	prob := 0.0
	if len(parsed.NBest) > 0 {
		prob = parsed.NBest[0].Confidence
	}

	return &connector.TranscriptionResult{
		Text: parsed.DisplayText,
		Segments: []connector.TranscriptionSegment{
			{Text: parsed.DisplayText, Start: startSec, End: endSec, Prob: prob},
		},
		Provider: ProviderID,
		TimingMS: map[string]float64{"transcribe": elapsed},
		Mode:     connector.ModePrimary,
	}, nil
}

// Synthesize renders text to audio via the Azure Speech TTS API
func (c *Client) Synthesize(ctx context.Context, text, locale, voice string) (*connector.SynthesisResult, error) {
	if locale == "" {
		locale = "en-US"
	}
	if voice == "" {
		voice = defaultVoice
	}

	ssml := fmt.Sprintf(
		`<speak version='1.0' xml:lang='%s'><voice xml:lang='%s' name='%s'>%s</voice></speak>`,
		locale, locale, voice, escapeSSML(text),
	)

	endpoint := c.ttsBaseURL + "/cognitiveservices/v1"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("failed to build synthesis request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", "riff-16khz-16bit-mono-pcm")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewProviderError(ProviderID, "request_failed", err.Error(), "Check network connectivity to Azure Speech", false)
	}
	defer func() { _ = resp.Body.Close() }()
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	if resp.StatusCode >= 400 {
		return nil, c.statusError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}

	return &connector.SynthesisResult{
		Audio:    audio,
		MimeType: "audio/wav",
		Provider: ProviderID,
		Voice:    voice,
		TimingMS: map[string]float64{"synthesize": elapsed},
	}, nil
}

// Validate checks that the subscription key can issue a token
func (c *Client) Validate(ctx context.Context) (connector.ValidationResult, error) {
	endpoint := fmt.Sprintf("https://%s.api.cognitive.microsoft.com/sts/v1.0/issueToken", c.region)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return connector.ValidationResult{Status: connector.ValidationError, Reason: err.Error()}, nil
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return connector.ValidationResult{Status: connector.ValidationError, Reason: err.Error()}, nil
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return connector.ValidationResult{
			Status: connector.ValidationError,
			Reason: fmt.Sprintf("token endpoint returned status %d", resp.StatusCode),
		}, nil
	}
	return connector.ValidationResult{Status: connector.ValidationOK, Reason: "subscription key accepted"}, nil
}

func (c *Client) statusError(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	message := strings.TrimSpace(string(payload))
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	credit := resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusPaymentRequired ||
		resp.StatusCode == http.StatusForbidden ||
		resp.StatusCode == http.StatusTooManyRequests
	hint := ""
	if credit {
		hint = "Check Azure Speech subscription key or quota"
	}
	return resilience.NewProviderError(ProviderID, fmt.Sprintf("http_%d", resp.StatusCode), message, hint, credit)
}

func escapeSSML(text string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(text)
}
