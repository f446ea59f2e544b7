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

// Package connector defines the capability contracts the orchestration core
// consumes. Concrete providers (mock and vendor-backed) live in subpackages;
// the orchestrator and speech gateway depend only on these interfaces.
package connector

import "context"

// Capability is a named function category a provider may implement
type Capability string

const (
	// CapabilityLLM identifies chat completion providers
	CapabilityLLM Capability = "llm"
	// CapabilityRAG identifies retrieval providers
	CapabilityRAG Capability = "rag"
	// CapabilitySTT identifies speech-to-text providers
	CapabilitySTT Capability = "stt"
	// CapabilityTTS identifies text-to-speech providers
	CapabilityTTS Capability = "tts"
	// CapabilityServiceDesk identifies ticketing providers
	CapabilityServiceDesk Capability = "servicedesk"
)

// Capabilities lists every capability the gateway dispatches to, in the
// order health and registry surfaces report them
func Capabilities() []Capability {
	return []Capability{CapabilityLLM, CapabilityRAG, CapabilitySTT, CapabilityTTS, CapabilityServiceDesk}
}

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one provider-ready conversation entry
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage reports token consumption for one generation
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerateOptions controls one LLM generation
type GenerateOptions struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// GenerateResult is the outcome of one LLM generation
type GenerateResult struct {
	Text      string     `json:"text"`
	Usage     TokenUsage `json:"usage"`
	LatencyMS int64      `json:"latency_ms"`
	Model     string     `json:"model"`
}

// SearchResult is one retrieved snippet
type SearchResult struct {
	Title string  `json:"title,omitempty"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Transcription modes
const (
	ModePrimary  = "primary"
	ModeFallback = "fallback"
)

// TranscriptionOptions controls one transcription. Language "" or "auto"
// means automatic detection.
type TranscriptionOptions struct {
	Language  string
	Model     string
	BeamSize  int
	VADFilter bool
}

// TranscriptionSegment is one time-stamped slice of a transcript
type TranscriptionSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Prob  float64 `json:"prob,omitempty"`
}

// TranscriptionResult is the outcome of one transcription, tagged with the
// provider that actually produced it and whether fallback was taken
type TranscriptionResult struct {
	Text     string                 `json:"text"`
	Segments []TranscriptionSegment `json:"segments"`
	Provider string                 `json:"provider"`
	TimingMS map[string]float64     `json:"timing_ms"`
	Mode     string                 `json:"mode"`
}

// SynthesisResult is the outcome of one speech synthesis
type SynthesisResult struct {
	Audio    []byte             `json:"-"`
	MimeType string             `json:"mime_type"`
	Provider string             `json:"provider"`
	Voice    string             `json:"voice,omitempty"`
	TimingMS map[string]float64 `json:"timing_ms,omitempty"`
}

// Ticket is one service desk ticket record
type Ticket struct {
	ID        string         `json:"id"`
	Summary   string         `json:"summary,omitempty"`
	Body      string         `json:"body,omitempty"`
	Severity  string         `json:"severity,omitempty"`
	Status    string         `json:"status,omitempty"`
	Requester string         `json:"requester,omitempty"`
	Raw       map[string]any `json:"raw,omitempty"`
}

// Validation statuses
const (
	ValidationOK            = "ok"
	ValidationError         = "error"
	ValidationNotConfigured = "not_configured"
)

// ValidationResult reports one connector's self-check outcome
type ValidationResult struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Validator is implemented by every connector for aggregate health checks
type Validator interface {
	Validate(ctx context.Context) (ValidationResult, error)
}

// LLMConnector generates chat completions
type LLMConnector interface {
	Validator
	Generate(ctx context.Context, messages []Message, opts GenerateOptions) (*GenerateResult, error)
}

// RAGConnector retrieves knowledge snippets
type RAGConnector interface {
	Validator
	Search(ctx context.Context, query string, topK int, indexName string) ([]SearchResult, error)
}

// STTConnector transcribes audio. Errors of type *resilience.ProviderError
// carry the machine code, hint and credit-issue class the speech gateway
// keys its failover on.
type STTConnector interface {
	Validator
	Transcribe(ctx context.Context, audio []byte, opts TranscriptionOptions) (*TranscriptionResult, error)
}

// TTSConnector synthesizes speech
type TTSConnector interface {
	Validator
	Synthesize(ctx context.Context, text, locale, voice string) (*SynthesisResult, error)
}

// ServiceDeskConnector creates and looks up tickets
type ServiceDeskConnector interface {
	Validator
	CreateTicket(ctx context.Context, title, body, severity, requester string) (*Ticket, error)
	GetTicket(ctx context.Context, ticketID string) (*Ticket, error)
}
