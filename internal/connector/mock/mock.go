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

// Package mock provides credential-free connector implementations used in
// development mode and tests.
package mock

import (
	"context"
	"fmt"
	"time"

	"github.com/your-org/ai-gateway/internal/connector"
)

// LLM echoes the last user message back
type LLM struct{}

// NewLLM creates a mock LLM connector
func NewLLM() *LLM { return &LLM{} }

// Generate returns an echo reply referencing the requested model
func (m *LLM) Generate(_ context.Context, messages []connector.Message, opts connector.GenerateOptions) (*connector.GenerateResult, error) {
	var lastUser string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == connector.RoleUser {
			lastUser = messages[i].Content
			break
		}
	}
	model := opts.Model
	if model == "" {
		model = "echo"
	}
	text := fmt.Sprintf("[MockLLM @ %s] You said: %s. Responding via %s",
		time.Now().UTC().Format(time.RFC3339), lastUser, model)
	return &connector.GenerateResult{
		Text: text,
		Usage: connector.TokenUsage{
			PromptTokens:     len(messages),
			CompletionTokens: 1,
			TotalTokens:      len(messages) + 1,
		},
		LatencyMS: 1,
		Model:     model,
	}, nil
}

// Validate reports the mock as always available
func (m *LLM) Validate(context.Context) (connector.ValidationResult, error) {
	return connector.ValidationResult{Status: connector.ValidationOK, Reason: "mock llm available"}, nil
}

// Search returns canned knowledge snippets
type Search struct{}

// NewSearch creates a mock search connector
func NewSearch() *Search { return &Search{} }

// Search returns up to topK canned snippets referencing the query
func (m *Search) Search(_ context.Context, query string, topK int, _ string) ([]connector.SearchResult, error) {
	results := []connector.SearchResult{
		{Title: "Mock KB", Text: fmt.Sprintf("Answering '%s' from mock corpus", query), Score: 0.9},
		{Title: "Playbook", Text: "Escalate to service desk if unresolved", Score: 0.6},
	}
	if topK >= 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Validate reports the mock as always available
func (m *Search) Validate(context.Context) (connector.ValidationResult, error) {
	return connector.ValidationResult{Status: connector.ValidationOK, Reason: "mock search available"}, nil
}

// Speech implements both STT and TTS with placeholder output
type Speech struct{}

// NewSpeech creates a mock speech connector
func NewSpeech() *Speech { return &Speech{} }

// Transcribe returns a placeholder transcript
func (m *Speech) Transcribe(_ context.Context, audio []byte, _ connector.TranscriptionOptions) (*connector.TranscriptionResult, error) {
	text := "[MockSTT] Transcription placeholder for provided audio payload"
	return &connector.TranscriptionResult{
		Text: text,
		Segments: []connector.TranscriptionSegment{
			{Text: text, Start: 0, End: float64(len(audio)) / 32000},
		},
		Provider: "mock-stt",
		TimingMS: map[string]float64{"transcribe": 1},
		Mode:     connector.ModePrimary,
	}, nil
}

// Synthesize returns placeholder audio bytes
func (m *Speech) Synthesize(_ context.Context, text, _, voice string) (*connector.SynthesisResult, error) {
	if voice == "" {
		voice = "alloy"
	}
	preview := text
	if len(preview) > 60 {
		preview = preview[:60]
	}
	return &connector.SynthesisResult{
		Audio:    []byte(fmt.Sprintf("[MockTTS:%s] Audio bytes for text: %s", voice, preview)),
		MimeType: "text/plain",
		Provider: "mock-tts",
		Voice:    voice,
	}, nil
}

// Validate reports the mock as always available
func (m *Speech) Validate(context.Context) (connector.ValidationResult, error) {
	return connector.ValidationResult{Status: connector.ValidationOK, Reason: "mock speech available"}, nil
}

// ServiceDesk returns canned ticket records
type ServiceDesk struct{}

// NewServiceDesk creates a mock service desk connector
func NewServiceDesk() *ServiceDesk { return &ServiceDesk{} }

// CreateTicket returns a canned ticket
func (m *ServiceDesk) CreateTicket(_ context.Context, title, body, severity, requester string) (*connector.Ticket, error) {
	return &connector.Ticket{
		ID:        "MOCK-1",
		Summary:   title,
		Body:      body,
		Severity:  severity,
		Requester: requester,
	}, nil
}

// GetTicket returns a canned in-progress ticket
func (m *ServiceDesk) GetTicket(_ context.Context, ticketID string) (*connector.Ticket, error) {
	return &connector.Ticket{ID: ticketID, Status: "In Progress", Summary: "Mock ticket"}, nil
}

// Validate reports the mock as always available
func (m *ServiceDesk) Validate(context.Context) (connector.ValidationResult, error) {
	return connector.ValidationResult{Status: connector.ValidationOK, Reason: "mock service desk available"}, nil
}
