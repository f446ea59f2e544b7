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

// Package orchestrator implements the per-turn pipeline: session handling,
// policy enforcement, retrieval, generation, ticket actions, and the debug
// surface. It depends only on the connector contracts, so every provider
// behind it is interchangeable.
package orchestrator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/your-org/ai-gateway/internal/config"
	"github.com/your-org/ai-gateway/internal/connector"
	"github.com/your-org/ai-gateway/internal/intent"
	"github.com/your-org/ai-gateway/internal/memory"
	"github.com/your-org/ai-gateway/internal/policy"
	"github.com/your-org/ai-gateway/internal/registry"
	"github.com/your-org/ai-gateway/internal/resilience"
)

// Generation defaults applied to every turn
const (
	defaultTemperature = 0.2
	defaultMaxTokens   = 256
	defaultTopK        = 3
	defaultIndexName   = "default"
)

// Ticket defaults for intent-driven desk actions
const (
	ticketTitle      = "AI Gateway Ticket"
	ticketSeverity   = "3"
	statusLookupID   = "SNOW-1001"
)

// ProviderSelection names the providers a request wants per capability.
// The LLM fields are required; the rest are optional.
type ProviderSelection struct {
	LLMProvider         string `json:"llm_provider" binding:"required"`
	LLMModel            string `json:"llm_model" binding:"required"`
	RAGProvider         string `json:"rag_provider,omitempty"`
	RAGIndex            string `json:"rag_index,omitempty"`
	STTProvider         string `json:"stt_provider,omitempty"`
	STTModel            string `json:"stt_model,omitempty"`
	TTSProvider         string `json:"tts_provider,omitempty"`
	TTSVoice            string `json:"tts_voice,omitempty"`
	ServiceDeskProvider string `json:"servicedesk_provider,omitempty"`
}

// ChatRequest is one inbound chat turn
type ChatRequest struct {
	SessionID         string            `json:"session_id,omitempty"`
	Channel           string            `json:"channel" binding:"required"`
	Message           string            `json:"message" binding:"required"`
	ProviderSelection ProviderSelection `json:"provider_selection" binding:"required"`
	UseRAG            bool              `json:"use_rag"`
	IncludeDebug      bool              `json:"include_debug"`
}

// ChatResult is the outcome of one chat turn
type ChatResult struct {
	SessionID         string            `json:"session_id"`
	Reply             string            `json:"reply"`
	Providers         ProviderSelection `json:"providers"`
	UsedRAG           bool              `json:"used_rag"`
	ServiceDeskAction string            `json:"servicedesk_action,omitempty"`
	Debug             map[string]any    `json:"debug,omitempty"`
}

// ValidationDetail reports one connector's validation outcome
type ValidationDetail struct {
	ServiceType string `json:"service_type"`
	Provider    string `json:"provider"`
	Status      string `json:"status"`
	Reason      string `json:"reason"`
}

// ValidationReport aggregates connector validation. Status is "ok" only
// when every configured connector validated clean.
type ValidationReport struct {
	Status  string             `json:"status"`
	Results []ValidationDetail `json:"results"`
}

// Orchestrator runs the chat turn pipeline and the passthrough audio and
// validation operations
type Orchestrator struct {
	devMode    bool
	registry   *registry.Registry
	memory     *memory.Store
	policy     *policy.Engine
	classifier *intent.TicketClassifier
	assembler  *ContextAssembler
	connectors *Connectors
	logger     *zap.Logger
}

// New creates an orchestrator over the given connector set
func New(cfg *config.Config, reg *registry.Registry, mem *memory.Store, pol *policy.Engine, conns *Connectors, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		devMode:    cfg.Gateway.DevMode,
		registry:   reg,
		memory:     mem,
		policy:     pol,
		classifier: intent.NewTicketClassifier(),
		assembler:  NewContextAssembler(),
		connectors: conns,
		logger:     logger,
	}
}

// HandleChatTurn executes one chat turn. Memory appends are at least once:
// a user message that passed policy stays recorded even when a later stage
// fails.
func (o *Orchestrator) HandleChatTurn(ctx context.Context, req *ChatRequest, correlationID string) (*ChatResult, error) {
	logger := o.logger
	if correlationID != "" {
		logger = logger.With(zap.String("correlation_id", correlationID))
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = memory.GenerateSessionID()
	}
	o.memory.CreateSession(sessionID)

	sel := req.ProviderSelection
	if !o.registry.IsConfigured(connector.CapabilityLLM, sel.LLMProvider) {
		return nil, resilience.NewNotConfiguredError("llm", sel.LLMProvider,
			o.registry.MissingEnv(connector.CapabilityLLM, sel.LLMProvider))
	}

	sanitized, err := o.policy.Enforce(req.Message)
	if err != nil {
		return nil, err
	}
	o.memory.Append(sessionID, connector.Message{Role: connector.RoleUser, Content: sanitized})

	var ragResults []connector.SearchResult
	if req.UseRAG && sel.RAGProvider != "" {
		ragResults, err = o.retrieve(ctx, sel, req.Message)
		if err != nil {
			return nil, err
		}
	}

	history := o.memory.History(sessionID)
	messages := o.assembler.Build(history, ragResults)

	llm, ok := o.connectors.LLM[sel.LLMProvider]
	if !ok {
		return nil, resilience.NewNotFoundError("llm", sel.LLMProvider)
	}
	generated, err := llm.Generate(ctx, messages, connector.GenerateOptions{
		Model:       sel.LLMModel,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	deskAction, deskPayload, err := o.maybeTicketAction(ctx, sel, req.Message)
	if err != nil {
		return nil, err
	}

	o.memory.Append(sessionID, connector.Message{Role: connector.RoleAssistant, Content: generated.Text})

	result := &ChatResult{
		SessionID:         sessionID,
		Reply:             generated.Text,
		Providers:         sel,
		UsedRAG:           len(ragResults) > 0,
		ServiceDeskAction: deskAction,
	}

	if req.IncludeDebug || o.devMode {
		result.Debug = map[string]any{
			"correlation_id": correlationID,
			"rag_results":    ragResults,
			"servicedesk":    deskPayload,
			"history_length": len(history) + 1,
			"llm_usage":      generated.Usage,
			"latency_ms":     generated.LatencyMS,
		}
		logger.Info("Turn executed",
			zap.String("session_id", sessionID),
			zap.String("llm_provider", sel.LLMProvider),
			zap.Bool("used_rag", result.UsedRAG),
			zap.String("servicedesk_action", deskAction),
		)
	}
	return result, nil
}

func (o *Orchestrator) retrieve(ctx context.Context, sel ProviderSelection, query string) ([]connector.SearchResult, error) {
	if !o.registry.IsConfigured(connector.CapabilityRAG, sel.RAGProvider) {
		return nil, resilience.NewNotConfiguredError("rag", sel.RAGProvider,
			o.registry.MissingEnv(connector.CapabilityRAG, sel.RAGProvider))
	}
	rag, ok := o.connectors.RAG[sel.RAGProvider]
	if !ok {
		return nil, resilience.NewNotFoundError("rag", sel.RAGProvider)
	}
	index := sel.RAGIndex
	if index == "" {
		index = defaultIndexName
	}
	return rag.Search(ctx, query, defaultTopK, index)
}

func (o *Orchestrator) maybeTicketAction(ctx context.Context, sel ProviderSelection, message string) (string, *connector.Ticket, error) {
	if sel.ServiceDeskProvider == "" {
		return "", nil, nil
	}
	if !o.registry.IsConfigured(connector.CapabilityServiceDesk, sel.ServiceDeskProvider) {
		return "", nil, resilience.NewNotConfiguredError("servicedesk", sel.ServiceDeskProvider,
			o.registry.MissingEnv(connector.CapabilityServiceDesk, sel.ServiceDeskProvider))
	}

	detected := o.classifier.Classify(message)
	if detected == intent.IntentNone {
		return "", nil, nil
	}
	desk, ok := o.connectors.ServiceDesk[sel.ServiceDeskProvider]
	if !ok {
		return "", nil, nil
	}

	var (
		ticket *connector.Ticket
		err    error
	)
	switch detected {
	case intent.IntentCreate:
		ticket, err = desk.CreateTicket(ctx, ticketTitle, message, ticketSeverity, "")
	case intent.IntentStatus:
		ticket, err = desk.GetTicket(ctx, statusLookupID)
	}
	if err != nil {
		return "", nil, err
	}
	return string(detected), ticket, nil
}

// Synthesize runs text to speech on the selected provider
func (o *Orchestrator) Synthesize(ctx context.Context, providerID, text, locale, voice string) (*connector.SynthesisResult, error) {
	if !o.registry.IsConfigured(connector.CapabilityTTS, providerID) {
		return nil, resilience.NewNotConfiguredError("tts", providerID,
			o.registry.MissingEnv(connector.CapabilityTTS, providerID))
	}
	tts, ok := o.connectors.TTS[providerID]
	if !ok {
		return nil, resilience.NewNotFoundError("tts", providerID)
	}
	return tts.Synthesize(ctx, text, locale, voice)
}

// RegistrySnapshot returns the provider listing. Unconfigured providers
// appear only in development mode.
func (o *Orchestrator) RegistrySnapshot() map[connector.Capability][]registry.Descriptor {
	return o.registry.List(o.devMode)
}

// ValidateConnectors runs every connector's self-check. A connector that
// panics or errors is reported, never fatal; one misbehaving connector
// must not hide the rest of the scan.
func (o *Orchestrator) ValidateConnectors(ctx context.Context) *ValidationReport {
	report := &ValidationReport{Status: "ok", Results: make([]ValidationDetail, 0)}

	for _, entry := range o.connectors.validators() {
		detail := ValidationDetail{
			ServiceType: string(entry.capability),
			Provider:    entry.providerID,
		}

		if !o.registry.IsConfigured(entry.capability, entry.providerID) {
			detail.Status = connector.ValidationNotConfigured
			if missing := o.registry.MissingEnv(entry.capability, entry.providerID); len(missing) > 0 {
				detail.Reason = "Missing env: " + strings.Join(missing, ", ")
			} else {
				detail.Reason = "Disabled"
			}
			report.Results = append(report.Results, detail)
			continue
		}

		result := o.safeValidate(ctx, entry.validator)
		detail.Status = result.Status
		detail.Reason = result.Reason
		if result.Status != connector.ValidationOK {
			report.Status = "attention"
		}
		report.Results = append(report.Results, detail)
	}
	return report
}

func (o *Orchestrator) safeValidate(ctx context.Context, v connector.Validator) (result connector.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Connector validation panicked", zap.Any("panic", r))
			result = connector.ValidationResult{Status: connector.ValidationError, Reason: "validation panicked"}
		}
	}()

	res, err := v.Validate(ctx)
	if err != nil {
		return connector.ValidationResult{Status: connector.ValidationError, Reason: err.Error()}
	}
	return res
}
