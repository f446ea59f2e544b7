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

// Package speech routes transcription between the premium provider and the
// local fallback. A premium failure classified as a credit issue opens a
// cooldown window; while it is open, automatic selection skips the premium
// provider without probing it.
package speech

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/ai-gateway/internal/config"
	"github.com/your-org/ai-gateway/internal/connector"
	"github.com/your-org/ai-gateway/internal/registry"
	"github.com/your-org/ai-gateway/internal/resilience"
)

// ProviderAuto selects the premium provider when it is healthy
const ProviderAuto = "auto"

// Status is the live failover state reported to operators
type Status struct {
	ActiveProvider string     `json:"stt_provider_active"`
	PremiumOK      bool       `json:"premium_ok"`
	LastError      string     `json:"last_error,omitempty"`
	LastErrorAt    *time.Time `json:"last_error_at,omitempty"`
	Mode           string     `json:"mode"`
	Timestamp      time.Time  `json:"timestamp"`
}

// Request is one transcription request. Provider "" or "auto" lets the
// gateway pick; anything else bypasses selection.
type Request struct {
	Provider  string
	Language  string
	Model     string
	BeamSize  int
	VADFilter bool
}

// Gateway owns the failover state machine over the STT connectors
type Gateway struct {
	providers  map[string]connector.STTConnector
	premiumID  string
	fallbackID string

	cooldown        time.Duration
	strictProvider  bool
	defaultProvider string
	defaultModel    string
	defaultLanguage string

	logger *zap.Logger
	now    func() time.Time

	mu           sync.Mutex
	lastFailure  time.Time
	lastError    string
	lastProvider string
}

// NewGateway creates a speech gateway over the given STT connectors
func NewGateway(cfg *config.Config, providers map[string]connector.STTConnector, logger *zap.Logger) *Gateway {
	cooldown := time.Duration(cfg.Speech.CooldownMinutes) * time.Minute
	if cooldown <= 0 {
		cooldown = 10 * time.Minute
	}
	return &Gateway{
		providers:       providers,
		premiumID:       registry.ProviderElevenLabs,
		fallbackID:      registry.ProviderLocalWhisper,
		cooldown:        cooldown,
		strictProvider:  cfg.Speech.StrictProvider,
		defaultProvider: cfg.Speech.DefaultProvider,
		defaultModel:    cfg.Speech.DefaultModel,
		defaultLanguage: cfg.Speech.DefaultLanguage,
		logger:          logger,
		now:             time.Now,
		lastProvider:    cfg.Speech.DefaultProvider,
	}
}

// SetClock overrides the time source, used by tests
func (g *Gateway) SetClock(now func() time.Time) {
	g.now = now
}

func (g *Gateway) premiumInCooldown() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.premiumCoolingLocked()
}

func (g *Gateway) premiumCoolingLocked() bool {
	if g.lastFailure.IsZero() {
		return false
	}
	return g.now().Sub(g.lastFailure) < g.cooldown
}

func (g *Gateway) markPremiumFailure(message string) {
	g.mu.Lock()
	g.lastFailure = g.now()
	g.lastError = message
	g.mu.Unlock()
	g.logger.Warn("Premium STT provider marked unavailable", zap.String("reason", message))
}

func (g *Gateway) selectPrimary(requested string) string {
	if requested == ProviderAuto {
		_, hasPremium := g.providers[g.premiumID]
		if hasPremium && !g.premiumInCooldown() {
			return g.premiumID
		}
		return g.fallbackID
	}
	return requested
}

func (g *Gateway) buildOptions(req Request) connector.TranscriptionOptions {
	language := req.Language
	if language == "" {
		language = g.defaultLanguage
	}
	model := req.Model
	if model == "" {
		model = g.defaultModel
	}
	beamSize := req.BeamSize
	if beamSize < 1 {
		beamSize = 1
	}
	return connector.TranscriptionOptions{
		Language:  language,
		Model:     model,
		BeamSize:  beamSize,
		VADFilter: req.VADFilter,
	}
}

// Transcribe runs one transcription with failover. A credit-classed
// failure of the premium provider opens the cooldown and, unless strict
// provider selection is on, the same request is re-issued on the fallback
// and its result tagged as such.
func (g *Gateway) Transcribe(ctx context.Context, audio []byte, req Request) (*connector.TranscriptionResult, error) {
	requested := req.Provider
	if requested == "" {
		requested = g.defaultProvider
	}
	if requested == "" {
		requested = ProviderAuto
	}

	primary := g.selectPrimary(requested)
	provider, ok := g.providers[primary]
	if !ok {
		return nil, resilience.NewProviderUnavailableError(primary)
	}
	opts := g.buildOptions(req)

	g.logger.Info("Transcription starting",
		zap.String("provider", primary),
		zap.String("language", opts.Language),
		zap.String("model", opts.Model),
	)

	result, err := provider.Transcribe(ctx, audio, opts)
	if err == nil {
		result.Mode = connector.ModePrimary
		g.recordProvider(result.Provider)
		return result, nil
	}

	if primary == g.premiumID && resilience.IsCreditIssue(err) {
		g.markPremiumFailure(err.Error())

		explicit := requested == g.premiumID
		if explicit && g.strictProvider {
			return nil, err
		}
		fallback, ok := g.providers[g.fallbackID]
		if !ok {
			return nil, err
		}

		if providerErr, isProvider := resilience.AsProviderError(err); isProvider {
			g.logger.Info("Falling back to local whisper", zap.String("reason", providerErr.Code))
		}
		result, fallbackErr := fallback.Transcribe(ctx, audio, opts)
		if fallbackErr != nil {
			return nil, fallbackErr
		}
		result.Mode = connector.ModeFallback
		g.recordProvider(result.Provider)
		return result, nil
	}

	return nil, err
}

func (g *Gateway) recordProvider(providerID string) {
	g.mu.Lock()
	g.lastProvider = providerID
	g.mu.Unlock()
}

// Status reports the current failover state. Safe for concurrent use with
// in-flight transcriptions.
func (g *Gateway) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, hasPremium := g.providers[g.premiumID]
	cooling := g.premiumCoolingLocked()

	status := Status{
		ActiveProvider: g.lastProvider,
		PremiumOK:      hasPremium && !cooling,
		LastError:      g.lastError,
		Mode:           connector.ModePrimary,
		Timestamp:      g.now().UTC(),
	}
	if cooling {
		status.Mode = connector.ModeFallback
	}
	if !g.lastFailure.IsZero() {
		at := g.lastFailure.UTC()
		status.LastErrorAt = &at
	}
	return status
}
