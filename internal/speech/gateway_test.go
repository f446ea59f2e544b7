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

package speech

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/ai-gateway/internal/config"
	"github.com/your-org/ai-gateway/internal/connector"
	"github.com/your-org/ai-gateway/internal/registry"
	"github.com/your-org/ai-gateway/internal/resilience"
)

type fakeSTT struct {
	providerID string
	err        error
	calls      int
}

func (f *fakeSTT) Transcribe(ctx context.Context, audio []byte, opts connector.TranscriptionOptions) (*connector.TranscriptionResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &connector.TranscriptionResult{
		Text:     "hello from " + f.providerID,
		Provider: f.providerID,
	}, nil
}

func (f *fakeSTT) Validate(ctx context.Context) (connector.ValidationResult, error) {
	return connector.ValidationResult{Status: connector.ValidationOK}, nil
}

func creditError() error {
	return resilience.NewProviderError(registry.ProviderElevenLabs, "http_402", "payment required", "Check ElevenLabs credits", true)
}

func speechConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Speech.DefaultProvider = ProviderAuto
	cfg.Speech.DefaultModel = "tiny"
	cfg.Speech.DefaultLanguage = "auto"
	cfg.Speech.CooldownMinutes = 10
	return cfg
}

func newTestGateway(cfg *config.Config, premium, fallback *fakeSTT) *Gateway {
	providers := map[string]connector.STTConnector{}
	if premium != nil {
		providers[registry.ProviderElevenLabs] = premium
	}
	if fallback != nil {
		providers[registry.ProviderLocalWhisper] = fallback
	}
	return NewGateway(cfg, providers, zap.NewNop())
}

func TestAutoSelectsPremium(t *testing.T) {
	premium := &fakeSTT{providerID: registry.ProviderElevenLabs}
	fallback := &fakeSTT{providerID: registry.ProviderLocalWhisper}
	g := newTestGateway(speechConfig(), premium, fallback)

	result, err := g.Transcribe(context.Background(), []byte("audio"), Request{Provider: ProviderAuto})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Provider != registry.ProviderElevenLabs {
		t.Errorf("provider = %s, want premium", result.Provider)
	}
	if result.Mode != connector.ModePrimary {
		t.Errorf("mode = %s, want %s", result.Mode, connector.ModePrimary)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times, want 0", fallback.calls)
	}
}

func TestCreditFailureFallsBackSameRequest(t *testing.T) {
	premium := &fakeSTT{providerID: registry.ProviderElevenLabs, err: creditError()}
	fallback := &fakeSTT{providerID: registry.ProviderLocalWhisper}
	g := newTestGateway(speechConfig(), premium, fallback)

	result, err := g.Transcribe(context.Background(), []byte("audio"), Request{Provider: ProviderAuto})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Provider != registry.ProviderLocalWhisper {
		t.Errorf("provider = %s, want fallback", result.Provider)
	}
	if result.Mode != connector.ModeFallback {
		t.Errorf("mode = %s, want %s", result.Mode, connector.ModeFallback)
	}

	status := g.Status()
	if status.PremiumOK {
		t.Error("premium should be marked unavailable after credit failure")
	}
	if status.LastError == "" {
		t.Error("status should carry the failure message")
	}
}

func TestCooldownSkipsPremiumThenExpires(t *testing.T) {
	premium := &fakeSTT{providerID: registry.ProviderElevenLabs, err: creditError()}
	fallback := &fakeSTT{providerID: registry.ProviderLocalWhisper}
	g := newTestGateway(speechConfig(), premium, fallback)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g.SetClock(func() time.Time { return now })

	if _, err := g.Transcribe(context.Background(), []byte("audio"), Request{Provider: ProviderAuto}); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	premiumCalls := premium.calls

	// Within the cooldown automatic selection must not probe the premium
	// provider again.
	now = now.Add(5 * time.Minute)
	if _, err := g.Transcribe(context.Background(), []byte("audio"), Request{Provider: ProviderAuto}); err != nil {
		t.Fatalf("cooldown turn: %v", err)
	}
	if premium.calls != premiumCalls {
		t.Errorf("premium probed during cooldown: %d calls, want %d", premium.calls, premiumCalls)
	}

	// Once the window elapses the premium provider is tried again.
	premium.err = nil
	now = now.Add(6 * time.Minute)
	result, err := g.Transcribe(context.Background(), []byte("audio"), Request{Provider: ProviderAuto})
	if err != nil {
		t.Fatalf("post-cooldown turn: %v", err)
	}
	if result.Provider != registry.ProviderElevenLabs {
		t.Errorf("provider after cooldown = %s, want premium", result.Provider)
	}
}

func TestStrictExplicitPremiumDoesNotDegrade(t *testing.T) {
	cfg := speechConfig()
	cfg.Speech.StrictProvider = true
	premium := &fakeSTT{providerID: registry.ProviderElevenLabs, err: creditError()}
	fallback := &fakeSTT{providerID: registry.ProviderLocalWhisper}
	g := newTestGateway(cfg, premium, fallback)

	_, err := g.Transcribe(context.Background(), []byte("audio"), Request{Provider: registry.ProviderElevenLabs})
	if err == nil {
		t.Fatal("strict explicit premium selection should surface the error")
	}
	if !resilience.IsCreditIssue(err) {
		t.Errorf("error should keep the credit classification: %v", err)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times, want 0", fallback.calls)
	}
}

func TestExplicitPremiumDegradesWithoutStrict(t *testing.T) {
	premium := &fakeSTT{providerID: registry.ProviderElevenLabs, err: creditError()}
	fallback := &fakeSTT{providerID: registry.ProviderLocalWhisper}
	g := newTestGateway(speechConfig(), premium, fallback)

	result, err := g.Transcribe(context.Background(), []byte("audio"), Request{Provider: registry.ProviderElevenLabs})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Mode != connector.ModeFallback {
		t.Errorf("mode = %s, want %s", result.Mode, connector.ModeFallback)
	}
}

func TestNonCreditErrorPropagates(t *testing.T) {
	premium := &fakeSTT{
		providerID: registry.ProviderElevenLabs,
		err:        resilience.NewProviderError(registry.ProviderElevenLabs, "http_500", "upstream error", "", false),
	}
	fallback := &fakeSTT{providerID: registry.ProviderLocalWhisper}
	g := newTestGateway(speechConfig(), premium, fallback)

	_, err := g.Transcribe(context.Background(), []byte("audio"), Request{Provider: ProviderAuto})
	if err == nil {
		t.Fatal("non-credit error should not trigger fallback")
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times, want 0", fallback.calls)
	}
	if status := g.Status(); !status.PremiumOK {
		t.Error("non-credit error should not open the cooldown")
	}
}

func TestUnknownProviderUnavailable(t *testing.T) {
	g := newTestGateway(speechConfig(), &fakeSTT{providerID: registry.ProviderElevenLabs}, nil)

	_, err := g.Transcribe(context.Background(), []byte("audio"), Request{Provider: "azure-speech"})
	if err == nil {
		t.Fatal("unknown provider should fail")
	}
	serviceErr, ok := resilience.AsServiceError(err)
	if !ok {
		t.Fatalf("want ServiceError, got %T", err)
	}
	if serviceErr.Code != resilience.ErrorCodeProviderUnavailable {
		t.Errorf("code = %s, want %s", serviceErr.Code, resilience.ErrorCodeProviderUnavailable)
	}
}

func TestBuildOptionsDefaults(t *testing.T) {
	g := newTestGateway(speechConfig(), nil, &fakeSTT{providerID: registry.ProviderLocalWhisper})

	opts := g.buildOptions(Request{})
	if opts.Model != "tiny" {
		t.Errorf("model = %s, want tiny", opts.Model)
	}
	if opts.Language != "auto" {
		t.Errorf("language = %s, want auto", opts.Language)
	}
	if opts.BeamSize != 1 {
		t.Errorf("beam size = %d, want 1", opts.BeamSize)
	}

	opts = g.buildOptions(Request{Model: "small", Language: "fi", BeamSize: 5})
	if opts.Model != "small" || opts.Language != "fi" || opts.BeamSize != 5 {
		t.Errorf("overrides not applied: %+v", opts)
	}
}
