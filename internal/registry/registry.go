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

// Package registry catalogs provider descriptors per capability. The catalog
// is built exactly once from the configuration snapshot; everything after
// construction is a pure read, so no locking is needed.
package registry

import (
	"sort"

	"go.uber.org/zap"

	"github.com/your-org/ai-gateway/internal/config"
	"github.com/your-org/ai-gateway/internal/connector"
	"github.com/your-org/ai-gateway/internal/resilience"
)

// Provider statuses
const (
	StatusConfigured = "configured"
	StatusMissingEnv = "missing_env"
	StatusDisabled   = "disabled"
)

// Well-known provider ids
const (
	ProviderMockLLM         = "mock-llm"
	ProviderMockSearch      = "mock-search"
	ProviderMockSTT         = "mock-stt"
	ProviderMockTTS         = "mock-tts"
	ProviderMockServiceDesk = "mock-servicedesk"
	ProviderAzureOpenAI     = "azure-openai"
	ProviderAzureSearch     = "azure-ai-search"
	ProviderAzureSpeech     = "azure-speech"
	ProviderElevenLabs      = "elevenlabs"
	ProviderLocalWhisper    = "local-whisper"
	ProviderPolly           = "aws-polly"
	ProviderLocalDesk       = "local-desk"
	ProviderServiceNow      = "servicenow"
	ProviderJiraSM          = "jira-sm"
	ProviderRemedy          = "remedy"
)

// Descriptor holds static metadata plus the derived configuration status for
// one backend implementation of a capability. Configured is a pure function
// of settings at construction time and never changes during the process
// lifetime.
type Descriptor struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"display_name"`
	Capabilities []string `json:"capabilities"`
	Supported    []string `json:"supported"`
	RequiresAuth bool     `json:"requires_auth"`
	Status       string   `json:"status"`
	Configured   bool     `json:"configured"`
	MissingEnv   []string `json:"missing_env"`
}

// Registry is the single source of truth for provider configuration
type Registry struct {
	devMode   bool
	providers map[connector.Capability][]Descriptor
}

// New builds the registry from the configuration snapshot. Mock providers are
// always present and configured; vendor providers are added when configured,
// or unconditionally in development mode.
func New(cfg *config.Config, logger *zap.Logger) *Registry {
	r := &Registry{
		devMode: cfg.Gateway.DevMode,
		providers: map[connector.Capability][]Descriptor{
			connector.CapabilityLLM: {{
				ID:           ProviderMockLLM,
				DisplayName:  "Mock LLM",
				Capabilities: []string{"chat"},
				Supported:    []string{"echo", "assistant-lite"},
				Status:       StatusConfigured,
				Configured:   true,
				MissingEnv:   []string{},
			}},
			connector.CapabilityRAG: {{
				ID:           ProviderMockSearch,
				DisplayName:  "Mock Search",
				Capabilities: []string{"keyword", "hybrid"},
				Supported:    []string{"default"},
				Status:       StatusConfigured,
				Configured:   true,
				MissingEnv:   []string{},
			}},
			connector.CapabilitySTT: {{
				ID:           ProviderMockSTT,
				DisplayName:  "Mock Speech-to-Text",
				Capabilities: []string{"en-US"},
				Supported:    []string{"narrowband"},
				Status:       StatusConfigured,
				Configured:   true,
				MissingEnv:   []string{},
			}},
			connector.CapabilityTTS: {{
				ID:           ProviderMockTTS,
				DisplayName:  "Mock Text-to-Speech",
				Capabilities: []string{"en-US"},
				Supported:    []string{"alloy"},
				Status:       StatusConfigured,
				Configured:   true,
				MissingEnv:   []string{},
			}},
			connector.CapabilityServiceDesk: {{
				ID:           ProviderMockServiceDesk,
				DisplayName:  "Mock Service Desk",
				Capabilities: []string{"create", "status"},
				Supported:    []string{"incident"},
				Status:       StatusConfigured,
				Configured:   true,
				MissingEnv:   []string{},
			}},
		},
	}
	r.attachVendorProviders(cfg)

	for capability, descriptors := range r.providers {
		for _, d := range descriptors {
			logger.Debug("Registered provider",
				zap.String("capability", string(capability)),
				zap.String("provider", d.ID),
				zap.String("status", d.Status),
				zap.Bool("configured", d.Configured),
			)
		}
	}
	return r
}

func (r *Registry) attachVendorProviders(cfg *config.Config) {
	aoaiMissing := missingEnv(map[string]string{
		"AZURE_OPENAI_ENDPOINT": cfg.AzureOpenAI.Endpoint,
		"AZURE_OPENAI_API_KEY":  cfg.AzureOpenAI.APIKey,
	})
	aoaiSupported := cfg.AzureOpenAI.Deployments
	if len(aoaiSupported) == 0 {
		aoaiSupported = []string{"gpt-4o-mini", "gpt-4.1-mini", "gpt-4.1"}
	}
	r.maybeAdd(connector.CapabilityLLM, descriptor(Descriptor{
		ID:           ProviderAzureOpenAI,
		DisplayName:  "Azure OpenAI",
		Capabilities: []string{"chat", "completion"},
		Supported:    aoaiSupported,
		RequiresAuth: true,
	}, cfg.AzureOpenAI.Enabled, aoaiMissing))

	searchMissing := missingEnv(map[string]string{
		"AZURE_SEARCH_ENDPOINT":  cfg.AzureSearch.Endpoint,
		"AZURE_SEARCH_QUERY_KEY": cfg.AzureSearch.QueryKey,
	})
	searchIndex := cfg.AzureSearch.DefaultIndex
	if searchIndex == "" {
		searchIndex = "default"
	}
	r.maybeAdd(connector.CapabilityRAG, descriptor(Descriptor{
		ID:           ProviderAzureSearch,
		DisplayName:  "Azure AI Search",
		Capabilities: []string{"keyword", "vector"},
		Supported:    []string{searchIndex},
		RequiresAuth: true,
	}, cfg.AzureSearch.Enabled, searchMissing))

	speechMissing := missingEnv(map[string]string{
		"AZURE_SPEECH_KEY":    cfg.AzureSpeech.Key,
		"AZURE_SPEECH_REGION": cfg.AzureSpeech.Region,
	})
	azureSpeech := descriptor(Descriptor{
		ID:           ProviderAzureSpeech,
		DisplayName:  "Azure Speech",
		Capabilities: []string{"stt", "tts"},
		Supported:    []string{"conversational"},
		RequiresAuth: true,
	}, cfg.AzureSpeech.Enabled, speechMissing)
	r.maybeAdd(connector.CapabilitySTT, azureSpeech)
	r.maybeAdd(connector.CapabilityTTS, azureSpeech)

	elevenMissing := missingEnv(map[string]string{
		"ELEVENLABS_API_KEY": cfg.ElevenLabs.APIKey,
	})
	r.maybeAdd(connector.CapabilitySTT, descriptor(Descriptor{
		ID:           ProviderElevenLabs,
		DisplayName:  "ElevenLabs",
		Capabilities: []string{"stt"},
		Supported:    []string{cfg.ElevenLabs.ModelID},
		RequiresAuth: true,
	}, cfg.ElevenLabs.Enabled, elevenMissing))

	// The local whisper fallback needs no credentials: its availability is
	// the feature flag alone.
	r.maybeAdd(connector.CapabilitySTT, descriptor(Descriptor{
		ID:           ProviderLocalWhisper,
		DisplayName:  "Local Whisper",
		Capabilities: []string{"stt"},
		Supported:    []string{"tiny", "small", "medium"},
	}, cfg.Whisper.Enabled, nil))

	r.maybeAdd(connector.CapabilityTTS, descriptor(Descriptor{
		ID:           ProviderPolly,
		DisplayName:  "Amazon Polly",
		Capabilities: []string{"tts"},
		Supported:    []string{cfg.Polly.Voice},
		RequiresAuth: true,
	}, cfg.Polly.Enabled, missingEnv(map[string]string{
		"AWS_REGION": cfg.Polly.Region,
	})))

	// The local desk needs no credentials: a configured store path enables it.
	r.maybeAdd(connector.CapabilityServiceDesk, descriptor(Descriptor{
		ID:           ProviderLocalDesk,
		DisplayName:  "Local Service Desk",
		Capabilities: []string{"create", "status"},
		Supported:    []string{"incident"},
	}, cfg.Gateway.TicketStorePath != "", nil))

	snMissing := missingEnv(map[string]string{
		"SERVICENOW_INSTANCE_URL":  cfg.ServiceNow.InstanceURL,
		"SERVICENOW_CLIENT_ID":     cfg.ServiceNow.ClientID,
		"SERVICENOW_CLIENT_SECRET": cfg.ServiceNow.ClientSecret,
	})
	r.maybeAdd(connector.CapabilityServiceDesk, descriptor(Descriptor{
		ID:           ProviderServiceNow,
		DisplayName:  "ServiceNow",
		Capabilities: []string{"create", "update", "status"},
		Supported:    []string{"incident"},
		RequiresAuth: true,
	}, cfg.ServiceNow.Enabled, snMissing))

	jiraMissing := missingEnv(map[string]string{
		"JIRA_BASE_URL":  cfg.Jira.BaseURL,
		"JIRA_EMAIL":     cfg.Jira.Email,
		"JIRA_API_TOKEN": cfg.Jira.APIToken,
	})
	r.maybeAdd(connector.CapabilityServiceDesk, descriptor(Descriptor{
		ID:           ProviderJiraSM,
		DisplayName:  "Jira Service Management",
		Capabilities: []string{"create", "comment", "status"},
		Supported:    []string{"service-request"},
		RequiresAuth: true,
	}, cfg.Jira.Enabled, jiraMissing))

	remedyMissing := missingEnv(map[string]string{
		"REMEDY_BASE_URL": cfg.Remedy.BaseURL,
		"REMEDY_USERNAME": cfg.Remedy.Username,
		"REMEDY_PASSWORD": cfg.Remedy.Password,
	})
	r.maybeAdd(connector.CapabilityServiceDesk, descriptor(Descriptor{
		ID:           ProviderRemedy,
		DisplayName:  "BMC Remedy",
		Capabilities: []string{"create", "status"},
		Supported:    []string{"incident"},
		RequiresAuth: true,
	}, cfg.Remedy.Enabled, remedyMissing))
}

// descriptor derives status, configured and missing-env for a vendor provider
func descriptor(d Descriptor, enabled bool, missing []string) Descriptor {
	if missing == nil {
		missing = []string{}
	}
	d.MissingEnv = missing
	switch {
	case !enabled:
		d.Status = StatusDisabled
	case len(missing) > 0:
		d.Status = StatusMissingEnv
	default:
		d.Status = StatusConfigured
		d.Configured = true
	}
	return d
}

// maybeAdd registers a vendor provider. Unconfigured providers appear only in
// development mode.
func (r *Registry) maybeAdd(capability connector.Capability, d Descriptor) {
	if d.Configured || r.devMode {
		r.providers[capability] = append(r.providers[capability], d)
	}
}

// List returns descriptors per capability. Unconfigured providers are
// filtered unless includeUnconfigured is set. A capability with zero
// configured providers still appears with an empty list.
func (r *Registry) List(includeUnconfigured bool) map[connector.Capability][]Descriptor {
	out := make(map[connector.Capability][]Descriptor, len(r.providers))
	for capability, descriptors := range r.providers {
		filtered := make([]Descriptor, 0, len(descriptors))
		for _, d := range descriptors {
			if includeUnconfigured || d.Configured {
				filtered = append(filtered, d)
			}
		}
		out[capability] = filtered
	}
	return out
}

// Get returns the descriptor for a provider id, or a NotFound error
func (r *Registry) Get(capability connector.Capability, providerID string) (Descriptor, error) {
	for _, d := range r.providers[capability] {
		if d.ID == providerID {
			return d, nil
		}
	}
	return Descriptor{}, resilience.NewNotFoundError(string(capability), providerID)
}

// IsConfigured reports whether a provider is configured. Unknown ids return
// false; this never errors.
func (r *Registry) IsConfigured(capability connector.Capability, providerID string) bool {
	d, err := r.Get(capability, providerID)
	if err != nil {
		return false
	}
	return d.Configured
}

// MissingEnv returns the missing credential names for a provider. Unknown
// ids return an empty list.
func (r *Registry) MissingEnv(capability connector.Capability, providerID string) []string {
	d, err := r.Get(capability, providerID)
	if err != nil {
		return []string{}
	}
	return d.MissingEnv
}

// missingEnv returns the names of required environment variables that are
// empty, in stable order
func missingEnv(required map[string]string) []string {
	keys := make([]string, 0, len(required))
	for name := range required {
		keys = append(keys, name)
	}
	// map iteration order is random; keep listings deterministic
	sort.Strings(keys)
	missing := make([]string, 0, len(keys))
	for _, name := range keys {
		if required[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
