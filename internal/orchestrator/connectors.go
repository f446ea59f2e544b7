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

package orchestrator

import (
	"sort"

	"go.uber.org/zap"

	"github.com/your-org/ai-gateway/internal/config"
	"github.com/your-org/ai-gateway/internal/connector"
	"github.com/your-org/ai-gateway/internal/connector/azureopenai"
	"github.com/your-org/ai-gateway/internal/connector/azuresearch"
	"github.com/your-org/ai-gateway/internal/connector/azurespeech"
	"github.com/your-org/ai-gateway/internal/connector/elevenlabs"
	"github.com/your-org/ai-gateway/internal/connector/mock"
	pollyconn "github.com/your-org/ai-gateway/internal/connector/polly"
	"github.com/your-org/ai-gateway/internal/connector/servicedesk"
	"github.com/your-org/ai-gateway/internal/connector/whisper"
	"github.com/your-org/ai-gateway/internal/registry"
)

// Connectors bundles the concrete connector instances per capability,
// keyed by provider id. Mocks are always present; vendor connectors are
// instantiated only when the registry reports them configured.
type Connectors struct {
	LLM         map[string]connector.LLMConnector
	RAG         map[string]connector.RAGConnector
	STT         map[string]connector.STTConnector
	TTS         map[string]connector.TTSConnector
	ServiceDesk map[string]connector.ServiceDeskConnector
}

// BuildConnectors instantiates the connector set for the current
// configuration. Construction never performs network calls; a vendor
// connector that fails to construct is logged and skipped so the gateway
// still starts with the mocks.
func BuildConnectors(cfg *config.Config, reg *registry.Registry, logger *zap.Logger) *Connectors {
	c := &Connectors{
		LLM:         map[string]connector.LLMConnector{registry.ProviderMockLLM: mock.NewLLM()},
		RAG:         map[string]connector.RAGConnector{registry.ProviderMockSearch: mock.NewSearch()},
		STT:         map[string]connector.STTConnector{registry.ProviderMockSTT: mock.NewSpeech()},
		TTS:         map[string]connector.TTSConnector{registry.ProviderMockTTS: mock.NewSpeech()},
		ServiceDesk: map[string]connector.ServiceDeskConnector{registry.ProviderMockServiceDesk: mock.NewServiceDesk()},
	}

	if reg.IsConfigured(connector.CapabilityLLM, registry.ProviderAzureOpenAI) {
		client, err := azureopenai.NewClient(
			cfg.AzureOpenAI.Endpoint,
			cfg.AzureOpenAI.APIKey,
			cfg.AzureOpenAI.APIVersion,
			cfg.AzureOpenAI.Deployments,
			logger,
		)
		if err != nil {
			logger.Warn("Skipping Azure OpenAI connector", zap.Error(err))
		} else {
			c.LLM[registry.ProviderAzureOpenAI] = client
		}
	}

	if reg.IsConfigured(connector.CapabilityRAG, registry.ProviderAzureSearch) {
		client, err := azuresearch.NewClient(cfg.AzureSearch.Endpoint, cfg.AzureSearch.QueryKey, logger)
		if err != nil {
			logger.Warn("Skipping Azure AI Search connector", zap.Error(err))
		} else {
			c.RAG[registry.ProviderAzureSearch] = client
		}
	}

	if reg.IsConfigured(connector.CapabilitySTT, registry.ProviderAzureSpeech) ||
		reg.IsConfigured(connector.CapabilityTTS, registry.ProviderAzureSpeech) {
		client := azurespeech.NewClient(cfg.AzureSpeech.Region, cfg.AzureSpeech.Key, logger)
		if reg.IsConfigured(connector.CapabilitySTT, registry.ProviderAzureSpeech) {
			c.STT[registry.ProviderAzureSpeech] = client
		}
		if reg.IsConfigured(connector.CapabilityTTS, registry.ProviderAzureSpeech) {
			c.TTS[registry.ProviderAzureSpeech] = client
		}
	}

	if reg.IsConfigured(connector.CapabilitySTT, registry.ProviderElevenLabs) {
		client, err := elevenlabs.NewClient(cfg.ElevenLabs.APIKey, cfg.ElevenLabs.ModelID, logger)
		if err != nil {
			logger.Warn("Skipping ElevenLabs connector", zap.Error(err))
		} else {
			c.STT[registry.ProviderElevenLabs] = client
		}
	}

	if reg.IsConfigured(connector.CapabilitySTT, registry.ProviderLocalWhisper) {
		c.STT[registry.ProviderLocalWhisper] = whisper.NewClient(
			cfg.Whisper.ServerURL,
			cfg.Whisper.DefaultModel,
			cfg.Whisper.ComputeType,
			whisper.NewModelCache(),
			logger,
		)
	}

	if reg.IsConfigured(connector.CapabilityTTS, registry.ProviderPolly) {
		c.TTS[registry.ProviderPolly] = pollyconn.NewClient(cfg.Polly.Region, cfg.Polly.Voice, cfg.Polly.Engine, logger)
	}

	if reg.IsConfigured(connector.CapabilityServiceDesk, registry.ProviderLocalDesk) {
		desk, err := servicedesk.NewLocalDesk(cfg.Gateway.TicketStorePath)
		if err != nil {
			logger.Warn("Skipping local service desk", zap.Error(err))
		} else {
			c.ServiceDesk[registry.ProviderLocalDesk] = desk
		}
	}

	if reg.IsConfigured(connector.CapabilityServiceDesk, registry.ProviderServiceNow) {
		c.ServiceDesk[registry.ProviderServiceNow] = servicedesk.NewServiceNowClient(
			cfg.ServiceNow.InstanceURL,
			cfg.ServiceNow.ClientID,
			cfg.ServiceNow.ClientSecret,
			logger,
		)
	}

	if reg.IsConfigured(connector.CapabilityServiceDesk, registry.ProviderJiraSM) {
		c.ServiceDesk[registry.ProviderJiraSM] = servicedesk.NewJiraClient(
			cfg.Jira.BaseURL,
			cfg.Jira.Email,
			cfg.Jira.APIToken,
			logger,
		)
	}

	if reg.IsConfigured(connector.CapabilityServiceDesk, registry.ProviderRemedy) {
		c.ServiceDesk[registry.ProviderRemedy] = servicedesk.NewRemedyClient(
			cfg.Remedy.BaseURL,
			cfg.Remedy.Username,
			cfg.Remedy.Password,
			logger,
		)
	}

	return c
}

// validators returns every connector in capability order, providers sorted
// by id within each capability so scan reports are stable
func (c *Connectors) validators() []validatorEntry {
	entries := make([]validatorEntry, 0)
	appendSorted := func(capability connector.Capability, ids []string, lookup func(string) connector.Validator) {
		sort.Strings(ids)
		for _, id := range ids {
			entries = append(entries, validatorEntry{capability, id, lookup(id)})
		}
	}

	appendSorted(connector.CapabilityLLM, keys(c.LLM), func(id string) connector.Validator { return c.LLM[id] })
	appendSorted(connector.CapabilityRAG, keys(c.RAG), func(id string) connector.Validator { return c.RAG[id] })
	appendSorted(connector.CapabilitySTT, keys(c.STT), func(id string) connector.Validator { return c.STT[id] })
	appendSorted(connector.CapabilityTTS, keys(c.TTS), func(id string) connector.Validator { return c.TTS[id] })
	appendSorted(connector.CapabilityServiceDesk, keys(c.ServiceDesk), func(id string) connector.Validator { return c.ServiceDesk[id] })
	return entries
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

type validatorEntry struct {
	capability connector.Capability
	providerID string
	validator  connector.Validator
}
