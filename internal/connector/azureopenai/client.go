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

// Package azureopenai implements the LLM connector against Azure OpenAI
// chat deployments.
package azureopenai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/your-org/ai-gateway/internal/connector"
	"github.com/your-org/ai-gateway/internal/resilience"
)

const (
	// DefaultTemperature applies when the orchestrator passes no override
	DefaultTemperature = 0.2
	// DefaultMaxTokens applies when the orchestrator passes no override
	DefaultMaxTokens = 256
)

// Client wraps the go-openai client configured for an Azure endpoint
type Client struct {
	client      *openai.Client
	deployments map[string]string
	logger      *zap.Logger
}

// NewClient creates an Azure OpenAI connector. Each supported model name maps
// to the deployment of the same name unless overridden.
func NewClient(endpoint, apiKey, apiVersion string, deployments []string, logger *zap.Logger) (*Client, error) {
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("azure openai endpoint and api key are required")
	}

	cfg := openai.DefaultAzureConfig(apiKey, endpoint)
	if apiVersion != "" {
		cfg.APIVersion = apiVersion
	}

	deploymentMap := make(map[string]string, len(deployments))
	for _, d := range deployments {
		deploymentMap[d] = d
	}

	return &Client{
		client:      openai.NewClientWithConfig(cfg),
		deployments: deploymentMap,
		logger:      logger,
	}, nil
}

func (c *Client) resolveDeployment(model string) string {
	if deployment, ok := c.deployments[model]; ok {
		return deployment
	}
	return model
}

// Generate runs one chat completion against the deployment for the requested
// model
func (c *Client) Generate(ctx context.Context, messages []connector.Message, opts connector.GenerateOptions) (*connector.GenerateResult, error) {
	deployment := c.resolveDeployment(opts.Model)

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	temperature := opts.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       deployment,
		Messages:    chatMessages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	latencyMS := time.Since(start).Milliseconds()
	if err != nil {
		c.logger.Warn("Azure OpenAI generation failed",
			zap.String("deployment", deployment),
			zap.Error(err),
		)
		return nil, normalizeError(err)
	}

	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}

	return &connector.GenerateResult{
		Text: text,
		Usage: connector.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		LatencyMS: latencyMS,
		Model:     deployment,
	}, nil
}

// Validate lists models to confirm the credentials work
func (c *Client) Validate(ctx context.Context) (connector.ValidationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := c.client.ListModels(ctx); err != nil {
		return connector.ValidationResult{Status: connector.ValidationError, Reason: err.Error()}, nil
	}
	return connector.ValidationResult{Status: connector.ValidationOK, Reason: "Azure OpenAI credentials loaded"}, nil
}

// normalizeError converts go-openai failures into the shared provider error
// shape, classifying auth/quota responses as credit issues
func normalizeError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		credit := apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 402 ||
			apiErr.HTTPStatusCode == 403 || apiErr.HTTPStatusCode == 429
		return resilience.NewProviderError(
			"azure-openai",
			fmt.Sprintf("http_%d", apiErr.HTTPStatusCode),
			apiErr.Message,
			"Check Azure OpenAI deployment and quota",
			credit,
		)
	}
	return fmt.Errorf("azure openai request failed: %w", err)
}
