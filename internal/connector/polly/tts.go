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

// Package polly implements a TTS connector backed by Amazon Polly.
package polly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awspolly "github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/your-org/ai-gateway/internal/connector"
	"github.com/your-org/ai-gateway/internal/resilience"
)

// ProviderID identifies this connector in results and provider listings
const ProviderID = "aws-polly"

// synthClient abstracts the Polly SDK call so tests can substitute a fake
type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *awspolly.SynthesizeSpeechInput, optFns ...func(*awspolly.Options)) (*awspolly.SynthesizeSpeechOutput, error)
}

// Client implements text to speech via Amazon Polly. The SDK client is
// resolved lazily so construction never requires AWS credentials.
type Client struct {
	mu     sync.Mutex
	client synthClient

	region  string
	voiceID string
	engine  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient creates a Polly connector for the given region
func NewClient(region, voiceID, engine string, logger *zap.Logger) *Client {
	return newClient(region, voiceID, engine, logger, nil)
}

// NewClientWithSynth creates a Polly connector with an injected SDK client,
// used by tests
func NewClientWithSynth(region, voiceID, engine string, logger *zap.Logger, synth synthClient) *Client {
	return newClient(region, voiceID, engine, logger, synth)
}

func newClient(region, voiceID, engine string, logger *zap.Logger, synth synthClient) *Client {
	if strings.TrimSpace(region) == "" {
		region = "us-east-1"
	}
	if strings.TrimSpace(voiceID) == "" {
		voiceID = "Joanna"
	}
	if strings.TrimSpace(engine) == "" {
		engine = "neural"
	}
	return &Client{
		client:  synth,
		region:  region,
		voiceID: voiceID,
		engine:  engine,
		timeout: 30 * time.Second,
		logger:  logger,
	}
}

// Synthesize renders text to MP3 audio
func (c *Client) Synthesize(ctx context.Context, text, locale, voice string) (*connector.SynthesisResult, error) {
	if voice == "" {
		voice = c.voiceID
	}
	_ = locale // Polly derives language from the voice

	client, err := c.resolveClient(ctx)
	if err != nil {
		return nil, resilience.NewProviderError(ProviderID, "aws_config", err.Error(), "Check AWS credentials and region", false)
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(c.engine, "neural") {
		engine = pollytypes.EngineNeural
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	output, err := client.SynthesizeSpeech(ctx, &awspolly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         &text,
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(voice),
	})
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		return nil, normalizeError(err)
	}
	if output == nil || output.AudioStream == nil {
		return nil, resilience.NewProviderError(ProviderID, "empty_audio", "Polly returned no audio stream", "", false)
	}
	defer func() { _ = output.AudioStream.Close() }()

	audio, err := io.ReadAll(output.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("failed to read Polly audio stream: %w", err)
	}

	return &connector.SynthesisResult{
		Audio:    audio,
		MimeType: "audio/mpeg",
		Provider: ProviderID,
		Voice:    voice,
		TimingMS: map[string]float64{"synthesize": elapsed},
	}, nil
}

// Validate checks that AWS credentials resolve and a voice listing succeeds
func (c *Client) Validate(ctx context.Context) (connector.ValidationResult, error) {
	client, err := c.resolveClient(ctx)
	if err != nil {
		return connector.ValidationResult{Status: connector.ValidationError, Reason: err.Error()}, nil
	}
	real, ok := client.(*awspolly.Client)
	if !ok {
		return connector.ValidationResult{Status: connector.ValidationOK, Reason: "injected client"}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := real.DescribeVoices(ctx, &awspolly.DescribeVoicesInput{}); err != nil {
		return connector.ValidationResult{Status: connector.ValidationError, Reason: err.Error()}, nil
	}
	return connector.ValidationResult{Status: connector.ValidationOK, Reason: "Polly reachable"}, nil
}

func (c *Client) resolveClient(ctx context.Context) (synthClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	c.client = awspolly.NewFromConfig(awsCfg)
	return c.client, nil
}

func normalizeError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return resilience.NewProviderError(ProviderID, "timeout", "Polly request timed out", "", false)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException":
			return resilience.NewProviderError(ProviderID, apiErr.ErrorCode(), apiErr.ErrorMessage(), "Check Polly request quota", true)
		case "UnrecognizedClientException", "AccessDeniedException", "ExpiredTokenException":
			return resilience.NewProviderError(ProviderID, apiErr.ErrorCode(), apiErr.ErrorMessage(), "Check AWS credentials", true)
		case "InvalidSsmlException", "TextLengthExceededException", "LexiconNotFoundException", "InvalidSampleRateException":
			return resilience.NewProviderError(ProviderID, apiErr.ErrorCode(), apiErr.ErrorMessage(), "", false)
		default:
			return resilience.NewProviderError(ProviderID, apiErr.ErrorCode(), apiErr.ErrorMessage(), "", false)
		}
	}
	return resilience.NewProviderError(ProviderID, "transport_error", err.Error(), "", false)
}
