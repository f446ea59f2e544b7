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

// Package azuresearch implements the RAG connector against the Azure AI
// Search REST API.
package azuresearch

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
)

const apiVersion = "2023-11-01"

// Client calls one Azure AI Search service
type Client struct {
	endpoint   string
	queryKey   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an Azure AI Search connector
func NewClient(endpoint, queryKey string, logger *zap.Logger) (*Client, error) {
	if endpoint == "" || queryKey == "" {
		return nil, fmt.Errorf("azure search endpoint and query key are required")
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		queryKey:   queryKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}, nil
}

type searchRequest struct {
	Search    string `json:"search"`
	Top       int    `json:"top"`
	QueryType string `json:"queryType"`
}

type searchResponse struct {
	Value []struct {
		Content string  `json:"content"`
		Score   float64 `json:"@search.score"`
	} `json:"value"`
}

// Search runs a simple query against the named index and returns snippets
// ordered by score
func (c *Client) Search(ctx context.Context, query string, topK int, indexName string) ([]connector.SearchResult, error) {
	if indexName == "" {
		indexName = "default"
	}
	url := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s", c.endpoint, indexName, apiVersion)

	body, err := json.Marshal(searchRequest{Search: query, Top: topK, QueryType: "simple"})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.queryKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("Azure search returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("index", indexName),
		)
		return nil, fmt.Errorf("azure search returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]connector.SearchResult, 0, len(parsed.Value))
	for _, doc := range parsed.Value {
		results = append(results, connector.SearchResult{Text: doc.Content, Score: doc.Score})
	}
	return results, nil
}

// Validate confirms the service answers with the query key
func (c *Client) Validate(ctx context.Context) (connector.ValidationResult, error) {
	url := fmt.Sprintf("%s/indexes?api-version=%s", c.endpoint, apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return connector.ValidationResult{Status: connector.ValidationError, Reason: err.Error()}, nil
	}
	req.Header.Set("api-key", c.queryKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return connector.ValidationResult{Status: connector.ValidationError, Reason: err.Error()}, nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return connector.ValidationResult{
			Status: connector.ValidationError,
			Reason: fmt.Sprintf("azure search returned status %d", resp.StatusCode),
		}, nil
	}
	return connector.ValidationResult{Status: connector.ValidationOK, Reason: "Azure AI Search reachable"}, nil
}
