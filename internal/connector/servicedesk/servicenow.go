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

// Package servicedesk provides the service desk connectors: ServiceNow,
// Jira Service Management, BMC Remedy, and a local SQLite-backed desk.
package servicedesk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/ai-gateway/internal/connector"
	"github.com/your-org/ai-gateway/internal/resilience"
)

// ServiceNowProviderID identifies the ServiceNow connector
const ServiceNowProviderID = "servicenow"

// ServiceNowClient creates and reads incidents via the ServiceNow Table API,
// authenticating with an OAuth client credentials grant. The access token is
// cached until a request fails with 401.
type ServiceNowClient struct {
	instanceURL  string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       *zap.Logger

	mu    sync.Mutex
	token string
}

// NewServiceNowClient creates a ServiceNow connector
func NewServiceNowClient(instanceURL, clientID, clientSecret string, logger *zap.Logger) *ServiceNowClient {
	return &ServiceNowClient{
		instanceURL:  strings.TrimRight(instanceURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}
}

func (c *ServiceNowClient) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.instanceURL+"/oauth_token.do", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", resilience.NewProviderError(ServiceNowProviderID, "token_request_failed", err.Error(), "Check ServiceNow instance URL", false)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", resilience.NewProviderError(ServiceNowProviderID,
			fmt.Sprintf("http_%d", resp.StatusCode),
			strings.TrimSpace(string(payload)),
			"Check ServiceNow OAuth client credentials",
			false)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", resilience.NewProviderError(ServiceNowProviderID, "empty_token", "token response contained no access_token", "", false)
	}
	c.token = body.AccessToken
	return c.token, nil
}

func (c *ServiceNowClient) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// CreateTicket opens an incident in the ServiceNow incident table
func (c *ServiceNowClient) CreateTicket(ctx context.Context, title, body, severity, requester string) (*connector.Ticket, error) {
	payload := map[string]string{
		"short_description": title,
		"description":       body,
		"urgency":           severity,
	}
	if requester != "" {
		payload["caller_id"] = requester
	}

	var result struct {
		Result map[string]any `json:"result"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/now/table/incident", payload, &result); err != nil {
		return nil, err
	}

	number, _ := result.Result["number"].(string)
	return &connector.Ticket{
		ID:        number,
		Summary:   title,
		Body:      body,
		Severity:  severity,
		Requester: requester,
		Raw:       result.Result,
	}, nil
}

// GetTicket looks up an incident by its incident number
func (c *ServiceNowClient) GetTicket(ctx context.Context, ticketID string) (*connector.Ticket, error) {
	path := "/api/now/table/incident?sysparm_query=number=" + url.QueryEscape(ticketID)
	var result struct {
		Result []map[string]any `json:"result"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	if len(result.Result) == 0 {
		return nil, resilience.NewServiceError(fmt.Sprintf("ticket %s not found", ticketID), resilience.ErrorCodeNotFound, http.StatusNotFound, nil)
	}

	record := result.Result[0]
	ticket := &connector.Ticket{ID: ticketID, Raw: record}
	if v, ok := record["short_description"].(string); ok {
		ticket.Summary = v
	}
	if v, ok := record["state"].(string); ok {
		ticket.Status = v
	}
	if v, ok := record["urgency"].(string); ok {
		ticket.Severity = v
	}
	return ticket, nil
}

// Validate checks that an OAuth token can be issued
func (c *ServiceNowClient) Validate(ctx context.Context) (connector.ValidationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := c.getToken(ctx); err != nil {
		return connector.ValidationResult{Status: connector.ValidationError, Reason: err.Error()}, nil
	}
	return connector.ValidationResult{Status: connector.ValidationOK, Reason: "ServiceNow token retrieved"}, nil
}

func (c *ServiceNowClient) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	token, err := c.getToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request payload: %w", err)
		}
		body = strings.NewReader(string(encoded))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.instanceURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return resilience.NewProviderError(ServiceNowProviderID, "request_failed", err.Error(), "Check ServiceNow instance URL", false)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resilience.NewProviderError(ServiceNowProviderID,
			fmt.Sprintf("http_%d", resp.StatusCode),
			strings.TrimSpace(string(raw)),
			"", false)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
