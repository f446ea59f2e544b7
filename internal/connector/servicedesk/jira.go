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

package servicedesk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/ai-gateway/internal/connector"
	"github.com/your-org/ai-gateway/internal/resilience"
)

// JiraProviderID identifies the Jira Service Management connector
const JiraProviderID = "jira-sm"

// JiraClient creates and reads requests via the Jira Service Management
// customer request API with basic auth.
type JiraClient struct {
	baseURL    string
	email      string
	apiToken   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewJiraClient creates a Jira Service Management connector
func NewJiraClient(baseURL, email, apiToken string, logger *zap.Logger) *JiraClient {
	return &JiraClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		email:      email,
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// CreateTicket opens a customer request on the default service desk
func (c *JiraClient) CreateTicket(ctx context.Context, title, body, severity, requester string) (*connector.Ticket, error) {
	payload := map[string]any{
		"serviceDeskId": "1",
		"requestTypeId": "1",
		"requestFieldValues": map[string]string{
			"summary":     title,
			"description": body,
		},
	}

	var result map[string]any
	if err := c.doJSON(ctx, http.MethodPost, "/rest/servicedeskapi/request", payload, &result); err != nil {
		return nil, err
	}

	id, _ := result["issueKey"].(string)
	if id == "" {
		id, _ = result["issueId"].(string)
	}
	return &connector.Ticket{
		ID:        id,
		Summary:   title,
		Body:      body,
		Severity:  severity,
		Requester: requester,
		Raw:       result,
	}, nil
}

// GetTicket looks up a customer request by issue id or key
func (c *JiraClient) GetTicket(ctx context.Context, ticketID string) (*connector.Ticket, error) {
	var result map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/rest/servicedeskapi/request/"+ticketID, nil, &result); err != nil {
		return nil, err
	}

	ticket := &connector.Ticket{ID: ticketID, Raw: result}
	if status, ok := result["currentStatus"].(map[string]any); ok {
		if v, ok := status["status"].(string); ok {
			ticket.Status = v
		}
	}
	return ticket, nil
}

// Validate checks that the service desk listing endpoint is reachable
func (c *JiraClient) Validate(ctx context.Context) (connector.ValidationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	var result map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/rest/servicedeskapi/servicedesk", nil, &result); err != nil {
		return connector.ValidationResult{Status: connector.ValidationError, Reason: err.Error()}, nil
	}
	return connector.ValidationResult{Status: connector.ValidationOK, Reason: "Jira Service Management reachable"}, nil
}

func (c *JiraClient) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request payload: %w", err)
		}
		body = strings.NewReader(string(encoded))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.email, c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return resilience.NewProviderError(JiraProviderID, "request_failed", err.Error(), "Check Jira base URL", false)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return resilience.NewServiceError("Jira request not found", resilience.ErrorCodeNotFound, http.StatusNotFound, nil)
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resilience.NewProviderError(JiraProviderID,
			fmt.Sprintf("http_%d", resp.StatusCode),
			strings.TrimSpace(string(raw)),
			"", false)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
