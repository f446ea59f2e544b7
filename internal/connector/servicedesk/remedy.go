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

// RemedyProviderID identifies the BMC Remedy connector
const RemedyProviderID = "remedy"

// RemedyClient creates and reads incidents via the Remedy AR System REST API
type RemedyClient struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRemedyClient creates a BMC Remedy connector
func NewRemedyClient(baseURL, username, password string, logger *zap.Logger) *RemedyClient {
	return &RemedyClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// CreateTicket opens an incident through the incident interface form
func (c *RemedyClient) CreateTicket(ctx context.Context, title, body, severity, requester string) (*connector.Ticket, error) {
	payload := map[string]any{
		"values": map[string]string{
			"Summary":         title,
			"Description":     body,
			"Impact":          severity,
			"Reported Source": "AI Gateway",
		},
	}

	var result map[string]any
	if err := c.doJSON(ctx, http.MethodPost, "/api/arsys/v1/entry/HPD:IncidentInterface_Create", payload, &result); err != nil {
		return nil, err
	}

	id, _ := result["Incident Number"].(string)
	return &connector.Ticket{
		ID:        id,
		Summary:   title,
		Body:      body,
		Severity:  severity,
		Requester: requester,
		Raw:       result,
	}, nil
}

// GetTicket looks up an incident by its entry id
func (c *RemedyClient) GetTicket(ctx context.Context, ticketID string) (*connector.Ticket, error) {
	var result map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/api/arsys/v1/entry/HPD:IncidentInterface/"+ticketID, nil, &result); err != nil {
		return nil, err
	}

	ticket := &connector.Ticket{ID: ticketID, Raw: result}
	if values, ok := result["values"].(map[string]any); ok {
		if v, ok := values["Summary"].(string); ok {
			ticket.Summary = v
		}
		if v, ok := values["Status"].(string); ok {
			ticket.Status = v
		}
	}
	return ticket, nil
}

// Validate checks that the AR System entry endpoint is reachable
func (c *RemedyClient) Validate(ctx context.Context) (connector.ValidationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/arsys/v1/entry", nil)
	if err != nil {
		return connector.ValidationResult{Status: connector.ValidationError, Reason: err.Error()}, nil
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return connector.ValidationResult{Status: connector.ValidationError, Reason: err.Error()}, nil
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return connector.ValidationResult{
			Status: connector.ValidationError,
			Reason: fmt.Sprintf("HTTP %d", resp.StatusCode),
		}, nil
	}
	return connector.ValidationResult{Status: connector.ValidationOK, Reason: "Remedy reachable"}, nil
}

func (c *RemedyClient) doJSON(ctx context.Context, method, path string, payload any, out any) error {
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
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return resilience.NewProviderError(RemedyProviderID, "request_failed", err.Error(), "Check Remedy base URL", false)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return resilience.NewServiceError("Remedy incident not found", resilience.ErrorCodeNotFound, http.StatusNotFound, nil)
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resilience.NewProviderError(RemedyProviderID,
			fmt.Sprintf("http_%d", resp.StatusCode),
			strings.TrimSpace(string(raw)),
			"", false)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
