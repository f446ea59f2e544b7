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

// Package resilience defines the error taxonomy shared by the orchestration
// core and the HTTP layer. Configuration and policy errors are rejected turns
// and are never retried; the only recovery the gateway performs is the
// documented speech fallback re-issue.
package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorResponse represents the standard error response format across all APIs
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code,omitempty"`
	Hint      string    `json:"hint,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorCode represents standard error codes used across the system
type ErrorCode string

const (
	// Client errors (4xx)
	ErrorCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrorCodeNotConfigured   ErrorCode = "NOT_CONFIGURED"
	ErrorCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrorCodePolicyViolation ErrorCode = "POLICY_VIOLATION"

	// Server errors (5xx)
	ErrorCodeInternalError       ErrorCode = "INTERNAL_ERROR"
	ErrorCodeProviderError       ErrorCode = "PROVIDER_ERROR"
	ErrorCodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
)

// ServiceError represents an error with additional context for proper handling
type ServiceError struct {
	Message    string
	Code       ErrorCode
	StatusCode int
	Internal   error
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Internal
}

// ToErrorResponse converts a ServiceError to an ErrorResponse
func (e *ServiceError) ToErrorResponse(requestID string) ErrorResponse {
	return ErrorResponse{
		Error:     e.Message,
		Code:      string(e.Code),
		RequestID: requestID,
		Timestamp: time.Now(),
	}
}

// NewServiceError creates a new ServiceError with the given parameters
func NewServiceError(message string, code ErrorCode, statusCode int, internal error) *ServiceError {
	return &ServiceError{
		Message:    message,
		Code:       code,
		StatusCode: statusCode,
		Internal:   internal,
	}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(message string, internal error) *ServiceError {
	return NewServiceError(message, ErrorCodeBadRequest, http.StatusBadRequest, internal)
}

// NewNotConfiguredError creates the error returned when a selected provider
// lacks required credentials or its feature flag is off. It names the missing
// credentials so the caller can fix its environment.
func NewNotConfiguredError(capability, providerID string, missingEnv []string) *ServiceError {
	reason := "provider disabled"
	if len(missingEnv) > 0 {
		reason = "missing env: " + strings.Join(missingEnv, ", ")
	}
	return NewServiceError(
		fmt.Sprintf("%s provider %q not configured; %s", capability, providerID, reason),
		ErrorCodeNotConfigured,
		http.StatusBadRequest,
		nil,
	)
}

// NewNotFoundError creates the error returned for an unknown provider id
func NewNotFoundError(capability, providerID string) *ServiceError {
	return NewServiceError(
		fmt.Sprintf("%s provider %q not found", capability, providerID),
		ErrorCodeNotFound,
		http.StatusNotFound,
		nil,
	)
}

// NewPolicyViolationError creates a policy rejection error
func NewPolicyViolationError(message string) *ServiceError {
	return NewServiceError(message, ErrorCodePolicyViolation, http.StatusBadRequest, nil)
}

// NewProviderUnavailableError creates the error returned when a resolved
// provider id has no registered implementation
func NewProviderUnavailableError(providerID string) *ServiceError {
	return NewServiceError(
		fmt.Sprintf("provider %q is not available", providerID),
		ErrorCodeProviderUnavailable,
		http.StatusServiceUnavailable,
		nil,
	)
}

// ProviderError is a vendor-reported failure. CreditIssue distinguishes
// authentication, quota and billing failures from generic faults; it is the
// class the speech gateway recovers from via fallback.
type ProviderError struct {
	Provider    string
	Code        string
	Message     string
	Hint        string
	CreditIssue bool
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Code)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// ToErrorResponse converts a ProviderError to an ErrorResponse
func (e *ProviderError) ToErrorResponse(requestID string) ErrorResponse {
	return ErrorResponse{
		Error:     e.Message,
		Code:      e.Code,
		Hint:      e.Hint,
		RequestID: requestID,
		Timestamp: time.Now(),
	}
}

// NewProviderError creates a vendor-reported failure
func NewProviderError(provider, code, message, hint string, creditIssue bool) *ProviderError {
	return &ProviderError{
		Provider:    provider,
		Code:        code,
		Message:     message,
		Hint:        hint,
		CreditIssue: creditIssue,
	}
}

// AsServiceError extracts a ServiceError from an error chain
func AsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// AsProviderError extracts a ProviderError from an error chain
func AsProviderError(err error) (*ProviderError, bool) {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr, true
	}
	return nil, false
}

// IsCreditIssue reports whether an error is a credit/auth/quota-class
// provider failure
func IsCreditIssue(err error) bool {
	if provErr, ok := AsProviderError(err); ok {
		return provErr.CreditIssue
	}
	return false
}

// StatusFor maps an error to an HTTP status code. Credit-class provider
// failures map to 503 so callers can distinguish vendor outages from bad
// input; generic provider failures map to 502.
func StatusFor(err error) int {
	if svcErr, ok := AsServiceError(err); ok {
		return svcErr.StatusCode
	}
	if provErr, ok := AsProviderError(err); ok {
		if provErr.CreditIssue {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// ResponseFor maps an error to the structured payload returned to callers
func ResponseFor(err error, requestID string) ErrorResponse {
	if svcErr, ok := AsServiceError(err); ok {
		return svcErr.ToErrorResponse(requestID)
	}
	if provErr, ok := AsProviderError(err); ok {
		return provErr.ToErrorResponse(requestID)
	}
	return ErrorResponse{
		Error:     err.Error(),
		Code:      string(ErrorCodeInternalError),
		RequestID: requestID,
		Timestamp: time.Now(),
	}
}
