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

package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "service error carries its own status",
			err:  NewBadRequestError("bad input", nil),
			want: http.StatusBadRequest,
		},
		{
			name: "not found",
			err:  NewNotFoundError("llm", "nope"),
			want: http.StatusNotFound,
		},
		{
			name: "provider unavailable",
			err:  NewProviderUnavailableError("elevenlabs"),
			want: http.StatusServiceUnavailable,
		},
		{
			name: "credit-class provider failure",
			err:  NewProviderError("elevenlabs", "http_402", "payment required", "", true),
			want: http.StatusServiceUnavailable,
		},
		{
			name: "generic provider failure",
			err:  NewProviderError("azure-speech", "http_500", "upstream error", "", false),
			want: http.StatusBadGateway,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: http.StatusInternalServerError,
		},
		{
			name: "wrapped service error",
			err:  fmt.Errorf("turn failed: %w", NewPolicyViolationError("too long")),
			want: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StatusFor(tc.err); got != tc.want {
				t.Errorf("StatusFor = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestResponseFor(t *testing.T) {
	resp := ResponseFor(NewNotConfiguredError("llm", "azure-openai", []string{"AZURE_OPENAI_API_KEY"}), "req_1")
	if resp.Code != string(ErrorCodeNotConfigured) {
		t.Errorf("code = %s", resp.Code)
	}
	if resp.RequestID != "req_1" {
		t.Errorf("request id = %s", resp.RequestID)
	}
	if !strings.Contains(resp.Error, "AZURE_OPENAI_API_KEY") {
		t.Errorf("error should name the missing credential: %q", resp.Error)
	}

	resp = ResponseFor(NewProviderError("elevenlabs", "http_402", "payment required", "Check credits", true), "req_2")
	if resp.Code != "http_402" {
		t.Errorf("provider code = %s", resp.Code)
	}
	if resp.Hint != "Check credits" {
		t.Errorf("hint = %s", resp.Hint)
	}

	resp = ResponseFor(errors.New("boom"), "req_3")
	if resp.Code != string(ErrorCodeInternalError) {
		t.Errorf("plain error code = %s", resp.Code)
	}
	if resp.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestNotConfiguredErrorWithoutMissingEnv(t *testing.T) {
	err := NewNotConfiguredError("stt", "local-whisper", nil)
	if !strings.Contains(err.Error(), "provider disabled") {
		t.Errorf("message = %q", err.Error())
	}
	if err.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", err.StatusCode)
	}
}

func TestProviderErrorFormat(t *testing.T) {
	err := NewProviderError("elevenlabs", "http_429", "too many requests", "", true)
	want := "elevenlabs: too many requests (http_429)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	anon := NewProviderError("", "timeout", "request timed out", "", false)
	if err := anon.Error(); err != "request timed out (timeout)" {
		t.Errorf("Error() = %q", err)
	}
}

func TestIsCreditIssueOnWrappedChain(t *testing.T) {
	base := NewProviderError("elevenlabs", "http_401", "unauthorized", "", true)
	wrapped := fmt.Errorf("transcription failed: %w", base)
	if !IsCreditIssue(wrapped) {
		t.Error("wrapped credit error should still classify")
	}
	if IsCreditIssue(errors.New("boom")) {
		t.Error("plain error is not a credit issue")
	}
}

func TestServiceErrorUnwrap(t *testing.T) {
	inner := errors.New("socket closed")
	err := NewServiceError("upstream failed", ErrorCodeInternalError, http.StatusInternalServerError, inner)
	if !errors.Is(err, inner) {
		t.Error("Unwrap should expose the internal error")
	}
}
