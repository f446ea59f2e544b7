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

package speech

import (
	"testing"

	"github.com/your-org/ai-gateway/internal/resilience"
)

func TestValidateOptions(t *testing.T) {
	testCases := []struct {
		name    string
		raw     map[string]any
		wantErr bool
	}{
		{
			name: "valid full set",
			raw: map[string]any{
				"provider":   "elevenlabs",
				"language":   "fi",
				"model":      "small",
				"beam_size":  float64(5),
				"vad_filter": true,
			},
		},
		{
			name: "nil options",
			raw:  nil,
		},
		{
			name:    "unknown key rejected",
			raw:     map[string]any{"modle": "tiny"},
			wantErr: true,
		},
		{
			name:    "model outside enum",
			raw:     map[string]any{"model": "large"},
			wantErr: true,
		},
		{
			name:    "beam size above maximum",
			raw:     map[string]any{"beam_size": float64(11)},
			wantErr: true,
		},
		{
			name:    "beam size below minimum",
			raw:     map[string]any{"beam_size": float64(0)},
			wantErr: true,
		},
		{
			name:    "vad filter wrong type",
			raw:     map[string]any{"vad_filter": "yes"},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateOptions(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected validation error")
				}
				serviceErr, ok := resilience.AsServiceError(err)
				if !ok {
					t.Fatalf("want ServiceError, got %T", err)
				}
				if serviceErr.Code != resilience.ErrorCodeBadRequest {
					t.Errorf("code = %s, want %s", serviceErr.Code, resilience.ErrorCodeBadRequest)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRequestFromOptions(t *testing.T) {
	req := RequestFromOptions(map[string]any{
		"provider":   "local-whisper",
		"language":   "en",
		"model":      "medium",
		"beam_size":  float64(3),
		"vad_filter": true,
	})
	if req.Provider != "local-whisper" || req.Language != "en" || req.Model != "medium" {
		t.Errorf("string fields not mapped: %+v", req)
	}
	if req.BeamSize != 3 {
		t.Errorf("beam size = %d, want 3", req.BeamSize)
	}
	if !req.VADFilter {
		t.Error("vad filter not mapped")
	}

	if req := RequestFromOptions(map[string]any{"beam_size": 4}); req.BeamSize != 4 {
		t.Errorf("int beam size = %d, want 4", req.BeamSize)
	}
}
