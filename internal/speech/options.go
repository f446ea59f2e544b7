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
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/your-org/ai-gateway/internal/resilience"
)

// optionsSchema rejects unknown transcription overrides so typos surface
// as 400s instead of silently running with defaults
const optionsSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"provider": {"type": "string"},
		"language": {"type": "string"},
		"model": {"type": "string", "enum": ["tiny", "small", "medium"]},
		"beam_size": {"type": "integer", "minimum": 1, "maximum": 10},
		"vad_filter": {"type": "boolean"}
	}
}`

var compiledOptionsSchema = jsonschema.MustCompileString("transcription-options.json", optionsSchema)

// ValidateOptions checks a raw transcription override object against the
// options schema
func ValidateOptions(raw map[string]any) error {
	if raw == nil {
		return nil
	}
	if err := compiledOptionsSchema.Validate(raw); err != nil {
		return resilience.NewBadRequestError("invalid transcription options: "+err.Error(), err)
	}
	return nil
}

// RequestFromOptions maps a validated override object onto a Request
func RequestFromOptions(raw map[string]any) Request {
	req := Request{}
	if v, ok := raw["provider"].(string); ok {
		req.Provider = v
	}
	if v, ok := raw["language"].(string); ok {
		req.Language = v
	}
	if v, ok := raw["model"].(string); ok {
		req.Model = v
	}
	switch v := raw["beam_size"].(type) {
	case float64:
		req.BeamSize = int(v)
	case int:
		req.BeamSize = v
	}
	if v, ok := raw["vad_filter"].(bool); ok {
		req.VADFilter = v
	}
	return req
}
