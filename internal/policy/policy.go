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

// Package policy sanitizes and bounds inbound message text before it reaches
// any provider.
package policy

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/your-org/ai-gateway/internal/resilience"
)

// RedactionMarker replaces recognized sensitive substrings
const RedactionMarker = "[REDACTED]"

// DefaultMaxMessageChars is the message length ceiling applied when no limit
// is configured
const DefaultMaxMessageChars = 4000

var piiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), // SSN-shaped
	regexp.MustCompile(`\b\d{16}\b`),            // card-number-shaped
}

// Engine enforces message policy
type Engine struct {
	maxChars int
}

// NewEngine creates a policy engine with the given message length ceiling.
// A non-positive ceiling falls back to the default.
func NewEngine(maxChars int) *Engine {
	if maxChars <= 0 {
		maxChars = DefaultMaxMessageChars
	}
	return &Engine{maxChars: maxChars}
}

// Enforce rejects over-long messages and redacts recognizable sensitive
// patterns from the rest
func (e *Engine) Enforce(content string) (string, error) {
	if n := utf8.RuneCountInString(content); n > e.maxChars {
		return "", resilience.NewPolicyViolationError(
			fmt.Sprintf("message too long: %d chars exceeds limit of %d", n, e.maxChars))
	}
	return Redact(content), nil
}

// Redact replaces sensitive substrings with the redaction marker
func Redact(text string) string {
	redacted := text
	for _, pattern := range piiPatterns {
		redacted = pattern.ReplaceAllString(redacted, RedactionMarker)
	}
	return redacted
}
