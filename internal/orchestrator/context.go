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

package orchestrator

import (
	"strings"

	"github.com/your-org/ai-gateway/internal/connector"
)

// ContextAssembler builds the provider-ready message list for a turn
type ContextAssembler struct{}

// NewContextAssembler creates a context assembler
func NewContextAssembler() *ContextAssembler {
	return &ContextAssembler{}
}

// Build returns the session history verbatim, with one synthetic system
// entry carrying the knowledge snippets appended when retrieval produced
// any. An empty snippet list adds nothing.
func (a *ContextAssembler) Build(history []connector.Message, snippets []connector.SearchResult) []connector.Message {
	messages := make([]connector.Message, 0, len(history)+1)
	messages = append(messages, history...)

	if len(snippets) > 0 {
		texts := make([]string, 0, len(snippets))
		for _, s := range snippets {
			texts = append(texts, s.Text)
		}
		messages = append(messages, connector.Message{
			Role:    connector.RoleSystem,
			Content: "Knowledge snippets:\n" + strings.Join(texts, "\n"),
		})
	}
	return messages
}
