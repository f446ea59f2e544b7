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

// Package intent maps free text to an optional ticketing intent.
package intent

import "strings"

// Intent is a ticketing action derived from message text
type Intent string

const (
	// IntentNone means no ticketing action is requested
	IntentNone Intent = ""
	// IntentCreate requests ticket creation
	IntentCreate Intent = "create"
	// IntentStatus requests a ticket lookup
	IntentStatus Intent = "status"
)

// TicketClassifier maps message text to a ticketing intent by
// case-insensitive substring match. Create takes precedence over status when
// both match.
type TicketClassifier struct{}

// NewTicketClassifier creates a ticket intent classifier
func NewTicketClassifier() *TicketClassifier {
	return &TicketClassifier{}
}

// Classify returns the ticketing intent for a message, or IntentNone
func (c *TicketClassifier) Classify(message string) Intent {
	lowered := strings.ToLower(message)
	if strings.Contains(lowered, "incident") || strings.Contains(lowered, "ticket") {
		return IntentCreate
	}
	if strings.Contains(lowered, "status") {
		return IntentStatus
	}
	return IntentNone
}
