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

// Package memory provides per-session conversation memory. Sessions are
// created lazily on first reference and messages are append-only during a
// turn. Concurrent turns on different sessions never conflict; concurrent
// turns on the same session may interleave, which is an accepted limitation.
package memory

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/your-org/ai-gateway/internal/connector"
)

// Store holds the ordered message log per session
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]connector.Message
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{sessions: make(map[string][]connector.Message)}
}

// GenerateSessionID generates a unique session identifier
func GenerateSessionID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID if crypto/rand fails
		return fmt.Sprintf("session_%d", time.Now().UnixNano())
	}
	return "session_" + hex.EncodeToString(bytes)
}

// CreateSession ensures a session exists. Creating an existing session is a
// no-op.
func (s *Store) CreateSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		s.sessions[sessionID] = []connector.Message{}
	}
}

// Append adds a message to a session, creating the session if needed
func (s *Store) Append(sessionID string, msg connector.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], msg)
}

// History returns a copy of the ordered message log for a session. An
// unknown session yields an empty history.
func (s *Store) History(sessionID string) []connector.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.sessions[sessionID]
	out := make([]connector.Message, len(history))
	copy(out, history)
	return out
}

// Len returns the number of messages in a session
func (s *Store) Len(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID])
}

// Reset removes a session and its history
func (s *Store) Reset(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
