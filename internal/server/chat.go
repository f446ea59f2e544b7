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

package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/ai-gateway/internal/memory"
	"github.com/your-org/ai-gateway/internal/orchestrator"
	"github.com/your-org/ai-gateway/internal/resilience"
)

// handleCreateSession allocates a session identifier
func (s *Server) handleCreateSession(c *gin.Context) {
	sessionID := memory.GenerateSessionID()
	s.memory.CreateSession(sessionID)
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID})
}

// handleChat runs one chat turn
func (s *Server) handleChat(c *gin.Context) {
	started := time.Now()
	var turnErr error
	defer func() {
		s.stats.Record(float64(time.Since(started).Microseconds())/1000, turnErr)
	}()

	var req orchestrator.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		turnErr = resilience.NewBadRequestError("invalid chat request: "+err.Error(), err)
		s.respondError(c, turnErr)
		return
	}

	result, err := s.orch.HandleChatTurn(c.Request.Context(), &req, s.correlationID(c))
	if err != nil {
		turnErr = err
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleProviders lists the provider registry per capability
func (s *Server) handleProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": s.orch.RegistrySnapshot()})
}

// handleValidateProviders runs every connector's self-check
func (s *Server) handleValidateProviders(c *gin.Context) {
	c.JSON(http.StatusOK, s.orch.ValidateConnectors(c.Request.Context()))
}

// handleRuntime reports runtime metadata and the rolling latency stats
func (s *Server) handleRuntime(c *gin.Context) {
	snapshot := s.stats.Snapshot()
	p50, p95 := s.stats.Percentiles()

	var lastRequestAt any
	if snapshot.LastRequestAt != nil {
		lastRequestAt = snapshot.LastRequestAt.Format(time.RFC3339Nano)
	}

	c.JSON(http.StatusOK, gin.H{
		"runtime": gin.H{
			"stt_provider":     s.cfg.Speech.DefaultProvider,
			"default_model":    s.cfg.Speech.DefaultModel,
			"default_language": s.cfg.Speech.DefaultLanguage,
			"compute_type":     s.cfg.Whisper.ComputeType,
			"defaults":         gin.H{"beam_size": 1, "vad_filter": false},
		},
		"stats": gin.H{
			"since_started_at":    snapshot.StartedAt.Format(time.RFC3339Nano),
			"total_requests":      snapshot.TotalRequests,
			"total_failures":      snapshot.TotalFailures,
			"last_request_at":     lastRequestAt,
			"last_latency_ms":     snapshot.LastLatencyMS,
			"rolling_window_size": snapshot.WindowSize,
			"p50_latency_ms":      p50,
			"p95_latency_ms":      p95,
			"last_error":          snapshot.LastError,
		},
	})
}

// handleRuntimeStatus reports the condensed operational status
func (s *Server) handleRuntimeStatus(c *gin.Context) {
	speechStatus := s.speech.Status()
	snapshot := s.stats.Snapshot()

	lastError := speechStatus.LastError
	if lastError == "" {
		lastError = snapshot.LastError
	}

	c.JSON(http.StatusOK, gin.H{
		"backend_ok":          true,
		"stt_provider_active": speechStatus.ActiveProvider,
		"stt_provider_mode":   speechStatus.Mode,
		"premium_ok":          speechStatus.PremiumOK,
		"last_error":          lastError,
		"timestamp":           time.Now().UTC().Format(time.RFC3339Nano),
	})
}
