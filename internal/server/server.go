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

// Package server wires the HTTP surface of the gateway: chat, audio,
// provider listings, runtime stats, health and metrics.
package server

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/your-org/ai-gateway/internal/config"
	"github.com/your-org/ai-gateway/internal/health"
	"github.com/your-org/ai-gateway/internal/memory"
	"github.com/your-org/ai-gateway/internal/orchestrator"
	"github.com/your-org/ai-gateway/internal/resilience"
	"github.com/your-org/ai-gateway/internal/speech"
	"github.com/your-org/ai-gateway/internal/stats"
)

// Server hosts the gateway HTTP API
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	orch   *orchestrator.Orchestrator
	speech *speech.Gateway
	memory *memory.Store
	stats  *stats.Tracker
	health *health.Manager
}

// New creates a server over the assembled gateway components
func New(
	cfg *config.Config,
	orch *orchestrator.Orchestrator,
	speechGW *speech.Gateway,
	mem *memory.Store,
	tracker *stats.Tracker,
	healthMgr *health.Manager,
	logger *zap.Logger,
) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		orch:   orch,
		speech: speechGW,
		memory: mem,
		stats:  tracker,
		health: healthMgr,
	}
}

// Router builds the gin engine with all routes registered
func (s *Server) Router() *gin.Engine {
	if !s.cfg.Gateway.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.correlationMiddleware())

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/sessions", s.handleCreateSession)
		v1.POST("/chat", s.handleChat)

		audio := v1.Group("/audio")
		{
			audio.POST("/transcribe", s.handleTranscribe)
			audio.POST("/transcribe-file", s.handleTranscribeFile)
			audio.GET("/transcribe-config", s.handleTranscribeConfig)
			audio.POST("/synthesize", s.handleSynthesize)
			audio.GET("/stt/status", s.handleSTTStatus)
		}

		v1.GET("/providers", s.handleProviders)
		v1.GET("/providers/validate", s.handleValidateProviders)
		v1.GET("/runtime", s.handleRuntime)
		v1.GET("/runtime/status", s.handleRuntimeStatus)
	}

	return router
}

// Run starts the server on the configured port
func (s *Server) Run() error {
	router := s.Router()
	addr := ":" + s.cfg.Gateway.Port
	s.logger.Info("Starting gateway server", zap.String("addr", addr))
	return router.Run(addr)
}

const correlationContextKey = "correlation_id"

// correlationMiddleware reads the configured correlation header or
// generates an id, and binds it to the request context and response
func (s *Server) correlationMiddleware() gin.HandlerFunc {
	header := s.cfg.Gateway.CorrelationIDHeader
	return func(c *gin.Context) {
		id := c.GetHeader(header)
		if id == "" {
			id = generateCorrelationID()
		}
		c.Set(correlationContextKey, id)
		c.Header(header, id)
		c.Next()
	}
}

func (s *Server) correlationID(c *gin.Context) string {
	return c.GetString(correlationContextKey)
}

func generateCorrelationID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "req_unknown"
	}
	return "req_" + hex.EncodeToString(buf)
}

// respondError maps any error onto the gateway error envelope
func (s *Server) respondError(c *gin.Context, err error) {
	correlationID := s.correlationID(c)
	status := resilience.StatusFor(err)
	if status >= 500 {
		s.logger.Error("Request failed", zap.String("correlation_id", correlationID), zap.Error(err))
	} else {
		s.logger.Warn("Request rejected", zap.String("correlation_id", correlationID), zap.Error(err))
	}
	c.JSON(status, resilience.ResponseFor(err, correlationID))
}

func (s *Server) handleHealth(c *gin.Context) {
	s.health.HTTPHandler().ServeHTTP(c.Writer, c.Request)
}
