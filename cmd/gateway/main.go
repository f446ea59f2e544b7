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

// Package main provides the AI gateway server binary.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/your-org/ai-gateway/internal/config"
	"github.com/your-org/ai-gateway/internal/connector"
	"github.com/your-org/ai-gateway/internal/health"
	"github.com/your-org/ai-gateway/internal/memory"
	"github.com/your-org/ai-gateway/internal/orchestrator"
	"github.com/your-org/ai-gateway/internal/policy"
	"github.com/your-org/ai-gateway/internal/registry"
	"github.com/your-org/ai-gateway/internal/server"
	"github.com/your-org/ai-gateway/internal/speech"
	"github.com/your-org/ai-gateway/internal/stats"
)

const version = "1.0.0"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "gateway",
		Short: "AI gateway server",
		Long:  "Routes chat and audio requests across interchangeable LLM, RAG, speech and service desk providers.",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./configs/config.yaml", "Path to configuration file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway HTTP server",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(configPath)
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Run every connector's self-check and print the report",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runValidate(configPath)
		},
	}

	rootCmd.AddCommand(serveCmd, validateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Logging.Format == "text" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.Logging.Output != "" {
		zapCfg.OutputPaths = []string{cfg.Logging.Output}
	}
	return zapCfg.Build()
}

type gateway struct {
	cfg       *config.Config
	logger    *zap.Logger
	registry  *registry.Registry
	memory    *memory.Store
	stats     *stats.Tracker
	orch      *orchestrator.Orchestrator
	speechGW  *speech.Gateway
	healthMgr *health.Manager
}

func buildGateway(configPath string) (*gateway, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	reg := registry.New(cfg, logger)
	mem := memory.NewStore()
	pol := policy.NewEngine(cfg.Policy.MaxMessageChars)
	tracker := stats.NewTracker(cfg.Stats.WindowSize)

	conns := orchestrator.BuildConnectors(cfg, reg, logger)
	orch := orchestrator.New(cfg, reg, mem, pol, conns, logger)
	speechGW := speech.NewGateway(cfg, conns.STT, logger)

	healthMgr := health.NewManager("gateway", version, cfg.Gateway.Environment, logger)
	healthMgr.AddChecker("speech", health.SpeechChecker(func() bool {
		return speechGW.Status().PremiumOK
	}))
	if desk, ok := conns.ServiceDesk[registry.ProviderLocalDesk]; ok {
		healthMgr.AddChecker("ticket_store", health.ConnectorChecker(registry.ProviderLocalDesk, desk))
	}

	return &gateway{
		cfg:       cfg,
		logger:    logger,
		registry:  reg,
		memory:    mem,
		stats:     tracker,
		orch:      orch,
		speechGW:  speechGW,
		healthMgr: healthMgr,
	}, nil
}

func runServe(configPath string) error {
	gw, err := buildGateway(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = gw.logger.Sync() }()

	// hot reload only touches tunables; provider wiring is startup-fixed
	if err := config.WatchConfig(configPath, func(updated *config.Config) {
		gw.logger.Info("Configuration reloaded",
			zap.String("log_level", updated.Logging.Level),
			zap.Int("max_message_chars", updated.Policy.MaxMessageChars),
		)
	}); err != nil {
		gw.logger.Warn("Config hot reload unavailable", zap.Error(err))
	}

	srv := server.New(gw.cfg, gw.orch, gw.speechGW, gw.memory, gw.stats, gw.healthMgr, gw.logger)
	return srv.Run()
}

func runValidate(configPath string) error {
	gw, err := buildGateway(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = gw.logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	report := gw.orch.ValidateConnectors(ctx)
	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))

	for _, capability := range connector.Capabilities() {
		configured := 0
		for _, d := range gw.registry.List(true)[capability] {
			if d.Configured {
				configured++
			}
		}
		gw.logger.Info("Capability summary",
			zap.String("capability", string(capability)),
			zap.Int("configured", configured),
		)
	}

	if report.Status != "ok" {
		return fmt.Errorf("connector validation needs attention")
	}
	return nil
}
