package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/agentdeck/internal/auth"
	"github.com/user/agentdeck/internal/console"
	"github.com/user/agentdeck/internal/metrics"
	"github.com/user/agentdeck/internal/simagent"
	"github.com/user/agentdeck/internal/state"
	"github.com/user/agentdeck/pkg/agent"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agentdeck console daemon",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stores
	prompts := state.NewPromptCatalog()
	if cfg.SeedPrompts {
		if err := prompts.Seed(ctx); err != nil {
			return fmt.Errorf("seed prompts: %w", err)
		}
	}
	persister := state.NewFilePersister(cfg.DataDir)
	sessions, err := state.NewSessionStore(prompts, persister)
	if err != nil {
		return fmt.Errorf("create session store: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	// Sim agent, stands in for the real agent service during development
	if cfg.SimAgent.Enabled {
		sim, err := simagent.New(50 * time.Millisecond)
		if err != nil {
			return fmt.Errorf("create sim agent: %w", err)
		}
		simServer := &http.Server{Addr: cfg.SimAgent.Listen, Handler: sim}
		g.Go(func() error {
			slog.Info("sim agent started", "listen", cfg.SimAgent.Listen)
			if err := simServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("sim agent server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return simServer.Shutdown(shutdownCtx)
		})
	}

	// Relay to the agent. The chat coordinator is both the frame handler and
	// the relay's caller, so the handler closes over it.
	var chat *console.Chat
	relay := agent.NewRelay(cfg.Agent.WSURL,
		func(frame *agent.Frame) { chat.HandleFrame(frame) },
		agent.WithReconnectDelay(time.Duration(cfg.Agent.ReconnectSeconds)*time.Second),
		agent.WithStateChange(func(s agent.State) {
			slog.Info("agent channel state changed", "state", s)
		}),
	)
	chat = console.NewChat(sessions, relay)
	relay.Start(ctx)
	defer relay.Close()

	// Metrics reporter
	reporter := metrics.NewReporter(cfg.Agent.MetricsURL, time.Duration(cfg.Metrics.PollSeconds)*time.Second)
	if err := reporter.Start(); err != nil {
		return fmt.Errorf("start metrics reporter: %w", err)
	}
	defer reporter.Stop()

	// Console HTTP server
	gate := auth.NewGate(cfg.Auth.SecureCookies)
	srv := console.NewServer(gate, prompts, sessions, chat, reporter)
	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: srv,
	}
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("console server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	slog.Info("agentdeck started",
		"listen", cfg.Listen,
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"agent_ws", cfg.Agent.WSURL,
		"agent_metrics", cfg.Agent.MetricsURL,
		"sessions_file", persister.Path(),
	)

	return g.Wait()
}
