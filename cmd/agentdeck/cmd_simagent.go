package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/agentdeck/internal/simagent"
)

var simagentDelayMs int

func init() {
	rootCmd.AddCommand(simagentCmd)
	simagentCmd.Flags().IntVar(&simagentDelayMs, "delay-ms", 50, "pause between streamed tokens")
}

var simagentCmd = &cobra.Command{
	Use:   "simagent",
	Short: "Run the simulated agent service standalone",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		sim, err := simagent.New(time.Duration(simagentDelayMs) * time.Millisecond)
		if err != nil {
			return fmt.Errorf("create sim agent: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		server := &http.Server{Addr: cfg.SimAgent.Listen, Handler: sim}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()

		slog.Info("sim agent started", "listen", cfg.SimAgent.Listen, "delay_ms", simagentDelayMs)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}
