// Command axon-server runs the workflow automation engine behind its HTTP
// and websocket surfaces.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"axon/internal/config"
	"axon/internal/core"
	"axon/internal/llm"
	"axon/internal/logging"
	"axon/internal/observability"
	httpserver "axon/internal/server/http"
	"axon/internal/server/ws"
)

var version = "0.3.0"

func main() {
	root := &cobra.Command{
		Use:     "axon-server",
		Short:   "Local AI workflow automation engine",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			return run(cmd.Context(), debug)
		},
	}
	root.Flags().Bool("debug", false, "enable debug logging and gin debug mode")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, debug bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if debug {
		cfg.Debug = true
	}
	if cfg.Debug {
		logging.SetLevel(logging.DEBUG)
	}
	logger := logging.NewComponentLogger("Server")

	tracing, err := observability.NewTracerProvider(ctx, cfg.OTLPEndpoint, version)
	if err != nil {
		return err
	}

	llmClient := llm.NewOpenAIClient(cfg.LLM, logging.NewComponentLogger("LLM"))

	c, err := core.New(cfg, llmClient, logger)
	if err != nil {
		return err
	}

	hub := ws.NewHub(c.Engine, c.Templates, logging.NewComponentLogger("WS"))

	srv := httpserver.New(httpserver.Config{
		Host:  cfg.Host,
		Port:  cfg.Port,
		Debug: cfg.Debug,
	}, c.Registry, c.Engine, c.Store, c.Templates, c.Dispatcher, logger)
	srv.WSHandler = hub.Handler()
	srv.OnWorkflowSaved = c.RegisterSavedWorkflow
	srv.Routes()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("Received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown: %v", err)
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		logger.Error("Tracing shutdown: %v", err)
	}
	logger.Info("Server stopped")
	return nil
}
