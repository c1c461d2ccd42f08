// Command propline runs the WhatsApp property-maintenance assistant: an HTTP
// webhook in front of the conversation orchestrator, its workers, and the
// SQLite store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"propline/internal/server"
	"propline/pkg/config"
	"propline/pkg/llm/backends"
	"propline/pkg/logx"
	"propline/pkg/metrics"
	"propline/pkg/notify"
	"propline/pkg/orchestrator"
	"propline/pkg/persistence"
	"propline/pkg/workers"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "propline: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	logger := logx.NewLogger("main")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := persistence.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := backends.NewClient(&cfg.LLM)
	if err != nil {
		return err
	}
	logger.Info("🧠 Backend ready: %s (%s)", cfg.LLM.Backend, client.ModelName())

	set, err := workers.NewSet(client, store, notify.NewLogNotifier(), cfg.LLM.MaxTokens)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	orch := orchestrator.New(store, set, recorder, cfg.Phone.DefaultCountryCode)

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           server.New(orch),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🚀 Listening on %s", cfg.Server.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown did not complete cleanly: %w", err)
	}
	logger.Info("Shutdown complete")
	return nil
}
