// ABOUTME: Entry point for travelmind-web, the browser chat for travel agents
// ABOUTME: Serves the webchat UI on top of the travelmind-gateway API

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/2389/travelmind-gateway/internal/client"
	"github.com/2389/travelmind-gateway/internal/config"
	"github.com/2389/travelmind-gateway/internal/webchat"
)

func main() {
	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadForClient(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	defaultAddr := cfg.Web.HTTPAddr
	if port := os.Getenv("PORT"); port != "" {
		defaultAddr = "0.0.0.0:" + port
	}

	addr := flag.String("addr", defaultAddr, "HTTP listen address")
	apiURL := flag.String("api", cfg.Web.APIURL, "Gateway API URL")
	flag.Parse()

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, nil)
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	}
	logger := slog.New(handler)

	api := client.New(*apiURL, client.WithToken(client.LoadToken()))
	chat := webchat.New(api, webchat.Config{APIURL: api.BaseURL()}, logger)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           chat.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting travelmind-web", "addr", *addr, "api_url", api.BaseURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down travelmind-web")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
