// ABOUTME: Entry point for travelmind-gateway, the Travel-Mind chat API server
// ABOUTME: Dispatches the serve, init, token, health and verify subcommands

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/travelmind-gateway/internal/config"
	"github.com/2389/travelmind-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _                        _           _           _
| |_ _ __ __ ___   _____| |_ __ ___ (_)_ __   __| |
| __| '__/ _' \ \ / / _ \ | '_ ' _ \| | '_ \ / _' |
| |_| | | (_| |\ V /  __/ | | | | | | | | | | (_| |
 \__|_|  \__,_| \_/ \___|_|_| |_| |_|_|_| |_|\__,_|
`

func usage() {
	fmt.Println("Usage: travelmind-gateway <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                       Start the chat API server")
	fmt.Println("  init                        Create a new config file interactively")
	fmt.Println("  token --subject NAME        Issue an API token (needs auth.jwt_secret)")
	fmt.Println("  health                      Check a running gateway")
	fmt.Println("  verify                      Check the database and agent configuration")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// A local .env is optional
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "token":
		err = runToken(os.Args[2:])
	case "health":
		err = runHealth(ctx)
	case "verify":
		err = runVerify(ctx)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.DefaultPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Driver)
	green.Print("    ▶ ")
	fmt.Printf("Agent:     %s\n", cfg.Agent.Backend)

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	if cfg.Auth.JWTSecret == "" {
		yellow.Println("    ! auth disabled: the API accepts anonymous requests")
	}

	fmt.Println()

	logger.Info("starting travelmind-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"database", cfg.Database.Driver,
		"agent", cfg.Agent.Backend,
	)

	gw, err := gateway.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}
