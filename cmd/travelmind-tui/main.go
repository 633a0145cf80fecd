// ABOUTME: Terminal chat client for the travelmind-gateway API
// ABOUTME: Reads requests line by line, prints advisor replies with their sources

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/travelmind-gateway/internal/client"
	"github.com/2389/travelmind-gateway/internal/config"
)

// api is the part of the gateway client the TUI uses
type api interface {
	GetSession(ctx context.Context, sessionID string) ([]client.Message, error)
	SendMessage(ctx context.Context, sessionID, message, idempotencyKey string) (*client.Reply, error)
}

var (
	userColor  = color.New(color.FgBlue)
	modelColor = color.New(color.FgGreen)
	dimColor   = color.New(color.FgHiBlack)
	errColor   = color.New(color.FgRed)
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadForClient(config.DefaultPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading config: %v\n", err)
		os.Exit(1)
	}

	server := flag.String("server", cfg.Web.APIURL, "Gateway API URL")
	sessionID := flag.String("session", "", "Session ID to resume (default: new session)")
	flag.Parse()

	if *sessionID == "" {
		*sessionID = client.NewSessionID()
	}

	token := client.LoadToken()
	c := client.New(*server, client.WithToken(token))

	fmt.Printf("travelmind-tui connected to %s\n", c.BaseURL())
	if token != "" {
		fmt.Println("Auth: token configured")
	} else {
		fmt.Println("Auth: none (set TRAVELMIND_TOKEN or run travelmind-gateway token)")
	}
	fmt.Printf("Session: %s\n", *sessionID)
	fmt.Println("Type a request and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	t := &tui{api: c, sessionID: *sessionID, out: os.Stdout}
	if err := t.run(ctx, os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

type tui struct {
	api       api
	sessionID string
	out       io.Writer
}

func (t *tui) run(ctx context.Context, in io.Reader) error {
	// Stops the reader goroutine when run returns early
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	scanner := bufio.NewScanner(in)
	inputCh := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		for scanner.Scan() {
			select {
			case inputCh <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- err
		} else {
			errCh <- io.EOF
		}
	}()

	for {
		fmt.Fprint(t.out, "> ")

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if quit := t.handle(ctx, input); quit {
			return nil
		}
		fmt.Fprintln(t.out)
	}
}

// handle runs one line of input and reports whether the user asked to quit
func (t *tui) handle(ctx context.Context, input string) bool {
	switch input {
	case "/quit", "/exit", "/q":
		return true
	case "/help":
		t.printHelp()
	case "/new":
		t.sessionID = client.NewSessionID()
		fmt.Fprintf(t.out, "Started session %s\n", t.sessionID)
	case "/session":
		fmt.Fprintf(t.out, "Session: %s\n", t.sessionID)
	case "/history":
		if err := t.showHistory(ctx); err != nil {
			errColor.Fprintf(t.out, "[error] %v\n", err)
		}
	default:
		if strings.HasPrefix(input, "/") {
			fmt.Fprintf(t.out, "Unknown command %s (try /help)\n", input)
			return false
		}
		t.send(ctx, input)
	}
	return false
}

func (t *tui) printHelp() {
	fmt.Fprintln(t.out, "Commands:")
	fmt.Fprintln(t.out, "  /new           Start a new session")
	fmt.Fprintln(t.out, "  /session       Show the current session ID")
	fmt.Fprintln(t.out, "  /history       Show this session's messages")
	fmt.Fprintln(t.out, "  /help          Show this help")
	fmt.Fprintln(t.out, "  /quit          Exit the TUI")
}

func (t *tui) send(ctx context.Context, message string) {
	dimColor.Fprintln(t.out, "thinking...")
	start := time.Now()

	reply, err := t.api.SendMessage(ctx, t.sessionID, message, client.NewIdempotencyKey())
	if err != nil {
		errColor.Fprintf(t.out, "[error] %v\n", err)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.UserTurnSaved {
			dimColor.Fprintln(t.out, "Your message was saved; send it again to retry.")
		}
		return
	}

	modelColor.Fprint(t.out, "Travel-Mind: ")
	fmt.Fprintln(t.out, reply.Response)
	t.printCitations(reply.Citations)
	dimColor.Fprintf(t.out, "(%s)\n", time.Since(start).Round(100*time.Millisecond))
}

func (t *tui) showHistory(ctx context.Context) error {
	msgs, err := t.api.GetSession(ctx, t.sessionID)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Fprintln(t.out, "No messages in this session yet")
		return nil
	}

	fmt.Fprintf(t.out, "Session %s (%d messages):\n", t.sessionID, len(msgs))
	fmt.Fprintln(t.out, strings.Repeat("-", 60))
	for _, m := range msgs {
		if m.IsModel() {
			modelColor.Fprint(t.out, "← ")
		} else {
			userColor.Fprint(t.out, "→ ")
		}
		fmt.Fprintln(t.out, m.Content)
		t.printCitations(m.Citations())
	}
	fmt.Fprintln(t.out, strings.Repeat("-", 60))
	return nil
}

func (t *tui) printCitations(citations []string) {
	if len(citations) == 0 {
		return
	}
	dimColor.Fprintln(t.out, "Sources:")
	for _, c := range citations {
		dimColor.Fprintf(t.out, "  - %s\n", c)
	}
}
