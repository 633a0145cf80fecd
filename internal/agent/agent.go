// ABOUTME: Agent interface for grounded answer generation and the backend factory
// ABOUTME: New picks vertex, ark, remote or echo from config and applies the generation timeout

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/2389/travelmind-gateway/internal/auth"
	"github.com/2389/travelmind-gateway/internal/config"
)

// ErrEmptyResponse is returned when a backend produced no text
var ErrEmptyResponse = errors.New("agent returned an empty response")

// Result is one generated answer
type Result struct {
	Text      string
	Citations []string // source URIs in the order the backend reported them
}

// Agent turns a fully composed prompt into a grounded answer
type Agent interface {
	Generate(ctx context.Context, prompt string) (*Result, error)
}

// New builds the agent selected by cfg.Backend. The returned agent may also
// implement io.Closer; callers should close it on shutdown.
func New(ctx context.Context, cfg config.AgentConfig, logger *slog.Logger) (Agent, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "agent", "backend", cfg.Backend)

	systemPrompt, err := LoadSystemPrompt(cfg.SystemPromptFile)
	if err != nil {
		return nil, err
	}

	var a Agent
	switch cfg.Backend {
	case config.BackendVertex:
		a, err = NewVertexAgent(ctx, cfg.Vertex, systemPrompt, logger)
	case config.BackendArk:
		a, err = NewArkAgent(ctx, cfg.Ark, systemPrompt, logger)
	case config.BackendRemote:
		opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
		if cfg.Remote.Token != "" {
			opts = append(opts, grpc.WithPerRPCCredentials(auth.BearerCredentials(cfg.Remote.Token)))
		}
		a, err = DialRemote(cfg.Remote.Addr, logger, opts...)
	case config.BackendEcho:
		a = NewEchoAgent()
	default:
		return nil, fmt.Errorf("unknown agent backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s agent: %w", cfg.Backend, err)
	}

	if cfg.Timeout > 0 {
		a = WithTimeout(a, cfg.Timeout)
	}

	logger.Info("agent initialized", "timeout", cfg.Timeout)
	return a, nil
}

// timeoutAgent bounds every generation with a deadline
type timeoutAgent struct {
	Agent
	timeout time.Duration
}

// WithTimeout wraps a so each Generate call gets at most d
func WithTimeout(a Agent, d time.Duration) Agent {
	return &timeoutAgent{Agent: a, timeout: d}
}

func (t *timeoutAgent) Generate(ctx context.Context, prompt string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Agent.Generate(ctx, prompt)
}

// Close closes the wrapped agent when it holds resources
func (t *timeoutAgent) Close() error {
	if c, ok := t.Agent.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Close closes a if it holds resources. Safe to call with any agent.
func Close(a Agent) error {
	if c, ok := a.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// cleanCitations drops empty entries and keeps order. Never returns nil.
func cleanCitations(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
