// ABOUTME: Fake grounded agent for E2E testing, served over the remote agent gRPC service
// ABOUTME: Usage: fake-agent [-addr localhost:50061] [-jwt-secret S] [-citations a,b] [-delay 2s]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/2389/travelmind-gateway/internal/agent"
	"github.com/2389/travelmind-gateway/internal/auth"
)

// slowAgent delays every answer, for exercising gateway timeouts
type slowAgent struct {
	agent.Agent
	delay time.Duration
}

func (s slowAgent) Generate(ctx context.Context, prompt string) (*agent.Result, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.Agent.Generate(ctx, prompt)
}

func main() {
	addr := flag.String("addr", "localhost:50061", "gRPC listen address")
	secret := flag.String("jwt-secret", "", "require bearer tokens signed with this secret")
	citations := flag.String("citations", "gs://travelmind-promos/turquia-2025.pdf", "comma-separated citations attached to every answer")
	delay := flag.Duration("delay", 0, "wait this long before answering")
	flag.Parse()

	if err := run(*addr, *secret, *citations, *delay); err != nil {
		log.Fatal(err)
	}
}

func run(addr, secret, citations string, delay time.Duration) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	var opts []grpc.ServerOption
	if secret != "" {
		opts = append(opts, grpc.UnaryInterceptor(auth.UnaryInterceptor(auth.NewJWTVerifier([]byte(secret)), logger)))
	}
	srv := grpc.NewServer(opts...)

	var a agent.Agent = &agent.EchoAgent{Citations: splitCitations(citations)}
	if delay > 0 {
		a = slowAgent{Agent: a, delay: delay}
	}
	agent.RegisterServer(srv, a, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	logger.Info("fake agent listening", "addr", ln.Addr().String(), "auth", secret != "")
	if err := srv.Serve(ln); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

func splitCitations(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
