// ABOUTME: Tests for the backend factory, timeout wrapper, echo backend and system prompt loading
// ABOUTME: External backends are covered in their own files with fakes

package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/travelmind-gateway/internal/config"
)

func TestNew_Echo(t *testing.T) {
	a, err := New(context.Background(), config.AgentConfig{Backend: config.BackendEcho}, nil)
	require.NoError(t, err)

	result, err := a.Generate(context.Background(), "HISTORY:\n\n\nUSER:\nquiero un viaje a Turquía")
	require.NoError(t, err)
	assert.Equal(t, "Echo: quiero un viaje a Turquía", result.Text)
	assert.NotNil(t, result.Citations)
	assert.Empty(t, result.Citations)
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), config.AgentConfig{Backend: "openai"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown agent backend")
}

func TestNew_MissingSystemPromptFile(t *testing.T) {
	_, err := New(context.Background(), config.AgentConfig{
		Backend:          config.BackendEcho,
		SystemPromptFile: filepath.Join(t.TempDir(), "missing.txt"),
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading system prompt")
}

func TestNew_RemoteIsLazy(t *testing.T) {
	// Nothing listens here; creating the client must still succeed
	a, err := New(context.Background(), config.AgentConfig{
		Backend: config.BackendRemote,
		Remote:  config.RemoteAgentConfig{Addr: "127.0.0.1:1"},
		Timeout: time.Second,
	}, nil)
	require.NoError(t, err)
	assert.NoError(t, Close(a))
}

func TestNew_AppliesTimeout(t *testing.T) {
	a, err := New(context.Background(), config.AgentConfig{
		Backend: config.BackendEcho,
		Timeout: 5 * time.Second,
	}, nil)
	require.NoError(t, err)
	_, ok := a.(*timeoutAgent)
	assert.True(t, ok)
}

// blockingAgent waits for its context to end
type blockingAgent struct{}

func (blockingAgent) Generate(ctx context.Context, prompt string) (*Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWithTimeout(t *testing.T) {
	a := WithTimeout(blockingAgent{}, 20*time.Millisecond)

	start := time.Now()
	_, err := a.Generate(context.Background(), "hola")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWithTimeout_ParentCancellation(t *testing.T) {
	a := WithTimeout(blockingAgent{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Generate(ctx, "hola")
	assert.ErrorIs(t, err, context.Canceled)
}

type closingAgent struct {
	EchoAgent
	closed bool
}

func (c *closingAgent) Close() error {
	c.closed = true
	return nil
}

func TestClose(t *testing.T) {
	inner := &closingAgent{}
	require.NoError(t, Close(WithTimeout(inner, time.Second)))
	assert.True(t, inner.closed)

	assert.NoError(t, Close(NewEchoAgent()))
}

func TestEchoAgent(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{"composed prompt", "HISTORY:\nuser: hola\nmodel: Echo: hola\n\nUSER:\n¿y Grecia?", "Echo: ¿y Grecia?"},
		{"bare message", "Egipto en marzo", "Echo: Egipto en marzo"},
		{"last marker wins", "HISTORY:\nuser: x\n\nUSER:\na\nUSER:\nb", "Echo: b"},
	}

	e := &EchoAgent{Citations: []string{"gs://promos/a.pdf", "", " gs://promos/b.pdf "}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Generate(context.Background(), tt.prompt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Text)
			assert.Equal(t, []string{"gs://promos/a.pdf", "gs://promos/b.pdf"}, result.Citations)
		})
	}
}

func TestEchoAgent_EmptyMessage(t *testing.T) {
	_, err := NewEchoAgent().Generate(context.Background(), "HISTORY:\n\n\nUSER:\n   ")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestEchoAgent_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEchoAgent().Generate(ctx, "hola")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLoadSystemPrompt(t *testing.T) {
	prompt, err := LoadSystemPrompt("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemPrompt, prompt)
	assert.Contains(t, prompt, "senior B2B Travel Advisor")

	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n  Eres un asesor de viajes.\n"), 0644))
	prompt, err = LoadSystemPrompt(path)
	require.NoError(t, err)
	assert.Equal(t, "Eres un asesor de viajes.", prompt)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0644))
	_, err = LoadSystemPrompt(empty)
	assert.Error(t, err)
}

func TestCleanCitations(t *testing.T) {
	assert.Equal(t, []string{}, cleanCitations(nil))
	assert.Equal(t, []string{"b", "a", "b"}, cleanCitations([]string{"b", "", "a", "  ", "b"}))
}
