// ABOUTME: Echo backend that answers without calling a model
// ABOUTME: Used for local development, tests and the fake-agent binary

package agent

import (
	"context"
	"strings"
)

// userMarker separates the history block from the current message
const userMarker = "\nUSER:\n"

// EchoAgent repeats the user's message back, optionally with fixed citations
type EchoAgent struct {
	Citations []string
}

// NewEchoAgent returns an EchoAgent with no citations
func NewEchoAgent() *EchoAgent {
	return &EchoAgent{}
}

// Generate answers "Echo: <message>" where message is the text after the
// last USER: marker, or the whole prompt when there is none.
func (e *EchoAgent) Generate(ctx context.Context, prompt string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	message := prompt
	if i := strings.LastIndex(prompt, userMarker); i >= 0 {
		message = prompt[i+len(userMarker):]
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyResponse
	}

	return &Result{
		Text:      "Echo: " + message,
		Citations: cleanCitations(e.Citations),
	}, nil
}
