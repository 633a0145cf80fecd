// ABOUTME: SendMessage posts one user message and returns the grounded reply
// ABOUTME: An idempotency key makes the call safe to retry after a timeout

package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Reply is the gateway's answer to one message
type Reply struct {
	Response  string   `json:"response"`
	Citations []string `json:"citations"`
	SessionID string   `json:"session_id"`

	// Replayed is true when the gateway served a remembered response for the key
	Replayed bool `json:"-"`
}

// NewSessionID returns a fresh session id in the form the gateway accepts
func NewSessionID() string {
	return uuid.NewString()
}

// NewIdempotencyKey returns a fresh key for one user action
func NewIdempotencyKey() string {
	return uuid.NewString()
}

// SendMessage posts message to the session. A non-empty idempotencyKey is
// sent as X-Idempotency-Key; reuse it when retrying the same action.
func (c *Client) SendMessage(ctx context.Context, sessionID, message, idempotencyKey string) (*Reply, error) {
	req := struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}{sessionID, message}

	var hdr map[string]string
	if idempotencyKey != "" {
		hdr = map[string]string{"X-Idempotency-Key": idempotencyKey}
	}

	var reply Reply
	respHeader, err := c.doWithHeaders(ctx, http.MethodPost, "/messages", req, hdr, &reply)
	if err != nil {
		return nil, err
	}
	reply.Replayed = respHeader.Get("Idempotent-Replayed") == "true"
	if reply.Citations == nil {
		reply.Citations = []string{}
	}
	return &reply, nil
}
