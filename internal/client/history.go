// ABOUTME: GetSession fetches a session's full message log from the gateway
// ABOUTME: The gateway is the source of truth; frontends re-fetch after every send

package client

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Message is one entry of a session log as served by GET /sessions/{id}
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Metadata  *Metadata `json:"metadata,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Metadata holds a model message's citations
type Metadata struct {
	Citations []string `json:"citations"`
}

// Citations returns the message's citations, nil when it has none
func (m Message) Citations() []string {
	if m.Metadata == nil {
		return nil
	}
	return m.Metadata.Citations
}

// IsModel reports whether the message is an agent reply
func (m Message) IsModel() bool {
	return m.Role == "model"
}

// GetSession returns every message of the session in order
func (c *Client) GetSession(ctx context.Context, sessionID string) ([]Message, error) {
	var body struct {
		SessionID string    `json:"session_id"`
		Messages  []Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID), nil, nil, &body); err != nil {
		return nil, err
	}
	if body.Messages == nil {
		body.Messages = []Message{}
	}
	return body.Messages, nil
}
