// ABOUTME: Tests for the terminal chat loop using a fake API
// ABOUTME: Covers commands, sending with fresh idempotency keys and citation output

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/travelmind-gateway/internal/client"
)

type sent struct {
	sessionID, message, key string
}

type fakeAPI struct {
	history []client.Message
	reply   *client.Reply
	err     error
	sent    []sent
}

func (f *fakeAPI) GetSession(ctx context.Context, sessionID string) ([]client.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.history, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, sessionID, message, key string) (*client.Reply, error) {
	f.sent = append(f.sent, sent{sessionID, message, key})
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func runTUI(t *testing.T, api *fakeAPI, input string) (*tui, string) {
	t.Helper()
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var out bytes.Buffer
	tu := &tui{api: api, sessionID: "3f2c8a9e-4b7d-4c1a-9e2f-5d6b7a8c9d0e", out: &out}
	require.NoError(t, tu.run(context.Background(), strings.NewReader(input)))
	return tu, out.String()
}

func TestTUI_SendPrintsReplyAndSources(t *testing.T) {
	api := &fakeAPI{reply: &client.Reply{
		Response:  "Te recomiendo Estambul Clásico.",
		Citations: []string{"gs://promos/turquia.pdf"},
	}}

	_, out := runTUI(t, api, "Quiero un viaje a Turquía\n\nOtra opción\n")

	require.Len(t, api.sent, 2)
	assert.Equal(t, "Quiero un viaje a Turquía", api.sent[0].message)
	assert.Equal(t, "3f2c8a9e-4b7d-4c1a-9e2f-5d6b7a8c9d0e", api.sent[0].sessionID)
	assert.NotEqual(t, api.sent[0].key, api.sent[1].key)
	assert.Contains(t, out, "Travel-Mind: Te recomiendo Estambul Clásico.")
	assert.Contains(t, out, "Sources:\n  - gs://promos/turquia.pdf")
}

func TestTUI_Commands(t *testing.T) {
	api := &fakeAPI{}

	tu, out := runTUI(t, api, "/session\n/new\n/bogus\n/help\n/quit\nnever sent\n")

	assert.Contains(t, out, "Session: 3f2c8a9e-4b7d-4c1a-9e2f-5d6b7a8c9d0e")
	assert.Contains(t, out, "Started session "+tu.sessionID)
	assert.NotEqual(t, "3f2c8a9e-4b7d-4c1a-9e2f-5d6b7a8c9d0e", tu.sessionID)
	assert.Contains(t, out, "Unknown command /bogus")
	assert.Contains(t, out, "/history")
	assert.Empty(t, api.sent, "input after /quit is not read")
}

func TestTUI_History(t *testing.T) {
	api := &fakeAPI{history: []client.Message{
		{Role: "user", Content: "Quiero un viaje a Turquía"},
		{Role: "model", Content: "Estambul Clásico", Metadata: &client.Metadata{Citations: []string{"gs://promos/turquia.pdf"}}},
	}}

	_, out := runTUI(t, api, "/history\n")
	assert.Contains(t, out, "(2 messages)")
	assert.Contains(t, out, "→ Quiero un viaje a Turquía")
	assert.Contains(t, out, "← Estambul Clásico")
	assert.Contains(t, out, "gs://promos/turquia.pdf")

	_, out = runTUI(t, &fakeAPI{}, "/history\n")
	assert.Contains(t, out, "No messages in this session yet")
}

func TestTUI_SendError(t *testing.T) {
	api := &fakeAPI{err: &client.APIError{Status: 500, Message: "Agent execution failed: timeout", UserTurnSaved: true}}

	_, out := runTUI(t, api, "hola\n")
	assert.Contains(t, out, "[error] api error (status 500): Agent execution failed: timeout")
	assert.Contains(t, out, "Your message was saved")
}
