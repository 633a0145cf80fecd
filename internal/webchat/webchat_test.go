// ABOUTME: Tests for the web chat handlers using a fake API client
// ABOUTME: Covers session redirects, markdown rendering, citations and error display

package webchat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/travelmind-gateway/internal/client"
)

const sessionID = "3f2c8a9e-4b7d-4c1a-9e2f-5d6b7a8c9d0e"

type sentMessage struct {
	sessionID, message, key string
}

type fakeAPI struct {
	mu         sync.Mutex
	history    []client.Message
	historyErr error
	sendErr    error
	sent       []sentMessage
}

func (f *fakeAPI) GetSession(ctx context.Context, id string) ([]client.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, id, message, key string) (*client.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{id, message, key})
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &client.Reply{Response: "ok", Citations: []string{}, SessionID: id}, nil
}

func newTestChat(api API) http.Handler {
	return New(api, Config{APIURL: "http://api.test"}, slog.New(slog.NewTextHandler(io.Discard, nil))).Handler()
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func postForm(t *testing.T, h http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// redirectQuery returns the query of a 303 redirect
func redirectQuery(t *testing.T, rec *httptest.ResponseRecorder) url.Values {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/", loc.Path)
	return loc.Query()
}

func TestIndex_RedirectsToNewSession(t *testing.T) {
	h := newTestChat(&fakeAPI{})

	q := redirectQuery(t, get(t, h, "/"))
	id := q.Get("session_id")
	assert.Len(t, id, 36)
	assert.Empty(t, q.Get("error"))

	other := redirectQuery(t, get(t, h, "/new")).Get("session_id")
	assert.NotEqual(t, id, other)
}

func TestIndex_RendersHistory(t *testing.T) {
	api := &fakeAPI{history: []client.Message{
		{Role: "user", Content: "Quiero un viaje a **Turquía**"},
		{Role: "model", Content: "Te recomiendo:\n\n- Estambul Clásico\n- Capadocia", Metadata: &client.Metadata{
			Citations: []string{"gs://promos/turquia.pdf"},
		}},
	}}
	h := newTestChat(api)

	rec := get(t, h, "/?session_id="+sessionID)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, sessionID)
	assert.Contains(t, body, "http://api.test")
	assert.Contains(t, body, "<strong>Turquía</strong>")
	assert.Contains(t, body, "<li>Estambul Clásico</li>")
	assert.Contains(t, body, "Sources:")
	assert.Contains(t, body, "gs://promos/turquia.pdf")
	assert.Equal(t, 1, strings.Count(body, "Sources:"), "only the model message has citations")
}

func TestIndex_EmptySession(t *testing.T) {
	rec := get(t, newTestChat(&fakeAPI{}), "/?session_id="+sessionID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Tell the advisor")
	assert.NotContains(t, rec.Body.String(), "Sources:")
}

func TestIndex_EscapesRawHTML(t *testing.T) {
	api := &fakeAPI{history: []client.Message{{Role: "user", Content: `<script>alert("x")</script>`}}}

	rec := get(t, newTestChat(api), "/?session_id="+sessionID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `<script>alert`)
}

func TestIndex_HistoryError(t *testing.T) {
	api := &fakeAPI{historyErr: &client.APIError{Status: http.StatusBadRequest, Message: "invalid session id"}}

	rec := get(t, newTestChat(api), "/?session_id=not-a-uuid")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error fetching history: invalid session id")
}

func TestIndex_ShowsSendError(t *testing.T) {
	q := url.Values{}
	q.Set("session_id", sessionID)
	q.Set("error", "Error sending message: <b>boom</b>")
	q.Set("saved", "1")

	rec := get(t, newTestChat(&fakeAPI{}), "/?"+q.Encode())
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Error sending message: &lt;b&gt;boom&lt;/b&gt;")
	assert.Contains(t, body, "Your message was saved")
}

func TestSend_PostRedirectGet(t *testing.T) {
	api := &fakeAPI{}
	h := newTestChat(api)

	for i := 0; i < 2; i++ {
		q := redirectQuery(t, postForm(t, h, url.Values{
			"session_id": {sessionID},
			"message":    {"  Quiero un viaje a Turquía  "},
		}))
		assert.Equal(t, sessionID, q.Get("session_id"))
		assert.Empty(t, q.Get("error"))
	}

	require.Len(t, api.sent, 2)
	assert.Equal(t, sessionID, api.sent[0].sessionID)
	assert.Equal(t, "Quiero un viaje a Turquía", api.sent[0].message)
	assert.NotEmpty(t, api.sent[0].key)
	assert.NotEqual(t, api.sent[0].key, api.sent[1].key, "each submission gets its own idempotency key")
}

func TestSend_EmptyMessageIsIgnored(t *testing.T) {
	api := &fakeAPI{}

	q := redirectQuery(t, postForm(t, newTestChat(api), url.Values{"session_id": {sessionID}, "message": {"   "}}))
	assert.Equal(t, sessionID, q.Get("session_id"))
	assert.Empty(t, api.sent)
}

func TestSend_Errors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantError string
		wantSaved string
	}{
		{
			name:      "agent failure after user turn saved",
			err:       &client.APIError{Status: 500, Message: "Agent execution failed: timeout", UserTurnSaved: true},
			wantError: "Error sending message: Agent execution failed: timeout",
			wantSaved: "1",
		},
		{
			name:      "history failure",
			err:       &client.APIError{Status: 500, Message: "Failed to retrieve history: down"},
			wantError: "Error sending message: Failed to retrieve history: down",
		},
		{
			name:      "connection refused",
			err:       errors.New("sending request: connection refused"),
			wantError: "Error sending message: sending request: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{sendErr: tt.err}
			q := redirectQuery(t, postForm(t, newTestChat(api), url.Values{"session_id": {sessionID}, "message": {"hola"}}))
			assert.Equal(t, sessionID, q.Get("session_id"))
			assert.Equal(t, tt.wantError, q.Get("error"))
			assert.Equal(t, tt.wantSaved, q.Get("saved"))
		})
	}
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestChat(&fakeAPI{}), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
