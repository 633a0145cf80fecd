// ABOUTME: Browser chat frontend for the travelmind-gateway API
// ABOUTME: Renders the session log with goldmark and posts messages using post/redirect/get

package webchat

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/2389/travelmind-gateway/internal/client"
)

// API is the part of the gateway client the chat needs
type API interface {
	GetSession(ctx context.Context, sessionID string) ([]client.Message, error)
	SendMessage(ctx context.Context, sessionID, message, idempotencyKey string) (*client.Reply, error)
}

// Config holds web chat settings
type Config struct {
	// APIURL is shown in the sidebar
	APIURL string
	Title  string
}

// Chat serves the web chat UI
type Chat struct {
	api    API
	config Config
	logger *slog.Logger
	tmpl   *template.Template
	md     goldmark.Markdown
}

type chatPageData struct {
	Title         string
	APIURL        string
	SessionID     string
	Messages      []client.Message
	Error         string
	UserTurnSaved bool
}

// New creates the chat UI on top of api.
func New(api API, cfg Config, logger *slog.Logger) *Chat {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Title == "" {
		cfg.Title = "Travel-Mind B2B"
	}

	c := &Chat{
		api:    api,
		config: cfg,
		logger: logger.With("component", "webchat"),
		// Raw HTML in messages stays escaped; only Markdown is rendered
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
	c.tmpl = template.Must(template.New("").Funcs(template.FuncMap{
		"markdown": c.renderMarkdown,
	}).ParseFS(templateFS, "templates/*.html"))
	return c
}

// Handler returns the chat's routes
func (c *Chat) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", c.handleIndex)
	r.Get("/new", c.handleNew)
	r.Post("/send", c.handleSend)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return r
}

// handleIndex shows the session named by ?session_id, starting a new one
// when it is missing. History always comes from the API.
func (c *Chat) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("session_id")
	if sessionID == "" {
		c.redirectToSession(w, r, client.NewSessionID(), nil)
		return
	}

	data := chatPageData{
		Title:         c.config.Title,
		APIURL:        c.config.APIURL,
		SessionID:     sessionID,
		Error:         q.Get("error"),
		UserTurnSaved: q.Get("saved") == "1",
	}

	status := http.StatusOK
	messages, err := c.api.GetSession(r.Context(), sessionID)
	if err != nil {
		c.logger.Warn("failed to fetch history", "session_id", sessionID, "error", err)
		status = http.StatusBadGateway
		data.Error = "Error fetching history: " + errorMessage(err)
		messages = nil
	}
	data.Messages = messages

	c.render(w, status, data)
}

// handleNew starts a fresh session
func (c *Chat) handleNew(w http.ResponseWriter, r *http.Request) {
	c.redirectToSession(w, r, client.NewSessionID(), nil)
}

// handleSend posts the form's message and redirects back to the session.
// Each submission gets its own idempotency key.
func (c *Chat) handleSend(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	sessionID := r.PostFormValue("session_id")
	message := strings.TrimSpace(r.PostFormValue("message"))
	if sessionID == "" {
		sessionID = client.NewSessionID()
	}
	if message == "" {
		c.redirectToSession(w, r, sessionID, nil)
		return
	}

	reply, err := c.api.SendMessage(r.Context(), sessionID, message, client.NewIdempotencyKey())
	if err != nil {
		c.logger.Warn("failed to send message", "session_id", sessionID, "error", err)
		c.redirectToSession(w, r, sessionID, err)
		return
	}

	c.logger.Debug("message sent", "session_id", sessionID, "citations", len(reply.Citations))
	c.redirectToSession(w, r, sessionID, nil)
}

// redirectToSession sends the browser to the session page, carrying a
// failed send's error in the query string.
func (c *Chat) redirectToSession(w http.ResponseWriter, r *http.Request, sessionID string, sendErr error) {
	q := url.Values{}
	q.Set("session_id", sessionID)
	if sendErr != nil {
		q.Set("error", "Error sending message: "+errorMessage(sendErr))
		var apiErr *client.APIError
		if errors.As(sendErr, &apiErr) && apiErr.UserTurnSaved {
			q.Set("saved", "1")
		}
	}
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusSeeOther)
}

func (c *Chat) render(w http.ResponseWriter, status int, data chatPageData) {
	var buf bytes.Buffer
	if err := c.tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		c.logger.Error("failed to render chat page", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderMarkdown converts message text to HTML
func (c *Chat) renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := c.md.Convert([]byte(text), &buf); err != nil {
		c.logger.Error("failed to convert markdown", "error", err)
		return template.HTML("<p>" + template.HTMLEscapeString(text) + "</p>")
	}
	return template.HTML(buf.String())
}

// errorMessage prefers the gateway's own message over the wrapped error text
func errorMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
