// ABOUTME: HTTP API handlers for health, session history and sending chat messages
// ABOUTME: POST /messages honors X-Idempotency-Key by replaying remembered responses

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/2389/travelmind-gateway/internal/auth"
	"github.com/2389/travelmind-gateway/internal/conversation"
	"github.com/2389/travelmind-gateway/internal/dedupe"
	"github.com/2389/travelmind-gateway/internal/store"
)

const (
	// IdempotencyKeyHeader lets a client retry POST /messages without running the turn twice
	IdempotencyKeyHeader = "X-Idempotency-Key"

	// ReplayedHeader is set on responses served from the idempotency cache
	ReplayedHeader = "Idempotent-Replayed"

	maxRequestBody = 64 << 10
)

// SendMessageRequest is the JSON body of POST /messages.
type SendMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// SendMessageResponse is the reply to a completed turn.
type SendMessageResponse struct {
	Response  string   `json:"response"`
	Citations []string `json:"citations"`
	SessionID string   `json:"session_id"`
}

// SessionResponse is the reply of GET /sessions/{sessionID}.
type SessionResponse struct {
	SessionID string          `json:"session_id"`
	Messages  []store.Message `json:"messages"`
}

// errorResponse is the body of every non-2xx reply
type errorResponse struct {
	Error         string `json:"error"`
	UserTurnSaved *bool  `json:"user_turn_saved,omitempty"`
}

// routes builds the API router. A nil verifier leaves the API open.
func (g *Gateway) routes(verifier auth.TokenVerifier) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(g.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: g.config.CORS.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", IdempotencyKeyHeader},
		ExposedHeaders: []string{ReplayedHeader, middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	// Health endpoint - no auth required
	r.Get("/health", g.handleHealth)

	r.Group(func(r chi.Router) {
		if verifier != nil {
			r.Use(auth.HTTPAuthMiddleware(verifier))
		} else {
			r.Use(auth.NoAuthMiddleware())
		}
		r.Get("/sessions/{sessionID}", g.handleGetSession)
		r.Post("/messages", g.handleSendMessage)
	})

	return r
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	g.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetSession returns the full message log of a session.
// GET /sessions/{sessionID}
func (g *Gateway) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := g.conversation.History(r.Context(), sessionID)
	if errors.Is(err, store.ErrInvalidSessionID) {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		g.logger.Error("failed to retrieve history", "error", err, "session_id", sessionID)
		g.sendJSONError(w, http.StatusInternalServerError, "Failed to retrieve history: "+err.Error())
		return
	}

	g.sendJSON(w, http.StatusOK, SessionResponse{
		SessionID: sessionID,
		Messages:  messages,
	})
}

// handleSendMessage runs one conversation turn.
// POST /messages
func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	req, err := parseSendRequest(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Keys are scoped to the session so two sessions can reuse a key
	var idemKey string
	if key := r.Header.Get(IdempotencyKeyHeader); key != "" {
		idemKey = req.SessionID + ":" + key
		cached, state := g.dedupe.Claim(idemKey)
		switch state {
		case dedupe.Completed:
			g.logger.Debug("replaying idempotent response", "session_id", req.SessionID)
			w.Header().Set(ReplayedHeader, "true")
			g.sendJSON(w, http.StatusOK, cached)
			return
		case dedupe.InFlight:
			g.sendJSONError(w, http.StatusConflict, "request with this idempotency key is in progress")
			return
		}
	}

	// Any exit without Complete, panics included, frees the key for a retry
	completed := false
	defer func() {
		if idemKey != "" && !completed {
			g.dedupe.Release(idemKey)
		}
	}()

	result, err := g.conversation.SendMessage(r.Context(), req.SessionID, req.Message)
	if err != nil {
		g.sendTurnError(w, err)
		return
	}

	resp := SendMessageResponse{
		Response:  result.Response,
		Citations: result.Citations,
		SessionID: result.SessionID,
	}
	if idemKey != "" {
		g.dedupe.Complete(idemKey, resp)
		completed = true
	}
	g.sendJSON(w, http.StatusOK, resp)
}

// sendTurnError maps a conversation error to a status code and message.
// Server errors report whether the user message was saved.
func (g *Gateway) sendTurnError(w http.ResponseWriter, err error) {
	if conversation.IsClientError(err) {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	message := "Internal error: " + err.Error()
	var turnErr *conversation.TurnError
	if errors.As(err, &turnErr) {
		cause := turnErr.Err.Error()
		switch {
		case errors.Is(turnErr.Kind, conversation.ErrHistoryUnavailable):
			message = "Failed to retrieve history: " + cause
		case errors.Is(turnErr.Kind, conversation.ErrPersistFailure) && turnErr.UserTurnSaved():
			message = "Failed to save model message: " + cause
		case errors.Is(turnErr.Kind, conversation.ErrPersistFailure):
			message = "Failed to save user message: " + cause
		case errors.Is(turnErr.Kind, conversation.ErrAgentExecutionFailure):
			message = "Agent execution failed: " + cause
		}
	}

	saved := conversation.UserTurnSaved(err)
	g.sendJSON(w, http.StatusInternalServerError, errorResponse{
		Error:         message,
		UserTurnSaved: &saved,
	})
}

// sendJSON writes v as a JSON response.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Warn("failed to write response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.sendJSON(w, status, errorResponse{Error: message})
}

// parseSendRequest decodes a SendMessageRequest. Field validation is left to
// the conversation service so that it happens in one place.
func parseSendRequest(r io.Reader) (*SendMessageRequest, error) {
	var req SendMessageRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	return &req, nil
}
