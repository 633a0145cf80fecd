// ABOUTME: Service runs one conversation turn: history, user message, agent, model message
// ABOUTME: The user message is recorded before the agent runs and stays recorded if it fails

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/travelmind-gateway/internal/agent"
	"github.com/2389/travelmind-gateway/internal/store"
)

// persistTimeout bounds the model-message write, which outlives a canceled request
const persistTimeout = 5 * time.Second

// Service is the conversation layer between the API and the agent.
type Service struct {
	store  store.SessionStore
	agent  agent.Agent
	logger *slog.Logger
}

// New creates a new conversation Service
func New(sessions store.SessionStore, a agent.Agent, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  sessions,
		agent:  a,
		logger: logger.With("component", "conversation"),
	}
}

// TurnResult is the outcome of a successful turn
type TurnResult struct {
	Response       string
	Citations      []string
	SessionID      string
	UserMessageID  string
	ModelMessageID string
}

// History returns the session's messages. It is the read side of the API.
func (s *Service) History(ctx context.Context, sessionID string) ([]store.Message, error) {
	return s.store.GetSession(ctx, sessionID)
}

// SendMessage runs one turn for sessionID.
//
// Validation errors (store.ErrInvalidSessionID, store.ErrInvalidMessage) are
// returned before anything is read or written. Every later failure is a
// *TurnError. Record first, then act: the user message is saved before the
// agent is called, so an agent failure leaves it in the log without a reply.
func (s *Service) SendMessage(ctx context.Context, sessionID, message string) (*TurnResult, error) {
	// 1. Validate
	if err := store.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message is required", store.ErrInvalidMessage)
	}

	logger := s.logger.With("session_id", sessionID)

	// 2. History is read before the new message is written so it holds only prior turns
	history, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		logger.Error("failed to retrieve history", "error", err)
		return nil, &TurnError{Kind: ErrHistoryUnavailable, Err: err}
	}

	// 3. Record the user message
	userMessageID, err := s.store.SaveMessage(ctx, sessionID, store.Message{
		Role:    store.RoleUser,
		Content: message,
	})
	if err != nil {
		logger.Error("failed to save user message", "error", err)
		return nil, &TurnError{Kind: ErrPersistFailure, Err: err}
	}
	logger.Debug("user message recorded", "message_id", userMessageID, "history", len(history))

	// 4. Compose
	prompt := ComposePrompt(history, message)

	// 5. Generate
	start := time.Now()
	result, err := s.agent.Generate(ctx, prompt)
	if err == nil && (result == nil || strings.TrimSpace(result.Text) == "") {
		err = agent.ErrEmptyResponse
	}
	if err != nil {
		logger.Error("agent execution failed", "error", err, "message_id", userMessageID)
		return nil, &TurnError{Kind: ErrAgentExecutionFailure, UserMessageID: userMessageID, Err: err}
	}

	// 6. Citations keep the agent's order
	citations := make([]string, 0, len(result.Citations))
	for _, c := range result.Citations {
		if c != "" {
			citations = append(citations, c)
		}
	}
	if len(citations) == 0 {
		logger.Debug("reply has no citations", "message_id", userMessageID)
	}

	// 7. Record the reply. The user message is already stored, so finish the
	// turn even if the caller went away while the agent was running.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	modelMessageID, err := s.store.SaveMessage(persistCtx, sessionID, store.Message{
		Role:     store.RoleModel,
		Content:  result.Text,
		Metadata: &store.Metadata{Citations: citations},
	})
	if err != nil {
		logger.Error("failed to save model message", "error", err, "message_id", userMessageID)
		return nil, &TurnError{Kind: ErrPersistFailure, UserMessageID: userMessageID, Err: err}
	}

	logger.Info("turn complete",
		"user_message_id", userMessageID,
		"model_message_id", modelMessageID,
		"citations", len(citations),
		"agent_ms", time.Since(start).Milliseconds())

	// 8. Done
	return &TurnResult{
		Response:       result.Text,
		Citations:      citations,
		SessionID:      sessionID,
		UserMessageID:  userMessageID,
		ModelMessageID: modelMessageID,
	}, nil
}

// IsClientError reports whether err was caused by the request itself
func IsClientError(err error) bool {
	return errors.Is(err, store.ErrInvalidSessionID) || errors.Is(err, store.ErrInvalidMessage)
}
