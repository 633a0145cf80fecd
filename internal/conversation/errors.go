// ABOUTME: Failure kinds of a conversation turn and the TurnError that carries them
// ABOUTME: TurnError records whether the user message was saved before the failure

package conversation

import (
	"errors"
	"fmt"
)

// Failure kinds. Match with errors.Is against a returned error.
var (
	ErrHistoryUnavailable    = errors.New("failed to retrieve history")
	ErrPersistFailure        = errors.New("failed to save message")
	ErrAgentExecutionFailure = errors.New("agent execution failed")
)

// TurnError reports a turn that failed after validation.
// UserMessageID is set when the user message was already persisted.
type TurnError struct {
	Kind          error
	UserMessageID string
	Err           error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As
func (e *TurnError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// UserTurnSaved reports whether the user message is in the session log
func (e *TurnError) UserTurnSaved() bool {
	return e.UserMessageID != ""
}

// UserTurnSaved reports whether err is a TurnError raised after the user
// message was persisted.
func UserTurnSaved(err error) bool {
	var te *TurnError
	return errors.As(err, &te) && te.UserTurnSaved()
}
