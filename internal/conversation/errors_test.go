// ABOUTME: Tests for TurnError matching and the user-turn-saved flag
// ABOUTME: Both the kind and the cause must be reachable through errors.Is

package conversation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2389/travelmind-gateway/internal/store"
)

func TestTurnError(t *testing.T) {
	cause := fmt.Errorf("%w: timeout", store.ErrStorageUnavailable)
	err := error(&TurnError{Kind: ErrPersistFailure, UserMessageID: "m1", Err: cause})

	assert.ErrorIs(t, err, ErrPersistFailure)
	assert.ErrorIs(t, err, store.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, ErrAgentExecutionFailure)
	assert.Equal(t, "failed to save message: storage unavailable: timeout", err.Error())
	assert.True(t, UserTurnSaved(err))

	wrapped := fmt.Errorf("handler: %w", err)
	assert.True(t, UserTurnSaved(wrapped))
}

func TestUserTurnSaved(t *testing.T) {
	assert.False(t, UserTurnSaved(nil))
	assert.False(t, UserTurnSaved(errors.New("plain")))
	assert.False(t, UserTurnSaved(&TurnError{Kind: ErrHistoryUnavailable, Err: errors.New("x")}))
}
