// Package conversation runs the request/response cycle of a chat turn.
//
// A turn is strictly sequential:
//
//  1. validate the session id and message (no side effects on failure)
//  2. read the session history
//  3. save the user message
//  4. compose the prompt from the last HistoryWindow messages
//  5. call the agent
//  6. collect citations in the agent's order
//  7. save the model message with its citations
//  8. return the reply
//
// Failures after step 1 are returned as *TurnError. Its Kind is one of
// ErrHistoryUnavailable, ErrPersistFailure or ErrAgentExecutionFailure, and
// UserMessageID tells callers whether the user message was already saved.
package conversation
