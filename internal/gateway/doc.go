// Package gateway orchestrates the travelmind-gateway server components.
//
// # Overview
//
// The gateway package is the central coordinator of the server. It owns the
// session store, the agent and the HTTP server, and exposes the chat API that
// the web and terminal clients talk to.
//
// # HTTP API
//
//	GET  /health                 liveness, always {"status":"ok"}
//	GET  /sessions/{sessionID}   {"session_id": ..., "messages": [...]}
//	POST /messages               {"session_id", "message"} -> {"response", "citations", "session_id"}
//
// An invalid session id or empty message is a 400. Downstream failures are a
// 500 whose body also carries "user_turn_saved", telling the client whether
// its message is already in the session log.
//
// When auth.jwt_secret is set, /sessions and /messages require a bearer token.
//
// # Idempotent Retries
//
// POST /messages honors an X-Idempotency-Key header, scoped to the session.
// A completed key replays the remembered response with Idempotent-Replayed:
// true; a key that is still running gets a 409; a failed turn releases it.
//
// # Listeners
//
// The API listens on server.http_addr, or on a tsnet node when Tailscale is
// enabled (plain :80, HTTPS :443 with tailnet certificates, or Funnel).
//
// # Lifecycle
//
//	gw, err := gateway.New(ctx, cfg, logger)
//	err = gw.Run(ctx) // blocks until ctx is canceled
//
// Run shuts down gracefully on cancellation: the HTTP server drains, then the
// agent and store are closed.
package gateway
