// Package webchat serves the browser chat for travel agents.
//
// It is a thin frontend: every page load fetches the session log from the
// gateway API, which is the only source of truth. Sending uses
// post/redirect/get, so a refresh never re-submits a message, and each
// submission carries a fresh idempotency key.
//
// Routes:
//
//	GET  /                    chat for ?session_id=..., redirecting to a new session when absent
//	GET  /new                 start a new session
//	POST /send                form post of session_id and message
//	GET  /health              liveness
//
// Messages are rendered from Markdown with goldmark. Raw HTML in a message is
// escaped. Citations of model replies are listed under "Sources:".
package webchat
