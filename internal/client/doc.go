// Package client is the HTTP client of the travelmind-gateway chat API.
//
// The web chat and the terminal chat both use it:
//
//	c := client.New("http://localhost:8000", client.WithToken(client.LoadToken()))
//	reply, err := c.SendMessage(ctx, sessionID, "Quiero un viaje a Turquía", client.NewIdempotencyKey())
//	history, err := c.GetSession(ctx, sessionID)
//
// Any non-2xx reply is returned as *APIError. For a failed turn,
// UserTurnSaved tells the caller whether the message already shows up in the
// history; callers should re-fetch the history rather than assume either way.
package client
