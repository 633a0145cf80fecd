// Package auth provides bearer-token authentication for travelmind-gateway.
//
// Tokens are HS256 JWTs signed with auth.jwt_secret; the "sub" claim names
// the caller (an agency, a frontend deployment). When no secret is configured
// the API is open and handlers see the Anonymous context.
//
//   - HTTPAuthMiddleware guards /sessions and /messages
//   - UnaryInterceptor guards the gRPC agent service
//   - BearerCredentials sends a token from the gRPC agent client
//
// Mint tokens with "travelmind-gateway token --subject NAME".
package auth
