// ABOUTME: gRPC interceptor and client credentials for bearer tokens on the agent service
// ABOUTME: Lets a remote agent require the same JWTs the HTTP API accepts

package auth

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// logAuthFailure logs an authentication failure with structured context.
func logAuthFailure(logger *slog.Logger, ctx context.Context, reason string) {
	if logger == nil {
		return
	}
	attrs := []any{"reason", reason}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		attrs = append(attrs, "peer_addr", p.Addr.String())
	}
	logger.Warn("auth failure", attrs...)
}

// UnaryInterceptor returns a gRPC unary interceptor that requires a valid
// bearer token in the "authorization" metadata.
func UnaryInterceptor(tokens TokenVerifier, logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		var header string
		if values := md.Get("authorization"); len(values) > 0 {
			header = values[0]
		}

		token, errMsg := extractBearerToken(header)
		if errMsg != "" {
			logAuthFailure(logger, ctx, errMsg)
			return nil, status.Error(codes.Unauthenticated, errMsg)
		}

		subject, err := tokens.Verify(token)
		if err != nil {
			logAuthFailure(logger, ctx, err.Error())
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		return handler(WithAuth(ctx, &AuthContext{Subject: subject}), req)
	}
}

// bearerCredentials attaches a static bearer token to every RPC
type bearerCredentials struct {
	token string
}

// BearerCredentials returns per-RPC credentials sending token. Transport
// security is not required so it also works on tailnets and localhost.
func BearerCredentials(token string) credentials.PerRPCCredentials {
	return bearerCredentials{token: token}
}

func (b bearerCredentials) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}

func (b bearerCredentials) RequireTransportSecurity() bool {
	return false
}
