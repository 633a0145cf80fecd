// ABOUTME: gRPC transport for agents: a client backend and a server registration helper
// ABOUTME: Messages are google.protobuf.Struct so no generated stubs are needed

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName    = "travelmind.agent.v1.Agent"
	generateMethod = "/" + serviceName + "/Generate"
)

// agentServer is the handler type registered with grpc
type agentServer interface {
	Generate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*agentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Generate", Handler: generateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "travelmind/agent/v1/agent.proto",
}

func generateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(agentServer).Generate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: generateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(agentServer).Generate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// grpcServer adapts an Agent to the wire service
type grpcServer struct {
	agent  Agent
	logger *slog.Logger
}

// RegisterServer exposes a on s as travelmind.agent.v1.Agent
func RegisterServer(s grpc.ServiceRegistrar, a Agent, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	s.RegisterService(&serviceDesc, &grpcServer{
		agent:  a,
		logger: logger.With("component", "agent-server"),
	})
}

func (g *grpcServer) Generate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	prompt := req.GetFields()["prompt"].GetStringValue()
	if strings.TrimSpace(prompt) == "" {
		return nil, status.Error(codes.InvalidArgument, "prompt is required")
	}

	result, err := g.agent.Generate(ctx, prompt)
	if err != nil {
		g.logger.Error("generation failed", "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, status.Error(codes.DeadlineExceeded, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	citations := make([]any, len(result.Citations))
	for i, c := range result.Citations {
		citations[i] = c
	}
	resp, err := structpb.NewStruct(map[string]any{
		"text":      result.Text,
		"citations": citations,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return resp, nil
}

// RemoteAgent calls an agent served over gRPC
type RemoteAgent struct {
	conn   *grpc.ClientConn
	logger *slog.Logger
}

// DialRemote creates a client for addr. The connection is established lazily
// on the first call, so an unreachable server surfaces as a Generate error.
func DialRemote(addr string, logger *slog.Logger, opts ...grpc.DialOption) (*RemoteAgent, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating grpc client for %s: %w", addr, err)
	}
	return &RemoteAgent{conn: conn, logger: logger}, nil
}

// Generate sends prompt to the remote agent
func (r *RemoteAgent) Generate(ctx context.Context, prompt string) (*Result, error) {
	req, err := structpb.NewStruct(map[string]any{"prompt": prompt})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	resp := new(structpb.Struct)
	if err := r.conn.Invoke(ctx, generateMethod, req, resp); err != nil {
		return nil, fmt.Errorf("calling remote agent: %w", err)
	}

	fields := resp.GetFields()
	text := fields["text"].GetStringValue()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	var uris []string
	for _, v := range fields["citations"].GetListValue().GetValues() {
		uris = append(uris, v.GetStringValue())
	}

	return &Result{Text: text, Citations: cleanCitations(uris)}, nil
}

// Close tears down the connection
func (r *RemoteAgent) Close() error {
	return r.conn.Close()
}
