// Package grpc implements the gRPC transport for securecall.
//
// This transport exposes the securecall.v1.SecureCall service for backend
// integrations that prefer strongly framed RPCs over REST. Messages are the
// same JSON documents the HTTP transport uses, carried with the "json" codec,
// so no generated stubs are needed. The standard gRPC health service is
// registered alongside it.
package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/securecall/internal/message"
	"github.com/nadzzz/securecall/internal/transport"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "securecall.v1.SecureCall"

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port   int
	server *grpc.Server
	health *health.Server
}

// New creates a new gRPC transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server and routes incoming requests to actions.
func (t *Transport) Listen(ctx context.Context, actions transport.Actions) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	slog.Info("grpc transport listening", "port", t.port)
	return t.serve(ctx, lis, actions)
}

func (t *Transport) serve(ctx context.Context, lis net.Listener, actions transport.Actions) error {
	t.server = grpc.NewServer()
	t.server.RegisterService(&serviceDesc, &service{actions: actions})

	t.health = health.NewServer()
	healthpb.RegisterHealthServer(t.server, t.health)
	t.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		t.health.Shutdown()
		t.server.GracefulStop()
	}()

	return t.server.Serve(lis)
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	if t.health != nil {
		t.health.Shutdown()
	}
	if t.server != nil {
		t.server.GracefulStop()
	}
	return nil
}

// service adapts Actions to unary RPC handlers.
type service struct {
	actions transport.Actions
}

// fail converts a failed result into a gRPC status error.
func fail(f message.Failure) error {
	if !f.Failed() {
		return nil
	}
	return status.Error(transport.GRPCCode(f.Kind), f.Error)
}

func (s *service) alterVoice(ctx context.Context, req *message.AlterVoiceRequest) (*message.AlterVoiceResult, error) {
	res := s.actions.AlterVoice(ctx, *req)
	if err := fail(res.Failure); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *service) saveProfile(ctx context.Context, req *message.SaveProfileRequest) (*message.SaveProfileResult, error) {
	res := s.actions.SaveProfile(ctx, *req)
	if err := fail(res.Failure); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *service) issueToken(ctx context.Context, req *message.TokenRequest) (*message.TokenResult, error) {
	res := s.actions.IssueToken(ctx, *req)
	if err := fail(res.Failure); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *service) placeCall(ctx context.Context, req *message.CallRequest) (*message.CallResult, error) {
	res := s.actions.PlaceCall(ctx, *req)
	if err := fail(res.Failure); err != nil {
		return nil, err
	}
	return res, nil
}

// unary builds a grpc.MethodDesc handler for a typed service method.
func unary[Req, Res any](name string, call func(*service, context.Context, *Req) (*Res, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			svc := srv.(*service)
			if interceptor == nil {
				return call(svc, ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
				return call(svc, ctx, req.(*Req))
			})
		},
	}
}

// securecallServer is the handler type checked by RegisterService.
type securecallServer interface {
	alterVoice(context.Context, *message.AlterVoiceRequest) (*message.AlterVoiceResult, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*securecallServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("AlterVoice", (*service).alterVoice),
		unary("SaveProfile", (*service).saveProfile),
		unary("IssueToken", (*service).issueToken),
		unary("PlaceCall", (*service).placeCall),
	},
	Metadata: "securecall/v1/securecall.proto",
}
