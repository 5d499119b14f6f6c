package grpcexec

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	executor "github.com/hanpama/gqlmux/internal/executor"
)

const methodExecute = "Execute"

// Backend is implemented by execution services that accept operations from
// this executor. Requests and responses travel as google.protobuf.Struct.
type Backend interface {
	Execute(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the backend service under name. Backends register it
// with RegisterBackend.
func ServiceDesc(name string) *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: name,
		HandlerType: (*Backend)(nil),
		Methods: []grpc.MethodDesc{{
			MethodName: methodExecute,
			Handler:    executeHandler(name),
		}},
		Streams: []grpc.StreamDesc{},
	}
}

func executeHandler(service string) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return srv.(Backend).Execute(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + service + "/" + methodExecute}
		handler := func(ctx context.Context, req any) (any, error) {
			return srv.(Backend).Execute(ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterBackend registers b on s under DefaultService, or under service when given.
func RegisterBackend(s grpc.ServiceRegistrar, b Backend, service ...string) {
	name := DefaultService
	if len(service) > 0 && service[0] != "" {
		name = service[0]
	}
	s.RegisterService(ServiceDesc(name), b)
}

// BackendFunc adapts a function into a Backend.
type BackendFunc func(ctx context.Context, req executor.Request) (*executor.Result, error)

func (f BackendFunc) Execute(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	res, err := f(ctx, DecodeRequest(in))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, status.Error(codes.Internal, "grpcexec: backend returned no result")
	}
	return EncodeResult(res)
}
