package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully-qualified gRPC service name.
//
// The service has no protobuf schema: messages are the Go types of this
// package encoded with the JSON codec. Clients must send the
// application/grpc+json content subtype (grpc.CallContentSubtype(CodecName)),
// which Client does. Reflection is not served, so generic tools such as
// grpcurl cannot call it.
const ServiceName = "snaphub.v1.ImageService"

// ImageServiceServer is the server API for ImageService.
type ImageServiceServer interface {
	List(context.Context, *Empty) (*ListResponse, error)
	Delete(context.Context, *DeleteRequest) (*Empty, error)
	Save(context.Context, *SaveRequest) (*SaveResponse, error)
	Cleanup(context.Context, *CleanupRequest) (*CleanupResponse, error)
	Clear(context.Context, *Empty) (*Empty, error)
	ResetHash(context.Context, *Empty) (*Empty, error)
	ReadFile(context.Context, *FileRequest) (*ReadFileResponse, error)
	CopyFile(context.Context, *FileRequest) (*Empty, error)
	SetOCR(context.Context, *SetOCRRequest) (*ImageResponse, error)
	Status(context.Context, *Empty) (*StatusResponse, error)
	Watch(*Empty, WatchServer) error
}

// WatchServer is the server side of the Watch stream.
type WatchServer interface {
	Send(*Event) error
	grpc.ServerStream
}

type watchServer struct{ grpc.ServerStream }

func (s *watchServer) Send(ev *Event) error { return s.ServerStream.SendMsg(ev) }

// Register adds srv to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv ImageServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

func method(name string) string { return "/" + ServiceName + "/" + name }

// unary builds the MethodDesc for one request/response method.
func unary[Req, Resp any](name string, call func(ImageServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(ImageServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ImageServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("List", ImageServiceServer.List),
		unary("Delete", ImageServiceServer.Delete),
		unary("Save", ImageServiceServer.Save),
		unary("Cleanup", ImageServiceServer.Cleanup),
		unary("Clear", ImageServiceServer.Clear),
		unary("ResetHash", ImageServiceServer.ResetHash),
		unary("ReadFile", ImageServiceServer.ReadFile),
		unary("CopyFile", ImageServiceServer.CopyFile),
		unary("SetOCR", ImageServiceServer.SetOCR),
		unary("Status", ImageServiceServer.Status),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(Empty)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(ImageServiceServer).Watch(in, &watchServer{stream})
			},
		},
	},
	Metadata: "snaphub/v1/images",
}
