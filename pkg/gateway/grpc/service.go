package grpcgw

import (
    "context"

    "google.golang.org/grpc"
)

// ServiceName is the gRPC service path segment, mirrored in every
// FullMethod string below.
const ServiceName = "grpcgw.MeshControl"

// Server is implemented by the mesh node supervisor's gateway adapter
// (pkg/router.Router plus the status bus) and registered with a
// *grpc.Server via RegisterMeshControlServer.
type Server interface {
    SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
    SendSOS(context.Context, *SendSOSRequest) (*SendSOSResponse, error)
    BroadcastPeerAnnouncement(context.Context, *BroadcastPeerAnnouncementRequest) (*BroadcastPeerAnnouncementResponse, error)
    StreamIncoming(*StreamRequest, MeshControl_StreamIncomingServer) error
    StreamUpdates(*StreamRequest, MeshControl_StreamUpdatesServer) error
    StreamConnectionStatus(*StreamRequest, MeshControl_StreamConnectionStatusServer) error
}

// MeshControl_StreamIncomingServer is the server-side handle for the
// incoming_messages stream.
type MeshControl_StreamIncomingServer interface {
    Send(*IncomingMessageEvent) error
    grpc.ServerStream
}

// MeshControl_StreamUpdatesServer is the server-side handle for the
// status_updates stream.
type MeshControl_StreamUpdatesServer interface {
    Send(*StatusUpdateEvent) error
    grpc.ServerStream
}

// MeshControl_StreamConnectionStatusServer is the server-side handle for
// the connection_status stream.
type MeshControl_StreamConnectionStatusServer interface {
    Send(*ConnectionStatusEvent) error
    grpc.ServerStream
}

type streamIncomingServer struct{ grpc.ServerStream }

func (x *streamIncomingServer) Send(m *IncomingMessageEvent) error { return x.ServerStream.SendMsg(m) }

type streamUpdatesServer struct{ grpc.ServerStream }

func (x *streamUpdatesServer) Send(m *StatusUpdateEvent) error { return x.ServerStream.SendMsg(m) }

type streamConnectionStatusServer struct{ grpc.ServerStream }

func (x *streamConnectionStatusServer) Send(m *ConnectionStatusEvent) error {
    return x.ServerStream.SendMsg(m)
}

func sendMessageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
    in := new(SendMessageRequest)
    if err := dec(in); err != nil {
        return nil, err
    }
    if interceptor == nil {
        return srv.(Server).SendMessage(ctx, in)
    }
    info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/SendMessage"}
    handler := func(ctx context.Context, req any) (any, error) {
        return srv.(Server).SendMessage(ctx, req.(*SendMessageRequest))
    }
    return interceptor(ctx, in, info, handler)
}

func sendSOSHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
    in := new(SendSOSRequest)
    if err := dec(in); err != nil {
        return nil, err
    }
    if interceptor == nil {
        return srv.(Server).SendSOS(ctx, in)
    }
    info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/SendSOS"}
    handler := func(ctx context.Context, req any) (any, error) {
        return srv.(Server).SendSOS(ctx, req.(*SendSOSRequest))
    }
    return interceptor(ctx, in, info, handler)
}

func broadcastPeerAnnouncementHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
    in := new(BroadcastPeerAnnouncementRequest)
    if err := dec(in); err != nil {
        return nil, err
    }
    if interceptor == nil {
        return srv.(Server).BroadcastPeerAnnouncement(ctx, in)
    }
    info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/BroadcastPeerAnnouncement"}
    handler := func(ctx context.Context, req any) (any, error) {
        return srv.(Server).BroadcastPeerAnnouncement(ctx, req.(*BroadcastPeerAnnouncementRequest))
    }
    return interceptor(ctx, in, info, handler)
}

func streamIncomingHandler(srv any, stream grpc.ServerStream) error {
    in := new(StreamRequest)
    if err := stream.RecvMsg(in); err != nil {
        return err
    }
    return srv.(Server).StreamIncoming(in, &streamIncomingServer{stream})
}

func streamUpdatesHandler(srv any, stream grpc.ServerStream) error {
    in := new(StreamRequest)
    if err := stream.RecvMsg(in); err != nil {
        return err
    }
    return srv.(Server).StreamUpdates(in, &streamUpdatesServer{stream})
}

func streamConnectionStatusHandler(srv any, stream grpc.ServerStream) error {
    in := new(StreamRequest)
    if err := stream.RecvMsg(in); err != nil {
        return err
    }
    return srv.(Server).StreamConnectionStatus(in, &streamConnectionStatusServer{stream})
}

// serviceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would emit from a MeshControl service definition; it is driven by the
// CBOR codec override instead of generated proto message types.
var serviceDesc = grpc.ServiceDesc{
    ServiceName: ServiceName,
    HandlerType: (*Server)(nil),
    Methods: []grpc.MethodDesc{
        {MethodName: "SendMessage", Handler: sendMessageHandler},
        {MethodName: "SendSOS", Handler: sendSOSHandler},
        {MethodName: "BroadcastPeerAnnouncement", Handler: broadcastPeerAnnouncementHandler},
    },
    Streams: []grpc.StreamDesc{
        {StreamName: "StreamIncoming", Handler: streamIncomingHandler, ServerStreams: true},
        {StreamName: "StreamUpdates", Handler: streamUpdatesHandler, ServerStreams: true},
        {StreamName: "StreamConnectionStatus", Handler: streamConnectionStatusHandler, ServerStreams: true},
    },
    Metadata: "meshgateway.proto",
}

// RegisterMeshControlServer registers srv with s so RPCs route through
// the handlers above.
func RegisterMeshControlServer(s grpc.ServiceRegistrar, srv Server) {
    s.RegisterService(&serviceDesc, srv)
}
