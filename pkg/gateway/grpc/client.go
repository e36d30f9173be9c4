package grpcgw

import (
    "context"

    "google.golang.org/grpc"
)

// DialOption selects the CBOR codec override for every call issued
// through the returned connection; pass it to grpc.NewClient alongside
// the caller's transport credentials.
func DialOption() grpc.DialOption {
    return grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName))
}

// Client is a thin wrapper over a *grpc.ClientConn exposing the mesh
// control surface to an operator tool (cmd/meshctl).
type Client struct {
    cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error) {
    out := new(SendMessageResponse)
    if err := c.cc.Invoke(ctx, "/"+ServiceName+"/SendMessage", in, out, opts...); err != nil {
        return nil, err
    }
    return out, nil
}

func (c *Client) SendSOS(ctx context.Context, in *SendSOSRequest, opts ...grpc.CallOption) (*SendSOSResponse, error) {
    out := new(SendSOSResponse)
    if err := c.cc.Invoke(ctx, "/"+ServiceName+"/SendSOS", in, out, opts...); err != nil {
        return nil, err
    }
    return out, nil
}

func (c *Client) BroadcastPeerAnnouncement(ctx context.Context, in *BroadcastPeerAnnouncementRequest, opts ...grpc.CallOption) (*BroadcastPeerAnnouncementResponse, error) {
    out := new(BroadcastPeerAnnouncementResponse)
    if err := c.cc.Invoke(ctx, "/"+ServiceName+"/BroadcastPeerAnnouncement", in, out, opts...); err != nil {
        return nil, err
    }
    return out, nil
}

// MeshControl_StreamIncomingClient is the client-side handle for the
// incoming_messages stream.
type MeshControl_StreamIncomingClient interface {
    Recv() (*IncomingMessageEvent, error)
    grpc.ClientStream
}

type streamIncomingClient struct{ grpc.ClientStream }

func (x *streamIncomingClient) Recv() (*IncomingMessageEvent, error) {
    m := new(IncomingMessageEvent)
    if err := x.ClientStream.RecvMsg(m); err != nil {
        return nil, err
    }
    return m, nil
}

func (c *Client) StreamIncoming(ctx context.Context, opts ...grpc.CallOption) (MeshControl_StreamIncomingClient, error) {
    stream, err := newClientStream(ctx, c.cc, &serviceDesc.Streams[0], "/"+ServiceName+"/StreamIncoming", opts...)
    if err != nil {
        return nil, err
    }
    return &streamIncomingClient{stream}, nil
}

// MeshControl_StreamUpdatesClient is the client-side handle for the
// status_updates stream.
type MeshControl_StreamUpdatesClient interface {
    Recv() (*StatusUpdateEvent, error)
    grpc.ClientStream
}

type streamUpdatesClient struct{ grpc.ClientStream }

func (x *streamUpdatesClient) Recv() (*StatusUpdateEvent, error) {
    m := new(StatusUpdateEvent)
    if err := x.ClientStream.RecvMsg(m); err != nil {
        return nil, err
    }
    return m, nil
}

func (c *Client) StreamUpdates(ctx context.Context, opts ...grpc.CallOption) (MeshControl_StreamUpdatesClient, error) {
    stream, err := newClientStream(ctx, c.cc, &serviceDesc.Streams[1], "/"+ServiceName+"/StreamUpdates", opts...)
    if err != nil {
        return nil, err
    }
    return &streamUpdatesClient{stream}, nil
}

// MeshControl_StreamConnectionStatusClient is the client-side handle for
// the connection_status stream.
type MeshControl_StreamConnectionStatusClient interface {
    Recv() (*ConnectionStatusEvent, error)
    grpc.ClientStream
}

type streamConnectionStatusClient struct{ grpc.ClientStream }

func (x *streamConnectionStatusClient) Recv() (*ConnectionStatusEvent, error) {
    m := new(ConnectionStatusEvent)
    if err := x.ClientStream.RecvMsg(m); err != nil {
        return nil, err
    }
    return m, nil
}

func (c *Client) StreamConnectionStatus(ctx context.Context, opts ...grpc.CallOption) (MeshControl_StreamConnectionStatusClient, error) {
    stream, err := newClientStream(ctx, c.cc, &serviceDesc.Streams[2], "/"+ServiceName+"/StreamConnectionStatus", opts...)
    if err != nil {
        return nil, err
    }
    return &streamConnectionStatusClient{stream}, nil
}

// newClientStream opens the stream and immediately sends the shared
// empty StreamRequest, since every status-bus stream takes no arguments
// beyond "subscribe".
func newClientStream(ctx context.Context, cc grpc.ClientConnInterface, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
    stream, err := cc.NewStream(ctx, desc, method, opts...)
    if err != nil {
        return nil, err
    }
    if err := stream.SendMsg(&StreamRequest{}); err != nil {
        return nil, err
    }
    if err := stream.CloseSend(); err != nil {
        return nil, err
    }
    return stream, nil
}
