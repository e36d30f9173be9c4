package grpcgw

import (
    "context"
    "net"
    "testing"
    "time"

    "github.com/stretchr/testify/require"
    "google.golang.org/grpc"
    "google.golang.org/grpc/credentials/insecure"
    "google.golang.org/grpc/test/bufconn"

    "github.com/pradeepkb1906/MeshTalk/pkg/persist"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol"
    "github.com/pradeepkb1906/MeshTalk/pkg/statusbus"
)

// fakeServer implements Server directly, bypassing the router, so the
// test exercises only the gRPC wiring and the CBOR codec override.
type fakeServer struct {
    bus *statusbus.Bus

    // updatesSubscribed, when set, is closed once StreamUpdates has
    // subscribed to the bus; status_updates has no replay, so a test must
    // not publish before then.
    updatesSubscribed chan struct{}
}

func (f *fakeServer) SendMessage(_ context.Context, in *SendMessageRequest) (*SendMessageResponse, error) {
    return &SendMessageResponse{Message: persist.MeshMessage{
        PacketID:      "pkt-1",
        DestinationID: in.DestinationID,
        Content:       in.Content,
        ContentKind:   in.ContentKind,
        Status:        persist.StatusSent,
    }}, nil
}

func (f *fakeServer) SendSOS(_ context.Context, in *SendSOSRequest) (*SendSOSResponse, error) {
    return &SendSOSResponse{Message: persist.MeshMessage{PacketID: "pkt-sos", Content: in.Message}}, nil
}

func (f *fakeServer) BroadcastPeerAnnouncement(_ context.Context, _ *BroadcastPeerAnnouncementRequest) (*BroadcastPeerAnnouncementResponse, error) {
    return &BroadcastPeerAnnouncementResponse{}, nil
}

func (f *fakeServer) StreamIncoming(_ *StreamRequest, stream MeshControl_StreamIncomingServer) error {
    for m := range f.bus.SubscribeIncoming() {
        if err := stream.Send(&IncomingMessageEvent{Message: m}); err != nil {
            return err
        }
    }
    return nil
}

func (f *fakeServer) StreamUpdates(_ *StreamRequest, stream MeshControl_StreamUpdatesServer) error {
    updates := f.bus.SubscribeUpdates()
    if f.updatesSubscribed != nil {
        close(f.updatesSubscribed)
    }
    for u := range updates {
        if err := stream.Send(&StatusUpdateEvent{Update: u}); err != nil {
            return err
        }
    }
    return nil
}

func (f *fakeServer) StreamConnectionStatus(_ *StreamRequest, stream MeshControl_StreamConnectionStatusServer) error {
    for s := range f.bus.SubscribeConnectionStatus() {
        if err := stream.Send(&ConnectionStatusEvent{Status: s}); err != nil {
            return err
        }
    }
    return nil
}

func startTestServer(t *testing.T, fs *fakeServer) *Client {
    t.Helper()
    lis := bufconn.Listen(1024 * 1024)
    s := grpc.NewServer()
    RegisterMeshControlServer(s, fs)
    go func() { _ = s.Serve(lis) }()
    t.Cleanup(s.Stop)

    dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
    cc, err := grpc.DialContext(context.Background(), "bufnet",
        grpc.WithContextDialer(dialer),
        grpc.WithTransportCredentials(insecure.NewCredentials()),
        DialOption(),
    )
    require.NoError(t, err)
    t.Cleanup(func() { _ = cc.Close() })
    return NewClient(cc)
}

func TestSendMessageRoundTrip(t *testing.T) {
    client := startTestServer(t, &fakeServer{bus: statusbus.New()})
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()

    resp, err := client.SendMessage(ctx, &SendMessageRequest{
        DestinationID: "pk:ed25519:abc",
        Content:       "hello mesh",
        ContentKind:   protocol.ContentText,
    })
    require.NoError(t, err)
    require.Equal(t, "hello mesh", resp.Message.Content)
    require.Equal(t, persist.StatusSent, resp.Message.Status)
}

func TestSendSOSRoundTrip(t *testing.T) {
    client := startTestServer(t, &fakeServer{bus: statusbus.New()})
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()

    resp, err := client.SendSOS(ctx, &SendSOSRequest{Message: "need help"})
    require.NoError(t, err)
    require.Equal(t, "need help", resp.Message.Content)
}

func TestStreamUpdatesDeliversPublishedEvent(t *testing.T) {
    bus := statusbus.New()
    fs := &fakeServer{bus: bus, updatesSubscribed: make(chan struct{})}
    client := startTestServer(t, fs)
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()

    stream, err := client.StreamUpdates(ctx)
    require.NoError(t, err)

    select {
    case <-fs.updatesSubscribed:
    case <-ctx.Done():
        t.Fatal("timed out waiting for the server to subscribe to status updates")
    }
    bus.PublishUpdate(statusbus.StatusUpdate{Kind: statusbus.PeerConnected, Peer: persist.Peer{MeshID: "pk:ed25519:xyz"}})

    evt, err := stream.Recv()
    require.NoError(t, err)
    require.Equal(t, statusbus.PeerConnected, evt.Update.Kind)
    require.Equal(t, "pk:ed25519:xyz", evt.Update.Peer.MeshID)
}
