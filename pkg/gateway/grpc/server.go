package grpcgw

import (
    "context"

    "github.com/pradeepkb1906/MeshTalk/pkg/router"
    "github.com/pradeepkb1906/MeshTalk/pkg/statusbus"
)

// NodeAdapter implements Server over a running Router and its Bus,
// letting the node supervisor register the mesh control surface with a
// single call to RegisterMeshControlServer.
type NodeAdapter struct {
    Router *router.Router
    Bus    *statusbus.Bus
}

func NewNodeAdapter(r *router.Router, bus *statusbus.Bus) *NodeAdapter {
    return &NodeAdapter{Router: r, Bus: bus}
}

func (a *NodeAdapter) SendMessage(ctx context.Context, in *SendMessageRequest) (*SendMessageResponse, error) {
    msg, err := a.Router.SendMessage(ctx, in.DestinationID, in.Content, in.ContentKind, in.Media)
    if err != nil {
        return nil, err
    }
    return &SendMessageResponse{Message: msg}, nil
}

func (a *NodeAdapter) SendSOS(ctx context.Context, in *SendSOSRequest) (*SendSOSResponse, error) {
    msg, err := a.Router.SendSOS(ctx, in.Message)
    if err != nil {
        return nil, err
    }
    return &SendSOSResponse{Message: msg}, nil
}

func (a *NodeAdapter) BroadcastPeerAnnouncement(ctx context.Context, in *BroadcastPeerAnnouncementRequest) (*BroadcastPeerAnnouncementResponse, error) {
    if err := a.Router.BroadcastPeerAnnouncement(ctx, in.Latitude, in.Longitude); err != nil {
        return nil, err
    }
    return &BroadcastPeerAnnouncementResponse{}, nil
}

func (a *NodeAdapter) StreamIncoming(_ *StreamRequest, stream MeshControl_StreamIncomingServer) error {
    ch := a.Bus.SubscribeIncoming()
    ctx := stream.Context()
    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case m, ok := <-ch:
            if !ok {
                return nil
            }
            if err := stream.Send(&IncomingMessageEvent{Message: m}); err != nil {
                return err
            }
        }
    }
}

func (a *NodeAdapter) StreamUpdates(_ *StreamRequest, stream MeshControl_StreamUpdatesServer) error {
    ch := a.Bus.SubscribeUpdates()
    ctx := stream.Context()
    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case u, ok := <-ch:
            if !ok {
                return nil
            }
            if err := stream.Send(&StatusUpdateEvent{Update: u}); err != nil {
                return err
            }
        }
    }
}

func (a *NodeAdapter) StreamConnectionStatus(_ *StreamRequest, stream MeshControl_StreamConnectionStatusServer) error {
    ch := a.Bus.SubscribeConnectionStatus()
    ctx := stream.Context()
    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case s, ok := <-ch:
            if !ok {
                return nil
            }
            if err := stream.Send(&ConnectionStatusEvent{Status: s}); err != nil {
                return err
            }
        }
    }
}
