package router

import (
    "context"

    "go.uber.org/zap"

    "github.com/pradeepkb1906/MeshTalk/pkg/persist"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol"
    "github.com/pradeepkb1906/MeshTalk/pkg/statusbus"
    "github.com/pradeepkb1906/MeshTalk/pkg/transport"
)

// OnPeerConnected implements §4.5.6's on_peer_connected hook. It is called
// by the dispatcher whenever a transport reports (or upgrades) a link
// identity. Existing flags, counters, location, and the avatar color
// survive the upsert; connection state, transport, endpoint_id, and
// last_seen change, and so does the display name when one is given.
func (r *Router) OnPeerConnected(ctx context.Context, meshID string, endpoint transport.EndpointID, kind transport.Kind, displayName string) {
    if meshID == "" {
        return
    }
    r.reg.Note(meshID, kind, endpoint)

    existing, found, _ := r.store.Peers.GetByMeshID(meshID)
    p := persist.Peer{
        MeshID:          meshID,
        DisplayName:     displayName,
        EndpointID:      string(endpoint),
        ConnectionState: persist.StateConnected,
        Transport:       kind.String(),
        LastSeen:        protocol.NowMillis(),
    }
    if found {
        p.DeviceName = existing.DeviceName
        p.HopDistance = existing.HopDistance
        p.Latitude = existing.Latitude
        p.Longitude = existing.Longitude
        p.FirstSeen = existing.FirstSeen
        p.MessagesRelayed = existing.MessagesRelayed
        p.IsBlocked = existing.IsBlocked
        p.IsFavorite = existing.IsFavorite
        p.AvatarColor = existing.AvatarColor
        if p.DisplayName == "" {
            p.DisplayName = existing.DisplayName
        }
    } else {
        p.FirstSeen = p.LastSeen
    }

    if err := r.store.Peers.Upsert(p); err != nil {
        r.emitError("upsert connected peer %s: %v", meshID, err)
        return
    }
    r.bus.PublishUpdate(statusbus.StatusUpdate{Kind: statusbus.PeerConnected, Peer: p})
    r.triggerStoreAndForward(ctx, p)
    if err := r.BroadcastPeerAnnouncement(ctx, p.Latitude, p.Longitude); err != nil {
        zap.L().Warn("peer-connect announcement failed", zap.Error(err))
    }
}

// OnPeerDisconnected implements §4.5.6's on_peer_disconnected hook.
func (r *Router) OnPeerDisconnected(endpoint transport.EndpointID) {
    p, found, err := r.store.Peers.GetByEndpointID(string(endpoint))
    if err != nil {
        r.emitError("lookup peer by endpoint %s: %v", endpoint, err)
        return
    }
    if !found {
        return
    }
    r.reg.Forget(p.MeshID)
    if err := r.store.Peers.UpdateConnectionState(p.MeshID, persist.StateDisconnected); err != nil {
        r.emitError("mark peer %s disconnected: %v", p.MeshID, err)
        return
    }
    p.ConnectionState = persist.StateDisconnected
    r.bus.PublishUpdate(statusbus.StatusUpdate{Kind: statusbus.PeerDisconnected, Peer: p})
}
