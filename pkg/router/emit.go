package router

import (
    "context"

    "go.uber.org/zap"

    "github.com/pradeepkb1906/MeshTalk/pkg/persist"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol"
    "github.com/pradeepkb1906/MeshTalk/pkg/transport"
)

// emit performs the outbound path selection of §4.5.5: a concrete,
// currently CONNECTED destination is sent targeted over its best known
// transport; the broadcast and SOS sentinels, and any destination we
// have no live link for, fan out across every active transport.
func (r *Router) emit(ctx context.Context, pkt *protocol.MeshPacket) {
    raw, ok := r.encode(pkt)
    if !ok {
        return
    }

    if pkt.DestinationID == protocol.Broadcast || pkt.DestinationID == protocol.SOSBroadcast {
        r.sender.Broadcast(ctx, raw)
        return
    }

    peer, found, err := r.store.Peers.GetByMeshID(pkt.DestinationID)
    if err == nil && found && peer.ConnectionState == persist.StateConnected {
        if kind, endpoint, ok := r.reg.Best(pkt.DestinationID); ok {
            if sendErr := r.sender.SendTargeted(ctx, kind, endpoint, raw); sendErr == nil {
                return
            }
            zap.L().Warn("targeted send failed, falling back to broadcast",
                zap.String("destination", pkt.DestinationID), zap.String("kind", kind.String()))
        }
    }

    r.sender.Broadcast(ctx, raw)
}

// forward builds the next-hop copy of pkt and emits it, unless it has
// expired. Never called for packets the router itself originated.
func (r *Router) forward(ctx context.Context, pkt *protocol.MeshPacket) {
    if pkt.Expired() {
        return
    }
    localID, _ := r.identity()
    fwd := pkt.Forwarded(localID)
    if fwd.Expired() {
        return
    }
    r.emit(ctx, &fwd)
}

// sendTargetedOrBroadcast is used by store-and-forward when the caller
// has already resolved whether the destination is directly reachable,
// bypassing the peer-state lookup emit performs.
func (r *Router) sendTargetedOrBroadcast(ctx context.Context, pkt *protocol.MeshPacket, kind transport.Kind, endpoint transport.EndpointID, targeted bool) {
    raw, ok := r.encode(pkt)
    if !ok {
        return
    }
    if targeted {
        if err := r.sender.SendTargeted(ctx, kind, endpoint, raw); err == nil {
            return
        }
        zap.L().Warn("store-and-forward targeted send failed, broadcasting instead",
            zap.String("packet_id", pkt.PacketID))
    }
    r.sender.Broadcast(ctx, raw)
}
