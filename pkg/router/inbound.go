package router

import (
    "context"

    "go.uber.org/zap"

    "github.com/pradeepkb1906/MeshTalk/pkg/persist"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol"
    "github.com/pradeepkb1906/MeshTalk/pkg/statusbus"
    "github.com/pradeepkb1906/MeshTalk/pkg/transport"
)

// HandleInbound runs the inbound pipeline of §4.5.1 for one packet
// received by the dispatcher over fromKind/fromEndpoint. It always
// completes; every failure is logged and converted to a status_updates
// Error event rather than returned.
func (r *Router) HandleInbound(ctx context.Context, pkt *protocol.MeshPacket, fromEndpoint transport.EndpointID, fromKind transport.Kind) {
    if pkt == nil {
        return
    }

    // Step 1: duplicate check.
    if r.seen.Contains(pkt.PacketID) {
        return
    }
    // Step 2: mark seen, before any further processing, so concurrent
    // duplicates of this packet_id see it on their own duplicate check.
    r.seen.Insert(pkt.PacketID)

    // Step 3: TTL check.
    if pkt.Expired() {
        return
    }

    localID, _ := r.identity()

    // Step 4: loop check.
    if pkt.ContainsHop(localID) {
        return
    }

    // Record this endpoint's reachability for the sender while we have
    // it, regardless of kind: any packet proves the sender is live on
    // this link.
    if pkt.SenderID != "" {
        r.reg.Note(pkt.SenderID, fromKind, fromEndpoint)
    }

    switch pkt.Kind {
    case protocol.KindMessage:
        r.handleMessage(ctx, pkt, localID)
    case protocol.KindAck:
        r.handleAck(ctx, pkt, localID)
    case protocol.KindPeerAnnounce:
        r.handlePeerAnnounce(ctx, pkt, fromEndpoint, fromKind)
    case protocol.KindPeerLeave:
        r.handlePeerLeave(ctx, pkt)
    case protocol.KindPing:
        r.handlePing(ctx, pkt, localID)
    case protocol.KindPong:
        // No-op beyond the presence update already recorded above.
    case protocol.KindSOS:
        r.handleSOS(ctx, pkt, localID)
    case protocol.KindMediaChunk:
        r.handleMessage(ctx, pkt, localID)
    case protocol.KindRouteRequest:
        r.handleRouteRequest(ctx, pkt, localID)
    case protocol.KindRouteReply:
        r.handleRouteReply(ctx, pkt, localID)
    case protocol.KindRelayTable:
        zap.L().Debug("relay_table received, advisory only", zap.String("sender_id", pkt.SenderID))
    default:
        zap.L().Debug("dropping packet of unknown kind", zap.Any("kind", pkt.Kind))
    }
}

func (r *Router) handleMessage(ctx context.Context, pkt *protocol.MeshPacket, localID string) {
    forUs := pkt.DestinationID == localID
    isBroadcast := pkt.DestinationID == protocol.Broadcast

    if forUs || isBroadcast {
        r.deliver(pkt, true)
        if forUs {
            r.sendAck(ctx, pkt, localID)
        }
    }
    if isBroadcast || !forUs {
        r.forward(ctx, pkt)
    }
}

func (r *Router) sendAck(ctx context.Context, pkt *protocol.MeshPacket, localID string) {
    ack := &protocol.MeshPacket{
        PacketID:       newPacketID(),
        Version:        protocol.DefaultProtocolVersion,
        Kind:           protocol.KindAck,
        SenderID:       localID,
        DestinationID:  pkt.SenderID,
        HopCount:       0,
        MaxHops:        protocol.DefaultMaxHops,
        Timestamp:      protocol.NowMillis(),
        ContentKind:    protocol.ContentAck,
        AckForPacketID: pkt.PacketID,
    }
    r.seen.Insert(ack.PacketID)
    r.emit(ctx, ack)
}

func (r *Router) handleAck(ctx context.Context, pkt *protocol.MeshPacket, localID string) {
    if pkt.DestinationID != localID {
        r.forward(ctx, pkt)
        return
    }
    if err := r.store.Messages.UpdateStatus(pkt.AckForPacketID, persist.StatusDelivered); err != nil {
        zap.L().Warn("ack update failed", zap.String("packet_id", pkt.AckForPacketID), zap.Error(err))
        return
    }
    r.bus.PublishUpdate(statusbus.StatusUpdate{Kind: statusbus.MessageDelivered, PacketID: pkt.AckForPacketID})
}

func (r *Router) handlePeerAnnounce(ctx context.Context, pkt *protocol.MeshPacket, fromEndpoint transport.EndpointID, fromKind transport.Kind) {
    var ann protocol.PeerAnnouncement
    if err := r.decodeAnnouncement(pkt.Content, &ann); err != nil {
        zap.L().Debug("malformed peer_announce payload dropped", zap.Error(err))
        return
    }
    if ann.MeshID == "" {
        ann.MeshID = pkt.SenderID
    }

    existing, found, _ := r.store.Peers.GetByMeshID(ann.MeshID)
    state := persist.StateDiscovered
    if pkt.HopCount == 0 {
        state = persist.StateConnected
    }

    p := persist.Peer{
        MeshID:          ann.MeshID,
        DisplayName:     ann.DisplayName,
        DeviceName:      ann.DeviceName,
        EndpointID:      string(fromEndpoint),
        ConnectionState: state,
        Transport:       fromKind.String(),
        HopDistance:     pkt.HopCount,
        Latitude:        ann.Latitude,
        Longitude:       ann.Longitude,
        LastSeen:        protocol.NowMillis(),
    }
    if found {
        p.FirstSeen = existing.FirstSeen
        p.MessagesRelayed = existing.MessagesRelayed
        p.IsBlocked = existing.IsBlocked
        p.IsFavorite = existing.IsFavorite
        p.AvatarColor = existing.AvatarColor
    } else {
        p.FirstSeen = p.LastSeen
    }

    if err := r.store.Peers.Upsert(p); err != nil {
        r.emitError("upsert peer %s: %v", p.MeshID, err)
        return
    }
    r.bus.PublishUpdate(statusbus.StatusUpdate{Kind: statusbus.PeerDiscovered, Peer: p})
    r.triggerStoreAndForward(ctx, p)
    r.forward(ctx, pkt)
}

func (r *Router) decodeAnnouncement(content string, out *protocol.PeerAnnouncement) error {
    c, err := r.announcementCodecFallible()
    if err != nil {
        return err
    }
    return c.Unmarshal([]byte(content), out)
}

func (r *Router) handlePeerLeave(ctx context.Context, pkt *protocol.MeshPacket) {
    if err := r.store.Peers.UpdateConnectionState(pkt.SenderID, persist.StateDisconnected); err != nil {
        zap.L().Warn("peer_leave update failed", zap.String("sender_id", pkt.SenderID), zap.Error(err))
    } else if p, found, _ := r.store.Peers.GetByMeshID(pkt.SenderID); found {
        r.bus.PublishUpdate(statusbus.StatusUpdate{Kind: statusbus.PeerDisconnected, Peer: p})
    }
    r.forward(ctx, pkt)
}

func (r *Router) handlePing(ctx context.Context, pkt *protocol.MeshPacket, localID string) {
    if pkt.DestinationID != localID {
        r.forward(ctx, pkt)
        return
    }
    pong := &protocol.MeshPacket{
        PacketID:      newPacketID(),
        Version:       protocol.DefaultProtocolVersion,
        Kind:          protocol.KindPong,
        SenderID:      localID,
        DestinationID: pkt.SenderID,
        MaxHops:       protocol.DefaultMaxHops,
        Timestamp:     protocol.NowMillis(),
        ContentKind:   protocol.ContentPing,
    }
    r.seen.Insert(pong.PacketID)
    r.emit(ctx, pong)
}

func (r *Router) handleSOS(ctx context.Context, pkt *protocol.MeshPacket, localID string) {
    if pkt.SenderID != localID {
        r.deliver(pkt, true)
        r.bus.PublishUpdate(statusbus.StatusUpdate{Kind: statusbus.SOSReceived, SenderName: pkt.SenderName, Message: pkt.Content})
    }
    r.forward(ctx, pkt)
}

func (r *Router) handleRouteRequest(ctx context.Context, pkt *protocol.MeshPacket, localID string) {
    if peer, found, _ := r.store.Peers.GetByMeshID(pkt.DestinationID); found && peer.ConnectionState == persist.StateConnected {
        reply := &protocol.MeshPacket{
            PacketID:      newPacketID(),
            Version:       protocol.DefaultProtocolVersion,
            Kind:          protocol.KindRouteReply,
            SenderID:      localID,
            DestinationID: pkt.SenderID,
            MaxHops:       protocol.DefaultMaxHops,
            Timestamp:     protocol.NowMillis(),
            ContentKind:   protocol.ContentUnknown,
            Content:       pkt.DestinationID,
        }
        r.seen.Insert(reply.PacketID)
        r.emit(ctx, reply)
    }
    r.forward(ctx, pkt)
}

func (r *Router) handleRouteReply(ctx context.Context, pkt *protocol.MeshPacket, localID string) {
    if pkt.DestinationID != localID {
        r.forward(ctx, pkt)
        return
    }
    zap.L().Debug("route_reply noted", zap.String("sender_id", pkt.SenderID), zap.String("target", pkt.Content))
}
