package router

import (
    "context"
    "time"

    "go.uber.org/zap"

    "github.com/pradeepkb1906/MeshTalk/pkg/persist"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol"
)

// triggerStoreAndForward re-emits every undelivered message addressed to
// peer, plus a get_relayable_since catch-up of recent mesh-wide
// broadcasts peer may have missed while offline, per §4.5.7. It runs
// whenever a peer transitions to CONNECTED or when its announcement is
// received; the original packet_id is preserved on the wire so the seen
// cache at every hop still treats it as a duplicate of the first
// attempt.
func (r *Router) triggerStoreAndForward(ctx context.Context, peer persist.Peer) {
    localID, localName := r.identity()
    targeted := peer.ConnectionState == persist.StateConnected
    kind, endpoint, haveLink := r.reg.Best(peer.MeshID)
    targeted = targeted && haveLink

    pending, err := r.store.Messages.GetUndeliveredForPeer(peer.MeshID)
    if err != nil {
        zap.L().Warn("store-and-forward lookup failed", zap.String("mesh_id", peer.MeshID), zap.Error(err))
    }
    for _, m := range pending {
        r.sendTargetedOrBroadcast(ctx, r.replayPacket(m, localID, localName), kind, endpoint, targeted)
    }

    if !haveLink {
        return
    }
    since := time.Now().Add(-r.getReplayWindow())
    relayable, err := r.store.Messages.GetRelayableSince(since)
    if err != nil {
        zap.L().Warn("store-and-forward relayable lookup failed", zap.String("mesh_id", peer.MeshID), zap.Error(err))
        return
    }
    for _, m := range relayable {
        if m.DestinationID != protocol.Broadcast && m.DestinationID != protocol.SOSBroadcast {
            continue
        }
        if m.SenderID == peer.MeshID {
            continue
        }
        raw, ok := r.encode(r.replayPacket(m, localID, localName))
        if !ok {
            continue
        }
        if err := r.sender.SendTargeted(ctx, kind, endpoint, raw); err != nil {
            zap.L().Warn("store-and-forward broadcast catch-up send failed",
                zap.String("mesh_id", peer.MeshID), zap.String("packet_id", m.PacketID), zap.Error(err))
        }
    }
}

// replayPacket rebuilds the wire packet for a previously-stored message,
// preserving its original packet_id, sender, and timestamp so every
// receiving hop's seen cache and conversation history treat it as the
// original message rather than a new one.
func (r *Router) replayPacket(m persist.MeshMessage, localID, localName string) *protocol.MeshPacket {
    senderID, senderName := m.SenderID, m.SenderName
    if senderID == "" {
        senderID, senderName = localID, localName
    }
    return &protocol.MeshPacket{
        PacketID:      m.PacketID,
        Version:       protocol.DefaultProtocolVersion,
        Kind:          protocol.KindMessage,
        SenderID:      senderID,
        SenderName:    senderName,
        DestinationID: m.DestinationID,
        HopCount:      0,
        MaxHops:       m.MaxHops,
        Timestamp:     m.Timestamp,
        ContentKind:   m.ContentKind,
        Content:       m.Content,
        MediaInfo:     m.MediaInfo,
    }
}
