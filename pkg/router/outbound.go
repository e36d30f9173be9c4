package router

import (
    "context"
    "fmt"

    "github.com/pradeepkb1906/MeshTalk/pkg/persist"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol/codec"
)

// SendMessage implements §4.5.4: mint a packet, persist it as SENDING,
// update the owning conversation, emit it, then promote the persisted
// status to SENT. It always returns the message it built; persistence
// failures are logged and surfaced via the status bus rather than failing
// the call, per §7's "router's public API always completes".
func (r *Router) SendMessage(ctx context.Context, destinationID, content string, contentKind protocol.ContentKind, media *protocol.MediaInfo) (persist.MeshMessage, error) {
    localID, localName := r.identity()
    if localID == "" {
        return persist.MeshMessage{}, ErrNotInitialized
    }

    now := protocol.NowMillis()
    packetID := newPacketID()

    conversationID := destinationID
    if destinationID == protocol.Broadcast || destinationID == protocol.SOSBroadcast {
        conversationID = persist.BroadcastConversationID
    }
    r.ensureConversation(conversationID, destinationID, "")

    m := persist.MeshMessage{
        PacketID:       packetID,
        ConversationID: conversationID,
        SenderID:       localID,
        SenderName:     localName,
        DestinationID:  destinationID,
        ContentKind:    contentKind,
        Content:        content,
        MediaInfo:      media,
        Timestamp:      now,
        ReceivedAt:      now,
        HopCount:       0,
        MaxHops:        protocol.DefaultMaxHops,
        Status:         persist.StatusSending,
        IsOutgoing:     true,
        IsRead:         true,
    }
    if err := r.store.Messages.InsertIgnore(m); err != nil {
        r.emitError("persist outgoing message %s: %v", packetID, err)
        return m, nil
    }
    if err := r.store.Conversations.UpdateLastMessage(conversationID, preview(contentKind, content), now, false); err != nil {
        r.emitError("update conversation %s: %v", conversationID, err)
    }

    kind := protocol.KindMessage
    if contentKind == protocol.ContentSOS {
        kind = protocol.KindSOS
    }
    pkt := &protocol.MeshPacket{
        PacketID:      packetID,
        Version:       protocol.DefaultProtocolVersion,
        Kind:          kind,
        SenderID:      localID,
        SenderName:    localName,
        DestinationID: destinationID,
        HopCount:      0,
        MaxHops:       protocol.DefaultMaxHops,
        Timestamp:     now,
        ContentKind:   contentKind,
        Content:       content,
        MediaInfo:     media,
    }
    r.seen.Insert(packetID)
    r.emit(ctx, pkt)

    if err := r.store.Messages.UpdateStatus(packetID, persist.StatusSent); err != nil {
        r.emitError("promote message %s to SENT: %v", packetID, err)
    } else {
        m.Status = persist.StatusSent
    }
    return m, nil
}

// SendSOS implements §4.5.4's send_sos: SendMessage with ContentKind SOS
// addressed to the emergency broadcast sentinel, which SendMessage emits
// as a packet of kind SOS.
func (r *Router) SendSOS(ctx context.Context, message string) (persist.MeshMessage, error) {
    return r.SendMessage(ctx, protocol.SOSBroadcast, message, protocol.ContentSOS, nil)
}

// BroadcastPeerAnnouncement implements §4.5.4's broadcast_peer_announcement:
// a PEER_ANNOUNCE packet whose content is a serialized PeerAnnouncement,
// addressed to the broadcast sentinel.
func (r *Router) BroadcastPeerAnnouncement(ctx context.Context, latitude, longitude float64) error {
    localID, localName := r.identity()
    if localID == "" {
        return ErrNotInitialized
    }

    connected, err := r.store.Peers.GetConnectedList()
    if err != nil {
        r.emitError("list connected peers for announcement: %v", err)
    }

    ann := protocol.PeerAnnouncement{
        MeshID:             localID,
        DisplayName:        localName,
        Latitude:           latitude,
        Longitude:          longitude,
        ConnectedPeerCount: len(connected),
        ProtocolVersion:    protocol.DefaultProtocolVersion,
    }
    body, err := r.announcementCodecFallible()
    if err != nil {
        return err
    }
    content, err := body.Marshal(&ann)
    if err != nil {
        return fmt.Errorf("marshal peer announcement: %w", err)
    }

    pkt := &protocol.MeshPacket{
        PacketID:      newPacketID(),
        Version:       protocol.DefaultProtocolVersion,
        Kind:          protocol.KindPeerAnnounce,
        SenderID:      localID,
        SenderName:    localName,
        DestinationID: protocol.Broadcast,
        HopCount:      0,
        MaxHops:       protocol.DefaultMaxHops,
        Timestamp:     protocol.NowMillis(),
        ContentKind:   protocol.ContentPeerAnnounce,
        Content:       string(content),
    }
    r.seen.Insert(pkt.PacketID)
    r.emit(ctx, pkt)
    return nil
}

func (r *Router) announcementCodecFallible() (codec.Codec, error) {
    if c := r.codecReg.Get(codec.ContentCBOR); c != nil {
        return c, nil
    }
    c, err := codec.CBOR()
    if err != nil {
        return nil, fmt.Errorf("build cbor codec: %w", err)
    }
    return c, nil
}
