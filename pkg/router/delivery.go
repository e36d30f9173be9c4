package router

import (
    "fmt"

    "go.uber.org/zap"

    "github.com/pradeepkb1906/MeshTalk/pkg/persist"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol"
    "github.com/pradeepkb1906/MeshTalk/pkg/statusbus"
)

const previewMaxLength = 100

// preview derives the short symbolic representation of a message's
// content shown in a conversation list, per §4.5.2.
func preview(kind protocol.ContentKind, content string) string {
    switch kind {
    case protocol.ContentText:
        if len(content) > previewMaxLength {
            return content[:previewMaxLength]
        }
        return content
    case protocol.ContentAudio:
        return "\U0001F3A4 Voice message"
    case protocol.ContentImage:
        return "\U0001F4F7 Photo"
    case protocol.ContentFile:
        return "\U0001F4CE File"
    case protocol.ContentLocation:
        return "\U0001F4CD Location"
    case protocol.ContentSOS:
        return "\U0001F6A8 SOS"
    default:
        return content
    }
}

// conversationIDFor resolves the conversation a packet belongs to: the
// fixed broadcast conversation for broadcast/SOS traffic, or the remote
// peer's own mesh_id otherwise.
func conversationIDFor(pkt *protocol.MeshPacket, localMeshID string) string {
    if pkt.DestinationID == protocol.Broadcast || pkt.DestinationID == protocol.SOSBroadcast {
        return persist.BroadcastConversationID
    }
    if pkt.SenderID == localMeshID {
        return pkt.DestinationID
    }
    return pkt.SenderID
}

// ensureConversation creates the conversation if missing and returns its
// peer name for use in preview updates.
func (r *Router) ensureConversation(conversationID, peerID, peerName string) {
    _, found, err := r.store.Conversations.GetByID(conversationID)
    if err != nil {
        r.emitError("lookup conversation %s: %v", conversationID, err)
        return
    }
    if found {
        return
    }
    c := persist.Conversation{
        ID:       conversationID,
        PeerID:   peerID,
        PeerName: peerName,
        Flags:    persist.ConversationFlags{Broadcast: conversationID == persist.BroadcastConversationID},
    }
    if err := r.store.Conversations.Upsert(c); err != nil {
        r.emitError("create conversation %s: %v", conversationID, err)
    }
}

// deliver persists an inbound or outbound message, ensures its
// conversation exists, updates the conversation preview, and emits it on
// the incoming_messages stream. incrementUnread is false for messages the
// local user sent.
func (r *Router) deliver(pkt *protocol.MeshPacket, incrementUnread bool) {
    localID, _ := r.identity()
    conversationID := conversationIDFor(pkt, localID)
    peerName := pkt.SenderName
    if pkt.SenderID == localID {
        peerName = ""
    }
    r.ensureConversation(conversationID, pkt.SenderID, peerName)

    m := persist.MeshMessage{
        PacketID:       pkt.PacketID,
        ConversationID: conversationID,
        SenderID:       pkt.SenderID,
        SenderName:     pkt.SenderName,
        DestinationID:  pkt.DestinationID,
        ContentKind:    pkt.ContentKind,
        Content:        pkt.Content,
        MediaInfo:      pkt.MediaInfo,
        Timestamp:      pkt.Timestamp,
        ReceivedAt:     protocol.NowMillis(),
        HopCount:       pkt.HopCount,
        MaxHops:        pkt.MaxHops,
        Status:         persist.StatusDelivered,
        IsOutgoing:     pkt.SenderID == localID,
        IsRead:         pkt.SenderID == localID,
    }
    if err := r.store.Messages.InsertIgnore(m); err != nil {
        r.emitError("persist message %s: %v", pkt.PacketID, fmt.Errorf("insert: %w", err))
        return
    }

    if err := r.store.Conversations.UpdateLastMessage(conversationID, preview(pkt.ContentKind, pkt.Content), pkt.Timestamp, incrementUnread); err != nil {
        zap.L().Warn("update conversation preview failed", zap.String("conversation_id", conversationID), zap.Error(err))
    }

    r.bus.PublishIncoming(m)
    r.bus.PublishUpdate(statusbus.StatusUpdate{Kind: statusbus.MessageReceived, PacketID: pkt.PacketID})
}
