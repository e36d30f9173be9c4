package persist

import "time"

// MessageStore is the narrow interface the router uses for message
// durability. InsertIgnore must no-op (not error) on a packet_id that
// already exists.
type MessageStore interface {
    InsertIgnore(m MeshMessage) error
    Exists(packetID string) (bool, error)
    UpdateStatus(packetID string, status MessageStatus) error
    MarkAllRead(conversationID string) error
    GetUndeliveredForPeer(peerID string) ([]MeshMessage, error)
    GetRelayableSince(t time.Time) ([]MeshMessage, error)
    GetByPacketID(packetID string) (MeshMessage, bool, error)
    ObserveForConversation(conversationID string) <-chan MeshMessage
    DeleteOlderThan(t time.Time) (int, error)
}

// PeerStore is the narrow interface the router uses for peer durability.
type PeerStore interface {
    Upsert(p Peer) error
    GetByMeshID(meshID string) (Peer, bool, error)
    GetByEndpointID(endpointID string) (Peer, bool, error)
    UpdateConnectionState(meshID string, state ConnectionState) error
    GetConnectedList() ([]Peer, error)
    ObservePeer(meshID string) <-chan Peer
    MarkLost(threshold time.Duration) ([]Peer, error)
    DisconnectAll() error
}

// ConversationStore is the narrow interface the router uses for
// conversation durability.
type ConversationStore interface {
    Upsert(c Conversation) error
    GetByID(id string) (Conversation, bool, error)
    GetByPeerID(peerID string) (Conversation, bool, error)
    ObserveByID(id string) <-chan Conversation
    UpdateLastMessage(id, preview string, ts int64, incrementUnread bool) error
    ClearUnread(id string) error
}

// Store bundles the three persistence surfaces the router depends on.
type Store struct {
    Messages      MessageStore
    Peers         PeerStore
    Conversations ConversationStore
}
