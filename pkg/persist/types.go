// Package persist defines the narrow persistence contract the mesh
// router uses to read/write messages, peers, and conversations, plus a
// memkv-backed implementation for nodes running without an external
// database.
package persist

import "github.com/pradeepkb1906/MeshTalk/pkg/protocol"

// MessageStatus is the lifecycle state of a persisted MeshMessage.
type MessageStatus string

const (
    StatusSending  MessageStatus = "SENDING"
    StatusSent     MessageStatus = "SENT"
    StatusRelayed  MessageStatus = "RELAYED"
    StatusDelivered MessageStatus = "DELIVERED"
    StatusRead     MessageStatus = "READ"
    StatusFailed   MessageStatus = "FAILED"
)

// MeshMessage is the application-visible, persisted form of a packet.
type MeshMessage struct {
    PacketID      string               `json:"packet_id"`
    ConversationID string              `json:"conversation_id"`
    SenderID      string               `json:"sender_id"`
    SenderName    string               `json:"sender_name"`
    DestinationID string               `json:"destination_id"`
    ContentKind   protocol.ContentKind `json:"content_kind"`
    Content       string               `json:"content"`
    MediaInfo     *protocol.MediaInfo  `json:"media_info,omitempty"`
    Timestamp     int64                `json:"timestamp"`
    ReceivedAt    int64                `json:"received_at"`
    HopCount      int                  `json:"hop_count"`
    MaxHops       int                  `json:"max_hops"`
    Status        MessageStatus        `json:"status"`
    IsOutgoing    bool                 `json:"is_outgoing"`
    IsRead        bool                 `json:"is_read"`
}

// ConnectionState is a peer's current reachability state.
type ConnectionState string

const (
    StateDiscovered   ConnectionState = "DISCOVERED"
    StateConnecting   ConnectionState = "CONNECTING"
    StateConnected    ConnectionState = "CONNECTED"
    StateAuthenticated ConnectionState = "AUTHENTICATED"
    StateDisconnected ConnectionState = "DISCONNECTED"
    StateLost         ConnectionState = "LOST"
)

// Peer is the persisted, application-visible record of a mesh peer.
type Peer struct {
    MeshID          string          `json:"mesh_id"`
    DisplayName     string          `json:"display_name"`
    DeviceName      string          `json:"device_name"`
    EndpointID      string          `json:"endpoint_id"`
    ConnectionState ConnectionState `json:"connection_state"`
    Transport       string          `json:"transport"`
    SignalStrength  float32         `json:"signal_strength"`
    HopDistance     int             `json:"hop_distance"`
    Latitude        float64         `json:"latitude"`
    Longitude       float64         `json:"longitude"`
    LastSeen        int64           `json:"last_seen"`
    FirstSeen       int64           `json:"first_seen"`
    MessagesRelayed uint64          `json:"messages_relayed"`
    IsBlocked       bool            `json:"is_blocked"`
    IsFavorite      bool            `json:"is_favorite"`
    AvatarColor     string          `json:"avatar_color"`
}

// ConversationFlags holds the user-controlled flags on a Conversation.
type ConversationFlags struct {
    Pinned    bool `json:"pinned"`
    Muted     bool `json:"muted"`
    Broadcast bool `json:"broadcast"`
}

// BroadcastConversationID is the fixed id of the conversation every
// broadcast message is filed under.
const BroadcastConversationID = "broadcast"

// Conversation is the persisted thread a peer's (or broadcast) messages
// are filed under.
type Conversation struct {
    ID                 string            `json:"id"`
    PeerID             string            `json:"peer_id"`
    PeerName           string            `json:"peer_name"`
    LastMessagePreview string            `json:"last_message_preview"`
    LastMessageTime    int64             `json:"last_message_time"`
    UnreadCount        int               `json:"unread_count"`
    Flags              ConversationFlags `json:"flags"`
    CreatedAt          int64             `json:"created_at"`
    UpdatedAt          int64             `json:"updated_at"`
}
