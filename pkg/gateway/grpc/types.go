package grpcgw

import (
    "github.com/pradeepkb1906/MeshTalk/pkg/persist"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol"
    "github.com/pradeepkb1906/MeshTalk/pkg/statusbus"
)

// SendMessageRequest asks the local node to route a message to
// destinationID (or protocol.Broadcast).
type SendMessageRequest struct {
    DestinationID string
    Content       string
    ContentKind   protocol.ContentKind
    Media         *protocol.MediaInfo
}

// SendMessageResponse carries the message as persisted locally, with its
// minted packet_id and StatusSending/StatusSent status.
type SendMessageResponse struct {
    Message persist.MeshMessage
}

// SendSOSRequest asks the local node to broadcast an SOS message.
type SendSOSRequest struct {
    Message string
}

// SendSOSResponse mirrors SendMessageResponse for the SOS path.
type SendSOSResponse struct {
    Message persist.MeshMessage
}

// BroadcastPeerAnnouncementRequest asks the local node to announce its
// presence, optionally attaching a location fix.
type BroadcastPeerAnnouncementRequest struct {
    Latitude  float64
    Longitude float64
}

// BroadcastPeerAnnouncementResponse is empty; success is the absence of
// an RPC error.
type BroadcastPeerAnnouncementResponse struct{}

// StreamRequest is the empty request shared by the three status-bus
// streaming RPCs.
type StreamRequest struct{}

// IncomingMessageEvent wraps one value off the status bus's
// incoming_messages stream.
type IncomingMessageEvent struct {
    Message persist.MeshMessage
}

// StatusUpdateEvent wraps one value off the status bus's status_updates
// stream.
type StatusUpdateEvent struct {
    Update statusbus.StatusUpdate
}

// ConnectionStatusEvent wraps one value off the status bus's
// connection_status cell, including the initial replay on subscribe.
type ConnectionStatusEvent struct {
    Status statusbus.ConnectionStatus
}
