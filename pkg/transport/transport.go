package transport

import (
    "context"
    "time"
)

// Kind identifies one of the four mesh link technologies.
type Kind int

const (
    KindUnknown Kind = iota
    KindNeighborDiscovery
    KindPairedRadio
    KindDirectIP
    KindAudioBeacon
)

func (k Kind) String() string {
    switch k {
    case KindNeighborDiscovery:
        return "neighbor-discovery"
    case KindPairedRadio:
        return "paired-radio"
    case KindDirectIP:
        return "direct-ip"
    case KindAudioBeacon:
        return "audio-beacon"
    default:
        return "unknown"
    }
}

// Priority ranks transports for outbound path selection, higher first:
// NeighborDiscovery > PairedRadio > DirectIP > AudioBeacon.
func (k Kind) Priority() int {
    switch k {
    case KindNeighborDiscovery:
        return 4
    case KindPairedRadio:
        return 3
    case KindDirectIP:
        return 2
    case KindAudioBeacon:
        return 1
    default:
        return 0
    }
}

// EndpointID is a transport-local handle for a remote peer. It may start
// as an opaque placeholder (e.g. a connection handle or synthetic id
// derived from detection) and be upgraded to the peer's true mesh_id once
// a packet carrying SenderID has been received over the link.
type EndpointID string

// PeerHandle pairs a transport-local endpoint with whatever mesh_id has
// been learned for it so far. MeshID is empty until the identity upgrade
// happens.
type PeerHandle struct {
    Endpoint EndpointID
    MeshID   string
}

// Quality captures link-health metrics a transport may expose; fields a
// transport cannot measure are left zero.
type Quality struct {
    RTT           time.Duration
    EstablishedAt time.Time
    LastSeen      time.Time
}

// PacketHandler is invoked by a transport with the raw encoded bytes it
// received from an endpoint. Decoding happens in the handler (the
// dispatcher), which skips bytes that fail to decode; a chunking
// transport may hand up a partially reassembled buffer.
type PacketHandler func(endpoint EndpointID, meshID string, raw []byte)

// IdentityUpgradeHandler is invoked when a transport learns the true
// mesh_id behind a previously-opaque endpoint handle.
type IdentityUpgradeHandler func(endpoint EndpointID, meshID string)

// DisconnectHandler is invoked when a transport determines an endpoint
// is no longer reachable: a read error on a stream-backed link, or a
// liveness timeout on a connectionless/presence-only one.
type DisconnectHandler func(endpoint EndpointID)

// Transport is the abstract contract every mesh link technology
// implements. A Transport owns its own background I/O; Start/Stop bound
// its lifecycle and On* register the dispatcher's callbacks before Start
// is called.
type Transport interface {
    Kind() Kind

    // OnPacket registers the callback invoked with the raw bytes of every
    // inbound packet (or reassembly buffer), before decoding.
    OnPacket(h PacketHandler)

    // OnIdentityUpgrade registers the callback invoked when an endpoint's
    // placeholder identity is resolved to a real mesh_id.
    OnIdentityUpgrade(h IdentityUpgradeHandler)

    // OnDisconnect registers the callback invoked when an endpoint is
    // judged no longer reachable, per §4.2's on_peer_disconnected slot.
    OnDisconnect(h DisconnectHandler)

    // Start begins whatever background listening/discovery loop the
    // transport needs. It must return promptly; ongoing work runs in
    // goroutines bound to ctx.
    Start(ctx context.Context) error

    // Stop shuts the transport down and releases its resources.
    Stop() error

    // Send transmits raw (already-encoded) bytes to the given endpoint.
    // Implementations apply their own chunking/framing rules internally.
    Send(ctx context.Context, endpoint EndpointID, raw []byte) error

    // Peers lists endpoints currently considered reachable.
    Peers() []PeerHandle

    // Quality reports link-health metrics for an endpoint, if known.
    Quality(endpoint EndpointID) Quality
}
