// Package protocol defines the wire-level MeshPacket envelope and its
// encoding.
package protocol

import "time"

// Kind enumerates the packet types carried across the mesh.
type Kind uint8

const (
    KindUnknown Kind = iota
    KindMessage
    KindAck
    KindPeerAnnounce
    KindPeerLeave
    KindPing
    KindPong
    KindRouteRequest
    KindRouteReply
    KindMediaChunk
    KindSOS
    KindRelayTable
)

func (k Kind) String() string {
    switch k {
    case KindMessage:
        return "MESSAGE"
    case KindAck:
        return "ACK"
    case KindPeerAnnounce:
        return "PEER_ANNOUNCE"
    case KindPeerLeave:
        return "PEER_LEAVE"
    case KindPing:
        return "PING"
    case KindPong:
        return "PONG"
    case KindRouteRequest:
        return "ROUTE_REQUEST"
    case KindRouteReply:
        return "ROUTE_REPLY"
    case KindMediaChunk:
        return "MEDIA_CHUNK"
    case KindSOS:
        return "SOS"
    case KindRelayTable:
        return "RELAY_TABLE"
    default:
        return "UNKNOWN"
    }
}

// ContentKind classifies the packet's content payload.
type ContentKind uint8

const (
    ContentUnknown ContentKind = iota
    ContentText
    ContentAudio
    ContentImage
    ContentFile
    ContentLocation
    ContentAck
    ContentPeerAnnounce
    ContentPing
    ContentSOS
)

func (c ContentKind) String() string {
    switch c {
    case ContentText:
        return "TEXT"
    case ContentAudio:
        return "AUDIO"
    case ContentImage:
        return "IMAGE"
    case ContentFile:
        return "FILE"
    case ContentLocation:
        return "LOCATION"
    case ContentAck:
        return "ACK"
    case ContentPeerAnnounce:
        return "PEER_ANNOUNCE"
    case ContentPing:
        return "PING"
    case ContentSOS:
        return "SOS"
    default:
        return "UNKNOWN"
    }
}

// Sentinel destination identities.
const (
    Broadcast    = "BROADCAST"
    SOSBroadcast = "SOS_BROADCAST"
)

// DefaultMaxHops and DefaultProtocolVersion are the wire defaults from §6.
const (
    DefaultMaxHops         = 7
    DefaultProtocolVersion = 1
)

// Wire size limits from §4.1 and §6.
const (
    MaxCorePayload  = 64 * 1024
    MaxMediaPayload = 256 * 1024
    MaxDirectIPFrame = 10_000_000
)

// MediaInfo describes an attached media payload.
type MediaInfo struct {
    FileName    string `cbor:"fn,omitempty" json:"file_name,omitempty"`
    MimeType    string `cbor:"mt,omitempty" json:"mime_type,omitempty"`
    TotalSize   int64  `cbor:"ts,omitempty" json:"total_size,omitempty"`
    ChunkIndex  int    `cbor:"ci,omitempty" json:"chunk_index,omitempty"`
    TotalChunks int    `cbor:"tc,omitempty" json:"total_chunks,omitempty"`
    Checksum    string `cbor:"ck,omitempty" json:"checksum,omitempty"`
}

// PeerAnnouncement is the payload carried inside a PEER_ANNOUNCE packet.
type PeerAnnouncement struct {
    MeshID             string   `cbor:"id" json:"mesh_id"`
    DisplayName        string   `cbor:"dn,omitempty" json:"display_name,omitempty"`
    DeviceName         string   `cbor:"dv,omitempty" json:"device_name,omitempty"`
    Latitude           float64  `cbor:"lat,omitempty" json:"latitude,omitempty"`
    Longitude          float64  `cbor:"lon,omitempty" json:"longitude,omitempty"`
    Capabilities       []string `cbor:"cap,omitempty" json:"capabilities,omitempty"`
    ConnectedPeerCount int      `cbor:"cpc,omitempty" json:"connected_peer_count,omitempty"`
    BatteryLevel       int      `cbor:"bat,omitempty" json:"battery_level,omitempty"`
    ProtocolVersion    int      `cbor:"pv,omitempty" json:"protocol_version,omitempty"`
}

// MeshPacket is the sole wire-level envelope exchanged between nodes.
//
// Field tags are kept short deliberately: the CBOR codec is the primary
// wire format and short map keys shave bytes off every hop.
type MeshPacket struct {
    PacketID        string      `cbor:"id" json:"packet_id"`
    Version         int         `cbor:"v" json:"version"`
    Kind            Kind        `cbor:"k" json:"kind"`
    SenderID        string      `cbor:"sid" json:"sender_id"`
    SenderName      string      `cbor:"sn,omitempty" json:"sender_name,omitempty"`
    DestinationID   string      `cbor:"did" json:"destination_id"`
    HopCount        int         `cbor:"hc" json:"hop_count"`
    MaxHops         int         `cbor:"mh" json:"max_hops"`
    Timestamp       int64       `cbor:"ts" json:"timestamp"`
    PreviousHop     string      `cbor:"ph,omitempty" json:"previous_hop,omitempty"`
    RoutePath       []string    `cbor:"rp,omitempty" json:"route_path,omitempty"`
    ContentKind     ContentKind `cbor:"ck" json:"content_kind"`
    Content         string      `cbor:"c,omitempty" json:"content,omitempty"`
    MediaInfo       *MediaInfo  `cbor:"mi,omitempty" json:"media_info,omitempty"`
    AckForPacketID  string      `cbor:"afp,omitempty" json:"ack_for_packet_id,omitempty"`
}

// Expired reports whether the packet has exhausted its hop budget and must
// never be forwarded again.
func (p *MeshPacket) Expired() bool { return p.HopCount >= p.MaxHops }

// ContainsHop reports whether id appears in the packet's traversal history,
// i.e. as the sender or anywhere in route_path.
func (p *MeshPacket) ContainsHop(id string) bool {
    if p.SenderID == id {
        return true
    }
    for _, h := range p.RoutePath {
        if h == id {
            return true
        }
    }
    return false
}

// Forwarded returns a copy of p advanced by one hop at forwarder.
// hop_count increments, previous_hop becomes forwarder, route_path gains
// forwarder appended; every other field is unchanged, per §8.
func (p *MeshPacket) Forwarded(forwarder string) MeshPacket {
    out := *p
    out.HopCount = p.HopCount + 1
    out.PreviousHop = forwarder
    out.RoutePath = append(append([]string(nil), p.RoutePath...), forwarder)
    return out
}

// NowMillis returns the current wall-clock time in epoch milliseconds.
// Indirected through a variable so tests can inject a deterministic clock.
var NowMillis = func() int64 { return time.Now().UnixMilli() }
