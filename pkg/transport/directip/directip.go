// Package directip implements the DirectIP mesh transport: a TCP-framed
// link between two nodes reachable over a normal IP path (typically a
// P2P hotspot or local Wi-Fi), using the length-prefixed framing also
// used for the wire format in general.
package directip

import (
    "context"
    "crypto/ed25519"
    "fmt"
    "net"
    "sync"
    "time"

    "go.uber.org/zap"

    "github.com/pradeepkb1906/MeshTalk/pkg/protocol"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol/codec"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol/stream"
    "github.com/pradeepkb1906/MeshTalk/pkg/transport"
)

// DialTimeout bounds an outbound DirectIP connect attempt.
const DialTimeout = 10 * time.Second

// Transport is a TCP-backed DirectIP link. It both listens for inbound
// connections (address given to Listen) and dials peers supplied via Dial.
type Transport struct {
    reg *codec.Registry

    mu       sync.Mutex
    conns    map[transport.EndpointID]*peerConn
    listener net.Listener

    onPacket     transport.PacketHandler
    onUpgrade    transport.IdentityUpgradeHandler
    onDisconnect transport.DisconnectHandler

    identityKey ed25519.PrivateKey
    displayName string
}

type peerConn struct {
    conn *stream.Conn
    net  net.Conn
    mu   sync.Mutex
}

// New builds a DirectIP transport. It accepts inbound connections only
// after Listen is called; without it the node is dial-only.
func New(reg *codec.Registry) *Transport {
    return &Transport{reg: reg, conns: make(map[transport.EndpointID]*peerConn)}
}

func (t *Transport) Kind() transport.Kind { return transport.KindDirectIP }

func (t *Transport) OnPacket(h transport.PacketHandler)                 { t.onPacket = h }
func (t *Transport) OnIdentityUpgrade(h transport.IdentityUpgradeHandler) { t.onUpgrade = h }
func (t *Transport) OnDisconnect(h transport.DisconnectHandler)         { t.onDisconnect = h }

// SetIdentity enables the signed Hello handshake on newly adopted
// connections. Without it, identity upgrades rely solely on the
// dispatcher reporting a decoded packet's SenderID.
func (t *Transport) SetIdentity(priv ed25519.PrivateKey, displayName string) {
    t.identityKey = priv
    t.displayName = displayName
}

// Listen begins accepting inbound DirectIP connections on address. Call
// before Start if the node should also accept, not just dial out.
func (t *Transport) Listen(address string) error {
    l, err := net.Listen("tcp", address)
    if err != nil {
        return fmt.Errorf("directip: listen %s: %w", address, err)
    }
    t.mu.Lock()
    t.listener = l
    t.mu.Unlock()
    return nil
}

func (t *Transport) Start(ctx context.Context) error {
    t.mu.Lock()
    l := t.listener
    t.mu.Unlock()
    if l == nil {
        return nil
    }
    go t.acceptLoop(ctx, l)
    go func() { <-ctx.Done(); _ = l.Close() }()
    return nil
}

func (t *Transport) Stop() error {
    t.mu.Lock()
    defer t.mu.Unlock()
    if t.listener != nil {
        _ = t.listener.Close()
    }
    for _, pc := range t.conns {
        _ = pc.net.Close()
    }
    t.conns = make(map[transport.EndpointID]*peerConn)
    return nil
}

func (t *Transport) acceptLoop(ctx context.Context, l net.Listener) {
    for {
        c, err := l.Accept()
        if err != nil {
            select {
            case <-ctx.Done():
                return
            default:
                return
            }
        }
        ep := transport.PlaceholderEndpoint(transport.KindDirectIP, c.RemoteAddr().String())
        go t.adopt(ctx, ep, c)
    }
}

// Dial opens an outbound DirectIP connection to address, bounded by
// DialTimeout, and registers it under endpoint.
func (t *Transport) Dial(ctx context.Context, endpoint transport.EndpointID, address string) error {
    dctx, cancel := context.WithTimeout(ctx, DialTimeout)
    defer cancel()
    d := &net.Dialer{}
    c, err := d.DialContext(dctx, "tcp", address)
    if err != nil {
        return fmt.Errorf("directip: dial %s: %w", address, err)
    }
    t.adopt(ctx, endpoint, c)
    return nil
}

func (t *Transport) adopt(ctx context.Context, ep transport.EndpointID, c net.Conn) {
    if t.identityKey != nil {
        meshID, err := performHandshake(c, t.identityKey, t.displayName)
        if err != nil {
            zap.L().Warn("directip: handshake failed", zap.String("endpoint", string(ep)), zap.Error(err))
        } else if t.onUpgrade != nil {
            t.onUpgrade(ep, string(meshID))
        }
    }
    pc := &peerConn{conn: stream.NewNetConn(c, t.reg), net: c}
    t.mu.Lock()
    t.conns[ep] = pc
    t.mu.Unlock()
    go t.recvLoop(ctx, ep, pc)
}

func (t *Transport) recvLoop(ctx context.Context, ep transport.EndpointID, pc *peerConn) {
    defer func() {
        t.mu.Lock()
        delete(t.conns, ep)
        t.mu.Unlock()
        _ = pc.net.Close()
        if t.onDisconnect != nil {
            t.onDisconnect(ep)
        }
    }()
    for {
        raw, err := protocol.ReadFramed(pc.conn.Reader())
        if err != nil {
            return
        }
        if t.onPacket != nil {
            t.onPacket(ep, "", raw)
        }
        select {
        case <-ctx.Done():
            return
        default:
        }
    }
}

// Send writes a pre-encoded, pre-framed-body MeshPacket to endpoint,
// applying the 4-byte length prefix per the DirectIP wire rule.
func (t *Transport) Send(ctx context.Context, endpoint transport.EndpointID, raw []byte) error {
    t.mu.Lock()
    pc := t.conns[endpoint]
    t.mu.Unlock()
    if pc == nil {
        return fmt.Errorf("directip: no connection for endpoint %s", endpoint)
    }
    pc.mu.Lock()
    defer pc.mu.Unlock()
    return pc.conn.SendFramed(raw)
}

// NotePacketIdentity lets the dispatcher tell this transport that the
// packet it just delivered for endpoint carries meshID, so the transport
// can report the identity upgrade onward.
func (t *Transport) NotePacketIdentity(endpoint transport.EndpointID, meshID string) {
    if t.onUpgrade != nil && meshID != "" {
        t.onUpgrade(endpoint, meshID)
    }
}

func (t *Transport) Peers() []transport.PeerHandle {
    t.mu.Lock()
    defer t.mu.Unlock()
    out := make([]transport.PeerHandle, 0, len(t.conns))
    for ep := range t.conns {
        out = append(out, transport.PeerHandle{Endpoint: ep})
    }
    return out
}

func (t *Transport) Quality(endpoint transport.EndpointID) transport.Quality {
    return transport.Quality{}
}
