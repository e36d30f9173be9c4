// Package neighbor implements the NeighborDiscovery mesh transport: a
// connectionless, many-to-many link (e.g. Wi-Fi Direct / Nearby
// Connections) where every datagram already carries exactly one encoded
// packet, so no chunking or length-prefix framing is needed.
package neighbor

import (
    "context"
    "fmt"
    "net"
    "sync"
    "time"

    "github.com/pradeepkb1906/MeshTalk/pkg/transport"
)

// MaxDatagram bounds a single read; NeighborDiscovery links carry large
// MTUs relative to PairedRadio, but a sane ceiling still protects against
// a misbehaving peer.
const MaxDatagram = 64 * 1024

// LivenessCheckInterval is how often the liveness sweep scans for
// endpoints that have gone quiet. StaleAfter is how long an endpoint may
// stay silent before it is reported via OnDisconnect: a connectionless
// link has no read-error to signal loss, so disconnection is inferred
// from a multiple of the dispatcher's periodic announcement beacon.
const (
    LivenessCheckInterval = 30 * time.Second
    StaleAfter            = 3 * time.Minute
)

// Transport is a UDP-backed stand-in for a NeighborDiscovery link. Every
// remote address seen on the socket becomes an endpoint; the endpoint is
// upgraded to the peer's mesh_id as soon as the dispatcher decodes a
// packet carrying a SenderID for it.
type Transport struct {
    conn *net.UDPConn

    mu        sync.Mutex
    endpoints map[transport.EndpointID]*net.UDPAddr
    lastSeen  map[transport.EndpointID]time.Time

    onPacket     transport.PacketHandler
    onUpgrade    transport.IdentityUpgradeHandler
    onDisconnect transport.DisconnectHandler
}

func New() *Transport {
    return &Transport{
        endpoints: make(map[transport.EndpointID]*net.UDPAddr),
        lastSeen:  make(map[transport.EndpointID]time.Time),
    }
}

func (t *Transport) Kind() transport.Kind { return transport.KindNeighborDiscovery }

func (t *Transport) OnPacket(h transport.PacketHandler)                  { t.onPacket = h }
func (t *Transport) OnIdentityUpgrade(h transport.IdentityUpgradeHandler) { t.onUpgrade = h }
func (t *Transport) OnDisconnect(h transport.DisconnectHandler)          { t.onDisconnect = h }

// Listen binds the discovery socket. address is a UDP listen address,
// e.g. ":7380".
func (t *Transport) Listen(address string) error {
    laddr, err := net.ResolveUDPAddr("udp", address)
    if err != nil {
        return fmt.Errorf("neighbor: resolve %s: %w", address, err)
    }
    c, err := net.ListenUDP("udp", laddr)
    if err != nil {
        return fmt.Errorf("neighbor: listen %s: %w", address, err)
    }
    t.conn = c
    return nil
}

func (t *Transport) Start(ctx context.Context) error {
    if t.conn == nil {
        return nil
    }
    go t.readLoop(ctx)
    go t.livenessLoop(ctx)
    go func() { <-ctx.Done(); _ = t.conn.Close() }()
    return nil
}

func (t *Transport) Stop() error {
    if t.conn == nil {
        return nil
    }
    return t.conn.Close()
}

func (t *Transport) readLoop(ctx context.Context) {
    buf := make([]byte, MaxDatagram)
    for {
        n, raddr, err := t.conn.ReadFromUDP(buf)
        if err != nil {
            return
        }
        raw := make([]byte, n)
        copy(raw, buf[:n])

        ep := transport.EndpointID(raddr.String())
        t.mu.Lock()
        if _, known := t.endpoints[ep]; !known {
            t.endpoints[ep] = raddr
        }
        t.lastSeen[ep] = time.Now()
        t.mu.Unlock()

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

// livenessLoop periodically drops endpoints that have gone quiet for
// longer than StaleAfter and reports them via OnDisconnect, since a
// connectionless datagram link never gets a read error to signal loss.
func (t *Transport) livenessLoop(ctx context.Context) {
    ticker := time.NewTicker(LivenessCheckInterval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            t.reapStale()
        }
    }
}

func (t *Transport) reapStale() {
    cutoff := time.Now().Add(-StaleAfter)
    t.mu.Lock()
    var stale []transport.EndpointID
    for ep, seenAt := range t.lastSeen {
        if seenAt.Before(cutoff) {
            stale = append(stale, ep)
        }
    }
    for _, ep := range stale {
        delete(t.endpoints, ep)
        delete(t.lastSeen, ep)
    }
    handler := t.onDisconnect
    t.mu.Unlock()

    if handler != nil {
        for _, ep := range stale {
            handler(ep)
        }
    }
}

// Send writes raw as exactly one UDP datagram to endpoint.
func (t *Transport) Send(ctx context.Context, endpoint transport.EndpointID, raw []byte) error {
    t.mu.Lock()
    addr := t.endpoints[endpoint]
    t.mu.Unlock()
    if addr == nil {
        var err error
        addr, err = net.ResolveUDPAddr("udp", string(endpoint))
        if err != nil {
            return fmt.Errorf("neighbor: unknown endpoint %s: %w", endpoint, err)
        }
    }
    if len(raw) > MaxDatagram {
        return fmt.Errorf("neighbor: payload of %d bytes exceeds datagram ceiling %d", len(raw), MaxDatagram)
    }
    _, err := t.conn.WriteToUDP(raw, addr)
    return err
}

// NotePacketIdentity reports that endpoint's true mesh_id has been
// learned, merging the previously opaque endpoint handle's identity.
func (t *Transport) NotePacketIdentity(endpoint transport.EndpointID, meshID string) {
    if t.onUpgrade != nil && meshID != "" {
        t.onUpgrade(endpoint, meshID)
    }
}

func (t *Transport) Peers() []transport.PeerHandle {
    t.mu.Lock()
    defer t.mu.Unlock()
    out := make([]transport.PeerHandle, 0, len(t.endpoints))
    for ep := range t.endpoints {
        out = append(out, transport.PeerHandle{Endpoint: ep})
    }
    return out
}

func (t *Transport) Quality(endpoint transport.EndpointID) transport.Quality {
    t.mu.Lock()
    defer t.mu.Unlock()
    return transport.Quality{LastSeen: t.lastSeen[endpoint]}
}
