// Package audiobeacon implements the AudioBeacon mesh transport: a
// lossy, very-low-bandwidth audio-frequency link used purely for
// presence detection. It never carries a full MeshPacket — only fixed
// "HELLO:<short_id>" beacons — so it never decodes a packet and never
// calls the dispatcher's packet handler; it only reports an endpoint
// sighting through a presence callback.
package audiobeacon

import (
    "context"
    "fmt"
    "net"
    "strings"
    "sync"
    "time"

    "github.com/pradeepkb1906/MeshTalk/pkg/transport"
)

// MaxBeaconBytes is the hard ceiling on a beacon frame; the audio codec
// this stands in for cannot carry more.
const MaxBeaconBytes = 255

const helloPrefix = "HELLO:"

// BeaconInterval is how often this node rebroadcasts its own presence
// beacon. BeaconTimeout is how long a remote short id may go unheard
// before it is reported via OnDisconnect; a few missed beacons in a row
// means the link is gone, not just one lossy frame.
const (
    BeaconInterval = 10 * time.Second
    BeaconTimeout  = 3 * BeaconInterval
)

// PresenceHandler is invoked when a beacon from a previously-unseen (or
// re-seen) short id is detected.
type PresenceHandler func(endpoint transport.EndpointID, shortID string)

// Transport is a UDP-broadcast stand-in for an audio-band beacon link.
// It cannot address a specific peer and never carries full packets: Send
// always returns an error, and the local node's own presence beacon goes
// out from announceLoop instead.
type Transport struct {
    conn        *net.UDPConn
    broadcast   *net.UDPAddr
    localShort  string

    mu        sync.Mutex
    seen      map[transport.EndpointID]time.Time
    onPresence PresenceHandler

    onPacket     transport.PacketHandler
    onUpgrade    transport.IdentityUpgradeHandler
    onDisconnect transport.DisconnectHandler
}

// New builds an AudioBeacon transport that will announce localShortID
// (the first four characters of the local mesh_id) in its beacons.
func New(localShortID string) *Transport {
    return &Transport{localShort: localShortID, seen: make(map[transport.EndpointID]time.Time)}
}

func (t *Transport) Kind() transport.Kind { return transport.KindAudioBeacon }

func (t *Transport) OnPacket(h transport.PacketHandler)                  { t.onPacket = h }
func (t *Transport) OnIdentityUpgrade(h transport.IdentityUpgradeHandler) { t.onUpgrade = h }
func (t *Transport) OnPresence(h PresenceHandler)                        { t.onPresence = h }
func (t *Transport) OnDisconnect(h transport.DisconnectHandler)          { t.onDisconnect = h }

// Listen binds the beacon socket. address is a UDP listen/broadcast
// address, e.g. ":7381".
func (t *Transport) Listen(address, broadcastAddress string) error {
    laddr, err := net.ResolveUDPAddr("udp", address)
    if err != nil {
        return fmt.Errorf("audiobeacon: resolve %s: %w", address, err)
    }
    c, err := net.ListenUDP("udp", laddr)
    if err != nil {
        return fmt.Errorf("audiobeacon: listen %s: %w", address, err)
    }
    baddr, err := net.ResolveUDPAddr("udp", broadcastAddress)
    if err != nil {
        return fmt.Errorf("audiobeacon: resolve broadcast %s: %w", broadcastAddress, err)
    }
    t.conn = c
    t.broadcast = baddr
    return nil
}

func (t *Transport) Start(ctx context.Context) error {
    if t.conn == nil {
        return nil
    }
    go t.readLoop(ctx)
    go t.announceLoop(ctx)
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
    buf := make([]byte, MaxBeaconBytes)
    for {
        n, raddr, err := t.conn.ReadFromUDP(buf)
        if err != nil {
            return
        }
        frame := string(buf[:n])
        if shortID, ok := parseHello(frame); ok {
            ep := transport.EndpointID(fmt.Sprintf("beacon:%s:%s", raddr.String(), shortID))
            t.mu.Lock()
            t.seen[ep] = time.Now()
            handler := t.onPresence
            t.mu.Unlock()
            if handler != nil {
                handler(ep, shortID)
            }
        }
        select {
        case <-ctx.Done():
            return
        default:
        }
    }
}

func parseHello(frame string) (string, bool) {
    if !strings.HasPrefix(frame, helloPrefix) {
        return "", false
    }
    return strings.TrimPrefix(frame, helloPrefix), true
}

// announceLoop broadcasts this node's presence beacon periodically. The
// dispatcher's own 60s peer-announcement beacon is a separate, higher
// layer concern; this is the audio-band equivalent at a faster interval
// since beacons are cheap and lossy.
func (t *Transport) announceLoop(ctx context.Context) {
    ticker := time.NewTicker(BeaconInterval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            _ = t.broadcastHello()
        }
    }
}

// livenessLoop periodically drops beacon sightings that have gone quiet
// for longer than BeaconTimeout and reports them via OnDisconnect.
func (t *Transport) livenessLoop(ctx context.Context) {
    ticker := time.NewTicker(BeaconInterval)
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
    cutoff := time.Now().Add(-BeaconTimeout)
    t.mu.Lock()
    var stale []transport.EndpointID
    for ep, seenAt := range t.seen {
        if seenAt.Before(cutoff) {
            stale = append(stale, ep)
        }
    }
    for _, ep := range stale {
        delete(t.seen, ep)
    }
    handler := t.onDisconnect
    t.mu.Unlock()

    if handler != nil {
        for _, ep := range stale {
            handler(ep)
        }
    }
}

func (t *Transport) broadcastHello() error {
    frame := helloPrefix + t.localShort
    if len(frame) > MaxBeaconBytes {
        frame = frame[:MaxBeaconBytes]
    }
    _, err := t.conn.WriteToUDP([]byte(frame), t.broadcast)
    return err
}

// Send is a no-op for real packet bytes: AudioBeacon cannot carry full
// packets. A targeted send to this transport always fails so the
// dispatcher's fan-out logic skips it for anything but presence.
func (t *Transport) Send(ctx context.Context, endpoint transport.EndpointID, raw []byte) error {
    return fmt.Errorf("audiobeacon: cannot carry full packets, only presence beacons")
}

func (t *Transport) NotePacketIdentity(endpoint transport.EndpointID, meshID string) {
    if t.onUpgrade != nil && meshID != "" {
        t.onUpgrade(endpoint, meshID)
    }
}

func (t *Transport) Peers() []transport.PeerHandle {
    t.mu.Lock()
    defer t.mu.Unlock()
    out := make([]transport.PeerHandle, 0, len(t.seen))
    for ep := range t.seen {
        out = append(out, transport.PeerHandle{Endpoint: ep})
    }
    return out
}

func (t *Transport) Quality(endpoint transport.EndpointID) transport.Quality {
    t.mu.Lock()
    defer t.mu.Unlock()
    return transport.Quality{LastSeen: t.seen[endpoint]}
}
