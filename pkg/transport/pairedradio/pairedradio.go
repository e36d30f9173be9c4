// Package pairedradio implements the PairedRadio mesh transport: a
// point-to-point short-range radio link (e.g. Bluetooth Classic/BLE
// serial profile) with a small MTU, so each encoded packet is split into
// fixed-size chunks on send and reassembled from a per-endpoint buffer
// on receive.
package pairedradio

import (
    "context"
    "fmt"
    "net"
    "sync"
    "time"

    "github.com/pradeepkb1906/MeshTalk/pkg/transport"
)

// ChunkSize is the maximum number of bytes written per radio frame.
const ChunkSize = 500

// ReassemblyExpiry discards a per-endpoint reassembly buffer after this
// long without a new chunk, per spec: silence this long means the other
// side gave up or moved out of range mid-packet.
const ReassemblyExpiry = 30 * time.Second

// Transport pairs two endpoints over a net.Conn-like byte stream (in
// production, a Bluetooth serial socket; net.Pipe for tests/mem paired
// links). Each registered link is a bidirectional byte pipe; Send splits
// the payload into ChunkSize writes and the receive loop reassembles.
type Transport struct {
    mu    sync.Mutex
    links map[transport.EndpointID]*radioLink

    onPacket     transport.PacketHandler
    onUpgrade    transport.IdentityUpgradeHandler
    onDisconnect transport.DisconnectHandler
}

type radioLink struct {
    conn net.Conn
    mu   sync.Mutex

    bufMu   sync.Mutex
    buf     []byte
    expiry  *time.Timer
}

func New() *Transport {
    return &Transport{links: make(map[transport.EndpointID]*radioLink)}
}

func (t *Transport) Kind() transport.Kind { return transport.KindPairedRadio }

func (t *Transport) OnPacket(h transport.PacketHandler)                  { t.onPacket = h }
func (t *Transport) OnIdentityUpgrade(h transport.IdentityUpgradeHandler) { t.onUpgrade = h }
func (t *Transport) OnDisconnect(h transport.DisconnectHandler)          { t.onDisconnect = h }

// Pair registers an already-established radio byte stream under
// endpoint and begins reassembling inbound chunks from it. The decoder
// that turns a reassembled byte string into a MeshPacket lives above
// this transport (in the dispatcher); this layer only knows "accumulate
// until something above can make sense of it", so it hands the full
// accumulated buffer to onPacket after every chunk and lets the caller
// decide whether it decoded cleanly.
func (t *Transport) Pair(ctx context.Context, endpoint transport.EndpointID, conn net.Conn) {
    link := &radioLink{conn: conn}
    t.mu.Lock()
    t.links[endpoint] = link
    t.mu.Unlock()
    go t.recvLoop(ctx, endpoint, link)
}

func (t *Transport) Start(ctx context.Context) error { return nil }

func (t *Transport) Stop() error {
    t.mu.Lock()
    defer t.mu.Unlock()
    for _, l := range t.links {
        l.bufMu.Lock()
        if l.expiry != nil {
            l.expiry.Stop()
        }
        l.bufMu.Unlock()
        _ = l.conn.Close()
    }
    t.links = make(map[transport.EndpointID]*radioLink)
    return nil
}

func (t *Transport) recvLoop(ctx context.Context, endpoint transport.EndpointID, link *radioLink) {
    defer func() {
        t.mu.Lock()
        delete(t.links, endpoint)
        t.mu.Unlock()
        _ = link.conn.Close()
        if t.onDisconnect != nil {
            t.onDisconnect(endpoint)
        }
    }()
    chunk := make([]byte, ChunkSize)
    for {
        n, err := link.conn.Read(chunk)
        if err != nil {
            return
        }
        got := make([]byte, n)
        copy(got, chunk[:n])

        link.bufMu.Lock()
        link.buf = append(link.buf, got...)
        armExpiry(link, func() { t.clearBuffer(endpoint, link) })
        snapshot := append([]byte(nil), link.buf...)
        link.bufMu.Unlock()

        if t.onPacket != nil {
            t.onPacket(endpoint, "", snapshot)
        }

        select {
        case <-ctx.Done():
            return
        default:
        }
    }
}

// ClearReassembly is called by the caller once it has successfully
// decoded the accumulated bytes delivered via onPacket, so the next
// chunk starts a fresh packet instead of appending to a stale one.
func (t *Transport) ClearReassembly(endpoint transport.EndpointID) {
    t.mu.Lock()
    link := t.links[endpoint]
    t.mu.Unlock()
    if link != nil {
        t.clearBuffer(endpoint, link)
    }
}

func (t *Transport) clearBuffer(_ transport.EndpointID, link *radioLink) {
    link.bufMu.Lock()
    defer link.bufMu.Unlock()
    link.buf = nil
    if link.expiry != nil {
        link.expiry.Stop()
        link.expiry = nil
    }
}

func armExpiry(link *radioLink, onExpire func()) {
    if link.expiry != nil {
        link.expiry.Stop()
    }
    link.expiry = time.AfterFunc(ReassemblyExpiry, onExpire)
}

// Send splits raw into ChunkSize writes to endpoint.
func (t *Transport) Send(ctx context.Context, endpoint transport.EndpointID, raw []byte) error {
    t.mu.Lock()
    link := t.links[endpoint]
    t.mu.Unlock()
    if link == nil {
        return fmt.Errorf("pairedradio: no paired link for endpoint %s", endpoint)
    }
    link.mu.Lock()
    defer link.mu.Unlock()
    for off := 0; off < len(raw); off += ChunkSize {
        end := off + ChunkSize
        if end > len(raw) {
            end = len(raw)
        }
        if _, err := link.conn.Write(raw[off:end]); err != nil {
            return err
        }
    }
    return nil
}

func (t *Transport) NotePacketIdentity(endpoint transport.EndpointID, meshID string) {
    if t.onUpgrade != nil && meshID != "" {
        t.onUpgrade(endpoint, meshID)
    }
}

func (t *Transport) Peers() []transport.PeerHandle {
    t.mu.Lock()
    defer t.mu.Unlock()
    out := make([]transport.PeerHandle, 0, len(t.links))
    for ep := range t.links {
        out = append(out, transport.PeerHandle{Endpoint: ep})
    }
    return out
}

func (t *Transport) Quality(endpoint transport.EndpointID) transport.Quality {
    return transport.Quality{}
}
