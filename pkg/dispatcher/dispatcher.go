// Package dispatcher implements the Transport Dispatcher: the single
// send surface the router uses and the single receive surface every
// transport feeds into.
package dispatcher

import (
    "context"
    "fmt"
    "sort"
    "sync"
    "time"

    "go.uber.org/zap"

    "github.com/pradeepkb1906/MeshTalk/pkg/persist"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol/codec"
    "github.com/pradeepkb1906/MeshTalk/pkg/statusbus"
    "github.com/pradeepkb1906/MeshTalk/pkg/transport"
)

// ErrTransportInactive is returned by SendTargeted when the
// requested transport kind has not been started, or has failed to start.
var ErrTransportInactive = fmt.Errorf("dispatcher: transport inactive")

// AnnounceInterval is how often the dispatcher invokes the registered
// announcer, per §4.3's 60 s periodic peer-announcement beacon.
const AnnounceInterval = 60 * time.Second

// InboundHandler receives every packet decoded from any active
// transport, tagged with the endpoint and transport kind it arrived on.
type InboundHandler func(ctx context.Context, pkt *protocol.MeshPacket, endpoint transport.EndpointID, kind transport.Kind)

// IdentityHandler receives identity-upgrade notifications from any
// active transport, tagged with the transport kind.
type IdentityHandler func(ctx context.Context, meshID string, endpoint transport.EndpointID, kind transport.Kind)

// LinkLossHandler receives link-loss notifications from any active
// transport, tagged with the transport kind.
type LinkLossHandler func(ctx context.Context, endpoint transport.EndpointID, kind transport.Kind)

// Dispatcher owns the set of active transports, merges their inbound
// streams, and is the router's single send surface via the Sender
// interface it satisfies.
type Dispatcher struct {
    mu sync.RWMutex

    registered []transport.Transport
    active     map[transport.Kind]transport.Transport

    reg      *transport.Registry
    codecReg *codec.Registry
    format   protocol.Format
    bus      *statusbus.Bus
    peers    persist.PeerStore

    onInbound    InboundHandler
    onIdentity   IdentityHandler
    onLinkLoss   LinkLossHandler
    announce     func(ctx context.Context) error

    cancelAnnounce context.CancelFunc
}

// New constructs a Dispatcher. reg is the transport registry shared with
// the router; codecReg decodes inbound bytes into MeshPackets.
func New(reg *transport.Registry, codecReg *codec.Registry, bus *statusbus.Bus) *Dispatcher {
    return &Dispatcher{
        active:   make(map[transport.Kind]transport.Transport),
        reg:      reg,
        codecReg: codecReg,
        format:   protocol.FormatCBOR,
        bus:      bus,
    }
}

// Register adds a transport to the set start_all will start. It must be
// called before StartAll.
func (d *Dispatcher) Register(t transport.Transport) {
    d.mu.Lock()
    defer d.mu.Unlock()
    d.registered = append(d.registered, t)
    sort.SliceStable(d.registered, func(i, j int) bool {
        return d.registered[i].Kind().Priority() > d.registered[j].Kind().Priority()
    })
}

// SetInboundHandler wires the router's packet handler. It must be called
// before StartAll; transports are never reconfigured after Start.
func (d *Dispatcher) SetInboundHandler(h InboundHandler) { d.onInbound = h }

// SetIdentityHandler wires the router's identity-upgrade handler.
func (d *Dispatcher) SetIdentityHandler(h IdentityHandler) { d.onIdentity = h }

// SetLinkLossHandler wires the router's on_peer_disconnected handler,
// invoked whenever any transport reports an endpoint unreachable.
func (d *Dispatcher) SetLinkLossHandler(h LinkLossHandler) { d.onLinkLoss = h }

// SetPeerStore wires the peer durability store so StopAll can mark every
// peer disconnected on a clean shutdown, per the persistence contract's
// disconnect_all op. Optional: a nil store just skips that step.
func (d *Dispatcher) SetPeerStore(peers persist.PeerStore) { d.peers = peers }

// SetAnnouncer wires the function invoked every AnnounceInterval, per
// §4.3. Typically router.BroadcastPeerAnnouncement.
func (d *Dispatcher) SetAnnouncer(fn func(ctx context.Context) error) { d.announce = fn }

// StartAll starts every registered transport in priority order,
// tolerating individual failures: a transport that fails to start is
// logged and omitted from the active set, and every other transport is
// still attempted, per §4.3's error policy.
func (d *Dispatcher) StartAll(ctx context.Context) error {
    d.mu.Lock()
    transports := append([]transport.Transport(nil), d.registered...)
    d.mu.Unlock()

    for _, t := range transports {
        kind := t.Kind()
        t.OnPacket(d.handlePacket(ctx, t))
        t.OnIdentityUpgrade(d.handleIdentity(ctx, kind))
        t.OnDisconnect(d.handleDisconnect(ctx, kind))
        if err := t.Start(ctx); err != nil {
            zap.L().Warn("transport failed to start, omitting from active set",
                zap.String("kind", kind.String()), zap.Error(err))
            continue
        }
        d.mu.Lock()
        d.active[kind] = t
        d.mu.Unlock()
        zap.L().Info("transport started", zap.String("kind", kind.String()))
    }

    d.publishStatus()

    if d.announce != nil {
        actx, cancel := context.WithCancel(ctx)
        d.cancelAnnounce = cancel
        go d.announceLoop(actx)
    }
    return nil
}

// StopAll stops every started transport regardless of individual
// errors, then clears the active set, per §4.3. Every known peer is
// marked DISCONNECTED in the peer store, since none of them are
// reachable once every transport is down.
func (d *Dispatcher) StopAll() {
    if d.cancelAnnounce != nil {
        d.cancelAnnounce()
        d.cancelAnnounce = nil
    }
    d.mu.Lock()
    active := d.active
    d.active = make(map[transport.Kind]transport.Transport)
    d.mu.Unlock()

    for kind, t := range active {
        if err := t.Stop(); err != nil {
            zap.L().Warn("transport failed to stop cleanly", zap.String("kind", kind.String()), zap.Error(err))
        }
    }
    if d.peers != nil {
        if err := d.peers.DisconnectAll(); err != nil {
            zap.L().Warn("failed to mark peers disconnected on shutdown", zap.Error(err))
        }
    }
    d.publishStatus()
}

func (d *Dispatcher) announceLoop(ctx context.Context) {
    ticker := time.NewTicker(AnnounceInterval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            if err := d.announce(ctx); err != nil {
                zap.L().Warn("periodic announcement failed", zap.Error(err))
            }
        }
    }
}

// reassembler is implemented only by transports with chunked-MTU
// reassembly state to clear (currently PairedRadio); checked with a type
// assertion rather than added to the core Transport interface since
// most transports have nothing to clear.
type reassembler interface {
    ClearReassembly(endpoint transport.EndpointID)
}

// identityNoter is implemented by every transport that can report an
// identity upgrade once a packet's SenderID is known, which every
// current transport does.
type identityNoter interface {
    NotePacketIdentity(endpoint transport.EndpointID, meshID string)
}

// handlePacket closes over the originating transport, not just its kind,
// so a successful decode can feed back into that specific transport:
// clearing its chunk-reassembly buffer (PairedRadio) and reporting the
// decoded SenderID as an identity upgrade (every transport), per §4.2's
// "identity upgraded at first received packet".
func (d *Dispatcher) handlePacket(ctx context.Context, t transport.Transport) transport.PacketHandler {
    kind := t.Kind()
    return func(endpoint transport.EndpointID, meshID string, raw []byte) {
        pkt, err := protocol.Decode(d.codecReg, raw)
        if err != nil || pkt == nil {
            zap.L().Debug("dropping undecodable packet", zap.String("kind", kind.String()), zap.Error(err))
            return
        }
        if r, ok := t.(reassembler); ok {
            r.ClearReassembly(endpoint)
        }
        if n, ok := t.(identityNoter); ok && pkt.SenderID != "" {
            n.NotePacketIdentity(endpoint, pkt.SenderID)
        }
        if d.onInbound != nil {
            d.onInbound(ctx, pkt, endpoint, kind)
        }
    }
}

func (d *Dispatcher) handleIdentity(ctx context.Context, kind transport.Kind) transport.IdentityUpgradeHandler {
    return func(endpoint transport.EndpointID, meshID string) {
        d.reg.Note(meshID, kind, endpoint)
        if d.onIdentity != nil {
            d.onIdentity(ctx, meshID, endpoint, kind)
        }
    }
}

func (d *Dispatcher) handleDisconnect(ctx context.Context, kind transport.Kind) transport.DisconnectHandler {
    return func(endpoint transport.EndpointID) {
        if d.onLinkLoss != nil {
            d.onLinkLoss(ctx, endpoint, kind)
        }
    }
}

// SendTargeted implements router.Sender: send raw bytes to endpoint over
// kind only, if that transport is currently active.
func (d *Dispatcher) SendTargeted(ctx context.Context, kind transport.Kind, endpoint transport.EndpointID, raw []byte) error {
    d.mu.RLock()
    t, ok := d.active[kind]
    d.mu.RUnlock()
    if !ok {
        return ErrTransportInactive
    }
    if err := t.Send(ctx, endpoint, raw); err != nil {
        zap.L().Warn("targeted send failed", zap.String("kind", kind.String()), zap.String("endpoint", string(endpoint)), zap.Error(err))
        return err
    }
    return nil
}

// Broadcast implements router.Sender: fan out raw bytes across every
// active transport, every active endpoint on each. One transport's
// failure never blocks another's, per §4.3.
func (d *Dispatcher) Broadcast(ctx context.Context, raw []byte) {
    d.mu.RLock()
    transports := make([]transport.Transport, 0, len(d.active))
    for _, t := range d.active {
        transports = append(transports, t)
    }
    d.mu.RUnlock()

    for _, t := range transports {
        peers := t.Peers()
        for _, p := range peers {
            if err := t.Send(ctx, p.Endpoint, raw); err != nil {
                zap.L().Warn("broadcast send failed on one endpoint",
                    zap.String("kind", t.Kind().String()), zap.String("endpoint", string(p.Endpoint)), zap.Error(err))
            }
        }
    }
}

// Status returns the dispatcher's current aggregate status.
func (d *Dispatcher) Status() statusbus.ConnectionStatus {
    d.mu.RLock()
    defer d.mu.RUnlock()
    active := make([]string, 0, len(d.active))
    connected := 0
    for kind, t := range d.active {
        active = append(active, kind.String())
        connected += len(t.Peers())
    }
    sort.Strings(active)
    return statusbus.ConnectionStatus{ActiveTransports: active, ConnectedPeers: connected}
}

func (d *Dispatcher) publishStatus() {
    if d.bus == nil {
        return
    }
    d.bus.PublishConnectionStatus(d.Status())
}
