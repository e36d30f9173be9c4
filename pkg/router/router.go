// Package router implements the mesh router: the brain that accepts
// inbound packets from the transport dispatcher and outbound send
// requests from the application, and that owns every routing decision,
// forwarding decision, and persistence write that results from either.
package router

import (
    "context"
    "fmt"
    "sync"
    "time"

    "github.com/google/uuid"
    "go.uber.org/zap"

    "github.com/pradeepkb1906/MeshTalk/pkg/persist"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol/codec"
    "github.com/pradeepkb1906/MeshTalk/pkg/seen"
    "github.com/pradeepkb1906/MeshTalk/pkg/statusbus"
    "github.com/pradeepkb1906/MeshTalk/pkg/transport"
)

// ErrNotInitialized is returned by operations attempted before Initialize.
var ErrNotInitialized = fmt.Errorf("router: not initialized")

// Sender is the narrow surface of the transport dispatcher the router
// needs for outbound traffic. It is injected rather than imported
// concretely so the router and the dispatcher package never import one
// another directly: the dispatcher owns the router's inbound callback,
// the router owns a Sender handle into the dispatcher.
type Sender interface {
    // SendTargeted transmits raw bytes to endpoint over the named
    // transport kind only. The transport must be currently active.
    SendTargeted(ctx context.Context, kind transport.Kind, endpoint transport.EndpointID, raw []byte) error

    // Broadcast transmits raw bytes via every currently active transport.
    Broadcast(ctx context.Context, raw []byte)
}

// Router is the mesh router. Its own serialization guarantee is limited
// to per-packet_id: the seen cache's first-writer-wins insert is what
// gives concurrent duplicate packets for the same packet_id a single
// winner (step 1 of the inbound pipeline); packets with distinct
// packet_ids may be processed fully concurrently.
type Router struct {
    mu sync.RWMutex

    localMeshID      string
    localDisplayName string

    seen     *seen.Cache
    store    persist.Store
    reg      *transport.Registry
    sender   Sender
    bus      *statusbus.Bus
    codecReg *codec.Registry
    format   protocol.Format

    replayWindow time.Duration
}

// New constructs a Router. Initialize must be called before any other
// method; it is kept separate from New so the local identity — read from
// an external preferences component per §6 — can be resolved after
// construction-time wiring.
func New(seenCache *seen.Cache, store persist.Store, reg *transport.Registry, sender Sender, bus *statusbus.Bus, codecReg *codec.Registry) *Router {
    return &Router{
        seen:     seenCache,
        store:    store,
        reg:      reg,
        sender:   sender,
        bus:      bus,
        codecReg: codecReg,
        format:   protocol.FormatCBOR,

        replayWindow: DefaultReplayWindow,
    }
}

// SetReplayWindow overrides the store-and-forward broadcast replay
// window used by triggerStoreAndForward's get_relayable_since lookup,
// per §4.5.7. Unset, the router keeps DefaultReplayWindow.
func (r *Router) SetReplayWindow(d time.Duration) {
    r.mu.Lock()
    r.replayWindow = d
    r.mu.Unlock()
}

// encode serializes pkt using the router's configured wire format,
// logging and returning the zero value on failure rather than panicking
// the caller: a packet that cannot be re-encoded is dropped, matching the
// codec's own "decode failure is silent" posture from §7.
func (r *Router) encode(pkt *protocol.MeshPacket) ([]byte, bool) {
    raw, err := protocol.Encode(r.codecReg, r.format, pkt)
    if err != nil {
        zap.L().Warn("failed to encode outbound packet", zap.String("packet_id", pkt.PacketID), zap.Error(err))
        return nil, false
    }
    return raw, true
}

// Initialize fixes the router's local identity. Later calls overwrite
// it; callers should not call it again once routing has started.
func (r *Router) Initialize(localMeshID, localDisplayName string) {
    r.mu.Lock()
    r.localMeshID = localMeshID
    r.localDisplayName = localDisplayName
    r.mu.Unlock()
}

func (r *Router) identity() (string, string) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    return r.localMeshID, r.localDisplayName
}

func (r *Router) getReplayWindow() time.Duration {
    r.mu.RLock()
    defer r.mu.RUnlock()
    return r.replayWindow
}

func newPacketID() string { return uuid.NewString() }

// emitError publishes an Error status_updates event and logs it. The
// router's public API never propagates an error past its own boundary
// per §7; this is the one place that policy is enforced.
func (r *Router) emitError(format string, args ...any) {
    msg := fmt.Sprintf(format, args...)
    zap.L().Warn("router error", zap.String("detail", msg))
    if r.bus != nil {
        r.bus.PublishUpdate(statusbus.StatusUpdate{Kind: statusbus.Error, Message: msg})
    }
}
