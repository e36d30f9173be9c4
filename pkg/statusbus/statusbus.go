// Package statusbus fans router and dispatcher events out to consumers
// (the gRPC gateway, the CLI) without ever blocking the publisher. Each
// stream drops its oldest buffered event on overflow rather than applying
// backpressure to the router or dispatcher goroutine that emits it.
package statusbus

import (
    "sync"

    "go.uber.org/zap"

    "github.com/pradeepkb1906/MeshTalk/pkg/persist"
)

const (
    incomingMessagesCapacity = 64
    statusUpdatesCapacity    = 16
)

// UpdateKind discriminates the status_updates stream's union.
type UpdateKind int

const (
    MessageReceived UpdateKind = iota
    MessageDelivered
    PeerDiscovered
    PeerConnected
    PeerDisconnected
    SOSReceived
    Error
)

// StatusUpdate is one event on the status_updates stream. Only the fields
// relevant to Kind are populated.
type StatusUpdate struct {
    Kind       UpdateKind
    PacketID   string
    Peer       persist.Peer
    SenderName string
    Message    string
}

// ConnectionStatus is the aggregate snapshot exposed on the
// connection_status cell.
type ConnectionStatus struct {
    ActiveTransports []string
    ConnectedPeers   int
    LastError        string
}

// ring is a fixed-capacity overflow buffer that drops its oldest element
// when a publish would exceed capacity, implemented as a buffered channel
// drained with a non-blocking receive-then-send on overflow.
type ring[T any] struct {
    mu   sync.Mutex
    subs []chan T
    cap  int
}

func newRing[T any](capacity int) *ring[T] {
    return &ring[T]{cap: capacity}
}

func (r *ring[T]) subscribe() <-chan T {
    ch := make(chan T, r.cap)
    r.mu.Lock()
    r.subs = append(r.subs, ch)
    r.mu.Unlock()
    return ch
}

func (r *ring[T]) publish(v T) {
    r.mu.Lock()
    subs := append([]chan T(nil), r.subs...)
    r.mu.Unlock()
    for _, ch := range subs {
        for {
            select {
            case ch <- v:
            default:
                select {
                case <-ch:
                    continue
                default:
                }
            }
            break
        }
    }
}

// cell is a single-slot latest-value broadcaster: connection_status only
// ever needs to expose the most recent snapshot to late subscribers.
type cell[T any] struct {
    mu      sync.Mutex
    latest  T
    hasValue bool
    subs    []chan T
}

func newCell[T any]() *cell[T] {
    return &cell[T]{}
}

func (c *cell[T]) subscribe() <-chan T {
    ch := make(chan T, 1)
    c.mu.Lock()
    if c.hasValue {
        ch <- c.latest
    }
    c.subs = append(c.subs, ch)
    c.mu.Unlock()
    return ch
}

func (c *cell[T]) publish(v T) {
    c.mu.Lock()
    c.latest = v
    c.hasValue = true
    subs := append([]chan T(nil), c.subs...)
    c.mu.Unlock()
    for _, ch := range subs {
        for {
            select {
            case ch <- v:
            default:
                select {
                case <-ch:
                    continue
                default:
                }
            }
            break
        }
    }
}

// Bus is the Status Bus: three independent streams published to by the
// router and dispatcher, consumed by the gateway and CLI.
type Bus struct {
    incoming *ring[persist.MeshMessage]
    updates  *ring[StatusUpdate]
    conn     *cell[ConnectionStatus]
}

func New() *Bus {
    return &Bus{
        incoming: newRing[persist.MeshMessage](incomingMessagesCapacity),
        updates:  newRing[StatusUpdate](statusUpdatesCapacity),
        conn:     newCell[ConnectionStatus](),
    }
}

// PublishIncoming emits a newly delivered inbound message.
func (b *Bus) PublishIncoming(m persist.MeshMessage) {
    b.incoming.publish(m)
}

// PublishUpdate emits a status_updates event.
func (b *Bus) PublishUpdate(u StatusUpdate) {
    if u.Kind == Error {
        zap.L().Warn("status bus error event", zap.String("message", u.Message))
    }
    b.updates.publish(u)
}

// PublishConnectionStatus replaces the connection_status cell's latest value.
func (b *Bus) PublishConnectionStatus(s ConnectionStatus) {
    b.conn.publish(s)
}

// SubscribeIncoming returns a channel of newly delivered inbound messages.
func (b *Bus) SubscribeIncoming() <-chan persist.MeshMessage {
    return b.incoming.subscribe()
}

// SubscribeUpdates returns a channel of status_updates events.
func (b *Bus) SubscribeUpdates() <-chan StatusUpdate {
    return b.updates.subscribe()
}

// SubscribeConnectionStatus returns a channel that immediately yields the
// latest known connection status, if any, followed by every subsequent one.
func (b *Bus) SubscribeConnectionStatus() <-chan ConnectionStatus {
    return b.conn.subscribe()
}
