package router

import (
    "context"
    "time"

    "go.uber.org/zap"

    "github.com/pradeepkb1906/MeshTalk/pkg/statusbus"
)

// Default retention windows from §4.5.7: ReplayWindow bounds how far back
// the store-and-forward broadcast catch-up looks when a peer reconnects
// (undelivered messages addressed to that peer are replayed whatever
// their age); messages older than PersistenceWindow are purged outright
// by the sweep.
const (
    DefaultReplayWindow      = 24 * time.Hour
    DefaultPersistenceWindow = 30 * 24 * time.Hour
    DefaultSweepInterval     = time.Hour
)

// DefaultLostThreshold is how long a peer may go unheard-from (no packet,
// no announcement, no explicit disconnect) before the liveness sweep
// marks it LOST rather than leaving it CONNECTED forever.
const DefaultLostThreshold = 5 * time.Minute

// RunRetentionSweep runs the stale-message retention sweep once,
// independent of routing, per §4.5.7.
func (r *Router) RunRetentionSweep(persistenceWindow time.Duration) {
    cutoff := time.Now().Add(-persistenceWindow)
    n, err := r.store.Messages.DeleteOlderThan(cutoff)
    if err != nil {
        zap.L().Warn("retention sweep failed", zap.Error(err))
        return
    }
    if n > 0 {
        zap.L().Info("retention sweep purged stale messages", zap.Int("count", n))
    }
}

// StartRetentionSweeper runs RunRetentionSweep on interval until ctx is
// canceled. It is meant to be launched as its own goroutine by the node
// supervisor, independent of the dispatcher and router's own lifecycle.
func (r *Router) StartRetentionSweeper(ctx context.Context, interval, persistenceWindow time.Duration) {
    ticker := time.NewTicker(interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            r.RunRetentionSweep(persistenceWindow)
        }
    }
}

// RunPeerLivenessSweep marks every peer that has gone unheard-from for
// longer than lostThreshold as LOST, independent of the explicit
// on_peer_disconnected path: a peer can go quiet without its transport
// ever reporting link loss (e.g. it simply walked out of range on a
// connectionless link faster than that link's own liveness check fires).
func (r *Router) RunPeerLivenessSweep(lostThreshold time.Duration) {
    lost, err := r.store.Peers.MarkLost(lostThreshold)
    if err != nil {
        zap.L().Warn("peer liveness sweep failed", zap.Error(err))
        return
    }
    for _, p := range lost {
        r.reg.Forget(p.MeshID)
        r.bus.PublishUpdate(statusbus.StatusUpdate{Kind: statusbus.PeerDisconnected, Peer: p})
    }
    if len(lost) > 0 {
        zap.L().Info("peer liveness sweep marked peers lost", zap.Int("count", len(lost)))
    }
}

// StartPeerLivenessSweeper runs RunPeerLivenessSweep on interval until
// ctx is canceled.
func (r *Router) StartPeerLivenessSweeper(ctx context.Context, interval, lostThreshold time.Duration) {
    ticker := time.NewTicker(interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            r.RunPeerLivenessSweep(lostThreshold)
        }
    }
}
