package router

import (
    "context"
    "testing"
    "time"

    "github.com/pradeepkb1906/MeshTalk/pkg/memkv"
    "github.com/pradeepkb1906/MeshTalk/pkg/persist"
    "github.com/pradeepkb1906/MeshTalk/pkg/persist/memstore"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol"
    "github.com/pradeepkb1906/MeshTalk/pkg/seen"
    "github.com/pradeepkb1906/MeshTalk/pkg/statusbus"
    "github.com/pradeepkb1906/MeshTalk/pkg/transport"
)

type fakeSender struct {
    targeted []targetedSend
    broadcasts [][]byte
}

type targetedSend struct {
    kind     transport.Kind
    endpoint transport.EndpointID
    raw      []byte
}

func (f *fakeSender) SendTargeted(ctx context.Context, kind transport.Kind, endpoint transport.EndpointID, raw []byte) error {
    f.targeted = append(f.targeted, targetedSend{kind, endpoint, raw})
    return nil
}

func (f *fakeSender) Broadcast(ctx context.Context, raw []byte) {
    f.broadcasts = append(f.broadcasts, raw)
}

func newTestRouter(t *testing.T) (*Router, *fakeSender) {
    t.Helper()
    kv := memkv.New(memkv.Options{})
    t.Cleanup(kv.Close)
    store := persist.Store{
        Messages:      memstore.NewMessageStore(kv),
        Peers:         memstore.NewPeerStore(kv),
        Conversations: memstore.NewConversationStore(kv),
    }
    codecReg, err := protocol.DefaultRegistry()
    if err != nil {
        t.Fatalf("default registry: %v", err)
    }
    sender := &fakeSender{}
    seenCache := seen.New()
    t.Cleanup(seenCache.Close)
    r := New(seenCache, store, transport.NewRegistry(), sender, statusbus.New(), codecReg)
    r.Initialize("local-mesh-id", "Local")
    return r, sender
}

func TestDuplicatePacketIsDroppedOnSecondDelivery(t *testing.T) {
    r, sender := newTestRouter(t)
    pkt := &protocol.MeshPacket{PacketID: "p1", Kind: protocol.KindMessage, SenderID: "bob", DestinationID: protocol.Broadcast, MaxHops: 7, ContentKind: protocol.ContentText, Content: "hi"}

    r.HandleInbound(context.Background(), pkt, "ep1", transport.KindDirectIP)
    r.HandleInbound(context.Background(), pkt, "ep1", transport.KindDirectIP)

    if len(sender.broadcasts) != 1 {
        t.Fatalf("expected exactly one forward despite duplicate delivery, got %d", len(sender.broadcasts))
    }
}

func TestExpiredPacketIsNeverForwarded(t *testing.T) {
    r, sender := newTestRouter(t)
    pkt := &protocol.MeshPacket{PacketID: "p1", Kind: protocol.KindMessage, SenderID: "bob", DestinationID: protocol.Broadcast, HopCount: 7, MaxHops: 7, ContentKind: protocol.ContentText, Content: "hi"}

    r.HandleInbound(context.Background(), pkt, "ep1", transport.KindDirectIP)

    if len(sender.broadcasts) != 0 {
        t.Fatal("expected expired packet not to be forwarded")
    }
}

func TestSelfOriginatedPacketIsDroppedOnLoop(t *testing.T) {
    r, sender := newTestRouter(t)
    pkt := &protocol.MeshPacket{PacketID: "p1", Kind: protocol.KindMessage, SenderID: "local-mesh-id", DestinationID: protocol.Broadcast, MaxHops: 7, ContentKind: protocol.ContentText, Content: "hi"}

    r.HandleInbound(context.Background(), pkt, "ep1", transport.KindDirectIP)

    if len(sender.broadcasts) != 0 {
        t.Fatal("expected a packet we originated to be dropped as a loop")
    }
}

func TestBroadcastMessageIsDeliveredAndForwarded(t *testing.T) {
    r, sender := newTestRouter(t)
    pkt := &protocol.MeshPacket{PacketID: "p1", Kind: protocol.KindMessage, SenderID: "bob", SenderName: "Bob", DestinationID: protocol.Broadcast, MaxHops: 7, ContentKind: protocol.ContentText, Content: "hello mesh"}

    r.HandleInbound(context.Background(), pkt, "ep1", transport.KindDirectIP)

    if len(sender.broadcasts) != 1 {
        t.Fatalf("expected broadcast forward, got %d", len(sender.broadcasts))
    }
    msg, ok, err := r.store.Messages.GetByPacketID("p1")
    if err != nil || !ok {
        t.Fatalf("expected message to be persisted: ok=%v err=%v", ok, err)
    }
    if msg.Status != persist.StatusDelivered {
        t.Fatalf("expected delivered status, got %v", msg.Status)
    }
}

func TestSendSOSBroadcastsOnceFromOrigin(t *testing.T) {
    r, sender := newTestRouter(t)
    ctx := context.Background()

    _, err := r.SendSOS(ctx, "help, need assistance")
    if err != nil {
        t.Fatalf("send sos: %v", err)
    }
    if len(sender.broadcasts) != 1 {
        t.Fatalf("expected SOS to be broadcast once on send, got %d", len(sender.broadcasts))
    }
}

func TestStoreAndForwardReplaysUndeliveredMessagesOnPeerConnect(t *testing.T) {
    r, sender := newTestRouter(t)
    ctx := context.Background()

    // Queue a message for a peer that is not yet connected.
    if _, err := r.SendMessage(ctx, "bob", "queued for bob", protocol.ContentText, nil); err != nil {
        t.Fatalf("send message: %v", err)
    }
    sender.broadcasts = nil // clear the initial send's own broadcast

    r.OnPeerConnected(ctx, "bob", "ep-bob", transport.KindNeighborDiscovery, "Bob")

    if len(sender.targeted) == 0 && len(sender.broadcasts) == 0 {
        t.Fatal("expected store-and-forward to re-emit the queued message")
    }
}

func TestAckUpdatesMessageStatusToDelivered(t *testing.T) {
    r, _ := newTestRouter(t)
    ctx := context.Background()

    _ = r.store.Messages.InsertIgnore(persist.MeshMessage{PacketID: "p1", ConversationID: "bob", Status: persist.StatusSent})

    ack := &protocol.MeshPacket{PacketID: "ack1", Kind: protocol.KindAck, SenderID: "bob", DestinationID: "local-mesh-id", MaxHops: 7, AckForPacketID: "p1"}
    r.HandleInbound(ctx, ack, "ep1", transport.KindDirectIP)

    msg, ok, err := r.store.Messages.GetByPacketID("p1")
    if err != nil || !ok {
        t.Fatalf("expected message to exist: ok=%v err=%v", ok, err)
    }
    if msg.Status != persist.StatusDelivered {
        t.Fatalf("expected DELIVERED, got %v", msg.Status)
    }
}

func TestRetentionSweepPurgesStaleMessages(t *testing.T) {
    r, _ := newTestRouter(t)
    old := time.Now().Add(-40 * 24 * time.Hour).UnixMilli()
    _ = r.store.Messages.InsertIgnore(persist.MeshMessage{PacketID: "old", ConversationID: "bob", Timestamp: old})

    r.RunRetentionSweep(DefaultPersistenceWindow)

    if exists, _ := r.store.Messages.Exists("old"); exists {
        t.Fatal("expected stale message to be purged by the retention sweep")
    }
}

func TestPeerLivenessSweepMarksQuietPeerLost(t *testing.T) {
    r, _ := newTestRouter(t)
    stale := time.Now().Add(-time.Hour).UnixMilli()
    if err := r.store.Peers.Upsert(persist.Peer{MeshID: "bob", ConnectionState: persist.StateConnected, LastSeen: stale}); err != nil {
        t.Fatalf("upsert: %v", err)
    }

    r.RunPeerLivenessSweep(5 * time.Minute)

    p, ok, err := r.store.Peers.GetByMeshID("bob")
    if err != nil || !ok {
        t.Fatalf("expected peer to exist: ok=%v err=%v", ok, err)
    }
    if p.ConnectionState != persist.StateLost {
        t.Fatalf("expected peer to be marked LOST, got %v", p.ConnectionState)
    }
}

func TestPeerLivenessSweepLeavesRecentlySeenPeerConnected(t *testing.T) {
    r, _ := newTestRouter(t)
    if err := r.store.Peers.Upsert(persist.Peer{MeshID: "bob", ConnectionState: persist.StateConnected, LastSeen: time.Now().UnixMilli()}); err != nil {
        t.Fatalf("upsert: %v", err)
    }

    r.RunPeerLivenessSweep(5 * time.Minute)

    p, _, _ := r.store.Peers.GetByMeshID("bob")
    if p.ConnectionState != persist.StateConnected {
        t.Fatalf("expected peer to stay CONNECTED, got %v", p.ConnectionState)
    }
}

func TestStoreAndForwardReplaysRecentBroadcastOnPeerReconnect(t *testing.T) {
    r, sender := newTestRouter(t)
    ctx := context.Background()

    msg := persist.MeshMessage{
        PacketID:      "broadcast-1",
        SenderID:      "carol",
        DestinationID: protocol.Broadcast,
        Timestamp:     time.Now().UnixMilli(),
        ContentKind:   protocol.ContentText,
        Content:       "mesh-wide notice",
    }
    if err := r.store.Messages.InsertIgnore(msg); err != nil {
        t.Fatalf("insert: %v", err)
    }

    r.OnPeerConnected(ctx, "bob", "ep-bob", transport.KindNeighborDiscovery, "Bob")

    found := false
    for _, ts := range sender.targeted {
        pkt, err := protocol.Decode(r.codecReg, ts.raw)
        if err == nil && pkt != nil && pkt.PacketID == "broadcast-1" {
            found = true
        }
    }
    if !found {
        t.Fatal("expected get_relayable_since catch-up to replay the recent broadcast to the reconnecting peer")
    }
}

func TestStoreAndForwardSkipsBroadcastCatchUpForItsOwnOriginator(t *testing.T) {
    r, sender := newTestRouter(t)
    ctx := context.Background()

    msg := persist.MeshMessage{
        PacketID:      "broadcast-1",
        SenderID:      "bob",
        DestinationID: protocol.Broadcast,
        Timestamp:     time.Now().UnixMilli(),
        ContentKind:   protocol.ContentText,
        Content:       "bob's own broadcast",
    }
    if err := r.store.Messages.InsertIgnore(msg); err != nil {
        t.Fatalf("insert: %v", err)
    }

    r.OnPeerConnected(ctx, "bob", "ep-bob", transport.KindNeighborDiscovery, "Bob")

    for _, ts := range sender.targeted {
        pkt, err := protocol.Decode(r.codecReg, ts.raw)
        if err == nil && pkt != nil && pkt.PacketID == "broadcast-1" {
            t.Fatal("expected broadcast catch-up not to echo a peer's own message back to it")
        }
    }
}
