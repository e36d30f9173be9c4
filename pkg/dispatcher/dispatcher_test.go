package dispatcher

import (
    "context"
    "testing"
    "time"

    "github.com/pradeepkb1906/MeshTalk/pkg/persist"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol/codec"
    "github.com/pradeepkb1906/MeshTalk/pkg/statusbus"
    "github.com/pradeepkb1906/MeshTalk/pkg/transport"
)

// fakeTransport is a minimal in-memory transport double for exercising
// the dispatcher's start/stop/send/broadcast paths without any real I/O.
type fakeTransport struct {
    kind    transport.Kind
    started bool
    sent    []transport.EndpointID
    peers   []transport.PeerHandle
    failSend bool
    failStart bool

    onPacket     transport.PacketHandler
    onUpgrade    transport.IdentityUpgradeHandler
    onDisconnect transport.DisconnectHandler
}

func (f *fakeTransport) Kind() transport.Kind { return f.kind }
func (f *fakeTransport) OnPacket(h transport.PacketHandler) { f.onPacket = h }
func (f *fakeTransport) OnIdentityUpgrade(h transport.IdentityUpgradeHandler) { f.onUpgrade = h }
func (f *fakeTransport) OnDisconnect(h transport.DisconnectHandler) { f.onDisconnect = h }
func (f *fakeTransport) Start(ctx context.Context) error {
    if f.failStart {
        return context.Canceled
    }
    f.started = true
    return nil
}
func (f *fakeTransport) Stop() error { f.started = false; return nil }
func (f *fakeTransport) Send(ctx context.Context, endpoint transport.EndpointID, raw []byte) error {
    if f.failSend {
        return context.DeadlineExceeded
    }
    f.sent = append(f.sent, endpoint)
    return nil
}
func (f *fakeTransport) Peers() []transport.PeerHandle { return f.peers }
func (f *fakeTransport) Quality(endpoint transport.EndpointID) transport.Quality { return transport.Quality{} }

// reassemblingFakeTransport additionally implements the dispatcher's
// unexported reassembler/identityNoter optional interfaces, so tests can
// prove handlePacket type-asserts and calls them on a successful decode.
type reassemblingFakeTransport struct {
    fakeTransport
    clearedReassembly []transport.EndpointID
    notedIdentity     []string
}

func (f *reassemblingFakeTransport) ClearReassembly(endpoint transport.EndpointID) {
    f.clearedReassembly = append(f.clearedReassembly, endpoint)
}

func (f *reassemblingFakeTransport) NotePacketIdentity(endpoint transport.EndpointID, meshID string) {
    f.notedIdentity = append(f.notedIdentity, meshID)
}

// fakePeerStore is a minimal persist.PeerStore double used only to
// observe whether DisconnectAll was invoked.
type fakePeerStore struct {
    disconnectAllCalled bool
}

func (f *fakePeerStore) Upsert(p persist.Peer) error { return nil }
func (f *fakePeerStore) GetByMeshID(meshID string) (persist.Peer, bool, error) {
    return persist.Peer{}, false, nil
}
func (f *fakePeerStore) GetByEndpointID(endpointID string) (persist.Peer, bool, error) {
    return persist.Peer{}, false, nil
}
func (f *fakePeerStore) UpdateConnectionState(meshID string, state persist.ConnectionState) error {
    return nil
}
func (f *fakePeerStore) GetConnectedList() ([]persist.Peer, error) { return nil, nil }
func (f *fakePeerStore) ObservePeer(meshID string) <-chan persist.Peer {
    return make(chan persist.Peer)
}
func (f *fakePeerStore) MarkLost(threshold time.Duration) ([]persist.Peer, error) { return nil, nil }
func (f *fakePeerStore) DisconnectAll() error {
    f.disconnectAllCalled = true
    return nil
}

func newTestRegistry() (*transport.Registry, *codec.Registry) {
    reg := transport.NewRegistry()
    codecReg, _ := protocol.DefaultRegistry()
    return reg, codecReg
}

func TestStartAllOmitsFailingTransport(t *testing.T) {
    reg, codecReg := newTestRegistry()
    d := New(reg, codecReg, statusbus.New())

    good := &fakeTransport{kind: transport.KindDirectIP}
    bad := &fakeTransport{kind: transport.KindAudioBeacon, failStart: true}
    d.Register(good)
    d.Register(bad)

    if err := d.StartAll(context.Background()); err != nil {
        t.Fatalf("start all: %v", err)
    }
    if !good.started {
        t.Fatal("expected transport to start")
    }
    if err := d.SendTargeted(context.Background(), transport.KindAudioBeacon, "ep", []byte("x")); err != ErrTransportInactive {
        t.Fatalf("expected failing transport to be omitted from the active set, got %v", err)
    }
    d.StopAll()
    if good.started {
        t.Fatal("expected transport to stop")
    }
}

func TestBroadcastSendsToEveryPeerOnEveryActiveTransport(t *testing.T) {
    reg, codecReg := newTestRegistry()
    d := New(reg, codecReg, statusbus.New())

    t1 := &fakeTransport{kind: transport.KindNeighborDiscovery, peers: []transport.PeerHandle{{Endpoint: "a"}, {Endpoint: "b"}}}
    t2 := &fakeTransport{kind: transport.KindDirectIP, peers: []transport.PeerHandle{{Endpoint: "c"}}}
    d.Register(t1)
    d.Register(t2)
    _ = d.StartAll(context.Background())

    d.Broadcast(context.Background(), []byte("payload"))

    if len(t1.sent) != 2 {
        t.Fatalf("expected 2 sends on t1, got %d", len(t1.sent))
    }
    if len(t2.sent) != 1 {
        t.Fatalf("expected 1 send on t2, got %d", len(t2.sent))
    }
}

func TestSendTargetedFailsForInactiveTransport(t *testing.T) {
    reg, codecReg := newTestRegistry()
    d := New(reg, codecReg, statusbus.New())

    err := d.SendTargeted(context.Background(), transport.KindAudioBeacon, "ep", []byte("x"))
    if err != ErrTransportInactive {
        t.Fatalf("expected ErrTransportInactive, got %v", err)
    }
}

func TestInboundHandlerReceivesDecodedPacket(t *testing.T) {
    reg, codecReg := newTestRegistry()
    d := New(reg, codecReg, statusbus.New())

    received := make(chan *protocol.MeshPacket, 1)
    d.SetInboundHandler(func(ctx context.Context, pkt *protocol.MeshPacket, endpoint transport.EndpointID, kind transport.Kind) {
        received <- pkt
    })

    ft := &fakeTransport{kind: transport.KindNeighborDiscovery}
    d.Register(ft)
    _ = d.StartAll(context.Background())

    pkt := &protocol.MeshPacket{PacketID: "p1", Kind: protocol.KindPing, SenderID: "bob", DestinationID: "BROADCAST", MaxHops: 7}
    raw, err := protocol.Encode(codecReg, protocol.FormatCBOR, pkt)
    if err != nil {
        t.Fatalf("encode: %v", err)
    }
    ft.onPacket("ep1", "", raw)

    select {
    case got := <-received:
        if got.PacketID != "p1" {
            t.Fatalf("expected p1, got %s", got.PacketID)
        }
    case <-time.After(time.Second):
        t.Fatal("timed out waiting for inbound packet")
    }
}

// TestHandlePacketClearsReassemblyAndNotesIdentityOnSuccessfulDecode
// proves handlePacket closes over the originating transport, not just
// its kind, so a successful decode calls back into that transport's
// ClearReassembly/NotePacketIdentity hooks.
func TestHandlePacketClearsReassemblyAndNotesIdentityOnSuccessfulDecode(t *testing.T) {
    reg, codecReg := newTestRegistry()
    d := New(reg, codecReg, statusbus.New())

    ft := &reassemblingFakeTransport{fakeTransport: fakeTransport{kind: transport.KindPairedRadio}}
    d.Register(ft)
    _ = d.StartAll(context.Background())

    pkt := &protocol.MeshPacket{PacketID: "p1", Kind: protocol.KindPing, SenderID: "bob", DestinationID: "BROADCAST", MaxHops: 7}
    raw, err := protocol.Encode(codecReg, protocol.FormatCBOR, pkt)
    if err != nil {
        t.Fatalf("encode: %v", err)
    }
    ft.onPacket("ep1", "", raw)

    if len(ft.clearedReassembly) != 1 || ft.clearedReassembly[0] != "ep1" {
        t.Fatalf("expected ClearReassembly(ep1) once, got %v", ft.clearedReassembly)
    }
    if len(ft.notedIdentity) != 1 || ft.notedIdentity[0] != "bob" {
        t.Fatalf("expected NotePacketIdentity(_, bob) once, got %v", ft.notedIdentity)
    }
}

func TestHandlePacketSkipsUndecodablePayload(t *testing.T) {
    reg, codecReg := newTestRegistry()
    d := New(reg, codecReg, statusbus.New())

    ft := &reassemblingFakeTransport{fakeTransport: fakeTransport{kind: transport.KindPairedRadio}}
    d.Register(ft)
    _ = d.StartAll(context.Background())

    ft.onPacket("ep1", "", []byte("not cbor"))

    if len(ft.clearedReassembly) != 0 {
        t.Fatalf("expected no ClearReassembly call on undecodable payload, got %v", ft.clearedReassembly)
    }
}

// TestStopAllMarksEveryPeerDisconnected proves StopAll calls
// persist.PeerStore.DisconnectAll when a peer store is wired in via
// SetPeerStore, per the persistence contract's disconnect_all op.
func TestStopAllMarksEveryPeerDisconnected(t *testing.T) {
    reg, codecReg := newTestRegistry()
    d := New(reg, codecReg, statusbus.New())

    peers := &fakePeerStore{}
    d.SetPeerStore(peers)

    d.Register(&fakeTransport{kind: transport.KindDirectIP})
    _ = d.StartAll(context.Background())
    d.StopAll()

    if !peers.disconnectAllCalled {
        t.Fatal("expected StopAll to call Peers.DisconnectAll")
    }
}

// TestDisconnectCallbackInvokesLinkLossHandler proves a transport's
// OnDisconnect callback, once wired by StartAll, reaches the
// dispatcher's LinkLossHandler.
func TestDisconnectCallbackInvokesLinkLossHandler(t *testing.T) {
    reg, codecReg := newTestRegistry()
    d := New(reg, codecReg, statusbus.New())

    lost := make(chan transport.EndpointID, 1)
    d.SetLinkLossHandler(func(ctx context.Context, endpoint transport.EndpointID, kind transport.Kind) {
        lost <- endpoint
    })

    ft := &fakeTransport{kind: transport.KindNeighborDiscovery}
    d.Register(ft)
    _ = d.StartAll(context.Background())

    ft.onDisconnect("ep1")

    select {
    case ep := <-lost:
        if ep != "ep1" {
            t.Fatalf("expected ep1, got %s", ep)
        }
    case <-time.After(time.Second):
        t.Fatal("timed out waiting for link-loss handler to fire")
    }
}
