package pairedradio

import (
    "context"
    "net"
    "testing"
    "time"

    "github.com/pradeepkb1906/MeshTalk/pkg/protocol"
    "github.com/pradeepkb1906/MeshTalk/pkg/transport"
)

// TestReassemblyClearedAfterSuccessfulDecode is a regression test for the
// bug where a poisoned reassembly buffer silently ate every packet after
// the first: without ClearReassembly, the second packet's bytes would be
// appended to the first's already-decoded bytes and fail to decode as
// CBOR (trailing-data error), so it would never reach onPacket's decode
// branch below.
func TestReassemblyClearedAfterSuccessfulDecode(t *testing.T) {
    codecReg, err := protocol.DefaultRegistry()
    if err != nil {
        t.Fatalf("default registry: %v", err)
    }

    client, server := net.Pipe()
    defer client.Close()
    defer server.Close()

    tr := New()
    decoded := make(chan *protocol.MeshPacket, 2)
    tr.OnPacket(func(endpoint transport.EndpointID, meshID string, raw []byte) {
        pkt, err := protocol.Decode(codecReg, raw)
        if err != nil || pkt == nil {
            return
        }
        tr.ClearReassembly(endpoint)
        decoded <- pkt
    })

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    tr.Pair(ctx, "ep1", server)

    writeViaClient := func(pkt *protocol.MeshPacket) {
        raw, err := protocol.Encode(codecReg, protocol.FormatCBOR, pkt)
        if err != nil {
            t.Fatalf("encode: %v", err)
        }
        if _, err := client.Write(raw); err != nil {
            t.Fatalf("client write: %v", err)
        }
    }

    first := &protocol.MeshPacket{PacketID: "p1", Kind: protocol.KindMessage, SenderID: "alice", DestinationID: "bob", MaxHops: 7}
    writeViaClient(first)

    select {
    case got := <-decoded:
        if got.PacketID != "p1" {
            t.Fatalf("expected p1, got %s", got.PacketID)
        }
    case <-time.After(time.Second):
        t.Fatal("timed out waiting for first packet")
    }

    second := &protocol.MeshPacket{PacketID: "p2", Kind: protocol.KindMessage, SenderID: "alice", DestinationID: "bob", MaxHops: 7}
    writeViaClient(second)

    select {
    case got := <-decoded:
        if got.PacketID != "p2" {
            t.Fatalf("expected p2, got %s", got.PacketID)
        }
    case <-time.After(time.Second):
        t.Fatal("timed out waiting for second packet: reassembly buffer was not cleared after the first decode")
    }
}

// TestDisconnectFiresOnReadError proves OnDisconnect's callback fires
// once the paired link's underlying connection is closed out from under
// recvLoop, matching the read-error-triggers-disconnect path stream-
// backed transports use.
func TestDisconnectFiresOnReadError(t *testing.T) {
    client, server := net.Pipe()
    defer client.Close()

    tr := New()
    disconnected := make(chan transport.EndpointID, 1)
    tr.OnDisconnect(func(endpoint transport.EndpointID) { disconnected <- endpoint })

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    tr.Pair(ctx, "ep1", server)

    client.Close()

    select {
    case ep := <-disconnected:
        if ep != "ep1" {
            t.Fatalf("expected ep1, got %s", ep)
        }
    case <-time.After(time.Second):
        t.Fatal("timed out waiting for disconnect callback")
    }
}
