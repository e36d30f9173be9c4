package directip

import (
    "crypto/ed25519"
    "crypto/rand"
    "net"
    "testing"
    "time"

    "github.com/pradeepkb1906/MeshTalk/pkg/identity"
)

func TestPerformHandshakeExchangesMeshIDs(t *testing.T) {
    _, privA, err := ed25519.GenerateKey(rand.Reader)
    if err != nil {
        t.Fatalf("generate key A: %v", err)
    }
    _, privB, err := ed25519.GenerateKey(rand.Reader)
    if err != nil {
        t.Fatalf("generate key B: %v", err)
    }

    a, b := net.Pipe()
    defer a.Close()
    defer b.Close()

    wantA := identity.CanonicalMeshID("ed25519", privA.Public().(ed25519.PublicKey))
    wantB := identity.CanonicalMeshID("ed25519", privB.Public().(ed25519.PublicKey))

    type result struct {
        id  identity.MeshID
        err error
    }
    resA := make(chan result, 1)
    resB := make(chan result, 1)

    go func() {
        id, err := performHandshake(a, privA, "node-a")
        resA <- result{id, err}
    }()
    go func() {
        id, err := performHandshake(b, privB, "node-b")
        resB <- result{id, err}
    }()

    select {
    case r := <-resA:
        if r.err != nil {
            t.Fatalf("node-a handshake: %v", r.err)
        }
        if r.id != wantB {
            t.Fatalf("node-a saw mesh_id %q, want %q", r.id, wantB)
        }
    case <-time.After(5 * time.Second):
        t.Fatal("timed out waiting for node-a handshake")
    }

    select {
    case r := <-resB:
        if r.err != nil {
            t.Fatalf("node-b handshake: %v", r.err)
        }
        if r.id != wantA {
            t.Fatalf("node-b saw mesh_id %q, want %q", r.id, wantA)
        }
    case <-time.After(5 * time.Second):
        t.Fatal("timed out waiting for node-b handshake")
    }
}
