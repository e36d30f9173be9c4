package main

import (
    "crypto/ed25519"
    "crypto/rand"
    "testing"

    "github.com/pradeepkb1906/MeshTalk/pkg/config"
    "github.com/pradeepkb1906/MeshTalk/pkg/identity"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol/codec"
    "github.com/pradeepkb1906/MeshTalk/pkg/transport/directip"
)

func TestShortMeshIDTakesFirstFourChars(t *testing.T) {
    got := shortMeshID(identity.MeshID("pk:ed25519:abcdefgh"))
    if got != "pk:e" {
        t.Fatalf("shortMeshID = %q, want %q", got, "pk:e")
    }
}

func TestShortMeshIDPassesThroughShortIDs(t *testing.T) {
    got := shortMeshID(identity.MeshID("ab"))
    if got != "ab" {
        t.Fatalf("shortMeshID = %q, want %q", got, "ab")
    }
}

func testCodecRegistry(t *testing.T) *codec.Registry {
    t.Helper()
    reg := codec.NewRegistry()
    c, err := codec.CBOR()
    if err != nil {
        t.Fatalf("codec.CBOR(): %v", err)
    }
    reg.Register(c)
    return reg
}

func TestBuildTransportsRejectsUnknownKind(t *testing.T) {
    _, priv, err := ed25519.GenerateKey(rand.Reader)
    if err != nil {
        t.Fatalf("generate key: %v", err)
    }
    cfg := &config.Config{Transports: []config.TransportConfig{{Kind: "carrier-pigeon"}}}

    _, err = buildTransports(cfg, testCodecRegistry(t), priv, "node", identity.MeshID("pk:ed25519:aaaa"))
    if err == nil {
        t.Fatal("expected an error for an unsupported transport kind")
    }
}

func TestBuildTransportsOneEntryPerConfiguredTransport(t *testing.T) {
    _, priv, err := ed25519.GenerateKey(rand.Reader)
    if err != nil {
        t.Fatalf("generate key: %v", err)
    }
    cfg := &config.Config{Transports: []config.TransportConfig{
        {Kind: "neighbor"},
        {Kind: "pairedradio"},
    }}

    out, err := buildTransports(cfg, testCodecRegistry(t), priv, "node", identity.MeshID("pk:ed25519:aaaa"))
    if err != nil {
        t.Fatalf("buildTransports: %v", err)
    }
    if len(out) != 2 {
        t.Fatalf("got %d transports, want 2", len(out))
    }
}

func TestDialDirectIPPeersNoOpOnEmptyDialList(t *testing.T) {
    tr := directip.New(testCodecRegistry(t))
    if err := dialDirectIPPeers(tr, config.TransportConfig{Kind: "directip"}); err != nil {
        t.Fatalf("dialDirectIPPeers with no dial targets: %v", err)
    }
}
