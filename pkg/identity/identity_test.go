package identity

import (
    "crypto/ed25519"
    "crypto/rand"
    "encoding/base64"
    "strings"
    "testing"

    "github.com/pradeepkb1906/MeshTalk/pkg/config"
)

func TestCanonicalMeshIDFormat(t *testing.T) {
    pub, _, err := ed25519.GenerateKey(rand.Reader)
    if err != nil {
        t.Fatalf("generate key: %v", err)
    }
    id := CanonicalMeshID("ed25519", pub)
    want := "pk:ed25519:" + base64.RawURLEncoding.EncodeToString(pub)
    if string(id) != want {
        t.Fatalf("mesh_id = %q, want %q", id, want)
    }
}

func TestLoadOrGenEd25519GeneratesWhenConfigEmpty(t *testing.T) {
    priv, id, err := LoadOrGenEd25519(config.IdentityConfig{Alg: "ed25519"})
    if err != nil {
        t.Fatalf("load or gen: %v", err)
    }
    if len(priv) != ed25519.PrivateKeySize {
        t.Fatalf("private key size = %d, want %d", len(priv), ed25519.PrivateKeySize)
    }
    if !strings.HasPrefix(string(id), "pk:ed25519:") {
        t.Fatalf("mesh_id %q missing pk:ed25519: prefix", id)
    }
}

func TestLoadOrGenEd25519LoadsFromPrivateKeyField(t *testing.T) {
    _, want, err := ed25519.GenerateKey(rand.Reader)
    if err != nil {
        t.Fatalf("generate key: %v", err)
    }
    cfg := config.IdentityConfig{
        Alg:        "ed25519",
        PrivateKey: base64.RawURLEncoding.EncodeToString(want),
    }
    priv, id, err := LoadOrGenEd25519(cfg)
    if err != nil {
        t.Fatalf("load or gen: %v", err)
    }
    if !priv.Equal(want) {
        t.Fatal("loaded private key does not match configured key")
    }
    wantID := CanonicalMeshID("ed25519", want.Public().(ed25519.PublicKey))
    if id != wantID {
        t.Fatalf("mesh_id = %q, want %q", id, wantID)
    }
}

func TestLoadOrGenEd25519FallsBackOnBadBase64(t *testing.T) {
    cfg := config.IdentityConfig{Alg: "ed25519", PrivateKey: "not-valid-base64!!"}
    priv, id, err := LoadOrGenEd25519(cfg)
    if err != nil {
        t.Fatalf("load or gen: %v", err)
    }
    if len(priv) != ed25519.PrivateKeySize {
        t.Fatalf("expected a freshly generated key after decode failure, got size %d", len(priv))
    }
    if id == "" {
        t.Fatal("expected a non-empty mesh_id after fallback generation")
    }
}
