// Package identity resolves the local node's cryptographic identity: an
// ed25519 keypair and the canonical mesh_id derived from its public key.
package identity

import (
    "crypto/ed25519"
    "crypto/rand"
    "encoding/base64"
    "fmt"
    "os"
    "strings"

    "go.uber.org/zap"

    "github.com/pradeepkb1906/MeshTalk/pkg/config"
)

// MeshID is the stable local identity string the router reads once at
// initialization, per §6's local identity contract.
type MeshID string

// CanonicalMeshID derives the wire-level mesh_id from a public key:
// "pk:<alg>:<base64url(pubkey)>".
func CanonicalMeshID(alg string, pub []byte) MeshID {
    return MeshID(fmt.Sprintf("pk:%s:%s", alg, base64.RawURLEncoding.EncodeToString(pub)))
}

// LoadOrGenEd25519 loads an ed25519 private key from config or generates
// a new one. Returns the private key and its canonical mesh_id.
func LoadOrGenEd25519(c config.IdentityConfig) (ed25519.PrivateKey, MeshID, error) {
    var pk ed25519.PrivateKey

    if s := strings.TrimSpace(c.PrivateKey); s != "" {
        if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
            pk = ed25519.PrivateKey(b)
        } else {
            zap.L().Warn("failed to decode identity.private_key", zap.Error(err))
        }
    }

    if pk == nil && strings.TrimSpace(c.PrivateKeyFile) != "" {
        if b, err := os.ReadFile(c.PrivateKeyFile); err == nil {
            txt := strings.TrimSpace(string(b))
            if db, err := base64.RawURLEncoding.DecodeString(txt); err == nil {
                pk = ed25519.PrivateKey(db)
            } else {
                pk = ed25519.PrivateKey(b)
            }
        } else {
            zap.L().Warn("failed to read identity.private_key_file", zap.Error(err))
        }
    }

    if pk == nil {
        _, gen, err := ed25519.GenerateKey(rand.Reader)
        if err != nil {
            return nil, "", err
        }
        pk = gen
        zap.L().Info("generated new ed25519 identity, persist it to identity.private_key to keep it stable across restarts",
            zap.String("pub_b64", base64.RawURLEncoding.EncodeToString(gen.Public().(ed25519.PublicKey))))
    }

    pub := pk.Public().(ed25519.PublicKey)
    return pk, CanonicalMeshID("ed25519", pub), nil
}
