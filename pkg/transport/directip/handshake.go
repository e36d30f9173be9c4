package directip

import (
    "crypto/ed25519"
    "encoding/json"
    "fmt"
    "io"
    "time"

    "github.com/pradeepkb1906/MeshTalk/pkg/handshake"
    "github.com/pradeepkb1906/MeshTalk/pkg/identity"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol"
)

// helloSkew bounds the clock drift tolerated between the two ends of a
// DirectIP handshake.
const helloSkew = 5 * time.Minute

// performHandshake exchanges signed Hello frames over rw before any
// MeshPacket traffic flows, and returns the verified remote mesh_id.
// Both DirectIP session kinds (TCP and QUIC) share this exchange since
// both frame arbitrary byte payloads the same way.
func performHandshake(rw io.ReadWriter, priv ed25519.PrivateKey, displayName string) (identity.MeshID, error) {
    hello, _, err := handshake.BuildHello(displayName, priv)
    if err != nil {
        return "", fmt.Errorf("directip: build hello: %w", err)
    }
    body, err := json.Marshal(hello)
    if err != nil {
        return "", fmt.Errorf("directip: marshal hello: %w", err)
    }

    sendErr := make(chan error, 1)
    go func() { sendErr <- protocol.WriteFramed(rw, body) }()

    raw, err := protocol.ReadFramed(rw)
    if err != nil {
        return "", fmt.Errorf("directip: read hello: %w", err)
    }
    if err := <-sendErr; err != nil {
        return "", fmt.Errorf("directip: send hello: %w", err)
    }

    var peerHello handshake.Hello
    if err := json.Unmarshal(raw, &peerHello); err != nil {
        return "", fmt.Errorf("directip: decode hello: %w", err)
    }
    meshID, err := handshake.VerifyHello(peerHello, helloSkew)
    if err != nil {
        return "", fmt.Errorf("directip: verify hello: %w", err)
    }
    return meshID, nil
}
