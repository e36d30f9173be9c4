package directip

import (
    "context"
    "crypto/ed25519"
    "crypto/rand"
    "crypto/rsa"
    "crypto/tls"
    "crypto/x509"
    "errors"
    "fmt"
    "math/big"
    "reflect"
    "sync"
    "time"

    quicgo "github.com/quic-go/quic-go"
    "go.uber.org/zap"

    "github.com/pradeepkb1906/MeshTalk/pkg/protocol"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol/codec"
    "github.com/pradeepkb1906/MeshTalk/pkg/transport"
)

// QUICTransport is an alternate DirectIP session kind: same family,
// same length-prefixed wire framing as Transport, carried over a QUIC
// stream instead of a raw TCP socket. A node runs it in place of the
// plain TCP Transport when configured with the "directip-quic" transport
// kind; an established link never switches between the two. Identity is
// still verified at the mesh handshake layer, not by the certificate.
//
// quic-go has renamed its connection/stream types across releases, so
// the connection and stream handles are kept as `any` and driven through
// reflection to stay buildable across quic-go versions.
type QUICTransport struct {
    reg      *codec.Registry
    tlsConf  *tls.Config
    quicConf *quicgo.Config

    mu       sync.Mutex
    conns    map[transport.EndpointID]*quicConn
    listener any

    onPacket     transport.PacketHandler
    onUpgrade    transport.IdentityUpgradeHandler
    onDisconnect transport.DisconnectHandler

    identityKey ed25519.PrivateKey
    displayName string
}

type quicConn struct {
    conn   any
    stream any
    mu     sync.Mutex
}

// NewQUIC builds a QUIC-backed DirectIP transport.
func NewQUIC(reg *codec.Registry) (*QUICTransport, error) {
    tlsConf, err := newQUICTLSConfig()
    if err != nil {
        return nil, err
    }
    return &QUICTransport{
        reg:      reg,
        tlsConf:  tlsConf,
        quicConf: &quicgo.Config{},
        conns:    make(map[transport.EndpointID]*quicConn),
    }, nil
}

func (t *QUICTransport) Kind() transport.Kind { return transport.KindDirectIP }

func (t *QUICTransport) OnPacket(h transport.PacketHandler)                  { t.onPacket = h }
func (t *QUICTransport) OnIdentityUpgrade(h transport.IdentityUpgradeHandler) { t.onUpgrade = h }
func (t *QUICTransport) OnDisconnect(h transport.DisconnectHandler)          { t.onDisconnect = h }

// SetIdentity enables the signed Hello handshake on newly adopted streams.
func (t *QUICTransport) SetIdentity(priv ed25519.PrivateKey, displayName string) {
    t.identityKey = priv
    t.displayName = displayName
}

func (t *QUICTransport) Listen(address string) error {
    l, err := quicgo.ListenAddr(address, t.tlsConf, t.quicConf)
    if err != nil {
        return fmt.Errorf("directip(quic): listen %s: %w", address, err)
    }
    t.mu.Lock()
    t.listener = l
    t.mu.Unlock()
    return nil
}

func (t *QUICTransport) Start(ctx context.Context) error {
    t.mu.Lock()
    l := t.listener
    t.mu.Unlock()
    if l == nil {
        return nil
    }
    go t.acceptLoop(ctx, l)
    go func() {
        <-ctx.Done()
        if v, ok := l.(interface{ Close() error }); ok {
            _ = v.Close()
        }
    }()
    return nil
}

func (t *QUICTransport) Stop() error {
    t.mu.Lock()
    defer t.mu.Unlock()
    if v, ok := t.listener.(interface{ Close() error }); ok {
        _ = v.Close()
    }
    for _, qc := range t.conns {
        closeAny(qc.conn)
    }
    t.conns = make(map[transport.EndpointID]*quicConn)
    return nil
}

func (t *QUICTransport) acceptLoop(ctx context.Context, l any) {
    for {
        mv := reflect.ValueOf(l).MethodByName("Accept")
        if !mv.IsValid() {
            return
        }
        outs := mv.Call([]reflect.Value{reflect.ValueOf(ctx)})
        if len(outs) != 2 || !outs[1].IsNil() {
            return
        }
        conn := outs[0].Interface()
        st, err := acceptStream(ctx, conn)
        if err != nil {
            closeAny(conn)
            continue
        }
        ep := transport.PlaceholderEndpoint(transport.KindDirectIP, remoteAddrString(conn))
        go t.adopt(ctx, ep, conn, st)
    }
}

func (t *QUICTransport) Dial(ctx context.Context, endpoint transport.EndpointID, address string) error {
    dctx, cancel := context.WithTimeout(ctx, DialTimeout)
    defer cancel()
    clientTLS := &tls.Config{
        InsecureSkipVerify: true,
        NextProtos:         []string{"meshtalk"},
        MinVersion:         tls.VersionTLS13,
    }
    conn, err := quicgo.DialAddr(dctx, address, clientTLS, t.quicConf)
    if err != nil {
        return fmt.Errorf("directip(quic): dial %s: %w", address, err)
    }
    st, err := openStream(dctx, conn)
    if err != nil {
        closeAny(conn)
        return fmt.Errorf("directip(quic): open stream: %w", err)
    }
    t.adopt(ctx, endpoint, conn, st)
    return nil
}

func (t *QUICTransport) adopt(ctx context.Context, ep transport.EndpointID, conn, st any) {
    if t.identityKey != nil {
        if rw, ok := st.(interface {
            Read([]byte) (int, error)
            Write([]byte) (int, error)
        }); ok {
            meshID, err := performHandshake(rw, t.identityKey, t.displayName)
            if err != nil {
                zap.L().Warn("directip(quic): handshake failed", zap.String("endpoint", string(ep)), zap.Error(err))
            } else if t.onUpgrade != nil {
                t.onUpgrade(ep, string(meshID))
            }
        }
    }
    qc := &quicConn{conn: conn, stream: st}
    t.mu.Lock()
    t.conns[ep] = qc
    t.mu.Unlock()
    go t.recvLoop(ctx, ep, qc)
}

func (t *QUICTransport) recvLoop(ctx context.Context, ep transport.EndpointID, qc *quicConn) {
    defer func() {
        t.mu.Lock()
        delete(t.conns, ep)
        t.mu.Unlock()
        closeAny(qc.conn)
        if t.onDisconnect != nil {
            t.onDisconnect(ep)
        }
    }()
    rw, ok := qc.stream.(interface {
        Read([]byte) (int, error)
        Write([]byte) (int, error)
    })
    if !ok {
        return
    }
    for {
        raw, err := protocol.ReadFramed(rw)
        if err != nil {
            return
        }
        if t.onPacket != nil {
            t.onPacket(ep, "", raw)
        }
        select {
        case <-ctx.Done():
            return
        default:
        }
    }
}

func (t *QUICTransport) Send(ctx context.Context, endpoint transport.EndpointID, raw []byte) error {
    t.mu.Lock()
    qc := t.conns[endpoint]
    t.mu.Unlock()
    if qc == nil {
        return fmt.Errorf("directip(quic): no connection for endpoint %s", endpoint)
    }
    qc.mu.Lock()
    defer qc.mu.Unlock()
    w, ok := qc.stream.(interface{ Write([]byte) (int, error) })
    if !ok {
        return errors.New("directip(quic): stream does not expose io.Writer")
    }
    return protocol.WriteFramed(w, raw)
}

func (t *QUICTransport) NotePacketIdentity(endpoint transport.EndpointID, meshID string) {
    if t.onUpgrade != nil && meshID != "" {
        t.onUpgrade(endpoint, meshID)
    }
}

func (t *QUICTransport) Peers() []transport.PeerHandle {
    t.mu.Lock()
    defer t.mu.Unlock()
    out := make([]transport.PeerHandle, 0, len(t.conns))
    for ep := range t.conns {
        out = append(out, transport.PeerHandle{Endpoint: ep})
    }
    return out
}

func (t *QUICTransport) Quality(endpoint transport.EndpointID) transport.Quality {
    return transport.Quality{}
}

// acceptStream and openStream use reflection to call AcceptStream/
// OpenStreamSync regardless of which concrete quic-go connection type
// the running version returns.
func acceptStream(ctx context.Context, conn any) (any, error) {
    return callStreamMethod(ctx, conn, "AcceptStream")
}

func openStream(ctx context.Context, conn any) (any, error) {
    if s, err := callStreamMethod(ctx, conn, "OpenStreamSync"); err == nil {
        return s, nil
    }
    return callStreamMethod(ctx, conn, "OpenStream")
}

func callStreamMethod(ctx context.Context, conn any, method string) (any, error) {
    mv := reflect.ValueOf(conn).MethodByName(method)
    if !mv.IsValid() {
        return nil, fmt.Errorf("directip(quic): connection lacks %s", method)
    }
    outs := mv.Call([]reflect.Value{reflect.ValueOf(ctx)})
    if len(outs) != 2 {
        return nil, fmt.Errorf("directip(quic): unexpected %s signature", method)
    }
    if !outs[1].IsNil() {
        return nil, outs[1].Interface().(error)
    }
    return outs[0].Interface(), nil
}

func remoteAddrString(conn any) string {
    mv := reflect.ValueOf(conn).MethodByName("RemoteAddr")
    if !mv.IsValid() {
        return "unknown"
    }
    rv := mv.Call(nil)
    if len(rv) != 1 || rv[0].IsNil() {
        return "unknown"
    }
    if a, ok := rv[0].Interface().(interface{ String() string }); ok {
        return a.String()
    }
    return "unknown"
}

func closeAny(conn any) {
    if v, ok := conn.(interface{ CloseWithError(uint64, string) error }); ok {
        _ = v.CloseWithError(0, "")
        return
    }
    if v, ok := conn.(interface{ Close() error }); ok {
        _ = v.Close()
    }
}

func newQUICTLSConfig() (*tls.Config, error) {
    cert, err := selfSignedCert()
    if err != nil {
        return nil, fmt.Errorf("directip: generate cert: %w", err)
    }
    return &tls.Config{
        Certificates: []tls.Certificate{cert},
        NextProtos:   []string{"meshtalk"},
        MinVersion:   tls.VersionTLS13,
    }, nil
}

func selfSignedCert() (tls.Certificate, error) {
    priv, err := rsa.GenerateKey(rand.Reader, 2048)
    if err != nil {
        return tls.Certificate{}, err
    }
    tmpl := x509.Certificate{
        SerialNumber:          big.NewInt(1),
        NotBefore:             time.Now().Add(-time.Minute),
        NotAfter:              time.Now().Add(24 * time.Hour),
        KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
        ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
        BasicConstraintsValid: true,
        DNSNames:              []string{"localhost"},
    }
    der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
    if err != nil {
        return tls.Certificate{}, err
    }
    return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}, nil
}
