package main

import (
    "context"
    "crypto/ed25519"
    "fmt"
    "net"
    "os"
    "os/signal"
    "syscall"

    "go.uber.org/zap"
    "google.golang.org/grpc"

    "github.com/pradeepkb1906/MeshTalk/pkg/config"
    "github.com/pradeepkb1906/MeshTalk/pkg/dispatcher"
    grpcgw "github.com/pradeepkb1906/MeshTalk/pkg/gateway/grpc"
    "github.com/pradeepkb1906/MeshTalk/pkg/identity"
    "github.com/pradeepkb1906/MeshTalk/pkg/memkv"
    "github.com/pradeepkb1906/MeshTalk/pkg/observability"
    "github.com/pradeepkb1906/MeshTalk/pkg/persist"
    "github.com/pradeepkb1906/MeshTalk/pkg/persist/memstore"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol/codec"
    "github.com/pradeepkb1906/MeshTalk/pkg/router"
    "github.com/pradeepkb1906/MeshTalk/pkg/seen"
    "github.com/pradeepkb1906/MeshTalk/pkg/statusbus"
    "github.com/pradeepkb1906/MeshTalk/pkg/transport"
    "github.com/pradeepkb1906/MeshTalk/pkg/transport/audiobeacon"
    "github.com/pradeepkb1906/MeshTalk/pkg/transport/directip"
    "github.com/pradeepkb1906/MeshTalk/pkg/transport/neighbor"
    "github.com/pradeepkb1906/MeshTalk/pkg/transport/pairedradio"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
    cfg, err := config.Load(opts.ConfigPath)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
        return 1
    }

    logger, err := observability.SetupLogger(cfg.Log)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
        return 1
    }
    defer func() { _ = logger.Sync() }()

    zap.L().Info("meshnode started", zap.String("app", cfg.AppName))
    zap.L().Info("effective configuration", zap.Any("config", cfg))

    priv, meshID, err := identity.LoadOrGenEd25519(cfg.Identity)
    if err != nil {
        zap.L().Error("failed to init identity", zap.Error(err))
        return 1
    }
    displayName := cfg.DisplayName
    if displayName == "" {
        displayName = cfg.AppName
    }
    zap.L().Info("node identity ready", zap.String("mesh_id", string(meshID)), zap.String("display_name", displayName))

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    kv := memkv.New(memkv.Options{})
    defer kv.Close()
    store := persist.Store{
        Messages:      memstore.NewMessageStore(kv),
        Peers:         memstore.NewPeerStore(kv),
        Conversations: memstore.NewConversationStore(kv),
    }

    codecReg := codec.NewRegistry()
    if c, err := codec.CBOR(); err == nil {
        codecReg.Register(c)
    } else {
        zap.L().Warn("cbor codec unavailable, falling back to json on the wire", zap.Error(err))
    }

    seenCache := seen.New()
    reg := transport.NewRegistry()
    bus := statusbus.New()

    transports, err := buildTransports(cfg, codecReg, priv, displayName, meshID)
    if err != nil {
        zap.L().Error("failed to build transports", zap.Error(err))
        return 1
    }

    disp := dispatcher.New(reg, codecReg, bus)
    for _, t := range transports {
        disp.Register(t)
    }

    rtr := router.New(seenCache, store, reg, disp, bus, codecReg)
    rtr.Initialize(string(meshID), displayName)
    rtr.SetReplayWindow(cfg.Retention.ReplayWindow)

    disp.SetInboundHandler(rtr.HandleInbound)
    disp.SetIdentityHandler(func(ctx context.Context, peerMeshID string, endpoint transport.EndpointID, kind transport.Kind) {
        rtr.OnPeerConnected(ctx, peerMeshID, endpoint, kind, "")
    })
    disp.SetLinkLossHandler(func(ctx context.Context, endpoint transport.EndpointID, kind transport.Kind) {
        rtr.OnPeerDisconnected(endpoint)
    })
    disp.SetAnnouncer(func(ctx context.Context) error {
        return rtr.BroadcastPeerAnnouncement(ctx, 0, 0)
    })
    disp.SetPeerStore(store.Peers)

    if err := disp.StartAll(ctx); err != nil {
        zap.L().Error("failed to start transports", zap.Error(err))
        return 1
    }
    defer disp.StopAll()

    go rtr.StartRetentionSweeper(ctx, cfg.Retention.SweepInterval, cfg.Retention.PersistenceWindow)
    go rtr.StartPeerLivenessSweeper(ctx, cfg.Retention.SweepInterval, cfg.Retention.LostThreshold)

    gs := grpc.NewServer()
    grpcgw.RegisterMeshControlServer(gs, grpcgw.NewNodeAdapter(rtr, bus))
    lis, err := newGRPCListener(opts.GRPCAddr)
    if err != nil {
        zap.L().Error("failed to bind control surface", zap.String("addr", opts.GRPCAddr), zap.Error(err))
        return 1
    }
    go func() {
        if err := gs.Serve(lis); err != nil {
            zap.L().Warn("control surface server stopped", zap.Error(err))
        }
    }()
    defer gs.Stop()

    zap.L().Info("node is running", zap.String("grpc_addr", opts.GRPCAddr))

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
    <-sigCh
    zap.L().Info("shutting down")
    return 0
}

func newGRPCListener(addr string) (net.Listener, error) {
    return net.Listen("tcp", addr)
}

// buildTransports instantiates and configures one transport.Transport per
// entry in cfg.Transports. DirectIP entries also dial every configured
// peer once the listener (if any) is up.
func buildTransports(cfg *config.Config, codecReg *codec.Registry, priv ed25519.PrivateKey, displayName string, meshID identity.MeshID) ([]transport.Transport, error) {
    var out []transport.Transport
    for _, tc := range cfg.Transports {
        switch tc.Kind {
        case "neighbor":
            t := neighbor.New()
            for _, addr := range tc.Listen {
                if err := t.Listen(addr); err != nil {
                    return nil, fmt.Errorf("neighbor listen %s: %w", addr, err)
                }
            }
            out = append(out, t)

        case "pairedradio":
            out = append(out, pairedradio.New())

        case "directip":
            t := directip.New(codecReg)
            t.SetIdentity(priv, displayName)
            for _, addr := range tc.Listen {
                if err := t.Listen(addr); err != nil {
                    return nil, fmt.Errorf("directip listen %s: %w", addr, err)
                }
            }
            out = append(out, t)
            if err := dialDirectIPPeers(t, tc); err != nil {
                return nil, err
            }

        case "directip-quic":
            t, err := directip.NewQUIC(codecReg)
            if err != nil {
                return nil, fmt.Errorf("directip-quic init: %w", err)
            }
            t.SetIdentity(priv, displayName)
            for _, addr := range tc.Listen {
                if err := t.Listen(addr); err != nil {
                    return nil, fmt.Errorf("directip-quic listen %s: %w", addr, err)
                }
            }
            out = append(out, t)

        case "audiobeacon":
            t := audiobeacon.New(shortMeshID(meshID))
            broadcastAddr, _ := tc.Extra["broadcast"].(string)
            if len(tc.Listen) > 0 {
                if err := t.Listen(tc.Listen[0], broadcastAddr); err != nil {
                    return nil, fmt.Errorf("audiobeacon listen %s: %w", tc.Listen[0], err)
                }
            }
            out = append(out, t)

        default:
            return nil, fmt.Errorf("unsupported transport kind %q", tc.Kind)
        }
    }
    return out, nil
}

func dialDirectIPPeers(t *directip.Transport, tc config.TransportConfig) error {
    for _, d := range tc.Dial {
        ep := transport.PlaceholderEndpoint(transport.KindDirectIP, d.Address)
        if d.MeshID != "" {
            ep = transport.EndpointID(d.MeshID)
        }
        if err := t.Dial(context.Background(), ep, d.Address); err != nil {
            zap.L().Warn("directip dial failed", zap.String("address", d.Address), zap.Error(err))
        }
    }
    return nil
}

// shortMeshID returns the first four characters of the canonical
// mesh_id, AudioBeacon's presence token per its framing constraint.
func shortMeshID(meshID identity.MeshID) string {
    s := string(meshID)
    if len(s) <= 4 {
        return s
    }
    return s[:4]
}
