package main

import (
    "context"
    "time"

    "google.golang.org/grpc"
    "google.golang.org/grpc/credentials/insecure"

    grpcgw "github.com/pradeepkb1906/MeshTalk/pkg/gateway/grpc"
)

// dial opens a plaintext connection to a meshnode's control surface.
// The mesh is assumed to run on a trusted LAN or VPN; TLS is a future
// addition, not something meshctl needs to negotiate today.
func dial(addr string, timeout time.Duration) (*grpcgw.Client, func(), error) {
    ctx, cancel := context.WithTimeout(context.Background(), timeout)
    defer cancel()

    cc, err := grpc.DialContext(ctx, addr,
        grpc.WithTransportCredentials(insecure.NewCredentials()),
        grpc.WithBlock(),
        grpcgw.DialOption(),
    )
    if err != nil {
        return nil, nil, err
    }
    return grpcgw.NewClient(cc), func() { _ = cc.Close() }, nil
}
