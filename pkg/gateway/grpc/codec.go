// Package grpcgw exposes the mesh router's outbound operations and the
// status bus's three streams to a local operator tool over gRPC. It is a
// control surface around the router, not part of the mesh routing or
// transport brain itself.
//
// Messages on the wire are plain Go structs, not generated protobuf
// types: gRPC is told to marshal them with the same CBOR codec the mesh
// wire format already uses, via the encoding.Codec override hook, so the
// control surface reuses pkg/protocol/codec instead of carrying a second
// schema and code generator.
package grpcgw

import (
    "fmt"

    "google.golang.org/grpc/encoding"

    "github.com/pradeepkb1906/MeshTalk/pkg/protocol/codec"
)

// CodecName is registered with gRPC's encoding package and selected via
// the "cbor" content-subtype (content-type "application/grpc+cbor") on
// both ends of the connection.
const CodecName = "cbor"

func init() {
    c, err := codec.CBOR()
    if err != nil {
        panic(fmt.Errorf("grpcgw: init cbor codec: %w", err))
    }
    encoding.RegisterCodec(grpcCBORCodec{inner: c})
}

// grpcCBORCodec adapts pkg/protocol/codec.Codec to gRPC's encoding.Codec
// interface so RPC messages ride the same wire format as mesh packets.
type grpcCBORCodec struct {
    inner codec.Codec
}

func (c grpcCBORCodec) Marshal(v any) ([]byte, error) {
    b, err := c.inner.Marshal(v)
    if err != nil {
        return nil, fmt.Errorf("grpcgw: marshal: %w", err)
    }
    return b, nil
}

func (c grpcCBORCodec) Unmarshal(data []byte, v any) error {
    if err := c.inner.Unmarshal(data, v); err != nil {
        return fmt.Errorf("grpcgw: unmarshal: %w", err)
    }
    return nil
}

func (c grpcCBORCodec) Name() string { return CodecName }
