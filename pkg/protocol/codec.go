package protocol

import (
    "encoding/binary"
    "fmt"
    "io"

    "github.com/pradeepkb1906/MeshTalk/pkg/protocol/codec"
)

// Format is a one-byte on-wire indicator of the packet's encoding, carried
// as the first byte ahead of the encoded body so a decoder never has to
// guess or be told out-of-band which codec produced the bytes.
type Format uint8

const (
    FormatUnknown Format = iota
    FormatCBOR
    FormatJSON
)

func (f Format) String() string {
    switch f {
    case FormatCBOR:
        return codec.ContentCBOR
    case FormatJSON:
        return codec.ContentJSON
    default:
        return codec.ContentUnknown
    }
}

// DefaultRegistry is preloaded with the CBOR and JSON codecs used for
// MeshPacket encoding. CBOR is canonical/deterministic; see pkg/protocol/codec.
func DefaultRegistry() (*codec.Registry, error) {
    r := codec.NewRegistry()
    cb, err := codec.CBOR()
    if err != nil {
        return nil, fmt.Errorf("build cbor codec: %w", err)
    }
    r.Register(cb)
    return r, nil
}

func codecFor(r *codec.Registry, f Format) (codec.Codec, error) {
    switch f {
    case FormatCBOR:
        if c := r.Get(codec.ContentCBOR); c != nil {
            return c, nil
        }
        return codec.CBOR()
    case FormatJSON:
        if c := r.Get(codec.ContentJSON); c != nil {
            return c, nil
        }
        return codec.JSON(), nil
    default:
        return nil, fmt.Errorf("unknown packet format: %d", f)
    }
}

// Encode serializes p with the given format and prefixes the result with
// the one-byte format marker. The result is the self-describing byte
// string required by §4.1: decode(encode(p)) reproduces p for any p whose
// fields lie within their declared ranges, and unknown fields present in a
// newer encoding are ignored by construction of the underlying codec.
func Encode(r *codec.Registry, f Format, p *MeshPacket) ([]byte, error) {
    c, err := codecFor(r, f)
    if err != nil {
        return nil, err
    }
    body, err := c.Marshal(p)
    if err != nil {
        return nil, fmt.Errorf("marshal packet: %w", err)
    }
    out := make([]byte, 1+len(body))
    out[0] = byte(f)
    copy(out[1:], body)
    return out, nil
}

// Decode parses bytes produced by Encode. It returns (nil, nil) — not an
// error — on malformed or truncated input, per §4.1: "decode(bytes) →
// packet or None... returns None on malformed input."
func Decode(r *codec.Registry, data []byte) (*MeshPacket, error) {
    if len(data) < 1 {
        return nil, nil
    }
    f := Format(data[0])
    c, err := codecFor(r, f)
    if err != nil {
        return nil, nil
    }
    var p MeshPacket
    if err := c.Unmarshal(data[1:], &p); err != nil {
        return nil, nil
    }
    return &p, nil
}

// WriteFramed writes data to w preceded by a 4-byte little-endian length
// prefix, the DirectIP framing rule from §6. Payloads above
// MaxDirectIPFrame are rejected before any bytes are written.
func WriteFramed(w io.Writer, data []byte) error {
    if len(data) > MaxDirectIPFrame {
        return fmt.Errorf("frame of %d bytes exceeds max %d", len(data), MaxDirectIPFrame)
    }
    var lenBuf [4]byte
    binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
    if _, err := w.Write(lenBuf[:]); err != nil {
        return err
    }
    _, err := w.Write(data)
    return err
}

// ReadFramed reads one length-prefixed frame written by WriteFramed.
func ReadFramed(r io.Reader) ([]byte, error) {
    var lenBuf [4]byte
    if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
        return nil, err
    }
    n := binary.LittleEndian.Uint32(lenBuf[:])
    if n > MaxDirectIPFrame {
        return nil, fmt.Errorf("framed length %d exceeds max %d", n, MaxDirectIPFrame)
    }
    buf := make([]byte, n)
    if _, err := io.ReadFull(r, buf); err != nil {
        return nil, err
    }
    return buf, nil
}
