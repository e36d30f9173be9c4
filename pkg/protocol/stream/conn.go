// Package stream frames MeshPacket exchanges over an io.ReadWriter using
// the length-prefixed DirectIP wire format from spec §6.
package stream

import (
    "bufio"
    "io"
    "net"

    "github.com/pradeepkb1906/MeshTalk/pkg/protocol"
    "github.com/pradeepkb1906/MeshTalk/pkg/protocol/codec"
)

// Conn wraps an io.ReadWriter to send/receive length-prefixed MeshPacket frames.
type Conn struct {
    rw  io.ReadWriter
    br  *bufio.Reader
    bw  *bufio.Writer
    reg *codec.Registry
}

func New(rw io.ReadWriter, reg *codec.Registry) *Conn {
    return &Conn{rw: rw, br: bufio.NewReader(rw), bw: bufio.NewWriter(rw), reg: reg}
}

func NewNetConn(c net.Conn, reg *codec.Registry) *Conn { return New(c, reg) }

// Send encodes p and writes it as one length-prefixed frame.
func (c *Conn) Send(p *protocol.MeshPacket, format protocol.Format) error {
    body, err := protocol.Encode(c.reg, format, p)
    if err != nil {
        return err
    }
    if err := protocol.WriteFramed(c.bw, body); err != nil {
        return err
    }
    return c.bw.Flush()
}

// Recv reads one length-prefixed frame and decodes it.
// Returns (nil, nil) if the frame decodes to a malformed packet.
func (c *Conn) Recv() (*protocol.MeshPacket, error) {
    body, err := protocol.ReadFramed(c.br)
    if err != nil {
        return nil, err
    }
    return protocol.Decode(c.reg, body)
}

// Reader exposes the buffered reader for callers that frame/decode at a
// lower level than Recv, e.g. a transport that hands raw encoded bodies
// up to the dispatcher for decoding.
func (c *Conn) Reader() io.Reader { return c.br }

// SendFramed writes raw (already-encoded) bytes as one length-prefixed
// frame without going through the packet codec.
func (c *Conn) SendFramed(raw []byte) error {
    if err := protocol.WriteFramed(c.bw, raw); err != nil {
        return err
    }
    return c.bw.Flush()
}
