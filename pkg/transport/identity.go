package transport

import (
    "fmt"
)

// PlaceholderEndpoint builds a temporary endpoint handle for a link that
// has not yet yielded a packet carrying the peer's true mesh_id, e.g. a
// freshly accepted or dialed DirectIP connection before its first frame.
func PlaceholderEndpoint(kind Kind, addr string) EndpointID {
    return EndpointID(fmt.Sprintf("pending:%s:%s", kind, addr))
}

// ShortID returns the first four characters of a mesh_id, used as the
// synthetic identity carried in AudioBeacon "HELLO" frames.
func ShortID(meshID string) string {
    if len(meshID) <= 4 {
        return meshID
    }
    return meshID[:4]
}
