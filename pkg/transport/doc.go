// Package transport defines the abstract contract shared by the four mesh
// link technologies and a registry that tracks, per mesh_id, which
// transport currently reaches it.
//
// Key concepts:
//   - Transport: owns one link technology's background I/O and delivers
//     raw encoded packets to the dispatcher, which decodes them, via
//     PacketHandler.
//   - EndpointID: a transport-local handle for a remote peer, upgraded to
//     a real mesh_id once identity is learned from a received packet.
//   - Registry: tracks (mesh_id -> transport kind, endpoint) so outbound
//     sends can pick the highest-priority live link for a target.
package transport
