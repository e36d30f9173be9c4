package config

// TransportConfig describes one transport kind and its endpoints.
// Example YAML:
// transports:
//   - kind: neighbor
//     listen: [":7777"]
//   - kind: directip
//     listen: [":4433"]
//     dial:
//       - address: "10.0.0.2:4433"
//         mesh_id: "pk:ed25519:..."
//   - kind: directip-quic
//     listen: [":4434"]
//   - kind: pairedradio
//   - kind: audiobeacon
//     listen: [":7778"]
//     extra:
//       broadcast: "255.255.255.255:7778"
type TransportConfig struct {
    Kind   string           `mapstructure:"kind"`
    Listen []string         `mapstructure:"listen"`
    Dial   []PeerDialConfig `mapstructure:"dial"`
    // Extra holds transport-specific options, e.g. AudioBeacon's broadcast address.
    Extra map[string]any `mapstructure:"extra"`
}

// PeerDialConfig describes a target to dial on startup.
type PeerDialConfig struct {
    Address string `mapstructure:"address"`
    MeshID  string `mapstructure:"mesh_id"`
}
