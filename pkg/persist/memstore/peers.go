package memstore

import (
    "encoding/json"
    "sync"
    "time"

    "github.com/pradeepkb1906/MeshTalk/pkg/memkv"
    "github.com/pradeepkb1906/MeshTalk/pkg/persist"
)

// PeerStore is a memkv-backed persist.PeerStore, grounded on the same
// JSON-blob-plus-secondary-index split the teacher's peer store used.
type PeerStore struct {
    kv *memkv.Store

    mu          sync.RWMutex
    index       map[string]struct{} // mesh_id set
    byEndpoint  map[string]string   // endpoint_id -> mesh_id

    bus *broadcaster[persist.Peer]
}

func NewPeerStore(kv *memkv.Store) *PeerStore {
    return &PeerStore{
        kv:         kv,
        index:      make(map[string]struct{}),
        byEndpoint: make(map[string]string),
        bus:        newBroadcaster[persist.Peer](),
    }
}

func peerKey(meshID string) string { return "peer:" + meshID }

func (s *PeerStore) Upsert(p persist.Peer) error {
    b, err := json.Marshal(p)
    if err != nil {
        return err
    }
    s.kv.Set(peerKey(p.MeshID), b, 0)
    s.mu.Lock()
    s.index[p.MeshID] = struct{}{}
    if p.EndpointID != "" {
        s.byEndpoint[p.EndpointID] = p.MeshID
    }
    s.mu.Unlock()
    s.bus.publish(p.MeshID, p)
    return nil
}

func (s *PeerStore) GetByMeshID(meshID string) (persist.Peer, bool, error) {
    b, ok := s.kv.Get(peerKey(meshID))
    if !ok {
        return persist.Peer{}, false, nil
    }
    var p persist.Peer
    if err := json.Unmarshal(b, &p); err != nil {
        return persist.Peer{}, false, err
    }
    return p, true, nil
}

func (s *PeerStore) GetByEndpointID(endpointID string) (persist.Peer, bool, error) {
    s.mu.RLock()
    meshID, ok := s.byEndpoint[endpointID]
    s.mu.RUnlock()
    if !ok {
        return persist.Peer{}, false, nil
    }
    return s.GetByMeshID(meshID)
}

func (s *PeerStore) UpdateConnectionState(meshID string, state persist.ConnectionState) error {
    var updated persist.Peer
    ok := s.kv.Update(peerKey(meshID), func(old []byte) []byte {
        var p persist.Peer
        _ = json.Unmarshal(old, &p)
        p.MeshID = meshID
        p.ConnectionState = state
        updated = p
        b, _ := json.Marshal(p)
        return b
    })
    if ok {
        s.bus.publish(meshID, updated)
    }
    return nil
}

func (s *PeerStore) GetConnectedList() ([]persist.Peer, error) {
    s.mu.RLock()
    ids := make([]string, 0, len(s.index))
    for id := range s.index {
        ids = append(ids, id)
    }
    s.mu.RUnlock()

    out := make([]persist.Peer, 0, len(ids))
    for _, id := range ids {
        p, ok, err := s.GetByMeshID(id)
        if err != nil || !ok {
            continue
        }
        if p.ConnectionState == persist.StateConnected || p.ConnectionState == persist.StateAuthenticated {
            out = append(out, p)
        }
    }
    return out, nil
}

func (s *PeerStore) ObservePeer(meshID string) <-chan persist.Peer {
    return s.bus.subscribe(meshID)
}

func (s *PeerStore) MarkLost(threshold time.Duration) ([]persist.Peer, error) {
    cutoff := time.Now().Add(-threshold).UnixMilli()
    s.mu.RLock()
    ids := make([]string, 0, len(s.index))
    for id := range s.index {
        ids = append(ids, id)
    }
    s.mu.RUnlock()

    var lost []persist.Peer
    for _, id := range ids {
        p, ok, err := s.GetByMeshID(id)
        if err != nil || !ok {
            continue
        }
        if p.ConnectionState == persist.StateLost || p.ConnectionState == persist.StateDisconnected {
            continue
        }
        if p.LastSeen < cutoff {
            if err := s.UpdateConnectionState(id, persist.StateLost); err == nil {
                p.ConnectionState = persist.StateLost
                lost = append(lost, p)
            }
        }
    }
    return lost, nil
}

func (s *PeerStore) DisconnectAll() error {
    s.mu.RLock()
    ids := make([]string, 0, len(s.index))
    for id := range s.index {
        ids = append(ids, id)
    }
    s.mu.RUnlock()
    for _, id := range ids {
        _ = s.UpdateConnectionState(id, persist.StateDisconnected)
    }
    return nil
}
