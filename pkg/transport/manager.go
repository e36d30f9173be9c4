package transport

import (
    "sort"
    "sync"
)

// link records one transport's view of a mesh_id: the endpoint handle it
// uses to reach that peer and the kind of link it traveled in on.
type link struct {
    kind     Kind
    endpoint EndpointID
}

// Registry tracks, per mesh_id, every transport currently able to reach
// it. The dispatcher consults it to pick the best transport for a
// targeted send and to fan out broadcasts across every known link.
type Registry struct {
    mu    sync.RWMutex
    links map[string][]link // mesh_id -> links, highest priority first
}

func NewRegistry() *Registry { return &Registry{links: make(map[string][]link)} }

// Note records that meshID is reachable via endpoint over the transport
// of the given kind. Calling it again for the same (meshID, kind) just
// refreshes the endpoint.
func (r *Registry) Note(meshID string, kind Kind, endpoint EndpointID) {
    if meshID == "" {
        return
    }
    r.mu.Lock()
    defer r.mu.Unlock()
    ls := r.links[meshID]
    for i := range ls {
        if ls[i].kind == kind {
            ls[i].endpoint = endpoint
            return
        }
    }
    ls = append(ls, link{kind: kind, endpoint: endpoint})
    sort.Slice(ls, func(i, j int) bool { return ls[i].kind.Priority() > ls[j].kind.Priority() })
    r.links[meshID] = ls
}

// Forget drops every link recorded for meshID, e.g. on peer disconnect.
func (r *Registry) Forget(meshID string) {
    r.mu.Lock()
    defer r.mu.Unlock()
    delete(r.links, meshID)
}

// Best returns the highest-priority (kind, endpoint) pair known for
// meshID, if any.
func (r *Registry) Best(meshID string) (Kind, EndpointID, bool) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    ls := r.links[meshID]
    if len(ls) == 0 {
        return KindUnknown, "", false
    }
    return ls[0].kind, ls[0].endpoint, true
}

// All returns every (kind, endpoint) pair known for meshID, priority first.
func (r *Registry) All(meshID string) []struct {
    Kind     Kind
    Endpoint EndpointID
} {
    r.mu.RLock()
    defer r.mu.RUnlock()
    ls := r.links[meshID]
    out := make([]struct {
        Kind     Kind
        Endpoint EndpointID
    }, len(ls))
    for i, l := range ls {
        out[i] = struct {
            Kind     Kind
            Endpoint EndpointID
        }{Kind: l.kind, Endpoint: l.endpoint}
    }
    return out
}

// KnownPeers lists every mesh_id with at least one live link.
func (r *Registry) KnownPeers() []string {
    r.mu.RLock()
    defer r.mu.RUnlock()
    out := make([]string, 0, len(r.links))
    for id := range r.links {
        out = append(out, id)
    }
    sort.Strings(out)
    return out
}
