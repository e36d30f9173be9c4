package memstore

import (
    "encoding/json"
    "sync"
    "time"

    "github.com/pradeepkb1906/MeshTalk/pkg/memkv"
    "github.com/pradeepkb1906/MeshTalk/pkg/persist"
)

// MessageStore is a memkv-backed persist.MessageStore. Secondary indices
// (by conversation, by destination peer) are kept as an in-memory
// protected map alongside the memkv blobs, the same split pkg/peers used
// between durable metadata and a lightweight lookup index.
type MessageStore struct {
    kv *memkv.Store

    mu           sync.RWMutex
    byConv       map[string]map[string]struct{} // conversation_id -> packet_ids
    byDest       map[string]map[string]struct{} // destination_id -> packet_ids
    timestamps   map[string]int64               // packet_id -> timestamp, for relay/retention scans

    bus *broadcaster[persist.MeshMessage]
}

func NewMessageStore(kv *memkv.Store) *MessageStore {
    return &MessageStore{
        kv:         kv,
        byConv:     make(map[string]map[string]struct{}),
        byDest:     make(map[string]map[string]struct{}),
        timestamps: make(map[string]int64),
        bus:        newBroadcaster[persist.MeshMessage](),
    }
}

func messageKey(packetID string) string { return "msg:" + packetID }

func (s *MessageStore) InsertIgnore(m persist.MeshMessage) error {
    exists, err := s.Exists(m.PacketID)
    if err != nil || exists {
        return err
    }
    b, err := json.Marshal(m)
    if err != nil {
        return err
    }
    s.kv.Set(messageKey(m.PacketID), b, 0)

    s.mu.Lock()
    if s.byConv[m.ConversationID] == nil {
        s.byConv[m.ConversationID] = make(map[string]struct{})
    }
    s.byConv[m.ConversationID][m.PacketID] = struct{}{}
    if s.byDest[m.DestinationID] == nil {
        s.byDest[m.DestinationID] = make(map[string]struct{})
    }
    s.byDest[m.DestinationID][m.PacketID] = struct{}{}
    s.timestamps[m.PacketID] = m.Timestamp
    s.mu.Unlock()

    s.bus.publish(m.ConversationID, m)
    return nil
}

func (s *MessageStore) Exists(packetID string) (bool, error) {
    _, ok := s.kv.Get(messageKey(packetID))
    return ok, nil
}

func (s *MessageStore) UpdateStatus(packetID string, status persist.MessageStatus) error {
    var updated persist.MeshMessage
    ok := s.kv.Update(messageKey(packetID), func(old []byte) []byte {
        var m persist.MeshMessage
        _ = json.Unmarshal(old, &m)
        m.Status = status
        updated = m
        b, _ := json.Marshal(m)
        return b
    })
    if ok {
        s.bus.publish(updated.ConversationID, updated)
    }
    return nil
}

func (s *MessageStore) MarkAllRead(conversationID string) error {
    s.mu.RLock()
    ids := make([]string, 0, len(s.byConv[conversationID]))
    for id := range s.byConv[conversationID] {
        ids = append(ids, id)
    }
    s.mu.RUnlock()
    for _, id := range ids {
        _ = s.kv.Update(messageKey(id), func(old []byte) []byte {
            var m persist.MeshMessage
            _ = json.Unmarshal(old, &m)
            m.IsRead = true
            b, _ := json.Marshal(m)
            return b
        })
    }
    return nil
}

func (s *MessageStore) GetUndeliveredForPeer(peerID string) ([]persist.MeshMessage, error) {
    s.mu.RLock()
    ids := make([]string, 0, len(s.byDest[peerID]))
    for id := range s.byDest[peerID] {
        ids = append(ids, id)
    }
    s.mu.RUnlock()

    out := make([]persist.MeshMessage, 0, len(ids))
    for _, id := range ids {
        m, ok, err := s.GetByPacketID(id)
        if err != nil || !ok {
            continue
        }
        if m.Status != persist.StatusDelivered && m.Status != persist.StatusRead {
            out = append(out, m)
        }
    }
    return out, nil
}

func (s *MessageStore) GetRelayableSince(t time.Time) ([]persist.MeshMessage, error) {
    cutoff := t.UnixMilli()
    s.mu.RLock()
    ids := make([]string, 0)
    for id, ts := range s.timestamps {
        if ts >= cutoff {
            ids = append(ids, id)
        }
    }
    s.mu.RUnlock()

    out := make([]persist.MeshMessage, 0, len(ids))
    for _, id := range ids {
        m, ok, err := s.GetByPacketID(id)
        if err != nil || !ok {
            continue
        }
        out = append(out, m)
    }
    return out, nil
}

func (s *MessageStore) GetByPacketID(packetID string) (persist.MeshMessage, bool, error) {
    b, ok := s.kv.Get(messageKey(packetID))
    if !ok {
        return persist.MeshMessage{}, false, nil
    }
    var m persist.MeshMessage
    if err := json.Unmarshal(b, &m); err != nil {
        return persist.MeshMessage{}, false, err
    }
    return m, true, nil
}

func (s *MessageStore) ObserveForConversation(conversationID string) <-chan persist.MeshMessage {
    return s.bus.subscribe(conversationID)
}

func (s *MessageStore) DeleteOlderThan(t time.Time) (int, error) {
    cutoff := t.UnixMilli()
    s.mu.Lock()
    var stale []string
    for id, ts := range s.timestamps {
        if ts < cutoff {
            stale = append(stale, id)
        }
    }
    for _, id := range stale {
        delete(s.timestamps, id)
    }
    s.mu.Unlock()

    for _, id := range stale {
        s.kv.Delete(messageKey(id))
        s.mu.Lock()
        for conv, set := range s.byConv {
            delete(set, id)
            if len(set) == 0 {
                delete(s.byConv, conv)
            }
        }
        for dest, set := range s.byDest {
            delete(set, id)
            if len(set) == 0 {
                delete(s.byDest, dest)
            }
        }
        s.mu.Unlock()
    }
    return len(stale), nil
}
