package memstore

import (
    "encoding/json"
    "sync"

    "github.com/pradeepkb1906/MeshTalk/pkg/memkv"
    "github.com/pradeepkb1906/MeshTalk/pkg/persist"
)

// ConversationStore is a memkv-backed persist.ConversationStore.
type ConversationStore struct {
    kv *memkv.Store

    mu        sync.RWMutex
    byPeer    map[string]string // peer_id -> conversation id

    bus *broadcaster[persist.Conversation]
}

func NewConversationStore(kv *memkv.Store) *ConversationStore {
    return &ConversationStore{
        kv:     kv,
        byPeer: make(map[string]string),
        bus:    newBroadcaster[persist.Conversation](),
    }
}

func conversationKey(id string) string { return "conv:" + id }

func (s *ConversationStore) Upsert(c persist.Conversation) error {
    b, err := json.Marshal(c)
    if err != nil {
        return err
    }
    s.kv.Set(conversationKey(c.ID), b, 0)
    if c.PeerID != "" {
        s.mu.Lock()
        s.byPeer[c.PeerID] = c.ID
        s.mu.Unlock()
    }
    s.bus.publish(c.ID, c)
    return nil
}

func (s *ConversationStore) GetByID(id string) (persist.Conversation, bool, error) {
    b, ok := s.kv.Get(conversationKey(id))
    if !ok {
        return persist.Conversation{}, false, nil
    }
    var c persist.Conversation
    if err := json.Unmarshal(b, &c); err != nil {
        return persist.Conversation{}, false, err
    }
    return c, true, nil
}

func (s *ConversationStore) GetByPeerID(peerID string) (persist.Conversation, bool, error) {
    s.mu.RLock()
    id, ok := s.byPeer[peerID]
    s.mu.RUnlock()
    if !ok {
        return persist.Conversation{}, false, nil
    }
    return s.GetByID(id)
}

func (s *ConversationStore) ObserveByID(id string) <-chan persist.Conversation {
    return s.bus.subscribe(id)
}

func (s *ConversationStore) UpdateLastMessage(id, preview string, ts int64, incrementUnread bool) error {
    var updated persist.Conversation
    ok := s.kv.Update(conversationKey(id), func(old []byte) []byte {
        var c persist.Conversation
        _ = json.Unmarshal(old, &c)
        c.ID = id
        c.LastMessagePreview = preview
        c.LastMessageTime = ts
        c.UpdatedAt = ts
        if incrementUnread {
            c.UnreadCount++
        }
        updated = c
        b, _ := json.Marshal(c)
        return b
    })
    if ok {
        s.bus.publish(id, updated)
    }
    return nil
}

func (s *ConversationStore) ClearUnread(id string) error {
    var updated persist.Conversation
    ok := s.kv.Update(conversationKey(id), func(old []byte) []byte {
        var c persist.Conversation
        _ = json.Unmarshal(old, &c)
        c.UnreadCount = 0
        updated = c
        b, _ := json.Marshal(c)
        return b
    })
    if ok {
        s.bus.publish(id, updated)
    }
    return nil
}
