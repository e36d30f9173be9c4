package statusbus

import (
    "testing"
    "time"

    "github.com/pradeepkb1906/MeshTalk/pkg/persist"
)

func TestIncomingMessagesDeliversToSubscriber(t *testing.T) {
    b := New()
    sub := b.SubscribeIncoming()
    b.PublishIncoming(persist.MeshMessage{PacketID: "p1"})

    select {
    case m := <-sub:
        if m.PacketID != "p1" {
            t.Fatalf("expected p1, got %s", m.PacketID)
        }
    case <-time.After(time.Second):
        t.Fatal("timed out waiting for incoming message")
    }
}

func TestIncomingMessagesOverflowDropsOldest(t *testing.T) {
    b := New()
    sub := b.SubscribeIncoming()

    for i := 0; i < incomingMessagesCapacity+5; i++ {
        b.PublishIncoming(persist.MeshMessage{PacketID: string(rune('a' + i%26))})
    }

    // The buffer should hold exactly its capacity worth of messages, with
    // the oldest ones evicted rather than the publisher having blocked.
    count := 0
    for {
        select {
        case <-sub:
            count++
        default:
            goto done
        }
    }
done:
    if count != incomingMessagesCapacity {
        t.Fatalf("expected buffer to hold %d messages, got %d", incomingMessagesCapacity, count)
    }
}

func TestConnectionStatusCellReplaysLatestToNewSubscriber(t *testing.T) {
    b := New()
    b.PublishConnectionStatus(ConnectionStatus{ConnectedPeers: 3})

    sub := b.SubscribeConnectionStatus()
    select {
    case s := <-sub:
        if s.ConnectedPeers != 3 {
            t.Fatalf("expected late subscriber to see latest snapshot, got %+v", s)
        }
    case <-time.After(time.Second):
        t.Fatal("timed out waiting for connection status replay")
    }
}

func TestStatusUpdatesDeliversErrorEvent(t *testing.T) {
    b := New()
    sub := b.SubscribeUpdates()
    b.PublishUpdate(StatusUpdate{Kind: Error, Message: "boom"})

    select {
    case u := <-sub:
        if u.Kind != Error || u.Message != "boom" {
            t.Fatalf("unexpected update: %+v", u)
        }
    case <-time.After(time.Second):
        t.Fatal("timed out waiting for status update")
    }
}
