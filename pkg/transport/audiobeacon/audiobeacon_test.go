package audiobeacon

import (
    "testing"
    "time"

    "github.com/pradeepkb1906/MeshTalk/pkg/transport"
)

func TestReapStaleFiresDisconnectForMissedBeacons(t *testing.T) {
    tr := New("abcd")
    disconnected := make(chan transport.EndpointID, 1)
    tr.OnDisconnect(func(endpoint transport.EndpointID) { disconnected <- endpoint })

    tr.mu.Lock()
    tr.seen["beacon:1.2.3.4:wxyz"] = time.Now().Add(-2 * BeaconTimeout)
    tr.mu.Unlock()

    tr.reapStale()

    select {
    case ep := <-disconnected:
        if ep != "beacon:1.2.3.4:wxyz" {
            t.Fatalf("expected beacon:1.2.3.4:wxyz, got %s", ep)
        }
    default:
        t.Fatal("expected OnDisconnect to fire for the missed-beacon endpoint")
    }

    tr.mu.Lock()
    _, known := tr.seen["beacon:1.2.3.4:wxyz"]
    tr.mu.Unlock()
    if known {
        t.Fatal("expected stale beacon sighting to be dropped")
    }
}

func TestReapStaleLeavesRecentBeaconAlone(t *testing.T) {
    tr := New("abcd")
    tr.OnDisconnect(func(endpoint transport.EndpointID) {
        t.Fatalf("unexpected disconnect for recently-seen endpoint %s", endpoint)
    })

    tr.mu.Lock()
    tr.seen["beacon:1.2.3.4:wxyz"] = time.Now()
    tr.mu.Unlock()

    tr.reapStale()

    tr.mu.Lock()
    _, known := tr.seen["beacon:1.2.3.4:wxyz"]
    tr.mu.Unlock()
    if !known {
        t.Fatal("expected recently-seen beacon sighting to survive the liveness sweep")
    }
}
