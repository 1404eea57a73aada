package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInLocalPartitionSinglePartitionAlwaysTrue(t *testing.T) {
	for _, icao := range []uint32{0, 1, 0xABCDEF, 0xFFFFFFFF} {
		if !InLocalPartition(icao, 1, 1) {
			t.Errorf("InLocalPartition(%x, 1, 1) = false, want true", icao)
		}
	}
}

func TestInLocalPartitionDeterministic(t *testing.T) {
	icao := uint32(0xA1B2C3)
	first := InLocalPartition(icao, 2, 4)
	for i := 0; i < 10; i++ {
		if got := InLocalPartition(icao, 2, 4); got != first {
			t.Fatalf("InLocalPartition not deterministic: got %v, want %v", got, first)
		}
	}
}

func TestInLocalPartitionDisjoint(t *testing.T) {
	const count = 4
	icaos := []uint32{0, 1, 2, 100, 0xABCDEF, 0x123456, 0xFFFFFF, 42, 999999, 0x7C1234}

	for _, icao := range icaos {
		owners := 0
		for idx := 1; idx <= count; idx++ {
			if InLocalPartition(icao, idx, count) {
				owners++
			}
		}
		if owners != 1 {
			t.Errorf("icao %x claimed by %d partitions out of %d, want exactly 1", icao, owners, count)
		}
	}
}

func TestTrackingAddCreatesMirroredEdges(t *testing.T) {
	c := newTestCoordinator(t)
	r, _ := addTestReceiver(t, c, "alice", 45.0, 9.0)

	c.ReceiverTrackingAdd(r, map[uint32]struct{}{0x123456: {}})

	var ac *TrackedAircraft
	c.submit(func() { ac = c.aircraft[0x123456] })
	if ac == nil {
		t.Fatal("tracked aircraft was not created")
	}
	if _, ok := ac.Tracking[r.UID]; !ok {
		t.Error("aircraft.Tracking does not mirror receiver.Tracking")
	}
	if _, ok := r.Tracking[0x123456]; !ok {
		t.Error("receiver.Tracking missing the added icao")
	}
}

func TestTrackingRemoveDeletesEmptiedAircraft(t *testing.T) {
	c := newTestCoordinator(t)
	r, _ := addTestReceiver(t, c, "alice", 45.0, 9.0)

	c.ReceiverTrackingAdd(r, map[uint32]struct{}{0x123456: {}})
	c.ReceiverTrackingRemove(r, map[uint32]struct{}{0x123456: {}})

	var exists bool
	c.submit(func() { _, exists = c.aircraft[0x123456] })
	if exists {
		t.Error("aircraft with no remaining trackers should have been deleted")
	}
	if _, ok := r.Tracking[0x123456]; ok {
		t.Error("receiver.Tracking still has the removed icao")
	}
}

func TestAddRemoveRoundTripLeavesNoDanglingState(t *testing.T) {
	c := newTestCoordinator(t)
	r, _ := addTestReceiver(t, c, "alice", 45.0, 9.0)

	icaos := map[uint32]struct{}{0x111111: {}, 0x222222: {}, 0x333333: {}}
	c.ReceiverTrackingAdd(r, icaos)
	c.ReceiverTrackingRemove(r, icaos)

	assert.Empty(t, r.Tracking, "receiver.Tracking should be empty after a full add/remove round trip")

	var remaining map[uint32]*TrackedAircraft
	c.submit(func() {
		remaining = make(map[uint32]*TrackedAircraft, len(c.aircraft))
		for icao, ac := range c.aircraft {
			remaining[icao] = ac
		}
	})
	assert.Empty(t, remaining, "no aircraft should remain after a full add/remove round trip")
}

func TestDisconnectRemovesAllMirroredEdges(t *testing.T) {
	c := newTestCoordinator(t)
	a, _ := addTestReceiver(t, c, "alice", 45.0, 9.0)
	b, _ := addTestReceiver(t, c, "bob", 46.0, 10.0)

	shared := map[uint32]struct{}{0xABCDEF: {}}
	c.ReceiverTrackingAdd(a, shared)
	c.ReceiverTrackingAdd(b, shared)

	c.ReceiverDisconnect(a)

	var ac *TrackedAircraft
	c.submit(func() { ac = c.aircraft[0xABCDEF] })
	if ac == nil {
		t.Fatal("aircraft should still exist: bob still tracks it")
	}

	assert.NotContains(t, ac.Tracking, a.UID, "disconnected receiver's uid should be gone from the aircraft's Tracking set")
	assert.Contains(t, ac.Tracking, b.UID, "bob's uid should remain in Tracking")
}
