package coordinator

import (
	"testing"
	"time"
)

func TestLegacyReceiverSyncSetBoundedByMaxSyncAircraft(t *testing.T) {
	c := newTestCoordinator(t)
	r, _ := addTestReceiver(t, c, "alice", 45.0, 9.0)

	icaos := make(map[uint32]struct{})
	for i := uint32(0); i < 100; i++ {
		icaos[0x100000+i] = struct{}{}
	}
	c.ReceiverTrackingAdd(r, icaos)

	var syncLen, cap int
	c.submit(func() {
		syncLen = len(r.SyncInterest)
		cap = c.cfg.MaxSyncAircraft
	})

	if syncLen > cap {
		t.Errorf("legacy sync-interest size = %d, exceeds cap %d", syncLen, cap)
	}
}

func TestRateReportEntersRateAwareMode(t *testing.T) {
	c := newTestCoordinator(t)
	r, _ := addTestReceiver(t, c, "alice", 45.0, 9.0)

	c.ReceiverTrackingAdd(r, map[uint32]struct{}{0x123456: {}})
	c.ReceiverRateReport(r, map[uint32]float64{0x123456: 4.0})

	var hasReport bool
	c.submit(func() { hasReport = r.LastRateReport != nil })
	if !hasReport {
		t.Error("rate report was not recorded on the receiver")
	}
}

func TestMlatEmptyWhenBadSyncsPositive(t *testing.T) {
	c := newTestCoordinator(t)
	r, _ := addTestReceiver(t, c, "alice", 45.0, 9.0)

	c.submit(func() { r.BadSyncs = 1.0 })

	c.ReceiverTrackingAdd(r, map[uint32]struct{}{0x123456: {}})

	var mlatLen int
	c.submit(func() { mlatLen = len(r.MlatInterest) })
	if mlatLen != 0 {
		t.Errorf("mlat-interest size = %d with bad_syncs > 0, want 0", mlatLen)
	}
}

func TestQuarantineAttenuatesSyncSet(t *testing.T) {
	c := newTestCoordinator(t)
	r, _ := addTestReceiver(t, c, "alice", 45.0, 9.0)

	c.submit(func() { r.BadSyncs = 3.0 })

	icaos := make(map[uint32]struct{})
	for i := uint32(0); i < 20; i++ {
		icaos[0x200000+i] = struct{}{}
	}
	c.ReceiverTrackingAdd(r, icaos)

	var syncLen, quarter int
	c.submit(func() {
		syncLen = len(r.SyncInterest)
		quarter = c.cfg.MaxSyncAircraft / 4
	})

	if syncLen > quarter {
		t.Errorf("sync-interest size = %d with bad_syncs > 2, want <= quarter (%d)", syncLen, quarter)
	}
}

func TestRequestedIsUnionOfSyncAndMlatInterest(t *testing.T) {
	c := newTestCoordinator(t)
	r, conn := addTestReceiver(t, c, "alice", 45.0, 9.0)

	c.ReceiverTrackingAdd(r, map[uint32]struct{}{0x123456: {}})

	conn.mu.Lock()
	requested := conn.requested
	conn.mu.Unlock()

	var want map[uint32]struct{}
	c.submit(func() {
		want = make(map[uint32]struct{}, len(r.SyncInterest)+len(r.MlatInterest))
		for icao := range r.SyncInterest {
			want[icao] = struct{}{}
		}
		for icao := range r.MlatInterest {
			want[icao] = struct{}{}
		}
	})

	if len(requested) != len(want) {
		t.Fatalf("requested set size = %d, want %d", len(requested), len(want))
	}
	for icao := range want {
		if _, ok := requested[icao]; !ok {
			t.Errorf("requested set missing icao %x present in sync/mlat interest", icao)
		}
	}
}

func TestSyncBadPercentAboveThresholdTriggersMlatWanted(t *testing.T) {
	c := newTestCoordinator(t)
	a, _ := addTestReceiver(t, c, "alice", 45.0, 9.0)
	b, _ := addTestReceiver(t, c, "bob", 46.0, 10.0)

	c.ReceiverTrackingAdd(a, map[uint32]struct{}{0x123456: {}})
	c.ReceiverTrackingAdd(b, map[uint32]struct{}{0x123456: {}})

	c.submit(func() {
		c.aircraft[0x123456].LastAdsbTime = time.Now()
		c.aircraft[0x123456].LastForceMlat = time.Now()
	})

	c.UpdateAircraftProfile(0x123456, nil, 1, 9, false)

	var doMlat bool
	c.submit(func() {
		c.mlatWantedTS = time.Time{}
		c.refreshMlatWantedLocked(time.Now())
		doMlat = c.aircraft[0x123456].DoMlat
	})

	if !doMlat {
		t.Error("DoMlat = false, want true when sync_bad_percent exceeds 10 even with recent ADS-B and outside the force window")
	}
}

func TestRateAwareSyncAppliesAltitudeFactorWithoutPanicking(t *testing.T) {
	c := newTestCoordinator(t)
	a, _ := addTestReceiver(t, c, "alice", 45.0, 9.0)
	b, _ := addTestReceiver(t, c, "bob", 45.01, 9.01)

	c.ReceiverTrackingAdd(a, map[uint32]struct{}{0x123456: {}})
	c.ReceiverTrackingAdd(b, map[uint32]struct{}{0x123456: {}})

	alt := 30000.0
	c.UpdateAircraftProfile(0x123456, &alt, 0, 0, false)

	c.ReceiverRateReport(b, map[uint32]float64{0x123456: 4.0})
	c.ReceiverRateReport(a, map[uint32]float64{0x123456: 4.0})

	var syncLen int
	c.submit(func() { syncLen = len(a.SyncInterest) })
	if syncLen == 0 {
		t.Error("expected alice to select the shared aircraft for sync once both receivers report rates, with the altitude factor applied")
	}
}

func TestRandomSubsetUint32RespectsSize(t *testing.T) {
	c := newTestCoordinator(t)

	set := make(map[uint32]struct{})
	for i := uint32(0); i < 10; i++ {
		set[i] = struct{}{}
	}

	subset := randomSubsetUint32(c.rng, set, 3)
	if len(subset) != 3 {
		t.Errorf("len(subset) = %d, want 3", len(subset))
	}
	for icao := range subset {
		if _, ok := set[icao]; !ok {
			t.Errorf("subset contains %x not present in the source set", icao)
		}
	}
}

func TestRandomSubsetUint32ClampsToSetSize(t *testing.T) {
	c := newTestCoordinator(t)

	set := map[uint32]struct{}{1: {}, 2: {}}
	subset := randomSubsetUint32(c.rng, set, 10)
	if len(subset) != 2 {
		t.Errorf("len(subset) = %d, want 2 when k exceeds set size", len(subset))
	}
}
