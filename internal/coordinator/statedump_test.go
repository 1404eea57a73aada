package coordinator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/flyitalyadsb/mlat-coordinator/internal/config"
	"github.com/flyitalyadsb/mlat-coordinator/internal/geodesy"
)

func newTestCoordinatorWithWorkDir(t *testing.T) *Coordinator {
	t.Helper()
	cfg := config.Defaults()
	cfg.WorkDir = t.TempDir()
	c := New(cfg, nil, nil)
	c.Start(false)
	t.Cleanup(func() {
		c.Close()
		c.WaitClosed()
	})
	return c
}

func TestDumpStateWritesAllThreeDocuments(t *testing.T) {
	c := newTestCoordinatorWithWorkDir(t)
	addTestReceiver(t, c, "alice", 45.0, 9.0)

	if err := c.DumpState(nil); err != nil {
		t.Fatalf("DumpState: %v", err)
	}

	for _, name := range []string{"aircraft.json", "sync.json", "locations.json"} {
		path := filepath.Join(c.cfg.WorkDir, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s was not written: %v", name, err)
		}
	}
}

func TestDumpStateLocationsDocumentHasReceiverEntry(t *testing.T) {
	c := newTestCoordinatorWithWorkDir(t)
	addTestReceiver(t, c, "alice", 45.0, 9.0)

	if err := c.DumpState(nil); err != nil {
		t.Fatalf("DumpState: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(c.cfg.WorkDir, "locations.json"))
	if err != nil {
		t.Fatalf("read locations.json: %v", err)
	}

	var doc map[string]locationEntry
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal locations.json: %v", err)
	}

	entry, ok := doc["alice"]
	if !ok {
		t.Fatal("locations.json missing entry for alice")
	}
	if entry.Lat != 45.0 || entry.Lon != 9.0 {
		t.Errorf("locations entry = %+v, want lat=45.0 lon=9.0", entry)
	}
}

func TestDumpStateSyncDocumentOmitsCoordinatesForPrivacy(t *testing.T) {
	c := newTestCoordinatorWithWorkDir(t)

	conn := &fakeConnection{}
	r, err := c.NewReceiver(conn, "uuid-priv", "priv", nil,
		geodesy.LLH{LatDeg: 45.0, LonDeg: 9.0, AltM: 0}, nil, "", true, "test")
	if err != nil {
		t.Fatalf("NewReceiver: %v", err)
	}
	_ = r

	if err := c.DumpState(nil); err != nil {
		t.Fatalf("DumpState: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(c.cfg.WorkDir, "sync.json"))
	if err != nil {
		t.Fatalf("read sync.json: %v", err)
	}

	var doc map[string]syncEntry
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal sync.json: %v", err)
	}

	entry, ok := doc["priv"]
	if !ok {
		t.Fatal("sync.json missing entry for priv")
	}
	if entry.Lat != nil || entry.Lon != nil {
		t.Errorf("privacy receiver's coordinates were dumped: lat=%v lon=%v", entry.Lat, entry.Lon)
	}
}

func TestDumpStateStoresBytesInDiagnosticsCache(t *testing.T) {
	c := newTestCoordinatorWithWorkDir(t)
	addTestReceiver(t, c, "alice", 45.0, 9.0)

	if err := c.DumpState(nil); err != nil {
		t.Fatalf("DumpState: %v", err)
	}

	if _, ok := c.Diagnostics.Get("aircraft.json"); !ok {
		t.Error("aircraft.json was not stashed in the diagnostics cache")
	}
}

func TestAircraftDocumentReflectsInterestCounts(t *testing.T) {
	c := newTestCoordinatorWithWorkDir(t)
	r, _ := addTestReceiver(t, c, "alice", 45.0, 9.0)
	c.ReceiverTrackingAdd(r, map[uint32]struct{}{0x123456: {}})

	if err := c.DumpState(nil); err != nil {
		t.Fatalf("DumpState: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(c.cfg.WorkDir, "aircraft.json"))
	if err != nil {
		t.Fatalf("read aircraft.json: %v", err)
	}

	var doc map[string]aircraftEntry
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal aircraft.json: %v", err)
	}

	entry, ok := doc["123456"]
	if !ok {
		t.Fatal("aircraft.json missing entry for 123456")
	}
	if entry.Tracking != 1 {
		t.Errorf("Tracking = %d, want 1", entry.Tracking)
	}
}
