package coordinator

import (
	"sync"
	"testing"
	"time"

	"github.com/flyitalyadsb/mlat-coordinator/internal/config"
	"github.com/flyitalyadsb/mlat-coordinator/internal/geodesy"
)

// fakeConnection records every call made to it, so tests can assert on
// what the coordination core asked a receiver's wire handler to do.
type fakeConnection struct {
	mu        sync.Mutex
	requested map[uint32]struct{}
	reports   int
}

func (f *fakeConnection) RequestTraffic(icaos map[uint32]struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = icaos
}

func (f *fakeConnection) ReportMlatPosition(ts time.Time, icao uint32, ecef geodesy.ECEF, ecefCov [6]float64,
	receivers []*Receiver, distinct, dof int, kalman KalmanState, resultNewOld *[2]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports++
}

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	cfg := config.Defaults()
	c := New(cfg, nil, nil)
	c.Start(false)
	t.Cleanup(func() {
		c.Close()
		c.WaitClosed()
	})
	return c
}

func addTestReceiver(t *testing.T, c *Coordinator, user string, lat, lon float64) (*Receiver, *fakeConnection) {
	t.Helper()
	conn := &fakeConnection{}
	r, err := c.NewReceiver(conn, "uuid-"+user, user, nil,
		geodesy.LLH{LatDeg: lat, LonDeg: lon, AltM: 100}, nil, "", false, "test")
	if err != nil {
		t.Fatalf("NewReceiver(%s): %v", user, err)
	}
	return r, conn
}
