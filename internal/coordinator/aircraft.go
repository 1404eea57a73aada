package coordinator

import (
	"math/rand"
	"time"

	"github.com/flyitalyadsb/mlat-coordinator/internal/geodesy"
)

// TrackedAircraft is a single aircraft known to at least one receiver. Its
// relation sets hold stable receiver UIDs into the receiver arena, not
// pointers, mirroring Receiver's ICAO sets.
type TrackedAircraft struct {
	ICAO uint32

	// AllowMlat is true iff this aircraft's ICAO hashes into this
	// process's partition.
	AllowMlat bool

	// Tracking is the set of receiver UIDs that can see this aircraft.
	// Invariant: uid ∈ a.Tracking iff icao ∈ receivers[uid].Tracking.
	Tracking map[int64]struct{}
	// SyncInterest is the set of receiver UIDs using this aircraft for
	// clock synchronization.
	SyncInterest map[int64]struct{}
	// AdsbSeen is the set of receiver UIDs that have seen ADS-B from
	// this aircraft.
	AdsbSeen map[int64]struct{}
	// MlatInterest is the set of receiver UIDs that want this aircraft
	// for multilateration.
	MlatInterest map[int64]struct{}

	LastAdsbTime   time.Time
	LastForceMlat  time.Time
	ForceMlat      bool

	MlatMessageCount int
	MlatResultCount  int
	MlatKalmanCount  int

	Altitude        *float64
	LastAltitudeTime time.Time
	AltHistory      []altitudeSample
	Vrate           *float64
	VrateTime       time.Time

	LastResultTime     time.Time
	LastResultPosition geodesy.ECEF
	LastResultVar      float64
	LastResultDistinct int

	Kalman KalmanState

	SyncGood       int
	SyncBad        int
	SyncDontUse    bool
	SyncBadPercent float64

	DoMlat bool

	Seen time.Time
}

type altitudeSample struct {
	AltitudeM float64
	At        time.Time
}

// Interesting reports whether the coordination core is asking any station
// to transmit data for this aircraft.
func (a *TrackedAircraft) Interesting() bool {
	return len(a.SyncInterest) > 0 || (a.AllowMlat && len(a.MlatInterest) > 0)
}

func newTrackedAircraft(icao uint32, allowMlat bool, now time.Time, rng *rand.Rand, forceInterval time.Duration) *TrackedAircraft {
	return &TrackedAircraft{
		ICAO:      icao,
		AllowMlat: allowMlat,

		Tracking:     make(map[int64]struct{}),
		SyncInterest: make(map[int64]struct{}),
		AdsbSeen:     make(map[int64]struct{}),
		MlatInterest: make(map[int64]struct{}),

		// last_force_mlat starts jittered into the past so aircraft
		// created at different times don't all enter their force
		// window simultaneously.
		LastForceMlat: now.Add(-time.Duration(rng.Float64() * float64(forceInterval))),

		Seen: now,
	}
}
