package coordinator

import (
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/flyitalyadsb/mlat-coordinator/internal/geodesy"
)

// Receiver is a connected receiver and the state the coordination core
// keeps about it. Its relation sets (Tracking, SyncInterest, MlatInterest,
// AdsbSeen, Requested) hold stable ICAO identifiers into the aircraft
// arena, not pointers, per the stable-ID-arena design: deletion walks the
// partner side by identifier instead of chasing pointers.
type Receiver struct {
	UID  int64
	User string
	UUID string

	PositionLLH  geodesy.LLH
	PositionECEF geodesy.ECEF
	Privacy      bool

	Connection     Connection
	Clock          Clock
	ConnectionInfo string

	Dead           bool
	ConnectedSince time.Time
	LastClockReset time.Time

	// Tracking is the set of aircraft ICAOs this receiver currently sees.
	Tracking map[uint32]struct{}
	// AdsbSeen is the set of aircraft ICAOs present in the receiver's
	// current rate report.
	AdsbSeen map[uint32]struct{}
	// SyncInterest is the set of aircraft ICAOs used for clock
	// synchronization.
	SyncInterest map[uint32]struct{}
	// MlatInterest is the set of aircraft ICAOs used for position
	// solving.
	MlatInterest map[uint32]struct{}
	// Requested is SyncInterest ∪ MlatInterest, refreshed after every
	// interest-set commit.
	Requested map[uint32]struct{}

	// LastRateReport is nil when the receiver has never sent a rate
	// report (legacy mode); otherwise it maps ICAO to messages/second.
	LastRateReport map[uint32]float64

	// Distance maps peer receiver UID to inter-station distance in
	// meters, symmetric, including Distance[UID] == 0.
	Distance map[int64]float64

	BadSyncs float64

	SyncRangeExceeded int
	ClockResetCounter int
	SyncCount         int
	SyncPeers         int
	PeerCount         int

	RecentPairJumps  float64
	RecentClockJumps float64

	// OffX, OffY blur the dumped coarse position, each in [0, 0.05).
	OffX float64
	OffY float64

	Logger *logrus.Entry
}

func newReceiver(uid int64, user, uuid string, conn Connection, clock Clock,
	posLLH geodesy.LLH, privacy bool, connInfo string, now time.Time, rng *rand.Rand) *Receiver {

	return &Receiver{
		UID:            uid,
		User:           user,
		UUID:           uuid,
		PositionLLH:    posLLH,
		PositionECEF:   geodesy.LLHToECEF(posLLH),
		Privacy:        privacy,
		Connection:     conn,
		Clock:          clock,
		ConnectionInfo: connInfo,
		ConnectedSince: now,
		LastClockReset: now,

		Tracking:     make(map[uint32]struct{}),
		AdsbSeen:     make(map[uint32]struct{}),
		SyncInterest: make(map[uint32]struct{}),
		MlatInterest: make(map[uint32]struct{}),
		Requested:    make(map[uint32]struct{}),

		Distance: make(map[int64]float64),

		OffX: 0.05 * rng.Float64(),
		OffY: 0.05 * rng.Float64(),
	}
}
