// Package coordinator implements the receiver/aircraft interest graph and
// its periodic maintenance loop for a Mode S multilateration server: the
// bipartite "who sees whom" relation, the per-receiver sync/mlat selection
// policy, clock-quality scoring, result fan-out, and state dumping.
//
// Wire protocols, authentication transport, the clock-synchronization
// pairing engine, and the least-squares/Kalman position solver are external
// collaborators, reached only through the interfaces declared in this file.
package coordinator

import (
	"time"

	"github.com/flyitalyadsb/mlat-coordinator/internal/geodesy"
)

// Connection is the capability a per-receiver wire-protocol handler exposes
// back into the coordination core. This core calls these synchronously and
// relies on implementations to be non-blocking.
type Connection interface {
	// RequestTraffic asks the connection to transmit an updated traffic
	// request to the receiver containing exactly this set of ICAO
	// addresses.
	RequestTraffic(icaos map[uint32]struct{})

	// ReportMlatPosition delivers one solved position to the receiver.
	// resultNewOld is an opaque two-element carrier shared across every
	// connection invoked by a single ForwardResults call; its semantics
	// belong to the caller of ForwardResults and are not interpreted here.
	ReportMlatPosition(ts time.Time, icao uint32, ecef geodesy.ECEF, ecefCov [6]float64,
		receivers []*Receiver, distinct, dof int, kalman KalmanState, resultNewOld *[2]any)
}

// Clock is the opaque per-receiver clock-synchronization model produced by
// the clock-type factory (clocksync.make_clock in the reference
// implementation). Its internals belong to the external clock tracker.
type Clock interface {
	// Type reports the clock-type tag this instance was created from.
	Type() string
}

// ClockFactory builds a Clock for the given clock-type tag. Supplied by the
// external clock tracker.
type ClockFactory func(clockType string) (Clock, error)

// Authenticator validates a newly created receiver against an opaque auth
// blob. It may mutate the receiver and must return an error to reject the
// connection; on error no state is retained for the receiver.
type Authenticator func(r *Receiver, auth any) error

// KalmanState is the last-known output of the external multilateration
// Kalman filter for one aircraft.
type KalmanState interface {
	Valid() bool
	PositionLLH() geodesy.LLH
	Heading() float64
	GroundSpeedKT() float64
}

// PeerState is one entry of the per-receiver peer-pair statistics the
// external clock tracker reports: pairing sync count, offset in
// microseconds, drift, the peer's own bad_syncs score, and whether the pair
// was recently flagged as jumped.
type PeerState struct {
	PairSyncCount int     `json:"pair_sync_count"`
	OffsetUS      float64 `json:"offset_us"`
	Drift         float64 `json:"drift"`
	BadSyncs      float64 `json:"bad_syncs"`
	Jumped        bool    `json:"jumped"`
}

// ClockTracker is the external clock-synchronization pairing engine. Its
// internals are out of scope here; the coordination core only needs the
// periodic state dump it produces and a place to forward resets and raw
// sync messages.
type ClockTracker interface {
	// DumpReceiverState returns, for each receiver user, a map of peer
	// user to that pair's statistics.
	DumpReceiverState() map[string]map[string]PeerState

	// ReceiverSync forwards a raw sync message to the pairing engine.
	// Its payload format is opaque at this layer.
	ReceiverSync(r *Receiver, payload any)

	// ReceiverClockReset notifies the pairing engine that this receiver's
	// clock has been reset and prior sync state should be discarded.
	ReceiverClockReset(r *Receiver)

	// ReceiverDisconnect notifies the pairing engine that the receiver is
	// gone.
	ReceiverDisconnect(r *Receiver)
}

// MlatTracker is the external least-squares/Kalman position solver. Its
// internals are out of scope here.
type MlatTracker interface {
	// ReceiverMlat forwards a raw multilateration message to the solver.
	// Its payload format is opaque at this layer.
	ReceiverMlat(r *Receiver, payload any)
}
