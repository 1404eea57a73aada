package coordinator

import "time"

// ReceiverSync forwards a raw sync message from r to the external clock
// tracker, mirroring the other Inbound API delegations: the payload is
// opaque here and interpreted entirely by the clock tracker.
func (c *Coordinator) ReceiverSync(r *Receiver, payload any) {
	c.submit(func() {
		if c.ClockTracker != nil {
			c.ClockTracker.ReceiverSync(r, payload)
		}
	})
}

// ReceiverMlat forwards a raw multilateration message from r to the
// external MLAT solver. The solver reports back whatever it learns about
// the aircraft's flight profile and sync quality through
// UpdateAircraftProfile, the same way the clock tracker reports back
// through IncrementJumps/ScoreClocks.
func (c *Coordinator) ReceiverMlat(r *Receiver, payload any) {
	c.submit(func() {
		if c.MlatTracker != nil {
			c.MlatTracker.ReceiverMlat(r, payload)
		}
	})
}

// UpdateAircraftProfile is called by the external MLAT solver after it has
// processed one or more receiver_mlat messages for icao, reporting the
// aircraft's last-known altitude and its current sync-quality counters.
// altitudeM is nil when the solver has no altitude for this aircraft yet.
// This is the production producer for TrackedAircraft.Altitude,
// SyncBadPercent and SyncDontUse: the selector reads them, but only the
// external solver that decoded the aircraft's position is in a position to
// set them.
func (c *Coordinator) UpdateAircraftProfile(icao uint32, altitudeM *float64, syncGood, syncBad int, syncDontUse bool) {
	c.submit(func() {
		ac, ok := c.aircraft[icao]
		if !ok {
			return
		}

		now := time.Now()
		if altitudeM != nil {
			ac.Altitude = altitudeM
			ac.LastAltitudeTime = now
			ac.AltHistory = append(ac.AltHistory, altitudeSample{AltitudeM: *altitudeM, At: now})
		}

		ac.SyncGood = syncGood
		ac.SyncBad = syncBad
		if total := syncGood + syncBad; total > 0 {
			ac.SyncBadPercent = 100 * float64(syncBad) / float64(total)
		}
		ac.SyncDontUse = syncDontUse
	})
}
