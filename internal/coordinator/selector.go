package coordinator

import (
	"math"
	"math/rand"
	"sort"
	"time"
)

const mlatWantedRefreshInterval = 100 * time.Millisecond

type ratepair struct {
	rp     float64
	peer   int64
	icao   uint32
	rate   float64
}

// ReceiverRateReport records a receiver's latest per-aircraft ADS-B message
// rate report and re-runs the interest selector for it.
func (c *Coordinator) ReceiverRateReport(r *Receiver, report map[uint32]float64) {
	c.submit(func() {
		r.LastRateReport = report
		c.updateInterestLocked(r)
	})
}

// updateInterestLocked recomputes r's sync/mlat/adsb-seen subsets from its
// current tracking set and rate report, refreshes the global mlat-wanted
// set if it is stale, commits the new subsets, and asks r's connection to
// transmit an updated traffic request.
func (c *Coordinator) updateInterestLocked(r *Receiver) {
	now := time.Now()

	c.refreshMlatWantedLocked(now)

	newMlat := make(map[uint32]struct{})
	for icao := range r.Tracking {
		if _, wanted := c.mlatWanted[icao]; wanted {
			newMlat[icao] = struct{}{}
		}
	}

	newAdsb := make(map[uint32]struct{})

	if r.LastRateReport == nil {
		// Legacy client, no rate report: we cannot be very selective.
		newSync := make(map[uint32]struct{}, len(r.Tracking))
		for icao := range r.Tracking {
			newSync[icao] = struct{}{}
		}
		if len(newSync) > c.cfg.MaxSyncAircraft {
			newSync = randomSubsetUint32(c.rng, newSync, c.cfg.MaxSyncAircraft)
		}

		c.updateInterestSetsLocked(r, newSync, newMlat, newAdsb)
		c.refreshTrafficRequestsLocked(r)
		return
	}

	newSync := c.selectRateAwareSync(r, now, newAdsb)

	c.updateInterestSetsLocked(r, newSync, newMlat, newAdsb)
	c.refreshTrafficRequestsLocked(r)
}

// refreshMlatWantedLocked recomputes the global mlat-wanted set at most
// every 0.1s, applying force-mlat hysteresis to every tracked aircraft.
func (c *Coordinator) refreshMlatWantedLocked(now time.Time) {
	if !c.mlatWantedTS.IsZero() && now.Sub(c.mlatWantedTS) <= mlatWantedRefreshInterval {
		return
	}

	forceInterval := c.cfg.ForceMlatInterval
	noAdsb := c.cfg.NoAdsbMlatSeconds

	c.mlatWanted = make(map[uint32]struct{})

	for icao, ac := range c.aircraft {
		sinceForce := now.Sub(ac.LastForceMlat)

		if !ac.ForceMlat && sinceForce > forceInterval-15*time.Second {
			ac.ForceMlat = true
		}
		if sinceForce > forceInterval+15*time.Second {
			ac.LastForceMlat = now.Add(time.Duration(c.rng.Float64() * float64(time.Second)))
			ac.ForceMlat = false
		}

		inForceWindow := sinceForce > forceInterval-15*time.Second && sinceForce <= forceInterval+15*time.Second

		if len(ac.Tracking) >= 2 && ac.AllowMlat &&
			(now.Sub(ac.LastAdsbTime) > noAdsb || ac.SyncBadPercent > 10 || inForceWindow) {
			c.mlatWanted[icao] = struct{}{}
			ac.DoMlat = true
		} else {
			ac.DoMlat = false
		}
	}

	c.mlatWantedTS = now
}

// selectRateAwareSync implements the two-round rate-pair selection
// described in spec.md §4.3, populating newAdsb as a side effect.
func (c *Coordinator) selectRateAwareSync(r *Receiver, now time.Time, newAdsb map[uint32]struct{}) map[uint32]struct{} {
	acToRatepairs := make(map[uint32][]ratepair)
	var flat []ratepair

	for icao, rate := range r.LastRateReport {
		ac, ok := c.aircraft[icao]
		if !ok {
			continue
		}
		ac.Seen = now
		newAdsb[icao] = struct{}{}

		hasAltFactor := ac.Altitude != nil && *ac.Altitude > 0
		var altFactor float64
		if hasAltFactor {
			altFactor = 1 + math.Pow(*ac.Altitude/20000, 1.5)
		}

		var list []ratepair
		for peerUID := range ac.Tracking {
			if peerUID == r.UID {
				continue
			}
			peer, ok := c.receivers[peerUID]
			if !ok {
				continue
			}

			var rate1 float64
			if peer.LastRateReport == nil {
				rate1 = 0.8
			} else {
				rate1 = peer.LastRateReport[icao]
			}

			rp := rate * rate1 / 2.25
			if hasAltFactor {
				rp *= altFactor
			}
			if rp < 0.01 {
				continue
			}

			item := ratepair{rp: rp, peer: peerUID, icao: icao, rate: rate}
			list = append(list, item)
			flat = append(flat, item)
		}
		acToRatepairs[icao] = list
	}

	sort.SliceStable(flat, func(i, j int) bool { return flat[i].rp > flat[j].rp })

	splitIndex := len(flat) / 2
	firstHalf := append([]ratepair(nil), flat[:splitIndex]...)
	c.rng.Shuffle(len(firstHalf), func(i, j int) { firstHalf[i], firstHalf[j] = firstHalf[j], firstHalf[i] })

	ntotal := make(map[int64]float64)
	newSync := make(map[uint32]struct{})
	totalRate := 0.0
	maxSyncRate := c.cfg.MaxSyncRate

	addToSync := func(rp ratepair) {
		newSync[rp.icao] = struct{}{}
		totalRate += rp.rate
		for _, rp2 := range acToRatepairs[rp.icao] {
			ntotal[rp2.peer] += rp2.rp
		}
	}

	for _, rp := range firstHalf {
		if _, already := newSync[rp.icao]; already {
			continue
		}
		if ac := c.aircraft[rp.icao]; ac != nil && ac.SyncDontUse {
			continue
		}
		if totalRate > maxSyncRate {
			break
		}
		if ntotal[rp.peer] < 0.3 {
			addToSync(rp)
		}
	}

	for _, rp := range flat {
		if _, already := newSync[rp.icao]; already {
			continue
		}
		if totalRate > maxSyncRate {
			break
		}
		if ntotal[rp.peer] < 3.5 {
			addToSync(rp)
		}
	}

	quarter := c.cfg.MaxSyncAircraft / 4
	addSome := quarter - len(newSync)
	if addSome > 0 {
		available := make(map[uint32]struct{})
		for icao := range acToRatepairs {
			if _, in := newSync[icao]; !in {
				available[icao] = struct{}{}
			}
		}
		for icao := range randomSubsetUint32(c.rng, available, addSome) {
			newSync[icao] = struct{}{}
		}

		addSome = quarter - len(newSync)
		if addSome > 0 {
			available2 := make(map[uint32]struct{})
			for icao := range r.Tracking {
				if _, in := newSync[icao]; !in {
					available2[icao] = struct{}{}
				}
			}
			for icao := range randomSubsetUint32(c.rng, available2, addSome) {
				newSync[icao] = struct{}{}
			}
		}
	}

	return newSync
}

// updateInterestSetsLocked applies quarantine attenuation, then diffs old
// vs new interest sets and updates the mirror sets on every affected
// aircraft so bipartite symmetry holds the instant this call returns.
func (c *Coordinator) updateInterestSetsLocked(r *Receiver, newSync, newMlat, newAdsb map[uint32]struct{}) {
	quarter := c.cfg.MaxSyncAircraft / 4

	if r.BadSyncs > 2 && len(newSync) > quarter {
		newSync = randomSubsetUint32(c.rng, newSync, quarter)
	}

	if r.BadSyncs > 0 {
		newMlat = make(map[uint32]struct{})
	}

	c.mirrorDiff(r.UID, r.AdsbSeen, newAdsb, func(ac *TrackedAircraft) map[int64]struct{} { return ac.AdsbSeen })
	c.mirrorDiff(r.UID, r.SyncInterest, newSync, func(ac *TrackedAircraft) map[int64]struct{} { return ac.SyncInterest })
	c.mirrorDiff(r.UID, r.MlatInterest, newMlat, func(ac *TrackedAircraft) map[int64]struct{} { return ac.MlatInterest })

	r.AdsbSeen = newAdsb
	r.SyncInterest = newSync
	r.MlatInterest = newMlat
}

// mirrorDiff adds r to the mirror set (selected by relation) of every
// aircraft newly present in newSet, and removes r from the mirror set of
// every aircraft no longer present, compared against oldSet.
func (c *Coordinator) mirrorDiff(uid int64, oldSet, newSet map[uint32]struct{}, relation func(*TrackedAircraft) map[int64]struct{}) {
	for icao := range newSet {
		if _, already := oldSet[icao]; already {
			continue
		}
		if ac := c.aircraft[icao]; ac != nil {
			relation(ac)[uid] = struct{}{}
		}
	}
	for icao := range oldSet {
		if _, still := newSet[icao]; still {
			continue
		}
		if ac := c.aircraft[icao]; ac != nil {
			delete(relation(ac), uid)
		}
	}
}

// refreshTrafficRequestsLocked recomputes r.Requested and asks its
// connection to transmit an updated traffic request. In the reference
// implementation this is deferred onto the next cooperative step to
// coalesce rapid-fire updates within one tick; since every public method
// here already runs atomically inside a single submit call, invoking it
// immediately is equivalent and needs no separate scheduling.
func (c *Coordinator) refreshTrafficRequestsLocked(r *Receiver) {
	requested := make(map[uint32]struct{}, len(r.SyncInterest)+len(r.MlatInterest))
	for icao := range r.SyncInterest {
		requested[icao] = struct{}{}
	}
	for icao := range r.MlatInterest {
		requested[icao] = struct{}{}
	}
	r.Requested = requested

	if r.Connection != nil {
		r.Connection.RequestTraffic(requested)
	}
}

// randomSubsetUint32 returns a uniformly random subset of size
// min(k, len(set)) from set.
func randomSubsetUint32(rng *rand.Rand, set map[uint32]struct{}, k int) map[uint32]struct{} {
	if k < 0 {
		k = 0
	}
	if k >= len(set) {
		out := make(map[uint32]struct{}, len(set))
		for v := range set {
			out[v] = struct{}{}
		}
		return out
	}

	items := make([]uint32, 0, len(set))
	for v := range set {
		items = append(items, v)
	}
	rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })

	out := make(map[uint32]struct{}, k)
	for _, v := range items[:k] {
		out[v] = struct{}{}
	}
	return out
}
