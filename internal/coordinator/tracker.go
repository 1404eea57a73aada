package coordinator

import "time"

// partitionHashConstant is the 32-bit multiplier used to mix an ICAO
// address before reducing it modulo the partition count. It must match
// across every partitioned process so that partitions remain disjoint.
const partitionHashConstant = 0x45d9f3b

// InLocalPartition reports whether icao belongs to this process's shard of
// the address space. With a single partition (partitionCount == 1) every
// address belongs locally.
func InLocalPartition(icao uint32, partitionIndex, partitionCount int) bool {
	if partitionCount == 1 {
		return true
	}

	h := icao
	h = ((h >> 16) ^ h) * partitionHashConstant
	h = ((h >> 16) ^ h) * partitionHashConstant
	h = (h >> 16) ^ h

	return int(h%uint32(partitionCount)) == partitionIndex-1
}

func (c *Coordinator) inLocalPartition(icao uint32) bool {
	return InLocalPartition(icao, c.cfg.PartitionIndex, c.cfg.PartitionCount)
}

// ReceiverTrackingAdd updates r's tracking set by adding icaos, creating
// any newly-seen TrackedAircraft, and (when r is not receiving rate
// reports) immediately re-running the interest selector for r.
func (c *Coordinator) ReceiverTrackingAdd(r *Receiver, icaos map[uint32]struct{}) {
	c.submit(func() {
		c.trackerAddLocked(r, icaos)
		if r.LastRateReport == nil {
			c.updateInterestLocked(r)
		}
	})
}

func (c *Coordinator) trackerAddLocked(r *Receiver, icaos map[uint32]struct{}) {
	now := time.Now()
	for icao := range icaos {
		ac, ok := c.aircraft[icao]
		if !ok {
			ac = newTrackedAircraft(icao, c.inLocalPartition(icao), now, c.rng, c.cfg.ForceMlatInterval)
			c.aircraft[icao] = ac
		}
		ac.Tracking[r.UID] = struct{}{}
		r.Tracking[icao] = struct{}{}
		ac.Seen = now
	}
}

// ReceiverTrackingRemove updates r's tracking set by removing icaos,
// deleting any TrackedAircraft whose tracking set becomes empty, and (when
// r is not receiving rate reports) re-running the interest selector.
func (c *Coordinator) ReceiverTrackingRemove(r *Receiver, icaos map[uint32]struct{}) {
	c.submit(func() {
		c.trackerRemoveLocked(r, icaos)
		if r.LastRateReport == nil {
			c.updateInterestLocked(r)
		}
	})
}

func (c *Coordinator) trackerRemoveLocked(r *Receiver, icaos map[uint32]struct{}) {
	for icao := range icaos {
		ac, ok := c.aircraft[icao]
		if !ok {
			continue
		}
		delete(ac.Tracking, r.UID)
		delete(r.Tracking, icao)
		if len(ac.Tracking) == 0 {
			delete(c.aircraft, icao)
		}
	}
}

// removeAllLocked removes r from all four edge sets of every aircraft it
// touches, deleting newly-empty aircraft, and clears r's own sets.
func (c *Coordinator) removeAllLocked(r *Receiver) {
	for icao := range r.Tracking {
		ac, ok := c.aircraft[icao]
		if !ok {
			continue
		}
		delete(ac.Tracking, r.UID)
		delete(ac.SyncInterest, r.UID)
		delete(ac.AdsbSeen, r.UID)
		delete(ac.MlatInterest, r.UID)
		if len(ac.Tracking) == 0 {
			delete(c.aircraft, icao)
		}
	}

	r.Tracking = make(map[uint32]struct{})
	r.AdsbSeen = make(map[uint32]struct{})
	r.SyncInterest = make(map[uint32]struct{})
	r.MlatInterest = make(map[uint32]struct{})
}
