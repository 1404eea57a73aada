package coordinator

import "time"

// clockResetLogIterations are the clock_reset_counter values at which a
// clock reset is logged, throttling what would otherwise be log spam on a
// flapping receiver.
var clockResetLogIterations = map[int]struct{}{5: {}, 35: {}, 65: {}, 95: {}, 125: {}}

// IncrementJumps is invoked by the external clock tracker when it detects a
// pair anomaly for r. It accumulates recent_pair_jumps and, once the ratio
// of pair jumps to sync peers crosses 0.2, escalates to a clock reset.
func (c *Coordinator) IncrementJumps(r *Receiver) {
	c.submit(func() {
		c.incrementJumpsLocked(r)
	})
}

func (c *Coordinator) incrementJumpsLocked(r *Receiver) {
	r.RecentPairJumps++

	// sync_peers can legitimately be zero (a brand new receiver); per
	// spec.md's open question, treat that as "no ratio check applies"
	// rather than dividing by zero.
	if r.SyncPeers == 0 {
		return
	}

	if r.RecentPairJumps/float64(r.SyncPeers) > 0.2 {
		r.RecentClockJumps++
		if r.RecentClockJumps > 2 {
			r.BadSyncs += 0.4
		}
		c.clockResetLocked(r)
	}
}

func (c *Coordinator) clockResetLocked(r *Receiver) {
	if c.ClockTracker != nil {
		c.ClockTracker.ReceiverClockReset(r)
	}

	r.LastClockReset = time.Now()
	r.ClockResetCounter++

	if _, shouldLog := clockResetLogIterations[r.ClockResetCounter]; shouldLog && r.ClockResetCounter < 130 {
		if r.Logger != nil {
			r.Logger.WithField("reset_count", r.ClockResetCounter).Warn("clock reset")
		}
	}
}

// ScoreClocks runs the 15-second clock-quality pass described in spec.md
// §4.4 over receiverStates (the external clock tracker's
// dump_receiver_state output, keyed by receiver user then peer user). It
// adjusts each live receiver's bad_syncs quarantine score and decays its
// recent-jump counters.
func (c *Coordinator) ScoreClocks(receiverStates map[string]map[string]PeerState) {
	c.submit(func() {
		c.scoreClocksLocked(receiverStates)
	})
}

func (c *Coordinator) scoreClocksLocked(receiverStates map[string]map[string]PeerState) {
	for _, r := range c.receivers {
		numPeers := 10 // prior: keeps low-peer receivers from trivial flagging
		badPeers := 0

		for _, state := range receiverStates[r.User] {
			if state.BadSyncs > 0 {
				continue
			}
			numPeers++
			if (state.PairSyncCount > 5 && state.OffsetUS > 1.5) || state.OffsetUS > 4 {
				badPeers++
			}
		}

		if badPeers > 5 || float64(badPeers)/float64(numPeers) > 0.1 {
			delta := 2 * float64(badPeers) / float64(numPeers)
			if delta > 1 {
				delta = 1
			}
			r.BadSyncs += delta
		} else {
			r.BadSyncs -= 0.1
		}

		if r.BadSyncs < 0 {
			r.BadSyncs = 0
		}
		if r.BadSyncs > 6 {
			r.BadSyncs = 6
		}

		r.PeerCount = len(receiverStates[r.User])
	}

	for _, r := range c.receivers {
		r.RecentClockJumps -= 0.5
		if r.RecentClockJumps < 0 {
			r.RecentClockJumps = 0
		}
		r.RecentPairJumps = 0
	}
}
