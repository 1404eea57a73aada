package coordinator

import "time"

// stateWriterLoop periodically calls DumpState on StateDumpInterval, the Go
// analogue of the reference implementation's write_state scheduled task. A
// write failure is logged and swallowed; the next tick tries again.
func (c *Coordinator) stateWriterLoop() {
	defer c.wg.Done()

	interval := c.cfg.StateDumpInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			var clockStates map[string]map[string]PeerState
			if c.ClockTracker != nil {
				clockStates = c.ClockTracker.DumpReceiverState()
			}

			if err := c.DumpState(clockStates); err != nil && c.Log != nil {
				c.Log.WithError(err).Warn("failed to write state dump")
			}
		}
	}
}

// profileWriterLoop periodically snapshots the process's heap and goroutine
// statistics into profile.json, the Go analogue of the reference implementation's optional
// write_profile task (its per-object-type memory profile has no equivalent
// here; runtime.MemStats is the nearest thing a Go process can offer without
// a C-extension-style profiler).
func (c *Coordinator) profileWriterLoop() {
	defer c.wg.Done()

	interval := c.cfg.ProfileDumpInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.dumpProfileLocked()
		}
	}
}
