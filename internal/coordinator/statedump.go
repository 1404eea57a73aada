package coordinator

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/flyitalyadsb/mlat-coordinator/internal/procname"
)

type profileSnapshot struct {
	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
	HeapObjects    uint64 `json:"heap_objects"`
	NumGoroutine   int    `json:"num_goroutine"`
	NumGC          uint32 `json:"num_gc"`
}

type aircraftEntry struct {
	Interesting      int      `json:"interesting"`
	AllowMlat        int      `json:"allow_mlat"`
	Tracking         int      `json:"tracking"`
	SyncInterest     int      `json:"sync_interest"`
	MlatInterest     int      `json:"mlat_interest"`
	AdsbSeen         int      `json:"adsb_seen"`
	MlatMessageCount int      `json:"mlat_message_count"`
	MlatResultCount  int      `json:"mlat_result_count"`
	MlatKalmanCount  int      `json:"mlat_kalman_count"`
	LastResult       *float64 `json:"last_result,omitempty"`
	Lat              *float64 `json:"lat,omitempty"`
	Lon              *float64 `json:"lon,omitempty"`
	Alt              *float64 `json:"alt,omitempty"`
	Heading          *float64 `json:"heading,omitempty"`
	Speed            *float64 `json:"speed,omitempty"`
}

type syncEntry struct {
	Peers    map[string]PeerState `json:"peers"`
	BadSyncs float64              `json:"bad_syncs"`
	Lat      *float64             `json:"lat"`
	Lon      *float64             `json:"lon"`
}

type locationEntry struct {
	User       string  `json:"user"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Alt        float64 `json:"alt"`
	Privacy    bool    `json:"privacy"`
	Connection string  `json:"connection"`
}

// DumpState builds the three state-dump documents described in spec.md
// §4.6 and writes each atomically under the configured work_dir, after
// first running the 15-second clock-quality pass with clockStates (the
// external clock tracker's peer statistics). It also updates the process
// title and stashes each document's bytes in the diagnostics cache.
func (c *Coordinator) DumpState(clockStates map[string]map[string]PeerState) error {
	var aircraftDoc map[string]aircraftEntry
	var syncDoc map[string]syncEntry
	var locationsDoc map[string]locationEntry
	var mlatCount, syncCount, totalReceivers, totalAircraft int

	c.submit(func() {
		c.scoreClocksLocked(clockStates)
		aircraftDoc, syncDoc, locationsDoc, mlatCount, syncCount = c.buildSnapshotLocked(clockStates)
		totalReceivers = len(c.receivers)
		totalAircraft = len(c.aircraft)
	})

	procname.SetTitle(c.titleString(totalReceivers, mlatCount, syncCount, totalAircraft))

	// The sync matrix JSON can be large, so writing it out can take a
	// little time; someone could start reading it before the write
	// finishes. Write to a temp file first, then rename, which is
	// atomic, to swap in the real file. Same unix-seconds suffix for
	// every file in one pass.
	tmpSuffix := fmt.Sprintf("%d", time.Now().Unix())

	if err := c.writeJSONAtomic("sync.json", tmpSuffix, syncDoc); err != nil {
		return err
	}
	if err := c.writeJSONAtomic("locations.json", tmpSuffix, locationsDoc); err != nil {
		return err
	}
	if err := c.writeJSONAtomic("aircraft.json", tmpSuffix, aircraftDoc); err != nil {
		return err
	}

	return nil
}

func (c *Coordinator) buildSnapshotLocked(clockStates map[string]map[string]PeerState) (
	map[string]aircraftEntry, map[string]syncEntry, map[string]locationEntry, int, int) {

	now := time.Now()

	aircraftDoc := make(map[string]aircraftEntry, len(c.aircraft))
	mlatCount, syncCount := 0, 0

	for icao, ac := range c.aircraft {
		e := aircraftEntry{
			Interesting:      boolInt(ac.Interesting()),
			AllowMlat:        boolInt(ac.AllowMlat),
			Tracking:         len(ac.Tracking),
			SyncInterest:     len(ac.SyncInterest),
			MlatInterest:     len(ac.MlatInterest),
			AdsbSeen:         len(ac.AdsbSeen),
			MlatMessageCount: ac.MlatMessageCount,
			MlatResultCount:  ac.MlatResultCount,
			MlatKalmanCount:  ac.MlatKalmanCount,
		}

		if !ac.LastResultTime.IsZero() && ac.Kalman != nil && ac.Kalman.Valid() {
			secs := round(now.Sub(ac.LastResultTime).Seconds(), 1)
			e.LastResult = &secs

			llh := ac.Kalman.PositionLLH()
			lat := round(llh.LatDeg, 3)
			lon := round(llh.LonDeg, 3)
			alt := math.Round(llh.AltM * c.cfg.MetersToFeet)
			heading := math.Round(ac.Kalman.Heading())
			speed := math.Round(ac.Kalman.GroundSpeedKT())
			e.Lat, e.Lon, e.Alt, e.Heading, e.Speed = &lat, &lon, &alt, &heading, &speed
		}

		aircraftDoc[fmt.Sprintf("%06X", icao)] = e

		if ac.Interesting() {
			if len(ac.SyncInterest) > 0 {
				syncCount++
			}
			if len(ac.MlatInterest) > 0 {
				mlatCount++
			}
		}
	}

	const precision = 20.0

	syncDoc := make(map[string]syncEntry, len(c.receivers))
	locationsDoc := make(map[string]locationEntry, len(c.receivers))

	for _, r := range c.receivers {
		var lat, lon *float64
		if !r.Privacy {
			rlat := round(math.Round(r.PositionLLH.LatDeg*precision)/precision+r.OffX, 2)
			rlon := round(math.Round(r.PositionLLH.LonDeg*precision)/precision+r.OffY, 2)
			lat, lon = &rlat, &rlon
		}

		syncDoc[r.User] = syncEntry{
			Peers:    clockStates[r.User],
			BadSyncs: r.BadSyncs,
			Lat:      lat,
			Lon:      lon,
		}

		locationsDoc[r.User] = locationEntry{
			User:       r.User,
			Lat:        r.PositionLLH.LatDeg,
			Lon:        r.PositionLLH.LonDeg,
			Alt:        r.PositionLLH.AltM,
			Privacy:    r.Privacy,
			Connection: r.ConnectionInfo,
		}
	}

	return aircraftDoc, syncDoc, locationsDoc, mlatCount, syncCount
}

func (c *Coordinator) titleString(receivers, mlatCount, syncCount, tracked int) string {
	if c.cfg.PartitionCount > 1 {
		return fmt.Sprintf("%s %d/%d (%d clients) (%d mlat %d sync %d tracked)",
			c.cfg.Tag, c.cfg.PartitionIndex, c.cfg.PartitionCount, receivers, mlatCount, syncCount, tracked)
	}
	return fmt.Sprintf("%s (%d clients) (%d mlat %d sync %d tracked)",
		c.cfg.Tag, receivers, mlatCount, syncCount, tracked)
}

func (c *Coordinator) writeJSONAtomic(name, tmpSuffix string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	target := filepath.Join(c.cfg.WorkDir, name)
	tmp := target + ".tmp." + tmpSuffix

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file for %s: %w", name, err)
	}
	// The rename swaps the complete document in over the target; a
	// failure leaves the temp file behind and is returned to the caller.
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("rename temp file into %s: %w", name, err)
	}

	if c.Diagnostics != nil {
		c.Diagnostics.Put(name, data, 0)
	}

	return nil
}

// dumpProfileLocked writes a lightweight memory snapshot, the nearest Go
// equivalent to the reference implementation's per-object-type memory
// profile dump; no library in the retrieved pack performs that kind of
// object census, and runtime.MemStats needs no access to registry state, so
// this does not go through submit.
func (c *Coordinator) dumpProfileLocked() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	snapshot := profileSnapshot{
		HeapAllocBytes: stats.HeapAlloc,
		HeapObjects:    stats.HeapObjects,
		NumGoroutine:   runtime.NumGoroutine(),
		NumGC:          stats.NumGC,
	}

	tmpSuffix := fmt.Sprintf("%d", time.Now().Unix())
	if err := c.writeJSONAtomic("profile.json", tmpSuffix, snapshot); err != nil && c.Log != nil {
		c.Log.WithError(err).Warn("failed to write profile dump")
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
