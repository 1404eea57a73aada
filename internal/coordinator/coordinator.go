package coordinator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/flyitalyadsb/mlat-coordinator/internal/config"
	"github.com/flyitalyadsb/mlat-coordinator/internal/diagcache"
	"github.com/flyitalyadsb/mlat-coordinator/internal/telemetry"
)

// maxUID is the wrap point for uid assignment: 2^62, per spec.md's note
// that uidCounter wraps at 2^62 and probes forward for an unused value.
const maxUID = int64(1) << 62

// Coordinator is the master coordination core: the authoritative receiver
// and aircraft registries, the interest selector, the clock-quality
// scorer, result fan-out, and the state dumper. It is explicitly
// constructed and passed around rather than hidden behind a package-level
// global.
//
// All graph mutation happens on a single dedicated goroutine (run), which
// plays the role of the single-threaded cooperative executor the original
// server relies on: public methods submit a closure to the commands
// channel and block until it has run, so the registries never need their
// own locks.
type Coordinator struct {
	cfg config.Config

	Log           *logrus.Logger
	HandshakeLog  *logrus.Logger
	Telemetry     *telemetry.Publisher
	Diagnostics   *diagcache.Cache
	ClockTracker  ClockTracker
	MlatTracker   MlatTracker
	Authenticator Authenticator

	rng *rand.Rand

	commands chan func()
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	// registry state: touched only from the run goroutine.
	receivers  map[int64]*Receiver
	usernames  map[string]*Receiver
	uidCounter int64

	aircraft map[uint32]*TrackedAircraft

	mlatWanted   map[uint32]struct{}
	mlatWantedTS time.Time

	sighupMu       sync.Mutex
	sighupHandlers []func()
}

// New constructs a Coordinator. It does not start any background loop;
// call Start for that.
func New(cfg config.Config, log *logrus.Logger, handshakeLog *logrus.Logger) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		cfg:          cfg,
		Log:          log,
		HandshakeLog: handshakeLog,
		Diagnostics:  diagcache.New(cfg.StateDumpInterval + 5*time.Second),

		rng: rand.New(rand.NewSource(time.Now().UnixNano())),

		commands: make(chan func(), 64),
		ctx:      ctx,
		cancel:   cancel,

		receivers: make(map[int64]*Receiver),
		usernames: make(map[string]*Receiver),
		aircraft:  make(map[uint32]*TrackedAircraft),

		mlatWanted: make(map[uint32]struct{}),
	}
}

// Start begins the single coordination goroutine and the two background
// loops (state writer, profile writer). It mirrors Coordinator.start in
// the reference implementation, which schedules write_state and (if
// enabled) write_profile as the only two standing tasks.
func (c *Coordinator) Start(enableProfileDump bool) {
	c.wg.Add(1)
	go c.run()

	c.wg.Add(1)
	go c.stateWriterLoop()

	if enableProfileDump {
		c.wg.Add(1)
		go c.profileWriterLoop()
	}
}

func (c *Coordinator) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case fn := <-c.commands:
			fn()
		}
	}
}

// submit runs fn on the coordination goroutine and blocks until it
// completes. It is the Go analogue of single-threaded cooperative
// scheduling: every registry mutation is serialized through here so the
// bipartite symmetry invariant is never observable as broken.
func (c *Coordinator) submit(fn func()) {
	done := make(chan struct{})
	select {
	case c.commands <- func() {
		fn()
		close(done)
	}:
	case <-c.ctx.Done():
		return
	}
	select {
	case <-done:
	case <-c.ctx.Done():
	}
}

// Close cancels the background loops. It does not interrupt an in-flight
// disk write mid-file; the temp-then-rename pattern tolerates that.
func (c *Coordinator) Close() {
	c.cancel()
}

// WaitClosed blocks until every background loop has observed cancellation
// and returned.
func (c *Coordinator) WaitClosed() {
	c.wg.Wait()
}

// AddSighupHandler registers a callback to run on a reload signal.
// Installing the OS signal handler itself is the CLI entrypoint's
// responsibility (os/signal.Notify); this just maintains the multi-handler
// fan-out the original wires onto a single SIGHUP.
func (c *Coordinator) AddSighupHandler(handler func()) {
	c.sighupMu.Lock()
	defer c.sighupMu.Unlock()
	c.sighupHandlers = append(c.sighupHandlers, handler)
}

// RemoveSighupHandler deregisters a previously added callback.
func (c *Coordinator) RemoveSighupHandler(handler func()) {
	c.sighupMu.Lock()
	defer c.sighupMu.Unlock()
	target := fmt.Sprintf("%p", handler)
	filtered := c.sighupHandlers[:0]
	for _, h := range c.sighupHandlers {
		if fmt.Sprintf("%p", h) == target {
			continue
		}
		filtered = append(filtered, h)
	}
	c.sighupHandlers = filtered
}

// Reload invokes every registered reload handler, isolating panics the way
// the rest of this core isolates per-receiver failures would be
// inappropriate here (a reload handler failing is a programmer error), so
// handlers are expected not to panic.
func (c *Coordinator) Reload() {
	c.sighupMu.Lock()
	handlers := make([]func(), len(c.sighupHandlers))
	copy(handlers, c.sighupHandlers)
	c.sighupMu.Unlock()

	for _, h := range handlers {
		h()
	}
}
