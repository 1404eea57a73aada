package coordinator

import (
	"fmt"
	"time"

	"github.com/flyitalyadsb/mlat-coordinator/internal/geodesy"
)

// NewReceiver assigns a new receiver identity for user and returns the
// created Receiver. It fails with an error, retaining no state, when user
// already exists or the authenticator rejects the connection.
func (c *Coordinator) NewReceiver(conn Connection, uuid, user string, auth any,
	posLLH geodesy.LLH, clockFactory ClockFactory, clockType string, privacy bool, connInfo string) (*Receiver, error) {

	var receiver *Receiver
	var resultErr error

	c.submit(func() {
		receiver, resultErr = c.newReceiverLocked(conn, uuid, user, auth, posLLH, clockFactory, clockType, privacy, connInfo)
	})

	return receiver, resultErr
}

func (c *Coordinator) newReceiverLocked(conn Connection, uuid, user string, auth any,
	posLLH geodesy.LLH, clockFactory ClockFactory, clockType string, privacy bool, connInfo string) (*Receiver, error) {

	if _, exists := c.usernames[user]; exists {
		return nil, fmt.Errorf("user %q is already connected", user)
	}

	var clock Clock
	if clockFactory != nil {
		var err error
		clock, err = clockFactory(clockType)
		if err != nil {
			return nil, fmt.Errorf("create clock for type %q: %w", clockType, err)
		}
	}

	uid := c.nextUID()
	now := time.Now()
	r := newReceiver(uid, user, uuid, conn, clock, posLLH, privacy, connInfo, now, c.rng)
	if c.Log != nil {
		r.Logger = c.Log.WithFields(map[string]any{"user": user, "uid": uid})
	}

	if c.Authenticator != nil {
		if err := c.Authenticator(r, auth); err != nil {
			return nil, err
		}
	}

	c.computeInterstationDistances(r)

	c.receivers[r.UID] = r
	c.usernames[r.User] = r

	return r, nil
}

// nextUID assigns the next receiver uid, wrapping at maxUID and probing
// forward past any uid currently in use (acceptable given live receiver
// counts are always far below maxUID).
func (c *Coordinator) nextUID() int64 {
	if c.uidCounter >= maxUID {
		c.uidCounter = 0
	}
	uid := c.uidCounter
	for {
		if _, inUse := c.receivers[uid]; !inUse {
			break
		}
		c.uidCounter++
		if c.uidCounter >= maxUID {
			c.uidCounter = 0
		}
		uid = c.uidCounter
	}
	c.uidCounter = uid + 1
	return uid
}

// computeInterstationDistances fills in r.Distance for every live receiver,
// including r itself (distance 0), and mirrors the entry into every peer's
// own Distance map.
func (c *Coordinator) computeInterstationDistances(r *Receiver) {
	for _, other := range c.receivers {
		var distance float64
		if other.UID != r.UID {
			distance = geodesy.Distance(r.PositionECEF, other.PositionECEF)
		}
		r.Distance[other.UID] = distance
		other.Distance[r.UID] = distance
	}
	r.Distance[r.UID] = 0
}

// ReceiverLocationUpdate records that r has moved and recomputes every
// distance involving it.
func (c *Coordinator) ReceiverLocationUpdate(r *Receiver, posLLH geodesy.LLH) {
	c.submit(func() {
		r.PositionLLH = posLLH
		r.PositionECEF = geodesy.LLHToECEF(posLLH)
		c.computeInterstationDistances(r)
	})
}

// ReceiverDisconnect marks r dead, purges it from the aircraft registry and
// from every peer's distance map, and removes it from both indices.
func (c *Coordinator) ReceiverDisconnect(r *Receiver) {
	c.submit(func() {
		c.receiverDisconnectLocked(r)
	})
}

func (c *Coordinator) receiverDisconnectLocked(r *Receiver) {
	if r.Dead {
		return
	}
	r.Dead = true

	c.removeAllLocked(r)

	if c.ClockTracker != nil {
		c.ClockTracker.ReceiverDisconnect(r)
	}

	delete(c.receivers, r.UID)
	delete(c.usernames, r.User)

	for _, other := range c.receivers {
		delete(other.Distance, r.UID)
	}
}
