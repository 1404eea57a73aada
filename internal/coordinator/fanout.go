package coordinator

import (
	"context"
	"time"

	"github.com/flyitalyadsb/mlat-coordinator/internal/geodesy"
	"github.com/flyitalyadsb/mlat-coordinator/internal/telemetry"
)

// ForwardResults dispatches one solved position to every contributing
// receiver's connection, isolating per-receiver failures so one receiver
// never blocks delivery to the rest. A result from a 3-receiver solution
// that the Kalman filter hasn't locked onto yet (dof < 1) is discarded
// outright.
func (c *Coordinator) ForwardResults(receiveTimestamp time.Time, icao uint32, ecef geodesy.ECEF, ecefCov [6]float64,
	receivers []*Receiver, distinct, dof int, kalman KalmanState) {

	c.submit(func() {
		c.forwardResultsLocked(receiveTimestamp, icao, ecef, ecefCov, receivers, distinct, dof, kalman)
	})
}

func (c *Coordinator) forwardResultsLocked(receiveTimestamp time.Time, icao uint32, ecef geodesy.ECEF, ecefCov [6]float64,
	receivers []*Receiver, distinct, dof int, kalman KalmanState) {

	if (kalman == nil || !kalman.Valid()) && dof < 1 {
		return
	}

	// Opaque two-element carrier shared, unmodified by this layer, across
	// every connection invoked for this one fan-out call.
	resultNewOld := &[2]any{}

	for _, r := range receivers {
		func() {
			defer func() {
				if rec := recover(); rec != nil && c.Log != nil {
					c.Log.WithField("user", r.User).WithField("panic", rec).
						Warn("failed to forward mlat result to receiver")
				}
			}()

			if r.Connection != nil {
				r.Connection.ReportMlatPosition(receiveTimestamp, icao, ecef, ecefCov, receivers, distinct, dof, kalman, resultNewOld)
			}
		}()
	}

	if c.Telemetry != nil {
		event := telemetry.ResultEvent{
			TimestampUnix: float64(receiveTimestamp.UnixNano()) / 1e9,
			ICAO:          icao,
			ECEFX:         ecef.X,
			ECEFY:         ecef.Y,
			ECEFZ:         ecef.Z,
			Contributors:  len(receivers),
			Distinct:      distinct,
		}
		if err := c.Telemetry.Publish(context.Background(), event); err != nil && c.Log != nil {
			c.Log.WithError(err).Warn("failed to publish mlat result telemetry")
		}
	}
}
