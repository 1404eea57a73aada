// Package geodesy converts between geodetic (lat/lon/alt) and earth-centered
// earth-fixed coordinates, and measures straight-line distance between ECEF
// points. It stands in for the geodetic-math collaborator the coordination
// core treats as external: nothing in the retrieved example pack performs
// this exact WGS84 transform, so it is implemented directly here rather than
// imported (see DESIGN.md).
package geodesy

import "math"

// WGS84 ellipsoid parameters.
const (
	semiMajorAxisM       = 6378137.0
	inverseFlattening    = 298.257223563
	flattening           = 1.0 / inverseFlattening
	semiMinorAxisM       = semiMajorAxisM * (1.0 - flattening)
	eccentricitySquared  = 1.0 - (semiMinorAxisM*semiMinorAxisM)/(semiMajorAxisM*semiMajorAxisM)
)

// LLH is a geodetic position: latitude and longitude in degrees, altitude in
// meters above the WGS84 ellipsoid.
type LLH struct {
	LatDeg float64
	LonDeg float64
	AltM   float64
}

// ECEF is a Cartesian earth-centered, earth-fixed position in meters.
type ECEF struct {
	X, Y, Z float64
}

// LLHToECEF converts a geodetic position to ECEF meters.
func LLHToECEF(p LLH) ECEF {
	lat := p.LatDeg * math.Pi / 180
	lon := p.LonDeg * math.Pi / 180
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	n := semiMajorAxisM / math.Sqrt(1-eccentricitySquared*sinLat*sinLat)

	return ECEF{
		X: (n + p.AltM) * cosLat * cosLon,
		Y: (n + p.AltM) * cosLat * sinLon,
		Z: (n*(1-eccentricitySquared) + p.AltM) * sinLat,
	}
}

// Distance returns the straight-line distance between two ECEF points, in
// meters. This is the chord distance, not a great-circle distance, which is
// what the sync-range and selection heuristics want.
func Distance(a, b ECEF) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
