// Package geo holds the distance and scoring math of a round.
package geo

import (
	"math"
)

// EarthRadiusKm is the mean Earth radius.
const EarthRadiusKm = 6371.0

const (
	// MaxScore is awarded only for a guess at distance zero.
	MaxScore = 5000

	// DecayKm is the e-folding distance of the score curve:
	//
	//	score(d) = floor(5000 * exp(-d / DecayKm))
	//
	// With 800 km the curve crosses 4500 at ~84 km, 4000 at ~178 km,
	// 2500 at ~554 km, 1000 at ~1287 km and 500 at ~1842 km, so every guess
	// beyond 2000 km scores at most 410.
	DecayKm = 800.0
)

// Distance returns the great-circle (haversine) distance in kilometers
// between two WGS-84 points given in degrees.
func Distance(aLat, aLng, bLat, bLng float64) float64 {
	φ1 := aLat * math.Pi / 180.0
	φ2 := bLat * math.Pi / 180.0
	dφ := (bLat - aLat) * math.Pi / 180.0
	dλ := (bLng - aLng) * math.Pi / 180.0

	sinDφ := math.Sin(dφ / 2)
	sinDλ := math.Sin(dλ / 2)

	h := sinDφ*sinDφ + math.Cos(φ1)*math.Cos(φ2)*sinDλ*sinDλ
	// Rounding can push h just outside [0,1] for antipodal points.
	h = math.Max(0, math.Min(1, h))

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// Score maps a guess distance in kilometers to points in [0, MaxScore].
// The curve is non-increasing and reaches MaxScore only at zero.
func Score(distanceKm float64) int {
	if math.IsNaN(distanceKm) {
		return 0
	}
	if distanceKm <= 0 {
		return MaxScore
	}

	score := int(math.Floor(MaxScore * math.Exp(-distanceKm/DecayKm)))
	if score >= MaxScore {
		// Sub-meter distances round to 1.0 in exp.
		return MaxScore - 1
	}
	if score < 0 {
		return 0
	}
	return score
}

// Rating returns the short verdict shown next to a round score.
func Rating(score int) string {
	switch {
	case score >= 4500:
		return "Perfect!"
	case score >= 4000:
		return "Excellent!"
	case score >= 2500:
		return "Great guess!"
	case score >= 1000:
		return "Not bad!"
	case score >= 500:
		return "Could be closer"
	default:
		return "Keep exploring"
	}
}

// ValidCoordinate reports whether lat/lng lie within WGS-84 bounds.
func ValidCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
