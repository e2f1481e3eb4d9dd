package geo

import "math"

// earthRadiusMiles is the mean Earth radius used across the matching engine.
const earthRadiusMiles = 3959

// Distance returns the great-circle distance in miles between two points
// given in degrees, via the haversine formula. Identical points yield exactly
// 0 and the function is symmetric in its arguments. Out-of-range or NaN
// coordinates are undefined behavior; inputs are not validated.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	dlat := radians(lat2 - lat1)
	dlng := radians(lng2 - lng1)
	a := math.Pow(math.Sin(dlat/2), 2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Pow(math.Sin(dlng/2), 2)
	return earthRadiusMiles * 2 * math.Asin(math.Sqrt(a))
}

// Proximity converts a distance into a 0-100 closeness score with linear
// decay: max(0, 1-distance/norm)*100. Distances at or beyond norm score 0.
// The normalization constant differs between the persisted match pipeline
// (500 mi) and the portal/RFQ paths (3000 mi); callers pass their own.
func Proximity(distance, norm float64) float64 {
	if norm <= 0 || distance >= norm {
		return 0
	}
	return math.Max(0, 1-distance/norm) * 100
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
