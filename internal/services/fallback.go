package services

import (
	"ice-route-service/internal/domain"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	metersPerMile = 1609.344

	minHashedMiles  = 1.0
	hashedSpanMiles = 49.0
)

// HashedDistanceMeters derives a stable pseudo-distance between two address
// strings when neither live routing nor coordinates are available. The
// result is symmetric, zero for identical addresses, and lands between
// 1 and 50 miles otherwise.
func HashedDistanceMeters(a, b string) int {
	a = strings.ToLower(domain.NormalizeAddress(a))
	b = strings.ToLower(domain.NormalizeAddress(b))
	if a == b {
		return 0
	}
	if b < a {
		a, b = b, a
	}

	h := xxhash.Sum64String(a + "\x00" + b)
	frac := float64(h%10000) / 10000
	return MilesToMeters(minHashedMiles + frac*hashedSpanMiles)
}

// MilesToMeters converts a mileage to whole meters.
func MilesToMeters(mi float64) int {
	return int(math.Round(mi * metersPerMile))
}
