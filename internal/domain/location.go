package domain

import "strings"

// Location is anything the distance oracle can measure from or to:
// an address, resolved coordinates, or both.
type Location struct {
	Address string
	Coords  *Coordinates
}

// NormalizeAddress collapses whitespace so cache keys stay consistent.
func NormalizeAddress(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Key identifies the location for caching and matrix lookups.
func (l Location) Key() string {
	if a := NormalizeAddress(l.Address); a != "" {
		return a
	}
	if l.Coords != nil {
		return l.Coords.String()
	}
	return ""
}
