package domain

import (
	"errors"
	"testing"
)

func TestLoadAddRespectsCapacity(t *testing.T) {
	load := NewLoad("veh_1", 3)

	stops := []Stop{
		{OrderID: "o1", RequiredCapacityUnits: 1},
		{OrderID: "o2", RequiredCapacityUnits: 2},
		{OrderID: "o3", RequiredCapacityUnits: 1},
	}

	for _, s := range stops[:2] {
		if err := load.Add(s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if load.Remaining() != 0 {
		t.Fatalf("remaining = %d, want 0", load.Remaining())
	}

	err := load.Add(stops[2])
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if len(load.Stops) != 2 {
		t.Fatalf("expected 2 stops loaded, got %d", len(load.Stops))
	}
}

func TestLoadRejectsZeroUnits(t *testing.T) {
	load := NewLoad("veh_1", 10)
	if load.Fits(0) {
		t.Fatal("zero-unit stop must not fit")
	}
}

func TestHaversineMeters(t *testing.T) {
	leesville := Coordinates{Lat: 31.1435, Lon: -93.2610}
	lakeCharles := Coordinates{Lat: 30.2266, Lon: -93.2174}

	got := HaversineMeters(leesville, lakeCharles)
	// ~102 km between the two depots.
	if got < 100000 || got > 104000 {
		t.Fatalf("haversine = %.0f, want ~102000", got)
	}
	if HaversineMeters(leesville, leesville) != 0 {
		t.Fatal("distance to self must be zero")
	}
}
