package planner

import (
	"math"

	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

// SequenceClusters orders day clusters by greedy nearest-centroid chaining
// from the origin: each step appends the remaining cluster whose centroid is
// closest to the current point. Approximates a travel-minimizing day order
// without solving inter-cluster TSP. The input slice is not mutated.
func SequenceClusters(clusters []types.DayCluster, origin types.Coordinate) []types.DayCluster {
	remaining := make([]types.DayCluster, len(clusters))
	copy(remaining, clusters)

	ordered := make([]types.DayCluster, 0, len(clusters))
	current := origin
	for len(remaining) > 0 {
		best := 0
		bestDist := math.MaxFloat64
		for i, c := range remaining {
			if d := types.HaversineKm(current, c.Centroid); d < bestDist {
				bestDist = d
				best = i
			}
		}
		ordered = append(ordered, remaining[best])
		current = remaining[best].Centroid
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return ordered
}

// SequenceRoute orders one day's places by the nearest-neighbor heuristic
// starting from the entry coordinate (the previous day's last stop, or the
// trip origin on day one). O(n²), fine for the handful of places in a day.
// Index order breaks distance ties so the result is deterministic. The input
// slice is not mutated.
func SequenceRoute(places []types.CandidatePlace, entry types.Coordinate) []types.CandidatePlace {
	remaining := make([]types.CandidatePlace, len(places))
	copy(remaining, places)

	route := make([]types.CandidatePlace, 0, len(places))
	current := entry
	for len(remaining) > 0 {
		best := 0
		bestDist := math.MaxFloat64
		for i, p := range remaining {
			if d := types.HaversineKm(current, p.Location); d < bestDist {
				bestDist = d
				best = i
			}
		}
		route = append(route, remaining[best])
		current = remaining[best].Location
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return route
}

// routeLengthKm sums consecutive haversine legs of a route starting at entry.
func routeLengthKm(entry types.Coordinate, route []types.CandidatePlace) float64 {
	total := 0.0
	current := entry
	for _, p := range route {
		total += types.HaversineKm(current, p.Location)
		current = p.Location
	}
	return total
}
