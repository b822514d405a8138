package planner

import (
	"math"
	"math/rand"

	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

const (
	maxKMeansIterations = 50
	// convergenceKm stops iterating once no centroid moves further than this.
	// 0.1 km keeps iteration counts low while still stabilizing membership.
	convergenceKm = 0.1
)

// ClusterPlaces partitions the candidate pool into at most
// min(days, ceil(len/placesPerDay)) day-sized geographic clusters using
// bounded k-means over raw lat/lon with haversine assignment. The union of
// cluster members always equals the input set.
//
// rng drives centroid seeding; pass a fixed-seed source for reproducible
// output.
func ClusterPlaces(places []types.CandidatePlace, days, placesPerDay int, rng *rand.Rand) []types.DayCluster {
	if len(places) == 0 || days < 1 {
		return nil
	}
	if placesPerDay < 1 {
		placesPerDay = 1
	}

	k := (len(places) + placesPerDay - 1) / placesPerDay
	if k > days {
		k = days
	}
	if k < 1 {
		k = 1
	}

	// Degenerate pool: every place is its own day, no clustering needed.
	if len(places) <= k {
		clusters := make([]types.DayCluster, 0, len(places))
		for _, p := range places {
			clusters = append(clusters, types.DayCluster{
				Places:   []types.CandidatePlace{p},
				Centroid: p.Location,
			})
		}
		return clusters
	}

	// Seed centroids from k distinct candidate coordinates.
	centroids := make([]types.Coordinate, k)
	for i, idx := range rng.Perm(len(places))[:k] {
		centroids[i] = places[idx].Location
	}

	assignment := make([]int, len(places))
	for iter := 0; iter < maxKMeansIterations; iter++ {
		for i, p := range places {
			assignment[i] = nearestCentroid(p.Location, centroids)
		}

		moved := 0.0
		for c := range centroids {
			var members []types.Coordinate
			for i, p := range places {
				if assignment[i] == c {
					members = append(members, p.Location)
				}
			}
			if len(members) == 0 {
				continue
			}
			next := types.Centroid(members)
			if d := types.HaversineKm(centroids[c], next); d > moved {
				moved = d
			}
			centroids[c] = next
		}
		if moved <= convergenceKm {
			break
		}
	}

	grouped := make([][]types.CandidatePlace, k)
	for _, p := range places {
		c := nearestCentroid(p.Location, centroids)
		grouped[c] = append(grouped[c], p)
	}

	// Geographically degenerate inputs can leave a centroid with no members;
	// empty clusters are dropped rather than padded.
	clusters := make([]types.DayCluster, 0, k)
	for c, members := range grouped {
		if len(members) == 0 {
			continue
		}
		clusters = append(clusters, types.DayCluster{
			Places:   members,
			Centroid: centroids[c],
		})
	}
	return clusters
}

func nearestCentroid(p types.Coordinate, centroids []types.Coordinate) int {
	best := 0
	bestDist := math.MaxFloat64
	for i, c := range centroids {
		if d := types.HaversineKm(p, c); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}
