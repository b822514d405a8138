package planner

import (
	"context"
	"errors"
	"log/slog"

	"github.com/FACorreiaa/go-trip-planner/internal/api/poisearch"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

// pickLodging selects the nearest lodging candidate within the configured
// radius of the day anchor. When the local pool has nothing in range it falls
// back to the external search filtered by a minimum rating and takes the
// top-rated result, persisting it on discovery. Returns nil when nothing
// qualifies; the caller records a warning.
func (s *ServiceImpl) pickLodging(ctx context.Context, anchor types.Coordinate, lodgingPool []types.CandidatePlace, country, city string, used *types.ExclusionSet) *types.CandidatePlace {
	radius := s.planner.LodgingRadiusKm
	if radius <= 0 {
		radius = 10
	}

	var best *types.CandidatePlace
	bestDist := radius
	for i := range lodgingPool {
		p := lodgingPool[i]
		if used.Contains(p.ID) {
			continue
		}
		if d := types.HaversineKm(anchor, p.Location); d <= bestDist {
			bestDist = d
			best = &lodgingPool[i]
		}
	}
	if best != nil {
		pick := *best
		used.Add(pick.ID)
		return &pick
	}

	minRating := s.planner.LodgingMinRating
	if minRating <= 0 {
		minRating = 4.0
	}
	found, err := s.search.SearchNearby(ctx, anchor.Lat, anchor.Lon, int(radius*1000), minRating)
	if err != nil {
		if !errors.Is(err, poisearch.ErrUnavailable) {
			s.logger.WarnContext(ctx, "External lodging search failed", slog.Any("error", err))
		}
		return nil
	}

	var top *types.CandidatePlace
	for i := range found {
		p := found[i]
		if p.Category != types.CategoryLodging && p.Category != "hotel" {
			continue
		}
		if top == nil || p.Rating > top.Rating {
			top = &found[i]
		}
	}
	if top == nil {
		return nil
	}

	persisted := s.persistDiscovered(ctx, []types.CandidatePlace{*top}, country, city)
	if len(persisted) == 0 {
		return nil
	}
	pick := persisted[0]
	used.Add(pick.ID)
	return &pick
}
