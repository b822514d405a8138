package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FACorreiaa/go-trip-planner/internal/api/poisearch"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type mealSlot struct {
	name       string
	categories []string
	radiusKm   float64
}

// mealAnchors are the day's morning/midday/evening reference points: first,
// middle and last scheduled place.
func mealAnchors(blocks []types.RouteBlock) ([3]types.Coordinate, bool) {
	if len(blocks) == 0 {
		return [3]types.Coordinate{}, false
	}
	first := blocks[0].Place.Location
	middle := blocks[len(blocks)/2].Place.Location
	last := blocks[len(blocks)-1].Place.Location
	return [3]types.Coordinate{first, middle, last}, true
}

// pickMeals finds up to three meals near the day's anchors. The three slot
// searches are independent and run concurrently; the final picks are
// reconciled sequentially against the exclusion set so two slots can never
// choose the same place. An empty slot is a warning, not an error.
func (s *ServiceImpl) pickMeals(ctx context.Context, day int, req *types.GenerateTripRequest, anchors [3]types.Coordinate, used *types.ExclusionSet) ([3]*types.CandidatePlace, []types.Warning) {
	mealRadius := s.planner.MealRadiusKm
	if mealRadius <= 0 {
		mealRadius = 15
	}
	dinnerRadius := s.planner.DinnerRadiusKm
	if dinnerRadius <= 0 {
		dinnerRadius = 20
	}

	slots := [3]mealSlot{
		{name: "breakfast", categories: []string{types.CategoryCafe, types.CategoryRestaurant}, radiusKm: mealRadius},
		{name: "lunch", categories: []string{types.CategoryRestaurant}, radiusKm: mealRadius},
		{name: "dinner", categories: []string{types.CategoryRestaurant, types.CategoryBar}, radiusKm: dinnerRadius},
	}

	// Snapshot the exclusion set up front; the fan-out goroutines must not
	// touch it while reconciliation below is the only writer.
	excludeIDs := used.IDs()
	maxPrice := priceLevelFilter(req)

	var candidates [3][]types.CandidatePlace
	g, gctx := errgroup.WithContext(ctx)
	for i := range slots {
		g.Go(func() error {
			candidates[i] = s.mealCandidates(gctx, slots[i], anchors[i], req.Country, req.City, maxPrice, excludeIDs)
			return nil
		})
	}
	// Slot lookups degrade to empty results instead of failing.
	_ = g.Wait()

	var picks [3]*types.CandidatePlace
	var warnings []types.Warning
	for i, slot := range slots {
		for _, c := range candidates[i] {
			if used.Contains(c.ID) {
				continue
			}
			pick := c
			picks[i] = &pick
			used.Add(c.ID)
			break
		}
		if picks[i] == nil {
			warnings = append(warnings, types.Warning{
				Code:    types.WarnMealUnavailable,
				Message: fmt.Sprintf("no %s found for day %d", slot.name, day),
			})
		}
	}
	return picks, warnings
}

// mealCandidates returns distance-filtered candidates for one slot, falling
// back to exactly one external nearby search when the local store has none.
func (s *ServiceImpl) mealCandidates(ctx context.Context, slot mealSlot, anchor types.Coordinate, country, city string, maxPrice *types.PriceLevel, excludeIDs []uuid.UUID) []types.CandidatePlace {
	local, err := s.repo.FetchCandidates(ctx, FetchFilter{
		Categories:    slot.categories,
		Country:       country,
		City:          city,
		Limit:         20,
		ExcludeIDs:    excludeIDs,
		MaxPriceLevel: maxPrice,
		// Food searches keep tourist traps; see buildPool.
		ExcludeTouristTraps: false,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Meal candidate query failed",
			slog.String("slot", slot.name), slog.Any("error", err))
	}

	nearby := withinRadius(local, anchor, slot.radiusKm)
	if len(nearby) > 0 {
		return nearby
	}

	found, err := s.search.SearchNearby(ctx, anchor.Lat, anchor.Lon, int(slot.radiusKm*1000), 0)
	if err != nil {
		if !errors.Is(err, poisearch.ErrUnavailable) {
			s.logger.WarnContext(ctx, "External meal search failed",
				slog.String("slot", slot.name), slog.Any("error", err))
		}
		return nil
	}

	matching := make([]types.CandidatePlace, 0, len(found))
	for _, p := range found {
		if containsCategory(slot.categories, p.Category) {
			matching = append(matching, p)
		}
	}
	persisted := s.persistDiscovered(ctx, matching, country, city)
	return withinRadius(persisted, anchor, slot.radiusKm)
}

func withinRadius(places []types.CandidatePlace, anchor types.Coordinate, radiusKm float64) []types.CandidatePlace {
	out := make([]types.CandidatePlace, 0, len(places))
	for _, p := range places {
		if types.HaversineKm(anchor, p.Location) <= radiusKm {
			out = append(out, p)
		}
	}
	return out
}

func containsCategory(categories []string, category string) bool {
	for _, c := range categories {
		if c == category {
			return true
		}
	}
	return false
}

func priceLevelFilter(req *types.GenerateTripRequest) *types.PriceLevel {
	if req.PriceLevel == nil {
		return nil
	}
	level, ok := types.ParsePriceLevel(*req.PriceLevel)
	if !ok {
		return nil
	}
	return &level
}
