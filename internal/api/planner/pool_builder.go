package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/FACorreiaa/go-trip-planner/app/observability/metrics"
	"github.com/FACorreiaa/go-trip-planner/internal/api/poisearch"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PoolRequest asks for a ranked candidate pool for one category group.
type PoolRequest struct {
	Categories    []string
	Country       string
	City          string
	Size          int
	MaxPriceLevel *types.PriceLevel
}

// buildPool assembles a ranked, deduplicated candidate pool. Shortfalls are
// handled by tiered fallback: city scope first, then country-wide, then
// external augmentation; a pool still short of the target is returned as-is
// with a limited_data warning, never as an error.
func (s *ServiceImpl) buildPool(ctx context.Context, req PoolRequest, used *types.ExclusionSet) ([]types.CandidatePlace, []types.Warning, error) {
	ctx, span := otel.Tracer("PlannerService").Start(ctx, "buildPool", trace.WithAttributes(
		attribute.String("pool.country", req.Country),
		attribute.String("pool.city", req.City),
		attribute.Int("pool.size", req.Size),
	))
	defer span.End()

	// Food categories keep their tourist traps: dropping every trap in a
	// food-scarce area degrades results more than the trap risk.
	excludeTraps := !types.IsFoodCategory(req.Categories...)

	candidates, err := s.repo.FetchCandidates(ctx, FetchFilter{
		Categories:          req.Categories,
		Country:             req.Country,
		City:                req.City,
		Limit:               2 * req.Size,
		ExcludeIDs:          used.IDs(),
		MaxPriceLevel:       req.MaxPriceLevel,
		ExcludeTouristTraps: excludeTraps,
	})
	if err != nil {
		span.RecordError(err)
		return nil, nil, fmt.Errorf("failed to fetch candidate pool: %w", err)
	}

	pool := rankCandidates(dedupePlaces(candidates, used))
	if len(pool) > req.Size {
		pool = pool[:req.Size]
	}

	var warnings []types.Warning

	// Fallback tier 1: widen the city query to the whole country.
	if len(pool) < req.Size && req.City != "" {
		exclude := append(used.IDs(), placeIDs(pool)...)
		wider, err := s.repo.FetchCandidates(ctx, FetchFilter{
			Categories:          req.Categories,
			Country:             req.Country,
			Limit:               2 * req.Size,
			ExcludeIDs:          exclude,
			MaxPriceLevel:       req.MaxPriceLevel,
			ExcludeTouristTraps: excludeTraps,
		})
		if err != nil {
			s.logger.WarnContext(ctx, "Country-wide fallback query failed", slog.Any("error", err))
		} else {
			pool = appendUpTo(pool, rankCandidates(wider), req.Size, used)
		}
	}

	// Fallback tier 2: augment from the external POI search, one query per
	// unrepresented category. A short pool that already covers every requested
	// category stays short; only wholly missing categories justify an external
	// call.
	if len(pool) < req.Size && len(missingCategories(req.Categories, pool)) > 0 {
		var degraded bool
		pool, degraded = s.augmentPool(ctx, req, pool, used)
		if degraded {
			warnings = append(warnings, types.Warning{
				Code:    types.WarnExternalDegraded,
				Message: "external place search degraded, pool may be incomplete",
			})
		}
	}

	if len(pool) < req.Size {
		s.logger.InfoContext(ctx, "Candidate pool below requested size",
			slog.Int("requested", req.Size), slog.Int("got", len(pool)))
		if m := metrics.Get(); m != nil {
			m.PoolShortfallTotal.Add(ctx, 1)
		}
		warnings = append(warnings, types.Warning{
			Code:    types.WarnLimitedData,
			Message: fmt.Sprintf("only %d of %d requested places found", len(pool), req.Size),
		})
	}

	span.SetAttributes(attribute.Int("pool.result_size", len(pool)))
	return pool, warnings, nil
}

// augmentPool fills the remaining pool slots from the external search. The
// boolean reports whether the external service was degraded along the way.
func (s *ServiceImpl) augmentPool(ctx context.Context, req PoolRequest, pool []types.CandidatePlace, used *types.ExclusionSet) ([]types.CandidatePlace, bool) {
	location := req.Country
	if req.City != "" {
		location = req.City + ", " + req.Country
	}

	for _, category := range missingCategories(req.Categories, pool) {
		if len(pool) >= req.Size {
			break
		}
		query := fmt.Sprintf("best %s to visit in %s", category, location)
		found, err := s.search.SearchByText(ctx, query, 0)
		if err != nil {
			if errors.Is(err, poisearch.ErrUnavailable) {
				// Circuit open or degraded: skip augmentation for the rest
				// of this pool rather than hammering a failing service.
				return pool, true
			}
			s.logger.WarnContext(ctx, "External augmentation failed", slog.Any("error", err))
			return pool, true
		}

		persisted := s.persistDiscovered(ctx, found, req.Country, req.City)
		pool = appendUpTo(pool, rankCandidates(persisted), req.Size, used)
	}
	return pool, false
}

// persistDiscovered upserts externally discovered places so they gain local
// identities. Keyed by external id, so re-discovery is idempotent.
func (s *ServiceImpl) persistDiscovered(ctx context.Context, found []types.CandidatePlace, country, city string) []types.CandidatePlace {
	out := make([]types.CandidatePlace, 0, len(found))
	for _, place := range found {
		if place.External != nil {
			existing, err := s.repo.FindByExternalID(ctx, place.External.Provider, place.External.PlaceID)
			if err != nil {
				s.logger.WarnContext(ctx, "Failed to look up discovered place", slog.Any("error", err))
				continue
			}
			if existing != nil {
				out = append(out, *existing)
				continue
			}
		}
		place.Country = country
		place.City = city
		created, err := s.repo.CreateCandidate(ctx, place)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to persist discovered place",
				slog.String("name", place.Name), slog.Any("error", err))
			continue
		}
		out = append(out, created)
	}
	return out
}

// rankCandidates sorts by classification priority, then rating, then
// popularity, both descending. Stable so the repository's order breaks ties.
func rankCandidates(places []types.CandidatePlace) []types.CandidatePlace {
	sorted := make([]types.CandidatePlace, len(places))
	copy(sorted, places)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := sorted[i].Classification.Priority(), sorted[j].Classification.Priority()
		if pi != pj {
			return pi < pj
		}
		if sorted[i].Rating != sorted[j].Rating {
			return sorted[i].Rating > sorted[j].Rating
		}
		return sorted[i].Popularity > sorted[j].Popularity
	})
	return sorted
}

func dedupePlaces(places []types.CandidatePlace, used *types.ExclusionSet) []types.CandidatePlace {
	seen := make(map[uuid.UUID]struct{}, len(places))
	out := make([]types.CandidatePlace, 0, len(places))
	for _, p := range places {
		if used.Contains(p.ID) {
			continue
		}
		if p.ID != uuid.Nil {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
		}
		out = append(out, p)
	}
	return out
}

// appendUpTo appends extras to pool until it reaches size, skipping
// duplicates and excluded identities.
func appendUpTo(pool, extras []types.CandidatePlace, size int, used *types.ExclusionSet) []types.CandidatePlace {
	have := make(map[uuid.UUID]struct{}, len(pool))
	for _, p := range pool {
		have[p.ID] = struct{}{}
	}
	for _, p := range extras {
		if len(pool) >= size {
			break
		}
		if used.Contains(p.ID) {
			continue
		}
		if p.ID != uuid.Nil {
			if _, dup := have[p.ID]; dup {
				continue
			}
			have[p.ID] = struct{}{}
		}
		pool = append(pool, p)
	}
	return pool
}

func missingCategories(requested []string, pool []types.CandidatePlace) []string {
	present := make(map[string]struct{}, len(pool))
	for _, p := range pool {
		present[p.Category] = struct{}{}
	}
	var missing []string
	for _, c := range requested {
		if _, ok := present[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

func placeIDs(places []types.CandidatePlace) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(places))
	for _, p := range places {
		if p.ID != uuid.Nil {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
