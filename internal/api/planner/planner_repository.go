package planner

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/go-trip-planner/app/observability/metrics"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Repository = (*RepositoryImpl)(nil)

// FetchFilter narrows a candidate query. The repository returns rows in its
// own default order (rating, popularity); the pool builder re-sorts.
type FetchFilter struct {
	Categories          []string
	Country             string
	City                string
	Limit               int
	ExcludeIDs          []uuid.UUID
	MaxPriceLevel       *types.PriceLevel
	ExcludeTouristTraps bool
}

// Repository is the CandidateSource: the local place store plus trip plan
// persistence.
type Repository interface {
	FetchCandidates(ctx context.Context, filter FetchFilter) ([]types.CandidatePlace, error)
	FindByExternalID(ctx context.Context, provider, placeID string) (*types.CandidatePlace, error)
	CreateCandidate(ctx context.Context, place types.CandidatePlace) (types.CandidatePlace, error)
	FetchLodging(ctx context.Context, country, city string, limit int) ([]types.CandidatePlace, error)

	SaveTripPlan(ctx context.Context, plan types.TripPlan) (uuid.UUID, error)
	GetTripPlan(ctx context.Context, id uuid.UUID) (*types.TripPlan, error)
}

// pgxQuerier is the slice of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool pgxQuerier
}

func NewRepository(pgpool *pgxpool.Pool, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

const placeColumns = `id, name, latitude, longitude, category, classification, rating,
        popularity, price_level, visit_minutes, country, COALESCE(city, ''),
        external_provider, external_place_id`

func (r *RepositoryImpl) FetchCandidates(ctx context.Context, filter FetchFilter) ([]types.CandidatePlace, error) {
	if filter.Limit <= 0 {
		return nil, fmt.Errorf("fetch candidates: limit must be positive, got %d", filter.Limit)
	}

	query := fmt.Sprintf(`SELECT %s FROM places WHERE category = ANY($1) AND country = $2`, placeColumns)
	args := []interface{}{filter.Categories, filter.Country}

	if filter.City != "" {
		args = append(args, filter.City)
		query += fmt.Sprintf(" AND city = $%d", len(args))
	}
	if len(filter.ExcludeIDs) > 0 {
		args = append(args, filter.ExcludeIDs)
		query += fmt.Sprintf(" AND NOT (id = ANY($%d))", len(args))
	}
	if filter.MaxPriceLevel != nil {
		args = append(args, int(*filter.MaxPriceLevel))
		query += fmt.Sprintf(" AND price_level <= $%d", len(args))
	}
	if filter.ExcludeTouristTraps {
		args = append(args, string(types.ClassificationTouristTrap))
		query += fmt.Sprintf(" AND classification <> $%d", len(args))
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY rating DESC, popularity DESC LIMIT $%d", len(args))

	start := time.Now()
	rows, err := r.pgpool.Query(ctx, query, args...)
	if m := metrics.Get(); m != nil {
		m.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		if m := metrics.Get(); m != nil {
			m.DbQueryErrorsTotal.Add(ctx, 1)
		}
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	return scanPlaces(rows)
}

func (r *RepositoryImpl) FindByExternalID(ctx context.Context, provider, placeID string) (*types.CandidatePlace, error) {
	query := fmt.Sprintf(`SELECT %s FROM places WHERE external_provider = $1 AND external_place_id = $2`, placeColumns)
	row := r.pgpool.QueryRow(ctx, query, provider, placeID)

	place, err := scanPlace(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find place by external id: %w", err)
	}
	return &place, nil
}

// CreateCandidate persists a place. For externally discovered places the
// upsert is keyed by (provider, place id) so repeated discoveries are
// idempotent.
func (r *RepositoryImpl) CreateCandidate(ctx context.Context, place types.CandidatePlace) (types.CandidatePlace, error) {
	if !place.Location.Valid() {
		return types.CandidatePlace{}, fmt.Errorf("invalid coordinates: lat=%f, lon=%f", place.Location.Lat, place.Location.Lon)
	}
	if place.Name == "" {
		return types.CandidatePlace{}, fmt.Errorf("place name is required")
	}

	var provider, placeID *string
	if place.External != nil {
		provider = &place.External.Provider
		placeID = &place.External.PlaceID
	}

	query := `
        INSERT INTO places (
            name, latitude, longitude, category, classification, rating,
            popularity, price_level, visit_minutes, country, city,
            external_provider, external_place_id
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13)
        ON CONFLICT (external_provider, external_place_id)
            WHERE external_provider IS NOT NULL AND external_place_id IS NOT NULL
            DO UPDATE SET rating = EXCLUDED.rating, popularity = EXCLUDED.popularity,
                          updated_at = now()
        RETURNING id
    `
	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx, query,
		place.Name, place.Location.Lat, place.Location.Lon, place.Category,
		string(place.Classification), place.Rating, place.Popularity,
		int(place.PriceLevel), place.VisitMinutes, place.Country, place.City,
		provider, placeID,
	).Scan(&id)
	if err != nil {
		return types.CandidatePlace{}, fmt.Errorf("failed to upsert place: %w", err)
	}

	place.ID = id
	return place, nil
}

func (r *RepositoryImpl) FetchLodging(ctx context.Context, country, city string, limit int) ([]types.CandidatePlace, error) {
	return r.FetchCandidates(ctx, FetchFilter{
		Categories: []string{types.CategoryLodging},
		Country:    country,
		City:       city,
		Limit:      limit,
	})
}

func (r *RepositoryImpl) SaveTripPlan(ctx context.Context, plan types.TripPlan) (uuid.UUID, error) {
	tx, err := r.pgpool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	warnings, err := json.Marshal(plan.Warnings)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal warnings: %w", err)
	}

	var planID uuid.UUID
	err = tx.QueryRow(ctx, `
        INSERT INTO trip_plans (destination, origin_lat, origin_lon, total_km, travel_minutes, warnings)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		plan.Destination, plan.Origin.Lat, plan.Origin.Lon,
		plan.TotalKm, plan.TravelMinutes, warnings,
	).Scan(&planID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert trip plan: %w", err)
	}

	for _, day := range plan.Days {
		var dayID uuid.UUID
		err = tx.QueryRow(ctx, `
            INSERT INTO trip_plan_days (trip_plan_id, day_number, breakfast_id, lunch_id, dinner_id, lodging_id, total_km, travel_minutes)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			planID, day.Day, placeRef(day.Breakfast), placeRef(day.Lunch),
			placeRef(day.Dinner), placeRef(day.Lodging), day.TotalKm, day.TravelMinutes,
		).Scan(&dayID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert day %d: %w", day.Day, err)
		}

		for i, block := range day.Blocks {
			_, err = tx.Exec(ctx, `
                INSERT INTO trip_plan_blocks (trip_plan_day_id, position, place_id, start_minutes, end_minutes, travel_minutes, travel_km)
                VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				dayID, i, block.Place.ID, block.Start.Minutes(), block.End.Minutes(),
				block.TravelMinutes, block.TravelKm,
			)
			if err != nil {
				return uuid.Nil, fmt.Errorf("failed to insert block %d of day %d: %w", i, day.Day, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit trip plan: %w", err)
	}
	return planID, nil
}

func (r *RepositoryImpl) GetTripPlan(ctx context.Context, id uuid.UUID) (*types.TripPlan, error) {
	var plan types.TripPlan
	var warnings []byte
	err := r.pgpool.QueryRow(ctx, `
        SELECT id, destination, origin_lat, origin_lon, total_km, travel_minutes, warnings
        FROM trip_plans WHERE id = $1`, id,
	).Scan(&plan.ID, &plan.Destination, &plan.Origin.Lat, &plan.Origin.Lon,
		&plan.TotalKm, &plan.TravelMinutes, &warnings)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get trip plan: %w", err)
	}
	if err := json.Unmarshal(warnings, &plan.Warnings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal warnings: %w", err)
	}

	dayRows, err := r.pgpool.Query(ctx, `
        SELECT id, day_number, breakfast_id, lunch_id, dinner_id, lodging_id, total_km, travel_minutes
        FROM trip_plan_days WHERE trip_plan_id = $1 ORDER BY day_number`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query trip plan days: %w", err)
	}
	defer dayRows.Close()

	type dayRow struct {
		id                                uuid.UUID
		breakfast, lunch, dinner, lodging *uuid.UUID
		day                               types.DayPlan
	}
	var days []dayRow
	for dayRows.Next() {
		var d dayRow
		if err := dayRows.Scan(&d.id, &d.day.Day, &d.breakfast, &d.lunch, &d.dinner,
			&d.lodging, &d.day.TotalKm, &d.day.TravelMinutes); err != nil {
			return nil, fmt.Errorf("failed to scan trip plan day: %w", err)
		}
		days = append(days, d)
	}
	if err := dayRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trip plan days: %w", err)
	}

	for i := range days {
		blockRows, err := r.pgpool.Query(ctx, fmt.Sprintf(`
            SELECT b.start_minutes, b.end_minutes, b.travel_minutes, b.travel_km, %s
            FROM trip_plan_blocks b JOIN places p ON p.id = b.place_id
            WHERE b.trip_plan_day_id = $1 ORDER BY b.position`, prefixedPlaceColumns("p")), days[i].id)
		if err != nil {
			return nil, fmt.Errorf("failed to query blocks for day %d: %w", days[i].day.Day, err)
		}
		for blockRows.Next() {
			var block types.RouteBlock
			var startMin, endMin int
			dest := append([]interface{}{&startMin, &endMin, &block.TravelMinutes, &block.TravelKm},
				placeScanDest(&block.Place)...)
			if err := blockRows.Scan(dest...); err != nil {
				blockRows.Close()
				return nil, fmt.Errorf("failed to scan block: %w", err)
			}
			block.Start = types.ClockTime(startMin)
			block.End = types.ClockTime(endMin)
			days[i].day.Blocks = append(days[i].day.Blocks, block)
		}
		err = blockRows.Err()
		blockRows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read blocks: %w", err)
		}

		days[i].day.Breakfast, err = r.placeByRef(ctx, days[i].breakfast)
		if err != nil {
			return nil, err
		}
		days[i].day.Lunch, err = r.placeByRef(ctx, days[i].lunch)
		if err != nil {
			return nil, err
		}
		days[i].day.Dinner, err = r.placeByRef(ctx, days[i].dinner)
		if err != nil {
			return nil, err
		}
		days[i].day.Lodging, err = r.placeByRef(ctx, days[i].lodging)
		if err != nil {
			return nil, err
		}
		plan.Days = append(plan.Days, days[i].day)
	}

	return &plan, nil
}

func (r *RepositoryImpl) placeByRef(ctx context.Context, id *uuid.UUID) (*types.CandidatePlace, error) {
	if id == nil {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM places WHERE id = $1`, placeColumns)
	place, err := scanPlace(r.pgpool.QueryRow(ctx, query, *id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load place %s: %w", id, err)
	}
	return &place, nil
}

func placeRef(p *types.CandidatePlace) *uuid.UUID {
	if p == nil || p.ID == uuid.Nil {
		return nil
	}
	id := p.ID
	return &id
}

func prefixedPlaceColumns(alias string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.name, %[1]s.latitude, %[1]s.longitude, %[1]s.category,
        %[1]s.classification, %[1]s.rating, %[1]s.popularity, %[1]s.price_level,
        %[1]s.visit_minutes, %[1]s.country, COALESCE(%[1]s.city, ''),
        %[1]s.external_provider, %[1]s.external_place_id`, alias)
}

func placeScanDest(p *types.CandidatePlace) []interface{} {
	return []interface{}{
		&p.ID, &p.Name, &p.Location.Lat, &p.Location.Lon, &p.Category,
		&p.Classification, &p.Rating, &p.Popularity, &p.PriceLevel,
		&p.VisitMinutes, &p.Country, &p.City,
		&scanExternal{place: p, field: externalProvider},
		&scanExternal{place: p, field: externalPlaceID},
	}
}

type externalField int

const (
	externalProvider externalField = iota
	externalPlaceID
)

// scanExternal folds nullable provider columns into the External sub-struct,
// leaving it nil for purely local places.
type scanExternal struct {
	place *types.CandidatePlace
	field externalField
}

func (s *scanExternal) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	str, ok := src.(string)
	if !ok {
		if b, isBytes := src.([]byte); isBytes {
			str = string(b)
		} else {
			return fmt.Errorf("unexpected type %T for external column", src)
		}
	}
	if str == "" {
		return nil
	}
	if s.place.External == nil {
		s.place.External = &types.ExternalSource{}
	}
	switch s.field {
	case externalProvider:
		s.place.External.Provider = str
	case externalPlaceID:
		s.place.External.PlaceID = str
	}
	return nil
}

var _ sql.Scanner = (*scanExternal)(nil)

func scanPlace(row pgx.Row) (types.CandidatePlace, error) {
	var place types.CandidatePlace
	if err := row.Scan(placeScanDest(&place)...); err != nil {
		return types.CandidatePlace{}, err
	}
	return place, nil
}

func scanPlaces(rows pgx.Rows) ([]types.CandidatePlace, error) {
	var places []types.CandidatePlace
	for rows.Next() {
		var place types.CandidatePlace
		if err := rows.Scan(placeScanDest(&place)...); err != nil {
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		places = append(places, place)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read places: %w", err)
	}
	return places, nil
}
