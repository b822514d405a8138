package planner

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-trip-planner/internal/api"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

type Handler struct {
	plannerService Service
	logger         *slog.Logger
}

func NewHandler(plannerService Service, logger *slog.Logger) *Handler {
	if logger == nil {
		panic("PANIC: Attempting to create planner Handler with nil logger!")
	}
	return &Handler{
		plannerService: plannerService,
		logger:         logger,
	}
}

// GenerateTrip handles POST /trips/generate. Validation problems come back as
// 400; everything else the engine absorbs into the plan's warnings list, so a
// 200 response can still carry a partial plan.
func (h *Handler) GenerateTrip(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PlannerHandler").Start(r.Context(), "GenerateTrip", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/trips/generate"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "GenerateTrip"))

	var req types.GenerateTripRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	span.SetAttributes(
		attribute.String("trip.country", req.Country),
		attribute.Int("trip.days", req.Days),
	)

	plan, err := h.plannerService.GenerateTrip(ctx, req)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			l.WarnContext(ctx, "Invalid trip request", slog.Any("error", err))
			span.SetStatus(codes.Error, "Invalid trip request")
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
			return
		}
		l.ErrorContext(ctx, "Failed to generate trip plan", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to generate trip plan")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to generate trip plan")
		return
	}

	span.SetStatus(codes.Ok, "Trip plan generated")
	api.WriteJSONResponse(w, r, http.StatusCreated, plan)
}

// GetTrip handles GET /trips/{tripID}.
func (h *Handler) GetTrip(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PlannerHandler").Start(r.Context(), "GetTrip", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/trips/{tripID}"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "GetTrip"))

	tripIDStr := chi.URLParam(r, "tripID")
	tripID, err := uuid.Parse(tripIDStr)
	if err != nil {
		l.WarnContext(ctx, "Invalid trip ID format in URL path", slog.String("trip_id_str", tripIDStr), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid trip ID format")
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid trip ID format in URL")
		return
	}
	span.SetAttributes(attribute.String("trip.id", tripID.String()))

	plan, err := h.plannerService.GetTrip(ctx, tripID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			span.SetStatus(codes.Error, "Trip plan not found")
			api.ErrorResponse(w, r, http.StatusNotFound, "Trip plan not found")
			return
		}
		l.ErrorContext(ctx, "Failed to get trip plan", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get trip plan")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to retrieve trip plan")
		return
	}

	span.SetStatus(codes.Ok, "Trip plan retrieved")
	api.WriteJSONResponse(w, r, http.StatusOK, plan)
}
