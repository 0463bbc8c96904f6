// internal/api/reservations/handlers.go
package reservations

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pviana/arenabook/internal/api/apiutil"
	"github.com/pviana/arenabook/internal/booking"
	appdb "github.com/pviana/arenabook/internal/db"
	"github.com/pviana/arenabook/internal/models"
)

var (
	store       *appdb.DB
	engine      *booking.Engine
	handlerOnce sync.Once
)

var validate = validator.New()

const (
	reservationQueryTimeout = 5 * time.Second
	requesterHeader         = "X-User-ID"
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(database *appdb.DB, bookingEngine *booking.Engine) {
	if database == nil || bookingEngine == nil {
		return
	}
	handlerOnce.Do(func() {
		store = database
		engine = bookingEngine
	})
}

type createReservationRequest struct {
	ArenaID        int64    `json:"arena_id" validate:"required"`
	StartTime      string   `json:"start_time" validate:"required"`
	ParticipantIDs []string `json:"participant_ids" validate:"dive,uuid4"`
}

type updateReservationRequest struct {
	StartTime      string   `json:"start_time" validate:"required"`
	EndTime        string   `json:"end_time" validate:"required"`
	ParticipantIDs []string `json:"participant_ids" validate:"omitempty,dive,uuid4"`
}

type reservationResponse struct {
	ID            string  `json:"id"`
	ArenaID       int64   `json:"arena_id"`
	ResponsibleID *string `json:"responsible_id"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	CreatedAt     string  `json:"created_at"`
}

// POST /api/v1/reservations
func HandleReservationCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if engine == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	requesterID, ok := requesterFromRequest(w, r)
	if !ok {
		return
	}

	var req createReservationRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "start_time must be RFC3339", http.StatusBadRequest)
		return
	}
	participantIDs, err := parseParticipantIDs(req.ParticipantIDs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := timeoutContext(r)
	defer cancel()

	created, err := engine.Create(ctx, booking.CreateRequest{
		ResponsibleID:  requesterID,
		ArenaID:        req.ArenaID,
		StartTime:      start,
		ParticipantIDs: participantIDs,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusCreated, toResponse(created)); err != nil {
		logger.Error().Err(err).Str("reservation_id", created.ID.String()).Msg("Failed to write reservation response")
	}
}

// PUT /api/v1/reservations/{id}
func HandleReservationUpdate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if engine == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	requesterID, ok := requesterFromRequest(w, r)
	if !ok {
		return
	}
	reservationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid reservation id", http.StatusBadRequest)
		return
	}

	var req updateReservationRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "start_time must be RFC3339", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		http.Error(w, "end_time must be RFC3339", http.StatusBadRequest)
		return
	}

	var participantIDs []uuid.UUID
	if req.ParticipantIDs != nil {
		participantIDs, err = parseParticipantIDs(req.ParticipantIDs)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if participantIDs == nil {
			participantIDs = []uuid.UUID{}
		}
	}

	ctx, cancel := timeoutContext(r)
	defer cancel()

	updated, err := engine.Update(ctx, booking.UpdateRequest{
		ID:             reservationID,
		StartTime:      start,
		EndTime:        end,
		ParticipantIDs: participantIDs,
	}, requesterID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, toResponse(updated)); err != nil {
		logger.Error().Err(err).Str("reservation_id", updated.ID.String()).Msg("Failed to write reservation response")
	}
}

// DELETE /api/v1/reservations/{id}
func HandleReservationCancel(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if engine == nil {
		logger.Error().Msg("Booking engine not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	requesterID, ok := requesterFromRequest(w, r)
	if !ok {
		return
	}
	reservationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid reservation id", http.StatusBadRequest)
		return
	}

	ctx, cancel := timeoutContext(r)
	defer cancel()

	if err := engine.Cancel(ctx, reservationID, requesterID); err != nil {
		writeEngineError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/reservations?arena_id=... | responsible_id=... | view=available|marked
func HandleReservationsList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if store == nil {
		logger.Error().Msg("Database not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := timeoutContext(r)
	defer cancel()

	var reservations []models.Reservation
	var err error

	query := r.URL.Query()
	switch {
	case query.Get("arena_id") != "":
		var arenaID int64
		arenaID, err = strconv.ParseInt(query.Get("arena_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid arena_id", http.StatusBadRequest)
			return
		}
		reservations, err = store.Queries.ListReservationsByArena(ctx, arenaID)
	case query.Get("responsible_id") != "":
		var responsibleID uuid.UUID
		responsibleID, err = uuid.Parse(query.Get("responsible_id"))
		if err != nil {
			http.Error(w, "invalid responsible_id", http.StatusBadRequest)
			return
		}
		reservations, err = store.Queries.ListReservationsByResponsible(ctx, responsibleID)
	case query.Get("view") == "available":
		reservations, err = store.Queries.ListAvailableReservations(ctx, time.Now())
	case query.Get("view") == "marked":
		reservations, err = store.Queries.ListMarkedReservations(ctx, time.Now())
	default:
		http.Error(w, "arena_id, responsible_id or view is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list reservations")
		http.Error(w, "Failed to list reservations", http.StatusInternalServerError)
		return
	}

	payload := make([]reservationResponse, 0, len(reservations))
	for _, reservation := range reservations {
		payload = append(payload, toResponse(reservation))
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, payload); err != nil {
		logger.Error().Err(err).Msg("Failed to write reservation list response")
	}
}

// requesterFromRequest reads the acting user's id, resolved upstream by
// the auth layer and forwarded in a header.
func requesterFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get(requesterHeader)
	if raw == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func parseParticipantIDs(raw []string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, value := range raw {
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, errors.New("participant_ids must be UUIDs")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func timeoutContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), reservationQueryTimeout)
}

func toResponse(reservation models.Reservation) reservationResponse {
	resp := reservationResponse{
		ID:        reservation.ID.String(),
		ArenaID:   reservation.ArenaID,
		StartTime: reservation.StartTime.Format(time.RFC3339),
		EndTime:   reservation.EndTime.Format(time.RFC3339),
		CreatedAt: reservation.CreatedAt.Format(time.RFC3339),
	}
	if reservation.ResponsibleID != nil {
		id := reservation.ResponsibleID.String()
		resp.ResponsibleID = &id
	}
	return resp
}

// writeEngineError maps engine rejections to stable HTTP statuses. A
// non-rule error is a server fault.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var rule *booking.RuleError
	if !errors.As(err, &rule) {
		log.Ctx(r.Context()).Error().Err(err).Msg("Reservation operation failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	status := http.StatusBadRequest
	switch rule.Kind {
	case booking.KindArenaNotFound, booking.KindReservationNotFound:
		status = http.StatusNotFound
	case booking.KindForbidden:
		status = http.StatusForbidden
	case booking.KindSlotTaken, booking.KindQuotaExceeded:
		status = http.StatusConflict
	}
	apiutil.WriteError(w, status, string(rule.Kind), rule.Message)
}
