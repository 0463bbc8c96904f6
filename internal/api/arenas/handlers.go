// internal/api/arenas/handlers.go
package arenas

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pviana/arenabook/internal/api/apiutil"
	appdb "github.com/pviana/arenabook/internal/db"
	"github.com/pviana/arenabook/internal/models"
)

var (
	store       *appdb.DB
	handlerOnce sync.Once
)

const arenaQueryTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(database *appdb.DB) {
	if database == nil {
		return
	}
	handlerOnce.Do(func() {
		store = database
	})
}

type arenaResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Capacity    int64  `json:"capacity"`
	Sport       string `json:"sport"`
}

// GET /api/v1/arenas
func HandleArenasList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if store == nil {
		logger.Error().Msg("Database not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), arenaQueryTimeout)
	defer cancel()

	arenas, err := store.Queries.ListArenas(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list arenas")
		http.Error(w, "Failed to list arenas", http.StatusInternalServerError)
		return
	}

	payload := make([]arenaResponse, 0, len(arenas))
	for _, arena := range arenas {
		payload = append(payload, toResponse(arena))
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, payload); err != nil {
		logger.Error().Err(err).Msg("Failed to write arena list response")
	}
}

// GET /api/v1/arenas/{id}
func HandleArenaGet(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if store == nil {
		logger.Error().Msg("Database not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid arena id", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), arenaQueryTimeout)
	defer cancel()

	arena, err := store.Queries.GetArena(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Arena not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error().Err(err).Int64("arena_id", id).Msg("Failed to load arena")
		http.Error(w, "Failed to load arena", http.StatusInternalServerError)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, toResponse(arena)); err != nil {
		logger.Error().Err(err).Int64("arena_id", id).Msg("Failed to write arena response")
	}
}

func toResponse(arena models.Arena) arenaResponse {
	return arenaResponse{
		ID:          arena.ID,
		Name:        arena.Name,
		Description: arena.Description,
		Capacity:    arena.Capacity,
		Sport:       string(arena.Sport),
	}
}
