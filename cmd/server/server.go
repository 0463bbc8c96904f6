// cmd/server/server.go
package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pviana/arenabook/internal/api"
	"github.com/pviana/arenabook/internal/api/arenas"
	"github.com/pviana/arenabook/internal/api/reservations"
	"github.com/pviana/arenabook/internal/booking"
	"github.com/pviana/arenabook/internal/config"
	"github.com/pviana/arenabook/internal/db"
)

func newServer(cfg *config.Config, database *db.DB, engine *booking.Engine) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
	)

	reservations.InitHandlers(database, engine)
	arenas.InitHandlers(database)
	registerRoutes(router)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Reservation routes
	mux.HandleFunc("POST /api/v1/reservations", reservations.HandleReservationCreate)
	mux.HandleFunc("GET /api/v1/reservations", reservations.HandleReservationsList)
	mux.HandleFunc("PUT /api/v1/reservations/{id}", reservations.HandleReservationUpdate)
	mux.HandleFunc("DELETE /api/v1/reservations/{id}", reservations.HandleReservationCancel)

	// Arena routes
	mux.HandleFunc("GET /api/v1/arenas", arenas.HandleArenasList)
	mux.HandleFunc("GET /api/v1/arenas/{id}", arenas.HandleArenaGet)
}
