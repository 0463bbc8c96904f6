// internal/booking/engine.go
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	appdb "github.com/pviana/arenabook/internal/db"
	"github.com/pviana/arenabook/internal/email"
	"github.com/pviana/arenabook/internal/models"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

// realClock implements Clock using the system time.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Engine coordinates reservation creation, update and cancellation:
// slot grid validation, quota windows, overlap detection and the
// persistence transaction, in that order. Writes for the same arena or
// the same user are serialized by keyed locks held across the whole
// check-then-write sequence; unrelated arenas and users proceed in
// parallel.
type Engine struct {
	db         *appdb.DB
	sender     email.Sender
	clock      Clock
	arenaLocks *keyedMutex
	userLocks  *keyedMutex
}

type Option func(*Engine)

// WithClock replaces the engine's time source.
func WithClock(clock Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithSender enables reservation emails. Without it the engine is
// silent but fully functional.
func WithSender(sender email.Sender) Option {
	return func(e *Engine) { e.sender = sender }
}

func NewEngine(database *appdb.DB, opts ...Option) (*Engine, error) {
	if database == nil {
		return nil, errors.New("booking engine requires a database")
	}
	engine := &Engine{
		db:         database,
		clock:      realClock{},
		arenaLocks: newKeyedMutex(),
		userLocks:  newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// CreateRequest proposes a new reservation. The end time is always
// derived from the fixed 90-minute duration, never taken from input.
type CreateRequest struct {
	ResponsibleID  uuid.UUID
	ArenaID        int64
	StartTime      time.Time
	ParticipantIDs []uuid.UUID
}

// Create validates the proposal and persists the reservation together
// with the requester's participation marker in one transaction. Any
// rejection leaves storage untouched.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (models.Reservation, error) {
	logger := log.Ctx(ctx).With().
		Str("component", "booking_engine").
		Int64("arena_id", req.ArenaID).
		Str("responsible_id", req.ResponsibleID.String()).
		Logger()

	start := req.StartTime
	end := start.Add(models.ReservationDuration)

	unlockArena := e.arenaLocks.Lock(arenaKey(req.ArenaID))
	defer unlockArena()
	unlockUser := e.userLocks.Lock(userKey(req.ResponsibleID))
	defer unlockUser()

	now := e.clock.Now()
	var created models.Reservation
	var arena models.Arena
	var participants []models.User

	err := e.db.RunInTx(ctx, func(txdb *appdb.DB) error {
		q := txdb.Queries

		requester, err := e.loadRequester(ctx, q, req.ResponsibleID)
		if err != nil {
			return err
		}

		arena, err = q.GetArena(ctx, req.ArenaID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrArenaNotFound
		}
		if err != nil {
			return fmt.Errorf("load arena: %w", err)
		}

		participants, err = resolveParticipants(ctx, q, req.ParticipantIDs, requester)
		if err != nil {
			return err
		}

		if !ValidSlotStart(arena.Sport, start) {
			return ErrInvalidSchedule
		}

		if !requester.Admin {
			if err := checkQuota(requester, arena.Sport, start, now); err != nil {
				return err
			}
		}

		conflicts, err := q.ListOverlapping(ctx, appdb.ListOverlappingParams{
			ArenaID:   req.ArenaID,
			StartTime: start,
			EndTime:   end,
		})
		if err != nil {
			return fmt.Errorf("scan for conflicts: %w", err)
		}
		if len(conflicts) > 0 {
			// Admins may evict a single conflicting reservation in
			// place of a rejection. Never for regular requesters.
			if !requester.Admin || len(conflicts) > 1 {
				return ErrSlotTaken
			}
			evicted := conflicts[0]
			if err := q.DeleteReservation(ctx, evicted.ID); err != nil {
				return fmt.Errorf("evict conflicting reservation: %w", err)
			}
			logger.Warn().
				Str("evicted_reservation_id", evicted.ID.String()).
				Msg("Admin reservation evicted a conflicting booking")
		}

		responsibleID := requester.ID
		created, err = q.CreateReservation(ctx, appdb.CreateReservationParams{
			ID:            uuid.New(),
			ArenaID:       req.ArenaID,
			ResponsibleID: &responsibleID,
			StartTime:     start,
			EndTime:       end,
			CreatedAt:     now,
		})
		if err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}
		for _, participant := range participants {
			if err := q.AddParticipant(ctx, created.ID, participant.ID); err != nil {
				return fmt.Errorf("add participant: %w", err)
			}
		}

		if !requester.Admin {
			if err := advanceQuotaMarker(ctx, q, requester.ID, arena.Sport, start); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Reservation{}, err
	}

	logger.Info().
		Str("reservation_id", created.ID.String()).
		Time("start_time", created.StartTime).
		Msg("Reservation created")
	email.Notify(e.sender, participants, email.BuildConfirmationEmail(email.NewReservationDetails(arena, created)), &logger)

	return created, nil
}

// UpdateRequest changes a reservation's window and, when
// ParticipantIDs is non-nil, replaces its participant set.
type UpdateRequest struct {
	ID             uuid.UUID
	StartTime      time.Time
	EndTime        time.Time
	ParticipantIDs []uuid.UUID
}

// Update re-validates the new window against the slot grid and the
// overlap scan (excluding the reservation's own row). The quota window
// consumed by the original booking is not re-charged.
func (e *Engine) Update(ctx context.Context, req UpdateRequest, requesterID uuid.UUID) (models.Reservation, error) {
	logger := log.Ctx(ctx).With().
		Str("component", "booking_engine").
		Str("reservation_id", req.ID.String()).
		Str("requester_id", requesterID.String()).
		Logger()

	current, err := e.loadReservation(ctx, req.ID)
	if err != nil {
		return models.Reservation{}, err
	}

	unlockArena := e.arenaLocks.Lock(arenaKey(current.ArenaID))
	defer unlockArena()

	var updated models.Reservation
	var arena models.Arena
	var participants []models.User

	err = e.db.RunInTx(ctx, func(txdb *appdb.DB) error {
		q := txdb.Queries

		reservation, err := q.GetReservation(ctx, req.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrReservationNotFound
		}
		if err != nil {
			return fmt.Errorf("load reservation: %w", err)
		}

		requester, err := e.loadRequester(ctx, q, requesterID)
		if err != nil {
			return err
		}
		if !mayManage(requester, reservation) {
			return ErrForbidden
		}

		if req.EndTime.Sub(req.StartTime) != models.ReservationDuration {
			return ruleError(KindInvalidSchedule, "reservations last exactly 90 minutes")
		}

		arena, err = q.GetArena(ctx, reservation.ArenaID)
		if err != nil {
			return fmt.Errorf("load arena: %w", err)
		}
		if !ValidSlotStart(arena.Sport, req.StartTime) {
			return ErrInvalidSchedule
		}

		conflicts, err := q.ListOverlapping(ctx, appdb.ListOverlappingParams{
			ArenaID:   reservation.ArenaID,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			ExcludeID: reservation.ID,
		})
		if err != nil {
			return fmt.Errorf("scan for conflicts: %w", err)
		}
		if len(conflicts) > 0 {
			return ErrSlotTaken
		}

		if err := q.UpdateReservationWindow(ctx, reservation.ID, req.StartTime, req.EndTime); err != nil {
			return err
		}

		if req.ParticipantIDs != nil {
			responsible := requester
			if reservation.ResponsibleID != nil && *reservation.ResponsibleID != requester.ID {
				responsible, err = q.GetUser(ctx, *reservation.ResponsibleID)
				if err != nil {
					return fmt.Errorf("load responsible user: %w", err)
				}
			}
			participants, err = resolveParticipants(ctx, q, req.ParticipantIDs, responsible)
			if err != nil {
				return err
			}
			if err := q.ClearParticipants(ctx, reservation.ID); err != nil {
				return err
			}
			for _, participant := range participants {
				if err := q.AddParticipant(ctx, reservation.ID, participant.ID); err != nil {
					return fmt.Errorf("add participant: %w", err)
				}
			}
		} else {
			participants, err = q.ListParticipants(ctx, reservation.ID)
			if err != nil {
				return err
			}
		}

		updated, err = q.GetReservation(ctx, reservation.ID)
		if err != nil {
			return fmt.Errorf("reload reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Reservation{}, err
	}

	logger.Info().Time("start_time", updated.StartTime).Msg("Reservation updated")
	email.Notify(e.sender, participants, email.BuildUpdateEmail(email.NewReservationDetails(arena, updated)), &logger)

	return updated, nil
}

// Cancel deletes the reservation if the requester may manage it and it
// has not started yet. The consumed quota window is not refunded.
func (e *Engine) Cancel(ctx context.Context, id uuid.UUID, requesterID uuid.UUID) error {
	logger := log.Ctx(ctx).With().
		Str("component", "booking_engine").
		Str("reservation_id", id.String()).
		Str("requester_id", requesterID.String()).
		Logger()

	current, err := e.loadReservation(ctx, id)
	if err != nil {
		return err
	}

	unlockArena := e.arenaLocks.Lock(arenaKey(current.ArenaID))
	defer unlockArena()

	now := e.clock.Now()
	var arena models.Arena
	var cancelled models.Reservation
	var participants []models.User

	err = e.db.RunInTx(ctx, func(txdb *appdb.DB) error {
		q := txdb.Queries

		reservation, err := q.GetReservation(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrReservationNotFound
		}
		if err != nil {
			return fmt.Errorf("load reservation: %w", err)
		}

		requester, err := e.loadRequester(ctx, q, requesterID)
		if err != nil {
			return err
		}
		if !mayManage(requester, reservation) {
			return ErrForbidden
		}

		if !now.Before(reservation.StartTime) {
			return ErrAlreadyStarted
		}

		arena, err = q.GetArena(ctx, reservation.ArenaID)
		if err != nil {
			return fmt.Errorf("load arena: %w", err)
		}
		participants, err = q.ListParticipants(ctx, reservation.ID)
		if err != nil {
			return err
		}

		cancelled = reservation
		return q.DeleteReservation(ctx, reservation.ID)
	})
	if err != nil {
		return err
	}

	logger.Info().Msg("Reservation cancelled")
	email.Notify(e.sender, participants, email.BuildCancellationEmail(email.NewReservationDetails(arena, cancelled)), &logger)

	return nil
}

// loadRequester resolves the acting user. Unknown or inactive
// requesters are rejected outright, unlike participants.
func (e *Engine) loadRequester(ctx context.Context, q *appdb.Queries, id uuid.UUID) (models.User, error) {
	requester, err := q.GetUser(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ruleError(KindForbidden, "requester is not a known user")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("load requester: %w", err)
	}
	if !requester.Active {
		return models.User{}, ruleError(KindForbidden, "requester account is inactive")
	}
	return requester, nil
}

func (e *Engine) loadReservation(ctx context.Context, id uuid.UUID) (models.Reservation, error) {
	reservation, err := e.db.Queries.GetReservation(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Reservation{}, ErrReservationNotFound
	}
	if err != nil {
		return models.Reservation{}, fmt.Errorf("load reservation: %w", err)
	}
	return reservation, nil
}

// resolveParticipants maps participant ids to active user records.
// Unknown ids and inactive users are dropped silently, and the
// responsible user is always part of the set.
func resolveParticipants(ctx context.Context, q *appdb.Queries, ids []uuid.UUID, responsible models.User) ([]models.User, error) {
	users, err := q.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve participants: %w", err)
	}

	participants := []models.User{responsible}
	seen := map[uuid.UUID]struct{}{responsible.ID: {}}
	for _, user := range users {
		if !user.Active {
			continue
		}
		if _, ok := seen[user.ID]; ok {
			continue
		}
		seen[user.ID] = struct{}{}
		participants = append(participants, user)
	}
	return participants, nil
}

// advanceQuotaMarker records the participation that the quota check
// just allowed, inside the same transaction as the reservation row.
func advanceQuotaMarker(ctx context.Context, q *appdb.Queries, userID uuid.UUID, sport models.SportCategory, start time.Time) error {
	if sport.WeeklyCadence() {
		return q.SetWeeklyParticipation(ctx, userID, start)
	}
	return q.SetMonthlyParticipation(ctx, userID, start)
}

func mayManage(requester models.User, reservation models.Reservation) bool {
	if requester.Admin {
		return true
	}
	return reservation.ResponsibleID != nil && *reservation.ResponsibleID == requester.ID
}

func arenaKey(id int64) string {
	return fmt.Sprintf("arena:%d", id)
}

func userKey(id uuid.UUID) string {
	return "user:" + id.String()
}
