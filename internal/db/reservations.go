// internal/db/reservations.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pviana/arenabook/internal/models"
)

type CreateReservationParams struct {
	ID            uuid.UUID
	ArenaID       int64
	ResponsibleID *uuid.UUID
	StartTime     time.Time
	EndTime       time.Time
	CreatedAt     time.Time
}

func (q *Queries) CreateReservation(ctx context.Context, params CreateReservationParams) (models.Reservation, error) {
	var responsible any
	if params.ResponsibleID != nil {
		responsible = params.ResponsibleID.String()
	}

	_, err := q.db.ExecContext(ctx,
		`INSERT INTO reservations (id, arena_id, responsible_id, start_time, end_time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		params.ID.String(), params.ArenaID, responsible,
		formatTime(params.StartTime), formatTime(params.EndTime), formatTime(params.CreatedAt),
	)
	if err != nil {
		return models.Reservation{}, fmt.Errorf("insert reservation: %w", err)
	}

	return models.Reservation{
		ID:            params.ID,
		ArenaID:       params.ArenaID,
		ResponsibleID: params.ResponsibleID,
		StartTime:     params.StartTime.UTC(),
		EndTime:       params.EndTime.UTC(),
		CreatedAt:     params.CreatedAt.UTC(),
	}, nil
}

func (q *Queries) GetReservation(ctx context.Context, id uuid.UUID) (models.Reservation, error) {
	row := q.db.QueryRowContext(ctx, reservationSelectColumns+` WHERE id = ?`, id.String())
	return scanReservation(row)
}

type ListOverlappingParams struct {
	ArenaID   int64
	StartTime time.Time
	EndTime   time.Time
	// ExcludeID removes one reservation from the conflict scan, used
	// when re-validating an update against its own current row.
	ExcludeID uuid.UUID
}

// ListOverlapping returns reservations on the arena whose half-open
// [start, end) interval intersects the candidate window.
func (q *Queries) ListOverlapping(ctx context.Context, params ListOverlappingParams) ([]models.Reservation, error) {
	rows, err := q.db.QueryContext(ctx,
		reservationSelectColumns+`
		 WHERE arena_id = ? AND start_time < ? AND end_time > ? AND id != ?
		 ORDER BY start_time`,
		params.ArenaID, formatTime(params.EndTime), formatTime(params.StartTime),
		params.ExcludeID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list overlapping reservations: %w", err)
	}
	defer rows.Close()
	return collectReservations(rows)
}

func (q *Queries) ListReservationsByArena(ctx context.Context, arenaID int64) ([]models.Reservation, error) {
	rows, err := q.db.QueryContext(ctx,
		reservationSelectColumns+` WHERE arena_id = ? ORDER BY start_time`, arenaID)
	if err != nil {
		return nil, fmt.Errorf("list reservations by arena: %w", err)
	}
	defer rows.Close()
	return collectReservations(rows)
}

func (q *Queries) ListReservationsByResponsible(ctx context.Context, responsibleID uuid.UUID) ([]models.Reservation, error) {
	rows, err := q.db.QueryContext(ctx,
		reservationSelectColumns+` WHERE responsible_id = ? ORDER BY start_time`, responsibleID.String())
	if err != nil {
		return nil, fmt.Errorf("list reservations by responsible: %w", err)
	}
	defer rows.Close()
	return collectReservations(rows)
}

// ListAvailableReservations returns unclaimed open slots that have not
// ended yet.
func (q *Queries) ListAvailableReservations(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	rows, err := q.db.QueryContext(ctx,
		reservationSelectColumns+` WHERE responsible_id IS NULL AND end_time > ? ORDER BY start_time`,
		formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("list available reservations: %w", err)
	}
	defer rows.Close()
	return collectReservations(rows)
}

// ListMarkedReservations returns claimed upcoming reservations.
func (q *Queries) ListMarkedReservations(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	rows, err := q.db.QueryContext(ctx,
		reservationSelectColumns+` WHERE responsible_id IS NOT NULL AND end_time > ? ORDER BY start_time`,
		formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("list marked reservations: %w", err)
	}
	defer rows.Close()
	return collectReservations(rows)
}

// ListReservationsStartingBetween feeds the reminder job.
func (q *Queries) ListReservationsStartingBetween(ctx context.Context, start, end time.Time) ([]models.Reservation, error) {
	rows, err := q.db.QueryContext(ctx,
		reservationSelectColumns+` WHERE start_time >= ? AND start_time < ? ORDER BY start_time`,
		formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("list reservations starting between: %w", err)
	}
	defer rows.Close()
	return collectReservations(rows)
}

func (q *Queries) UpdateReservationWindow(ctx context.Context, id uuid.UUID, start, end time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE reservations SET start_time = ?, end_time = ? WHERE id = ?`,
		formatTime(start), formatTime(end), id.String())
	if err != nil {
		return fmt.Errorf("update reservation window: %w", err)
	}
	return nil
}

func (q *Queries) DeleteReservation(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	return nil
}

func (q *Queries) AddParticipant(ctx context.Context, reservationID, userID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reservation_participants (reservation_id, user_id) VALUES (?, ?)`,
		reservationID.String(), userID.String())
	if err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	return nil
}

func (q *Queries) ClearParticipants(ctx context.Context, reservationID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM reservation_participants WHERE reservation_id = ?`, reservationID.String())
	if err != nil {
		return fmt.Errorf("clear participants: %w", err)
	}
	return nil
}

// ListParticipants returns the user records linked to a reservation.
func (q *Queries) ListParticipants(ctx context.Context, reservationID uuid.UUID) ([]models.User, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT u.id, u.email, u.full_name, u.phone, u.occupation, u.is_active, u.is_admin, u.is_internal,
		        u.last_weekly_participation, u.last_monthly_participation
		 FROM reservation_participants rp
		 JOIN users u ON u.id = rp.user_id
		 WHERE rp.reservation_id = ?`,
		reservationID.String())
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

const reservationSelectColumns = `SELECT id, arena_id, responsible_id, start_time, end_time, created_at FROM reservations`

func scanReservation(row rowScanner) (models.Reservation, error) {
	var reservation models.Reservation
	var id string
	var responsible sql.NullString
	var start, end, created string

	if err := row.Scan(&id, &reservation.ArenaID, &responsible, &start, &end, &created); err != nil {
		return models.Reservation{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return models.Reservation{}, fmt.Errorf("parse reservation id: %w", err)
	}
	reservation.ID = parsed

	if responsible.Valid {
		responsibleID, err := uuid.Parse(responsible.String)
		if err != nil {
			return models.Reservation{}, fmt.Errorf("parse responsible id: %w", err)
		}
		reservation.ResponsibleID = &responsibleID
	}

	if reservation.StartTime, err = parseTime(start); err != nil {
		return models.Reservation{}, fmt.Errorf("parse start time: %w", err)
	}
	if reservation.EndTime, err = parseTime(end); err != nil {
		return models.Reservation{}, fmt.Errorf("parse end time: %w", err)
	}
	if reservation.CreatedAt, err = parseTime(created); err != nil {
		return models.Reservation{}, fmt.Errorf("parse created at: %w", err)
	}
	return reservation, nil
}

func collectReservations(rows *sql.Rows) ([]models.Reservation, error) {
	var reservations []models.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		reservations = append(reservations, reservation)
	}
	return reservations, rows.Err()
}
