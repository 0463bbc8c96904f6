// internal/models/models.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// SportCategory classifies an arena and drives which slot grid and
// quota cadence apply to reservations on it.
type SportCategory string

const (
	SportTennis      SportCategory = "TENNIS"
	SportBeachTennis SportCategory = "BEACH_TENNIS"
	SportVolleyball  SportCategory = "VOLLEYBALL"
	SportSociety     SportCategory = "SOCIETY"
)

// Valid reports whether c is one of the known sport categories.
func (c SportCategory) Valid() bool {
	switch c {
	case SportTennis, SportBeachTennis, SportVolleyball, SportSociety:
		return true
	}
	return false
}

// WeeklyCadence reports whether reservations for c follow the weekly
// quota window (7-day cooldown, Thursday release cutoff).
func (c SportCategory) WeeklyCadence() bool {
	return c == SportTennis || c == SportBeachTennis
}

// MonthlyCadence reports whether reservations for c follow the monthly
// quota window (once per calendar month, 15th release cutoff).
func (c SportCategory) MonthlyCadence() bool {
	return c == SportVolleyball || c == SportSociety
}

// Occupation is the user's relationship to the institution.
type Occupation string

const (
	OccupationStudent   Occupation = "STUDENT"
	OccupationStaff     Occupation = "STAFF"
	OccupationProfessor Occupation = "PROFESSOR"
	OccupationExternal  Occupation = "EXTERNAL"
)

// Arena is a bookable facility. Arenas are created administratively
// and referenced by id from reservations.
type Arena struct {
	ID          int64
	Name        string
	Description string
	Capacity    int64
	Sport       SportCategory
}

// User carries the flags the booking rules consume plus the rolling
// participation markers. The markers are advanced only inside the same
// transaction that persists a reservation.
type User struct {
	ID                       uuid.UUID
	Email                    string
	FullName                 string
	Phone                    string
	Occupation               Occupation
	Active                   bool
	Admin                    bool
	Internal                 bool
	LastWeeklyParticipation  *time.Time
	LastMonthlyParticipation *time.Time
}

// Reservation is a 90-minute booking of an arena. ResponsibleID is nil
// for open slots published ahead of time and awaiting a claimant.
type Reservation struct {
	ID            uuid.UUID
	ArenaID       int64
	ResponsibleID *uuid.UUID
	StartTime     time.Time
	EndTime       time.Time
	CreatedAt     time.Time
}

// ReservationDuration is fixed for every sport category.
const ReservationDuration = 90 * time.Minute
