// internal/booking/slots.go
package booking

import (
	"time"

	"github.com/pviana/arenabook/internal/models"
)

// slotStart is a permitted start time within a day. Grids are closed
// sets: a start time matches a grid only by exact equality, never by
// rounding.
type slotStart struct {
	hour   int
	minute int
}

// courtGrid lists the 90-minute slot starts shared by tennis, beach
// tennis and volleyball. Weekday play runs until 21:00, weekend play
// until 18:00.
var courtGrid = []slotStart{
	{5, 30}, {7, 0}, {8, 30}, {10, 0}, {11, 30},
	{13, 0}, {14, 30}, {16, 0}, {17, 30},
}

// societyGrid lists the two evening slots for the society field,
// played only on Wednesdays and Fridays.
var societyGrid = []slotStart{
	{18, 0}, {19, 30},
}

const (
	weekdayCloseHour = 21
	weekendCloseHour = 18
)

// ValidSlotStart reports whether start is a permitted slot start for
// the sport category. It is a pure function of its inputs.
func ValidSlotStart(sport models.SportCategory, start time.Time) bool {
	if start.Second() != 0 || start.Nanosecond() != 0 {
		return false
	}

	switch sport {
	case models.SportTennis, models.SportBeachTennis, models.SportVolleyball:
		if !onGrid(courtGrid, start) {
			return false
		}
		if isWeekend(start) {
			return startsBefore(start, weekendCloseHour)
		}
		return startsBefore(start, weekdayCloseHour)

	case models.SportSociety:
		if start.Weekday() != time.Wednesday && start.Weekday() != time.Friday {
			return false
		}
		return onGrid(societyGrid, start)
	}

	return false
}

func onGrid(grid []slotStart, start time.Time) bool {
	for _, slot := range grid {
		if start.Hour() == slot.hour && start.Minute() == slot.minute {
			return true
		}
	}
	return false
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

// startsBefore checks the day-type cap on slot starts. The current
// court grid tops out at 17:30, under both caps; the check stays
// explicit so a grid edit cannot silently widen a window.
func startsBefore(start time.Time, closeHour int) bool {
	return start.Hour() < closeHour
}
