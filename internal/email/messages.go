package email

import (
	"fmt"
	"time"

	"github.com/pviana/arenabook/internal/models"
)

// Message is a rendered plain-text email.
type Message struct {
	Subject string
	Body    string
}

// ReservationDetails feeds the reservation email builders.
type ReservationDetails struct {
	ArenaName string
	Sport     models.SportCategory
	Date      string
	TimeRange string
}

// FormatDateTimeRange renders the date and time window of a
// reservation for email bodies.
func FormatDateTimeRange(start, end time.Time) (string, string) {
	date := start.Format("Monday, January 2, 2006")
	timeRange := fmt.Sprintf("%s - %s", start.Format("15:04"), end.Format("15:04"))
	return date, timeRange
}

// NewReservationDetails fills ReservationDetails from an arena and a
// reservation window.
func NewReservationDetails(arena models.Arena, reservation models.Reservation) ReservationDetails {
	date, timeRange := FormatDateTimeRange(reservation.StartTime, reservation.EndTime)
	return ReservationDetails{
		ArenaName: arena.Name,
		Sport:     arena.Sport,
		Date:      date,
		TimeRange: timeRange,
	}
}

func BuildConfirmationEmail(details ReservationDetails) Message {
	return Message{
		Subject: fmt.Sprintf("Reservation confirmed: %s", details.ArenaName),
		Body: fmt.Sprintf(
			"Your reservation is confirmed.\n\nArena: %s (%s)\nDate: %s\nTime: %s\n",
			details.ArenaName, details.Sport, details.Date, details.TimeRange),
	}
}

func BuildUpdateEmail(details ReservationDetails) Message {
	return Message{
		Subject: fmt.Sprintf("Reservation updated: %s", details.ArenaName),
		Body: fmt.Sprintf(
			"Your reservation was changed.\n\nArena: %s (%s)\nNew date: %s\nNew time: %s\n",
			details.ArenaName, details.Sport, details.Date, details.TimeRange),
	}
}

func BuildCancellationEmail(details ReservationDetails) Message {
	return Message{
		Subject: fmt.Sprintf("Reservation cancelled: %s", details.ArenaName),
		Body: fmt.Sprintf(
			"Your reservation was cancelled.\n\nArena: %s (%s)\nDate: %s\nTime: %s\n",
			details.ArenaName, details.Sport, details.Date, details.TimeRange),
	}
}

func BuildReminderEmail(details ReservationDetails) Message {
	return Message{
		Subject: fmt.Sprintf("Upcoming reservation: %s", details.ArenaName),
		Body: fmt.Sprintf(
			"Reminder of your upcoming reservation.\n\nArena: %s (%s)\nDate: %s\nTime: %s\n",
			details.ArenaName, details.Sport, details.Date, details.TimeRange),
	}
}
