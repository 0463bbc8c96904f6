package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/pviana/arenabook/internal/db"
	"github.com/pviana/arenabook/internal/email"
)

const (
	defaultReminderHoursBefore int64 = 24
	reminderJobWindow                = 15 * time.Minute
)

// RegisterReminderJob registers the scheduled reservation reminder
// task: every 15 minutes it picks up reservations starting roughly
// hoursBefore hours from now and emails their participants.
func RegisterReminderJob(database *db.DB, sender email.Sender, hoursBefore int64) error {
	if database == nil {
		return fmt.Errorf("reminder job requires database")
	}
	if hoursBefore <= 0 {
		hoursBefore = defaultReminderHoursBefore
	}

	jobName := "reservation_reminders"
	cronExpr := "*/15 * * * *"
	jobLogger := log.With().
		Str("component", "reservation_reminders_job").
		Str("job_name", jobName).
		Str("cron", cronExpr).
		Logger()

	_, err := AddJob(jobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		if sender == nil {
			jobLogger.Debug().Msg("Reminder job skipped: email sender not configured")
			return
		}

		now := time.Now().UTC()
		windowStart := now.Add(time.Duration(hoursBefore) * time.Hour)
		windowEnd := windowStart.Add(reminderJobWindow)

		reservations, err := database.Queries.ListReservationsStartingBetween(ctx, windowStart, windowEnd)
		if err != nil {
			jobLogger.Error().Err(err).Msg("Failed to load reservations for reminder job")
			return
		}

		for _, reservation := range reservations {
			arena, err := database.Queries.GetArena(ctx, reservation.ArenaID)
			if err != nil {
				jobLogger.Error().Err(err).Int64("arena_id", reservation.ArenaID).Msg("Failed to load arena for reminder")
				continue
			}
			participants, err := database.Queries.ListParticipants(ctx, reservation.ID)
			if err != nil {
				jobLogger.Error().Err(err).Str("reservation_id", reservation.ID.String()).Msg("Failed to load participants for reminder")
				continue
			}
			if len(participants) == 0 {
				continue
			}

			reminder := email.BuildReminderEmail(email.NewReservationDetails(arena, reservation))
			email.Notify(sender, participants, reminder, &jobLogger)
		}
	}, gocron.WithSingletonMode(gocron.LimitModeWait))
	if err != nil {
		return fmt.Errorf("add reservation reminder job: %w", err)
	}

	jobLogger.Info().Msg("Reservation reminder job registered")
	return nil
}
