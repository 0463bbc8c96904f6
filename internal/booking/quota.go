// internal/booking/quota.go
package booking

import (
	"time"

	"github.com/pviana/arenabook/internal/models"
)

// weeklyCooldown is the minimum gap between two weekly-cadence
// participations by the same user.
const weeklyCooldown = 7 * 24 * time.Hour

// checkQuota decides whether user may book a reservation of the given
// sport category starting at start, judged at now. It returns nil when
// the booking is allowed, a RuleError otherwise. It never mutates the
// user; the coordinator advances the participation marker inside the
// reservation transaction after all checks pass.
func checkQuota(user models.User, sport models.SportCategory, start, now time.Time) error {
	if start.Before(now) {
		return ruleError(KindIllegalSchedule, "reservation start time is in the past")
	}

	if sport.WeeklyCadence() {
		return checkWeeklyQuota(user, start, now)
	}
	return checkMonthlyQuota(user, start, now)
}

// checkWeeklyQuota applies the weekly-cadence policy: internal users
// own the current week, and next week's slots are released once
// Thursday 15:00 has passed. External users are limited to weekends.
func checkWeeklyQuota(user models.User, start, now time.Time) error {
	if user.LastWeeklyParticipation != nil && start.Sub(*user.LastWeeklyParticipation) < weeklyCooldown {
		return ruleError(KindQuotaExceeded, "only one weekly-sport reservation is allowed every 7 days")
	}

	if !user.Internal {
		if !isWeekend(start) {
			return ruleError(KindIllegalSchedule, "external users may only book weekend slots")
		}
		return nil
	}

	if start.Sub(now) > weeklyCooldown && now.Before(weeklyReleaseCutoff(now)) {
		return ruleError(KindIllegalSchedule, "slots more than a week ahead open on Thursday at 15:00")
	}
	return nil
}

// checkMonthlyQuota applies the monthly-cadence policy: internal users
// own the current month, and next month's slots are released on the
// 15th. External users may not book monthly sports at all.
func checkMonthlyQuota(user models.User, start, now time.Time) error {
	if !user.Internal {
		return ruleError(KindIllegalSchedule, "external users may not book monthly sports")
	}

	if user.LastMonthlyParticipation != nil && sameMonth(*user.LastMonthlyParticipation, start) {
		return ruleError(KindQuotaExceeded, "only one monthly-sport reservation is allowed per calendar month")
	}

	if !sameMonth(start, now) {
		if !inNextMonth(start, now) {
			return ruleError(KindIllegalSchedule, "monthly sports may be booked at most one month ahead")
		}
		if now.Day() < 15 {
			return ruleError(KindIllegalSchedule, "next month's slots open on the 15th")
		}
	}
	return nil
}

// weeklyReleaseCutoff returns Thursday 15:00 of the ISO week containing
// now. After it, slots beyond the 7-day horizon are open to everyone.
func weeklyReleaseCutoff(now time.Time) time.Time {
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	monday := now.AddDate(0, 0, -daysSinceMonday)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 15, 0, 0, 0, now.Location())
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

func inNextMonth(start, now time.Time) bool {
	if now.Month() == time.December {
		return start.Year() == now.Year()+1 && start.Month() == time.January
	}
	return start.Year() == now.Year() && start.Month() == now.Month()+1
}
