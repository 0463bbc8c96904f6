package email

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pviana/arenabook/internal/models"
)

const notifyTimeout = 5 * time.Second

// Notify sends msg to every user asynchronously. Delivery is
// fire-and-forget: failures are logged, never returned, so a broken
// mail pipe cannot fail or block a reservation that already committed.
func Notify(client Sender, users []models.User, msg Message, logger *zerolog.Logger) {
	if client == nil {
		return
	}
	if msg.Subject == "" || msg.Body == "" {
		return
	}

	for _, user := range users {
		recipient := strings.TrimSpace(user.Email)
		if recipient == "" {
			continue
		}

		go func(recipient string) {
			sendCtx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if err := client.Send(sendCtx, recipient, msg.Subject, msg.Body); err != nil && logger != nil {
				logger.Error().Err(err).Str("recipient", recipient).Msg("Failed to send reservation email")
			}
		}(recipient)
	}
}
