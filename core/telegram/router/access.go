package router

import (
	"context"
	"log/slog"

	"github.com/m3rciful/recipebot/core/logger"
)

// AdminOnly wraps h so that events from users rejected by isAdmin are dropped
// silently before any other work happens.
func AdminOnly(isAdmin func(userID int64) bool, h HandleFunc) HandleFunc {
	return func(ctx context.Context, ev Event) error {
		if isAdmin == nil || !isAdmin(ev.UserID) {
			logger.Debug(ctx, "tg", "access.denied",
				slog.String("status", "skip"),
				slog.String("cmd", ev.Command),
			)
			return nil
		}
		return h(ctx, ev)
	}
}
