package middleware

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/m3rciful/recipebot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	// Interval is the refill period of one token per user.
	Interval time.Duration
	// Burst is the number of updates a user may send back to back; values below 1 mean 1.
	Burst     int
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// IdleTTL drops limiters of users that stayed quiet this long; 0 means ten minutes.
	IdleTTL time.Duration
}

type userLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per user.
type Limiter struct {
	opts  RateLimitOptions
	mu    sync.Mutex
	users map[int64]*userLimiter
	sweep time.Time
}

// NewLimiter builds a per-user limiter from opts.
func NewLimiter(opts RateLimitOptions) *Limiter {
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}
	return &Limiter{opts: opts, users: make(map[int64]*userLimiter)}
}

// Allow reports whether the user may proceed at now.
func (l *Limiter) Allow(userID int64, now time.Time) bool {
	if l.opts.Interval <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.sweep) > l.opts.IdleTTL {
		for id, u := range l.users {
			if now.Sub(u.lastSeen) > l.opts.IdleTTL {
				delete(l.users, id)
			}
		}
		l.sweep = now
	}

	u, ok := l.users[userID]
	if !ok {
		u = &userLimiter{lim: rate.NewLimiter(rate.Every(l.opts.Interval), l.opts.Burst)}
		l.users[userID] = u
	}
	u.lastSeen = now
	return u.lim.AllowN(now, 1)
}

// UpdateKind classifies an update for rate limit exclusions.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}

// RateLimitMiddleware returns a middleware that drops updates from users
// exceeding their token bucket.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	limiter := NewLimiter(opts)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[UpdateKind(c.Update())]; skip {
				return next(c)
			}
			if limiter.Allow(user.ID, time.Now()) {
				return next(c)
			}

			attrs := []any{
				slog.String("event", "tg.rate_limit"),
				slog.String("outcome", "rate_limited"),
				slog.Int64("user_id", user.ID),
			}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.Int64("chat_id", chat.ID))
			}
			logger.TG.Warn("rate limit", attrs...)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
