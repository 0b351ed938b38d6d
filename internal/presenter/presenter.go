// Package presenter formats recipes and onboarding content and sends them
// through the outbound sender.
package presenter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/recipebot/core/logger"
	"github.com/m3rciful/recipebot/core/telegram/sender"
	"github.com/m3rciful/recipebot/internal/deeplink"
	"github.com/m3rciful/recipebot/internal/model"
)

// Sender is the outbound surface used by the presenter; *sender.Sender implements it.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) error
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string, protect bool) error
	SendVideoNote(ctx context.Context, chatID int64, fileID string, protect bool) error
	SendAlbum(ctx context.Context, chatID int64, photoID, videoID, caption string, protect bool) error
}

// Users registers and enumerates bot users.
type Users interface {
	AddUser(ctx context.Context, userID int64) error
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// Options carries the onboarding secret, the texts and the fixed pauses.
type Options struct {
	ValidCode         string
	WelcomeVideoNotes []string

	WelcomeText   string
	CommandsText  string
	NoRecipesText string

	ListDelay      time.Duration
	BroadcastDelay time.Duration
	WelcomeDelay   time.Duration
	VideoNoteDelay time.Duration
}

// Presenter sends user-facing content. Recipe media is always protected.
type Presenter struct {
	send  Sender
	users Users
	opts  Options
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Presenter.
func New(send Sender, users Users, opts Options) *Presenter {
	return &Presenter{send: send, users: users, opts: opts, sleep: sleepCtx}
}

// Caption renders the recipe caption shown on the photo.
func Caption(r model.Recipe) string {
	return fmt.Sprintf("🍳 %s\n\n%s", r.Title, r.Text)
}

// PresentRecipe sends a recipe as a photo+video album when it has a video and
// as a single captioned photo otherwise.
func (p *Presenter) PresentRecipe(ctx context.Context, chatID int64, r model.Recipe) error {
	if r.HasVideo() {
		return p.send.SendAlbum(ctx, chatID, r.Image, *r.Video, Caption(r), true)
	}
	return p.send.SendPhoto(ctx, chatID, r.Image, Caption(r), true)
}

// PresentAll sends recipes in the given order with a fixed pause between
// sends. An empty list yields the "no recipes" text. The first failed send
// stops the loop.
func (p *Presenter) PresentAll(ctx context.Context, chatID int64, recipes []model.Recipe) error {
	if len(recipes) == 0 {
		return p.NoRecipes(ctx, chatID)
	}
	for i, r := range recipes {
		if i > 0 {
			if err := p.sleep(ctx, p.opts.ListDelay); err != nil {
				return err
			}
		}
		if err := p.PresentRecipe(ctx, chatID, r); err != nil {
			return fmt.Errorf("present recipe %d: %w", r.ID, err)
		}
	}
	return nil
}

// NoRecipes sends the fixed "no recipes" text.
func (p *Presenter) NoRecipes(ctx context.Context, chatID int64) error {
	return p.send.SendText(ctx, chatID, p.opts.NoRecipesText, nil)
}

// Commands sends the user command summary.
func (p *Presenter) Commands(ctx context.Context, chatID int64) error {
	return p.send.SendText(ctx, chatID, p.opts.CommandsText, nil)
}

// Onboard registers userID and, when payload verifies against the configured
// code, sends the welcome text, the welcome video notes and the command
// summary. Registration happens regardless of the payload.
func (p *Presenter) Onboard(ctx context.Context, userID, chatID int64, payload string) (bool, error) {
	if err := p.users.AddUser(ctx, userID); err != nil {
		return false, fmt.Errorf("register user: %w", err)
	}
	if !deeplink.Verify(payload, p.opts.ValidCode) {
		logger.LogEvent(ctx, logger.SVCUsers, slog.LevelDebug, "onboarding.rejected",
			slog.String("status", "skip"),
		)
		return false, nil
	}

	if err := p.send.SendText(ctx, chatID, p.opts.WelcomeText, nil); err != nil {
		return false, err
	}
	if err := p.sleep(ctx, p.opts.WelcomeDelay); err != nil {
		return false, err
	}
	for _, note := range p.opts.WelcomeVideoNotes {
		if err := p.send.SendVideoNote(ctx, chatID, note, true); err != nil {
			return false, err
		}
		if err := p.sleep(ctx, p.opts.VideoNoteDelay); err != nil {
			return false, err
		}
	}
	if err := p.Commands(ctx, chatID); err != nil {
		return false, err
	}
	logger.LogEvent(ctx, logger.SVCUsers, slog.LevelInfo, "onboarding.welcomed",
		slog.String("status", "ok"),
		slog.Int("video_notes", len(p.opts.WelcomeVideoNotes)),
	)
	return true, nil
}

// BroadcastResult counts broadcast deliveries.
type BroadcastResult struct {
	Total  int
	Sent   int
	Failed int
}

// Broadcast sends text to every registered user with a fixed pause between
// sends. Per-recipient failures are logged and skipped; only failing to list
// users or context cancellation abort the loop.
func (p *Presenter) Broadcast(ctx context.Context, text string) (BroadcastResult, error) {
	ids, err := p.users.ListUserIDs(ctx)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("list users: %w", err)
	}
	res := BroadcastResult{Total: len(ids)}
	start := time.Now()
	for i, id := range ids {
		if i > 0 {
			if err := p.sleep(ctx, p.opts.BroadcastDelay); err != nil {
				return res, err
			}
		}
		if err := p.send.SendText(ctx, id, text, nil); err != nil {
			res.Failed++
			logger.LogEvent(ctx, logger.SVCBroadcast, slog.LevelWarn, "broadcast.deliver",
				slog.String("status", "fail"),
				slog.Int64("recipient", id),
				slog.String("error_kind", sender.ClassifyError(err)),
				slog.String("err", sender.SanitizeError(err)),
			)
			continue
		}
		res.Sent++
	}
	logger.LogEvent(ctx, logger.SVCBroadcast, slog.LevelInfo, "broadcast.summary",
		slog.String("status", "ok"),
		slog.Int("users", res.Total),
		slog.Int("sent", res.Sent),
		slog.Int("failed", res.Failed),
		slog.Duration("duration", logger.Took(start)),
	)
	return res, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
