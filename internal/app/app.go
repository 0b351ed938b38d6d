// Package app is the composition root of the recipe bot.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/recipebot/core/bootstrap"
	"github.com/m3rciful/recipebot/core/cmd"
	"github.com/m3rciful/recipebot/core/logger"
	coretelegram "github.com/m3rciful/recipebot/core/telegram"
	"github.com/m3rciful/recipebot/core/telegram/sender"
	"github.com/m3rciful/recipebot/core/telegram/state"
	"github.com/m3rciful/recipebot/internal/bot"
	"github.com/m3rciful/recipebot/internal/config"
	"github.com/m3rciful/recipebot/internal/presenter"
	"github.com/m3rciful/recipebot/internal/store"
)

// App owns the long-lived dependencies of the bot process.
type App struct {
	cfg      *config.Config
	db       *sqlx.DB
	store    *store.Store
	sessions state.Manager
}

// New assembles an App over an opened and migrated database.
func New(cfg *config.Config, db *sqlx.DB) *App {
	return &App{
		cfg:      cfg,
		db:       db,
		store:    store.New(db),
		sessions: state.NewMemoryManager(),
	}
}

// LoadConfig satisfies cmd.Options.LoadConfig.
func LoadConfig(path string) (cmd.ConfigCarrier, error) {
	return config.Load(path)
}

// Bootstrap initializes logging and the database and returns the runnable app.
func Bootstrap(carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}
	return New(cfg, res.DB), nil
}

// Close releases the database connection.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *App) presenterOptions() presenter.Options {
	r := a.cfg.Recipes
	return presenter.Options{
		ValidCode:         r.ValidCode,
		WelcomeVideoNotes: r.WelcomeVideoNotes,
		WelcomeText:       r.WelcomeText,
		CommandsText:      r.CommandsText,
		NoRecipesText:     r.NoRecipesText,
		ListDelay:         config.Delay(r.ListDelayMS),
		BroadcastDelay:    config.Delay(r.BroadcastDelayMS),
		WelcomeDelay:      config.Delay(r.WelcomeDelayMS),
		VideoNoteDelay:    config.Delay(r.VideoNoteDelayMS),
	}
}

// TelegramRunOptions builds the bot runtime: default middlewares, the command
// registry and the dispatch table wired once the bot client exists.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()
	reg := bot.NewRegistry()

	wire := func(ctx context.Context, rt coretelegram.Runtime) ([]coretelegram.Route, error) {
		out := sender.New(rt.Bot, sender.Options{
			MaxRetries:   a.cfg.Sender.MaxRetries,
			RetryBackoff: config.Delay(a.cfg.Sender.RetryBackoffMS),
			MaxDuration:  config.Delay(a.cfg.Sender.MaxDurationMS),
		})
		username := ""
		if rt.Bot != nil && rt.Bot.Me != nil {
			username = rt.Bot.Me.Username
		}
		b := bot.New(bot.Deps{
			Store:       a.store,
			Sessions:    a.sessions,
			Presenter:   presenter.New(out, a.store, a.presenterOptions()),
			Sender:      out,
			Registry:    rt.Registry,
			IsAdmin:     core.IsAdmin,
			BotUsername: username,
			ValidCode:   a.cfg.Recipes.ValidCode,
		})
		table := b.Table()
		logger.TWire.LogAttrs(ctx, slog.LevelDebug, "tg.wire.rules",
			slog.Int("rules", len(table.Rules())),
			slog.String("bot", username),
		)
		return table.Routes(), nil
	}

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		Wire:        wire,
		OnStop: func(context.Context, coretelegram.Runtime) error {
			return a.Close()
		},
	}, nil
}
