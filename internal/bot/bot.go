// Package bot wires the recipe bot commands and conversation steps into the
// ordered dispatch table.
package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	tg "github.com/m3rciful/recipebot/core/telegram"
	"github.com/m3rciful/recipebot/core/telegram/router"
	"github.com/m3rciful/recipebot/core/telegram/state"
	"github.com/m3rciful/recipebot/internal/deeplink"
	"github.com/m3rciful/recipebot/internal/model"
	"github.com/m3rciful/recipebot/internal/presenter"
	"github.com/m3rciful/recipebot/internal/store"
	"github.com/m3rciful/recipebot/internal/workflow"
)

// Store is the record store surface used by the command handlers.
type Store interface {
	workflow.Store
	CountRecipes(ctx context.Context) (int, error)
	GetUser(ctx context.Context, userID int64) (model.User, error)
	CountUsers(ctx context.Context) (int, error)
}

// Deps are the collaborators of Bot.
type Deps struct {
	Store     Store
	Sessions  state.Manager
	Presenter *presenter.Presenter
	Sender    presenter.Sender
	Registry  *tg.Registry

	IsAdmin     func(userID int64) bool
	BotUsername string
	ValidCode   string
}

// Bot holds the handlers of the recipe bot.
type Bot struct {
	store    Store
	sessions state.Manager
	flow     *workflow.Machine
	present  *presenter.Presenter
	send     presenter.Sender
	registry *tg.Registry

	isAdmin     func(userID int64) bool
	botUsername string
	validCode   string
	// pick returns a random index in [0, n).
	pick func(n int) int
}

// New builds the bot handlers.
func New(d Deps) *Bot {
	reg := d.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	return &Bot{
		store:       d.Store,
		sessions:    d.Sessions,
		flow:        workflow.New(d.Store, d.Sessions),
		present:     d.Presenter,
		send:        d.Sender,
		registry:    reg,
		isAdmin:     d.IsAdmin,
		botUsername: d.BotUsername,
		validCode:   d.ValidCode,
		pick:        rand.Intn,
	}
}

// Table returns the dispatch table. Rules are evaluated top to bottom:
// commands (start with a payload before bare start), then conversation
// input scoped by state, then callbacks scoped by state.
func (b *Bot) Table() *router.Table {
	admin := func(h router.HandleFunc) router.HandleFunc {
		return router.AdminOnly(b.isAdmin, b.interrupt(h))
	}
	return router.NewTable(b.sessions,
		router.Rule{Name: "start.payload", Match: router.WithArgs(router.IsCommand(CmdStart)), Handle: b.interrupt(b.startWithPayload)},
		router.Rule{Name: "start", Match: router.IsCommand(CmdStart), Handle: b.interrupt(b.start)},
		router.Rule{Name: "recipe", Match: router.IsCommand(CmdRecipe), Handle: b.interrupt(b.randomRecipe)},
		router.Rule{Name: "all_recipes", Match: router.IsCommand(CmdAllRecipes), Handle: b.interrupt(b.allRecipes)},

		router.Rule{Name: "admin", Match: router.IsCommand(CmdAdmin), Handle: admin(b.adminHelp)},
		router.Rule{Name: "add_recipe", Match: router.IsCommand(CmdAddRecipe), Handle: admin(b.addRecipe)},
		router.Rule{Name: "edit_recipe", Match: router.IsCommand(CmdEditRecipe), Handle: admin(b.editRecipe)},
		router.Rule{Name: "delete_recipe", Match: router.IsCommand(CmdDeleteRecipe), Handle: admin(b.deleteRecipe)},
		router.Rule{Name: "list_recipes", Match: router.IsCommand(CmdListRecipes), Handle: admin(b.listRecipes)},
		router.Rule{Name: "broadcast", Match: router.IsCommand(CmdBroadcast), Handle: admin(b.broadcast)},
		router.Rule{Name: "stats", Match: router.IsCommand(CmdStats), Handle: admin(b.stats)},
		router.Rule{Name: "get_deep_link", Match: router.IsCommand(CmdGetDeepLink), Handle: admin(b.deepLink)},
		router.Rule{Name: "cancel", Match: router.IsCommand(CmdCancel), Handle: admin(b.cancel)},

		router.Rule{Name: "add.input", Match: router.InState("add."), Handle: router.AdminOnly(b.isAdmin, b.step)},
		router.Rule{Name: "edit.input", Match: router.InState("edit."), Handle: router.AdminOnly(b.isAdmin, b.step)},
		router.Rule{Name: "delete.input", Match: router.InState("delete."), Handle: router.AdminOnly(b.isAdmin, b.step)},
		router.Rule{Name: "add.callback", Match: router.CallbackInState("add."), Handle: router.AdminOnly(b.isAdmin, b.step)},
		router.Rule{Name: "edit.callback", Match: router.CallbackInState("edit."), Handle: router.AdminOnly(b.isAdmin, b.step)},
		router.Rule{Name: "delete.callback", Match: router.CallbackInState("delete."), Handle: router.AdminOnly(b.isAdmin, b.step)},
	).WithCommands(b.registry)
}

// interrupt drops any workflow in progress before a command runs.
func (b *Bot) interrupt(h router.HandleFunc) router.HandleFunc {
	return func(ctx context.Context, ev router.Event) error {
		if b.flow.Active(ev.UserID) {
			b.flow.Reset(ev.UserID)
		}
		return h(ctx, ev)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, replies []workflow.Reply) error {
	for _, r := range replies {
		if err := b.send.SendText(ctx, chatID, r.Text, r.Markup); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) text(ctx context.Context, chatID int64, text string) error {
	return b.send.SendText(ctx, chatID, text, nil)
}

func (b *Bot) startWithPayload(ctx context.Context, ev router.Event) error {
	_, err := b.present.Onboard(ctx, ev.UserID, ev.ChatID, ev.Args)
	return err
}

func (b *Bot) start(ctx context.Context, ev router.Event) error {
	if _, err := b.store.GetUser(ctx, ev.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	return b.present.Commands(ctx, ev.ChatID)
}

func (b *Bot) randomRecipe(ctx context.Context, ev router.Event) error {
	recipes, err := b.store.ListRecipes(ctx)
	if err != nil {
		return err
	}
	if len(recipes) == 0 {
		return b.present.NoRecipes(ctx, ev.ChatID)
	}
	return b.present.PresentRecipe(ctx, ev.ChatID, recipes[b.pick(len(recipes))])
}

func (b *Bot) allRecipes(ctx context.Context, ev router.Event) error {
	recipes, err := b.store.ListRecipes(ctx)
	if err != nil {
		return err
	}
	return b.present.PresentAll(ctx, ev.ChatID, recipes)
}

func (b *Bot) adminHelp(ctx context.Context, ev router.Event) error {
	var sb strings.Builder
	sb.WriteString(textAdminHeader)
	for _, c := range b.registry.AdminCommands() {
		fmt.Fprintf(&sb, "\n%s - %s", c.Text, c.Description)
	}
	return b.text(ctx, ev.ChatID, sb.String())
}

func (b *Bot) addRecipe(ctx context.Context, ev router.Event) error {
	return b.reply(ctx, ev.ChatID, b.flow.StartAdd(ev.UserID))
}

func (b *Bot) editRecipe(ctx context.Context, ev router.Event) error {
	replies, err := b.flow.StartEdit(ctx, ev.UserID)
	if err != nil {
		return err
	}
	return b.reply(ctx, ev.ChatID, replies)
}

func (b *Bot) deleteRecipe(ctx context.Context, ev router.Event) error {
	replies, err := b.flow.StartDelete(ctx, ev.UserID)
	if err != nil {
		return err
	}
	return b.reply(ctx, ev.ChatID, replies)
}

func (b *Bot) cancel(ctx context.Context, ev router.Event) error {
	return b.reply(ctx, ev.ChatID, b.flow.Cancel(ev.UserID))
}

func (b *Bot) listRecipes(ctx context.Context, ev router.Event) error {
	recipes, err := b.store.ListRecipes(ctx)
	if err != nil {
		return err
	}
	if len(recipes) == 0 {
		return b.text(ctx, ev.ChatID, workflow.TextNoRecipes)
	}
	lines := make([]string, 0, len(recipes))
	for _, r := range recipes {
		lines = append(lines, strconv.FormatInt(r.ID, 10)+". "+r.Title)
	}
	return b.text(ctx, ev.ChatID, strings.Join(lines, "\n"))
}

func (b *Bot) broadcast(ctx context.Context, ev router.Event) error {
	if ev.Args == "" {
		return b.text(ctx, ev.ChatID, textBroadcastUsage)
	}
	res, err := b.present.Broadcast(ctx, ev.Args)
	if err != nil {
		return err
	}
	return b.text(ctx, ev.ChatID, fmt.Sprintf(textBroadcastDone, res.Sent, res.Failed, res.Total))
}

func (b *Bot) stats(ctx context.Context, ev router.Event) error {
	users, err := b.store.CountUsers(ctx)
	if err != nil {
		return err
	}
	recipes, err := b.store.CountRecipes(ctx)
	if err != nil {
		return err
	}
	return b.text(ctx, ev.ChatID, fmt.Sprintf(textStats, users, recipes))
}

func (b *Bot) deepLink(ctx context.Context, ev router.Event) error {
	if b.validCode == "" {
		return b.text(ctx, ev.ChatID, textNoCode)
	}
	link, err := deeplink.Link(b.botUsername, b.validCode)
	if err != nil {
		return fmt.Errorf("build deep link: %w", err)
	}
	return b.text(ctx, ev.ChatID, fmt.Sprintf(textDeepLink, link))
}

func (b *Bot) step(ctx context.Context, ev router.Event) error {
	replies, err := b.flow.Step(ctx, ev.UserID, inputOf(ev))
	if err != nil {
		return err
	}
	return b.reply(ctx, ev.ChatID, replies)
}

func inputOf(ev router.Event) workflow.Input {
	switch ev.Kind {
	case router.KindPhoto:
		return workflow.Input{Kind: workflow.InputPhoto, FileID: ev.FileID, Text: ev.Text}
	case router.KindVideo:
		return workflow.Input{Kind: workflow.InputVideo, FileID: ev.FileID, Text: ev.Text}
	case router.KindVideoNote:
		return workflow.Input{Kind: workflow.InputVideoNote, FileID: ev.FileID}
	case router.KindCallback:
		return workflow.Input{Kind: workflow.InputAction, Action: ev.Token}
	}
	return workflow.Input{Kind: workflow.InputText, Text: ev.Text}
}
