package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/recipebot/core/logger"
	"github.com/m3rciful/recipebot/core/telegram/keyboard"
	"github.com/m3rciful/recipebot/core/telegram/state"
	"github.com/m3rciful/recipebot/internal/model"
	"github.com/m3rciful/recipebot/internal/store"
)

const draftKey = "draft"

// Store is the subset of the record store used by the workflows.
type Store interface {
	CreateRecipe(ctx context.Context, r model.Recipe) (model.Recipe, error)
	GetRecipe(ctx context.Context, id int64) (model.Recipe, error)
	ListRecipes(ctx context.Context) ([]model.Recipe, error)
	UpdateRecipe(ctx context.Context, r model.Recipe) (model.Recipe, error)
	DeleteRecipe(ctx context.Context, id int64) (bool, error)
}

// Reply is a text message with an optional inline keyboard.
type Reply struct {
	Text   string
	Markup *tele.ReplyMarkup
}

// Machine drives the admin workflows for every user. Calls for one user are
// serialized: a step reads the session, runs its store effect and writes the
// session back before the next step of that user starts.
type Machine struct {
	store    Store
	sessions state.Manager

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New returns a Machine persisting through st and keeping drafts in sessions.
func New(st Store, sessions state.Manager) *Machine {
	return &Machine{store: st, sessions: sessions, locks: make(map[int64]*sync.Mutex)}
}

func (m *Machine) lock(userID int64) func() {
	m.mu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[userID] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// State returns the current workflow state of the user.
func (m *Machine) State(userID int64) State {
	return m.sessions.GetState(userID)
}

// Active reports whether the user is in the middle of a workflow.
func (m *Machine) Active(userID int64) bool {
	return m.sessions.InProgress(userID)
}

// Reset drops any workflow in progress together with its draft.
func (m *Machine) Reset(userID int64) {
	defer m.lock(userID)()
	m.sessions.Clear(userID)
}

// Cancel resets the user's workflow and acknowledges it.
func (m *Machine) Cancel(userID int64) []Reply {
	m.Reset(userID)
	return []Reply{{Text: TextCancelled}}
}

// StartAdd begins the add workflow with an empty draft.
func (m *Machine) StartAdd(userID int64) []Reply {
	defer m.lock(userID)()
	m.enter(userID, AddAwaitingTitle, Draft{})
	return []Reply{prompt(AddAwaitingTitle, Draft{})}
}

// StartEdit lists stored recipes for selection. With no recipes the user stays idle.
func (m *Machine) StartEdit(ctx context.Context, userID int64) ([]Reply, error) {
	return m.startSelect(ctx, userID, EditAwaitingRecipe, PrefixEdit, TextChooseEdit)
}

// StartDelete lists stored recipes for deletion. With no recipes the user stays idle.
func (m *Machine) StartDelete(ctx context.Context, userID int64) ([]Reply, error) {
	return m.startSelect(ctx, userID, DeleteAwaitingRecipe, PrefixDelete, TextChooseDelete)
}

func (m *Machine) startSelect(ctx context.Context, userID int64, st State, prefix, text string) ([]Reply, error) {
	defer m.lock(userID)()
	m.sessions.Clear(userID)
	recipes, err := m.store.ListRecipes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	if len(recipes) == 0 {
		return []Reply{{Text: TextNoRecipes}}, nil
	}
	btns := make([]keyboard.InlineBtn, 0, len(recipes))
	for _, r := range recipes {
		btns = append(btns, keyboard.InlineBtn{
			Text: r.Title,
			Data: prefix + "_" + strconv.FormatInt(r.ID, 10),
		})
	}
	m.enter(userID, st, Draft{})
	return []Reply{{Text: text, Markup: keyboard.InlineButtons(btns)}}, nil
}

func (m *Machine) enter(userID int64, st State, d Draft) {
	m.sessions.SetState(userID, st)
	m.sessions.SetTemp(userID, draftKey, d)
}

// Step feeds one admin input into the current workflow and returns the replies
// to send. A store failure resets the workflow and is returned as an error.
// Input arriving after the workflow already finished is dropped.
func (m *Machine) Step(ctx context.Context, userID int64, in Input) ([]Reply, error) {
	defer m.lock(userID)()
	sess := m.sessions.Get(userID)
	cur := sess.State
	if cur == Idle {
		return nil, nil
	}
	draft, _ := sess.TempData[draftKey].(Draft)

	step := Transition(cur, draft, in)
	switch step.Effect {
	case EffectReprompt:
		return []Reply{reprompt(cur, draft)}, nil
	case EffectPrompt:
		m.enter(userID, step.Next, step.Draft)
		return []Reply{prompt(step.Next, step.Draft)}, nil
	}

	replies, err := m.apply(ctx, userID, step)
	if err != nil {
		m.sessions.Clear(userID)
		if errors.Is(err, store.ErrNotFound) {
			return []Reply{{Text: TextNotFound}}, nil
		}
		return nil, err
	}
	return replies, nil
}

func (m *Machine) apply(ctx context.Context, userID int64, step Step) ([]Reply, error) {
	d := step.Draft
	switch step.Effect {
	case EffectCreate:
		r, err := m.store.CreateRecipe(ctx, d.Recipe())
		logPersist(ctx, "recipe.create", r.ID, err)
		if err != nil {
			return nil, fmt.Errorf("create recipe: %w", err)
		}
		m.sessions.Clear(userID)
		return []Reply{{Text: fmt.Sprintf(TextAdded, r.Title, r.Text)}}, nil

	case EffectLoad:
		r, err := m.store.GetRecipe(ctx, d.RecipeID)
		if err != nil {
			return nil, err
		}
		d = draftOf(r)
		m.enter(userID, step.Next, d)
		return []Reply{prompt(step.Next, d)}, nil

	case EffectVerify:
		if _, err := m.store.GetRecipe(ctx, d.RecipeID); err != nil {
			return nil, err
		}
		m.enter(userID, step.Next, d)
		return []Reply{prompt(step.Next, d)}, nil

	case EffectUpdate:
		cur, err := m.store.GetRecipe(ctx, d.RecipeID)
		if err != nil {
			return nil, err
		}
		r, err := m.store.UpdateRecipe(ctx, cur.With(d.Field, d.Value))
		logPersist(ctx, "recipe.update", d.RecipeID, err)
		if err != nil {
			return nil, err
		}
		m.sessions.Clear(userID)
		return []Reply{{Text: fmt.Sprintf(TextUpdated, r.Title, r.Text)}}, nil

	case EffectDelete:
		ok, err := m.store.DeleteRecipe(ctx, d.RecipeID)
		logPersist(ctx, "recipe.delete", d.RecipeID, err)
		if err != nil {
			return nil, fmt.Errorf("delete recipe: %w", err)
		}
		m.sessions.Clear(userID)
		if !ok {
			return []Reply{{Text: TextDeleteFailed}}, nil
		}
		return []Reply{{Text: TextDeleted}}, nil
	}
	return nil, fmt.Errorf("workflow: unknown effect %d", step.Effect)
}

func draftOf(r model.Recipe) Draft {
	d := Draft{RecipeID: r.ID, Title: r.Title, Text: r.Text, Image: r.Image}
	if r.Video != nil {
		d.Video = *r.Video
	}
	return d
}

func logPersist(ctx context.Context, event string, id int64, err error) {
	level := slog.LevelInfo
	attrs := []slog.Attr{slog.String("status", logger.Status(err))}
	if id != 0 {
		attrs = append(attrs, slog.Int64("recipe_id", id))
	}
	if err != nil {
		level = slog.LevelWarn
		if errors.Is(err, store.ErrNotFound) {
			attrs = append(attrs, slog.String("err_code", "not_found"))
		} else {
			level = slog.LevelError
			attrs = append(attrs, slog.String("err", err.Error()))
		}
	}
	logger.LogEvent(ctx, logger.SVCRecipes, level, event, attrs...)
}
