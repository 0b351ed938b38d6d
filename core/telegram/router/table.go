package router

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	tg "github.com/m3rciful/recipebot/core/telegram"
	"github.com/m3rciful/recipebot/core/telegram/commands"
	tghelpers "github.com/m3rciful/recipebot/core/telegram/helpers"
	"github.com/m3rciful/recipebot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// Matcher reports whether a rule applies to the event given the user's current state.
type Matcher func(ev Event, st state.State) bool

// HandleFunc handles a matched event.
type HandleFunc func(ctx context.Context, ev Event) error

// Rule is a single (predicate, handler) pair of the dispatch table.
type Rule struct {
	Name   string
	Match  Matcher
	Handle HandleFunc
}

// StateGetter is the part of state.Manager the table needs.
type StateGetter interface {
	GetState(userID int64) state.State
}

// Commands resolves a command name or alias to its registered key;
// *telegram.Registry implements it.
type Commands interface {
	LookupCommand(name string) (string, commands.Command, bool)
}

// Table dispatches events to the first matching rule, evaluated top to bottom.
// Events matching no rule are dropped.
type Table struct {
	states   StateGetter
	commands Commands
	rules    []Rule
}

// NewTable builds a dispatch table. Rules without Match or Handle are skipped.
func NewTable(states StateGetter, rules ...Rule) *Table {
	t := &Table{states: states}
	for _, r := range rules {
		if r.Match == nil || r.Handle == nil {
			continue
		}
		t.rules = append(t.rules, r)
	}
	return t
}

// WithCommands makes the table resolve aliases to registered command names.
// Slash text naming no registered command is then treated as plain text.
func (t *Table) WithCommands(c Commands) *Table {
	t.commands = c
	return t
}

func (t *Table) resolve(ev Event) Event {
	if t.commands == nil || ev.Kind != KindCommand {
		return ev
	}
	if key, _, ok := t.commands.LookupCommand(ev.Command); ok {
		ev.Command = key
		return ev
	}
	ev.Kind, ev.Command, ev.Args = KindText, "", ""
	return ev
}

// Rules returns the rule names in evaluation order.
func (t *Table) Rules() []string {
	names := make([]string, len(t.rules))
	for i, r := range t.rules {
		names[i] = r.Name
	}
	return names
}

func (t *Table) stateOf(userID int64) state.State {
	if t.states == nil {
		return state.StateIdle
	}
	return t.states.GetState(userID)
}

// Dispatch runs the first rule matching ev and returns its name, or "" when
// the event was dropped.
func (t *Table) Dispatch(ctx context.Context, ev Event) (string, error) {
	ev = t.resolve(ev)
	st := t.stateOf(ev.UserID)
	for _, r := range t.rules {
		if r.Match(ev, st) {
			return r.Name, r.Handle(ctx, ev)
		}
	}
	return "", nil
}

// Handler adapts the table to a telebot handler with one summary log line per update.
func (t *Table) Handler() tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		ev := t.resolve(EventFrom(c))
		if ev.Kind == KindCallback {
			_ = c.Respond()
		}
		if ev.UserID == 0 {
			return nil
		}
		ctx := tghelpers.BuildContext(c)
		prev := t.stateOf(ev.UserID)

		name, err := t.Dispatch(ctx, ev)
		if name == "" {
			logSummary(ctx, "unmatched", start, "skip", prev, prev, nil, slog.String("kind", string(ev.Kind)))
			return nil
		}
		ctx = tghelpers.WithHandler(c, name)
		logSummary(ctx, name, start, "", prev, t.stateOf(ev.UserID), err, slog.String("kind", string(ev.Kind)))
		return err
	}
}

// Routes binds the table to every endpoint carrying events it understands.
func (t *Table) Routes() []tg.Route {
	h := t.Handler()
	endpoints := []string{tele.OnText, tele.OnPhoto, tele.OnVideo, tele.OnVideoNote, tele.OnCallback}
	routes := make([]tg.Route, 0, len(endpoints))
	for _, e := range endpoints {
		routes = append(routes, tg.Route{Endpoint: e, Handler: h})
	}
	return routes
}

// IsCommand matches command events with one of the given names.
func IsCommand(names ...string) Matcher {
	return func(ev Event, _ state.State) bool {
		return ev.Kind == KindCommand && slices.Contains(names, ev.Command)
	}
}

// WithArgs narrows m to events carrying command arguments.
func WithArgs(m Matcher) Matcher {
	return func(ev Event, st state.State) bool {
		return ev.Args != "" && m(ev, st)
	}
}

// InState matches non-command events while the user is in a state with the given prefix.
func InState(prefix string) Matcher {
	return func(ev Event, st state.State) bool {
		return ev.Kind != KindCommand && ev.Kind != KindCallback && ev.Kind != KindOther &&
			st != state.StateIdle && strings.HasPrefix(string(st), prefix)
	}
}

// CallbackInState matches callback events while the user is in a state with the given prefix.
func CallbackInState(prefix string) Matcher {
	return func(ev Event, st state.State) bool {
		return ev.Kind == KindCallback && st != state.StateIdle && strings.HasPrefix(string(st), prefix)
	}
}
