package telegram

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/recipebot/core/config"
	"github.com/m3rciful/recipebot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func TestBuildPoller(t *testing.T) {
	p := BuildPoller(PollerOptions{RunMode: "webhook", Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://example.org/hook"}})
	wh, ok := p.(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, "https://example.org/hook", wh.Endpoint.PublicURL)
	assert.Equal(t, []string{"message", "callback_query"}, wh.AllowedUpdates)

	lp, ok := BuildPoller(PollerOptions{RunMode: "longpoll"}).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, lp.Timeout)
	assert.Equal(t, AllowedUpdates, lp.AllowedUpdates)

	lp, ok = BuildPoller(PollerOptions{LongPollTimeoutSeconds: 30}).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, lp.Timeout)
}

func TestRegistryMenuAndAdmin(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Description: "Start"})
	reg.RegisterCommand("/recipe", commands.Command{Description: "Random recipe", Aliases: []string{"random"}})
	reg.RegisterCommand("/add_recipe", commands.Command{Description: "Add", AdminOnly: true})
	reg.RegisterCommand("/cancel", commands.Command{Description: "Cancel", AdminOnly: true, Hidden: true})
	reg.RegisterCommand("/start", commands.Command{Description: "dup"})
	reg.RegisterCommand("nope", commands.Command{Description: "no slash"})
	reg.RegisterCommand("/empty", commands.Command{})

	assert.Equal(t, 4, reg.Len())
	assert.Equal(t, []tele.Command{
		{Text: "/recipe", Description: "Random recipe"},
		{Text: "/start", Description: "Start"},
	}, reg.ListCommands(true))
	assert.Len(t, reg.ListCommands(false), 4)
	assert.Equal(t, []tele.Command{{Text: "/add_recipe", Description: "Add"}}, reg.AdminCommands())

	key, cmd, ok := reg.LookupCommand("random")
	require.True(t, ok)
	assert.Equal(t, "/recipe", key)
	assert.Equal(t, "Random recipe", cmd.Description)

	key, _, ok = reg.LookupCommand("/Start@RecipesBot")
	require.True(t, ok)
	assert.Equal(t, "/start", key)

	_, _, ok = reg.LookupCommand("/missing")
	assert.False(t, ok)
}

type fakeSetter struct {
	got []tele.Command
	err error
}

func (f *fakeSetter) SetCommands(opts ...interface{}) error {
	if len(opts) > 0 {
		f.got, _ = opts[0].([]tele.Command)
	}
	return f.err
}

func TestInitBotCommandsPublishesVisibleOnly(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/recipe", commands.Command{Description: "Random recipe"})
	reg.RegisterCommand("/stats", commands.Command{Description: "Stats", AdminOnly: true})

	setter := &fakeSetter{}
	InitBotCommands(setter, reg)
	assert.Equal(t, []tele.Command{{Text: "/recipe", Description: "Random recipe"}}, setter.got)

	InitBotCommands(&fakeSetter{err: errors.New("boom")}, reg)
}

func TestDefaultMiddlewares(t *testing.T) {
	names := func(mws []Middleware) []string {
		var out []string
		for _, mw := range mws {
			out = append(out, mw.Name)
		}
		return out
	}
	assert.Equal(t, []string{"recover", "logger"}, names(DefaultMiddlewares(nil, nil)))

	cfg := &coreconfig.Config{RateLimit: coreconfig.RateLimitConfig{IntervalMS: 500, Burst: 2}}
	assert.Equal(t, []string{"recover", "rate_limit", "logger"}, names(DefaultMiddlewares(cfg, nil)))
}
