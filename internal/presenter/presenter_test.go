package presenter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/recipebot/internal/deeplink"
	"github.com/m3rciful/recipebot/internal/model"
)

type sent struct {
	kind    string
	chatID  int64
	text    string
	file    string
	video   string
	protect bool
}

type recordingSender struct {
	calls  []sent
	failOn map[int64]error
}

func (r *recordingSender) SendText(_ context.Context, chatID int64, text string, _ *tele.ReplyMarkup) error {
	if err := r.failOn[chatID]; err != nil {
		return err
	}
	r.calls = append(r.calls, sent{kind: "text", chatID: chatID, text: text})
	return nil
}

func (r *recordingSender) SendPhoto(_ context.Context, chatID int64, fileID, caption string, protect bool) error {
	r.calls = append(r.calls, sent{kind: "photo", chatID: chatID, text: caption, file: fileID, protect: protect})
	return nil
}

func (r *recordingSender) SendVideoNote(_ context.Context, chatID int64, fileID string, protect bool) error {
	r.calls = append(r.calls, sent{kind: "video_note", chatID: chatID, file: fileID, protect: protect})
	return nil
}

func (r *recordingSender) SendAlbum(_ context.Context, chatID int64, photoID, videoID, caption string, protect bool) error {
	r.calls = append(r.calls, sent{kind: "album", chatID: chatID, text: caption, file: photoID, video: videoID, protect: protect})
	return nil
}

func (r *recordingSender) kinds() []string {
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.kind)
	}
	return out
}

type fakeUsers struct {
	added []int64
	ids   []int64
	err   error
}

func (f *fakeUsers) AddUser(_ context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	f.added = append(f.added, id)
	return nil
}

func (f *fakeUsers) ListUserIDs(context.Context) ([]int64, error) {
	return f.ids, f.err
}

func mustEncode(t *testing.T, code string) string {
	t.Helper()
	payload, err := deeplink.Encode(code)
	require.NoError(t, err)
	return payload
}

func testOptions() Options {
	return Options{
		ValidCode:         "secret",
		WelcomeVideoNotes: []string{"note1", "note2"},
		WelcomeText:       "welcome",
		CommandsText:      "commands",
		NoRecipesText:     "no recipes",
	}
}

func newTestPresenter(send *recordingSender, users *fakeUsers) (*Presenter, *[]time.Duration) {
	p := New(send, users, testOptions())
	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return p, &slept
}

func TestPresentRecipeWithoutVideo(t *testing.T) {
	rec := &recordingSender{}
	p, _ := newTestPresenter(rec, &fakeUsers{})
	err := p.PresentRecipe(context.Background(), 7, model.Recipe{ID: 1, Title: "Cake", Text: "Mix and bake", Image: "img1"})
	require.NoError(t, err)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, sent{kind: "photo", chatID: 7, text: "🍳 Cake\n\nMix and bake", file: "img1", protect: true}, rec.calls[0])
}

func TestPresentRecipeWithVideo(t *testing.T) {
	rec := &recordingSender{}
	p, _ := newTestPresenter(rec, &fakeUsers{})
	v := "vid1"
	err := p.PresentRecipe(context.Background(), 7, model.Recipe{Title: "Cake", Image: "img1", Video: &v})
	require.NoError(t, err)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, "album", rec.calls[0].kind)
	assert.Equal(t, "img1", rec.calls[0].file)
	assert.Equal(t, "vid1", rec.calls[0].video)
	assert.True(t, rec.calls[0].protect)
}

func TestPresentAllEmpty(t *testing.T) {
	rec := &recordingSender{}
	p, _ := newTestPresenter(rec, &fakeUsers{})
	require.NoError(t, p.PresentAll(context.Background(), 7, nil))
	require.Len(t, rec.calls, 1)
	assert.Equal(t, sent{kind: "text", chatID: 7, text: "no recipes"}, rec.calls[0])
}

func TestPresentAllKeepsOrder(t *testing.T) {
	rec := &recordingSender{}
	p, _ := newTestPresenter(rec, &fakeUsers{})
	recipes := []model.Recipe{
		{ID: 2, Title: "B", Image: "b"},
		{ID: 1, Title: "A", Image: "a"},
	}
	require.NoError(t, p.PresentAll(context.Background(), 7, recipes))
	require.Len(t, rec.calls, 2)
	assert.Equal(t, "b", rec.calls[0].file)
	assert.Equal(t, "a", rec.calls[1].file)
}

func TestOnboardValidPayload(t *testing.T) {
	rec := &recordingSender{}
	users := &fakeUsers{}
	p, slept := newTestPresenter(rec, users)

	ok, err := p.Onboard(context.Background(), 5, 5, mustEncode(t, "secret"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int64{5}, users.added)
	assert.Equal(t, []string{"text", "video_note", "video_note", "text"}, rec.kinds())
	assert.Equal(t, "welcome", rec.calls[0].text)
	assert.Equal(t, "note1", rec.calls[1].file)
	assert.True(t, rec.calls[1].protect)
	assert.Equal(t, "commands", rec.calls[3].text)
	assert.Len(t, *slept, 3)
}

func TestOnboardInvalidPayloadStillRegisters(t *testing.T) {
	for _, payload := range []string{"", "!!!", mustEncode(t, "wrong")} {
		rec := &recordingSender{}
		users := &fakeUsers{}
		p, _ := newTestPresenter(rec, users)

		ok, err := p.Onboard(context.Background(), 9, 9, payload)
		require.NoError(t, err)
		assert.False(t, ok, payload)
		assert.Empty(t, rec.calls, payload)
		assert.Equal(t, []int64{9}, users.added, payload)
	}
}

func TestOnboardRegistrationFailure(t *testing.T) {
	rec := &recordingSender{}
	p, _ := newTestPresenter(rec, &fakeUsers{err: errors.New("db down")})
	_, err := p.Onboard(context.Background(), 1, 1, mustEncode(t, "secret"))
	require.Error(t, err)
	assert.Empty(t, rec.calls)
}

func TestBroadcastSkipsFailures(t *testing.T) {
	rec := &recordingSender{failOn: map[int64]error{2: errors.New("blocked")}}
	p, _ := newTestPresenter(rec, &fakeUsers{ids: []int64{1, 2, 3}})

	res, err := p.Broadcast(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, BroadcastResult{Total: 3, Sent: 2, Failed: 1}, res)
	require.Len(t, rec.calls, 2)
	assert.Equal(t, int64(1), rec.calls[0].chatID)
	assert.Equal(t, int64(3), rec.calls[1].chatID)
}

func TestBroadcastListFailure(t *testing.T) {
	p, _ := newTestPresenter(&recordingSender{}, &fakeUsers{err: errors.New("db down")})
	_, err := p.Broadcast(context.Background(), "hello")
	require.Error(t, err)
}

func TestPresentAllSleepsBetweenSends(t *testing.T) {
	rec := &recordingSender{}
	p, slept := newTestPresenter(rec, &fakeUsers{})
	p.opts.ListDelay = 500 * time.Millisecond
	recipes := []model.Recipe{{ID: 1, Image: "a"}, {ID: 2, Image: "b"}, {ID: 3, Image: "c"}}

	require.NoError(t, p.PresentAll(context.Background(), 7, recipes))
	assert.Len(t, rec.calls, 3)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, *slept)
}

func TestBroadcastSleepsAfterFailedSend(t *testing.T) {
	rec := &recordingSender{failOn: map[int64]error{1: errors.New("blocked")}}
	p, slept := newTestPresenter(rec, &fakeUsers{ids: []int64{1, 2}})
	p.opts.BroadcastDelay = 100 * time.Millisecond

	_, err := p.Broadcast(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, *slept)
}

// slowSender takes latency per send and records when each send starts and ends.
type slowSender struct {
	recordingSender
	latency time.Duration
	starts  []time.Time
	ends    []time.Time
}

func (s *slowSender) span() {
	s.starts = append(s.starts, time.Now())
	time.Sleep(s.latency)
	s.ends = append(s.ends, time.Now())
}

func (s *slowSender) SendText(ctx context.Context, chatID int64, text string, m *tele.ReplyMarkup) error {
	s.span()
	return s.recordingSender.SendText(ctx, chatID, text, m)
}

func (s *slowSender) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, protect bool) error {
	s.span()
	return s.recordingSender.SendPhoto(ctx, chatID, fileID, caption, protect)
}

func (s *slowSender) gaps() []time.Duration {
	var out []time.Duration
	for i := 1; i < len(s.starts); i++ {
		out = append(out, s.starts[i].Sub(s.ends[i-1]))
	}
	return out
}

func TestPauseHoldsWhenSendsAreSlow(t *testing.T) {
	const pause = 40 * time.Millisecond
	opts := testOptions()
	opts.ListDelay = pause
	opts.BroadcastDelay = pause

	slow := &slowSender{latency: 60 * time.Millisecond}
	p := New(slow, &fakeUsers{ids: []int64{1, 2, 3}}, opts)
	recipes := []model.Recipe{{ID: 1, Image: "a"}, {ID: 2, Image: "b"}, {ID: 3, Image: "c"}}
	require.NoError(t, p.PresentAll(context.Background(), 7, recipes))
	require.Len(t, slow.gaps(), 2)
	for _, gap := range slow.gaps() {
		assert.GreaterOrEqual(t, gap, pause)
	}

	slow = &slowSender{latency: 60 * time.Millisecond}
	p = New(slow, &fakeUsers{ids: []int64{1, 2, 3}}, opts)
	_, err := p.Broadcast(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, slow.gaps(), 2)
	for _, gap := range slow.gaps() {
		assert.GreaterOrEqual(t, gap, pause)
	}
}

func TestPresentAllStopsOnCancel(t *testing.T) {
	opts := testOptions()
	opts.ListDelay = time.Hour
	rec := &recordingSender{}
	p := New(rec, &fakeUsers{}, opts)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.PresentAll(ctx, 7, []model.Recipe{{ID: 1, Image: "a"}, {ID: 2, Image: "b"}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, rec.calls, 1)
}
