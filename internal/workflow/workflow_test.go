package workflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/recipebot/core/telegram/state"
	"github.com/m3rciful/recipebot/internal/model"
	"github.com/m3rciful/recipebot/internal/store"
)

type memStore struct {
	mu      sync.Mutex
	nextID  int64
	recipes map[int64]model.Recipe
	failAll error
	// delay slows every write down to widen races between concurrent steps.
	delay time.Duration
}

func newMemStore() *memStore {
	return &memStore{recipes: map[int64]model.Recipe{}}
}

func (s *memStore) CreateRecipe(_ context.Context, r model.Recipe) (model.Recipe, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return model.Recipe{}, s.failAll
	}
	if err := r.Validate(); err != nil {
		return model.Recipe{}, err
	}
	s.nextID++
	r.ID = s.nextID
	s.recipes[r.ID] = r
	return r, nil
}

func (s *memStore) GetRecipe(_ context.Context, id int64) (model.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return model.Recipe{}, s.failAll
	}
	r, ok := s.recipes[id]
	if !ok {
		return model.Recipe{}, store.ErrNotFound
	}
	return r, nil
}

func (s *memStore) ListRecipes(_ context.Context) ([]model.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return nil, s.failAll
	}
	out := make([]model.Recipe, 0, len(s.recipes))
	for _, r := range s.recipes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) UpdateRecipe(_ context.Context, r model.Recipe) (model.Recipe, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return model.Recipe{}, s.failAll
	}
	if _, ok := s.recipes[r.ID]; !ok {
		return model.Recipe{}, store.ErrNotFound
	}
	s.recipes[r.ID] = r
	return r, nil
}

func (s *memStore) DeleteRecipe(_ context.Context, id int64) (bool, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return false, s.failAll
	}
	_, ok := s.recipes[id]
	delete(s.recipes, id)
	return ok, nil
}

func text(s string) Input   { return Input{Kind: InputText, Text: s} }
func photo(id string) Input { return Input{Kind: InputPhoto, FileID: id} }
func video(id string) Input { return Input{Kind: InputVideo, FileID: id} }
func action(a string) Input { return Input{Kind: InputAction, Action: a} }

const admin = int64(42)

func TestTransitionAddFlow(t *testing.T) {
	st, d := AddAwaitingTitle, Draft{}
	for _, tc := range []struct {
		in   Input
		next State
	}{
		{text("Cake"), AddAwaitingText},
		{text("Mix and bake"), AddAwaitingImage},
		{photo("img1"), AddAwaitingVideoChoice},
		{action(ActionAddVideo), AddAwaitingVideo},
	} {
		step := Transition(st, d, tc.in)
		require.Equal(t, EffectPrompt, step.Effect)
		require.Equal(t, tc.next, step.Next)
		st, d = step.Next, step.Draft
	}
	step := Transition(st, d, video("vid1"))
	assert.Equal(t, EffectCreate, step.Effect)
	assert.Equal(t, Idle, step.Next)
	assert.Equal(t, Draft{Title: "Cake", Text: "Mix and bake", Image: "img1", Video: "vid1"}, step.Draft)
}

func TestTransitionWrongInputReprompts(t *testing.T) {
	d := Draft{Title: "Cake"}
	cases := []struct {
		name string
		st   State
		in   Input
	}{
		{"photo for title", AddAwaitingTitle, photo("x")},
		{"blank title", AddAwaitingTitle, text("   ")},
		{"text for image", AddAwaitingImage, text("not a photo")},
		{"text for choice", AddAwaitingVideoChoice, text("yes")},
		{"unknown action", AddAwaitingVideoChoice, action("delete_1")},
		{"photo for video", AddAwaitingVideo, photo("x")},
		{"text for recipe pick", EditAwaitingRecipe, text("Cake")},
		{"bad edit id", EditAwaitingRecipe, action("edit_abc")},
		{"unknown field", EditAwaitingField, action("edit_color")},
		{"wrong delete prefix", DeleteAwaitingRecipe, action("edit_1")},
		{"idle", Idle, text("hello")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			step := Transition(tc.st, d, tc.in)
			assert.Equal(t, EffectReprompt, step.Effect)
			assert.Equal(t, tc.st, step.Next)
			assert.Equal(t, d, step.Draft)
		})
	}
}

func TestTransitionEditValueKinds(t *testing.T) {
	base := Draft{RecipeID: 1}
	cases := []struct {
		field model.Field
		in    Input
		ok    bool
	}{
		{model.FieldTitle, text("New"), true},
		{model.FieldTitle, photo("p"), false},
		{model.FieldText, text("Body"), true},
		{model.FieldImage, photo("p"), true},
		{model.FieldImage, video("v"), false},
		{model.FieldVideo, video("v"), true},
		{model.FieldVideo, Input{Kind: InputVideoNote, FileID: "n"}, true},
		{model.FieldVideo, text("v"), false},
	}
	for _, tc := range cases {
		d := base
		d.Field = tc.field
		step := Transition(EditAwaitingValue, d, tc.in)
		if tc.ok {
			assert.Equal(t, EffectUpdate, step.Effect, "%s %+v", tc.field, tc.in)
		} else {
			assert.Equal(t, EffectReprompt, step.Effect, "%s %+v", tc.field, tc.in)
		}
	}
}

func TestMachineAddWithoutVideo(t *testing.T) {
	st := newMemStore()
	m := New(st, state.NewMemoryManager())
	ctx := context.Background()

	replies := m.StartAdd(admin)
	require.Len(t, replies, 1)
	assert.Equal(t, AddAwaitingTitle, m.State(admin))

	for _, in := range []Input{text("Cake"), text("Mix and bake"), photo("img1")} {
		_, err := m.Step(ctx, admin, in)
		require.NoError(t, err)
	}
	assert.Equal(t, AddAwaitingVideoChoice, m.State(admin))

	replies, err := m.Step(ctx, admin, action(ActionSkipVideo))
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "Cake")
	assert.False(t, m.Active(admin))

	recipes, _ := st.ListRecipes(ctx)
	require.Len(t, recipes, 1)
	assert.Equal(t, "Cake", recipes[0].Title)
	assert.Equal(t, "Mix and bake", recipes[0].Text)
	assert.Equal(t, "img1", recipes[0].Image)
	assert.Nil(t, recipes[0].Video)
}

func TestMachineAddRepromptKeepsState(t *testing.T) {
	m := New(newMemStore(), state.NewMemoryManager())
	ctx := context.Background()
	m.StartAdd(admin)
	_, _ = m.Step(ctx, admin, text("Cake"))
	_, _ = m.Step(ctx, admin, text("Mix"))

	replies, err := m.Step(ctx, admin, text("this is not a photo"))
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, textNeedPhoto, replies[0].Text)
	assert.Equal(t, AddAwaitingImage, m.State(admin))
}

func TestMachineStartAddDropsStaleDraft(t *testing.T) {
	sessions := state.NewMemoryManager()
	m := New(newMemStore(), sessions)
	m.StartAdd(admin)
	_, _ = m.Step(context.Background(), admin, text("Old"))

	m.StartAdd(admin)
	d, ok := sessions.Get(admin).TempData[draftKey].(Draft)
	require.True(t, ok)
	assert.Equal(t, Draft{}, d)
}

func TestMachineEditPreservesOtherFields(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()
	v := "vid"
	r, err := st.CreateRecipe(ctx, model.Recipe{Title: "Soup", Text: "Boil", Image: "img", Video: &v})
	require.NoError(t, err)

	m := New(st, state.NewMemoryManager())
	replies, err := m.StartEdit(ctx, admin)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	require.NotNil(t, replies[0].Markup)
	require.Len(t, replies[0].Markup.InlineKeyboard, 1)
	assert.Equal(t, "edit_1", replies[0].Markup.InlineKeyboard[0][0].Data)

	replies, err = m.Step(ctx, admin, action("edit_1"))
	require.NoError(t, err)
	assert.Contains(t, replies[0].Text, "Soup")
	fields := replies[0].Markup.InlineKeyboard
	require.Len(t, fields, 2)
	assert.Equal(t, "edit_title", fields[0][0].Data)
	assert.Equal(t, "edit_video", fields[1][1].Data)
	assert.Equal(t, EditAwaitingField, m.State(admin))

	_, err = m.Step(ctx, admin, action("edit_title"))
	require.NoError(t, err)
	assert.Equal(t, EditAwaitingValue, m.State(admin))

	_, err = m.Step(ctx, admin, text("Borscht"))
	require.NoError(t, err)
	assert.False(t, m.Active(admin))

	got, err := st.GetRecipe(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Borscht", got.Title)
	assert.Equal(t, "Boil", got.Text)
	assert.Equal(t, "img", got.Image)
	require.NotNil(t, got.Video)
	assert.Equal(t, "vid", *got.Video)
}

func TestMachineEditRecipeDeletedMidway(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()
	_, err := st.CreateRecipe(ctx, model.Recipe{Title: "Soup", Image: "img"})
	require.NoError(t, err)

	m := New(st, state.NewMemoryManager())
	_, err = m.StartEdit(ctx, admin)
	require.NoError(t, err)
	_, err = m.Step(ctx, admin, action("edit_1"))
	require.NoError(t, err)
	_, err = m.Step(ctx, admin, action("edit_text"))
	require.NoError(t, err)

	_, _ = st.DeleteRecipe(ctx, 1)

	replies, err := m.Step(ctx, admin, text("New body"))
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, TextNotFound, replies[0].Text)
	assert.False(t, m.Active(admin))
	recipes, _ := st.ListRecipes(ctx)
	assert.Empty(t, recipes)
}

func TestMachineEditUnknownRecipe(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()
	_, _ = st.CreateRecipe(ctx, model.Recipe{Title: "Soup", Image: "img"})

	m := New(st, state.NewMemoryManager())
	_, _ = m.StartEdit(ctx, admin)
	replies, err := m.Step(ctx, admin, action("edit_99"))
	require.NoError(t, err)
	assert.Equal(t, TextNotFound, replies[0].Text)
	assert.Equal(t, Idle, m.State(admin))
}

func TestMachineDelete(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()
	_, _ = st.CreateRecipe(ctx, model.Recipe{Title: "A", Image: "i"})
	_, _ = st.CreateRecipe(ctx, model.Recipe{Title: "B", Image: "i"})

	m := New(st, state.NewMemoryManager())
	replies, err := m.StartDelete(ctx, admin)
	require.NoError(t, err)
	rows := replies[0].Markup.InlineKeyboard
	require.Len(t, rows, 2)
	assert.Equal(t, "delete_2", rows[1][0].Data)

	replies, err = m.Step(ctx, admin, action("delete_2"))
	require.NoError(t, err)
	assert.Equal(t, TextDeleted, replies[0].Text)

	_, _ = m.StartDelete(ctx, admin)
	_, _ = st.DeleteRecipe(ctx, 1)
	replies, err = m.Step(ctx, admin, action("delete_1"))
	require.NoError(t, err)
	assert.Equal(t, TextDeleteFailed, replies[0].Text)
	assert.False(t, m.Active(admin))
}

func TestMachineSelectWithNoRecipes(t *testing.T) {
	m := New(newMemStore(), state.NewMemoryManager())
	replies, err := m.StartDelete(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, TextNoRecipes, replies[0].Text)
	assert.False(t, m.Active(admin))
}

func TestMachineStoreErrorResets(t *testing.T) {
	st := newMemStore()
	m := New(st, state.NewMemoryManager())
	ctx := context.Background()
	m.StartAdd(admin)
	_, _ = m.Step(ctx, admin, text("Cake"))
	_, _ = m.Step(ctx, admin, text("Mix"))
	_, _ = m.Step(ctx, admin, photo("img"))

	boom := errors.New("disk full")
	st.failAll = boom
	replies, err := m.Step(ctx, admin, action(ActionSkipVideo))
	require.ErrorIs(t, err, boom)
	assert.Nil(t, replies)
	assert.False(t, m.Active(admin))
}

func TestMachineCancel(t *testing.T) {
	m := New(newMemStore(), state.NewMemoryManager())
	m.StartAdd(admin)
	replies := m.Cancel(admin)
	assert.Equal(t, TextCancelled, replies[0].Text)
	assert.False(t, m.Active(admin))
}

func TestMachineIsolatesUsers(t *testing.T) {
	m := New(newMemStore(), state.NewMemoryManager())
	ctx := context.Background()
	m.StartAdd(1)
	m.StartAdd(2)
	_, _ = m.Step(ctx, 1, text("One"))
	assert.Equal(t, AddAwaitingText, m.State(1))
	assert.Equal(t, AddAwaitingTitle, m.State(2))
}

func TestMachineConcurrentSkipCreatesOnce(t *testing.T) {
	st := newMemStore()
	st.delay = 50 * time.Millisecond
	m := New(st, state.NewMemoryManager())
	ctx := context.Background()
	m.StartAdd(admin)
	for _, in := range []Input{text("Cake"), text("Mix and bake"), photo("img1")} {
		_, err := m.Step(ctx, admin, in)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	replies := make([][]Reply, 2)
	for i := range replies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := m.Step(ctx, admin, action(ActionSkipVideo))
			assert.NoError(t, err)
			replies[i] = r
		}(i)
	}
	wg.Wait()

	recipes, _ := st.ListRecipes(ctx)
	assert.Len(t, recipes, 1)
	assert.Equal(t, 1, len(replies[0])+len(replies[1]), "the late tap must be dropped")
	assert.False(t, m.Active(admin))
}

func TestMachineConcurrentStepsSerializePerUser(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()
	_, _ = st.CreateRecipe(ctx, model.Recipe{Title: "A", Image: "i"})
	st.delay = 30 * time.Millisecond
	m := New(st, state.NewMemoryManager())
	_, err := m.StartEdit(ctx, admin)
	require.NoError(t, err)
	_, err = m.Step(ctx, admin, action("edit_1"))
	require.NoError(t, err)
	_, err = m.Step(ctx, admin, action("edit_title"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, title := range []string{"B", "C"} {
		wg.Add(1)
		go func(title string) {
			defer wg.Done()
			_, err := m.Step(ctx, admin, text(title))
			assert.NoError(t, err)
		}(title)
	}
	wg.Wait()

	got, err := st.GetRecipe(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, []string{"B", "C"}, got.Title)
	assert.False(t, m.Active(admin))
}

func TestMachineStepWhenIdleIsDropped(t *testing.T) {
	m := New(newMemStore(), state.NewMemoryManager())
	replies, err := m.Step(context.Background(), admin, text("hello"))
	require.NoError(t, err)
	assert.Empty(t, replies)
}
