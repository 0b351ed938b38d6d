// Package workflow implements the admin conversations for adding, editing and
// deleting recipes as an explicit state machine.
//
// Transition is a pure function of (state, draft, input); Machine runs the
// store effects it requests and keeps per-user drafts in the session store.
package workflow

import (
	"strings"

	"github.com/m3rciful/recipebot/core/telegram/callbacks"
	"github.com/m3rciful/recipebot/core/telegram/state"
	"github.com/m3rciful/recipebot/internal/model"
)

// State is a conversation step. The zero session state is state.StateIdle.
type State = state.State

const (
	Idle State = state.StateIdle

	AddAwaitingTitle       State = "add.awaiting_title"
	AddAwaitingText        State = "add.awaiting_text"
	AddAwaitingImage       State = "add.awaiting_image"
	AddAwaitingVideoChoice State = "add.awaiting_video_choice"
	AddAwaitingVideo       State = "add.awaiting_video"

	EditAwaitingRecipe State = "edit.awaiting_recipe"
	EditAwaitingField  State = "edit.awaiting_field"
	EditAwaitingValue  State = "edit.awaiting_value"

	DeleteAwaitingRecipe State = "delete.awaiting_recipe"
)

// Callback tokens understood by the workflow.
const (
	ActionAddVideo  = "add_video"
	ActionSkipVideo = "skip_video"
	PrefixEdit      = "edit"
	PrefixDelete    = "delete"
)

// InputKind classifies what the admin sent.
type InputKind int

const (
	InputText InputKind = iota + 1
	InputPhoto
	InputVideo
	InputVideoNote
	InputAction
)

// Input is one admin turn: text, an attachment reference or a callback action.
type Input struct {
	Kind   InputKind
	Text   string
	FileID string
	Action string
}

// Draft accumulates recipe fields across turns of one workflow instance.
type Draft struct {
	RecipeID int64
	Title    string
	Text     string
	Image    string
	Video    string
	// Field and Value describe the pending edit.
	Field model.Field
	Value string
}

// Recipe converts the draft into a recipe for persistence.
func (d Draft) Recipe() model.Recipe {
	r := model.Recipe{ID: d.RecipeID, Title: d.Title, Text: d.Text, Image: d.Image}
	if d.Video != "" {
		v := d.Video
		r.Video = &v
	}
	return r
}

// Effect is the side effect a transition asks the Machine to perform.
type Effect int

const (
	// EffectPrompt sends the prompt of the next state.
	EffectPrompt Effect = iota
	// EffectReprompt repeats the current prompt; state and draft are unchanged.
	EffectReprompt
	// EffectCreate persists the draft as a new recipe and finishes.
	EffectCreate
	// EffectLoad loads Draft.RecipeID into the draft and offers the field menu.
	EffectLoad
	// EffectVerify checks Draft.RecipeID still exists before asking for the value.
	EffectVerify
	// EffectUpdate writes Draft.Value into Draft.Field of the persisted recipe and finishes.
	EffectUpdate
	// EffectDelete deletes Draft.RecipeID and finishes.
	EffectDelete
)

// Step is the outcome of a transition.
type Step struct {
	Next   State
	Draft  Draft
	Effect Effect
}

func stay(st State, d Draft) Step {
	return Step{Next: st, Draft: d, Effect: EffectReprompt}
}

// Transition computes the next state for input in state st. Inputs of the wrong
// kind re-prompt without touching the draft. Idle and unknown states re-prompt.
func Transition(st State, d Draft, in Input) Step {
	switch st {
	case AddAwaitingTitle:
		if in.Kind != InputText || strings.TrimSpace(in.Text) == "" {
			return stay(st, d)
		}
		d.Title = strings.TrimSpace(in.Text)
		return Step{Next: AddAwaitingText, Draft: d}

	case AddAwaitingText:
		if in.Kind != InputText {
			return stay(st, d)
		}
		d.Text = in.Text
		return Step{Next: AddAwaitingImage, Draft: d}

	case AddAwaitingImage:
		if in.Kind != InputPhoto || in.FileID == "" {
			return stay(st, d)
		}
		d.Image = in.FileID
		return Step{Next: AddAwaitingVideoChoice, Draft: d}

	case AddAwaitingVideoChoice:
		if in.Kind != InputAction {
			return stay(st, d)
		}
		switch in.Action {
		case ActionAddVideo:
			return Step{Next: AddAwaitingVideo, Draft: d}
		case ActionSkipVideo:
			d.Video = ""
			return Step{Next: Idle, Draft: d, Effect: EffectCreate}
		}
		return stay(st, d)

	case AddAwaitingVideo:
		switch {
		case (in.Kind == InputVideo || in.Kind == InputVideoNote) && in.FileID != "":
			d.Video = in.FileID
			return Step{Next: Idle, Draft: d, Effect: EffectCreate}
		case in.Kind == InputAction && in.Action == ActionSkipVideo:
			d.Video = ""
			return Step{Next: Idle, Draft: d, Effect: EffectCreate}
		}
		return stay(st, d)

	case EditAwaitingRecipe:
		id, err := callbacks.ID(in.Action, PrefixEdit)
		if in.Kind != InputAction || err != nil {
			return stay(st, d)
		}
		return Step{Next: EditAwaitingField, Draft: Draft{RecipeID: id}, Effect: EffectLoad}

	case EditAwaitingField:
		name, ok := callbacks.Suffix(in.Action, PrefixEdit)
		field, known := model.ParseField(name)
		if in.Kind != InputAction || !ok || !known {
			return stay(st, d)
		}
		d.Field, d.Value = field, ""
		return Step{Next: EditAwaitingValue, Draft: d, Effect: EffectVerify}

	case EditAwaitingValue:
		value, ok := editValue(d.Field, in)
		if !ok {
			return stay(st, d)
		}
		d.Value = value
		return Step{Next: Idle, Draft: d, Effect: EffectUpdate}

	case DeleteAwaitingRecipe:
		id, err := callbacks.ID(in.Action, PrefixDelete)
		if in.Kind != InputAction || err != nil {
			return stay(st, d)
		}
		d.RecipeID = id
		return Step{Next: Idle, Draft: d, Effect: EffectDelete}
	}
	return stay(st, d)
}

func editValue(f model.Field, in Input) (string, bool) {
	if f.IsMedia() && in.FileID == "" {
		return "", false
	}
	switch f {
	case model.FieldTitle:
		if in.Kind == InputText && strings.TrimSpace(in.Text) != "" {
			return strings.TrimSpace(in.Text), true
		}
	case model.FieldText:
		if in.Kind == InputText {
			return in.Text, true
		}
	case model.FieldImage:
		if in.Kind == InputPhoto {
			return in.FileID, true
		}
	case model.FieldVideo:
		if in.Kind == InputVideo || in.Kind == InputVideoNote {
			return in.FileID, true
		}
	}
	return "", false
}
