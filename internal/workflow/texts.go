package workflow

import (
	"fmt"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/recipebot/core/telegram/keyboard"
	"github.com/m3rciful/recipebot/internal/model"
)

// Admin-facing texts.
const (
	TextCancelled    = "Cancelled."
	TextNoRecipes    = "No recipes yet."
	TextNotFound     = "Recipe not found."
	TextChooseEdit   = "Choose a recipe to edit:"
	TextChooseDelete = "Choose a recipe to delete:"
	TextChooseListed = "Please choose a recipe from the list above."
	TextDeleted      = "🗑 Recipe deleted."
	TextDeleteFailed = "Could not delete the recipe: it no longer exists."
	TextAdded        = "✅ Recipe added!\n\n📝 Title: %s\n📋 Text: %s"
	TextUpdated      = "✅ Recipe updated!\n\n📝 Title: %s\n📋 Text: %s"

	textAskTitle    = "Enter the recipe title:"
	textAskText     = "Enter the recipe text:"
	textAskImage    = "Send a photo of the dish:"
	textAskVideo    = "Send the video or video note:"
	textAskChoice   = "Add a video to the recipe?"
	textNeedText    = "Please send text."
	textNeedPhoto   = "Please send a photo."
	textNeedVideo   = "Please send a video or a video note, or skip."
	textCurrent     = "Current recipe:\n\n📝 Title: %s\n📋 Text: %s\n\nWhat do you want to change?"
	textNewTitle    = "Enter the new title:"
	textNewText     = "Enter the new text:"
	textNewImage    = "Send the new photo:"
	textNewVideo    = "Send the new video or video note:"
	textChooseField = "Please choose a field with the buttons above."
	textNeedMedia   = "Please send a video or a video note."
)

var fieldLabels = map[model.Field]string{
	model.FieldTitle: "📝 Title",
	model.FieldText:  "📋 Text",
	model.FieldImage: "🖼 Photo",
	model.FieldVideo: "🎬 Video",
}

func videoChoiceButtons() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "Yes", Data: ActionAddVideo},
		{Text: "No", Data: ActionSkipVideo},
	})
}

func skipButton() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows([]keyboard.InlineBtn{{Text: "Skip", Data: ActionSkipVideo}})
}

// fieldButtons lays the editable fields out two per row.
func fieldButtons() *tele.ReplyMarkup {
	btns := make([]keyboard.InlineBtn, 0, len(model.Fields))
	for _, f := range model.Fields {
		btns = append(btns, keyboard.InlineBtn{Text: fieldLabels[f], Data: PrefixEdit + "_" + string(f)})
	}
	return keyboard.InlineButtonsNPerRow(btns, 2)
}

// prompt is the message shown on entering st.
func prompt(st State, d Draft) Reply {
	switch st {
	case AddAwaitingTitle:
		return Reply{Text: textAskTitle}
	case AddAwaitingText:
		return Reply{Text: textAskText}
	case AddAwaitingImage:
		return Reply{Text: textAskImage}
	case AddAwaitingVideoChoice:
		return Reply{Text: textAskChoice, Markup: videoChoiceButtons()}
	case AddAwaitingVideo:
		return Reply{Text: textAskVideo, Markup: skipButton()}
	case EditAwaitingField:
		return Reply{Text: fmt.Sprintf(textCurrent, d.Title, d.Text), Markup: fieldButtons()}
	case EditAwaitingValue:
		switch d.Field {
		case model.FieldTitle:
			return Reply{Text: textNewTitle}
		case model.FieldText:
			return Reply{Text: textNewText}
		case model.FieldImage:
			return Reply{Text: textNewImage}
		default:
			return Reply{Text: textNewVideo}
		}
	}
	return Reply{Text: TextChooseListed}
}

// reprompt is the message shown when input does not fit st.
func reprompt(st State, d Draft) Reply {
	switch st {
	case AddAwaitingTitle, AddAwaitingText:
		return Reply{Text: textNeedText}
	case AddAwaitingImage:
		return Reply{Text: textNeedPhoto}
	case AddAwaitingVideoChoice:
		return prompt(st, d)
	case AddAwaitingVideo:
		return Reply{Text: textNeedVideo, Markup: skipButton()}
	case EditAwaitingField:
		return Reply{Text: textChooseField}
	case EditAwaitingValue:
		switch {
		case !d.Field.IsMedia():
			return Reply{Text: textNeedText}
		case d.Field == model.FieldImage:
			return Reply{Text: textNeedPhoto}
		default:
			return Reply{Text: textNeedMedia}
		}
	}
	return Reply{Text: TextChooseListed}
}
