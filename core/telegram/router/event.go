package router

import (
	"strings"
	"unicode"

	"github.com/m3rciful/recipebot/core/telegram/callbacks"
	"github.com/m3rciful/recipebot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// Kind classifies an inbound event.
type Kind string

const (
	KindCommand   Kind = "command"
	KindText      Kind = "text"
	KindPhoto     Kind = "photo"
	KindVideo     Kind = "video"
	KindVideoNote Kind = "video_note"
	KindCallback  Kind = "callback"
	KindOther     Kind = "other"
)

// Event is the platform-agnostic view of an update used by the rule table.
type Event struct {
	UpdateID int
	UserID   int64
	ChatID   int64
	Kind     Kind

	// Command is the normalized command name ("/start") for KindCommand.
	Command string
	// Args is the trimmed text after the command.
	Args string
	// Text is the message text, or the caption for media.
	Text string
	// FileID references the attachment for media kinds.
	FileID string
	// Token is the raw callback data for KindCallback.
	Token string
}

// EventFrom converts a telebot context into an Event.
func EventFrom(c tele.Context) Event {
	ev := Event{Kind: KindOther}
	if c == nil {
		return ev
	}
	ev.UpdateID = c.Update().ID
	if u := c.Sender(); u != nil {
		ev.UserID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		ev.ChatID = ch.ID
	}

	if cb := c.Callback(); cb != nil {
		ev.Kind = KindCallback
		ev.Token = callbacks.Token(c)
		if ev.ChatID == 0 && cb.Message != nil && cb.Message.Chat != nil {
			ev.ChatID = cb.Message.Chat.ID
		}
		return ev
	}

	m := c.Message()
	if m == nil {
		return ev
	}
	switch {
	case m.Photo != nil:
		ev.Kind, ev.FileID, ev.Text = KindPhoto, m.Photo.FileID, m.Caption
	case m.Video != nil:
		ev.Kind, ev.FileID, ev.Text = KindVideo, m.Video.FileID, m.Caption
	case m.VideoNote != nil:
		ev.Kind, ev.FileID = KindVideoNote, m.VideoNote.FileID
	case m.Text != "":
		ev.Text = m.Text
		if name, args, ok := ParseCommand(m.Text); ok {
			ev.Kind, ev.Command, ev.Args = KindCommand, name, args
		} else {
			ev.Kind = KindText
		}
	}
	return ev
}

// ParseCommand splits "/cmd@bot args" into the normalized command and its arguments.
func ParseCommand(text string) (string, string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		head, rest = text[:i], text[i:]
	}
	name := commands.Normalize(head)
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(rest), true
}
