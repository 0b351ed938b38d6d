// Package model holds the recipe bot's persisted entities.
package model

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidRecipe reports a recipe violating the title or video/image rules.
var ErrInvalidRecipe = errors.New("invalid recipe")

// Recipe is a stored recipe. Image and Video are platform file references.
type Recipe struct {
	ID    int64   `db:"id"`
	Title string  `db:"title"`
	Text  string  `db:"text"`
	Image string  `db:"image"`
	Video *string `db:"video"`
}

// HasVideo reports whether the recipe is presented together with a video.
func (r Recipe) HasVideo() bool {
	return r.Video != nil && *r.Video != ""
}

// Validate checks the title is non-empty and that a video is always paired with an image.
func (r Recipe) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.Join(ErrInvalidRecipe, errors.New("title is empty"))
	}
	if r.HasVideo() && r.Image == "" {
		return errors.Join(ErrInvalidRecipe, errors.New("video requires an image"))
	}
	return nil
}

// With returns a copy of r with field f replaced by value. Setting FieldVideo
// to "" removes the video.
func (r Recipe) With(f Field, value string) Recipe {
	switch f {
	case FieldTitle:
		r.Title = value
	case FieldText:
		r.Text = value
	case FieldImage:
		r.Image = value
	case FieldVideo:
		if value == "" {
			r.Video = nil
		} else {
			r.Video = &value
		}
	}
	return r
}

// User is a person who opened the bot through a start link.
type User struct {
	UserID   int64     `db:"user_id"`
	JoinedAt time.Time `db:"joined_at"`
}

// Field names one editable recipe field.
type Field string

const (
	FieldTitle Field = "title"
	FieldText  Field = "text"
	FieldImage Field = "image"
	FieldVideo Field = "video"
)

// Fields lists editable fields in display order.
var Fields = []Field{FieldTitle, FieldText, FieldImage, FieldVideo}

// ParseField returns the Field named s.
func ParseField(s string) (Field, bool) {
	for _, f := range Fields {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// IsMedia reports whether the field takes an attachment instead of text.
func (f Field) IsMedia() bool {
	return f == FieldImage || f == FieldVideo
}
