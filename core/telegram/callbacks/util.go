package callbacks

import (
	"errors"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ErrNoPayload is returned when callback data does not carry the expected prefix.
var ErrNoPayload = errors.New("callbacks: payload missing")

// Data returns the callback data with telebot's "\f<unique>|" encoding stripped.
// Raw inline buttons come back unchanged.
func Data(cb *tele.Callback) string {
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return cb.Unique + "_" + strings.TrimSpace(cb.Data)
	}
	raw, encoded := strings.CutPrefix(cb.Data, "\f")
	raw = strings.TrimSpace(raw)
	if encoded {
		if unique, payload, ok := strings.Cut(raw, "|"); ok {
			return unique + "_" + payload
		}
	}
	return raw
}

// Token returns the callback token of the current update, or "" for non-callback updates.
func Token(c tele.Context) string {
	if c == nil {
		return ""
	}
	return Data(c.Callback())
}

// Suffix returns the part of token after prefix+"_", e.g. Suffix("edit_5", "edit") == "5".
func Suffix(token, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(token, prefix+"_")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}

// ID parses the numeric suffix of tokens like "delete_5".
func ID(token, prefix string) (int64, error) {
	rest, ok := Suffix(token, prefix)
	if !ok {
		return 0, ErrNoPayload
	}
	return strconv.ParseInt(rest, 10, 64)
}
