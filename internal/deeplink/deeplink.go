// Package deeplink encodes and verifies start-link payloads.
//
// Payloads are the configured code encoded as unpadded base64url, the form
// Telegram accepts in ?start= parameters (A-Z, a-z, 0-9, _ and -, up to 64 chars).
package deeplink

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// MaxPayloadLen is the longest start parameter Telegram accepts.
const MaxPayloadLen = 64

var (
	// ErrEmptyPayload is returned for an empty start parameter.
	ErrEmptyPayload = errors.New("deeplink: empty payload")
	// ErrPayloadTooLong is returned when the encoded code does not fit a start parameter.
	ErrPayloadTooLong = errors.New("deeplink: payload too long")
)

// Encode returns the start parameter for code.
func Encode(code string) (string, error) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(code))
	if len(payload) > MaxPayloadLen {
		return "", ErrPayloadTooLong
	}
	return payload, nil
}

// Decode reverses Encode. Trailing padding is tolerated.
func Decode(payload string) (string, error) {
	payload = strings.TrimRight(strings.TrimSpace(payload), "=")
	if payload == "" {
		return "", ErrEmptyPayload
	}
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("deeplink: decode: %w", err)
	}
	return string(raw), nil
}

// Verify reports whether payload decodes to code. An empty code never verifies.
func Verify(payload, code string) bool {
	if code == "" {
		return false
	}
	decoded, err := Decode(payload)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(decoded), []byte(code)) == 1
}

// Link builds https://t.me/<bot>?start=<payload> for code.
func Link(botUsername, code string) (string, error) {
	botUsername = strings.TrimPrefix(strings.TrimSpace(botUsername), "@")
	if botUsername == "" {
		return "", errors.New("deeplink: bot username is empty")
	}
	payload, err := Encode(code)
	if err != nil {
		return "", err
	}
	u := url.URL{
		Scheme:   "https",
		Host:     "t.me",
		Path:     "/" + botUsername,
		RawQuery: url.Values{"start": {payload}}.Encode(),
	}
	return u.String(), nil
}
