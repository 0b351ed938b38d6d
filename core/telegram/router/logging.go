package router

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/recipebot/core/logger"
	"github.com/m3rciful/recipebot/core/telegram/state"
)

func logSummary(ctx context.Context, rule string, start time.Time, statusOverride string, prev, next state.State, err error, extras ...slog.Attr) {
	status := statusOverride
	if status == "" {
		status = logger.Status(err)
	}
	outcome := "ok"
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		outcome = "cancelled"
	case err != nil:
		outcome = "fail"
	case status == "skip":
		outcome = "skip"
	}

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("rule", rule),
		slog.String("outcome", outcome),
		slog.String("state", string(prev)),
		slog.Duration("duration", logger.Took(start)),
	}
	if next != prev {
		attrs = append(attrs, slog.String("next_state", string(next)))
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	attrs = append(attrs, extras...)

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
	} else if status == "skip" {
		level = slog.LevelDebug
	}
	logger.LogEvent(ctx, logger.Component("tg"), level, "handler.handled", attrs...)
}

func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	type coder interface{ Code() string }
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
