package sender

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m3rciful/recipebot/core/logger"
	"github.com/m3rciful/recipebot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

// API is the subset of *tele.Bot used for outbound messages.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	SendAlbum(to tele.Recipient, a tele.Album, opts ...interface{}) ([]tele.Message, error)
}

// Options controls retries of a single outbound call.
type Options struct {
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single call.
	MaxDuration time.Duration
}

// Sender performs outbound Telegram calls synchronously, retrying transient
// network failures and flood-wait responses.
type Sender struct {
	api  API
	opts Options
	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Sender with sane defaults if options are zeroed.
func New(api API, opts Options) *Sender {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 30 * time.Second
	}
	return &Sender{api: api, opts: opts, sleep: sleepCtx}
}

// SendText sends plain text, optionally with reply markup.
func (s *Sender) SendText(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) error {
	return s.do(ctx, "send.text", chatID, func() error {
		_, err := s.api.Send(tele.ChatID(chatID), text, &tele.SendOptions{ReplyMarkup: markup})
		return err
	})
}

// SendPhoto sends a previously uploaded photo by file reference with a caption.
func (s *Sender) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, protect bool) error {
	return s.do(ctx, "send.photo", chatID, func() error {
		photo := &tele.Photo{File: tele.File{FileID: fileID}, Caption: caption}
		_, err := s.api.Send(tele.ChatID(chatID), photo, &tele.SendOptions{Protected: protect})
		return err
	})
}

// SendVideoNote sends a previously uploaded video note by file reference.
func (s *Sender) SendVideoNote(ctx context.Context, chatID int64, fileID string, protect bool) error {
	return s.do(ctx, "send.video_note", chatID, func() error {
		note := &tele.VideoNote{File: tele.File{FileID: fileID}}
		_, err := s.api.Send(tele.ChatID(chatID), note, &tele.SendOptions{Protected: protect})
		return err
	})
}

// SendAlbum sends a photo and a video as one grouped message; the caption is set on the photo.
func (s *Sender) SendAlbum(ctx context.Context, chatID int64, photoID, videoID, caption string, protect bool) error {
	return s.do(ctx, "send.album", chatID, func() error {
		album := tele.Album{
			&tele.Photo{File: tele.File{FileID: photoID}, Caption: caption},
			&tele.Video{File: tele.File{FileID: videoID}},
		}
		_, err := s.api.SendAlbum(tele.ChatID(chatID), album, &tele.SendOptions{Protected: protect})
		return err
	})
}

func (s *Sender) do(ctx context.Context, action string, chatID int64, run func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deadlineCtx, cancel := context.WithTimeout(ctx, s.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := s.opts.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := deadlineCtx.Err(); err != nil {
			lastErr = err
			break
		}
		err := run()
		if err == nil {
			attrs := []slog.Attr{
				slog.String("action", action),
				slog.Int64("to_chat_id", chatID),
				slog.Duration("duration", logger.RoundMS(time.Since(start))),
			}
			if attempt > 1 {
				attrs = append(attrs, slog.Int("attempts", attempt))
			}
			logger.Debug(ctx, "tg.sender", "send.success", attrs...)
			return nil
		}
		lastErr = err

		delay, flood := floodDelay(err)
		if !flood {
			if !netutil.ShouldRetry(err) {
				break
			}
			delay = s.opts.RetryBackoff * time.Duration(attempt)
		}
		if attempt == attempts {
			break
		}
		logger.Debug(ctx, "tg.sender", "send.retry.backoff",
			slog.String("action", action),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)
		if err := s.sleep(deadlineCtx, delay); err != nil {
			lastErr = errors.Join(lastErr, err)
			break
		}
	}

	logger.Error(ctx, "tg.sender", "send.fail",
		slog.String("status", "fail"),
		slog.String("action", action),
		slog.Int64("to_chat_id", chatID),
		slog.String("err", SanitizeError(lastErr)),
		slog.String("error_kind", ClassifyError(lastErr)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
