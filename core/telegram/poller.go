package telegram

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/recipebot/core/config"

	tele "gopkg.in/telebot.v4"
)

const defaultLongPollTimeout = 10 * time.Second

// AllowedUpdates limits delivery to the update types the bot handles.
var AllowedUpdates = []string{"message", "callback_query"}

// WebhookOptions declares webhook listener settings.
type WebhookOptions struct {
	Listen string
	Port   int
	URL    string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions
}

// BuildPoller returns a webhook poller for run mode "webhook" and a long poller otherwise.
func BuildPoller(opts PollerOptions) tele.Poller {
	runMode := strings.ToLower(strings.TrimSpace(opts.RunMode))
	if runMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:         fmt.Sprintf("%s:%d", opts.Webhook.Listen, opts.Webhook.Port),
			Endpoint:       &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
			AllowedUpdates: AllowedUpdates,
		}
	}

	return &tele.LongPoller{Timeout: opts.pollTimeout(), AllowedUpdates: AllowedUpdates}
}

func (o PollerOptions) pollTimeout() time.Duration {
	if o.LongPollTimeoutSeconds > 0 {
		return time.Duration(o.LongPollTimeoutSeconds) * time.Second
	}
	return defaultLongPollTimeout
}
