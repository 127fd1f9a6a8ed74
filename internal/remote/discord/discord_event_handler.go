package discord

import (
	"context"
	"fmt"

	"github.com/minefleet/afkconsole/internal/event"
)

// Handle relays the operator-relevant events to the configured channel.
// Chat and telemetry stay on the push channel only; mirroring them to Discord
// would flood the channel and trip rate limits.
func (b *Bot) Handle(ctx context.Context, e event.Event) error {
	switch evt := e.(type) {
	case event.StatusEvent:
		message := fmt.Sprintf("**[%s]** %s", evt.BotName(), evt.Status)
		if evt.Message != "" {
			message = fmt.Sprintf("%s (%s)", message, evt.Message)
		}
		return b.sendEventMessage(message)
	case event.ErrorEvent:
		return b.sendEventMessage(fmt.Sprintf("**[%s]** ⚠️ %s", evt.BotName(), evt.Reason))
	case event.MicrosoftAuthEvent:
		return b.sendEventMessage(fmt.Sprintf("**[%s]** 🔑 Microsoft sign-in required, code: `%s`", evt.BotName(), evt.Code))
	case event.ReconnectingEvent:
		return b.sendEventMessage(fmt.Sprintf("**[%s]** reconnecting...", evt.BotName()))
	}
	return nil
}

func (b *Bot) sendEventMessage(message string) error {
	_, err := b.discordSession.ChannelMessageSend(b.channelID, message)
	return err
}
