package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/minefleet/afkconsole/internal/bot"
	"github.com/minefleet/afkconsole/internal/event"
)

type Bot struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	manager *bot.Manager
	logger  *slog.Logger
}

func (b *Bot) Start(ctx context.Context) error {
	offset, err := b.getLatestOffset()
	if err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(offset)
	u.Timeout = 5
	updates := b.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.bot.StopReceivingUpdates()
			for range updates {
			}
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil && update.Message.Chat != nil && update.Message.Chat.ID == b.chatID {
				b.handleCommand(update.Message.Text)
			}
		}
	}
}

func (b *Bot) handleCommand(text string) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return
	}

	switch strings.ToLower(words[0]) {
	case "list":
		statuses := b.manager.Statuses()
		if len(statuses) == 0 {
			b.send("No bots have connected yet.")
			return
		}
		var lines []string
		for name, status := range statuses {
			lines = append(lines, fmt.Sprintf("%s: %s", name, status.Status))
		}
		b.send(strings.Join(lines, "\n"))
	case "connect":
		if len(words) < 2 {
			b.send("Usage: connect <bot>")
			return
		}
		if err := b.manager.Connect(words[1], ""); err != nil {
			b.send(fmt.Sprintf("Could not connect '%s': %s", words[1], err))
			return
		}
		b.send(fmt.Sprintf("Bot '%s' is connecting.", words[1]))
	case "disconnect":
		if len(words) < 2 {
			b.send("Usage: disconnect <bot>")
			return
		}
		b.manager.Disconnect(words[1])
		b.send(fmt.Sprintf("Bot '%s' has been disconnected.", words[1]))
	}
}

func (b *Bot) getLatestOffset() (int, error) {
	upds, err := b.bot.GetUpdates(tgbotapi.NewUpdate(-1))
	if err != nil {
		return 0, err
	}
	offset := 0
	if len(upds) > 0 {
		offset = upds[0].UpdateID + 1
	}
	return offset, nil
}

func (b *Bot) send(text string) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	if _, err := b.bot.Send(msg); err != nil {
		b.logger.Error("Error sending Telegram message", slog.Any("error", err))
	}
}

// Handle relays the operator-relevant events to the configured chat.
func (b *Bot) Handle(ctx context.Context, e event.Event) error {
	switch evt := e.(type) {
	case event.StatusEvent:
		text := fmt.Sprintf("[%s] %s", evt.BotName(), evt.Status)
		if evt.Message != "" {
			text = fmt.Sprintf("%s (%s)", text, evt.Message)
		}
		b.send(text)
	case event.ErrorEvent:
		b.send(fmt.Sprintf("[%s] error: %s", evt.BotName(), evt.Reason))
	case event.MicrosoftAuthEvent:
		b.send(fmt.Sprintf("[%s] Microsoft sign-in required, code: %s", evt.BotName(), evt.Code))
	case event.ReconnectingEvent:
		b.send(fmt.Sprintf("[%s] reconnecting...", evt.BotName()))
	}
	return nil
}
