package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/minefleet/afkconsole/internal/event"
)

func (b *Bot) handleConnectRequest(s *discordgo.Session, m *discordgo.MessageCreate) {
	words := strings.Fields(m.Content)

	if len(words) < 2 {
		s.ChannelMessageSend(m.ChannelID, "Usage: !connect <bot1> [bot2] ...")
		return
	}

	for _, name := range words[1:] {
		if err := b.manager.Connect(name, ""); err != nil {
			s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Could not connect '%s': %s", name, err))
			continue
		}
		s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Bot '%s' is connecting.", name))
	}
}

func (b *Bot) handleDisconnectRequest(s *discordgo.Session, m *discordgo.MessageCreate) {
	words := strings.Fields(m.Content)

	if len(words) < 2 {
		s.ChannelMessageSend(m.ChannelID, "Usage: !disconnect <bot1> [bot2] ...")
		return
	}

	for _, name := range words[1:] {
		if b.manager.Session(name) == nil {
			s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Bot '%s' is not connected.", name))
			continue
		}
		b.manager.Disconnect(name)
		s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Bot '%s' has been disconnected.", name))
	}
}

func (b *Bot) handleConnectAllRequest(s *discordgo.Session, m *discordgo.MessageCreate) {
	s.ChannelMessageSend(m.ChannelID, "Connecting every bot...")
	go func() {
		if err := b.manager.ConnectAll(""); err != nil {
			s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Connect all failed: %s", err))
		}
	}()
}

func (b *Bot) handleDisconnectAllRequest(s *discordgo.Session, m *discordgo.MessageCreate) {
	if err := b.manager.DisconnectAll(); err != nil {
		s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Disconnect all failed: %s", err))
		return
	}
	s.ChannelMessageSend(m.ChannelID, "Every bot has been disconnected.")
}

func (b *Bot) handleStatusRequest(s *discordgo.Session, m *discordgo.MessageCreate) {
	words := strings.Fields(m.Content)

	if len(words) < 2 {
		s.ChannelMessageSend(m.ChannelID, "Usage: !status <bot1> [bot2] ...")
		return
	}

	for _, name := range words[1:] {
		status, ok := b.manager.Status(name)
		if !ok {
			s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Bot '%s' is offline.", name))
			continue
		}
		s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Bot '%s' is %s", name, status.Status))
	}
}

func (b *Bot) handleListRequest(s *discordgo.Session, m *discordgo.MessageCreate) {
	statuses := b.manager.Statuses()

	if len(statuses) == 0 {
		s.ChannelMessageSend(m.ChannelID, "No bots have connected yet.")
		return
	}

	var fields []*discordgo.MessageEmbedField
	for name, status := range statuses {
		statusText := "❌ " + status.Status
		if status.Status == event.StatusSpawned || status.Status == event.StatusConnected {
			statusText = "✅ " + status.Status
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   name,
			Value:  statusText,
			Inline: true,
		})
	}

	embed := &discordgo.MessageEmbed{
		Title:  "📋 Known Bots",
		Fields: fields,
		Color:  0x5865F2, // Discord blurple
	}

	s.ChannelMessageSendEmbed(m.ChannelID, embed)
}

func (b *Bot) handleHelpRequest(s *discordgo.Session, m *discordgo.MessageCreate) {
	embed := &discordgo.MessageEmbed{
		Title:       "🤖 AFK Console Commands",
		Description: "Control and monitor your AFK bots",
		Color:       0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "!list",
				Value:  "Show every known bot with its last status",
				Inline: false,
			},
			{
				Name:   "!connect <bot1> [bot2] ...",
				Value:  "Connect one or more bots\nExample: `!connect Steve Alex`",
				Inline: false,
			},
			{
				Name:   "!disconnect <bot1> [bot2] ...",
				Value:  "Disconnect one or more bots\nExample: `!disconnect Steve`",
				Inline: false,
			},
			{
				Name:   "!connectall",
				Value:  "Connect every stored bot",
				Inline: false,
			},
			{
				Name:   "!disconnectall",
				Value:  "Disconnect every bot",
				Inline: false,
			},
			{
				Name:   "!status <bot1> [bot2] ...",
				Value:  "Check the current status of bots\nExample: `!status Steve Alex`",
				Inline: false,
			},
			{
				Name:   "!help",
				Value:  "Show this help message",
				Inline: false,
			},
		},
	}

	s.ChannelMessageSendEmbed(m.ChannelID, embed)
}
