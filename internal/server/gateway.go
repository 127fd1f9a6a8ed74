package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/minefleet/afkconsole/internal/bot"
	"github.com/minefleet/afkconsole/internal/event"
	"github.com/minefleet/afkconsole/internal/store"
)

// Gateway is the stateless command dispatcher for the push channel: it
// validates inbound operator commands and delegates to the session registry
// or the target session's control surface. Commands against sessions that
// are not in an active state are dropped by design.
type Gateway struct {
	logger  *slog.Logger
	manager *bot.Manager
	store   *store.Store
	events  *event.Listener
	ws      *WebSocketServer
}

func NewGateway(logger *slog.Logger, manager *bot.Manager, st *store.Store, events *event.Listener) *Gateway {
	return &Gateway{logger: logger, manager: manager, store: st, events: events}
}

// Bind attaches the websocket hub used for direct resync replies.
func (g *Gateway) Bind(ws *WebSocketServer) {
	g.ws = ws
}

type botCommand struct {
	BotName string `json:"botName"`
	Version string `json:"version,omitempty"`
}

type chatCommand struct {
	BotName string `json:"botName"`
	Message string `json:"message"`
}

type spamCommand struct {
	BotName string `json:"botName"`
	Message string `json:"message"`
	Delay   int    `json:"delay"`
	Enable  bool   `json:"enable"`
}

type controlCommand struct {
	BotName string          `json:"botName"`
	Action  string          `json:"action"`
	Option  json.RawMessage `json:"option,omitempty"`
}

type lookOption struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
}

// Dispatch decodes one inbound command frame and routes it.
func (g *Gateway) Dispatch(client *Client, raw []byte) {
	var cmd envelope
	if err := json.Unmarshal(raw, &cmd); err != nil {
		g.logger.Debug("Dropping malformed command frame", slog.Any("error", err))
		return
	}

	switch cmd.Event {
	case "connect-bot":
		var c botCommand
		if err := json.Unmarshal(cmd.Data, &c); err != nil || c.BotName == "" {
			return
		}
		go g.connect(c.BotName, c.Version)
	case "disconnect-bot":
		var c botCommand
		if err := json.Unmarshal(cmd.Data, &c); err != nil || c.BotName == "" {
			return
		}
		g.manager.Disconnect(c.BotName)
	case "connect-all-bots":
		var c botCommand
		if len(cmd.Data) > 0 {
			_ = json.Unmarshal(cmd.Data, &c)
		}
		go func() {
			if err := g.manager.ConnectAll(c.Version); err != nil {
				g.logger.Error("Error connecting all bots", slog.Any("error", err))
			}
		}()
	case "disconnect-all-bots":
		go func() {
			if err := g.manager.DisconnectAll(); err != nil {
				g.logger.Error("Error disconnecting all bots", slog.Any("error", err))
			}
		}()
	case "send-chat":
		var c chatCommand
		if err := json.Unmarshal(cmd.Data, &c); err != nil || c.BotName == "" {
			return
		}
		if sess := g.manager.Session(c.BotName); sess != nil {
			sess.Chat(c.Message)
		} else {
			g.logger.Debug("Dropping chat for unknown session", slog.String("bot", c.BotName))
		}
	case "send-spam":
		g.handleSpam(cmd.Data)
	case "control-bot":
		g.handleControl(cmd.Data)
	case "request-sync":
		g.resync(client)
	default:
		g.logger.Debug("Unknown command", slog.String("event", cmd.Event))
	}
}

func (g *Gateway) connect(botName, version string) {
	err := g.manager.Connect(botName, version)
	if err == nil {
		return
	}

	reason := err.Error()
	switch {
	case errors.Is(err, bot.ErrAlreadyConnected):
		reason = "Bot already connected"
	case errors.Is(err, bot.ErrUnknownAccount):
		reason = "Bot not found"
	}
	g.events.Emit(event.Error(botName, reason))
}

func (g *Gateway) handleSpam(data json.RawMessage) {
	var c spamCommand
	if err := json.Unmarshal(data, &c); err != nil || c.BotName == "" {
		return
	}

	sess := g.manager.Session(c.BotName)
	if sess == nil {
		g.logger.Debug("Dropping spam toggle for unknown session", slog.String("bot", c.BotName))
		return
	}

	if !c.Enable {
		sess.DisableSpam()
		return
	}
	sess.EnableSpam(c.Message, time.Duration(c.Delay)*time.Second)
}

func (g *Gateway) handleControl(data json.RawMessage) {
	var c controlCommand
	if err := json.Unmarshal(data, &c); err != nil || c.BotName == "" {
		return
	}

	sess := g.manager.Session(c.BotName)
	if sess == nil {
		g.logger.Debug("Dropping control for unknown session",
			slog.String("bot", c.BotName), slog.String("action", c.Action))
		return
	}

	switch c.Action {
	case "move":
		var option string
		_ = json.Unmarshal(c.Option, &option)
		sess.Move(option)
	case "look":
		var look lookOption
		if err := json.Unmarshal(c.Option, &look); err != nil {
			return
		}
		sess.Look(look.Yaw, look.Pitch)
	case "jump":
		sess.Jump()
	case "swing":
		sess.Swing()
	default:
		g.logger.Debug("Unknown control action", slog.String("action", c.Action))
	}
}

// resync replays known state to one freshly-subscribed client: the last
// status per account, the last telemetry per active session and the most
// recent chat lines from the rolling log.
func (g *Gateway) resync(client *Client) {
	if g.ws == nil {
		return
	}

	for name, status := range g.manager.Statuses() {
		g.ws.sendTo(client, store.TypeStatus, statusPayload{
			BotName: name, Status: status.Status, Message: status.Message,
		})
	}

	for _, sess := range g.manager.ActiveSessions() {
		health, experience, slots := sess.Telemetry()
		if health != nil {
			g.ws.sendTo(client, store.TypeHealth, healthPayload{
				BotName: sess.Name(), Health: health.Health, Food: health.Food,
			})
		}
		if experience != nil {
			g.ws.sendTo(client, store.TypeExperience, experiencePayload{
				BotName: sess.Name(), Level: experience.Level,
				Points: experience.Points, Progress: experience.Progress,
			})
		}
		if len(slots) > 0 {
			g.ws.sendTo(client, store.TypeInventory, inventoryPayload{
				BotName: sess.Name(), Slots: slots,
			})
		}
	}

	entries, err := g.store.RecentLogs(resyncChatCount, store.TypeChat)
	if err != nil {
		g.logger.Error("Error loading chat history for resync", slog.Any("error", err))
		return
	}
	for _, entry := range entries {
		g.ws.sendTo(client, store.TypeChat, chatPayload{
			BotName: entry.BotName, Username: entry.Username, Message: entry.Message,
		})
	}
}

const resyncChatCount = 100
