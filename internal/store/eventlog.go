package store

import (
	"context"
	"fmt"

	"github.com/minefleet/afkconsole/internal/event"
)

// Push-channel event names, shared by the rolling log and the websocket
// broadcaster.
const (
	TypeStatus        = "bot-status"
	TypeChat          = "bot-chat"
	TypeHealth        = "bot-health"
	TypeExperience    = "bot-experience"
	TypeInventory     = "bot-inventory"
	TypeError         = "bot-error"
	TypeMicrosoftAuth = "microsoft-auth"
	TypeReconnecting  = "reconnecting-bot"
)

// EntryFromEvent maps a domain event onto its rolling-log row.
func EntryFromEvent(e event.Event) LogEntry {
	entry := LogEntry{
		ID:        e.ID(),
		Timestamp: e.OccurredAt(),
		BotName:   e.BotName(),
	}

	switch evt := e.(type) {
	case event.StatusEvent:
		entry.Type = TypeStatus
		entry.Status = evt.Status
		entry.Message = evt.Message
	case event.ChatEvent:
		entry.Type = TypeChat
		entry.Username = evt.Username
		entry.Message = evt.Text
	case event.HealthEvent:
		entry.Type = TypeHealth
		entry.Message = fmt.Sprintf("health %.1f, food %d", evt.Health, evt.Food)
	case event.ExperienceEvent:
		entry.Type = TypeExperience
		entry.Message = fmt.Sprintf("level %d (%d points)", evt.Level, evt.Points)
	case event.InventoryEvent:
		entry.Type = TypeInventory
		entry.Message = fmt.Sprintf("%d slot(s) changed", len(evt.Slots))
	case event.ErrorEvent:
		entry.Type = TypeError
		entry.Error = evt.Reason
	case event.MicrosoftAuthEvent:
		entry.Type = TypeMicrosoftAuth
		entry.Code = evt.Code
		entry.Message = evt.Message
	case event.ReconnectingEvent:
		entry.Type = TypeReconnecting
	default:
		entry.Type = "event"
	}

	return entry
}

// HandleEvent appends every domain event to the rolling log. Registered on
// the event listener at startup.
func (s *Store) HandleEvent(_ context.Context, e event.Event) error {
	return s.AppendLog(EntryFromEvent(e))
}
