package server

import (
	"github.com/minefleet/afkconsole/internal/event"
	"github.com/minefleet/afkconsole/internal/store"
)

// Outbound push-channel payloads. Field names match what the browser UI
// consumes, so they stay camelCase JSON regardless of Go naming.

type statusPayload struct {
	BotName string `json:"botName"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type chatPayload struct {
	BotName  string `json:"botName"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message"`
}

type healthPayload struct {
	BotName string  `json:"botName"`
	Health  float64 `json:"health"`
	Food    int     `json:"food"`
}

type experiencePayload struct {
	BotName  string  `json:"botName"`
	Level    int     `json:"level"`
	Points   int     `json:"points"`
	Progress float64 `json:"progress"`
}

type inventoryPayload struct {
	BotName string                `json:"botName"`
	Slots   []event.InventorySlot `json:"slots"`
}

type errorPayload struct {
	BotName string `json:"botName"`
	Error   string `json:"error"`
}

type microsoftAuthPayload struct {
	BotName string `json:"botName"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type reconnectingPayload struct {
	BotName string `json:"botName"`
}

// payloadFromEvent maps a domain event onto its push-channel frame name and
// payload. ok is false for events that are not broadcast directly.
func payloadFromEvent(e event.Event) (string, any, bool) {
	switch evt := e.(type) {
	case event.StatusEvent:
		return store.TypeStatus, statusPayload{BotName: evt.BotName(), Status: evt.Status, Message: evt.Message}, true
	case event.ChatEvent:
		return store.TypeChat, chatPayload{BotName: evt.BotName(), Username: evt.Username, Message: evt.Text}, true
	case event.HealthEvent:
		return store.TypeHealth, healthPayload{BotName: evt.BotName(), Health: evt.Health, Food: evt.Food}, true
	case event.ExperienceEvent:
		return store.TypeExperience, experiencePayload{BotName: evt.BotName(), Level: evt.Level, Points: evt.Points, Progress: evt.Progress}, true
	case event.InventoryEvent:
		return store.TypeInventory, inventoryPayload{BotName: evt.BotName(), Slots: evt.Slots}, true
	case event.ErrorEvent:
		return store.TypeError, errorPayload{BotName: evt.BotName(), Error: evt.Reason}, true
	case event.MicrosoftAuthEvent:
		return store.TypeMicrosoftAuth, microsoftAuthPayload{BotName: evt.BotName(), Code: evt.Code, Message: evt.Message}, true
	case event.ReconnectingEvent:
		return store.TypeReconnecting, reconnectingPayload{BotName: evt.BotName()}, true
	default:
		return "", nil, false
	}
}
