package event

import (
	"time"

	"github.com/google/uuid"
)

// Session status values reported through StatusEvent.
const (
	StatusConnecting   = "connecting"
	StatusConnected    = "connected"
	StatusSpawned      = "spawned"
	StatusDisconnected = "disconnected"
	StatusKicked       = "kicked"
	StatusDeath        = "death"
)

type Event interface {
	ID() string
	BotName() string
	OccurredAt() time.Time
}

type BaseEvent struct {
	id         string
	botName    string
	occurredAt time.Time
}

func (b BaseEvent) ID() string            { return b.id }
func (b BaseEvent) BotName() string       { return b.botName }
func (b BaseEvent) OccurredAt() time.Time { return b.occurredAt }

func Base(botName string) BaseEvent {
	return BaseEvent{
		id:         uuid.NewString(),
		botName:    botName,
		occurredAt: time.Now(),
	}
}

// StatusEvent reports a session lifecycle change.
type StatusEvent struct {
	BaseEvent
	Status  string
	Message string
}

func Status(botName, status, message string) StatusEvent {
	return StatusEvent{BaseEvent: Base(botName), Status: status, Message: message}
}

// ChatEvent is one normalized chat line, from a player or the server.
type ChatEvent struct {
	BaseEvent
	Username string
	Text     string
}

func Chat(botName, username, text string) ChatEvent {
	return ChatEvent{BaseEvent: Base(botName), Username: username, Text: text}
}

type HealthEvent struct {
	BaseEvent
	Health float64
	Food   int
}

func Health(botName string, health float64, food int) HealthEvent {
	return HealthEvent{BaseEvent: Base(botName), Health: health, Food: food}
}

type ExperienceEvent struct {
	BaseEvent
	Level    int
	Points   int
	Progress float64
}

func Experience(botName string, level, points int, progress float64) ExperienceEvent {
	return ExperienceEvent{BaseEvent: Base(botName), Level: level, Points: points, Progress: progress}
}

type InventorySlot struct {
	Slot  int    `json:"slot"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// InventoryEvent carries a coalesced snapshot of changed inventory slots.
type InventoryEvent struct {
	BaseEvent
	Slots []InventorySlot
}

func Inventory(botName string, slots []InventorySlot) InventoryEvent {
	return InventoryEvent{BaseEvent: Base(botName), Slots: slots}
}

type ErrorEvent struct {
	BaseEvent
	Reason string
}

func Error(botName, reason string) ErrorEvent {
	return ErrorEvent{BaseEvent: Base(botName), Reason: reason}
}

// MicrosoftAuthEvent surfaces a device-auth challenge with the code the
// operator must enter. This is a signal, not a failure.
type MicrosoftAuthEvent struct {
	BaseEvent
	Code    string
	Message string
}

func MicrosoftAuth(botName, code, message string) MicrosoftAuthEvent {
	return MicrosoftAuthEvent{BaseEvent: Base(botName), Code: code, Message: message}
}

// ReconnectingEvent announces an imminent automatic reconnect attempt.
type ReconnectingEvent struct {
	BaseEvent
}

func Reconnecting(botName string) ReconnectingEvent {
	return ReconnectingEvent{BaseEvent: Base(botName)}
}
