package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/minefleet/afkconsole/internal/event"
	"github.com/minefleet/afkconsole/internal/store"
)

func TestHandleEventBroadcastsTypedAndLogFrames(t *testing.T) {
	f := newFixture(t)

	client := newTestClient()
	f.srv.wsServer.register <- client

	if err := f.srv.HandleEvent(context.Background(), event.Chat("Steve", "Alex", "hello")); err != nil {
		t.Fatal(err)
	}

	frames := map[string]json.RawMessage{}
	for i := 0; i < 2; i++ {
		env := readFrame(t, client)
		frames[env.Event] = env.Data
	}

	chatRaw, ok := frames[store.TypeChat]
	if !ok {
		t.Fatal("typed chat frame missing")
	}
	var chat chatPayload
	if err := json.Unmarshal(chatRaw, &chat); err != nil {
		t.Fatal(err)
	}
	if chat.BotName != "Steve" || chat.Username != "Alex" || chat.Message != "hello" {
		t.Errorf("chat frame = %+v", chat)
	}

	logRaw, ok := frames["new-log"]
	if !ok {
		t.Fatal("new-log frame missing")
	}
	var entry store.LogEntry
	if err := json.Unmarshal(logRaw, &entry); err != nil {
		t.Fatal(err)
	}
	if entry.Type != store.TypeChat || entry.Message != "hello" {
		t.Errorf("log frame = %+v", entry)
	}
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	f := newFixture(t)

	a := newTestClient()
	b := newTestClient()
	f.srv.wsServer.register <- a
	f.srv.wsServer.register <- b

	f.srv.wsServer.Broadcast(store.TypeStatus, statusPayload{BotName: "Steve", Status: event.StatusSpawned})

	for _, client := range []*Client{a, b} {
		env := readFrame(t, client)
		if env.Event != store.TypeStatus {
			t.Errorf("unexpected frame %q", env.Event)
		}
	}
}

func TestPayloadFromEventCoversAllEvents(t *testing.T) {
	events := []event.Event{
		event.Status("s", event.StatusConnected, "m"),
		event.Chat("s", "u", "m"),
		event.Health("s", 20, 20),
		event.Experience("s", 1, 2, 0.3),
		event.Inventory("s", nil),
		event.Error("s", "r"),
		event.MicrosoftAuth("s", "CODE", "m"),
		event.Reconnecting("s"),
	}
	names := map[string]bool{}
	for _, e := range events {
		name, payload, ok := payloadFromEvent(e)
		if !ok {
			t.Fatalf("event %T not mapped", e)
		}
		if payload == nil || name == "" {
			t.Fatalf("event %T yields empty frame", e)
		}
		if names[name] {
			t.Fatalf("frame name %q reused", name)
		}
		names[name] = true
	}
}
