package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/minefleet/afkconsole/internal/bot"
	"github.com/minefleet/afkconsole/internal/event"
	"github.com/minefleet/afkconsole/internal/store"
)

func TestConnectBotCommand(t *testing.T) {
	f := newFixture(t)
	client := newTestClient()

	f.gateway.Dispatch(client, command(t, "connect-bot", map[string]string{"botName": "Steve"}))

	f.dialer.waitDial(t)
	waitFor(t, func() bool { return f.manager.Session("Steve") != nil })
}

func TestConnectUnknownBotEmitsError(t *testing.T) {
	f := newFixture(t)
	client := newTestClient()

	captured := make(chan event.Event, 8)
	f.events.Register(func(_ context.Context, e event.Event) error {
		captured <- e
		return nil
	})

	f.gateway.Dispatch(client, command(t, "connect-bot", map[string]string{"botName": "Nobody"}))

	select {
	case e := <-captured:
		errEvent, ok := e.(event.ErrorEvent)
		if !ok {
			t.Fatalf("unexpected event %T", e)
		}
		if errEvent.Reason != "Bot not found" {
			t.Errorf("reason = %q", errEvent.Reason)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no error event for unknown bot")
	}
}

func TestDisconnectBotCommand(t *testing.T) {
	f := newFixture(t)
	client := newTestClient()

	f.gateway.Dispatch(client, command(t, "connect-bot", map[string]string{"botName": "Steve"}))
	capture := f.dialer.waitDial(t)
	waitFor(t, func() bool { return f.manager.Session("Steve") != nil })

	f.gateway.Dispatch(client, command(t, "disconnect-bot", map[string]string{"botName": "Steve"}))

	waitFor(t, func() bool { return f.manager.Session("Steve") == nil })
	waitFor(t, capture.conn.Ended)
}

func TestSendChatCommand(t *testing.T) {
	f := newFixture(t)
	client := newTestClient()

	f.gateway.Dispatch(client, command(t, "connect-bot", map[string]string{"botName": "Steve"}))
	capture := f.dialer.waitDial(t)
	capture.events.OnLogin()
	waitFor(t, func() bool {
		sess := f.manager.Session("Steve")
		return sess != nil && sess.State() == bot.StateConnected
	})

	f.gateway.Dispatch(client, command(t, "send-chat", map[string]string{"botName": "Steve", "message": "hello"}))

	waitFor(t, func() bool {
		log := capture.conn.chatLog()
		return len(log) == 1 && log[0] == "hello"
	})
}

func TestSendChatUnknownBotIsDropped(t *testing.T) {
	f := newFixture(t)
	client := newTestClient()

	// must not panic or emit anything
	f.gateway.Dispatch(client, command(t, "send-chat", map[string]string{"botName": "Ghost", "message": "hello"}))
}

func TestMalformedFramesDropped(t *testing.T) {
	f := newFixture(t)
	client := newTestClient()

	f.gateway.Dispatch(client, []byte("{not json"))
	f.gateway.Dispatch(client, command(t, "no-such-command", map[string]string{}))
	f.gateway.Dispatch(client, command(t, "connect-bot", map[string]string{}))
}

func TestRequestSyncReplaysState(t *testing.T) {
	f := newFixture(t)
	client := newTestClient()

	f.gateway.Dispatch(client, command(t, "connect-bot", map[string]string{"botName": "Steve"}))
	capture := f.dialer.waitDial(t)
	capture.events.OnLogin()
	capture.events.OnHealth(20, 20)
	capture.events.OnExperience(5, 100, 0.2)

	waitFor(t, func() bool {
		sess := f.manager.Session("Steve")
		if sess == nil {
			return false
		}
		health, experience, _ := sess.Telemetry()
		return health != nil && experience != nil
	})

	if err := f.store.AppendLog(store.LogEntry{ID: "c1", Type: store.TypeChat, BotName: "Steve", Username: "Alex", Message: "hi"}); err != nil {
		t.Fatal(err)
	}

	f.gateway.Dispatch(client, command(t, "request-sync", nil))

	frames := map[string][]json.RawMessage{}
	// status + health + experience + chat
	for i := 0; i < 4; i++ {
		env := readFrame(t, client)
		frames[env.Event] = append(frames[env.Event], env.Data)
	}

	if len(frames[store.TypeStatus]) == 0 {
		t.Error("resync missing status frame")
	}
	if len(frames[store.TypeHealth]) != 1 {
		t.Error("resync missing health frame")
	}
	if len(frames[store.TypeExperience]) != 1 {
		t.Error("resync missing experience frame")
	}
	if len(frames[store.TypeChat]) != 1 {
		t.Error("resync missing chat history frame")
	}

	var chat chatPayload
	if err := json.Unmarshal(frames[store.TypeChat][0], &chat); err != nil {
		t.Fatal(err)
	}
	if chat.Username != "Alex" || chat.Message != "hi" {
		t.Errorf("chat replay = %+v", chat)
	}
}

func TestControlBotLookCommand(t *testing.T) {
	f := newFixture(t)
	client := newTestClient()

	f.gateway.Dispatch(client, command(t, "connect-bot", map[string]string{"botName": "Steve"}))
	capture := f.dialer.waitDial(t)
	capture.events.OnLogin()
	waitFor(t, func() bool {
		sess := f.manager.Session("Steve")
		return sess != nil && sess.State() == bot.StateConnected
	})

	// look with a structured option must not be dropped
	f.gateway.Dispatch(client, command(t, "control-bot", map[string]any{
		"botName": "Steve",
		"action":  "look",
		"option":  map[string]float64{"yaw": 1.5, "pitch": 0.2},
	}))
	// unknown action is dropped without side effects
	f.gateway.Dispatch(client, command(t, "control-bot", map[string]any{
		"botName": "Steve",
		"action":  "teleport",
	}))
}

func TestSpamToggleCommands(t *testing.T) {
	f := newFixture(t)
	client := newTestClient()

	f.gateway.Dispatch(client, command(t, "connect-bot", map[string]string{"botName": "Steve"}))
	capture := f.dialer.waitDial(t)
	capture.events.OnLogin()
	waitFor(t, func() bool {
		sess := f.manager.Session("Steve")
		return sess != nil && sess.State() == bot.StateConnected
	})

	f.gateway.Dispatch(client, command(t, "send-spam", map[string]any{
		"botName": "Steve", "message": "buying dirt", "delay": 0, "enable": true,
	}))
	// delay 0 falls back to the 20s default, so no message lands quickly;
	// disabling must be a clean no-op either way
	f.gateway.Dispatch(client, command(t, "send-spam", map[string]any{
		"botName": "Steve", "enable": false,
	}))
}
