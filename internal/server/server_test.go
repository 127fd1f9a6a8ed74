package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/minefleet/afkconsole/internal/bot"
	"github.com/minefleet/afkconsole/internal/event"
	"github.com/minefleet/afkconsole/internal/minecraft"
	"github.com/minefleet/afkconsole/internal/store"
)

// stubConn satisfies the connection surface with no-ops; gateway tests only
// care about command routing, not control traffic.
type stubConn struct {
	mu    sync.Mutex
	ended bool
	chats []string
}

func (c *stubConn) Chat(message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chats = append(c.chats, message)
	return nil
}

func (c *stubConn) SetControlState(minecraft.Control, bool) error { return nil }
func (c *stubConn) Look(float64, float64) error                   { return nil }
func (c *stubConn) SwingArm() error                               { return nil }

func (c *stubConn) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

func (c *stubConn) Quit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ended = true
	return nil
}

func (c *stubConn) chatLog() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.chats))
	copy(out, c.chats)
	return out
}

type stubDialer struct {
	mu    sync.Mutex
	dials []*dialCapture
	ch    chan *dialCapture
}

type dialCapture struct {
	conn   *stubConn
	events minecraft.Events
}

func newStubDialer() *stubDialer {
	return &stubDialer{ch: make(chan *dialCapture, 8)}
}

func (d *stubDialer) Dial(ctx context.Context, opts minecraft.Options, ev minecraft.Events) (minecraft.Conn, error) {
	capture := &dialCapture{conn: &stubConn{}, events: ev}
	d.mu.Lock()
	d.dials = append(d.dials, capture)
	d.mu.Unlock()
	d.ch <- capture
	return capture.conn, nil
}

func (d *stubDialer) waitDial(t *testing.T) *dialCapture {
	t.Helper()
	select {
	case capture := <-d.ch:
		return capture
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for dial")
		return nil
	}
}

type fixture struct {
	store   *store.Store
	events  *event.Listener
	dialer  *stubDialer
	manager *bot.Manager
	gateway *Gateway
	srv     *HttpServer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	st, err := store.New(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	if err := st.SaveInfo(store.ServerInfo{ServerIP: "localhost", ServerPort: 25565, Version: "1.20.1", LoginDelay: 0}); err != nil {
		t.Fatal(err)
	}
	settings, err := st.Settings()
	if err != nil {
		t.Fatal(err)
	}
	settings.AntiAFK = false
	settings.JoinMessages = false
	settings.WorldChangeMessages = false
	settings.AutoReconnect = false
	if err := st.SaveSettings(settings); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveAccounts([]store.Account{{Username: "Steve", Auth: store.AuthOffline}}); err != nil {
		t.Fatal(err)
	}

	listener := event.NewListener(logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go listener.Listen(ctx)

	dialer := newStubDialer()
	manager := bot.NewManager(logger, st, listener, dialer, 0)
	t.Cleanup(manager.StopAll)

	gateway := NewGateway(logger, manager, st, listener)
	srv := New(logger, st, gateway)
	go srv.wsServer.Run()

	return &fixture{store: st, events: listener, dialer: dialer, manager: manager, gateway: gateway, srv: srv}
}

func newTestClient() *Client {
	return &Client{send: make(chan []byte, 256)}
}

func command(t *testing.T, eventName string, data any) []byte {
	t.Helper()
	msg, err := marshalEnvelope(eventName, data)
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

// readFrame pops one queued frame from the client, decoded into its envelope.
func readFrame(t *testing.T, c *Client) envelope {
	t.Helper()
	select {
	case raw := <-c.send:
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("bad frame %q: %v", raw, err)
		}
		return env
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for frame")
		return envelope{}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never met")
}
